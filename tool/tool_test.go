package tool

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/roundtable/core"
	"github.com/hupe1980/roundtable/logging"
)

// -------------------- FunctionTool Tests --------------------

func sumTool() *FunctionTool {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
			"b": map[string]any{"type": "number"},
		},
		"required": []string{"a", "b"},
	}
	return NewFunctionTool("sum", "Add numbers", params, func(_ context.Context, args map[string]any) (any, error) {
		return args["a"].(float64) + args["b"].(float64), nil
	})
}

func TestFunctionTool_Success(t *testing.T) {
	result, err := sumTool().Call(context.Background(), map[string]any{"a": 2.0, "b": 3.0})
	assert.NoError(t, err)
	assert.Equal(t, 5.0, result)
}

func TestFunctionTool_ValidationError(t *testing.T) {
	_, err := sumTool().Call(context.Background(), map[string]any{"a": 1.0})
	require.Error(t, err)

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeValidation, toolErr.Code)
	assert.Contains(t, toolErr.Message, "b")
}

func TestFunctionTool_ExecutionError(t *testing.T) {
	execTool := NewFunctionTool("fail", "Fails", nil, func(context.Context, map[string]any) (any, error) {
		return nil, errors.New("boom")
	})
	_, err := execTool.Call(context.Background(), map[string]any{})

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeExecution, toolErr.Code)
	assert.Equal(t, "boom", toolErr.Message)
}

func TestFunctionTool_ForwardsToolError(t *testing.T) {
	custom := NewToolError("quota", "daily quota used", "QUOTA")
	qt := NewFunctionTool("quota", "Quota", nil, func(context.Context, map[string]any) (any, error) {
		return nil, custom
	})
	_, err := qt.Call(context.Background(), map[string]any{})
	assert.Same(t, custom, err)
}

type weatherArgs struct {
	City string `json:"city" jsonschema:"description=City name"`
	Unit string `json:"unit,omitempty" jsonschema:"enum=celsius,enum=fahrenheit"`
}

func TestFunctionToolFromStruct(t *testing.T) {
	wt := NewFunctionToolFromStruct("get_weather", "Get the weather", weatherArgs{}, func(ctx context.Context, args map[string]any) (any, error) {
		return "sunny in " + args["city"].(string) + " (" + CallIDFromContext(ctx) + ")", nil
	})

	def := Definition(wt)
	assert.Equal(t, "function", def.Type)
	assert.Equal(t, "get_weather", def.Function.Name)
	assert.Equal(t, []any{"city"}, def.Function.Parameters["required"])

	res, err := wt.Call(WithCallID(context.Background(), "call_7"), map[string]any{"city": "Berlin"})
	require.NoError(t, err)
	assert.Equal(t, "sunny in Berlin (call_7)", res)

	_, err = wt.Call(context.Background(), map[string]any{"city": "Berlin", "unit": "kelvin"})
	assert.Error(t, err)
}

// -------------------- Executor Tests --------------------

func TestExecutor_PreservesOrderAndReportsErrors(t *testing.T) {
	slow := NewFunctionTool("slow", "Slow", nil, func(context.Context, map[string]any) (any, error) {
		time.Sleep(20 * time.Millisecond)
		return "slow done", nil
	})
	panicky := NewFunctionTool("panicky", "Panics", nil, func(context.Context, map[string]any) (any, error) {
		panic("kaboom")
	})

	exec, err := NewExecutor([]Tool{sumTool(), slow, panicky})
	require.NoError(t, err)
	assert.Equal(t, 3, exec.Len())
	assert.Len(t, exec.Definitions(), 3)

	resps := exec.Execute(context.Background(), []core.FunctionCall{
		{ID: "1", Name: "slow"},
		{ID: "2", Name: "sum", Arguments: `{"a": 1, "b": 2}`},
		{ID: "3", Name: "missing"},
		{ID: "4", Name: "sum", Arguments: `{not json`},
		{ID: "5", Name: "panicky"},
	})
	require.Len(t, resps, 5)

	assert.Equal(t, "1", resps[0].ID)
	assert.Equal(t, "slow done", resps[0].Response)
	assert.Equal(t, 3.0, resps[1].Response)
	assert.Empty(t, resps[1].Error)
	assert.Contains(t, resps[2].Error, CodeNotFound)
	assert.Contains(t, resps[3].Error, "invalid arguments")
	assert.Contains(t, resps[4].Error, "kaboom")
	assert.Equal(t, "panicky", resps[4].Name)
}

func TestExecutor_MaxParallel(t *testing.T) {
	var running, peak int32
	busy := NewFunctionTool("busy", "Busy", nil, func(context.Context, map[string]any) (any, error) {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return nil, nil
	})

	exec, err := NewExecutor([]Tool{busy}, func(o *ExecutorOptions) { o.MaxParallel = 2 })
	require.NoError(t, err)

	calls := make([]core.FunctionCall, 6)
	for i := range calls {
		calls[i] = core.FunctionCall{Name: "busy"}
	}
	exec.Execute(context.Background(), calls)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestExecutor_DuplicateNames(t *testing.T) {
	_, err := NewExecutor([]Tool{sumTool(), sumTool()})
	assert.Error(t, err)
}

func TestExecutor_CancelledContext(t *testing.T) {
	exec, err := NewExecutor([]Tool{sumTool()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	resps := exec.Execute(ctx, []core.FunctionCall{{ID: "1", Name: "sum", Arguments: `{"a":1,"b":1}`}})
	assert.Equal(t, context.Canceled.Error(), resps[0].Error)
}

func TestExecutor_ChatLoggerRecordsToolCalls(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelDebug, Format: "text", Output: &buf})

	exec, err := NewExecutor([]Tool{sumTool()}, func(o *ExecutorOptions) { o.Logger = logger })
	require.NoError(t, err)
	exec.Execute(context.Background(), []core.FunctionCall{
		{ID: "1", Name: "sum", Arguments: `{"a": 1, "b": 2}`},
		{ID: "2", Name: "missing"},
	})

	out := buf.String()
	assert.Contains(t, out, `msg="Tool execution completed"`)
	assert.Contains(t, out, `msg="Tool execution failed"`)
	assert.Contains(t, out, "tool_name=missing")
	assert.Contains(t, out, "component=tool")
	assert.Contains(t, out, "operation=tool.batch")
}

// -------------------- ParticipantTool Tests --------------------

type echoParticipant struct {
	name string
	err  error
}

func (p echoParticipant) Name() string        { return p.name }
func (p echoParticipant) Description() string { return "" }
func (p echoParticipant) Respond(_ context.Context, history []core.Message) (core.Message, error) {
	if p.err != nil {
		return core.Message{}, p.err
	}
	return core.NewAssistantMessage(p.name, "echo: "+history[len(history)-1].Content), nil
}

func TestParticipantTool(t *testing.T) {
	pt := NewParticipantTool(echoParticipant{name: "Art Director"})
	assert.Equal(t, "art_director", pt.Name())
	assert.Equal(t, "Ask Art Director for help.", pt.Description())

	res, err := pt.Call(context.Background(), map[string]any{"request": "review this"})
	require.NoError(t, err)
	assert.Equal(t, "echo: review this", res)

	_, err = pt.Call(context.Background(), map[string]any{})
	assert.Error(t, err)

	cause := errors.New("offline")
	failing := NewParticipantTool(echoParticipant{name: "Critic", err: cause}, func(o *ParticipantToolOptions) {
		o.Name = "ask_critic"
	})
	assert.Equal(t, "ask_critic", failing.Name())
	_, err = failing.Call(context.Background(), map[string]any{"request": "x"})
	assert.ErrorIs(t, err, core.ErrParticipantUnavailable)
	assert.ErrorIs(t, err, cause)
}

// -------------------- ToolError Formatting --------------------

func TestToolErrorFormatting(t *testing.T) {
	err := NewToolError("demo", "something failed", "E123")
	assert.Contains(t, err.Error(), "E123")
	assert.Contains(t, err.Error(), "demo")

	plain := &ToolError{Tool: "demo", Message: "x"}
	assert.Equal(t, "tool error in demo: x", plain.Error())
}
