package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/hupe1980/roundtable/core"
	"github.com/hupe1980/roundtable/logging"
	"github.com/hupe1980/roundtable/model"
)

// Optional logging.ChatLogger capabilities.
type (
	toolCallLogger interface {
		LogToolCall(tool string, dur time.Duration, err error)
	}
	timerLogger interface {
		StartTimer(op string) func()
	}
)

// ExecutorOptions configures an Executor.
type ExecutorOptions struct {
	// MaxParallel bounds concurrent tool calls of one batch; <= 0 means one
	// goroutine per call.
	MaxParallel int
	Logger      logging.Logger
}

// Executor resolves model function calls against a fixed tool set and runs
// them concurrently. Results are returned in call order.
type Executor struct {
	tools map[string]Tool
	order []Tool
	opts  ExecutorOptions
}

// NewExecutor creates an executor; tool names must be unique.
func NewExecutor(tools []Tool, optFns ...func(o *ExecutorOptions)) (*Executor, error) {
	opts := ExecutorOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	opts.Logger = logging.ForComponent(opts.Logger, "tool")

	e := &Executor{tools: make(map[string]Tool, len(tools)), opts: opts}
	for _, t := range tools {
		if _, dup := e.tools[t.Name()]; dup {
			return nil, fmt.Errorf("duplicate tool name %q", t.Name())
		}
		e.tools[t.Name()] = t
		e.order = append(e.order, t)
	}
	return e, nil
}

// Len returns the number of registered tools.
func (e *Executor) Len() int { return len(e.order) }

// Definitions returns the model facing definitions in registration order.
func (e *Executor) Definitions() []model.ToolDefinition {
	defs := make([]model.ToolDefinition, len(e.order))
	for i, t := range e.order {
		defs[i] = Definition(t)
	}
	return defs
}

// Execute runs calls and returns one response per call, in the same order.
// Tool failures (unknown tool, bad JSON, validation, panics) are reported in
// FunctionResponse.Error so the model can react to them.
func (e *Executor) Execute(ctx context.Context, calls []core.FunctionCall) []core.FunctionResponse {
	n := len(calls)
	out := make([]core.FunctionResponse, n)
	if n == 0 {
		return out
	}

	maxPar := e.opts.MaxParallel
	if maxPar <= 0 || maxPar > n {
		maxPar = n
	}

	if tl, ok := e.opts.Logger.(timerLogger); ok {
		defer tl.StartTimer("tool.batch")()
	}

	sem := make(chan struct{}, maxPar)
	var wg sync.WaitGroup

	for i, fc := range calls {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, fc core.FunctionCall) {
			defer wg.Done()
			defer func() { <-sem }()
			out[idx] = e.executeOne(ctx, fc)
		}(i, fc)
	}
	wg.Wait()

	e.opts.Logger.Debug("tool.batch.complete", "count", n, "parallelism", maxPar)
	return out
}

func (e *Executor) executeOne(ctx context.Context, fc core.FunctionCall) core.FunctionResponse {
	resp := core.FunctionResponse{ID: fc.ID, Name: fc.Name}
	if err := ctx.Err(); err != nil {
		resp.Error = err.Error()
		return resp
	}

	start := time.Now()
	var (
		result any
		err    error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				e.opts.Logger.Error("tool.call.panic", "tool", fc.Name, "recover", fmt.Sprint(r), "stack", string(debug.Stack()))
				err = NewToolError(fc.Name, fmt.Sprintf("panic: %v", r), CodePanic)
			}
		}()
		result, err = e.call(WithCallID(ctx, fc.ID), fc)
	}()

	if tl, ok := e.opts.Logger.(toolCallLogger); ok {
		tl.LogToolCall(fc.Name, time.Since(start), err)
	} else {
		e.opts.Logger.Info("tool.call.executed", "tool", fc.Name, "fc_id", fc.ID, "duration_ms", time.Since(start).Milliseconds(), "error", err != nil)
	}

	if err != nil {
		resp.Error = err.Error()
		return resp
	}
	resp.Response = result
	return resp
}

func (e *Executor) call(ctx context.Context, fc core.FunctionCall) (any, error) {
	impl, ok := e.tools[fc.Name]
	if !ok {
		return nil, NewToolError(fc.Name, "tool not found", CodeNotFound)
	}

	args := map[string]any{}
	if fc.Arguments != "" {
		if err := json.Unmarshal([]byte(fc.Arguments), &args); err != nil {
			return nil, &ToolError{Tool: fc.Name, Message: fmt.Sprintf("invalid arguments: %v", err), Code: CodeValidation}
		}
	}
	return impl.Call(ctx, args)
}
