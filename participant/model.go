package participant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/roundtable/core"
	"github.com/hupe1980/roundtable/internal/util"
	"github.com/hupe1980/roundtable/logging"
	"github.com/hupe1980/roundtable/model"
	"github.com/hupe1980/roundtable/tool"
)

const (
	// DefaultMaxModelCalls bounds the model calls of one turn, tool rounds included.
	DefaultMaxModelCalls = 10
	// DefaultMaxHistoryMessages bounds the transcript suffix sent to the model.
	DefaultMaxHistoryMessages = 20
)

// ErrEmptyReply is returned when the model finishes a turn without any text.
var ErrEmptyReply = errors.New("model returned an empty reply")

// modelCallLogger is implemented by loggers that record model call outcomes
// (logging.ChatLogger).
type modelCallLogger interface {
	LogModelCall(model string, tokens int, dur time.Duration, err error)
}

// ModelOptions configures a Model participant.
type ModelOptions struct {
	Description string

	// Instruction is the system prompt. Defaults to a short persona line.
	Instruction Instruction

	// Tools the model may call while composing its reply.
	Tools []tool.Tool

	// ToolParallelism bounds concurrent tool calls of one model response.
	// Zero runs all calls of a response concurrently.
	ToolParallelism int

	// MaxModelCalls bounds model calls per turn (0 = unlimited).
	MaxModelCalls int

	// MaxHistoryMessages keeps only the most recent messages (0 = all).
	MaxHistoryMessages int

	// MaxHistoryTokens additionally drops the oldest messages until the
	// remaining history fits the token budget (0 = no budget).
	MaxHistoryTokens int

	// Stream requests incremental output; partial chunks go to OnPartial.
	Stream    bool
	OnPartial func(participant string, chunk string)

	Logger logging.Logger
}

// Model is a participant backed by a language model.
//
// Each Respond call maps the transcript to model contents (its own messages as
// assistant turns, everyone else's as attributed user turns), then runs a
// bounded tool-calling loop until the model produces a text reply.
type Model struct {
	name     string
	llm      model.Model
	opts     ModelOptions
	executor *tool.Executor
	tokens   *util.TokenCounter
	logger   logging.Logger
}

// NewModel creates a model-backed participant. It fails when two tools share a name.
func NewModel(name string, llm model.Model, optFns ...func(o *ModelOptions)) (*Model, error) {
	opts := ModelOptions{
		Description:        fmt.Sprintf("%s, an AI assistant", name),
		Instruction:        NewInstructionFromText(fmt.Sprintf("You are %s, a helpful AI assistant.", name)),
		MaxModelCalls:      DefaultMaxModelCalls,
		MaxHistoryMessages: DefaultMaxHistoryMessages,
		Logger:             logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	executor, err := tool.NewExecutor(opts.Tools, func(o *tool.ExecutorOptions) {
		o.MaxParallel = opts.ToolParallelism
		o.Logger = opts.Logger
	})
	if err != nil {
		return nil, fmt.Errorf("participant %q: %w", name, err)
	}

	p := &Model{
		name:     name,
		llm:      llm,
		opts:     opts,
		executor: executor,
		logger:   logging.ForComponent(opts.Logger, "participant"),
	}
	if opts.MaxHistoryTokens > 0 {
		p.tokens = util.DefaultTokenCounter()
	}
	return p, nil
}

// Name implements core.Participant.
func (p *Model) Name() string { return p.name }

// Description implements core.Participant.
func (p *Model) Description() string { return p.opts.Description }

// Respond implements core.Participant.
func (p *Model) Respond(ctx context.Context, history []core.Message) (core.Message, error) {
	instructions, err := p.opts.Instruction.Resolve(ctx, InstructionContext{
		Name:        p.name,
		Description: p.opts.Description,
		History:     history,
	})
	if err != nil {
		return core.Message{}, fmt.Errorf("resolve instruction: %w", err)
	}

	contents := p.buildContents(history)
	limiter := core.NewCallLimiter(p.opts.MaxModelCalls)

	for {
		if err := limiter.Increment(); err != nil {
			return core.Message{}, err
		}

		req := model.Request{
			Instructions: instructions,
			Contents:     contents,
			Tools:        p.executor.Definitions(),
			Stream:       p.opts.Stream,
		}

		resp, err := p.generate(ctx, req)
		if err != nil {
			return core.Message{}, err
		}

		calls := resp.Content.FunctionCalls()
		if len(calls) == 0 {
			text := strings.TrimSpace(resp.Content.Text())
			if text == "" {
				return core.Message{}, ErrEmptyReply
			}
			return core.NewAssistantMessage(p.name, text), nil
		}

		p.logger.Debug("Executing tool calls", "participant", p.name, "count", len(calls), "model_calls", limiter.Count())

		results := p.executor.Execute(ctx, calls)
		if err := ctx.Err(); err != nil {
			return core.Message{}, err
		}

		resp.Content.Role = "assistant"
		contents = append(contents, resp.Content)
		parts := make([]core.Part, len(results))
		for i, r := range results {
			parts[i] = core.FunctionResponsePart{FunctionResponse: r}
		}
		contents = append(contents, core.Content{Role: "tool", Parts: parts})
	}
}

func (p *Model) generate(ctx context.Context, req model.Request) (model.Response, error) {
	var onPartial func(model.Response)
	if p.opts.Stream && p.opts.OnPartial != nil {
		onPartial = func(r model.Response) {
			if chunk := r.Content.Text(); chunk != "" {
				p.opts.OnPartial(p.name, chunk)
			}
		}
	}

	start := time.Now()
	resp, err := model.Collect(ctx, p.llm, req, onPartial)

	tokens := 0
	if resp.Usage != nil {
		tokens = resp.Usage.TotalTokens
	}
	if l, ok := p.logger.(modelCallLogger); ok {
		l.LogModelCall(p.llm.Info().Name, tokens, time.Since(start), err)
	} else if err != nil {
		p.logger.Error("Model call failed", "participant", p.name, "model", p.llm.Info().Name, "error", err)
	}

	return resp, err
}

// buildContents maps the transcript to model contents.
func (p *Model) buildContents(history []core.Message) []core.Content {
	msgs := history
	if n := p.opts.MaxHistoryMessages; n > 0 && len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	if p.tokens != nil {
		msgs = p.fitTokenBudget(msgs)
	}

	contents := make([]core.Content, 0, len(msgs))
	for _, m := range msgs {
		if m.Author == p.name {
			contents = append(contents, core.NewTextContent("assistant", m.Content))
			continue
		}
		if m.Role == core.RoleSystem {
			contents = append(contents, core.NewTextContent("system", m.Content))
			continue
		}
		contents = append(contents, core.NewTextContent("user", fmt.Sprintf("[%s]: %s", m.Author, m.Content)))
	}

	if len(contents) == 0 {
		contents = append(contents, core.NewTextContent("user", "The conversation has not started yet. Please open it."))
	}
	return contents
}

// fitTokenBudget drops the oldest messages until the rest fits
// MaxHistoryTokens. The newest message is always kept.
func (p *Model) fitTokenBudget(msgs []core.Message) []core.Message {
	total := 0
	for i := len(msgs) - 1; i >= 0; i-- {
		total += p.tokens.Count(msgs[i].Content)
		if total > p.opts.MaxHistoryTokens && i < len(msgs)-1 {
			return msgs[i+1:]
		}
	}
	return msgs
}
