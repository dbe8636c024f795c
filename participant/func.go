package participant

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/roundtable/core"
)

// ReplyFunc produces the content of a reply from the transcript.
type ReplyFunc func(ctx context.Context, history []core.Message) (string, error)

// Func adapts a ReplyFunc to core.Participant.
type Func struct {
	name        string
	description string
	fn          ReplyFunc
}

// NewFunc creates a participant answering through fn.
func NewFunc(name, description string, fn ReplyFunc) *Func {
	return &Func{name: name, description: description, fn: fn}
}

// Name implements core.Participant.
func (f *Func) Name() string { return f.name }

// Description implements core.Participant.
func (f *Func) Description() string { return f.description }

// Respond implements core.Participant.
func (f *Func) Respond(ctx context.Context, history []core.Message) (core.Message, error) {
	if err := ctx.Err(); err != nil {
		return core.Message{}, err
	}
	content, err := f.fn(ctx, history)
	if err != nil {
		return core.Message{}, err
	}
	return core.NewAssistantMessage(f.name, content), nil
}

// ErrScriptExhausted is returned by a Scripted participant without Cycle once
// every reply has been used.
var ErrScriptExhausted = errors.New("script exhausted")

// ScriptedOptions configures a Scripted participant.
type ScriptedOptions struct {
	Description string
	// Cycle restarts the script from the first reply once exhausted.
	Cycle bool
}

// Scripted replies with a fixed sequence of messages, one per turn. The
// position in the script is derived from the number of earlier messages the
// participant authored in the history, so a Scripted value holds no run state.
type Scripted struct {
	name    string
	replies []string
	opts    ScriptedOptions
}

// NewScripted creates a participant that replays replies in order.
func NewScripted(name string, replies []string, optFns ...func(o *ScriptedOptions)) *Scripted {
	opts := ScriptedOptions{Description: fmt.Sprintf("%s (scripted)", name)}
	for _, fn := range optFns {
		fn(&opts)
	}
	r := make([]string, len(replies))
	copy(r, replies)
	return &Scripted{name: name, replies: r, opts: opts}
}

// Name implements core.Participant.
func (s *Scripted) Name() string { return s.name }

// Description implements core.Participant.
func (s *Scripted) Description() string { return s.opts.Description }

// Respond implements core.Participant.
func (s *Scripted) Respond(ctx context.Context, history []core.Message) (core.Message, error) {
	if err := ctx.Err(); err != nil {
		return core.Message{}, err
	}

	n := s.spoken(history)
	if len(s.replies) == 0 || (n >= len(s.replies) && !s.opts.Cycle) {
		return core.Message{}, fmt.Errorf("%s: %w after %d replies", s.name, ErrScriptExhausted, len(s.replies))
	}
	return core.NewAssistantMessage(s.name, s.replies[n%len(s.replies)]), nil
}

// Remaining reports how many replies are left for the given history. It is
// always len(replies) for a cycling script.
func (s *Scripted) Remaining(history []core.Message) int {
	if s.opts.Cycle {
		return len(s.replies)
	}
	return max(len(s.replies)-s.spoken(history), 0)
}

func (s *Scripted) spoken(history []core.Message) int {
	n := 0
	for _, m := range history {
		if m.Author == s.name {
			n++
		}
	}
	return n
}
