package participant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/roundtable/core"
)

// ErrTimeout is returned when a wrapped participant misses its deadline while
// the caller's context is still live.
var ErrTimeout = errors.New("respond timed out")

// Timed bounds every Respond call of the wrapped participant.
type Timed struct {
	core.Participant
	timeout time.Duration
}

// WithTimeout returns p with a per-turn deadline. A non-positive d disables it.
func WithTimeout(p core.Participant, d time.Duration) *Timed {
	return &Timed{Participant: p, timeout: d}
}

// Respond implements core.Participant.
func (t *Timed) Respond(ctx context.Context, history []core.Message) (core.Message, error) {
	if t.timeout <= 0 {
		return t.Participant.Respond(ctx, history)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	msg, err := t.Participant.Respond(timeoutCtx, history)
	if err != nil && ctx.Err() == nil && errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
		return core.Message{}, fmt.Errorf("%w after %s: %w", ErrTimeout, t.timeout, err)
	}
	return msg, err
}
