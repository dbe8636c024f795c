package turn

import (
	"context"

	"github.com/hupe1980/roundtable/core"
)

// State is the selector state threaded through a run.
type State struct {
	// LastIndex is the position of the participant selected last, or -1
	// before the first turn.
	LastIndex int `json:"last_index"`
}

// InitialState returns the state of a run before its first turn.
func InitialState() State { return State{LastIndex: -1} }

// Selector chooses the next speaker.
//
// Implementations must return core.ErrNoParticipants for an empty participant
// list and must not mutate participants or history.
type Selector interface {
	Next(ctx context.Context, participants []core.Participant, history []core.Message, state State) (core.Participant, State, error)
}

// Func adapts a function to the Selector interface.
type Func func(ctx context.Context, participants []core.Participant, history []core.Message, state State) (core.Participant, State, error)

// Next implements Selector.
func (f Func) Next(ctx context.Context, participants []core.Participant, history []core.Message, state State) (core.Participant, State, error) {
	return f(ctx, participants, history, state)
}

// RoundRobin cycles through participants in configuration order.
type RoundRobin struct{}

// NewRoundRobin creates a round-robin selector.
func NewRoundRobin() *RoundRobin { return &RoundRobin{} }

// Next implements Selector. The history is never inspected.
func (RoundRobin) Next(_ context.Context, participants []core.Participant, _ []core.Message, state State) (core.Participant, State, error) {
	n := len(participants)
	if n == 0 {
		return nil, state, core.ErrNoParticipants
	}
	idx := (state.LastIndex + 1) % n
	if idx < 0 {
		idx += n
	}
	return participants[idx], State{LastIndex: idx}, nil
}
