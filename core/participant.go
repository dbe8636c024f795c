package core

import "context"

// Participant is a named conversational entity capable of producing one reply
// given the conversation history.
//
// Participants are stateless from the orchestrator's point of view: everything
// needed to respond must be reconstructed from the transcript passed in.
//
// Implementations must:
//   - Treat the transcript as a read-only snapshot (never mutate it)
//   - Return exactly one new Message authored by Name()
//   - Report backend failures as errors; callers wrap them in ParticipantError
//   - Respect context cancellation for in-flight remote calls
type Participant interface {
	// Name is the unique identifier of the participant within a run.
	Name() string

	// Description documents the participant's purpose. It may be used by
	// selection policies but is never enforced.
	Description() string

	// Respond produces the participant's next message.
	Respond(ctx context.Context, transcript []Message) (Message, error)
}

// ParticipantNames returns the names of ps preserving order.
func ParticipantNames(ps []Participant) []string {
	names := make([]string, len(ps))
	for i, p := range ps {
		names[i] = p.Name()
	}
	return names
}
