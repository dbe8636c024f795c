package core

// RunState is the state of a single orchestration run.
//
//	Idle -> Running -> {Completed, Terminated, Failed}
//
// There is no transition out of a terminal state.
type RunState int

const (
	// StateIdle is a configured run that has not been invoked yet.
	StateIdle RunState = iota
	// StateRunning is a run executing turns.
	StateRunning
	// StateCompleted is a run that reached its round cap without termination.
	StateCompleted
	// StateTerminated is a run stopped by its termination policy.
	StateTerminated
	// StateFailed is a run aborted by a participant, selector or cancellation error.
	StateFailed
)

// String returns the lower-case name of the state.
func (s RunState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateTerminated:
		return "terminated"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether s is Completed, Terminated or Failed.
func (s RunState) IsTerminal() bool {
	return s == StateCompleted || s == StateTerminated || s == StateFailed
}

// RunResult is the outcome of one orchestration invocation. The orchestrator
// hands it to the caller and keeps no reference to it.
type RunResult struct {
	RunID string   `json:"run_id"`
	State RunState `json:"state"`
	// Content is the last message's content for Terminated and Completed runs.
	Content string `json:"content,omitempty"`
	// Reason explains the outcome: the terminating decision's reason, the
	// round cap for Completed runs, or the failure message.
	Reason string `json:"reason,omitempty"`
	// Rounds is the number of turns that produced a message.
	Rounds     int       `json:"rounds"`
	Transcript []Message `json:"transcript"`
	// Err is the originating error of a Failed run.
	Err error `json:"-"`
}

// LastMessage returns the final transcript message.
func (r *RunResult) LastMessage() (Message, bool) {
	return LastMessage(r.Transcript)
}
