package core

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfiguration is returned when a run cannot start because of a
	// bad configuration (no participants, non-positive round cap, duplicate
	// participant names, unknown approver). It is never retried.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrParticipantUnavailable marks failures of a participant's underlying
	// conversational capability (network, auth, quota, malformed response).
	ErrParticipantUnavailable = errors.New("participant unavailable")

	// ErrNoParticipants is returned by selectors invoked with zero participants.
	ErrNoParticipants = errors.New("no participants")

	// ErrEngineUsed is returned when Invoke is called on an engine that has
	// already left the Idle state.
	ErrEngineUsed = errors.New("engine already invoked")
)

// ParticipantError records which participant failed and why. It matches both
// ErrParticipantUnavailable and the underlying cause via errors.Is.
type ParticipantError struct {
	Participant string
	Err         error
}

// NewParticipantError wraps err as a ParticipantError for the named participant.
// An error that already is a ParticipantError is returned unchanged.
func NewParticipantError(participant string, err error) error {
	var pe *ParticipantError
	if errors.As(err, &pe) {
		return err
	}
	return &ParticipantError{Participant: participant, Err: err}
}

func (e *ParticipantError) Error() string {
	return fmt.Sprintf("participant %q unavailable: %v", e.Participant, e.Err)
}

// Unwrap exposes both the sentinel and the cause.
func (e *ParticipantError) Unwrap() []error {
	return []error{ErrParticipantUnavailable, e.Err}
}

// InvalidConfigurationf formats a configuration error wrapping ErrInvalidConfiguration.
func InvalidConfigurationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfiguration, fmt.Sprintf(format, args...))
}
