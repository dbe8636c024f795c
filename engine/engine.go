package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/roundtable/core"
	"github.com/hupe1980/roundtable/logging"
	"github.com/hupe1980/roundtable/termination"
	"github.com/hupe1980/roundtable/turn"
)

// DefaultMaxRounds bounds a run when no round cap is configured.
const DefaultMaxRounds = 10

// ErrInvalidSpeaker is returned when a selector picks nil or a participant the
// engine does not know.
var ErrInvalidSpeaker = errors.New("invalid speaker")

// Options configures an Engine.
//
// Example:
//
//	eng := engine.New(participants,
//	    engine.WithPolicy(termination.NewApproval("Teacher")),
//	    engine.WithMaxRounds(6),
//	    engine.WithObserver(engine.NewPrinterObserver(os.Stdout)),
//	)
type Options struct {
	// Selector picks the next speaker. Defaults to round-robin.
	Selector turn.Selector

	// Policy decides when the conversation is finished. Defaults to
	// termination.Never, which leaves the round cap as the only bound.
	Policy termination.Policy

	// Observers are notified synchronously, in transcript order, about every
	// appended message. Their errors and panics are logged and absorbed.
	Observers []Observer

	// MaxRounds is the maximum number of participant turns. Must be > 0.
	MaxRounds int

	// TurnDelay pauses between two turns. Zero disables the pause.
	TurnDelay time.Duration

	// Logger receives structured engine diagnostics.
	Logger logging.Logger
}

// WithSelector sets the turn selector.
func WithSelector(s turn.Selector) func(o *Options) {
	return func(o *Options) { o.Selector = s }
}

// WithPolicy sets the termination policy.
func WithPolicy(p termination.Policy) func(o *Options) {
	return func(o *Options) { o.Policy = p }
}

// WithObserver appends observers.
func WithObserver(obs ...Observer) func(o *Options) {
	return func(o *Options) { o.Observers = append(o.Observers, obs...) }
}

// WithMaxRounds sets the round cap.
func WithMaxRounds(n int) func(o *Options) {
	return func(o *Options) { o.MaxRounds = n }
}

// WithTurnDelay sets the pause between turns.
func WithTurnDelay(d time.Duration) func(o *Options) {
	return func(o *Options) { o.TurnDelay = d }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// Engine orchestrates one turn-based conversation between a fixed, ordered set
// of participants over a shared transcript.
//
// Lifecycle:
//
//	Idle -> Running -> {Completed, Terminated, Failed}
//
// An Engine is one-shot: Invoke runs a single conversation and a second call
// returns core.ErrEngineUsed until Reset is called. Independent Engines share
// no mutable state and may run concurrently.
//
// Each round performs, strictly in order:
//  1. a cancellation check on the caller's context
//  2. Selector.Next over a transcript snapshot
//  3. Participant.Respond with the same snapshot
//  4. Transcript.Append of the reply
//  5. observer notification
//  6. Policy.ShouldTerminate over a fresh snapshot
type Engine struct {
	participants []core.Participant
	opts         Options
	observers    observerSet
	logger       logging.Logger

	runMu sync.Mutex // serializes Invoke and Reset

	mu         sync.RWMutex
	state      core.RunState
	transcript *core.Transcript
	runID      string
}

// New creates an Engine in the Idle state. The participant slice is copied;
// its order is the round-robin order. Configuration is validated when Invoke
// starts so that the task is always recorded.
func New(participants []core.Participant, optFns ...func(o *Options)) *Engine {
	opts := Options{
		Selector:  turn.NewRoundRobin(),
		Policy:    termination.Never(),
		MaxRounds: DefaultMaxRounds,
		Logger:    logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	ps := make([]core.Participant, len(participants))
	copy(ps, participants)

	return &Engine{
		participants: ps,
		opts:         opts,
		observers:    newObserverSet(opts.Observers, opts.Logger),
		logger:       logging.ForComponent(opts.Logger, "engine"),
		state:        core.StateIdle,
		transcript:   core.NewTranscript(),
	}
}

// Participants returns the configured participants in order.
func (e *Engine) Participants() []core.Participant {
	out := make([]core.Participant, len(e.participants))
	copy(out, e.participants)
	return out
}

// State returns the current lifecycle state.
func (e *Engine) State() core.RunState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Transcript returns a snapshot of the current transcript. It is safe to call
// while a run is in progress.
func (e *Engine) Transcript() []core.Message {
	e.mu.RLock()
	tr := e.transcript
	e.mu.RUnlock()
	return tr.Snapshot()
}

// RunID returns the identifier of the current (or last) run.
func (e *Engine) RunID() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.runID
}

// Reset returns a finished engine to Idle with an empty transcript. It fails
// while a run is in progress.
func (e *Engine) Reset() error {
	if !e.runMu.TryLock() {
		return fmt.Errorf("engine: cannot reset while running")
	}
	defer e.runMu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = core.StateIdle
	e.transcript = core.NewTranscript()
	e.runID = ""
	return nil
}

func (e *Engine) setState(s core.RunState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = s
}

// validate checks the configuration against the participant list.
func (e *Engine) validate() error {
	if len(e.participants) == 0 {
		return core.InvalidConfigurationf("no participants configured")
	}
	if e.opts.MaxRounds <= 0 {
		return core.InvalidConfigurationf("max rounds must be positive, got %d", e.opts.MaxRounds)
	}
	if e.opts.Selector == nil {
		return core.InvalidConfigurationf("no turn selector configured")
	}
	if e.opts.Policy == nil {
		return core.InvalidConfigurationf("no termination policy configured")
	}

	seen := make(map[string]struct{}, len(e.participants))
	for i, p := range e.participants {
		if p == nil {
			return core.InvalidConfigurationf("participant %d is nil", i)
		}
		name := p.Name()
		if name == "" {
			return core.InvalidConfigurationf("participant %d has an empty name", i)
		}
		if name == core.UserAuthor {
			return core.InvalidConfigurationf("participant name %q is reserved", name)
		}
		if _, dup := seen[name]; dup {
			return core.InvalidConfigurationf("duplicate participant name %q", name)
		}
		seen[name] = struct{}{}
	}

	if ap, ok := e.opts.Policy.(termination.ApproverPolicy); ok {
		if approver := ap.ApproverName(); approver != "" {
			if _, known := seen[approver]; !known {
				return core.InvalidConfigurationf("approver %q is not a participant", approver)
			}
		}
	}
	return nil
}

// Invoke runs the conversation seeded with task and blocks until it reaches a
// terminal state.
//
// Results:
//   - Terminated: the policy stopped the run; error is nil
//   - Completed: MaxRounds turns ran without termination; error is nil
//   - Failed: a participant, the selector or the context failed; the result
//     carries the transcript so far and the same error is returned
//
// A configuration problem returns a nil result and an error wrapping
// core.ErrInvalidConfiguration; the transcript then holds only the task.
func (e *Engine) Invoke(ctx context.Context, task string) (*core.RunResult, error) {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	e.mu.Lock()
	if e.state != core.StateIdle {
		e.mu.Unlock()
		return nil, core.ErrEngineUsed
	}
	e.runID = core.NewID()
	runID := e.runID
	tr := e.transcript
	e.mu.Unlock()

	tr.Append(core.NewUserMessage(task))
	log := logging.ForRun(e.logger, runID)

	if err := e.validate(); err != nil {
		e.setState(core.StateFailed)
		log.Error("Invalid engine configuration", "run_id", runID, "error", err)
		return nil, err
	}

	e.setState(core.StateRunning)
	log.Info("Run started", "run_id", runID, "participants", core.ParticipantNames(e.participants), "max_rounds", e.opts.MaxRounds)

	start := time.Now()
	res, err := e.run(ctx, log, runID, tr)
	e.setState(res.State)

	if rl, ok := log.(runOutcomeLogger); ok {
		rl.LogRun(res.State.String(), res.Rounds, time.Since(start), err)
	} else {
		log.Info("Run finished", "run_id", runID, "state", res.State.String(), "rounds", res.Rounds, "reason", res.Reason, "duration", time.Since(start))
	}
	e.observers.runComplete(ctx, res)
	return res, err
}

func (e *Engine) run(ctx context.Context, log logging.Logger, runID string, tr *core.Transcript) (*core.RunResult, error) {
	var (
		state    = turn.InitialState()
		rounds   int
		decision termination.Decision
	)

	for rounds < e.opts.MaxRounds {
		if err := ctx.Err(); err != nil {
			return e.failed(log, runID, tr, rounds, err), err
		}

		if rounds > 0 && e.opts.TurnDelay > 0 {
			select {
			case <-ctx.Done():
				return e.failed(log, runID, tr, rounds, ctx.Err()), ctx.Err()
			case <-time.After(e.opts.TurnDelay):
			}
		}

		history := tr.Snapshot()
		speaker, next, err := e.opts.Selector.Next(ctx, e.participants, history, state)
		if err != nil {
			err = fmt.Errorf("select speaker: %w", err)
			return e.failed(log, runID, tr, rounds, err), err
		}
		if speaker, err = e.member(speaker); err != nil {
			err = fmt.Errorf("select speaker: %w", err)
			return e.failed(log, runID, tr, rounds, err), err
		}
		state = next

		turnStart := time.Now()
		msg, err := speaker.Respond(ctx, history)
		ev := TurnEvent{RunID: runID, Round: rounds + 1, Participant: speaker.Name(), Duration: time.Since(turnStart), Err: err}
		if err != nil {
			// A participant interrupted by cancellation reports the context error.
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				ev.Err = ctxErr
			} else {
				ev.Err = core.NewParticipantError(speaker.Name(), err)
			}
			logTurn(log, ev)
			e.observers.turn(ctx, ev)
			return e.failed(log, runID, tr, rounds, ev.Err), ev.Err
		}

		msg.Author = speaker.Name()
		msg.Role = core.RoleAssistant
		if msg.ID == "" {
			msg.ID = core.NewID()
		}
		if msg.Timestamp.IsZero() {
			msg.Timestamp = time.Now().UTC()
		}
		msg.Index = tr.Append(msg)
		rounds++

		logTurn(log, ev)
		e.observers.turn(ctx, ev)
		e.observers.message(ctx, msg)

		decision = e.opts.Policy.ShouldTerminate(tr.Snapshot())
		log.Debug("Termination evaluated", "run_id", runID, "round", rounds, "participant", speaker.Name(), "terminate", decision.Terminate, "reason", decision.Reason)
		if decision.Terminate {
			return e.finished(runID, tr, rounds, core.StateTerminated, decision.Reason), nil
		}
	}

	return e.finished(runID, tr, rounds, core.StateCompleted, fmt.Sprintf("reached max rounds (%d)", e.opts.MaxRounds)), nil
}

// member resolves a selected speaker to the engine's own participant with the
// same name. A nil speaker or a stranger is an ErrInvalidSpeaker.
func (e *Engine) member(speaker core.Participant) (core.Participant, error) {
	if speaker == nil {
		return nil, fmt.Errorf("%w: no participant selected", ErrInvalidSpeaker)
	}
	name := speaker.Name()
	for _, p := range e.participants {
		if p.Name() == name {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %q is not a participant", ErrInvalidSpeaker, name)
}

// Optional logging.ChatLogger capabilities.
type (
	turnLogger interface {
		LogTurn(participant string, round int, dur time.Duration, err error)
	}
	runOutcomeLogger interface {
		LogRun(state string, rounds int, dur time.Duration, err error)
	}
)

func logTurn(log logging.Logger, ev TurnEvent) {
	if tl, ok := log.(turnLogger); ok {
		tl.LogTurn(ev.Participant, ev.Round, ev.Duration, ev.Err)
	}
}

func (e *Engine) finished(runID string, tr *core.Transcript, rounds int, state core.RunState, reason string) *core.RunResult {
	res := &core.RunResult{
		RunID:      runID,
		State:      state,
		Reason:     reason,
		Rounds:     rounds,
		Transcript: tr.Snapshot(),
	}
	if last, ok := res.LastMessage(); ok {
		res.Content = last.Content
	}
	return res
}

func (e *Engine) failed(log logging.Logger, runID string, tr *core.Transcript, rounds int, err error) *core.RunResult {
	log.Error("Run failed", "run_id", runID, "round", rounds+1, "error", err)
	return &core.RunResult{
		RunID:      runID,
		State:      core.StateFailed,
		Reason:     err.Error(),
		Rounds:     rounds,
		Transcript: tr.Snapshot(),
		Err:        err,
	}
}
