// Package engine runs turn-based conversations between participants.
//
// The Engine owns the shared transcript of one run and composes three
// independent strategies:
//
//   - a turn.Selector choosing who speaks next
//   - a termination.Policy deciding when the conversation is done
//   - Observers notified about every appended message
//
// A run ends Terminated when the policy says so, Completed when the round cap
// is reached, or Failed when a participant, the selector or the context fails.
// Observer failures never change the outcome.
//
// Usage:
//
//	eng := engine.New([]core.Participant{student, teacher},
//	    engine.WithPolicy(termination.NewApproval("Teacher")),
//	    engine.WithObserver(engine.NewPrinterObserver(os.Stdout)),
//	)
//	res, err := eng.Invoke(ctx, "Ask for a problem")
package engine
