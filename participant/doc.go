// Package participant provides core.Participant implementations.
//
// Implementations:
//   - Model: a language model backed participant with optional tool calling
//   - Func: adapts a plain function (handy for deterministic bots and tests)
//   - Scripted: replays a fixed list of replies
//
// Wrappers:
//   - WithRetry retries transient failures with exponential backoff
//   - WithTimeout bounds every Respond call with a deadline
//
// Participants never keep conversation state between turns; everything needed
// to reply is rebuilt from the transcript passed to Respond.
//
// Example:
//
//	teacher, err := participant.NewModel("Teacher", llm, func(o *participant.ModelOptions) {
//	    o.Instruction = participant.NewInstructionFromText("You are a patient physics teacher.")
//	})
//	if err != nil {
//	    return err
//	}
//	resilient := participant.WithRetry(participant.WithTimeout(teacher, 30*time.Second))
package participant
