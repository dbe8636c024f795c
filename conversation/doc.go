// Package conversation keeps a threaded, persistent dialogue between a user
// and a single participant.
//
// Each Send rebuilds the participant's view from the stored thread, so the
// participant itself stays stateless:
//
//	store := session.NewInMemoryStore()
//	conv, _ := conversation.New(assistant, store)
//	defer conv.Delete()
//
//	conv.Send(ctx, "Hi, my name is Ada.")
//	reply, _ := conv.Send(ctx, "What is my name?")
package conversation
