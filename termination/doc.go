// Package termination decides when a conversation is finished.
//
// A Policy inspects the transcript after every appended message and returns a
// Decision. Policies are pure: the same history always yields the same
// decision and the history is never modified.
package termination
