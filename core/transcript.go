package core

import "sync"

// Transcript is the ordered, append-only message history of one run. It is
// safe for concurrent access: Append is atomic with respect to readers and
// Snapshot returns a defensive copy.
//
// Contract:
//   - Append assigns strictly increasing sequence indices starting at 0
//   - There is no delete or update operation
//   - Snapshot never aliases internal storage
type Transcript struct {
	mu       sync.RWMutex
	messages []Message
}

// NewTranscript creates an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{messages: []Message{}}
}

// Append stores a copy of m, assigns its sequence index and returns it.
func (t *Transcript) Append(m Message) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	m.Index = len(t.messages)
	t.messages = append(t.messages, m)
	return m.Index
}

// Snapshot returns a copy of all messages in insertion order.
func (t *Transcript) Snapshot() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Len returns the number of appended messages.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// Last returns the most recently appended message.
func (t *Transcript) Last() (Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return LastMessage(t.messages)
}
