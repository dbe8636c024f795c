package core

import (
	"errors"
	"time"
)

// ErrThreadNotFound is returned by ThreadStore lookups of unknown ids.
var ErrThreadNotFound = errors.New("thread not found")

// Thread is the persisted message history of one single-participant
// conversation. Values returned by a ThreadStore are copies; mutate the store,
// not the value.
type Thread struct {
	ID          string            `json:"id"`
	Participant string            `json:"participant"`
	Messages    []Message         `json:"messages"`
	Created     time.Time         `json:"created"`
	Updated     time.Time         `json:"updated"`
	Metadata    map[string]string `json:"metadata"`
}

// NewThread creates an empty thread bound to a participant name.
func NewThread(id, participant string) *Thread {
	now := time.Now().UTC()
	return &Thread{
		ID:          id,
		Participant: participant,
		Messages:    []Message{},
		Created:     now,
		Updated:     now,
		Metadata:    map[string]string{},
	}
}

// Clone returns a deep copy safe for independent mutation.
func (t *Thread) Clone() *Thread {
	c := &Thread{
		ID:          t.ID,
		Participant: t.Participant,
		Messages:    make([]Message, len(t.Messages)),
		Created:     t.Created,
		Updated:     t.Updated,
		Metadata:    make(map[string]string, len(t.Metadata)),
	}
	copy(c.Messages, t.Messages)
	for k, v := range t.Metadata {
		c.Metadata[k] = v
	}
	return c
}

// ThreadStore persists threads and their append-only history.
type ThreadStore interface {
	Create(participant string) (*Thread, error)
	Get(id string) (*Thread, error)
	Append(id string, msgs ...Message) error
	Delete(id string) error
}
