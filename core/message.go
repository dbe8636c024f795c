package core

import (
	"time"

	"github.com/google/uuid"
)

// Role classifies the origin of a message within a conversation.
type Role string

const (
	// RoleUser marks messages supplied by the caller (e.g. the seed task).
	RoleUser Role = "user"
	// RoleAssistant marks messages produced by a participant.
	RoleAssistant Role = "assistant"
	// RoleSystem marks orchestrator or instruction messages.
	RoleSystem Role = "system"
)

// UserAuthor is the synthetic author name of caller supplied messages.
const UserAuthor = "user"

// Message is one utterance in a conversation. After it has been appended to a
// Transcript it should be treated as immutable; the transcript only ever hands
// out copies.
//
// Index is assigned by Transcript.Append and is meaningless before that.
type Message struct {
	ID        string    `json:"id"`
	Index     int       `json:"index"`
	Author    string    `json:"author"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage creates a message authored by author with the given role.
func NewMessage(author string, role Role, content string) Message {
	return Message{
		ID:        NewID(),
		Index:     -1,
		Author:    author,
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}

// NewUserMessage creates a caller authored message (author "user").
func NewUserMessage(content string) Message {
	return NewMessage(UserAuthor, RoleUser, content)
}

// NewAssistantMessage creates a participant authored message.
func NewAssistantMessage(author, content string) Message {
	return NewMessage(author, RoleAssistant, content)
}

// NewID generates a new unique identifier for messages, runs and threads.
func NewID() string { return uuid.NewString() }

// LastMessage returns the final message of history, if any.
func LastMessage(history []Message) (Message, bool) {
	if len(history) == 0 {
		return Message{}, false
	}
	return history[len(history)-1], true
}
