package testutil

import (
	"github.com/hupe1980/roundtable/core"
)

// MessageBuilder provides a fluent helper for constructing messages in tests.
// Example:
//
//	msg := NewMessageBuilder().Author("Teacher").Content("Approved.").Build()
//
// Chain only the parts you need; sensible defaults are applied.
type MessageBuilder struct {
	id      string
	author  string
	role    core.Role
	content string
	index   int
}

// NewMessageBuilder creates a builder with default author "agent" and role assistant.
func NewMessageBuilder() *MessageBuilder {
	return &MessageBuilder{author: "agent", role: core.RoleAssistant, index: -1}
}

// Author sets the author name (chainable).
func (b *MessageBuilder) Author(a string) *MessageBuilder { b.author = a; return b }

// Role overrides the role (chainable).
func (b *MessageBuilder) Role(r core.Role) *MessageBuilder { b.role = r; return b }

// Content sets the message text (chainable).
func (b *MessageBuilder) Content(c string) *MessageBuilder { b.content = c; return b }

// ID overrides the generated id (chainable).
func (b *MessageBuilder) ID(id string) *MessageBuilder { b.id = id; return b }

// Index sets the sequence index (chainable).
func (b *MessageBuilder) Index(i int) *MessageBuilder { b.index = i; return b }

// Build constructs the core.Message value.
func (b *MessageBuilder) Build() core.Message {
	m := core.NewMessage(b.author, b.role, b.content)
	if b.id != "" {
		m.ID = b.id
	}
	m.Index = b.index
	return m
}

// History builds an indexed message slice from alternating author/content
// pairs. The author "user" produces user role messages.
//
//	h := History("user", "task", "Teacher", "approved")
func History(pairs ...string) []core.Message {
	out := make([]core.Message, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		role := core.RoleAssistant
		if pairs[i] == core.UserAuthor {
			role = core.RoleUser
		}
		out = append(out, NewMessageBuilder().Author(pairs[i]).Role(role).Content(pairs[i+1]).Index(len(out)).Build())
	}
	return out
}

// FunctionCallContent builds assistant content holding a single function call.
func FunctionCallContent(id, name, args string) core.Content {
	return core.Content{Role: "assistant", Parts: []core.Part{
		core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: id, Name: name, Arguments: args}},
	}}
}
