package conversation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/roundtable/core"
	"github.com/hupe1980/roundtable/logging"
)

// Options configures a Conversation.
type Options struct {
	Logger logging.Logger
}

// Conversation binds a participant to one thread of a core.ThreadStore.
type Conversation struct {
	participant core.Participant
	store       core.ThreadStore
	threadID    string
	logger      logging.Logger

	mu sync.Mutex // serializes Send
}

// New opens a fresh thread for p in store.
func New(p core.Participant, store core.ThreadStore, optFns ...func(o *Options)) (*Conversation, error) {
	if p == nil || store == nil {
		return nil, core.InvalidConfigurationf("conversation needs a participant and a thread store")
	}
	th, err := store.Create(p.Name())
	if err != nil {
		return nil, fmt.Errorf("create thread: %w", err)
	}
	return newConversation(p, store, th.ID, optFns), nil
}

// Resume continues an existing thread. The thread must belong to p.
func Resume(p core.Participant, store core.ThreadStore, threadID string, optFns ...func(o *Options)) (*Conversation, error) {
	if p == nil || store == nil {
		return nil, core.InvalidConfigurationf("conversation needs a participant and a thread store")
	}
	th, err := store.Get(threadID)
	if err != nil {
		return nil, err
	}
	if th.Participant != p.Name() {
		return nil, core.InvalidConfigurationf("thread %s belongs to %q, not %q", threadID, th.Participant, p.Name())
	}
	return newConversation(p, store, threadID, optFns), nil
}

func newConversation(p core.Participant, store core.ThreadStore, threadID string, optFns []func(o *Options)) *Conversation {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Conversation{participant: p, store: store, threadID: threadID, logger: opts.Logger}
}

// ThreadID returns the identifier of the backing thread.
func (c *Conversation) ThreadID() string { return c.threadID }

// Send records the user's text and the participant's reply. Both messages are
// stored together once the participant has answered; a failed turn leaves the
// thread unchanged.
func (c *Conversation) Send(ctx context.Context, text string) (core.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	th, err := c.store.Get(c.threadID)
	if err != nil {
		return core.Message{}, err
	}

	userMsg := core.NewUserMessage(text)
	userMsg.Index = len(th.Messages)
	history := append(th.Messages, userMsg)

	start := time.Now()
	reply, err := c.participant.Respond(ctx, history)
	if err != nil {
		c.logger.Error("Conversation turn failed", "thread_id", c.threadID, "participant", c.participant.Name(), "error", err)
		return core.Message{}, core.NewParticipantError(c.participant.Name(), err)
	}

	reply.Author = c.participant.Name()
	reply.Role = core.RoleAssistant
	if reply.ID == "" {
		reply.ID = core.NewID()
	}
	if reply.Timestamp.IsZero() {
		reply.Timestamp = time.Now().UTC()
	}
	reply.Index = userMsg.Index + 1

	if err := c.store.Append(c.threadID, userMsg, reply); err != nil {
		return core.Message{}, fmt.Errorf("store turn: %w", err)
	}

	c.logger.Debug("Conversation turn completed", "thread_id", c.threadID, "participant", c.participant.Name(), "duration", time.Since(start))
	return reply, nil
}

// History returns the stored messages of the thread.
func (c *Conversation) History() ([]core.Message, error) {
	th, err := c.store.Get(c.threadID)
	if err != nil {
		return nil, err
	}
	return th.Messages, nil
}

// Delete removes the backing thread from the store.
func (c *Conversation) Delete() error {
	return c.store.Delete(c.threadID)
}
