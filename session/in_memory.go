package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/roundtable/core"
)

// InMemoryStore is a volatile ThreadStore keeping threads in a process local
// map. It is safe for concurrent access and best suited for tests, demos and
// short lived CLI sessions. Returned threads are clones, so callers can never
// mutate stored state.
type InMemoryStore struct {
	mu      sync.RWMutex
	threads map[string]*core.Thread
}

// NewInMemoryStore constructs an empty in-memory thread store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{threads: make(map[string]*core.Thread)}
}

// Create opens a new empty thread for the named participant.
func (s *InMemoryStore) Create(participant string) (*core.Thread, error) {
	if participant == "" {
		return nil, fmt.Errorf("create thread: participant name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	th := core.NewThread(core.NewID(), participant)
	s.threads[th.ID] = th
	return th.Clone(), nil
}

// Get returns a clone of the thread or core.ErrThreadNotFound.
func (s *InMemoryStore) Get(id string) (*core.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	th, ok := s.threads[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrThreadNotFound, id)
	}
	return th.Clone(), nil
}

// Append adds messages to the end of a thread, assigning their sequence index.
func (s *InMemoryStore) Append(id string, msgs ...core.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	th, ok := s.threads[id]
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrThreadNotFound, id)
	}
	for _, m := range msgs {
		m.Index = len(th.Messages)
		th.Messages = append(th.Messages, m)
	}
	th.Updated = time.Now().UTC()
	return nil
}

// Delete removes a thread. Deleting an unknown thread returns core.ErrThreadNotFound.
func (s *InMemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.threads[id]; !ok {
		return fmt.Errorf("%w: %s", core.ErrThreadNotFound, id)
	}
	delete(s.threads, id)
	return nil
}

// Len returns the number of stored threads.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.threads)
}
