package state

import (
	"context"
	"sync"

	"github.com/voicetyped/profilebot/pkg/dialog"
)

// MemoryStore keeps conversation state in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]dialog.ConversationState
}

// NewMemoryStore creates an empty in-memory state store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]dialog.ConversationState)}
}

func (s *MemoryStore) Load(_ context.Context, key string) (*dialog.ConversationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[key]
	if !ok {
		return nil, nil
	}
	cp := st.Clone()
	return &cp, nil
}

func (s *MemoryStore) Save(_ context.Context, st *dialog.ConversationState) error {
	s.mu.Lock()
	s.states[st.Key] = st.Clone()
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.states, key)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored conversations.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.states)
}
