package profile

import (
	"context"
	"maps"
	"sync"

	"github.com/voicetyped/profilebot/pkg/dialog"
)

// MemoryStore keeps profiles in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]dialog.UserProfile
}

// NewMemoryStore creates an empty in-memory profile store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{profiles: make(map[string]dialog.UserProfile)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (*dialog.UserProfile, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[key]
	if !ok {
		return nil, false, nil
	}
	p.Fields = maps.Clone(p.Fields)
	return &p, true, nil
}

func (s *MemoryStore) Set(_ context.Context, p *dialog.UserProfile) error {
	cp := *p
	cp.Fields = maps.Clone(p.Fields)
	s.mu.Lock()
	s.profiles[p.Key] = cp
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored profiles.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.profiles)
}
