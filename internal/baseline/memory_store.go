package baseline

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store for demo/test use.
type MemoryStore struct {
	mu      sync.RWMutex
	profile *Profile
}

// Compile-time check.
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a store seeded with a default profile.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{profile: NewProfile()}
}

func (s *MemoryStore) Get(_ context.Context) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile.Clone(), nil
}

func (s *MemoryStore) Save(_ context.Context, p *Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = p.Clone()
	return nil
}
