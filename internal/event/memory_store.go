package event

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for demo/test use.
type MemoryStore struct {
	mu        sync.RWMutex
	events    []*AccessEvent
	decisions map[int64]*RiskDecision
	order     []int64 // decision insertion order, oldest first
	nextID    int64
}

// Compile-time check.
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{decisions: make(map[int64]*RiskDecision)}
}

func (s *MemoryStore) InsertEvent(_ context.Context, ev *AccessEvent) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	cp := *ev
	cp.ID = s.nextID
	s.events = append(s.events, &cp)
	ev.ID = cp.ID
	return cp.ID, nil
}

func (s *MemoryStore) GetEvent(_ context.Context, id int64) (*AccessEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id < 1 || id > int64(len(s.events)) {
		return nil, nil
	}
	cp := *s.events[id-1]
	return &cp, nil
}

func (s *MemoryStore) CountEvents(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.events)), nil
}

func (s *MemoryStore) CountEventsSince(_ context.Context, since time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, ev := range s.events {
		if !ev.Timestamp.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) LastEventTime(_ context.Context) (*time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.events) == 0 {
		return nil, nil
	}
	t := s.events[len(s.events)-1].Timestamp
	return &t, nil
}

func (s *MemoryStore) InsertDecision(_ context.Context, d *RiskDecision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *d
	cp.Reasons = append([]string(nil), d.Reasons...)
	if d.Explainability != nil {
		ex := *d.Explainability
		ex.Signals = append([]SignalDetail(nil), d.Explainability.Signals...)
		cp.Explainability = &ex
	}
	s.decisions[d.EventID] = &cp
	s.order = append(s.order, d.EventID)
	return nil
}

func (s *MemoryStore) GetDecisionByEvent(_ context.Context, eventID int64) (*RiskDecision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.decisions[eventID]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (s *MemoryStore) ListRecentDecisions(_ context.Context, limit int) ([]*RiskDecision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := len(s.order) - limit
	if start < 0 {
		start = 0
	}
	out := make([]*RiskDecision, 0, len(s.order)-start)
	for i := len(s.order) - 1; i >= start; i-- {
		cp := *s.decisions[s.order[i]]
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemoryStore) CountDecisionsByVerdict(_ context.Context, v Verdict) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, d := range s.decisions {
		if d.Verdict == v {
			n++
		}
	}
	return n, nil
}
