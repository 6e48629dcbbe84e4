package memory

import (
	"context"
	"sort"
	"sync"

	"agritrust/pkg/domain"
	audit "agritrust/pkg/platform/audit"
)

// InMemoryStore keeps audit events in memory for tests and dev.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[domain.Principal][]audit.Event
	all    []audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[domain.Principal][]audit.Event)}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.Subject] = append(s.events[event.Subject], event)
	s.all = append(s.all, event)
	return nil
}

func (s *InMemoryStore) ListBySubject(_ context.Context, subject domain.Principal) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.events[subject]...), nil
}

// ListRecent returns the most recent events, newest first.
func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recent := append([]audit.Event{}, s.all...)
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].LogicalTime > recent[j].LogicalTime
	})
	if limit > 0 && len(recent) > limit {
		recent = recent[:limit]
	}
	return recent, nil
}

// Clear drops all stored events. Test helper.
func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make(map[domain.Principal][]audit.Event)
	s.all = nil
}
