package store

import (
	"context"
	"fmt"
	"sync"

	"agritrust/internal/practicelog/models"
	"agritrust/pkg/domain"
	"agritrust/pkg/platform/sentinel"
)

// Error contract: methods return sentinel.ErrNotFound for missing entries;
// coded domain errors from validate callbacks pass through unchanged.

// InMemory keeps per-farmer entry logs behind one mutex. Each farmer's log
// is a dense slice, so the slice index is the sequence number and density is
// structural rather than checked.
type InMemory struct {
	mu       sync.RWMutex
	entries  map[domain.Principal][]*models.PracticeLogEntry
	settings models.Settings
}

// NewInMemory constructs an empty practice log store with the given initial
// settings.
func NewInMemory(settings models.Settings) *InMemory {
	return &InMemory{
		entries:  make(map[domain.Principal][]*models.PracticeLogEntry),
		settings: settings,
	}
}

// Append adds the entry at the farmer's next sequence number and returns the
// number used.
func (s *InMemory) Append(_ context.Context, entry *models.PracticeLogEntry) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sequence := uint64(len(s.entries[entry.Farmer]))
	entry.Sequence = sequence
	s.entries[entry.Farmer] = append(s.entries[entry.Farmer], entry)
	return sequence, nil
}

// Find returns the stored entry. Callers must not mutate the result;
// mutations go through Execute.
func (s *InMemory) Find(_ context.Context, farmer domain.Principal, sequence uint64) (*models.PracticeLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.entries[farmer]
	if sequence >= uint64(len(log)) {
		return nil, fmt.Errorf("entry (%s, %d): %w", farmer, sequence, sentinel.ErrNotFound)
	}
	return log[sequence], nil
}

// Count returns the number of entries logged by a farmer; zero if none.
func (s *InMemory) Count(_ context.Context, farmer domain.Principal) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.entries[farmer])), nil
}

// Execute runs validate then mutate on an entry while holding the store
// lock. A validate error skips the mutation and leaves state unchanged.
func (s *InMemory) Execute(_ context.Context, farmer domain.Principal, sequence uint64, validate func(*models.PracticeLogEntry) error, mutate func(*models.PracticeLogEntry)) (*models.PracticeLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.entries[farmer]
	if sequence >= uint64(len(log)) {
		return nil, fmt.Errorf("entry (%s, %d): %w", farmer, sequence, sentinel.ErrNotFound)
	}
	entry := log[sequence]
	if err := validate(entry); err != nil {
		return nil, err
	}
	mutate(entry)
	return entry, nil
}

// Settings returns a copy of the current settings record.
func (s *InMemory) Settings(_ context.Context) (models.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings, nil
}

// UpdateSettings runs validate then mutate on the settings record under the
// store lock.
func (s *InMemory) UpdateSettings(_ context.Context, validate func(models.Settings) error, mutate func(*models.Settings)) (models.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := validate(s.settings); err != nil {
		return models.Settings{}, err
	}
	mutate(&s.settings)
	return s.settings, nil
}
