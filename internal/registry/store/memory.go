package store

import (
	"context"
	"fmt"
	"sync"

	"agritrust/internal/registry/models"
	"agritrust/pkg/domain"
	"agritrust/pkg/platform/sentinel"
)

// Error contract:
// All store methods follow this pattern:
// - Return sentinel.ErrNotFound when the requested profile does not exist
// - Return sentinel.ErrAlreadyExists when a uniqueness constraint is hit
// - Return nil for successful operations
// Coded domain errors from validate callbacks pass through unchanged.

// InMemory holds the whole registry state behind one mutex: profiles keyed by
// principal, the id reverse index, the id-assignment counter, and the mutable
// settings record. Compound methods take the lock once so each call is a
// single atomic unit.
type InMemory struct {
	mu       sync.RWMutex
	profiles map[domain.Principal]*models.FarmerProfile
	byID     map[domain.FarmerID]domain.Principal
	nextID   domain.FarmerID
	settings models.Settings
}

// NewInMemory constructs an empty registry store with the given initial
// settings. The first allocated farmer ID is 1.
func NewInMemory(settings models.Settings) *InMemory {
	return &InMemory{
		profiles: make(map[domain.Principal]*models.FarmerProfile),
		byID:     make(map[domain.FarmerID]domain.Principal),
		nextID:   1,
		settings: settings,
	}
}

// CreateProfile inserts a new profile, allocates its ID, and accrues the paid
// registration fee into the settings balance, all under one lock acquisition.
// The profile's ID field is set on success.
func (s *InMemory) CreateProfile(_ context.Context, profile *models.FarmerProfile, paidFee uint64) (domain.FarmerID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[profile.Principal]; ok {
		return 0, fmt.Errorf("profile for %s: %w", profile.Principal, sentinel.ErrAlreadyExists)
	}

	id := s.nextID
	profile.ID = id
	s.profiles[profile.Principal] = profile
	s.byID[id] = profile.Principal
	s.nextID++
	s.settings.Balance += paidFee
	return id, nil
}

// FindByPrincipal returns the stored profile for a principal. Callers must
// not mutate the result; mutations go through Execute.
func (s *InMemory) FindByPrincipal(_ context.Context, principal domain.Principal) (*models.FarmerProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if profile, ok := s.profiles[principal]; ok {
		return profile, nil
	}
	return nil, fmt.Errorf("profile for %s: %w", principal, sentinel.ErrNotFound)
}

// FindByID resolves a farmer ID through the reverse index.
func (s *InMemory) FindByID(_ context.Context, id domain.FarmerID) (*models.FarmerProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	principal, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("farmer id %d: %w", id, sentinel.ErrNotFound)
	}
	return s.profiles[principal], nil
}

// Execute runs validate then mutate on a profile while holding the store
// lock, so the check and the write form one atomic unit. If validate returns
// an error the mutation is skipped and no state changes.
func (s *InMemory) Execute(_ context.Context, principal domain.Principal, validate func(*models.FarmerProfile) error, mutate func(*models.FarmerProfile)) (*models.FarmerProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile, ok := s.profiles[principal]
	if !ok {
		return nil, fmt.Errorf("profile for %s: %w", principal, sentinel.ErrNotFound)
	}
	if err := validate(profile); err != nil {
		return nil, err
	}
	mutate(profile)
	return profile, nil
}

// Settings returns a copy of the current settings record.
func (s *InMemory) Settings(_ context.Context) (models.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings, nil
}

// UpdateSettings runs validate then mutate on the settings record under the
// store lock. A validate error leaves the settings untouched.
func (s *InMemory) UpdateSettings(_ context.Context, validate func(models.Settings) error, mutate func(*models.Settings)) (models.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := validate(s.settings); err != nil {
		return models.Settings{}, err
	}
	mutate(&s.settings)
	return s.settings, nil
}
