// Package service implements the practice claim log operations. Like the
// registry, every mutating operation runs as one serialized atomic unit; the
// cross-component verification check participates in that unit, so a
// failure there aborts the operation with no side effects.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"agritrust/internal/access"
	"agritrust/internal/ledger"
	logmetrics "agritrust/internal/practicelog/metrics"
	"agritrust/internal/practicelog/models"
	"agritrust/pkg/domain"
	dErrors "agritrust/pkg/domain-errors"
	"agritrust/pkg/platform/audit"
	"agritrust/pkg/platform/sentinel"
	"agritrust/pkg/requestcontext"
)

// Store is the practice log state the service operates on. Implementations
// must make each method a single atomic unit.
type Store interface {
	Append(ctx context.Context, entry *models.PracticeLogEntry) (uint64, error)
	Find(ctx context.Context, farmer domain.Principal, sequence uint64) (*models.PracticeLogEntry, error)
	Count(ctx context.Context, farmer domain.Principal) (uint64, error)
	Execute(ctx context.Context, farmer domain.Principal, sequence uint64, validate func(*models.PracticeLogEntry) error, mutate func(*models.PracticeLogEntry)) (*models.PracticeLogEntry, error)
	Settings(ctx context.Context) (models.Settings, error)
	UpdateSettings(ctx context.Context, validate func(models.Settings) error, mutate func(*models.Settings)) (models.Settings, error)
}

// VerificationSource is the registry capability the log depends on. Injected
// so the log can be tested against a fake source.
type VerificationSource interface {
	IsVerified(ctx context.Context, principal domain.Principal) (bool, error)
}

// Service orchestrates the practice entry lifecycle.
type Service struct {
	// mu serializes mutating operations, matching the one-op-at-a-time
	// execution model.
	mu sync.Mutex

	entries      Store
	verification VerificationSource
	clock        ledger.Clock

	audit   *auditEmitter
	metrics *logmetrics.Metrics
	tracer  trace.Tracer
}

type serviceConfig struct {
	auditSink audit.Emitter
	metrics   *logmetrics.Metrics
}

// Option configures optional service collaborators.
type Option func(*serviceConfig)

func WithAuditSink(sink audit.Emitter) Option {
	return func(c *serviceConfig) { c.auditSink = sink }
}

func WithMetrics(m *logmetrics.Metrics) Option {
	return func(c *serviceConfig) { c.metrics = m }
}

// New constructs the practice log service.
func New(entries Store, verification VerificationSource, clock ledger.Clock, opts ...Option) *Service {
	cfg := &serviceConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Service{
		entries:      entries,
		verification: verification,
		clock:        clock,
		audit:        &auditEmitter{sink: cfg.auditSink},
		metrics:      cfg.metrics,
		tracer:       otel.Tracer("agritrust/practicelog"),
	}
}

// Log appends a pending entry for the caller and returns the sequence
// number used. Only verified farmers may log.
func (s *Service) Log(ctx context.Context, caller domain.Principal, practiceType, category, details, evidenceHash string) (uint64, error) {
	ctx, span := s.tracer.Start(ctx, "practicelog.Log")
	defer span.End()
	start := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	verified, err := s.verification.IsVerified(ctx, caller)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "verification check failed")
	}
	if !verified {
		return 0, dErrors.New(dErrors.CodeLogNotVerified, "caller is not a verified farmer")
	}

	entry, err := models.NewPracticeLogEntry(caller, practiceType, category, details, evidenceHash, s.clock.Now())
	if err != nil {
		return 0, err
	}

	sequence, err := s.entries.Append(ctx, entry)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to append entry")
	}

	s.audit.emit(ctx, audit.Event{
		Category:    audit.CategoryCompliance,
		Action:      string(audit.EventPracticeLogged),
		Actor:       caller,
		Subject:     caller,
		Sequence:    &sequence,
		Detail:      practiceType,
		LogicalTime: entry.LoggedAt,
	})
	if s.metrics != nil {
		s.metrics.IncrementEntriesLogged()
		s.metrics.ObserveLog(start)
	}
	return sequence, nil
}

// Moderate applies a terminal moderation decision to an entry. Only the
// current moderator may call it; the entry must exist and still be pending;
// status must be approved or rejected.
func (s *Service) Moderate(ctx context.Context, caller, farmer domain.Principal, sequence uint64, status, notes string) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "practicelog.Moderate")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	settings, err := s.entries.Settings(ctx)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read settings")
	}
	if !access.Holds(settings.Moderator, caller) {
		return false, dErrors.New(dErrors.CodeLogNotAuthorized, "caller is not the moderator")
	}

	var decision models.ModerationStatus
	now := s.clock.Now()
	_, err = s.entries.Execute(ctx, farmer, sequence,
		func(e *models.PracticeLogEntry) error {
			// Entry existence is checked by the store lookup, so the status
			// validity check correctly ranks after LogNotFound.
			var parseErr error
			decision, parseErr = models.ParseModerationDecision(status)
			if parseErr != nil {
				return parseErr
			}
			return e.CanModerate()
		},
		func(e *models.PracticeLogEntry) {
			e.ApplyModeration(decision, notes, now)
		},
	)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, dErrors.New(dErrors.CodeLogNotFound, "log entry not found")
		}
		return false, err
	}

	s.audit.emit(ctx, audit.Event{
		Category:    audit.CategoryCompliance,
		Action:      string(audit.EventPracticeModerated),
		Actor:       caller,
		Subject:     farmer,
		Sequence:    &sequence,
		Detail:      string(decision),
		LogicalTime: now,
	})
	if s.metrics != nil {
		s.metrics.IncrementEntriesModerated()
	}
	return true, nil
}

// Update fully replaces the content of the caller's own pending entry.
// Lookup is keyed by the caller identity, so only the entry's owner can
// reach it.
func (s *Service) Update(ctx context.Context, caller domain.Principal, sequence uint64, details, evidenceHash string) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "practicelog.Update")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	_, err := s.entries.Execute(ctx, caller, sequence,
		func(e *models.PracticeLogEntry) error { return e.CanEdit() },
		func(e *models.PracticeLogEntry) { e.ApplyEdit(details, evidenceHash) },
	)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, dErrors.New(dErrors.CodeLogNotFound, "log entry not found")
		}
		return false, err
	}

	s.audit.emit(ctx, audit.Event{
		Category:    audit.CategoryOperations,
		Action:      string(audit.EventPracticeUpdated),
		Actor:       caller,
		Subject:     caller,
		Sequence:    &sequence,
		LogicalTime: now,
	})
	return true, nil
}

// SetModerator reassigns the moderator role. Owner-only.
func (s *Service) SetModerator(ctx context.Context, caller, moderator domain.Principal) (bool, error) {
	if moderator.IsNil() {
		return false, dErrors.New(dErrors.CodeLogInvalidInput, "moderator principal is required")
	}
	return s.updateSettings(ctx, caller, "practicelog.SetModerator", audit.EventModeratorChanged,
		func(st *models.Settings) { st.Moderator = moderator })
}

// TransferOwnership reassigns the owner role. Owner-only.
func (s *Service) TransferOwnership(ctx context.Context, caller, newOwner domain.Principal) (bool, error) {
	if newOwner.IsNil() {
		return false, dErrors.New(dErrors.CodeLogInvalidInput, "new owner principal is required")
	}
	return s.updateSettings(ctx, caller, "practicelog.TransferOwnership", audit.EventOwnershipTransferred,
		func(st *models.Settings) { st.Owner = newOwner })
}

func (s *Service) updateSettings(ctx context.Context, caller domain.Principal, spanName string, action audit.AuditEvent, mutate func(*models.Settings)) (bool, error) {
	ctx, span := s.tracer.Start(ctx, spanName)
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	_, err := s.entries.UpdateSettings(ctx,
		func(st models.Settings) error {
			if !access.Holds(st.Owner, caller) {
				return dErrors.New(dErrors.CodeLogNotAuthorized, "caller is not the owner")
			}
			return nil
		},
		mutate,
	)
	if err != nil {
		return false, err
	}

	s.audit.emit(ctx, audit.Event{
		Category:    audit.CategoryOperations,
		Action:      string(action),
		Actor:       caller,
		Subject:     caller,
		LogicalTime: now,
	})
	return true, nil
}

// GetEntry returns an entry, or nil if it does not exist. Read operations
// never fail with a domain code.
func (s *Service) GetEntry(ctx context.Context, farmer domain.Principal, sequence uint64) (*models.PracticeLogEntry, error) {
	entry, err := s.entries.Find(ctx, farmer, sequence)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read entry")
	}
	return entry, nil
}

// GetLogCount returns the number of entries a farmer has logged; zero if
// none.
func (s *Service) GetLogCount(ctx context.Context, farmer domain.Principal) (uint64, error) {
	count, err := s.entries.Count(ctx, farmer)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count entries")
	}
	return count, nil
}

// GetModerator returns the current moderator principal.
func (s *Service) GetModerator(ctx context.Context) (domain.Principal, error) {
	settings, err := s.entries.Settings(ctx)
	return settings.Moderator, err
}

// GetOwner returns the current owner principal.
func (s *Service) GetOwner(ctx context.Context) (domain.Principal, error) {
	settings, err := s.entries.Settings(ctx)
	return settings.Owner, err
}

// auditEmitter mirrors the registry's nil-safe audit wrapper.
type auditEmitter struct {
	sink audit.Emitter
}

func (e *auditEmitter) emit(ctx context.Context, event audit.Event) {
	if e.sink == nil {
		return
	}
	if event.ID == (uuid.UUID{}) {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	_ = e.sink.Emit(ctx, event)
}
