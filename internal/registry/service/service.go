// Package service implements the identity registry operations. Every
// mutating operation executes as one atomic unit: preconditions are
// evaluated as short-circuiting guards before any write, and the service
// mutex serializes operations so no partial state is ever observable.
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
	regmetrics "agritrust/internal/registry/metrics"
	"agritrust/internal/registry/models"
	"agritrust/pkg/domain"
	dErrors "agritrust/pkg/domain-errors"
	"agritrust/pkg/platform/audit"
	"agritrust/pkg/platform/sentinel"
	"agritrust/pkg/requestcontext"
)

// Store is the registry state the service operates on. Implementations must
// make each method a single atomic unit (memory: one lock acquisition;
// postgres: one transaction).
type Store interface {
	CreateProfile(ctx context.Context, profile *models.FarmerProfile, paidFee uint64) (domain.FarmerID, error)
	FindByPrincipal(ctx context.Context, principal domain.Principal) (*models.FarmerProfile, error)
	FindByID(ctx context.Context, id domain.FarmerID) (*models.FarmerProfile, error)
	Execute(ctx context.Context, principal domain.Principal, validate func(*models.FarmerProfile) error, mutate func(*models.FarmerProfile)) (*models.FarmerProfile, error)
	Settings(ctx context.Context) (models.Settings, error)
	UpdateSettings(ctx context.Context, validate func(models.Settings) error, mutate func(*models.Settings)) (models.Settings, error)
}

// VerificationCache is an optional read cache in front of IsVerified.
// Implementations must treat a miss as (found=false, err=nil).
type VerificationCache interface {
	Get(ctx context.Context, principal domain.Principal) (verified bool, found bool, err error)
	Set(ctx context.Context, principal domain.Principal, verified bool) error
	Invalidate(ctx context.Context, principal domain.Principal) error
}

// Service orchestrates the farmer identity lifecycle.
type Service struct {
	// mu serializes mutating operations; the execution model applies one
	// caller-initiated operation to completion before the next begins.
	mu sync.Mutex

	profiles Store
	ledger   ledger.Ledger
	clock    ledger.Clock
	// account is the registry's own ledger account: fees accumulate here and
	// withdrawals pay out of it.
	account domain.Principal

	audit   *auditEmitter
	metrics *regmetrics.Metrics
	cache   VerificationCache
	tracer  trace.Tracer
}

type serviceConfig struct {
	auditSink audit.Emitter
	metrics   *regmetrics.Metrics
	cache     VerificationCache
}

// Option configures optional service collaborators.
type Option func(*serviceConfig)

func WithAuditSink(sink audit.Emitter) Option {
	return func(c *serviceConfig) { c.auditSink = sink }
}

func WithMetrics(m *regmetrics.Metrics) Option {
	return func(c *serviceConfig) { c.metrics = m }
}

func WithVerificationCache(cache VerificationCache) Option {
	return func(c *serviceConfig) { c.cache = cache }
}

// New constructs the registry service. account is the registry's ledger
// account for fee custody.
func New(profiles Store, lgr ledger.Ledger, clock ledger.Clock, account domain.Principal, opts ...Option) *Service {
	cfg := &serviceConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Service{
		profiles: profiles,
		ledger:   lgr,
		clock:    clock,
		account:  account,
		audit:    &auditEmitter{sink: cfg.auditSink},
		metrics:  cfg.metrics,
		cache:    cfg.cache,
		tracer:   otel.Tracer("agritrust/registry"),
	}
}

// Register creates a pending profile for the caller, charging the current
// registration fee. The fee transfer participates in the atomic unit: if it
// fails the operation aborts with no record created, and every registry
// precondition is checked before the transfer so a post-transfer failure is
// impossible.
func (s *Service) Register(ctx context.Context, caller domain.Principal, name, location string, farmSize float64, additionalInfo string) (domain.FarmerID, error) {
	ctx, span := s.tracer.Start(ctx, "registry.Register")
	defer span.End()
	start := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.profiles.FindByPrincipal(ctx, caller); err == nil {
		return 0, dErrors.New(dErrors.CodeAlreadyRegistered, "caller already has a profile")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check existing profile")
	}

	profile, err := models.NewFarmerProfile(caller, name, location, farmSize, additionalInfo, s.clock.Now())
	if err != nil {
		return 0, err
	}

	settings, err := s.profiles.Settings(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read settings")
	}
	if settings.RegistrationFee > 0 {
		if err := s.ledger.Transfer(ctx, caller, s.account, settings.RegistrationFee); err != nil {
			return 0, dErrors.Wrap(err, dErrors.CodePaymentFailed, "registration fee transfer failed")
		}
	}

	id, err := s.profiles.CreateProfile(ctx, profile, settings.RegistrationFee)
	if err != nil {
		// Unreachable under the serialized execution model: existence was
		// checked above under the same lock.
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create profile")
	}

	s.audit.emit(ctx, audit.Event{
		Category:    audit.CategoryCompliance,
		Action:      string(audit.EventFarmerRegistered),
		Actor:       caller,
		Subject:     caller,
		FarmerID:    id,
		LogicalTime: profile.RegisteredAt,
	})
	if s.metrics != nil {
		s.metrics.IncrementFarmersRegistered()
		s.metrics.ObserveRegister(start)
	}
	return id, nil
}

// Verify applies a terminal verification decision to a farmer's profile.
// Only the current verifier may call it; the target must exist and still be
// pending; status must be verified or rejected.
func (s *Service) Verify(ctx context.Context, caller, farmer domain.Principal, status string) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "registry.Verify")
	defer span.End()
	start := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	settings, err := s.profiles.Settings(ctx)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read settings")
	}
	if !access.Holds(settings.Verifier, caller) {
		return false, dErrors.New(dErrors.CodeNotAuthorized, "caller is not the verifier")
	}

	var decision models.VerificationStatus
	now := s.clock.Now()
	profile, err := s.profiles.Execute(ctx, farmer,
		func(p *models.FarmerProfile) error {
			// Target existence is checked by the store lookup, so the status
			// validity check correctly ranks after NotRegistered.
			var parseErr error
			decision, parseErr = models.ParseVerificationDecision(status)
			if parseErr != nil {
				return parseErr
			}
			return p.CanDecide()
		},
		func(p *models.FarmerProfile) {
			p.ApplyDecision(decision, now)
		},
	)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, dErrors.New(dErrors.CodeNotRegistered, "farmer is not registered")
		}
		return false, err
	}

	s.invalidateCache(ctx, farmer)
	s.audit.emit(ctx, audit.Event{
		Category:    audit.CategoryCompliance,
		Action:      string(audit.EventFarmerVerified),
		Actor:       caller,
		Subject:     farmer,
		FarmerID:    profile.ID,
		Detail:      string(decision),
		LogicalTime: now,
	})
	if s.metrics != nil {
		s.metrics.IncrementFarmersVerified()
		s.metrics.ObserveVerify(start)
	}
	return true, nil
}

// UpdateProfile patches the caller's own verified profile. Nil patch fields
// are left unchanged; provided-but-zero values are also treated as absent
// (the behavior existing callers rely on).
func (s *Service) UpdateProfile(ctx context.Context, caller domain.Principal, patch models.ProfilePatch) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "registry.UpdateProfile")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	profile, err := s.profiles.Execute(ctx, caller,
		func(p *models.FarmerProfile) error { return p.CanUpdate() },
		func(p *models.FarmerProfile) { p.ApplyPatch(patch) },
	)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, dErrors.New(dErrors.CodeNotRegistered, "caller is not registered")
		}
		return false, err
	}

	s.audit.emit(ctx, audit.Event{
		Category:    audit.CategoryOperations,
		Action:      string(audit.EventProfileUpdated),
		Actor:       caller,
		Subject:     caller,
		FarmerID:    profile.ID,
		LogicalTime: now,
	})
	return true, nil
}

// Deactivate clears a farmer's active flag. Owner-only; there is no
// reactivation operation.
func (s *Service) Deactivate(ctx context.Context, caller, farmer domain.Principal) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "registry.Deactivate")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	settings, err := s.profiles.Settings(ctx)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read settings")
	}
	if !access.Holds(settings.Owner, caller) {
		return false, dErrors.New(dErrors.CodeNotAuthorized, "caller is not the owner")
	}

	now := s.clock.Now()
	profile, err := s.profiles.Execute(ctx, farmer,
		func(*models.FarmerProfile) error { return nil },
		func(p *models.FarmerProfile) { p.ApplyDeactivation() },
	)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, dErrors.New(dErrors.CodeNotRegistered, "farmer is not registered")
		}
		return false, err
	}

	s.audit.emit(ctx, audit.Event{
		Category:    audit.CategoryOperations,
		Action:      string(audit.EventFarmerDeactivated),
		Actor:       caller,
		Subject:     farmer,
		FarmerID:    profile.ID,
		LogicalTime: now,
	})
	s.invalidateCache(ctx, farmer)
	return true, nil
}

// SetRegistrationFee updates the fee charged on registration. Owner-only.
func (s *Service) SetRegistrationFee(ctx context.Context, caller domain.Principal, fee uint64) (bool, error) {
	return s.updateSettings(ctx, caller, "registry.SetRegistrationFee", audit.EventFeeUpdated,
		func(st *models.Settings) { st.RegistrationFee = fee })
}

// SetVerifier reassigns the verifier role. Owner-only.
func (s *Service) SetVerifier(ctx context.Context, caller, verifier domain.Principal) (bool, error) {
	if verifier.IsNil() {
		return false, dErrors.New(dErrors.CodeInvalidInput, "verifier principal is required")
	}
	return s.updateSettings(ctx, caller, "registry.SetVerifier", audit.EventVerifierChanged,
		func(st *models.Settings) { st.Verifier = verifier })
}

// TransferOwnership reassigns the owner role. Owner-only.
func (s *Service) TransferOwnership(ctx context.Context, caller, newOwner domain.Principal) (bool, error) {
	if newOwner.IsNil() {
		return false, dErrors.New(dErrors.CodeInvalidInput, "new owner principal is required")
	}
	return s.updateSettings(ctx, caller, "registry.TransferOwnership", audit.EventOwnershipTransferred,
		func(st *models.Settings) { st.Owner = newOwner })
}

func (s *Service) updateSettings(ctx context.Context, caller domain.Principal, spanName string, action audit.AuditEvent, mutate func(*models.Settings)) (bool, error) {
	ctx, span := s.tracer.Start(ctx, spanName)
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	_, err := s.profiles.UpdateSettings(ctx,
		func(st models.Settings) error {
			if !access.Holds(st.Owner, caller) {
				return dErrors.New(dErrors.CodeNotAuthorized, "caller is not the owner")
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

// WithdrawFees pays accumulated fees out to the owner. Fails InvalidInput if
// amount exceeds the tracked balance; the ledger transfer happens before the
// balance decrement so a failed transfer leaves state untouched.
func (s *Service) WithdrawFees(ctx context.Context, caller domain.Principal, amount uint64) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "registry.WithdrawFees")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	settings, err := s.profiles.Settings(ctx)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read settings")
	}
	if !access.Holds(settings.Owner, caller) {
		return false, dErrors.New(dErrors.CodeNotAuthorized, "caller is not the owner")
	}
	if amount > settings.Balance {
		return false, dErrors.New(dErrors.CodeInvalidInput, "amount exceeds contract balance")
	}

	if err := s.ledger.Transfer(ctx, s.account, settings.Owner, amount); err != nil {
		return false, dErrors.Wrap(err, dErrors.CodePaymentFailed, "withdrawal transfer failed")
	}

	now := s.clock.Now()
	if _, err := s.profiles.UpdateSettings(ctx,
		func(models.Settings) error { return nil },
		func(st *models.Settings) { st.Balance -= amount },
	); err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record withdrawal")
	}

	s.audit.emit(ctx, audit.Event{
		Category:    audit.CategoryOperations,
		Action:      string(audit.EventFeesWithdrawn),
		Actor:       caller,
		Subject:     caller,
		LogicalTime: now,
	})
	if s.metrics != nil {
		s.metrics.IncrementFeesWithdrawn()
	}
	return true, nil
}

// GetProfile returns the profile for a principal, or nil if none exists.
// Read operations never fail with a domain code.
func (s *Service) GetProfile(ctx context.Context, principal domain.Principal) (*models.FarmerProfile, error) {
	profile, err := s.profiles.FindByPrincipal(ctx, principal)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read profile")
	}
	return profile, nil
}

// GetByID resolves a farmer ID through the reverse index, or nil if the ID
// was never assigned.
func (s *Service) GetByID(ctx context.Context, id domain.FarmerID) (*models.FarmerProfile, error) {
	profile, err := s.profiles.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read profile")
	}
	return profile, nil
}

// IsVerified reports whether the principal has a positively verified
// profile. Unregistered principals are simply not verified. This is the
// read-only predicate the practice log and scoring collaborators consume.
func (s *Service) IsVerified(ctx context.Context, principal domain.Principal) (bool, error) {
	if s.cache != nil {
		if verified, found, err := s.cache.Get(ctx, principal); err == nil && found {
			return verified, nil
		}
	}

	profile, err := s.GetProfile(ctx, principal)
	if err != nil {
		return false, err
	}
	verified := profile != nil && profile.IsVerified()

	if s.cache != nil {
		_ = s.cache.Set(ctx, principal, verified)
	}
	return verified, nil
}

// GetOwner returns the current owner principal.
func (s *Service) GetOwner(ctx context.Context) (domain.Principal, error) {
	settings, err := s.profiles.Settings(ctx)
	return settings.Owner, err
}

// GetVerifier returns the current verifier principal.
func (s *Service) GetVerifier(ctx context.Context) (domain.Principal, error) {
	settings, err := s.profiles.Settings(ctx)
	return settings.Verifier, err
}

// GetFee returns the current registration fee.
func (s *Service) GetFee(ctx context.Context) (uint64, error) {
	settings, err := s.profiles.Settings(ctx)
	return settings.RegistrationFee, err
}

// GetBalance returns the accumulated, not-yet-withdrawn fee balance.
func (s *Service) GetBalance(ctx context.Context) (uint64, error) {
	settings, err := s.profiles.Settings(ctx)
	return settings.Balance, err
}

func (s *Service) invalidateCache(ctx context.Context, principal domain.Principal) {
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, principal)
	}
}

// auditEmitter is a nil-safe wrapper: a missing sink silently drops events,
// and sink failures never fail the already-committed operation.
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
