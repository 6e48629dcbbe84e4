package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"agritrust/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose. This
// enables different retention policies and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with regulatory significance:
	// registrations, verification decisions, moderation decisions.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers events useful for operational visibility:
	// role changes, fee changes, withdrawals.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic after each successful mutation. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID       uuid.UUID        `json:"id"`
	Category EventCategory    `json:"category"`
	Action   string           `json:"action"`
	Actor    domain.Principal `json:"actor"`
	// Subject is the principal the action was applied to. Equal to Actor for
	// self-service operations.
	Subject     domain.Principal `json:"subject"`
	FarmerID    domain.FarmerID  `json:"farmer_id,omitempty"`
	Sequence    *uint64          `json:"sequence,omitempty"`
	Detail      string           `json:"detail,omitempty"`
	RequestID   string           `json:"request_id,omitempty"`
	LogicalTime uint64           `json:"logical_time"`
	Timestamp   time.Time        `json:"timestamp"`
}

// AuditEvent names the actions emitted by the registry and practice log.
type AuditEvent string

const (
	// Registry events.
	EventFarmerRegistered     AuditEvent = "farmer_registered"
	EventFarmerVerified       AuditEvent = "farmer_verified"
	EventProfileUpdated       AuditEvent = "profile_updated"
	EventFarmerDeactivated    AuditEvent = "farmer_deactivated"
	EventFeeUpdated           AuditEvent = "fee_updated"
	EventFeesWithdrawn        AuditEvent = "fees_withdrawn"
	EventVerifierChanged      AuditEvent = "verifier_changed"
	EventOwnershipTransferred AuditEvent = "ownership_transferred"

	// Practice log events.
	EventPracticeLogged    AuditEvent = "practice_logged"
	EventPracticeModerated AuditEvent = "practice_moderated"
	EventPracticeUpdated   AuditEvent = "practice_updated"
	EventModeratorChanged  AuditEvent = "moderator_changed"
)

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySubject(ctx context.Context, subject domain.Principal) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}

// Emitter is the narrow interface domain services depend on.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}

// Tee fans an event out to every sink. The first error stops the fan-out;
// sinks that must never fail the caller should swallow their own errors.
func Tee(sinks ...Emitter) Emitter {
	return teeEmitter(sinks)
}

type teeEmitter []Emitter

func (t teeEmitter) Emit(ctx context.Context, event Event) error {
	for _, sink := range t {
		if err := sink.Emit(ctx, event); err != nil {
			return err
		}
	}
	return nil
}
