package models

import (
	"strings"

	"agritrust/pkg/domain"
	dErrors "agritrust/pkg/domain-errors"
)

// ModerationStatus is the lifecycle state of a practice log entry.
//
// Transitions: pending -> approved, pending -> rejected. Both targets are
// terminal, and entry content is editable only while pending.
type ModerationStatus string

const (
	ModerationPending  ModerationStatus = "pending"
	ModerationApproved ModerationStatus = "approved"
	ModerationRejected ModerationStatus = "rejected"
)

// ParseModerationDecision validates a moderator-supplied target status.
func ParseModerationDecision(s string) (ModerationStatus, error) {
	status := ModerationStatus(s)
	if status != ModerationApproved && status != ModerationRejected {
		return "", dErrors.New(dErrors.CodeLogInvalidInput, "status must be approved or rejected")
	}
	return status, nil
}

// IsTerminal reports whether the status is a decided, immutable state.
func (s ModerationStatus) IsTerminal() bool {
	return s == ModerationApproved || s == ModerationRejected
}

// PracticeLogEntry is a claim a farmer makes about their own activity,
// keyed by (farmer, sequence).
//
// Invariants:
//   - Sequence numbers per farmer are dense and monotonic starting at 0
//   - Status starts at pending and transitions at most once, to approved or
//     rejected (terminal)
//   - Details and EvidenceHash are mutable only while pending
//   - Entries are never deleted
type PracticeLogEntry struct {
	Farmer          domain.Principal `json:"farmer"`
	Sequence        uint64           `json:"sequence"`
	PracticeType    string           `json:"practice_type"`
	Category        string           `json:"category"`
	Details         string           `json:"details"`
	EvidenceHash    string           `json:"evidence_hash,omitempty"`
	Status          ModerationStatus `json:"moderation_status"`
	ModerationNotes string           `json:"moderation_notes,omitempty"`
	LoggedAt        uint64           `json:"timestamp"`
	ModeratedAt     *uint64          `json:"moderation_timestamp,omitempty"`
}

// NewPracticeLogEntry validates input and constructs a pending entry. The
// sequence number is assigned by the store at append time.
func NewPracticeLogEntry(farmer domain.Principal, practiceType, category, details, evidenceHash string, now uint64) (*PracticeLogEntry, error) {
	if farmer.IsNil() {
		return nil, dErrors.New(dErrors.CodeLogInvalidInput, "caller principal is required")
	}
	if strings.TrimSpace(practiceType) == "" {
		return nil, dErrors.New(dErrors.CodeLogInvalidInput, "practice type cannot be empty")
	}
	if strings.TrimSpace(category) == "" {
		return nil, dErrors.New(dErrors.CodeLogInvalidInput, "category cannot be empty")
	}
	if strings.TrimSpace(details) == "" {
		return nil, dErrors.New(dErrors.CodeLogInvalidInput, "details cannot be empty")
	}
	return &PracticeLogEntry{
		Farmer:       farmer,
		PracticeType: practiceType,
		Category:     category,
		Details:      details,
		EvidenceHash: evidenceHash,
		Status:       ModerationPending,
		LoggedAt:     now,
	}, nil
}

// CanModerate checks whether a moderation decision may be applied.
func (e *PracticeLogEntry) CanModerate() error {
	if e.Status != ModerationPending {
		return dErrors.New(dErrors.CodeAlreadyModerated, "entry already moderated")
	}
	return nil
}

// ApplyModeration transitions the entry to a terminal status and records the
// notes and decision timestamp. Call CanModerate first.
func (e *PracticeLogEntry) ApplyModeration(status ModerationStatus, notes string, now uint64) {
	e.Status = status
	e.ModerationNotes = notes
	e.ModeratedAt = &now
}

// CanEdit checks whether entry content may still be replaced.
func (e *PracticeLogEntry) CanEdit() error {
	if e.Status != ModerationPending {
		return dErrors.New(dErrors.CodeAlreadyModerated, "entry already moderated")
	}
	return nil
}

// ApplyEdit unconditionally replaces details and evidence hash. Unlike
// profile patching there are no partial-preservation semantics. Call CanEdit
// first.
func (e *PracticeLogEntry) ApplyEdit(details, evidenceHash string) {
	e.Details = details
	e.EvidenceHash = evidenceHash
}

// Settings is the mutable role assignment record for the practice log.
type Settings struct {
	Owner     domain.Principal `json:"owner"`
	Moderator domain.Principal `json:"moderator"`
}
