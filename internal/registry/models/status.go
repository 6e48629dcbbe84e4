package models

import (
	dErrors "agritrust/pkg/domain-errors"
)

// VerificationStatus is the lifecycle state of a farmer profile.
//
// Transitions: pending -> verified, pending -> rejected. Both targets are
// terminal; no operation moves a profile out of a decided state.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationRejected VerificationStatus = "rejected"
)

// ParseVerificationDecision validates a verifier-supplied target status.
// Only the two terminal states are valid decisions; pending is not a
// decision.
func ParseVerificationDecision(s string) (VerificationStatus, error) {
	status := VerificationStatus(s)
	if status != VerificationVerified && status != VerificationRejected {
		return "", dErrors.New(dErrors.CodeInvalidStatus, "status must be verified or rejected")
	}
	return status, nil
}

// IsTerminal reports whether the status is a decided, immutable state.
func (s VerificationStatus) IsTerminal() bool {
	return s == VerificationVerified || s == VerificationRejected
}

// CanTransitionTo reports whether the state machine allows moving to target.
func (s VerificationStatus) CanTransitionTo(target VerificationStatus) bool {
	return s == VerificationPending && target.IsTerminal()
}
