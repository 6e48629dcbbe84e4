package models

import (
	"strings"

	"agritrust/pkg/domain"
	dErrors "agritrust/pkg/domain-errors"
)

// FarmerProfile is the aggregate owned by the identity registry, one per
// caller principal.
//
// Invariants:
//   - ID is assigned sequentially starting at 1 and is never reused
//   - At most one profile exists per principal
//   - Status starts at pending and transitions at most once, to verified or
//     rejected (terminal)
//   - Active defaults to true and can only be cleared, never restored
//   - RegisteredAt is immutable after construction
type FarmerProfile struct {
	ID             domain.FarmerID    `json:"id"`
	Principal      domain.Principal   `json:"principal"`
	Name           string             `json:"name"`
	Location       string             `json:"location"`
	FarmSize       float64            `json:"farm_size"`
	AdditionalInfo string             `json:"additional_info,omitempty"`
	Status         VerificationStatus `json:"verification_status"`
	RegisteredAt   uint64             `json:"registration_timestamp"`
	VerifiedAt     *uint64            `json:"verification_timestamp,omitempty"`
	Active         bool               `json:"active"`
}

// NewFarmerProfile validates registration input and constructs a pending
// profile. The ID is assigned by the store at creation time.
func NewFarmerProfile(principal domain.Principal, name, location string, farmSize float64, additionalInfo string, now uint64) (*FarmerProfile, error) {
	if principal.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "caller principal is required")
	}
	if strings.TrimSpace(name) == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "name cannot be empty")
	}
	if strings.TrimSpace(location) == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "location cannot be empty")
	}
	if farmSize <= 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "farm size must be positive")
	}
	return &FarmerProfile{
		Principal:      principal,
		Name:           name,
		Location:       location,
		FarmSize:       farmSize,
		AdditionalInfo: additionalInfo,
		Status:         VerificationPending,
		RegisteredAt:   now,
		Active:         true,
	}, nil
}

// IsVerified reports whether the profile has been positively verified.
func (p *FarmerProfile) IsVerified() bool {
	return p.Status == VerificationVerified
}

// CanDecide checks whether a verification decision may be applied.
// Returns CodeAlreadyVerified for any profile no longer in pending; the code
// covers "not in a verifiable state" generally, matching the wire contract.
func (p *FarmerProfile) CanDecide() error {
	if p.Status != VerificationPending {
		return dErrors.New(dErrors.CodeAlreadyVerified, "profile already decided")
	}
	return nil
}

// ApplyDecision transitions the profile to a terminal status and records the
// decision timestamp. Call CanDecide first.
func (p *FarmerProfile) ApplyDecision(status VerificationStatus, now uint64) {
	p.Status = status
	p.VerifiedAt = &now
}

// ProfilePatch carries optional overrides for UpdateProfile. Nil fields are
// left unchanged.
//
// A present-but-zero override (empty string, zero size) is also treated as
// "no override": the behavior existing callers depend on conflates absent
// with empty, so a field cannot be cleared to its zero value through this
// operation.
type ProfilePatch struct {
	Name           *string  `json:"name,omitempty"`
	Location       *string  `json:"location,omitempty"`
	FarmSize       *float64 `json:"farm_size,omitempty"`
	AdditionalInfo *string  `json:"additional_info,omitempty"`
}

// CanUpdate checks whether profile fields may be edited.
func (p *FarmerProfile) CanUpdate() error {
	if p.Status != VerificationVerified {
		return dErrors.New(dErrors.CodeNotVerified, "profile is not verified")
	}
	return nil
}

// ApplyPatch overwrites each provided, non-zero field and leaves the rest
// unchanged. Call CanUpdate first.
func (p *FarmerProfile) ApplyPatch(patch ProfilePatch) {
	if patch.Name != nil && *patch.Name != "" {
		p.Name = *patch.Name
	}
	if patch.Location != nil && *patch.Location != "" {
		p.Location = *patch.Location
	}
	if patch.FarmSize != nil && *patch.FarmSize > 0 {
		p.FarmSize = *patch.FarmSize
	}
	if patch.AdditionalInfo != nil && *patch.AdditionalInfo != "" {
		p.AdditionalInfo = *patch.AdditionalInfo
	}
}

// ApplyDeactivation clears the active flag. There is no reactivation.
func (p *FarmerProfile) ApplyDeactivation() {
	p.Active = false
}

// Settings is the mutable configuration record for the registry: role
// assignments plus fee and balance state. It lives in the store and is
// mutated only inside the store's atomic sections.
type Settings struct {
	Owner           domain.Principal `json:"owner"`
	Verifier        domain.Principal `json:"verifier"`
	RegistrationFee uint64           `json:"registration_fee"`
	Balance         uint64           `json:"balance"`
}
