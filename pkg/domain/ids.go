package domain

import (
	"strconv"

	dErrors "agritrust/pkg/domain-errors"
)

// Principal is the caller identity an operation executes on behalf of. It is
// used both as an authorization subject and as a record key, so it must be
// non-empty.
//
// Usage: construct via ParsePrincipal at trust boundaries (HTTP handlers,
// token claims); direct casting bypasses validation.
type Principal string

// ParsePrincipal constructs a Principal from external input.
//
// Errors: returns CodeInvalidInput when the value is empty; no other errors
// are expected.
func ParsePrincipal(s string) (Principal, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "principal cannot be empty")
	}
	return Principal(s), nil
}

func (p Principal) String() string {
	return string(p)
}

// IsNil returns true if the principal is empty.
func (p Principal) IsNil() bool {
	return p == ""
}

// FarmerID is the registry-assigned farmer identifier. IDs are allocated
// sequentially starting at 1 and are never reused, so zero is never a valid
// ID.
type FarmerID uint64

// ParseFarmerID validates and returns a FarmerID from its decimal string form.
func ParseFarmerID(s string) (FarmerID, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "invalid farmer id")
	}
	return FarmerID(n), nil
}

func (id FarmerID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// IsNil returns true if the ID is the unassigned zero value.
func (id FarmerID) IsNil() bool {
	return id == 0
}
