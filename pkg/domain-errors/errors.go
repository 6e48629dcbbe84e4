// Package domainerrors provides coded domain errors. Services return these so
// transports and callers can dispatch on a stable numeric code instead of
// matching error strings.
//
// Stores do not use this package; they return sentinel errors
// (pkg/platform/sentinel) and services translate those into coded errors at
// the service boundary.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code identifies a failure class. The registry (1xx) and practice log (2xx)
// ranges are a wire contract shared with existing callers; the values must
// not be renumbered.
type Code int

const (
	// Identity registry codes.
	CodeNotAuthorized     Code = 100
	CodeAlreadyRegistered Code = 101
	CodeInvalidInput      Code = 102
	CodeNotRegistered     Code = 103
	CodeNotVerified       Code = 104
	CodeAlreadyVerified   Code = 105
	CodeInvalidStatus     Code = 106

	// Practice log codes.
	CodeLogNotAuthorized Code = 200
	CodeLogNotVerified   Code = 202
	CodeLogInvalidInput  Code = 203
	CodeLogNotFound      Code = 204
	CodeAlreadyModerated Code = 205

	// Transport-level codes, outside the contract ranges.
	CodeUnauthorized  Code = 401
	CodePaymentFailed Code = 402
	CodeInternal      Code = 500
)

// Error is a domain error carrying a numeric code. It wraps an optional
// underlying cause for errors.Is/As chains.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New constructs a coded domain error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error, preserving the
// cause for errors.Is matching.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) is a domain error with
// the given code.
func HasCode(err error, code Code) bool {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code == code
	}
	return false
}

// CodeOf extracts the code from a domain error. Returns CodeInternal for
// non-domain errors so transport mapping always has something to work with.
func CodeOf(err error) Code {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code
	}
	return CodeInternal
}

// Slug returns a stable machine-readable name for the code, used in JSON
// error envelopes alongside the numeric value.
func (c Code) Slug() string {
	switch c {
	case CodeNotAuthorized, CodeLogNotAuthorized:
		return "not_authorized"
	case CodeAlreadyRegistered:
		return "already_registered"
	case CodeInvalidInput, CodeLogInvalidInput:
		return "invalid_input"
	case CodeNotRegistered:
		return "not_registered"
	case CodeNotVerified, CodeLogNotVerified:
		return "not_verified"
	case CodeAlreadyVerified:
		return "already_verified"
	case CodeInvalidStatus:
		return "invalid_status"
	case CodeLogNotFound:
		return "log_not_found"
	case CodeAlreadyModerated:
		return "already_moderated"
	case CodeUnauthorized:
		return "unauthorized"
	case CodePaymentFailed:
		return "payment_failed"
	default:
		return "internal_error"
	}
}
