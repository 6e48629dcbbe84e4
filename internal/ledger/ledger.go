// Package ledger abstracts the two facilities the registry and practice log
// borrow from their hosting environment: atomic value transfer that can fail,
// and a monotonic logical clock used as a timestamp substitute.
package ledger

import (
	"context"
	"errors"

	"agritrust/pkg/domain"
)

// ErrInsufficientFunds is returned by Transfer when the source account cannot
// cover the amount. Callers propagate it; nothing retries internally.
var ErrInsufficientFunds = errors.New("insufficient funds")

// ErrNoAccount is returned when the source account does not exist.
var ErrNoAccount = errors.New("no such account")

// Ledger is an atomic value-transfer facility. Transfer either moves the full
// amount or moves nothing and returns an error.
type Ledger interface {
	Transfer(ctx context.Context, from, to domain.Principal, amount uint64) error
	Balance(ctx context.Context, account domain.Principal) uint64
}

// Clock is a monotonic logical clock. Every call to Now returns a value
// strictly greater than any previously returned value.
type Clock interface {
	Now() uint64
}
