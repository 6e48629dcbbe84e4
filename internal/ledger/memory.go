package ledger

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"agritrust/pkg/domain"
)

// InMemoryLedger keeps account balances in memory for dev and tests. It
// intentionally favors clarity over performance.
type InMemoryLedger struct {
	mu       sync.RWMutex
	balances map[domain.Principal]uint64
}

// NewInMemoryLedger constructs a ledger pre-funded with the given balances.
func NewInMemoryLedger(seed map[domain.Principal]uint64) *InMemoryLedger {
	balances := make(map[domain.Principal]uint64, len(seed))
	for account, amount := range seed {
		balances[account] = amount
	}
	return &InMemoryLedger{balances: balances}
}

// Transfer moves amount from one account to another, or fails without moving
// anything. A zero amount succeeds without touching either account.
func (l *InMemoryLedger) Transfer(_ context.Context, from, to domain.Principal, amount uint64) error {
	if amount == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	available, ok := l.balances[from]
	if !ok {
		return fmt.Errorf("transfer from %s: %w", from, ErrNoAccount)
	}
	if available < amount {
		return fmt.Errorf("transfer of %d from %s: %w", amount, from, ErrInsufficientFunds)
	}
	l.balances[from] = available - amount
	l.balances[to] += amount
	return nil
}

func (l *InMemoryLedger) Balance(_ context.Context, account domain.Principal) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[account]
}

// Credit adds funds to an account. Test and bootstrap helper; not part of the
// Ledger interface consumed by services.
func (l *InMemoryLedger) Credit(account domain.Principal, amount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[account] += amount
}

// LogicalClock is a strictly increasing counter backed by an atomic. The zero
// value is ready to use; the first Now returns 1.
type LogicalClock struct {
	counter atomic.Uint64
}

func NewLogicalClock() *LogicalClock {
	return &LogicalClock{}
}

func (c *LogicalClock) Now() uint64 {
	return c.counter.Add(1)
}
