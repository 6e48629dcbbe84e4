package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agritrust/pkg/domain"
)

func TestInMemoryLedger_Transfer(t *testing.T) {
	ctx := context.Background()

	t.Run("moves the full amount on success", func(t *testing.T) {
		l := NewInMemoryLedger(map[domain.Principal]uint64{"alice": 100})

		require.NoError(t, l.Transfer(ctx, "alice", "registry", 40))
		assert.Equal(t, uint64(60), l.Balance(ctx, "alice"))
		assert.Equal(t, uint64(40), l.Balance(ctx, "registry"))
	})

	t.Run("fails without side effects when funds are short", func(t *testing.T) {
		l := NewInMemoryLedger(map[domain.Principal]uint64{"alice": 10})

		err := l.Transfer(ctx, "alice", "registry", 40)
		require.ErrorIs(t, err, ErrInsufficientFunds)
		assert.Equal(t, uint64(10), l.Balance(ctx, "alice"))
		assert.Equal(t, uint64(0), l.Balance(ctx, "registry"))
	})

	t.Run("fails for unknown source account", func(t *testing.T) {
		l := NewInMemoryLedger(nil)

		err := l.Transfer(ctx, "ghost", "registry", 1)
		require.ErrorIs(t, err, ErrNoAccount)
	})

	t.Run("zero amount is a no-op success", func(t *testing.T) {
		l := NewInMemoryLedger(nil)

		require.NoError(t, l.Transfer(ctx, "ghost", "registry", 0))
	})
}

func TestLogicalClock_StrictlyIncreasing(t *testing.T) {
	clock := NewLogicalClock()

	prev := uint64(0)
	for i := 0; i < 1000; i++ {
		now := clock.Now()
		require.Greater(t, now, prev)
		prev = now
	}
}
