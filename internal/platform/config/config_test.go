package config

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"agritrust/internal/ledger"
	"agritrust/pkg/domain"
)

func Test_FromEnv_Defaults(t *testing.T) {
	cfg := FromEnv()

	require.Equal(t, ":8080", cfg.Addr)
	require.Equal(t, domain.Principal("agritrust-fees"), cfg.FeeAccount)
	require.Zero(t, cfg.RegistrationFee)
	require.Nil(t, cfg.LedgerSeed)
}

func Test_FromEnv_LedgerSeed(t *testing.T) {
	t.Setenv("AGRITRUST_LEDGER_SEED", "farmer-1:1000, farmer-2:250,broken,other:abc,:5")

	cfg := FromEnv()

	require.Equal(t, map[domain.Principal]uint64{
		"farmer-1": 1000,
		"farmer-2": 250,
	}, cfg.LedgerSeed)
}

func Test_FromEnv_LedgerSeedFundsRegistrationFee(t *testing.T) {
	t.Setenv("AGRITRUST_LEDGER_SEED", "farmer-1:100")
	t.Setenv("AGRITRUST_REGISTRATION_FEE", "25")

	cfg := FromEnv()
	bank := ledger.NewInMemoryLedger(cfg.LedgerSeed)

	err := bank.Transfer(context.Background(), "farmer-1", cfg.FeeAccount, cfg.RegistrationFee)
	require.NoError(t, err)
	require.EqualValues(t, 75, bank.Balance(context.Background(), "farmer-1"))
	require.EqualValues(t, 25, bank.Balance(context.Background(), cfg.FeeAccount))
}
