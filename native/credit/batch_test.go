package credit

import (
	"math/big"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newCappedEnv(t *testing.T, cap int64) *testEnv {
	t.Helper()
	env := newTestEnv(t)
	cfg := testConfig()
	cfg.CashDepositCap = big.NewInt(cap)
	env.engine = NewEngine(env.feeRecipient, cfg)
	env.engine.SetState(env.state)
	env.engine.SetTimestamp(1_000_000)
	return env
}

func TestBatchDefersDepositCap(t *testing.T) {
	env := newCappedEnv(t, 500)

	id, err := env.engine.BeginBatch()
	require.NoError(t, err)

	// Mid-batch the aggregate may overshoot the cap as long as the batch
	// closes back under it.
	require.NoError(t, env.engine.DepositCash(env.lender, big.NewInt(800)))
	require.NoError(t, env.engine.WithdrawCash(env.lender, big.NewInt(400)))

	require.NoError(t, env.engine.EndBatch(id))
}

func TestBatchEndEnforcesCap(t *testing.T) {
	env := newCappedEnv(t, 500)

	id, err := env.engine.BeginBatch()
	require.NoError(t, err)
	require.NoError(t, env.engine.DepositCash(env.lender, big.NewInt(800)))

	err = env.engine.EndBatch(id)
	require.ErrorIs(t, err, errCashDepositCapExceeded)

	// The batch stays open so the caller can unwind and retry.
	require.NoError(t, env.engine.WithdrawCash(env.lender, big.NewInt(400)))
	require.NoError(t, env.engine.EndBatch(id))
}

func TestBatchSingleOpenContext(t *testing.T) {
	env := newTestEnv(t)

	id, err := env.engine.BeginBatch()
	require.NoError(t, err)

	_, err = env.engine.BeginBatch()
	require.ErrorIs(t, err, errBatchAlreadyOpen)

	require.ErrorIs(t, env.engine.EndBatch(uuid.New()), errNoBatchOpen)
	require.NoError(t, env.engine.EndBatch(id))
	require.ErrorIs(t, env.engine.EndBatch(id), errNoBatchOpen)
}
