package credit

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func newSwapEnv(t *testing.T) *testEnv {
	t.Helper()
	env := newTestEnv(t)
	cfg := testConfig()
	cfg.SwapFeeAPR = wadPercent(1, 200) // 0.5% per year
	cfg.FragmentationFee = big.NewInt(5)
	env.engine = NewEngine(env.feeRecipient, cfg)
	env.engine.SetState(env.state)
	env.engine.SetPriceFeed(env.priceFeed)
	env.engine.SetRateFeed(env.rateFeed)
	env.engine.SetVenue(env.venue)
	env.engine.SetTimestamp(1_000_000)
	return env
}

func TestGetCashAmountOutFullConsumption(t *testing.T) {
	env := newSwapEnv(t)
	rate := wadPercent(1, 10) // 10% over the tenor

	cashOut, fees, err := env.engine.getCashAmountOut(big.NewInt(1100), big.NewInt(1100), rate, yearSeconds)
	require.NoError(t, err)
	// Cash value 1000, swap fee 5, no fragmentation.
	require.Equal(t, big.NewInt(995), cashOut)
	require.Equal(t, big.NewInt(5), fees)
}

func TestGetCashAmountOutFragmenting(t *testing.T) {
	env := newSwapEnv(t)
	rate := wadPercent(1, 10)

	cashOut, fees, err := env.engine.getCashAmountOut(big.NewInt(550), big.NewInt(1100), rate, yearSeconds)
	require.NoError(t, err)
	// Cash value 500, swap fee 3 (rounded up), fragmentation fee 5.
	require.Equal(t, big.NewInt(492), cashOut)
	require.Equal(t, big.NewInt(8), fees)
}

func TestGetCashAmountOutFeesExceedValue(t *testing.T) {
	env := newSwapEnv(t)

	_, _, err := env.engine.getCashAmountOut(big.NewInt(2), big.NewInt(1100), wadPercent(1, 10), yearSeconds)
	require.ErrorIs(t, err, errNotEnoughCash)
}

func TestGetCreditAmountInRoundTrip(t *testing.T) {
	env := newSwapEnv(t)
	rate := wadPercent(1, 10)

	creditIn, fees, err := env.engine.getCreditAmountIn(big.NewInt(995), big.NewInt(1100), rate, yearSeconds)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(1100), creditIn)
	require.Equal(t, big.NewInt(5), fees)
}

func TestGetCreditAmountInExceedsPosition(t *testing.T) {
	env := newSwapEnv(t)

	_, _, err := env.engine.getCreditAmountIn(big.NewInt(5000), big.NewInt(1100), wadPercent(1, 10), yearSeconds)
	require.ErrorIs(t, err, errNotEnoughCredit)
}

func TestGetCreditAmountOut(t *testing.T) {
	env := newSwapEnv(t)
	rate := wadPercent(1, 10)

	creditOut, fees, err := env.engine.getCreditAmountOut(big.NewInt(1000), big.NewInt(1100), rate, yearSeconds)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(1100), creditOut)
	require.Equal(t, big.NewInt(5), fees)

	// A partial buy pays the fragmentation fee on top.
	creditOut, fees, err = env.engine.getCreditAmountOut(big.NewInt(500), big.NewInt(1100), rate, yearSeconds)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(550), creditOut)
	require.Equal(t, big.NewInt(8), fees)

	_, _, err = env.engine.getCreditAmountOut(big.NewInt(2000), big.NewInt(1100), rate, yearSeconds)
	require.ErrorIs(t, err, errNotEnoughCredit)
}

func TestGetCashAmountIn(t *testing.T) {
	env := newSwapEnv(t)
	rate := wadPercent(1, 10)

	cashIn, fees, err := env.engine.getCashAmountIn(big.NewInt(1100), big.NewInt(1100), rate, yearSeconds)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(1000), cashIn)
	require.Equal(t, big.NewInt(5), fees)

	_, _, err = env.engine.getCashAmountIn(big.NewInt(1200), big.NewInt(1100), rate, yearSeconds)
	require.ErrorIs(t, err, errNotEnoughCredit)
}

func TestSwapFeeScalesWithTenor(t *testing.T) {
	env := newSwapEnv(t)

	full := env.engine.swapFeePercent(yearSeconds)
	half := env.engine.swapFeePercent(yearSeconds / 2)
	require.Equal(t, wadPercent(1, 200), full)
	require.Equal(t, wadPercent(1, 400), half)
}
