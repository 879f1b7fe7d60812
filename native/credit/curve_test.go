package credit

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"tenorbook/oracle"
)

func flatMultipliers(n int) []*big.Int {
	multipliers := make([]*big.Int, n)
	for i := range multipliers {
		multipliers[i] = big.NewInt(0)
	}
	return multipliers
}

func freshSnapshot() oracle.RateSnapshot {
	return oracle.RateSnapshot{
		VariablePoolBorrowRate: big.NewInt(0),
		UpdatedAt:              1_000_000,
		StaleInterval:          3600,
	}
}

func TestCurveValidate(t *testing.T) {
	curve := YieldCurve{
		Tenors:                []uint64{100, 200},
		APRs:                  []*big.Int{wadPercent(1, 10), wadPercent(1, 5)},
		MarketRateMultipliers: flatMultipliers(2),
	}
	require.NoError(t, curve.validate(60, yearSeconds))

	empty := YieldCurve{}
	require.ErrorIs(t, empty.validate(60, yearSeconds), errInvalidCurve)

	mismatched := curve
	mismatched.APRs = mismatched.APRs[:1]
	require.ErrorIs(t, mismatched.validate(60, yearSeconds), errInvalidCurve)

	unsorted := YieldCurve{
		Tenors:                []uint64{200, 100},
		APRs:                  []*big.Int{wadPercent(1, 10), wadPercent(1, 5)},
		MarketRateMultipliers: flatMultipliers(2),
	}
	require.ErrorIs(t, unsorted.validate(60, yearSeconds), errInvalidCurve)

	require.ErrorIs(t, curve.validate(150, yearSeconds), errInvalidCurve)
	require.ErrorIs(t, curve.validate(60, 150), errInvalidCurve)
}

func TestAprForTenorInterpolates(t *testing.T) {
	curve := YieldCurve{
		Tenors:                []uint64{100, 200},
		APRs:                  []*big.Int{wadPercent(1, 10), wadPercent(1, 5)},
		MarketRateMultipliers: flatMultipliers(2),
	}
	snap := freshSnapshot()

	// Midpoint of 10% and 20% is 15%.
	apr, err := curve.aprForTenor(snap, 1_000_000, 150)
	require.NoError(t, err)
	require.Equal(t, wadPercent(3, 20), apr)

	// Exact knots return the configured APR.
	apr, err = curve.aprForTenor(snap, 1_000_000, 100)
	require.NoError(t, err)
	require.Equal(t, wadPercent(1, 10), apr)

	apr, err = curve.aprForTenor(snap, 1_000_000, 200)
	require.NoError(t, err)
	require.Equal(t, wadPercent(1, 5), apr)
}

func TestAprForTenorDecreasingSegment(t *testing.T) {
	curve := YieldCurve{
		Tenors:                []uint64{100, 200},
		APRs:                  []*big.Int{wadPercent(1, 5), wadPercent(1, 10)},
		MarketRateMultipliers: flatMultipliers(2),
	}
	apr, err := curve.aprForTenor(freshSnapshot(), 1_000_000, 150)
	require.NoError(t, err)
	require.Equal(t, wadPercent(3, 20), apr)
}

func TestAprForTenorOutOfRange(t *testing.T) {
	curve := YieldCurve{
		Tenors:                []uint64{100, 200},
		APRs:                  []*big.Int{wadPercent(1, 10), wadPercent(1, 5)},
		MarketRateMultipliers: flatMultipliers(2),
	}
	_, err := curve.aprForTenor(freshSnapshot(), 1_000_000, 99)
	require.ErrorIs(t, err, errTenorOutOfRange)

	_, err = curve.aprForTenor(freshSnapshot(), 1_000_000, 201)
	require.ErrorIs(t, err, errTenorOutOfRange)
}

func TestAdjustedAPRUsesVariableRate(t *testing.T) {
	snap := freshSnapshot()
	snap.VariablePoolBorrowRate = wadPercent(1, 25) // 4%

	// Multiplier 1.0 adds the full variable rate.
	apr, err := getAdjustedAPR(wadPercent(1, 10), Percent, snap, 1_000_000)
	require.NoError(t, err)
	require.Equal(t, wadPercent(7, 50), apr)

	// Zero multiplier pins the fixed APR and skips the staleness check.
	stale := snap
	stale.UpdatedAt = 0
	apr, err = getAdjustedAPR(wadPercent(1, 10), big.NewInt(0), stale, 1_000_000)
	require.NoError(t, err)
	require.Equal(t, wadPercent(1, 10), apr)
}

func TestAdjustedAPRStaleRate(t *testing.T) {
	snap := freshSnapshot()
	snap.UpdatedAt = 1_000_000 - 7200

	_, err := getAdjustedAPR(wadPercent(1, 10), Percent, snap, 1_000_000)
	require.ErrorIs(t, err, errStaleRate)
}

func TestAdjustedAPRRejectsNegativeOutcome(t *testing.T) {
	snap := freshSnapshot()
	snap.VariablePoolBorrowRate = new(big.Int).Neg(wadPercent(1, 5))

	_, err := getAdjustedAPR(wadPercent(1, 10), Percent, snap, 1_000_000)
	require.ErrorIs(t, err, errNegativeRate)

	_, err = getAdjustedAPR(new(big.Int).Neg(Percent), big.NewInt(0), snap, 1_000_000)
	require.ErrorIs(t, err, errNegativeAPR)
}

func TestOfferRatePerTenorRejectsZeroTenor(t *testing.T) {
	offer := LoanOffer{
		MaxDueDate: 2_000_000,
		Curve: YieldCurve{
			Tenors:                []uint64{100, 200},
			APRs:                  []*big.Int{wadPercent(1, 10), wadPercent(1, 5)},
			MarketRateMultipliers: flatMultipliers(2),
		},
	}
	_, err := offer.RatePerTenor(freshSnapshot(), 1_000_000, 0)
	require.ErrorIs(t, err, errNullTenor)
}
