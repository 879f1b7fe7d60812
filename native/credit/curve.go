package credit

import (
	"fmt"
	"math/big"

	"tenorbook/oracle"
)

// YieldCurve is a borrower- or lender-supplied piecewise APR curve over
// strictly increasing relative tenors. Each point optionally tracks the
// external variable borrow rate through its market-rate multiplier; a zero
// multiplier pins the point to its fixed APR.
type YieldCurve struct {
	// Tenors are relative durations in seconds, strictly increasing.
	Tenors []uint64 `json:"tenors"`
	// APRs are 1e18-scaled annual rates, signed so curves can price below
	// the variable rate.
	APRs []*big.Int `json:"aprs"`
	// MarketRateMultipliers scale the variable rate contribution per point,
	// 1e18 scaled.
	MarketRateMultipliers []*big.Int `json:"marketRateMultipliers"`
}

// IsNull reports whether the curve carries no points.
func (c YieldCurve) IsNull() bool {
	return len(c.Tenors) == 0 && len(c.APRs) == 0 && len(c.MarketRateMultipliers) == 0
}

// validate rejects malformed curves: empty or mismatched arrays, tenors that
// are not strictly increasing, or endpoints outside the configured tenor
// bounds. The monotonicity scan walks from the end backward so the failure
// indexes the earliest offending pair reached.
func (c YieldCurve) validate(minTenor, maxTenor uint64) error {
	if len(c.Tenors) == 0 || len(c.APRs) == 0 || len(c.MarketRateMultipliers) == 0 {
		return fmt.Errorf("%w: empty curve arrays", errInvalidCurve)
	}
	if len(c.Tenors) != len(c.APRs) || len(c.Tenors) != len(c.MarketRateMultipliers) {
		return fmt.Errorf("%w: array lengths %d/%d/%d", errInvalidCurve, len(c.Tenors), len(c.APRs), len(c.MarketRateMultipliers))
	}
	for i := len(c.Tenors) - 2; i >= 0; i-- {
		if c.Tenors[i] >= c.Tenors[i+1] {
			return fmt.Errorf("%w: tenors not strictly increasing at index %d", errInvalidCurve, i)
		}
	}
	if c.Tenors[0] < minTenor {
		return fmt.Errorf("%w: first tenor %d below minimum %d", errInvalidCurve, c.Tenors[0], minTenor)
	}
	if last := c.Tenors[len(c.Tenors)-1]; last > maxTenor {
		return fmt.Errorf("%w: last tenor %d above maximum %d", errInvalidCurve, last, maxTenor)
	}
	return nil
}

// getAdjustedAPR resolves a curve point to an unsigned APR. A zero multiplier
// returns the fixed APR unchanged; otherwise the variable rate contribution
// is added after the staleness check. Negative outcomes are rejected rather
// than clamped.
func getAdjustedAPR(apr, marketRateMultiplier *big.Int, snap oracle.RateSnapshot, now uint64) (*big.Int, error) {
	if marketRateMultiplier == nil || marketRateMultiplier.Sign() == 0 {
		if apr.Sign() < 0 {
			return nil, fmt.Errorf("%w: %s", errNegativeAPR, apr)
		}
		return new(big.Int).Set(apr), nil
	}
	if snap.IsStale(now) {
		return nil, fmt.Errorf("%w: updated at %d, interval %d, now %d", errStaleRate, snap.UpdatedAt, snap.StaleInterval, now)
	}
	variable := snap.VariablePoolBorrowRate
	if variable == nil {
		variable = big.NewInt(0)
	}
	adjusted := new(big.Int).Add(apr, mulDivDown(variable, marketRateMultiplier, Percent))
	if adjusted.Sign() < 0 {
		return nil, fmt.Errorf("%w: %s", errNegativeRate, adjusted)
	}
	return adjusted, nil
}

// aprForTenor evaluates the curve at the requested tenor. Exact knots return
// the adjusted APR directly; interior tenors interpolate linearly between the
// bracketing knots, with the subtraction ordered so intermediates never go
// negative.
func (c YieldCurve) aprForTenor(snap oracle.RateSnapshot, now, tenor uint64) (*big.Int, error) {
	if len(c.Tenors) == 0 || tenor < c.Tenors[0] || tenor > c.Tenors[len(c.Tenors)-1] {
		return nil, fmt.Errorf("%w: tenor %d not within curve bounds", errTenorOutOfRange, tenor)
	}
	low, high := binarySearch(c.Tenors, tenor)
	if low == notFound {
		return nil, fmt.Errorf("%w: tenor %d not within curve bounds", errTenorOutOfRange, tenor)
	}
	y0, err := getAdjustedAPR(c.APRs[low], c.MarketRateMultipliers[low], snap, now)
	if err != nil {
		return nil, err
	}
	if low == high {
		return y0, nil
	}
	y1, err := getAdjustedAPR(c.APRs[high], c.MarketRateMultipliers[high], snap, now)
	if err != nil {
		return nil, err
	}
	x0, x1 := c.Tenors[low], c.Tenors[high]
	span := new(big.Int).SetUint64(x1 - x0)
	offset := new(big.Int).SetUint64(tenor - x0)
	if y1.Cmp(y0) >= 0 {
		delta := new(big.Int).Sub(y1, y0)
		return new(big.Int).Add(y0, mulDivDown(delta, offset, span)), nil
	}
	delta := new(big.Int).Sub(y0, y1)
	return new(big.Int).Sub(y0, mulDivDown(delta, offset, span)), nil
}
