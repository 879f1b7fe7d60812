package credit

import (
	"fmt"
	"math/big"
)

// The conversions below exchange credit (future value) against cash at a
// simple pro-rated rate: cash value V = credit / (1 + ratePerTenor). The swap
// fee is charged on the cash leg and the flat fragmentation fee applies only
// when an existing credit position is partially consumed. Rounding is
// protocol-favorable throughout: amounts the protocol or a lender will
// receive round up, amounts paid out round down. That asymmetry is what keeps
// rounding from leaking value; do not make it symmetric.

// swapFeePercent prices the protocol fee for a tenor: swapFeeAPR * tenor /
// year, rounded up.
func (e *Engine) swapFeePercent(tenor uint64) *big.Int {
	return mulDivUp(e.cfg.SwapFeeAPR, new(big.Int).SetUint64(tenor), year)
}

// swapFee applies the tenor fee percent to a cash amount, rounded up.
func (e *Engine) swapFee(cash *big.Int, tenor uint64) *big.Int {
	return mulDivUp(cash, e.swapFeePercent(tenor), Percent)
}

// getCashAmountOut converts credit sold into net cash for the seller.
// creditAmountIn < maxCredit marks a fragmentation (partial consumption).
func (e *Engine) getCashAmountOut(creditAmountIn, maxCredit, ratePerTenor *big.Int, tenor uint64) (cashAmountOut, fees *big.Int, err error) {
	value := mulDivDown(creditAmountIn, Percent, new(big.Int).Add(Percent, ratePerTenor))
	fees = e.swapFee(value, tenor)
	if creditAmountIn.Cmp(maxCredit) < 0 {
		fees = new(big.Int).Add(fees, e.cfg.FragmentationFee)
	}
	if fees.Cmp(value) > 0 {
		return nil, nil, fmt.Errorf("%w: fees %s, cash value %s", errNotEnoughCash, fees, value)
	}
	return new(big.Int).Sub(value, fees), fees, nil
}

// getCreditAmountIn inverts getCashAmountOut: the credit that must be sold to
// net the requested cash. The full-consumption path is tried first; only when
// the position would be left partially consumed does the fragmentation fee
// enter the solve.
func (e *Engine) getCreditAmountIn(cashAmountOut, maxCredit, ratePerTenor *big.Int, tenor uint64) (creditAmountIn, fees *big.Int, err error) {
	feePercent := e.swapFeePercent(tenor)
	netPercent := new(big.Int).Sub(Percent, feePercent)
	onePlusRate := new(big.Int).Add(Percent, ratePerTenor)

	value := mulDivUp(cashAmountOut, Percent, netPercent)
	creditAmountIn = mulDivUp(value, onePlusRate, Percent)
	switch creditAmountIn.Cmp(maxCredit) {
	case 0:
		return creditAmountIn, e.swapFee(value, tenor), nil
	case 1:
		return nil, nil, fmt.Errorf("%w: need %s credit, position holds %s", errNotEnoughCredit, creditAmountIn, maxCredit)
	}

	// Partial consumption: the flat fee comes out of the same cash value.
	value = mulDivUp(new(big.Int).Add(cashAmountOut, e.cfg.FragmentationFee), Percent, netPercent)
	creditAmountIn = mulDivUp(value, onePlusRate, Percent)
	if creditAmountIn.Cmp(maxCredit) > 0 {
		return nil, nil, fmt.Errorf("%w: need %s credit with fragmentation fee, position holds %s", errNotEnoughCredit, creditAmountIn, maxCredit)
	}
	fees = new(big.Int).Add(e.swapFee(value, tenor), e.cfg.FragmentationFee)
	return creditAmountIn, fees, nil
}

// getCreditAmountOut converts cash paid by a buyer into the credit received.
// The buyer pays the full cash value; fees come out of the seller's proceeds.
func (e *Engine) getCreditAmountOut(cashAmountIn, maxCredit, ratePerTenor *big.Int, tenor uint64) (creditAmountOut, fees *big.Int, err error) {
	creditAmountOut = mulDivDown(cashAmountIn, new(big.Int).Add(Percent, ratePerTenor), Percent)
	if creditAmountOut.Cmp(maxCredit) > 0 {
		return nil, nil, fmt.Errorf("%w: %s cash buys %s credit, position holds %s", errNotEnoughCredit, cashAmountIn, creditAmountOut, maxCredit)
	}
	fees = e.swapFee(cashAmountIn, tenor)
	if creditAmountOut.Cmp(maxCredit) < 0 {
		fees = new(big.Int).Add(fees, e.cfg.FragmentationFee)
	}
	if fees.Cmp(cashAmountIn) > 0 {
		return nil, nil, fmt.Errorf("%w: fees %s, cash in %s", errNotEnoughCash, fees, cashAmountIn)
	}
	return creditAmountOut, fees, nil
}

// getCashAmountIn inverts getCreditAmountOut: the cash a buyer must pay for
// the requested credit, rounded up.
func (e *Engine) getCashAmountIn(creditAmountOut, maxCredit, ratePerTenor *big.Int, tenor uint64) (cashAmountIn, fees *big.Int, err error) {
	if creditAmountOut.Cmp(maxCredit) > 0 {
		return nil, nil, fmt.Errorf("%w: requested %s, position holds %s", errNotEnoughCredit, creditAmountOut, maxCredit)
	}
	cashAmountIn = mulDivUp(creditAmountOut, Percent, new(big.Int).Add(Percent, ratePerTenor))
	fees = e.swapFee(cashAmountIn, tenor)
	if creditAmountOut.Cmp(maxCredit) < 0 {
		fees = new(big.Int).Add(fees, e.cfg.FragmentationFee)
	}
	if fees.Cmp(cashAmountIn) > 0 {
		return nil, nil, fmt.Errorf("%w: fees %s, cash in %s", errNotEnoughCash, fees, cashAmountIn)
	}
	return cashAmountIn, fees, nil
}
