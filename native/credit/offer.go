package credit

import (
	"fmt"
	"math/big"

	"tenorbook/oracle"
)

// LoanOffer is a lender's standing limit order: a yield curve plus the latest
// due date the lender will accept.
type LoanOffer struct {
	MaxDueDate uint64     `json:"maxDueDate"`
	Curve      YieldCurve `json:"curve"`
}

// BorrowOffer is a borrower's standing limit order, bounded only by its curve.
type BorrowOffer struct {
	Curve YieldCurve `json:"curve"`
}

// IsNull reports whether the offer represents "no standing offer".
func (o LoanOffer) IsNull() bool {
	return o.MaxDueDate == 0 && o.Curve.IsNull()
}

// IsNull reports whether the offer represents "no standing offer".
func (o BorrowOffer) IsNull() bool {
	return o.Curve.IsNull()
}

// APRForTenor quotes the offer's annualized rate for the requested tenor.
func (o LoanOffer) APRForTenor(snap oracle.RateSnapshot, now, tenor uint64) (*big.Int, error) {
	return o.Curve.aprForTenor(snap, now, tenor)
}

// APRForTenor quotes the offer's annualized rate for the requested tenor.
func (o BorrowOffer) APRForTenor(snap oracle.RateSnapshot, now, tenor uint64) (*big.Int, error) {
	return o.Curve.aprForTenor(snap, now, tenor)
}

// RatePerTenor quotes the simple pro-rated rate over the whole tenor.
func (o LoanOffer) RatePerTenor(snap oracle.RateSnapshot, now, tenor uint64) (*big.Int, error) {
	return offerRatePerTenor(o.Curve, snap, now, tenor)
}

// RatePerTenor quotes the simple pro-rated rate over the whole tenor.
func (o BorrowOffer) RatePerTenor(snap oracle.RateSnapshot, now, tenor uint64) (*big.Int, error) {
	return offerRatePerTenor(o.Curve, snap, now, tenor)
}

// offerRatePerTenor is the single implementation behind both offer kinds.
func offerRatePerTenor(curve YieldCurve, snap oracle.RateSnapshot, now, tenor uint64) (*big.Int, error) {
	if tenor == 0 {
		return nil, fmt.Errorf("%w", errNullTenor)
	}
	apr, err := curve.aprForTenor(snap, now, tenor)
	if err != nil {
		return nil, err
	}
	return aprToRatePerTenor(apr, tenor), nil
}
