package credit

import (
	"math"
	"math/big"

	"tenorbook/crypto"
)

const (
	// debtPositionIDStart is the first identifier handed to a debt position.
	debtPositionIDStart uint64 = 1
	// creditPositionIDStart offsets credit position identifiers into their
	// own range so a bare position id is never ambiguous.
	creditPositionIDStart uint64 = 1 << 32
	// ReservedID signals "no existing position" in market order and
	// compensation parameters.
	ReservedID uint64 = math.MaxUint64
)

// LoanStatus is derived from debt position fields at read time, never stored.
type LoanStatus uint8

const (
	// LoanStatusActive marks an unpaid loan before its due date.
	LoanStatusActive LoanStatus = iota
	// LoanStatusOverdue marks an unpaid loan past its due date.
	LoanStatusOverdue
	// LoanStatusRepaid marks a loan whose future value reached zero.
	LoanStatusRepaid
)

func (s LoanStatus) String() string {
	switch s {
	case LoanStatusActive:
		return "active"
	case LoanStatusOverdue:
		return "overdue"
	case LoanStatusRepaid:
		return "repaid"
	default:
		return "unknown"
	}
}

// DebtPosition records a borrower's obligation. Positions are never deleted;
// a repaid position remains addressable as a historical record.
type DebtPosition struct {
	ID       uint64         `json:"id"`
	Borrower crypto.Address `json:"borrower"`
	// FutureValue is the amount owed at DueDate, in borrow-token units.
	FutureValue *big.Int `json:"futureValue"`
	// DueDate is the absolute timestamp after which the loan is overdue.
	DueDate uint64 `json:"dueDate"`
	// LiquidityIndexAtRepayment snapshots the yield-venue index at repayment
	// time and stays zero until then.
	LiquidityIndexAtRepayment *big.Int `json:"liquidityIndexAtRepayment"`
}

// Normalize replaces nil money fields with zero values.
func (p *DebtPosition) Normalize() {
	if p.FutureValue == nil {
		p.FutureValue = big.NewInt(0)
	}
	if p.LiquidityIndexAtRepayment == nil {
		p.LiquidityIndexAtRepayment = big.NewInt(0)
	}
}

// CreditPosition is a lender's claim against exactly one debt position. The
// sum of credit across all positions referencing a debt position equals its
// future value until the debt is fully claimed.
type CreditPosition struct {
	ID     uint64         `json:"id"`
	Lender crypto.Address `json:"lender"`
	// Credit is the slice of the referenced debt position's future value this
	// position entitles the holder to.
	Credit *big.Int `json:"credit"`
	// ForSale lets the lender opt the position out of market visibility.
	ForSale bool `json:"forSale"`
	// DebtPositionID is a weak back-reference resolved through the store.
	DebtPositionID uint64 `json:"debtPositionId"`
}

// Normalize replaces nil money fields with zero values.
func (p *CreditPosition) Normalize() {
	if p.Credit == nil {
		p.Credit = big.NewInt(0)
	}
}

// User holds the per-account record: pledged collateral, the aggregate debt
// tracker, standing offers and the account-level sale configuration.
type User struct {
	Address crypto.Address `json:"address"`
	// Collateral is the collateral-token amount pledged to the module.
	Collateral *big.Int `json:"collateral"`
	// TotalDebt aggregates the outstanding future value across the account's
	// debt positions. Used by pro-rata collateral assignment and cap checks.
	TotalDebt   *big.Int    `json:"totalDebt"`
	LoanOffer   LoanOffer   `json:"loanOffer"`
	BorrowOffer BorrowOffer `json:"borrowOffer"`
	// OpeningLimitBorrowCR overrides the global opening collateral ratio when
	// nonzero.
	OpeningLimitBorrowCR              *big.Int `json:"openingLimitBorrowCR,omitempty"`
	AllCreditPositionsForSaleDisabled bool     `json:"allCreditPositionsForSaleDisabled"`
}

// Normalize replaces nil money fields with zero values.
func (u *User) Normalize() {
	if u.Collateral == nil {
		u.Collateral = big.NewInt(0)
	}
	if u.TotalDebt == nil {
		u.TotalDebt = big.NewInt(0)
	}
}

// Globals carries the market-wide aggregates the cap checks read.
type Globals struct {
	// TotalCashDeposits tracks all borrow-token deposits currently inside the
	// market ledger, bounded by the configured cap.
	TotalCashDeposits *big.Int `json:"totalCashDeposits"`
}

// Normalize replaces nil aggregate fields with zero values.
func (g *Globals) Normalize() {
	if g.TotalCashDeposits == nil {
		g.TotalCashDeposits = big.NewInt(0)
	}
}

// IsCreditPositionID reports whether the id falls in the credit position
// range.
func IsCreditPositionID(id uint64) bool {
	return id >= creditPositionIDStart && id != ReservedID
}

// IsDebtPositionID reports whether the id falls in the debt position range.
func IsDebtPositionID(id uint64) bool {
	return id >= debtPositionIDStart && id < creditPositionIDStart
}
