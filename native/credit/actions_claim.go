package credit

import (
	"fmt"
	"math/big"

	"tenorbook/crypto"
)

// RepayParams pays off a debt position in full. Any account may fund the
// repayment on the borrower's behalf.
type RepayParams struct {
	Payer          crypto.Address
	DebtPositionID uint64
}

// Repay settles a debt position's entire future value. The cash is supplied
// to the yield venue and the venue's liquidity index is snapshotted so later
// claims share in the yield accrued while the cash sits idle.
func (e *Engine) Repay(params RepayParams) error {
	if err := e.guard(ActionRepay); err != nil {
		return err
	}
	if e.venue == nil {
		return errNilVenue
	}
	debt, err := e.getDebtPosition(params.DebtPositionID)
	if err != nil {
		return err
	}
	if e.loanStatus(debt) == LoanStatusRepaid {
		return fmt.Errorf("%w: position %d", errLoanAlreadyRepaid, debt.ID)
	}
	futureValue := new(big.Int).Set(debt.FutureValue)
	if err := e.debitCash(params.Payer, futureValue); err != nil {
		return err
	}
	if err := e.venue.Supply(futureValue); err != nil {
		return err
	}
	globals, err := e.ensureGlobals()
	if err != nil {
		return err
	}
	globals.TotalCashDeposits = new(big.Int).Sub(globals.TotalCashDeposits, futureValue)
	if globals.TotalCashDeposits.Sign() < 0 {
		globals.TotalCashDeposits = big.NewInt(0)
	}
	if err := e.state.PutGlobals(globals); err != nil {
		return err
	}
	debt.LiquidityIndexAtRepayment = new(big.Int).Set(e.venue.LiquidityIndex())
	if err := e.repayDebt(debt, futureValue); err != nil {
		return err
	}
	e.emit(NewRepaidEvent(debt, futureValue))
	return nil
}

// ClaimParams collects a credit position's share of a repaid loan. Claims are
// permissionless: anyone may trigger one and the proceeds always go to the
// position's lender.
type ClaimParams struct {
	CreditPositionID uint64
}

// Claim pays the position's lender their credit scaled by the yield accrued in
// the venue since repayment, and zeroes the position so it cannot be claimed
// twice.
func (e *Engine) Claim(params ClaimParams) error {
	if err := e.guard(ActionClaim); err != nil {
		return err
	}
	if e.venue == nil {
		return errNilVenue
	}
	position, err := e.getCreditPosition(params.CreditPositionID)
	if err != nil {
		return err
	}
	debt, err := e.getDebtPosition(position.DebtPositionID)
	if err != nil {
		return err
	}
	if e.loanStatus(debt) != LoanStatusRepaid {
		return fmt.Errorf("%w: position %d", errLoanNotRepaid, debt.ID)
	}
	if position.Credit.Sign() == 0 {
		return fmt.Errorf("%w: position %d", errAlreadyClaimed, position.ID)
	}
	amount := new(big.Int).Set(position.Credit)
	if debt.LiquidityIndexAtRepayment.Sign() > 0 {
		amount = mulDivDown(amount, e.venue.LiquidityIndex(), debt.LiquidityIndexAtRepayment)
	}
	if err := e.venue.Withdraw(amount); err != nil {
		return err
	}
	globals, err := e.ensureGlobals()
	if err != nil {
		return err
	}
	globals.TotalCashDeposits = new(big.Int).Add(globals.TotalCashDeposits, amount)
	if err := e.state.PutGlobals(globals); err != nil {
		return err
	}
	if err := e.creditCash(position.Lender, amount); err != nil {
		return err
	}
	position.Credit = big.NewInt(0)
	if err := e.state.PutCreditPosition(position); err != nil {
		return err
	}
	e.emit(NewClaimedEvent(position, amount))
	return nil
}
