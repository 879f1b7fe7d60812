package credit

import (
	"fmt"
	"math/big"

	"tenorbook/crypto"
)

// createDebtAndCreditPositions originates a debt position and its initial
// credit position with credit equal to the full future value, and bumps the
// borrower's aggregate debt tracker.
func (e *Engine) createDebtAndCreditPositions(lender, borrower crypto.Address, futureValue *big.Int, dueDate uint64) (*CreditPosition, error) {
	debt := &DebtPosition{
		ID:                        e.state.NextDebtPositionID(),
		Borrower:                  borrower,
		FutureValue:               new(big.Int).Set(futureValue),
		DueDate:                   dueDate,
		LiquidityIndexAtRepayment: big.NewInt(0),
	}
	if err := e.state.PutDebtPosition(debt); err != nil {
		return nil, err
	}
	credit := &CreditPosition{
		ID:             e.state.NextCreditPositionID(),
		Lender:         lender,
		Credit:         new(big.Int).Set(futureValue),
		ForSale:        true,
		DebtPositionID: debt.ID,
	}
	if err := e.state.PutCreditPosition(credit); err != nil {
		return nil, err
	}
	borrowerUser, err := e.ensureUser(borrower)
	if err != nil {
		return nil, err
	}
	borrowerUser.TotalDebt = new(big.Int).Add(borrowerUser.TotalDebt, futureValue)
	if err := e.state.PutUser(borrowerUser); err != nil {
		return nil, err
	}
	e.emit(NewDebtOriginatedEvent(debt, credit))
	return credit, nil
}

// createCreditPosition transfers credit out of an existing position. A full
// transfer reassigns the lender in place; a partial transfer fragments the
// position, reducing the source and creating a new position against the same
// debt so the sum-of-credit invariant holds by construction.
func (e *Engine) createCreditPosition(exitPositionID uint64, lender crypto.Address, credit *big.Int) (*CreditPosition, error) {
	exit, err := e.getCreditPosition(exitPositionID)
	if err != nil {
		return nil, err
	}
	if credit.Cmp(exit.Credit) == 0 {
		exit.Lender = lender
		if err := e.state.PutCreditPosition(exit); err != nil {
			return nil, err
		}
		e.emit(NewCreditTransferredEvent(exit))
		return exit, nil
	}
	if credit.Cmp(exit.Credit) > 0 {
		return nil, fmt.Errorf("%w: requested %s, available %s", errNotEnoughCredit, credit, exit.Credit)
	}
	if err := e.reduceCredit(exit, credit); err != nil {
		return nil, err
	}
	fragment := &CreditPosition{
		ID:             e.state.NextCreditPositionID(),
		Lender:         lender,
		Credit:         new(big.Int).Set(credit),
		ForSale:        true,
		DebtPositionID: exit.DebtPositionID,
	}
	if err := e.state.PutCreditPosition(fragment); err != nil {
		return nil, err
	}
	e.emit(NewCreditFragmentedEvent(exit, fragment))
	return fragment, nil
}

// validateCreditFragmentation checks that taking amount out of a credit
// position would neither overdraw it nor strand dust below the configured
// minimum. Actions run it before their first state write so a doomed order
// cannot leave partial transfers behind.
func (e *Engine) validateCreditFragmentation(position *CreditPosition, amount *big.Int) error {
	if amount.Cmp(position.Credit) > 0 {
		return fmt.Errorf("%w: requested %s, available %s", errNotEnoughCredit, amount, position.Credit)
	}
	remaining := new(big.Int).Sub(position.Credit, amount)
	if remaining.Sign() > 0 && remaining.Cmp(e.cfg.MinimumCreditBorrowToken) < 0 {
		return fmt.Errorf("%w: remainder %s below %s", errCreditLowerThanMinimum, remaining, e.cfg.MinimumCreditBorrowToken)
	}
	return nil
}

// reduceCredit subtracts from a credit position, rejecting underflow and
// nonzero dust below the configured minimum. Zero is always permitted so a
// position can be fully consumed.
func (e *Engine) reduceCredit(position *CreditPosition, amount *big.Int) error {
	if amount.Cmp(position.Credit) > 0 {
		return fmt.Errorf("%w: reducing %s by %s", errNotEnoughCredit, position.Credit, amount)
	}
	remaining := new(big.Int).Sub(position.Credit, amount)
	if remaining.Sign() > 0 && remaining.Cmp(e.cfg.MinimumCreditBorrowToken) < 0 {
		return fmt.Errorf("%w: remainder %s below %s", errCreditLowerThanMinimum, remaining, e.cfg.MinimumCreditBorrowToken)
	}
	position.Credit = remaining
	return e.state.PutCreditPosition(position)
}

// reduceDebtAndCredit removes amount from both sides of a position pair
// atomically, keeping the invariant intact when debt is extinguished without
// repayment (compensation and self-liquidation).
func (e *Engine) reduceDebtAndCredit(debt *DebtPosition, credit *CreditPosition, amount *big.Int) error {
	if err := e.reduceCredit(credit, amount); err != nil {
		return err
	}
	return e.repayDebt(debt, amount)
}

// repayDebt lowers a debt position's future value and the borrower's
// aggregate tracker.
func (e *Engine) repayDebt(debt *DebtPosition, amount *big.Int) error {
	if amount.Cmp(debt.FutureValue) > 0 {
		return fmt.Errorf("%w: repaying %s of %s", errInvalidAmount, amount, debt.FutureValue)
	}
	debt.FutureValue = new(big.Int).Sub(debt.FutureValue, amount)
	if err := e.state.PutDebtPosition(debt); err != nil {
		return err
	}
	borrower, err := e.ensureUser(debt.Borrower)
	if err != nil {
		return err
	}
	borrower.TotalDebt = new(big.Int).Sub(borrower.TotalDebt, amount)
	if borrower.TotalDebt.Sign() < 0 {
		borrower.TotalDebt = big.NewInt(0)
	}
	return e.state.PutUser(borrower)
}

// loanStatus derives the lifecycle state of a debt position at the engine's
// current time.
func (e *Engine) loanStatus(debt *DebtPosition) LoanStatus {
	if debt.FutureValue.Sign() == 0 {
		return LoanStatusRepaid
	}
	if e.timestamp > debt.DueDate {
		return LoanStatusOverdue
	}
	return LoanStatusActive
}

// LoanStatusByID resolves a debt or credit position id to its loan status.
func (e *Engine) LoanStatusByID(positionID uint64) (LoanStatus, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	debt, err := e.resolveDebtPosition(positionID)
	if err != nil {
		return 0, err
	}
	return e.loanStatus(debt), nil
}

// resolveDebtPosition accepts either id range and returns the debt position.
func (e *Engine) resolveDebtPosition(positionID uint64) (*DebtPosition, error) {
	if IsCreditPositionID(positionID) {
		credit, err := e.getCreditPosition(positionID)
		if err != nil {
			return nil, err
		}
		return e.getDebtPosition(credit.DebtPositionID)
	}
	return e.getDebtPosition(positionID)
}

// debtPositionAssignedCollateral pro-rates the borrower's pledged collateral
// across their outstanding debt: collateral * futureValue / totalDebt. A
// fully wound down borrower assigns nothing.
func (e *Engine) debtPositionAssignedCollateral(debt *DebtPosition) (*big.Int, error) {
	borrower, err := e.ensureUser(debt.Borrower)
	if err != nil {
		return nil, err
	}
	if borrower.TotalDebt.Sign() == 0 {
		return big.NewInt(0), nil
	}
	return mulDivDown(borrower.Collateral, debt.FutureValue, borrower.TotalDebt), nil
}

// creditPositionProRataAssignedCollateral narrows the debt position's
// assigned collateral to one credit position's share.
func (e *Engine) creditPositionProRataAssignedCollateral(debt *DebtPosition, credit *CreditPosition) (*big.Int, error) {
	if debt.FutureValue.Sign() == 0 {
		return big.NewInt(0), nil
	}
	assigned, err := e.debtPositionAssignedCollateral(debt)
	if err != nil {
		return nil, err
	}
	return mulDivDown(assigned, credit.Credit, debt.FutureValue), nil
}

// DebtPositionByID returns a stored debt position for queries.
func (e *Engine) DebtPositionByID(id uint64) (*DebtPosition, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.getDebtPosition(id)
}

// CreditPositionByID returns a stored credit position for queries.
func (e *Engine) CreditPositionByID(id uint64) (*CreditPosition, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.getCreditPosition(id)
}

// UserByAddress returns the per-account record for queries.
func (e *Engine) UserByAddress(addr crypto.Address) (*User, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.ensureUser(addr)
}
