package credit

import (
	"fmt"
	"math/big"

	"tenorbook/crypto"
)

// SelfLiquidateParams lets a lender crystallize a loss on an underwater loan
// by taking their pro-rata collateral share instead of waiting for repayment.
type SelfLiquidateParams struct {
	Lender           crypto.Address
	CreditPositionID uint64
}

// SelfLiquidate burns the caller's credit position against an underwater
// borrower and pays out the pro-rata assigned collateral. Only permitted at a
// loss, when the assigned collateral is worth less than the credit.
func (e *Engine) SelfLiquidate(params SelfLiquidateParams) error {
	if err := e.guard(ActionSelfLiquidate); err != nil {
		return err
	}
	position, err := e.getCreditPosition(params.CreditPositionID)
	if err != nil {
		return err
	}
	if !position.Lender.Equal(params.Lender) {
		return fmt.Errorf("%w: %s does not own position %d", errCallerNotLender, params.Lender, position.ID)
	}
	debt, err := e.getDebtPosition(position.DebtPositionID)
	if err != nil {
		return err
	}
	selfLiquidatable, err := e.isCreditPositionSelfLiquidatable(debt)
	if err != nil {
		return err
	}
	if !selfLiquidatable {
		return fmt.Errorf("%w: position %d", errNotSelfLiquidatable, position.ID)
	}
	collateral, err := e.creditPositionProRataAssignedCollateral(debt, position)
	if err != nil {
		return err
	}
	// The loss test is per position: the collateral assigned to this credit
	// must fall short of the credit itself, valued in collateral terms and
	// rounded against the lender. Pro-rata rounding can put one fragment at a
	// loss while the borrower's aggregate ratio still reads whole.
	creditInCollateral, err := e.debtAmountToCollateral(position.Credit, true)
	if err != nil {
		return err
	}
	if collateral.Cmp(creditInCollateral) >= 0 {
		return fmt.Errorf("%w: assigned collateral %s covers credit worth %s", errLiquidationNotAtLoss, collateral, creditInCollateral)
	}
	credit := new(big.Int).Set(position.Credit)
	if err := e.reduceDebtAndCredit(debt, position, credit); err != nil {
		return err
	}
	borrower, err := e.ensureUser(debt.Borrower)
	if err != nil {
		return err
	}
	borrower.Collateral = new(big.Int).Sub(borrower.Collateral, collateral)
	if err := e.state.PutUser(borrower); err != nil {
		return err
	}
	if err := e.creditCollateralBalance(params.Lender, collateral); err != nil {
		return err
	}
	e.emit(NewSelfLiquidatedEvent(position, collateral))
	return nil
}

// LiquidateParams is a third-party liquidation of an underwater or overdue
// loan. MinimumCollateralProfit protects the liquidator from price movement
// between submission and execution.
type LiquidateParams struct {
	Liquidator              crypto.Address
	DebtPositionID          uint64
	MinimumCollateralProfit *big.Int
}

// seizure is the collateral split computed for a liquidation: what the
// liquidator takes, what the protocol takes, with the remainder staying with
// the borrower.
type seizure struct {
	liquidatorProfit *big.Int
	protocolProfit   *big.Int
}

// computeSeizure splits the debt position's assigned collateral. Profitable
// liquidations pay the liquidator the debt value plus a capped reward and
// route a protocol cut of the capped remainder to the fee recipient; when the
// assigned collateral does not cover the debt the liquidator takes all of it.
// An underwater borrower selects the standard protocol split even when the
// loan is also overdue.
func (e *Engine) computeSeizure(debt *DebtPosition) (seizure, error) {
	assigned, err := e.debtPositionAssignedCollateral(debt)
	if err != nil {
		return seizure{}, err
	}
	debtInCollateral, err := e.debtAmountToCollateral(debt.FutureValue, true)
	if err != nil {
		return seizure{}, err
	}
	if assigned.Cmp(debtInCollateral) <= 0 {
		return seizure{liquidatorProfit: assigned, protocolProfit: big.NewInt(0)}, nil
	}
	rewardCash := mulDivUp(debt.FutureValue, e.cfg.LiquidationRewardPercent, Percent)
	rewardCap, err := e.debtAmountToCollateral(rewardCash, false)
	if err != nil {
		return seizure{}, err
	}
	reward := minBig(new(big.Int).Sub(assigned, debtInCollateral), rewardCap)
	liquidatorProfit := new(big.Int).Add(debtInCollateral, reward)

	remainder := new(big.Int).Sub(assigned, liquidatorProfit)
	remainderCap := mulDivDown(debtInCollateral, e.cfg.CRLiquidation, Percent)
	remainder = minBig(remainder, remainderCap)

	protocolPercent := e.cfg.OverdueCollateralProtocolPercent
	borrower, err := e.ensureUser(debt.Borrower)
	if err != nil {
		return seizure{}, err
	}
	underwater, err := e.isUserUnderwater(borrower)
	if err != nil {
		return seizure{}, err
	}
	if underwater {
		protocolPercent = e.cfg.CollateralProtocolPercent
	}
	return seizure{
		liquidatorProfit: liquidatorProfit,
		protocolProfit:   mulDivDown(remainder, protocolPercent, Percent),
	}, nil
}

// applySeizure moves the computed collateral out of the borrower's pledge and
// into the liquidator's and fee recipient's free balances.
func (e *Engine) applySeizure(debt *DebtPosition, liquidator crypto.Address, s seizure) error {
	borrower, err := e.ensureUser(debt.Borrower)
	if err != nil {
		return err
	}
	total := new(big.Int).Add(s.liquidatorProfit, s.protocolProfit)
	borrower.Collateral = new(big.Int).Sub(borrower.Collateral, total)
	if err := e.state.PutUser(borrower); err != nil {
		return err
	}
	if err := e.creditCollateralBalance(liquidator, s.liquidatorProfit); err != nil {
		return err
	}
	return e.creditCollateralBalance(e.feeRecipient, s.protocolProfit)
}

// debitCash removes borrow-token balance from an account, failing on
// insufficient funds.
func (e *Engine) debitCash(from crypto.Address, amount *big.Int) error {
	account, err := e.loadAccount(from)
	if err != nil {
		return err
	}
	if account.BalanceCash.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s has %s, needs %s", errInsufficientCash, from, account.BalanceCash, amount)
	}
	account.BalanceCash = new(big.Int).Sub(account.BalanceCash, amount)
	return e.persistAccount(from, account)
}

// Liquidate repays an underwater or overdue loan with the liquidator's cash
// and seizes the borrower's assigned collateral in exchange. The repayment
// cash is parked in the yield venue until lenders claim it.
func (e *Engine) Liquidate(params LiquidateParams) error {
	if err := e.guard(ActionLiquidate); err != nil {
		return err
	}
	if e.venue == nil {
		return errNilVenue
	}
	debt, err := e.getDebtPosition(params.DebtPositionID)
	if err != nil {
		return err
	}
	liquidatable, err := e.isDebtPositionLiquidatable(debt)
	if err != nil {
		return err
	}
	if !liquidatable {
		return fmt.Errorf("%w: position %d", errLoanNotLiquidatable, debt.ID)
	}
	s, err := e.computeSeizure(debt)
	if err != nil {
		return err
	}
	if params.MinimumCollateralProfit != nil && s.liquidatorProfit.Cmp(params.MinimumCollateralProfit) < 0 {
		return fmt.Errorf("%w: profit %s below %s", errProfitBelowMinimum, s.liquidatorProfit, params.MinimumCollateralProfit)
	}
	futureValue := new(big.Int).Set(debt.FutureValue)
	if err := e.debitCash(params.Liquidator, futureValue); err != nil {
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
	if err := e.applySeizure(debt, params.Liquidator, s); err != nil {
		return err
	}
	e.emit(NewLiquidatedEvent(debt, params.Liquidator, s.liquidatorProfit))
	return nil
}

// LiquidateWithReplacementParams replaces the borrower on a liquidatable but
// still active loan. Keeper-only: the position stays live with a new borrower
// sourced from their standing borrow offer.
type LiquidateWithReplacementParams struct {
	Keeper                  crypto.Address
	DebtPositionID          uint64
	Borrower                crypto.Address
	MinAPR                  *big.Int
	Deadline                uint64
	MinimumCollateralProfit *big.Int
}

// LiquidateWithReplacement seizes the old borrower's collateral like a
// regular liquidation, then rebinds the debt position to a replacement
// borrower at their offered rate. The keeper funds the debt value; the new
// borrower receives the issuance value and the spread accrues to the fee
// recipient. Credit holders are untouched.
func (e *Engine) LiquidateWithReplacement(params LiquidateWithReplacementParams) error {
	if err := e.guard(ActionLiquidateWithReplacement); err != nil {
		return err
	}
	if !params.Keeper.Equal(e.keeper) || e.keeper.IsZero() {
		return fmt.Errorf("%w: %s", errNotKeeper, params.Keeper)
	}
	if e.timestamp > params.Deadline {
		return fmt.Errorf("%w: deadline %d, now %d", errPastDeadline, params.Deadline, e.timestamp)
	}
	debt, err := e.getDebtPosition(params.DebtPositionID)
	if err != nil {
		return err
	}
	if e.loanStatus(debt) != LoanStatusActive {
		return fmt.Errorf("%w: position %d", errReplacementNotActive, debt.ID)
	}
	liquidatable, err := e.isDebtPositionLiquidatable(debt)
	if err != nil {
		return err
	}
	if !liquidatable {
		return fmt.Errorf("%w: position %d", errLoanNotLiquidatable, debt.ID)
	}
	tenor := debt.DueDate - e.timestamp
	if tenor < e.cfg.MinTenor || tenor > e.cfg.MaxTenor {
		return fmt.Errorf("%w: tenor %d outside [%d, %d]", errTenorOutOfRange, tenor, e.cfg.MinTenor, e.cfg.MaxTenor)
	}
	replacement, err := e.ensureUser(params.Borrower)
	if err != nil {
		return err
	}
	offer := replacement.BorrowOffer
	if offer.IsNull() {
		return fmt.Errorf("%w: %s", errInvalidBorrowOffer, params.Borrower)
	}
	snap := e.rateSnapshot()
	apr, err := offer.APRForTenor(snap, e.timestamp, tenor)
	if err != nil {
		return err
	}
	if params.MinAPR != nil && apr.Cmp(params.MinAPR) < 0 {
		return fmt.Errorf("%w: apr %s, min %s", errAPRLowerThanMin, apr, params.MinAPR)
	}
	ratePerTenor, err := offer.RatePerTenor(snap, e.timestamp, tenor)
	if err != nil {
		return err
	}

	s, err := e.computeSeizure(debt)
	if err != nil {
		return err
	}
	if params.MinimumCollateralProfit != nil && s.liquidatorProfit.Cmp(params.MinimumCollateralProfit) < 0 {
		return fmt.Errorf("%w: profit %s below %s", errProfitBelowMinimum, s.liquidatorProfit, params.MinimumCollateralProfit)
	}

	futureValue := new(big.Int).Set(debt.FutureValue)
	issuanceValue := mulDivDown(futureValue, Percent, new(big.Int).Add(Percent, ratePerTenor))

	// The replacement borrower must clear the opening ratio with the rebound
	// debt before anything moves.
	if err := e.validateProspectiveOpeningCR(params.Borrower, futureValue); err != nil {
		return err
	}

	if err := e.debitCash(params.Keeper, futureValue); err != nil {
		return err
	}
	if err := e.applySeizure(debt, params.Keeper, s); err != nil {
		return err
	}

	// Move the obligation to the replacement borrower. The future value and
	// credit positions stay untouched so lender claims carry over.
	oldBorrower := debt.Borrower
	oldBorrowerUser, err := e.ensureUser(oldBorrower)
	if err != nil {
		return err
	}
	oldBorrowerUser.TotalDebt = new(big.Int).Sub(oldBorrowerUser.TotalDebt, futureValue)
	if oldBorrowerUser.TotalDebt.Sign() < 0 {
		oldBorrowerUser.TotalDebt = big.NewInt(0)
	}
	if err := e.state.PutUser(oldBorrowerUser); err != nil {
		return err
	}
	debt.Borrower = params.Borrower
	debt.LiquidityIndexAtRepayment = big.NewInt(0)
	if err := e.state.PutDebtPosition(debt); err != nil {
		return err
	}
	replacement, err = e.ensureUser(params.Borrower)
	if err != nil {
		return err
	}
	replacement.TotalDebt = new(big.Int).Add(replacement.TotalDebt, futureValue)
	if err := e.state.PutUser(replacement); err != nil {
		return err
	}

	// The keeper's cash splits into the new borrower's proceeds and the
	// protocol spread.
	spread := new(big.Int).Sub(futureValue, issuanceValue)
	if err := e.creditCash(params.Borrower, issuanceValue); err != nil {
		return err
	}
	if err := e.creditCash(e.feeRecipient, spread); err != nil {
		return err
	}

	e.emit(NewReplacedEvent(debt, oldBorrower, issuanceValue))
	return nil
}
