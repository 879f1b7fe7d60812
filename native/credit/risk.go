package credit

import (
	"fmt"
	"math/big"

	"tenorbook/crypto"
)

// collateralRatio values the user's pledged collateral against their
// outstanding debt, 1e18 scaled. Debt-free accounts report the max sentinel.
func (e *Engine) collateralRatio(user *User) (*big.Int, error) {
	if user.TotalDebt.Sign() == 0 {
		return new(big.Int).Set(MaxCollateralRatio), nil
	}
	priceWad, err := e.priceWad()
	if err != nil {
		return nil, err
	}
	collateralWad := amountToWad(user.Collateral, e.cfg.CollateralDecimals)
	debtWad := amountToWad(user.TotalDebt, e.cfg.CashDecimals)
	return mulDivDown(collateralWad, priceWad, debtWad), nil
}

// CollateralRatio exposes the ratio for queries.
func (e *Engine) CollateralRatio(addr crypto.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	user, err := e.ensureUser(addr)
	if err != nil {
		return nil, err
	}
	return e.collateralRatio(user)
}

func (e *Engine) isUserUnderwater(user *User) (bool, error) {
	ratio, err := e.collateralRatio(user)
	if err != nil {
		return false, err
	}
	return ratio.Cmp(e.cfg.CRLiquidation) < 0, nil
}

// isDebtPositionLiquidatable combines the risk-based trigger (underwater
// borrower, loan not repaid) with the unconditional time-based trigger
// (overdue loans are liquidatable regardless of collateral).
func (e *Engine) isDebtPositionLiquidatable(debt *DebtPosition) (bool, error) {
	status := e.loanStatus(debt)
	if status == LoanStatusRepaid {
		return false, nil
	}
	if status == LoanStatusOverdue {
		return true, nil
	}
	borrower, err := e.ensureUser(debt.Borrower)
	if err != nil {
		return false, err
	}
	return e.isUserUnderwater(borrower)
}

// isCreditPositionSelfLiquidatable is risk-based only: the borrower must be
// underwater, but the loan need not be overdue.
func (e *Engine) isCreditPositionSelfLiquidatable(debt *DebtPosition) (bool, error) {
	if e.loanStatus(debt) == LoanStatusRepaid {
		return false, nil
	}
	borrower, err := e.ensureUser(debt.Borrower)
	if err != nil {
		return false, err
	}
	return e.isUserUnderwater(borrower)
}

// isCreditPositionTransferrable gates market exit: only claims on active
// loans of solvent borrowers may change hands.
func (e *Engine) isCreditPositionTransferrable(debt *DebtPosition) (bool, error) {
	if e.loanStatus(debt) != LoanStatusActive {
		return false, nil
	}
	borrower, err := e.ensureUser(debt.Borrower)
	if err != nil {
		return false, err
	}
	underwater, err := e.isUserUnderwater(borrower)
	if err != nil {
		return false, err
	}
	return !underwater, nil
}

func (e *Engine) validateUserIsNotUnderwater(user *User) error {
	underwater, err := e.isUserUnderwater(user)
	if err != nil {
		return err
	}
	if underwater {
		return fmt.Errorf("%w: %s", errUserIsUnderwater, user.Address)
	}
	return nil
}

// effectiveOpeningCR prefers the user's configured override and falls back to
// the global opening ratio.
func (e *Engine) effectiveOpeningCR(user *User) *big.Int {
	if user.OpeningLimitBorrowCR != nil && user.OpeningLimitBorrowCR.Sign() > 0 {
		return user.OpeningLimitBorrowCR
	}
	return e.cfg.CROpening
}

// validateProspectiveOpeningCR rejects an action that would add debt and leave
// the account below its opening collateral ratio. It evaluates a copy so it
// can run before any state is written.
func (e *Engine) validateProspectiveOpeningCR(addr crypto.Address, additionalDebt *big.Int) error {
	user, err := e.ensureUser(addr)
	if err != nil {
		return err
	}
	probe := *user
	probe.TotalDebt = new(big.Int).Add(user.TotalDebt, additionalDebt)
	return e.validateUserIsNotBelowOpeningLimitBorrowCR(&probe)
}

func (e *Engine) validateUserIsNotBelowOpeningLimitBorrowCR(user *User) error {
	ratio, err := e.collateralRatio(user)
	if err != nil {
		return err
	}
	limit := e.effectiveOpeningCR(user)
	if ratio.Cmp(limit) < 0 {
		return fmt.Errorf("%w: %s has ratio %s, opening limit %s", errBelowOpeningLimit, user.Address, ratio, limit)
	}
	return nil
}
