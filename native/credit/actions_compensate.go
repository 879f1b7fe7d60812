package credit

import (
	"fmt"
	"math/big"

	"tenorbook/crypto"
)

// CompensateParams extinguishes credit held against the caller with credit the
// caller holds elsewhere. CreditPositionWithDebtToRepayID names the claim on
// the caller's own debt; CreditPositionToCompensateID names the credit used to
// pay it, or ReservedID to mint a fresh same-due-date debt for the purpose.
type CompensateParams struct {
	Caller                          crypto.Address
	CreditPositionWithDebtToRepayID uint64
	CreditPositionToCompensateID    uint64
	Amount                          *big.Int
}

// Compensate nets two positions: the claim on the caller's debt shrinks and
// its holder receives an equal slice of the compensating credit instead. Used
// to unwind circular debt or to split a repayment across due dates.
func (e *Engine) Compensate(params CompensateParams) error {
	if err := e.guard(ActionCompensate); err != nil {
		return err
	}
	if params.Amount == nil || params.Amount.Sign() <= 0 {
		return errInvalidAmount
	}
	creditToRepay, err := e.getCreditPosition(params.CreditPositionWithDebtToRepayID)
	if err != nil {
		return err
	}
	debtToRepay, err := e.getDebtPosition(creditToRepay.DebtPositionID)
	if err != nil {
		return err
	}
	if !debtToRepay.Borrower.Equal(params.Caller) {
		return fmt.Errorf("%w: %s does not owe position %d", errCallerNotBorrower, params.Caller, debtToRepay.ID)
	}
	if e.loanStatus(debtToRepay) == LoanStatusRepaid {
		return fmt.Errorf("%w: position %d", errLoanAlreadyRepaid, debtToRepay.ID)
	}
	caller, err := e.ensureUser(params.Caller)
	if err != nil {
		return err
	}
	// An underwater borrower must not shuffle claims away from the credit
	// positions that secure their debt; liquidation is the only way out.
	if err := e.validateUserIsNotUnderwater(caller); err != nil {
		return err
	}

	var compensating *CreditPosition
	var amount *big.Int
	if params.CreditPositionToCompensateID == ReservedID {
		if e.loanStatus(debtToRepay) != LoanStatusActive {
			return fmt.Errorf("%w: position %d", errLoanNotActive, debtToRepay.ID)
		}
		tenor := debtToRepay.DueDate - e.timestamp
		if tenor < e.cfg.MinTenor || tenor > e.cfg.MaxTenor {
			return fmt.Errorf("%w: tenor %d outside [%d, %d]", errTenorOutOfRange, tenor, e.cfg.MinTenor, e.cfg.MaxTenor)
		}
		amount = minBig(params.Amount, creditToRepay.Credit)
		if amount.Sign() == 0 {
			return fmt.Errorf("%w: nothing to compensate", errInvalidCompensation)
		}
		if err := e.validateCreditFragmentation(creditToRepay, amount); err != nil {
			return err
		}
		compensating, err = e.createDebtAndCreditPositions(params.Caller, params.Caller, amount, debtToRepay.DueDate)
		if err != nil {
			return err
		}
	} else {
		compensating, err = e.getCreditPosition(params.CreditPositionToCompensateID)
		if err != nil {
			return err
		}
		if compensating.DebtPositionID == debtToRepay.ID {
			return fmt.Errorf("%w: position %d", errCompensateSamePosition, compensating.ID)
		}
		if !compensating.Lender.Equal(params.Caller) {
			return fmt.Errorf("%w: %s does not hold position %d", errCompensateLenderMismatch, params.Caller, compensating.ID)
		}
		compensatingDebt, err := e.getDebtPosition(compensating.DebtPositionID)
		if err != nil {
			return err
		}
		transferrable, err := e.isCreditPositionTransferrable(compensatingDebt)
		if err != nil {
			return err
		}
		if !transferrable {
			return fmt.Errorf("%w: position %d", errPositionNotTransferrable, compensating.ID)
		}
		if compensatingDebt.DueDate > debtToRepay.DueDate {
			return fmt.Errorf("%w: compensating due %d after %d", errDueDateNotCompatible, compensatingDebt.DueDate, debtToRepay.DueDate)
		}
		amount = minBig(minBig(params.Amount, creditToRepay.Credit), compensating.Credit)
		if amount.Sign() == 0 {
			return fmt.Errorf("%w: nothing to compensate", errInvalidCompensation)
		}
		// Both reductions and the fragmentation fee are checked up front so
		// the action either applies in full or not at all.
		if err := e.validateCreditFragmentation(creditToRepay, amount); err != nil {
			return err
		}
		if err := e.validateCreditFragmentation(compensating, amount); err != nil {
			return err
		}
		if amount.Cmp(compensating.Credit) < 0 {
			if err := e.validateCashBalance(params.Caller, e.cfg.FragmentationFee); err != nil {
				return err
			}
		}
	}

	if err := e.reduceDebtAndCredit(debtToRepay, creditToRepay, amount); err != nil {
		return err
	}
	fragmenting := amount.Cmp(compensating.Credit) < 0
	if _, err := e.createCreditPosition(compensating.ID, creditToRepay.Lender, amount); err != nil {
		return err
	}
	if fragmenting {
		if err := e.transferCash(params.Caller, e.feeRecipient, e.cfg.FragmentationFee); err != nil {
			return err
		}
	}
	e.emit(NewCompensatedEvent(debtToRepay.ID, compensating.ID, amount))
	return nil
}
