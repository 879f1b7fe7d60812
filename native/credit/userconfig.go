package credit

import (
	"fmt"
	"math/big"

	"tenorbook/crypto"
)

// UserConfigurationParams are the account-level knobs an account controls for
// itself.
type UserConfigurationParams struct {
	// OpeningLimitBorrowCR tightens the opening collateral ratio for this
	// account when above the global setting. Zero clears the override.
	OpeningLimitBorrowCR *big.Int
	// AllCreditPositionsForSaleDisabled hides every credit position the
	// account holds from market buys regardless of per-position flags.
	AllCreditPositionsForSaleDisabled bool
	// CreditPositionIDsForSale flips the per-position sale flag for the listed
	// positions the account owns.
	CreditPositionIDsForSale []uint64
	ForSale                  bool
}

// SetUserConfiguration updates the caller's sale visibility and opening-ratio
// override in one shot.
func (e *Engine) SetUserConfiguration(caller crypto.Address, params UserConfigurationParams) error {
	if err := e.guard(ActionSetUserConfiguration); err != nil {
		return err
	}
	user, err := e.ensureUser(caller)
	if err != nil {
		return err
	}
	// Resolve and validate every listed position before writing anything so
	// a bad id cannot leave a half-applied configuration.
	positions := make([]*CreditPosition, 0, len(params.CreditPositionIDsForSale))
	for _, id := range params.CreditPositionIDsForSale {
		position, err := e.getCreditPosition(id)
		if err != nil {
			return err
		}
		if !position.Lender.Equal(caller) {
			return errCallerNotLender
		}
		debt, err := e.getDebtPosition(position.DebtPositionID)
		if err != nil {
			return err
		}
		if e.loanStatus(debt) != LoanStatusActive {
			return fmt.Errorf("%w: position %d", errLoanNotActive, position.ID)
		}
		positions = append(positions, position)
	}
	if params.OpeningLimitBorrowCR != nil && params.OpeningLimitBorrowCR.Sign() > 0 {
		user.OpeningLimitBorrowCR = new(big.Int).Set(params.OpeningLimitBorrowCR)
	} else {
		user.OpeningLimitBorrowCR = nil
	}
	user.AllCreditPositionsForSaleDisabled = params.AllCreditPositionsForSaleDisabled
	if err := e.state.PutUser(user); err != nil {
		return err
	}
	for _, position := range positions {
		position.ForSale = params.ForSale
		if err := e.state.PutCreditPosition(position); err != nil {
			return err
		}
	}
	e.emit(NewUserConfiguredEvent(caller))
	return nil
}
