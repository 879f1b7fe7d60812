package credit

import "errors"

var (
	errNilState          = errors.New("credit engine: state not configured")
	errNilVenue          = errors.New("credit engine: yield venue not configured")
	errNilPriceFeed      = errors.New("credit engine: price feed not configured")
	errInvalidAmount     = errors.New("credit engine: amount must be positive")
	errInsufficientCash  = errors.New("credit engine: insufficient cash balance")
	errInsufficientFunds = errors.New("credit engine: insufficient collateral balance")

	errInvalidCurve    = errors.New("credit engine: invalid yield curve")
	errTenorOutOfRange = errors.New("credit engine: tenor out of range")
	errStaleRate       = errors.New("credit engine: variable rate oracle is stale")
	errNegativeAPR     = errors.New("credit engine: negative apr")
	errNegativeRate    = errors.New("credit engine: adjusted apr is negative")
	errNullTenor       = errors.New("credit engine: tenor must be nonzero")

	errNullMaxDueDate = errors.New("credit engine: max due date must be nonzero")
	errPastMaxDueDate = errors.New("credit engine: max due date below minimum tenor")
	errPastDeadline   = errors.New("credit engine: deadline has passed")

	errInvalidLoanOffer   = errors.New("credit engine: lender has no loan offer")
	errInvalidBorrowOffer = errors.New("credit engine: borrower has no borrow offer")

	errInvalidDebtPositionID   = errors.New("credit engine: unknown debt position")
	errInvalidCreditPositionID = errors.New("credit engine: unknown credit position")
	errCallerNotLender         = errors.New("credit engine: caller is not the credit position lender")
	errCallerNotBorrower       = errors.New("credit engine: caller is not the debt position borrower")

	errPositionNotTransferrable = errors.New("credit engine: credit position not transferrable")
	errCreditNotForSale         = errors.New("credit engine: credit position not for sale")
	errNotEnoughCredit          = errors.New("credit engine: amount exceeds available credit")
	errCreditLowerThanMinimum   = errors.New("credit engine: credit below configured minimum")
	errNotEnoughCash            = errors.New("credit engine: fees exceed cash proceeds")

	errDueDateOutOfRange        = errors.New("credit engine: due date beyond offer max due date")
	errDueDateNotCompatible     = errors.New("credit engine: compensation credit matures after the repaid debt")
	errAPRGreaterThanMax        = errors.New("credit engine: quoted apr above caller maximum")
	errAPRLowerThanMin          = errors.New("credit engine: quoted apr below caller minimum")
	errInvalidCompensation      = errors.New("credit engine: compensation amount is zero")
	errCompensateSamePosition   = errors.New("credit engine: cannot compensate a position with itself")
	errCompensateLenderMismatch = errors.New("credit engine: compensation credit lender must be the borrower")

	errLoanNotActive           = errors.New("credit engine: loan is not active")
	errLoanNotRepaid           = errors.New("credit engine: loan has not been repaid")
	errLoanAlreadyRepaid       = errors.New("credit engine: loan already repaid")
	errAlreadyClaimed          = errors.New("credit engine: credit already claimed")
	errLoanNotLiquidatable     = errors.New("credit engine: loan not eligible for liquidation")
	errNotSelfLiquidatable     = errors.New("credit engine: credit not eligible for self liquidation")
	errLiquidationNotAtLoss    = errors.New("credit engine: self liquidation would not crystallize a loss")
	errProfitBelowMinimum      = errors.New("credit engine: liquidator profit below requested minimum")
	errUserIsUnderwater        = errors.New("credit engine: account is underwater")
	errBelowOpeningLimit       = errors.New("credit engine: collateral ratio below opening limit")
	errCashDepositCapExceeded  = errors.New("credit engine: cash deposit cap exceeded")
	errNotKeeper               = errors.New("credit engine: caller is not the replacement keeper")
	errReplacementNotActive    = errors.New("credit engine: only active loans can be replaced")
	errBatchAlreadyOpen        = errors.New("credit engine: a batch is already in progress")
	errNoBatchOpen             = errors.New("credit engine: no batch in progress")
	errInvalidConfig           = errors.New("credit engine: invalid configuration")
	errFeeRecipientNotSet      = errors.New("credit engine: fee recipient not configured")
	errMinimumCreditNotReached = errors.New("credit engine: amount below minimum credit")
)
