package credit

import (
	"fmt"
	"math/big"

	"tenorbook/crypto"
)

// SellCreditMarketParams describes a market order hitting a lender's standing
// loan offer. CreditPositionID is ReservedID to originate a new loan, or an
// existing credit position id to exit it early. Amount is credit sold when
// ExactAmountIn is set, otherwise the cash the seller wants to receive.
type SellCreditMarketParams struct {
	Seller           crypto.Address
	Lender           crypto.Address
	CreditPositionID uint64
	Amount           *big.Int
	Tenor            uint64
	Deadline         uint64
	MaxAPR           *big.Int
	ExactAmountIn    bool
}

// SellCreditMarket executes a sell order against a loan offer: either a new
// borrow (credit sold is freshly originated debt) or an early exit of an
// existing credit position. The lender pays the cash value; swap and
// fragmentation fees come out of the seller's proceeds.
func (e *Engine) SellCreditMarket(params SellCreditMarketParams) error {
	if err := e.guard(ActionSellCreditMarket); err != nil {
		return err
	}
	if params.Amount == nil || params.Amount.Sign() <= 0 {
		return errInvalidAmount
	}
	if e.timestamp > params.Deadline {
		return fmt.Errorf("%w: deadline %d, now %d", errPastDeadline, params.Deadline, e.timestamp)
	}
	lenderUser, err := e.ensureUser(params.Lender)
	if err != nil {
		return err
	}
	offer := lenderUser.LoanOffer
	if offer.IsNull() {
		return fmt.Errorf("%w: %s", errInvalidLoanOffer, params.Lender)
	}

	var (
		tenor        uint64
		dueDate      uint64
		maxCredit    *big.Int
		exitPosition *CreditPosition
	)
	if params.CreditPositionID == ReservedID {
		tenor = params.Tenor
		if tenor < e.cfg.MinTenor || tenor > e.cfg.MaxTenor {
			return fmt.Errorf("%w: tenor %d outside [%d, %d]", errTenorOutOfRange, tenor, e.cfg.MinTenor, e.cfg.MaxTenor)
		}
		dueDate = e.timestamp + tenor
	} else {
		position, err := e.getCreditPosition(params.CreditPositionID)
		if err != nil {
			return err
		}
		if !position.Lender.Equal(params.Seller) {
			return fmt.Errorf("%w: %s does not own position %d", errCallerNotLender, params.Seller, position.ID)
		}
		debt, err := e.getDebtPosition(position.DebtPositionID)
		if err != nil {
			return err
		}
		transferrable, err := e.isCreditPositionTransferrable(debt)
		if err != nil {
			return err
		}
		if !transferrable {
			return fmt.Errorf("%w: position %d", errPositionNotTransferrable, position.ID)
		}
		dueDate = debt.DueDate
		tenor = dueDate - e.timestamp
		maxCredit = position.Credit
		exitPosition = position
	}
	if dueDate > offer.MaxDueDate {
		return fmt.Errorf("%w: due date %d past offer limit %d", errDueDateOutOfRange, dueDate, offer.MaxDueDate)
	}

	snap := e.rateSnapshot()
	apr, err := offer.APRForTenor(snap, e.timestamp, tenor)
	if err != nil {
		return err
	}
	if params.MaxAPR != nil && apr.Cmp(params.MaxAPR) > 0 {
		return fmt.Errorf("%w: apr %s, max %s", errAPRGreaterThanMax, apr, params.MaxAPR)
	}
	ratePerTenor, err := offer.RatePerTenor(snap, e.timestamp, tenor)
	if err != nil {
		return err
	}

	var creditIn, cashOut, fees *big.Int
	if params.ExactAmountIn {
		creditIn = params.Amount
		if maxCredit == nil {
			maxCredit = creditIn
		}
		cashOut, fees, err = e.getCashAmountOut(creditIn, maxCredit, ratePerTenor, tenor)
	} else {
		cashOut = params.Amount
		if maxCredit == nil {
			// A fresh origination can never fragment, so size the bound from
			// the full-consumption solve itself.
			value := mulDivUp(cashOut, Percent, new(big.Int).Sub(Percent, e.swapFeePercent(tenor)))
			maxCredit = mulDivUp(value, new(big.Int).Add(Percent, ratePerTenor), Percent)
		}
		creditIn, fees, err = e.getCreditAmountIn(cashOut, maxCredit, ratePerTenor, tenor)
	}
	if err != nil {
		return err
	}
	if creditIn.Cmp(e.cfg.MinimumCreditBorrowToken) < 0 {
		return fmt.Errorf("%w: credit %s below %s", errMinimumCreditNotReached, creditIn, e.cfg.MinimumCreditBorrowToken)
	}

	// Everything that can fail is checked before the first transfer so a
	// rejected order leaves no partial state behind.
	if err := e.validateCashBalance(params.Lender, new(big.Int).Add(cashOut, fees)); err != nil {
		return err
	}
	if exitPosition != nil {
		if err := e.validateCreditFragmentation(exitPosition, creditIn); err != nil {
			return err
		}
	} else if err := e.validateProspectiveOpeningCR(params.Seller, creditIn); err != nil {
		return err
	}

	if err := e.transferCash(params.Lender, params.Seller, cashOut); err != nil {
		return err
	}
	if err := e.transferCash(params.Lender, e.feeRecipient, fees); err != nil {
		return err
	}

	if params.CreditPositionID == ReservedID {
		_, err := e.createDebtAndCreditPositions(params.Lender, params.Seller, creditIn, dueDate)
		return err
	}
	_, err = e.createCreditPosition(params.CreditPositionID, params.Lender, creditIn)
	return err
}

// BuyCreditMarketParams describes a market order hitting a borrow offer.
// CreditPositionID is ReservedID to lend fresh cash against Borrower's offer,
// or an existing position id to buy that credit from its current holder (whose
// borrow offer prices the sale). Amount is cash paid when ExactAmountIn is
// set, otherwise the credit the buyer wants to receive.
type BuyCreditMarketParams struct {
	Lender           crypto.Address
	Borrower         crypto.Address
	CreditPositionID uint64
	Amount           *big.Int
	Tenor            uint64
	Deadline         uint64
	MinAPR           *big.Int
	ExactAmountIn    bool
}

// BuyCreditMarket executes a buy order against a borrow offer: either a new
// loan to the offer's borrower or a purchase of existing credit. The buyer
// pays the full cash value; fees come out of the seller's proceeds.
func (e *Engine) BuyCreditMarket(params BuyCreditMarketParams) error {
	if err := e.guard(ActionBuyCreditMarket); err != nil {
		return err
	}
	if params.Amount == nil || params.Amount.Sign() <= 0 {
		return errInvalidAmount
	}
	if e.timestamp > params.Deadline {
		return fmt.Errorf("%w: deadline %d, now %d", errPastDeadline, params.Deadline, e.timestamp)
	}

	var (
		tenor        uint64
		dueDate      uint64
		maxCredit    *big.Int
		seller       crypto.Address
		offer        BorrowOffer
		exitPosition *CreditPosition
	)
	if params.CreditPositionID == ReservedID {
		seller = params.Borrower
		sellerUser, err := e.ensureUser(seller)
		if err != nil {
			return err
		}
		offer = sellerUser.BorrowOffer
		tenor = params.Tenor
		if tenor < e.cfg.MinTenor || tenor > e.cfg.MaxTenor {
			return fmt.Errorf("%w: tenor %d outside [%d, %d]", errTenorOutOfRange, tenor, e.cfg.MinTenor, e.cfg.MaxTenor)
		}
		dueDate = e.timestamp + tenor
	} else {
		position, err := e.getCreditPosition(params.CreditPositionID)
		if err != nil {
			return err
		}
		seller = position.Lender
		sellerUser, err := e.ensureUser(seller)
		if err != nil {
			return err
		}
		offer = sellerUser.BorrowOffer
		if !position.ForSale || sellerUser.AllCreditPositionsForSaleDisabled {
			return fmt.Errorf("%w: position %d", errCreditNotForSale, position.ID)
		}
		debt, err := e.getDebtPosition(position.DebtPositionID)
		if err != nil {
			return err
		}
		transferrable, err := e.isCreditPositionTransferrable(debt)
		if err != nil {
			return err
		}
		if !transferrable {
			return fmt.Errorf("%w: position %d", errPositionNotTransferrable, position.ID)
		}
		dueDate = debt.DueDate
		tenor = dueDate - e.timestamp
		maxCredit = position.Credit
		exitPosition = position
	}
	if offer.IsNull() {
		return fmt.Errorf("%w: %s", errInvalidBorrowOffer, seller)
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

	var creditOut, cashIn, fees *big.Int
	if params.ExactAmountIn {
		cashIn = params.Amount
		if maxCredit == nil {
			// Fresh originations never fragment: bound equals the solve.
			maxCredit = mulDivDown(cashIn, new(big.Int).Add(Percent, ratePerTenor), Percent)
		}
		creditOut, fees, err = e.getCreditAmountOut(cashIn, maxCredit, ratePerTenor, tenor)
	} else {
		creditOut = params.Amount
		if maxCredit == nil {
			maxCredit = creditOut
		}
		cashIn, fees, err = e.getCashAmountIn(creditOut, maxCredit, ratePerTenor, tenor)
	}
	if err != nil {
		return err
	}
	if creditOut.Cmp(e.cfg.MinimumCreditBorrowToken) < 0 {
		return fmt.Errorf("%w: credit %s below %s", errMinimumCreditNotReached, creditOut, e.cfg.MinimumCreditBorrowToken)
	}

	// Same ordering as the sell side: no transfer until the order is known
	// to complete.
	if err := e.validateCashBalance(params.Lender, cashIn); err != nil {
		return err
	}
	if exitPosition != nil {
		if err := e.validateCreditFragmentation(exitPosition, creditOut); err != nil {
			return err
		}
	} else if err := e.validateProspectiveOpeningCR(seller, creditOut); err != nil {
		return err
	}

	proceeds := new(big.Int).Sub(cashIn, fees)
	if err := e.transferCash(params.Lender, seller, proceeds); err != nil {
		return err
	}
	if err := e.transferCash(params.Lender, e.feeRecipient, fees); err != nil {
		return err
	}

	if params.CreditPositionID == ReservedID {
		_, err := e.createDebtAndCreditPositions(params.Lender, seller, creditOut, dueDate)
		return err
	}
	_, err = e.createCreditPosition(params.CreditPositionID, params.Lender, creditOut)
	return err
}
