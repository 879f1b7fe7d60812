package credit

import (
	"fmt"

	"tenorbook/crypto"
)

// BuyCreditLimitParams posts (or clears) a lender's standing loan offer.
type BuyCreditLimitParams struct {
	Lender     crypto.Address
	MaxDueDate uint64
	Curve      YieldCurve
}

// BuyCreditLimit records a lender's yield curve so borrowers can hit it with
// market orders. An empty curve clears the offer.
func (e *Engine) BuyCreditLimit(params BuyCreditLimitParams) error {
	if err := e.guard(ActionBuyCreditLimit); err != nil {
		return err
	}
	user, err := e.ensureUser(params.Lender)
	if err != nil {
		return err
	}
	if params.Curve.IsNull() {
		user.LoanOffer = LoanOffer{}
		if err := e.state.PutUser(user); err != nil {
			return err
		}
		e.emit(NewLoanOfferUpdatedEvent(params.Lender, user.LoanOffer))
		return nil
	}
	if params.MaxDueDate == 0 {
		return errNullMaxDueDate
	}
	if params.MaxDueDate <= e.timestamp {
		return fmt.Errorf("%w: maxDueDate %d, now %d", errPastMaxDueDate, params.MaxDueDate, e.timestamp)
	}
	if err := params.Curve.validate(e.cfg.MinTenor, e.cfg.MaxTenor); err != nil {
		return err
	}
	// The offer must leave room for at least one fillable tenor: both the
	// market minimum and the curve's shortest point.
	minDueDate := e.timestamp + e.cfg.MinTenor
	if first := e.timestamp + params.Curve.Tenors[0]; first > minDueDate {
		minDueDate = first
	}
	if params.MaxDueDate < minDueDate {
		return fmt.Errorf("%w: maxDueDate %d below %d", errPastMaxDueDate, params.MaxDueDate, minDueDate)
	}
	user.LoanOffer = LoanOffer{MaxDueDate: params.MaxDueDate, Curve: params.Curve}
	if err := e.state.PutUser(user); err != nil {
		return err
	}
	e.emit(NewLoanOfferUpdatedEvent(params.Lender, user.LoanOffer))
	return nil
}

// SellCreditLimitParams posts (or clears) a borrower's standing borrow offer.
type SellCreditLimitParams struct {
	Borrower crypto.Address
	Curve    YieldCurve
}

// SellCreditLimit records a borrower's yield curve so lenders can hit it with
// market orders. An empty curve clears the offer.
func (e *Engine) SellCreditLimit(params SellCreditLimitParams) error {
	if err := e.guard(ActionSellCreditLimit); err != nil {
		return err
	}
	user, err := e.ensureUser(params.Borrower)
	if err != nil {
		return err
	}
	if params.Curve.IsNull() {
		user.BorrowOffer = BorrowOffer{}
		if err := e.state.PutUser(user); err != nil {
			return err
		}
		e.emit(NewBorrowOfferUpdatedEvent(params.Borrower, user.BorrowOffer))
		return nil
	}
	if err := params.Curve.validate(e.cfg.MinTenor, e.cfg.MaxTenor); err != nil {
		return err
	}
	user.BorrowOffer = BorrowOffer{Curve: params.Curve}
	if err := e.state.PutUser(user); err != nil {
		return err
	}
	e.emit(NewBorrowOfferUpdatedEvent(params.Borrower, user.BorrowOffer))
	return nil
}
