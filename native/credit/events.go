package credit

import (
	"math/big"
	"strconv"

	"tenorbook/core/types"
	"tenorbook/crypto"
)

const (
	EventTypeLoanOfferUpdated   = "credit.offer.loan_updated"
	EventTypeBorrowOfferUpdated = "credit.offer.borrow_updated"
	EventTypeDebtOriginated     = "credit.position.originated"
	EventTypeCreditTransferred  = "credit.position.transferred"
	EventTypeCreditFragmented   = "credit.position.fragmented"
	EventTypeCompensated        = "credit.position.compensated"
	EventTypeRepaid             = "credit.position.repaid"
	EventTypeClaimed            = "credit.position.claimed"
	EventTypeLiquidated         = "credit.position.liquidated"
	EventTypeSelfLiquidated     = "credit.position.self_liquidated"
	EventTypeReplaced           = "credit.position.replaced"
	EventTypeUserConfigured     = "credit.user.configured"
	EventTypeConfigUpdated      = "credit.config.updated"
	EventTypeDeposit            = "credit.ledger.deposit"
	EventTypeWithdraw           = "credit.ledger.withdraw"
)

func formatUint(v uint64) string { return strconv.FormatUint(v, 10) }

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// NewLoanOfferUpdatedEvent reports a replaced (or cleared) loan offer.
func NewLoanOfferUpdatedEvent(lender crypto.Address, offer LoanOffer) *types.Event {
	return &types.Event{Type: EventTypeLoanOfferUpdated, Attributes: map[string]string{
		"lender":     lender.String(),
		"maxDueDate": formatUint(offer.MaxDueDate),
		"points":     strconv.Itoa(len(offer.Curve.Tenors)),
	}}
}

// NewBorrowOfferUpdatedEvent reports a replaced (or cleared) borrow offer.
func NewBorrowOfferUpdatedEvent(borrower crypto.Address, offer BorrowOffer) *types.Event {
	return &types.Event{Type: EventTypeBorrowOfferUpdated, Attributes: map[string]string{
		"borrower": borrower.String(),
		"points":   strconv.Itoa(len(offer.Curve.Tenors)),
	}}
}

// NewDebtOriginatedEvent reports a freshly created debt/credit pair.
func NewDebtOriginatedEvent(debt *DebtPosition, credit *CreditPosition) *types.Event {
	return &types.Event{Type: EventTypeDebtOriginated, Attributes: map[string]string{
		"debtPositionId":   formatUint(debt.ID),
		"creditPositionId": formatUint(credit.ID),
		"borrower":         debt.Borrower.String(),
		"lender":           credit.Lender.String(),
		"futureValue":      formatAmount(debt.FutureValue),
		"dueDate":          formatUint(debt.DueDate),
	}}
}

// NewCreditTransferredEvent reports an in-place lender reassignment.
func NewCreditTransferredEvent(credit *CreditPosition) *types.Event {
	return &types.Event{Type: EventTypeCreditTransferred, Attributes: map[string]string{
		"creditPositionId": formatUint(credit.ID),
		"debtPositionId":   formatUint(credit.DebtPositionID),
		"lender":           credit.Lender.String(),
		"credit":           formatAmount(credit.Credit),
	}}
}

// NewCreditFragmentedEvent reports a credit split across two positions.
func NewCreditFragmentedEvent(source, fragment *CreditPosition) *types.Event {
	return &types.Event{Type: EventTypeCreditFragmented, Attributes: map[string]string{
		"sourcePositionId":   formatUint(source.ID),
		"fragmentPositionId": formatUint(fragment.ID),
		"debtPositionId":     formatUint(fragment.DebtPositionID),
		"fragmentLender":     fragment.Lender.String(),
		"fragmentCredit":     formatAmount(fragment.Credit),
		"remainingCredit":    formatAmount(source.Credit),
	}}
}

// NewCompensatedEvent reports debt extinguished by assigning other credit.
func NewCompensatedEvent(debtPositionID, creditPositionID uint64, amount *big.Int) *types.Event {
	return &types.Event{Type: EventTypeCompensated, Attributes: map[string]string{
		"debtPositionId":   formatUint(debtPositionID),
		"creditPositionId": formatUint(creditPositionID),
		"amount":           formatAmount(amount),
	}}
}

// NewRepaidEvent reports a full repayment.
func NewRepaidEvent(debt *DebtPosition, amount *big.Int) *types.Event {
	return &types.Event{Type: EventTypeRepaid, Attributes: map[string]string{
		"debtPositionId": formatUint(debt.ID),
		"borrower":       debt.Borrower.String(),
		"amount":         formatAmount(amount),
	}}
}

// NewClaimedEvent reports a lender collecting repaid credit.
func NewClaimedEvent(credit *CreditPosition, amount *big.Int) *types.Event {
	return &types.Event{Type: EventTypeClaimed, Attributes: map[string]string{
		"creditPositionId": formatUint(credit.ID),
		"lender":           credit.Lender.String(),
		"amount":           formatAmount(amount),
	}}
}

// NewLiquidatedEvent reports a third-party liquidation.
func NewLiquidatedEvent(debt *DebtPosition, liquidator crypto.Address, profit *big.Int) *types.Event {
	return &types.Event{Type: EventTypeLiquidated, Attributes: map[string]string{
		"debtPositionId": formatUint(debt.ID),
		"borrower":       debt.Borrower.String(),
		"liquidator":     liquidator.String(),
		"profit":         formatAmount(profit),
	}}
}

// NewSelfLiquidatedEvent reports a lender crystallizing a loss.
func NewSelfLiquidatedEvent(credit *CreditPosition, collateral *big.Int) *types.Event {
	return &types.Event{Type: EventTypeSelfLiquidated, Attributes: map[string]string{
		"creditPositionId": formatUint(credit.ID),
		"lender":           credit.Lender.String(),
		"collateral":       formatAmount(collateral),
	}}
}

// NewReplacedEvent reports a liquidation with replacement borrower.
func NewReplacedEvent(debt *DebtPosition, oldBorrower crypto.Address, issuanceValue *big.Int) *types.Event {
	return &types.Event{Type: EventTypeReplaced, Attributes: map[string]string{
		"debtPositionId": formatUint(debt.ID),
		"oldBorrower":    oldBorrower.String(),
		"newBorrower":    debt.Borrower.String(),
		"issuanceValue":  formatAmount(issuanceValue),
	}}
}

// NewUserConfiguredEvent reports updated account-level sale settings.
func NewUserConfiguredEvent(addr crypto.Address) *types.Event {
	return &types.Event{Type: EventTypeUserConfigured, Attributes: map[string]string{
		"address": addr.String(),
	}}
}

// NewConfigUpdatedEvent reports a single-field configuration change.
func NewConfigUpdatedEvent(field ConfigField) *types.Event {
	return &types.Event{Type: EventTypeConfigUpdated, Attributes: map[string]string{
		"field": strconv.Itoa(int(field)),
	}}
}

// NewDepositEvent reports balance minted into the ledger.
func NewDepositEvent(addr crypto.Address, token string, amount *big.Int) *types.Event {
	return &types.Event{Type: EventTypeDeposit, Attributes: map[string]string{
		"address": addr.String(),
		"token":   token,
		"amount":  formatAmount(amount),
	}}
}

// NewWithdrawEvent reports balance burned out of the ledger.
func NewWithdrawEvent(addr crypto.Address, token string, amount *big.Int) *types.Event {
	return &types.Event{Type: EventTypeWithdraw, Attributes: map[string]string{
		"address": addr.String(),
		"token":   token,
		"amount":  formatAmount(amount),
	}}
}
