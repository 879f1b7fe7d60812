package types

import "math/big"

// Account captures the free balances a participant holds inside the market
// ledger. Amounts are denominated in the smallest unit of each token and kept
// as big integers so money math never truncates.
type Account struct {
	// Nonce counts state-changing submissions accepted from this account.
	Nonce uint64 `json:"nonce"`
	// BalanceCash is the borrow-token balance available for lending, buying
	// credit, or repayment.
	BalanceCash *big.Int `json:"balanceCash"`
	// BalanceCollateral is the collateral-token balance that has not been
	// pledged against debt. Liquidation proceeds land here.
	BalanceCollateral *big.Int `json:"balanceCollateral"`
}

// Normalize replaces nil balance fields with zero values so callers can do
// arithmetic without guarding every access.
func (a *Account) Normalize() {
	if a.BalanceCash == nil {
		a.BalanceCash = big.NewInt(0)
	}
	if a.BalanceCollateral == nil {
		a.BalanceCollateral = big.NewInt(0)
	}
}
