package venue

import (
	"errors"
	"math/big"
	"sync"
)

// wad is the 1e18 fixed-point unit the liquidity index is expressed in.
var wad = big.NewInt(1_000_000_000_000_000_000)

var (
	// ErrInvalidAmount rejects nil or non-positive supply and withdraw amounts.
	ErrInvalidAmount = errors.New("yield venue: invalid amount")
	// ErrInsufficientLiquidity rejects withdrawals beyond the venue balance.
	ErrInsufficientLiquidity = errors.New("yield venue: insufficient liquidity")
	// ErrIndexRegression rejects attempts to move the liquidity index backward.
	ErrIndexRegression = errors.New("yield venue: liquidity index cannot decrease")
)

// Venue is a minimal yield-bearing pool. Supplied cash sits in the venue and
// grows with the liquidity index; the index starts at one wad and only ever
// increases. Accrual is driven externally, either by an oracle relay or by
// tests.
type Venue struct {
	mu      sync.Mutex
	balance *big.Int
	index   *big.Int
}

// New returns an empty venue with the index at one.
func New() *Venue {
	return &Venue{balance: big.NewInt(0), index: new(big.Int).Set(wad)}
}

// Supply adds cash to the venue.
func (v *Venue) Supply(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.balance = new(big.Int).Add(v.balance, amount)
	return nil
}

// Withdraw removes cash from the venue.
func (v *Venue) Withdraw(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.balance.Cmp(amount) < 0 {
		return ErrInsufficientLiquidity
	}
	v.balance = new(big.Int).Sub(v.balance, amount)
	return nil
}

// LiquidityIndex returns the current index, 1e18 scaled.
func (v *Venue) LiquidityIndex() *big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return new(big.Int).Set(v.index)
}

// AccrueTo raises the liquidity index to the given value. The index is
// monotone; a lower value is an error, an equal value is a no-op.
func (v *Venue) AccrueTo(index *big.Int) error {
	if index == nil || index.Sign() <= 0 {
		return ErrInvalidAmount
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if index.Cmp(v.index) < 0 {
		return ErrIndexRegression
	}
	v.index = new(big.Int).Set(index)
	return nil
}

// Balance reports the cash currently held by the venue.
func (v *Venue) Balance() *big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return new(big.Int).Set(v.balance)
}
