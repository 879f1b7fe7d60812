// Package oracle defines the external market-data contracts the credit
// engine consumes: a collateral price feed and a variable borrow-rate feed.
// Staleness of the price is the feed's own responsibility; staleness of the
// variable rate is re-validated by the curve math on every quote.
package oracle

import (
	"errors"
	"math/big"
	"sync"
)

var (
	ErrNoPrice = errors.New("oracle: no price available")
)

// PriceFeed quotes the collateral token price in borrow-token terms.
type PriceFeed interface {
	// Price returns the current price and the number of decimals it is
	// scaled by.
	Price() (*big.Int, uint8, error)
}

// RateSnapshot is a plain struct snapshot of the variable borrow-rate oracle,
// passed by value into curve evaluation.
type RateSnapshot struct {
	// VariablePoolBorrowRate is the external variable APR, 1e18 scaled.
	VariablePoolBorrowRate *big.Int `json:"variablePoolBorrowRate"`
	// UpdatedAt is the timestamp of the last oracle refresh.
	UpdatedAt uint64 `json:"updatedAt"`
	// StaleInterval bounds the acceptable snapshot age. Zero disables
	// variable-rate quoting entirely.
	StaleInterval uint64 `json:"staleInterval"`
}

// IsStale reports whether the snapshot is unusable at the given time.
func (s RateSnapshot) IsStale(now uint64) bool {
	if s.StaleInterval == 0 {
		return true
	}
	if now < s.UpdatedAt {
		return false
	}
	return now-s.UpdatedAt > s.StaleInterval
}

// RateFeed supplies variable borrow-rate snapshots.
type RateFeed interface {
	BorrowRate() RateSnapshot
}

// StaticPriceFeed is a settable in-process price feed used by the node
// bootstrap and by tests.
type StaticPriceFeed struct {
	mu       sync.RWMutex
	value    *big.Int
	decimals uint8
}

// NewStaticPriceFeed seeds a feed with an initial quote.
func NewStaticPriceFeed(value *big.Int, decimals uint8) *StaticPriceFeed {
	feed := &StaticPriceFeed{decimals: decimals}
	if value != nil {
		feed.value = new(big.Int).Set(value)
	}
	return feed
}

// Price returns the last quote set on the feed.
func (f *StaticPriceFeed) Price() (*big.Int, uint8, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.value == nil || f.value.Sign() <= 0 {
		return nil, 0, ErrNoPrice
	}
	return new(big.Int).Set(f.value), f.decimals, nil
}

// Set replaces the current quote.
func (f *StaticPriceFeed) Set(value *big.Int, decimals uint8) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.value = new(big.Int).Set(value)
	f.decimals = decimals
}

// StaticRateFeed is a settable in-process variable-rate feed.
type StaticRateFeed struct {
	mu   sync.RWMutex
	snap RateSnapshot
}

// NewStaticRateFeed seeds a feed with an initial snapshot.
func NewStaticRateFeed(snap RateSnapshot) *StaticRateFeed {
	feed := &StaticRateFeed{}
	feed.Set(snap)
	return feed
}

// BorrowRate returns the last snapshot set on the feed.
func (f *StaticRateFeed) BorrowRate() RateSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	snap := f.snap
	if snap.VariablePoolBorrowRate != nil {
		snap.VariablePoolBorrowRate = new(big.Int).Set(snap.VariablePoolBorrowRate)
	}
	return snap
}

// Set replaces the current snapshot.
func (f *StaticRateFeed) Set(snap RateSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if snap.VariablePoolBorrowRate != nil {
		snap.VariablePoolBorrowRate = new(big.Int).Set(snap.VariablePoolBorrowRate)
	}
	f.snap = snap
}
