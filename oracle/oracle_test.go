package oracle

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStaticPriceFeed(t *testing.T) {
	feed := NewStaticPriceFeed(big.NewInt(1_000_000), 6)

	price, decimals, err := feed.Price()
	require.NoError(t, err)
	require.Equal(t, big.NewInt(1_000_000), price)
	require.Equal(t, uint8(6), decimals)

	feed.Set(big.NewInt(900_000), 6)
	price, _, err = feed.Price()
	require.NoError(t, err)
	require.Equal(t, big.NewInt(900_000), price)
}

func TestStaticPriceFeedNoQuote(t *testing.T) {
	feed := NewStaticPriceFeed(nil, 18)
	_, _, err := feed.Price()
	require.ErrorIs(t, err, ErrNoPrice)

	feed = NewStaticPriceFeed(big.NewInt(0), 18)
	_, _, err = feed.Price()
	require.ErrorIs(t, err, ErrNoPrice)
}

func TestRateSnapshotStaleness(t *testing.T) {
	snap := RateSnapshot{UpdatedAt: 1000, StaleInterval: 100}

	require.False(t, snap.IsStale(1000))
	require.False(t, snap.IsStale(1100))
	require.True(t, snap.IsStale(1101))

	// A snapshot from the future is never stale.
	require.False(t, snap.IsStale(500))

	// A zero interval disables variable-rate quoting entirely.
	disabled := RateSnapshot{UpdatedAt: 1000}
	require.True(t, disabled.IsStale(1000))
}

func TestStaticRateFeedCopiesSnapshot(t *testing.T) {
	rate := big.NewInt(42)
	feed := NewStaticRateFeed(RateSnapshot{VariablePoolBorrowRate: rate, UpdatedAt: 1000})
	rate.SetInt64(99)

	snap := feed.BorrowRate()
	require.Equal(t, big.NewInt(42), snap.VariablePoolBorrowRate)
	require.Equal(t, uint64(1000), snap.UpdatedAt)

	snap.VariablePoolBorrowRate.SetInt64(7)
	require.Equal(t, big.NewInt(42), feed.BorrowRate().VariablePoolBorrowRate)
}
