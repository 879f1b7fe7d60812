package credit

import (
	"math"
	"math/big"
)

// Percent is the 1e18 fixed-point unit used for ratios, APRs and fee
// percentages throughout the market.
var Percent = big.NewInt(1_000_000_000_000_000_000)

// yearSeconds is the tenor denominator for simple pro-rated interest.
const yearSeconds = 365 * 24 * 60 * 60

var year = big.NewInt(yearSeconds)

// MaxCollateralRatio is the sentinel returned for accounts with no
// outstanding debt.
var MaxCollateralRatio = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// notFound is the sentinel index pair returned by binarySearch when the value
// falls outside the array bounds.
const notFound = math.MaxUint64

const wadDecimals = 18

// mulDivDown computes x*y/z at full precision, rounding toward zero. A zero
// denominator yields zero; callers guard the cases where that matters.
func mulDivDown(x, y, z *big.Int) *big.Int {
	if x == nil || y == nil || z == nil || z.Sign() == 0 {
		return big.NewInt(0)
	}
	product := new(big.Int).Mul(x, y)
	return product.Quo(product, z)
}

// mulDivUp computes x*y/z at full precision, rounding away from zero.
// Receivables of the protocol and of liquidators round up; reversing the
// direction breaks solvency.
func mulDivUp(x, y, z *big.Int) *big.Int {
	if x == nil || y == nil || z == nil || z.Sign() == 0 {
		return big.NewInt(0)
	}
	product := new(big.Int).Mul(x, y)
	product.Add(product, new(big.Int).Sub(z, big.NewInt(1)))
	return product.Quo(product, z)
}

// amountToWad scales a token amount to the 18-decimal fixed point used for
// ratio math. Token decimals above 18 are rejected at the ledger boundary and
// never reach this function.
func amountToWad(amount *big.Int, decimals uint8) *big.Int {
	if amount == nil {
		return big.NewInt(0)
	}
	if decimals >= wadDecimals {
		return new(big.Int).Set(amount)
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(wadDecimals-decimals)), nil)
	return new(big.Int).Mul(amount, scale)
}

// aprToRatePerTenor converts an annualized rate to the simple pro-rated rate
// for a tenor: apr * tenor / year.
func aprToRatePerTenor(apr *big.Int, tenor uint64) *big.Int {
	return mulDivDown(apr, new(big.Int).SetUint64(tenor), year)
}

// binarySearch locates the indices bracketing value in a strictly increasing
// array: array[low] <= value <= array[high], with low == high on an exact
// match. Values outside the array bounds return the notFound sentinel pair.
func binarySearch(array []uint64, value uint64) (uint64, uint64) {
	if len(array) == 0 || value < array[0] || value > array[len(array)-1] {
		return notFound, notFound
	}
	low, high := 0, len(array)-1
	for low <= high {
		mid := (low + high) / 2
		switch {
		case array[mid] == value:
			return uint64(mid), uint64(mid)
		case array[mid] < value:
			low = mid + 1
		default:
			high = mid - 1
		}
	}
	// low and high crossed: array[high] < value < array[low].
	return uint64(high), uint64(low)
}

func minBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
