package credit

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func flatCurve(aprNumerator, aprDenominator int64) YieldCurve {
	return YieldCurve{
		Tenors:                []uint64{100, yearSeconds},
		APRs:                  []*big.Int{wadPercent(aprNumerator, aprDenominator), wadPercent(aprNumerator, aprDenominator)},
		MarketRateMultipliers: flatMultipliers(2),
	}
}

func TestBuyCreditLimitValidation(t *testing.T) {
	env := newTestEnv(t)

	err := env.engine.BuyCreditLimit(BuyCreditLimitParams{
		Lender: env.lender,
		Curve:  flatCurve(1, 10),
	})
	require.ErrorIs(t, err, errNullMaxDueDate)

	err = env.engine.BuyCreditLimit(BuyCreditLimitParams{
		Lender:     env.lender,
		MaxDueDate: env.engine.Timestamp() - 1,
		Curve:      flatCurve(1, 10),
	})
	require.ErrorIs(t, err, errPastMaxDueDate)

	// The max due date must leave room for the curve's shortest tenor, 100
	// seconds here.
	err = env.engine.BuyCreditLimit(BuyCreditLimitParams{
		Lender:     env.lender,
		MaxDueDate: env.engine.Timestamp() + 99,
		Curve:      flatCurve(1, 10),
	})
	require.ErrorIs(t, err, errPastMaxDueDate)

	require.NoError(t, env.engine.BuyCreditLimit(BuyCreditLimitParams{
		Lender:     env.lender,
		MaxDueDate: env.engine.Timestamp() + 2*yearSeconds,
		Curve:      flatCurve(1, 10),
	}))
	user, err := env.engine.UserByAddress(env.lender)
	require.NoError(t, err)
	require.False(t, user.LoanOffer.IsNull())

	// An empty curve clears the offer.
	require.NoError(t, env.engine.BuyCreditLimit(BuyCreditLimitParams{Lender: env.lender}))
	user, err = env.engine.UserByAddress(env.lender)
	require.NoError(t, err)
	require.True(t, user.LoanOffer.IsNull())
}

func TestSellCreditLimitRoundTrip(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.engine.SellCreditLimit(SellCreditLimitParams{
		Borrower: env.borrower,
		Curve:    flatCurve(1, 10),
	}))
	user, err := env.engine.UserByAddress(env.borrower)
	require.NoError(t, err)
	require.False(t, user.BorrowOffer.IsNull())

	require.NoError(t, env.engine.SellCreditLimit(SellCreditLimitParams{Borrower: env.borrower}))
	user, err = env.engine.UserByAddress(env.borrower)
	require.NoError(t, err)
	require.True(t, user.BorrowOffer.IsNull())
}

// postLoanOffer funds the lender and posts a standing 10% loan offer.
func postLoanOffer(t *testing.T, env *testEnv, cash int64) {
	t.Helper()
	require.NoError(t, env.engine.DepositCash(env.lender, big.NewInt(cash)))
	require.NoError(t, env.engine.BuyCreditLimit(BuyCreditLimitParams{
		Lender:     env.lender,
		MaxDueDate: env.engine.Timestamp() + 2*yearSeconds,
		Curve:      flatCurve(1, 10),
	}))
}

func TestSellCreditMarketOriginatesLoan(t *testing.T) {
	env := newTestEnv(t)
	postLoanOffer(t, env, 5000)
	require.NoError(t, env.engine.DepositCollateral(env.borrower, big.NewInt(2000)))

	require.NoError(t, env.engine.SellCreditMarket(SellCreditMarketParams{
		Seller:           env.borrower,
		Lender:           env.lender,
		CreditPositionID: ReservedID,
		Amount:           big.NewInt(1100),
		Tenor:            yearSeconds,
		Deadline:         env.engine.Timestamp(),
		ExactAmountIn:    true,
	}))

	// 1100 credit at 10% over one year is 1000 cash, fee free in this config.
	require.Equal(t, big.NewInt(1000), env.cashBalance(t, env.borrower))
	require.Equal(t, big.NewInt(4000), env.cashBalance(t, env.lender))

	debt, err := env.engine.DebtPositionByID(debtPositionIDStart)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(1100), debt.FutureValue)
	require.Equal(t, env.borrower, debt.Borrower)
	require.Equal(t, env.engine.Timestamp()+yearSeconds, debt.DueDate)

	position, err := env.engine.CreditPositionByID(creditPositionIDStart)
	require.NoError(t, err)
	require.Equal(t, env.lender, position.Lender)
	require.Equal(t, big.NewInt(1100), position.Credit)
	require.Equal(t, debt.ID, position.DebtPositionID)

	borrower, err := env.engine.UserByAddress(env.borrower)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(1100), borrower.TotalDebt)
}

func TestSellCreditMarketRejections(t *testing.T) {
	env := newTestEnv(t)
	postLoanOffer(t, env, 5000)
	require.NoError(t, env.engine.DepositCollateral(env.borrower, big.NewInt(2000)))

	base := SellCreditMarketParams{
		Seller:           env.borrower,
		Lender:           env.lender,
		CreditPositionID: ReservedID,
		Amount:           big.NewInt(1100),
		Tenor:            yearSeconds,
		Deadline:         env.engine.Timestamp(),
		ExactAmountIn:    true,
	}

	expired := base
	expired.Deadline = env.engine.Timestamp() - 1
	require.ErrorIs(t, env.engine.SellCreditMarket(expired), errPastDeadline)

	capped := base
	capped.MaxAPR = wadPercent(1, 20)
	require.ErrorIs(t, env.engine.SellCreditMarket(capped), errAPRGreaterThanMax)

	tiny := base
	tiny.Amount = big.NewInt(40)
	require.ErrorIs(t, env.engine.SellCreditMarket(tiny), errMinimumCreditNotReached)

	shortTenor := base
	shortTenor.Tenor = 30
	require.ErrorIs(t, env.engine.SellCreditMarket(shortTenor), errTenorOutOfRange)

	noOffer := base
	noOffer.Lender = env.third
	require.ErrorIs(t, env.engine.SellCreditMarket(noOffer), errInvalidLoanOffer)
}

func TestSellCreditMarketFailedExitLeavesStateUntouched(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.engine.DepositCollateral(env.borrower, big.NewInt(2000)))
	_, position := env.originate(t, env.lender, env.borrower, 500, env.engine.Timestamp()+yearSeconds)
	require.NoError(t, env.engine.DepositCash(env.third, big.NewInt(1000)))
	require.NoError(t, env.engine.BuyCreditLimit(BuyCreditLimitParams{
		Lender:     env.third,
		MaxDueDate: env.engine.Timestamp() + 2*yearSeconds,
		Curve:      flatCurve(1, 10),
	}))

	// Selling 460 of the 500 credit would strand a 40 token remainder below
	// the 50 minimum. The order must fail before any cash moves.
	err := env.engine.SellCreditMarket(SellCreditMarketParams{
		Seller:           env.lender,
		Lender:           env.third,
		CreditPositionID: position.ID,
		Amount:           big.NewInt(460),
		Deadline:         env.engine.Timestamp(),
		ExactAmountIn:    true,
	})
	require.ErrorIs(t, err, errCreditLowerThanMinimum)

	require.Equal(t, big.NewInt(1000), env.cashBalance(t, env.third))
	require.Equal(t, int64(0), env.cashBalance(t, env.lender).Int64())
	position, err = env.engine.CreditPositionByID(position.ID)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(500), position.Credit)
}

func TestSellCreditMarketRequiresOpeningRatio(t *testing.T) {
	env := newTestEnv(t)
	postLoanOffer(t, env, 5000)
	// 1000 collateral against 1100 new debt is far below the 1.5 floor.
	require.NoError(t, env.engine.DepositCollateral(env.borrower, big.NewInt(1000)))

	err := env.engine.SellCreditMarket(SellCreditMarketParams{
		Seller:           env.borrower,
		Lender:           env.lender,
		CreditPositionID: ReservedID,
		Amount:           big.NewInt(1100),
		Tenor:            yearSeconds,
		Deadline:         env.engine.Timestamp(),
		ExactAmountIn:    true,
	})
	require.ErrorIs(t, err, errBelowOpeningLimit)
}

func TestSellCreditMarketMaxDueDate(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.engine.DepositCash(env.lender, big.NewInt(5000)))
	require.NoError(t, env.engine.BuyCreditLimit(BuyCreditLimitParams{
		Lender:     env.lender,
		MaxDueDate: env.engine.Timestamp() + yearSeconds/2,
		Curve:      flatCurve(1, 10),
	}))
	require.NoError(t, env.engine.DepositCollateral(env.borrower, big.NewInt(2000)))

	err := env.engine.SellCreditMarket(SellCreditMarketParams{
		Seller:           env.borrower,
		Lender:           env.lender,
		CreditPositionID: ReservedID,
		Amount:           big.NewInt(1100),
		Tenor:            yearSeconds,
		Deadline:         env.engine.Timestamp(),
		ExactAmountIn:    true,
	})
	require.ErrorIs(t, err, errDueDateOutOfRange)
}

func TestBuyCreditMarketPartialSaleFragments(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.engine.DepositCollateral(env.borrower, big.NewInt(2000)))
	_, position := env.originate(t, env.lender, env.borrower, 500, env.engine.Timestamp()+yearSeconds)

	// The holder prices sales through their standing borrow offer.
	require.NoError(t, env.engine.SellCreditLimit(SellCreditLimitParams{
		Borrower: env.lender,
		Curve:    flatCurve(1, 10),
	}))
	require.NoError(t, env.engine.DepositCash(env.third, big.NewInt(1000)))

	require.NoError(t, env.engine.BuyCreditMarket(BuyCreditMarketParams{
		Lender:           env.third,
		CreditPositionID: position.ID,
		Amount:           big.NewInt(200),
		Deadline:         env.engine.Timestamp(),
		ExactAmountIn:    false,
	}))

	source, err := env.engine.CreditPositionByID(position.ID)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(300), source.Credit)
	require.Equal(t, env.lender, source.Lender)

	fragment, err := env.engine.CreditPositionByID(creditPositionIDStart + 1)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(200), fragment.Credit)
	require.Equal(t, env.third, fragment.Lender)
	require.Equal(t, source.DebtPositionID, fragment.DebtPositionID)

	// 200 credit at 10% over a year costs ceil(200/1.1) = 182 cash.
	require.Equal(t, big.NewInt(818), env.cashBalance(t, env.third))
	require.Equal(t, big.NewInt(182), env.cashBalance(t, env.lender))
}

func TestBuyCreditMarketHonorsSaleFlags(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.engine.DepositCollateral(env.borrower, big.NewInt(2000)))
	_, position := env.originate(t, env.lender, env.borrower, 500, env.engine.Timestamp()+yearSeconds)
	require.NoError(t, env.engine.SellCreditLimit(SellCreditLimitParams{
		Borrower: env.lender,
		Curve:    flatCurve(1, 10),
	}))
	require.NoError(t, env.engine.DepositCash(env.third, big.NewInt(1000)))

	require.NoError(t, env.engine.SetUserConfiguration(env.lender, UserConfigurationParams{
		CreditPositionIDsForSale: []uint64{position.ID},
		ForSale:                  false,
	}))

	err := env.engine.BuyCreditMarket(BuyCreditMarketParams{
		Lender:           env.third,
		CreditPositionID: position.ID,
		Amount:           big.NewInt(200),
		Deadline:         env.engine.Timestamp(),
	})
	require.ErrorIs(t, err, errCreditNotForSale)
}

func TestBuyCreditMarketMinAPR(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.engine.DepositCollateral(env.borrower, big.NewInt(2000)))
	require.NoError(t, env.engine.SellCreditLimit(SellCreditLimitParams{
		Borrower: env.borrower,
		Curve:    flatCurve(1, 10),
	}))
	require.NoError(t, env.engine.DepositCash(env.lender, big.NewInt(5000)))

	err := env.engine.BuyCreditMarket(BuyCreditMarketParams{
		Lender:           env.lender,
		Borrower:         env.borrower,
		CreditPositionID: ReservedID,
		Amount:           big.NewInt(1000),
		Tenor:            yearSeconds,
		Deadline:         env.engine.Timestamp(),
		MinAPR:           wadPercent(1, 5),
		ExactAmountIn:    true,
	})
	require.ErrorIs(t, err, errAPRLowerThanMin)
}

func TestBuyCreditMarketOriginatesLoan(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.engine.DepositCollateral(env.borrower, big.NewInt(2000)))
	require.NoError(t, env.engine.SellCreditLimit(SellCreditLimitParams{
		Borrower: env.borrower,
		Curve:    flatCurve(1, 10),
	}))
	require.NoError(t, env.engine.DepositCash(env.lender, big.NewInt(5000)))

	require.NoError(t, env.engine.BuyCreditMarket(BuyCreditMarketParams{
		Lender:           env.lender,
		Borrower:         env.borrower,
		CreditPositionID: ReservedID,
		Amount:           big.NewInt(1000),
		Tenor:            yearSeconds,
		Deadline:         env.engine.Timestamp(),
		ExactAmountIn:    true,
	}))

	debt, err := env.engine.DebtPositionByID(debtPositionIDStart)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(1100), debt.FutureValue)
	require.Equal(t, big.NewInt(1000), env.cashBalance(t, env.borrower))
	require.Equal(t, big.NewInt(4000), env.cashBalance(t, env.lender))
}
