package credit

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRepayAndClaim(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.engine.DepositCollateral(env.borrower, big.NewInt(200)))
	debt, position := env.originate(t, env.lender, env.borrower, 100, env.engine.Timestamp()+yearSeconds)
	require.NoError(t, env.engine.DepositCash(env.borrower, big.NewInt(100)))

	require.NoError(t, env.engine.Repay(RepayParams{
		Payer:          env.borrower,
		DebtPositionID: debt.ID,
	}))
	require.Equal(t, int64(0), env.cashBalance(t, env.borrower).Int64())
	require.Equal(t, big.NewInt(100), env.venue.balance)

	status, err := env.engine.LoanStatusByID(debt.ID)
	require.NoError(t, err)
	require.Equal(t, LoanStatusRepaid, status)

	// The collateral stays with the borrower once the debt is gone.
	require.NoError(t, env.engine.WithdrawCollateral(env.borrower, big.NewInt(200)))

	require.NoError(t, env.engine.Claim(ClaimParams{CreditPositionID: position.ID}))
	require.Equal(t, big.NewInt(100), env.cashBalance(t, env.lender))
	require.Equal(t, int64(0), env.venue.balance.Int64())

	err = env.engine.Claim(ClaimParams{CreditPositionID: position.ID})
	require.ErrorIs(t, err, errAlreadyClaimed)
}

func TestRepayTwiceRejected(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.engine.DepositCollateral(env.borrower, big.NewInt(200)))
	debt, _ := env.originate(t, env.lender, env.borrower, 100, env.engine.Timestamp()+yearSeconds)
	require.NoError(t, env.engine.DepositCash(env.borrower, big.NewInt(200)))

	require.NoError(t, env.engine.Repay(RepayParams{Payer: env.borrower, DebtPositionID: debt.ID}))
	err := env.engine.Repay(RepayParams{Payer: env.borrower, DebtPositionID: debt.ID})
	require.ErrorIs(t, err, errLoanAlreadyRepaid)
}

func TestRepayByThirdParty(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.engine.DepositCollateral(env.borrower, big.NewInt(200)))
	debt, _ := env.originate(t, env.lender, env.borrower, 100, env.engine.Timestamp()+yearSeconds)
	require.NoError(t, env.engine.DepositCash(env.third, big.NewInt(100)))

	require.NoError(t, env.engine.Repay(RepayParams{Payer: env.third, DebtPositionID: debt.ID}))
	require.Equal(t, int64(0), env.cashBalance(t, env.third).Int64())

	borrower, err := env.engine.UserByAddress(env.borrower)
	require.NoError(t, err)
	require.Equal(t, int64(0), borrower.TotalDebt.Int64())
}

func TestClaimBeforeRepayRejected(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.engine.DepositCollateral(env.borrower, big.NewInt(200)))
	_, position := env.originate(t, env.lender, env.borrower, 100, env.engine.Timestamp()+yearSeconds)

	err := env.engine.Claim(ClaimParams{CreditPositionID: position.ID})
	require.ErrorIs(t, err, errLoanNotRepaid)
}

func TestClaimScalesWithLiquidityIndex(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.engine.DepositCollateral(env.borrower, big.NewInt(200)))
	debt, position := env.originate(t, env.lender, env.borrower, 100, env.engine.Timestamp()+yearSeconds)
	require.NoError(t, env.engine.DepositCash(env.borrower, big.NewInt(100)))
	require.NoError(t, env.engine.Repay(RepayParams{Payer: env.borrower, DebtPositionID: debt.ID}))

	// The venue accrues 10% while the cash sits unclaimed.
	env.venue.index = wadPercent(11, 10)
	env.venue.balance = big.NewInt(110)

	require.NoError(t, env.engine.Claim(ClaimParams{CreditPositionID: position.ID}))
	require.Equal(t, big.NewInt(110), env.cashBalance(t, env.lender))
}

func TestClaimByAnyonePaysLender(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.engine.DepositCollateral(env.borrower, big.NewInt(200)))
	debt, position := env.originate(t, env.lender, env.borrower, 100, env.engine.Timestamp()+yearSeconds)
	require.NoError(t, env.engine.DepositCash(env.borrower, big.NewInt(100)))
	require.NoError(t, env.engine.Repay(RepayParams{Payer: env.borrower, DebtPositionID: debt.ID}))

	// Claiming carries no caller identity; the proceeds land with the
	// position's lender no matter who submits it.
	require.NoError(t, env.engine.Claim(ClaimParams{CreditPositionID: position.ID}))
	require.Equal(t, big.NewInt(100), env.cashBalance(t, env.lender))
	require.Equal(t, int64(0), env.cashBalance(t, env.third).Int64())
}

func TestCompensateWithExistingCredit(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.engine.DepositCollateral(env.borrower, big.NewInt(2000)))
	require.NoError(t, env.engine.DepositCollateral(env.lender, big.NewInt(2000)))

	// lender owes borrower 100 due earlier; borrower owes lender 100.
	dueDate := env.engine.Timestamp() + yearSeconds
	_, creditHeldByLender := env.originate(t, env.lender, env.borrower, 100, dueDate)
	_, creditHeldByBorrower := env.originate(t, env.borrower, env.lender, 100, dueDate-1000)

	require.NoError(t, env.engine.Compensate(CompensateParams{
		Caller:                          env.borrower,
		CreditPositionWithDebtToRepayID: creditHeldByLender.ID,
		CreditPositionToCompensateID:    creditHeldByBorrower.ID,
		Amount:                          big.NewInt(100),
	}))

	// The borrower's debt is extinguished and the lender now holds the
	// borrower's claim against the lender's own debt instead.
	borrower, err := env.engine.UserByAddress(env.borrower)
	require.NoError(t, err)
	require.Equal(t, int64(0), borrower.TotalDebt.Int64())

	creditHeldByLender, err = env.engine.CreditPositionByID(creditHeldByLender.ID)
	require.NoError(t, err)
	require.Equal(t, int64(0), creditHeldByLender.Credit.Int64())

	// Full consumption reassigns the compensating position in place.
	reassigned, err := env.engine.CreditPositionByID(creditHeldByBorrower.ID)
	require.NoError(t, err)
	require.Equal(t, env.lender, reassigned.Lender)
	require.Equal(t, big.NewInt(100), reassigned.Credit)
}

func TestCompensateWithReservedIDSplitsDebt(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.engine.DepositCollateral(env.borrower, big.NewInt(2000)))
	debt, position := env.originate(t, env.lender, env.borrower, 200, env.engine.Timestamp()+yearSeconds)

	require.NoError(t, env.engine.Compensate(CompensateParams{
		Caller:                          env.borrower,
		CreditPositionWithDebtToRepayID: position.ID,
		CreditPositionToCompensateID:    ReservedID,
		Amount:                          big.NewInt(80),
	}))

	// A fresh same-due-date loan from the borrower to themselves absorbs
	// the 80, so aggregate debt is unchanged but split across positions.
	debt, err := env.engine.DebtPositionByID(debt.ID)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(120), debt.FutureValue)

	fresh, err := env.engine.DebtPositionByID(debtPositionIDStart + 1)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(80), fresh.FutureValue)
	require.Equal(t, env.borrower, fresh.Borrower)
	require.Equal(t, debt.DueDate, fresh.DueDate)

	borrower, err := env.engine.UserByAddress(env.borrower)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(200), borrower.TotalDebt)
}

func TestCompensateValidation(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.engine.DepositCollateral(env.borrower, big.NewInt(2000)))
	dueDate := env.engine.Timestamp() + yearSeconds
	_, position := env.originate(t, env.lender, env.borrower, 100, dueDate)

	err := env.engine.Compensate(CompensateParams{
		Caller:                          env.third,
		CreditPositionWithDebtToRepayID: position.ID,
		CreditPositionToCompensateID:    ReservedID,
		Amount:                          big.NewInt(50),
	})
	require.ErrorIs(t, err, errCallerNotBorrower)

	err = env.engine.Compensate(CompensateParams{
		Caller:                          env.borrower,
		CreditPositionWithDebtToRepayID: position.ID,
		CreditPositionToCompensateID:    position.ID,
		Amount:                          big.NewInt(50),
	})
	require.ErrorIs(t, err, errCompensateSamePosition)

	// A compensating claim due after the debt cannot settle it.
	require.NoError(t, env.engine.DepositCollateral(env.lender, big.NewInt(2000)))
	_, late := env.originate(t, env.borrower, env.lender, 100, dueDate+1000)
	err = env.engine.Compensate(CompensateParams{
		Caller:                          env.borrower,
		CreditPositionWithDebtToRepayID: position.ID,
		CreditPositionToCompensateID:    late.ID,
		Amount:                          big.NewInt(50),
	})
	require.ErrorIs(t, err, errDueDateNotCompatible)
}

func TestCompensateUnderwaterBorrowerRejected(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.engine.DepositCollateral(env.borrower, big.NewInt(130)))
	_, position := env.originate(t, env.lender, env.borrower, 100, env.engine.Timestamp()+yearSeconds)
	// 130 collateral at 0.9 puts the borrower's ratio at 1.17, below the
	// 1.3 liquidation floor.
	env.priceFeed.Set(wadPercent(9, 10), 18)

	err := env.engine.Compensate(CompensateParams{
		Caller:                          env.borrower,
		CreditPositionWithDebtToRepayID: position.ID,
		CreditPositionToCompensateID:    ReservedID,
		Amount:                          big.NewInt(50),
	})
	require.ErrorIs(t, err, errUserIsUnderwater)
}
