package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"tenorbook/core/types"
	"tenorbook/crypto"
	"tenorbook/native/credit"
	"tenorbook/storage"
)

func testAddress(t *testing.T) crypto.Address {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	return key.PubKey().Address()
}

func TestManagerAccountRoundTrip(t *testing.T) {
	m, err := NewManager(storage.NewMemDB())
	require.NoError(t, err)
	addr := testAddress(t)

	missing, err := m.GetAccount(addr)
	require.NoError(t, err)
	require.Nil(t, missing)

	account := &types.Account{
		BalanceCash:       big.NewInt(1000),
		BalanceCollateral: big.NewInt(250),
	}
	require.NoError(t, m.PutAccount(addr, account))

	loaded, err := m.GetAccount(addr)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(1000), loaded.BalanceCash)
	require.Equal(t, big.NewInt(250), loaded.BalanceCollateral)
}

func TestManagerPositionRoundTrip(t *testing.T) {
	m, err := NewManager(storage.NewMemDB())
	require.NoError(t, err)
	borrower := testAddress(t)
	lender := testAddress(t)

	debtID := m.NextDebtPositionID()
	creditID := m.NextCreditPositionID()
	require.NoError(t, m.PutDebtPosition(&credit.DebtPosition{
		ID:                        debtID,
		Borrower:                  borrower,
		FutureValue:               big.NewInt(1100),
		DueDate:                   2_000_000,
		LiquidityIndexAtRepayment: big.NewInt(0),
	}))
	require.NoError(t, m.PutCreditPosition(&credit.CreditPosition{
		ID:             creditID,
		Lender:         lender,
		Credit:         big.NewInt(1100),
		ForSale:        true,
		DebtPositionID: debtID,
	}))

	debt, err := m.GetDebtPosition(debtID)
	require.NoError(t, err)
	require.Equal(t, borrower, debt.Borrower)
	require.Equal(t, big.NewInt(1100), debt.FutureValue)

	position, err := m.GetCreditPosition(creditID)
	require.NoError(t, err)
	require.Equal(t, lender, position.Lender)
	require.Equal(t, debtID, position.DebtPositionID)
	require.True(t, position.ForSale)

	absent, err := m.GetDebtPosition(debtID + 1)
	require.NoError(t, err)
	require.Nil(t, absent)
}

func TestManagerUserAndGlobals(t *testing.T) {
	m, err := NewManager(storage.NewMemDB())
	require.NoError(t, err)
	addr := testAddress(t)

	require.NoError(t, m.PutUser(&credit.User{
		Address:    addr,
		Collateral: big.NewInt(500),
		TotalDebt:  big.NewInt(100),
	}))
	user, err := m.GetUser(addr)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(500), user.Collateral)

	require.NoError(t, m.PutGlobals(&credit.Globals{TotalCashDeposits: big.NewInt(9000)}))
	globals, err := m.GetGlobals()
	require.NoError(t, err)
	require.Equal(t, big.NewInt(9000), globals.TotalCashDeposits)
}

func TestManagerSequencesSurviveReopen(t *testing.T) {
	db := storage.NewMemDB()

	m, err := NewManager(db)
	require.NoError(t, err)
	first := m.NextDebtPositionID()
	require.Equal(t, uint64(1), first)
	m.NextDebtPositionID()
	m.NextCreditPositionID()
	require.NoError(t, m.Commit())

	reopened, err := NewManager(db)
	require.NoError(t, err)
	require.Equal(t, uint64(3), reopened.NextDebtPositionID())
	require.Equal(t, uint64(1)<<32+1, reopened.NextCreditPositionID())
}

func TestManagerSequencesStartFresh(t *testing.T) {
	m, err := NewManager(storage.NewMemDB())
	require.NoError(t, err)
	require.Equal(t, uint64(1), m.NextDebtPositionID())
	require.Equal(t, uint64(1)<<32, m.NextCreditPositionID())
}
