package sale

import (
	"testing"

	"github.com/Thorstarter/thorstarter-terra/core/rawdb"
	"github.com/Thorstarter/thorstarter-terra/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLedger(t *testing.T) (*Ledger, rawdb.Database) {
	t.Helper()
	db := rawdb.NewMemoryDB()
	require.NoError(t, rawdb.WriteSaleState(db, &types.SaleState{Owner: testOwner}))
	l, err := LoadLedger(db)
	require.NoError(t, err)
	return l, db
}

func TestLedgerCreditDebit(t *testing.T) {
	l, db := newLedger(t)
	require.NoError(t, l.Credit("addr0001", amt(10)))
	require.NoError(t, l.Credit("addr0001", amt(5)))
	require.NoError(t, l.Credit("addr0002", amt(7)))

	st, err := rawdb.ReadSaleState(db)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), st.TotalUsers)
	assert.Equal(t, "22", st.TotalAmount.String())

	require.ErrorIs(t, l.Debit("addr0001", amt(16)), ErrInsufficientBalance)
	require.ErrorIs(t, l.Debit("addr0009", amt(1)), ErrInsufficientBalance)
	require.NoError(t, l.Debit("addr0001", amt(15)))

	entry, exists, err := l.Entry("addr0001")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.True(t, entry.Amount.IsZero())
	assert.Equal(t, uint64(2), l.State().TotalUsers)
	assert.Equal(t, "7", l.State().TotalAmount.String())
}

func TestLedgerClaim(t *testing.T) {
	l, _ := newLedger(t)
	require.ErrorIs(t, l.Claim("addr0001", amt(1)), ErrNoZeroAmount)
	require.NoError(t, l.Credit("addr0001", amt(10)))
	require.NoError(t, l.Claim("addr0001", amt(3)))
	require.NoError(t, l.Claim("addr0001", amt(4)))

	entry, _, err := l.Entry("addr0001")
	require.NoError(t, err)
	assert.Equal(t, "7", entry.Claimed.String())
	assert.Equal(t, "7", l.State().TotalClaimed.String())
}

func TestLoadLedgerNotInstantiated(t *testing.T) {
	_, err := LoadLedger(rawdb.NewMemoryDB())
	require.ErrorIs(t, err, ErrNotInstantiated)
}
