package host

import (
	"testing"

	"github.com/Thorstarter/thorstarter-terra/core/rawdb"
	"github.com/Thorstarter/thorstarter-terra/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBank(t *testing.T) {
	b := NewBank(rawdb.NewMemoryDB())
	require.NoError(t, b.Mint("a", types.NewCoin(100, "uusd")))
	require.NoError(t, b.Send("a", "b", types.NewCoin(30, "uusd")))
	require.ErrorIs(t, b.Send("a", "b", types.NewCoin(71, "uusd")), ErrInsufficientFunds)
	require.ErrorIs(t, b.Send("a", "b", types.NewCoin(1, "uluna")), ErrInsufficientFunds)
	require.NoError(t, b.Burn("b", types.NewCoin(10, "uusd")))
	require.ErrorIs(t, b.Burn("b", types.NewCoin(21, "uusd")), ErrInsufficientFunds)

	a, _ := b.Balance("a", "uusd")
	bb, _ := b.Balance("b", "uusd")
	assert.Equal(t, "70", a.String())
	assert.Equal(t, "20", bb.String())

	require.NoError(t, b.MintTokens("tok", "a", types.NewAmount(5)))
	require.NoError(t, b.TransferTokens("tok", "a", "b", types.NewAmount(5)))
	require.ErrorIs(t, b.TransferTokens("tok", "a", "b", types.NewAmount(1)), ErrInsufficientFunds)
	tb, _ := b.TokenBalance("tok", "b")
	assert.Equal(t, "5", tb.String())
	ta, _ := b.TokenBalance("tok", "a")
	assert.True(t, ta.IsZero())
}
