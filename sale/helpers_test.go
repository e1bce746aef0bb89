package sale

import (
	"testing"

	"github.com/Thorstarter/thorstarter-terra/core/rawdb"
	"github.com/Thorstarter/thorstarter-terra/core/types"
	"github.com/Thorstarter/thorstarter-terra/crypto"
	"github.com/stretchr/testify/require"
)

const (
	testOwner  = "owner"
	testToken  = "token"
	testSale   = "sale"
	testWallet = "addr0001"
	testRoot   = "8e70ddd3cba3e4db4073ef0a775c71f601e2b2d5c517ed9718e7d4dd7a2c71a4"
)

var (
	testProof   = []string{"90d9e60cde3d83e12292e7535173435d9e3162313b670e36d6e07f88b33a82da", "d8e28cfabf40072adc132ddeb2c34be910d9a563530fde22830ee9610fe693b7"}
	testCeiling = types.NewAmount(75_000_000)
)

func uusd(v uint64) types.Coin { return types.NewCoin(v, "uusd") }

func amt(v uint64) types.Amount { return types.NewAmount(v) }

// stubTreasury keeps balances in maps and charges a flat tax.
type stubTreasury struct {
	native map[string]types.Amount // denom + "/" + addr
	tokens map[string]types.Amount // token + "/" + addr
	tax    types.Amount
}

func newStubTreasury() *stubTreasury {
	return &stubTreasury{native: map[string]types.Amount{}, tokens: map[string]types.Amount{}}
}

func (s *stubTreasury) DeductTax(coin types.Coin) (types.Coin, error) {
	return types.Coin{Denom: coin.Denom, Amount: coin.Amount.SaturatingSub(s.tax)}, nil
}

func (s *stubTreasury) Balance(addr, denom string) (types.Amount, error) {
	return s.native[denom+"/"+addr], nil
}

func (s *stubTreasury) TokenBalance(token, addr string) (types.Amount, error) {
	return s.tokens[token+"/"+addr], nil
}

type harness struct {
	t  *testing.T
	c  *Contract
	db *rawdb.MemoryDB
	tr *stubTreasury
}

func baseConfig() types.SaleConfig {
	return types.SaleConfig{
		Token:          testToken,
		StartTime:      10,
		EndTime:        100,
		RaisingAmount:  amt(100_000_000),
		OfferingAmount: amt(500_000_000),
		VestingInitial: amt(100_000),
		VestingTime:    200,
		MerkleRoot:     testRoot,
		Divisor:        types.DivisorTotal,
	}
}

// newHarness instantiates a sale owned by testOwner and configures it with
// cfg unless cfg is nil.
func newHarness(t *testing.T, cfg *types.SaleConfig, mutate ...func(*Options)) *harness {
	t.Helper()
	opts := DefaultOptions()
	for _, m := range mutate {
		m(&opts)
	}
	c, err := New(opts)
	require.NoError(t, err)
	h := &harness{t: t, c: c, db: rawdb.NewMemoryDB(), tr: newStubTreasury()}
	_, err = c.Instantiate(h.db, h.env(testOwner, 0), nil)
	require.NoError(t, err)
	if cfg != nil {
		h.configure(*cfg)
	}
	return h
}

func (h *harness) env(sender string, now uint64, funds ...types.Coin) Env {
	return Env{Now: now, Sender: sender, Funds: funds, Contract: testSale, Treasury: h.tr}
}

func (h *harness) configure(cfg types.SaleConfig) {
	h.t.Helper()
	_, err := h.c.Configure(h.db, h.env(testOwner, 0), cfg)
	require.NoError(h.t, err)
}

func (h *harness) deposit(wallet string, now uint64, amount uint64, ceiling types.Amount, proof []string) (*Response, error) {
	return h.c.Deposit(h.db, h.env(wallet, now, uusd(amount)), ceiling, proof)
}

func (h *harness) state() *StateResponse {
	h.t.Helper()
	st, err := h.c.QueryState(h.db)
	require.NoError(h.t, err)
	return st
}

func (h *harness) user(wallet string, now uint64) *UserStateResponse {
	h.t.Helper()
	u, err := h.c.QueryUserState(h.db, wallet, now)
	require.NoError(h.t, err)
	return u
}

// allowlist builds a tree over wallets and returns its root and proofs.
func allowlist(t *testing.T, wallets map[string]types.Amount) (string, map[string][]string) {
	t.Helper()
	var leaves []types.Hash
	for w, a := range wallets {
		leaves = append(leaves, crypto.LeafHash(w, a))
	}
	tree, err := crypto.NewMerkleTree(leaves)
	require.NoError(t, err)
	proofs := make(map[string][]string, len(wallets))
	for w, a := range wallets {
		p, err := tree.ProofHex(crypto.LeafHash(w, a))
		require.NoError(t, err)
		proofs[w] = p
	}
	return tree.Root().Hex(), proofs
}
