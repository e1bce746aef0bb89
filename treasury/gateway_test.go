package treasury

import (
	"errors"
	"testing"

	"github.com/Thorstarter/thorstarter-terra/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapBalances map[string]types.Amount

func (m mapBalances) Balance(addr, denom string) (types.Amount, error) {
	return m[denom+"/"+addr], nil
}

func (m mapBalances) TokenBalance(token, addr string) (types.Amount, error) {
	return m[token+"/"+addr], nil
}

type failingOracle struct{}

func (failingOracle) TaxRate() (types.Amount, error)       { return types.Amount{}, errors.New("offline") }
func (failingOracle) TaxCap(string) (types.Amount, error) { return types.Amount{}, nil }

func newGateway(t *testing.T, rate string, taxCap uint64) *Gateway {
	t.Helper()
	o, err := NewStaticOracle(StaticOracleConfig{Rate: rate, DefaultCap: types.NewAmount(taxCap)})
	require.NoError(t, err)
	return NewGateway(o, mapBalances{"uusd/sale": types.NewAmount(42), "token/sale": types.NewAmount(7)})
}

func TestComputeTax(t *testing.T) {
	tests := []struct {
		name   string
		rate   string
		cap    uint64
		amount uint64
		want   uint64
	}{
		{"terra rate", "0.0035", 1_400_000, 1_000_000, 3_488},
		{"larger amount", "0.0035", 1_400_000, 50_000_000, 174_390},
		{"rounds up", "0.0035", 1_400_000, 1, 1},
		{"ten percent", "0.1", 1_000, 999, 91},
		{"capped", "0.0035", 1_000, 50_000_000, 1_000},
		{"zero rate", "0", 1_000, 50_000_000, 0},
		{"zero amount", "0.0035", 1_000, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newGateway(t, tt.rate, tt.cap)
			coin := types.NewCoin(tt.amount, "uusd")
			tax, err := g.ComputeTax(coin)
			require.NoError(t, err)
			assert.Equal(t, types.NewAmount(tt.want), tax)

			out, err := g.DeductTax(coin)
			require.NoError(t, err)
			assert.Equal(t, "uusd", out.Denom)
			assert.Equal(t, types.NewAmount(tt.amount-tt.want), out.Amount)
		})
	}
}

func TestGatewayBalances(t *testing.T) {
	g := newGateway(t, "0", 0)
	b, err := g.Balance("sale", "uusd")
	require.NoError(t, err)
	assert.Equal(t, "42", b.String())
	b, err = g.TokenBalance("token", "sale")
	require.NoError(t, err)
	assert.Equal(t, "7", b.String())
}

func TestGatewayOracleFailure(t *testing.T) {
	g := NewGateway(failingOracle{}, mapBalances{})
	_, err := g.DeductTax(types.NewCoin(1, "uusd"))
	require.Error(t, err)
}

func TestTaxOn(t *testing.T) {
	g := newGateway(t, "0.0035", 1_400_000)
	net, err := g.DeductTax(types.NewCoin(20_000_000, "uusd"))
	require.NoError(t, err)
	assert.Equal(t, "19930244", net.Amount.String())

	// Charging the forward tax on the net amount leaves one unit of the
	// gross behind because both directions floor.
	tax, err := g.TaxOn(net)
	require.NoError(t, err)
	assert.Equal(t, "69755", tax.String())

	capped := newGateway(t, "0.0035", 10)
	tax, err = capped.TaxOn(types.NewCoin(20_000_000, "uusd"))
	require.NoError(t, err)
	assert.Equal(t, "10", tax.String())
}
