package treasury

import (
	"fmt"

	"github.com/Thorstarter/thorstarter-terra/core/types"
	"github.com/Thorstarter/thorstarter-terra/sale"
)

// BalanceReader reads native and token balances held by the host.
type BalanceReader interface {
	Balance(addr, denom string) (types.Amount, error)
	TokenBalance(token, addr string) (types.Amount, error)
}

// Gateway is the sale's view of the treasury: it taxes outbound native
// transfers and reports balances.
type Gateway struct {
	oracle   TaxOracle
	balances BalanceReader
}

var _ sale.Treasury = (*Gateway)(nil)

// NewGateway returns a gateway taxing with oracle and reading balances from
// balances.
func NewGateway(oracle TaxOracle, balances BalanceReader) *Gateway {
	return &Gateway{oracle: oracle, balances: balances}
}

// ComputeTax returns the tax on coin:
//
//	min(amount - amount*1e18/(rate+1e18), cap)
//
// The division floors, so the tax rounds up in the treasury's favour.
func (g *Gateway) ComputeTax(coin types.Coin) (types.Amount, error) {
	rate, err := g.oracle.TaxRate()
	if err != nil {
		return types.Amount{}, fmt.Errorf("tax rate: %w", err)
	}
	limit, err := g.oracle.TaxCap(coin.Denom)
	if err != nil {
		return types.Amount{}, fmt.Errorf("tax cap %s: %w", coin.Denom, err)
	}
	den, err := rate.Add(DecimalFraction)
	if err != nil {
		return types.Amount{}, err
	}
	net, err := coin.Amount.MulDiv(DecimalFraction, den)
	if err != nil {
		return types.Amount{}, err
	}
	tax, err := coin.Amount.Sub(net)
	if err != nil {
		return types.Amount{}, err
	}
	return types.MinAmount(tax, limit), nil
}

// DeductTax returns coin less its tax.
func (g *Gateway) DeductTax(coin types.Coin) (types.Coin, error) {
	tax, err := g.ComputeTax(coin)
	if err != nil {
		return types.Coin{}, err
	}
	net, err := coin.Amount.Sub(tax)
	if err != nil {
		return types.Coin{}, err
	}
	return types.Coin{Denom: coin.Denom, Amount: net}, nil
}

func (g *Gateway) Balance(addr, denom string) (types.Amount, error) {
	return g.balances.Balance(addr, denom)
}

func (g *Gateway) TokenBalance(token, addr string) (types.Amount, error) {
	return g.balances.TokenBalance(token, addr)
}

// TaxOn returns the tax charged on top of a transfer of coin, the
// forward form of ComputeTax: min(amount*rate/1e18, cap).
func (g *Gateway) TaxOn(coin types.Coin) (types.Amount, error) {
	rate, err := g.oracle.TaxRate()
	if err != nil {
		return types.Amount{}, fmt.Errorf("tax rate: %w", err)
	}
	limit, err := g.oracle.TaxCap(coin.Denom)
	if err != nil {
		return types.Amount{}, fmt.Errorf("tax cap %s: %w", coin.Denom, err)
	}
	tax, err := coin.Amount.MulDiv(rate, DecimalFraction)
	if err != nil {
		return types.Amount{}, err
	}
	return types.MinAmount(tax, limit), nil
}
