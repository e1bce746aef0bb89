package sale

import "github.com/Thorstarter/thorstarter-terra/core/types"

// Treasury answers questions about funds held outside the sale's own state
// and applies the native-currency tax to outbound transfers.
type Treasury interface {
	DeductTax(coin types.Coin) (types.Coin, error)
	Balance(addr, denom string) (types.Amount, error)
	TokenBalance(token, addr string) (types.Amount, error)
}

// Env is the context of one call, supplied by the host.
type Env struct {
	// Now is the host clock in unix seconds.
	Now uint64
	// Sender is the caller as given by the host; the contract
	// canonicalises it.
	Sender string
	// Funds are the native coins attached to the call. The host has
	// already credited them to Contract.
	Funds types.Coins
	// Contract is the sale's own address.
	Contract string
	Treasury Treasury
}
