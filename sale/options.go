package sale

import (
	"errors"

	"github.com/Thorstarter/thorstarter-terra/core/types"
)

const (
	DefaultDenom = "uusd"
	// DefaultFcfsWalletCap is 250 units of a six-decimal currency.
	DefaultFcfsWalletCap = 250_000_000
)

// Options are engine-level settings that are not part of the on-ledger
// configuration.
type Options struct {
	// Denom is the native currency contributions are made in.
	Denom string
	// FcfsWalletCap bounds a single depositFcfs call.
	FcfsWalletCap types.Amount
	// ReserveGuard stops the owner from sweeping funds that are still owed
	// to participants.
	ReserveGuard bool
	// Codec canonicalises every address the contract stores or hashes.
	Codec types.AddressCodec
}

// DefaultOptions returns the settings of a uusd sale with plain addresses.
func DefaultOptions() Options {
	return Options{
		Denom:         DefaultDenom,
		FcfsWalletCap: types.NewAmount(DefaultFcfsWalletCap),
		ReserveGuard:  true,
		Codec:         types.PlainCodec{},
	}
}

// Validate checks the options are usable.
func (o *Options) Validate() error {
	if o.Denom == "" {
		return errors.New("sale: empty denom")
	}
	if o.FcfsWalletCap.IsZero() {
		return errors.New("sale: zero fcfs wallet cap")
	}
	if o.Codec == nil {
		return errors.New("sale: nil address codec")
	}
	return nil
}
