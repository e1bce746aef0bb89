package types

import (
	"errors"
	"fmt"
)

// ErrInvalidCoins is returned by Coins.Validate.
var ErrInvalidCoins = errors.New("invalid coins")

// Coin is an amount of a native currency, denominated in its smallest unit.
type Coin struct {
	Denom  string `json:"denom"`
	Amount Amount `json:"amount"`
}

// NewCoin returns a coin of amount units of denom.
func NewCoin(amount uint64, denom string) Coin {
	return Coin{Denom: denom, Amount: NewAmount(amount)}
}

func (c Coin) String() string { return c.Amount.String() + c.Denom }

// Coins is the set of funds attached to a call.
type Coins []Coin

// AmountOf returns the amount held in denom, zero if absent.
func (cs Coins) AmountOf(denom string) Amount {
	for _, c := range cs {
		if c.Denom == denom {
			return c.Amount
		}
	}
	return Amount{}
}

// Validate rejects empty denoms and duplicated denoms.
func (cs Coins) Validate() error {
	seen := make(map[string]struct{}, len(cs))
	for _, c := range cs {
		if c.Denom == "" {
			return fmt.Errorf("%w: empty denom", ErrInvalidCoins)
		}
		if _, dup := seen[c.Denom]; dup {
			return fmt.Errorf("%w: duplicate denom %s", ErrInvalidCoins, c.Denom)
		}
		seen[c.Denom] = struct{}{}
	}
	return nil
}
