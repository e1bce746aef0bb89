package host

import (
	"errors"
	"fmt"

	"github.com/Thorstarter/thorstarter-terra/core/rawdb"
	"github.com/Thorstarter/thorstarter-terra/core/types"
)

// ErrInsufficientFunds is returned when a transfer exceeds the sender's
// balance.
var ErrInsufficientFunds = errors.New("insufficient funds")

// Bank keeps native and token balances in the same store as the sale, so a
// call and the transfers it requests commit together.
type Bank struct {
	db rawdb.ReadWriter
}

func NewBank(db rawdb.ReadWriter) *Bank { return &Bank{db: db} }

func (b *Bank) Balance(addr, denom string) (types.Amount, error) {
	return rawdb.ReadNativeBalance(b.db, denom, addr)
}

func (b *Bank) TokenBalance(token, addr string) (types.Amount, error) {
	return rawdb.ReadTokenBalance(b.db, token, addr)
}

// Mint credits coin to addr out of thin air. The host uses it for funds
// attached to a call and for operator funding.
func (b *Bank) Mint(addr string, coin types.Coin) error {
	return credit(b.nativeLedger(coin.Denom), addr, coin.Amount)
}

// MintTokens credits amount of token to addr.
func (b *Bank) MintTokens(token, addr string, amount types.Amount) error {
	return credit(b.tokenLedger(token), addr, amount)
}

// Burn removes coin from addr.
func (b *Bank) Burn(addr string, coin types.Coin) error {
	l := b.nativeLedger(coin.Denom)
	bal, err := l.read(addr)
	if err != nil {
		return err
	}
	left, err := bal.Sub(coin.Amount)
	if err != nil {
		return fmt.Errorf("%w: %s has %s, burning %s", ErrInsufficientFunds, addr, bal, coin)
	}
	return l.write(addr, left)
}

// Send moves coin from one account to another.
func (b *Bank) Send(from, to string, coin types.Coin) error {
	return move(b.nativeLedger(coin.Denom), from, to, coin.Amount)
}

// TransferTokens moves amount of token from one account to another.
func (b *Bank) TransferTokens(token, from, to string, amount types.Amount) error {
	return move(b.tokenLedger(token), from, to, amount)
}

// balanceLedger reads and writes one asset's balances.
type balanceLedger struct {
	asset string
	read  func(addr string) (types.Amount, error)
	write func(addr string, a types.Amount) error
}

func (b *Bank) nativeLedger(denom string) balanceLedger {
	return balanceLedger{
		asset: denom,
		read:  func(addr string) (types.Amount, error) { return rawdb.ReadNativeBalance(b.db, denom, addr) },
		write: func(addr string, a types.Amount) error { return rawdb.WriteNativeBalance(b.db, denom, addr, a) },
	}
}

func (b *Bank) tokenLedger(token string) balanceLedger {
	return balanceLedger{
		asset: token,
		read:  func(addr string) (types.Amount, error) { return rawdb.ReadTokenBalance(b.db, token, addr) },
		write: func(addr string, a types.Amount) error { return rawdb.WriteTokenBalance(b.db, token, addr, a) },
	}
}

func credit(l balanceLedger, addr string, amount types.Amount) error {
	bal, err := l.read(addr)
	if err != nil {
		return err
	}
	if bal, err = bal.Add(amount); err != nil {
		return fmt.Errorf("credit %s %s: %w", amount, l.asset, err)
	}
	return l.write(addr, bal)
}

func move(l balanceLedger, from, to string, amount types.Amount) error {
	bal, err := l.read(from)
	if err != nil {
		return err
	}
	left, err := bal.Sub(amount)
	if err != nil {
		return fmt.Errorf("%w: %s has %s %s, needs %s", ErrInsufficientFunds, from, bal, l.asset, amount)
	}
	if err := l.write(from, left); err != nil {
		return err
	}
	return credit(l, to, amount)
}
