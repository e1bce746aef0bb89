package sale

import (
	"errors"
	"fmt"

	"github.com/Thorstarter/thorstarter-terra/core/rawdb"
	"github.com/Thorstarter/thorstarter-terra/core/types"
)

// Ledger owns the sale singleton and the per-wallet entries. Every mutation
// of contribution or claim state goes through it so the aggregates in the
// singleton never drift from the entries.
type Ledger struct {
	db    rawdb.ReadWriter
	state *types.SaleState
}

// LoadLedger opens the ledger of an instantiated sale.
func LoadLedger(db rawdb.ReadWriter) (*Ledger, error) {
	st, err := loadState(db)
	if err != nil {
		return nil, err
	}
	return &Ledger{db: db, state: st}, nil
}

func loadState(db rawdb.KeyValueReader) (*types.SaleState, error) {
	st, err := rawdb.ReadSaleState(db)
	if errors.Is(err, rawdb.ErrNotFound) {
		return nil, ErrNotInstantiated
	}
	return st, err
}

// State returns the singleton. Callers that change it must call Save.
func (l *Ledger) State() *types.SaleState { return l.state }

// Save persists the singleton.
func (l *Ledger) Save() error {
	return rawdb.WriteSaleState(l.db, l.state)
}

// Entry returns addr's ledger entry, or the zero entry if it has none.
// exists reports whether the wallet has ever been credited.
func (l *Ledger) Entry(addr string) (st types.UserState, exists bool, err error) {
	return rawdb.ReadUserState(l.db, addr)
}

// Credit adds amount to addr's contribution and to total_amount. The first
// credit of a wallet counts it in total_users.
func (l *Ledger) Credit(addr string, amount types.Amount) error {
	entry, exists, err := l.Entry(addr)
	if err != nil {
		return err
	}
	if entry.Amount, err = entry.Amount.Add(amount); err != nil {
		return ErrOverflow
	}
	total, err := l.state.TotalAmount.Add(amount)
	if err != nil {
		return ErrOverflow
	}
	if err := rawdb.WriteUserState(l.db, addr, entry); err != nil {
		return err
	}
	l.state.TotalAmount = total
	if !exists {
		l.state.TotalUsers++
	}
	return l.Save()
}

// Debit removes amount from addr's contribution and from total_amount. The
// entry stays even when it reaches zero, so total_users is unchanged.
func (l *Ledger) Debit(addr string, amount types.Amount) error {
	entry, exists, err := l.Entry(addr)
	if err != nil {
		return err
	}
	if !exists || entry.Amount.Lt(amount) {
		return ErrInsufficientBalance
	}
	if entry.Amount, err = entry.Amount.Sub(amount); err != nil {
		return ErrInsufficientBalance
	}
	total, err := l.state.TotalAmount.Sub(amount)
	if err != nil {
		return fmt.Errorf("total_amount below wallet balance: %w", err)
	}
	if err := rawdb.WriteUserState(l.db, addr, entry); err != nil {
		return err
	}
	l.state.TotalAmount = total
	return l.Save()
}

// Claim records amount as released to addr.
func (l *Ledger) Claim(addr string, amount types.Amount) error {
	entry, exists, err := l.Entry(addr)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNoZeroAmount
	}
	if entry.Claimed, err = entry.Claimed.Add(amount); err != nil {
		return ErrOverflow
	}
	total, err := l.state.TotalClaimed.Add(amount)
	if err != nil {
		return ErrOverflow
	}
	if err := rawdb.WriteUserState(l.db, addr, entry); err != nil {
		return err
	}
	l.state.TotalClaimed = total
	return l.Save()
}

// Users lists entries in address order, strictly after startAfter.
func Users(db rawdb.Reader, startAfter string, limit int) ([]rawdb.UserEntry, error) {
	return rawdb.IterateUsers(db, startAfter, limit)
}
