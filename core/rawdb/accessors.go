package rawdb

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/Thorstarter/thorstarter-terra/core/types"
	"github.com/ethereum/go-ethereum/rlp"
)

// --- Sale State Accessors ---

// ReadSaleState loads the sale singleton. It returns ErrNotFound before
// instantiation.
func ReadSaleState(db KeyValueReader) (*types.SaleState, error) {
	data, err := db.Get(saleStateKey)
	if err != nil {
		return nil, err
	}
	var st types.SaleState
	if err := rlp.DecodeBytes(data, &st); err != nil {
		return nil, fmt.Errorf("decode sale state: %w", err)
	}
	return &st, nil
}

// WriteSaleState stores the sale singleton.
func WriteSaleState(db KeyValueWriter, st *types.SaleState) error {
	data, err := rlp.EncodeToBytes(st)
	if err != nil {
		return fmt.Errorf("encode sale state: %w", err)
	}
	return db.Put(saleStateKey, data)
}

// HasSaleState reports whether the sale has been instantiated.
func HasSaleState(db KeyValueReader) (bool, error) {
	return db.Has(saleStateKey)
}

// --- User State Accessors ---

// ReadUserState loads a ledger entry. ok is false when the wallet has none.
func ReadUserState(db KeyValueReader, addr string) (st types.UserState, ok bool, err error) {
	data, err := db.Get(userKey(addr))
	if errors.Is(err, ErrNotFound) {
		return types.UserState{}, false, nil
	}
	if err != nil {
		return types.UserState{}, false, err
	}
	if err := rlp.DecodeBytes(data, &st); err != nil {
		return types.UserState{}, false, fmt.Errorf("decode user %s: %w", addr, err)
	}
	return st, true, nil
}

// WriteUserState stores a ledger entry.
func WriteUserState(db KeyValueWriter, addr string, st types.UserState) error {
	data, err := rlp.EncodeToBytes(&st)
	if err != nil {
		return fmt.Errorf("encode user %s: %w", addr, err)
	}
	return db.Put(userKey(addr), data)
}

// UserEntry pairs a wallet with its ledger entry.
type UserEntry struct {
	Address string
	State   types.UserState
}

// IterateUsers returns up to limit entries with addresses strictly after
// startAfter, in address order. limit <= 0 means no limit.
func IterateUsers(db Iteratee, startAfter string, limit int) ([]UserEntry, error) {
	var start []byte
	if startAfter != "" {
		// The smallest key after startAfter is startAfter + 0x00.
		start = append([]byte(startAfter), 0)
	}
	it := db.NewIterator(userPrefix, start)
	defer it.Release()

	var out []UserEntry
	for it.Next() {
		if limit > 0 && len(out) == limit {
			break
		}
		var st types.UserState
		if err := rlp.DecodeBytes(it.Value(), &st); err != nil {
			return nil, fmt.Errorf("decode user %s: %w", it.Key()[len(userPrefix):], err)
		}
		out = append(out, UserEntry{Address: string(it.Key()[len(userPrefix):]), State: st})
	}
	return out, it.Error()
}

// --- Balance Accessors ---

func readAmount(db KeyValueReader, key []byte) (types.Amount, error) {
	data, err := db.Get(key)
	if errors.Is(err, ErrNotFound) {
		return types.Amount{}, nil
	}
	if err != nil {
		return types.Amount{}, err
	}
	var a types.Amount
	if err := rlp.DecodeBytes(data, &a); err != nil {
		return types.Amount{}, fmt.Errorf("decode balance: %w", err)
	}
	return a, nil
}

func writeAmount(db KeyValueWriter, key []byte, a types.Amount) error {
	if a.IsZero() {
		return db.Delete(key)
	}
	data, err := rlp.EncodeToBytes(a)
	if err != nil {
		return err
	}
	return db.Put(key, data)
}

// ReadNativeBalance returns addr's balance of denom, zero if unset.
func ReadNativeBalance(db KeyValueReader, denom, addr string) (types.Amount, error) {
	return readAmount(db, nativeBalanceKey(denom, addr))
}

// WriteNativeBalance stores addr's balance of denom. Zero balances are
// deleted.
func WriteNativeBalance(db KeyValueWriter, denom, addr string, a types.Amount) error {
	return writeAmount(db, nativeBalanceKey(denom, addr), a)
}

// ReadTokenBalance returns addr's balance of the fungible token.
func ReadTokenBalance(db KeyValueReader, token, addr string) (types.Amount, error) {
	return readAmount(db, tokenBalanceKey(token, addr))
}

// WriteTokenBalance stores addr's token balance. Zero balances are deleted.
func WriteTokenBalance(db KeyValueWriter, token, addr string, a types.Amount) error {
	return writeAmount(db, tokenBalanceKey(token, addr), a)
}

// --- Nonce Accessors ---

// ReadNonce returns the next nonce a signed request from addr must carry,
// 0 if addr has never sent one.
func ReadNonce(db KeyValueReader, addr string) (uint64, error) {
	data, err := db.Get(nonceKey(addr))
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("corrupt nonce for %s: %d bytes", addr, len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}

// WriteNonce stores the next nonce expected from addr.
func WriteNonce(db KeyValueWriter, addr string, nonce uint64) error {
	return db.Put(nonceKey(addr), encodeSeq(nonce))
}

// --- Event Log Accessors ---

// ReadEventHead returns the sequence number of the latest event, 0 if none.
func ReadEventHead(db KeyValueReader) (uint64, error) {
	data, err := db.Get(eventHeadKey)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("corrupt event head: %d bytes", len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}

// AppendEvent stores data under the next sequence number and returns it.
func AppendEvent(db ReadWriter, data []byte) (uint64, error) {
	head, err := ReadEventHead(db)
	if err != nil {
		return 0, err
	}
	seq := head + 1
	if err := db.Put(eventKey(seq), data); err != nil {
		return 0, err
	}
	if err := db.Put(eventHeadKey, encodeSeq(seq)); err != nil {
		return 0, err
	}
	return seq, nil
}

// ReadEvent returns the event stored under seq.
func ReadEvent(db KeyValueReader, seq uint64) ([]byte, error) {
	return db.Get(eventKey(seq))
}

// ReadEvents returns up to limit events with sequence numbers >= from.
func ReadEvents(db Iteratee, from uint64, limit int) ([][]byte, error) {
	it := db.NewIterator(eventPrefix, encodeSeq(from))
	defer it.Release()
	var out [][]byte
	for it.Next() {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, it.Value())
	}
	return out, it.Error()
}
