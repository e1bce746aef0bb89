// Package types defines the value types shared by the sale engine: bounded
// token amounts, native-currency coins, 32-byte hashes and address codecs.
package types

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

const HashLength = 32

// ErrInvalidHash is returned when a hex string does not decode to exactly
// HashLength bytes.
var ErrInvalidHash = errors.New("invalid hash")

// Hash represents a 32-byte Keccak256 digest.
type Hash [HashLength]byte

// BytesToHash converts bytes to Hash, left-padding if shorter than 32 bytes.
func BytesToHash(b []byte) Hash {
	var h Hash
	h.SetBytes(b)
	return h
}

// ParseHash decodes an unprefixed 64 character hex string. Anything else,
// including a 0x prefix, is rejected.
func ParseHash(s string) (Hash, error) {
	if len(s) != 2*HashLength {
		return Hash{}, fmt.Errorf("%w: want %d hex chars, got %d", ErrInvalidHash, 2*HashLength, len(s))
	}
	b, err := hexutil.Decode("0x" + s)
	if err != nil {
		return Hash{}, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
	return BytesToHash(b), nil
}

// Bytes returns the byte representation of the hash.
func (h Hash) Bytes() []byte { return h[:] }

// Hex returns the unprefixed lowercase hex encoding, the form used on the
// wire for merkle roots and proof elements.
func (h Hash) Hex() string { return hexutil.Encode(h[:])[2:] }

// SetBytes sets the hash from a byte slice, left-padding if necessary.
func (h *Hash) SetBytes(b []byte) {
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
}

// IsZero returns whether the hash is all zeros.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// String implements fmt.Stringer.
func (h Hash) String() string { return h.Hex() }
