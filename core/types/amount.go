package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
)

var (
	ErrAmountOverflow  = errors.New("amount overflow")
	ErrAmountUnderflow = errors.New("amount underflow")
	ErrDivisionByZero  = errors.New("division by zero")
	ErrInvalidAmount   = errors.New("invalid amount")
)

// maxAmount is 2^128 - 1.
var maxAmount = new(uint256.Int).SubUint64(new(uint256.Int).Lsh(uint256.NewInt(1), 128), 1)

// Amount is an unsigned integer bounded to 128 bits. The zero value is 0.
// Operations that would leave the range return an error instead of wrapping.
// Products are formed in 256 bits before dividing, so MulDiv never loses
// precision ahead of the final floor.
type Amount struct {
	n uint256.Int
}

// NewAmount returns v as an Amount.
func NewAmount(v uint64) Amount {
	var a Amount
	a.n.SetUint64(v)
	return a
}

// ParseAmount parses a base-10 string.
func ParseAmount(s string) (Amount, error) {
	var a Amount
	if s == "" {
		return Amount{}, fmt.Errorf("%w: empty string", ErrInvalidAmount)
	}
	if err := a.n.SetFromDecimal(s); err != nil {
		return Amount{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if a.n.Gt(maxAmount) {
		return Amount{}, fmt.Errorf("%w: %s exceeds 128 bits", ErrAmountOverflow, s)
	}
	return a, nil
}

// MustParseAmount is like ParseAmount but panics on error. For constants
// and tests.
func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// AmountFromUint256 converts x, failing if it does not fit in 128 bits.
func AmountFromUint256(x *uint256.Int) (Amount, error) {
	if x.Gt(maxAmount) {
		return Amount{}, ErrAmountOverflow
	}
	var a Amount
	a.n.Set(x)
	return a, nil
}

// Uint256 returns a copy of the underlying value.
func (a Amount) Uint256() *uint256.Int { return new(uint256.Int).Set(&a.n) }

// Uint64 returns the value and whether it fits in 64 bits.
func (a Amount) Uint64() (uint64, bool) { return a.n.Uint64(), a.n.IsUint64() }

func (a Amount) IsZero() bool { return a.n.IsZero() }

// Cmp returns -1, 0 or +1.
func (a Amount) Cmp(b Amount) int { return a.n.Cmp(&b.n) }

func (a Amount) Lt(b Amount) bool { return a.n.Lt(&b.n) }

func (a Amount) Gt(b Amount) bool { return a.n.Gt(&b.n) }

// Add returns a+b.
func (a Amount) Add(b Amount) (Amount, error) {
	var r Amount
	r.n.Add(&a.n, &b.n)
	if r.n.Gt(maxAmount) {
		return Amount{}, ErrAmountOverflow
	}
	return r, nil
}

// Sub returns a-b, failing when b > a.
func (a Amount) Sub(b Amount) (Amount, error) {
	if a.n.Lt(&b.n) {
		return Amount{}, ErrAmountUnderflow
	}
	var r Amount
	r.n.Sub(&a.n, &b.n)
	return r, nil
}

// SaturatingSub returns a-b, or zero when b > a.
func (a Amount) SaturatingSub(b Amount) Amount {
	if a.n.Lt(&b.n) {
		return Amount{}
	}
	var r Amount
	r.n.Sub(&a.n, &b.n)
	return r
}

// MulDiv returns floor(a*num/den).
func (a Amount) MulDiv(num, den Amount) (Amount, error) {
	if den.IsZero() {
		return Amount{}, ErrDivisionByZero
	}
	var r Amount
	if _, overflow := r.n.MulDivOverflow(&a.n, &num.n, &den.n); overflow || r.n.Gt(maxAmount) {
		return Amount{}, ErrAmountOverflow
	}
	return r, nil
}

// MinAmount returns the smaller of a and b.
func MinAmount(a, b Amount) Amount {
	if a.Lt(b) {
		return a
	}
	return b
}

// String returns the base-10 representation.
func (a Amount) String() string { return a.n.Dec() }

// MarshalJSON encodes the amount as a quoted base-10 string.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.n.Dec())
}

// UnmarshalJSON accepts a quoted base-10 string only.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: expected quoted decimal, got %s", ErrInvalidAmount, data)
	}
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// EncodeRLP implements rlp.Encoder.
func (a Amount) EncodeRLP(w io.Writer) error {
	return rlp.Encode(w, a.n.ToBig())
}

// DecodeRLP implements rlp.Decoder.
func (a *Amount) DecodeRLP(s *rlp.Stream) error {
	b, err := s.BigInt()
	if err != nil {
		return err
	}
	if b.BitLen() > 128 {
		return ErrAmountOverflow
	}
	a.n.SetFromBig(b)
	return nil
}
