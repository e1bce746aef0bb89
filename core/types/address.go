package types

import (
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/common"
)

// ErrInvalidAddress is returned when an address fails canonicalisation.
var ErrInvalidAddress = errors.New("invalid address")

// AddressCodec validates a human-readable account address and returns its
// canonical form. The canonical form is what gets stored in the ledger and
// hashed into allowlist leaves, so a codec must be deterministic.
type AddressCodec interface {
	Canonicalize(addr string) (string, error)
}

// ParseAddressCodec builds a codec from its config spelling: "plain",
// "hex" or "bech32:<hrp>".
func ParseAddressCodec(spec string) (AddressCodec, error) {
	switch {
	case spec == "" || spec == "plain":
		return PlainCodec{}, nil
	case spec == "hex":
		return HexCodec{}, nil
	case strings.HasPrefix(spec, "bech32:"):
		hrp := strings.TrimPrefix(spec, "bech32:")
		if hrp == "" {
			return nil, fmt.Errorf("address codec %q: empty human-readable part", spec)
		}
		return Bech32Codec{HRP: hrp}, nil
	default:
		return nil, fmt.Errorf("unknown address codec %q", spec)
	}
}

const (
	plainMinLength = 3
	plainMaxLength = 90
)

// PlainCodec accepts opaque lowercase identifiers. It mirrors the
// permissive checks of a development chain.
type PlainCodec struct{}

func (PlainCodec) Canonicalize(addr string) (string, error) {
	if len(addr) < plainMinLength || len(addr) > plainMaxLength {
		return "", fmt.Errorf("%w: length %d out of range", ErrInvalidAddress, len(addr))
	}
	if addr != strings.ToLower(addr) {
		return "", fmt.Errorf("%w: %s is not normalized", ErrInvalidAddress, addr)
	}
	if strings.ContainsAny(addr, ", \t\r\n") {
		return "", fmt.Errorf("%w: %q contains separator characters", ErrInvalidAddress, addr)
	}
	return addr, nil
}

// Bech32Codec accepts bech32 addresses with a fixed human-readable part,
// e.g. terra1... The canonical form is the lowercase re-encoding.
type Bech32Codec struct {
	HRP string
}

func (c Bech32Codec) Canonicalize(addr string) (string, error) {
	hrp, data, err := bech32.Decode(addr)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if hrp != c.HRP {
		return "", fmt.Errorf("%w: prefix %q, want %q", ErrInvalidAddress, hrp, c.HRP)
	}
	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(raw) != 20 && len(raw) != 32 {
		return "", fmt.Errorf("%w: %d byte payload", ErrInvalidAddress, len(raw))
	}
	return bech32.Encode(c.HRP, data)
}

// HexCodec accepts 20-byte 0x-prefixed hex addresses and canonicalises to
// lowercase.
type HexCodec struct{}

func (HexCodec) Canonicalize(addr string) (string, error) {
	if !strings.HasPrefix(addr, "0x") || !common.IsHexAddress(addr) {
		return "", fmt.Errorf("%w: %s", ErrInvalidAddress, addr)
	}
	return strings.ToLower(common.HexToAddress(addr).Hex()), nil
}

// AccountEncoder is implemented by codecs that can render a raw account
// (e.g. a key-derived 20-byte address) in their canonical form.
type AccountEncoder interface {
	FromBytes(raw []byte) (string, error)
}

// FromBytes encodes raw as a bech32 address under c.HRP.
func (c Bech32Codec) FromBytes(raw []byte) (string, error) {
	if len(raw) != 20 && len(raw) != 32 {
		return "", fmt.Errorf("%w: %d byte payload", ErrInvalidAddress, len(raw))
	}
	data, err := bech32.ConvertBits(raw, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return bech32.Encode(c.HRP, data)
}

// FromBytes encodes a 20-byte account as lowercase 0x hex.
func (HexCodec) FromBytes(raw []byte) (string, error) {
	if len(raw) != common.AddressLength {
		return "", fmt.Errorf("%w: %d byte payload", ErrInvalidAddress, len(raw))
	}
	return strings.ToLower(common.BytesToAddress(raw).Hex()), nil
}
