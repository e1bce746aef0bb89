package types

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/stretchr/testify/require"
)

const maxUint128 = "340282366920938463463374607431768211455"

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr error
	}{
		{in: "0", want: "0"},
		{in: "75000000", want: "75000000"},
		{in: maxUint128, want: maxUint128},
		{in: "340282366920938463463374607431768211456", wantErr: ErrAmountOverflow},
		{in: "", wantErr: ErrInvalidAmount},
		{in: "-1", wantErr: ErrInvalidAmount},
		{in: "12a", wantErr: ErrInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got.String())
		})
	}
}

func TestAmountArithmetic(t *testing.T) {
	max := MustParseAmount(maxUint128)

	_, err := max.Add(NewAmount(1))
	require.ErrorIs(t, err, ErrAmountOverflow)

	sum, err := NewAmount(40).Add(NewAmount(2))
	require.NoError(t, err)
	require.Equal(t, "42", sum.String())

	_, err = NewAmount(1).Sub(NewAmount(2))
	require.ErrorIs(t, err, ErrAmountUnderflow)
	require.True(t, NewAmount(1).SaturatingSub(NewAmount(2)).IsZero())

	diff, err := NewAmount(10).Sub(NewAmount(3))
	require.NoError(t, err)
	require.Equal(t, "7", diff.String())
}

func TestAmountMulDiv(t *testing.T) {
	max := MustParseAmount(maxUint128)

	// The intermediate product needs 256 bits.
	got, err := max.MulDiv(max, max)
	require.NoError(t, err)
	require.Equal(t, maxUint128, got.String())

	got, err = NewAmount(7).MulDiv(NewAmount(10), NewAmount(3))
	require.NoError(t, err)
	require.Equal(t, "23", got.String())

	_, err = NewAmount(7).MulDiv(NewAmount(1), Amount{})
	require.ErrorIs(t, err, ErrDivisionByZero)

	_, err = max.MulDiv(NewAmount(2), NewAmount(1))
	require.ErrorIs(t, err, ErrAmountOverflow)
}

func TestAmountJSON(t *testing.T) {
	raw, err := json.Marshal(struct {
		A Amount `json:"a"`
	}{A: NewAmount(500000000)})
	require.NoError(t, err)
	require.JSONEq(t, `{"a":"500000000"}`, string(raw))

	var v struct {
		A Amount `json:"a"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"123"}`), &v))
	require.Equal(t, "123", v.A.String())

	err = json.Unmarshal([]byte(`{"a":123}`), &v)
	require.True(t, errors.Is(err, ErrInvalidAmount), "bare numbers are rejected: %v", err)
}

func TestAmountRLP(t *testing.T) {
	type entry struct {
		Amount  Amount
		Claimed Amount
	}
	in := entry{Amount: MustParseAmount(maxUint128), Claimed: NewAmount(0)}
	enc, err := rlp.EncodeToBytes(in)
	require.NoError(t, err)

	var out entry
	require.NoError(t, rlp.DecodeBytes(enc, &out))
	require.Equal(t, 0, in.Amount.Cmp(out.Amount))
	require.True(t, out.Claimed.IsZero())
}
