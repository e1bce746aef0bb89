package rpc

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/Thorstarter/thorstarter-terra/core/types"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeBech32(t *testing.T) {
	codec := types.Bech32Codec{HRP: "terra"}
	key, err := gethcrypto.GenerateKey()
	require.NoError(t, err)

	env := Envelope{Funds: types.Coins{types.NewCoin(3, "uusd")}, Msg: json.RawMessage(`{"harvest":{}}`)}
	require.NoError(t, env.Sign(key, codec, "sale"))
	assert.True(t, strings.HasPrefix(env.Sender, "terra1"))
	require.NoError(t, env.Verify(codec, codec, "sale"))

	other, err := gethcrypto.GenerateKey()
	require.NoError(t, err)
	forged := env
	require.NoError(t, forged.Sign(other, codec, "sale"))
	forged.Sender = env.Sender
	assert.ErrorIs(t, forged.Verify(codec, codec, "sale"), ErrInvalidSignature)
}

func TestEnvelopeVerifyRejects(t *testing.T) {
	codec := types.HexCodec{}
	key, err := gethcrypto.GenerateKey()
	require.NoError(t, err)
	env := Envelope{Msg: json.RawMessage(`{"collect":{}}`)}
	require.NoError(t, env.Sign(key, codec, "sale"))

	tests := []struct {
		name   string
		mutate func(e *Envelope)
	}{
		{"missing signature", func(e *Envelope) { e.Signature = "" }},
		{"garbage signature", func(e *Envelope) { e.Signature = "0x1234" }},
		{"bad msg", func(e *Envelope) { e.Msg = json.RawMessage(`{`) }},
		{"changed msg", func(e *Envelope) { e.Msg = json.RawMessage(`{"harvest":{}}`) }},
		{"bad sender", func(e *Envelope) { e.Sender = "nobody" }},
		{"changed nonce", func(e *Envelope) { e.Nonce++ }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := env
			tt.mutate(&e)
			assert.ErrorIs(t, e.Verify(codec, codec, "sale"), ErrInvalidSignature)
		})
	}
	assert.ErrorIs(t, env.Verify(codec, codec, "other-sale"), ErrInvalidSignature)
}
