package rpc

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Thorstarter/thorstarter-terra/core/types"
	"github.com/Thorstarter/thorstarter-terra/crypto"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
)

var (
	// ErrInvalidSignature is returned when an envelope's signature is
	// missing or was not made by the sender.
	ErrInvalidSignature = errors.New("InvalidSignature")

	errSignedPlain = errors.New("rpc: signed requests need an address codec that can encode keys (bech32 or hex)")
)

// Envelope carries a message with the account sending it and the funds
// attached. With signatures required, Signature is a personal-message
// signature over SigningPayload by the sender's key, and Nonce must be the
// next one the sale expects from the sender (see sale_nonce).
type Envelope struct {
	Sender    string          `json:"sender"`
	Nonce     uint64          `json:"nonce"`
	Funds     types.Coins     `json:"funds,omitempty"`
	Msg       json.RawMessage `json:"msg"`
	Signature string          `json:"signature,omitempty"`
}

// SigningPayload is the compact JSON of the sale address, sender, nonce,
// funds and msg, in that order. Binding the sale keeps a signature from
// being replayed against another sale. Whitespace in Msg does not change
// it.
func (e *Envelope) SigningPayload(sale string) ([]byte, error) {
	var msg bytes.Buffer
	if err := json.Compact(&msg, e.Msg); err != nil {
		return nil, fmt.Errorf("msg: %w", err)
	}
	funds := e.Funds
	if funds == nil {
		funds = types.Coins{}
	}
	return json.Marshal(struct {
		Sale   string          `json:"sale"`
		Sender string          `json:"sender"`
		Nonce  uint64          `json:"nonce"`
		Funds  types.Coins     `json:"funds"`
		Msg    json.RawMessage `json:"msg"`
	}{sale, e.Sender, e.Nonce, funds, msg.Bytes()})
}

// Sign sets Sender to the key's account under enc and signs the envelope
// for the sale at address sale.
func (e *Envelope) Sign(key *ecdsa.PrivateKey, enc types.AccountEncoder, sale string) error {
	sender, err := enc.FromBytes(gethcrypto.PubkeyToAddress(key.PublicKey).Bytes())
	if err != nil {
		return err
	}
	e.Sender = sender
	payload, err := e.SigningPayload(sale)
	if err != nil {
		return err
	}
	sig, err := crypto.SignText(key, payload)
	if err != nil {
		return err
	}
	e.Signature = hexutil.Encode(sig)
	return nil
}

// Verify checks the signature was made by Sender's key for the sale at
// address sale. The nonce is checked by the executor.
func (e *Envelope) Verify(codec types.AddressCodec, enc types.AccountEncoder, sale string) error {
	if e.Signature == "" {
		return fmt.Errorf("%w: missing", ErrInvalidSignature)
	}
	payload, err := e.SigningPayload(sale)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	signer, err := crypto.RecoverTextHex(payload, e.Signature)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	want, err := enc.FromBytes(signer.Bytes())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	sender, err := codec.Canonicalize(e.Sender)
	if err != nil || sender != want {
		return fmt.Errorf("%w: signed by %s", ErrInvalidSignature, want)
	}
	return nil
}
