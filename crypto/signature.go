package crypto

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// SignatureLength is R || S || V.
const SignatureLength = 65

var (
	ErrSignatureLength = errors.New("signature: must be 65 bytes")
	ErrSignatureV      = errors.New("signature: invalid V value")
)

// SignText signs message with the personal-message prefix
// ("\x19Ethereum Signed Message:\n" + len). V is returned as 27 or 28.
func SignText(key *ecdsa.PrivateKey, message []byte) ([]byte, error) {
	sig, err := gethcrypto.Sign(accounts.TextHash(message), key)
	if err != nil {
		return nil, err
	}
	sig[64] += 27
	return sig, nil
}

// RecoverText returns the address that produced sig over message with
// SignText. V may be 0/1 or 27/28.
func RecoverText(message, sig []byte) (common.Address, error) {
	if len(sig) != SignatureLength {
		return common.Address{}, ErrSignatureLength
	}
	s := make([]byte, SignatureLength)
	copy(s, sig)
	switch s[64] {
	case 0, 1:
	case 27, 28:
		s[64] -= 27
	default:
		return common.Address{}, ErrSignatureV
	}
	pub, err := gethcrypto.SigToPub(accounts.TextHash(message), s)
	if err != nil {
		return common.Address{}, fmt.Errorf("signature: recover: %w", err)
	}
	return gethcrypto.PubkeyToAddress(*pub), nil
}

// RecoverTextHex is RecoverText with a 0x-prefixed hex signature.
func RecoverTextHex(message []byte, sigHex string) (common.Address, error) {
	sig, err := hexutil.Decode(sigHex)
	if err != nil {
		return common.Address{}, fmt.Errorf("signature: %w", err)
	}
	return RecoverText(message, sig)
}
