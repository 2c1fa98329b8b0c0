package wallet

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// RequestMessage is the payload a caller signs to authenticate a market request:
// the timestamp, the method and path, then the raw body.
func RequestMessage(timestamp, method, path string, body []byte) []byte {
	return append([]byte(timestamp+"\n"+method+" "+path+"\n"), body...)
}

// Sign produces a 65 byte personal-sign signature (v is 27 or 28) over msg.
func Sign(privatekey string, msg []byte) ([]byte, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privatekey, "0x"))
	if err != nil {
		return nil, err
	}

	sig, err := crypto.Sign(accounts.TextHash(msg), privateKey)
	if err != nil {
		return nil, err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

// RecoverAddress returns the checksummed address that produced sig over msg.
func RecoverAddress(msg []byte, sig []byte) (string, error) {
	if len(sig) != crypto.SignatureLength {
		return "", fmt.Errorf("invalid signature length: %d", len(sig))
	}

	normalized := make([]byte, len(sig))
	copy(normalized, sig)
	if normalized[crypto.RecoveryIDOffset] >= 27 {
		normalized[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash(msg), normalized)
	if err != nil {
		return "", err
	}
	return crypto.PubkeyToAddress(*pub).Hex(), nil
}

// RecoverHexSignature is RecoverAddress for a 0x-prefixed hex signature.
func RecoverHexSignature(msg []byte, hexSig string) (string, error) {
	sig, err := hexutil.Decode(hexSig)
	if err != nil {
		return "", fmt.Errorf("decoding signature: %w", err)
	}
	return RecoverAddress(msg, sig)
}

// Verify reports whether sig over msg was produced by addr.
func Verify(addr string, sig []byte, msg []byte) (bool, error) {
	signer, err := RecoverAddress(msg, sig)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(signer, addr), nil
}

// ToPublic converts private key to public key
func ToPublic(priv string) (string, *ecdsa.PublicKey, error) {
	if priv == "" || len(strings.TrimSpace(priv)) == 0 {
		return "nil", nil, fmt.Errorf("invalid private key")
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(priv, "0x"))
	if err != nil {
		return "", nil, err
	}

	publicKeyECDSA, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return "", nil, fmt.Errorf("cannot assert type: publicKey is not of type *ecdsa.PublicKey")
	}

	publicKeyBytes := crypto.FromECDSAPub(publicKeyECDSA)
	publicK := hexutil.Encode(publicKeyBytes)[4:]
	return publicK, publicKeyECDSA, nil
}
