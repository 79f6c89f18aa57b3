package signer

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignatureLength is the length of a recoverable signature: r || s || v.
const SignatureLength = crypto.SignatureLength

// ISigner signs canonical message bytes. Implementations hash the data with
// keccak256 and return a 65 byte signature with v in {27, 28}.
type ISigner interface {
	SignMessage(ctx context.Context, data []byte) ([]byte, error)
	GetAddress() common.Address
}

// Digest is the 32 byte value that is actually signed for data.
func Digest(data []byte) common.Hash {
	return crypto.Keccak256Hash(data)
}

// RecoverAddress returns the address whose key produced signature over data.
// The recovery byte may be given as 0/1 or 27/28.
func RecoverAddress(data []byte, signature []byte) (common.Address, error) {
	if len(signature) != SignatureLength {
		return common.Address{}, fmt.Errorf("invalid signature length: expected %d bytes, got %d", SignatureLength, len(signature))
	}

	sig := make([]byte, SignatureLength)
	copy(sig, signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	pubKey, err := crypto.SigToPub(Digest(data).Bytes(), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pubKey), nil
}

// PrivateKeyToAddress derives the account address of a hex encoded secp256k1
// private key. The 0x prefix is optional.
func PrivateKeyToAddress(hexKey string) (common.Address, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid private key: %w", err)
	}
	return crypto.PubkeyToAddress(key.PublicKey), nil
}

// DecodeSignature decodes the 0x hex wire form of a signature.
func DecodeSignature(sig string) ([]byte, error) {
	if sig == "" {
		return nil, fmt.Errorf("signature is empty")
	}
	b, err := hexutil.Decode(sig)
	if err != nil {
		return nil, fmt.Errorf("failed to decode signature: %w", err)
	}
	return b, nil
}

// EncodeSignature renders signature bytes in their 0x hex wire form.
func EncodeSignature(sig []byte) string {
	return hexutil.Encode(sig)
}
