package keyGenerator

import (
	"context"
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// GeneratedKey describes a freshly created secp256k1 signing key
type GeneratedKey struct {
	KeyId     string `json:"key_id"`
	Address   string `json:"address"`
	PublicKey string `json:"public_key"`
	// PrivateKey is only set for keys generated locally.
	PrivateKey string `json:"private_key,omitempty"`
}

// NewGeneratedKey fills in the address and uncompressed public key of pub
func NewGeneratedKey(keyId string, pub *ecdsa.PublicKey) *GeneratedKey {
	return &GeneratedKey{
		KeyId:     keyId,
		Address:   crypto.PubkeyToAddress(*pub).Hex(),
		PublicKey: hexutil.Encode(crypto.FromECDSAPub(pub)),
	}
}

type IKeyGenerator interface {
	GenerateKey(ctx context.Context, keyName string, aliasName string) (*GeneratedKey, error)
}
