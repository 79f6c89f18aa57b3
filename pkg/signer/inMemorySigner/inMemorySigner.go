package inMemorySigner

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/raiden-network/raiden-libs-go/pkg/signer"
	"go.uber.org/zap"
)

// InMemorySigner signs with a secp256k1 private key held in process memory.
type InMemorySigner struct {
	logger     *zap.Logger
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

var _ signer.ISigner = (*InMemorySigner)(nil)

func NewInMemorySignerFromHex(hexKey string, logger *zap.Logger) (*InMemorySigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("error loading private key: %w", err)
	}
	return NewInMemorySigner(key, logger), nil
}

func NewInMemorySignerFromBytes(privateKey []byte, logger *zap.Logger) (*InMemorySigner, error) {
	key, err := crypto.ToECDSA(privateKey)
	if err != nil {
		return nil, fmt.Errorf("error loading private key: %w", err)
	}
	return NewInMemorySigner(key, logger), nil
}

// NewRandomInMemorySigner generates a fresh key. Mostly useful in tests.
func NewRandomInMemorySigner(logger *zap.Logger) (*InMemorySigner, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate private key: %w", err)
	}
	return NewInMemorySigner(key, logger), nil
}

func NewInMemorySigner(key *ecdsa.PrivateKey, logger *zap.Logger) *InMemorySigner {
	return &InMemorySigner{
		logger:     logger,
		privateKey: key,
		address:    crypto.PubkeyToAddress(key.PublicKey),
	}
}

// SignMessage signs keccak256(data).
func (s *InMemorySigner) SignMessage(_ context.Context, data []byte) ([]byte, error) {
	digest := signer.Digest(data)
	sig, err := crypto.Sign(digest.Bytes(), s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign message: %w", err)
	}
	sig[64] += 27

	s.logger.Sugar().Debugw("Signed message", "signer", s.address.Hex(), "digest", digest.Hex())
	return sig, nil
}

func (s *InMemorySigner) GetAddress() common.Address {
	return s.address
}

// PrivateKeyHex exposes the key in hex, for CLI key generation output.
func (s *InMemorySigner) PrivateKeyHex() string {
	return fmt.Sprintf("0x%x", crypto.FromECDSA(s.privateKey))
}
