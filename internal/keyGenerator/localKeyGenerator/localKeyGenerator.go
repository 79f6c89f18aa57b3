package localKeyGenerator

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/raiden-network/raiden-libs-go/internal/keyGenerator"
	"github.com/raiden-network/raiden-libs-go/pkg/signer/inMemorySigner"
	"go.uber.org/zap"
)

// LocalKeyGenerator creates keys in process. The private key is handed to
// the caller and not kept.
type LocalKeyGenerator struct {
	logger *zap.Logger
}

var _ keyGenerator.IKeyGenerator = (*LocalKeyGenerator)(nil)

func NewLocalKeyGenerator(logger *zap.Logger) *LocalKeyGenerator {
	return &LocalKeyGenerator{logger: logger}
}

func (l *LocalKeyGenerator) GenerateKey(_ context.Context, keyName string, aliasName string) (*keyGenerator.GeneratedKey, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}

	keyId := fmt.Sprintf("local-key-%s", uuid.New().String())
	generated := keyGenerator.NewGeneratedKey(keyId, &key.PublicKey)
	generated.PrivateKey = inMemorySigner.NewInMemorySigner(key, l.logger).PrivateKeyHex()

	l.logger.Info("Generated local signing key",
		zap.String("keyName", keyName),
		zap.String("aliasName", aliasName),
		zap.String("keyId", keyId),
		zap.String("address", generated.Address),
	)
	return generated, nil
}
