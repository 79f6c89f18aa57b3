package main

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/raiden-network/raiden-libs-go/internal/aws"
	"github.com/raiden-network/raiden-libs-go/internal/keyGenerator"
	"github.com/raiden-network/raiden-libs-go/internal/keyGenerator/awsKms"
	"github.com/raiden-network/raiden-libs-go/internal/keyGenerator/localKeyGenerator"
	"github.com/raiden-network/raiden-libs-go/pkg/config"
	"github.com/raiden-network/raiden-libs-go/pkg/persistence"
	"github.com/raiden-network/raiden-libs-go/pkg/persistence/badger"
	"github.com/raiden-network/raiden-libs-go/pkg/persistence/memory"
	"github.com/raiden-network/raiden-libs-go/pkg/persistence/redis"
	"github.com/raiden-network/raiden-libs-go/pkg/signer"
	"github.com/raiden-network/raiden-libs-go/pkg/signer/awsKmsSigner"
	"github.com/raiden-network/raiden-libs-go/pkg/signer/inMemorySigner"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func signerConfig(c *cli.Context) *config.SignerConfig {
	return &config.SignerConfig{
		Backend:    config.SignerBackend(c.String("signer")),
		PrivateKey: c.String("private-key"),
		KMSKeyID:   c.String("kms-key-id"),
		AWSRegion:  c.String("aws-region"),
	}
}

// newSigner builds the signer selected by cfg
func newSigner(ctx context.Context, cfg *config.SignerConfig, l *zap.Logger) (signer.ISigner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid signer configuration: %w", err)
	}

	switch cfg.Backend {
	case config.SignerBackendPrivateKey:
		s, err := inMemorySigner.NewInMemorySignerFromHex(cfg.PrivateKey, l)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.SignerBackendAWSKMS:
		awsCfg, err := aws.LoadAWSConfig(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, err
		}
		aws.LogCallerIdentity(ctx, sts.NewFromConfig(awsCfg), l)
		s, err := awsKmsSigner.NewAWSKMSSignerFromConfig(ctx, awsCfg, cfg.KMSKeyID, l)
		if err != nil {
			return nil, fmt.Errorf("failed to create KMS signer: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported signer backend: %s", cfg.Backend)
	}
}

// newStore opens the message store selected by cfg
func newStore(cfg *config.ServiceConfig, l *zap.Logger) (persistence.IMessageStore, error) {
	switch cfg.PersistenceType {
	case config.PersistenceTypeMemory:
		return memory.NewMemoryPersistence(l), nil
	case config.PersistenceTypeBadger:
		store, err := badger.NewBadgerPersistence(cfg.DataPath, l)
		if err != nil {
			return nil, fmt.Errorf("failed to open badger store: %w", err)
		}
		return store, nil
	case config.PersistenceTypeRedis:
		store, err := redis.NewRedisPersistence(&redis.RedisConfig{
			Address:   cfg.Redis.Address,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		}, l)
		if err != nil {
			return nil, fmt.Errorf("failed to open redis store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported persistence type: %s", cfg.PersistenceType)
	}
}

// newKeyGenerator builds the key generator for backend
func newKeyGenerator(ctx context.Context, backend config.SignerBackend, region, environment string, l *zap.Logger) (keyGenerator.IKeyGenerator, error) {
	switch backend {
	case config.SignerBackendPrivateKey:
		return localKeyGenerator.NewLocalKeyGenerator(l), nil
	case config.SignerBackendAWSKMS:
		awsCfg, err := aws.LoadAWSConfig(ctx, region)
		if err != nil {
			return nil, err
		}
		aws.LogCallerIdentity(ctx, sts.NewFromConfig(awsCfg), l)
		return awsKms.NewAWSKMSKeyGeneratorFromConfig(awsCfg, environment, l), nil
	default:
		return nil, fmt.Errorf("unsupported signer backend: %s", backend)
	}
}
