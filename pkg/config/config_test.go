package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		Port:            DefaultPort,
		ChainID:         ChainId_EthereumMainnet,
		PersistenceType: PersistenceTypeMemory,
		RateLimit:       DefaultRateLimit,
		RateBurst:       DefaultRateBurst,
	}
}

func TestServiceConfig_Validate(t *testing.T) {
	cfg := validServiceConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ChainName_EthereumMainnet, cfg.ChainName)

	tests := []struct {
		name   string
		mutate func(*ServiceConfig)
		errMsg string
	}{
		{name: "port too low", mutate: func(c *ServiceConfig) { c.Port = 0 }, errMsg: "port"},
		{name: "port too high", mutate: func(c *ServiceConfig) { c.Port = 70000 }, errMsg: "port"},
		{name: "unknown chain", mutate: func(c *ServiceConfig) { c.ChainID = 999 }, errMsg: "chainId"},
		{name: "badger without path", mutate: func(c *ServiceConfig) { c.PersistenceType = PersistenceTypeBadger }, errMsg: "dataPath"},
		{name: "redis without address", mutate: func(c *ServiceConfig) { c.PersistenceType = PersistenceTypeRedis }, errMsg: "redis.address"},
		{name: "unknown persistence", mutate: func(c *ServiceConfig) { c.PersistenceType = "postgres" }, errMsg: "persistenceType"},
		{name: "negative rate", mutate: func(c *ServiceConfig) { c.RateLimit = -1 }, errMsg: "rateLimit"},
		{name: "zero burst", mutate: func(c *ServiceConfig) { c.RateBurst = 0 }, errMsg: "rateBurst"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validServiceConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestServiceConfig_ValidateAggregatesErrors(t *testing.T) {
	cfg := &ServiceConfig{Port: -1, ChainID: 12, PersistenceType: PersistenceTypeRedis}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port")
	assert.Contains(t, err.Error(), "chainId")
	assert.Contains(t, err.Error(), "redis.address")
}

func TestServiceConfig_RateLimitDisabled(t *testing.T) {
	cfg := validServiceConfig()
	cfg.RateLimit = 0
	cfg.RateBurst = 0
	assert.NoError(t, cfg.Validate())
}

func TestSignerConfig_Validate(t *testing.T) {
	key := "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

	assert.NoError(t, (&SignerConfig{Backend: SignerBackendPrivateKey, PrivateKey: key}).Validate())
	assert.NoError(t, (&SignerConfig{Backend: SignerBackendPrivateKey, PrivateKey: key[2:]}).Validate())
	assert.NoError(t, (&SignerConfig{Backend: SignerBackendAWSKMS, KMSKeyID: "alias/raiden"}).Validate())

	assert.Error(t, (&SignerConfig{Backend: SignerBackendPrivateKey}).Validate())
	assert.Error(t, (&SignerConfig{Backend: SignerBackendPrivateKey, PrivateKey: "0x1234"}).Validate())
	assert.Error(t, (&SignerConfig{Backend: SignerBackendPrivateKey, PrivateKey: "0xzz" + key[4:]}).Validate())
	assert.Error(t, (&SignerConfig{Backend: SignerBackendAWSKMS}).Validate())

	err := (&SignerConfig{Backend: "ledger"}).Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend")
}

func TestSignerConfig_ValidateRedactsKey(t *testing.T) {
	err := (&SignerConfig{Backend: SignerBackendPrivateKey, PrivateKey: "0xdeadbeef"}).Validate()
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "deadbeef")
}

func TestChainTables(t *testing.T) {
	for id, name := range ChainIdToName {
		assert.Equal(t, id, ChainNameToId[name])
	}
	ids := GetSupportedChainIDs()
	require.Len(t, ids, len(ChainIdToName))
	assert.Equal(t, ChainId_EthereumMainnet, ids[0])
	assert.Contains(t, GetSupportedChainIDsString(), "1 (mainnet)")
}
