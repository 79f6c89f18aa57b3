package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"k8s.io/apimachinery/pkg/util/validation/field"
)

// Environment variable names for the message service and CLI
const (
	EnvPort              = "RAIDEN_MSG_PORT"
	EnvChainID           = "RAIDEN_MSG_CHAIN_ID"
	EnvPersistenceType   = "RAIDEN_MSG_PERSISTENCE_TYPE"
	EnvDataPath          = "RAIDEN_MSG_DATA_PATH"
	EnvRedisAddress      = "RAIDEN_MSG_REDIS_ADDRESS"
	EnvRedisPassword     = "RAIDEN_MSG_REDIS_PASSWORD"
	EnvRedisDB           = "RAIDEN_MSG_REDIS_DB"
	EnvRedisKeyPrefix    = "RAIDEN_MSG_REDIS_KEY_PREFIX"
	EnvRequireSignatures = "RAIDEN_MSG_REQUIRE_SIGNATURES"
	EnvRateLimit         = "RAIDEN_MSG_RATE_LIMIT"
	EnvRateBurst         = "RAIDEN_MSG_RATE_BURST"
	EnvDebug             = "RAIDEN_MSG_DEBUG"

	EnvSignerBackend = "RAIDEN_MSG_SIGNER"
	EnvPrivateKey    = "RAIDEN_MSG_PRIVATE_KEY"
	EnvKMSKeyID      = "RAIDEN_MSG_KMS_KEY_ID"
	EnvAWSRegion     = "RAIDEN_MSG_AWS_REGION"

	EnvServerURL = "RAIDEN_MSG_SERVER_URL"
)

type ChainId uint64

const (
	ChainId_EthereumMainnet ChainId = 1
	ChainId_EthereumRopsten ChainId = 3
	ChainId_EthereumRinkeby ChainId = 4
	ChainId_EthereumGoerli  ChainId = 5
	ChainId_EthereumKovan   ChainId = 42
	ChainId_EthereumSepolia ChainId = 11155111
	ChainId_EthereumAnvil   ChainId = 31337
)

type ChainName string

const (
	ChainName_EthereumMainnet ChainName = "mainnet"
	ChainName_EthereumRopsten ChainName = "ropsten"
	ChainName_EthereumRinkeby ChainName = "rinkeby"
	ChainName_EthereumGoerli  ChainName = "goerli"
	ChainName_EthereumKovan   ChainName = "kovan"
	ChainName_EthereumSepolia ChainName = "sepolia"
	ChainName_EthereumAnvil   ChainName = "devnet"
)

var ChainIdToName = map[ChainId]ChainName{
	ChainId_EthereumMainnet: ChainName_EthereumMainnet,
	ChainId_EthereumRopsten: ChainName_EthereumRopsten,
	ChainId_EthereumRinkeby: ChainName_EthereumRinkeby,
	ChainId_EthereumGoerli:  ChainName_EthereumGoerli,
	ChainId_EthereumKovan:   ChainName_EthereumKovan,
	ChainId_EthereumSepolia: ChainName_EthereumSepolia,
	ChainId_EthereumAnvil:   ChainName_EthereumAnvil,
}
var ChainNameToId = map[ChainName]ChainId{
	ChainName_EthereumMainnet: ChainId_EthereumMainnet,
	ChainName_EthereumRopsten: ChainId_EthereumRopsten,
	ChainName_EthereumRinkeby: ChainId_EthereumRinkeby,
	ChainName_EthereumGoerli:  ChainId_EthereumGoerli,
	ChainName_EthereumKovan:   ChainId_EthereumKovan,
	ChainName_EthereumSepolia: ChainId_EthereumSepolia,
	ChainName_EthereumAnvil:   ChainId_EthereumAnvil,
}

// GetSupportedChainIDs returns all supported chain IDs in ascending order
func GetSupportedChainIDs() []ChainId {
	ids := make([]ChainId, 0, len(ChainIdToName))
	for id := range ChainIdToName {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// GetSupportedChainIDsString returns supported chain IDs as strings for CLI help
func GetSupportedChainIDsString() string {
	parts := make([]string, 0, len(ChainIdToName))
	for _, id := range GetSupportedChainIDs() {
		parts = append(parts, fmt.Sprintf("%d (%s)", id, ChainIdToName[id]))
	}
	return strings.Join(parts, ", ")
}

type PersistenceType string

const (
	PersistenceTypeMemory PersistenceType = "memory"
	PersistenceTypeBadger PersistenceType = "badger"
	PersistenceTypeRedis  PersistenceType = "redis"
)

// Service defaults
const (
	DefaultPort           = 6000
	DefaultRateLimit      = 50.0
	DefaultRateBurst      = 100
	DefaultRedisKeyPrefix = "raiden:msg:"
	DefaultRequestTimeout = 10 * time.Second
)

type RedisConfig struct {
	Address   string `json:"address"`
	Password  string `json:"password"`
	DB        int    `json:"db"`
	KeyPrefix string `json:"key_prefix"`
}

// ServiceConfig represents the complete configuration of the message service
type ServiceConfig struct {
	Port int `json:"port"`

	ChainID   ChainId   `json:"chain_id"`
	ChainName ChainName `json:"chain_name"`

	PersistenceType PersistenceType `json:"persistence_type"`
	DataPath        string          `json:"data_path"` // badger only
	Redis           RedisConfig     `json:"redis"`

	// RequireSignatures rejects messages whose signatures cannot be
	// recovered to an address.
	RequireSignatures bool `json:"require_signatures"`

	// RateLimit is the number of accepted requests per second; zero disables limiting.
	RateLimit float64 `json:"rate_limit"`
	RateBurst int     `json:"rate_burst"`

	Debug bool `json:"debug"`
}

// Validate validates the service configuration and fills in ChainName
func (c *ServiceConfig) Validate() error {
	var allErrors field.ErrorList

	if c.Port < 1 || c.Port > 65535 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("port"), c.Port, "port must be between 1-65535"))
	}

	chainName, exists := ChainIdToName[c.ChainID]
	if !exists {
		allErrors = append(allErrors, field.NotSupported(field.NewPath("chainId"), c.ChainID, chainIDStrings()))
	} else {
		c.ChainName = chainName
	}

	switch c.PersistenceType {
	case PersistenceTypeMemory:
	case PersistenceTypeBadger:
		if c.DataPath == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("dataPath"), "dataPath is required for badger persistence"))
		}
	case PersistenceTypeRedis:
		if c.Redis.Address == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("redis", "address"), "address is required for redis persistence"))
		}
		if c.Redis.DB < 0 {
			allErrors = append(allErrors, field.Invalid(field.NewPath("redis", "db"), c.Redis.DB, "db must not be negative"))
		}
	default:
		allErrors = append(allErrors, field.NotSupported(field.NewPath("persistenceType"), c.PersistenceType, []string{
			string(PersistenceTypeMemory), string(PersistenceTypeBadger), string(PersistenceTypeRedis),
		}))
	}

	if c.RateLimit < 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("rateLimit"), c.RateLimit, "rateLimit must not be negative"))
	}
	if c.RateLimit > 0 && c.RateBurst < 1 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("rateBurst"), c.RateBurst, "rateBurst must be at least 1 when rate limiting is enabled"))
	}

	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

func chainIDStrings() []string {
	ids := GetSupportedChainIDs()
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, fmt.Sprintf("%d", id))
	}
	return out
}

type SignerBackend string

const (
	SignerBackendPrivateKey SignerBackend = "private-key"
	SignerBackendAWSKMS     SignerBackend = "aws-kms"
)

// SignerConfig selects the key used to sign outgoing messages
type SignerConfig struct {
	Backend    SignerBackend `json:"backend"`
	PrivateKey string        `json:"-"`
	KMSKeyID   string        `json:"kms_key_id"`
	AWSRegion  string        `json:"aws_region"`
}

func (sc *SignerConfig) Validate() error {
	var allErrors field.ErrorList
	switch sc.Backend {
	case SignerBackendPrivateKey:
		if sc.PrivateKey == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("privateKey"), "privateKey is required"))
		} else {
			key := strings.TrimPrefix(sc.PrivateKey, "0x")
			if len(key) != 64 { // 32 bytes
				allErrors = append(allErrors, field.Invalid(field.NewPath("privateKey"), "<redacted>",
					fmt.Sprintf("private key must be 32 bytes (64 hex chars), got %d chars", len(key))))
			} else if _, err := hexutil.Decode("0x" + key); err != nil {
				allErrors = append(allErrors, field.Invalid(field.NewPath("privateKey"), "<redacted>", "private key must be hex encoded"))
			}
		}
	case SignerBackendAWSKMS:
		if sc.KMSKeyID == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("kmsKeyId"), "kmsKeyId is required"))
		}
	default:
		allErrors = append(allErrors, field.NotSupported(field.NewPath("backend"), sc.Backend, []string{
			string(SignerBackendPrivateKey), string(SignerBackendAWSKMS),
		}))
	}
	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}
