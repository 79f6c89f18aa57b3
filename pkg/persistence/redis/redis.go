package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/raiden-network/raiden-libs-go/pkg/messages"
	"github.com/raiden-network/raiden-libs-go/pkg/persistence"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Key prefixes for namespacing in Redis
const (
	keyPrefixMessage     = "msg:record:"
	keyPrefixIndex       = "msg:index:" // one set of record keys per message type
	keyServiceState      = "msg:service:state"
	keySchemaVersion     = "msg:metadata:schema_version"
	currentSchemaVersion = "v1"

	operationTimeout = 5 * time.Second
)

// RedisPersistence is a message store backed by Redis, suitable for
// deployments where several service instances share one store.
type RedisPersistence struct {
	client    *redis.Client
	logger    *zap.Logger
	keyPrefix string
	mu        sync.RWMutex
	closed    bool
}

var _ persistence.IMessageStore = (*RedisPersistence)(nil)

// RedisConfig holds the configuration for connecting to Redis
type RedisConfig struct {
	// Address is the Redis server address (host:port)
	Address string
	// Password is the optional Redis password
	Password string
	// DB is the Redis database number (0-15)
	DB int
	// KeyPrefix is prepended to every key, e.g. "raiden:msg:" gives keys
	// like "raiden:msg:msg:record:FeeInfo:0x...".
	KeyPrefix string
}

// NewRedisPersistence connects to Redis and validates the schema version.
func NewRedisPersistence(cfg *RedisConfig, logger *zap.Logger) (*RedisPersistence, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}

	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	rp := &RedisPersistence{
		client:    client,
		logger:    logger,
		keyPrefix: cfg.KeyPrefix,
	}

	if err := rp.initSchema(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Sugar().Infow("Redis persistence initialized", "address", cfg.Address, "db", cfg.DB, "key_prefix", cfg.KeyPrefix)

	return rp, nil
}

// prefixKey adds the custom key prefix (if configured) to a key
func (r *RedisPersistence) prefixKey(key string) string {
	if r.keyPrefix == "" {
		return key
	}
	return r.keyPrefix + key
}

func (r *RedisPersistence) recordKey(key string) string {
	return r.prefixKey(keyPrefixMessage + key)
}

func (r *RedisPersistence) indexKey(msgType messages.MessageType) string {
	return r.prefixKey(keyPrefixIndex + string(msgType))
}

// initSchema initializes or validates the schema version
func (r *RedisPersistence) initSchema(ctx context.Context) error {
	schemaKey := r.prefixKey(keySchemaVersion)

	existingVersion, err := r.client.Get(ctx, schemaKey).Result()
	if err == redis.Nil {
		return r.client.Set(ctx, schemaKey, currentSchemaVersion, 0).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if existingVersion != currentSchemaVersion {
		return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
	}

	return nil
}

// SaveMessage persists a message record, keeping an existing record with the same key
func (r *RedisPersistence) SaveMessage(record *persistence.StoredMessage) error {
	if err := record.Validate(); err != nil {
		return err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return persistence.ErrClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	data, err := persistence.MarshalStoredMessage(record)
	if err != nil {
		return fmt.Errorf("failed to marshal StoredMessage: %w", err)
	}

	// SETNX keeps the first record; the index add is idempotent
	pipe := r.client.TxPipeline()
	pipe.SetNX(ctx, r.recordKey(record.Key), data, 0)
	pipe.SAdd(ctx, r.indexKey(record.Type), record.Key)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save StoredMessage: %w", err)
	}

	return nil
}

// LoadMessage retrieves a message record by key
func (r *RedisPersistence) LoadMessage(key string) (*persistence.StoredMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, persistence.ErrClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	data, err := r.client.Get(ctx, r.recordKey(key)).Bytes()
	if err == redis.Nil {
		return nil, nil // Not found is not an error
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load StoredMessage: %w", err)
	}

	record, err := persistence.UnmarshalStoredMessage(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal StoredMessage: %w", err)
	}

	return record, nil
}

// ListMessages returns the records of msgType sorted by receive time
func (r *RedisPersistence) ListMessages(msgType messages.MessageType) ([]*persistence.StoredMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, persistence.ErrClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	types := []messages.MessageType{msgType}
	if msgType == "" {
		types = messages.MessageTypes()
	}

	records := []*persistence.StoredMessage{}
	for _, t := range types {
		found, err := r.listType(ctx, t)
		if err != nil {
			return nil, err
		}
		records = append(records, found...)
	}

	persistence.SortStoredMessages(records)
	return records, nil
}

func (r *RedisPersistence) listType(ctx context.Context, msgType messages.MessageType) ([]*persistence.StoredMessage, error) {
	indexKey := r.indexKey(msgType)

	keys, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list %s keys: %w", msgType, err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	recordKeys := make([]string, len(keys))
	for i, key := range keys {
		recordKeys[i] = r.recordKey(key)
	}

	values, err := r.client.MGet(ctx, recordKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s records: %w", msgType, err)
	}

	var records []*persistence.StoredMessage
	for i, val := range values {
		if val == nil {
			// Key was in index but doesn't exist - clean up index
			r.client.SRem(ctx, indexKey, keys[i])
			continue
		}

		data, ok := val.(string)
		if !ok {
			r.logger.Sugar().Warnw("Unexpected value type for StoredMessage", "key", recordKeys[i])
			continue
		}

		record, err := persistence.UnmarshalStoredMessage([]byte(data))
		if err != nil {
			r.logger.Sugar().Warnw("Failed to unmarshal StoredMessage, skipping",
				"key", recordKeys[i], "error", err)
			continue
		}

		records = append(records, record)
	}
	return records, nil
}

// DeleteMessage removes a message record
func (r *RedisPersistence) DeleteMessage(key string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return persistence.ErrClosed
	}

	msgType, err := persistence.ParseMessageKey(key)
	if err != nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.recordKey(key))
	pipe.SRem(ctx, r.indexKey(msgType), key)

	_, err = pipe.Exec(ctx)
	return err
}

// SaveServiceState persists service operational state
func (r *RedisPersistence) SaveServiceState(state *persistence.ServiceState) error {
	if state == nil {
		return fmt.Errorf("cannot save nil ServiceState")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return persistence.ErrClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	data, err := persistence.MarshalServiceState(state)
	if err != nil {
		return fmt.Errorf("failed to marshal ServiceState: %w", err)
	}

	return r.client.Set(ctx, r.prefixKey(keyServiceState), data, 0).Err()
}

// LoadServiceState retrieves service operational state
func (r *RedisPersistence) LoadServiceState() (*persistence.ServiceState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, persistence.ErrClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	data, err := r.client.Get(ctx, r.prefixKey(keyServiceState)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load ServiceState: %w", err)
	}

	state, err := persistence.UnmarshalServiceState(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal ServiceState: %w", err)
	}

	return state, nil
}

// Close shuts down the persistence layer
func (r *RedisPersistence) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	if err := r.client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis client: %w", err)
	}

	r.logger.Sugar().Info("Redis persistence closed")
	return nil
}

// HealthCheck verifies the persistence layer is operational
func (r *RedisPersistence) HealthCheck() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return persistence.ErrClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}

	_, err := r.client.Get(ctx, r.prefixKey(keySchemaVersion)).Result()
	if err == redis.Nil {
		return fmt.Errorf("schema version not found - database may not be properly initialized")
	}
	if err != nil {
		return fmt.Errorf("failed to verify schema version: %w", err)
	}

	return nil
}
