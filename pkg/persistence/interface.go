package persistence

import "github.com/raiden-network/raiden-libs-go/pkg/messages"

// IMessageStore persists received messages in their transport form.
// All implementations must be thread-safe; the HTTP server calls them from
// concurrent handlers.
//
// The interface supports:
// - Content-addressed message records (save, load, list, delete)
// - Service operational state (chain id, start time)
// - Lifecycle management (close, health check)
type IMessageStore interface {
	// Message Records

	// SaveMessage persists a record under its key.
	// Saving a key that already exists keeps the first record and returns nil.
	SaveMessage(record *StoredMessage) error

	// LoadMessage retrieves a record by key.
	// Returns nil if the key doesn't exist, error only on storage failure.
	LoadMessage(key string) (*StoredMessage, error)

	// ListMessages returns the records of one message type sorted by
	// receive time (ascending). An empty type lists every record.
	// Returns empty slice if nothing matches, error only on storage failure.
	ListMessages(msgType messages.MessageType) ([]*StoredMessage, error)

	// DeleteMessage removes a record by key.
	// Idempotent - returns nil if the key doesn't exist.
	DeleteMessage(key string) error

	// Service Operational State

	// SaveServiceState persists operational state, overwriting any existing state.
	SaveServiceState(state *ServiceState) error

	// LoadServiceState retrieves operational state.
	// Returns nil state if none exists (first run), error only on storage failure.
	LoadServiceState() (*ServiceState, error)

	// Lifecycle Management

	// Close cleanly shuts down the persistence layer.
	// Idempotent - safe to call multiple times.
	// After Close(), all other operations return ErrClosed.
	Close() error

	// HealthCheck verifies the persistence layer is operational.
	HealthCheck() error
}
