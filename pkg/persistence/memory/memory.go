package memory

import (
	"fmt"
	"sync"

	"github.com/raiden-network/raiden-libs-go/pkg/messages"
	"github.com/raiden-network/raiden-libs-go/pkg/persistence"
	"go.uber.org/zap"
)

// MemoryPersistence is an in-memory implementation of IMessageStore.
// This implementation is intended for testing and local development.
//
// All data is stored in memory and will be lost when the process exits.
// Thread-safe using sync.RWMutex for concurrent access.
// Deep copies data to prevent external mutation.
type MemoryPersistence struct {
	mu sync.RWMutex

	// Message records: key -> StoredMessage
	records map[string]*persistence.StoredMessage

	serviceState *persistence.ServiceState

	closed bool
}

var _ persistence.IMessageStore = (*MemoryPersistence)(nil)

// NewMemoryPersistence creates a new in-memory persistence layer.
// Logs a loud warning since nothing survives a restart.
func NewMemoryPersistence(logger *zap.Logger) *MemoryPersistence {
	logger.Sugar().Warnw("Using in-memory persistence - ALL DATA WILL BE LOST ON RESTART",
		"hint", "set RAIDEN_MSG_PERSISTENCE_TYPE=badger or redis for durable storage")

	return &MemoryPersistence{
		records: make(map[string]*persistence.StoredMessage),
	}
}

// SaveMessage persists a message record.
func (m *MemoryPersistence) SaveMessage(record *persistence.StoredMessage) error {
	if err := record.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return persistence.ErrClosed
	}

	if _, exists := m.records[record.Key]; exists {
		return nil
	}
	m.records[record.Key] = record.Copy()
	return nil
}

// LoadMessage retrieves a message record by key.
func (m *MemoryPersistence) LoadMessage(key string) (*persistence.StoredMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrClosed
	}

	record, exists := m.records[key]
	if !exists {
		return nil, nil // Not found is not an error
	}
	return record.Copy(), nil
}

// ListMessages returns the records of msgType sorted by receive time.
func (m *MemoryPersistence) ListMessages(msgType messages.MessageType) ([]*persistence.StoredMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrClosed
	}

	result := make([]*persistence.StoredMessage, 0, len(m.records))
	for _, record := range m.records {
		if msgType != "" && record.Type != msgType {
			continue
		}
		result = append(result, record.Copy())
	}
	persistence.SortStoredMessages(result)

	return result, nil
}

// DeleteMessage removes a message record.
func (m *MemoryPersistence) DeleteMessage(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return persistence.ErrClosed
	}

	delete(m.records, key)
	return nil
}

// SaveServiceState persists service operational state.
func (m *MemoryPersistence) SaveServiceState(state *persistence.ServiceState) error {
	if state == nil {
		return fmt.Errorf("cannot save nil ServiceState")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return persistence.ErrClosed
	}

	cp := *state
	m.serviceState = &cp
	return nil
}

// LoadServiceState retrieves service operational state.
func (m *MemoryPersistence) LoadServiceState() (*persistence.ServiceState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrClosed
	}

	if m.serviceState == nil {
		return nil, nil // first run
	}
	cp := *m.serviceState
	return &cp, nil
}

// Close shuts down the persistence layer.
func (m *MemoryPersistence) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

// HealthCheck verifies the persistence layer is operational.
func (m *MemoryPersistence) HealthCheck() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return persistence.ErrClosed
	}

	return nil
}
