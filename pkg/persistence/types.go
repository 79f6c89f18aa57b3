package persistence

import (
	"encoding/json"
	"errors"
	"sort"

	"github.com/raiden-network/raiden-libs-go/pkg/messages"
)

var ErrClosed = errors.New("persistence layer is closed")

// StoredMessage is a received message together with its storage metadata.
type StoredMessage struct {
	// Key is "<message_type>:<keccak256 of Data>".
	Key string `json:"key"`

	Type messages.MessageType `json:"type"`

	// ChainID is the decimal chain id the message was issued for.
	ChainID string `json:"chainId"`

	// ReceivedAt is the Unix timestamp in nanoseconds when the message was stored.
	ReceivedAt int64 `json:"receivedAt"`

	// Data is the message's transport form.
	Data json.RawMessage `json:"data"`
}

// Copy returns a deep copy of the record.
func (s *StoredMessage) Copy() *StoredMessage {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Data = append(json.RawMessage(nil), s.Data...)
	return &cp
}

// ServiceState represents operational state that must persist across restarts.
type ServiceState struct {
	// ChainID is the chain the stored messages belong to. A service started
	// for a different chain refuses to reuse the store.
	ChainID string `json:"chainId"`

	// StartTime is the Unix timestamp when the service last started.
	StartTime int64 `json:"startTime"`
}

// SortStoredMessages orders records by receive time, then key.
func SortStoredMessages(records []*StoredMessage) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].ReceivedAt != records[j].ReceivedAt {
			return records[i].ReceivedAt < records[j].ReceivedAt
		}
		return records[i].Key < records[j].Key
	})
}
