package persistence

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/raiden-network/raiden-libs-go/pkg/address"
	"github.com/raiden-network/raiden-libs-go/pkg/messages"
)

// MessageKey derives the content address of a message from its transport form.
func MessageKey(msg messages.Message) (string, error) {
	if msg == nil {
		return "", fmt.Errorf("cannot derive key of nil message")
	}
	data, err := msg.SerializeFull()
	if err != nil {
		return "", err
	}
	return keyFor(msg.Type(), data), nil
}

func keyFor(msgType messages.MessageType, data []byte) string {
	return fmt.Sprintf("%s:%s", msgType, crypto.Keccak256Hash(data).Hex())
}

// ParseMessageKey validates a key and returns the message type it names.
func ParseMessageKey(key string) (messages.MessageType, error) {
	typePart, hashPart, ok := strings.Cut(key, ":")
	if !ok {
		return "", fmt.Errorf("invalid message key %q: missing separator", key)
	}
	msgType := messages.MessageType(typePart)
	if !messages.IsRegistered(msgType) {
		return "", fmt.Errorf("invalid message key %q: %w", key, messages.ErrUnknownMessageType)
	}
	if _, err := address.ValidateHash(hashPart); err != nil {
		return "", fmt.Errorf("invalid message key %q: %w", key, err)
	}
	return msgType, nil
}

// NewStoredMessage builds the record stored for msg.
func NewStoredMessage(msg messages.Message, receivedAt time.Time) (*StoredMessage, error) {
	if msg == nil {
		return nil, fmt.Errorf("cannot store nil message")
	}
	data, err := msg.SerializeFull()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize %s: %w", msg.Type(), err)
	}
	return &StoredMessage{
		Key:        keyFor(msg.Type(), data),
		Type:       msg.Type(),
		ChainID:    msg.ChainID().Dec(),
		ReceivedAt: receivedAt.UnixNano(),
		Data:       data,
	}, nil
}

// Message decodes the stored transport form.
func (s *StoredMessage) Message() (messages.Message, error) {
	return messages.DeserializeBytesAs(s.Data, s.Type)
}

// Validate checks that a record is well formed before it is written.
func (s *StoredMessage) Validate() error {
	if s == nil {
		return fmt.Errorf("cannot save nil StoredMessage")
	}
	msgType, err := ParseMessageKey(s.Key)
	if err != nil {
		return err
	}
	if msgType != s.Type {
		return fmt.Errorf("message key %q does not match type %s", s.Key, s.Type)
	}
	if len(s.Data) == 0 {
		return fmt.Errorf("stored message %s has no data", s.Key)
	}
	if keyFor(s.Type, s.Data) != s.Key {
		return fmt.Errorf("stored message %s does not match its content", s.Key)
	}
	return nil
}

// MarshalStoredMessage serializes a StoredMessage to JSON bytes.
func MarshalStoredMessage(s *StoredMessage) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("cannot marshal nil StoredMessage")
	}

	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal StoredMessage to JSON: %w", err)
	}

	return data, nil
}

// UnmarshalStoredMessage deserializes a StoredMessage from JSON bytes.
func UnmarshalStoredMessage(data []byte) (*StoredMessage, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var s StoredMessage
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to StoredMessage: %w", err)
	}

	return &s, nil
}

// MarshalServiceState serializes ServiceState to JSON bytes.
func MarshalServiceState(ss *ServiceState) ([]byte, error) {
	if ss == nil {
		return nil, fmt.Errorf("cannot marshal nil ServiceState")
	}

	return json.Marshal(ss)
}

// UnmarshalServiceState deserializes ServiceState from JSON bytes.
func UnmarshalServiceState(data []byte) (*ServiceState, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var ss ServiceState
	if err := json.Unmarshal(data, &ss); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to ServiceState: %w", err)
	}

	return &ss, nil
}
