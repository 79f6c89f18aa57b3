// Package messages defines the wire messages exchanged with payment-channel
// services: balance proofs, fee advertisements, path-finding requests and
// replies, and monitoring requests.
//
// Each message converts losslessly to and from a keyed Payload, produces the
// canonical bytes that its signature covers, and carries its signature in
// wire form until a consumer explicitly recovers the signer.
package messages

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"sort"

	"github.com/holiman/uint256"
)

type MessageType string

const (
	MessageTypeBalanceProof   MessageType = "BalanceProof"
	MessageTypeFeeInfo        MessageType = "FeeInfo"
	MessageTypePathsRequest   MessageType = "PathsRequest"
	MessageTypePathsReply     MessageType = "PathsReply"
	MessageTypeMonitorRequest MessageType = "MonitorRequest"
)

func (t MessageType) String() string {
	return string(t)
}

// Payload is the transport-neutral keyed form of a message. Hashes and
// addresses are 0x hex strings and integers are decimal json.Number values.
type Payload map[string]any

// Message is implemented by every concrete message kind.
type Message interface {
	Type() MessageType

	// SerializeData returns the keyed form, including the message_type tag.
	SerializeData() Payload

	// SerializeBin returns the canonical signable bytes. It never includes
	// the signature it is signed with.
	SerializeBin() ([]byte, error)

	// SerializeFull returns the transport form: type tag, fields and
	// signature together.
	SerializeFull() ([]byte, error)

	ChainID() *uint256.Int
}

type decodeFunc func(Payload) (Message, error)

var registry = map[MessageType]decodeFunc{
	MessageTypeBalanceProof:   func(p Payload) (Message, error) { return deserializeBalanceProof(p) },
	MessageTypeFeeInfo:        func(p Payload) (Message, error) { return deserializeFeeInfo(p) },
	MessageTypePathsRequest:   func(p Payload) (Message, error) { return deserializePathsRequest(p) },
	MessageTypePathsReply:     func(p Payload) (Message, error) { return deserializePathsReply(p) },
	MessageTypeMonitorRequest: func(p Payload) (Message, error) { return deserializeMonitorRequest(p) },
}

// MessageTypes lists the registered tags in sorted order.
func MessageTypes() []MessageType {
	types := make([]MessageType, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// IsRegistered reports whether t is one of the known message kinds.
func IsRegistered(t MessageType) bool {
	_, ok := registry[t]
	return ok
}

// Deserialize builds the concrete message named by the payload's
// message_type tag. The caller's map is not modified.
func Deserialize(payload Payload) (Message, error) {
	working := maps.Clone(payload)

	rawType, ok := working[keyMessageType]
	if !ok || rawType == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingField, keyMessageType)
	}
	delete(working, keyMessageType)

	var tag MessageType
	switch t := rawType.(type) {
	case string:
		tag = MessageType(t)
	case MessageType:
		tag = t
	default:
		return nil, fmt.Errorf("%w: tag of type %T", ErrUnknownMessageType, rawType)
	}

	decode, ok := registry[tag]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessageType, tag)
	}
	msg, err := decode(working)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize %s: %w", tag, err)
	}
	return msg, nil
}

// DeserializeAs is Deserialize with the additional requirement that the
// result is of kind required.
func DeserializeAs(payload Payload, required MessageType) (Message, error) {
	msg, err := Deserialize(payload)
	if err != nil {
		return nil, err
	}
	if msg.Type() != required {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrMessageType, required, msg.Type())
	}
	return msg, nil
}

// DeserializeTo deserializes payload and asserts the concrete type, e.g.
// DeserializeTo[*FeeInfo](payload).
func DeserializeTo[T Message](payload Payload) (T, error) {
	var zero T
	msg, err := Deserialize(payload)
	if err != nil {
		return zero, err
	}
	typed, ok := msg.(T)
	if !ok {
		return zero, fmt.Errorf("%w: expected %T, got %s", ErrMessageType, zero, msg.Type())
	}
	return typed, nil
}

// DecodePayload parses the transport form into a Payload, keeping integers
// as json.Number so no precision is lost.
func DecodePayload(data []byte) (Payload, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var payload Payload
	if err := decoder.Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}
	if payload == nil {
		return nil, fmt.Errorf("payload must be a JSON object")
	}
	return payload, nil
}

// DeserializeBytes reads the SerializeFull form of any message.
func DeserializeBytes(data []byte) (Message, error) {
	payload, err := DecodePayload(data)
	if err != nil {
		return nil, err
	}
	return Deserialize(payload)
}

func DeserializeBytesAs(data []byte, required MessageType) (Message, error) {
	payload, err := DecodePayload(data)
	if err != nil {
		return nil, err
	}
	return DeserializeAs(payload, required)
}

func serializeFull(m Message) ([]byte, error) {
	data, err := json.Marshal(m.SerializeData())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", m.Type(), err)
	}
	return data, nil
}
