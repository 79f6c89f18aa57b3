package messages

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/raiden-network/raiden-libs-go/pkg/address"
	"github.com/raiden-network/raiden-libs-go/pkg/encoding"
	"github.com/raiden-network/raiden-libs-go/pkg/signer"
)

// Payload keys
const (
	keyMessageType          = "message_type"
	keyChannelIdentifier    = "channel_identifier"
	keyTokenNetworkAddress  = "token_network_address"
	keyChainID              = "chain_id"
	keyNonce                = "nonce"
	keyLocksroot            = "locksroot"
	keyAdditionalHash       = "additional_hash"
	keyBalanceHash          = "balance_hash"
	keyTransferredAmount    = "transferred_amount"
	keyLockedAmount         = "locked_amount"
	keySignature            = "signature"
	keyRelativeFee          = "relative_fee"
	keySourceAddress        = "source_address"
	keyTargetAddress        = "target_address"
	keyValue                = "value"
	keyNumPaths             = "num_paths"
	keyPathsAndFees         = "paths_and_fees"
	keyEstimatedFee         = "estimated_fee"
	keyPaths                = "paths"
	keyNonClosingSignature  = "non_closing_signature"
	keyRewardProofSignature = "reward_proof_signature"
	keyRewardAmount         = "reward_amount"
	keyMonitorAddress       = "monitor_address"
)

// constructor-side validation

func parseAddress(name, value string) (common.Address, error) {
	addr, err := address.Validate(value)
	if err != nil {
		return common.Address{}, fmt.Errorf("%s: %w", name, err)
	}
	return addr, nil
}

func parseHash(name, value string) (common.Hash, error) {
	h, err := address.ValidateHash(value)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%s: %w", name, err)
	}
	return h, nil
}

// parseOptionalHash treats an empty string as the zero hash.
func parseOptionalHash(name, value string) (common.Hash, error) {
	if value == "" {
		return common.Hash{}, nil
	}
	return parseHash(name, value)
}

func requireUint(name string, v *uint256.Int) (*uint256.Int, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingField, name)
	}
	return v.Clone(), nil
}

func uintOrZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v.Clone()
}

func decodeFixedSignature(name, sig string) ([]byte, error) {
	b, err := signer.DecodeSignature(sig)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrEncoding, name, err)
	}
	if len(b) != encoding.SignatureLength {
		return nil, fmt.Errorf("%w: %s must be %d bytes, got %d", ErrEncoding, name, encoding.SignatureLength, len(b))
	}
	return b, nil
}

// payload readers

func (p Payload) lookup(key string) (any, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingField, key)
	}
	return v, nil
}

func (p Payload) has(key string) bool {
	v, ok := p[key]
	return ok && v != nil
}

func (p Payload) readString(key string) (string, error) {
	v, err := p.lookup(key)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		// address and hex fields report their own error class
		switch key {
		case keyTokenNetworkAddress, keySourceAddress, keyTargetAddress, keyMonitorAddress:
			_, err = address.Validate(v)
		default:
			_, err = address.ValidateHash(v)
		}
		return "", fmt.Errorf("%s: %w", key, err)
	}
	return s, nil
}

func (p Payload) readOptionalString(key string) (string, error) {
	if !p.has(key) {
		return "", nil
	}
	return p.readString(key)
}

func (p Payload) readSignature(key string) (string, error) {
	if !p.has(key) {
		return "", nil
	}
	sig, err := address.ValidateSignature(p[key])
	if err != nil {
		return "", fmt.Errorf("%s: %w", key, err)
	}
	return sig, nil
}

func (p Payload) readUint(key string) (*uint256.Int, error) {
	v, err := p.lookup(key)
	if err != nil {
		return nil, err
	}
	n, err := toUint256(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrEncoding, key, err)
	}
	return n, nil
}

func (p Payload) readOptionalUint(key string) (*uint256.Int, error) {
	if !p.has(key) {
		return nil, nil
	}
	return p.readUint(key)
}

// toUint256 accepts the integer representations a decoded payload can carry.
func toUint256(v any) (*uint256.Int, error) {
	switch n := v.(type) {
	case json.Number:
		return parseDecimal(n.String())
	case string:
		return parseDecimal(n)
	case *uint256.Int:
		if n == nil {
			return nil, fmt.Errorf("nil integer")
		}
		return n.Clone(), nil
	case uint256.Int:
		return n.Clone(), nil
	case *big.Int:
		if n == nil {
			return nil, fmt.Errorf("nil integer")
		}
		if n.Sign() < 0 {
			return nil, fmt.Errorf("negative value %s", n.String())
		}
		u, overflow := uint256.FromBig(n)
		if overflow {
			return nil, fmt.Errorf("value %s exceeds 256 bits", n.String())
		}
		return u, nil
	case int:
		return fromSigned(int64(n))
	case int8:
		return fromSigned(int64(n))
	case int16:
		return fromSigned(int64(n))
	case int32:
		return fromSigned(int64(n))
	case int64:
		return fromSigned(n)
	case uint:
		return uint256.NewInt(uint64(n)), nil
	case uint8:
		return uint256.NewInt(uint64(n)), nil
	case uint16:
		return uint256.NewInt(uint64(n)), nil
	case uint32:
		return uint256.NewInt(uint64(n)), nil
	case uint64:
		return uint256.NewInt(n), nil
	case float64:
		if n < 0 || n != math.Trunc(n) || n > (1<<53) {
			return nil, fmt.Errorf("value %v is not an exact unsigned integer", n)
		}
		return uint256.NewInt(uint64(n)), nil
	default:
		return nil, fmt.Errorf("expected integer, got %T", v)
	}
}

func fromSigned(n int64) (*uint256.Int, error) {
	if n < 0 {
		return nil, fmt.Errorf("negative value %d", n)
	}
	return uint256.NewInt(uint64(n)), nil
}

func parseDecimal(s string) (*uint256.Int, error) {
	if s == "" || strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		return nil, fmt.Errorf("invalid unsigned decimal %q", s)
	}
	n, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("invalid unsigned decimal %q: %w", s, err)
	}
	return n, nil
}

// payload writers

func uintValue(n *uint256.Int) json.Number {
	if n == nil {
		return json.Number("0")
	}
	return json.Number(n.Dec())
}
