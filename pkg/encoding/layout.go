// Package encoding produces the canonical byte strings that messages are
// signed over.
//
// Every message kind declares a Layout: a fixed, ordered list of fields with
// fixed widths. Encoded fields are concatenated without length prefixes or
// delimiters, so for a given layout the encoding is injective.
package encoding

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	ErrMissingField = errors.New("missing field")
	ErrEncoding     = errors.New("encoding error")
)

// SignatureLength is the width of a recoverable secp256k1 signature (r || s || v).
const SignatureLength = 65

type Kind int

const (
	KindAddress Kind = iota
	KindBytes32
	KindUint256
	KindUint192
	KindSignature
)

func (k Kind) String() string {
	switch k {
	case KindAddress:
		return "address"
	case KindBytes32:
		return "bytes32"
	case KindUint256:
		return "uint256"
	case KindUint192:
		return "uint192"
	case KindSignature:
		return "signature"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Width is the number of bytes a field of this kind occupies.
func (k Kind) Width() int {
	switch k {
	case KindAddress:
		return common.AddressLength
	case KindBytes32, KindUint256, KindUint192:
		return 32
	case KindSignature:
		return SignatureLength
	default:
		return 0
	}
}

type Field struct {
	Name string
	Kind Kind
}

type Layout []Field

// Values maps field names to their typed values: common.Address for
// addresses, common.Hash for bytes32, *uint256.Int for integers and []byte
// for signatures.
type Values map[string]any

// Size returns the fixed width of an encoding produced by this layout.
func (l Layout) Size() int {
	size := 0
	for _, f := range l {
		size += f.Kind.Width()
	}
	return size
}

// Encode packs values in layout order.
func (l Layout) Encode(values Values) ([]byte, error) {
	out := make([]byte, 0, l.Size())
	for _, f := range l {
		v, ok := values[f.Name]
		if !ok || v == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingField, f.Name)
		}
		packed, err := packField(f, v)
		if err != nil {
			return nil, err
		}
		out = append(out, packed...)
	}
	return out, nil
}

func packField(f Field, v any) ([]byte, error) {
	switch f.Kind {
	case KindAddress:
		addr, ok := v.(common.Address)
		if !ok {
			return nil, fmt.Errorf("%w: field %s expects common.Address, got %T", ErrEncoding, f.Name, v)
		}
		return addr.Bytes(), nil
	case KindBytes32:
		h, ok := v.(common.Hash)
		if !ok {
			return nil, fmt.Errorf("%w: field %s expects common.Hash, got %T", ErrEncoding, f.Name, v)
		}
		return h.Bytes(), nil
	case KindUint256, KindUint192:
		n, ok := v.(*uint256.Int)
		if !ok {
			return nil, fmt.Errorf("%w: field %s expects *uint256.Int, got %T", ErrEncoding, f.Name, v)
		}
		if n == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingField, f.Name)
		}
		if f.Kind == KindUint192 && n.BitLen() > 192 {
			return nil, fmt.Errorf("%w: field %s value %s exceeds 192 bits", ErrEncoding, f.Name, n.Dec())
		}
		word := n.Bytes32()
		return word[:], nil
	case KindSignature:
		b, ok := v.([]byte)
		if !ok {
			return nil, fmt.Errorf("%w: field %s expects []byte, got %T", ErrEncoding, f.Name, v)
		}
		if len(b) != SignatureLength {
			return nil, fmt.Errorf("%w: field %s must be %d bytes, got %d", ErrEncoding, f.Name, SignatureLength, len(b))
		}
		return b, nil
	default:
		return nil, fmt.Errorf("%w: field %s has unknown kind %s", ErrEncoding, f.Name, f.Kind)
	}
}
