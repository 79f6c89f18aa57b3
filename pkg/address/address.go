// Package address validates the hex forms used for account addresses and
// fixed-length 32 byte identifiers on the wire.
package address

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

const (
	addressHexLength = 2 + 2*common.AddressLength
	hashHexLength    = 2 + 2*common.HashLength
)

var (
	ErrInvalidAddress = errors.New("invalid address")
	ErrInvalidHex     = errors.New("invalid hex value")
)

// Validate accepts only a 0x-prefixed, 40 hex character string whose casing
// is exactly its EIP-55 checksum rendering.
func Validate(value any) (common.Address, error) {
	s, ok := value.(string)
	if !ok {
		return common.Address{}, fmt.Errorf("%w: expected string, got %T", ErrInvalidAddress, value)
	}
	if !strings.HasPrefix(s, "0x") {
		return common.Address{}, fmt.Errorf("%w: %q is missing the 0x prefix", ErrInvalidAddress, s)
	}
	if len(s) != addressHexLength {
		return common.Address{}, fmt.Errorf("%w: %q must be %d characters, got %d", ErrInvalidAddress, s, addressHexLength, len(s))
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %q is not hex encoded", ErrInvalidAddress, s)
	}

	addr := common.HexToAddress(s)
	if addr.Hex() != s {
		return common.Address{}, fmt.Errorf("%w: %q does not match checksum %s", ErrInvalidAddress, s, addr.Hex())
	}
	return addr, nil
}

// IsChecksumAddress reports whether s passes Validate.
func IsChecksumAddress(s string) bool {
	_, err := Validate(s)
	return err == nil
}

// Checksum renders addr in its mixed-case checksum form.
func Checksum(addr common.Address) string {
	return addr.Hex()
}

// ValidateHash checks a 0x-prefixed 32 byte hex value. Casing is not checked.
func ValidateHash(value any) (common.Hash, error) {
	s, ok := value.(string)
	if !ok {
		return common.Hash{}, fmt.Errorf("%w: expected string, got %T", ErrInvalidHex, value)
	}
	if !strings.HasPrefix(s, "0x") {
		return common.Hash{}, fmt.Errorf("%w: %q is missing the 0x prefix", ErrInvalidHex, s)
	}
	if len(s) != hashHexLength {
		return common.Hash{}, fmt.Errorf("%w: %q must be %d characters, got %d", ErrInvalidHex, s, hashHexLength, len(s))
	}
	for _, c := range s[2:] {
		if !isHexChar(c) {
			return common.Hash{}, fmt.Errorf("%w: %q contains non-hex character %q", ErrInvalidHex, s, c)
		}
	}
	return common.HexToHash(s), nil
}

// ValidateSignature accepts the wire form of a signature. Content is not
// decoded here; a signature is only interpreted when a signer is recovered.
func ValidateSignature(value any) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("%w: signature must be a string, got %T", ErrInvalidHex, value)
	}
	return s, nil
}

func isHexChar(c rune) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}
