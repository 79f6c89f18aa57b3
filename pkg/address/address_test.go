package address

import (
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validAddress = "0x82dd0e0eA3E84D00Cc119c46Ee22060939E5D1FC"

func TestValidate(t *testing.T) {
	t.Run("checksummed address is accepted unchanged", func(t *testing.T) {
		addr, err := Validate(validAddress)
		require.NoError(t, err)
		assert.Equal(t, validAddress, addr.Hex())
		assert.Equal(t, validAddress, Checksum(addr))
	})

	tests := []struct {
		name  string
		value any
	}{
		{"non-string", 123456789},
		{"nil", nil},
		{"byte slice", []byte(validAddress)},
		{"missing prefix", validAddress[2:] + "00"},
		{"one hex digit short", validAddress[:len(validAddress)-1]},
		{"one hex digit long", validAddress + "0"},
		{"non-hex character", "0x82dd0e0eA3E84D00Cc119c46Ee22060939E5D1FZ"},
		{"checksum mismatch", "0x11e14d102DA61F1a5cA36cfa96C3B831332357b4"},
		{"all lower case", strings.ToLower(validAddress)},
		{"all upper case", "0x" + strings.ToUpper(validAddress[2:])},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(tt.value)
			require.ErrorIs(t, err, ErrInvalidAddress)
		})
	}
}

func TestIsChecksumAddress(t *testing.T) {
	assert.True(t, IsChecksumAddress(validAddress))
	assert.False(t, IsChecksumAddress(strings.ToLower(validAddress)))

	random := common.BytesToAddress([]byte{0xde, 0xad, 0xbe, 0xef})
	assert.True(t, IsChecksumAddress(Checksum(random)))
}

func TestValidateHash(t *testing.T) {
	id := "0x" + strings.Repeat("31", 32)

	h, err := ValidateHash(id)
	require.NoError(t, err)
	assert.Equal(t, id, h.Hex())

	upper, err := ValidateHash("0x" + strings.Repeat("AB", 32))
	require.NoError(t, err)
	assert.Equal(t, "0x"+strings.Repeat("ab", 32), upper.Hex())

	for _, bad := range []any{
		42,
		strings.Repeat("31", 32),
		"0x" + strings.Repeat("31", 31),
		"0x" + strings.Repeat("31", 33),
		"0x" + strings.Repeat("zz", 32),
	} {
		_, err := ValidateHash(bad)
		require.ErrorIs(t, err, ErrInvalidHex, "value %v", bad)
	}
}

func TestValidateSignature(t *testing.T) {
	sig, err := ValidateSignature("0xabcdef")
	require.NoError(t, err)
	assert.Equal(t, "0xabcdef", sig)

	empty, err := ValidateSignature("")
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = ValidateSignature(12)
	require.ErrorIs(t, err, ErrInvalidHex)
}
