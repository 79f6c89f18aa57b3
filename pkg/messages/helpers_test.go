package messages

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/raiden-network/raiden-libs-go/pkg/signer/inMemorySigner"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	testTokenNetwork = common.HexToAddress("0x82dd0e0eA3E84D00Cc119c46Ee22060939E5D1FC").Hex()
	testChannelID    = "0x3131313131313131313131313131313131313131313131313131313131313131"
)

func newTestSigner(t *testing.T) *inMemorySigner.InMemorySigner {
	t.Helper()
	s, err := inMemorySigner.NewRandomInMemorySigner(zap.NewNop())
	require.NoError(t, err)
	return s
}

func randomAddress(t *testing.T) string {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return crypto.PubkeyToAddress(key.PublicKey).Hex()
}

func u(n uint64) *uint256.Int {
	return uint256.NewInt(n)
}

func newTestBalanceProof(t *testing.T) *BalanceProof {
	t.Helper()
	bp, err := NewBalanceProof(BalanceProofParams{
		ChannelIdentifier:   testChannelID,
		TokenNetworkAddress: testTokenNetwork,
		ChainID:             u(321),
		Nonce:               u(7),
		Locksroot:           common.BigToHash(u(5).ToBig()).Hex(),
		Balance:             DerivedBalance{TransferredAmount: u(100), LockedAmount: u(3)},
	})
	require.NoError(t, err)
	return bp
}

func newSignedBalanceProof(t *testing.T) (*BalanceProof, *inMemorySigner.InMemorySigner) {
	t.Helper()
	bp := newTestBalanceProof(t)
	s := newTestSigner(t)
	require.NoError(t, Sign(context.Background(), s, bp))
	return bp, s
}
