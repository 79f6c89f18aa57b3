package testutil

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/raiden-network/raiden-libs-go/pkg/messages"
	"github.com/raiden-network/raiden-libs-go/pkg/signer/inMemorySigner"
	"go.uber.org/zap"
)

// Fixed values shared by tests
var (
	TokenNetworkAddress = common.HexToAddress("0x82dd0e0eA3E84D00Cc119c46Ee22060939E5D1FC").Hex()
	ChannelIdentifier   = "0x3131313131313131313131313131313131313131313131313131313131313131"
)

// CreateTestSigner creates a signer with a fresh random key
func CreateTestSigner(t *testing.T) *inMemorySigner.InMemorySigner {
	t.Helper()
	s, err := inMemorySigner.NewRandomInMemorySigner(zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to create signer: %v", err)
	}
	return s
}

// CreateTestAddress returns a random checksummed address
func CreateTestAddress(t *testing.T) string {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("Failed to generate key: %v", err)
	}
	return crypto.PubkeyToAddress(key.PublicKey).Hex()
}

// CreateTestFeeInfo creates an unsigned FeeInfo on chainID with the given nonce
func CreateTestFeeInfo(t *testing.T, chainID, nonce uint64) *messages.FeeInfo {
	t.Helper()
	msg, err := messages.NewFeeInfo(messages.FeeInfoParams{
		TokenNetworkAddress: TokenNetworkAddress,
		ChainID:             uint256.NewInt(chainID),
		ChannelIdentifier:   ChannelIdentifier,
		Nonce:               uint256.NewInt(nonce),
		RelativeFee:         uint256.NewInt(10000),
	})
	if err != nil {
		t.Fatalf("Failed to create FeeInfo: %v", err)
	}
	return msg
}

// CreateTestBalanceProof creates an unsigned derived-mode BalanceProof
func CreateTestBalanceProof(t *testing.T, chainID, nonce uint64) *messages.BalanceProof {
	t.Helper()
	bp, err := messages.NewBalanceProof(messages.BalanceProofParams{
		ChannelIdentifier:   ChannelIdentifier,
		TokenNetworkAddress: TokenNetworkAddress,
		ChainID:             uint256.NewInt(chainID),
		Nonce:               uint256.NewInt(nonce),
		Balance:             messages.DerivedBalance{TransferredAmount: uint256.NewInt(100 + nonce)},
	})
	if err != nil {
		t.Fatalf("Failed to create BalanceProof: %v", err)
	}
	return bp
}

// CreateTestMonitorRequest creates a MonitorRequest whose balance proof is
// signed by client and whose reward proof is signed by rewardSender
func CreateTestMonitorRequest(t *testing.T, chainID, nonce uint64, client, rewardSender *inMemorySigner.InMemorySigner) *messages.MonitorRequest {
	t.Helper()
	ctx := context.Background()

	bp := CreateTestBalanceProof(t, chainID, nonce)
	if err := messages.Sign(ctx, client, bp); err != nil {
		t.Fatalf("Failed to sign balance proof: %v", err)
	}
	mr, err := messages.NewMonitorRequest(bp, messages.MonitorRequestParams{
		RewardAmount:   uint256.NewInt(1),
		MonitorAddress: CreateTestAddress(t),
	})
	if err != nil {
		t.Fatalf("Failed to create MonitorRequest: %v", err)
	}
	if err := messages.Sign(ctx, rewardSender, mr.RewardProofDomain()); err != nil {
		t.Fatalf("Failed to sign reward proof: %v", err)
	}
	return mr
}

// SignMessage signs every single-domain message kind, failing the test otherwise
func SignMessage(t *testing.T, s *inMemorySigner.InMemorySigner, msg messages.Message) {
	t.Helper()
	domain, ok := msg.(messages.SigningDomain)
	if !ok {
		t.Fatalf("%s has no single signing domain", msg.Type())
	}
	if err := messages.Sign(context.Background(), s, domain); err != nil {
		t.Fatalf("Failed to sign %s: %v", msg.Type(), err)
	}
}
