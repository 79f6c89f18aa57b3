package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/holiman/uint256"
	"github.com/raiden-network/raiden-libs-go/internal/keyGenerator"
	"github.com/raiden-network/raiden-libs-go/pkg/config"
	"github.com/raiden-network/raiden-libs-go/pkg/messages"
	"github.com/raiden-network/raiden-libs-go/pkg/persistence/memory"
	"github.com/raiden-network/raiden-libs-go/pkg/server"
	"github.com/raiden-network/raiden-libs-go/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

// run executes the CLI with stdin and returns what it wrote to stdout
func run(t *testing.T, stdin []byte, args ...string) (string, error) {
	t.Helper()
	app := newApp()
	var out bytes.Buffer
	app.Writer = &out
	app.ErrWriter = &bytes.Buffer{}
	app.Reader = bytes.NewReader(stdin)
	err := app.Run(append([]string{"raiden-msg"}, args...))
	return out.String(), err
}

func fullForm(t *testing.T, msg messages.Message) []byte {
	t.Helper()
	data, err := msg.SerializeFull()
	require.NoError(t, err)
	return data
}

func TestAddress(t *testing.T) {
	s := testutil.CreateTestSigner(t)

	out, err := run(t, nil, "address", "--private-key", s.PrivateKeyHex())
	require.NoError(t, err)
	assert.Equal(t, s.GetAddress().Hex(), strings.TrimSpace(out))

	_, err = run(t, nil, "address", "--private-key", "0x1234")
	assert.ErrorContains(t, err, "invalid signer configuration")

	_, err = run(t, nil, "address", "--signer", "ledger")
	assert.Error(t, err)
}

func TestKeygen(t *testing.T) {
	out, err := run(t, nil, "keygen")
	require.NoError(t, err)

	var key keyGenerator.GeneratedKey
	require.NoError(t, json.Unmarshal([]byte(out), &key))
	require.NotEmpty(t, key.PrivateKey)

	addrOut, err := run(t, nil, "address", "--private-key", key.PrivateKey)
	require.NoError(t, err)
	assert.Equal(t, key.Address, strings.TrimSpace(addrOut))

	_, err = run(t, nil, "keygen", "--signer", "ledger")
	assert.Error(t, err)
}

func TestDecode(t *testing.T) {
	msg := testutil.CreateTestFeeInfo(t, 1, 4)

	out, err := run(t, fullForm(t, msg), "decode")
	require.NoError(t, err)

	var decoded DecodeOutput
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, messages.MessageTypeFeeInfo, decoded.Type)
	assert.Equal(t, "1", decoded.ChainID)
	assert.True(t, strings.HasPrefix(decoded.Key, "FeeInfo:0x"))
	assert.Len(t, decoded.Canonical, 2+2*148)
	assert.Equal(t, "FeeInfo", decoded.Payload["message_type"])

	_, err = run(t, []byte(`{"message_type":"Ping"}`), "decode")
	assert.ErrorIs(t, err, messages.ErrUnknownMessageType)
}

func TestDecode_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bp.json")
	require.NoError(t, os.WriteFile(path, fullForm(t, testutil.CreateTestBalanceProof(t, 1, 1)), 0o600))

	out, err := run(t, nil, "decode", path)
	require.NoError(t, err)
	assert.Contains(t, out, `"type": "BalanceProof"`)

	_, err = run(t, nil, "decode", filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestSignAndRecover(t *testing.T) {
	s := testutil.CreateTestSigner(t)

	out, err := run(t, fullForm(t, testutil.CreateTestFeeInfo(t, 1, 1)), "sign", "--private-key", s.PrivateKeyHex())
	require.NoError(t, err)

	signed, err := messages.DeserializeBytesAs([]byte(strings.TrimSpace(out)), messages.MessageTypeFeeInfo)
	require.NoError(t, err)
	addr, err := signed.(*messages.FeeInfo).Signer()
	require.NoError(t, err)
	assert.Equal(t, s.GetAddress(), addr)

	out, err = run(t, []byte(out), "recover")
	require.NoError(t, err)
	var signers []SignerOutput
	require.NoError(t, json.Unmarshal([]byte(out), &signers))
	assert.Equal(t, []SignerOutput{{Field: "signature", Address: s.GetAddress().Hex()}}, signers)

	t.Run("already signed", func(t *testing.T) {
		msg := testutil.CreateTestFeeInfo(t, 1, 2)
		testutil.SignMessage(t, s, msg)
		_, err := run(t, fullForm(t, msg), "sign", "--private-key", s.PrivateKeyHex())
		assert.ErrorIs(t, err, messages.ErrAlreadySigned)
	})

	t.Run("unsigned", func(t *testing.T) {
		_, err := run(t, fullForm(t, testutil.CreateTestFeeInfo(t, 1, 3)), "recover")
		assert.ErrorContains(t, err, "carries no signature")
	})
}

func TestSign_MonitorRequestRewardProof(t *testing.T) {
	client := testutil.CreateTestSigner(t)
	rewardSender := testutil.CreateTestSigner(t)

	bp := testutil.CreateTestBalanceProof(t, 1, 1)
	require.NoError(t, messages.Sign(context.Background(), client, bp))
	mr, err := messages.NewMonitorRequest(bp, messages.MonitorRequestParams{
		RewardAmount:   uint256.NewInt(5),
		MonitorAddress: testutil.CreateTestAddress(t),
	})
	require.NoError(t, err)

	out, err := run(t, fullForm(t, mr), "sign", "--private-key", rewardSender.PrivateKeyHex())
	require.NoError(t, err)

	out, err = run(t, []byte(out), "recover")
	require.NoError(t, err)
	var signers []SignerOutput
	require.NoError(t, json.Unmarshal([]byte(out), &signers))
	assert.Equal(t, []SignerOutput{
		{Field: "non_closing_signature", Address: client.GetAddress().Hex()},
		{Field: "reward_proof_signature", Address: rewardSender.GetAddress().Hex()},
		{Field: "signature", Address: client.GetAddress().Hex()},
	}, signers)
}

func TestSend(t *testing.T) {
	store := memory.NewMemoryPersistence(zap.NewNop())
	defer func() { _ = store.Close() }()
	srv := httptest.NewServer(server.NewServer(&config.ServiceConfig{
		ChainID:         config.ChainId_EthereumMainnet,
		PersistenceType: config.PersistenceTypeMemory,
	}, store, zap.NewNop()).GetHandler())
	defer srv.Close()

	out, err := run(t, fullForm(t, testutil.CreateTestFeeInfo(t, 1, 1)), "send", "--server-url", srv.URL)
	require.NoError(t, err)

	var resp server.SubmitResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, messages.MessageTypeFeeInfo, resp.Type)

	stored, err := store.LoadMessage(resp.Key)
	require.NoError(t, err)
	assert.NotNil(t, stored)
}

func TestNewStore(t *testing.T) {
	l := zap.NewNop()

	store, err := newStore(&config.ServiceConfig{PersistenceType: config.PersistenceTypeMemory}, l)
	require.NoError(t, err)
	require.NoError(t, store.HealthCheck())
	require.NoError(t, store.Close())

	store, err = newStore(&config.ServiceConfig{
		PersistenceType: config.PersistenceTypeBadger,
		DataPath:        t.TempDir(),
	}, l)
	require.NoError(t, err)
	require.NoError(t, store.HealthCheck())
	require.NoError(t, store.Close())

	_, err = newStore(&config.ServiceConfig{PersistenceType: "sqlite"}, l)
	assert.Error(t, err)
}

func TestParseServiceConfig(t *testing.T) {
	app := newApp()
	app.Writer = &bytes.Buffer{}
	app.ErrWriter = &bytes.Buffer{}

	var parsed *config.ServiceConfig
	for _, cmd := range app.Commands {
		if cmd.Name == "serve" {
			cmd.Action = func(c *cli.Context) error {
				parsed = parseServiceConfig(c)
				return parsed.Validate()
			}
		}
	}

	err := app.Run([]string{"raiden-msg", "--debug", "serve", "--chain-id", "5", "--port", "7000", "--persistence", "badger", "--data-path", "/tmp/msgs", "--require-signatures"})
	require.NoError(t, err)
	require.NotNil(t, parsed)
	assert.Equal(t, 7000, parsed.Port)
	assert.Equal(t, config.ChainId_EthereumGoerli, parsed.ChainID)
	assert.Equal(t, config.ChainName_EthereumGoerli, parsed.ChainName)
	assert.Equal(t, config.PersistenceTypeBadger, parsed.PersistenceType)
	assert.True(t, parsed.RequireSignatures)
	assert.True(t, parsed.Debug)
	assert.Equal(t, config.DefaultRateLimit, parsed.RateLimit)
	assert.Equal(t, config.DefaultRedisKeyPrefix, parsed.Redis.KeyPrefix)
}
