package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/raiden-network/raiden-libs-go/pkg/config"
	"github.com/raiden-network/raiden-libs-go/pkg/messages"
	"github.com/raiden-network/raiden-libs-go/pkg/persistence"
	"github.com/raiden-network/raiden-libs-go/pkg/persistence/memory"
	"github.com/raiden-network/raiden-libs-go/pkg/server"
	"github.com/raiden-network/raiden-libs-go/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var fastRetry = RetryConfig{
	MaxAttempts:     3,
	InitialBackoff:  time.Millisecond,
	MaxBackoff:      5 * time.Millisecond,
	BackoffMultiple: 2.0,
}

func newTestService(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := &config.ServiceConfig{
		ChainID:         config.ChainId_EthereumMainnet,
		PersistenceType: config.PersistenceTypeMemory,
	}
	store := memory.NewMemoryPersistence(zap.NewNop())
	srv := httptest.NewServer(server.NewServer(cfg, store, zap.NewNop()).GetHandler())
	t.Cleanup(func() {
		srv.Close()
		_ = store.Close()
	})
	return srv
}

func TestClient_RoundTrip(t *testing.T) {
	srv := newTestService(t)
	client := NewClientWithRetry(srv.URL+"/", fastRetry, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, client.Health(ctx))

	signer := testutil.CreateTestSigner(t)
	msg := testutil.CreateTestFeeInfo(t, 1, 1)
	testutil.SignMessage(t, signer, msg)

	resp, err := client.SendMessage(ctx, msg)
	require.NoError(t, err)
	assert.Equal(t, messages.MessageTypeFeeInfo, resp.Type)
	assert.Equal(t, signer.GetAddress().Hex(), resp.Signers["signature"])

	key, err := persistence.MessageKey(msg)
	require.NoError(t, err)
	assert.Equal(t, key, resp.Key)

	fetched, err := client.FetchMessage(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, messages.Message(msg), fetched)

	records, err := client.ListMessages(ctx, messages.MessageTypeFeeInfo)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, key, records[0].Key)

	records, err = client.ListMessages(ctx, "")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestClient_Rejections(t *testing.T) {
	srv := newTestService(t)
	client := NewClientWithRetry(srv.URL, fastRetry, zap.NewNop())
	ctx := context.Background()

	missing, err := persistence.MessageKey(testutil.CreateTestFeeInfo(t, 1, 9))
	require.NoError(t, err)
	_, err = client.FetchMessage(ctx, missing)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = client.SendMessage(ctx, testutil.CreateTestFeeInfo(t, 5, 1))
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	assert.Contains(t, statusErr.Message, "chain id")
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	client := NewClientWithRetry(srv.URL, fastRetry, zap.NewNop())
	require.NoError(t, client.Health(context.Background()))
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_GivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClientWithRetry(srv.URL, fastRetry, zap.NewNop())
	err := client.Health(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad"}`))
	}))
	defer srv.Close()

	client := NewClientWithRetry(srv.URL, fastRetry, zap.NewNop())
	err := client.Health(context.Background())
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, "bad", statusErr.Message)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClientWithRetry(srv.URL, RetryConfig{
		MaxAttempts:     10,
		InitialBackoff:  time.Hour,
		MaxBackoff:      time.Hour,
		BackoffMultiple: 1,
	}, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := client.Health(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewClient_Defaults(t *testing.T) {
	client := NewClient("http://localhost:6000/", zap.NewNop())
	assert.Equal(t, "http://localhost:6000", client.baseURL)
	assert.Equal(t, DefaultRetryConfig, client.retryConfig)

	single := NewClientWithRetry("http://localhost:6000", RetryConfig{}, zap.NewNop())
	assert.Equal(t, 1, single.retryConfig.MaxAttempts)
}
