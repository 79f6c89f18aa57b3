// Package storetest holds the behaviour every IMessageStore backend must share.
package storetest

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/raiden-network/raiden-libs-go/pkg/messages"
	"github.com/raiden-network/raiden-libs-go/pkg/persistence"
	"github.com/raiden-network/raiden-libs-go/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) persistence.IMessageStore

func record(t *testing.T, msg messages.Message, receivedAt int64) *persistence.StoredMessage {
	t.Helper()
	rec, err := persistence.NewStoredMessage(msg, time.Unix(0, receivedAt))
	require.NoError(t, err)
	return rec
}

// Run executes the shared suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("SaveAndLoad", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		msg := testutil.CreateTestFeeInfo(t, 1, 1)
		rec := record(t, msg, 100)
		require.NoError(t, store.SaveMessage(rec))

		loaded, err := store.LoadMessage(rec.Key)
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, rec.Key, loaded.Key)
		assert.Equal(t, rec.Type, loaded.Type)
		assert.Equal(t, "1", loaded.ChainID)
		assert.Equal(t, int64(100), loaded.ReceivedAt)
		assert.JSONEq(t, string(rec.Data), string(loaded.Data))

		decoded, err := loaded.Message()
		require.NoError(t, err)
		assert.Equal(t, messages.Message(msg), decoded)
	})

	t.Run("LoadNotFound", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		key, err := persistence.MessageKey(testutil.CreateTestFeeInfo(t, 1, 999))
		require.NoError(t, err)
		loaded, err := store.LoadMessage(key)
		require.NoError(t, err)
		assert.Nil(t, loaded)
	})

	t.Run("SaveInvalid", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		err := store.SaveMessage(nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "nil StoredMessage")

		rec := record(t, testutil.CreateTestFeeInfo(t, 1, 1), 1)
		rec.Data = []byte(`{"message_type":"FeeInfo"}`)
		assert.Error(t, store.SaveMessage(rec))
	})

	t.Run("SaveIsIdempotent", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		msg := testutil.CreateTestFeeInfo(t, 1, 2)
		require.NoError(t, store.SaveMessage(record(t, msg, 10)))
		require.NoError(t, store.SaveMessage(record(t, msg, 20)))

		all, err := store.ListMessages("")
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, int64(10), all[0].ReceivedAt)
	})

	t.Run("ListMessages", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		for i := 0; i < 5; i++ {
			// stored out of order on purpose
			require.NoError(t, store.SaveMessage(record(t, testutil.CreateTestFeeInfo(t, 1, uint64(i)), int64(50-i))))
		}
		for i := 0; i < 2; i++ {
			require.NoError(t, store.SaveMessage(record(t, testutil.CreateTestBalanceProof(t, 1, uint64(i)), int64(i))))
		}

		feeInfos, err := store.ListMessages(messages.MessageTypeFeeInfo)
		require.NoError(t, err)
		require.Len(t, feeInfos, 5)
		for i := 1; i < len(feeInfos); i++ {
			assert.Less(t, feeInfos[i-1].ReceivedAt, feeInfos[i].ReceivedAt)
		}

		proofs, err := store.ListMessages(messages.MessageTypeBalanceProof)
		require.NoError(t, err)
		assert.Len(t, proofs, 2)

		all, err := store.ListMessages("")
		require.NoError(t, err)
		assert.Len(t, all, 7)

		none, err := store.ListMessages(messages.MessageTypePathsReply)
		require.NoError(t, err)
		assert.NotNil(t, none)
		assert.Empty(t, none)
	})

	t.Run("Delete", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		rec := record(t, testutil.CreateTestFeeInfo(t, 1, 3), 1)
		require.NoError(t, store.SaveMessage(rec))
		require.NoError(t, store.DeleteMessage(rec.Key))

		loaded, err := store.LoadMessage(rec.Key)
		require.NoError(t, err)
		assert.Nil(t, loaded)

		all, err := store.ListMessages(messages.MessageTypeFeeInfo)
		require.NoError(t, err)
		assert.Empty(t, all)

		require.NoError(t, store.DeleteMessage(rec.Key))
	})

	t.Run("ServiceState", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		state, err := store.LoadServiceState()
		require.NoError(t, err)
		assert.Nil(t, state)

		require.Error(t, store.SaveServiceState(nil))
		require.NoError(t, store.SaveServiceState(&persistence.ServiceState{ChainID: "1", StartTime: 42}))
		require.NoError(t, store.SaveServiceState(&persistence.ServiceState{ChainID: "1", StartTime: 43}))

		state, err = store.LoadServiceState()
		require.NoError(t, err)
		require.NotNil(t, state)
		assert.Equal(t, "1", state.ChainID)
		assert.Equal(t, int64(43), state.StartTime)
	})

	t.Run("ConcurrentSaves", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		const n = 20
		recs := make([]*persistence.StoredMessage, n)
		for i := range recs {
			recs[i] = record(t, testutil.CreateTestFeeInfo(t, 1, uint64(1000+i)), int64(i))
		}

		var wg sync.WaitGroup
		errs := make(chan error, n)
		for _, rec := range recs {
			wg.Add(1)
			go func(rec *persistence.StoredMessage) {
				defer wg.Done()
				if err := store.SaveMessage(rec); err != nil {
					errs <- fmt.Errorf("save %s: %w", rec.Key, err)
				}
			}(rec)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Error(err)
		}

		all, err := store.ListMessages(messages.MessageTypeFeeInfo)
		require.NoError(t, err)
		assert.Len(t, all, n)
	})

	t.Run("Closed", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.HealthCheck())
		require.NoError(t, store.Close())
		require.NoError(t, store.Close())

		rec := record(t, testutil.CreateTestFeeInfo(t, 1, 4), 1)
		assert.ErrorIs(t, store.SaveMessage(rec), persistence.ErrClosed)
		_, err := store.LoadMessage(rec.Key)
		assert.ErrorIs(t, err, persistence.ErrClosed)
		_, err = store.ListMessages("")
		assert.ErrorIs(t, err, persistence.ErrClosed)
		assert.ErrorIs(t, store.DeleteMessage(rec.Key), persistence.ErrClosed)
		assert.ErrorIs(t, store.SaveServiceState(&persistence.ServiceState{}), persistence.ErrClosed)
		_, err = store.LoadServiceState()
		assert.ErrorIs(t, err, persistence.ErrClosed)
		assert.ErrorIs(t, store.HealthCheck(), persistence.ErrClosed)
	})
}
