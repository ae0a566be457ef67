package storage

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a real server only when REDIS_TEST_ADDR is set.
func TestRedisStatusStore(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	ctx := context.Background()

	store, err := NewRedisStatusStore(ctx, addr, os.Getenv("REDIS_TEST_PASSWORD"), 0)
	require.NoError(t, err)
	defer func() {
		_ = store.Close()
	}()

	collection := "dr_test_" + uuid.NewString()
	docID := "uploads/" + collection + "/doc.pdf"

	require.NoError(t, store.Save(ctx, &IngestStatus{DocumentID: docID, Collection: collection, State: StateQueued}))
	require.NoError(t, store.Save(ctx, &IngestStatus{DocumentID: docID, Collection: collection, State: StateDone, Chunks: 3}))

	got, err := store.Get(ctx, docID)
	require.NoError(t, err)
	assert.Equal(t, StateDone, got.State)
	assert.Equal(t, 3, got.Chunks)

	list, err := store.ListByCollection(ctx, collection)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, docID, list[0].DocumentID)

	_, err = store.Get(ctx, "missing-"+uuid.NewString())
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestNewRedisStatusStore_Unreachable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRedisStatusStore(ctx, "127.0.0.1:1", "", 0)
	assert.Error(t, err)
}
