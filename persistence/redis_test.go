package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStoreWithClient(client)
	t.Cleanup(func() { store.Close() })
	return store, mr
}

func TestRedisStorePutGet(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "room:1", []byte(`{"id":"1"}`), 0))

	data, err := store.Get(ctx, "room:1")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"id":"1"}`), data)
}

func TestRedisStoreGetMissing(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Get(context.Background(), "room:nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStoreDelete(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "room:1", []byte("x"), 0))
	require.NoError(t, store.Delete(ctx, "room:1"))

	_, err := store.Get(ctx, "room:1")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting a missing key is not an error.
	assert.NoError(t, store.Delete(ctx, "room:1"))
}

func TestRedisStoreTTL(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "snapshot:1", []byte("x"), time.Minute))

	mr.FastForward(30 * time.Second)
	_, err := store.Get(ctx, "snapshot:1")
	assert.NoError(t, err)

	mr.FastForward(31 * time.Second)
	_, err = store.Get(ctx, "snapshot:1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStoreListByPrefix(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "room:1", []byte("a"), 0))
	require.NoError(t, store.Put(ctx, "room:2", []byte("b"), 0))
	require.NoError(t, store.Put(ctx, "player:1", []byte("c"), 0))

	entries, err := store.ListByPrefix(ctx, "room:")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Equal(t, []byte("a"), entries["room:1"])
	assert.Equal(t, []byte("b"), entries["room:2"])
}
