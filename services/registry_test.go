package services

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/roomserver/models"
	"github.com/wfunc/roomserver/persistence"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := persistence.NewRedisStoreWithClient(client)
	t.Cleanup(func() { store.Close() })
	return NewRegistry(store)
}

func TestRoomRecordRoundTrip(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	record := &models.RoomRecord{
		ID:         "room-1",
		Name:       "Friday Night",
		HostID:     "p1",
		MaxPlayers: 6,
		GameType:   "poker",
		IsActive:   true,
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, reg.SaveRoom(ctx, record))

	loaded, err := reg.LoadRoom(ctx, "room-1")
	require.NoError(t, err)
	assert.Equal(t, "Friday Night", loaded.Name)
	assert.Equal(t, "p1", loaded.HostID)
	assert.False(t, loaded.UpdatedAt.IsZero())

	require.NoError(t, reg.DeleteRoom(ctx, "room-1"))
	_, err = reg.LoadRoom(ctx, "room-1")
	assert.True(t, IsNotFound(err))
}

func TestListActiveRoomsFiltersPrivateAndInactive(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, reg.SaveRoom(ctx, &models.RoomRecord{ID: "a", IsActive: true}))
	require.NoError(t, reg.SaveRoom(ctx, &models.RoomRecord{ID: "b", IsActive: true, IsPrivate: true}))
	require.NoError(t, reg.SaveRoom(ctx, &models.RoomRecord{ID: "c", IsActive: false}))

	rooms, err := reg.ListActiveRooms(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, "a", rooms[0].ID)
}

func TestPlayerRecordRoundTrip(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	record := &models.PlayerRecord{
		ID:       "p1",
		Name:     "alice",
		RoomID:   "room-1",
		IsHost:   true,
		JoinedAt: time.Now().UTC(),
	}
	require.NoError(t, reg.SavePlayer(ctx, record))

	loaded, err := reg.LoadPlayer(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "alice", loaded.Name)
	assert.True(t, loaded.IsHost)

	require.NoError(t, reg.DeletePlayer(ctx, "p1"))
	_, err = reg.LoadPlayer(ctx, "p1")
	assert.True(t, IsNotFound(err))
}

func TestSnapshotRoundTrip(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	snapshot := &models.RoomSnapshot{
		RoomID:   "room-1",
		GameType: "drawing",
		Phase:    "drawing",
		State:    []byte(`{"round":2}`),
	}
	require.NoError(t, reg.SaveSnapshot(ctx, snapshot))

	loaded, err := reg.LoadSnapshot(ctx, "room-1")
	require.NoError(t, err)
	assert.Equal(t, "drawing", loaded.GameType)
	assert.JSONEq(t, `{"round":2}`, string(loaded.State))

	require.NoError(t, reg.DeleteSnapshot(ctx, "room-1"))
	_, err = reg.LoadSnapshot(ctx, "room-1")
	assert.True(t, IsNotFound(err))
}
