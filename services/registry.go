package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/wfunc/roomserver/models"
	"github.com/wfunc/roomserver/persistence"
)

const (
	roomKeyPrefix     = "room:"
	playerKeyPrefix   = "player:"
	snapshotKeyPrefix = "snapshot:"

	// Snapshots only need to outlive a crash/restart cycle.
	snapshotTTL = 2 * time.Hour
)

// Registry is the durable catalog of rooms and players. The live room
// state is owned by the room package; the registry is a best-effort
// durability and lobby-listing aid on top of the key/value store.
type Registry struct {
	store persistence.Store
}

func NewRegistry(store persistence.Store) *Registry {
	return &Registry{store: store}
}

func (r *Registry) SaveRoom(ctx context.Context, record *models.RoomRecord) error {
	record.UpdatedAt = time.Now()
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return r.store.Put(ctx, roomKeyPrefix+record.ID, data, 0)
}

func (r *Registry) LoadRoom(ctx context.Context, roomID string) (*models.RoomRecord, error) {
	data, err := r.store.Get(ctx, roomKeyPrefix+roomID)
	if err != nil {
		return nil, err
	}
	var record models.RoomRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *Registry) DeleteRoom(ctx context.Context, roomID string) error {
	return r.store.Delete(ctx, roomKeyPrefix+roomID)
}

// ListActiveRooms returns every active, public room record. Inactive and
// private rooms never show up in lobby listings.
func (r *Registry) ListActiveRooms(ctx context.Context) ([]*models.RoomRecord, error) {
	entries, err := r.store.ListByPrefix(ctx, roomKeyPrefix)
	if err != nil {
		return nil, err
	}

	rooms := make([]*models.RoomRecord, 0, len(entries))
	for _, data := range entries {
		var record models.RoomRecord
		if err := json.Unmarshal(data, &record); err != nil {
			continue // skip corrupt entries rather than failing the listing
		}
		if !record.IsActive || record.IsPrivate {
			continue
		}
		rooms = append(rooms, &record)
	}
	return rooms, nil
}

func (r *Registry) SavePlayer(ctx context.Context, record *models.PlayerRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return r.store.Put(ctx, playerKeyPrefix+record.ID, data, 0)
}

func (r *Registry) LoadPlayer(ctx context.Context, playerID string) (*models.PlayerRecord, error) {
	data, err := r.store.Get(ctx, playerKeyPrefix+playerID)
	if err != nil {
		return nil, err
	}
	var record models.PlayerRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *Registry) DeletePlayer(ctx context.Context, playerID string) error {
	return r.store.Delete(ctx, playerKeyPrefix+playerID)
}

func (r *Registry) SaveSnapshot(ctx context.Context, snapshot *models.RoomSnapshot) error {
	snapshot.UpdatedAt = time.Now()
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return r.store.Put(ctx, snapshotKeyPrefix+snapshot.RoomID, data, snapshotTTL)
}

func (r *Registry) LoadSnapshot(ctx context.Context, roomID string) (*models.RoomSnapshot, error) {
	data, err := r.store.Get(ctx, snapshotKeyPrefix+roomID)
	if err != nil {
		return nil, err
	}
	var snapshot models.RoomSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (r *Registry) DeleteSnapshot(ctx context.Context, roomID string) error {
	return r.store.Delete(ctx, snapshotKeyPrefix+roomID)
}

// IsNotFound reports whether err is the store's missing-record error.
func IsNotFound(err error) bool {
	return errors.Is(err, persistence.ErrNotFound)
}
