// models/models.go
package models

import (
	"encoding/json"
	"time"
)

// RoomRecord is the durable shape of a room in the key/value store.
type RoomRecord struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	HostID     string    `json:"hostId"`
	MaxPlayers int       `json:"maxPlayers"`
	GameType   string    `json:"gameType"`
	IsPrivate  bool      `json:"isPrivate"`
	IsActive   bool      `json:"isActive"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// PlayerRecord is the durable shape of a seated player.
type PlayerRecord struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	RoomID   string    `json:"roomId"`
	IsHost   bool      `json:"isHost"`
	JoinedAt time.Time `json:"joinedAt"`
}

// RoomSnapshot is a best-effort resume aid for an active session. The
// in-memory state is authoritative; this only needs to be fresh enough
// to rebuild a room after a restart.
type RoomSnapshot struct {
	RoomID    string          `json:"roomId"`
	GameType  string          `json:"gameType"`
	Phase     string          `json:"phase"`
	State     json.RawMessage `json:"state"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// LobbyRoom is the listing view of a public room sent to lobby subscribers.
type LobbyRoom struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	GameType   string `json:"gameType"`
	Players    int    `json:"players"`
	MaxPlayers int    `json:"maxPlayers"`
}
