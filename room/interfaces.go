package room

import "github.com/wfunc/roomserver/network"

// Broadcaster defines the fanout surface a room needs. Defined here to
// break the import cycle between room and broadcast.
type Broadcaster interface {
	BroadcastToRoom(roomID string, env *network.Envelope, excludePlayerID string)
	SendToPlayer(playerID string, env *network.Envelope) error
	BroadcastToLobby(env *network.Envelope)
}
