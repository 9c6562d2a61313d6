// broadcast/broadcast.go
package broadcast

import (
	"errors"

	"github.com/wfunc/roomserver/logger"
	"github.com/wfunc/roomserver/network"
	"github.com/wfunc/roomserver/session"
)

var ErrPlayerNotConnected = errors.New("player has no live connection")

// Broadcaster fans envelopes out to room members, lobby subscribers, or a
// single player.
type Broadcaster interface {
	BroadcastToRoom(roomID string, env *network.Envelope, excludePlayerID string)
	SendToPlayer(playerID string, env *network.Envelope) error
	BroadcastToLobby(env *network.Envelope)
}

// RoomBroadcaster delivers through the connection registry. A failed send
// to one connection is treated as an implicit disconnect of that
// connection only; the fanout to the rest always completes.
type RoomBroadcaster struct {
	sessionManager *session.Manager
	onSendFailure  func(playerID, roomID string)
	onBroadcast    func()
}

func NewRoomBroadcaster(sessionManager *session.Manager, onSendFailure func(playerID, roomID string)) *RoomBroadcaster {
	return &RoomBroadcaster{
		sessionManager: sessionManager,
		onSendFailure:  onSendFailure,
	}
}

// SetBroadcastHook installs a callback fired once per room fanout, used
// for the broadcast counter.
func (b *RoomBroadcaster) SetBroadcastHook(hook func()) {
	b.onBroadcast = hook
}

func (b *RoomBroadcaster) BroadcastToRoom(roomID string, env *network.Envelope, excludePlayerID string) {
	if b.onBroadcast != nil {
		b.onBroadcast()
	}
	sessions := b.sessionManager.SessionsInRoom(roomID)

	for _, s := range sessions {
		playerID, _ := s.Binding()
		if excludePlayerID != "" && playerID == excludePlayerID {
			continue
		}
		if err := s.Send(env); err != nil {
			logger.Log.Warnf("Broadcast send to player %s in room %s failed: %v", playerID, roomID, err)
			b.dropSession(s)
		}
	}
}

func (b *RoomBroadcaster) SendToPlayer(playerID string, env *network.Envelope) error {
	sess, ok := b.sessionManager.GetByPlayer(playerID)
	if !ok {
		return ErrPlayerNotConnected
	}
	if err := sess.Send(env); err != nil {
		b.dropSession(sess)
		return err
	}
	return nil
}

func (b *RoomBroadcaster) BroadcastToLobby(env *network.Envelope) {
	for _, s := range b.sessionManager.LobbySessions() {
		if err := s.Send(env); err != nil {
			logger.Log.Warnf("Lobby send to session %s failed: %v", s.ID, err)
			b.sessionManager.Remove(s.ID)
			s.Close()
		}
	}
}

func (b *RoomBroadcaster) dropSession(s *session.Session) {
	playerID, roomID := b.sessionManager.Unbind(s)
	s.Close()
	if b.onSendFailure != nil && playerID != "" {
		b.onSendFailure(playerID, roomID)
	}
}
