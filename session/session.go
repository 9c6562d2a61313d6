// session/session.go
package session

import (
	"sync"
	"time"

	"github.com/wfunc/roomserver/network"
)

// Session is one live connection. A session with no player binding may
// only subscribe to the lobby or join a room.
type Session struct {
	ID         string
	Conn       network.Connection
	PlayerID   string
	RoomID     string
	Lobby      bool
	CreatedAt  time.Time
	LastActive time.Time
	mutex      sync.RWMutex
}

func NewSession(id string, conn network.Connection) *Session {
	now := time.Now()
	return &Session{
		ID:         id,
		Conn:       conn,
		CreatedAt:  now,
		LastActive: now,
	}
}

func (s *Session) Send(env *network.Envelope) error {
	s.Touch()
	return s.Conn.SendEnvelope(env)
}

func (s *Session) Touch() {
	s.mutex.Lock()
	s.LastActive = time.Now()
	s.mutex.Unlock()
}

func (s *Session) GetID() string {
	return s.ID
}

func (s *Session) Binding() (playerID, roomID string) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.PlayerID, s.RoomID
}

func (s *Session) Close() error {
	return s.Conn.Close()
}

// Manager is the connection registry: it owns the mapping from room to
// live sessions and from player to its single current session. It holds
// no game semantics.
type Manager struct {
	sessions map[string]*Session // sessionID -> session
	byPlayer map[string]string   // playerID -> sessionID
	byRoom   map[string]map[string]*Session
	mutex    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		byPlayer: make(map[string]string),
		byRoom:   make(map[string]map[string]*Session),
	}
}

func (m *Manager) Add(session *Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[session.ID] = session
}

func (m *Manager) Remove(sessionID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.removeLocked(sessionID)
}

func (m *Manager) removeLocked(sessionID string) {
	sess, exists := m.sessions[sessionID]
	if !exists {
		return
	}
	if sess.PlayerID != "" && m.byPlayer[sess.PlayerID] == sessionID {
		delete(m.byPlayer, sess.PlayerID)
	}
	if sess.RoomID != "" {
		if roomSet, ok := m.byRoom[sess.RoomID]; ok {
			delete(roomSet, sessionID)
			if len(roomSet) == 0 {
				delete(m.byRoom, sess.RoomID)
			}
		}
	}
	delete(m.sessions, sessionID)
}

func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	session, exists := m.sessions[sessionID]
	return session, exists
}

// Bind registers the session under (playerID, roomID). If the player
// already has a different bound session, that older connection is closed
// and dropped so a stale socket never receives duplicate delivery.
// Binding the same session twice is a no-op.
func (m *Manager) Bind(sess *Session, playerID, roomID string) {
	m.mutex.Lock()

	var superseded *Session
	if oldID, ok := m.byPlayer[playerID]; ok && oldID != sess.ID {
		superseded = m.sessions[oldID]
		m.removeLocked(oldID)
	}

	sess.mutex.Lock()
	prevPlayer, prevRoom := sess.PlayerID, sess.RoomID
	sess.PlayerID = playerID
	sess.RoomID = roomID
	sess.Lobby = false
	sess.mutex.Unlock()

	// Rebinding to a different room must not leave the session in the
	// old room's fanout set; a player belongs to one room at a time.
	if prevRoom != "" && prevRoom != roomID {
		if roomSet, ok := m.byRoom[prevRoom]; ok {
			delete(roomSet, sess.ID)
			if len(roomSet) == 0 {
				delete(m.byRoom, prevRoom)
			}
		}
	}
	if prevPlayer != "" && prevPlayer != playerID && m.byPlayer[prevPlayer] == sess.ID {
		delete(m.byPlayer, prevPlayer)
	}

	m.sessions[sess.ID] = sess
	m.byPlayer[playerID] = sess.ID
	if _, ok := m.byRoom[roomID]; !ok {
		m.byRoom[roomID] = make(map[string]*Session)
	}
	m.byRoom[roomID][sess.ID] = sess

	m.mutex.Unlock()

	// Close outside the lock: Close may block on the peer.
	if superseded != nil {
		superseded.Close()
	}
}

// Unbind removes the session from its room set and clears its player
// binding. It returns the binding that was in effect so the caller can
// start disconnect handling for that player.
func (m *Manager) Unbind(sess *Session) (playerID, roomID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	playerID, roomID = sess.PlayerID, sess.RoomID
	m.removeLocked(sess.ID)

	sess.mutex.Lock()
	sess.PlayerID = ""
	sess.RoomID = ""
	sess.mutex.Unlock()
	return playerID, roomID
}

func (m *Manager) GetByPlayer(playerID string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	sessID, ok := m.byPlayer[playerID]
	if !ok {
		return nil, false
	}
	sess, ok := m.sessions[sessID]
	return sess, ok
}

// SessionsInRoom returns a snapshot slice of the room's live sessions.
func (m *Manager) SessionsInRoom(roomID string) []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	roomSet := m.byRoom[roomID]
	sessions := make([]*Session, 0, len(roomSet))
	for _, s := range roomSet {
		sessions = append(sessions, s)
	}
	return sessions
}

// SubscribeLobby marks an unbound session as a lobby listener.
func (m *Manager) SubscribeLobby(sess *Session) {
	sess.mutex.Lock()
	sess.Lobby = true
	sess.mutex.Unlock()
}

// LobbySessions returns sessions that subscribed to the lobby and have
// not joined a room.
func (m *Manager) LobbySessions() []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var result []*Session
	for _, s := range m.sessions {
		s.mutex.RLock()
		lobby := s.Lobby && s.RoomID == ""
		s.mutex.RUnlock()
		if lobby {
			result = append(result, s)
		}
	}
	return result
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}
