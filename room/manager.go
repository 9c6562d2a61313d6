// room/manager.go
package room

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/wfunc/roomserver/game"
	"github.com/wfunc/roomserver/logger"
	"github.com/wfunc/roomserver/models"
)

// Manager owns the live room set. Creation and lookup take the manager
// mutex; everything inside a room goes through that room's own op loop.
type Manager struct {
	mutex sync.RWMutex
	rooms map[string]*Room
	deps  Deps
}

func NewManager(deps Deps) *Manager {
	m := &Manager{
		rooms: make(map[string]*Room),
		deps:  deps,
	}
	return m
}

// CreateRoom validates the request and spins up a new room goroutine.
func (m *Manager) CreateRoom(name, gameType string, maxPlayers int, isPrivate bool) (*Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("room name must not be empty")
	}
	if len(name) > 64 {
		return nil, fmt.Errorf("room name too long")
	}

	engine, err := game.ForType(gameType)
	if err != nil {
		return nil, err
	}
	if maxPlayers == 0 {
		maxPlayers = engine.MaxPlayers()
	}
	if maxPlayers < engine.MinPlayers() || maxPlayers > engine.MaxPlayers() {
		return nil, fmt.Errorf("%s rooms hold %d to %d players",
			gameType, engine.MinPlayers(), engine.MaxPlayers())
	}

	deps := m.deps
	deps.OnClosed = m.removeRoom

	id := uuid.New().String()
	r := NewRoom(id, name, gameType, maxPlayers, isPrivate, deps)

	m.mutex.Lock()
	m.rooms[id] = r
	m.mutex.Unlock()

	logger.Log.Infof("Room %s created: %q type=%s max=%d private=%v",
		id, name, gameType, maxPlayers, isPrivate)
	return r, nil
}

func (m *Manager) GetRoom(roomID string) (*Room, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	r, ok := m.rooms[roomID]
	return r, ok
}

func (m *Manager) removeRoom(roomID string) {
	m.mutex.Lock()
	r, ok := m.rooms[roomID]
	delete(m.rooms, roomID)
	m.mutex.Unlock()

	if ok {
		r.Shutdown()
		logger.Log.Infof("Room %s removed", roomID)
	}
}

// ListRooms returns listing info for every live room. Private rooms are
// included; lobby callers filter them out via LobbyRooms.
func (m *Manager) ListRooms() []Info {
	m.mutex.RLock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mutex.RUnlock()

	infos := make([]Info, 0, len(rooms))
	for _, r := range rooms {
		infos = append(infos, r.Info())
	}
	return infos
}

// LobbyRooms is the public listing sent on subscribe-lobby.
func (m *Manager) LobbyRooms() []models.LobbyRoom {
	var out []models.LobbyRoom
	for _, info := range m.ListRooms() {
		if info.IsPrivate || info.Phase == PhaseClosing.String() || info.Phase == PhaseDeleted.String() {
			continue
		}
		out = append(out, models.LobbyRoom{
			ID:         info.ID,
			Name:       info.Name,
			GameType:   info.GameType,
			Players:    info.Players,
			MaxPlayers: info.MaxPlayers,
		})
	}
	return out
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.rooms)
}

// Shutdown stops every room loop. Used on server exit.
func (m *Manager) Shutdown() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	for id, r := range m.rooms {
		r.Shutdown()
		delete(m.rooms, id)
	}
}
