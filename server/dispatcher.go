package server

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/wfunc/roomserver/broadcast"
	"github.com/wfunc/roomserver/config"
	"github.com/wfunc/roomserver/game"
	"github.com/wfunc/roomserver/logger"
	"github.com/wfunc/roomserver/monitor"
	"github.com/wfunc/roomserver/network"
	"github.com/wfunc/roomserver/room"
	"github.com/wfunc/roomserver/session"
)

// Dispatcher validates inbound envelopes and routes them to the room
// layer. Malformed or unknown messages get an error reply; the
// connection itself stays open.
type Dispatcher struct {
	rooms       *room.Manager
	sessions    *session.Manager
	broadcaster *broadcast.RoomBroadcaster
	monitor     *monitor.Monitor
	limits      config.LimitsConfig

	mutex    sync.Mutex
	limiters map[string]*limiterState
}

// limiterState tracks fixed-window message counts per session.
type limiterState struct {
	chatWindow time.Time
	chatCount  int
	drawWindow time.Time
	drawCount  int
}

func NewDispatcher(rooms *room.Manager, sessions *session.Manager, broadcaster *broadcast.RoomBroadcaster, mon *monitor.Monitor, limits config.LimitsConfig) *Dispatcher {
	return &Dispatcher{
		rooms:       rooms,
		sessions:    sessions,
		broadcaster: broadcaster,
		monitor:     mon,
		limits:      limits,
		limiters:    make(map[string]*limiterState),
	}
}

// Forget drops the rate-limit state of a closed session.
func (d *Dispatcher) Forget(sessionID string) {
	d.mutex.Lock()
	delete(d.limiters, sessionID)
	d.mutex.Unlock()
}

func (d *Dispatcher) Dispatch(sess *session.Session, env *network.Envelope) {
	switch env.Type {
	case network.TypeHeartbeat:
		sess.Touch()
	case network.TypeSubscribeLobby:
		d.handleSubscribeLobby(sess)
	case network.TypeCreateRoom:
		d.handleCreateRoom(sess, env)
	case network.TypeJoin:
		d.handleJoin(sess, env)
	case network.TypeLeaveRoom:
		d.handleLeave(sess)
	case network.TypeStartGame:
		d.handleStartGame(sess, env)
	case network.TypeGameAction:
		d.handleGameAction(sess, env)
	case network.TypeChat:
		d.handleChat(sess, env)
	default:
		logger.Log.Infof("Session %s sent unknown message type %q", sess.ID, env.Type)
		d.reject(sess, network.ReasonUnknownType, "unknown message type: "+env.Type)
	}
}

func (d *Dispatcher) reject(sess *session.Session, reason, message string) {
	d.monitor.IncActionsRejected(reason)
	sess.Send(network.NewErrorEnvelope(reason, message))
}

func (d *Dispatcher) handleSubscribeLobby(sess *session.Session) {
	d.sessions.SubscribeLobby(sess)
	sess.Send(network.NewEnvelope(network.TypeLobbyData, d.rooms.LobbyRooms()))
}

type createRoomData struct {
	Name       string `json:"name"`
	GameType   string `json:"gameType"`
	MaxPlayers int    `json:"maxPlayers"`
	IsPrivate  bool   `json:"isPrivate"`
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
}

func (d *Dispatcher) handleCreateRoom(sess *session.Session, env *network.Envelope) {
	var data createRoomData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		d.reject(sess, network.ReasonMalformedPayload, "create-room payload is not valid")
		return
	}
	if data.PlayerID == "" || strings.TrimSpace(data.PlayerName) == "" {
		d.reject(sess, network.ReasonMalformedPayload, "playerId and playerName are required")
		return
	}
	if _, roomID := sess.Binding(); roomID != "" {
		d.reject(sess, network.ReasonGameInProgress, "leave your current room first")
		return
	}

	r, err := d.rooms.CreateRoom(data.Name, data.GameType, data.MaxPlayers, data.IsPrivate)
	if err != nil {
		d.reject(sess, network.ReasonInvalidSettings, err.Error())
		return
	}
	r.HandleJoin(sess, data.PlayerID, strings.TrimSpace(data.PlayerName))
}

type joinData struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
}

func (d *Dispatcher) handleJoin(sess *session.Session, env *network.Envelope) {
	var data joinData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		d.reject(sess, network.ReasonMalformedPayload, "join payload is not valid")
		return
	}
	if env.RoomID == "" || data.PlayerID == "" || strings.TrimSpace(data.PlayerName) == "" {
		d.reject(sess, network.ReasonMalformedPayload, "roomId, playerId and playerName are required")
		return
	}
	// A session bound to another room must leave it first; rejoining the
	// same room passes through as the reconnect path.
	if _, boundRoom := sess.Binding(); boundRoom != "" && boundRoom != env.RoomID {
		d.reject(sess, network.ReasonGameInProgress, "leave your current room first")
		return
	}

	r, ok := d.rooms.GetRoom(env.RoomID)
	if !ok {
		d.reject(sess, network.ReasonRoomNotFound, "no such room: "+env.RoomID)
		return
	}
	r.HandleJoin(sess, data.PlayerID, strings.TrimSpace(data.PlayerName))
}

func (d *Dispatcher) handleLeave(sess *session.Session) {
	playerID, roomID := sess.Binding()
	if playerID == "" || roomID == "" {
		d.reject(sess, network.ReasonNotInRoom, "you are not in a room")
		return
	}
	if r, ok := d.rooms.GetRoom(roomID); ok {
		r.HandleLeave(playerID)
	}
	d.sessions.Unbind(sess)
}

func (d *Dispatcher) handleStartGame(sess *session.Session, env *network.Envelope) {
	playerID, roomID := sess.Binding()
	if playerID == "" || roomID == "" {
		d.reject(sess, network.ReasonNotInRoom, "you are not in a room")
		return
	}

	var settings game.Settings
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &settings); err != nil {
			d.reject(sess, network.ReasonMalformedPayload, "start-game settings are not valid")
			return
		}
	}

	r, ok := d.rooms.GetRoom(roomID)
	if !ok {
		d.reject(sess, network.ReasonRoomNotFound, "your room no longer exists")
		return
	}
	r.HandleStart(playerID, settings)
}

func (d *Dispatcher) handleGameAction(sess *session.Session, env *network.Envelope) {
	playerID, roomID := sess.Binding()
	if playerID == "" || roomID == "" {
		d.reject(sess, network.ReasonNotInRoom, "you are not in a room")
		return
	}

	action, err := game.DecodeAction(env.Data)
	if err != nil {
		d.reject(sess, network.ReasonMalformedPayload, err.Error())
		return
	}

	if _, isDraw := action.(game.DrawAction); isDraw && !d.allowDraw(sess.ID) {
		d.reject(sess, network.ReasonRateLimited, "too many draw commands")
		return
	}

	r, ok := d.rooms.GetRoom(roomID)
	if !ok {
		d.reject(sess, network.ReasonRoomNotFound, "your room no longer exists")
		return
	}
	r.HandleAction(playerID, action)
}

type chatData struct {
	Text string `json:"text"`
}

// handleChat routes chat as a guess action: the drawing engine scores
// it, the poker engine relays it as table chat, a forming room echoes it.
func (d *Dispatcher) handleChat(sess *session.Session, env *network.Envelope) {
	playerID, roomID := sess.Binding()
	if playerID == "" || roomID == "" {
		d.reject(sess, network.ReasonNotInRoom, "you are not in a room")
		return
	}

	var data chatData
	if err := json.Unmarshal(env.Data, &data); err != nil || strings.TrimSpace(data.Text) == "" {
		d.reject(sess, network.ReasonMalformedPayload, "chat text is required")
		return
	}
	if len(data.Text) > 512 {
		d.reject(sess, network.ReasonMalformedPayload, "chat text too long")
		return
	}
	if !d.allowChat(sess.ID) {
		d.reject(sess, network.ReasonRateLimited, "too many chat messages")
		return
	}

	r, ok := d.rooms.GetRoom(roomID)
	if !ok {
		d.reject(sess, network.ReasonRoomNotFound, "your room no longer exists")
		return
	}
	r.HandleAction(playerID, game.GuessAction{Text: data.Text})
}

func (d *Dispatcher) allowChat(sessionID string) bool {
	if d.limits.ChatPerMinute <= 0 {
		return true
	}
	d.mutex.Lock()
	defer d.mutex.Unlock()

	st := d.limiterLocked(sessionID)
	now := time.Now()
	if now.Sub(st.chatWindow) >= time.Minute {
		st.chatWindow = now
		st.chatCount = 0
	}
	if st.chatCount >= d.limits.ChatPerMinute {
		return false
	}
	st.chatCount++
	return true
}

func (d *Dispatcher) allowDraw(sessionID string) bool {
	if d.limits.DrawsPerSecond <= 0 {
		return true
	}
	d.mutex.Lock()
	defer d.mutex.Unlock()

	st := d.limiterLocked(sessionID)
	now := time.Now()
	if now.Sub(st.drawWindow) >= time.Second {
		st.drawWindow = now
		st.drawCount = 0
	}
	if st.drawCount >= d.limits.DrawsPerSecond {
		return false
	}
	st.drawCount++
	return true
}

func (d *Dispatcher) limiterLocked(sessionID string) *limiterState {
	st, ok := d.limiters[sessionID]
	if !ok {
		st = &limiterState{}
		d.limiters[sessionID] = st
	}
	return st
}
