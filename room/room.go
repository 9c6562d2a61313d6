// room/room.go
package room

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wfunc/roomserver/game"
	"github.com/wfunc/roomserver/logger"
	"github.com/wfunc/roomserver/models"
	"github.com/wfunc/roomserver/network"
	"github.com/wfunc/roomserver/services"
	"github.com/wfunc/roomserver/session"
	"github.com/wfunc/roomserver/timer"
)

// Phase is the room lifecycle, separate from the game's own phases.
type Phase int

const (
	PhaseForming Phase = iota
	PhaseActive
	PhaseClosing
	PhaseDeleted
)

func (p Phase) String() string {
	switch p {
	case PhaseForming:
		return "forming"
	case PhaseActive:
		return "active"
	case PhaseClosing:
		return "closing"
	default:
		return "deleted"
	}
}

type PlayerStatus string

const (
	StatusConnected    PlayerStatus = "connected"
	StatusDisconnected PlayerStatus = "disconnected"
)

// Player is one seat in the room.
type Player struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	IsHost   bool         `json:"isHost"`
	JoinedAt time.Time    `json:"joinedAt"`
	Status   PlayerStatus `json:"status"`
}

// Deps are the services a room needs, injected so tests can construct
// isolated rooms without process-wide state.
type Deps struct {
	Broadcaster Broadcaster
	Sessions    *session.Manager
	Registry    *services.Registry
	Timers      *timer.TimerManager
	GraceWindow time.Duration
	BatchWindow time.Duration
	BatchMax    int
	OnClosed    func(roomID string)
	// Now is the room clock; nil means time.Now. Tests pin it.
	Now func() time.Time
}

// Room serializes every mutation of its player set and game state
// through a single op channel drained by one goroutine. Different rooms
// run fully in parallel; within one room, handlers are strictly FIFO.
type Room struct {
	ID         string
	Name       string
	GameType   string
	MaxPlayers int
	IsPrivate  bool
	CreatedAt  time.Time

	deps    Deps
	phase   Phase
	players map[string]*Player
	engine  game.Engine
	state   game.State

	ops       chan func()
	closed    chan struct{}
	closeOnce sync.Once

	graceTimers  map[string]int64
	roundTimerID int64
	scheduledSeq int64
	batch        *drawBatcher
	batchTimerID int64
}

func NewRoom(id, name, gameType string, maxPlayers int, isPrivate bool, deps Deps) *Room {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.GraceWindow <= 0 {
		deps.GraceWindow = 30 * time.Second
	}
	if deps.BatchWindow <= 0 {
		deps.BatchWindow = 50 * time.Millisecond
	}
	if deps.BatchMax <= 0 {
		deps.BatchMax = 64
	}

	r := &Room{
		ID:          id,
		Name:        name,
		GameType:    gameType,
		MaxPlayers:  maxPlayers,
		IsPrivate:   isPrivate,
		CreatedAt:   deps.Now(),
		deps:        deps,
		phase:       PhaseForming,
		players:     make(map[string]*Player),
		ops:         make(chan func(), 64),
		closed:      make(chan struct{}),
		graceTimers: make(map[string]int64),
		batch:       newDrawBatcher(deps.BatchWindow, deps.BatchMax, deps.Now),
	}
	go r.loop()
	return r
}

func (r *Room) loop() {
	for {
		select {
		case op := <-r.ops:
			op()
		case <-r.closed:
			return
		}
	}
}

// post enqueues an op; it reports false once the room is shut down.
func (r *Room) post(op func()) bool {
	select {
	case <-r.closed:
		return false
	case r.ops <- op:
		return true
	}
}

// Shutdown stops the room goroutine. Manager calls this on removal.
func (r *Room) Shutdown() {
	r.closeOnce.Do(func() {
		close(r.closed)
	})
}

// Info is the synchronous listing view used by the lobby and admin RPC.
type Info struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	GameType   string `json:"gameType"`
	Phase      string `json:"phase"`
	Players    int    `json:"players"`
	MaxPlayers int    `json:"maxPlayers"`
	IsPrivate  bool   `json:"isPrivate"`
}

func (r *Room) Info() Info {
	reply := make(chan Info, 1)
	ok := r.post(func() {
		reply <- Info{
			ID: r.ID, Name: r.Name, GameType: r.GameType,
			Phase: r.phase.String(), Players: len(r.players),
			MaxPlayers: r.MaxPlayers, IsPrivate: r.IsPrivate,
		}
	})
	if !ok {
		return Info{ID: r.ID, Name: r.Name, GameType: r.GameType, Phase: PhaseDeleted.String()}
	}
	return <-reply
}

// --- handlers (each posts one serialized op) ---

// HandleJoin seats a new player or resumes a known one. The personalized
// room-state snapshot goes to the joining connection only.
func (r *Room) HandleJoin(sess *session.Session, playerID, name string) {
	ok := r.post(func() { r.joinLocked(sess, playerID, name) })
	if !ok {
		sess.Send(network.NewErrorEnvelope(network.ReasonRoomClosed, "the room no longer exists"))
	}
}

func (r *Room) HandleLeave(playerID string) {
	r.post(func() { r.leaveLocked(playerID) })
}

// HandleDisconnect is invoked by the server when a player's last
// connection closes. The seat and game state are preserved untouched
// until the grace window expires.
func (r *Room) HandleDisconnect(playerID string) {
	r.post(func() { r.disconnectLocked(playerID) })
}

func (r *Room) HandleAction(playerID string, action game.Action) {
	r.post(func() { r.actionLocked(playerID, action) })
}

func (r *Room) HandleStart(playerID string, settings game.Settings) {
	r.post(func() { r.startLocked(playerID, settings) })
}

// --- join / reconnect ---

func (r *Room) joinLocked(sess *session.Session, playerID, name string) {
	if r.phase == PhaseClosing || r.phase == PhaseDeleted {
		sess.Send(network.NewErrorEnvelope(network.ReasonRoomClosed, "the room is closing"))
		return
	}

	if p, exists := r.players[playerID]; exists {
		r.rejoinLocked(sess, p)
		return
	}

	if len(r.players) >= r.MaxPlayers {
		sess.Send(network.NewErrorEnvelope(network.ReasonRoomFull, "the room is full"))
		return
	}
	for _, p := range r.players {
		if strings.EqualFold(p.Name, name) {
			sess.Send(network.NewErrorEnvelope(network.ReasonDuplicateName, "that name is already taken"))
			return
		}
	}

	p := &Player{
		ID:       playerID,
		Name:     name,
		JoinedAt: r.deps.Now(),
		Status:   StatusConnected,
	}
	if r.hostLocked() == nil {
		p.IsHost = true
	}
	r.players[playerID] = p

	r.deps.Sessions.Bind(sess, playerID, r.ID)

	joined := network.NewEnvelope(network.TypePlayerJoined, p)
	joined.RoomID = r.ID
	r.deps.Broadcaster.BroadcastToRoom(r.ID, joined, playerID)

	sess.Send(r.roomStateLocked(playerID))

	r.persistMembershipLocked(p)
	r.notifyLobbyLocked()
	r.checkHostInvariantLocked()
}

// rejoinLocked covers both reconnection within the grace window and an
// idempotent duplicate join: neither creates a second seat or a second
// broadcast to the same connection.
func (r *Room) rejoinLocked(sess *session.Session, p *Player) {
	reconnecting := p.Status != StatusConnected
	if reconnecting {
		r.cancelGraceLocked(p.ID)
		p.Status = StatusConnected
	}

	// Bind supersedes any stale connection for this player.
	r.deps.Sessions.Bind(sess, p.ID, r.ID)
	sess.Send(r.roomStateLocked(p.ID))

	if reconnecting {
		joined := network.NewEnvelope(network.TypePlayerJoined, struct {
			*Player
			Reconnected bool `json:"reconnected"`
		}{p, true})
		joined.RoomID = r.ID
		r.deps.Broadcaster.BroadcastToRoom(r.ID, joined, p.ID)
	}
}

// --- leave / disconnect / grace ---

func (r *Room) leaveLocked(playerID string) {
	p, exists := r.players[playerID]
	if !exists {
		return
	}

	r.cancelGraceLocked(playerID)
	delete(r.players, playerID)

	if r.phase == PhaseActive && r.state != nil {
		st, events := r.engine.OnPlayerLeave(r.state, playerID)
		r.state = st
		r.dispatchLocked(events)
		r.afterApplyLocked()
	}

	left := network.NewEnvelope(network.TypePlayerLeft, map[string]interface{}{
		"playerId": playerID,
		"name":     p.Name,
	})
	left.RoomID = r.ID
	r.deps.Broadcaster.BroadcastToRoom(r.ID, left, "")

	if p.IsHost {
		r.migrateHostLocked()
	}

	go r.deletePlayerRecord(playerID)
	r.notifyLobbyLocked()

	if len(r.players) == 0 {
		// Nobody is left to reconnect; close immediately.
		r.closeLocked()
		return
	}
	r.checkHostInvariantLocked()
}

func (r *Room) disconnectLocked(playerID string) {
	p, exists := r.players[playerID]
	if !exists || p.Status != StatusConnected {
		return
	}
	p.Status = StatusDisconnected

	left := network.NewEnvelope(network.TypePlayerLeft, map[string]interface{}{
		"playerId":  playerID,
		"name":      p.Name,
		"temporary": true,
	})
	left.RoomID = r.ID
	r.deps.Broadcaster.BroadcastToRoom(r.ID, left, playerID)

	id := r.deps.Timers.AfterFunc(r.deps.GraceWindow, func() {
		r.post(func() { r.graceExpiredLocked(playerID) })
	})
	r.graceTimers[playerID] = id
}

func (r *Room) graceExpiredLocked(playerID string) {
	p, exists := r.players[playerID]
	if !exists || p.Status == StatusConnected {
		return // reconnected before the deadline, or already gone
	}
	delete(r.graceTimers, playerID)
	r.leaveLocked(playerID)
}

func (r *Room) cancelGraceLocked(playerID string) {
	if id, ok := r.graceTimers[playerID]; ok {
		r.deps.Timers.RemoveTimer(id)
		delete(r.graceTimers, playerID)
	}
}

// migrateHostLocked hands host privilege to the remaining player with
// the earliest JoinedAt, ties broken by id for determinism.
func (r *Room) migrateHostLocked() {
	if len(r.players) == 0 {
		return
	}

	candidates := make([]*Player, 0, len(r.players))
	for _, p := range r.players {
		p.IsHost = false
		candidates = append(candidates, p)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].JoinedAt.Equal(candidates[j].JoinedAt) {
			return candidates[i].JoinedAt.Before(candidates[j].JoinedAt)
		}
		return candidates[i].ID < candidates[j].ID
	})

	newHost := candidates[0]
	newHost.IsHost = true

	changed := network.NewEnvelope(network.TypeHostChanged, map[string]interface{}{
		"hostId": newHost.ID,
		"name":   newHost.Name,
	})
	changed.RoomID = r.ID
	r.deps.Broadcaster.BroadcastToRoom(r.ID, changed, "")

	go r.persistRoomRecord()
}

// --- start / actions ---

func (r *Room) startLocked(playerID string, settings game.Settings) {
	p, exists := r.players[playerID]
	if !exists {
		r.sendErrorLocked(playerID, network.ReasonNotInRoom, "you are not in this room")
		return
	}
	if !p.IsHost {
		r.sendErrorLocked(playerID, network.ReasonNotHost, "only the host can start the game")
		return
	}
	if r.phase != PhaseForming {
		r.sendErrorLocked(playerID, network.ReasonGameInProgress, "a game is already running")
		return
	}

	engine, err := game.ForType(r.GameType)
	if err != nil {
		r.sendErrorLocked(playerID, network.ReasonInvalidSettings, err.Error())
		return
	}

	seats := make([]game.Seat, 0, len(r.players))
	for _, pl := range r.players {
		seats = append(seats, game.Seat{ID: pl.ID, Name: pl.Name, JoinedAt: pl.JoinedAt})
	}
	if len(seats) < engine.MinPlayers() || len(seats) > engine.MaxPlayers() {
		r.sendErrorLocked(playerID, network.ReasonInvalidSettings,
			"this game needs a different number of players")
		return
	}

	st, events, err := engine.CreateInitialState(seats, settings)
	if err != nil {
		r.sendErrorLocked(playerID, network.ReasonInvalidSettings, err.Error())
		return
	}

	r.engine = engine
	r.state = st
	r.phase = PhaseActive

	started := network.NewEnvelope(network.TypeGameStarted, map[string]interface{}{
		"gameType": r.GameType,
		"phase":    st.Phase(),
	})
	started.RoomID = r.ID
	r.deps.Broadcaster.BroadcastToRoom(r.ID, started, "")

	r.dispatchLocked(events)
	r.afterApplyLocked()
	go r.persistRoomRecord()
}

func (r *Room) actionLocked(playerID string, action game.Action) {
	if r.phase != PhaseActive || r.state == nil {
		// Chat still works in a forming room; everything else needs a game.
		if guess, ok := action.(game.GuessAction); ok {
			r.chatLocked(playerID, guess.Text)
			return
		}
		if _, ok := action.(game.TimerExpired); ok {
			return // stale timer from a session that already ended
		}
		r.sendErrorLocked(playerID, network.ReasonGameNotStarted, "the game has not started")
		return
	}

	st, events, rejection := r.engine.Apply(r.state, playerID, action)
	if rejection != nil {
		// Rejections reach the acting player only; state is unchanged.
		if playerID != "" {
			r.sendErrorLocked(playerID, rejection.Reason, rejection.Message)
		}
		return
	}

	r.state = st
	r.dispatchLocked(events)
	r.afterApplyLocked()
}

func (r *Room) chatLocked(playerID, text string) {
	p, exists := r.players[playerID]
	if !exists {
		return
	}
	msg := network.NewEnvelope(network.TypeChatMessage, game.ChatUpdate{
		PlayerID: playerID,
		Name:     p.Name,
		Text:     text,
	})
	msg.RoomID = r.ID
	r.deps.Broadcaster.BroadcastToRoom(r.ID, msg, "")
}

// afterApplyLocked runs the bookkeeping every successful state change
// needs: timer rescheduling, best-effort persistence, terminal reset.
func (r *Room) afterApplyLocked() {
	if r.state == nil {
		return
	}

	if r.engine.IsTerminal(r.state) {
		r.flushBatchLocked()
		r.cancelRoundTimerLocked()
		r.state = nil
		r.engine = nil
		r.phase = PhaseForming
		go r.persistRoomRecord()
		go r.deleteSnapshot()
		return
	}

	r.rescheduleDeadlineLocked()
	r.persistSnapshotLocked()
}

// rescheduleDeadlineLocked arms one timer for the state's pending
// deadline. A superseded deadline (all players guessed before the round
// timer) is cancelled here; if both fire near-simultaneously, both land
// in the op queue and the engine drops the stale sequence.
func (r *Room) rescheduleDeadlineLocked() {
	deadline, seq, ok := r.state.Deadline()
	if !ok {
		r.cancelRoundTimerLocked()
		return
	}
	if seq == r.scheduledSeq {
		return
	}

	r.cancelRoundTimerLocked()
	r.scheduledSeq = seq

	delay := time.Until(deadline)
	if delay < 0 {
		delay = 0
	}
	r.roundTimerID = r.deps.Timers.AfterFunc(delay, func() {
		r.post(func() { r.actionLocked("", game.TimerExpired{Seq: seq}) })
	})
}

func (r *Room) cancelRoundTimerLocked() {
	if r.roundTimerID != 0 {
		r.deps.Timers.RemoveTimer(r.roundTimerID)
		r.roundTimerID = 0
	}
	r.scheduledSeq = 0
}

// --- event fanout ---

func (r *Room) dispatchLocked(events []game.Event) {
	for _, ev := range events {
		if ev.To != "" {
			env := network.NewEnvelope(ev.Type, ev.Data)
			env.RoomID = r.ID
			if err := r.deps.Broadcaster.SendToPlayer(ev.To, env); err != nil {
				logger.Log.Debugf("Room %s: targeted send to %s failed: %v", r.ID, ev.To, err)
			}
			continue
		}

		if update, ok := ev.Data.(game.DrawUpdate); ok && isBatchableMove(update) {
			if r.batch.Add(update.Commands[0], ev.Exclude) {
				r.flushBatchLocked()
			} else {
				r.armBatchTimerLocked()
			}
			continue
		}

		// Anything else flushes pending moves first to preserve stroke
		// ordering on the wire.
		r.flushBatchLocked()
		env := network.NewEnvelope(ev.Type, ev.Data)
		env.RoomID = r.ID
		r.deps.Broadcaster.BroadcastToRoom(r.ID, env, ev.Exclude)
	}
}

func isBatchableMove(update game.DrawUpdate) bool {
	return update.Kind == "draw" && len(update.Commands) == 1 && update.Commands[0].Cmd == "move"
}

func (r *Room) armBatchTimerLocked() {
	if r.batchTimerID != 0 {
		return
	}
	r.batchTimerID = r.deps.Timers.AfterFunc(r.deps.BatchWindow, func() {
		r.post(func() {
			r.batchTimerID = 0
			if r.batch.Due() {
				r.flushBatchLocked()
			} else if !r.batch.Empty() {
				r.armBatchTimerLocked()
			}
		})
	})
}

func (r *Room) flushBatchLocked() {
	if r.batch.Empty() {
		return
	}
	cmds, exclude := r.batch.Flush()
	env := network.NewEnvelope(network.TypeGameStateUpdate, game.DrawUpdate{
		Kind:     "draw",
		Commands: cmds,
	})
	env.RoomID = r.ID
	r.deps.Broadcaster.BroadcastToRoom(r.ID, env, exclude)
}

// --- snapshots and persistence ---

func (r *Room) roomStateLocked(playerID string) *network.Envelope {
	players := make([]*Player, 0, len(r.players))
	for _, p := range r.players {
		players = append(players, p)
	}
	sort.Slice(players, func(i, j int) bool { return players[i].JoinedAt.Before(players[j].JoinedAt) })

	payload := map[string]interface{}{
		"room": map[string]interface{}{
			"id":         r.ID,
			"name":       r.Name,
			"gameType":   r.GameType,
			"maxPlayers": r.MaxPlayers,
			"isPrivate":  r.IsPrivate,
		},
		"phase":   r.phase.String(),
		"players": players,
		"you":     playerID,
	}
	if r.phase == PhaseActive && r.state != nil {
		payload["game"] = game.ViewFor(r.state, playerID)
	}

	env := network.NewEnvelope(network.TypeRoomState, payload)
	env.RoomID = r.ID
	env.PlayerID = playerID
	return env
}

func (r *Room) persistMembershipLocked(p *Player) {
	record := &models.PlayerRecord{
		ID:       p.ID,
		Name:     p.Name,
		RoomID:   r.ID,
		IsHost:   p.IsHost,
		JoinedAt: p.JoinedAt,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.deps.Registry.SavePlayer(ctx, record); err != nil {
			logger.Log.Warnf("Room %s: player record write failed: %v", r.ID, err)
		}
	}()
	go r.persistRoomRecord()
}

func (r *Room) persistRoomRecord() {
	info := r.Info()
	host := ""
	done := make(chan struct{})
	r.post(func() {
		if h := r.hostLocked(); h != nil {
			host = h.ID
		}
		close(done)
	})
	select {
	case <-done:
	case <-r.closed:
		return
	}

	record := &models.RoomRecord{
		ID:         r.ID,
		Name:       r.Name,
		HostID:     host,
		MaxPlayers: r.MaxPlayers,
		GameType:   r.GameType,
		IsPrivate:  r.IsPrivate,
		IsActive:   info.Phase != PhaseClosing.String() && info.Phase != PhaseDeleted.String(),
		CreatedAt:  r.CreatedAt,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.deps.Registry.SaveRoom(ctx, record); err != nil {
		logger.Log.Warnf("Room %s: room record write failed: %v", r.ID, err)
	}
}

// persistSnapshotLocked writes a lightweight resume snapshot. Fire and
// forget: a store failure never rolls back in-memory state.
func (r *Room) persistSnapshotLocked() {
	if r.state == nil {
		return
	}
	data, err := json.Marshal(r.state)
	if err != nil {
		logger.Log.Warnf("Room %s: snapshot marshal failed: %v", r.ID, err)
		return
	}
	snapshot := &models.RoomSnapshot{
		RoomID:   r.ID,
		GameType: r.GameType,
		Phase:    r.state.Phase(),
		State:    data,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.deps.Registry.SaveSnapshot(ctx, snapshot); err != nil {
			logger.Log.Warnf("Room %s: snapshot write failed: %v", r.ID, err)
		}
	}()
}

func (r *Room) deletePlayerRecord(playerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.deps.Registry.DeletePlayer(ctx, playerID); err != nil {
		logger.Log.Warnf("Room %s: player record delete failed: %v", r.ID, err)
	}
}

func (r *Room) deleteSnapshot() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.deps.Registry.DeleteSnapshot(ctx, r.ID); err != nil && !services.IsNotFound(err) {
		logger.Log.Debugf("Room %s: snapshot delete failed: %v", r.ID, err)
	}
}

// --- closing and invariants ---

func (r *Room) closeLocked() {
	if r.phase == PhaseClosing || r.phase == PhaseDeleted {
		return
	}
	r.phase = PhaseClosing

	r.cancelRoundTimerLocked()
	for id := range r.graceTimers {
		r.cancelGraceLocked(id)
	}
	if r.batchTimerID != 0 {
		r.deps.Timers.RemoveTimer(r.batchTimerID)
		r.batchTimerID = 0
	}

	roomID := r.ID
	registry := r.deps.Registry
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := registry.DeleteRoom(ctx, roomID); err != nil && !services.IsNotFound(err) {
			logger.Log.Warnf("Room %s: room record delete failed: %v", roomID, err)
		}
		registry.DeleteSnapshot(ctx, roomID)
	}()

	r.notifyLobbyLocked()
	if r.deps.OnClosed != nil {
		go r.deps.OnClosed(roomID)
	}
}

func (r *Room) hostLocked() *Player {
	for _, p := range r.players {
		if p.IsHost {
			return p
		}
	}
	return nil
}

// checkHostInvariantLocked force-closes the room when host uniqueness is
// violated; correctness cannot be guaranteed past that point.
func (r *Room) checkHostInvariantLocked() {
	if len(r.players) == 0 {
		return
	}
	hosts := 0
	for _, p := range r.players {
		if p.IsHost {
			hosts++
		}
	}
	if hosts == 1 {
		return
	}

	logger.Log.Errorf("Room %s: host invariant violated (%d hosts), force closing", r.ID, hosts)
	env := network.NewErrorEnvelope(network.ReasonRoomClosed, "room state corrupted, closing")
	env.RoomID = r.ID
	r.deps.Broadcaster.BroadcastToRoom(r.ID, env, "")
	r.players = make(map[string]*Player)
	r.closeLocked()
}

func (r *Room) notifyLobbyLocked() {
	if r.IsPrivate {
		return
	}
	update := network.NewEnvelope(network.TypeLobbyUpdate, models.LobbyRoom{
		ID:         r.ID,
		Name:       r.Name,
		GameType:   r.GameType,
		Players:    len(r.players),
		MaxPlayers: r.MaxPlayers,
	})
	r.deps.Broadcaster.BroadcastToLobby(update)
}

func (r *Room) sendErrorLocked(playerID, reason, message string) {
	env := network.NewErrorEnvelope(reason, message)
	env.RoomID = r.ID
	if err := r.deps.Broadcaster.SendToPlayer(playerID, env); err != nil {
		logger.Log.Debugf("Room %s: error delivery to %s failed: %v", r.ID, playerID, err)
	}
}
