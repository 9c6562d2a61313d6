package server

import (
	"context"
	"net/http"
	netrpc "net/rpc"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wfunc/roomserver/broadcast"
	"github.com/wfunc/roomserver/config"
	"github.com/wfunc/roomserver/logger"
	"github.com/wfunc/roomserver/monitor"
	"github.com/wfunc/roomserver/network"
	"github.com/wfunc/roomserver/room"
	adminrpc "github.com/wfunc/roomserver/rpc"
	"github.com/wfunc/roomserver/services"
	"github.com/wfunc/roomserver/session"
	"github.com/wfunc/roomserver/timer"
)

// GameServer owns the WebSocket endpoint and ties the registry, rooms,
// broadcaster and admin RPC together.
type GameServer struct {
	cfg            *config.Config
	upgrader       websocket.Upgrader
	roomManager    *room.Manager
	sessionManager *session.Manager
	registry       *services.Registry
	broadcaster    *broadcast.RoomBroadcaster
	timers         *timer.TimerManager
	monitor        *monitor.Monitor
	dispatcher     *Dispatcher
	rpcServer      *adminrpc.Server
	httpServer     *http.Server
	shutdownChan   chan struct{}
}

func NewGameServer(cfg *config.Config, registry *services.Registry) (*GameServer, error) {
	s := &GameServer{
		cfg:            cfg,
		sessionManager: session.NewManager(),
		registry:       registry,
		timers:         timer.NewTimerManager(),
		monitor:        monitor.NewMonitor("roomserver"),
		shutdownChan:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}

	s.broadcaster = broadcast.NewRoomBroadcaster(s.sessionManager, s.onSendFailure)
	s.broadcaster.SetBroadcastHook(s.monitor.IncBroadcastsSent)

	s.roomManager = room.NewManager(room.Deps{
		Broadcaster: s.broadcaster,
		Sessions:    s.sessionManager,
		Registry:    registry,
		Timers:      s.timers,
		GraceWindow: cfg.Game.GraceWindow(),
		BatchWindow: cfg.Game.DrawBatchWindow(),
		BatchMax:    cfg.Game.DrawBatchMax,
	})

	s.dispatcher = NewDispatcher(s.roomManager, s.sessionManager, s.broadcaster, s.monitor, cfg.Limits)

	rpcServer, err := adminrpc.NewServer(cfg.Server.RPCAddress)
	if err != nil {
		return nil, err
	}
	s.rpcServer = rpcServer
	netrpc.Register(adminrpc.NewAdminService(s.roomManager, s.sessionManager))

	return s, nil
}

func (s *GameServer) Start() error {
	go s.rpcServer.Start()
	s.monitor.StartServer(s.cfg.Server.MetricsAddress)
	go s.reportGauges()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	s.httpServer = &http.Server{Addr: s.cfg.Server.HTTPAddress, Handler: mux}

	logger.Log.Infof("Game server listening on %s", s.cfg.Server.HTTPAddress)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *GameServer) Shutdown() {
	close(s.shutdownChan)
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(ctx)
	}
	s.rpcServer.Stop()
	s.roomManager.Shutdown()
	s.timers.Stop()
}

func (s *GameServer) reportGauges() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-s.shutdownChan:
			return
		case <-ticker.C:
			s.monitor.SetActiveRooms(s.roomManager.Count())
		}
	}
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	go s.handleConnection(conn)
}

func (s *GameServer) handleConnection(conn *websocket.Conn) {
	wsConn := network.NewWSConnection(conn)
	wsConn.SetHeartbeat(s.cfg.Game.Heartbeat())

	sess := session.NewSession(uuid.New().String(), wsConn)
	s.sessionManager.Add(sess)
	s.monitor.IncOnlinePlayers()

	logger.Log.Infof("New connection from %s, session ID: %s", wsConn.RemoteAddr(), sess.ID)

	defer func() {
		logger.Log.Infof("Connection closed from %s, session ID: %s", wsConn.RemoteAddr(), sess.ID)
		s.monitor.DecOnlinePlayers()
		playerID, roomID := s.sessionManager.Unbind(sess)
		s.sessionManager.Remove(sess.ID)
		s.dispatcher.Forget(sess.ID)
		wsConn.Close()
		s.notifyDisconnect(playerID, roomID)
	}()

	for {
		select {
		case <-s.shutdownChan:
			return
		default:
			env, err := wsConn.ReadEnvelope()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Log.Debugf("Session %s read error: %v", sess.ID, err)
				}
				return
			}
			s.monitor.IncMessagesReceived()
			start := time.Now()
			s.dispatcher.Dispatch(sess, env)
			s.monitor.ObserveMessageLatency(time.Since(start))
		}
	}
}

// onSendFailure runs when a broadcast write fails and the broadcaster
// drops the connection; the player enters the same grace path as a
// normal disconnect.
func (s *GameServer) onSendFailure(playerID, roomID string) {
	s.notifyDisconnect(playerID, roomID)
}

func (s *GameServer) notifyDisconnect(playerID, roomID string) {
	if playerID == "" || roomID == "" {
		return
	}
	if r, ok := s.roomManager.GetRoom(roomID); ok {
		r.HandleDisconnect(playerID)
	}
}
