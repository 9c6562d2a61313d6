package rpc

import (
	"net"
	"net/rpc"

	"github.com/wfunc/roomserver/logger"
	"github.com/wfunc/roomserver/room"
	"github.com/wfunc/roomserver/session"
)

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
}

// NewServer creates a new RPC server.
func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  addr,
	}, nil
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			// Check if the error is due to the listener being closed.
			if _, ok := err.(*net.OpError); ok {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// AdminService exposes operational queries over net/rpc. Methods follow
// the net/rpc signature: exported args, pointer reply, error return.
type AdminService struct {
	rooms    *room.Manager
	sessions *session.Manager
}

func NewAdminService(rooms *room.Manager, sessions *session.Manager) *AdminService {
	return &AdminService{rooms: rooms, sessions: sessions}
}

type ListRoomsArgs struct{}

type ListRoomsReply struct {
	Rooms []room.Info
}

func (a *AdminService) ListRooms(args *ListRoomsArgs, reply *ListRoomsReply) error {
	reply.Rooms = a.rooms.ListRooms()
	return nil
}

type ServerStatsArgs struct{}

type ServerStatsReply struct {
	Sessions int
	Rooms    int
}

func (a *AdminService) ServerStats(args *ServerStatsArgs, reply *ServerStatsReply) error {
	reply.Sessions = a.sessions.Count()
	reply.Rooms = a.rooms.Count()
	return nil
}

type RoomStatsArgs struct {
	RoomID string
}

type RoomStatsReply struct {
	Found bool
	Info  room.Info
}

func (a *AdminService) RoomStats(args *RoomStatsArgs, reply *RoomStatsReply) error {
	r, ok := a.rooms.GetRoom(args.RoomID)
	if !ok {
		return nil
	}
	reply.Found = true
	reply.Info = r.Info()
	return nil
}
