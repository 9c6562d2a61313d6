package network

import "encoding/json"

// Envelope is the wire format for every message in both directions.
type Envelope struct {
	Type     string          `json:"type"`
	RoomID   string          `json:"roomId,omitempty"`
	PlayerID string          `json:"playerId,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// Client -> server message types.
const (
	TypeSubscribeLobby = "subscribe-lobby"
	TypeCreateRoom     = "create-room"
	TypeJoin           = "join"
	TypeLeaveRoom      = "leave-room"
	TypeStartGame      = "start-game"
	TypeGameAction     = "game-action"
	TypeChat           = "chat"
	TypeHeartbeat      = "heartbeat"
)

// Server -> client message types.
const (
	TypeRoomState       = "room-state"
	TypePlayerJoined    = "player-joined"
	TypePlayerLeft      = "player-left"
	TypeHostChanged     = "host-changed"
	TypeGameStarted     = "game-started"
	TypeGameStateUpdate = "game-state-update"
	TypeChatMessage     = "chat-message"
	TypeError           = "error"
	TypeLobbyData       = "lobby-data"
	TypeLobbyUpdate     = "lobby-update"
)

// Stable rejection reason codes carried by error envelopes.
const (
	ReasonRoomNotFound     = "room-not-found"
	ReasonRoomFull         = "room-full"
	ReasonDuplicateName    = "duplicate-name"
	ReasonNotHost          = "not-host"
	ReasonNotYourTurn      = "not-your-turn"
	ReasonInvalidAction    = "invalid-action"
	ReasonGameNotStarted   = "game-not-started"
	ReasonGameInProgress   = "game-in-progress"
	ReasonMalformedPayload = "malformed-payload"
	ReasonRateLimited      = "rate-limited"
	ReasonUnknownType      = "unknown-type"
	ReasonRoomClosed       = "room-closed"
	ReasonInvalidSettings  = "invalid-settings"
	ReasonNotInRoom        = "not-in-room"
)

// ErrorData is the payload of an error envelope.
type ErrorData struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// NewErrorEnvelope builds an error envelope for a given reason code.
func NewErrorEnvelope(reason, message string) *Envelope {
	data, _ := json.Marshal(ErrorData{Reason: reason, Message: message})
	return &Envelope{Type: TypeError, Data: data}
}

// NewEnvelope marshals v into the data field of a fresh envelope.
func NewEnvelope(msgType string, v interface{}) *Envelope {
	data, _ := json.Marshal(v)
	return &Envelope{Type: msgType, Data: data}
}
