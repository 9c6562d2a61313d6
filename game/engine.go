package game

import (
	"encoding/json"
	"fmt"
	"time"
)

// Game type tags.
const (
	TypeDrawing = "drawing"
	TypePoker   = "poker"
)

// Seat is the engine's view of a participating player at session start.
type Seat struct {
	ID       string
	Name     string
	JoinedAt time.Time
}

// Settings are validated by each engine against its own bounds.
type Settings struct {
	MaxRounds        int   `json:"maxRounds"`
	RoundTimeSeconds int   `json:"roundTimeSeconds"`
	StartingChips    int64 `json:"startingChips"`
	SmallBlind       int64 `json:"smallBlind"`
}

// State is a live session's mutable game state. It is owned exclusively
// by the engine instance and mutated only through Apply/OnPlayerLeave.
type State interface {
	Phase() string
	// Deadline reports the pending timer deadline and its sequence
	// number, if any. The coordinator schedules a TimerExpired action
	// for it; stale sequence numbers are ignored by the engine.
	Deadline() (time.Time, int64, bool)
}

// Event is an outbound message produced by an action. To restricts
// delivery to a single player (per-player filtered views); Exclude
// delivers to everyone in the room but one player. Both empty means a
// plain room broadcast.
type Event struct {
	Type    string
	Data    interface{}
	To      string
	Exclude string
}

// Rejection is the non-error refusal of an action. Reason is one of the
// stable wire codes; rejections never mutate state and are reported to
// the acting player only.
type Rejection struct {
	Reason  string
	Message string
}

func Reject(reason, format string, args ...interface{}) *Rejection {
	return &Rejection{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// Engine encapsulates one game type's rules. Implementations must never
// panic on malformed input; anything invalid is a Rejection.
type Engine interface {
	GameType() string
	MinPlayers() int
	MaxPlayers() int
	CreateInitialState(players []Seat, settings Settings) (State, []Event, error)
	Apply(st State, playerID string, action Action) (State, []Event, *Rejection)
	OnPlayerLeave(st State, playerID string) (State, []Event)
	IsTerminal(st State) bool
}

// Action is the closed union of player inputs. Engines match on the
// concrete type; an unhandled variant is a rejection, not a panic.
type Action interface {
	isAction()
}

// DrawAction is one drawing command from the current drawer.
type DrawAction struct {
	Cmd   string  `json:"cmd"` // start | move | end | clear
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Color string  `json:"color"`
	Size  float64 `json:"size"`
}

// GuessAction is a chat line, evaluated as a guess while a drawing round
// is running.
type GuessAction struct {
	Text string `json:"text"`
}

// PokerAction is one betting decision.
type PokerAction struct {
	Move   string `json:"action"` // fold | check | call | raise | all-in
	Amount int64  `json:"amount"`
}

// TimerExpired is posted by the coordinator when a scheduled deadline
// fires. Seq guards against superseded timers: the engine ignores any
// sequence that no longer matches its state.
type TimerExpired struct {
	Seq int64
}

func (DrawAction) isAction()   {}
func (GuessAction) isAction()  {}
func (PokerAction) isAction()  {}
func (TimerExpired) isAction() {}

type rawGameAction struct {
	Kind string `json:"kind"`
}

// DecodeAction parses a game-action payload into the tagged union.
func DecodeAction(data []byte) (Action, error) {
	var head rawGameAction
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("malformed game action: %w", err)
	}

	switch head.Kind {
	case "draw":
		var a DrawAction
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, fmt.Errorf("malformed draw action: %w", err)
		}
		return a, nil
	case "poker-action":
		var a PokerAction
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, fmt.Errorf("malformed poker action: %w", err)
		}
		return a, nil
	default:
		return nil, fmt.Errorf("unknown action kind %q", head.Kind)
	}
}

// ForType returns a fresh engine for the given game type tag.
func ForType(gameType string) (Engine, error) {
	switch gameType {
	case TypeDrawing:
		return NewDrawingEngine(), nil
	case TypePoker:
		return NewPokerEngine(), nil
	default:
		return nil, fmt.Errorf("unknown game type %q", gameType)
	}
}
