package game

import (
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/wfunc/roomserver/network"
)

// Drawing phases.
const (
	DrawingPhaseDrawing = "drawing"
	DrawingPhaseResults = "results"
	DrawingPhaseEnded   = "ended"
)

const (
	canvasWidth  = 800.0
	canvasHeight = 600.0

	drawingBasePoints   = 100
	drawingMinPlayers   = 2
	drawingMaxPlayers   = 12
	drawingMaxRounds    = 10
	resultsPhaseSeconds = 5
)

// allowedRoundTimes is the discrete set of legal round durations.
var allowedRoundTimes = map[int]bool{30: true, 45: true, 60: true, 75: true, 90: true, 120: true}

// DrawingState holds one drawing-and-guessing session.
type DrawingState struct {
	PhaseName   string            `json:"phase"`
	Round       int               `json:"round"`
	MaxRounds   int               `json:"maxRounds"`
	RoundTime   time.Duration     `json:"roundTime"`
	Order       []string          `json:"order"` // drawer rotation, join order
	DrawerIdx   int               `json:"drawerIdx"`
	Word        string            `json:"-"` // never serialized to clients
	Names       map[string]string `json:"names"`
	Scores      map[string]int    `json:"scores"`
	Guessed     map[string]bool   `json:"guessed"`
	Strokes     []DrawAction      `json:"strokes"`
	RoundEndsAt time.Time         `json:"roundEndsAt"`
	TimerSeq    int64             `json:"timerSeq"`
}

func (s *DrawingState) Phase() string { return s.PhaseName }

func (s *DrawingState) Deadline() (time.Time, int64, bool) {
	if s.PhaseName == DrawingPhaseEnded || s.RoundEndsAt.IsZero() {
		return time.Time{}, 0, false
	}
	return s.RoundEndsAt, s.TimerSeq, true
}

// inRotation reports whether the player holds a seat in the current
// session. Players who joined after start-game are not in the rotation.
func (s *DrawingState) inRotation(id string) bool {
	for _, pid := range s.Order {
		if pid == id {
			return true
		}
	}
	return false
}

func (s *DrawingState) Drawer() string {
	if len(s.Order) == 0 {
		return ""
	}
	return s.Order[s.DrawerIdx%len(s.Order)]
}

// maskedWord replaces letters with underscores, keeping spaces.
func (s *DrawingState) maskedWord() string {
	var b strings.Builder
	for _, r := range s.Word {
		if r == ' ' {
			b.WriteRune(' ')
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

// DrawingEngine implements the drawing-and-guessing rules. The clock and
// word picker are injectable so tests can pin time and words.
type DrawingEngine struct {
	now      func() time.Time
	pickWord func() string
}

func NewDrawingEngine() *DrawingEngine {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &DrawingEngine{
		now: time.Now,
		pickWord: func() string {
			return wordList[rng.Intn(len(wordList))]
		},
	}
}

// NewDrawingEngineForTest pins the clock and word selection.
func NewDrawingEngineForTest(now func() time.Time, pickWord func() string) *DrawingEngine {
	return &DrawingEngine{now: now, pickWord: pickWord}
}

func (e *DrawingEngine) GameType() string { return TypeDrawing }
func (e *DrawingEngine) MinPlayers() int  { return drawingMinPlayers }
func (e *DrawingEngine) MaxPlayers() int  { return drawingMaxPlayers }

func (e *DrawingEngine) CreateInitialState(players []Seat, settings Settings) (State, []Event, error) {
	if settings.MaxRounds < 1 || settings.MaxRounds > drawingMaxRounds {
		return nil, nil, errInvalidSettings("maxRounds must be between 1 and 10")
	}
	if !allowedRoundTimes[settings.RoundTimeSeconds] {
		return nil, nil, errInvalidSettings("roundTimeSeconds must be one of 30, 45, 60, 75, 90, 120")
	}
	if len(players) < drawingMinPlayers || len(players) > drawingMaxPlayers {
		return nil, nil, errInvalidSettings("drawing needs 2 to 12 players")
	}

	ordered := append([]Seat(nil), players...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].JoinedAt.Before(ordered[j].JoinedAt) })

	st := &DrawingState{
		MaxRounds: settings.MaxRounds,
		RoundTime: time.Duration(settings.RoundTimeSeconds) * time.Second,
		Names:     make(map[string]string, len(ordered)),
		Scores:    make(map[string]int, len(ordered)),
		Guessed:   make(map[string]bool),
	}
	for _, p := range ordered {
		st.Order = append(st.Order, p.ID)
		st.Names[p.ID] = p.Name
		st.Scores[p.ID] = 0
	}

	st.DrawerIdx = len(st.Order) - 1 // startRound advances to index 0
	events := e.startRound(st)
	return st, events, nil
}

func (e *DrawingEngine) Apply(st State, playerID string, action Action) (State, []Event, *Rejection) {
	ds, ok := st.(*DrawingState)
	if !ok || ds == nil {
		return st, nil, Reject(network.ReasonGameNotStarted, "no drawing session is running")
	}

	switch a := action.(type) {
	case DrawAction:
		return e.applyDraw(ds, playerID, a)
	case GuessAction:
		return e.applyGuess(ds, playerID, a)
	case TimerExpired:
		return e.applyTimer(ds, a)
	default:
		return ds, nil, Reject(network.ReasonInvalidAction, "action not valid for a drawing game")
	}
}

func (e *DrawingEngine) applyDraw(ds *DrawingState, playerID string, a DrawAction) (State, []Event, *Rejection) {
	if ds.PhaseName != DrawingPhaseDrawing {
		return ds, nil, Reject(network.ReasonGameNotStarted, "no round in progress")
	}
	if playerID != ds.Drawer() {
		return ds, nil, Reject(network.ReasonNotYourTurn, "only the current drawer may draw")
	}

	switch a.Cmd {
	case "start", "move", "end":
		if a.X < 0 || a.X > canvasWidth || a.Y < 0 || a.Y > canvasHeight {
			return ds, nil, Reject(network.ReasonInvalidAction, "coordinates outside the canvas")
		}
	case "clear":
		// no coordinates to validate
	default:
		return ds, nil, Reject(network.ReasonMalformedPayload, "unknown draw command %q", a.Cmd)
	}

	if a.Cmd == "clear" {
		ds.Strokes = nil
	} else {
		ds.Strokes = append(ds.Strokes, a)
	}

	return ds, []Event{{
		Type:    network.TypeGameStateUpdate,
		Data:    DrawUpdate{Kind: "draw", Commands: []DrawAction{a}},
		Exclude: playerID,
	}}, nil
}

func (e *DrawingEngine) applyGuess(ds *DrawingState, playerID string, a GuessAction) (State, []Event, *Rejection) {
	text := strings.TrimSpace(a.Text)
	if text == "" {
		return ds, nil, Reject(network.ReasonMalformedPayload, "empty chat message")
	}

	name := ds.Names[playerID]
	if name == "" {
		name = playerID
	}
	chat := Event{Type: network.TypeChatMessage, Data: ChatUpdate{
		PlayerID: playerID,
		Name:     name,
		Text:     text,
	}}

	// Players seated after start-game spectate: chat only, never scored,
	// never counted toward round completion. A spectator message hitting
	// the secret word mid-round is echoed back to the sender alone so
	// the word cannot leak.
	if !ds.inRotation(playerID) {
		if ds.PhaseName == DrawingPhaseDrawing && strings.EqualFold(text, ds.Word) {
			chat.To = playerID
		}
		return ds, []Event{chat}, nil
	}

	// Guesses only count mid-round, from non-drawers who have not
	// already guessed. Everything else is plain chat.
	if ds.PhaseName != DrawingPhaseDrawing || playerID == ds.Drawer() || ds.Guessed[playerID] {
		return ds, []Event{chat}, nil
	}
	if !strings.EqualFold(text, ds.Word) {
		return ds, []Event{chat}, nil
	}

	remaining := ds.RoundEndsAt.Sub(e.now())
	if remaining < 0 {
		remaining = 0
	}
	points := drawingBasePoints + int(remaining.Milliseconds()/1000)
	ds.Scores[playerID] += points
	ds.Guessed[playerID] = true

	events := []Event{{
		Type: network.TypeChatMessage,
		Data: ChatUpdate{System: true, Text: ds.Names[playerID] + " guessed the word!"},
	}, {
		Type: network.TypeGameStateUpdate,
		Data: ScoreUpdate{Kind: "score", PlayerID: playerID, Points: points, Scores: ds.Scores},
	}}

	if e.allGuessed(ds) {
		events = append(events, e.endRound(ds)...)
	}
	return ds, events, nil
}

func (e *DrawingEngine) applyTimer(ds *DrawingState, a TimerExpired) (State, []Event, *Rejection) {
	// A stale sequence means this deadline was superseded by an earlier
	// round transition; drop it.
	if a.Seq != ds.TimerSeq {
		return ds, nil, nil
	}

	switch ds.PhaseName {
	case DrawingPhaseDrawing:
		return ds, e.endRound(ds), nil
	case DrawingPhaseResults:
		return ds, e.startRound(ds), nil
	default:
		return ds, nil, nil
	}
}

func (e *DrawingEngine) allGuessed(ds *DrawingState) bool {
	for _, id := range ds.Order {
		if id == ds.Drawer() {
			continue
		}
		if !ds.Guessed[id] {
			return false
		}
	}
	return true
}

func (e *DrawingEngine) endRound(ds *DrawingState) []Event {
	ds.PhaseName = DrawingPhaseResults
	ds.RoundEndsAt = e.now().Add(resultsPhaseSeconds * time.Second)
	ds.TimerSeq++

	return []Event{{
		Type: network.TypeGameStateUpdate,
		Data: RoundUpdate{
			Kind:   "round-results",
			Phase:  ds.PhaseName,
			Round:  ds.Round,
			Word:   ds.Word,
			Scores: ds.Scores,
		},
	}}
}

func (e *DrawingEngine) startRound(ds *DrawingState) []Event {
	if ds.Round >= ds.MaxRounds {
		ds.PhaseName = DrawingPhaseEnded
		ds.RoundEndsAt = time.Time{}
		ds.TimerSeq++
		return []Event{{
			Type: network.TypeGameStateUpdate,
			Data: RoundUpdate{Kind: "game-over", Phase: ds.PhaseName, Scores: ds.Scores},
		}}
	}

	ds.Round++
	ds.PhaseName = DrawingPhaseDrawing
	ds.DrawerIdx = (ds.DrawerIdx + 1) % len(ds.Order)
	ds.Word = e.pickWord()
	ds.Guessed = make(map[string]bool)
	ds.Strokes = nil
	ds.RoundEndsAt = e.now().Add(ds.RoundTime)
	ds.TimerSeq++

	drawer := ds.Drawer()
	return []Event{{
		Type: network.TypeGameStateUpdate,
		Data: RoundUpdate{
			Kind:        "round-start",
			Phase:       ds.PhaseName,
			Round:       ds.Round,
			Drawer:      drawer,
			DrawerName:  ds.Names[drawer],
			WordHint:    ds.maskedWord(),
			RoundEndsAt: ds.RoundEndsAt,
			Scores:      ds.Scores,
		},
	}, {
		Type: network.TypeGameStateUpdate,
		Data: WordReveal{Kind: "your-word", Word: ds.Word},
		To:   drawer,
	}}
}

func (e *DrawingEngine) OnPlayerLeave(st State, playerID string) (State, []Event) {
	ds, ok := st.(*DrawingState)
	if !ok || ds == nil {
		return st, nil
	}

	idx := -1
	for i, id := range ds.Order {
		if id == playerID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ds, nil
	}

	wasDrawer := playerID == ds.Drawer()
	ds.Order = append(ds.Order[:idx], ds.Order[idx+1:]...)
	delete(ds.Guessed, playerID)

	if len(ds.Order) < drawingMinPlayers {
		ds.PhaseName = DrawingPhaseEnded
		ds.RoundEndsAt = time.Time{}
		ds.TimerSeq++
		return ds, []Event{{
			Type: network.TypeGameStateUpdate,
			Data: RoundUpdate{Kind: "game-over", Phase: ds.PhaseName, Scores: ds.Scores},
		}}
	}

	// Keep the rotation stable: seats before the removed one shift the
	// index down by one; if the drawer left, point at their predecessor
	// so the next startRound advances onto the seat that replaced them.
	if idx <= ds.DrawerIdx {
		ds.DrawerIdx--
		if ds.DrawerIdx < 0 {
			ds.DrawerIdx = len(ds.Order) - 1
		}
	}

	// Losing the drawer mid-round ends the round.
	if wasDrawer && ds.PhaseName == DrawingPhaseDrawing {
		return ds, e.endRound(ds)
	}

	if ds.PhaseName == DrawingPhaseDrawing && e.allGuessed(ds) {
		return ds, e.endRound(ds)
	}
	return ds, nil
}

func (e *DrawingEngine) IsTerminal(st State) bool {
	ds, ok := st.(*DrawingState)
	return ok && ds != nil && ds.PhaseName == DrawingPhaseEnded
}
