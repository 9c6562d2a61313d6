package game

import "time"

// DrawingView is the personalized resync view of a drawing session.
type DrawingView struct {
	GameType    string         `json:"gameType"`
	Phase       string         `json:"phase"`
	Round       int            `json:"round"`
	MaxRounds   int            `json:"maxRounds"`
	Drawer      string         `json:"drawer"`
	WordHint    string         `json:"wordHint"`
	Word        string         `json:"word,omitempty"` // only for the drawer
	Strokes     []DrawAction   `json:"strokes"`
	Scores      map[string]int `json:"scores"`
	RoundEndsAt time.Time      `json:"roundEndsAt"`
}

// PokerView is the personalized resync view of a poker session.
type PokerView struct {
	GameType string      `json:"gameType"`
	Table    PokerUpdate `json:"table"`
	Hole     []Card      `json:"hole,omitempty"`
}

// ViewFor builds the state snapshot as seen by one player: the drawer
// sees the secret word, a poker player sees only their own hole cards.
// Used for join snapshots and reconnection resyncs.
func ViewFor(st State, playerID string) interface{} {
	switch s := st.(type) {
	case *DrawingState:
		view := DrawingView{
			GameType:    TypeDrawing,
			Phase:       s.PhaseName,
			Round:       s.Round,
			MaxRounds:   s.MaxRounds,
			Drawer:      s.Drawer(),
			WordHint:    s.maskedWord(),
			Strokes:     s.Strokes,
			Scores:      s.Scores,
			RoundEndsAt: s.RoundEndsAt,
		}
		if playerID == s.Drawer() || s.PhaseName == DrawingPhaseResults {
			view.Word = s.Word
		}
		return view
	case *PokerState:
		var e PokerEngine // publicUpdate needs no rng
		view := PokerView{GameType: TypePoker}
		view.Table = e.publicUpdate(s, "resync").Data.(PokerUpdate)
		if p := s.player(playerID); p != nil {
			view.Hole = p.Hole
		}
		return view
	default:
		return nil
	}
}
