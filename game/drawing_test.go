package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/roomserver/network"
)

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func newDrawingFixture(t *testing.T, word string, players int) (*DrawingEngine, *DrawingState, []Event) {
	t.Helper()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	engine := NewDrawingEngineForTest(fixedClock(base), func() string { return word })

	seats := make([]Seat, 0, players)
	names := []string{"alice", "bob", "carol", "dave"}
	for i := 0; i < players; i++ {
		seats = append(seats, Seat{
			ID:       names[i],
			Name:     names[i],
			JoinedAt: base.Add(time.Duration(i) * time.Second),
		})
	}

	st, events, err := engine.CreateInitialState(seats, Settings{MaxRounds: 2, RoundTimeSeconds: 90})
	require.NoError(t, err)
	return engine, st.(*DrawingState), events
}

func TestDrawingInitialRound(t *testing.T) {
	_, ds, events := newDrawingFixture(t, "house", 2)

	assert.Equal(t, DrawingPhaseDrawing, ds.PhaseName)
	assert.Equal(t, 1, ds.Round)
	// First drawer is the earliest joiner.
	assert.Equal(t, "alice", ds.Drawer())
	assert.Equal(t, "house", ds.Word)

	require.Len(t, events, 2)
	round := events[0].Data.(RoundUpdate)
	assert.Equal(t, "round-start", round.Kind)
	assert.Equal(t, "_____", round.WordHint)
	assert.Empty(t, round.Word, "round-start must not leak the word")

	reveal := events[1]
	assert.Equal(t, "alice", reveal.To, "the word goes to the drawer only")
	assert.Equal(t, "house", reveal.Data.(WordReveal).Word)
}

func TestDrawingSettingsValidation(t *testing.T) {
	engine := NewDrawingEngine()
	seats := []Seat{{ID: "a"}, {ID: "b"}}

	_, _, err := engine.CreateInitialState(seats, Settings{MaxRounds: 0, RoundTimeSeconds: 60})
	assert.Error(t, err)

	_, _, err = engine.CreateInitialState(seats, Settings{MaxRounds: 3, RoundTimeSeconds: 61})
	assert.Error(t, err)

	_, _, err = engine.CreateInitialState([]Seat{{ID: "solo"}}, Settings{MaxRounds: 3, RoundTimeSeconds: 60})
	assert.Error(t, err)
}

func TestDrawingGuessScoresFullRemaining(t *testing.T) {
	engine, ds, _ := newDrawingFixture(t, "house", 3)

	// The clock has not advanced since round start: 90s remain, so the
	// guess is worth 100 + 90 points.
	_, events, rej := engine.Apply(ds, "bob", GuessAction{Text: "  House "})
	require.Nil(t, rej)
	assert.Equal(t, 190, ds.Scores["bob"])
	assert.True(t, ds.Guessed["bob"])

	// The correct word never appears in chat; a system line replaces it.
	chat := events[0].Data.(ChatUpdate)
	assert.True(t, chat.System)
	assert.NotContains(t, chat.Text, "house")

	// One guesser still missing, so the round keeps going.
	assert.Equal(t, DrawingPhaseDrawing, ds.PhaseName)

	// A repeat guess from bob is plain chat, no double scoring.
	_, events, rej = engine.Apply(ds, "bob", GuessAction{Text: "house"})
	require.Nil(t, rej)
	assert.Equal(t, 190, ds.Scores["bob"])
	assert.False(t, events[0].Data.(ChatUpdate).System)

	// The last guesser ends the round.
	_, events, rej = engine.Apply(ds, "carol", GuessAction{Text: "HOUSE"})
	require.Nil(t, rej)
	assert.Equal(t, DrawingPhaseResults, ds.PhaseName)
	last := events[len(events)-1].Data.(RoundUpdate)
	assert.Equal(t, "round-results", last.Kind)
	assert.Equal(t, "house", last.Word, "results reveal the word")
}

func TestDrawingLateJoinerSpectates(t *testing.T) {
	engine, ds, _ := newDrawingFixture(t, "house", 3)

	// "zoe" joined after start-game and holds no seat in the rotation.
	_, events, rej := engine.Apply(ds, "zoe", GuessAction{Text: "house"})
	require.Nil(t, rej)
	assert.Equal(t, DrawingPhaseDrawing, ds.PhaseName, "a spectator guess cannot end the round")
	assert.NotContains(t, ds.Scores, "zoe")
	assert.False(t, ds.Guessed["zoe"])

	// The matching word is echoed to the sender only, never the room.
	require.Len(t, events, 1)
	assert.Equal(t, "zoe", events[0].To)

	// Ordinary spectator chat reaches everyone.
	_, events, rej = engine.Apply(ds, "zoe", GuessAction{Text: "nice drawing"})
	require.Nil(t, rej)
	require.Len(t, events, 1)
	assert.Empty(t, events[0].To)
	assert.Equal(t, "nice drawing", events[0].Data.(ChatUpdate).Text)

	// Seated guessers still finish the round without the spectator.
	_, _, rej = engine.Apply(ds, "bob", GuessAction{Text: "house"})
	require.Nil(t, rej)
	_, _, rej = engine.Apply(ds, "carol", GuessAction{Text: "house"})
	require.Nil(t, rej)
	assert.Equal(t, DrawingPhaseResults, ds.PhaseName)
}

func TestDrawingWrongGuessIsChat(t *testing.T) {
	engine, ds, _ := newDrawingFixture(t, "house", 2)

	_, events, rej := engine.Apply(ds, "bob", GuessAction{Text: "dog"})
	require.Nil(t, rej)
	require.Len(t, events, 1)
	assert.Equal(t, network.TypeChatMessage, events[0].Type)
	assert.Equal(t, 0, ds.Scores["bob"])
}

func TestDrawingDrawerGuessIgnored(t *testing.T) {
	engine, ds, _ := newDrawingFixture(t, "house", 2)

	_, _, rej := engine.Apply(ds, "alice", GuessAction{Text: "house"})
	require.Nil(t, rej)
	assert.Equal(t, 0, ds.Scores["alice"])
	assert.False(t, ds.Guessed["alice"])
}

func TestDrawingOnlyDrawerMayDraw(t *testing.T) {
	engine, ds, _ := newDrawingFixture(t, "house", 2)

	_, _, rej := engine.Apply(ds, "bob", DrawAction{Cmd: "start", X: 10, Y: 10})
	require.NotNil(t, rej)
	assert.Equal(t, network.ReasonNotYourTurn, rej.Reason)
	assert.Empty(t, ds.Strokes, "a rejected action must not mutate state")
}

func TestDrawingCanvasBounds(t *testing.T) {
	engine, ds, _ := newDrawingFixture(t, "house", 2)

	_, _, rej := engine.Apply(ds, "alice", DrawAction{Cmd: "move", X: 900, Y: 10})
	require.NotNil(t, rej)
	assert.Equal(t, network.ReasonInvalidAction, rej.Reason)
	assert.Empty(t, ds.Strokes)

	_, _, rej = engine.Apply(ds, "alice", DrawAction{Cmd: "move", X: 800, Y: 600})
	assert.Nil(t, rej, "the canvas edge is inclusive")
	assert.Len(t, ds.Strokes, 1)
}

func TestDrawingClearResetsStrokes(t *testing.T) {
	engine, ds, _ := newDrawingFixture(t, "house", 2)

	engine.Apply(ds, "alice", DrawAction{Cmd: "start", X: 1, Y: 1})
	engine.Apply(ds, "alice", DrawAction{Cmd: "move", X: 2, Y: 2})
	require.Len(t, ds.Strokes, 2)

	_, _, rej := engine.Apply(ds, "alice", DrawAction{Cmd: "clear"})
	require.Nil(t, rej)
	assert.Empty(t, ds.Strokes)
}

func TestDrawingTimerLifecycle(t *testing.T) {
	engine, ds, _ := newDrawingFixture(t, "house", 2)
	seq := ds.TimerSeq

	// A stale sequence is dropped without effect.
	_, events, rej := engine.Apply(ds, "", TimerExpired{Seq: seq - 1})
	require.Nil(t, rej)
	assert.Empty(t, events)
	assert.Equal(t, DrawingPhaseDrawing, ds.PhaseName)

	// The live sequence ends the round.
	_, _, rej = engine.Apply(ds, "", TimerExpired{Seq: seq})
	require.Nil(t, rej)
	assert.Equal(t, DrawingPhaseResults, ds.PhaseName)

	// Results deadline advances to round two with the next drawer.
	_, _, rej = engine.Apply(ds, "", TimerExpired{Seq: ds.TimerSeq})
	require.Nil(t, rej)
	assert.Equal(t, 2, ds.Round)
	assert.Equal(t, "bob", ds.Drawer())

	// Run out the final round: drawing -> results -> game over.
	engine.Apply(ds, "", TimerExpired{Seq: ds.TimerSeq})
	_, events, _ = engine.Apply(ds, "", TimerExpired{Seq: ds.TimerSeq})
	assert.Equal(t, DrawingPhaseEnded, ds.PhaseName)
	assert.True(t, engine.IsTerminal(ds))
	assert.Equal(t, "game-over", events[0].Data.(RoundUpdate).Kind)
}

func TestDrawingDrawerLeavingEndsRound(t *testing.T) {
	engine, ds, _ := newDrawingFixture(t, "house", 3)
	require.Equal(t, "alice", ds.Drawer())

	_, events := engine.OnPlayerLeave(ds, "alice")
	assert.Equal(t, DrawingPhaseResults, ds.PhaseName)
	assert.NotEmpty(t, events)
	assert.NotContains(t, ds.Order, "alice")

	// The next round rotates onto the seat that replaced the leaver.
	engine.Apply(ds, "", TimerExpired{Seq: ds.TimerSeq})
	assert.Equal(t, "bob", ds.Drawer())
}

func TestDrawingEndsBelowMinimumPlayers(t *testing.T) {
	engine, ds, _ := newDrawingFixture(t, "house", 2)

	_, _, ok := ds.Deadline()
	assert.True(t, ok)

	_, _, rej := engine.Apply(ds, "bob", GuessAction{Text: "hello"})
	require.Nil(t, rej)

	_, _ = engine.OnPlayerLeave(ds, "bob")
	assert.Equal(t, DrawingPhaseEnded, ds.PhaseName)
	assert.True(t, engine.IsTerminal(ds))

	_, _, ok = ds.Deadline()
	assert.False(t, ok, "an ended game holds no deadline")
}
