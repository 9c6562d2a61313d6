package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/roomserver/network"
)

func newPokerFixture(t *testing.T, players int) (*PokerEngine, *PokerState) {
	t.Helper()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	engine := NewPokerEngineForTest(42)

	seats := make([]Seat, 0, players)
	names := []string{"alice", "bob", "carol", "dave"}
	for i := 0; i < players; i++ {
		seats = append(seats, Seat{
			ID:       names[i],
			Name:     names[i],
			JoinedAt: base.Add(time.Duration(i) * time.Second),
		})
	}

	st, _, err := engine.CreateInitialState(seats, Settings{})
	require.NoError(t, err)
	return engine, st.(*PokerState)
}

func chipTotal(ps *PokerState) int64 {
	var total int64
	for _, p := range ps.Players {
		total += p.Chips + p.TotalBet
	}
	return total
}

func TestPokerInitialHand(t *testing.T) {
	_, ps := newPokerFixture(t, 3)

	assert.Equal(t, PokerPhasePreflop, ps.PhaseName)
	assert.Equal(t, 1, ps.HandNum)
	// Dealer rotates onto seat 0 for the first hand; blinds follow.
	assert.Equal(t, "alice", ps.Players[ps.DealerIdx].ID)
	assert.EqualValues(t, 10, ps.player("bob").Bet)
	assert.EqualValues(t, 20, ps.player("carol").Bet)
	assert.EqualValues(t, 20, ps.CurrentBet)
	// First to act preflop is the seat after the big blind.
	assert.Equal(t, "alice", ps.Players[ps.CurrentIdx].ID)

	for _, p := range ps.Players {
		assert.Len(t, p.Hole, 2)
	}
	assert.EqualValues(t, 3000, chipTotal(ps))
}

func TestPokerSettingsValidation(t *testing.T) {
	engine := NewPokerEngineForTest(1)
	seats := []Seat{{ID: "a"}, {ID: "b"}}

	_, _, err := engine.CreateInitialState(seats, Settings{StartingChips: 30, SmallBlind: 10})
	assert.Error(t, err, "starting stack must cover the blinds")

	_, _, err = engine.CreateInitialState([]Seat{{ID: "solo"}}, Settings{})
	assert.Error(t, err)
}

func TestPokerTurnOrderEnforced(t *testing.T) {
	engine, ps := newPokerFixture(t, 3)

	before := ps.player("bob").Bet
	_, _, rej := engine.Apply(ps, "bob", PokerAction{Move: "call"})
	require.NotNil(t, rej)
	assert.Equal(t, network.ReasonNotYourTurn, rej.Reason)
	assert.Equal(t, before, ps.player("bob").Bet, "a rejected action must not mutate state")
}

func TestPokerCheckFacingBetRejected(t *testing.T) {
	engine, ps := newPokerFixture(t, 3)

	_, _, rej := engine.Apply(ps, "alice", PokerAction{Move: "check"})
	require.NotNil(t, rej)
	assert.Equal(t, network.ReasonInvalidAction, rej.Reason)
}

func TestPokerRaiseBelowMinimumRejected(t *testing.T) {
	engine, ps := newPokerFixture(t, 3)

	chips := ps.player("alice").Chips
	_, _, rej := engine.Apply(ps, "alice", PokerAction{Move: "raise", Amount: ps.MinRaise - 1})
	require.NotNil(t, rej)
	assert.Equal(t, network.ReasonInvalidAction, rej.Reason)
	assert.Equal(t, chips, ps.player("alice").Chips)
	assert.EqualValues(t, 20, ps.CurrentBet)
}

func TestPokerCallClampedToStack(t *testing.T) {
	engine, ps := newPokerFixture(t, 3)

	// A short stack calling a larger bet goes all-in for what it has;
	// chips never go negative.
	short := ps.player("alice")
	short.Chips = 5
	_, _, rej := engine.Apply(ps, "alice", PokerAction{Move: "call"})
	require.Nil(t, rej)
	assert.EqualValues(t, 0, short.Chips)
	assert.EqualValues(t, 5, short.Bet)
	assert.True(t, short.AllIn)
}

func TestPokerAllInRunOutReportsNoActor(t *testing.T) {
	engine, ps := newPokerFixture(t, 2)

	// Heads-up the dealer acts first and shoves; the call closes the
	// round with everyone all-in, so the board runs out to showdown.
	_, _, rej := engine.Apply(ps, "alice", PokerAction{Move: "all-in"})
	require.Nil(t, rej)
	_, events, rej := engine.Apply(ps, "bob", PokerAction{Move: "call"})
	require.Nil(t, rej)

	var stages []PokerUpdate
	sawShowdown := false
	for _, ev := range events {
		switch data := ev.Data.(type) {
		case PokerUpdate:
			if data.Kind == "stage" {
				stages = append(stages, data)
			}
		case ShowdownUpdate:
			sawShowdown = true
		}
	}

	require.Len(t, stages, 3, "flop, turn and river while the board runs out")
	for _, st := range stages {
		assert.Empty(t, st.Current, "nobody acts during a run-out (%s)", st.Phase)
	}
	assert.True(t, sawShowdown)
	assert.EqualValues(t, 2000, chipTotal(ps))
}

func TestPokerRaiseReopensAction(t *testing.T) {
	engine, ps := newPokerFixture(t, 3)

	_, _, rej := engine.Apply(ps, "alice", PokerAction{Move: "raise", Amount: 40})
	require.Nil(t, rej)
	assert.EqualValues(t, 60, ps.CurrentBet)
	assert.EqualValues(t, 40, ps.MinRaise)
	assert.EqualValues(t, 60, ps.player("alice").Bet)

	for _, p := range ps.Players {
		if p.ID != "alice" {
			assert.False(t, p.Acted, "a raise reopens action for the others")
		}
	}
}

func TestPokerUndersizedAllInKeepsMinRaise(t *testing.T) {
	engine, ps := newPokerFixture(t, 3)

	// Alice moves all-in for just over the big blind. The bet re-sets but
	// the minimum raise stays for players still to act.
	short := ps.player("alice")
	short.Chips = 25
	_, _, rej := engine.Apply(ps, "alice", PokerAction{Move: "all-in"})
	require.Nil(t, rej)
	assert.EqualValues(t, 25, ps.CurrentBet)
	assert.EqualValues(t, 20, ps.MinRaise)
	assert.True(t, short.AllIn)
}

func TestPokerFoldToOneWinsPot(t *testing.T) {
	engine, ps := newPokerFixture(t, 3)

	_, _, rej := engine.Apply(ps, "alice", PokerAction{Move: "fold"})
	require.Nil(t, rej)
	_, events, rej := engine.Apply(ps, "bob", PokerAction{Move: "fold"})
	require.Nil(t, rej)

	// Carol wins uncontested; her own uncalled chips come back, the next
	// hand starts, and the total chip count is conserved.
	var award *PotAward
	for _, ev := range events {
		if su, ok := ev.Data.(ShowdownUpdate); ok {
			require.Len(t, su.Awards, 1)
			award = &su.Awards[0]
			assert.Empty(t, su.Hands, "no reveal without a showdown")
		}
	}
	require.NotNil(t, award)
	assert.Equal(t, "carol", award.PlayerID)

	assert.Equal(t, 2, ps.HandNum)
	assert.EqualValues(t, 3000, chipTotal(ps))
	assert.EqualValues(t, 1010, ps.player("carol").Chips+ps.player("carol").TotalBet)
}

func TestPokerHeadsUpDealerPostsSmallBlind(t *testing.T) {
	_, ps := newPokerFixture(t, 2)

	dealer := ps.Players[ps.DealerIdx]
	assert.EqualValues(t, 10, dealer.Bet)
	// Heads-up the dealer acts first preflop.
	assert.Equal(t, dealer.ID, ps.Players[ps.CurrentIdx].ID)
}

func TestPokerLeaveFoldsAndFinishes(t *testing.T) {
	engine, ps := newPokerFixture(t, 2)

	actor := ps.Players[ps.CurrentIdx]
	_, events := engine.OnPlayerLeave(ps, actor.ID)
	assert.NotEmpty(t, events)

	left := ps.player(actor.ID)
	assert.True(t, left.Folded)
	assert.True(t, left.Out)
	// Heads-up with one player gone the game is over.
	assert.Equal(t, PokerPhaseEnded, ps.PhaseName)
	assert.True(t, engine.IsTerminal(ps))
}

func TestBuildSidePots(t *testing.T) {
	a := &PokerPlayer{ID: "a", TotalBet: 100, AllIn: true}
	b := &PokerPlayer{ID: "b", TotalBet: 300}
	c := &PokerPlayer{ID: "c", TotalBet: 300}
	d := &PokerPlayer{ID: "d", TotalBet: 50, Folded: true}

	pots := buildSidePots([]*PokerPlayer{a, b, c, d})
	require.Len(t, pots, 3)

	// Main pot: 50*4 from everyone up to the folded player's level.
	assert.EqualValues(t, 200, pots[0].Amount)
	assert.Len(t, pots[0].Contenders, 3, "folded chips stay in but do not contend")

	// Middle pot: up to the short all-in's level.
	assert.EqualValues(t, 150, pots[1].Amount)
	assert.Len(t, pots[1].Contenders, 3)

	// Top pot: only the two full stacks.
	assert.EqualValues(t, 400, pots[2].Amount)
	assert.Len(t, pots[2].Contenders, 2)
}

func TestHandRankOrdering(t *testing.T) {
	straightFlush := evalFive([]Card{{9, 1}, {8, 1}, {7, 1}, {6, 1}, {5, 1}})
	quads := evalFive([]Card{{14, 0}, {14, 1}, {14, 2}, {14, 3}, {2, 0}})
	wheel := evalFive([]Card{{14, 0}, {5, 1}, {4, 2}, {3, 3}, {2, 0}})
	sixHigh := evalFive([]Card{{6, 0}, {5, 1}, {4, 2}, {3, 3}, {2, 0}})
	twoPairHigh := evalFive([]Card{{13, 0}, {13, 1}, {4, 2}, {4, 3}, {2, 0}})
	twoPairLow := evalFive([]Card{{12, 0}, {12, 1}, {11, 2}, {11, 3}, {14, 0}})

	assert.Equal(t, handStraightFlush, straightFlush.Category)
	assert.Positive(t, straightFlush.Compare(quads))
	assert.Equal(t, handStraight, wheel.Category)
	assert.Positive(t, sixHigh.Compare(wheel), "the wheel ranks below a six-high straight")
	assert.Positive(t, twoPairHigh.Compare(twoPairLow), "the higher pair decides first")
}

func TestBestHandPicksFiveOfSeven(t *testing.T) {
	// Seven cards holding a flush and a straight: the flush must win out.
	cards := []Card{
		{14, 2}, {13, 2}, {9, 2}, {7, 2}, {3, 2},
		{12, 0}, {11, 1},
	}
	rank := bestHand(cards)
	assert.Equal(t, handFlush, rank.Category)
	assert.Equal(t, "flush", rank.Name())
}
