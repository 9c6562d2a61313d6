package game

import (
	"math/rand"
	"sort"
	"time"

	"github.com/wfunc/roomserver/network"
)

// Poker phases. Showdown is transient: the hand resolves and the next
// hand (or the terminal phase) begins within the same action.
const (
	PokerPhasePreflop = "preflop"
	PokerPhaseFlop    = "flop"
	PokerPhaseTurn    = "turn"
	PokerPhaseRiver   = "river"
	PokerPhaseEnded   = "ended"
)

const (
	pokerMinPlayers      = 2
	pokerMaxPlayers      = 9
	defaultStartingChips = 1000
	defaultSmallBlind    = 10
)

type PokerPlayer struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Chips    int64  `json:"chips"`
	Bet      int64  `json:"bet"`      // committed this betting round
	TotalBet int64  `json:"totalBet"` // committed this hand
	Hole     []Card `json:"-"`
	Folded   bool   `json:"folded"`
	AllIn    bool   `json:"allIn"`
	Out      bool   `json:"out"`
	Acted    bool   `json:"acted"`
}

type PokerState struct {
	PhaseName  string         `json:"phase"`
	Players    []*PokerPlayer `json:"players"` // fixed seat order
	DealerIdx  int            `json:"dealerIdx"`
	CurrentIdx int            `json:"currentIdx"`
	Deck       []Card         `json:"-"`
	Community  []Card         `json:"community"`
	CurrentBet int64          `json:"currentBet"`
	MinRaise   int64          `json:"minRaise"`
	SmallBlind int64          `json:"smallBlind"`
	BigBlind   int64          `json:"bigBlind"`
	HandNum    int            `json:"handNum"`
}

func (s *PokerState) Phase() string { return s.PhaseName }

func (s *PokerState) Deadline() (time.Time, int64, bool) {
	return time.Time{}, 0, false
}

func (s *PokerState) Pot() int64 {
	var pot int64
	for _, p := range s.Players {
		pot += p.TotalBet
	}
	return pot
}

func (s *PokerState) player(id string) *PokerPlayer {
	for _, p := range s.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// Poker event payloads.

type PokerPlayerView struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Chips  int64  `json:"chips"`
	Bet    int64  `json:"bet"`
	Folded bool   `json:"folded"`
	AllIn  bool   `json:"allIn"`
	Out    bool   `json:"out"`
}

type PokerUpdate struct {
	Kind       string            `json:"kind"`
	Phase      string            `json:"phase"`
	HandNum    int               `json:"handNum"`
	Community  []Card            `json:"community"`
	Pot        int64             `json:"pot"`
	CurrentBet int64             `json:"currentBet"`
	MinRaise   int64             `json:"minRaise"`
	Current    string            `json:"current"`
	Dealer     string            `json:"dealer"`
	Players    []PokerPlayerView `json:"players"`
}

type HoleCards struct {
	Kind  string `json:"kind"`
	Cards []Card `json:"cards"`
}

type PokerMove struct {
	Kind     string `json:"kind"`
	PlayerID string `json:"playerId"`
	Move     string `json:"move"`
	Amount   int64  `json:"amount,omitempty"`
}

type ShowdownHand struct {
	PlayerID string `json:"playerId"`
	Cards    []Card `json:"cards"`
	Rank     string `json:"rank"`
}

type PotAward struct {
	PlayerID string `json:"playerId"`
	Amount   int64  `json:"amount"`
}

type ShowdownUpdate struct {
	Kind   string         `json:"kind"`
	Hands  []ShowdownHand `json:"hands,omitempty"`
	Awards []PotAward     `json:"awards"`
}

// PokerEngine implements no-limit Texas Hold'em. The deck shuffle is
// injectable so tests can deal known hands.
type PokerEngine struct {
	rng *rand.Rand
}

func NewPokerEngine() *PokerEngine {
	return &PokerEngine{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// NewPokerEngineForTest pins the shuffle order.
func NewPokerEngineForTest(seed int64) *PokerEngine {
	return &PokerEngine{rng: rand.New(rand.NewSource(seed))}
}

func (e *PokerEngine) GameType() string { return TypePoker }
func (e *PokerEngine) MinPlayers() int  { return pokerMinPlayers }
func (e *PokerEngine) MaxPlayers() int  { return pokerMaxPlayers }

func (e *PokerEngine) CreateInitialState(players []Seat, settings Settings) (State, []Event, error) {
	if len(players) < pokerMinPlayers || len(players) > pokerMaxPlayers {
		return nil, nil, errInvalidSettings("poker needs 2 to 9 players")
	}

	chips := settings.StartingChips
	if chips <= 0 {
		chips = defaultStartingChips
	}
	smallBlind := settings.SmallBlind
	if smallBlind <= 0 {
		smallBlind = defaultSmallBlind
	}
	if chips < smallBlind*4 {
		return nil, nil, errInvalidSettings("starting chips must cover at least two big blinds")
	}

	ordered := append([]Seat(nil), players...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].JoinedAt.Before(ordered[j].JoinedAt) })

	st := &PokerState{
		SmallBlind: smallBlind,
		BigBlind:   smallBlind * 2,
		DealerIdx:  len(ordered) - 1, // first hand's dealer rotates onto seat 0
	}
	for _, p := range ordered {
		st.Players = append(st.Players, &PokerPlayer{ID: p.ID, Name: p.Name, Chips: chips})
	}

	events := e.startHand(st)
	return st, events, nil
}

func (e *PokerEngine) Apply(st State, playerID string, action Action) (State, []Event, *Rejection) {
	ps, ok := st.(*PokerState)
	if !ok || ps == nil {
		return st, nil, Reject(network.ReasonGameNotStarted, "no poker session is running")
	}

	switch a := action.(type) {
	case PokerAction:
		return e.applyMove(ps, playerID, a)
	case GuessAction:
		// Table chat: broadcast, no rule meaning in poker.
		p := ps.player(playerID)
		name := playerID
		if p != nil {
			name = p.Name
		}
		return ps, []Event{{Type: network.TypeChatMessage, Data: ChatUpdate{
			PlayerID: playerID, Name: name, Text: a.Text,
		}}}, nil
	case TimerExpired:
		return ps, nil, nil
	default:
		return ps, nil, Reject(network.ReasonInvalidAction, "action not valid for a poker game")
	}
}

func (e *PokerEngine) applyMove(ps *PokerState, playerID string, a PokerAction) (State, []Event, *Rejection) {
	if ps.PhaseName == PokerPhaseEnded {
		return ps, nil, Reject(network.ReasonGameNotStarted, "the game is over")
	}

	p := ps.player(playerID)
	if p == nil {
		return ps, nil, Reject(network.ReasonInvalidAction, "player is not seated at this table")
	}
	if ps.Players[ps.CurrentIdx].ID != playerID {
		return ps, nil, Reject(network.ReasonNotYourTurn, "it is not your turn to act")
	}

	var committed int64
	switch a.Move {
	case "fold":
		p.Folded = true
	case "check":
		if p.Bet != ps.CurrentBet {
			return ps, nil, Reject(network.ReasonInvalidAction, "cannot check facing a bet")
		}
	case "call":
		toCall := ps.CurrentBet - p.Bet
		if toCall < 0 {
			toCall = 0
		}
		committed = min64(p.Chips, toCall)
		e.commit(p, committed)
	case "raise":
		if a.Amount < ps.MinRaise {
			return ps, nil, Reject(network.ReasonInvalidAction, "raise must be at least %d", ps.MinRaise)
		}
		needed := (ps.CurrentBet - p.Bet) + a.Amount
		if needed > p.Chips {
			return ps, nil, Reject(network.ReasonInvalidAction, "raise exceeds your stack, go all-in instead")
		}
		committed = needed
		e.commit(p, needed)
		ps.CurrentBet += a.Amount
		ps.MinRaise = a.Amount
		e.reopenAction(ps, p)
	case "all-in":
		committed = p.Chips
		newTotal := p.Bet + p.Chips
		e.commit(p, p.Chips)
		if newTotal > ps.CurrentBet {
			raiseBy := newTotal - ps.CurrentBet
			ps.CurrentBet = newTotal
			// An undersized all-in re-sets the bet but does not lower
			// the minimum raise for players still to act.
			if raiseBy >= ps.MinRaise {
				ps.MinRaise = raiseBy
			}
			e.reopenAction(ps, p)
		}
	default:
		return ps, nil, Reject(network.ReasonMalformedPayload, "unknown poker move %q", a.Move)
	}
	p.Acted = true

	events := []Event{{
		Type: network.TypeGameStateUpdate,
		Data: PokerMove{Kind: "poker-move", PlayerID: playerID, Move: a.Move, Amount: committed},
	}}
	events = append(events, e.afterAction(ps)...)
	return ps, events, nil
}

func (e *PokerEngine) commit(p *PokerPlayer, amount int64) {
	p.Chips -= amount
	p.Bet += amount
	p.TotalBet += amount
	if p.Chips == 0 {
		p.AllIn = true
	}
}

// reopenAction clears Acted for everyone except the aggressor so the
// betting round continues until all live players have matched.
func (e *PokerEngine) reopenAction(ps *PokerState, aggressor *PokerPlayer) {
	for _, other := range ps.Players {
		if other != aggressor {
			other.Acted = false
		}
	}
}

func (e *PokerEngine) inHand(p *PokerPlayer) bool {
	return !p.Out && !p.Folded
}

func (e *PokerEngine) canAct(p *PokerPlayer) bool {
	return e.inHand(p) && !p.AllIn
}

func (e *PokerEngine) countInHand(ps *PokerState) int {
	n := 0
	for _, p := range ps.Players {
		if e.inHand(p) {
			n++
		}
	}
	return n
}

// nextIdx finds the next seat after from satisfying pred, or -1.
func (e *PokerEngine) nextIdx(ps *PokerState, from int, pred func(*PokerPlayer) bool) int {
	n := len(ps.Players)
	for i := 1; i <= n; i++ {
		idx := (from + i) % n
		if pred(ps.Players[idx]) {
			return idx
		}
	}
	return -1
}

func (e *PokerEngine) roundClosed(ps *PokerState) bool {
	for _, p := range ps.Players {
		if !e.canAct(p) {
			continue
		}
		if !p.Acted || p.Bet != ps.CurrentBet {
			return false
		}
	}
	return true
}

// afterAction drives the hand forward: fold-outs, round closure, stage
// advancement, showdown, and the next hand.
func (e *PokerEngine) afterAction(ps *PokerState) []Event {
	if e.countInHand(ps) <= 1 {
		return e.resolveHand(ps, false)
	}

	if e.roundClosed(ps) {
		return e.advanceStage(ps)
	}

	next := e.nextIdx(ps, ps.CurrentIdx, e.canAct)
	if next < 0 {
		// Everyone remaining is all-in: run the board out.
		return e.advanceStage(ps)
	}
	ps.CurrentIdx = next
	return []Event{e.publicUpdate(ps, "turn")}
}

func (e *PokerEngine) advanceStage(ps *PokerState) []Event {
	for _, p := range ps.Players {
		p.Bet = 0
		p.Acted = false
	}
	ps.CurrentBet = 0
	ps.MinRaise = ps.BigBlind

	switch ps.PhaseName {
	case PokerPhasePreflop:
		ps.PhaseName = PokerPhaseFlop
		ps.Community = append(ps.Community, e.deal(ps, 3)...)
	case PokerPhaseFlop:
		ps.PhaseName = PokerPhaseTurn
		ps.Community = append(ps.Community, e.deal(ps, 1)...)
	case PokerPhaseTurn:
		ps.PhaseName = PokerPhaseRiver
		ps.Community = append(ps.Community, e.deal(ps, 1)...)
	case PokerPhaseRiver:
		return e.resolveHand(ps, true)
	default:
		return nil
	}

	actors := 0
	for _, p := range ps.Players {
		if e.canAct(p) {
			actors++
		}
	}
	if actors < 2 {
		// No betting possible: nobody is current while the board runs
		// out, so the stage update must not name a stale actor.
		ps.CurrentIdx = -1
		events := []Event{e.publicUpdate(ps, "stage")}
		return append(events, e.advanceStage(ps)...)
	}

	ps.CurrentIdx = e.nextIdx(ps, ps.DealerIdx, e.canAct)
	return []Event{e.publicUpdate(ps, "stage")}
}

// resolveHand distributes the pot, with a showdown reveal when more than
// one player is still in. Side pots cap what a short all-in stack can
// win; chip totals can never go negative.
func (e *PokerEngine) resolveHand(ps *PokerState, showdown bool) []Event {
	e.returnUncalled(ps)
	pots := buildSidePots(ps.Players)

	result := ShowdownUpdate{Kind: "showdown"}
	if showdown {
		for _, p := range ps.Players {
			if e.inHand(p) {
				result.Hands = append(result.Hands, ShowdownHand{
					PlayerID: p.ID,
					Cards:    p.Hole,
					Rank:     bestHand(append(append([]Card{}, p.Hole...), ps.Community...)).Name(),
				})
			}
		}
	}

	for _, pot := range pots {
		winners := e.potWinners(ps, pot)
		if len(winners) == 0 {
			continue
		}
		share := pot.Amount / int64(len(winners))
		remainder := pot.Amount % int64(len(winners))
		for i, w := range winners {
			award := share
			if int64(i) < remainder {
				award++ // odd chips go to the earliest seats
			}
			w.Chips += award
			result.Awards = append(result.Awards, PotAward{PlayerID: w.ID, Amount: award})
		}
	}

	events := []Event{{Type: network.TypeGameStateUpdate, Data: result}}
	events = append(events, e.finishHand(ps)...)
	return events
}

// returnUncalled refunds the portion of the top commitment nobody else
// matched, so an uncontested raise is never lost to the pot.
func (e *PokerEngine) returnUncalled(ps *PokerState) {
	var top *PokerPlayer
	var second int64
	for _, p := range ps.Players {
		if top == nil || p.TotalBet > top.TotalBet {
			if top != nil && top.TotalBet > second {
				second = top.TotalBet
			}
			top = p
		} else if p.TotalBet > second {
			second = p.TotalBet
		}
	}
	if top != nil && top.TotalBet > second {
		refund := top.TotalBet - second
		top.TotalBet -= refund
		top.Chips += refund
		if top.Chips > 0 {
			top.AllIn = false
		}
	}
}

func (e *PokerEngine) potWinners(ps *PokerState, pot sidePot) []*PokerPlayer {
	if len(pot.Contenders) == 1 {
		return pot.Contenders
	}

	best := HandRank{Category: -1}
	var winners []*PokerPlayer
	for _, p := range pot.Contenders {
		rank := bestHand(append(append([]Card{}, p.Hole...), ps.Community...))
		switch cmp := rank.Compare(best); {
		case cmp > 0:
			best = rank
			winners = []*PokerPlayer{p}
		case cmp == 0:
			winners = append(winners, p)
		}
	}
	return winners
}

func (e *PokerEngine) finishHand(ps *PokerState) []Event {
	for _, p := range ps.Players {
		p.Bet = 0
		p.TotalBet = 0
		if p.Chips == 0 {
			p.Out = true
		}
	}

	alive := 0
	for _, p := range ps.Players {
		if !p.Out {
			alive++
		}
	}
	if alive <= 1 {
		ps.PhaseName = PokerPhaseEnded
		return []Event{e.publicUpdate(ps, "game-over")}
	}
	return e.startHand(ps)
}

func (e *PokerEngine) deal(ps *PokerState, n int) []Card {
	cards := ps.Deck[:n]
	ps.Deck = ps.Deck[n:]
	return cards
}

func (e *PokerEngine) startHand(ps *PokerState) []Event {
	ps.HandNum++
	ps.PhaseName = PokerPhasePreflop
	ps.Community = nil
	ps.CurrentBet = 0
	ps.MinRaise = ps.BigBlind

	deck := newDeck()
	shuffleDeck(deck, e.rng) // shuffled once per hand
	ps.Deck = deck

	for _, p := range ps.Players {
		p.Bet = 0
		p.TotalBet = 0
		p.Folded = p.Out
		p.AllIn = false
		p.Acted = false
		p.Hole = nil
	}

	ps.DealerIdx = e.nextIdx(ps, ps.DealerIdx, func(p *PokerPlayer) bool { return !p.Out })

	events := make([]Event, 0, len(ps.Players)+1)
	for _, p := range ps.Players {
		if p.Out {
			continue
		}
		p.Hole = e.deal(ps, 2)
		events = append(events, Event{
			Type: network.TypeGameStateUpdate,
			Data: HoleCards{Kind: "hole-cards", Cards: p.Hole},
			To:   p.ID,
		})
	}

	// Blinds. Heads-up the dealer posts the small blind.
	alive := func(p *PokerPlayer) bool { return !p.Out }
	var sbIdx int
	if e.countInHand(ps) == 2 {
		sbIdx = ps.DealerIdx
	} else {
		sbIdx = e.nextIdx(ps, ps.DealerIdx, alive)
	}
	bbIdx := e.nextIdx(ps, sbIdx, alive)

	sb := ps.Players[sbIdx]
	bb := ps.Players[bbIdx]
	e.commit(sb, min64(sb.Chips, ps.SmallBlind))
	e.commit(bb, min64(bb.Chips, ps.BigBlind))
	ps.CurrentBet = ps.BigBlind

	ps.CurrentIdx = e.nextIdx(ps, bbIdx, e.canAct)
	if ps.CurrentIdx < 0 {
		ps.CurrentIdx = bbIdx
	}

	return append([]Event{e.publicUpdate(ps, "hand-start")}, events...)
}

func (e *PokerEngine) publicUpdate(ps *PokerState, kind string) Event {
	views := make([]PokerPlayerView, 0, len(ps.Players))
	for _, p := range ps.Players {
		views = append(views, PokerPlayerView{
			ID: p.ID, Name: p.Name, Chips: p.Chips, Bet: p.Bet,
			Folded: p.Folded, AllIn: p.AllIn, Out: p.Out,
		})
	}

	var current string
	if ps.PhaseName != PokerPhaseEnded && ps.CurrentIdx >= 0 && ps.CurrentIdx < len(ps.Players) {
		current = ps.Players[ps.CurrentIdx].ID
	}

	return Event{
		Type: network.TypeGameStateUpdate,
		Data: PokerUpdate{
			Kind:       kind,
			Phase:      ps.PhaseName,
			HandNum:    ps.HandNum,
			Community:  ps.Community,
			Pot:        ps.Pot(),
			CurrentBet: ps.CurrentBet,
			MinRaise:   ps.MinRaise,
			Current:    current,
			Dealer:     ps.Players[ps.DealerIdx].ID,
			Players:    views,
		},
	}
}

func (e *PokerEngine) OnPlayerLeave(st State, playerID string) (State, []Event) {
	ps, ok := st.(*PokerState)
	if !ok || ps == nil {
		return st, nil
	}

	p := ps.player(playerID)
	if p == nil || p.Out {
		return ps, nil
	}

	wasTurn := ps.PhaseName != PokerPhaseEnded && ps.Players[ps.CurrentIdx].ID == playerID
	wasInHand := e.inHand(p)
	p.Folded = true
	p.Out = true // committed chips stay in the pot

	if ps.PhaseName == PokerPhaseEnded || !wasInHand {
		return ps, nil
	}

	events := []Event{{
		Type: network.TypeGameStateUpdate,
		Data: PokerMove{Kind: "poker-move", PlayerID: playerID, Move: "fold"},
	}}

	if wasTurn || e.roundClosed(ps) || e.countInHand(ps) <= 1 {
		events = append(events, e.afterAction(ps)...)
	}
	return ps, events
}

func (e *PokerEngine) IsTerminal(st State) bool {
	ps, ok := st.(*PokerState)
	return ok && ps != nil && ps.PhaseName == PokerPhaseEnded
}
