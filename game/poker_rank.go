package game

import (
	"math/rand"
	"sort"
)

// Card ranks run 2..14 with ace high; suits are 0..3 (clubs, diamonds,
// hearts, spades).
type Card struct {
	Rank int `json:"rank"`
	Suit int `json:"suit"`
}

var suitNames = [4]string{"c", "d", "h", "s"}
var rankNames = map[int]string{
	2: "2", 3: "3", 4: "4", 5: "5", 6: "6", 7: "7", 8: "8", 9: "9",
	10: "T", 11: "J", 12: "Q", 13: "K", 14: "A",
}

func (c Card) String() string {
	return rankNames[c.Rank] + suitNames[c.Suit]
}

func newDeck() []Card {
	deck := make([]Card, 0, 52)
	for suit := 0; suit < 4; suit++ {
		for rank := 2; rank <= 14; rank++ {
			deck = append(deck, Card{Rank: rank, Suit: suit})
		}
	}
	return deck
}

func shuffleDeck(deck []Card, rng *rand.Rand) {
	rng.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})
}

// Hand categories, strongest first.
const (
	handStraightFlush = 8
	handFourOfAKind   = 7
	handFullHouse     = 6
	handFlush         = 5
	handStraight      = 4
	handThreeOfAKind  = 3
	handTwoPair       = 2
	handOnePair       = 1
	handHighCard      = 0
)

var handCategoryNames = map[int]string{
	handStraightFlush: "straight-flush",
	handFourOfAKind:   "four-of-a-kind",
	handFullHouse:     "full-house",
	handFlush:         "flush",
	handStraight:      "straight",
	handThreeOfAKind:  "three-of-a-kind",
	handTwoPair:       "two-pair",
	handOnePair:       "pair",
	handHighCard:      "high-card",
}

// HandRank orders poker hands. Category decides first; Tiebreak holds
// the ranks that matter, most significant first.
type HandRank struct {
	Category int
	Tiebreak [5]int
}

func (h HandRank) Name() string { return handCategoryNames[h.Category] }

// Compare returns >0 if h beats other, <0 if it loses, 0 on a tie.
func (h HandRank) Compare(other HandRank) int {
	if h.Category != other.Category {
		return h.Category - other.Category
	}
	for i := 0; i < 5; i++ {
		if h.Tiebreak[i] != other.Tiebreak[i] {
			return h.Tiebreak[i] - other.Tiebreak[i]
		}
	}
	return 0
}

// bestHand evaluates the best five-card hand out of up to seven cards.
func bestHand(cards []Card) HandRank {
	if len(cards) <= 5 {
		return evalFive(cards)
	}

	best := HandRank{Category: -1}
	n := len(cards)
	pick := make([]Card, 0, 5)

	var recurse func(start, need int)
	recurse = func(start, need int) {
		if need == 0 {
			rank := evalFive(pick)
			if rank.Compare(best) > 0 {
				best = rank
			}
			return
		}
		for i := start; i <= n-need; i++ {
			pick = append(pick, cards[i])
			recurse(i+1, need-1)
			pick = pick[:len(pick)-1]
		}
	}
	recurse(0, 5)
	return best
}

func evalFive(cards []Card) HandRank {
	ranks := make([]int, len(cards))
	flush := true
	for i, c := range cards {
		ranks[i] = c.Rank
		if c.Suit != cards[0].Suit {
			flush = false
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(ranks)))

	straightHigh := straightHighCard(ranks)

	counts := make(map[int]int)
	for _, r := range ranks {
		counts[r]++
	}
	// Group ranks by multiplicity, higher counts first, then higher rank.
	type group struct{ rank, count int }
	groups := make([]group, 0, len(counts))
	for r, c := range counts {
		groups = append(groups, group{r, c})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].count != groups[j].count {
			return groups[i].count > groups[j].count
		}
		return groups[i].rank > groups[j].rank
	})

	var tiebreak [5]int
	idx := 0
	for _, g := range groups {
		for k := 0; k < g.count && idx < 5; k++ {
			tiebreak[idx] = g.rank
			idx++
		}
	}

	switch {
	case flush && straightHigh > 0:
		return HandRank{handStraightFlush, [5]int{straightHigh}}
	case groups[0].count == 4:
		return HandRank{handFourOfAKind, tiebreak}
	case groups[0].count == 3 && len(groups) > 1 && groups[1].count >= 2:
		return HandRank{handFullHouse, tiebreak}
	case flush:
		return HandRank{handFlush, tiebreak}
	case straightHigh > 0:
		return HandRank{handStraight, [5]int{straightHigh}}
	case groups[0].count == 3:
		return HandRank{handThreeOfAKind, tiebreak}
	case groups[0].count == 2 && len(groups) > 1 && groups[1].count == 2:
		return HandRank{handTwoPair, tiebreak}
	case groups[0].count == 2:
		return HandRank{handOnePair, tiebreak}
	default:
		return HandRank{handHighCard, tiebreak}
	}
}

// straightHighCard returns the high card of a straight formed by the
// five distinct ranks (sorted descending), or 0. The wheel (A-5-4-3-2)
// counts with a high card of 5.
func straightHighCard(sorted []int) int {
	if len(sorted) != 5 {
		return 0
	}
	distinct := true
	for i := 1; i < 5; i++ {
		if sorted[i] == sorted[i-1] {
			distinct = false
			break
		}
	}
	if !distinct {
		return 0
	}
	if sorted[0]-sorted[4] == 4 {
		return sorted[0]
	}
	if sorted[0] == 14 && sorted[1] == 5 && sorted[4] == 2 {
		return 5
	}
	return 0
}

// sidePot is one slice of the total pot with the players eligible to win
// it. Pots are built from per-hand contribution levels so short all-in
// stacks only compete for what they covered.
type sidePot struct {
	Amount     int64
	Contenders []*PokerPlayer
}

func buildSidePots(players []*PokerPlayer) []sidePot {
	levels := make([]int64, 0, len(players))
	seen := make(map[int64]bool)
	for _, p := range players {
		if p.TotalBet > 0 && !seen[p.TotalBet] {
			seen[p.TotalBet] = true
			levels = append(levels, p.TotalBet)
		}
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i] < levels[j] })

	var pots []sidePot
	var prev int64
	for _, level := range levels {
		var amount int64
		var contenders []*PokerPlayer
		for _, p := range players {
			contribution := min64(p.TotalBet, level) - min64(p.TotalBet, prev)
			amount += contribution
			if !p.Folded && p.TotalBet >= level {
				contenders = append(contenders, p)
			}
		}
		if amount > 0 {
			pots = append(pots, sidePot{Amount: amount, Contenders: contenders})
		}
		prev = level
	}
	return pots
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
