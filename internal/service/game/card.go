package game

import (
	"math/rand"
	"sort"

	appErr "masa-service/pkg/errors"
)

type Suit string

const (
	SuitSpades   Suit = "S"
	SuitHearts   Suit = "H"
	SuitDiamonds Suit = "D"
	SuitClubs    Suit = "C"
)

var Suits = []Suit{SuitSpades, SuitHearts, SuitDiamonds, SuitClubs}

// Card is a value type. Two cards with the same suit and rank are
// interchangeable.
type Card struct {
	Suit Suit   `json:"suit"`
	Rank string `json:"rank"` // "2".."10", "J", "Q", "K", "A"
}

var rankValue = map[string]int{
	"2": 2, "3": 3, "4": 4, "5": 5, "6": 6, "7": 7, "8": 8, "9": 9,
	"10": 10, "J": 11, "Q": 12, "K": 13, "A": 14,
}

var ranks = []string{"2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K", "A"}

func (c Card) RankValue() int {
	return rankValue[c.Rank]
}

func (c Card) Valid() bool {
	if _, ok := rankValue[c.Rank]; !ok {
		return false
	}
	switch c.Suit {
	case SuitSpades, SuitHearts, SuitDiamonds, SuitClubs:
		return true
	}
	return false
}

var (
	queenOfSpades = Card{Suit: SuitSpades, Rank: "Q"}
	twoOfClubs    = Card{Suit: SuitClubs, Rank: "2"}
	kingOfHearts  = Card{Suit: SuitHearts, Rank: "K"}
)

// PlayedCard is a card on the table together with the seat that played it.
type PlayedCard struct {
	Seat int  `json:"seat"`
	Card Card `json:"card"`
}

func newDeck() []Card {
	deck := make([]Card, 0, 52)
	for _, s := range Suits {
		for _, r := range ranks {
			deck = append(deck, Card{Suit: s, Rank: r})
		}
	}
	return deck
}

// NewShuffledDeck returns a uniformly shuffled 52-card deck.
func NewShuffledDeck() []Card {
	deck := newDeck()
	rand.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})
	return deck
}

// Deal splits a 52-card deck into four 13-card hands, round-robin by
// index, and sorts each hand with the given suit order.
func Deal(deck []Card, suitOrder []Suit) [4][]Card {
	var hands [4][]Card
	for i, c := range deck {
		hands[i%4] = append(hands[i%4], c)
	}
	for i := range hands {
		SortHand(hands[i], suitOrder)
	}
	return hands
}

// SortHand sorts in place: primary by position of the suit in suitOrder,
// secondary by rank ascending.
func SortHand(hand []Card, suitOrder []Suit) {
	pos := make(map[Suit]int, len(suitOrder))
	for i, s := range suitOrder {
		pos[s] = i
	}
	sort.Slice(hand, func(i, j int) bool {
		if hand[i].Suit != hand[j].Suit {
			return pos[hand[i].Suit] < pos[hand[j].Suit]
		}
		return hand[i].RankValue() < hand[j].RankValue()
	})
}

// TrickWinner resolves a completed 4-card trick. If trump is non-empty
// and the trick contains trump cards, the highest trump wins; otherwise
// the highest card of the led suit wins.
func TrickWinner(trick []PlayedCard, trump Suit) (int, error) {
	if len(trick) != 4 {
		return 0, appErr.ErrInternal
	}
	ledSuit := trick[0].Card.Suit

	if trump != "" {
		best := -1
		winner := 0
		for _, pc := range trick {
			if pc.Card.Suit == trump && pc.Card.RankValue() > best {
				best = pc.Card.RankValue()
				winner = pc.Seat
			}
		}
		if best >= 0 {
			return winner, nil
		}
	}

	best := -1
	winner := 0
	for _, pc := range trick {
		if pc.Card.Suit == ledSuit && pc.Card.RankValue() > best {
			best = pc.Card.RankValue()
			winner = pc.Seat
		}
	}
	return winner, nil
}

func handContains(hand []Card, c Card) bool {
	for _, h := range hand {
		if h == c {
			return true
		}
	}
	return false
}

func removeCard(hand []Card, c Card) []Card {
	for i, h := range hand {
		if h == c {
			return append(hand[:i], hand[i+1:]...)
		}
	}
	return hand
}

func hasSuit(hand []Card, s Suit) bool {
	for _, c := range hand {
		if c.Suit == s {
			return true
		}
	}
	return false
}

func cardsOfSuit(hand []Card, s Suit) []Card {
	out := make([]Card, 0, len(hand))
	for _, c := range hand {
		if c.Suit == s {
			out = append(out, c)
		}
	}
	return out
}

func allOfSuit(hand []Card, s Suit) bool {
	for _, c := range hand {
		if c.Suit != s {
			return false
		}
	}
	return len(hand) > 0
}

// LowestCard picks the lowest-ranked card from a non-empty set; used for
// timeout auto-play.
func LowestCard(cards []Card) Card {
	best := cards[0]
	for _, c := range cards[1:] {
		if c.RankValue() < best.RankValue() {
			best = c
		}
	}
	return best
}
