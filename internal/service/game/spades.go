package game

import (
	"encoding/json"
	"fmt"

	appErr "masa-service/pkg/errors"
)

type SpadesPhase string

const (
	SpadesDealing  SpadesPhase = "dealing"
	SpadesBidding  SpadesPhase = "bidding"
	SpadesPlaying  SpadesPhase = "playing"
	SpadesRoundEnd SpadesPhase = "roundEnd"
	SpadesGameEnd  SpadesPhase = "gameEnd"
)

type BidKind string

const (
	BidNumber   BidKind = "number"
	BidNil      BidKind = "nil"
	BidBlindNil BidKind = "blind_nil"
)

// Bid is a tagged variant: a trick count, nil, or blind nil.
type Bid struct {
	Kind  BidKind
	Count int
}

// Bids travel on the wire as an integer or the strings "nil" /
// "blind_nil".
func (b Bid) MarshalJSON() ([]byte, error) {
	if b.Kind == BidNumber {
		return json.Marshal(b.Count)
	}
	return json.Marshal(string(b.Kind))
}

func (b *Bid) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*b = Bid{Kind: BidNumber, Count: n}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "nil":
		*b = Bid{Kind: BidNil}
	case "blind_nil":
		*b = Bid{Kind: BidBlindNil}
	default:
		return fmt.Errorf("unknown bid %q", s)
	}
	return nil
}

// Effective is the trick count a bid contributes to the team bid.
func (b Bid) Effective() int {
	if b.Kind == BidNumber {
		return b.Count
	}
	return 0
}

var spadesSuitOrder = []Suit{SuitClubs, SuitDiamonds, SuitHearts, SuitSpades}

const blindNilDeficit = 100

type SpadesEngine struct {
	hands             [4][]Card
	roundNumber       int
	phase             SpadesPhase
	bids              [4]*Bid
	bidTurn           int
	currentTrick      []PlayedCard
	currentPlayer     int
	spadesBroken      bool
	tricksTakenBySeat [4]int
	tricksPlayed      int
	bags              [2]int
	roundScores       [2]int
	cumulativeScores  [2]int
	winThreshold      int
	lastTrick         []PlayedCard
}

func NewSpadesEngine(winThreshold int) *SpadesEngine {
	if winThreshold <= 0 {
		winThreshold = 300
	}
	return &SpadesEngine{
		phase:        SpadesDealing,
		winThreshold: winThreshold,
	}
}

func (e *SpadesEngine) Type() GameType     { return GameSpades }
func (e *SpadesEngine) PhaseName() string  { return string(e.phase) }
func (e *SpadesEngine) Phase() SpadesPhase { return e.phase }
func (e *SpadesEngine) CurrentPlayer() int { return e.currentPlayer }
func (e *SpadesEngine) CurrentBidder() int { return e.bidTurn }
func (e *SpadesEngine) RoundNumber() int   { return e.roundNumber }
func (e *SpadesEngine) GameOver() bool     { return e.phase == SpadesGameEnd }
func (e *SpadesEngine) WinThreshold() int  { return e.winThreshold }

func (e *SpadesEngine) Hand(seat int) []Card {
	return append([]Card(nil), e.hands[seat]...)
}

func (e *SpadesEngine) CumulativeScores() [2]int { return e.cumulativeScores }
func (e *SpadesEngine) RoundScores() [2]int      { return e.roundScores }
func (e *SpadesEngine) Bags() [2]int             { return e.bags }

func (e *SpadesEngine) CurrentTrick() []PlayedCard {
	return append([]PlayedCard{}, e.currentTrick...)
}

func teamOf(seat int) int { return seat % 2 }

func (e *SpadesEngine) Bids() [4]*Bid {
	var out [4]*Bid
	for seat, b := range e.bids {
		if b != nil {
			dup := *b
			out[seat] = &dup
		}
	}
	return out
}

func (e *SpadesEngine) DealNewRound() error {
	return e.dealRound(NewShuffledDeck())
}

func (e *SpadesEngine) dealRound(deck []Card) error {
	if e.phase != SpadesDealing && e.phase != SpadesRoundEnd {
		return appErr.ErrPhase
	}
	e.roundNumber++
	e.hands = Deal(deck, spadesSuitOrder)
	e.bids = [4]*Bid{}
	e.bidTurn = 0
	e.currentTrick = nil
	e.lastTrick = nil
	e.spadesBroken = false
	e.tricksTakenBySeat = [4]int{}
	e.tricksPlayed = 0
	e.roundScores = [2]int{}
	e.phase = SpadesBidding
	return nil
}

// BlindNilAllowed is the eligibility predicate: the seat's team must
// trail by at least 100 and the partner must not have already bid
// blind nil.
func (e *SpadesEngine) BlindNilAllowed(seat int) bool {
	team := teamOf(seat)
	if e.cumulativeScores[1-team]-e.cumulativeScores[team] < blindNilDeficit {
		return false
	}
	partner := (seat + 2) % 4
	if b := e.bids[partner]; b != nil && b.Kind == BidBlindNil {
		return false
	}
	return true
}

func (e *SpadesEngine) SubmitBid(seat int, bid Bid) (bool, error) {
	if e.phase != SpadesBidding {
		return false, appErr.ErrPhase
	}
	if seat != e.bidTurn {
		return false, appErr.ErrNotYourTurn
	}
	switch bid.Kind {
	case BidNumber:
		if bid.Count < 0 || bid.Count > 13 {
			return false, appErr.ErrInvalidBid
		}
	case BidNil:
	case BidBlindNil:
		if !e.BlindNilAllowed(seat) {
			return false, appErr.ErrBlindNilNotAllowed
		}
	default:
		return false, appErr.ErrInvalidBid
	}

	b := bid
	e.bids[seat] = &b
	e.bidTurn++
	if e.bidTurn < 4 {
		return false, nil
	}
	e.phase = SpadesPlaying
	e.currentPlayer = 0
	return true, nil
}

func (e *SpadesEngine) LegalCards(seat int) []Card {
	if e.phase != SpadesPlaying || seat != e.currentPlayer {
		return nil
	}
	hand := e.hands[seat]

	if len(e.currentTrick) == 0 {
		if !e.spadesBroken && !allOfSuit(hand, SuitSpades) {
			out := make([]Card, 0, len(hand))
			for _, c := range hand {
				if c.Suit != SuitSpades {
					out = append(out, c)
				}
			}
			return out
		}
		return append([]Card(nil), hand...)
	}

	ledSuit := e.currentTrick[0].Card.Suit
	if hasSuit(hand, ledSuit) {
		return cardsOfSuit(hand, ledSuit)
	}
	return append([]Card(nil), hand...)
}

func (e *SpadesEngine) PlayCard(seat int, card Card) (PlayResult, error) {
	if e.phase != SpadesPlaying {
		return PlayResult{}, appErr.ErrPhase
	}
	if seat != e.currentPlayer {
		return PlayResult{}, appErr.ErrNotYourTurn
	}
	if !handContains(e.hands[seat], card) {
		return PlayResult{}, appErr.ErrIllegalCard
	}
	if !handContains(e.LegalCards(seat), card) {
		return PlayResult{}, appErr.ErrIllegalCard
	}

	e.hands[seat] = removeCard(e.hands[seat], card)
	e.currentTrick = append(e.currentTrick, PlayedCard{Seat: seat, Card: card})
	if card.Suit == SuitSpades {
		e.spadesBroken = true
	}

	result := PlayResult{Seat: seat, Card: card}

	if len(e.currentTrick) < 4 {
		e.currentPlayer = (e.currentPlayer + 1) % 4
		return result, nil
	}

	winner, err := TrickWinner(e.currentTrick, SuitSpades)
	if err != nil {
		return PlayResult{}, err
	}
	trick := e.currentTrick
	e.currentTrick = nil
	e.lastTrick = trick
	e.tricksTakenBySeat[winner]++
	e.tricksPlayed++
	e.currentPlayer = winner

	result.TrickComplete = true
	result.TrickWinner = winner
	result.LastTrick = trick

	if e.tricksPlayed == 13 {
		e.endRound()
		result.RoundComplete = true
		result.GameOver = e.phase == SpadesGameEnd
	}
	return result, nil
}

func (e *SpadesEngine) TeamTricks() [2]int {
	var out [2]int
	for seat, n := range e.tricksTakenBySeat {
		out[teamOf(seat)] += n
	}
	return out
}

func (e *SpadesEngine) endRound() {
	var bids [4]Bid
	for seat, b := range e.bids {
		bids[seat] = *b
	}
	result := ScoreSpadesRound(bids, e.tricksTakenBySeat, e.bags)
	e.roundScores = result.TeamScores
	e.bags = result.Bags
	for team := 0; team < 2; team++ {
		e.cumulativeScores[team] += e.roundScores[team]
	}

	if e.cumulativeScores[0] >= e.winThreshold || e.cumulativeScores[1] >= e.winThreshold {
		e.phase = SpadesGameEnd
	} else {
		e.phase = SpadesRoundEnd
	}
}

type SpadesRoundResult struct {
	TeamScores [2]int
	Bags       [2]int
}

// ScoreSpadesRound applies nil bonuses, team-bid scoring, and the bag
// carry penalty. bags is the carried-in cumulative bag count per team.
func ScoreSpadesRound(bids [4]Bid, tricksBySeat [4]int, bags [2]int) SpadesRoundResult {
	var scores [2]int
	var teamBid [2]int
	var teamTricks [2]int

	for seat := 0; seat < 4; seat++ {
		team := teamOf(seat)
		teamTricks[team] += tricksBySeat[seat]
		teamBid[team] += bids[seat].Effective()

		switch bids[seat].Kind {
		case BidNil:
			if tricksBySeat[seat] == 0 {
				scores[team] += 50
			} else {
				scores[team] -= 50
			}
		case BidBlindNil:
			if tricksBySeat[seat] == 0 {
				scores[team] += 100
			} else {
				scores[team] -= 100
			}
		}
	}

	for team := 0; team < 2; team++ {
		if teamTricks[team] >= teamBid[team] {
			over := teamTricks[team] - teamBid[team]
			scores[team] += 10*teamBid[team] + over
			bags[team] += over
			for bags[team] >= 10 {
				scores[team] -= 100
				bags[team] -= 10
			}
		} else {
			scores[team] -= 10 * teamBid[team]
		}
	}
	return SpadesRoundResult{TeamScores: scores, Bags: bags}
}

// WinningTeams reports the higher-scoring team, or both on a tie.
func (e *SpadesEngine) WinningTeams() []int {
	switch {
	case e.cumulativeScores[0] > e.cumulativeScores[1]:
		return []int{0}
	case e.cumulativeScores[1] > e.cumulativeScores[0]:
		return []int{1}
	default:
		return []int{0, 1}
	}
}

type SpadesSnapshot struct {
	GameType          GameType     `json:"gameType"`
	Phase             SpadesPhase  `json:"phase"`
	RoundNumber       int          `json:"roundNumber"`
	Bids              [4]*Bid      `json:"bids"`
	CurrentBidder     int          `json:"currentBidder"`
	CurrentPlayer     int          `json:"currentPlayer"`
	CurrentTrick      []PlayedCard `json:"currentTrick"`
	LastTrick         []PlayedCard `json:"lastTrick,omitempty"`
	SpadesBroken      bool         `json:"spadesBroken"`
	TricksTakenBySeat [4]int       `json:"tricksTakenBySeat"`
	TeamTricks        [2]int       `json:"teamTricks"`
	Bags              [2]int       `json:"bags"`
	RoundScores       [2]int       `json:"roundScores"`
	CumulativeScores  [2]int       `json:"cumulativeScores"`
	WinThreshold      int          `json:"winThreshold"`
	HandCounts        [4]int       `json:"handCounts"`
	Seat              int          `json:"seat"`
	Hand              []Card       `json:"hand,omitempty"`
	LegalCards        []Card       `json:"legalCards,omitempty"`
}

func (e *SpadesEngine) Snapshot(viewer int) interface{} {
	snap := SpadesSnapshot{
		GameType:          GameSpades,
		Phase:             e.phase,
		RoundNumber:       e.roundNumber,
		CurrentBidder:     e.bidTurn,
		CurrentPlayer:     e.currentPlayer,
		CurrentTrick:      append([]PlayedCard{}, e.currentTrick...),
		LastTrick:         append([]PlayedCard(nil), e.lastTrick...),
		SpadesBroken:      e.spadesBroken,
		TricksTakenBySeat: e.tricksTakenBySeat,
		TeamTricks:        e.TeamTricks(),
		Bags:              e.bags,
		RoundScores:       e.roundScores,
		CumulativeScores:  e.cumulativeScores,
		WinThreshold:      e.winThreshold,
		Seat:              viewer,
	}
	for seat := 0; seat < 4; seat++ {
		snap.HandCounts[seat] = len(e.hands[seat])
	}
	snap.Bids = e.Bids()
	if viewer >= 0 && viewer < 4 {
		snap.Hand = e.Hand(viewer)
		snap.LegalCards = e.LegalCards(viewer)
	}
	return snap
}
