package game

import (
	appErr "masa-service/pkg/errors"
)

type HeartsPhase string

const (
	HeartsDealing  HeartsPhase = "dealing"
	HeartsPassing  HeartsPhase = "passing"
	HeartsPlaying  HeartsPhase = "playing"
	HeartsRoundEnd HeartsPhase = "roundEnd"
	HeartsGameEnd  HeartsPhase = "gameEnd"
)

type PassDirection string

const (
	PassLeft   PassDirection = "left"
	PassRight  PassDirection = "right"
	PassAcross PassDirection = "across"
	PassHold   PassDirection = "hold"
)

// passOffset maps a direction to the seat delta from giver to receiver.
var passOffset = map[PassDirection]int{
	PassLeft:   1,
	PassRight:  3,
	PassAcross: 2,
	PassHold:   0,
}

var heartsSuitOrder = []Suit{SuitClubs, SuitDiamonds, SuitSpades, SuitHearts}

type HeartsEngine struct {
	hands            [4][]Card
	roundNumber      int
	phase            HeartsPhase
	passDirection    PassDirection
	pendingPasses    map[int][]Card
	currentTrick     []PlayedCard
	currentPlayer    int
	heartsBroken     bool
	tricksTaken      [4][][]PlayedCard
	tricksPlayed     int
	lastTrick        []PlayedCard
	roundScores      [4]int
	cumulativeScores [4]int
	endingScore      int
	moonShooter      int
}

func NewHeartsEngine(endingScore int) *HeartsEngine {
	return &HeartsEngine{
		phase:       HeartsDealing,
		endingScore: endingScore,
		moonShooter: -1,
	}
}

func (e *HeartsEngine) Type() GameType     { return GameHearts }
func (e *HeartsEngine) PhaseName() string  { return string(e.phase) }
func (e *HeartsEngine) Phase() HeartsPhase { return e.phase }
func (e *HeartsEngine) CurrentPlayer() int { return e.currentPlayer }
func (e *HeartsEngine) RoundNumber() int   { return e.roundNumber }
func (e *HeartsEngine) GameOver() bool     { return e.phase == HeartsGameEnd }
func (e *HeartsEngine) EndingScore() int   { return e.endingScore }
func (e *HeartsEngine) HeartsBroken() bool { return e.heartsBroken }

func (e *HeartsEngine) PassDir() PassDirection { return e.passDirection }

func (e *HeartsEngine) Hand(seat int) []Card {
	return append([]Card(nil), e.hands[seat]...)
}

func (e *HeartsEngine) CumulativeScores() [4]int { return e.cumulativeScores }
func (e *HeartsEngine) RoundScores() [4]int      { return e.roundScores }
func (e *HeartsEngine) MoonShooter() int         { return e.moonShooter }

func (e *HeartsEngine) CurrentTrick() []PlayedCard {
	return append([]PlayedCard{}, e.currentTrick...)
}

// DealNewRound shuffles and deals the next round. Callable from dealing
// or roundEnd.
func (e *HeartsEngine) DealNewRound() error {
	return e.dealRound(NewShuffledDeck())
}

func (e *HeartsEngine) dealRound(deck []Card) error {
	if e.phase != HeartsDealing && e.phase != HeartsRoundEnd {
		return appErr.ErrPhase
	}
	e.roundNumber++
	e.hands = Deal(deck, heartsSuitOrder)
	e.currentTrick = nil
	e.lastTrick = nil
	e.heartsBroken = false
	e.tricksPlayed = 0
	e.tricksTaken = [4][][]PlayedCard{}
	e.roundScores = [4]int{}
	e.moonShooter = -1
	e.pendingPasses = make(map[int][]Card)

	switch e.roundNumber % 4 {
	case 1:
		e.passDirection = PassLeft
	case 2:
		e.passDirection = PassRight
	case 3:
		e.passDirection = PassAcross
	default:
		e.passDirection = PassHold
	}

	if e.passDirection == PassHold {
		e.phase = HeartsPlaying
		e.currentPlayer = e.seatHolding(twoOfClubs)
	} else {
		e.phase = HeartsPassing
	}
	return nil
}

func (e *HeartsEngine) seatHolding(c Card) int {
	for seat := 0; seat < 4; seat++ {
		if handContains(e.hands[seat], c) {
			return seat
		}
	}
	return 0
}

// PassSubmitted reports which seats have already chosen their pass.
func (e *HeartsEngine) PassSubmitted() [4]bool {
	var out [4]bool
	for seat := range e.pendingPasses {
		out[seat] = true
	}
	return out
}

// SubmitPass records one seat's three pass cards. When the fourth seat
// submits, the exchange happens atomically and play begins.
func (e *HeartsEngine) SubmitPass(seat int, cards []Card) (bool, error) {
	if e.phase != HeartsPassing {
		return false, appErr.ErrPhase
	}
	if _, done := e.pendingPasses[seat]; done {
		return false, appErr.ErrNotYourTurn
	}
	if len(cards) != 3 {
		return false, appErr.ErrBadPass
	}
	seen := map[Card]bool{}
	for _, c := range cards {
		if seen[c] || !handContains(e.hands[seat], c) {
			return false, appErr.ErrBadPass
		}
		seen[c] = true
	}
	e.pendingPasses[seat] = append([]Card(nil), cards...)

	if len(e.pendingPasses) < 4 {
		return false, nil
	}

	offset := passOffset[e.passDirection]
	for giver := 0; giver < 4; giver++ {
		for _, c := range e.pendingPasses[giver] {
			e.hands[giver] = removeCard(e.hands[giver], c)
		}
	}
	for giver := 0; giver < 4; giver++ {
		receiver := (giver + offset) % 4
		e.hands[receiver] = append(e.hands[receiver], e.pendingPasses[giver]...)
	}
	for seat := 0; seat < 4; seat++ {
		SortHand(e.hands[seat], heartsSuitOrder)
	}
	e.pendingPasses = make(map[int][]Card)
	e.phase = HeartsPlaying
	e.currentPlayer = e.seatHolding(twoOfClubs)
	return true, nil
}

// LegalCards returns the playable subset of a seat's hand in the current
// position. Empty unless it is that seat's turn in the playing phase.
func (e *HeartsEngine) LegalCards(seat int) []Card {
	if e.phase != HeartsPlaying || seat != e.currentPlayer {
		return nil
	}
	hand := e.hands[seat]

	// Opening lead of the round is forced.
	if e.tricksPlayed == 0 && len(e.currentTrick) == 0 {
		if handContains(hand, twoOfClubs) {
			return []Card{twoOfClubs}
		}
		return nil
	}

	if len(e.currentTrick) == 0 {
		if !e.heartsBroken && !allOfSuit(hand, SuitHearts) {
			out := make([]Card, 0, len(hand))
			for _, c := range hand {
				if c.Suit != SuitHearts {
					out = append(out, c)
				}
			}
			return out
		}
		return append([]Card(nil), hand...)
	}

	ledSuit := e.currentTrick[0].Card.Suit
	candidates := hand
	if hasSuit(hand, ledSuit) {
		candidates = cardsOfSuit(hand, ledSuit)
	}

	// No points on the first trick unless the hand forces it.
	if e.tricksPlayed == 0 {
		safe := make([]Card, 0, len(candidates))
		for _, c := range candidates {
			if c.Suit == SuitHearts || c == queenOfSpades {
				continue
			}
			safe = append(safe, c)
		}
		if len(safe) > 0 {
			return safe
		}
	}
	return append([]Card(nil), candidates...)
}

func (e *HeartsEngine) PlayCard(seat int, card Card) (PlayResult, error) {
	if e.phase != HeartsPlaying {
		return PlayResult{}, appErr.ErrPhase
	}
	if seat != e.currentPlayer {
		return PlayResult{}, appErr.ErrNotYourTurn
	}
	if !handContains(e.hands[seat], card) {
		return PlayResult{}, appErr.ErrIllegalCard
	}
	legal := e.LegalCards(seat)
	if !handContains(legal, card) {
		return PlayResult{}, appErr.ErrIllegalCard
	}

	e.hands[seat] = removeCard(e.hands[seat], card)
	e.currentTrick = append(e.currentTrick, PlayedCard{Seat: seat, Card: card})
	if card.Suit == SuitHearts {
		e.heartsBroken = true
	}

	result := PlayResult{Seat: seat, Card: card}

	if len(e.currentTrick) < 4 {
		e.currentPlayer = (e.currentPlayer + 1) % 4
		return result, nil
	}

	winner, err := TrickWinner(e.currentTrick, "")
	if err != nil {
		return PlayResult{}, err
	}
	trick := e.currentTrick
	e.currentTrick = nil
	e.lastTrick = trick

	e.tricksTaken[winner] = append(e.tricksTaken[winner], trick)
	e.tricksPlayed++
	e.currentPlayer = winner

	result.TrickComplete = true
	result.TrickWinner = winner
	result.TrickPoints = trickPoints(trick)
	result.LastTrick = trick

	if e.tricksPlayed == 13 {
		e.endRound()
		result.RoundComplete = true
		result.GameOver = e.phase == HeartsGameEnd
	}
	return result, nil
}

func trickPoints(trick []PlayedCard) int {
	points := 0
	for _, pc := range trick {
		if pc.Card.Suit == SuitHearts {
			points++
		}
		if pc.Card == queenOfSpades {
			points += 13
		}
	}
	return points
}

func (e *HeartsEngine) endRound() {
	var raw [4]int
	for seat := 0; seat < 4; seat++ {
		for _, trick := range e.tricksTaken[seat] {
			raw[seat] += trickPoints(trick)
		}
	}
	e.roundScores, e.moonShooter = ApplyMoonShot(raw, e.cumulativeScores)
	for seat := 0; seat < 4; seat++ {
		e.cumulativeScores[seat] += e.roundScores[seat]
	}

	max := e.cumulativeScores[0]
	for _, s := range e.cumulativeScores[1:] {
		if s > max {
			max = s
		}
	}
	if max >= e.endingScore {
		e.phase = HeartsGameEnd
	} else {
		e.phase = HeartsRoundEnd
	}
}

// ApplyMoonShot resolves a 26-point round. Option A gives the shooter 0
// and everyone else 26; option B charges the shooter 26. The option
// keeping the shooter's hypothetical total at or below the minimum of
// the others applies; ties resolve to A.
func ApplyMoonShot(raw [4]int, cumulative [4]int) ([4]int, int) {
	shooter := -1
	for seat, pts := range raw {
		if pts == 26 {
			shooter = seat
		}
	}
	if shooter == -1 {
		return raw, -1
	}

	var optionA [4]int
	for seat := range optionA {
		if seat == shooter {
			optionA[seat] = 0
		} else {
			optionA[seat] = 26
		}
	}

	shooterTotalA := cumulative[shooter]
	othersMinA := -1
	for seat := 0; seat < 4; seat++ {
		if seat == shooter {
			continue
		}
		total := cumulative[seat] + optionA[seat]
		if othersMinA == -1 || total < othersMinA {
			othersMinA = total
		}
	}
	if shooterTotalA <= othersMinA {
		return optionA, shooter
	}

	shooterTotalB := cumulative[shooter] + 26
	othersMinB := -1
	for seat := 0; seat < 4; seat++ {
		if seat == shooter {
			continue
		}
		if othersMinB == -1 || cumulative[seat] < othersMinB {
			othersMinB = cumulative[seat]
		}
	}
	if shooterTotalB <= othersMinB {
		return raw, shooter
	}
	return optionA, shooter
}

// Winners returns the seats tied for the lowest cumulative score once
// the game has ended.
func (e *HeartsEngine) Winners() []int {
	min := e.cumulativeScores[0]
	for _, s := range e.cumulativeScores[1:] {
		if s < min {
			min = s
		}
	}
	winners := []int{}
	for seat, s := range e.cumulativeScores {
		if s == min {
			winners = append(winners, seat)
		}
	}
	return winners
}

// PointCardsTaken lists each seat's captured point cards this round.
func (e *HeartsEngine) PointCardsTaken() [4][]Card {
	var out [4][]Card
	for seat := 0; seat < 4; seat++ {
		out[seat] = []Card{}
		for _, trick := range e.tricksTaken[seat] {
			for _, pc := range trick {
				if pc.Card.Suit == SuitHearts || pc.Card == queenOfSpades {
					out[seat] = append(out[seat], pc.Card)
				}
			}
		}
	}
	return out
}

type HeartsSnapshot struct {
	GameType         GameType      `json:"gameType"`
	Phase            HeartsPhase   `json:"phase"`
	RoundNumber      int           `json:"roundNumber"`
	PassDirection    PassDirection `json:"passDirection"`
	CurrentPlayer    int           `json:"currentPlayer"`
	HeartsBroken     bool          `json:"heartsBroken"`
	CurrentTrick     []PlayedCard  `json:"currentTrick"`
	LastTrick        []PlayedCard  `json:"lastTrick,omitempty"`
	TricksPlayed     int           `json:"tricksPlayed"`
	RoundScores      [4]int        `json:"roundScores"`
	CumulativeScores [4]int        `json:"cumulativeScores"`
	EndingScore      int           `json:"endingScore"`
	HandCounts       [4]int        `json:"handCounts"`
	PassSubmitted    [4]bool       `json:"passSubmitted"`
	Seat             int           `json:"seat"`
	Hand             []Card        `json:"hand,omitempty"`
	LegalCards       []Card        `json:"legalCards,omitempty"`
}

func (e *HeartsEngine) Snapshot(viewer int) interface{} {
	snap := HeartsSnapshot{
		GameType:         GameHearts,
		Phase:            e.phase,
		RoundNumber:      e.roundNumber,
		PassDirection:    e.passDirection,
		CurrentPlayer:    e.currentPlayer,
		HeartsBroken:     e.heartsBroken,
		CurrentTrick:     append([]PlayedCard{}, e.currentTrick...),
		LastTrick:        append([]PlayedCard(nil), e.lastTrick...),
		TricksPlayed:     e.tricksPlayed,
		RoundScores:      e.roundScores,
		CumulativeScores: e.cumulativeScores,
		EndingScore:      e.endingScore,
		PassSubmitted:    e.PassSubmitted(),
		Seat:             viewer,
	}
	for seat := 0; seat < 4; seat++ {
		snap.HandCounts[seat] = len(e.hands[seat])
	}
	if viewer >= 0 && viewer < 4 {
		snap.Hand = e.Hand(viewer)
		snap.LegalCards = e.LegalCards(viewer)
	}
	return snap
}
