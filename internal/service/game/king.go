package game

import (
	"math/rand"

	appErr "masa-service/pkg/errors"
)

type KingPhase string

const (
	KingDealing   KingPhase = "dealing"
	KingSelecting KingPhase = "selecting"
	KingPlaying   KingPhase = "playing"
	KingGameEnd   KingPhase = "gameEnd"
	KingPartyEnd  KingPhase = "partyEnd"
)

type ContractKind string

const (
	ContractPenalty ContractKind = "penalty"
	ContractTrump   ContractKind = "trump"
)

type PenaltyName string

const (
	PenaltyEl     PenaltyName = "el"
	PenaltyKupa   PenaltyName = "kupa"
	PenaltyErkek  PenaltyName = "erkek"
	PenaltyKiz    PenaltyName = "kiz"
	PenaltyRifki  PenaltyName = "rifki"
	PenaltySonIki PenaltyName = "sonIki"
)

var penaltyNames = []PenaltyName{
	PenaltyEl, PenaltyKupa, PenaltyErkek, PenaltyKiz, PenaltyRifki, PenaltySonIki,
}

// Contract is a tagged variant: either a penalty contract or a trump
// suit declaration.
type Contract struct {
	Kind    ContractKind `json:"kind"`
	Penalty PenaltyName  `json:"penalty,omitempty"`
	Trump   Suit         `json:"trump,omitempty"`
}

func (c Contract) Valid() bool {
	switch c.Kind {
	case ContractPenalty:
		for _, name := range penaltyNames {
			if c.Penalty == name {
				return true
			}
		}
		return false
	case ContractTrump:
		switch c.Trump {
		case SuitSpades, SuitHearts, SuitDiamonds, SuitClubs:
			return true
		}
		return false
	}
	return false
}

// key identifies the contract in the party-wide usage table.
func (c Contract) key() string {
	if c.Kind == ContractPenalty {
		return string(c.Penalty)
	}
	return "trump_" + string(c.Trump)
}

const (
	kingPartyGames       = 20
	maxPenaltiesPerSeat  = 3
	maxTrumpsPerSeat     = 2
	maxGlobalPerContract = 2
)

var kingSuitOrder = []Suit{SuitClubs, SuitDiamonds, SuitSpades, SuitHearts}

type selectorUsage struct {
	Penalties int `json:"penalties"`
	Trumps    int `json:"trumps"`
}

type KingEngine struct {
	hands            [4][]Card
	gameNumber       int
	phase            KingPhase
	selectorSeat     int
	initialSelector  int
	contract         *Contract
	currentTrick     []PlayedCard
	currentPlayer    int
	tricksTaken      [4][][]PlayedCard
	trickWinners     []int
	tricksPlayed     int
	heartsBroken     bool
	trumpBroken      bool
	usage            [4]selectorUsage
	globalUsage      map[string]int
	contractHistory  []Contract
	gameScores       [4]int
	cumulativeScores [4]int
	lastTrick        []PlayedCard
}

func NewKingEngine(initialSelector int) *KingEngine {
	if initialSelector < 0 || initialSelector > 3 {
		initialSelector = 0
	}
	return &KingEngine{
		phase:           KingDealing,
		initialSelector: initialSelector,
		globalUsage:     make(map[string]int),
	}
}

func (e *KingEngine) Type() GameType     { return GameKing }
func (e *KingEngine) PhaseName() string  { return string(e.phase) }
func (e *KingEngine) Phase() KingPhase   { return e.phase }
func (e *KingEngine) CurrentPlayer() int { return e.currentPlayer }
func (e *KingEngine) GameNumber() int    { return e.gameNumber }
func (e *KingEngine) SelectorSeat() int  { return e.selectorSeat }
func (e *KingEngine) GameOver() bool     { return e.phase == KingPartyEnd }

func (e *KingEngine) Contract() *Contract {
	if e.contract == nil {
		return nil
	}
	c := *e.contract
	return &c
}

func (e *KingEngine) Hand(seat int) []Card {
	return append([]Card(nil), e.hands[seat]...)
}

func (e *KingEngine) CumulativeScores() [4]int { return e.cumulativeScores }
func (e *KingEngine) GameScores() [4]int       { return e.gameScores }

func (e *KingEngine) CurrentTrick() []PlayedCard {
	return append([]PlayedCard{}, e.currentTrick...)
}

// DealNewGame starts the next game of the party: deal, rotate selector
// counter-clockwise, wait for a contract.
func (e *KingEngine) DealNewGame() error {
	return e.dealGame(NewShuffledDeck())
}

func (e *KingEngine) dealGame(deck []Card) error {
	if e.phase != KingDealing && e.phase != KingGameEnd {
		return appErr.ErrPhase
	}
	if e.gameNumber >= kingPartyGames {
		return appErr.ErrPhase
	}
	e.gameNumber++
	e.hands = Deal(deck, kingSuitOrder)
	e.currentTrick = nil
	e.lastTrick = nil
	e.trickWinners = nil
	e.tricksPlayed = 0
	e.tricksTaken = [4][][]PlayedCard{}
	e.heartsBroken = false
	e.trumpBroken = false
	e.contract = nil
	e.gameScores = [4]int{}
	if e.gameNumber == 1 {
		e.selectorSeat = e.initialSelector
	} else {
		e.selectorSeat = (e.selectorSeat + 3) % 4
	}
	e.currentPlayer = e.selectorSeat
	e.phase = KingSelecting
	return nil
}

// AvailableContracts lists what the current selector may still choose,
// honoring both the per-selector quota and the party-wide cap.
func (e *KingEngine) AvailableContracts() []Contract {
	out := []Contract{}
	u := e.usage[e.selectorSeat]
	if u.Penalties < maxPenaltiesPerSeat {
		for _, name := range penaltyNames {
			c := Contract{Kind: ContractPenalty, Penalty: name}
			if e.globalUsage[c.key()] < maxGlobalPerContract {
				out = append(out, c)
			}
		}
	}
	if u.Trumps < maxTrumpsPerSeat {
		for _, s := range Suits {
			c := Contract{Kind: ContractTrump, Trump: s}
			if e.globalUsage[c.key()] < maxGlobalPerContract {
				out = append(out, c)
			}
		}
	}
	return out
}

// AutoSelectContract picks for a timed-out selector: a random available
// penalty first, falling back to a random available trump suit.
func (e *KingEngine) AutoSelectContract() (Contract, error) {
	available := e.AvailableContracts()
	penalties := []Contract{}
	trumps := []Contract{}
	for _, c := range available {
		if c.Kind == ContractPenalty {
			penalties = append(penalties, c)
		} else {
			trumps = append(trumps, c)
		}
	}
	var pick Contract
	switch {
	case len(penalties) > 0:
		pick = penalties[rand.Intn(len(penalties))]
	case len(trumps) > 0:
		pick = trumps[rand.Intn(len(trumps))]
	default:
		return Contract{}, appErr.ErrInternal
	}
	return pick, e.SelectContract(e.selectorSeat, pick)
}

func (e *KingEngine) SelectContract(seat int, c Contract) error {
	if e.phase != KingSelecting {
		return appErr.ErrPhase
	}
	if seat != e.selectorSeat {
		return appErr.ErrNotYourTurn
	}
	if !c.Valid() {
		return appErr.ErrInvalidContract
	}
	u := e.usage[seat]
	if c.Kind == ContractPenalty && u.Penalties >= maxPenaltiesPerSeat {
		return appErr.ErrQuotaExhausted
	}
	if c.Kind == ContractTrump && u.Trumps >= maxTrumpsPerSeat {
		return appErr.ErrQuotaExhausted
	}
	if e.globalUsage[c.key()] >= maxGlobalPerContract {
		return appErr.ErrQuotaExhausted
	}

	if c.Kind == ContractPenalty {
		e.usage[seat].Penalties++
	} else {
		e.usage[seat].Trumps++
	}
	e.globalUsage[c.key()]++
	e.contract = &c
	e.contractHistory = append(e.contractHistory, c)
	e.phase = KingPlaying
	e.currentPlayer = e.selectorSeat
	return nil
}

func (e *KingEngine) ContractHistory() []Contract {
	return append([]Contract(nil), e.contractHistory...)
}

func (e *KingEngine) trumpSuit() Suit {
	if e.contract != nil && e.contract.Kind == ContractTrump {
		return e.contract.Trump
	}
	return ""
}

// LegalCards applies the contract-specific play constraints.
func (e *KingEngine) LegalCards(seat int) []Card {
	if e.phase != KingPlaying || seat != e.currentPlayer {
		return nil
	}
	hand := e.hands[seat]
	c := e.contract
	if c == nil {
		return nil
	}

	if len(e.currentTrick) == 0 {
		return e.legalLeads(hand)
	}

	ledSuit := e.currentTrick[0].Card.Suit
	if hasSuit(hand, ledSuit) {
		suited := cardsOfSuit(hand, ledSuit)
		if c.Kind == ContractPenalty {
			switch c.Penalty {
			case PenaltyErkek:
				if forced := forcedUnderplays(suited, e.currentTrick, ledSuit, "K", "J"); len(forced) > 0 {
					return forced
				}
			case PenaltyKiz:
				if forced := forcedUnderplays(suited, e.currentTrick, ledSuit, "Q"); len(forced) > 0 {
					return forced
				}
			}
		}
		return suited
	}

	// Void in the led suit.
	if c.Kind == ContractPenalty {
		switch c.Penalty {
		case PenaltyErkek:
			if forced := cardsOfRanks(hand, "K", "J"); len(forced) > 0 {
				return forced
			}
		case PenaltyKiz:
			if forced := cardsOfRanks(hand, "Q"); len(forced) > 0 {
				return forced
			}
		case PenaltyRifki:
			if handContains(hand, kingOfHearts) {
				return []Card{kingOfHearts}
			}
			if hearts := cardsOfSuit(hand, SuitHearts); len(hearts) > 0 {
				return hearts
			}
		case PenaltyKupa:
			if hearts := cardsOfSuit(hand, SuitHearts); len(hearts) > 0 {
				return hearts
			}
		}
	}
	return append([]Card(nil), hand...)
}

func (e *KingEngine) legalLeads(hand []Card) []Card {
	c := e.contract
	if c.Kind == ContractTrump && !e.trumpBroken && !allOfSuit(hand, c.Trump) {
		out := make([]Card, 0, len(hand))
		for _, card := range hand {
			if card.Suit != c.Trump {
				out = append(out, card)
			}
		}
		return out
	}
	if c.Kind == ContractPenalty && (c.Penalty == PenaltyKupa || c.Penalty == PenaltyRifki) {
		if !e.heartsBroken && !allOfSuit(hand, SuitHearts) {
			out := make([]Card, 0, len(hand))
			for _, card := range hand {
				if card.Suit != SuitHearts {
					out = append(out, card)
				}
			}
			return out
		}
	}
	return append([]Card(nil), hand...)
}

// forcedUnderplays finds led-suit honors (the given ranks) that sit
// below the table's current highest led-suit card; holding one forces
// playing it.
func forcedUnderplays(suited []Card, trick []PlayedCard, ledSuit Suit, honors ...string) []Card {
	tableHigh := 0
	for _, pc := range trick {
		if pc.Card.Suit == ledSuit && pc.Card.RankValue() > tableHigh {
			tableHigh = pc.Card.RankValue()
		}
	}
	out := []Card{}
	for _, c := range suited {
		for _, r := range honors {
			if c.Rank == r && c.RankValue() < tableHigh {
				out = append(out, c)
			}
		}
	}
	return out
}

func cardsOfRanks(hand []Card, honors ...string) []Card {
	out := []Card{}
	for _, c := range hand {
		for _, r := range honors {
			if c.Rank == r {
				out = append(out, c)
			}
		}
	}
	return out
}

func (e *KingEngine) PlayCard(seat int, card Card) (PlayResult, error) {
	if e.phase != KingPlaying {
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
	if card.Suit == SuitHearts {
		e.heartsBroken = true
	}
	if trump := e.trumpSuit(); trump != "" && card.Suit == trump {
		e.trumpBroken = true
	}

	result := PlayResult{Seat: seat, Card: card}

	if len(e.currentTrick) < 4 {
		// Counter-clockwise rotation.
		e.currentPlayer = (e.currentPlayer + 3) % 4
		return result, nil
	}

	winner, err := TrickWinner(e.currentTrick, e.trumpSuit())
	if err != nil {
		return PlayResult{}, err
	}
	trick := e.currentTrick
	e.currentTrick = nil
	e.lastTrick = trick
	e.tricksTaken[winner] = append(e.tricksTaken[winner], trick)
	e.trickWinners = append(e.trickWinners, winner)
	e.tricksPlayed++
	e.currentPlayer = winner

	result.TrickComplete = true
	result.TrickWinner = winner
	result.LastTrick = trick

	if e.tricksPlayed == 13 || e.contractExhausted() {
		e.endGame()
		result.RoundComplete = true
		result.GameOver = e.phase == KingPartyEnd
	}
	return result, nil
}

// contractExhausted reports whether nothing the contract penalizes can
// still be captured, ending the game early.
func (e *KingEngine) contractExhausted() bool {
	if e.contract == nil || e.contract.Kind != ContractPenalty {
		return false
	}
	switch e.contract.Penalty {
	case PenaltyRifki:
		for _, pc := range e.lastTrick {
			if pc.Card == kingOfHearts {
				return true
			}
		}
		return false
	case PenaltyKupa:
		return !e.anyHandHas(func(c Card) bool { return c.Suit == SuitHearts })
	case PenaltyErkek:
		return !e.anyHandHas(func(c Card) bool { return c.Rank == "K" || c.Rank == "J" })
	case PenaltyKiz:
		return !e.anyHandHas(func(c Card) bool { return c.Rank == "Q" })
	}
	return false
}

func (e *KingEngine) anyHandHas(pred func(Card) bool) bool {
	for seat := 0; seat < 4; seat++ {
		for _, c := range e.hands[seat] {
			if pred(c) {
				return true
			}
		}
	}
	return false
}

func (e *KingEngine) endGame() {
	e.gameScores = ScoreKingGame(*e.contract, e.tricksTaken, e.trickWinners)
	for seat := 0; seat < 4; seat++ {
		e.cumulativeScores[seat] += e.gameScores[seat]
	}
	if e.gameNumber >= kingPartyGames {
		e.phase = KingPartyEnd
	} else {
		e.phase = KingGameEnd
	}
}

// ScoreKingGame computes the per-seat scores of one finished game.
func ScoreKingGame(contract Contract, tricksTaken [4][][]PlayedCard, trickWinners []int) [4]int {
	var scores [4]int
	switch {
	case contract.Kind == ContractTrump:
		for seat := 0; seat < 4; seat++ {
			scores[seat] = 50 * len(tricksTaken[seat])
		}
	case contract.Penalty == PenaltyEl:
		for seat := 0; seat < 4; seat++ {
			scores[seat] = -50 * len(tricksTaken[seat])
		}
	case contract.Penalty == PenaltyKupa:
		for seat := 0; seat < 4; seat++ {
			scores[seat] = -30 * countCaptured(tricksTaken[seat], func(c Card) bool {
				return c.Suit == SuitHearts
			})
		}
	case contract.Penalty == PenaltyErkek:
		for seat := 0; seat < 4; seat++ {
			scores[seat] = -60 * countCaptured(tricksTaken[seat], func(c Card) bool {
				return c.Rank == "K" || c.Rank == "J"
			})
		}
	case contract.Penalty == PenaltyKiz:
		for seat := 0; seat < 4; seat++ {
			scores[seat] = -100 * countCaptured(tricksTaken[seat], func(c Card) bool {
				return c.Rank == "Q"
			})
		}
	case contract.Penalty == PenaltyRifki:
		for seat := 0; seat < 4; seat++ {
			if countCaptured(tricksTaken[seat], func(c Card) bool { return c == kingOfHearts }) > 0 {
				scores[seat] = -320
			}
		}
	case contract.Penalty == PenaltySonIki:
		// The last two completed tricks carry the penalty.
		if n := len(trickWinners); n >= 1 {
			scores[trickWinners[n-1]] -= 180
			if n >= 2 {
				scores[trickWinners[n-2]] -= 180
			}
		}
	}
	return scores
}

func countCaptured(tricks [][]PlayedCard, pred func(Card) bool) int {
	count := 0
	for _, trick := range tricks {
		for _, pc := range trick {
			if pred(pc.Card) {
				count++
			}
		}
	}
	return count
}

// Winners reports the non-negative seats ordered best-first once the
// party has ended. When every seat is negative, the seats tied for the
// highest score are reported instead.
func (e *KingEngine) Winners() []int {
	winners := []int{}
	for seat, s := range e.cumulativeScores {
		if s >= 0 {
			winners = append(winners, seat)
		}
	}
	if len(winners) == 0 {
		max := e.cumulativeScores[0]
		for _, s := range e.cumulativeScores[1:] {
			if s > max {
				max = s
			}
		}
		for seat, s := range e.cumulativeScores {
			if s == max {
				winners = append(winners, seat)
			}
		}
		return winners
	}
	// Strictly higher scores are reported first.
	for i := 0; i < len(winners); i++ {
		for j := i + 1; j < len(winners); j++ {
			if e.cumulativeScores[winners[j]] > e.cumulativeScores[winners[i]] {
				winners[i], winners[j] = winners[j], winners[i]
			}
		}
	}
	return winners
}

type KingSnapshot struct {
	GameType           GameType         `json:"gameType"`
	Phase              KingPhase        `json:"phase"`
	GameNumber         int              `json:"gameNumber"`
	SelectorSeat       int              `json:"selectorSeat"`
	Contract           *Contract        `json:"contract,omitempty"`
	CurrentPlayer      int              `json:"currentPlayer"`
	CurrentTrick       []PlayedCard     `json:"currentTrick"`
	LastTrick          []PlayedCard     `json:"lastTrick,omitempty"`
	TricksPlayed       int              `json:"tricksPlayed"`
	HeartsBroken       bool             `json:"heartsBroken"`
	TrumpBroken        bool             `json:"trumpBroken"`
	GameScores         [4]int           `json:"gameScores"`
	CumulativeScores   [4]int           `json:"cumulativeScores"`
	SelectorUsage      [4]selectorUsage `json:"selectorUsage"`
	ContractHistory    []Contract       `json:"contractHistory"`
	HandCounts         [4]int           `json:"handCounts"`
	Seat               int              `json:"seat"`
	Hand               []Card           `json:"hand,omitempty"`
	LegalCards         []Card           `json:"legalCards,omitempty"`
	AvailableContracts []Contract       `json:"availableContracts,omitempty"`
}

func (e *KingEngine) Snapshot(viewer int) interface{} {
	snap := KingSnapshot{
		GameType:         GameKing,
		Phase:            e.phase,
		GameNumber:       e.gameNumber,
		SelectorSeat:     e.selectorSeat,
		Contract:         e.Contract(),
		CurrentPlayer:    e.currentPlayer,
		CurrentTrick:     append([]PlayedCard{}, e.currentTrick...),
		LastTrick:        append([]PlayedCard(nil), e.lastTrick...),
		TricksPlayed:     e.tricksPlayed,
		HeartsBroken:     e.heartsBroken,
		TrumpBroken:      e.trumpBroken,
		GameScores:       e.gameScores,
		CumulativeScores: e.cumulativeScores,
		SelectorUsage:    e.usage,
		ContractHistory:  e.ContractHistory(),
		Seat:             viewer,
	}
	for seat := 0; seat < 4; seat++ {
		snap.HandCounts[seat] = len(e.hands[seat])
	}
	if viewer >= 0 && viewer < 4 {
		snap.Hand = e.Hand(viewer)
		snap.LegalCards = e.LegalCards(viewer)
		if e.phase == KingSelecting && viewer == e.selectorSeat {
			snap.AvailableContracts = e.AvailableContracts()
		}
	}
	return snap
}
