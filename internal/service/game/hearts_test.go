package game

import (
	"errors"
	"testing"

	appErr "masa-service/pkg/errors"
)

// stackedDeck builds a deck that deals round-robin into the given hands.
func stackedDeck(t *testing.T, hands [4][]Card) []Card {
	t.Helper()
	deck := make([]Card, 0, 52)
	for i := 0; i < 13; i++ {
		for seat := 0; seat < 4; seat++ {
			deck = append(deck, hands[seat][i])
		}
	}
	if len(deck) != 52 {
		t.Fatalf("stacked deck has %d cards", len(deck))
	}
	return deck
}

// suitPerSeat deals each seat one entire suit: 0 spades, 1 hearts,
// 2 diamonds, 3 clubs.
func suitPerSeat(t *testing.T) [4][]Card {
	t.Helper()
	var hands [4][]Card
	for seat, s := range []Suit{SuitSpades, SuitHearts, SuitDiamonds, SuitClubs} {
		for _, r := range ranks {
			hands[seat] = append(hands[seat], Card{Suit: s, Rank: r})
		}
	}
	return hands
}

func newHoldRoundHearts(t *testing.T, hands [4][]Card) *HeartsEngine {
	t.Helper()
	e := NewHeartsEngine(50)
	e.roundNumber = 3 // next deal is a hold round
	if err := e.dealRound(stackedDeck(t, hands)); err != nil {
		t.Fatalf("deal failed: %v", err)
	}
	return e
}

func TestHeartsPassDirections(t *testing.T) {
	tests := []struct {
		round     int
		direction PassDirection
	}{
		{1, PassLeft},
		{2, PassRight},
		{3, PassAcross},
		{4, PassHold},
		{5, PassLeft},
	}
	for _, tt := range tests {
		e := NewHeartsEngine(50)
		e.roundNumber = tt.round - 1
		if err := e.DealNewRound(); err != nil {
			t.Fatalf("round %d: deal failed: %v", tt.round, err)
		}
		if e.passDirection != tt.direction {
			t.Fatalf("round %d: expected %s, got %s", tt.round, tt.direction, e.passDirection)
		}
	}
}

func TestHeartsPassExchange(t *testing.T) {
	e := NewHeartsEngine(50)
	if err := e.dealRound(stackedDeck(t, suitPerSeat(t))); err != nil {
		t.Fatalf("deal failed: %v", err)
	}
	if e.phase != HeartsPassing || e.passDirection != PassLeft {
		t.Fatalf("expected left-pass round, got %s/%s", e.phase, e.passDirection)
	}

	var passes [4][]Card
	for seat := 0; seat < 4; seat++ {
		passes[seat] = append([]Card(nil), e.hands[seat][:3]...)
		done, err := e.SubmitPass(seat, passes[seat])
		if err != nil {
			t.Fatalf("seat %d: pass failed: %v", seat, err)
		}
		if done != (seat == 3) {
			t.Fatalf("seat %d: unexpected done=%v", seat, done)
		}
	}

	if e.phase != HeartsPlaying {
		t.Fatalf("expected playing after exchange, got %s", e.phase)
	}
	for giver := 0; giver < 4; giver++ {
		receiver := (giver + 1) % 4
		for _, c := range passes[giver] {
			if !handContains(e.hands[receiver], c) {
				t.Fatalf("card %+v not delivered to seat %d", c, receiver)
			}
			if handContains(e.hands[giver], c) {
				t.Fatalf("card %+v still with giver %d", c, giver)
			}
		}
		if len(e.hands[giver]) != 13 {
			t.Fatalf("seat %d: expected 13 cards after exchange, got %d", giver, len(e.hands[giver]))
		}
	}
}

func TestHeartsPassValidation(t *testing.T) {
	e := NewHeartsEngine(50)
	if err := e.dealRound(stackedDeck(t, suitPerSeat(t))); err != nil {
		t.Fatalf("deal failed: %v", err)
	}
	hand := e.hands[0]

	if _, err := e.SubmitPass(0, hand[:2]); !errors.Is(err, appErr.ErrBadPass) {
		t.Fatalf("short pass: expected ErrBadPass, got %v", err)
	}
	if _, err := e.SubmitPass(0, []Card{hand[0], hand[0], hand[1]}); !errors.Is(err, appErr.ErrBadPass) {
		t.Fatalf("duplicate pass: expected ErrBadPass, got %v", err)
	}
	notMine := e.hands[1][0]
	if _, err := e.SubmitPass(0, []Card{hand[0], hand[1], notMine}); !errors.Is(err, appErr.ErrBadPass) {
		t.Fatalf("foreign card: expected ErrBadPass, got %v", err)
	}

	if _, err := e.SubmitPass(0, hand[:3]); err != nil {
		t.Fatalf("valid pass failed: %v", err)
	}
	if _, err := e.SubmitPass(0, hand[3:6]); !errors.Is(err, appErr.ErrNotYourTurn) {
		t.Fatalf("double pass: expected ErrNotYourTurn, got %v", err)
	}
}

func TestHeartsOpeningLeadForced(t *testing.T) {
	e := newHoldRoundHearts(t, suitPerSeat(t))
	if e.currentPlayer != 3 {
		t.Fatalf("expected 2C holder (seat 3) to lead, got %d", e.currentPlayer)
	}

	legal := e.LegalCards(3)
	if len(legal) != 1 || legal[0] != twoOfClubs {
		t.Fatalf("expected only 2C legal, got %v", legal)
	}
	if _, err := e.PlayCard(3, Card{SuitClubs, "A"}); !errors.Is(err, appErr.ErrIllegalCard) {
		t.Fatalf("expected ErrIllegalCard, got %v", err)
	}
	if _, err := e.PlayCard(3, twoOfClubs); err != nil {
		t.Fatalf("2C lead failed: %v", err)
	}
}

func TestHeartsFirstTrickRestrictions(t *testing.T) {
	e := newHoldRoundHearts(t, suitPerSeat(t))
	if _, err := e.PlayCard(3, twoOfClubs); err != nil {
		t.Fatalf("2C lead failed: %v", err)
	}

	// Seat 0 holds all spades: void in clubs, must not drop QS while
	// other spades remain.
	legal := e.LegalCards(0)
	if len(legal) != 12 {
		t.Fatalf("expected 12 safe spades, got %d", len(legal))
	}
	for _, c := range legal {
		if c == queenOfSpades {
			t.Fatalf("QS offered on first trick")
		}
	}
	if _, err := e.PlayCard(0, queenOfSpades); !errors.Is(err, appErr.ErrIllegalCard) {
		t.Fatalf("expected ErrIllegalCard for QS, got %v", err)
	}
	if _, err := e.PlayCard(0, Card{SuitSpades, "3"}); err != nil {
		t.Fatalf("spade discard failed: %v", err)
	}

	// Seat 1 holds only hearts: the restriction yields.
	legal = e.LegalCards(1)
	if len(legal) != 13 {
		t.Fatalf("all-hearts hand should play anything, got %d legal", len(legal))
	}
	if _, err := e.PlayCard(1, Card{SuitHearts, "2"}); err != nil {
		t.Fatalf("forced heart failed: %v", err)
	}
}

func TestHeartsCannotLeadHeartsUntilBroken(t *testing.T) {
	e := newHoldRoundHearts(t, suitPerSeat(t))

	if _, err := e.PlayCard(3, twoOfClubs); err != nil {
		t.Fatalf("lead failed: %v", err)
	}
	if _, err := e.PlayCard(0, Card{SuitSpades, "2"}); err != nil {
		t.Fatalf("seat 0 discard failed: %v", err)
	}
	if _, err := e.PlayCard(1, Card{SuitHearts, "2"}); err != nil {
		t.Fatalf("seat 1 discard failed: %v", err)
	}
	res, err := e.PlayCard(2, Card{SuitDiamonds, "2"})
	if err != nil {
		t.Fatalf("seat 2 discard failed: %v", err)
	}
	if !res.TrickComplete || res.TrickWinner != 3 {
		t.Fatalf("expected seat 3 to win the trick, got %+v", res)
	}

	// A heart was discarded, so hearts are broken and may be led.
	if !e.heartsBroken {
		t.Fatalf("expected hearts broken after heart discard")
	}

	// Rig the winner a heart and rewind the broken flag to check the
	// lead restriction in isolation.
	heart := Card{Suit: SuitHearts, Rank: "A"}
	e.hands[1] = removeCard(e.hands[1], heart)
	e.hands[3] = append(e.hands[3], heart)
	e.heartsBroken = false

	legal := e.LegalCards(3)
	for _, c := range legal {
		if c.Suit == SuitHearts {
			t.Fatalf("heart lead offered before break")
		}
	}
	if _, err := e.PlayCard(3, heart); !errors.Is(err, appErr.ErrIllegalCard) {
		t.Fatalf("expected ErrIllegalCard leading hearts, got %v", err)
	}
}

func playFullHeartsRound(t *testing.T, e *HeartsEngine) {
	t.Helper()
	for e.phase == HeartsPlaying {
		seat := e.currentPlayer
		legal := e.LegalCards(seat)
		if len(legal) == 0 {
			t.Fatalf("no legal cards for seat %d", seat)
		}
		if _, err := e.PlayCard(seat, legal[0]); err != nil {
			t.Fatalf("seat %d: play failed: %v", seat, err)
		}
	}
}

func TestHeartsRoundScoresSumTo26(t *testing.T) {
	e := newHoldRoundHearts(t, suitPerSeat(t))
	playFullHeartsRound(t, e)

	if e.phase != HeartsRoundEnd && e.phase != HeartsGameEnd {
		t.Fatalf("expected round over, got %s", e.phase)
	}
	// Seat 1 held every heart; without a moon shot the raw totals add to
	// 26. With this deal seat 3 wins every club-led trick and sweeps all
	// 26 points, so the adjusted scores add to 3*26 instead.
	want := 26
	if e.moonShooter >= 0 {
		want = 78
	}
	total := 0
	for _, s := range e.roundScores {
		total += s
	}
	if total != want {
		t.Fatalf("expected %d total points, got %d (%v)", want, total, e.roundScores)
	}
}

func TestHeartsCardConservation(t *testing.T) {
	e := newHoldRoundHearts(t, suitPerSeat(t))
	for i := 0; i < 20 && e.phase == HeartsPlaying; i++ {
		seat := e.currentPlayer
		legal := e.LegalCards(seat)
		if _, err := e.PlayCard(seat, legal[0]); err != nil {
			t.Fatalf("play failed: %v", err)
		}

		total := len(e.currentTrick)
		for s := 0; s < 4; s++ {
			total += len(e.hands[s])
			for _, trick := range e.tricksTaken[s] {
				total += len(trick)
			}
		}
		if total != 52 {
			t.Fatalf("card conservation violated: %d", total)
		}
	}
}

func TestApplyMoonShot(t *testing.T) {
	tests := []struct {
		name    string
		raw     [4]int
		cum     [4]int
		want    [4]int
		shooter int
	}{
		{
			name:    "no shooter leaves scores untouched",
			raw:     [4]int{4, 9, 13, 0},
			cum:     [4]int{10, 0, 0, 5},
			want:    [4]int{4, 9, 13, 0},
			shooter: -1,
		},
		{
			name:    "fresh game takes option A",
			raw:     [4]int{0, 0, 26, 0},
			cum:     [4]int{0, 0, 0, 0},
			want:    [4]int{26, 26, 0, 26},
			shooter: 2,
		},
		{
			name:    "trailing shooter still prefers option A",
			raw:     [4]int{26, 0, 0, 0},
			cum:     [4]int{40, 10, 12, 9},
			want:    [4]int{0, 26, 26, 26},
			shooter: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, shooter := ApplyMoonShot(tt.raw, tt.cum)
			if got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			if shooter != tt.shooter {
				t.Fatalf("expected shooter %d, got %d", tt.shooter, shooter)
			}
		})
	}
}

func TestHeartsGameEndWinners(t *testing.T) {
	e := NewHeartsEngine(50)
	e.cumulativeScores = [4]int{48, 12, 12, 30}
	e.phase = HeartsRoundEnd
	e.roundNumber = 4

	// Push seat 0 over the line via a played-out round.
	if err := e.dealRound(stackedDeck(t, suitPerSeat(t))); err != nil {
		t.Fatalf("deal failed: %v", err)
	}
	// hold round again would be round 5 (left); force hold for a direct play-out
	e.phase = HeartsPlaying
	e.passDirection = PassHold
	e.pendingPasses = map[int][]Card{}
	e.currentPlayer = e.seatHolding(twoOfClubs)
	playFullHeartsRound(t, e)

	if e.phase != HeartsGameEnd {
		t.Fatalf("expected game end, got %s (scores %v)", e.phase, e.cumulativeScores)
	}
	winners := e.Winners()
	min := e.cumulativeScores[winners[0]]
	for seat, s := range e.cumulativeScores {
		if s < min {
			t.Fatalf("seat %d has lower score than winner", seat)
		}
	}
}
