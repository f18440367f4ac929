package game

import (
	"encoding/json"
	"errors"
	"testing"

	appErr "masa-service/pkg/errors"
)

func newBiddingSpades(t *testing.T, hands [4][]Card) *SpadesEngine {
	t.Helper()
	e := NewSpadesEngine(300)
	if err := e.dealRound(stackedDeck(t, hands)); err != nil {
		t.Fatalf("deal failed: %v", err)
	}
	return e
}

func submitBids(t *testing.T, e *SpadesEngine, bids [4]Bid) {
	t.Helper()
	for seat := 0; seat < 4; seat++ {
		done, err := e.SubmitBid(seat, bids[seat])
		if err != nil {
			t.Fatalf("seat %d: bid failed: %v", seat, err)
		}
		if done != (seat == 3) {
			t.Fatalf("seat %d: unexpected done=%v", seat, done)
		}
	}
}

func TestSpadesBidJSON(t *testing.T) {
	tests := []struct {
		raw  string
		want Bid
	}{
		{`3`, Bid{Kind: BidNumber, Count: 3}},
		{`0`, Bid{Kind: BidNumber, Count: 0}},
		{`"nil"`, Bid{Kind: BidNil}},
		{`"blind_nil"`, Bid{Kind: BidBlindNil}},
	}
	for _, tt := range tests {
		var b Bid
		if err := json.Unmarshal([]byte(tt.raw), &b); err != nil {
			t.Fatalf("unmarshal %s: %v", tt.raw, err)
		}
		if b != tt.want {
			t.Fatalf("unmarshal %s: got %+v", tt.raw, b)
		}
		out, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal %+v: %v", b, err)
		}
		if string(out) != tt.raw {
			t.Fatalf("marshal round-trip: expected %s, got %s", tt.raw, out)
		}
	}

	var b Bid
	if err := json.Unmarshal([]byte(`"double_nil"`), &b); err == nil {
		t.Fatalf("expected error for unknown bid string")
	}
}

func TestSpadesBiddingOrderAndValidation(t *testing.T) {
	e := newBiddingSpades(t, suitPerSeat(t))

	if _, err := e.SubmitBid(2, Bid{Kind: BidNumber, Count: 3}); !errors.Is(err, appErr.ErrNotYourTurn) {
		t.Fatalf("out of order: expected ErrNotYourTurn, got %v", err)
	}
	if _, err := e.SubmitBid(0, Bid{Kind: BidNumber, Count: 14}); !errors.Is(err, appErr.ErrInvalidBid) {
		t.Fatalf("bid 14: expected ErrInvalidBid, got %v", err)
	}
	if _, err := e.SubmitBid(0, Bid{Kind: BidBlindNil}); !errors.Is(err, appErr.ErrBlindNilNotAllowed) {
		t.Fatalf("even-score blind nil: expected ErrBlindNilNotAllowed, got %v", err)
	}

	submitBids(t, e, [4]Bid{
		{Kind: BidNumber, Count: 3},
		{Kind: BidNil},
		{Kind: BidNumber, Count: 4},
		{Kind: BidNumber, Count: 2},
	})
	if e.phase != SpadesPlaying || e.currentPlayer != 0 {
		t.Fatalf("expected seat 0 to lead after bidding, got %s/%d", e.phase, e.currentPlayer)
	}
}

func TestSpadesBlindNilEligibility(t *testing.T) {
	e := newBiddingSpades(t, suitPerSeat(t))
	e.cumulativeScores = [2]int{-40, 80} // team 0 trails by 120

	if _, err := e.SubmitBid(0, Bid{Kind: BidBlindNil}); err != nil {
		t.Fatalf("trailing blind nil should be allowed: %v", err)
	}
	if _, err := e.SubmitBid(1, Bid{Kind: BidBlindNil}); !errors.Is(err, appErr.ErrBlindNilNotAllowed) {
		t.Fatalf("leading team blind nil: expected ErrBlindNilNotAllowed, got %v", err)
	}
	if _, err := e.SubmitBid(1, Bid{Kind: BidNumber, Count: 4}); err != nil {
		t.Fatalf("bid failed: %v", err)
	}
	// Partner of seat 0 cannot also go blind.
	if _, err := e.SubmitBid(2, Bid{Kind: BidBlindNil}); !errors.Is(err, appErr.ErrBlindNilNotAllowed) {
		t.Fatalf("partner blind nil: expected ErrBlindNilNotAllowed, got %v", err)
	}
}

func TestSpadesCannotLeadSpadesUntilBroken(t *testing.T) {
	// Seat 0 holds all spades; everyone else is void in it. Seat 0 may
	// lead spades only because the hand is nothing but spades; rig a
	// mixed hand to check the restriction.
	hands := suitPerSeat(t)
	// Rotate the three deuces: seat 0 gets 2C, seat 1 gets 2S, seat 3
	// gets 2H, so seat 0 has a non-spade lead and seat 1 can ruff.
	hands[0][0], hands[1][0], hands[3][0] = hands[3][0], hands[0][0], hands[1][0]
	e := newBiddingSpades(t, hands)
	submitBids(t, e, [4]Bid{
		{Kind: BidNumber, Count: 5},
		{Kind: BidNumber, Count: 2},
		{Kind: BidNumber, Count: 3},
		{Kind: BidNumber, Count: 3},
	})

	legal := e.LegalCards(0)
	if len(legal) != 1 || legal[0].Suit != SuitClubs {
		t.Fatalf("expected only the club lead, got %v", legal)
	}
	if _, err := e.PlayCard(0, Card{SuitSpades, "A"}); !errors.Is(err, appErr.ErrIllegalCard) {
		t.Fatalf("expected ErrIllegalCard for spade lead, got %v", err)
	}

	// Clubs led; seat 1 is void and may trump in, breaking spades.
	if _, err := e.PlayCard(0, Card{SuitClubs, "2"}); err != nil {
		t.Fatalf("club lead failed: %v", err)
	}
	if _, err := e.PlayCard(1, Card{SuitSpades, "2"}); err != nil {
		t.Fatalf("spade ruff failed: %v", err)
	}
	if !e.spadesBroken {
		t.Fatalf("spades should be broken")
	}
	if _, err := e.PlayCard(2, Card{SuitDiamonds, "2"}); err != nil {
		t.Fatalf("discard failed: %v", err)
	}
	res, err := e.PlayCard(3, Card{SuitClubs, "3"})
	if err != nil {
		t.Fatalf("club follow failed: %v", err)
	}
	if res.TrickWinner != 1 {
		t.Fatalf("spade should win the trick, got %d", res.TrickWinner)
	}
}

func TestScoreSpadesRoundNilAndBags(t *testing.T) {
	// Bids [3, nil, 4, 2]; tricks by seat [4, 0, 3, 6].
	bids := [4]Bid{
		{Kind: BidNumber, Count: 3},
		{Kind: BidNil},
		{Kind: BidNumber, Count: 4},
		{Kind: BidNumber, Count: 2},
	}
	tricks := [4]int{4, 0, 3, 6}

	result := ScoreSpadesRound(bids, tricks, [2]int{0, 0})
	// Team 0: bid 7, took 7 -> +70, no bags.
	if result.TeamScores[0] != 70 {
		t.Fatalf("team 0: expected 70, got %d", result.TeamScores[0])
	}
	// Team 1: nil made (+50), bid 2 took 6 -> +20 +4 bags.
	if result.TeamScores[1] != 74 {
		t.Fatalf("team 1: expected 74, got %d", result.TeamScores[1])
	}
	if result.Bags != ([2]int{0, 4}) {
		t.Fatalf("expected bags [0 4], got %v", result.Bags)
	}
}

func TestScoreSpadesRoundFailedNilAndSet(t *testing.T) {
	bids := [4]Bid{
		{Kind: BidNumber, Count: 5},
		{Kind: BidBlindNil},
		{Kind: BidNumber, Count: 4},
		{Kind: BidNumber, Count: 3},
	}
	// Seat 1 takes a trick: blind nil fails.
	tricks := [4]int{2, 1, 5, 5}

	result := ScoreSpadesRound(bids, tricks, [2]int{0, 0})
	// Team 0: bid 9, took 7 -> -90.
	if result.TeamScores[0] != -90 {
		t.Fatalf("team 0: expected -90, got %d", result.TeamScores[0])
	}
	// Team 1: blind nil failed (-100), bid 3 took 6 -> +30 +3.
	if result.TeamScores[1] != -67 {
		t.Fatalf("team 1: expected -67, got %d", result.TeamScores[1])
	}
}

func TestScoreSpadesRoundBagPenalty(t *testing.T) {
	bids := [4]Bid{
		{Kind: BidNumber, Count: 3},
		{Kind: BidNumber, Count: 4},
		{Kind: BidNumber, Count: 4},
		{Kind: BidNumber, Count: 2},
	}
	// Team 0 bid 7, takes 10: 3 new bags on 8 carried -> penalty.
	tricks := [4]int{5, 2, 5, 1}

	result := ScoreSpadesRound(bids, tricks, [2]int{8, 0})
	if result.Bags[0] != 1 {
		t.Fatalf("expected bag count 1 after carry, got %d", result.Bags[0])
	}
	// +70 +3 bags -100 penalty.
	if result.TeamScores[0] != -27 {
		t.Fatalf("team 0: expected -27, got %d", result.TeamScores[0])
	}
}

func TestSpadesTeamTricksInvariant(t *testing.T) {
	e := newBiddingSpades(t, suitPerSeat(t))
	submitBids(t, e, [4]Bid{
		{Kind: BidNumber, Count: 13},
		{Kind: BidNumber, Count: 0},
		{Kind: BidNumber, Count: 0},
		{Kind: BidNumber, Count: 0},
	})

	for e.phase == SpadesPlaying {
		seat := e.currentPlayer
		legal := e.LegalCards(seat)
		if len(legal) == 0 {
			t.Fatalf("no legal cards for seat %d", seat)
		}
		if _, err := e.PlayCard(seat, legal[0]); err != nil {
			t.Fatalf("seat %d: play failed: %v", seat, err)
		}
	}

	total := 0
	for _, n := range e.tricksTakenBySeat {
		total += n
	}
	if total != 13 {
		t.Fatalf("expected 13 tricks taken, got %d", total)
	}
	teams := e.TeamTricks()
	if teams[0]+teams[1] != 13 {
		t.Fatalf("team tricks must sum to 13, got %v", teams)
	}
}
