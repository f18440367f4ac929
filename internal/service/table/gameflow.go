package table

import (
	"encoding/json"
	"math/rand"
	"time"

	"masa-service/internal/protocol"
	"masa-service/internal/service/game"
	appErr "masa-service/pkg/errors"
	"masa-service/pkg/logger"

	"go.uber.org/zap"
)

// HandleEvent routes one client event into the table. Errors are
// returned to the caller for the single error reply; engine state is
// untouched on any of them.
func (c *Controller) HandleEvent(playerID, typ string, data json.RawMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.destroyed {
		return appErr.ErrTableNotFound
	}

	switch typ {
	case protocol.EvChatMessage:
		var req protocol.ChatMessageReq
		if err := json.Unmarshal(data, &req); err != nil {
			return appErr.ErrInternal
		}
		return c.handleChatLocked(playerID, req.Text)
	case protocol.EvTyping:
		var req protocol.TypingReq
		if err := json.Unmarshal(data, &req); err != nil {
			return appErr.ErrInternal
		}
		return c.handleTypingLocked(playerID, req.IsTyping)
	case protocol.EvRejoin:
		if p := c.playerByIDLocked(playerID); p != nil {
			c.replayStateLocked(p)
		}
		return nil
	}

	p := c.playerByIDLocked(playerID)
	if p == nil {
		return appErr.ErrNotAtTable
	}

	switch typ {
	case protocol.EvSubmitPass:
		var req protocol.SubmitPassReq
		if err := json.Unmarshal(data, &req); err != nil {
			return appErr.ErrBadPass
		}
		return c.handleSubmitPassLocked(p, req.Cards)
	case protocol.EvSelectContract:
		var req protocol.SelectContractReq
		if err := json.Unmarshal(data, &req); err != nil {
			return appErr.ErrInvalidContract
		}
		return c.handleSelectContractLocked(p, req)
	case protocol.EvSubmitBid:
		var req protocol.SubmitBidReq
		if err := json.Unmarshal(data, &req); err != nil {
			return appErr.ErrInvalidBid
		}
		return c.handleSubmitBidLocked(p, req.Bid)
	case protocol.EvPlayCard:
		var req protocol.PlayCardReq
		if err := json.Unmarshal(data, &req); err != nil {
			return appErr.ErrIllegalCard
		}
		return c.handlePlayCardLocked(p, req.Card)
	case protocol.EvRematch:
		var req protocol.RematchReq
		if err := json.Unmarshal(data, &req); err != nil {
			return appErr.ErrInternal
		}
		return c.handleRematchLocked(p, req.Vote)
	default:
		return appErr.ErrInternal
	}
}

// game start

func (c *Controller) startGameLocked() {
	switch c.gameType {
	case game.GameHearts:
		c.engine = game.NewHeartsEngine(c.opts.EndingScore)
	case game.GameKing:
		c.engine = game.NewKingEngine(c.opts.InitialSelectorSeat)
	case game.GameSpades:
		c.engine = game.NewSpadesEngine(c.opts.WinThreshold)
	}
	c.rematchVotes = make(map[int]bool)

	logger.Log.Info("game starting",
		zap.String("tableID", c.id),
		zap.String("gameType", string(c.gameType)),
	)
	c.dealNextLocked()
}

// dealNextLocked deals the next round/game and emits the per-type start
// events with per-seat hands.
func (c *Controller) dealNextLocked() {
	switch e := c.engine.(type) {
	case *game.HeartsEngine:
		if err := e.DealNewRound(); err != nil {
			c.internalErrorLocked("hearts deal", err)
			return
		}
		for _, p := range c.players {
			c.sendLocked(p.ID, protocol.EvStartGame, ginH{
				"gameType":      c.gameType,
				"hand":          e.Hand(p.Seat),
				"passDirection": e.PassDir(),
				"phase":         e.PhaseName(),
				"currentPlayer": e.CurrentPlayer(),
			})
		}
		c.broadcastSnapshotsLocked()
		if e.Phase() == game.HeartsPassing {
			c.armPassTimerLocked()
		} else {
			c.turnStartLocked()
		}

	case *game.KingEngine:
		if err := e.DealNewGame(); err != nil {
			c.internalErrorLocked("king deal", err)
			return
		}
		for _, p := range c.players {
			data := ginH{
				"selector":    e.SelectorSeat(),
				"gameNumber":  e.GameNumber(),
				"partyNumber": c.partyNumber,
				"hand":        e.Hand(p.Seat),
			}
			if p.Seat == e.SelectorSeat() {
				data["availableContracts"] = e.AvailableContracts()
			}
			c.sendLocked(p.ID, protocol.EvContractSelectionStart, data)
		}
		c.broadcastSnapshotsLocked()
		c.armSelectTimerLocked()

	case *game.SpadesEngine:
		if err := e.DealNewRound(); err != nil {
			c.internalErrorLocked("spades deal", err)
			return
		}
		for _, p := range c.players {
			c.sendLocked(p.ID, protocol.EvBiddingStart, ginH{
				"hand":          e.Hand(p.Seat),
				"currentBidder": e.CurrentBidder(),
				"roundNumber":   e.RoundNumber(),
			})
		}
		c.broadcastSnapshotsLocked()
		c.armBidTimerLocked()
	}
}

// hearts pass

func (c *Controller) handleSubmitPassLocked(p *Player, cards []game.Card) error {
	he, ok := c.engine.(*game.HeartsEngine)
	if !ok {
		return appErr.ErrPhase
	}
	done, err := he.SubmitPass(p.Seat, cards)
	if err != nil {
		return err
	}
	if done {
		c.passCompleteLocked()
	} else {
		c.broadcastSnapshotsLocked()
	}
	return nil
}

func (c *Controller) passCompleteLocked() {
	c.cancelTimerLocked()
	c.broadcastSnapshotsLocked()
	c.turnStartLocked()
}

// autoPassLocked fires on pass timeout: every seat still pending gets
// three random cards from its hand.
func (c *Controller) autoPassLocked() {
	he, ok := c.engine.(*game.HeartsEngine)
	if !ok || he.Phase() != game.HeartsPassing {
		return
	}
	submitted := he.PassSubmitted()
	for seat := 0; seat < 4; seat++ {
		if submitted[seat] {
			continue
		}
		hand := he.Hand(seat)
		perm := rand.Perm(len(hand))
		cards := []game.Card{hand[perm[0]], hand[perm[1]], hand[perm[2]]}

		done, err := he.SubmitPass(seat, cards)
		if err != nil {
			c.internalErrorLocked("auto pass", err)
			return
		}
		if p := c.playerBySeatLocked(seat); p != nil {
			c.sendLocked(p.ID, protocol.EvAutoPassSubmitted, ginH{"cards": cards})
		}
		if done {
			c.passCompleteLocked()
			return
		}
	}
}

// king contract

func (c *Controller) handleSelectContractLocked(p *Player, req protocol.SelectContractReq) error {
	ke, ok := c.engine.(*game.KingEngine)
	if !ok {
		return appErr.ErrPhase
	}
	contract := game.Contract{Kind: req.ContractType}
	switch req.ContractType {
	case game.ContractPenalty:
		contract.Penalty = req.ContractName
	case game.ContractTrump:
		contract.Trump = req.TrumpSuit
	default:
		return appErr.ErrInvalidContract
	}
	if err := ke.SelectContract(p.Seat, contract); err != nil {
		return err
	}
	c.contractSelectedLocked(ke, contract)
	return nil
}

func (c *Controller) contractSelectedLocked(ke *game.KingEngine, contract game.Contract) {
	c.cancelTimerLocked()
	c.broadcastLocked(protocol.EvContractSelected, ginH{
		"contract":   contract,
		"gameNumber": ke.GameNumber(),
	})
	c.broadcastSnapshotsLocked()
	c.turnStartLocked()
}

func (c *Controller) autoSelectLocked() {
	ke, ok := c.engine.(*game.KingEngine)
	if !ok || ke.Phase() != game.KingSelecting {
		return
	}
	contract, err := ke.AutoSelectContract()
	if err != nil {
		c.internalErrorLocked("auto select", err)
		return
	}
	logger.Log.Info("contract auto-selected",
		zap.String("tableID", c.id),
		zap.Int("selector", ke.SelectorSeat()),
	)
	c.contractSelectedLocked(ke, contract)
}

// spades bidding

func (c *Controller) handleSubmitBidLocked(p *Player, bid game.Bid) error {
	se, ok := c.engine.(*game.SpadesEngine)
	if !ok {
		return appErr.ErrPhase
	}
	done, err := se.SubmitBid(p.Seat, bid)
	if err != nil {
		return err
	}
	c.bidSubmittedLocked(se, p.Seat, bid, done)
	return nil
}

func (c *Controller) bidSubmittedLocked(se *game.SpadesEngine, seat int, bid game.Bid, done bool) {
	c.cancelTimerLocked()
	c.broadcastLocked(protocol.EvBidSubmitted, ginH{
		"seat":       seat,
		"bid":        bid,
		"bids":       se.Bids(),
		"nextBidder": se.CurrentBidder(),
	})
	if done {
		c.broadcastSnapshotsLocked()
		c.turnStartLocked()
	} else {
		c.armBidTimerLocked()
	}
}

// autoBidLocked fires on bid timeout: the current bidder is assigned a
// bid of 2, never an automatic nil.
func (c *Controller) autoBidLocked() {
	se, ok := c.engine.(*game.SpadesEngine)
	if !ok || se.Phase() != game.SpadesBidding {
		return
	}
	seat := se.CurrentBidder()
	bid := game.Bid{Kind: game.BidNumber, Count: 2}
	done, err := se.SubmitBid(seat, bid)
	if err != nil {
		c.internalErrorLocked("auto bid", err)
		return
	}
	c.bidSubmittedLocked(se, seat, bid, done)
}

// card play

func (c *Controller) handlePlayCardLocked(p *Player, card game.Card) error {
	if c.engine == nil {
		return appErr.ErrPhase
	}
	// The trick animation window blocks the next lead.
	if time.Now().Before(c.animUntil) {
		return appErr.ErrNotYourTurn
	}
	res, err := c.engine.PlayCard(p.Seat, card)
	if err != nil {
		return err
	}
	c.afterPlayLocked(res)
	return nil
}

func (c *Controller) autoPlayLocked() {
	if c.engine == nil {
		return
	}
	seat := c.engine.CurrentPlayer()
	legal := c.engine.LegalCards(seat)
	if len(legal) == 0 {
		return
	}
	card := game.LowestCard(legal)
	res, err := c.engine.PlayCard(seat, card)
	if err != nil {
		c.internalErrorLocked("auto play", err)
		return
	}
	c.broadcastLocked(protocol.EvAutoPlay, ginH{"seat": seat, "card": card})
	c.afterPlayLocked(res)
}

func (c *Controller) afterPlayLocked(res game.PlayResult) {
	c.cancelTimerLocked()

	played := ginH{
		"seat":          res.Seat,
		"card":          res.Card,
		"trickComplete": res.TrickComplete,
	}
	if res.TrickComplete {
		played["currentTrick"] = res.LastTrick
		played["winner"] = res.TrickWinner
	} else {
		played["currentTrick"] = c.engine.CurrentTrick()
	}
	c.broadcastLocked(protocol.EvCardPlayed, played)

	if !res.TrickComplete {
		c.broadcastSnapshotsLocked()
		c.turnStartLocked()
		return
	}

	// Let clients animate the completed trick before it is swept.
	c.animUntil = time.Now().Add(trickAnimDelay)
	eng := c.engine
	time.AfterFunc(trickAnimDelay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.destroyed || c.engine != eng {
			return
		}
		c.trickEndLocked(res)
	})
}

func (c *Controller) trickEndLocked(res game.PlayResult) {
	c.broadcastLocked(protocol.EvTrickEnd, ginH{
		"winner":    res.TrickWinner,
		"points":    res.TrickPoints,
		"lastTrick": res.LastTrick,
	})

	if !res.RoundComplete {
		c.broadcastSnapshotsLocked()
		c.turnStartLocked()
		return
	}

	// Hold the scored trick on screen before the round summary.
	eng := c.engine
	time.AfterFunc(roundEndDelay(c.gameType), func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.destroyed || c.engine != eng {
			return
		}
		c.roundEndLocked()
	})
}

func (c *Controller) roundEndLocked() {
	gameOver := c.engine.GameOver()

	switch e := c.engine.(type) {
	case *game.HeartsEngine:
		data := ginH{
			"roundScores":      e.RoundScores(),
			"cumulativeScores": e.CumulativeScores(),
			"pointCardsTaken":  e.PointCardsTaken(),
			"gameOver":         gameOver,
		}
		if shooter := e.MoonShooter(); shooter >= 0 {
			data["moonShooter"] = shooter
		}
		if gameOver {
			data["gameWinner"] = e.Winners()
		}
		c.broadcastLocked(protocol.EvRoundEnd, data)
		if gameOver {
			c.gameEndLocked(ginH{"winner": e.Winners(), "finalScores": e.CumulativeScores()})
			return
		}

	case *game.KingEngine:
		data := ginH{
			"roundScores":      e.GameScores(),
			"cumulativeScores": e.CumulativeScores(),
			"contract":         e.Contract(),
			"gameNumber":       e.GameNumber(),
			"gameOver":         gameOver,
		}
		if gameOver {
			data["gameWinner"] = e.Winners()
		}
		c.broadcastLocked(protocol.EvRoundEnd, data)
		if gameOver {
			c.gameEndLocked(ginH{"winner": e.Winners(), "finalScores": e.CumulativeScores()})
			return
		}

	case *game.SpadesEngine:
		data := ginH{
			"roundScores":      e.RoundScores(),
			"cumulativeScores": e.CumulativeScores(),
			"teamTricks":       e.TeamTricks(),
			"bags":             e.Bags(),
			"gameOver":         gameOver,
		}
		if gameOver {
			data["gameWinner"] = e.WinningTeams()
		}
		c.broadcastLocked(protocol.EvRoundEnd, data)
		if gameOver {
			c.gameEndLocked(ginH{"winner": e.WinningTeams(), "finalScores": e.CumulativeScores()})
			return
		}
	}

	c.broadcastSnapshotsLocked()
	c.dealNextLocked()
}

func (c *Controller) gameEndLocked(data ginH) {
	c.cancelTimerLocked()
	c.broadcastSnapshotsLocked()
	c.broadcastLocked(protocol.EvGameEnd, data)
	c.rematchVotes = make(map[int]bool)
}

// rematch

func (c *Controller) handleRematchLocked(p *Player, vote bool) error {
	if c.engine == nil || !c.engine.GameOver() {
		return appErr.ErrPhase
	}
	c.rematchVotes[p.Seat] = vote
	c.broadcastLocked(protocol.EvRematchStatus, ginH{"votes": c.rematchVotes})

	if len(c.rematchVotes) < maxSeats {
		return nil
	}
	for _, yes := range c.rematchVotes {
		if !yes {
			return nil
		}
	}

	logger.Log.Info("rematch starting", zap.String("tableID", c.id))
	c.partyNumber++
	c.startGameLocked()
	return nil
}

func (c *Controller) internalErrorLocked(op string, err error) {
	logger.Log.Error("table internal error",
		zap.String("tableID", c.id),
		zap.String("op", op),
		zap.Error(err),
	)
}
