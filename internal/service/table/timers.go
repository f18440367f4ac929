package table

import (
	"time"

	"masa-service/internal/protocol"
	"masa-service/internal/service/game"
)

const (
	turnTimeout    = 30 * time.Second
	turnWarningAt  = 20 * time.Second // timerWarning fires with 10 s left
	passTimeout    = 30 * time.Second
	selectTimeout  = 45 * time.Second
	bidTimeout     = 30 * time.Second
	trickAnimDelay = 500 * time.Millisecond
)

func roundEndDelay(t game.GameType) time.Duration {
	if t == game.GameKing {
		return 5 * time.Second
	}
	return 4 * time.Second
}

const (
	timerTurn   = "turn"
	timerPass   = "pass"
	timerSelect = "select"
	timerBid    = "bid"
)

// armTimerLocked schedules the table's single outstanding timer. The
// generation counter invalidates stale AfterFunc firings.
func (c *Controller) armTimerLocked(kind string, d time.Duration, fn func()) {
	c.cancelTimerLocked()
	c.timerGen++
	gen := c.timerGen
	c.timerKind = kind
	c.timerDeadline = time.Now().Add(d)
	c.timer = time.AfterFunc(d, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.destroyed || gen != c.timerGen {
			return
		}
		fn()
	})
}

func (c *Controller) cancelTimerLocked() {
	c.timerGen++
	c.timerKind = ""
	c.timerDeadline = time.Time{}
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// turnStartLocked announces the new turn and arms the two-stage turn
// timer: a warning at 20 s, auto-play at 30 s.
func (c *Controller) turnStartLocked() {
	if c.engine == nil {
		return
	}
	player := c.engine.CurrentPlayer()
	deadline := time.Now().Add(turnTimeout)

	c.cancelTimerLocked()
	c.timerGen++
	gen := c.timerGen
	c.timerKind = timerTurn
	c.timerDeadline = deadline
	c.timer = time.AfterFunc(turnWarningAt, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.destroyed || gen != c.timerGen {
			return
		}
		c.broadcastLocked(protocol.EvTimerWarning, ginH{})
		c.timer = time.AfterFunc(time.Until(deadline), func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if c.destroyed || gen != c.timerGen {
				return
			}
			c.autoPlayLocked()
		})
	})

	c.broadcastLocked(protocol.EvTurnStart, ginH{
		"player":    player,
		"timeoutAt": deadline.UnixMilli(),
	})
}

func (c *Controller) armPassTimerLocked() {
	c.armTimerLocked(timerPass, passTimeout, c.autoPassLocked)
	c.broadcastLocked(protocol.EvPassTimerStart, ginH{
		"timeoutAt": c.timerDeadline.UnixMilli(),
	})
}

func (c *Controller) armSelectTimerLocked() {
	c.armTimerLocked(timerSelect, selectTimeout, c.autoSelectLocked)
	data := ginH{"timeoutAt": c.timerDeadline.UnixMilli()}
	if ke, ok := c.engine.(*game.KingEngine); ok {
		data["selectorSeat"] = ke.SelectorSeat()
	}
	c.broadcastLocked(protocol.EvSelectTimerStart, data)
}

func (c *Controller) armBidTimerLocked() {
	c.armTimerLocked(timerBid, bidTimeout, c.autoBidLocked)
	data := ginH{"timeoutAt": c.timerDeadline.UnixMilli()}
	if se, ok := c.engine.(*game.SpadesEngine); ok {
		data["player"] = se.CurrentBidder()
	}
	c.broadcastLocked(protocol.EvBidTimerStart, data)
}

// rearmPhaseTimerLocked restores the timer for the current phase after
// a reconnect into a table whose timers were stopped on abandonment.
func (c *Controller) rearmPhaseTimerLocked() {
	if c.engine == nil || c.engine.GameOver() || c.timerKind != "" {
		return
	}
	switch e := c.engine.(type) {
	case *game.HeartsEngine:
		switch e.Phase() {
		case game.HeartsPassing:
			c.armPassTimerLocked()
		case game.HeartsPlaying:
			c.turnStartLocked()
		}
	case *game.KingEngine:
		switch e.Phase() {
		case game.KingSelecting:
			c.armSelectTimerLocked()
		case game.KingPlaying:
			c.turnStartLocked()
		}
	case *game.SpadesEngine:
		switch e.Phase() {
		case game.SpadesBidding:
			c.armBidTimerLocked()
		case game.SpadesPlaying:
			c.turnStartLocked()
		}
	}
}

// resendTimerLocked replays the live timer deadline to one subscriber
// after reconnect or takeover.
func (c *Controller) resendTimerLocked(id string) {
	if c.timerKind == "" || c.timerDeadline.IsZero() {
		return
	}
	timeoutAt := c.timerDeadline.UnixMilli()
	switch c.timerKind {
	case timerTurn:
		c.sendLocked(id, protocol.EvTurnStart, ginH{
			"player":    c.engine.CurrentPlayer(),
			"timeoutAt": timeoutAt,
		})
	case timerPass:
		c.sendLocked(id, protocol.EvPassTimerStart, ginH{"timeoutAt": timeoutAt})
	case timerSelect:
		data := ginH{"timeoutAt": timeoutAt}
		if ke, ok := c.engine.(*game.KingEngine); ok {
			data["selectorSeat"] = ke.SelectorSeat()
		}
		c.sendLocked(id, protocol.EvSelectTimerStart, data)
	case timerBid:
		data := ginH{"timeoutAt": timeoutAt}
		if se, ok := c.engine.(*game.SpadesEngine); ok {
			data["player"] = se.CurrentBidder()
		}
		c.sendLocked(id, protocol.EvBidTimerStart, data)
	}
}
