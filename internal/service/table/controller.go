package table

import (
	"sync"
	"time"

	"masa-service/internal/protocol"
	"masa-service/internal/service/game"
	appErr "masa-service/pkg/errors"
	"masa-service/pkg/logger"

	"go.uber.org/zap"
)

const (
	maxSeats     = 4
	cleanupDelay = 60 * time.Second
)

type Player struct {
	ID        string
	Name      string
	Seat      int
	Connected bool
}

type Spectator struct {
	ID   string
	Name string
}

// Options are the per-table game settings chosen at creation and reused
// for rematches.
type Options struct {
	EndingScore         int
	WinThreshold        int
	InitialSelectorSeat int
}

// Controller owns one table: seats, spectators, the engine, timers and
// event fan-out. All mutations are serialized on its mutex; the engine
// itself never blocks.
type Controller struct {
	mu sync.Mutex

	id       string
	gameType game.GameType
	opts     Options

	players    []*Player
	spectators map[string]*Spectator
	subs       map[string]chan<- protocol.Outgoing

	engine      game.Engine
	partyNumber int

	seq int64

	timer         *time.Timer
	timerGen      int64
	timerKind     string
	timerDeadline time.Time

	animUntil time.Time

	rematchVotes map[int]bool
	typing       map[string]*time.Timer

	cleanupTimer *time.Timer
	cleanupGen   int64

	createdAt time.Time
	destroyed bool

	// onRelease detaches the table from the registry once it is done.
	onRelease func(tableID string)
}

func NewController(id string, gameType game.GameType, opts Options, onRelease func(string)) *Controller {
	return &Controller{
		id:           id,
		gameType:     gameType,
		opts:         opts,
		spectators:   make(map[string]*Spectator),
		subs:         make(map[string]chan<- protocol.Outgoing),
		rematchVotes: make(map[int]bool),
		typing:       make(map[string]*time.Timer),
		partyNumber:  1,
		createdAt:    time.Now(),
		onRelease:    onRelease,
	}
}

func (c *Controller) ID() string { return c.id }

func (c *Controller) GameType() game.GameType { return c.gameType }

// Join seats a player, reconnects a known one, or takes over a
// disconnected seat mid-game.
func (c *Controller) Join(id, name string, ch chan<- protocol.Outgoing) (int, error) {
	if name == "" {
		return 0, appErr.ErrNameRequired
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.destroyed {
		return 0, appErr.ErrTableNotFound
	}

	// Same identity returning: plain reconnect.
	if p := c.playerByIDLocked(id); p != nil {
		p.Connected = true
		c.subs[id] = ch
		c.cancelCleanupLocked()
		c.sendJoinedLocked(p)
		c.replayStateLocked(p)
		c.broadcastPlayersLocked()
		return p.Seat, nil
	}

	if len(c.players) < maxSeats && c.engine == nil {
		seat := c.firstFreeSeatLocked()
		p := &Player{ID: id, Name: name, Seat: seat, Connected: true}
		c.players = append(c.players, p)
		c.subs[id] = ch
		c.cancelCleanupLocked()
		c.sendJoinedLocked(p)
		c.broadcastPlayersLocked()

		logger.Log.Info("player joined table",
			zap.String("tableID", c.id),
			zap.String("playerID", id),
			zap.Int("seat", seat),
		)

		if len(c.players) == maxSeats {
			c.startGameLocked()
		}
		return seat, nil
	}

	// Full table with an engine: a disconnected seat may be taken over.
	if c.engine != nil {
		if p := c.takeoverSeatLocked(); p != nil {
			delete(c.subs, p.ID)
			p.ID = id
			p.Name = name
			p.Connected = true
			c.subs[id] = ch
			c.cancelCleanupLocked()

			logger.Log.Info("seat takeover",
				zap.String("tableID", c.id),
				zap.String("playerID", id),
				zap.Int("seat", p.Seat),
			)

			c.sendJoinedLocked(p)
			c.replayStateLocked(p)
			c.broadcastPlayersLocked()
			return p.Seat, nil
		}
		return 0, appErr.ErrGameInProgress
	}
	return 0, appErr.ErrTableFull
}

// Spectate registers an observer. Spectators never receive hands.
func (c *Controller) Spectate(id, name string, ch chan<- protocol.Outgoing) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.destroyed {
		return appErr.ErrTableNotFound
	}
	if name == "" {
		name = "spectator"
	}
	c.spectators[id] = &Spectator{ID: id, Name: name}
	c.subs[id] = ch

	var state interface{}
	if c.engine != nil {
		state = c.engine.Snapshot(game.ViewerSpectator)
	}
	c.sendLocked(id, protocol.EvSpectateJoined, ginH{
		"tableId":   c.id,
		"gameType":  c.gameType,
		"players":   c.playerInfosLocked(),
		"gameState": state,
	})
	c.broadcastSpectatorCountLocked()
	return nil
}

// Leave removes a player or spectator. Mid-game a seated player leaves
// a takeover slot behind instead of vacating the seat.
func (c *Controller) Leave(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.leaveLocked(id, true)
}

// Disconnect marks a dropped connection without forfeiting the seat.
func (c *Controller) Disconnect(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.leaveLocked(id, false)
}

func (c *Controller) leaveLocked(id string, explicit bool) {
	delete(c.subs, id)

	if sp, ok := c.spectators[id]; ok {
		delete(c.spectators, id)
		c.clearTypingLocked(sp.Name)
		c.broadcastSpectatorCountLocked()
		c.maybeScheduleCleanupLocked()
		return
	}

	p := c.playerByIDLocked(id)
	if p == nil {
		return
	}
	p.Connected = false
	c.clearTypingLocked(p.Name)

	if explicit && c.engine == nil {
		for i, q := range c.players {
			if q == p {
				c.players = append(c.players[:i], c.players[i+1:]...)
				break
			}
		}
	}

	logger.Log.Info("player left table",
		zap.String("tableID", c.id),
		zap.String("playerID", id),
		zap.Bool("explicit", explicit),
	)

	c.broadcastPlayersLocked()
	c.maybeScheduleCleanupLocked()
}

func (c *Controller) playerByIDLocked(id string) *Player {
	for _, p := range c.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (c *Controller) playerBySeatLocked(seat int) *Player {
	for _, p := range c.players {
		if p.Seat == seat {
			return p
		}
	}
	return nil
}

func (c *Controller) firstFreeSeatLocked() int {
	taken := map[int]bool{}
	for _, p := range c.players {
		taken[p.Seat] = true
	}
	for seat := 0; seat < maxSeats; seat++ {
		if !taken[seat] {
			return seat
		}
	}
	return 0
}

func (c *Controller) takeoverSeatLocked() *Player {
	for _, p := range c.players {
		if !p.Connected {
			return p
		}
	}
	return nil
}

// TakeoverSeats lists seats currently open for takeover.
func (c *Controller) TakeoverSeats() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.engine == nil {
		return nil
	}
	seats := []int{}
	for _, p := range c.players {
		if !p.Connected {
			seats = append(seats, p.Seat)
		}
	}
	return seats
}

func (c *Controller) Summary() protocol.TableSummary {
	c.mu.Lock()
	defer c.mu.Unlock()

	takeover := []int{}
	for _, p := range c.players {
		if c.engine != nil && !p.Connected {
			takeover = append(takeover, p.Seat)
		}
	}
	return protocol.TableSummary{
		TableID:        c.id,
		GameType:       c.gameType,
		PlayerCount:    len(c.players),
		SpectatorCount: len(c.spectators),
		InProgress:     c.engine != nil,
		TakeoverSeats:  takeover,
		Players:        c.playerInfosLocked(),
	}
}

func (c *Controller) playerInfosLocked() []protocol.PlayerInfo {
	infos := make([]protocol.PlayerInfo, 0, len(c.players))
	for _, p := range c.players {
		infos = append(infos, protocol.PlayerInfo{
			ID:        p.ID,
			Name:      p.Name,
			Seat:      p.Seat,
			Connected: p.Connected,
		})
	}
	return infos
}

func (c *Controller) sendJoinedLocked(p *Player) {
	data := ginH{
		"tableId":  c.id,
		"seat":     p.Seat,
		"gameType": c.gameType,
		"players":  c.playerInfosLocked(),
	}
	if c.gameType == game.GameHearts {
		data["endingScore"] = c.opts.EndingScore
	}
	if c.gameType == game.GameSpades {
		data["winThreshold"] = c.opts.WinThreshold
	}
	c.sendLocked(p.ID, protocol.EvTableJoined, data)
}

// replayStateLocked brings a reconnecting or takeover player up to
// date: current snapshot plus the live timer deadline.
func (c *Controller) replayStateLocked(p *Player) {
	if c.engine == nil {
		return
	}
	c.sendLocked(p.ID, protocol.EvUpdateGame, c.engine.Snapshot(p.Seat))
	c.rearmPhaseTimerLocked()
	c.resendTimerLocked(p.ID)
}

// cleanup scheduling

func (c *Controller) maybeScheduleCleanupLocked() {
	if !c.abandonedLocked() {
		return
	}
	// Nobody is left to act or watch; stop the phase timers too.
	c.cancelTimerLocked()
	if c.cleanupTimer != nil {
		return
	}
	c.cleanupGen++
	gen := c.cleanupGen
	c.cleanupTimer = time.AfterFunc(cleanupDelay, func() {
		c.mu.Lock()
		if gen != c.cleanupGen || !c.abandonedLocked() || c.destroyed {
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()
		c.Destroy()
	})
	logger.Log.Info("table cleanup scheduled", zap.String("tableID", c.id))
}

func (c *Controller) cancelCleanupLocked() {
	c.cleanupGen++
	if c.cleanupTimer != nil {
		c.cleanupTimer.Stop()
		c.cleanupTimer = nil
	}
}

func (c *Controller) abandonedLocked() bool {
	if len(c.spectators) > 0 {
		return false
	}
	for _, p := range c.players {
		if p.Connected {
			return false
		}
	}
	return true
}

// Abandoned reports whether nobody connected remains; used by the
// registry sweep.
func (c *Controller) Abandoned() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.abandonedLocked()
}

// Destroy cancels all timers and detaches the table from the registry.
func (c *Controller) Destroy() {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return
	}
	c.destroyed = true
	c.cancelTimerLocked()
	c.cancelCleanupLocked()
	for _, t := range c.typing {
		t.Stop()
	}
	c.typing = map[string]*time.Timer{}
	release := c.onRelease
	c.mu.Unlock()

	logger.Log.Info("table destroyed", zap.String("tableID", c.id))
	if release != nil {
		release(c.id)
	}
}

// fan-out

func (c *Controller) nextSeqLocked() int64 {
	c.seq++
	return c.seq
}

func (c *Controller) sendLocked(id string, typ string, data interface{}) {
	ch, ok := c.subs[id]
	if !ok {
		return
	}
	msg := protocol.Outgoing{Type: typ, Seq: c.nextSeqLocked(), Data: data}
	select {
	case ch <- msg:
	default:
		logger.Log.Warn("subscriber channel full",
			zap.String("tableID", c.id),
			zap.String("subscriberID", id),
			zap.String("event", typ),
		)
	}
}

// broadcastLocked fans one event out to every seat and spectator.
func (c *Controller) broadcastLocked(typ string, data interface{}) {
	for id := range c.subs {
		c.sendLocked(id, typ, data)
	}
}

// broadcastExceptLocked fans out to everyone but one participant.
func (c *Controller) broadcastExceptLocked(exceptID, typ string, data interface{}) {
	for id := range c.subs {
		if id == exceptID {
			continue
		}
		c.sendLocked(id, typ, data)
	}
}

// broadcastSnapshotsLocked emits one updateGame per participant: seats
// see their own hand, spectators the hidden-hand projection.
func (c *Controller) broadcastSnapshotsLocked() {
	if c.engine == nil {
		return
	}
	for _, p := range c.players {
		c.sendLocked(p.ID, protocol.EvUpdateGame, c.engine.Snapshot(p.Seat))
	}
	if len(c.spectators) == 0 {
		return
	}
	spectatorState := c.engine.Snapshot(game.ViewerSpectator)
	for id := range c.spectators {
		c.sendLocked(id, protocol.EvSpectatorUpdate, ginH{"gameState": spectatorState})
	}
}

func (c *Controller) broadcastPlayersLocked() {
	c.broadcastLocked(protocol.EvUpdatePlayers, ginH{"players": c.playerInfosLocked()})
}

func (c *Controller) broadcastSpectatorCountLocked() {
	c.broadcastLocked(protocol.EvSpectatorUpdate, ginH{"spectatorCount": len(c.spectators)})
}

// ginH is a tiny helper to avoid importing gin in this package.
type ginH map[string]interface{}
