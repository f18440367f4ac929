package lobby

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"masa-service/internal/config"
	"masa-service/internal/protocol"
	"masa-service/internal/service/table"
	appErr "masa-service/pkg/errors"
	"masa-service/pkg/logger"
	"masa-service/pkg/utils/random"

	"go.uber.org/zap"
)

const idRetries = 100

// client is one connected session and its table membership.
type client struct {
	id      string
	name    string
	ch      chan<- protocol.Outgoing
	tableID string
}

// Service is the registry of active tables plus the routing layer
// between connected clients and their table controllers.
type Service struct {
	mu      sync.Mutex
	tables  map[string]*table.Controller
	clients map[string]*client

	startOnce sync.Once
}

func NewService() *Service {
	return &Service{
		tables:  make(map[string]*table.Controller),
		clients: make(map[string]*client),
	}
}

// Start launches the periodic sweep destroying abandoned tables.
func (s *Service) Start(ctx context.Context) error {
	s.startOnce.Do(func() {
		interval := time.Duration(config.GlobalConfig.Game.SweepSeconds) * time.Second
		if interval < time.Minute {
			interval = time.Minute
		}
		go s.runSweep(ctx, interval)
	})
	return nil
}

func (s *Service) runSweep(ctx context.Context, interval time.Duration) {
	logger.Log.Info("table sweep started", zap.Duration("interval", interval))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Log.Info("table sweep stopped")
			return
		case <-ticker.C:
			for _, ctrl := range s.snapshotTables() {
				if ctrl.Abandoned() {
					ctrl.Destroy()
				}
			}
		}
	}
}

func (s *Service) snapshotTables() []*table.Controller {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*table.Controller, 0, len(s.tables))
	for _, ctrl := range s.tables {
		out = append(out, ctrl)
	}
	return out
}

// Register attaches a connected client session.
func (s *Service) Register(id, name string, ch chan<- protocol.Outgoing) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[id] = &client{id: id, name: name, ch: ch}
}

// Drop handles a closed connection: the seat stays claimable.
func (s *Service) Drop(id string) {
	s.mu.Lock()
	cl, ok := s.clients[id]
	var ctrl *table.Controller
	if ok {
		ctrl = s.tables[cl.tableID]
		delete(s.clients, id)
	}
	s.mu.Unlock()

	if ctrl != nil {
		ctrl.Disconnect(id)
	}
}

// newTableIDLocked draws from the word dictionary, retrying on collision and
// falling back to a numeric suffix. Caller holds the registry lock.
func (s *Service) newTableIDLocked() string {
	for i := 0; i < idRetries; i++ {
		id := tableWords[rand.Intn(len(tableWords))]
		if _, taken := s.tables[id]; !taken {
			return id
		}
	}
	for {
		id := tableWords[rand.Intn(len(tableWords))] + "-" + random.Numeric(4)
		if _, taken := s.tables[id]; !taken {
			return id
		}
	}
}

func (s *Service) CreateTable(clientID string, req protocol.CreateTableReq) (*table.Controller, error) {
	if req.PlayerName == "" {
		return nil, appErr.ErrNameRequired
	}
	if !req.GameType.Valid() {
		return nil, appErr.ErrInternal
	}

	opts := table.Options{
		EndingScore:         req.Options.EndingScore,
		WinThreshold:        req.Options.WinThreshold,
		InitialSelectorSeat: req.Options.InitialSelectorSeat,
	}
	if opts.EndingScore <= 0 {
		opts.EndingScore = config.GlobalConfig.EndingScore()
	}
	if opts.WinThreshold <= 0 {
		opts.WinThreshold = config.GlobalConfig.Game.DefaultWinThreshold
	}

	s.mu.Lock()
	cl, ok := s.clients[clientID]
	if !ok {
		s.mu.Unlock()
		return nil, appErr.ErrInternal
	}
	if cl.tableID != "" {
		s.mu.Unlock()
		return nil, appErr.ErrGameInProgress
	}
	id := s.newTableIDLocked()
	ctrl := table.NewController(id, req.GameType, opts, s.releaseTable)
	s.tables[id] = ctrl
	cl.tableID = id
	ch := cl.ch
	s.mu.Unlock()

	logger.Log.Info("table created",
		zap.String("tableID", id),
		zap.String("gameType", string(req.GameType)),
	)

	if _, err := ctrl.Join(clientID, req.PlayerName, ch); err != nil {
		s.detach(clientID)
		ctrl.Destroy()
		return nil, err
	}
	return ctrl, nil
}

func (s *Service) JoinTable(clientID string, req protocol.JoinTableReq) error {
	s.mu.Lock()
	cl, ok := s.clients[clientID]
	if !ok {
		s.mu.Unlock()
		return appErr.ErrInternal
	}
	if cl.tableID != "" {
		s.mu.Unlock()
		return appErr.ErrGameInProgress
	}
	ctrl, ok := s.tables[req.TableID]
	if !ok {
		s.mu.Unlock()
		return appErr.ErrTableNotFound
	}
	ch := cl.ch
	s.mu.Unlock()

	if _, err := ctrl.Join(clientID, req.PlayerName, ch); err != nil {
		return err
	}

	s.mu.Lock()
	if cl, ok := s.clients[clientID]; ok {
		cl.tableID = req.TableID
	}
	s.mu.Unlock()
	return nil
}

func (s *Service) SpectateTable(clientID string, req protocol.SpectateTableReq) error {
	s.mu.Lock()
	cl, ok := s.clients[clientID]
	if !ok {
		s.mu.Unlock()
		return appErr.ErrInternal
	}
	if cl.tableID != "" {
		s.mu.Unlock()
		return appErr.ErrGameInProgress
	}
	ctrl, ok := s.tables[req.TableID]
	if !ok {
		s.mu.Unlock()
		return appErr.ErrTableNotFound
	}
	name := req.PlayerName
	if name == "" {
		name = cl.name
	}
	ch := cl.ch
	s.mu.Unlock()

	if err := ctrl.Spectate(clientID, name, ch); err != nil {
		return err
	}

	s.mu.Lock()
	if cl, ok := s.clients[clientID]; ok {
		cl.tableID = req.TableID
	}
	s.mu.Unlock()
	return nil
}

// LeaveTable detaches a client from its table (seat or spectate).
func (s *Service) LeaveTable(clientID string) error {
	s.mu.Lock()
	cl, ok := s.clients[clientID]
	if !ok || cl.tableID == "" {
		s.mu.Unlock()
		return appErr.ErrNotAtTable
	}
	ctrl := s.tables[cl.tableID]
	cl.tableID = ""
	s.mu.Unlock()

	if ctrl != nil {
		ctrl.Leave(clientID)
	}
	return nil
}

func (s *Service) detach(clientID string) {
	s.mu.Lock()
	if cl, ok := s.clients[clientID]; ok {
		cl.tableID = ""
	}
	s.mu.Unlock()
}

// ListTables returns summaries matching the filter: waiting tables and
// in-progress tables with takeover seats by default, every in-progress
// (spectatable) table when asked.
func (s *Service) ListTables(req protocol.ListTablesReq) []protocol.TableSummary {
	out := []protocol.TableSummary{}
	for _, ctrl := range s.snapshotTables() {
		if req.GameType != "" && ctrl.GameType() != req.GameType {
			continue
		}
		summary := ctrl.Summary()
		if summary.InProgress && !req.IncludeInProgress && len(summary.TakeoverSeats) == 0 {
			continue
		}
		if !summary.InProgress && summary.PlayerCount >= 4 {
			continue
		}
		out = append(out, summary)
	}
	return out
}

func (s *Service) releaseTable(tableID string) {
	s.mu.Lock()
	delete(s.tables, tableID)
	for _, cl := range s.clients {
		if cl.tableID == tableID {
			cl.tableID = ""
		}
	}
	s.mu.Unlock()
	logger.Log.Info("table released", zap.String("tableID", tableID))
}

// Route dispatches one inbound client event.
func (s *Service) Route(clientID string, msg protocol.Incoming) error {
	switch msg.Type {
	case protocol.EvListTables:
		var req protocol.ListTablesReq
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &req); err != nil {
				return appErr.ErrInternal
			}
		}
		s.sendTo(clientID, protocol.EvTablesList, s.ListTables(req))
		return nil

	case protocol.EvCreateTable:
		var req protocol.CreateTableReq
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return appErr.ErrInternal
		}
		_, err := s.CreateTable(clientID, req)
		return err

	case protocol.EvJoinTable:
		var req protocol.JoinTableReq
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return appErr.ErrInternal
		}
		return s.JoinTable(clientID, req)

	case protocol.EvSpectateTable:
		var req protocol.SpectateTableReq
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return appErr.ErrInternal
		}
		return s.SpectateTable(clientID, req)

	case protocol.EvLeaveTable, protocol.EvLeaveSpectate:
		return s.LeaveTable(clientID)

	default:
		s.mu.Lock()
		cl, ok := s.clients[clientID]
		var ctrl *table.Controller
		if ok && cl.tableID != "" {
			ctrl = s.tables[cl.tableID]
		}
		s.mu.Unlock()

		if ctrl == nil {
			return appErr.ErrNotAtTable
		}
		return ctrl.HandleEvent(clientID, msg.Type, msg.Data)
	}
}

func (s *Service) sendTo(clientID, typ string, data interface{}) {
	s.mu.Lock()
	cl, ok := s.clients[clientID]
	s.mu.Unlock()
	if !ok {
		return
	}
	select {
	case cl.ch <- protocol.Outgoing{Type: typ, Data: data}:
	default:
		logger.Log.Warn("client channel full", zap.String("clientID", clientID))
	}
}

// TableCount is used by the health route.
func (s *Service) TableCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tables)
}
