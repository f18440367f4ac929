package ws

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"masa-service/internal/config"
	"masa-service/internal/protocol"
	"masa-service/internal/service/lobby"
	pkgAuth "masa-service/pkg/auth"
	"masa-service/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type Handler struct {
	lobbySvc *lobby.Service
}

func NewHandler(lobbySvc *lobby.Service) *Handler {
	return &Handler{lobbySvc: lobbySvc}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	allowed := config.GlobalConfig.Server.AllowedOrigins
	if len(allowed) == 0 {
		return config.GlobalConfig.Server.Mode != "release"
	}
	for _, a := range allowed {
		if strings.EqualFold(a, origin) {
			return true
		}
	}
	return false
}

// HandleWS upgrades the connection and binds it to the guest session
// from the token.
func (h *Handler) HandleWS(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	claims, err := pkgAuth.ParseSessionToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Log.Error("Failed to upgrade websocket", zap.Error(err))
		return
	}

	logger.Log.Info("New WebSocket connection",
		zap.String("playerID", claims.PlayerID),
		zap.String("name", claims.Name),
	)

	client := newClient(conn, claims.PlayerID, claims.Name, h.lobbySvc)
	client.run()
}

type client struct {
	conn      *websocket.Conn
	playerID  string
	name      string
	lobbySvc  *lobby.Service
	outbound  chan protocol.Outgoing
	done      chan struct{}
	pingEvery time.Duration
}

func newClient(conn *websocket.Conn, playerID, name string, lobbySvc *lobby.Service) *client {
	conn.SetReadLimit(1 << 20)
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	return &client{
		conn:      conn,
		playerID:  playerID,
		name:      name,
		lobbySvc:  lobbySvc,
		outbound:  make(chan protocol.Outgoing, 32),
		done:      make(chan struct{}),
		pingEvery: 25 * time.Second,
	}
}

func (c *client) run() {
	c.lobbySvc.Register(c.playerID, c.name, c.outbound)
	go c.writePump()
	c.readPump()
}

func (c *client) readPump() {
	defer func() {
		close(c.done)
		c.lobbySvc.Drop(c.playerID)
		c.conn.Close()
	}()

	for {
		mt, message, err := c.conn.ReadMessage()
		if err != nil {
			logger.Log.Info("WS read error", zap.Error(err), zap.String("playerID", c.playerID))
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		var incoming protocol.Incoming
		if err := json.Unmarshal(message, &incoming); err != nil {
			c.safeWrite(protocol.Outgoing{
				Type: protocol.EvError,
				Data: protocol.ErrorPayload{Message: "invalid payload"},
			})
			continue
		}
		if incoming.Type == "" {
			continue
		}

		if err := c.lobbySvc.Route(c.playerID, incoming); err != nil {
			c.safeWrite(protocol.Outgoing{
				Type: protocol.EvError,
				Data: protocol.ErrorPayload{Message: err.Error()},
			})
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(c.pingEvery)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.outbound:
			if !ok {
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				logger.Log.Info("WS write error", zap.Error(err), zap.String("playerID", c.playerID))
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *client) safeWrite(msg protocol.Outgoing) {
	if err := c.conn.WriteJSON(msg); err != nil {
		logger.Log.Info("WS write error", zap.Error(err), zap.String("playerID", c.playerID))
	}
}
