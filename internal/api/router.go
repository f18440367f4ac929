package api

import (
	"net/http"
	"strings"

	"masa-service/internal/protocol"
	"masa-service/internal/service"
	"masa-service/internal/service/game"
	"masa-service/internal/ws"
	pkgAuth "masa-service/pkg/auth"
	"masa-service/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	services *service.Container
}

func RegisterRoutes(r *gin.Engine, services *service.Container) {
	handler := &Handler{services: services}
	wsHandler := ws.NewHandler(services.Lobby)

	r.GET("/ping", func(c *gin.Context) {
		response.Success(c, gin.H{
			"message": "pong",
			"tables":  services.Lobby.TableCount(),
		})
	})

	v1 := r.Group("/masaService/v1")
	{
		v1.POST("/session", handler.CreateSession)
		v1.GET("/tables", handler.ListTables)
	}

	r.GET("/ws", wsHandler.HandleWS)
}

type createSessionReq struct {
	Name string `json:"name"`
}

// CreateSession issues a guest session token. The same token keeps the
// same player identity across reconnects.
func (h *Handler) CreateSession(c *gin.Context) {
	var req createSessionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid payload")
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		response.Error(c, http.StatusBadRequest, "name required")
		return
	}

	playerID := uuid.NewString()
	token, err := pkgAuth.GenerateSessionToken(playerID, name)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to create session")
		return
	}
	response.Success(c, gin.H{
		"token":    token,
		"playerId": playerID,
		"name":     name,
	})
}

// ListTables mirrors the listTables ws event for lobby pages that poll
// over plain HTTP.
func (h *Handler) ListTables(c *gin.Context) {
	req := protocol.ListTablesReq{
		IncludeInProgress: c.Query("includeInProgress") == "true",
	}
	if gt := c.Query("gameType"); gt != "" {
		req.GameType = game.GameType(gt)
	}
	response.Success(c, h.services.Lobby.ListTables(req))
}
