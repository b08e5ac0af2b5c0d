package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/thereayou/partychat/internal/database"
	"github.com/thereayou/partychat/internal/matchmaking"
	"github.com/thereayou/partychat/internal/metrics"
	"github.com/thereayou/partychat/internal/middleware"
	"github.com/thereayou/partychat/internal/models"
	"github.com/thereayou/partychat/internal/services"
	ws "github.com/thereayou/partychat/internal/websocket"
)

// opTimeout bounds every store call made on behalf of a websocket frame.
const opTimeout = 10 * time.Second

type UserLookup interface {
	GetUser(ctx context.Context, id uint) (*models.User, error)
}

// WebSocketHandler управляет WebSocket соединениями
type WebSocketHandler struct {
	hub      *ws.Hub
	chat     *services.ChatService
	match    *matchmaking.Service
	users    UserLookup
	upgrader websocket.Upgrader
}

// NewWebSocketHandler создает новый WebSocket handler. Пустой allowedOrigins
// пропускает любой origin.
func NewWebSocketHandler(hub *ws.Hub, chat *services.ChatService, match *matchmaking.Service, users UserLookup, allowedOrigins []string) *WebSocketHandler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return &WebSocketHandler{
		hub:   hub,
		chat:  chat,
		match: match,
		users: users,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowed) == 0 || origin == "" || allowed[origin]
			},
		},
	}
}

// HandleChat обслуживает /ws/chat/:room_id/:user_id. Участие в комнате
// проверяется до upgrade, чужой получает 403 и ничего не регистрируется.
func (h *WebSocketHandler) HandleChat(c *gin.Context) {
	roomID, err1 := strconv.ParseUint(c.Param("room_id"), 10, 64)
	userID, err2 := strconv.ParseUint(c.Param("user_id"), 10, 64)
	if err1 != nil || err2 != nil || roomID == 0 || userID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room or user id"})
		return
	}

	if authID, ok := middleware.AuthenticatedUser(c); ok && authID != uint(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "token does not match user"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), opTimeout)
	defer cancel()

	err := h.chat.Authorize(ctx, uint(roomID), uint(userID))
	switch {
	case errors.Is(err, database.ErrNotParticipant), errors.Is(err, database.ErrNotFound):
		c.JSON(http.StatusForbidden, gin.H{"error": "you are not a member of this room"})
		return
	case err != nil:
		middleware.LoggerFrom(c).Error().Err(err).Msg("chat authorize")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := ws.NewClient(h.hub, conn, uint(userID))
	if err := h.hub.Register(client); err != nil {
		_ = conn.Close()
		return
	}

	session := newChatSession(h.hub, h.chat, uint(roomID), uint(userID))
	if err := session.open(client); err != nil {
		client.Log.Error().Err(err).Uint("room_id", uint(roomID)).Msg("chat presence join")
	}

	go client.WritePump()
	go client.ReadPump(session)
}

// HandleMatch обслуживает /ws/match. Соединение принимается сразу,
// пользователь указывается в каждом запросе.
func (h *WebSocketHandler) HandleMatch(c *gin.Context) {
	authID, _ := middleware.AuthenticatedUser(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := ws.NewClient(h.hub, conn, authID)
	if err := h.hub.Register(client); err != nil {
		_ = conn.Close()
		return
	}

	session := newMatchSession(h.hub, h.match, h.users, authID)
	metrics.WSConnections.WithLabelValues(metrics.KindMatch).Inc()
	log.Debug().Str("conn_id", client.ID.String()).Msg("match connection open")

	go client.WritePump()
	go client.ReadPump(session)
}
