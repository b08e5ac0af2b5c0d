package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/thereayou/partychat/internal/database"
	"github.com/thereayou/partychat/internal/handlers/dto"
	"github.com/thereayou/partychat/internal/middleware"
	"github.com/thereayou/partychat/internal/services"
)

// HTTPMessageHandler отдаёт историю комнаты и принимает сообщения от
// внутренних сервисов (отчёты, оценка).
type HTTPMessageHandler struct {
	chat *services.ChatService
}

func NewHTTPMessageHandler(chat *services.ChatService) *HTTPMessageHandler {
	return &HTTPMessageHandler{chat: chat}
}

// GetRoomMessages получает историю сообщений комнаты
func (h *HTTPMessageHandler) GetRoomMessages(c *gin.Context) {
	roomID, ok := roomParam(c)
	if !ok {
		return
	}

	messages, err := h.chat.ListMessages(c.Request.Context(), roomID)
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	if err != nil {
		middleware.LoggerFrom(c).Error().Err(err).Uint("room_id", roomID).Msg("list messages")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// AppendMessage добавляет сообщение в комнату от имени участника и рассылает его
func (h *HTTPMessageHandler) AppendMessage(c *gin.Context) {
	roomID, ok := roomParam(c)
	if !ok {
		return
	}

	var req dto.AppendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := h.chat.AppendMessage(c.Request.Context(), roomID, req.SenderID, req.Text)
	switch {
	case errors.Is(err, database.ErrNotFound), errors.Is(err, database.ErrNotParticipant):
		c.JSON(http.StatusForbidden, gin.H{"error": "sender is not a member of this room"})
		return
	case errors.Is(err, services.ErrEmptyMessage):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		middleware.LoggerFrom(c).Error().Err(err).Uint("room_id", roomID).Msg("append message")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save message"})
		return
	}

	c.JSON(http.StatusCreated, dto.AppendMessageResponse{ID: id})
}

func roomParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return 0, false
	}
	return uint(id), true
}
