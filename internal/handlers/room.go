package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/thereayou/partychat/internal/handlers/dto"
	"github.com/thereayou/partychat/internal/middleware"
	"github.com/thereayou/partychat/internal/services"
)

type RoomHandler struct {
	chat *services.ChatService
}

func NewRoomHandler(chat *services.ChatService) *RoomHandler {
	return &RoomHandler{chat: chat}
}

// GetPresence возвращает, кто сейчас онлайн в комнате. Данные справочные,
// доступ по ним не проверяется.
func (h *RoomHandler) GetPresence(c *gin.Context) {
	roomID, ok := roomParam(c)
	if !ok {
		return
	}

	online, err := h.chat.Presence(c.Request.Context(), roomID)
	if err != nil {
		middleware.LoggerFrom(c).Error().Err(err).Uint("room_id", roomID).Msg("presence snapshot")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get presence"})
		return
	}
	if online == nil {
		online = []uint{}
	}

	c.JSON(http.StatusOK, dto.PresenceResponse{RoomID: roomID, Online: online})
}
