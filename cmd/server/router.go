package main

import (
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/thereayou/partychat/internal/handlers"
	"github.com/thereayou/partychat/internal/middleware"
	"github.com/thereayou/partychat/pkg/auth"
)

type Handlers struct {
	WS       *handlers.WebSocketHandler
	Messages *handlers.HTTPMessageHandler
	Rooms    *handlers.RoomHandler
	Health   *handlers.HealthHandler
}

func APIEndpoints(r *gin.Engine, h Handlers, jwtMgr *auth.JWTManager, rdb *redis.Client) {
	r.Use(middleware.RequestID(), middleware.Logger(), middleware.Recovery(), middleware.Metrics())

	r.GET("/healthz", h.Health.Check)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// WebSocket endpoints
	ws := r.Group("/ws", middleware.WSAuthMiddleware(jwtMgr, rdb))
	{
		ws.GET("/chat/:room_id/:user_id", h.WS.HandleChat)
		ws.GET("/match", h.WS.HandleMatch)
	}

	// API endpoints для внутренних сервисов
	api := r.Group("/api/v1")
	{
		api.GET("/rooms/:id/messages", h.Messages.GetRoomMessages)
		api.POST("/rooms/:id/messages", h.Messages.AppendMessage)
		api.GET("/rooms/:id/presence", h.Rooms.GetPresence)
	}
}
