package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
	"github.com/thereayou/partychat/internal/cache"
	"github.com/thereayou/partychat/internal/config"
	"github.com/thereayou/partychat/internal/database"
	"github.com/thereayou/partychat/internal/events"
	"github.com/thereayou/partychat/internal/handlers"
	"github.com/thereayou/partychat/internal/matchmaking"
	"github.com/thereayou/partychat/internal/services"
	"github.com/thereayou/partychat/internal/websocket"
	"github.com/thereayou/partychat/pkg/auth"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	Config     config.Config
	Router     *gin.Engine
	DB         *database.Database
	Redis      *redis.Client
	Hub        *websocket.Hub
	JWTManager *auth.JWTManager
	Match      *matchmaking.Service
	Events     events.Publisher
}

func NewServer(ctx context.Context, cfg config.Config) (*Server, error) {
	dbConn := &database.Database{}
	if err := dbConn.Connect(cfg.DatabaseURL); err != nil {
		return nil, fmt.Errorf("database connect: %w", err)
	}

	rdb, err := cache.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	var jwtMgr *auth.JWTManager
	if cfg.JWTSecret != "" {
		jwtMgr = auth.NewJWTManager(cfg.JWTSecret, 24*time.Hour)
	}

	var publisher events.Publisher = events.Nop{}
	if cfg.RabbitMQURL != "" {
		publisher = events.NewAMQPPublisher(cfg.RabbitMQURL)
	}

	hub := websocket.NewHub(rdb)

	queue := cache.NewTicketQueue(rdb, cfg.MatchQueueTTL)
	engine := matchmaking.NewEngine(cache.NewLocker(rdb), queue, dbConn, cfg.MatchLockTTL, cfg.MatchRoomTitle)
	match := matchmaking.NewService(dbConn, queue, engine, hub, publisher)
	chat := services.NewChatService(dbConn, cache.NewPresence(rdb, cfg.PresenceTTL), hub, publisher)

	gin.SetMode(cfg.GinMode)
	router := gin.New()
	APIEndpoints(router, Handlers{
		WS:       handlers.NewWebSocketHandler(hub, chat, match, dbConn, cfg.AllowedOrigins),
		Messages: handlers.NewHTTPMessageHandler(chat),
		Rooms:    handlers.NewRoomHandler(chat),
		Health:   handlers.NewHealthHandler(dbConn, rdb),
	}, jwtMgr, rdb)

	return &Server{
		Config:     cfg,
		Router:     router,
		DB:         dbConn,
		Redis:      rdb,
		Hub:        hub,
		JWTManager: jwtMgr,
		Match:      match,
		Events:     publisher,
	}, nil
}

// Run обслуживает HTTP до отмены ctx, затем корректно останавливается
func (s *Server) Run(ctx context.Context) error {
	go s.Hub.Run()
	if err := s.Hub.Listen(ctx); err != nil {
		return fmt.Errorf("hub listen: %w", err)
	}
	defer s.Hub.Stop()

	if s.Config.MatchSweepInterval > 0 {
		go s.Match.RunSweeper(ctx, s.Config.MatchSweepInterval)
	}

	srv := &http.Server{
		Addr:              ":" + s.Config.Port,
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", s.Config.Port).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) Close() {
	if c, ok := s.Events.(io.Closer); ok {
		if err := c.Close(); err != nil {
			log.Warn().Err(err).Msg("events close")
		}
	}
	if err := s.Redis.Close(); err != nil {
		log.Warn().Err(err).Msg("redis close")
	}
	if err := s.DB.Close(); err != nil {
		log.Warn().Err(err).Msg("database close")
	}
}
