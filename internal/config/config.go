// Package config loads application settings from the environment.
// .env.local and .env are read first when present.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port           string
	GinMode        string   // debug|release|test
	AllowedOrigins []string // пусто = любой origin

	// Logging
	LogLevel  string
	LogPretty bool

	// Stores
	DatabaseURL string
	RedisURL    string
	RabbitMQURL string // пусто = события не публикуются

	// Auth
	JWTSecret string // пусто = без проверки токена

	// Matchmaking
	MatchLockTTL       time.Duration
	MatchQueueTTL      time.Duration
	MatchSweepInterval time.Duration // 0 = sweeper выключен
	MatchRoomTitle     string

	PresenceTTL time.Duration
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads dotenv files if present, then the environment, applies defaults
// and validates the result.
func Load() (Config, error) {
	if err := godotenv.Load(".env.local"); err != nil {
		_ = godotenv.Load()
	}

	cfg := Config{
		Port:           getenv("PORT", "8080"),
		GinMode:        strings.ToLower(getenv("GIN_MODE", "release")),
		AllowedOrigins: splitCSV(getenv("WS_ALLOWED_ORIGINS", "")),

		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		DatabaseURL: getenv("DATABASE_URL", ""),
		RedisURL:    getenv("REDIS_URL", "redis://localhost:6379/0"),
		RabbitMQURL: getenv("RABBITMQ_URL", ""),

		JWTSecret: getenv("JWT_SECRET", ""),

		MatchLockTTL:       getdur("MATCH_LOCK_TTL", 5*time.Second),
		MatchQueueTTL:      getdur("MATCH_QUEUE_TTL", time.Hour),
		MatchSweepInterval: getdur("MATCH_SWEEP_INTERVAL", 2*time.Second),
		MatchRoomTitle:     getenv("MATCH_ROOM_TITLE", "매칭 채팅방"),

		PresenceTTL: getdur("PRESENCE_TTL", 24*time.Hour),
	}

	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return cfg, errors.New("DATABASE_URL must not be empty")
	}
	if cfg.MatchLockTTL <= 0 || cfg.MatchQueueTTL <= 0 || cfg.PresenceTTL <= 0 {
		return cfg, errors.New("MATCH_LOCK_TTL, MATCH_QUEUE_TTL and PRESENCE_TTL must be positive")
	}
	if cfg.MatchSweepInterval < 0 {
		return cfg, errors.New("MATCH_SWEEP_INTERVAL must be >= 0")
	}

	return cfg, nil
}

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// getdur accepts Go durations ("5s") and bare seconds ("5").
func getdur(k string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(k)
	if !ok || v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return def
}

func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
