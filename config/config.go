package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	// Rooms to synchronize (comma-separated slugs in ROOMSYNC_ROOMS)
	Rooms []string

	// Platform API
	APIBaseURL string
	APIToken   string
	WSURL      string

	// Dashboard HTTP server
	HTTPPort int

	LogLevel string

	// Database configuration (event journal)
	DatabaseHost     string
	DatabasePort     int
	DatabaseName     string
	DatabaseUser     string
	DatabasePassword string
	JournalEnabled   bool

	// Redis configuration (snapshot cache)
	RedisHost     string
	RedisPort     string
	RedisPassword string

	// Cache TTLs per resource
	Cache CacheConfig

	// Realtime tuning
	Realtime RealtimeConfig

	// Notification webhooks
	Webhooks []Webhook
}

// CacheConfig holds per-resource snapshot cache TTLs.
type CacheConfig struct {
	AlertsTTL      time.Duration
	TradePlanTTL   time.Duration
	StatsTTL       time.Duration
	TradesTTL      time.Duration
	WeeklyVideoTTL time.Duration
}

// RealtimeConfig holds bridge and transport tuning parameters.
type RealtimeConfig struct {
	PerPage        int           // alerts page size
	BadgeWindow    time.Duration // how long an alert keeps its "new" badge
	SweepInterval  time.Duration // badge expiry sweep cadence
	StatePoll      time.Duration // connection-state poll cadence
	PingInterval   time.Duration // keep-alive ping cadence
	StaleAfter     time.Duration // reconnect if no message for this long
	ReconnectDelay time.Duration // initial reconnect backoff
	MaxReconnect   time.Duration // backoff cap
}

// Webhook is one notification endpoint for alert fan-out.
// Rooms/AlertTypes are comma-separated filters; empty means "all".
type Webhook struct {
	URL        string
	AuthToken  string
	Rooms      string
	AlertTypes string
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	// Load .env file if exists
	_ = godotenv.Load()

	cfg := &Config{
		Rooms:      splitList(getEnvOrDefault("ROOMSYNC_ROOMS", "explosive-swings,spx-profit-pulse")),
		APIBaseURL: getEnvOrDefault("PLATFORM_API_URL", "https://api.traderoom.example.com"),
		APIToken:   os.Getenv("PLATFORM_API_TOKEN"),
		WSURL:      getEnvOrDefault("PLATFORM_WS_URL", "wss://ws.traderoom.example.com/ws"),

		HTTPPort: getEnvInt("HTTP_PORT", 8080),
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),

		DatabaseHost:     getEnvOrDefault("DB_HOST", "localhost"),
		DatabasePort:     getEnvInt("DB_PORT", 5432),
		DatabaseName:     getEnvOrDefault("DB_NAME", "roomsync"),
		DatabaseUser:     getEnvOrDefault("DB_USER", "roomsync"),
		DatabasePassword: getEnvOrDefault("DB_PASSWORD", ""),
		JournalEnabled:   getEnvOrDefault("JOURNAL_ENABLED", "true") == "true",

		RedisHost:     getEnvOrDefault("REDIS_HOST", "localhost"),
		RedisPort:     getEnvOrDefault("REDIS_PORT", "6379"),
		RedisPassword: getEnvOrDefault("REDIS_PASSWORD", ""),

		Cache: CacheConfig{
			AlertsTTL:      getEnvDuration("CACHE_ALERTS_TTL", 30*time.Second),
			TradePlanTTL:   getEnvDuration("CACHE_TRADE_PLAN_TTL", 60*time.Second),
			StatsTTL:       getEnvDuration("CACHE_STATS_TTL", 30*time.Second),
			TradesTTL:      getEnvDuration("CACHE_TRADES_TTL", 30*time.Second),
			WeeklyVideoTTL: getEnvDuration("CACHE_WEEKLY_VIDEO_TTL", 5*time.Minute),
		},

		Realtime: RealtimeConfig{
			PerPage:        getEnvInt("ALERTS_PER_PAGE", 10),
			BadgeWindow:    getEnvDuration("BADGE_WINDOW", 30*time.Second),
			SweepInterval:  getEnvDuration("BADGE_SWEEP_INTERVAL", 5*time.Second),
			StatePoll:      getEnvDuration("STATE_POLL_INTERVAL", 2*time.Second),
			PingInterval:   getEnvDuration("WS_PING_INTERVAL", 25*time.Second),
			StaleAfter:     getEnvDuration("WS_STALE_AFTER", 5*time.Minute),
			ReconnectDelay: getEnvDuration("WS_RECONNECT_DELAY", 5*time.Second),
			MaxReconnect:   getEnvDuration("WS_MAX_RECONNECT_DELAY", 60*time.Second),
		},

		Webhooks: loadWebhooks(),
	}

	return cfg
}

// loadWebhooks reads up to ten numbered webhook definitions
// (WEBHOOK_1_URL, WEBHOOK_1_TOKEN, WEBHOOK_1_ROOMS, WEBHOOK_1_TYPES, ...).
func loadWebhooks() []Webhook {
	var hooks []Webhook
	for i := 1; i <= 10; i++ {
		url := os.Getenv(fmt.Sprintf("WEBHOOK_%d_URL", i))
		if url == "" {
			continue
		}
		hooks = append(hooks, Webhook{
			URL:        url,
			AuthToken:  os.Getenv(fmt.Sprintf("WEBHOOK_%d_TOKEN", i)),
			Rooms:      os.Getenv(fmt.Sprintf("WEBHOOK_%d_ROOMS", i)),
			AlertTypes: os.Getenv(fmt.Sprintf("WEBHOOK_%d_TYPES", i)),
		})
	}
	return hooks
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// getEnvInt gets environment variable as int or returns default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var intValue int
	if _, err := fmt.Sscanf(value, "%d", &intValue); err != nil {
		return defaultValue
	}
	return intValue
}

// getEnvDuration gets environment variable as duration or returns default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}

// getEnvOrDefault gets environment variable or returns default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
