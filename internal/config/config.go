package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds every knob the daemon reads from the environment.
type Config struct {
	// UDP ingress
	UDPHost       string `validate:"required"`
	UDPPort       int    `validate:"min=1,max=65535"`
	MaxPacketSize int    `validate:"min=128"`

	// Per-source rate limiting
	RateLimitPerMinute int `validate:"min=1"`
	RateLimitBurst     int `validate:"min=1"`

	// Behavior
	SkipAuth    bool
	LogBots     bool
	LogLevel    string `validate:"oneof=error warn info debug"`
	DefaultGame string `validate:"required"`

	// Operational HTTP surface
	HTTPAddr       string `validate:"required"`
	AllowedOrigins []string

	// Storage
	PostgresURL   string `validate:"required"`
	RedisURL      string
	ClickHouseURL string

	// Engine
	WorkerLanes   int `validate:"min=1,max=256"`
	LaneQueueSize int `validate:"min=1"`

	// Raw-line archive batching
	ArchiveBatchSize     int           `validate:"min=1"`
	ArchiveFlushInterval time.Duration `validate:"min=100ms"`
}

// Load reads configuration from environment variables.
// It returns an error if critical configuration is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		UDPHost:       getEnv("UDP_HOST", "0.0.0.0"),
		UDPPort:       getEnvInt("UDP_PORT", 27500),
		MaxPacketSize: getEnvInt("MAX_PACKET_SIZE", 8192),

		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 2000),
		RateLimitBurst:     getEnvInt("RATE_LIMIT_BURST", 200),

		SkipAuth:    getEnvBool("SKIP_AUTH", false),
		LogBots:     getEnvBool("LOG_BOTS", true),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		DefaultGame: getEnv("DEFAULT_GAME", "cstrike"),

		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		RedisURL:      getEnv("REDIS_URL", ""),
		ClickHouseURL: getEnv("CLICKHOUSE_URL", ""),

		WorkerLanes:   getEnvInt("WORKER_LANES", 8),
		LaneQueueSize: getEnvInt("LANE_QUEUE_SIZE", 1024),

		ArchiveBatchSize:     getEnvInt("ARCHIVE_BATCH_SIZE", 500),
		ArchiveFlushInterval: getEnvDuration("ARCHIVE_FLUSH_INTERVAL", time.Second),
	}

	// CORS
	origins := getEnv("ALLOWED_ORIGINS", "")
	for _, o := range strings.Split(origins, ",") {
		if trimmed := strings.TrimSpace(o); trimmed != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, trimmed)
		}
	}

	// Critical configuration - fail if missing
	var err error
	if cfg.PostgresURL, err = getEnvRequired("POSTGRES_URL"); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate applies the struct tags plus the checks tags cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.RateLimitBurst > c.RateLimitPerMinute {
		return fmt.Errorf("invalid configuration: RATE_LIMIT_BURST (%d) exceeds RATE_LIMIT_PER_MINUTE (%d)",
			c.RateLimitBurst, c.RateLimitPerMinute)
	}
	return nil
}

// PublishEnabled reports whether a live-stats publisher is configured.
func (c *Config) PublishEnabled() bool { return c.RedisURL != "" }

// ArchiveEnabled reports whether the raw-line archive is configured.
func (c *Config) ArchiveEnabled() bool { return c.ClickHouseURL != "" }

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvRequired(key string) (string, error) {
	if value := os.Getenv(key); value != "" {
		return value, nil
	}
	return "", fmt.Errorf("missing required environment variable: %s", key)
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
