// Package server provides configuration helpers that define runtime defaults,
// validation, and rate-limiting parameters for the SketchHub service.
package server

import (
	"fmt"
	"time"

	"github.com/Tyrowin/sketchhub/internal/store"
	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Burst          int           `envconfig:"BURST" default:"20"`
	RefillInterval time.Duration `envconfig:"REFILL_INTERVAL" default:"1s"`
}

// Config holds the server configuration settings including security controls.
type Config struct {
	Port           string   `envconfig:"SERVER_PORT" default:":8080"`
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:8080"`
	MaxMessageSize int64    `envconfig:"MAX_MESSAGE_SIZE" default:"4096"`
	SendBufferSize int      `envconfig:"SEND_BUFFER_SIZE" default:"256"`

	DefaultRoom       string `envconfig:"DEFAULT_ROOM" default:"MainRoom"`
	GatherConcurrency int    `envconfig:"GATHER_CONCURRENCY" default:"16"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json" validate:"oneof=json console"`

	ShutdownTimeout        time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	Debug                  bool          `envconfig:"DEBUG" default:"false"`
	DebugBroadcastInterval time.Duration `envconfig:"DEBUG_BROADCAST_INTERVAL" default:"60s"`

	RateLimit RateLimitConfig `envconfig:"RATE_LIMIT"`
	Store     store.Config    `envconfig:"STORE"`
}

func defaultConfig() Config {
	return Config{
		Port: ":8080",
		AllowedOrigins: []string{
			"http://localhost:8080",
		},
		MaxMessageSize:         4096,
		SendBufferSize:         256,
		DefaultRoom:            "MainRoom",
		GatherConcurrency:      16,
		LogLevel:               "info",
		LogFormat:              "json",
		ShutdownTimeout:        10 * time.Second,
		DebugBroadcastInterval: 60 * time.Second,
		RateLimit: RateLimitConfig{
			Burst:          20,
			RefillInterval: time.Second,
		},
		Store: store.Config{
			Backend:   store.BackendRedis,
			RedisAddr: "127.0.0.1:6379",
			KeyPrefix: "sketchhub:",
			Timeout:   3 * time.Second,
		},
	}
}

// sanitizeConfig replaces unset or non-positive values with their defaults.
// Origins are normalized later, when the origin policy is built.
func sanitizeConfig(cfg Config) Config {
	defaults := defaultConfig()

	if cfg.Port == "" {
		cfg.Port = defaults.Port
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaults.MaxMessageSize
	}
	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = defaults.SendBufferSize
	}
	if cfg.DefaultRoom == "" {
		cfg.DefaultRoom = defaults.DefaultRoom
	}
	if cfg.GatherConcurrency <= 0 {
		cfg.GatherConcurrency = defaults.GatherConcurrency
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaults.ShutdownTimeout
	}
	if cfg.DebugBroadcastInterval <= 0 {
		cfg.DebugBroadcastInterval = defaults.DebugBroadcastInterval
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = defaults.RateLimit.Burst
	}
	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = defaults.RateLimit.RefillInterval
	}
	if cfg.Store.Timeout <= 0 {
		cfg.Store.Timeout = defaults.Store.Timeout
	}

	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// LoadConfig reads the configuration from the environment. Unset variables
// take the defaults declared on the struct tags, non-positive sizes and
// durations fall back to defaults, and enumerated settings are validated.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	cfg = sanitizeConfig(cfg)
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
