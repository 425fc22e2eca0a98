package store

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Backend names accepted by Open.
const (
	BackendRedis  = "redis"
	BackendBadger = "badger"
)

// Config selects and configures a Store backend.
type Config struct {
	Backend       string        `envconfig:"BACKEND" default:"redis" validate:"oneof=redis badger"`
	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379" validate:"required_if=Backend redis"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0" validate:"gte=0"`
	BadgerPath    string        `envconfig:"BADGER_PATH"`
	KeyPrefix     string        `envconfig:"KEY_PREFIX" default:"sketchhub:"`
	Timeout       time.Duration `envconfig:"TIMEOUT" default:"3s" validate:"gt=0"`
}

// Option customizes a backend.
type Option func(*options)

type options struct {
	log *zap.Logger
}

// WithLogger sets the logger used to report skipped history records.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

func applyOptions(opts []Option) options {
	o := options{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Open connects to the configured backend. The Redis backend is pinged so
// that a bad address fails at startup rather than on the first event.
func Open(ctx context.Context, cfg Config, opts ...Option) (Store, error) {
	switch cfg.Backend {
	case BackendRedis, "":
		client := NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 3 * time.Second
		}
		pingCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
		}
		return NewRedisStore(client, cfg.KeyPrefix, opts...), nil
	case BackendBadger:
		db, err := OpenBadger(cfg.BadgerPath)
		if err != nil {
			return nil, fmt.Errorf("badger open %q: %w", cfg.BadgerPath, err)
		}
		return NewBadgerStore(db, cfg.KeyPrefix, opts...), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
