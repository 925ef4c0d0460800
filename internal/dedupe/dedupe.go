// Package dedupe remembers tip event keys so a redelivered event plays once.
package dedupe

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
)

// ErrUnknownBackend is returned by New for an unsupported backend name.
var ErrUnknownBackend = errors.New("unknown dedupe backend")

const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendNone   = "none"

	DefaultCapacity = 1024
	DefaultTTL      = 24 * time.Hour
)

// Store records keys. Seen reports whether key was already recorded within
// the TTL and records it otherwise, in one atomic step.
type Store interface {
	Seen(ctx context.Context, key string) (bool, error)
	// Prune drops expired keys. Backends that expire keys on their own
	// return nil.
	Prune(ctx context.Context) error
	Close() error
}

type Config struct {
	Backend  string
	Capacity int
	TTL      time.Duration
	Path     string
	RedisURL string
}

// New opens the configured backend. An empty backend means memory.
func New(cfg Config, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}

	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	switch backend {
	case "", BackendMemory:
		return NewMemory(cfg.Capacity, cfg.TTL), nil
	case BackendSQLite:
		return OpenSQLite(cfg.Path, cfg.TTL, logger)
	case BackendRedis:
		return OpenRedis(cfg.RedisURL, cfg.TTL, logger)
	case BackendNone:
		return None{}, nil
	default:
		return nil, errors.Wrapf(ErrUnknownBackend, "%q", cfg.Backend)
	}
}

// None never reports duplicates.
type None struct{}

func (None) Seen(context.Context, string) (bool, error) { return false, nil }
func (None) Prune(context.Context) error                { return nil }
func (None) Close() error                               { return nil }
