// Package cache stores short-lived proxy check results. It has an in-process
// TTL map and a Redis backend selected by configuration.
package cache

import (
	"context"
	"fmt"
	"time"

	"proxygate/internal/models"
)

// Cache is a byte-oriented key/value store with per-entry expiry.
type Cache interface {
	// Get returns the value and true, or false when the key is missing or
	// expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value for ttl. A non-positive ttl uses the backend default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// New builds the cache described by cfg. A disabled cache returns Nop.
func New(cfg models.CacheConfig) (Cache, error) {
	if !cfg.Enabled {
		return Nop{}, nil
	}
	switch cfg.Type {
	case models.CacheTypeMemory:
		return NewMemoryCache(MemoryOptions{
			DefaultTTL:      cfg.TTL,
			MaxSize:         cfg.Memory.MaxSize,
			CleanupInterval: cfg.Memory.CleanupInterval,
		}), nil
	case models.CacheTypeRedis:
		return NewRedisCache(RedisOptions{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			KeyPrefix:  cfg.Redis.KeyPrefix,
			DefaultTTL: cfg.TTL,
		})
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cfg.Type)
	}
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, bool, error)        { return nil, false, nil }
func (Nop) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (Nop) Delete(context.Context, string) error                     { return nil }
func (Nop) Ping(context.Context) error                               { return nil }
func (Nop) Close() error                                             { return nil }
