package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions configures a RedisCache.
type RedisOptions struct {
	Addr       string
	Password   string
	DB         int
	PoolSize   int
	KeyPrefix  string
	DefaultTTL time.Duration

	// Client reuses an existing connection; Close leaves it open.
	Client redis.UniversalClient
}

// RedisCache stores entries in Redis under KeyPrefix with native expiry.
type RedisCache struct {
	client      redis.UniversalClient
	prefix      string
	defaultTTL  time.Duration
	ownedClient bool
}

// NewRedisCache connects and pings the server.
func NewRedisCache(opts RedisOptions) (*RedisCache, error) {
	client := opts.Client
	owned := false
	if client == nil {
		if opts.Addr == "" {
			return nil, errors.New("redis address is required")
		}
		client = redis.NewClient(&redis.Options{
			Addr:     opts.Addr,
			Password: opts.Password,
			DB:       opts.DB,
			PoolSize: opts.PoolSize,
		})
		owned = true
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		if owned {
			client.Close()
		}
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	ttl := opts.DefaultTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisCache{client: client, prefix: opts.KeyPrefix, defaultTTL: ttl, ownedClient: owned}, nil
}

func (r *RedisCache) key(k string) string {
	return r.prefix + k
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return b, true, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = r.defaultTTL
	}
	if err := r.client.Set(ctx, r.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisCache) Close() error {
	if !r.ownedClient {
		return nil
	}
	return r.client.Close()
}
