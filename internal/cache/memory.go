package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryOptions configures a MemoryCache.
type MemoryOptions struct {
	DefaultTTL time.Duration
	// MaxSize bounds the number of entries; 0 means unbounded.
	MaxSize         int
	CleanupInterval time.Duration
	// Now overrides the clock in tests.
	Now func() time.Time
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache is an in-process TTL cache. When full, Set evicts the entry
// closest to expiry.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	opts    MemoryOptions

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// NewMemoryCache creates the cache and, when CleanupInterval is positive,
// starts a janitor goroutine that Close stops.
func NewMemoryCache(opts MemoryOptions) *MemoryCache {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = 5 * time.Minute
	}
	c := &MemoryCache{
		entries: make(map[string]memoryEntry),
		opts:    opts,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	if opts.CleanupInterval > 0 {
		go c.janitor(opts.CleanupInterval)
	} else {
		close(c.done)
	}
	return c
}

func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !c.opts.Now().Before(e.expiresAt) {
		delete(c.entries, key)
		return nil, false, nil
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, true, nil
}

func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.opts.DefaultTTL
	}
	stored := make([]byte, len(value))
	copy(stored, value)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && c.opts.MaxSize > 0 && len(c.entries) >= c.opts.MaxSize {
		c.removeExpired()
		if len(c.entries) >= c.opts.MaxSize {
			c.evictSoonest()
		}
	}
	c.entries[key] = memoryEntry{value: stored, expiresAt: c.opts.Now().Add(ttl)}
	return nil
}

func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Len reports the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Cleanup removes expired entries and returns how many were dropped.
func (c *MemoryCache) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.removeExpired()
}

func (c *MemoryCache) Close() error {
	c.once.Do(func() { close(c.stop) })
	<-c.done
	return nil
}

// removeExpired must be called with the lock held.
func (c *MemoryCache) removeExpired() int {
	now := c.opts.Now()
	n := 0
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// evictSoonest must be called with the lock held.
func (c *MemoryCache) evictSoonest() {
	var victim string
	var soonest time.Time
	first := true
	for k, e := range c.entries {
		if first || e.expiresAt.Before(soonest) {
			victim, soonest, first = k, e.expiresAt, false
		}
	}
	if !first {
		delete(c.entries, victim)
	}
}

func (c *MemoryCache) janitor(interval time.Duration) {
	defer close(c.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.Cleanup()
		case <-c.stop:
			return
		}
	}
}
