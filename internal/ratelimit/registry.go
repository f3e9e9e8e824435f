package ratelimit

import (
	"sync"
	"time"
)

// BucketPair holds the two buckets tracked for a single client. Its mutex
// serializes consumption so concurrent requests from one client never draw
// more tokens than the buckets hold.
type BucketPair struct {
	mu     sync.Mutex
	minute *TokenBucket
	hour   *TokenBucket
}

// admit charges the minute bucket first and only then the hour bucket; the
// first refusal wins. A token taken from the minute bucket is kept even when
// the hour bucket refuses.
func (p *BucketPair) admit(now time.Time, cfg Config) Decision {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.minute.Consume(now, 1) {
		return Decision{
			Window:          WindowMinute,
			Limit:           cfg.RequestsPerMinute,
			RetryAfter:      retryAfterSeconds(p.minute.TimeUntilRefill(now)),
			MinuteRemaining: p.minute.Tokens(),
			HourRemaining:   p.hour.Tokens(),
		}
	}

	if !p.hour.Consume(now, 1) {
		return Decision{
			Window:          WindowHour,
			Limit:           cfg.RequestsPerHour,
			RetryAfter:      retryAfterSeconds(p.hour.TimeUntilRefill(now)),
			MinuteRemaining: p.minute.Tokens(),
			HourRemaining:   p.hour.Tokens(),
		}
	}

	return Decision{
		Allowed:         true,
		MinuteRemaining: p.minute.Tokens(),
		HourRemaining:   p.hour.Tokens(),
	}
}

// Remaining returns the current token counts of both buckets.
func (p *BucketPair) Remaining() (minute, hour int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.minute.Tokens(), p.hour.Tokens()
}

// lastActivity is the most recent refill time across both buckets.
func (p *BucketPair) lastActivity() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.hour.LastRefill().After(p.minute.LastRefill()) {
		return p.hour.LastRefill()
	}
	return p.minute.LastRefill()
}

// Registry maps client identifiers to bucket pairs. Entries are created on
// first sight and removed by Sweep once idle past the retention window.
type Registry struct {
	requestsPerMinute int
	requestsPerHour   int
	burstCapacity     int
	cleanupInterval   time.Duration
	retentionWindow   time.Duration

	mu        sync.Mutex
	entries   map[string]*BucketPair
	lastSweep time.Time
}

// NewRegistry creates an empty registry. The first sweep is due one cleanup
// interval after now.
func NewRegistry(cfg Config, now time.Time) *Registry {
	return &Registry{
		requestsPerMinute: cfg.RequestsPerMinute,
		requestsPerHour:   cfg.RequestsPerHour,
		burstCapacity:     cfg.BurstCapacity,
		cleanupInterval:   cfg.CleanupInterval,
		retentionWindow:   cfg.RetentionWindow,
		entries:           make(map[string]*BucketPair),
		lastSweep:         now,
	}
}

// GetOrCreate returns the bucket pair for clientID, creating a full pair on
// first sight. Lookup and insertion happen under one lock, so concurrent
// callers for the same id always share a single pair.
func (r *Registry) GetOrCreate(clientID string, now time.Time) *BucketPair {
	r.mu.Lock()
	defer r.mu.Unlock()

	if pair, ok := r.entries[clientID]; ok {
		return pair
	}

	pair := &BucketPair{
		minute: NewTokenBucket(r.burstCapacity, float64(r.requestsPerMinute)/60.0, time.Second, now),
		hour:   NewTokenBucket(r.requestsPerHour, float64(r.requestsPerHour)/3600.0, time.Second, now),
	}
	r.entries[clientID] = pair
	return pair
}

// Sweep evicts entries whose last refill predates now minus the retention
// window. It does nothing unless a full cleanup interval has passed since the
// previous sweep; ran reports whether a sweep took place.
func (r *Registry) Sweep(now time.Time) (removed int, ran bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if now.Sub(r.lastSweep) < r.cleanupInterval {
		return 0, false
	}

	cutoff := now.Add(-r.retentionWindow)
	for id, pair := range r.entries {
		if pair.lastActivity().Before(cutoff) {
			delete(r.entries, id)
			removed++
		}
	}
	r.lastSweep = now
	return removed, true
}

// Len returns the number of tracked clients.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Lookup returns the pair for clientID without creating one.
func (r *Registry) Lookup(clientID string) (*BucketPair, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pair, ok := r.entries[clientID]
	return pair, ok
}
