// Package ratelimit provides per-client admission control for HTTP requests.
// Every client gets two token buckets, one guarding short bursts (per-minute)
// and one guarding sustained usage (per-hour). A request is admitted only when
// both buckets yield a token. Bucket state lives in memory and is owned by a
// Limiter instance; idle clients are evicted by a periodic sweep.
package ratelimit

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// Window identifies which bucket rejected a request.
type Window string

const (
	WindowMinute Window = "minute"
	WindowHour   Window = "hour"
)

// DefaultExemptPaths lists the path prefixes that bypass admission control.
var DefaultExemptPaths = []string{"/health", "/docs", "/redoc", "/openapi", "/static"}

// Config holds the static limiter settings.
type Config struct {
	RequestsPerMinute int
	RequestsPerHour   int
	BurstCapacity     int           // ceiling of the minute bucket
	CleanupInterval   time.Duration // minimum spacing between sweeps
	RetentionWindow   time.Duration // idle time after which a client is evicted
	ExemptPaths       []string
}

// DefaultConfig returns the limiter defaults: 60/min, 1000/hour, burst of 10,
// sweeps every 5 minutes evicting clients idle for an hour.
func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 60,
		RequestsPerHour:   1000,
		BurstCapacity:     10,
		CleanupInterval:   5 * time.Minute,
		RetentionWindow:   time.Hour,
		ExemptPaths:       DefaultExemptPaths,
	}
}

// Decision is the outcome of an admission check. Rejection is an expected
// outcome and is reported here rather than as an error.
type Decision struct {
	Allowed         bool
	Window          Window // rejecting window, empty when allowed
	Limit           int    // configured limit of the rejecting window
	RetryAfter      int    // seconds, set only when rejected
	MinuteRemaining int
	HourRemaining   int
	FailOpen        bool // admitted because bucket state could not be computed
}

// Recorder receives admission telemetry. Implementations must be safe for
// concurrent use.
type Recorder interface {
	RecordDecision(ctx context.Context, d Decision)
	RecordSweep(ctx context.Context, removed, remaining int)
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// WithRecorder attaches a telemetry recorder.
func WithRecorder(rec Recorder) Option {
	return func(l *Limiter) {
		l.recorder = rec
	}
}

// Limiter is the admission controller. It is safe for concurrent use.
type Limiter struct {
	cfg      Config
	registry *Registry
	recorder Recorder
	now      func() time.Time
}

// New creates a Limiter with its own bucket registry. Zero-valued interval
// settings fall back to the defaults.
func New(cfg Config, opts ...Option) *Limiter {
	defaults := DefaultConfig()
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = defaults.CleanupInterval
	}
	if cfg.RetentionWindow <= 0 {
		cfg.RetentionWindow = defaults.RetentionWindow
	}
	if cfg.ExemptPaths == nil {
		cfg.ExemptPaths = defaults.ExemptPaths
	}

	l := &Limiter{
		cfg: cfg,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.registry = NewRegistry(cfg, l.now())
	return l
}

// Config returns the limiter configuration.
func (l *Limiter) Config() Config {
	return l.cfg
}

// Registry exposes the bucket registry backing the limiter.
func (l *Limiter) Registry() *Registry {
	return l.registry
}

// IsExempt reports whether path starts with one of the exempt prefixes.
func (l *Limiter) IsExempt(path string) bool {
	for _, prefix := range l.cfg.ExemptPaths {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Allow runs a maintenance sweep if one is due and then charges one token
// from each of the client's buckets. Any panic while computing bucket state
// is logged and the request is admitted.
func (l *Limiter) Allow(ctx context.Context, clientID string) (d Decision) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Rate limiter failed, admitting request",
				"client_id", clientID,
				"panic", rec,
			)
			d = Decision{Allowed: true, FailOpen: true}
		}
		if l.recorder != nil {
			l.recorder.RecordDecision(ctx, d)
		}
	}()

	now := l.now()

	if removed, ran := l.registry.Sweep(now); ran {
		if removed > 0 {
			slog.Debug("Cleaned up old rate limit buckets", "removed", removed)
		}
		if l.recorder != nil {
			l.recorder.RecordSweep(ctx, removed, l.registry.Len())
		}
	}

	// A concurrent Sweep may evict pair before admit runs. Only pairs idle
	// past the retention window are evicted and those are already full, so
	// charging the orphan gives the same decision a fresh pair would.
	pair := l.registry.GetOrCreate(clientID, now)
	return pair.admit(now, l.cfg)
}
