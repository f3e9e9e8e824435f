package ratelimit

import (
	"math"
	"time"
)

// TokenBucket is a capacity-bounded integer counter refilled lazily on each
// consumption attempt. Refill only happens once at least one whole period has
// elapsed; the tokens added are floor(wholePeriods * refillRate) and the
// refill timestamp moves to the time of the attempt, so partial progress
// inside a period is discarded.
//
// TokenBucket is not safe for concurrent use; callers serialize access.
type TokenBucket struct {
	capacity     int
	tokens       int
	refillRate   float64 // tokens per refillPeriod
	refillPeriod time.Duration
	lastRefill   time.Time
}

// NewTokenBucket returns a full bucket.
func NewTokenBucket(capacity int, refillRate float64, refillPeriod time.Duration, now time.Time) *TokenBucket {
	return &TokenBucket{
		capacity:     capacity,
		tokens:       capacity,
		refillRate:   refillRate,
		refillPeriod: refillPeriod,
		lastRefill:   now,
	}
}

// Consume refills the bucket and then takes n tokens if that many are
// available. The token count is left untouched on refusal.
func (b *TokenBucket) Consume(now time.Time, n int) bool {
	b.refill(now)

	if b.tokens >= n {
		b.tokens -= n
		return true
	}
	return false
}

func (b *TokenBucket) refill(now time.Time) {
	elapsed := now.Sub(b.lastRefill)
	if elapsed < b.refillPeriod {
		return
	}

	wholePeriods := elapsed / b.refillPeriod
	add := math.Floor(float64(wholePeriods) * b.refillRate)
	if add >= float64(b.capacity-b.tokens) {
		b.tokens = b.capacity
	} else if add > 0 {
		b.tokens += int(add)
	}
	b.lastRefill = now
}

// TimeUntilRefill returns how long until the next refill computation can add
// tokens, never negative.
func (b *TokenBucket) TimeUntilRefill(now time.Time) time.Duration {
	wait := b.refillPeriod - now.Sub(b.lastRefill)
	if wait < 0 {
		return 0
	}
	return wait
}

// Tokens returns the current token count without refilling.
func (b *TokenBucket) Tokens() int {
	return b.tokens
}

// Capacity returns the bucket ceiling.
func (b *TokenBucket) Capacity() int {
	return b.capacity
}

// LastRefill returns the time of the last refill computation.
func (b *TokenBucket) LastRefill() time.Time {
	return b.lastRefill
}

// retryAfterSeconds converts a bucket's refill wait into the advertised
// Retry-After value: ceil(wait) + 1, so always at least one second.
func retryAfterSeconds(wait time.Duration) int {
	return int(math.Ceil(wait.Seconds())) + 1
}
