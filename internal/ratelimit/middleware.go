package ratelimit

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"proxygate/internal/models"
)

// Response headers attached to admitted requests.
const (
	HeaderLimitMinute     = "X-RateLimit-Limit-Minute"
	HeaderRemainingMinute = "X-RateLimit-Remaining-Minute"
	HeaderLimitHour       = "X-RateLimit-Limit-Hour"
	HeaderRemainingHour   = "X-RateLimit-Remaining-Hour"
)

// Middleware returns HTTP middleware enforcing the limiter. Exempt paths are
// forwarded untouched. Rejected requests get a 429 JSON body and a
// Retry-After header; admitted requests carry the remaining quota of both
// windows. Tokens spent on a request are not refunded if the wrapped handler
// fails, and handler panics propagate unchanged.
func Middleware(limiter *Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter.IsExempt(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			clientID := ClientIdentifier(r)
			decision := limiter.Allow(r.Context(), clientID)

			if !decision.Allowed {
				slog.Warn("Rate limit exceeded",
					"client_id", clientID,
					"window", string(decision.Window),
					"limit", decision.Limit,
					"retry_after", decision.RetryAfter,
				)
				writeRejection(w, decision)
				return
			}

			// Headers must be set before the handler writes its status line.
			if !decision.FailOpen {
				cfg := limiter.Config()
				h := w.Header()
				h.Set(HeaderLimitMinute, strconv.Itoa(cfg.RequestsPerMinute))
				h.Set(HeaderRemainingMinute, strconv.Itoa(decision.MinuteRemaining))
				h.Set(HeaderLimitHour, strconv.Itoa(cfg.RequestsPerHour))
				h.Set(HeaderRemainingHour, strconv.Itoa(decision.HourRemaining))
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeRejection(w http.ResponseWriter, d Decision) {
	var detail string
	switch d.Window {
	case WindowHour:
		detail = fmt.Sprintf("Too many requests per hour. Limit: %d/hour", d.Limit)
	default:
		detail = fmt.Sprintf("Too many requests per minute. Limit: %d/min", d.Limit)
	}

	w.Header().Set("Retry-After", strconv.Itoa(d.RetryAfter))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)

	resp := models.NewRateLimitResponse(detail, d.RetryAfter)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("Failed to encode rate limit response", "error", err)
	}
}
