package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"proxygate/internal/cache"
	"proxygate/internal/models"

	"golang.org/x/time/rate"
)

const cacheKeyPrefix = "proxy_check:"

// CheckerOptions configures a Checker.
type CheckerOptions struct {
	TargetURL       string
	Timeout         time.Duration
	ChecksPerSecond float64
	Concurrency     int
	CacheTTL        time.Duration
	UserAgent       string
}

// Checker probes proxies by fetching TargetURL through them. Outbound checks
// are paced by a token bucket and bounded by a semaphore.
type Checker struct {
	opts     CheckerOptions
	limiter  *rate.Limiter
	sem      chan struct{}
	cache    cache.Cache
	recorder ErrorRecorder
	now      func() time.Time
}

// NewChecker returns a Checker. c may be cache.Nop{} and recorder may be nil.
func NewChecker(opts CheckerOptions, c cache.Cache, recorder ErrorRecorder) *Checker {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 10
	}
	limit := rate.Inf
	burst := opts.Concurrency
	if opts.ChecksPerSecond > 0 {
		limit = rate.Limit(opts.ChecksPerSecond)
		burst = max(1, int(opts.ChecksPerSecond))
	}
	if c == nil {
		c = cache.Nop{}
	}
	return &Checker{
		opts:     opts,
		limiter:  rate.NewLimiter(limit, burst),
		sem:      make(chan struct{}, opts.Concurrency),
		cache:    c,
		recorder: recorder,
		now:      time.Now,
	}
}

// Check probes a single proxy. With useCache a fresh cached result is
// returned instead of probing. Every probed result is written to the cache.
func (c *Checker) Check(ctx context.Context, proxyURL string, useCache bool) models.ProxyCheckResult {
	if useCache {
		if result, ok := c.cached(ctx, proxyURL); ok {
			return result
		}
	}

	result := c.probe(ctx, proxyURL)

	if data, err := json.Marshal(result); err == nil {
		if err := c.cache.Set(ctx, cacheKeyPrefix+proxyURL, data, c.opts.CacheTTL); err != nil {
			slog.WarnContext(ctx, "Failed to cache proxy check result", "error", err)
		}
	}
	if !result.Available {
		c.recordFailure(result)
	}
	return result
}

// CheckMany probes proxies concurrently and returns results in input order.
func (c *Checker) CheckMany(ctx context.Context, proxyURLs []string, useCache bool) []models.ProxyCheckResult {
	results := make([]models.ProxyCheckResult, len(proxyURLs))
	var wg sync.WaitGroup
	for i, u := range proxyURLs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = c.Check(ctx, u, useCache)
		}()
	}
	wg.Wait()
	return results
}

func (c *Checker) cached(ctx context.Context, proxyURL string) (models.ProxyCheckResult, bool) {
	var result models.ProxyCheckResult
	data, ok, err := c.cache.Get(ctx, cacheKeyPrefix+proxyURL)
	if err != nil {
		slog.WarnContext(ctx, "Proxy check cache lookup failed", "error", err)
		return result, false
	}
	if !ok || json.Unmarshal(data, &result) != nil {
		return result, false
	}
	result.Cached = true
	return result, true
}

func (c *Checker) probe(ctx context.Context, proxyURL string) models.ProxyCheckResult {
	result := models.ProxyCheckResult{Proxy: proxyURL}

	select {
	case c.sem <- struct{}{}:
		defer func() { <-c.sem }()
	case <-ctx.Done():
		return c.failed(result, ctx.Err())
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return c.failed(result, err)
	}

	u, err := url.Parse(proxyURL)
	if err != nil {
		return c.failed(result, err)
	}

	transport := &http.Transport{
		Proxy:             http.ProxyURL(u),
		DisableKeepAlives: true,
	}
	defer transport.CloseIdleConnections()
	client := &http.Client{Transport: transport, Timeout: c.opts.Timeout}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.TargetURL, nil)
	if err != nil {
		return c.failed(result, err)
	}
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}

	start := c.now()
	resp, err := client.Do(req)
	result.LatencyMs = c.now().Sub(start).Milliseconds()
	if err != nil {
		return c.failed(result, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	result.StatusCode = resp.StatusCode
	result.CheckedAt = c.now().UTC()
	result.Available = resp.StatusCode >= 200 && resp.StatusCode < 400
	if !result.Available {
		result.Error = fmt.Sprintf("unexpected status %d", resp.StatusCode)
	}
	return result
}

func (c *Checker) failed(result models.ProxyCheckResult, err error) models.ProxyCheckResult {
	result.Available = false
	result.Error = err.Error()
	result.CheckedAt = c.now().UTC()
	return result
}

func (c *Checker) recordFailure(result models.ProxyCheckResult) {
	redacted := models.RedactProxyURL(result.Proxy)
	slog.Warn("Proxy check failed", "proxy", redacted, "status_code", result.StatusCode, "error", result.Error)
	if c.recorder == nil {
		return
	}
	c.recorder.RecordError(models.ErrorLog{
		ErrorType:   models.ErrorTypeProxyCheck,
		Message:     result.Error,
		ErrorCode:   result.StatusCode,
		ClientID:    redacted,
		RequestTime: result.CheckedAt,
	})
}
