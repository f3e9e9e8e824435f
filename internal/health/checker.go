// Package health runs named health checks and aggregates their results.
package health

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Status is the outcome of a health check.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
	StatusUnknown   Status = "unknown"
)

// CheckResult is what a CheckFunc reports.
type CheckResult struct {
	Status  Status
	Message string
	Details map[string]any
}

// CheckFunc performs one check. A returned error marks the check unhealthy.
type CheckFunc func(ctx context.Context) (CheckResult, error)

// Result is a completed check.
type Result struct {
	Name       string         `json:"name"`
	Status     Status         `json:"status"`
	Message    string         `json:"message"`
	DurationMs float64        `json:"duration_ms"`
	Timestamp  time.Time      `json:"timestamp"`
	Details    map[string]any `json:"details,omitempty"`
}

// Checker holds the registered checks.
type Checker struct {
	mu      sync.RWMutex
	checks  map[string]CheckFunc
	timeout time.Duration
}

// NewChecker creates a checker whose checks each get at most timeout.
func NewChecker(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Checker{checks: make(map[string]CheckFunc), timeout: timeout}
}

// Register adds or replaces a check.
func (c *Checker) Register(name string, fn CheckFunc) {
	c.mu.Lock()
	c.checks[name] = fn
	c.mu.Unlock()
	slog.Debug("Registered health check", "name", name)
}

// Names returns the registered check names in sorted order.
func (c *Checker) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.checks))
	for n := range c.checks {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Run executes a single check. Unknown names yield StatusUnknown.
func (c *Checker) Run(ctx context.Context, name string) Result {
	c.mu.RLock()
	fn, ok := c.checks[name]
	c.mu.RUnlock()

	if !ok {
		return Result{
			Name:      name,
			Status:    StatusUnknown,
			Message:   fmt.Sprintf("Check '%s' not found", name),
			Timestamp: time.Now(),
		}
	}

	start := time.Now()
	res := c.execute(ctx, name, fn)
	res.Name = name
	res.DurationMs = float64(time.Since(start).Microseconds()) / 1000
	res.Timestamp = time.Now()
	return res
}

type outcome struct {
	res CheckResult
	err error
}

func (c *Checker) execute(ctx context.Context, name string, fn CheckFunc) Result {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- outcome{err: fmt.Errorf("panic: %v", p)}
			}
		}()
		res, err := fn(ctx)
		done <- outcome{res: res, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			slog.Error("Health check failed", "name", name, "error", o.err)
			return Result{
				Status:  StatusUnhealthy,
				Message: "Check failed: " + o.err.Error(),
				Details: map[string]any{"error_type": fmt.Sprintf("%T", o.err)},
			}
		}
		status := o.res.Status
		if status == "" {
			status = StatusUnknown
		}
		return Result{Status: status, Message: o.res.Message, Details: o.res.Details}
	case <-ctx.Done():
		return Result{
			Status:  StatusUnhealthy,
			Message: fmt.Sprintf("Check timed out after %s", c.timeout),
		}
	}
}

// RunAll executes every registered check concurrently.
func (c *Checker) RunAll(ctx context.Context) map[string]Result {
	names := c.Names()
	results := make(map[string]Result, len(names))

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := c.Run(ctx, name)
			mu.Lock()
			results[name] = r
			mu.Unlock()
		}()
	}
	wg.Wait()
	return results
}

// Overall folds check results into one status: any unhealthy check wins,
// then any degraded one. An empty set is unknown.
func Overall(results map[string]Result) Status {
	if len(results) == 0 {
		return StatusUnknown
	}
	allHealthy := true
	degraded := false
	for _, r := range results {
		switch r.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded:
			degraded = true
			allHealthy = false
		case StatusHealthy:
		default:
			allHealthy = false
		}
	}
	if degraded {
		return StatusDegraded
	}
	if allHealthy {
		return StatusHealthy
	}
	return StatusUnknown
}
