package health

import (
	"context"
	"fmt"
	"strings"
	"time"

	"proxygate/internal/models"
)

// Pinger is anything that can report connectivity, such as storage or cache.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DatabaseCheck pings storage and reports the round trip time.
func DatabaseCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) (CheckResult, error) {
		start := time.Now()
		err := p.Ping(ctx)
		details := map[string]any{"response_time_ms": float64(time.Since(start).Microseconds()) / 1000}
		if err != nil {
			details["error"] = err.Error()
			return CheckResult{Status: StatusUnhealthy, Message: "Database connection failed", Details: details}, nil
		}
		return CheckResult{Status: StatusHealthy, Message: "Database connection OK", Details: details}, nil
	}
}

// CacheCheck pings the proxy check result cache.
func CacheCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) (CheckResult, error) {
		if err := p.Ping(ctx); err != nil {
			return CheckResult{
				Status:  StatusDegraded,
				Message: "Cache unavailable",
				Details: map[string]any{"error": err.Error()},
			}, nil
		}
		return CheckResult{Status: StatusHealthy, Message: "Cache OK"}, nil
	}
}

// APIKeysCheck reports whether usable API keys are configured.
func APIKeysCheck(keys []models.APIKey) CheckFunc {
	return func(ctx context.Context) (CheckResult, error) {
		if len(keys) == 0 {
			return CheckResult{Status: StatusUnhealthy, Message: "No API keys configured"}, nil
		}
		valid := 0
		for i := range keys {
			if keys[i].Enabled && !keys[i].IsPlaceholder() {
				valid++
			}
		}
		if valid == 0 {
			return CheckResult{
				Status:  StatusDegraded,
				Message: "API keys appear to be placeholders",
				Details: map[string]any{"total_keys": len(keys)},
			}, nil
		}
		return CheckResult{
			Status:  StatusHealthy,
			Message: "API keys configured",
			Details: map[string]any{"total_keys": valid},
		}, nil
	}
}

// SystemResourcesCheck compares host usage with the configured thresholds.
// Exceeding a critical threshold is unhealthy; a warning threshold degrades.
func SystemResourcesCheck(sc *SystemCollector, t models.HealthThresholds) CheckFunc {
	return func(ctx context.Context) (CheckResult, error) {
		m := sc.Collect(ctx)

		status := StatusHealthy
		var issues []string
		eval := func(label string, value, warning, critical float64) {
			switch {
			case value > critical:
				issues = append(issues, fmt.Sprintf("Critical %s usage: %.1f%%", label, value))
				status = StatusUnhealthy
			case value > warning:
				issues = append(issues, fmt.Sprintf("High %s usage: %.1f%%", label, value))
				if status == StatusHealthy {
					status = StatusDegraded
				}
			}
		}
		eval("CPU", m.CPUPercent, t.CPUWarning, t.CPUCritical)
		eval("memory", m.MemoryPercent, t.MemoryWarning, t.MemoryCritical)
		eval("disk", m.DiskPercent, t.DiskWarning, t.DiskCritical)

		message := "System resources OK"
		if len(issues) > 0 {
			message = strings.Join(issues, "; ")
		}
		return CheckResult{
			Status:  status,
			Message: message,
			Details: map[string]any{
				"cpu_percent":    m.CPUPercent,
				"memory_percent": m.MemoryPercent,
				"disk_percent":   m.DiskPercent,
				"uptime_seconds": m.UptimeSeconds,
			},
		}, nil
	}
}
