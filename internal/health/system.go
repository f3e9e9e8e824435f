package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
)

// SystemMetrics is a snapshot of host resource usage.
type SystemMetrics struct {
	CPUPercent    float64   `json:"cpu_percent"`
	MemoryPercent float64   `json:"memory_percent"`
	MemoryUsedMB  float64   `json:"memory_used_mb"`
	MemoryTotalMB float64   `json:"memory_total_mb"`
	DiskPercent   float64   `json:"disk_percent"`
	DiskFreeGB    float64   `json:"disk_free_gb"`
	DiskTotalGB   float64   `json:"disk_total_gb"`
	UptimeSeconds float64   `json:"uptime_seconds"`
	LoadAverage   []float64 `json:"load_average,omitempty"`
}

// Sampler reads current host metrics. UptimeSeconds is filled by the
// collector.
type Sampler func(ctx context.Context) (SystemMetrics, error)

// SystemCollector caches host metrics for a short period since sampling CPU
// usage blocks for the sample interval.
type SystemCollector struct {
	mu        sync.Mutex
	cached    *SystemMetrics
	updatedAt time.Time

	cacheFor  time.Duration
	startedAt time.Time
	sample    Sampler
	now       func() time.Time
}

// NewSystemCollector returns a collector backed by gopsutil.
func NewSystemCollector(cacheFor time.Duration, startedAt time.Time) *SystemCollector {
	if cacheFor <= 0 {
		cacheFor = 10 * time.Second
	}
	return &SystemCollector{
		cacheFor:  cacheFor,
		startedAt: startedAt,
		sample:    NewHostSampler(time.Second, "/"),
		now:       time.Now,
	}
}

// SetSampler replaces the metrics source and drops any cached sample.
func (sc *SystemCollector) SetSampler(s Sampler) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.sample = s
	sc.cached = nil
}

// Collect returns cached metrics when fresh. On sampling failure it returns
// zeroed metrics that still carry the uptime.
func (sc *SystemCollector) Collect(ctx context.Context) SystemMetrics {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	now := sc.now()
	if sc.cached != nil && now.Sub(sc.updatedAt) < sc.cacheFor {
		return *sc.cached
	}

	m, err := sc.sample(ctx)
	m.UptimeSeconds = now.Sub(sc.startedAt).Seconds()
	if err != nil {
		slog.ErrorContext(ctx, "Failed to get system metrics", "error", err)
		return SystemMetrics{UptimeSeconds: m.UptimeSeconds}
	}

	sc.cached = &m
	sc.updatedAt = now
	return m
}

// NewHostSampler measures CPU over interval and disk usage at path.
func NewHostSampler(interval time.Duration, path string) Sampler {
	return func(ctx context.Context) (SystemMetrics, error) {
		var m SystemMetrics

		cpuPercents, err := cpu.PercentWithContext(ctx, interval, false)
		if err != nil {
			return m, err
		}
		if len(cpuPercents) > 0 {
			m.CPUPercent = cpuPercents[0]
		}

		vm, err := mem.VirtualMemoryWithContext(ctx)
		if err != nil {
			return m, err
		}
		m.MemoryPercent = vm.UsedPercent
		m.MemoryUsedMB = float64(vm.Used) / (1 << 20)
		m.MemoryTotalMB = float64(vm.Total) / (1 << 20)

		du, err := disk.UsageWithContext(ctx, path)
		if err != nil {
			return m, err
		}
		m.DiskPercent = du.UsedPercent
		m.DiskFreeGB = float64(du.Free) / (1 << 30)
		m.DiskTotalGB = float64(du.Total) / (1 << 30)

		// Not available on every platform.
		if avg, err := load.AvgWithContext(ctx); err == nil {
			m.LoadAverage = []float64{avg.Load1, avg.Load5, avg.Load15}
		}
		return m, nil
	}
}
