package storage

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"proxygate/internal/models"
)

// MemoryStorage implements the Storage interface using in-memory data structures.
// This provider is ideal for development, testing, and scenarios where data
// persistence is not required. It provides fast access but data is lost on restart.
type MemoryStorage struct {
	mu          sync.RWMutex
	proxies     map[int64]*models.Proxy
	proxyURLs   map[string]int64
	requestLogs []models.RequestLog
	errorLogs   []models.ErrorLog
	nextProxyID int64
	nextLogID   int64
	nextErrorID int64
}

// NewMemoryStorage creates a new memory-based storage instance
func NewMemoryStorage(config Config) (*MemoryStorage, error) {
	return &MemoryStorage{
		proxies:   make(map[int64]*models.Proxy),
		proxyURLs: make(map[string]int64),
	}, nil
}

func (m *MemoryStorage) ListProxies(ctx context.Context) ([]*models.Proxy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	proxies := make([]*models.Proxy, 0, len(m.proxies))
	for _, p := range m.proxies {
		// Return a copy to prevent external modification
		proxyCopy := *p
		proxies = append(proxies, &proxyCopy)
	}
	sort.Slice(proxies, func(i, j int) bool { return proxies[i].ID < proxies[j].ID })
	return proxies, nil
}

func (m *MemoryStorage) GetProxy(ctx context.Context, id int64) (*models.Proxy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.proxies[id]
	if !ok {
		return nil, fmt.Errorf("proxy %d: %w", id, ErrNotFound)
	}
	proxyCopy := *p
	return &proxyCopy, nil
}

func (m *MemoryStorage) AddProxies(ctx context.Context, urls []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	added := 0
	for _, u := range urls {
		if _, exists := m.proxyURLs[u]; exists {
			continue
		}
		m.nextProxyID++
		m.proxies[m.nextProxyID] = &models.Proxy{ID: m.nextProxyID, URL: u, CreatedAt: now}
		m.proxyURLs[u] = m.nextProxyID
		added++
	}
	return added, nil
}

func (m *MemoryStorage) DeleteProxy(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.proxies[id]
	if !ok {
		return fmt.Errorf("proxy %d: %w", id, ErrNotFound)
	}
	delete(m.proxyURLs, p.URL)
	delete(m.proxies, id)
	return nil
}

func (m *MemoryStorage) AddRequestLog(ctx context.Context, l *models.RequestLog) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextLogID++
	entry := *l
	entry.ID = m.nextLogID
	entry.CreatedAt = dbTime(l.CreatedAt)
	m.requestLogs = append(m.requestLogs, entry)
	return entry.ID, nil
}

func (m *MemoryStorage) AddErrorLog(ctx context.Context, l *models.ErrorLog) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextErrorID++
	entry := *l
	entry.ID = m.nextErrorID
	entry.RequestTime = dbTime(l.RequestTime)
	m.errorLogs = append(m.errorLogs, entry)
	return entry.ID, nil
}

func containsFold(haystack, needle string) bool {
	return needle == "" || strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func matchesRequestLog(l *models.RequestLog, f models.RequestLogFilter) bool {
	if !containsFold(l.Method, f.Method) || !containsFold(l.Path, f.Path) || !containsFold(l.APIKey, f.Key) {
		return false
	}
	if f.StatusCode != "" {
		if l.StatusCode == 0 || !strings.Contains(strconv.Itoa(l.StatusCode), f.StatusCode) {
			return false
		}
	}
	return true
}

// filteredRequestLogs must be called with the read lock held.
func (m *MemoryStorage) filteredRequestLogs(f models.RequestLogFilter) []models.RequestLog {
	out := make([]models.RequestLog, 0)
	for i := range m.requestLogs {
		if matchesRequestLog(&m.requestLogs[i], f) {
			out = append(out, m.requestLogs[i])
		}
	}
	return out
}

func compareRequestLogs(a, b *models.RequestLog, column string) int {
	switch column {
	case "created_at":
		return a.CreatedAt.Compare(b.CreatedAt)
	case "status_code":
		return cmp.Compare(a.StatusCode, b.StatusCode)
	case "latency_ms":
		return cmp.Compare(a.LatencyMs, b.LatencyMs)
	default:
		return cmp.Compare(a.ID, b.ID)
	}
}

func (m *MemoryStorage) ListRequestLogs(ctx context.Context, f models.RequestLogFilter) ([]models.RequestLog, error) {
	f.Normalize()

	m.mu.RLock()
	logs := m.filteredRequestLogs(f)
	m.mu.RUnlock()

	// Ties break on ID in the same direction, matching the SQL backends.
	slices.SortStableFunc(logs, func(a, b models.RequestLog) int {
		c := compareRequestLogs(&a, &b, f.SortBy)
		if c == 0 {
			c = cmp.Compare(a.ID, b.ID)
		}
		if f.SortOrder == "desc" {
			return -c
		}
		return c
	})

	start := f.Offset()
	if start < 0 || start >= len(logs) {
		return []models.RequestLog{}, nil
	}
	end := min(start+f.Limit, len(logs))
	return logs[start:end], nil
}

func (m *MemoryStorage) CountRequestLogs(ctx context.Context, f models.RequestLogFilter) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.filteredRequestLogs(f))), nil
}

func (m *MemoryStorage) GetRequestLog(ctx context.Context, id int64) (*models.RequestLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := range m.requestLogs {
		if m.requestLogs[i].ID == id {
			l := m.requestLogs[i]
			return &l, nil
		}
	}
	return nil, fmt.Errorf("request log %d: %w", id, ErrNotFound)
}

func (m *MemoryStorage) ListErrorLogs(ctx context.Context, f models.ErrorLogFilter) ([]models.ErrorLog, error) {
	f.Normalize()

	m.mu.RLock()
	logs := make([]models.ErrorLog, 0)
	for _, l := range m.errorLogs {
		if f.StartDate != nil && l.RequestTime.Before(*f.StartDate) {
			continue
		}
		if f.EndDate != nil && l.RequestTime.After(*f.EndDate) {
			continue
		}
		if f.ErrorType != "" && l.ErrorType != f.ErrorType {
			continue
		}
		logs = append(logs, l)
	}
	m.mu.RUnlock()

	sort.SliceStable(logs, func(i, j int) bool {
		if logs[i].RequestTime.Equal(logs[j].RequestTime) {
			return logs[i].ID > logs[j].ID
		}
		return logs[i].RequestTime.After(logs[j].RequestTime)
	})

	if f.Offset >= len(logs) {
		return []models.ErrorLog{}, nil
	}
	end := min(f.Offset+f.Limit, len(logs))
	return logs[f.Offset:end], nil
}

func (m *MemoryStorage) DeleteLogsBefore(ctx context.Context, cutoff time.Time, kind models.LogKind) (models.CleanupResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result models.CleanupResult
	if kind.IncludesErrors() {
		kept := m.errorLogs[:0]
		for _, l := range m.errorLogs {
			if l.RequestTime.Before(cutoff) {
				result.ErrorLogs++
				continue
			}
			kept = append(kept, l)
		}
		m.errorLogs = kept
	}
	if kind.IncludesRequests() {
		kept := m.requestLogs[:0]
		for _, l := range m.requestLogs {
			if l.CreatedAt.Before(cutoff) {
				result.RequestLogs++
				continue
			}
			kept = append(kept, l)
		}
		m.requestLogs = kept
	}
	return result, nil
}

func inRange(t, start, end time.Time) bool {
	return !t.Before(start) && !t.After(end)
}

func (m *MemoryStorage) Stats(ctx context.Context, start, end time.Time) (*models.UsageStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &models.UsageStats{
		Period: models.StatsPeriod{StartDate: start.UTC(), EndDate: end.UTC()},
		Errors: models.ErrorLogStats{Breakdown: make(map[string]int64)},
	}

	var latencySum int64
	var latencyCount int64
	keys := make(map[string]struct{})
	for _, l := range m.requestLogs {
		if !inRange(l.CreatedAt, start, end) {
			continue
		}
		stats.Requests.Total++
		if l.IsSuccess {
			stats.Requests.Successful++
		}
		latencySum += l.LatencyMs
		latencyCount++
		if l.APIKey != "" {
			keys[l.APIKey] = struct{}{}
		}
	}
	if latencyCount > 0 {
		stats.Requests.AvgLatencyMs = float64(latencySum) / float64(latencyCount)
	}
	stats.Requests.UniqueAPIKeys = int64(len(keys))
	stats.Requests.SuccessRate = models.SuccessRatePercent(stats.Requests.Successful, stats.Requests.Total)

	for _, l := range m.errorLogs {
		if !inRange(l.RequestTime, start, end) {
			continue
		}
		stats.Errors.Breakdown[l.ErrorType]++
		stats.Errors.Total++
	}
	return stats, nil
}

func (m *MemoryStorage) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close is a no-op for memory storage
func (m *MemoryStorage) Close() error {
	return nil
}
