package requestlog

import (
	"context"
	"log/slog"
	"time"

	"proxygate/internal/models"
)

// Pruner deletes logs older than a cutoff.
type Pruner interface {
	DeleteLogsBefore(ctx context.Context, cutoff time.Time, kind models.LogKind) (models.CleanupResult, error)
}

// Janitor periodically removes request and error logs older than the
// retention period.
type Janitor struct {
	pruner    Pruner
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
}

// NewJanitor builds a janitor keeping retentionDays of logs.
func NewJanitor(p Pruner, retentionDays int, interval time.Duration) *Janitor {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Janitor{
		pruner:    p,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		interval:  interval,
		now:       time.Now,
	}
}

// RunOnce deletes everything older than the retention period.
func (j *Janitor) RunOnce(ctx context.Context) (models.CleanupResult, error) {
	cutoff := j.now().Add(-j.retention)
	res, err := j.pruner.DeleteLogsBefore(ctx, cutoff, models.LogKindBoth)
	if err != nil {
		slog.ErrorContext(ctx, "Log cleanup failed", "error", err)
		return res, err
	}
	slog.InfoContext(ctx, "Old logs removed",
		"cutoff", cutoff,
		"request_logs", res.RequestLogs,
		"error_logs", res.ErrorLogs)
	return res, nil
}

// Run prunes immediately and then every interval until ctx is done.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	_, _ = j.RunOnce(ctx)
	for {
		select {
		case <-ticker.C:
			_, _ = j.RunOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}
