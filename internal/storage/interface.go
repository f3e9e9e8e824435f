package storage

import (
	"context"
	"time"

	"proxygate/internal/models"
)

// Storage defines persistence for the proxy pool and the request/error logs.
// Implementations must be safe for concurrent use.
type Storage interface {
	// ListProxies returns every proxy ordered by ID.
	ListProxies(ctx context.Context) ([]*models.Proxy, error)

	// GetProxy returns ErrNotFound when no proxy has the given ID.
	GetProxy(ctx context.Context, id int64) (*models.Proxy, error)

	// AddProxies inserts the URLs that are not stored yet and reports how
	// many were inserted.
	AddProxies(ctx context.Context, urls []string) (int, error)

	// DeleteProxy returns ErrNotFound when no proxy has the given ID.
	DeleteProxy(ctx context.Context, id int64) error

	AddRequestLog(ctx context.Context, log *models.RequestLog) (int64, error)
	AddErrorLog(ctx context.Context, log *models.ErrorLog) (int64, error)

	// ListRequestLogs expects a normalized filter.
	ListRequestLogs(ctx context.Context, filter models.RequestLogFilter) ([]models.RequestLog, error)
	CountRequestLogs(ctx context.Context, filter models.RequestLogFilter) (int64, error)
	GetRequestLog(ctx context.Context, id int64) (*models.RequestLog, error)

	// ListErrorLogs returns newest first.
	ListErrorLogs(ctx context.Context, filter models.ErrorLogFilter) ([]models.ErrorLog, error)

	// DeleteLogsBefore removes entries strictly older than cutoff.
	DeleteLogsBefore(ctx context.Context, cutoff time.Time, kind models.LogKind) (models.CleanupResult, error)

	// Stats aggregates request and error logs within [start, end].
	Stats(ctx context.Context, start, end time.Time) (*models.UsageStats, error)

	Ping(ctx context.Context) error

	// Close closes the storage connection and cleans up resources
	Close() error
}

// Config holds configuration for storage backends
type Config struct {
	// Type specifies the storage backend type (memory, sqlite, postgres)
	Type string `json:"type" yaml:"type"`

	// ConnectionString is used for database backends
	ConnectionString string `json:"connection_string,omitempty" yaml:"connection_string,omitempty"`

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}
