package proxy

import (
	"context"

	"proxygate/internal/models"
)

// ServiceInterface defines the proxy pool operations exposed over HTTP.
type ServiceInterface interface {
	ListProxies(ctx context.Context) (*models.ListProxiesResponse, error)
	AddProxies(ctx context.Context, req *models.AddProxiesRequest) (*models.MessageResponse, error)
	DeleteProxy(ctx context.Context, id int64) (*models.MessageResponse, error)
	TestProxy(ctx context.Context, req *models.TestProxyRequest) (*models.ProxyCheckResult, error)
	CheckAll(ctx context.Context, useCache bool) (*models.ProxyCheckSummary, error)
}

// Prober checks proxies for connectivity.
type Prober interface {
	Check(ctx context.Context, proxyURL string, useCache bool) models.ProxyCheckResult
	CheckMany(ctx context.Context, proxyURLs []string, useCache bool) []models.ProxyCheckResult
}

// ErrorRecorder persists error log entries without blocking the caller.
type ErrorRecorder interface {
	RecordError(entry models.ErrorLog)
}

var (
	_ ServiceInterface = (*Service)(nil)
	_ Prober           = (*Checker)(nil)
)
