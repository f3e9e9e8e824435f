package proxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"proxygate/internal/models"
	"proxygate/internal/storage"
)

// Service manages the proxy pool: listing, bulk insertion, removal and
// connectivity checks.
type Service struct {
	storage storage.Storage
	prober  Prober
}

// NewService creates a proxy service over the given storage and prober.
func NewService(s storage.Storage, prober Prober) *Service {
	return &Service{storage: s, prober: prober}
}

func (s *Service) ListProxies(ctx context.Context) (*models.ListProxiesResponse, error) {
	proxies, err := s.storage.ListProxies(ctx)
	if err != nil {
		return nil, NewDatabaseError("failed to list proxies", err)
	}

	resp := &models.ListProxiesResponse{
		Proxies:    make([]models.Proxy, 0, len(proxies)),
		TotalCount: len(proxies),
	}
	for _, p := range proxies {
		resp.Proxies = append(resp.Proxies, *p)
	}
	return resp, nil
}

// AddProxies normalizes every entry, rejecting the whole batch if any is
// malformed, and inserts those not already in the pool.
func (s *Service) AddProxies(ctx context.Context, req *models.AddProxiesRequest) (*models.MessageResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, NewInvalidRequestError("invalid request", err)
	}

	seen := make(map[string]struct{}, len(req.Proxies))
	urls := make([]string, 0, len(req.Proxies))
	var invalid []string
	for _, raw := range req.Proxies {
		normalized, err := models.NormalizeProxy(raw)
		if err != nil {
			invalid = append(invalid, raw)
			continue
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		urls = append(urls, normalized)
	}
	if len(invalid) > 0 {
		return nil, NewInvalidProxyError(
			fmt.Sprintf("invalid proxy format: %s", strings.Join(invalid, ", ")),
			models.ErrInvalidProxy,
		)
	}

	added, err := s.storage.AddProxies(ctx, urls)
	if err != nil {
		return nil, NewDatabaseError("failed to add proxies", err)
	}

	slog.InfoContext(ctx, "Proxies added", "submitted", len(req.Proxies), "added", added)
	return models.NewMessageResponse(fmt.Sprintf("Added %d new proxies.", added)), nil
}

func (s *Service) DeleteProxy(ctx context.Context, id int64) (*models.MessageResponse, error) {
	if err := s.storage.DeleteProxy(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, NewProxyNotFoundError(id)
		}
		return nil, NewDatabaseError("failed to delete proxy", err)
	}
	slog.InfoContext(ctx, "Proxy deleted", "proxy_id", id)
	return models.NewMessageResponse("Proxy deleted."), nil
}

// TestProxy probes a single proxy, which need not be in the pool.
func (s *Service) TestProxy(ctx context.Context, req *models.TestProxyRequest) (*models.ProxyCheckResult, error) {
	if err := req.Validate(); err != nil {
		return nil, NewInvalidRequestError("invalid request", err)
	}
	normalized, err := models.NormalizeProxy(req.ProxyURL)
	if err != nil {
		return nil, NewInvalidProxyError("invalid proxy format", err)
	}
	result := s.prober.Check(ctx, normalized, req.UseCache)
	return &result, nil
}

// CheckAll probes every proxy in the pool.
func (s *Service) CheckAll(ctx context.Context, useCache bool) (*models.ProxyCheckSummary, error) {
	proxies, err := s.storage.ListProxies(ctx)
	if err != nil {
		return nil, NewDatabaseError("failed to list proxies", err)
	}

	urls := make([]string, len(proxies))
	for i, p := range proxies {
		urls[i] = p.URL
	}

	summary := &models.ProxyCheckSummary{
		Total:   len(urls),
		Results: s.prober.CheckMany(ctx, urls, useCache),
	}
	for _, r := range summary.Results {
		if r.Available {
			summary.Available++
		} else {
			summary.Unavailable++
		}
	}

	slog.InfoContext(ctx, "Proxy pool checked",
		"total", summary.Total,
		"available", summary.Available,
		"unavailable", summary.Unavailable)
	return summary, nil
}
