package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"proxygate/internal/health"
	"proxygate/internal/models"
	"proxygate/internal/proxy"
	"proxygate/internal/version"
)

// LogStore is the read and retention side of request/error log persistence.
type LogStore interface {
	ListRequestLogs(ctx context.Context, filter models.RequestLogFilter) ([]models.RequestLog, error)
	CountRequestLogs(ctx context.Context, filter models.RequestLogFilter) (int64, error)
	GetRequestLog(ctx context.Context, id int64) (*models.RequestLog, error)
	ListErrorLogs(ctx context.Context, filter models.ErrorLogFilter) ([]models.ErrorLog, error)
	DeleteLogsBefore(ctx context.Context, cutoff time.Time, kind models.LogKind) (models.CleanupResult, error)
	Stats(ctx context.Context, start, end time.Time) (*models.UsageStats, error)
}

// ErrorRecorder receives error log entries produced by the HTTP layer.
type ErrorRecorder interface {
	RecordError(entry models.ErrorLog)
}

// Handlers contains HTTP handlers for the proxygate API
type Handlers struct {
	proxyService   proxy.ServiceInterface
	logs           LogStore
	healthChecker  *health.Checker
	system         *health.SystemCollector
	securityConfig models.SecurityConfig
	errors         ErrorRecorder
	now            func() time.Time
}

// HandlerOption configures optional Handlers dependencies.
type HandlerOption func(*Handlers)

// WithLogStore enables the request-log, error-log, stats and cleanup endpoints.
func WithLogStore(store LogStore) HandlerOption {
	return func(h *Handlers) {
		h.logs = store
	}
}

// WithHealth sets the health checker and system metrics collector.
func WithHealth(checker *health.Checker, system *health.SystemCollector) HandlerOption {
	return func(h *Handlers) {
		h.healthChecker = checker
		h.system = system
	}
}

// WithSecurityConfig sets the API keys used by login and auth.
func WithSecurityConfig(cfg models.SecurityConfig) HandlerOption {
	return func(h *Handlers) {
		h.securityConfig = cfg
	}
}

// WithErrorRecorder makes recovered panics show up in the error log.
func WithErrorRecorder(rec ErrorRecorder) HandlerOption {
	return func(h *Handlers) {
		h.errors = rec
	}
}

// NewHandlers creates a new handlers instance
func NewHandlers(proxyService proxy.ServiceInterface, opts ...HandlerOption) *Handlers {
	h := &Handlers{
		proxyService: proxyService,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.healthChecker == nil {
		h.healthChecker = health.NewChecker(0)
	}
	return h
}

// HealthCheck handles the liveness probe.
// GET /health
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	info := version.GetInfo()
	h.writeJSONResponse(w, http.StatusOK, map[string]any{
		"status":    health.StatusHealthy,
		"timestamp": h.now().UTC(),
		"version":   info.Version,
		"uptime":    version.Uptime().Seconds(),
	})
}

// writeJSONResponse writes a JSON response
func (h *Handlers) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// headers are already written
		slog.Error("Error encoding JSON response", "error", err)
	}
}

// writeErrorResponse writes an error response
func (h *Handlers) writeErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) {
	h.writeJSONResponse(w, statusCode, models.NewErrorResponse(message, errorCode))
}

// writeServiceError maps proxy service errors onto their HTTP status.
func (h *Handlers) writeServiceError(w http.ResponseWriter, err error) {
	var svcErr *proxy.ServiceError
	if errors.As(err, &svcErr) {
		if svcErr.StatusCode >= http.StatusInternalServerError {
			slog.Error("Proxy service failure", "code", svcErr.Code, "error", err)
		}
		h.writeErrorResponse(w, svcErr.StatusCode, svcErr.Code, svcErr.Message)
		return
	}
	slog.Error("Unexpected proxy service error", "error", err)
	h.writeErrorResponse(w, http.StatusInternalServerError, models.ErrorCodeInternalError, "Internal server error")
}

// decodeJSON decodes the request body into v, answering 400 on failure.
func (h *Handlers) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeBadRequest, "Invalid JSON body")
		return false
	}
	return true
}

// getAPIKeyName safely extracts the API key name for logging
func getAPIKeyName(securityContext *SecurityContext) string {
	if securityContext == nil || securityContext.APIKey == nil {
		return "anonymous"
	}
	if securityContext.APIKey.Name != "" {
		return securityContext.APIKey.Name
	}
	return "unnamed-key"
}
