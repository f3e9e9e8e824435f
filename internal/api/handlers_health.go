package api

import (
	"net/http"
	"slices"
	"time"

	"proxygate/internal/health"
	"proxygate/internal/models"
	"proxygate/internal/version"

	"github.com/gorilla/mux"
)

// DetailedHealthResponse aggregates every registered check.
type DetailedHealthResponse struct {
	Status    health.Status            `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Version   version.Info             `json:"version"`
	Checks    map[string]health.Result `json:"checks"`
	Summary   HealthSummary            `json:"summary"`
}

type HealthSummary struct {
	Total     int `json:"total"`
	Healthy   int `json:"healthy"`
	Degraded  int `json:"degraded"`
	Unhealthy int `json:"unhealthy"`
	Unknown   int `json:"unknown"`
}

// DetailedHealth runs all checks concurrently.
// GET /health/detailed
func (h *Handlers) DetailedHealth(w http.ResponseWriter, r *http.Request) {
	results := h.healthChecker.RunAll(r.Context())
	overall := health.Overall(results)

	summary := HealthSummary{Total: len(results)}
	for _, res := range results {
		switch res.Status {
		case health.StatusHealthy:
			summary.Healthy++
		case health.StatusDegraded:
			summary.Degraded++
		case health.StatusUnhealthy:
			summary.Unhealthy++
		default:
			summary.Unknown++
		}
	}

	h.writeJSONResponse(w, statusCodeFor(overall), &DetailedHealthResponse{
		Status:    overall,
		Timestamp: h.now().UTC(),
		Version:   version.GetInfo(),
		Checks:    results,
		Summary:   summary,
	})
}

// SystemMetrics reports host resource usage.
// GET /health/metrics
func (h *Handlers) SystemMetrics(w http.ResponseWriter, r *http.Request) {
	if h.system == nil {
		h.writeErrorResponse(w, http.StatusServiceUnavailable, models.ErrorCodeServiceUnavailable, "System metrics are not available")
		return
	}
	h.writeJSONResponse(w, http.StatusOK, h.system.Collect(r.Context()))
}

// RunHealthCheck runs a single named check.
// GET /health/check/{name}
func (h *Handlers) RunHealthCheck(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if !slices.Contains(h.healthChecker.Names(), name) {
		h.writeErrorResponse(w, http.StatusNotFound, models.ErrorCodeNotFound, "Unknown health check: "+name)
		return
	}
	res := h.healthChecker.Run(r.Context(), name)
	h.writeJSONResponse(w, statusCodeFor(res.Status), res)
}

func statusCodeFor(s health.Status) int {
	if s == health.StatusUnhealthy {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}
