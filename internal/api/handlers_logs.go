package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"proxygate/internal/models"
	"proxygate/internal/storage"

	"github.com/gorilla/mux"
)

const defaultCleanupDays = 30

// ListRequestLogs handles paginated request log queries
// GET /api/v1/request-logs
func (h *Handlers) ListRequestLogs(w http.ResponseWriter, r *http.Request) {
	if !h.requireLogStore(w) {
		return
	}
	q := r.URL.Query()

	filter := models.RequestLogFilter{
		Method:     q.Get("method"),
		Path:       q.Get("path"),
		Key:        q.Get("key"),
		StatusCode: q.Get("status_code"),
		SortBy:     q.Get("sort_by"),
		SortOrder:  q.Get("sort_order"),
	}
	if page, err := strconv.Atoi(q.Get("page")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		filter.Limit = limit
	}
	filter.Normalize()

	logs, err := h.logs.ListRequestLogs(r.Context(), filter)
	if err != nil {
		slog.Error("Failed to list request logs", "error", err)
		h.writeErrorResponse(w, http.StatusInternalServerError, models.ErrorCodeDatabase, "Failed to list request logs")
		return
	}
	total, err := h.logs.CountRequestLogs(r.Context(), filter)
	if err != nil {
		slog.Error("Failed to count request logs", "error", err)
		h.writeErrorResponse(w, http.StatusInternalServerError, models.ErrorCodeDatabase, "Failed to count request logs")
		return
	}
	if logs == nil {
		logs = []models.RequestLog{}
	}

	h.writeJSONResponse(w, http.StatusOK, &models.RequestLogListResponse{
		Logs:       logs,
		TotalCount: total,
		Page:       filter.Page,
		PageSize:   filter.Limit,
		HasMore:    int64(filter.Offset()+len(logs)) < total,
	})
}

// GetRequestLog returns a single request log with its bodies.
// GET /api/v1/request-logs/{id}
func (h *Handlers) GetRequestLog(w http.ResponseWriter, r *http.Request) {
	if !h.requireLogStore(w) {
		return
	}
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeBadRequest, "Invalid log id")
		return
	}

	entry, err := h.logs.GetRequestLog(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		h.writeErrorResponse(w, http.StatusNotFound, models.ErrorCodeLogNotFound, "Log not found")
		return
	}
	if err != nil {
		slog.Error("Failed to get request log", "id", id, "error", err)
		h.writeErrorResponse(w, http.StatusInternalServerError, models.ErrorCodeDatabase, "Failed to get request log")
		return
	}
	h.writeJSONResponse(w, http.StatusOK, entry)
}

// ListErrorLogs handles error log queries
// GET /api/v1/error-logs?limit=&offset=&start_date=&end_date=&error_type=
func (h *Handlers) ListErrorLogs(w http.ResponseWriter, r *http.Request) {
	if !h.requireLogStore(w) {
		return
	}
	q := r.URL.Query()

	filter := models.ErrorLogFilter{ErrorType: q.Get("error_type")}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(q.Get("offset")); err == nil {
		filter.Offset = offset
	}
	start, err := parseDateParam(q.Get("start_date"))
	if err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeBadRequest, err.Error())
		return
	}
	end, err := parseDateParam(q.Get("end_date"))
	if err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeBadRequest, err.Error())
		return
	}
	filter.StartDate, filter.EndDate = start, end
	filter.Normalize()

	logs, err := h.logs.ListErrorLogs(r.Context(), filter)
	if err != nil {
		slog.Error("Failed to list error logs", "error", err)
		h.writeErrorResponse(w, http.StatusInternalServerError, models.ErrorCodeDatabase, "Failed to list error logs")
		return
	}
	if logs == nil {
		logs = []models.ErrorLog{}
	}

	h.writeJSONResponse(w, http.StatusOK, &models.ErrorLogListResponse{
		Logs:   logs,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

// GetStats reports usage over a period, the last seven days by default.
// GET /api/v1/stats?start_date=&end_date=
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	if !h.requireLogStore(w) {
		return
	}
	period := models.DefaultStatsPeriod(h.now().UTC())

	start, err := parseDateParam(r.URL.Query().Get("start_date"))
	if err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeBadRequest, err.Error())
		return
	}
	end, err := parseDateParam(r.URL.Query().Get("end_date"))
	if err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeBadRequest, err.Error())
		return
	}
	if start != nil {
		period.StartDate = *start
	}
	if end != nil {
		period.EndDate = *end
	}
	if period.EndDate.Before(period.StartDate) {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeBadRequest, "end_date must not be before start_date")
		return
	}

	stats, err := h.logs.Stats(r.Context(), period.StartDate, period.EndDate)
	if err != nil {
		slog.Error("Failed to compute stats", "error", err)
		h.writeErrorResponse(w, http.StatusInternalServerError, models.ErrorCodeDatabase, "Failed to compute stats")
		return
	}
	h.writeJSONResponse(w, http.StatusOK, stats)
}

// CleanupLogs deletes logs older than the given number of days.
// DELETE /api/v1/logs?days=30&kind=both
// Requires 'admin' permission when auth is enabled
func (h *Handlers) CleanupLogs(w http.ResponseWriter, r *http.Request) {
	if !h.requireLogStore(w) {
		return
	}
	q := r.URL.Query()

	days := defaultCleanupDays
	if raw := q.Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeBadRequest, "days must be a positive integer")
			return
		}
		days = n
	}
	kind, err := models.ParseLogKind(q.Get("kind"))
	if err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeBadRequest, err.Error())
		return
	}

	cutoff := h.now().UTC().AddDate(0, 0, -days)
	deleted, err := h.logs.DeleteLogsBefore(r.Context(), cutoff, kind)
	if err != nil {
		slog.Error("Failed to clean up logs", "kind", kind, "error", err)
		h.writeErrorResponse(w, http.StatusInternalServerError, models.ErrorCodeDatabase, "Failed to clean up logs")
		return
	}

	slog.Info("Logs cleaned up",
		"kind", kind,
		"cutoff", cutoff,
		"request_logs", deleted.RequestLogs,
		"error_logs", deleted.ErrorLogs,
		"api_key", getAPIKeyName(GetSecurityContext(r)))
	h.writeJSONResponse(w, http.StatusOK, &models.CleanupLogsResponse{
		Success: true,
		Deleted: deleted,
		Cutoff:  cutoff,
	})
}

func (h *Handlers) requireLogStore(w http.ResponseWriter) bool {
	if h.logs == nil {
		h.writeErrorResponse(w, http.StatusServiceUnavailable, models.ErrorCodeServiceUnavailable, "Log storage is not configured")
		return false
	}
	return true
}

// parseDateParam accepts RFC 3339 timestamps or plain YYYY-MM-DD dates.
// An empty value yields nil.
func parseDateParam(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid date %q: use RFC 3339 or YYYY-MM-DD", raw)
}
