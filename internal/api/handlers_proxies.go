package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"proxygate/internal/models"

	"github.com/gorilla/mux"
)

// ListProxies returns the whole proxy pool.
// GET /api/v1/proxies
func (h *Handlers) ListProxies(w http.ResponseWriter, r *http.Request) {
	resp, err := h.proxyService.ListProxies(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, resp)
}

// AddProxies handles bulk proxy registration
// POST /api/v1/proxies
// Requires 'write' permission when auth is enabled
func (h *Handlers) AddProxies(w http.ResponseWriter, r *http.Request) {
	var req models.AddProxiesRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.proxyService.AddProxies(r.Context(), &req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	slog.Info("Proxies added",
		"submitted", len(req.Proxies),
		"api_key", getAPIKeyName(GetSecurityContext(r)),
		"message", resp.Message)
	h.writeJSONResponse(w, http.StatusOK, resp)
}

// DeleteProxy removes a proxy from the pool.
// DELETE /api/v1/proxies/{id}
func (h *Handlers) DeleteProxy(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeBadRequest, "Invalid proxy id")
		return
	}

	resp, err := h.proxyService.DeleteProxy(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	slog.Info("Proxy deleted", "id", id, "api_key", getAPIKeyName(GetSecurityContext(r)))
	h.writeJSONResponse(w, http.StatusOK, resp)
}

// TestProxy probes a single proxy. The proxy does not have to be in the pool.
// POST /api/v1/proxies/test
func (h *Handlers) TestProxy(w http.ResponseWriter, r *http.Request) {
	var req models.TestProxyRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	result, err := h.proxyService.TestProxy(r.Context(), &req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, result)
}

// CheckProxies probes every proxy in the pool.
// POST /api/v1/proxies/check?use_cache=true
func (h *Handlers) CheckProxies(w http.ResponseWriter, r *http.Request) {
	useCache, _ := strconv.ParseBool(r.URL.Query().Get("use_cache"))

	summary, err := h.proxyService.CheckAll(r.Context(), useCache)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, summary)
}
