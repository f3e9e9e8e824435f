package api

import (
	"log/slog"
	"net/http"

	"proxygate/internal/models"
	"proxygate/internal/ratelimit"
)

type LoginRequest struct {
	APIKey string `json:"api_key"`
}

// Login exchanges an API key for an HttpOnly session cookie.
// POST /api/v1/auth/login
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if req.APIKey == "" {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeInvalidRequest, "api_key is required")
		return
	}

	key := findAPIKey(h.securityConfig.APIKeys, req.APIKey)
	if key == nil {
		slog.Warn("Login rejected",
			"key_prefix", models.KeyPrefix(req.APIKey),
			"client_ip", ratelimit.ClientIP(r))
		h.writeErrorResponse(w, http.StatusUnauthorized, models.ErrorCodeUnauthorized, "Invalid API key")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     AuthCookieName,
		Value:    req.APIKey,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
	slog.Info("Login succeeded", "api_key", key.Name)
	h.writeJSONResponse(w, http.StatusOK, models.NewMessageResponse("Logged in."))
}

// Logout clears the session cookie.
// POST /api/v1/auth/logout
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     AuthCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
	h.writeJSONResponse(w, http.StatusOK, models.NewMessageResponse("Logged out."))
}
