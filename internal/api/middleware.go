package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"proxygate/internal/models"

	"github.com/gorilla/mux"
)

// AuthCookieName is the cookie set by the login endpoint.
const AuthCookieName = "auth_token"

// Permission represents the different permission levels
type Permission string

const (
	PermissionRead  Permission = models.PermissionRead
	PermissionWrite Permission = models.PermissionWrite
	PermissionAdmin Permission = models.PermissionAdmin
)

type contextKey string

const apiKeyContextKey contextKey = "api_key"

// SecurityContext represents the security information for a request
type SecurityContext struct {
	APIKey      *models.APIKey
	Permissions []string
}

// HasPermission checks if the security context has the required permission
func (sc *SecurityContext) HasPermission(required Permission) bool {
	if sc == nil || sc.APIKey == nil {
		return false
	}
	return sc.APIKey.HasPermission(string(required))
}

// GetSecurityContext extracts security context from request context
func GetSecurityContext(r *http.Request) *SecurityContext {
	if apiKey, ok := r.Context().Value(apiKeyContextKey).(*models.APIKey); ok {
		return &SecurityContext{
			APIKey:      apiKey,
			Permissions: apiKey.Permissions,
		}
	}
	return nil
}

// RequirePermission creates middleware that enforces a specific permission
func RequirePermission(required Permission) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			securityContext := GetSecurityContext(r)
			if securityContext == nil || !securityContext.HasPermission(required) {
				writeJSONError(w, http.StatusForbidden,
					"Insufficient permissions for this operation", models.ErrorCodeForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// authMiddleware resolves the caller's API key from a Bearer token or the
// auth_token cookie.
func authMiddleware(keys []models.APIKey) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := requestToken(r)
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "Authorization required", models.ErrorCodeUnauthorized)
				return
			}
			key := findAPIKey(keys, token)
			if key == nil {
				writeJSONError(w, http.StatusUnauthorized, "Invalid API key", models.ErrorCodeUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), apiKeyContextKey, key)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// requestToken prefers the Authorization header over the session cookie.
func requestToken(r *http.Request) (string, bool) {
	const prefix = "Bearer "
	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, prefix) {
		if token := strings.TrimSpace(authHeader[len(prefix):]); token != "" {
			return token, true
		}
	}
	if c, err := r.Cookie(AuthCookieName); err == nil && c.Value != "" {
		return c.Value, true
	}
	return "", false
}

// findAPIKey returns the enabled key matching token, or nil.
func findAPIKey(keys []models.APIKey, token string) *models.APIKey {
	for i := range keys {
		if keys[i].Enabled && keys[i].Matches(token) {
			k := keys[i]
			return &k
		}
	}
	return nil
}

func writeJSONError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(models.NewErrorResponse(message, code))
}
