package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"proxygate/internal/models"
	"proxygate/internal/ratelimit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentationHandlers(t *testing.T) {
	handlers := NewHandlers(&MockProxyService{})

	tests := []struct {
		name            string
		handler         http.HandlerFunc
		wantContentType string
		wantContains    []string
	}{
		{
			name:            "openapi document",
			handler:         handlers.ServeOpenAPISpec,
			wantContentType: "application/yaml",
			wantContains:    []string{"openapi: 3.0.3", "/api/v1/proxies", "Retry-After"},
		},
		{
			name:            "swagger ui",
			handler:         handlers.ServeSwaggerUI,
			wantContentType: "text/html; charset=utf-8",
			wantContains:    []string{"swagger-ui", "/openapi.yaml"},
		},
		{
			name:            "redoc",
			handler:         handlers.ServeRedoc,
			wantContentType: "text/html; charset=utf-8",
			wantContains:    []string{"<redoc", "/openapi.yaml"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.handler(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.wantContentType, rec.Header().Get("Content-Type"))
			assert.Equal(t, docsCacheControl, rec.Header().Get("Cache-Control"))
			assert.Equal(t, openAPIETag, rec.Header().Get("ETag"))

			body := rec.Body.String()
			require.NotEmpty(t, body)
			for _, want := range tt.wantContains {
				assert.Contains(t, body, want)
			}
		})
	}
}

func TestServeOpenAPISpec_NotModified(t *testing.T) {
	handlers := NewHandlers(&MockProxyService{})

	req := httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil)
	req.Header.Set("If-None-Match", openAPIETag)
	rec := httptest.NewRecorder()
	handlers.ServeOpenAPISpec(rec, req)

	assert.Equal(t, http.StatusNotModified, rec.Code)
	assert.Empty(t, rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil)
	req.Header.Set("If-None-Match", `"stale"`)
	rec = httptest.NewRecorder()
	handlers.ServeOpenAPISpec(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "openapi:"))
}

func TestDocumentationRoutes_ArePublicAndExempt(t *testing.T) {
	for _, enableAuth := range []bool{false, true} {
		config := &models.Config{}
		config.Security.EnableAuth = enableAuth
		config.Security.APIKeys = []models.APIKey{
			{Key: "test-key", Enabled: true, Permissions: []string{"admin"}},
		}

		// A one-request hourly budget would reject the second call if docs
		// were metered.
		limiter := ratelimit.New(ratelimit.Config{RequestsPerMinute: 60, RequestsPerHour: 1, BurstCapacity: 1})
		router := SetupRoutes(NewHandlers(&MockProxyService{}), config, WithRateLimiter(ratelimit.Middleware(limiter)))

		for _, path := range []string{"/openapi.yaml", "/docs", "/redoc", "/openapi.yaml"} {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

			assert.Equal(t, http.StatusOK, rec.Code, "auth=%v path=%s", enableAuth, path)
			assert.Empty(t, rec.Header().Get(ratelimit.HeaderLimitMinute), "auth=%v path=%s", enableAuth, path)
		}
		assert.Zero(t, limiter.Registry().Len())
	}
}
