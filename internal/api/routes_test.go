package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"proxygate/internal/models"
	"proxygate/internal/ratelimit"
	"proxygate/internal/requestlog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// fakeRecorder collects request and error logs in memory.
type fakeRecorder struct {
	mu       sync.Mutex
	requests []models.RequestLog
	errors   []models.ErrorLog
}

func (f *fakeRecorder) Record(l models.RequestLog) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, l)
	return true
}

func (f *fakeRecorder) RecordError(l models.ErrorLog) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, l)
}

func (f *fakeRecorder) snapshot() ([]models.RequestLog, []models.ErrorLog) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.RequestLog(nil), f.requests...), append([]models.ErrorLog(nil), f.errors...)
}

func newRouteTestConfig(enableAuth bool) *models.Config {
	cfg := models.NewDefaultConfig()
	cfg.Security.EnableAuth = enableAuth
	cfg.Security.APIKeys = testKeys
	return cfg
}

func newFullMockService() *MockProxyService {
	svc := &MockProxyService{}
	svc.On("ListProxies", mock.Anything).Return(&models.ListProxiesResponse{Proxies: []models.Proxy{}}, nil).Maybe()
	svc.On("AddProxies", mock.Anything, mock.Anything).Return(models.NewMessageResponse("Added 0 new proxies."), nil).Maybe()
	svc.On("DeleteProxy", mock.Anything, mock.Anything).Return(models.NewMessageResponse("Proxy deleted."), nil).Maybe()
	svc.On("TestProxy", mock.Anything, mock.Anything).Return(&models.ProxyCheckResult{}, nil).Maybe()
	svc.On("CheckAll", mock.Anything, mock.Anything).Return(&models.ProxyCheckSummary{}, nil).Maybe()
	return svc
}

func serve(router http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.RemoteAddr = "198.51.100.10:40000"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestSetupRoutes_Permissions(t *testing.T) {
	cfg := newRouteTestConfig(true)
	h := newTestHandlers(t, newFullMockService(),
		WithLogStore(newMemoryStore(t)),
		WithSecurityConfig(cfg.Security))
	router := SetupRoutes(h, cfg)

	const (
		reader = "sk-read-0000000001"
		writer = "sk-write-000000002"
		admin  = "sk-admin-000000003"
	)

	tests := []struct {
		name       string
		method     string
		path       string
		token      string
		body       string
		wantStatus int
	}{
		{"list proxies without credentials", "GET", "/api/v1/proxies", "", "", http.StatusUnauthorized},
		{"list proxies as reader", "GET", "/api/v1/proxies", reader, "", http.StatusOK},
		{"add proxies as reader", "POST", "/api/v1/proxies", reader, `{"proxies":["1.2.3.4:80"]}`, http.StatusForbidden},
		{"add proxies as writer", "POST", "/api/v1/proxies", writer, `{"proxies":["1.2.3.4:80"]}`, http.StatusOK},
		{"delete proxy as writer", "DELETE", "/api/v1/proxies/3", writer, "", http.StatusOK},
		{"test proxy as writer", "POST", "/api/v1/proxies/test", writer, `{"proxy_url":"1.2.3.4:80"}`, http.StatusOK},
		{"check proxies as reader", "POST", "/api/v1/proxies/check", reader, "", http.StatusForbidden},
		{"request logs as reader", "GET", "/api/v1/request-logs", reader, "", http.StatusOK},
		{"error logs as reader", "GET", "/api/v1/error-logs", reader, "", http.StatusOK},
		{"stats as reader", "GET", "/api/v1/stats", reader, "", http.StatusOK},
		{"cleanup as writer", "DELETE", "/api/v1/logs", writer, "", http.StatusForbidden},
		{"cleanup as admin", "DELETE", "/api/v1/logs", admin, "", http.StatusOK},
		{"disabled key", "GET", "/api/v1/proxies", "sk-disabled-000004", "", http.StatusUnauthorized},
		{"login is public", "POST", "/api/v1/auth/login", "", `{"api_key":"` + admin + `"}`, http.StatusOK},
		{"logout is public", "POST", "/api/v1/auth/logout", "", "", http.StatusOK},
		{"health is public", "GET", "/health", "", "", http.StatusOK},
		{"detailed health is public", "GET", "/health/detailed", "", "", http.StatusOK},
		{"method not allowed", "PUT", "/health", "", "", http.StatusMethodNotAllowed},
		{"unknown route", "GET", "/api/v1/nothing-here", admin, "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(router, tt.method, tt.path, tt.token, tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestSetupRoutes_CookieSession(t *testing.T) {
	h := newTestHandlers(t, newFullMockService(), WithSecurityConfig(newRouteTestConfig(true).Security))
	router := SetupRoutes(h, newRouteTestConfig(true))

	login := serve(router, "POST", "/api/v1/auth/login", "", `{"api_key":"sk-read-0000000001"}`)
	require.Equal(t, http.StatusOK, login.Code)
	cookies := login.Result().Cookies()
	require.NotEmpty(t, cookies)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/proxies", nil)
	req.AddCookie(cookies[0])
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSetupRoutes_AuthDisabled(t *testing.T) {
	h := newTestHandlers(t, newFullMockService(), WithLogStore(newMemoryStore(t)))
	router := SetupRoutes(h, newRouteTestConfig(false))

	for _, tc := range []struct{ method, path string }{
		{"GET", "/api/v1/proxies"},
		{"DELETE", "/api/v1/proxies/1"},
		{"DELETE", "/api/v1/logs"},
		{"GET", "/api/v1/stats"},
	} {
		rec := serve(router, tc.method, tc.path, "", "")
		assert.Equal(t, http.StatusOK, rec.Code, "%s %s", tc.method, tc.path)
	}
}

func newFrozenLimiter(burst, perHour int) *ratelimit.Limiter {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return ratelimit.New(ratelimit.Config{
		RequestsPerMinute: 60,
		RequestsPerHour:   perHour,
		BurstCapacity:     burst,
	}, ratelimit.WithClock(func() time.Time { return now }))
}

func TestSetupRoutes_RateLimiting(t *testing.T) {
	h := newTestHandlers(t, newFullMockService())
	router := SetupRoutes(h, newRouteTestConfig(false),
		WithRateLimiter(ratelimit.Middleware(newFrozenLimiter(2, 1000))))

	for i := 0; i < 2; i++ {
		rec := serve(router, "GET", "/api/v1/proxies", "", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "60", rec.Header().Get(ratelimit.HeaderLimitMinute))
		assert.Equal(t, "1000", rec.Header().Get(ratelimit.HeaderLimitHour))
	}

	rec := serve(router, "GET", "/api/v1/proxies", "", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "Rate limit exceeded")

	health := serve(router, "GET", "/health", "", "")
	assert.Equal(t, http.StatusOK, health.Code, "health is exempt")
	assert.Empty(t, health.Header().Get(ratelimit.HeaderLimitMinute))
}

func TestSetupRoutes_RateLimitRunsBeforeAuth(t *testing.T) {
	h := newTestHandlers(t, newFullMockService())
	router := SetupRoutes(h, newRouteTestConfig(true),
		WithRateLimiter(ratelimit.Middleware(newFrozenLimiter(1, 1000))))

	first := serve(router, "GET", "/api/v1/proxies", "", "")
	assert.Equal(t, http.StatusUnauthorized, first.Code)

	second := serve(router, "GET", "/api/v1/proxies", "", "")
	assert.Equal(t, http.StatusTooManyRequests, second.Code, "unauthenticated calls still spend tokens")
}

func TestSetupRoutes_RequestLogging(t *testing.T) {
	rec := &fakeRecorder{}
	h := newTestHandlers(t, newFullMockService())
	router := SetupRoutes(h, newRouteTestConfig(true),
		WithRequestLogging(requestlog.Middleware(rec, requestlog.MiddlewareOptions{})))

	serve(router, "GET", "/api/v1/proxies", "sk-read-0000000001", "")
	serve(router, "GET", "/api/v1/proxies", "sk-wrong", "")
	serve(router, "GET", "/health", "", "")

	requests, _ := rec.snapshot()
	require.Len(t, requests, 2, "only /api/ paths are logged")

	assert.Equal(t, http.StatusOK, requests[0].StatusCode)
	assert.True(t, requests[0].IsSuccess)
	assert.Equal(t, "sk-read-", requests[0].APIKey)
	assert.Equal(t, "198.51.100.10", requests[0].ClientIP)

	assert.Equal(t, http.StatusUnauthorized, requests[1].StatusCode, "auth failures are logged")
	assert.False(t, requests[1].IsSuccess)
}

func TestSetupRoutes_PanicRecovery(t *testing.T) {
	rec := &fakeRecorder{}
	h := newTestHandlers(t, newFullMockService(), WithErrorRecorder(rec))
	router := SetupRoutes(h, newRouteTestConfig(false),
		WithRequestLogging(requestlog.Middleware(rec, requestlog.MiddlewareOptions{})))
	router.HandleFunc("/api/v1/explode", func(w http.ResponseWriter, r *http.Request) {
		panic("kaboom")
	}).Methods("GET")

	resp := serve(router, "GET", "/api/v1/explode", "", "")

	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.Contains(t, resp.Body.String(), models.ErrorCodeInternalError)

	requests, errs := rec.snapshot()
	require.Len(t, errs, 1)
	assert.Equal(t, models.ErrorTypePanic, errs[0].ErrorType)
	assert.Equal(t, "kaboom", errs[0].Message)
	assert.Equal(t, "/api/v1/explode", errs[0].Path)
	require.Len(t, requests, 1)
	assert.Equal(t, http.StatusInternalServerError, requests[0].StatusCode)
}

func TestSetupRoutes_CORS(t *testing.T) {
	cfg := newRouteTestConfig(false)
	cfg.Server.CORS = models.CORSConfig{
		Enabled:        true,
		AllowedOrigins: []string{"https://admin.example.com"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         600,
	}
	h := newTestHandlers(t, newFullMockService())
	router := SetupRoutes(h, cfg)

	tests := []struct {
		name       string
		method     string
		origin     string
		wantStatus int
		wantOrigin string
	}{
		{"preflight from allowed origin", http.MethodOptions, "https://admin.example.com", http.StatusNoContent, "https://admin.example.com"},
		{"preflight from other origin", http.MethodOptions, "https://evil.example.com", http.StatusNoContent, ""},
		{"simple request", http.MethodGet, "https://admin.example.com", http.StatusOK, "https://admin.example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/v1/proxies", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, "GET, POST", rec.Header().Get("Access-Control-Allow-Methods"))
			assert.Equal(t, "600", rec.Header().Get("Access-Control-Max-Age"))
		})
	}
}

func TestSetupRoutes_OTelOption(t *testing.T) {
	h := newTestHandlers(t, newFullMockService())
	router := SetupRoutes(h, newRouteTestConfig(false), WithOTelMiddleware("proxygate-test"))

	rec := serve(router, "GET", "/api/v1/proxies", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
