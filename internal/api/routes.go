package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"proxygate/internal/models"
	"proxygate/internal/ratelimit"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
)

// routeSettings collects the optional middleware. SetupRoutes installs it in a
// fixed order regardless of the order options are passed in.
type routeSettings struct {
	otel           mux.MiddlewareFunc
	rateLimiter    mux.MiddlewareFunc
	requestLogging mux.MiddlewareFunc
}

// RouteOption configures optional route behavior.
type RouteOption func(*routeSettings)

// WithOTelMiddleware adds OpenTelemetry HTTP instrumentation middleware.
func WithOTelMiddleware(serviceName string) RouteOption {
	return func(s *routeSettings) {
		s.otel = otelmux.Middleware(serviceName,
			otelmux.WithFilter(func(r *http.Request) bool {
				switch r.URL.Path {
				case "/metrics", "/openapi.yaml", "/docs", "/redoc":
					return false
				}
				return !strings.HasPrefix(r.URL.Path, "/health")
			}),
		)
	}
}

// WithRateLimiter adds rate limiting middleware to the router.
func WithRateLimiter(middleware func(http.Handler) http.Handler) RouteOption {
	return func(s *routeSettings) {
		s.rateLimiter = middleware
	}
}

// WithRequestLogging records API calls after admission and before auth, so
// rejected credentials are logged too.
func WithRequestLogging(middleware func(http.Handler) http.Handler) RouteOption {
	return func(s *routeSettings) {
		s.requestLogging = middleware
	}
}

// SetupRoutes configures the HTTP routes for the API. Router-wide middleware
// runs as recovery, logging, CORS, rate limiting, request logging; auth is
// applied per subrouter after that.
func SetupRoutes(handlers *Handlers, config *models.Config, opts ...RouteOption) *mux.Router {
	var settings routeSettings
	for _, opt := range opts {
		opt(&settings)
	}

	router := mux.NewRouter()

	if settings.otel != nil {
		router.Use(settings.otel)
	}
	router.Use(recoveryMiddleware(handlers.errors))
	router.Use(loggingMiddleware)
	if config.Server.CORS.Enabled {
		router.Use(corsMiddleware(config.Server.CORS))
	}
	if settings.rateLimiter != nil {
		router.Use(settings.rateLimiter)
	}
	if settings.requestLogging != nil {
		router.Use(settings.requestLogging)
	}

	router.HandleFunc("/health", handlers.HealthCheck).Methods("GET")
	router.HandleFunc("/health/detailed", handlers.DetailedHealth).Methods("GET")
	router.HandleFunc("/health/metrics", handlers.SystemMetrics).Methods("GET")
	router.HandleFunc("/health/check/{name}", handlers.RunHealthCheck).Methods("GET")

	router.HandleFunc("/openapi.yaml", handlers.ServeOpenAPISpec).Methods("GET")
	router.HandleFunc("/docs", handlers.ServeSwaggerUI).Methods("GET")
	router.HandleFunc("/redoc", handlers.ServeRedoc).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/auth/login", handlers.Login).Methods("POST")
	api.HandleFunc("/auth/logout", handlers.Logout).Methods("POST")

	readAPI := api.PathPrefix("").Subrouter()
	writeAPI := api.PathPrefix("").Subrouter()
	adminAPI := api.PathPrefix("").Subrouter()
	if config.Security.EnableAuth {
		keys := config.Security.APIKeys
		readAPI.Use(authMiddleware(keys), RequirePermission(PermissionRead))
		writeAPI.Use(authMiddleware(keys), RequirePermission(PermissionWrite))
		adminAPI.Use(authMiddleware(keys), RequirePermission(PermissionAdmin))
	}

	readAPI.HandleFunc("/proxies", handlers.ListProxies).Methods("GET")
	readAPI.HandleFunc("/request-logs", handlers.ListRequestLogs).Methods("GET")
	readAPI.HandleFunc("/request-logs/{id}", handlers.GetRequestLog).Methods("GET")
	readAPI.HandleFunc("/error-logs", handlers.ListErrorLogs).Methods("GET")
	readAPI.HandleFunc("/stats", handlers.GetStats).Methods("GET")

	writeAPI.HandleFunc("/proxies", handlers.AddProxies).Methods("POST")
	writeAPI.HandleFunc("/proxies/test", handlers.TestProxy).Methods("POST")
	writeAPI.HandleFunc("/proxies/check", handlers.CheckProxies).Methods("POST")
	writeAPI.HandleFunc("/proxies/{id}", handlers.DeleteProxy).Methods("DELETE")

	adminAPI.HandleFunc("/logs", handlers.CleanupLogs).Methods("DELETE")

	// Preflight catch-all. A custom matcher keeps unknown paths answering 404
	// rather than 405.
	api.PathPrefix("").MatcherFunc(func(r *http.Request, _ *mux.RouteMatch) bool {
		return r.Method == http.MethodOptions
	}).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	router.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowedHandler)
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusNotFound, "Not found", models.ErrorCodeNotFound)
	})

	return router
}

// methodNotAllowedHandler handles requests with invalid HTTP methods
func methodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed", models.ErrorCodeInvalidRequest)
}

// corsMiddleware handles Cross-Origin Resource Sharing
func corsMiddleware(corsConfig models.CORSConfig) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(corsConfig.AllowedOrigins) > 0 {
				origin := r.Header.Get("Origin")
				if origin != "" && (contains(corsConfig.AllowedOrigins, "*") || contains(corsConfig.AllowedOrigins, origin)) {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Add("Vary", "Origin")
				}
			}
			if len(corsConfig.AllowedMethods) > 0 {
				w.Header().Set("Access-Control-Allow-Methods", strings.Join(corsConfig.AllowedMethods, ", "))
			}
			if len(corsConfig.AllowedHeaders) > 0 {
				w.Header().Set("Access-Control-Allow-Headers", strings.Join(corsConfig.AllowedHeaders, ", "))
			}
			if corsConfig.MaxAge > 0 {
				w.Header().Set("Access-Control-Max-Age", fmt.Sprintf("%d", corsConfig.MaxAge))
			}
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// statusRecorder remembers the status code for access logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.InfoContext(r.Context(), "HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", ratelimit.ClientIP(r))
	})
}

// recoveryMiddleware turns panics into a 500 response and an error log entry.
func recoveryMiddleware(rec ErrorRecorder) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}
					slog.Error("Panic recovered", "error", err, "path", r.URL.Path, "stack", string(debug.Stack()))
					if rec != nil {
						rec.RecordError(models.ErrorLog{
							ErrorType:   models.ErrorTypePanic,
							Message:     fmt.Sprint(err),
							ErrorCode:   http.StatusInternalServerError,
							Path:        r.URL.Path,
							ClientID:    ratelimit.ClientIdentifier(r),
							RequestTime: time.Now().UTC(),
						})
					}
					writeJSONError(w, http.StatusInternalServerError, "Internal server error", models.ErrorCodeInternalError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
