package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"proxygate/internal/api"
	"proxygate/internal/cache"
	"proxygate/internal/config"
	"proxygate/internal/health"
	"proxygate/internal/logger"
	"proxygate/internal/models"
	"proxygate/internal/observability"
	"proxygate/internal/proxy"
	"proxygate/internal/ratelimit"
	"proxygate/internal/requestlog"
	"proxygate/internal/storage"
	"proxygate/internal/version"
)

var (
	configFile    = flag.String("config", "", "Path to configuration file")
	envFile       = flag.String("env-file", "", "Path to a dotenv file loaded before PROXYGATE_* overrides")
	showVersion   = flag.Bool("version", false, "Print version information and exit")
	exampleConfig = flag.String("example-config", "", "Write an example configuration file to this path and exit")
)

func main() {
	flag.Parse()

	info := version.GetInfo()
	if *showVersion {
		fmt.Println(info.String())
		return
	}
	if *exampleConfig != "" {
		if err := config.SaveExample(*exampleConfig); err != nil {
			slog.Error("Failed to write example configuration", "error", err)
			os.Exit(1)
		}
		fmt.Printf("Example configuration written to %s\n", *exampleConfig)
		return
	}

	// Load configuration
	cfg, err := config.Load(*configFile, *envFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize structured logging
	log, closer, err := logger.Setup(cfg.Logging, info)
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}
	if closer != nil {
		defer closer.Close()
	}
	slog.SetDefault(log)

	// Initialize observability (OpenTelemetry)
	otelProvider, err := observability.Setup(cfg.Metrics, cfg.Observability, info)
	if err != nil {
		slog.Error("Failed to initialize observability", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := otelProvider.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shutdown observability", "error", err)
		}
	}()

	// Initialize storage
	storageInstance, err := storage.NewFactory().Create(cfg.Storage)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer storageInstance.Close()

	// Wrap storage with instrumentation if metrics are enabled
	var activeStorage storage.Storage = storageInstance
	if cfg.Metrics.Enabled {
		instrumented, err := observability.NewInstrumentedStorage(storageInstance)
		if err != nil {
			slog.Error("Failed to create instrumented storage", "error", err)
			os.Exit(1)
		}
		activeStorage = instrumented
	}

	resultCache, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("Failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer resultCache.Close()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Request and error logs are written off the request path.
	logWriter := requestlog.NewWriter(activeStorage, requestlog.WriterOptions{
		BufferSize:  cfg.RequestLog.BufferSize,
		MaxBodySize: cfg.RequestLog.MaxBodySize,
		MaxRetries:  cfg.RequestLog.MaxRetries,
	})
	if cfg.RequestLog.RetentionDays > 0 {
		janitor := requestlog.NewJanitor(activeStorage, cfg.RequestLog.RetentionDays, cfg.RequestLog.CleanupInterval)
		go janitor.Run(ctx)
	}

	checker := proxy.NewChecker(proxy.CheckerOptions{
		TargetURL:       cfg.ProxyCheck.TargetURL,
		Timeout:         cfg.ProxyCheck.Timeout,
		ChecksPerSecond: cfg.ProxyCheck.ChecksPerSecond,
		Concurrency:     cfg.ProxyCheck.Concurrency,
		CacheTTL:        cfg.Cache.TTL,
		UserAgent:       info.UserAgent(),
	}, resultCache, logWriter)
	proxyService := proxy.NewService(activeStorage, checker)

	systemCollector := health.NewSystemCollector(cfg.Health.MetricsCacheDuration, info.StartedAt)
	healthChecker := health.NewChecker(cfg.Health.CheckTimeout)
	healthChecker.Register("database", health.DatabaseCheck(activeStorage))
	healthChecker.Register("api_keys", health.APIKeysCheck(cfg.Security.APIKeys))
	healthChecker.Register("system_resources", health.SystemResourcesCheck(systemCollector, cfg.Health.Thresholds))
	if cfg.Cache.Enabled {
		healthChecker.Register("cache", health.CacheCheck(resultCache))
	}

	handlers := api.NewHandlers(proxyService,
		api.WithLogStore(activeStorage),
		api.WithHealth(healthChecker, systemCollector),
		api.WithSecurityConfig(cfg.Security),
		api.WithErrorRecorder(logWriter),
	)

	// Setup routes with middleware
	routeOpts := []api.RouteOption{}
	if cfg.Observability.Tracing.Enabled {
		routeOpts = append(routeOpts, api.WithOTelMiddleware(cfg.Observability.ServiceName))
	}

	// Initialize rate limiter if enabled
	if cfg.Security.RateLimit.Enabled {
		limiter, err := newLimiter(cfg.Security.RateLimit, otelProvider)
		if err != nil {
			slog.Error("Failed to initialize rate limiter", "error", err)
			os.Exit(1)
		}
		routeOpts = append(routeOpts, api.WithRateLimiter(ratelimit.Middleware(limiter)))
	}

	if cfg.RequestLog.Enabled {
		routeOpts = append(routeOpts, api.WithRequestLogging(requestlog.Middleware(logWriter, requestlog.MiddlewareOptions{
			MaxBodySize: cfg.RequestLog.MaxBodySize,
		})))
	}

	router := api.SetupRoutes(handlers, cfg, routeOpts...)

	// Start metrics server if enabled
	var metricsServer *observability.MetricsServer
	if cfg.Metrics.Enabled {
		metricsServer = observability.NewMetricsServer(cfg.Metrics.Port, cfg.Metrics.Path, otelProvider)
		go func() {
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("Starting server",
			"addr", server.Addr,
			"storage", cfg.Storage.Type,
			"auth", cfg.Security.EnableAuth,
			"rate_limit", cfg.Security.RateLimit.Enabled)

		var err error
		if cfg.Server.TLSEnabled {
			slog.Info("Starting HTTPS server with TLS")
			err = server.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			slog.Info("Starting HTTP server")
			err = server.ListenAndServe()
		}

		if err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server")
	stop()

	// Create a deadline to wait for shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown metrics server
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("Metrics server forced to shutdown", "error", err)
		}
	}

	// Attempt graceful shutdown
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	// Flush queued log entries before storage closes.
	if err := logWriter.Close(shutdownCtx); err != nil {
		slog.Error("Request log writer did not drain", "error", err, "dropped", logWriter.Dropped())
	}

	slog.Info("Server shutdown complete")
}

// newLimiter builds the admission controller and wires its metrics into the
// OpenTelemetry meter provider.
func newLimiter(cfg models.RateLimitConfig, provider *observability.Provider) (*ratelimit.Limiter, error) {
	metrics, err := observability.NewAdmissionMetrics(provider.Meter("proxygate/ratelimit"))
	if err != nil {
		return nil, fmt.Errorf("admission metrics: %w", err)
	}
	return ratelimit.New(ratelimit.Config{
		RequestsPerMinute: cfg.RequestsPerMinute,
		RequestsPerHour:   cfg.RequestsPerHour,
		BurstCapacity:     cfg.BurstCapacity,
		CleanupInterval:   cfg.CleanupInterval,
		RetentionWindow:   cfg.RetentionWindow,
		ExemptPaths:       cfg.ExemptPaths,
	}, ratelimit.WithRecorder(metrics)), nil
}
