package observability

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const defaultMetricsPath = "/metrics"

// MetricsServer exposes the Prometheus registry on its own port so scrapes
// never pass through the API's admission control.
type MetricsServer struct {
	server *http.Server
}

// NewMetricsServer serves the provider's registry at path (default
// /metrics) and a plain liveness answer at /healthz.
func NewMetricsServer(port int, path string, provider *Provider) *MetricsServer {
	if path == "" {
		path = defaultMetricsPath
	}

	mux := http.NewServeMux()
	mux.Handle("GET "+path, provider.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})

	return &MetricsServer{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start blocks serving metrics and returns http.ErrServerClosed after
// Shutdown.
func (ms *MetricsServer) Start() error {
	slog.Info("Starting metrics server", "addr", ms.server.Addr)
	return ms.server.ListenAndServe()
}

func (ms *MetricsServer) Shutdown(ctx context.Context) error {
	return ms.server.Shutdown(ctx)
}
