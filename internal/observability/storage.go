package observability

import (
	"context"
	"time"

	"proxygate/internal/models"
	"proxygate/internal/storage"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentedStorage wraps a storage.Storage implementation with
// OpenTelemetry tracing and metrics instrumentation.
type InstrumentedStorage struct {
	inner    storage.Storage
	tracer   trace.Tracer
	duration metric.Float64Histogram
	errors   metric.Int64Counter
}

// NewInstrumentedStorage creates a new storage wrapper that records trace spans,
// operation latency histograms, and error counters for every storage method call.
func NewInstrumentedStorage(inner storage.Storage) (*InstrumentedStorage, error) {
	tracer := otel.Tracer("proxygate/storage")
	meter := otel.Meter("proxygate/storage")

	duration, err := meter.Float64Histogram(
		"storage.operation.duration",
		metric.WithDescription("Duration of storage operations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	errCounter, err := meter.Int64Counter(
		"storage.operation.errors",
		metric.WithDescription("Number of storage operation errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &InstrumentedStorage{
		inner:    inner,
		tracer:   tracer,
		duration: duration,
		errors:   errCounter,
	}, nil
}

func (s *InstrumentedStorage) startSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := s.tracer.Start(ctx, "storage."+operation,
		trace.WithAttributes(append([]attribute.KeyValue{
			attribute.String("storage.operation", operation),
		}, attrs...)...),
	)
	return ctx, span
}

func (s *InstrumentedStorage) record(ctx context.Context, span trace.Span, operation string, start time.Time, err error) {
	elapsed := time.Since(start).Seconds()
	attrs := metric.WithAttributes(attribute.String("operation", operation))

	s.duration.Record(ctx, elapsed, attrs)

	if err != nil {
		s.errors.Add(ctx, 1, attrs)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End()
}

func (s *InstrumentedStorage) ListProxies(ctx context.Context) ([]*models.Proxy, error) {
	ctx, span := s.startSpan(ctx, "ListProxies")
	start := time.Now()
	result, err := s.inner.ListProxies(ctx)
	s.record(ctx, span, "ListProxies", start, err)
	return result, err
}

func (s *InstrumentedStorage) GetProxy(ctx context.Context, id int64) (*models.Proxy, error) {
	ctx, span := s.startSpan(ctx, "GetProxy", attribute.Int64("proxy_id", id))
	start := time.Now()
	result, err := s.inner.GetProxy(ctx, id)
	s.record(ctx, span, "GetProxy", start, err)
	return result, err
}

func (s *InstrumentedStorage) AddProxies(ctx context.Context, urls []string) (int, error) {
	ctx, span := s.startSpan(ctx, "AddProxies", attribute.Int("batch_size", len(urls)))
	start := time.Now()
	added, err := s.inner.AddProxies(ctx, urls)
	span.SetAttributes(attribute.Int("added", added))
	s.record(ctx, span, "AddProxies", start, err)
	return added, err
}

func (s *InstrumentedStorage) DeleteProxy(ctx context.Context, id int64) error {
	ctx, span := s.startSpan(ctx, "DeleteProxy", attribute.Int64("proxy_id", id))
	start := time.Now()
	err := s.inner.DeleteProxy(ctx, id)
	s.record(ctx, span, "DeleteProxy", start, err)
	return err
}

func (s *InstrumentedStorage) AddRequestLog(ctx context.Context, l *models.RequestLog) (int64, error) {
	ctx, span := s.startSpan(ctx, "AddRequestLog", attribute.String("path", l.Path))
	start := time.Now()
	id, err := s.inner.AddRequestLog(ctx, l)
	s.record(ctx, span, "AddRequestLog", start, err)
	return id, err
}

func (s *InstrumentedStorage) AddErrorLog(ctx context.Context, l *models.ErrorLog) (int64, error) {
	ctx, span := s.startSpan(ctx, "AddErrorLog", attribute.String("error_type", l.ErrorType))
	start := time.Now()
	id, err := s.inner.AddErrorLog(ctx, l)
	s.record(ctx, span, "AddErrorLog", start, err)
	return id, err
}

func (s *InstrumentedStorage) ListRequestLogs(ctx context.Context, f models.RequestLogFilter) ([]models.RequestLog, error) {
	ctx, span := s.startSpan(ctx, "ListRequestLogs",
		attribute.Int("page", f.Page),
		attribute.Int("limit", f.Limit),
		attribute.String("sort_by", f.SortBy),
	)
	start := time.Now()
	result, err := s.inner.ListRequestLogs(ctx, f)
	s.record(ctx, span, "ListRequestLogs", start, err)
	return result, err
}

func (s *InstrumentedStorage) CountRequestLogs(ctx context.Context, f models.RequestLogFilter) (int64, error) {
	ctx, span := s.startSpan(ctx, "CountRequestLogs")
	start := time.Now()
	n, err := s.inner.CountRequestLogs(ctx, f)
	s.record(ctx, span, "CountRequestLogs", start, err)
	return n, err
}

func (s *InstrumentedStorage) GetRequestLog(ctx context.Context, id int64) (*models.RequestLog, error) {
	ctx, span := s.startSpan(ctx, "GetRequestLog", attribute.Int64("log_id", id))
	start := time.Now()
	result, err := s.inner.GetRequestLog(ctx, id)
	s.record(ctx, span, "GetRequestLog", start, err)
	return result, err
}

func (s *InstrumentedStorage) ListErrorLogs(ctx context.Context, f models.ErrorLogFilter) ([]models.ErrorLog, error) {
	ctx, span := s.startSpan(ctx, "ListErrorLogs", attribute.String("error_type", f.ErrorType))
	start := time.Now()
	result, err := s.inner.ListErrorLogs(ctx, f)
	s.record(ctx, span, "ListErrorLogs", start, err)
	return result, err
}

func (s *InstrumentedStorage) DeleteLogsBefore(ctx context.Context, cutoff time.Time, kind models.LogKind) (models.CleanupResult, error) {
	ctx, span := s.startSpan(ctx, "DeleteLogsBefore",
		attribute.String("cutoff", cutoff.UTC().Format(time.RFC3339)),
		attribute.String("kind", string(kind)),
	)
	start := time.Now()
	result, err := s.inner.DeleteLogsBefore(ctx, cutoff, kind)
	s.record(ctx, span, "DeleteLogsBefore", start, err)
	return result, err
}

func (s *InstrumentedStorage) Stats(ctx context.Context, from, to time.Time) (*models.UsageStats, error) {
	ctx, span := s.startSpan(ctx, "Stats")
	start := time.Now()
	result, err := s.inner.Stats(ctx, from, to)
	s.record(ctx, span, "Stats", start, err)
	return result, err
}

func (s *InstrumentedStorage) Ping(ctx context.Context) error {
	ctx, span := s.startSpan(ctx, "Ping")
	start := time.Now()
	err := s.inner.Ping(ctx)
	s.record(ctx, span, "Ping", start, err)
	return err
}

func (s *InstrumentedStorage) Close() error {
	return s.inner.Close()
}

var _ storage.Storage = (*InstrumentedStorage)(nil)
