package observability

import (
	"context"

	"proxygate/internal/ratelimit"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AdmissionMetrics records rate limiter decisions and registry sweeps.
type AdmissionMetrics struct {
	decisions metric.Int64Counter
	evictions metric.Int64Counter
	tracked   metric.Int64Gauge
}

// NewAdmissionMetrics creates the instruments on meter, or on the global
// meter provider when meter is nil.
func NewAdmissionMetrics(meter metric.Meter) (*AdmissionMetrics, error) {
	if meter == nil {
		meter = otel.Meter("proxygate/ratelimit")
	}

	decisions, err := meter.Int64Counter(
		"ratelimit.decisions",
		metric.WithDescription("Admission decisions by outcome and rejecting window"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	evictions, err := meter.Int64Counter(
		"ratelimit.evictions",
		metric.WithDescription("Idle clients removed by the bucket sweep"),
		metric.WithUnit("{client}"),
	)
	if err != nil {
		return nil, err
	}

	tracked, err := meter.Int64Gauge(
		"ratelimit.tracked_clients",
		metric.WithDescription("Clients holding bucket state after the last sweep"),
		metric.WithUnit("{client}"),
	)
	if err != nil {
		return nil, err
	}

	return &AdmissionMetrics{decisions: decisions, evictions: evictions, tracked: tracked}, nil
}

// RecordDecision counts one admission outcome (allowed, rejected or
// fail_open), labelled with the rejecting window when there is one.
func (m *AdmissionMetrics) RecordDecision(ctx context.Context, d ratelimit.Decision) {
	outcome := "allowed"
	switch {
	case d.FailOpen:
		outcome = "fail_open"
	case !d.Allowed:
		outcome = "rejected"
	}
	attrs := []attribute.KeyValue{attribute.String("outcome", outcome)}
	if d.Window != "" {
		attrs = append(attrs, attribute.String("window", string(d.Window)))
	}
	m.decisions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordSweep adds evicted clients to the eviction counter and records how
// many clients remain tracked.
func (m *AdmissionMetrics) RecordSweep(ctx context.Context, removed, remaining int) {
	if removed > 0 {
		m.evictions.Add(ctx, int64(removed))
	}
	m.tracked.Record(ctx, int64(remaining))
}

var _ ratelimit.Recorder = (*AdmissionMetrics)(nil)
