package observability

import (
	"context"
	"strings"
	"testing"

	"proxygate/internal/models"
	"proxygate/internal/version"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func setupTestProvider(t *testing.T) *Provider {
	t.Helper()
	metrics := models.MetricsConfig{Enabled: true, Path: "/metrics", Port: 9090}
	obs := models.ObservabilityConfig{
		ServiceName:    "test",
		ServiceVersion: "1.0.0",
		Tracing: models.TracingConfig{
			Enabled:    true,
			Exporter:   "stdout",
			SampleRate: 1.0,
		},
	}
	provider, err := Setup(metrics, obs, version.Info{})
	require.NoError(t, err)
	t.Cleanup(func() { provider.Shutdown(context.Background()) })
	return provider
}

// gatherFamily returns the metric family whose name starts with prefix.
func gatherFamily(t *testing.T, p *Provider, prefix string) *dto.MetricFamily {
	t.Helper()
	families, err := p.Registry().Gather()
	require.NoError(t, err)
	for _, f := range families {
		if strings.HasPrefix(f.GetName(), prefix) {
			return f
		}
	}
	return nil
}

func labelValue(m *dto.Metric, name string) string {
	for _, l := range m.GetLabel() {
		if l.GetName() == name {
			return l.GetValue()
		}
	}
	return ""
}

// counterByLabel sums counter samples carrying label=value.
func counterByLabel(f *dto.MetricFamily, label, value string) float64 {
	var total float64
	for _, m := range f.GetMetric() {
		if labelValue(m, label) == value {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}
