package telemetry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Buooy/ergon-pm/internal/config"
	"github.com/Buooy/ergon-pm/internal/storage"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"disabled skips checks", func(c *Config) { c.Endpoint = "" }, false},
		{"enabled defaults", func(c *Config) { c.Enabled = true }, false},
		{"missing endpoint", func(c *Config) { c.Enabled = true; c.Endpoint = "" }, true},
		{"missing service", func(c *Config) { c.Enabled = true; c.ServiceName = "" }, true},
		{"bad protocol", func(c *Config) { c.Enabled = true; c.Protocol = "udp" }, true},
		{"insecure remote", func(c *Config) { c.Enabled = true; c.Endpoint = "otel.example.com:4317" }, true},
		{"secure remote", func(c *Config) {
			c.Enabled = true
			c.Endpoint = "otel.example.com:4317"
			c.Insecure = false
		}, false},
		{"sample rate above one", func(c *Config) { c.Enabled = true; c.SampleRate = 1.5 }, true},
		{"zero interval", func(c *Config) { c.Enabled = true; c.ExportInterval = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestIsLocalEndpoint(t *testing.T) {
	for endpoint, want := range map[string]bool{
		"localhost:4317":        true,
		"127.0.0.1:4317":        true,
		"http://localhost:4318": true,
		"[::1]:4317":            true,
		"::1":                   true,
		"collector:4317":        false,
		"https://otel.io":       false,
	} {
		assert.Equal(t, want, isLocalEndpoint(endpoint), endpoint)
	}
}

func TestFromObservability(t *testing.T) {
	cfg := FromObservability(config.ObservabilityConfig{
		EnableTelemetry: true,
		ServiceName:     "ergon-test",
		OTLPEndpoint:    "localhost:4318",
		OTLPProtocol:    "http/protobuf",
		OTLPInsecure:    true,
	}, "1.2.3")

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "ergon-test", cfg.ServiceName)
	assert.Equal(t, "1.2.3", cfg.ServiceVersion)
	assert.Equal(t, "localhost:4318", cfg.Endpoint)
	assert.Equal(t, "http/protobuf", cfg.Protocol)
	assert.NoError(t, cfg.Validate())
}

func TestNew_Disabled(t *testing.T) {
	tel, err := New(context.Background(), NewDefaultConfig())
	require.NoError(t, err)
	assert.False(t, tel.IsEnabled())
	assert.NotNil(t, tel.Tracer("x"))
	assert.NotNil(t, tel.Meter("x"))
	assert.NotNil(t, tel.LoggerProvider())
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Enabled = true
	cfg.SampleRate = -1

	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}

func TestNew_WithExporters(t *testing.T) {
	prevTP, prevMP := otel.GetTracerProvider(), otel.GetMeterProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetMeterProvider(prevMP)
	})

	cfg := NewDefaultConfig()
	cfg.Enabled = true
	cfg.ExportInterval = time.Hour

	spans := tracetest.NewInMemoryExporter()
	metricExp, err := newNopMetricExporter()
	require.NoError(t, err)

	tel, err := New(context.Background(), cfg, WithTraceExporter(spans), WithMetricExporter(metricExp))
	require.NoError(t, err)
	assert.True(t, tel.IsEnabled())
	assert.Empty(t, tel.Degraded())

	_, span := otel.Tracer("test").Start(context.Background(), "op")
	span.End()

	require.NoError(t, tel.ForceFlush(context.Background()))
	got := spans.GetSpans()
	require.Len(t, got, 1)
	assert.Equal(t, "op", got[0].Name)
	assert.Equal(t, "ergon", serviceName(got[0]))

	assert.NoError(t, tel.Shutdown(context.Background()))
}

func serviceName(s tracetest.SpanStub) string {
	for _, kv := range s.Resource.Attributes() {
		if kv.Key == "service.name" {
			return kv.Value.AsString()
		}
	}
	return ""
}

func TestTestTelemetry_StoreInstrumentation(t *testing.T) {
	tel := NewTestTelemetry(t)
	inst := storage.NewInstrumentation("projects", nil)

	run := func(err error) {
		_, end := inst.Start(context.Background(), "get")
		end(&err)
	}
	run(nil)
	run(fmt.Errorf("get demo: %w", storage.ErrNotFound))
	run(errors.New("disk on fire"))

	tel.AssertSpanExists(t, "projects.get")
	assert.Len(t, tel.Spans(), 3)
	assert.Equal(t, int64(3), tel.CounterValue(t, "ergon.store.operations_total"))
}

// nopMetricExporter discards metrics.
type nopMetricExporter struct{}

func newNopMetricExporter() (sdkmetric.Exporter, error) {
	return nopMetricExporter{}, nil
}

func (nopMetricExporter) Temporality(k sdkmetric.InstrumentKind) metricdata.Temporality {
	return sdkmetric.DefaultTemporalitySelector(k)
}

func (nopMetricExporter) Aggregation(k sdkmetric.InstrumentKind) sdkmetric.Aggregation {
	return sdkmetric.DefaultAggregationSelector(k)
}

func (nopMetricExporter) Export(context.Context, *metricdata.ResourceMetrics) error { return nil }
func (nopMetricExporter) ForceFlush(context.Context) error                          { return nil }
func (nopMetricExporter) Shutdown(context.Context) error                            { return nil }
