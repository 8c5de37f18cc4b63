package mcp

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/Buooy/ergon-pm/internal/source"
	"github.com/Buooy/ergon-pm/internal/storage"
)

const instrumentationName = "github.com/Buooy/ergon-pm/internal/mcp"

// toolBuckets spans in-memory reads up to slow GitHub imports.
var toolBuckets = []float64{0.001, 0.005, 0.025, 0.1, 0.5, 1, 5, 30}

// Metrics records tool calls. Instruments that fail to register are left
// nil and skipped.
type Metrics struct {
	calls    metric.Int64Counter
	failures metric.Int64Counter
	inFlight metric.Int64UpDownCounter
	latency  metric.Float64Histogram
}

// NewMetrics registers the tool instruments on the global meter provider.
func NewMetrics(logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	meter := otel.Meter(instrumentationName)
	warn := func(name string, err error) {
		if err != nil {
			logger.Warn("instrument unavailable", zap.String("instrument", name), zap.Error(err))
		}
	}

	m := &Metrics{}
	var err error
	m.calls, err = meter.Int64Counter("ergon.mcp.tool.invocations_total",
		metric.WithDescription("MCP tool calls"),
		metric.WithUnit("{call}"))
	warn("invocations_total", err)

	m.failures, err = meter.Int64Counter("ergon.mcp.tool.errors_total",
		metric.WithDescription("MCP tool calls that returned an error"),
		metric.WithUnit("{call}"))
	warn("errors_total", err)

	m.inFlight, err = meter.Int64UpDownCounter("ergon.mcp.tool.active_requests",
		metric.WithDescription("MCP tool calls in progress"),
		metric.WithUnit("{call}"))
	warn("active_requests", err)

	m.latency, err = meter.Float64Histogram("ergon.mcp.tool.duration_seconds",
		metric.WithDescription("MCP tool call latency"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(toolBuckets...))
	warn("duration_seconds", err)

	return m
}

// Track marks a call to tool as started. The returned func finishes it.
func (m *Metrics) Track(ctx context.Context, tool string) func(err error) {
	start := time.Now()
	toolAttr := metric.WithAttributes(attribute.String("tool", tool))
	if m.inFlight != nil {
		m.inFlight.Add(ctx, 1, toolAttr)
	}

	return func(err error) {
		if m.inFlight != nil {
			m.inFlight.Add(ctx, -1, toolAttr)
		}
		if m.calls != nil {
			m.calls.Add(ctx, 1, toolAttr)
		}
		if m.latency != nil {
			m.latency.Record(ctx, time.Since(start).Seconds(), toolAttr)
		}
		if err != nil && m.failures != nil {
			m.failures.Add(ctx, 1, metric.WithAttributes(
				attribute.String("tool", tool),
				attribute.String("reason", categorizeError(err)),
			))
		}
	}
}

// categorizeError maps err to a low-cardinality reason label.
func categorizeError(err error) string {
	if errors.Is(err, source.ErrUnsupported) {
		return "unsupported"
	}
	return storage.Kind(err)
}
