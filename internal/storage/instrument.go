package storage

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/Buooy/ergon-pm/internal/storage"

// Instrumentation records a span and an operation counter for every store
// call. It uses the global OpenTelemetry providers, which are no-ops until
// telemetry is initialised.
type Instrumentation struct {
	store  string
	tracer trace.Tracer
	ops    metric.Int64Counter
}

// NewInstrumentation returns span and counter helpers for the named store.
func NewInstrumentation(store string, logger *zap.Logger) *Instrumentation {
	if logger == nil {
		logger = zap.NewNop()
	}

	inst := &Instrumentation{
		store:  store,
		tracer: otel.Tracer(instrumentationName),
	}

	ops, err := otel.Meter(instrumentationName).Int64Counter(
		"ergon.store.operations_total",
		metric.WithDescription("Total number of store operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		logger.Warn("failed to create store operation counter", zap.Error(err))
	} else {
		inst.ops = ops
	}
	return inst
}

// Start opens a span named "<store>.<op>". The returned func must be
// deferred with a pointer to the operation's named error result:
//
//	ctx, end := s.inst.Start(ctx, "create")
//	defer end(&err)
func (i *Instrumentation) Start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(*error)) {
	ctx, span := i.tracer.Start(ctx, i.store+"."+op, trace.WithAttributes(attrs...))

	return ctx, func(errp *error) {
		var err error
		if errp != nil {
			err = *errp
		}
		outcome := Kind(err)

		if err != nil && !errors.Is(err, ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(attribute.String("outcome", outcome))
		span.End()

		if i.ops != nil {
			i.ops.Add(ctx, 1, metric.WithAttributes(
				attribute.String("store", i.store),
				attribute.String("op", op),
				attribute.String("outcome", outcome),
			))
		}
	}
}
