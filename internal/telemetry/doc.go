// Package telemetry provides OpenTelemetry instrumentation for ergon.
//
// When enabled, traces and metrics are exported over OTLP (gRPC or
// HTTP/protobuf) and the providers are installed as the otel globals, so
// the storage layer's spans and counters flow out without further wiring.
// When disabled, the globals stay no-op.
//
//	tel, err := telemetry.New(ctx, telemetry.FromObservability(cfg.Observability, version))
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(ctx)
//
// Tests use NewTestTelemetry, which records spans and metrics in memory.
package telemetry
