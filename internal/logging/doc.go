// Package logging provides structured logging with OpenTelemetry integration.
//
// Logger wraps Zap with:
//   - A Trace level below Debug
//   - Dual output to stdout and an OpenTelemetry log provider
//   - Context field injection (trace_id, project, request.id)
//   - Secret redaction at the encoder
//   - Sampling below error level
//
// Create a logger from the application config:
//
//	cfg, err := logging.NewConfig(appCfg.Logging.Level, appCfg.Logging.Format)
//	logger, err := logging.NewLogger(cfg, tel.LoggerProvider())
//	defer logger.Sync()
//
// Stores and servers take the underlying *zap.Logger:
//
//	projects, err := project.NewStore(layout, logger.Underlying())
//
// Output includes correlation fields from ctx:
//
//	ctx = logging.WithProject(ctx, "payments")
//	logger.Info(ctx, "context file written", zap.String("path", "specs/api.md"))
//
// Use TestLogger in tests:
//
//	tl := logging.NewTestLogger()
//	tl.AssertLogged(t, zapcore.InfoLevel, "context file written")
package logging
