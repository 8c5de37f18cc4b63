package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Buooy/ergon-pm/internal/config"
)

func TestNewConfig(t *testing.T) {
	cfg, err := NewConfig("debug", "console")
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, cfg.Level)
	assert.Equal(t, "console", cfg.Format)

	cfg, err = NewConfig("trace", "")
	require.NoError(t, err)
	assert.Equal(t, TraceLevel, cfg.Level)
	assert.Equal(t, "json", cfg.Format)

	_, err = NewConfig("loud", "json")
	assert.Error(t, err)

	_, err = NewConfig("info", "xml")
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no outputs", func(c *Config) { c.Output = OutputConfig{} }},
		{"zero tick", func(c *Config) { c.Sampling.Tick = 0 }},
		{"bad pattern", func(c *Config) { c.Redaction.Patterns = []string{"("} }},
		{"empty field key", func(c *Config) { c.Fields = map[string]string{"": "x"} }},
		{"empty field value", func(c *Config) { c.Fields = map[string]string{"k": ""} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(NewDefaultConfig(), nil)
	require.NoError(t, err)
	require.NotNil(t, logger.Underlying())
	assert.True(t, logger.Enabled(zapcore.InfoLevel))
	assert.False(t, logger.Enabled(zapcore.DebugLevel))

	_, err = NewLogger(&Config{Format: "json"}, nil)
	assert.Error(t, err, "no outputs enabled")

	cfg := NewDefaultConfig()
	cfg.Output = OutputConfig{OTEL: true}
	_, err = NewLogger(cfg, nil)
	assert.Error(t, err, "otel output without a provider")
}

func TestNewLogger_Writer(t *testing.T) {
	var buf bytes.Buffer
	cfg := NewDefaultConfig()
	cfg.Output.Writer = &buf

	logger, err := NewLogger(cfg, nil)
	require.NoError(t, err)
	logger.Info(context.Background(), "to the writer")

	assert.Contains(t, buf.String(), `"msg":"to the writer"`)
	assert.Contains(t, buf.String(), `"service":"ergon"`)
}

func TestLogger_ContextFields(t *testing.T) {
	tl := NewTestLogger()

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	ctx = WithProject(ctx, "payments")
	ctx = WithRequestID(ctx, "req-1")
	tl.Info(ctx, "context file written", zap.String("path", "specs/api.md"))

	tl.AssertLogged(t, zapcore.InfoLevel, "context file written")
	tl.AssertField(t, "context file written", "project", "payments")
	tl.AssertField(t, "context file written", "request.id", "req-1")
	tl.AssertField(t, "context file written", "path", "specs/api.md")
	tl.AssertField(t, "context file written", "trace_id", span.SpanContext().TraceID().String())
}

func TestWithProject_DropsInvalid(t *testing.T) {
	ctx := WithProject(context.Background(), "../etc")
	assert.Empty(t, ProjectFromContext(ctx))

	ctx = WithRequestID(context.Background(), "")
	assert.Empty(t, RequestIDFromContext(ctx))
}

func TestLogger_Levels(t *testing.T) {
	tl := NewTestLogger()
	ctx := context.Background()

	tl.Trace(ctx, "t")
	tl.Debug(ctx, "d")
	tl.Warn(ctx, "w")
	tl.Error(ctx, "e")

	levels := make([]zapcore.Level, 0, 4)
	for _, e := range tl.All() {
		levels = append(levels, e.Level)
	}
	assert.Equal(t, []zapcore.Level{TraceLevel, zapcore.DebugLevel, zapcore.WarnLevel, zapcore.ErrorLevel}, levels)
}

func TestFromContext(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()).Underlying())

	tl := NewTestLogger()
	ctx := WithLogger(context.Background(), tl.Logger)
	assert.Same(t, tl.Logger, FromContext(ctx))
}

func TestSampling_NeverDropsErrors(t *testing.T) {
	var buf bytes.Buffer
	base := zapcore.NewCore(newEncoder("json"), zapcore.AddSync(&buf), TraceLevel)
	core := zapcore.NewTee(
		&levelFilterCore{Core: base, min: zapcore.ErrorLevel, max: zapcore.FatalLevel},
		zapcore.NewSamplerWithOptions(&levelFilterCore{Core: base, min: TraceLevel, max: zapcore.WarnLevel}, time.Minute, 2, 0),
	)
	zl := zap.New(core)

	for i := 0; i < 5; i++ {
		zl.Info("same")
		zl.Error("boom")
	}

	var infos, errs int
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(line, &entry))
		switch entry["msg"] {
		case "same":
			infos++
		case "boom":
			errs++
		}
	}
	assert.Equal(t, 2, infos)
	assert.Equal(t, 5, errs)
}

func TestRedactingEncoder(t *testing.T) {
	enc, err := NewRedactingEncoder(newEncoder("json"), NewDefaultConfig().Redaction)
	require.NoError(t, err)

	var buf bytes.Buffer
	zl := zap.New(zapcore.NewCore(enc, zapcore.AddSync(&buf), zapcore.InfoLevel))
	zl.Info("sync",
		zap.String("token", "abc"),
		zap.String("header", "Bearer abc.def"),
		zap.String("note", "ghp_abcdefghijklmnopqrstuvwxyz"),
		zap.String("repo", "acme/handbook"),
		zap.Any("credential", map[string]string{"k": "v"}),
		Secret("github", config.Secret("s3cr3t")),
	)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "[REDACTED]", entry["token"])
	assert.Equal(t, "[REDACTED:pattern]", entry["header"])
	assert.Equal(t, "[REDACTED:pattern]", entry["note"])
	assert.Equal(t, "acme/handbook", entry["repo"])
	assert.Equal(t, "[REDACTED]", entry["credential"])
	assert.Equal(t, "[REDACTED:6]", entry["github"])
}

func TestRedactingEncoder_Disabled(t *testing.T) {
	enc, err := NewRedactingEncoder(newEncoder("json"), RedactionConfig{})
	require.NoError(t, err)

	var buf bytes.Buffer
	zap.New(zapcore.NewCore(enc, zapcore.AddSync(&buf), zapcore.InfoLevel)).Info("x", zap.String("token", "abc"))
	assert.Contains(t, buf.String(), `"token":"abc"`)
}
