package logger

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLogLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLogLevel("WARN"))
	assert.Equal(t, slog.LevelError, parseLogLevel("Error"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("verbose"))
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("LOG_DETAILED", "true")
	t.Setenv("LOG_TRACING_ENABLED", "false")

	cfg := LoadConfigFromEnv()
	assert.Equal(t, "DEBUG", cfg.Level)
	assert.Equal(t, "text", cfg.Format)
	assert.True(t, cfg.DetailedLogging)
	assert.False(t, cfg.TracingEnabled)
}

func TestLoggingWithoutTracing(t *testing.T) {
	require.NoError(t, InitWithConfig(LogConfig{Level: "DEBUG", Format: "text", DetailedLogging: true}))
	t.Cleanup(func() { detailedLogging = false })

	ctx := context.Background()
	assert.True(t, IsDebugEnabled())
	assert.False(t, IsTracingEnabled())

	// None of these may panic without an active span.
	Info(ctx, "info", "k", "v")
	Debug(ctx, "debug")
	ErrorWithErr(ctx, "failed", errors.New("boom"))
	InfoSkip(ctx, 1, "skip")
	Recommendation(ctx, "AAPL", "BUY", 0.7, "test")
	Risk(ctx, "AAPL", "price_support")
	Stage(ctx, "collect_news", 16)

	op := StartOperation(ctx, "op", "symbol", "AAPL")
	op.End("count", 1)
	StartOperation(ctx, "op2").EndWithError(errors.New("late"))
}

func TestToAttributesSkipsOddAndUnknown(t *testing.T) {
	attrs := toAttributes([]any{"a", 1, "b", struct{}{}, "c", 2.5, "dangling"})
	require.Len(t, attrs, 2)
	assert.Equal(t, "a", string(attrs[0].Key))
	assert.Equal(t, "c", string(attrs[1].Key))
}
