// Package trace owns the process-wide OpenTelemetry tracer. Spans are
// exported to stdout (or a file) and every helper is a no-op until Init
// turns tracing on.
package trace

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const (
	ServiceName    = "tradegraph"
	ServiceVersion = "1.0.0"
)

// Config selects where spans go and how many are kept.
type Config struct {
	Enabled bool
	// File receives spans instead of stdout when set.
	File string
	// SampleRatio in (0,1]; anything else keeps every trace.
	SampleRatio float64
	Pretty      bool
}

var (
	mu             sync.Mutex
	tracer         trace.Tracer
	tracerProvider *sdktrace.TracerProvider
	output         io.Closer
	enabled        bool
)

// LoadConfigFromEnv reads LOG_TRACING_ENABLED (default true), TRACE_FILE,
// TRACE_SAMPLE_RATIO and TRACE_PRETTY.
func LoadConfigFromEnv() Config {
	ratio, err := strconv.ParseFloat(getEnv("TRACE_SAMPLE_RATIO", "1"), 64)
	if err != nil {
		ratio = 1
	}
	return Config{
		Enabled:     getEnv("LOG_TRACING_ENABLED", "true") == "true",
		File:        os.Getenv("TRACE_FILE"),
		SampleRatio: ratio,
		Pretty:      getEnv("TRACE_PRETTY", "true") == "true",
	}
}

// Init configures tracing from the environment.
func Init() error {
	return InitWithConfig(LoadConfigFromEnv())
}

// InitWith turns tracing on or off with the remaining settings taken from
// the environment.
func InitWith(on bool) error {
	cfg := LoadConfigFromEnv()
	cfg.Enabled = on
	return InitWithConfig(cfg)
}

// InitWithConfig installs the tracer provider. Once a provider is installed
// later calls are ignored until Shutdown.
func InitWithConfig(cfg Config) error {
	mu.Lock()
	defer mu.Unlock()

	if tracerProvider != nil {
		return nil
	}
	enabled = false
	if !cfg.Enabled {
		return nil
	}

	w := io.Writer(os.Stdout)
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open trace file: %w", err)
		}
		w, output = f, f
	}

	opts := []stdouttrace.Option{stdouttrace.WithWriter(w)}
	if cfg.Pretty {
		opts = append(opts, stdouttrace.WithPrettyPrint())
	}
	exporter, err := stdouttrace.New(opts...)
	if err != nil {
		closeOutput()
		return err
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			attribute.String("service.name", ServiceName),
			attribute.String("service.version", ServiceVersion),
		),
	)
	if err != nil {
		closeOutput()
		return err
	}

	sampler := sdktrace.AlwaysSample()
	if cfg.SampleRatio > 0 && cfg.SampleRatio < 1 {
		sampler = sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))
	}

	tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	otel.SetTracerProvider(tracerProvider)
	tracer = otel.Tracer(ServiceName)
	enabled = true
	return nil
}

// Shutdown flushes pending spans and disables tracing.
func Shutdown(ctx context.Context) error {
	mu.Lock()
	defer mu.Unlock()

	if tracerProvider == nil {
		return nil
	}
	err := tracerProvider.Shutdown(ctx)
	tracerProvider, tracer, enabled = nil, nil, false
	closeOutput()
	return err
}

func closeOutput() {
	if output != nil {
		_ = output.Close()
		output = nil
	}
}

// StartSpan starts a span, or returns the current one when tracing is off.
func StartSpan(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	mu.Lock()
	t := tracer
	mu.Unlock()
	if t == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return t.Start(ctx, spanName, opts...)
}

// StartRunSpan starts the root span of an analysis run.
func StartRunSpan(ctx context.Context, runID string, symbols []string) (context.Context, trace.Span) {
	return StartSpan(ctx, "analysis.run", trace.WithAttributes(
		attribute.String("run.id", runID),
		attribute.StringSlice("run.symbols", symbols),
	))
}

func Enabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled
}

func GetTraceFields(ctx context.Context) (traceID, spanID string, ok bool) {
	if !Enabled() {
		return "", "", false
	}
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return "", "", false
	}
	return sc.TraceID().String(), sc.SpanID().String(), true
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
