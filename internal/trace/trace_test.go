package trace

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestDisabledIsNoop(t *testing.T) {
	if err := InitWithConfig(Config{Enabled: false}); err != nil {
		t.Fatalf("init: %v", err)
	}
	ctx := context.Background()
	got, span := StartSpan(ctx, "noop")
	defer span.End()

	if got != ctx {
		t.Errorf("StartSpan changed the context while disabled")
	}
	if _, _, ok := GetTraceFields(got); ok {
		t.Errorf("GetTraceFields reported ids while disabled")
	}
}

func TestSpansToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spans.json")
	if err := InitWithConfig(Config{Enabled: true, File: path}); err != nil {
		t.Fatalf("init: %v", err)
	}
	if !Enabled() {
		t.Fatal("expected tracing enabled")
	}
	// A second init keeps the installed provider.
	if err := InitWith(false); err != nil || !Enabled() {
		t.Fatalf("second init replaced the provider: enabled=%v err=%v", Enabled(), err)
	}

	ctx, span := StartRunSpan(context.Background(), "run-1", []string{"AAPL"})
	traceID, spanID, ok := GetTraceFields(ctx)
	if !ok || traceID == "" || spanID == "" {
		t.Errorf("missing trace fields: %q %q %v", traceID, spanID, ok)
	}
	span.End()

	if err := Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if Enabled() {
		t.Error("tracing still enabled after Shutdown")
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read spans: %v", err)
	}
	if len(b) == 0 {
		t.Error("no spans written")
	}
}
