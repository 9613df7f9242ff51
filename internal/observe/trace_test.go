package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTracing(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()

	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	origTP := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(origTP) })

	return exp
}

func TestCorrelationID_NoSpan(t *testing.T) {
	if got := CorrelationID(context.Background()); got != "" {
		t.Errorf("CorrelationID without a span = %q, want empty", got)
	}
}

func TestCorrelationID_WithSpan(t *testing.T) {
	setupTracing(t)

	ctx, span := StartSpan(context.Background(), "test-op")
	defer span.End()

	cid := CorrelationID(ctx)
	if cid == "" {
		t.Fatal("CorrelationID within a span is empty")
	}
	if len(cid) != 32 {
		t.Errorf("CorrelationID length = %d, want 32 hex chars", len(cid))
	}
}

func TestLogger_WithoutSpanReturnsDefault(t *testing.T) {
	if Logger(context.Background()) == nil {
		t.Fatal("Logger returned nil")
	}
}

func TestStartSpan_RecordsSpan(t *testing.T) {
	exp := setupTracing(t)

	_, span := StartSpan(context.Background(), "segment-recognize")
	span.End()

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
	if spans[0].Name != "segment-recognize" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "segment-recognize")
	}
}
