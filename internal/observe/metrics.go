// Package observe provides application-wide observability primitives for
// Voxgate: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still
// be scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Voxgate metrics.
const meterName = "github.com/asrlabs/voxgate"

// Metrics holds all OpenTelemetry metric instruments for the gateway.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Histograms ---

	// RecognitionDuration tracks per-segment transcription latency. Use with
	// attribute: attribute.String("session_id", ...).
	RecognitionDuration metric.Float64Histogram

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes: attribute.String("method", ...), attribute.String("path", ...).
	HTTPRequestDuration metric.Float64Histogram

	// --- Counters ---

	// ChunksIngested counts audio chunks accepted onto ingest queues.
	ChunksIngested metric.Int64Counter

	// BytesIngested counts audio payload bytes accepted onto ingest queues.
	BytesIngested metric.Int64Counter

	// SegmentsDetected counts speech segments closed by the segmentation
	// engine.
	SegmentsDetected metric.Int64Counter

	// ResultsDelivered counts recognition results handed to result streams.
	ResultsDelivered metric.Int64Counter

	// RecognitionErrors counts segments the backend failed to transcribe.
	RecognitionErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live sessions in the registry.
	ActiveSessions metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for recognition latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.RecognitionDuration, err = m.Float64Histogram("voxgate.recognition.duration",
		metric.WithDescription("Latency of per-segment speech recognition."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("voxgate.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ChunksIngested, err = m.Int64Counter("voxgate.ingest.chunks",
		metric.WithDescription("Total audio chunks accepted onto ingest queues."),
	); err != nil {
		return nil, err
	}
	if met.BytesIngested, err = m.Int64Counter("voxgate.ingest.bytes",
		metric.WithDescription("Total audio payload bytes accepted onto ingest queues."),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if met.SegmentsDetected, err = m.Int64Counter("voxgate.segments.detected",
		metric.WithDescription("Total speech segments closed by the segmentation engine."),
	); err != nil {
		return nil, err
	}
	if met.ResultsDelivered, err = m.Int64Counter("voxgate.results.delivered",
		metric.WithDescription("Total recognition results handed to result streams."),
	); err != nil {
		return nil, err
	}
	if met.RecognitionErrors, err = m.Int64Counter("voxgate.recognition.errors",
		metric.WithDescription("Total segments the recognition backend failed to transcribe."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("voxgate.sessions.active",
		metric.WithDescription("Number of live sessions in the registry."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordRecognition is a convenience method that records one transcription
// attempt: its latency on success, or an error counter increment otherwise.
func (m *Metrics) RecordRecognition(ctx context.Context, sessionID string, d time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("session_id", sessionID))
	if err != nil {
		m.RecognitionErrors.Add(ctx, 1, attrs)
		return
	}
	m.RecognitionDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordIngest is a convenience method that records one accepted audio chunk.
func (m *Metrics) RecordIngest(ctx context.Context, sessionID string, bytes int) {
	attrs := metric.WithAttributes(attribute.String("session_id", sessionID))
	m.ChunksIngested.Add(ctx, 1, attrs)
	m.BytesIngested.Add(ctx, int64(bytes), attrs)
}
