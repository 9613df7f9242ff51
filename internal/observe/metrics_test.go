package observe

import (
	"context"
	"errors"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// collect gathers all metric data from the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestRecordIngest(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordIngest(ctx, "sess1", 1024)
	m.RecordIngest(ctx, "sess1", 2048)

	rm := collect(t, reader)

	chunks := findMetric(rm, "voxgate.ingest.chunks")
	if chunks == nil {
		t.Fatal("voxgate.ingest.chunks not found")
	}
	sum, ok := chunks.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("chunks data type = %T, want Sum[int64]", chunks.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	if total != 2 {
		t.Errorf("chunks total = %d, want 2", total)
	}

	bytesM := findMetric(rm, "voxgate.ingest.bytes")
	if bytesM == nil {
		t.Fatal("voxgate.ingest.bytes not found")
	}
	bsum := bytesM.Data.(metricdata.Sum[int64])
	total = 0
	for _, dp := range bsum.DataPoints {
		total += dp.Value
	}
	if total != 3072 {
		t.Errorf("bytes total = %d, want 3072", total)
	}
}

func TestRecordRecognition_Success(t *testing.T) {
	m, reader := newTestMetrics(t)

	m.RecordRecognition(context.Background(), "sess1", 120*time.Millisecond, nil)

	rm := collect(t, reader)
	dur := findMetric(rm, "voxgate.recognition.duration")
	if dur == nil {
		t.Fatal("voxgate.recognition.duration not found")
	}
	hist, ok := dur.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("duration data type = %T, want Histogram[float64]", dur.Data)
	}
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	if count != 1 {
		t.Errorf("duration observations = %d, want 1", count)
	}
	if errs := findMetric(rm, "voxgate.recognition.errors"); errs != nil {
		sum := errs.Data.(metricdata.Sum[int64])
		for _, dp := range sum.DataPoints {
			if dp.Value != 0 {
				t.Errorf("error count = %d, want 0", dp.Value)
			}
		}
	}
}

func TestRecordRecognition_Error(t *testing.T) {
	m, reader := newTestMetrics(t)

	m.RecordRecognition(context.Background(), "sess1", 0, errors.New("backend down"))

	rm := collect(t, reader)
	errsM := findMetric(rm, "voxgate.recognition.errors")
	if errsM == nil {
		t.Fatal("voxgate.recognition.errors not found")
	}
	sum := errsM.Data.(metricdata.Sum[int64])
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	if total != 1 {
		t.Errorf("error count = %d, want 1", total)
	}
}

func TestActiveSessionsUpDown(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.ActiveSessions.Add(ctx, 1)
	m.ActiveSessions.Add(ctx, 1)
	m.ActiveSessions.Add(ctx, -1)

	rm := collect(t, reader)
	active := findMetric(rm, "voxgate.sessions.active")
	if active == nil {
		t.Fatal("voxgate.sessions.active not found")
	}
	sum := active.Data.(metricdata.Sum[int64])
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	if total != 1 {
		t.Errorf("active sessions = %d, want 1", total)
	}
}

func TestDefaultMetrics_ReturnsSameInstance(t *testing.T) {
	a := DefaultMetrics()
	b := DefaultMetrics()
	if a != b {
		t.Error("DefaultMetrics returned different instances")
	}
}
