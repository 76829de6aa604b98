package observe

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

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

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

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

// counterValue returns the int64 sum for the data point carrying attr.
func counterValue(t *testing.T, rm metricdata.ResourceMetrics, name string, attr attribute.KeyValue) int64 {
	t.Helper()
	m := findMetric(rm, name)
	if m == nil {
		t.Fatalf("metric %s not found", name)
	}
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %s is %T, want Sum[int64]", name, m.Data)
	}
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attr.Key); ok && v == attr.Value {
			return dp.Value
		}
	}
	return 0
}

func histogramCount(t *testing.T, rm metricdata.ResourceMetrics, name string) uint64 {
	t.Helper()
	m := findMetric(rm, name)
	if m == nil {
		t.Fatalf("metric %s not found", name)
	}
	h, ok := m.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("metric %s is %T, want Histogram[float64]", name, m.Data)
	}
	var n uint64
	for _, dp := range h.DataPoints {
		n += dp.Count
	}
	return n
}

func TestRecordTrigger(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()
	m.RecordTrigger(ctx, "silence")
	m.RecordTrigger(ctx, "silence")
	m.RecordTrigger(ctx, "forced")

	rm := collect(t, reader)
	if got := counterValue(t, rm, "diarizer.phrase.triggers", attribute.String("reason", "silence")); got != 2 {
		t.Errorf("silence triggers = %d, want 2", got)
	}
	if got := counterValue(t, rm, "diarizer.phrase.triggers", attribute.String("reason", "forced")); got != 1 {
		t.Errorf("forced triggers = %d, want 1", got)
	}
}

func TestRecordAdapter(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()
	m.RecordAdapter(ctx, AdapterASR, 300*time.Millisecond, false)
	m.RecordAdapter(ctx, AdapterASR, time.Second, true)
	m.RecordAdapter(ctx, AdapterEmbedding, 50*time.Millisecond, true)

	rm := collect(t, reader)
	if got := histogramCount(t, rm, "diarizer.asr.duration"); got != 2 {
		t.Errorf("asr observations = %d, want 2", got)
	}
	if got := histogramCount(t, rm, "diarizer.embedding.duration"); got != 1 {
		t.Errorf("embedding observations = %d, want 1", got)
	}
	if got := counterValue(t, rm, "diarizer.adapter.errors", attribute.String("adapter", AdapterASR)); got != 1 {
		t.Errorf("asr errors = %d, want 1", got)
	}
	if got := counterValue(t, rm, "diarizer.adapter.errors", attribute.String("adapter", AdapterEmbedding)); got != 1 {
		t.Errorf("embedding errors = %d, want 1", got)
	}
}

func TestRecordBatch(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()
	m.RecordBatch(ctx, "stream", 12*time.Second, 7)
	m.RecordBatch(ctx, "upload", 3*time.Second, 2)
	m.RecordFiltered(ctx)

	rm := collect(t, reader)
	if got := counterValue(t, rm, "diarizer.batch.segments", attribute.String("source", "stream")); got != 7 {
		t.Errorf("stream segments = %d, want 7", got)
	}
	if got := histogramCount(t, rm, "diarizer.batch.duration"); got != 2 {
		t.Errorf("batch observations = %d, want 2", got)
	}
	if findMetric(rm, "diarizer.phrase.filtered") == nil {
		t.Error("filtered counter not exported")
	}
}
