// Package observe provides the service's OpenTelemetry metrics and the
// Prometheus bridge that exposes them on /metrics.
//
// Pipeline code records through a *Metrics value. Tests should build one
// with NewMetrics over a ManualReader-backed provider; DefaultMetrics uses
// the global provider installed by InitProvider.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/codebuildervaibhav/meeting-diarizer"

// Metrics holds all metric instruments. The underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// PhraseTriggers counts live phrase triggers. Attribute "reason" is
	// silence, forced or stop.
	PhraseTriggers metric.Int64Counter

	// PhrasesFiltered counts live recognitions dropped as filler.
	PhrasesFiltered metric.Int64Counter

	// ASRDuration and EmbeddingDuration track adapter latency.
	ASRDuration       metric.Float64Histogram
	EmbeddingDuration metric.Float64Histogram

	// AdapterErrors counts adapter failures. Attribute "adapter" is asr or
	// embedding.
	AdapterErrors metric.Int64Counter

	// BatchDuration tracks the wall time of a whole batch job.
	BatchDuration metric.Float64Histogram

	// BatchSegments counts persisted batch segments.
	BatchSegments metric.Int64Counter

	// ActiveSessions tracks live audio sockets.
	ActiveSessions metric.Int64UpDownCounter

	// HTTPRequestDuration tracks request latency by method and route.
	HTTPRequestDuration metric.Float64Histogram
}

var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300,
}

// NewMetrics creates every instrument on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.PhraseTriggers, err = m.Int64Counter("diarizer.phrase.triggers",
		metric.WithDescription("Live phrase triggers by reason."),
	); err != nil {
		return nil, err
	}
	if met.PhrasesFiltered, err = m.Int64Counter("diarizer.phrase.filtered",
		metric.WithDescription("Live recognitions discarded as filler."),
	); err != nil {
		return nil, err
	}
	if met.ASRDuration, err = m.Float64Histogram("diarizer.asr.duration",
		metric.WithDescription("Latency of speech recognition requests."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.EmbeddingDuration, err = m.Float64Histogram("diarizer.embedding.duration",
		metric.WithDescription("Latency of speaker embedding requests."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.AdapterErrors, err = m.Int64Counter("diarizer.adapter.errors",
		metric.WithDescription("Adapter failures by adapter."),
	); err != nil {
		return nil, err
	}
	if met.BatchDuration, err = m.Float64Histogram("diarizer.batch.duration",
		metric.WithDescription("Wall time of batch diarization jobs."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.BatchSegments, err = m.Int64Counter("diarizer.batch.segments",
		metric.WithDescription("Transcript segments produced by batch jobs."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("diarizer.active_sessions",
		metric.WithDescription("Number of live audio sessions."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("diarizer.http.request.duration",
		metric.WithDescription("HTTP request latency by method and route."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level instance built on the global
// meter provider. Panics if instrument creation fails.
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

// RecordTrigger counts one phrase trigger.
func (m *Metrics) RecordTrigger(ctx context.Context, reason string) {
	m.PhraseTriggers.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordFiltered counts one discarded filler recognition.
func (m *Metrics) RecordFiltered(ctx context.Context) {
	m.PhrasesFiltered.Add(ctx, 1)
}

// RecordAdapter records the latency of one adapter call and counts it as an
// error when failed is true.
func (m *Metrics) RecordAdapter(ctx context.Context, adapter string, d time.Duration, failed bool) {
	attrs := metric.WithAttributes(attribute.String("adapter", adapter))
	switch adapter {
	case AdapterASR:
		m.ASRDuration.Record(ctx, d.Seconds())
	case AdapterEmbedding:
		m.EmbeddingDuration.Record(ctx, d.Seconds())
	}
	if failed {
		m.AdapterErrors.Add(ctx, 1, attrs)
	}
}

// RecordBatch records one finished batch job.
func (m *Metrics) RecordBatch(ctx context.Context, source string, d time.Duration, segments int) {
	attrs := metric.WithAttributes(attribute.String("source", source))
	m.BatchDuration.Record(ctx, d.Seconds(), attrs)
	m.BatchSegments.Add(ctx, int64(segments), attrs)
}

// Adapter names used with RecordAdapter.
const (
	AdapterASR       = "asr"
	AdapterEmbedding = "embedding"
)
