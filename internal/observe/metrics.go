// Package observe wires OpenTelemetry into wavscribe: the instruments the
// runner, job manager and API record to, the SDK setup exporting them to
// Prometheus, spans with trace-aware loggers, and the HTTP middleware.
package observe

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const scope = "github.com/MrWong99/wavscribe"

// File outcomes recorded by [Metrics.RecordFile].
const (
	OutcomeOK             = "ok"
	OutcomeDecodeError    = "decode_error"
	OutcomeInferenceError = "inference_error"
	OutcomeAborted        = "aborted"
)

// Metrics holds the instruments. Durations are in seconds.
type Metrics struct {
	RunDuration       metric.Float64Histogram // attr status
	DecodeDuration    metric.Float64Histogram
	InferenceDuration metric.Float64Histogram

	FilesProcessed metric.Int64Counter // attr outcome
	Segments       metric.Int64Counter
	JobsFinished   metric.Int64Counter // attr status

	ActiveRuns metric.Int64UpDownCounter
	QueuedJobs metric.Int64UpDownCounter

	// HTTPRequestDuration carries method, route and status attributes.
	HTTPRequestDuration metric.Float64Histogram
}

// Offline runs span sub-second clips to recordings of several minutes.
var runBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600}

// NewMetrics creates every instrument on a meter from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	b := builder{meter: mp.Meter(scope)}
	m := &Metrics{
		RunDuration:       b.seconds("wavscribe.run.duration", "Wall time of complete transcription runs.", runBuckets),
		DecodeDuration:    b.seconds("wavscribe.decode.duration", "WAV decoding time per input file.", runBuckets),
		InferenceDuration: b.seconds("wavscribe.inference.duration", "Engine inference time per input file.", runBuckets),

		FilesProcessed: b.counter("wavscribe.files", "Input files processed by outcome."),
		Segments:       b.counter("wavscribe.segments", "Text segments appended to run results."),
		JobsFinished:   b.counter("wavscribe.jobs.finished", "Asynchronous jobs by terminal status."),

		ActiveRuns: b.gauge("wavscribe.active_runs", "Transcription runs currently executing."),
		QueuedJobs: b.gauge("wavscribe.queued_jobs", "Jobs waiting for a run slot."),

		HTTPRequestDuration: b.seconds("wavscribe.http.request.duration", "HTTP request latency by method, route and status.", nil),
	}
	if b.err != nil {
		return nil, b.err
	}
	return m, nil
}

// builder collects instrument creation errors so NewMetrics reads as a table.
type builder struct {
	meter metric.Meter
	err   error
}

func (b *builder) seconds(name, desc string, buckets []float64) metric.Float64Histogram {
	opts := []metric.Float64HistogramOption{metric.WithDescription(desc), metric.WithUnit("s")}
	if buckets != nil {
		opts = append(opts, metric.WithExplicitBucketBoundaries(buckets...))
	}
	h, err := b.meter.Float64Histogram(name, opts...)
	b.err = errors.Join(b.err, err)
	return h
}

func (b *builder) counter(name, desc string) metric.Int64Counter {
	c, err := b.meter.Int64Counter(name, metric.WithDescription(desc))
	b.err = errors.Join(b.err, err)
	return c
}

func (b *builder) gauge(name, desc string) metric.Int64UpDownCounter {
	g, err := b.meter.Int64UpDownCounter(name, metric.WithDescription(desc))
	b.err = errors.Join(b.err, err)
	return g
}

var defaultMetrics = sync.OnceValue(func() *Metrics {
	m, err := NewMetrics(otel.GetMeterProvider())
	if err != nil {
		panic("observe: default metrics: " + err.Error())
	}
	return m
})

// DefaultMetrics returns instruments on the global meter provider. Components
// fall back to it when no [Metrics] is configured.
func DefaultMetrics() *Metrics { return defaultMetrics() }

// RecordFile counts one processed input file.
func (m *Metrics) RecordFile(ctx context.Context, outcome string) {
	m.FilesProcessed.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordRun records a finished run.
func (m *Metrics) RecordRun(ctx context.Context, status string, d time.Duration) {
	m.RunDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("status", status)))
}

// RecordJob counts a job reaching a terminal status.
func (m *Metrics) RecordJob(ctx context.Context, status string) {
	m.JobsFinished.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}
