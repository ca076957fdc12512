package observe

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// snapshot records through fn on fresh instruments and returns what a
// reader collected, keyed by instrument name.
func snapshot(t *testing.T, fn func(m *Metrics)) map[string]metricdata.Aggregation {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	fn(m)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	out := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		if sm.Scope.Name != scope {
			t.Errorf("scope = %q", sm.Scope.Name)
		}
		for _, met := range sm.Metrics {
			out[met.Name] = met.Data
		}
	}
	return out
}

// byAttr sums int64 data points per value of key.
func byAttr(t *testing.T, agg metricdata.Aggregation, key string) map[string]int64 {
	t.Helper()
	sum, ok := agg.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("aggregation %T is not an int64 sum", agg)
	}
	out := map[string]int64{}
	for _, dp := range sum.DataPoints {
		v, _ := dp.Attributes.Value(attribute.Key(key))
		out[v.AsString()] += dp.Value
	}
	return out
}

func TestRecordHelpers(t *testing.T) {
	got := snapshot(t, func(m *Metrics) {
		ctx := context.Background()
		m.RecordFile(ctx, OutcomeOK)
		m.RecordFile(ctx, OutcomeOK)
		m.RecordFile(ctx, OutcomeDecodeError)
		m.RecordJob(ctx, "succeeded")
		m.RecordJob(ctx, "cancelled")
		m.RecordJob(ctx, "succeeded")
		m.RecordRun(ctx, "done", 3*time.Second)
		m.RecordRun(ctx, "failed", 500*time.Millisecond)
	})

	files := byAttr(t, got["wavscribe.files"], "outcome")
	if files[OutcomeOK] != 2 || files[OutcomeDecodeError] != 1 {
		t.Errorf("files = %v", files)
	}
	if jobs := byAttr(t, got["wavscribe.jobs.finished"], "status"); jobs["succeeded"] != 2 || jobs["cancelled"] != 1 {
		t.Errorf("jobs = %v", jobs)
	}

	runs, ok := got["wavscribe.run.duration"].(metricdata.Histogram[float64])
	if !ok || len(runs.DataPoints) != 2 {
		t.Fatalf("run duration = %#v", got["wavscribe.run.duration"])
	}
	for _, dp := range runs.DataPoints {
		status, _ := dp.Attributes.Value("status")
		if status.AsString() == "done" && dp.Sum != 3 {
			t.Errorf("done sum = %v, want 3", dp.Sum)
		}
	}
}

func TestInstruments(t *testing.T) {
	got := snapshot(t, func(m *Metrics) {
		ctx := context.Background()
		m.DecodeDuration.Record(ctx, 0.2)
		m.InferenceDuration.Record(ctx, 12.5)
		m.InferenceDuration.Record(ctx, 0.7)
		m.ActiveRuns.Add(ctx, 2)
		m.ActiveRuns.Add(ctx, -1)
		m.QueuedJobs.Add(ctx, 3)
		m.Segments.Add(ctx, 7)
	})

	for name, want := range map[string]uint64{
		"wavscribe.decode.duration":    1,
		"wavscribe.inference.duration": 2,
	} {
		h, ok := got[name].(metricdata.Histogram[float64])
		if !ok || len(h.DataPoints) != 1 || h.DataPoints[0].Count != want {
			t.Errorf("%s = %#v, want %d samples", name, got[name], want)
		}
	}
	for name, want := range map[string]int64{
		"wavscribe.active_runs": 1,
		"wavscribe.queued_jobs": 3,
		"wavscribe.segments":    7,
	} {
		if v := byAttr(t, got[name], "none")[""]; v != want {
			t.Errorf("%s = %d, want %d", name, v, want)
		}
	}
}

func TestDefaultMetrics_Memoized(t *testing.T) {
	if DefaultMetrics() != DefaultMetrics() {
		t.Error("DefaultMetrics returned different instances")
	}
}
