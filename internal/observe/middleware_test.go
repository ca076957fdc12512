package observe

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type harness struct {
	router *chi.Mux
	reader *sdkmetric.ManualReader
	spans  *tracetest.InMemoryExporter
	logs   *bytes.Buffer
}

// newHarness installs an in-memory tracer and the trace-context propagator
// as globals and mounts a few routes behind Middleware.
func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		reader: sdkmetric.NewManualReader(),
		spans:  tracetest.NewInMemoryExporter(),
		logs:   &bytes.Buffer{},
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(h.reader))
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(h.spans))
	prevTP, prevProp := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
		_ = tp.Shutdown(context.Background())
		_ = mp.Shutdown(context.Background())
	})

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatal(err)
	}
	log := slog.New(slog.NewTextHandler(h.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	h.router = chi.NewRouter()
	h.router.Use(Middleware(m, log))
	h.router.Get("/v1/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Seen-Trace", TraceID(r.Context()))
		_, _ = w.Write([]byte("job"))
	})
	h.router.Get("/missing", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	})
	h.router.Get("/boom", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	return h
}

func (h *harness) get(path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func TestMiddleware_CorrelationHeaderMatchesSpan(t *testing.T) {
	h := newHarness(t)
	rec := h.get("/v1/jobs/abc", nil)

	cid := rec.Header().Get(CorrelationHeader)
	if len(cid) != 32 {
		t.Fatalf("correlation id = %q, want 32 hex chars", cid)
	}
	if seen := rec.Header().Get("X-Seen-Trace"); seen != cid {
		t.Errorf("handler saw trace %q, header has %q", seen, cid)
	}
	if rec.Header().Get("traceparent") == "" {
		t.Error("traceparent not injected into the response")
	}

	spans := h.spans.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
	if spans[0].Name != "GET /v1/jobs/{id}" {
		t.Errorf("span name = %q", spans[0].Name)
	}
	if spans[0].SpanContext.TraceID().String() != cid {
		t.Error("span trace id differs from the correlation header")
	}
}

func TestMiddleware_ContinuesIncomingTrace(t *testing.T) {
	h := newHarness(t)
	const parent = "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"
	rec := h.get("/v1/jobs/abc", http.Header{"Traceparent": {parent}})

	if got := rec.Header().Get(CorrelationHeader); got != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("correlation id = %q, want the caller's trace", got)
	}
	spans := h.spans.GetSpans()
	if len(spans) != 1 || spans[0].Parent.SpanID().String() != "00f067aa0ba902b7" {
		t.Errorf("span parent = %v", spans)
	}
}

func TestMiddleware_RecordsRouteAndStatus(t *testing.T) {
	h := newHarness(t)
	h.get("/v1/jobs/a", nil)
	h.get("/v1/jobs/b", nil)
	h.get("/missing", nil)

	var rm metricdata.ResourceMetrics
	if err := h.reader.Collect(context.Background(), &rm); err != nil {
		t.Fatal(err)
	}
	var hist metricdata.Histogram[float64]
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == "wavscribe.http.request.duration" {
				hist, _ = m.Data.(metricdata.Histogram[float64])
			}
		}
	}

	counts := map[string]uint64{}
	for _, dp := range hist.DataPoints {
		route, _ := dp.Attributes.Value("route")
		status, _ := dp.Attributes.Value("status")
		counts[route.AsString()+" "+status.AsString()] = dp.Count
	}
	if counts["/v1/jobs/{id} 200"] != 2 || counts["/missing 404"] != 1 || len(counts) != 2 {
		t.Errorf("series = %v", counts)
	}
}

func TestMiddleware_LogLevelFollowsStatus(t *testing.T) {
	h := newHarness(t)
	for path, want := range map[string]string{
		"/v1/jobs/a": "level=DEBUG",
		"/missing":   "level=WARN",
		"/boom":      "level=ERROR",
	} {
		h.logs.Reset()
		h.get(path, nil)
		line := h.logs.String()
		if !strings.Contains(line, want) || !strings.Contains(line, "trace_id=") {
			t.Errorf("%s logged %q, want %s with trace_id", path, line, want)
		}
	}
}

func TestResponseWriter_Status(t *testing.T) {
	tests := []struct {
		name  string
		write func(w http.ResponseWriter)
		want  int
		bytes int64
	}{
		{"nothing written", func(http.ResponseWriter) {}, http.StatusOK, 0},
		{"body only", func(w http.ResponseWriter) { _, _ = w.Write([]byte("hello")) }, http.StatusOK, 5},
		{"explicit", func(w http.ResponseWriter) { w.WriteHeader(http.StatusAccepted) }, http.StatusAccepted, 0},
		{"first header wins", func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusConflict)
			w.WriteHeader(http.StatusOK)
		}, http.StatusConflict, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rw := &responseWriter{ResponseWriter: httptest.NewRecorder()}
			tc.write(rw)
			if rw.Status() != tc.want || rw.written != tc.bytes {
				t.Errorf("status, bytes = %d, %d; want %d, %d", rw.Status(), rw.written, tc.want, tc.bytes)
			}
		})
	}
}
