package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrWong99/wavscribe/internal/health"
)

func pass(name string) health.Checker {
	return health.Checker{Name: name, Check: func(context.Context) error { return nil }}
}

func fail(name, msg string) health.Checker {
	return health.Checker{Name: name, Check: func(context.Context) error { return errors.New(msg) }}
}

func get(t *testing.T, h *health.Handler, path string) (int, health.Report) {
	t.Helper()
	r := chi.NewRouter()
	h.Register(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var rep health.Report
	if err := json.NewDecoder(rec.Body).Decode(&rep); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return rec.Code, rep
}

func TestHealthz_IgnoresCheckers(t *testing.T) {
	t.Parallel()
	code, rep := get(t, health.New(fail("job_store", "down")), "/healthz")
	if code != http.StatusOK || rep.Status != "ok" || len(rep.Checks) != 0 {
		t.Errorf("healthz = %d %+v", code, rep)
	}
}

func TestReadyz(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		checkers   []health.Checker
		wantCode   int
		wantStatus string
		wantErrors map[string]string
	}{
		{
			name:       "no checkers",
			wantCode:   http.StatusOK,
			wantStatus: "ok",
		},
		{
			name:       "all pass",
			checkers:   []health.Checker{pass("model"), pass("job_store")},
			wantCode:   http.StatusOK,
			wantStatus: "ok",
		},
		{
			name:       "one fails",
			checkers:   []health.Checker{pass("model"), fail("job_store", "connection refused")},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "fail",
			wantErrors: map[string]string{"job_store": "connection refused"},
		},
		{
			name:       "all fail",
			checkers:   []health.Checker{fail("model", "missing"), fail("job_store", "timeout")},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "fail",
			wantErrors: map[string]string{"model": "missing", "job_store": "timeout"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			code, rep := get(t, health.New(tc.checkers...), "/readyz")
			if code != tc.wantCode || rep.Status != tc.wantStatus {
				t.Fatalf("readyz = %d %q, want %d %q", code, rep.Status, tc.wantCode, tc.wantStatus)
			}
			if len(rep.Checks) != len(tc.checkers) {
				t.Fatalf("checks = %d, want %d", len(rep.Checks), len(tc.checkers))
			}
			for _, c := range rep.Checks {
				want, failed := tc.wantErrors[c.Name]
				if c.OK == failed || c.Error != want {
					t.Errorf("check %s = %+v, want error %q", c.Name, c, want)
				}
			}
		})
	}
}

func TestEvaluate_SortedByName(t *testing.T) {
	t.Parallel()
	rep := health.New(pass("b"), pass("c"), pass("a")).Evaluate(context.Background())
	var names []string
	for _, c := range rep.Checks {
		names = append(names, c.Name)
	}
	if len(names) != 3 || names[0] != "a" || names[1] != "b" || names[2] != "c" {
		t.Errorf("order = %v", names)
	}
}

func TestEvaluate_RunsConcurrently(t *testing.T) {
	t.Parallel()
	// Each check waits for all of them to have started, which only
	// completes when they run at the same time.
	const n = 3
	var started atomic.Int32
	all := make(chan struct{})
	checkers := make([]health.Checker, n)
	for i := range checkers {
		checkers[i] = health.Checker{Name: string(rune('a' + i)), Check: func(ctx context.Context) error {
			if started.Add(1) == n {
				close(all)
			}
			select {
			case <-all:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}}
	}

	rep := health.New(checkers...).WithTimeout(2 * time.Second).Evaluate(context.Background())
	if !rep.Ready() {
		t.Errorf("report = %+v, want all checks ok", rep)
	}
}

func TestEvaluate_TimeoutBoundsSlowCheck(t *testing.T) {
	t.Parallel()
	slow := health.Checker{Name: "slow", Check: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	rep := health.New(slow, pass("fast")).WithTimeout(20 * time.Millisecond).Evaluate(context.Background())
	if rep.Ready() {
		t.Fatal("slow check should fail")
	}
	if rep.Checks[0].Name != "fast" || !rep.Checks[0].OK {
		t.Errorf("fast check = %+v", rep.Checks[0])
	}
	if rep.Checks[1].Error != context.DeadlineExceeded.Error() {
		t.Errorf("slow check error = %q", rep.Checks[1].Error)
	}
}

func TestModelFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	model := filepath.Join(dir, "ggml-tiny.bin")
	if err := os.WriteFile(model, []byte("ggml"), 0o644); err != nil {
		t.Fatal(err)
	}

	for name, tc := range map[string]struct {
		path    string
		wantErr bool
	}{
		"present":   {model, false},
		"empty":     {"", true},
		"missing":   {filepath.Join(dir, "nope.bin"), true},
		"directory": {dir, true},
	} {
		t.Run(name, func(t *testing.T) {
			err := health.ModelFile(func() string { return tc.path }).Check(context.Background())
			if (err != nil) != tc.wantErr {
				t.Errorf("Check() = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestPing(t *testing.T) {
	t.Parallel()
	rep := health.New(health.Ping("job_store", pinger{err: errors.New("refused")})).Evaluate(context.Background())
	if rep.Ready() || rep.Checks[0].Name != "job_store" || rep.Checks[0].Error != "refused" {
		t.Errorf("report = %+v", rep)
	}
}
