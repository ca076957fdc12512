// Package health serves the liveness and readiness endpoints of the
// transcription service.
//
// /healthz answers 200 whenever the process can serve HTTP. /readyz runs
// every registered [Checker] concurrently and answers 503 when any of them
// fails, listing the outcome and duration of each check.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"
)

// DefaultTimeout bounds a single check.
const DefaultTimeout = 5 * time.Second

// Checker tests one dependency. Check returns nil when it is usable.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

// CheckResult is the outcome of one [Checker].
type CheckResult struct {
	Name       string `json:"name"`
	OK         bool   `json:"ok"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// Report is the body of both endpoint responses.
type Report struct {
	Status string        `json:"status"`
	Checks []CheckResult `json:"checks,omitempty"`
}

// Ready reports whether every check passed.
func (r Report) Ready() bool { return r.Status == "ok" }

// Handler evaluates a fixed set of checkers.
type Handler struct {
	checkers []Checker
	timeout  time.Duration
}

// New returns a Handler over checkers using [DefaultTimeout].
func New(checkers ...Checker) *Handler {
	return &Handler{
		checkers: append([]Checker(nil), checkers...),
		timeout:  DefaultTimeout,
	}
}

// WithTimeout returns a copy of h whose checks are bounded by d.
func (h *Handler) WithTimeout(d time.Duration) *Handler {
	c := *h
	c.timeout = d
	return &c
}

// Evaluate runs all checks concurrently and collects their results sorted by
// name. A failing check does not cancel the others.
func (h *Handler) Evaluate(ctx context.Context) Report {
	results := make([]CheckResult, len(h.checkers))
	var g errgroup.Group
	for i, c := range h.checkers {
		g.Go(func() error {
			results[i] = h.run(ctx, c)
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	rep := Report{Status: "ok", Checks: results}
	for _, r := range results {
		if !r.OK {
			rep.Status = "fail"
			break
		}
	}
	return rep
}

func (h *Handler) run(ctx context.Context, c Checker) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	start := time.Now()
	err := c.Check(ctx)
	res := CheckResult{Name: c.Name, OK: err == nil, DurationMs: time.Since(start).Milliseconds()}
	if err != nil {
		res.Error = err.Error()
	}
	return res
}

// Healthz always answers 200.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeReport(w, http.StatusOK, Report{Status: "ok"})
}

// Readyz answers 200 when every check passes and 503 otherwise.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	rep := h.Evaluate(r.Context())
	status := http.StatusOK
	if !rep.Ready() {
		status = http.StatusServiceUnavailable
	}
	writeReport(w, status, rep)
}

// Register mounts both endpoints on r.
func (h *Handler) Register(r chi.Router) {
	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)
}

func writeReport(w http.ResponseWriter, status int, rep Report) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(rep)
}
