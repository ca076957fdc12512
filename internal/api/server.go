// Package api serves the HTTP interface of the transcription service. Runs
// are submitted as jobs, polled or cancelled by ID, and their live segments
// can be followed over a websocket.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/wavscribe/internal/health"
	"github.com/MrWong99/wavscribe/internal/jobs"
	"github.com/MrWong99/wavscribe/internal/observe"
	"github.com/MrWong99/wavscribe/internal/transcribe"
)

// Jobs is the job manager used by the handlers. [*jobs.Manager] implements it.
type Jobs interface {
	Submit(ctx context.Context, p transcribe.Params) (*jobs.Job, error)
	Get(ctx context.Context, id string) (*jobs.Job, error)
	List(ctx context.Context, limit int) ([]jobs.Job, error)
	Cancel(ctx context.Context, id string) error
	Subscribe(id string) (<-chan transcribe.Segment, func(), error)
	Wait(ctx context.Context, id string) (*jobs.Job, error)
}

var _ Jobs = (*jobs.Manager)(nil)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithMetrics sets the metrics used by the request middleware.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithHealth mounts h on /healthz and /readyz.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) { s.health = h }
}

// WithMetricsHandler replaces the Prometheus handler mounted on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metricsHandler = h }
}

// WithHistoryLimit caps the number of jobs returned by GET /v1/jobs.
func WithHistoryLimit(n int) Option {
	return func(s *Server) { s.historyLimit = n }
}

// WithLanguageLookup sets the language table used to reject requests before
// a job is created. Defaults to [lang.ID].
func WithLanguageLookup(lookup func(string) int) Option {
	return func(s *Server) { s.lookup = lookup }
}

// Server holds the HTTP handlers.
type Server struct {
	jobs           Jobs
	defaults       func() transcribe.Params
	log            *slog.Logger
	metrics        *observe.Metrics
	health         *health.Handler
	metricsHandler http.Handler
	historyLimit   int
	lookup         func(string) int
	inputDir       string
	modelDir       string
}

// New returns a Server submitting to j. defaults is called on every request
// and supplies the parameters a request body does not set.
func New(j Jobs, defaults func() transcribe.Params, opts ...Option) *Server {
	s := &Server{
		jobs:           j,
		defaults:       defaults,
		log:            slog.Default(),
		metricsHandler: promhttp.Handler(),
		historyLimit:   100,
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	s.log = s.log.With("component", "api")
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(observe.Middleware(s.metrics, s.log))

	if s.health != nil {
		s.health.Register(r)
	}
	if s.metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", s.metricsHandler)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/transcriptions", s.createTranscription)
		r.Get("/jobs", s.listJobs)
		r.Get("/jobs/{id}", s.getJob)
		r.Delete("/jobs/{id}", s.cancelJob)
		r.Get("/jobs/{id}/stream", s.streamJob)
	})
	return r
}
