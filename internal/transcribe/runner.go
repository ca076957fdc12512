package transcribe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/wavscribe/internal/observe"
	"github.com/MrWong99/wavscribe/pkg/audio/wav"
	"github.com/MrWong99/wavscribe/pkg/engine"
	"github.com/MrWong99/wavscribe/pkg/lang"
)

// Decoder decodes one input source. [*wav.Decoder] implements it.
type Decoder interface {
	Decode(source string, wantStereo bool) (*wav.Audio, error)
}

// Result is the outcome of an asynchronous run: either the transcript or an
// error, never both.
type Result struct {
	Text string
	Err  error
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger for run diagnostics. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.log = l }
}

// WithMetrics sets the metrics sink. Defaults to observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithLanguageLookup replaces the language table used to validate
// Params.Language. lookup returns -1 for unknown languages.
func WithLanguageLookup(lookup func(string) int) Option {
	return func(r *Runner) { r.lookup = lookup }
}

// WithSegmentListener registers a listener notified of every segment of
// every run.
func WithSegmentListener(l SegmentListener) Option {
	return func(r *Runner) { r.listener = l }
}

// WithDecoder replaces the WAV decoder.
func WithDecoder(d Decoder) Option {
	return func(r *Runner) { r.decoder = d }
}

// Runner executes transcription runs. A Runner holds no per-run state and may
// be used for concurrent runs; every run loads its own engine.
type Runner struct {
	loader   engine.Loader
	log      *slog.Logger
	metrics  *observe.Metrics
	lookup   func(string) int
	listener SegmentListener
	decoder  Decoder
}

// New returns a Runner that loads engines through loader.
func New(loader engine.Loader, opts ...Option) *Runner {
	r := &Runner{
		loader: loader,
		log:    slog.Default(),
		lookup: lang.ID,
	}
	for _, o := range opts {
		o(r)
	}
	if r.metrics == nil {
		r.metrics = observe.DefaultMetrics()
	}
	if r.decoder == nil {
		r.decoder = &wav.Decoder{Logger: r.log}
	}
	r.log = r.log.With("component", "transcribe")
	return r
}

// Run transcribes p synchronously. Cancelling ctx aborts the run before the
// next processing stage.
func (r *Runner) Run(ctx context.Context, p Params) (string, error) {
	return r.Execute(ctx, p, NewToken(ctx), nil)
}

// Start runs p on a dedicated goroutine. The returned channel receives
// exactly one Result and is then closed.
func (r *Runner) Start(ctx context.Context, p Params) <-chan Result {
	ch, _ := r.StartWithToken(ctx, p)
	return ch
}

// StartWithToken is like Start and also returns the run's token so the caller
// can cancel the run.
func (r *Runner) StartWithToken(ctx context.Context, p Params) (<-chan Result, *Token) {
	tok := NewToken(ctx)
	ch := make(chan Result, 1)
	go func() {
		defer close(ch)
		text, err := r.Execute(ctx, p, tok, nil)
		ch <- Result{Text: text, Err: err}
	}()
	return ch, tok
}

// Execute runs p synchronously under tok. listener, if non-nil, receives this
// run's segments in addition to the Runner-wide listener. All failures are
// reported as *RunError.
func (r *Runner) Execute(ctx context.Context, p Params, tok *Token, listener SegmentListener) (text string, err error) {
	if tok == nil {
		tok = NewToken(ctx)
	}
	runID := uuid.NewString()
	ctx, span := observe.StartSpan(ctx, "transcribe.run", trace.WithAttributes(
		attribute.String("run_id", runID),
		attribute.Int("inputs", len(p.Inputs)),
		attribute.String("language", p.Language),
	))
	defer func() { observe.EndSpan(span, err) }()

	log := observe.LoggerFrom(ctx, r.log).With("run_id", runID)
	start := time.Now()
	r.metrics.ActiveRuns.Add(ctx, 1)

	state := StateInit
	enter := func(s State) {
		state = s
		log.Debug("run state", "state", s)
	}
	enter(StateInit)

	defer func() {
		r.metrics.ActiveRuns.Add(ctx, -1)
		final := StateDone
		if err != nil {
			final = StateFailed
			if errors.Is(err, ErrAborted) {
				final = StateAborted
			}
			log.Error("run failed", "state", state, "err", err)
		}
		enter(final)
		r.metrics.RecordRun(ctx, final.String(), time.Since(start))
	}()

	fail := func(file string, cause error) error {
		return &RunError{State: state, File: file, Err: cause}
	}
	abort := func(file string, cause error) error {
		if cause == nil {
			cause = tok.Err()
		}
		return &RunError{State: state, File: file, Err: fmt.Errorf("%w: %w", ErrAborted, cause)}
	}

	if err := Check(p, r.lookup); err != nil {
		return "", fail("", err)
	}
	if tok.Cancelled() {
		return "", abort("", nil)
	}

	enter(StateModelLoading)
	eng, err := r.loader.Load(p.Model)
	if err != nil {
		return "", fail("", fmt.Errorf("%w: %w", ErrModelLoad, err))
	}
	defer func() {
		if cerr := eng.Close(); cerr != nil {
			log.Warn("failed to release engine", "err", cerr)
		}
	}()

	sink := NewSink(r.listener, listener)
	work := p
	checked := false

	for i, input := range p.Inputs {
		if tok.Cancelled() {
			return "", abort(input, nil)
		}
		flog := log.With("file", input, "output", p.OutputFor(i))
		fctx, fspan := observe.StartSpan(ctx, "transcribe.file", trace.WithAttributes(
			attribute.String("file", input),
			attribute.Int("index", i),
		))

		enter(StateDecoding)
		decodeStart := time.Now()
		audio, derr := r.decoder.Decode(input, p.Diarize)
		r.metrics.DecodeDuration.Record(fctx, time.Since(decodeStart).Seconds())
		if derr != nil {
			flog.Error("failed to read WAV file", "err", derr)
			r.metrics.RecordFile(fctx, observe.OutcomeDecodeError)
			observe.EndSpan(fspan, derr)
			continue
		}

		if !checked {
			checked = true
			var changed bool
			work, changed = Normalize(work, eng.IsMultilingual())
			if changed {
				flog.Warn("model is not multilingual, ignoring language and translation options",
					"language", p.Language, "translate", p.Translate)
			}
		}

		flog.Info("system_info",
			"threads", work.Threads*work.Processors,
			"hardware_concurrency", runtime.NumCPU(),
			"info", eng.SystemInfo(),
		)
		task := "transcribe"
		if work.Translate {
			task = "translate"
		}
		flog.Info("processing",
			"samples", len(audio.Mono),
			"seconds", audio.Mono.Duration().Seconds(),
			"threads", work.Threads,
			"processors", work.Processors,
			"language", work.Language,
			"task", task,
			"timestamps", !work.NoTimestamps,
		)

		enter(StateInferring)
		sink.Reset(eng, input, i)
		before := sink.Len()
		inferStart := time.Now()
		rerr := eng.Run(audio.Mono, BuildOptions(work), work.Processors, engine.Hooks{Segments: sink, Abort: tok})
		r.metrics.InferenceDuration.Record(fctx, time.Since(inferStart).Seconds())
		if rerr != nil {
			observe.EndSpan(fspan, rerr)
			if errors.Is(rerr, engine.ErrAborted) || tok.Cancelled() {
				r.metrics.RecordFile(fctx, observe.OutcomeAborted)
				return "", abort(input, rerr)
			}
			r.metrics.RecordFile(fctx, observe.OutcomeInferenceError)
			return "", fail(input, fmt.Errorf("%w: %w", ErrInference, rerr))
		}

		enter(StateAggregating)
		sink.Drain()
		r.metrics.Segments.Add(fctx, int64(sink.Len()-before))
		r.metrics.RecordFile(fctx, observe.OutcomeOK)
		observe.EndSpan(fspan, nil)
	}

	enter(StateFinalizing)
	eng.PrintTimings()
	return sink.Text(), nil
}
