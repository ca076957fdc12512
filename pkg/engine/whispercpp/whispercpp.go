// This file contains the Engine implementation backed by the whisper.cpp CGO
// bindings. The whisper.cpp static library (libwhisper.a) and headers
// (whisper.h) must be available at link time via LIBRARY_PATH and
// C_INCLUDE_PATH environment variables.

// Package whispercpp adapts the whisper.cpp Go bindings to [engine.Engine].
package whispercpp

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/MrWong99/wavscribe/pkg/engine"
	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// statusUnknown is reported when the bindings fail without exposing the
// underlying whisper_full status code.
const statusUnknown = -1

var (
	_ engine.Engine = (*Engine)(nil)
	_ engine.Loader = (*Loader)(nil)
)

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger used for engine diagnostics. Defaults to
// slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(ld *Loader) { ld.log = l }
}

// Loader loads whisper.cpp models from disk.
type Loader struct {
	log *slog.Logger
}

// NewLoader returns a Loader configured with opts.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{log: slog.Default()}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Load reads the ggml model at modelPath. The caller must Close the returned
// engine.
func (l *Loader) Load(modelPath string) (engine.Engine, error) {
	if modelPath == "" {
		return nil, errors.New("whispercpp: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whispercpp: load model %q: %w", modelPath, err)
	}
	return &Engine{model: model, log: l.log}, nil
}

// Engine is a loaded whisper.cpp model. Each Run gets a fresh inference
// context; the most recent one backs SystemInfo and PrintTimings.
type Engine struct {
	model    whisperlib.Model
	wctx     whisperlib.Context
	segments []string
	log      *slog.Logger
}

// IsMultilingual reports whether the model was trained on more than English.
func (e *Engine) IsMultilingual() bool { return e.model.IsMultilingual() }

// NumSegments returns the number of segments produced by the current run.
func (e *Engine) NumSegments() int { return len(e.segments) }

// SegmentText returns the text of segment i.
func (e *Engine) SegmentText(i int) string {
	if i < 0 || i >= len(e.segments) {
		return ""
	}
	return e.segments[i]
}

// Run transcribes samples with a new inference context.
func (e *Engine) Run(samples []float32, opts engine.Options, processors int, hooks engine.Hooks) error {
	e.segments = e.segments[:0]

	wctx, err := e.model.NewContext()
	if err != nil {
		return &engine.StatusError{Code: statusUnknown, Err: fmt.Errorf("new context: %w", err)}
	}
	e.wctx = wctx

	if err := e.apply(wctx, opts, processors); err != nil {
		return err
	}

	aborted := false
	var encoderBegin func() bool
	if hooks.Abort != nil {
		encoderBegin = func() bool {
			if hooks.Abort.Cancelled() {
				aborted = true
				return false
			}
			return true
		}
	}
	onSegment := func(seg whisperlib.Segment) {
		e.segments = append(e.segments, seg.Text)
		if hooks.Segments != nil {
			hooks.Segments.OnNewSegments(1)
		}
	}

	if err := wctx.Process(samples, encoderBegin, onSegment, nil); err != nil {
		if aborted {
			return engine.ErrAborted
		}
		return &engine.StatusError{Code: statusUnknown, Err: err}
	}
	if aborted {
		return engine.ErrAborted
	}

	// Pick up segments the callback did not report.
	for i := 0; ; i++ {
		seg, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return &engine.StatusError{Code: statusUnknown, Err: fmt.Errorf("read segment: %w", err)}
		}
		if i >= len(e.segments) {
			e.segments = append(e.segments, seg.Text)
		}
	}
	return nil
}

// apply copies opts onto the inference context. Parameters the bindings do
// not expose are logged at debug level and otherwise ignored.
func (e *Engine) apply(wctx whisperlib.Context, opts engine.Options, processors int) error {
	if err := wctx.SetLanguage(opts.Language); err != nil {
		return &engine.StatusError{Code: statusUnknown, Err: fmt.Errorf("set language %q: %w", opts.Language, err)}
	}
	wctx.SetTranslate(opts.Translate)
	if opts.Threads > 0 {
		wctx.SetThreads(uint(opts.Threads))
	}
	wctx.SetOffset(time.Duration(opts.OffsetMs) * time.Millisecond)
	wctx.SetDuration(time.Duration(opts.DurationMs) * time.Millisecond)
	wctx.SetMaxContext(opts.MaxTextContext)
	wctx.SetTokenTimestamps(opts.TokenTimestamps)
	wctx.SetTokenThreshold(opts.WordThreshold)
	wctx.SetEntropyThold(opts.EntropyThreshold)
	if opts.MaxSegmentLength > 0 {
		wctx.SetMaxSegmentLength(uint(opts.MaxSegmentLength))
	}
	if opts.Strategy == engine.StrategyBeamSearch {
		wctx.SetBeamSize(opts.BeamSize)
	}
	if opts.InitialPrompt != "" {
		wctx.SetInitialPrompt(opts.InitialPrompt)
	}

	e.log.Debug("whispercpp: options not exposed by bindings",
		"best_of", opts.BestOf,
		"logprob_thold", opts.LogprobThreshold,
		"speed_up", opts.SpeedUp,
		"processors", processors,
	)
	return nil
}

// SystemInfo describes the whisper.cpp build. It returns "" before the first
// Run if no context can be created.
func (e *Engine) SystemInfo() string {
	if e.wctx == nil {
		wctx, err := e.model.NewContext()
		if err != nil {
			return ""
		}
		e.wctx = wctx
	}
	return e.wctx.SystemInfo()
}

// PrintTimings writes the timing report of the latest run to stderr.
func (e *Engine) PrintTimings() {
	if e.wctx != nil {
		e.wctx.PrintTimings()
	}
}

// Close releases the model.
func (e *Engine) Close() error {
	if e.model != nil {
		err := e.model.Close()
		e.model = nil
		e.wctx = nil
		return err
	}
	return nil
}
