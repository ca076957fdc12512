// Package engine defines the contract between the transcription runner and a
// speech recognition backend such as whisper.cpp.
//
// An Engine is loaded once per run from a model file and then invoked
// synchronously once per input file. During [Engine.Run] the engine drives
// two hooks on the calling goroutine: [SegmentHandler.OnNewSegments] whenever
// it has produced more text segments, and [AbortChecker.Cancelled] before each
// expensive processing stage. Segment indices restart at zero for every Run.
//
// Engines are not safe for concurrent use; one run owns one Engine.
package engine

import (
	"errors"
	"fmt"
)

// ErrAborted is returned by Run when the abort hook stopped processing.
var ErrAborted = errors.New("engine: processing aborted")

// StatusError reports a non-zero engine status code.
type StatusError struct {
	Code int
	Err  error
}

func (e *StatusError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("engine: run failed with status %d: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("engine: run failed with status %d", e.Code)
}

func (e *StatusError) Unwrap() error { return e.Err }

// SegmentSource gives read access to the segments of the current run.
type SegmentSource interface {
	// NumSegments returns how many segments the current run has produced.
	NumSegments() int

	// SegmentText returns the text of segment i, 0 <= i < NumSegments().
	SegmentText(i int) string
}

// SegmentHandler is notified whenever n more contiguous segments exist.
type SegmentHandler interface {
	OnNewSegments(n int)
}

// AbortChecker is consulted before each processing stage. Returning true
// asks the engine to stop early.
type AbortChecker interface {
	Cancelled() bool
}

// Hooks are the extension points a caller plugs into Run. Nil hooks are
// ignored.
type Hooks struct {
	Segments SegmentHandler
	Abort    AbortChecker
}

// Engine is a loaded model ready to transcribe.
type Engine interface {
	SegmentSource

	// IsMultilingual reports whether the loaded model supports languages
	// other than English and translation.
	IsMultilingual() bool

	// Run transcribes mono samples at 16 kHz. It blocks until the engine
	// finishes; hooks are called on the same goroutine before it returns.
	// processors > 1 asks the engine to split the audio internally.
	Run(samples []float32, opts Options, processors int, hooks Hooks) error

	// SystemInfo describes the engine build and hardware features.
	SystemInfo() string

	// PrintTimings writes the engine's timing report to its diagnostic output.
	PrintTimings()

	// Close releases the model.
	Close() error
}

// Loader loads an Engine from a model file.
type Loader interface {
	Load(modelPath string) (Engine, error)
}

// LoaderFunc adapts a function to [Loader].
type LoaderFunc func(modelPath string) (Engine, error)

// Load calls f(modelPath).
func (f LoaderFunc) Load(modelPath string) (Engine, error) { return f(modelPath) }
