package transcribe

import (
	"errors"
	"fmt"
)

// ErrConfig matches every configuration error.
var ErrConfig = errors.New("transcribe: invalid configuration")

var (
	// ErrNoInput is returned when a run has no input files.
	ErrNoInput = fmt.Errorf("%w: no input files specified", ErrConfig)

	// ErrUnknownLanguage is returned when the language is neither "auto" nor
	// known to the engine.
	ErrUnknownLanguage = fmt.Errorf("%w: unknown language", ErrConfig)

	// ErrNoModel is returned when no model path is configured.
	ErrNoModel = fmt.Errorf("%w: no model path specified", ErrConfig)

	// ErrInvalidParams wraps failures of [Params.Validate].
	ErrInvalidParams = fmt.Errorf("%w: invalid parameters", ErrConfig)
)

var (
	// ErrModelLoad is returned when the engine cannot load the model.
	ErrModelLoad = errors.New("transcribe: failed to initialize engine")

	// ErrInference is returned when the engine fails on an input file.
	ErrInference = errors.New("transcribe: failed to process audio")

	// ErrAborted is returned when the run's token was cancelled.
	ErrAborted = errors.New("transcribe: run aborted")
)

// RunError is the single error a failed run reports. It records the state the
// run was in and, for per-file states, the input being processed.
type RunError struct {
	State State
	File  string
	Err   error
}

func (e *RunError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%v (state %s, file %q)", e.Err, e.State, e.File)
	}
	return fmt.Sprintf("%v (state %s)", e.Err, e.State)
}

func (e *RunError) Unwrap() error { return e.Err }
