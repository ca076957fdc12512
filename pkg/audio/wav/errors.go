package wav

import (
	"errors"
	"fmt"
)

// Sentinel errors for every decode precondition, checked in this order.
// A returned *DecodeError unwraps to exactly one of them.
var (
	ErrOpenFailed            = errors.New("wav: failed to open container")
	ErrUnsupportedChannels   = errors.New("wav: must be mono or stereo")
	ErrStereoRequired        = errors.New("wav: must be stereo for diarization")
	ErrUnsupportedSampleRate = errors.New("wav: unsupported sample rate")
	ErrUnsupportedBitDepth   = errors.New("wav: must be 16-bit")
	ErrReadFailed            = errors.New("wav: failed to read samples")
)

// DecodeError reports which source failed and why.
type DecodeError struct {
	// Source is the file path or [StdinSource].
	Source string
	// Err is one of the package sentinel errors.
	Err error
	// Detail carries the offending value or the underlying cause.
	Detail string
}

func (e *DecodeError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%v: %q", e.Err, e.Source)
	}
	return fmt.Sprintf("%v: %q: %s", e.Err, e.Source, e.Detail)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func decodeErr(source string, sentinel error, format string, args ...any) *DecodeError {
	return &DecodeError{Source: source, Err: sentinel, Detail: fmt.Sprintf(format, args...)}
}
