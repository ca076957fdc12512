// Package audio holds the PCM representations handed to the transcription
// engine and the integer-to-float conversions that produce them.
//
// All buffers are 32-bit float samples in [-1.0, 1.0] at [SampleRate]. A
// buffer is produced once per input file and is not modified afterwards.
package audio

import "time"

// SampleRate is the only sample rate the engine accepts, in Hz.
const SampleRate = 16000

// PCM is a mono buffer of normalised float samples at [SampleRate].
type PCM []float32

// Duration returns the playback length of p.
func (p PCM) Duration() time.Duration {
	return Duration(len(p))
}

// StereoPCM holds the left and right channels of a two-channel source, each
// normalised independently. Both channels have the same length as the mono
// buffer decoded from the same file.
type StereoPCM [2]PCM

// Left returns the first channel.
func (s *StereoPCM) Left() PCM { return s[0] }

// Right returns the second channel.
func (s *StereoPCM) Right() PCM { return s[1] }

// Duration converts a sample count at [SampleRate] into a time.Duration.
func Duration(samples int) time.Duration {
	return time.Duration(samples) * time.Second / SampleRate
}
