// Package wav decodes RIFF/WAVE sources into the normalised PCM buffers the
// transcription engine consumes.
//
// Only 16 kHz, 16-bit, mono or stereo PCM is accepted. Nothing is resampled or
// re-quantised; mismatching sources are rejected with a [*DecodeError].
package wav

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	gowav "github.com/go-audio/wav"

	"github.com/MrWong99/wavscribe/pkg/audio"
)

// StdinSource is the source name that makes [Decoder.Decode] read the whole
// of standard input instead of opening a file.
const StdinSource = "-"

const bitsPerSample = 16

// Audio is the result of decoding one source.
type Audio struct {
	// Source is the name passed to Decode.
	Source string

	// Channels is the channel count of the container (1 or 2).
	Channels int

	// Frames is the number of sample frames, equal to len(Mono).
	Frames int

	// Mono is the downmixed (or native mono) buffer.
	Mono audio.PCM

	// Stereo is set only when stereo output was requested.
	Stereo *audio.StereoPCM

	// FromPipe reports whether the payload was read from standard input.
	FromPipe bool
}

// Decoder reads WAV sources. The zero value reads [StdinSource] from os.Stdin
// and logs through slog.Default.
type Decoder struct {
	// Stdin replaces os.Stdin for [StdinSource].
	Stdin io.Reader

	// Logger receives debug diagnostics.
	Logger *slog.Logger
}

// Decode reads source, validates it and converts it. When wantStereo is true
// the source must have two channels and Audio.Stereo is populated.
func (d *Decoder) Decode(source string, wantStereo bool) (*Audio, error) {
	if source == StdinSource {
		stdin := d.Stdin
		if stdin == nil {
			stdin = os.Stdin
		}
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, decodeErr(source, ErrReadFailed, "read stdin: %v", err)
		}
		d.logger().Debug("read bytes from stdin", "bytes", len(data))
		return d.decode(data, source, len(data), wantStereo)
	}

	f, err := os.Open(source)
	if err != nil {
		return nil, decodeErr(source, ErrOpenFailed, "%v", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, decodeErr(source, ErrReadFailed, "%v", err)
	}
	return d.decode(data, source, -1, wantStereo)
}

// DecodeReader decodes everything r yields. pipeLen is the total
// number of bytes buffered from a pipe, or a negative value when r is a
// regular file whose declared frame count should be used.
func (d *Decoder) DecodeReader(r io.Reader, name string, pipeLen int, wantStereo bool) (*Audio, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, decodeErr(name, ErrReadFailed, "%v", err)
	}
	return d.decode(data, name, pipeLen, wantStereo)
}

// Format tags accepted in the fmt chunk.
const (
	formatPCM        = 1
	formatExtensible = 0xFFFE
)

// unknownSize is the data chunk size streaming writers emit when they cannot
// seek back to patch the header.
const unknownSize = 0xFFFFFFFF

func (d *Decoder) decode(raw []byte, name string, pipeLen int, wantStereo bool) (*Audio, error) {
	dec := gowav.NewDecoder(bytes.NewReader(raw))
	dec.ReadInfo()
	if err := dec.Err(); err != nil {
		return nil, decodeErr(name, ErrOpenFailed, "%v", err)
	}
	if dec.NumChans == 0 && dec.SampleRate == 0 && dec.BitDepth == 0 {
		return nil, decodeErr(name, ErrOpenFailed, "no fmt chunk")
	}

	channels := int(dec.NumChans)
	if channels != 1 && channels != 2 {
		return nil, decodeErr(name, ErrUnsupportedChannels, "%d channels", channels)
	}
	// A fmt chunk cut short leaves the later fields zero.
	if dec.SampleRate == 0 || dec.BitDepth == 0 {
		return nil, decodeErr(name, ErrOpenFailed, "truncated fmt chunk")
	}
	if dec.WavAudioFormat != formatPCM && dec.WavAudioFormat != formatExtensible {
		return nil, decodeErr(name, ErrOpenFailed, "format tag %#x is not PCM", dec.WavAudioFormat)
	}
	if wantStereo && channels != 2 {
		return nil, decodeErr(name, ErrStereoRequired, "%d channel", channels)
	}
	if dec.SampleRate != audio.SampleRate {
		return nil, decodeErr(name, ErrUnsupportedSampleRate, "%d Hz, want %d kHz", dec.SampleRate, audio.SampleRate/1000)
	}
	if dec.BitDepth != bitsPerSample {
		return nil, decodeErr(name, ErrUnsupportedBitDepth, "%d-bit", dec.BitDepth)
	}

	offset, declared, err := findData(raw)
	if err != nil {
		return nil, decodeErr(name, ErrOpenFailed, "%v", err)
	}
	payload := raw[offset:]
	if pipeLen < 0 && declared != unknownSize && int64(declared) < int64(len(payload)) {
		payload = payload[:declared]
	}

	blockAlign := channels * bitsPerSample / 8
	frames := len(payload) / blockAlign

	// A pipe's header is not trusted: samples run to the end of the buffered
	// bytes and the frame count covers the whole buffer, header included, so
	// the frames past the payload stay zero.
	if pipeLen >= 0 {
		frames = pipeLen / blockAlign
	}

	pcm16 := make([]int16, frames*channels)
	n := min(len(pcm16), len(payload)/2)
	for i := range n {
		pcm16[i] = int16(binary.LittleEndian.Uint16(payload[2*i:]))
	}

	out := &Audio{
		Source:   name,
		Channels: channels,
		Frames:   frames,
		FromPipe: pipeLen >= 0,
	}
	if channels == 1 {
		out.Mono = audio.MonoFromInt16(pcm16)
	} else {
		out.Mono = audio.DownmixStereo(pcm16)
	}
	if wantStereo {
		st := audio.SplitStereo(pcm16)
		out.Stereo = &st
	}
	return out, nil
}

// findData walks the RIFF chunks of raw and returns the offset of the data
// chunk payload and its declared size.
func findData(raw []byte) (offset int, declared uint32, err error) {
	const riffHeader, chunkHeader = 12, 8
	pos := riffHeader
	for pos+chunkHeader <= len(raw) {
		id := string(raw[pos : pos+4])
		size := binary.LittleEndian.Uint32(raw[pos+4:])
		if id == "data" {
			return pos + chunkHeader, size, nil
		}
		if size == unknownSize {
			return 0, 0, fmt.Errorf("chunk %q of unknown size precedes data", id)
		}
		// Chunks are padded to an even length.
		pos += chunkHeader + int(size) + int(size&1)
	}
	return 0, 0, errors.New("no data chunk")
}

func (d *Decoder) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// String describes a for diagnostics.
func (a *Audio) String() string {
	return fmt.Sprintf("%s (%d samples, %.1f sec, %d ch)", a.Source, len(a.Mono), a.Mono.Duration().Seconds(), a.Channels)
}
