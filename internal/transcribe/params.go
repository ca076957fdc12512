// Package transcribe runs offline transcriptions: it decodes every input WAV
// file, drives the speech engine over it and aggregates the emitted text
// segments into one transcript.
//
// A run is all-or-nothing. Files that fail to decode are skipped with a
// diagnostic, but configuration errors, a model that fails to load and any
// engine failure end the run with an error and no transcript.
package transcribe

import (
	"errors"
	"fmt"
	"runtime"
)

// Params are the parameters of one transcription run. The zero value is not
// useful; start from [DefaultParams].
type Params struct {
	Threads    int `yaml:"threads" json:"threads"`
	Processors int `yaml:"processors" json:"processors"`

	OffsetTMs  int `yaml:"offset_t_ms" json:"offset_t_ms"`
	OffsetN    int `yaml:"offset_n" json:"offset_n"`
	DurationMs int `yaml:"duration_ms" json:"duration_ms"`

	// MaxContext overrides the engine's text context when >= 0.
	MaxContext int `yaml:"max_context" json:"max_context"`

	// MaxLen is the maximum segment length in characters; 0 disables it.
	MaxLen int `yaml:"max_len" json:"max_len"`

	BestOf   int `yaml:"best_of" json:"best_of"`
	BeamSize int `yaml:"beam_size" json:"beam_size"`

	WordThold    float32 `yaml:"word_thold" json:"word_thold"`
	EntropyThold float32 `yaml:"entropy_thold" json:"entropy_thold"`
	LogprobThold float32 `yaml:"logprob_thold" json:"logprob_thold"`

	SpeedUp   bool `yaml:"speed_up" json:"speed_up"`
	Translate bool `yaml:"translate" json:"translate"`

	// Diarize requires stereo input files.
	Diarize bool `yaml:"diarize" json:"diarize"`

	OutputTxt     bool `yaml:"output_txt" json:"output_txt"`
	OutputVtt     bool `yaml:"output_vtt" json:"output_vtt"`
	OutputSrt     bool `yaml:"output_srt" json:"output_srt"`
	OutputWts     bool `yaml:"output_wts" json:"output_wts"`
	OutputCsv     bool `yaml:"output_csv" json:"output_csv"`
	PrintSpecial  bool `yaml:"print_special" json:"print_special"`
	PrintColors   bool `yaml:"print_colors" json:"print_colors"`
	PrintProgress bool `yaml:"print_progress" json:"print_progress"`
	NoTimestamps  bool `yaml:"no_timestamps" json:"no_timestamps"`

	// Language is a whisper language code or "auto".
	Language string `yaml:"language" json:"language"`
	Prompt   string `yaml:"prompt" json:"prompt"`
	Model    string `yaml:"model" json:"model"`

	Inputs  []string `yaml:"inputs,omitempty" json:"inputs"`
	Outputs []string `yaml:"outputs,omitempty" json:"outputs,omitempty"`
}

// DefaultParams returns the defaults of the whisper.cpp command line.
func DefaultParams() Params {
	return Params{
		Threads:      min(4, runtime.NumCPU()),
		Processors:   1,
		MaxContext:   -1,
		BestOf:       5,
		BeamSize:     -1,
		WordThold:    0.01,
		EntropyThold: 2.4,
		LogprobThold: -1.0,
		Language:     "en",
	}
}

// OutputFor returns the output identifier of input i: the explicit entry when
// present and non-empty, else the input identifier itself.
func (p Params) OutputFor(i int) string {
	if i < len(p.Outputs) && p.Outputs[i] != "" {
		return p.Outputs[i]
	}
	if i < len(p.Inputs) {
		return p.Inputs[i]
	}
	return ""
}

// Validate checks the numeric fields. Language is checked by the runner
// against the engine's table.
func (p Params) Validate() error {
	var errs []error
	if p.Threads < 1 {
		errs = append(errs, fmt.Errorf("threads must be >= 1, got %d", p.Threads))
	}
	if p.Processors < 1 {
		errs = append(errs, fmt.Errorf("processors must be >= 1, got %d", p.Processors))
	}
	if p.BestOf < 1 {
		errs = append(errs, fmt.Errorf("best_of must be >= 1, got %d", p.BestOf))
	}
	if p.OffsetTMs < 0 {
		errs = append(errs, fmt.Errorf("offset_t_ms must be >= 0, got %d", p.OffsetTMs))
	}
	if p.DurationMs < 0 {
		errs = append(errs, fmt.Errorf("duration_ms must be >= 0, got %d", p.DurationMs))
	}
	if p.MaxLen < 0 {
		errs = append(errs, fmt.Errorf("max_len must be >= 0, got %d", p.MaxLen))
	}
	return errors.Join(errs...)
}
