package transcribe

import (
	"fmt"

	"github.com/MrWong99/wavscribe/pkg/engine"
	"github.com/MrWong99/wavscribe/pkg/lang"
)

// defaultWordsMaxLen is the segment length used for word-level export when
// no explicit max_len is set.
const defaultWordsMaxLen = 60

// BuildOptions maps p onto engine run options.
func BuildOptions(p Params) engine.Options {
	strategy := engine.StrategyGreedy
	if p.BeamSize > 1 {
		strategy = engine.StrategyBeamSearch
	}
	o := engine.DefaultOptions(strategy)

	o.PrintRealtime = false
	o.PrintProgress = p.PrintProgress
	o.PrintTimestamps = !p.NoTimestamps
	o.PrintSpecial = p.PrintSpecial
	o.Translate = p.Translate
	o.Language = p.Language
	o.Threads = p.Threads
	if p.MaxContext >= 0 {
		o.MaxTextContext = p.MaxContext
	}
	o.OffsetMs = p.OffsetTMs
	o.DurationMs = p.DurationMs

	o.TokenTimestamps = p.OutputWts || p.MaxLen > 0
	o.WordThreshold = p.WordThold
	o.EntropyThreshold = p.EntropyThold
	o.LogprobThreshold = p.LogprobThold
	o.MaxSegmentLength = p.MaxLen
	if p.OutputWts && p.MaxLen == 0 {
		o.MaxSegmentLength = defaultWordsMaxLen
	}

	o.SpeedUp = p.SpeedUp
	o.BestOf = p.BestOf
	o.BeamSize = p.BeamSize
	o.InitialPrompt = p.Prompt
	return o
}

// CheckLanguage returns ErrUnknownLanguage unless language is "auto" or
// lookup knows it. A nil lookup uses [lang.ID].
func CheckLanguage(language string, lookup func(string) int) error {
	if language == lang.Auto {
		return nil
	}
	if lookup == nil {
		lookup = lang.ID
	}
	if lookup(language) == -1 {
		return fmt.Errorf("%w %q", ErrUnknownLanguage, language)
	}
	return nil
}

// Check returns the first configuration error of p in the order a run
// detects them: inputs, language, numeric parameters, model.
func Check(p Params, lookup func(string) int) error {
	if len(p.Inputs) == 0 {
		return ErrNoInput
	}
	if err := CheckLanguage(p.Language, lookup); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	if p.Model == "" {
		return ErrNoModel
	}
	return nil
}

// Normalize returns p adjusted for a model that may not be multilingual:
// English-only models always transcribe English without translation. The
// boolean reports whether anything changed. p itself is never modified.
func Normalize(p Params, multilingual bool) (Params, bool) {
	if multilingual {
		return p, false
	}
	if p.Language == "en" && !p.Translate {
		return p, false
	}
	p.Language = "en"
	p.Translate = false
	return p, true
}
