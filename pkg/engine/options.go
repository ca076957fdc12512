package engine

import "fmt"

// Strategy selects the decoder search.
type Strategy int

const (
	StrategyGreedy Strategy = iota
	StrategyBeamSearch
)

// String returns the strategy name.
func (s Strategy) String() string {
	switch s {
	case StrategyGreedy:
		return "greedy"
	case StrategyBeamSearch:
		return "beam_search"
	}
	return fmt.Sprintf("Strategy(%d)", int(s))
}

// Options are the per-run engine parameters.
type Options struct {
	Strategy Strategy

	// Threads is the number of compute threads per processor.
	Threads int

	// OffsetMs and DurationMs select the part of the audio to process.
	// A zero duration means "until the end".
	OffsetMs   int
	DurationMs int

	// MaxTextContext caps the number of previous text tokens used as prompt.
	MaxTextContext int

	// TokenTimestamps enables per-token timing.
	TokenTimestamps bool

	// WordThreshold is the timestamp token probability threshold.
	WordThreshold float32

	EntropyThreshold float32
	LogprobThreshold float32

	// MaxSegmentLength limits segment length in characters; 0 disables it.
	MaxSegmentLength int

	SpeedUp bool

	// BestOf applies to greedy decoding, BeamSize to beam search.
	BestOf   int
	BeamSize int

	Translate     bool
	Language      string
	InitialPrompt string

	PrintProgress   bool
	PrintTimestamps bool
	PrintSpecial    bool
	PrintRealtime   bool
}

// DefaultOptions returns the engine's defaults for strategy.
func DefaultOptions(strategy Strategy) Options {
	return Options{
		Strategy:         strategy,
		Threads:          4,
		MaxTextContext:   16384,
		WordThreshold:    0.01,
		EntropyThreshold: 2.4,
		LogprobThreshold: -1.0,
		BestOf:           5,
		BeamSize:         5,
		Language:         "en",
		PrintProgress:    true,
		PrintTimestamps:  true,
	}
}
