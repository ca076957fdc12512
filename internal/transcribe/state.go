package transcribe

import "fmt"

// State is a step of the run loop.
type State int

const (
	StateInit State = iota
	StateModelLoading
	StateDecoding
	StateInferring
	StateAggregating
	StateFinalizing
	StateDone
	StateAborted
	StateFailed
)

var stateNames = [...]string{
	StateInit:         "init",
	StateModelLoading: "model_loading",
	StateDecoding:     "decoding",
	StateInferring:    "inferring",
	StateAggregating:  "aggregating",
	StateFinalizing:   "finalizing",
	StateDone:         "done",
	StateAborted:      "aborted",
	StateFailed:       "failed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether no further transition follows s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateAborted || s == StateFailed
}
