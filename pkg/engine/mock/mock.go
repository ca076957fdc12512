// Package mock provides scripted test doubles for the engine package.
//
// Each call to Engine.Run consumes the next [Script]. Segments become visible
// batch by batch and the segment hook is told about each batch, so callers
// can exercise incremental aggregation:
//
//	eng := &mock.Engine{
//	    Multilingual: true,
//	    Scripts: []mock.Script{
//	        {Segments: []string{" a", " b", " c"}, Batches: []int{2, 0, 1}},
//	    },
//	}
//	loader := &mock.Loader{Engine: eng}
package mock

import (
	"sync"

	"github.com/MrWong99/wavscribe/pkg/engine"
)

// Script describes the outcome of one Run call.
type Script struct {
	// Segments are the texts produced by the run, in index order.
	Segments []string

	// Batches are the counts reported to OnNewSegments, in order. When nil,
	// every segment is reported on its own. Segments not covered by the
	// batches are still visible through NumSegments once Run returns.
	Batches []int

	// Err is returned by Run after all batches were emitted.
	Err error
}

// RunCall records one invocation of Engine.Run.
type RunCall struct {
	Samples    []float32
	Opts       engine.Options
	Processors int
}

// Engine is a mock implementation of engine.Engine.
type Engine struct {
	mu sync.Mutex

	// Multilingual is returned by IsMultilingual.
	Multilingual bool

	// Scripts are consumed in order by Run. Once exhausted, Run produces no
	// segments and returns nil.
	Scripts []Script

	// Info is returned by SystemInfo.
	Info string

	// RunCalls records every call to Run.
	RunCalls []RunCall

	// CloseCalls counts calls to Close.
	CloseCalls int

	// TimingsCalls counts calls to PrintTimings.
	TimingsCalls int

	segments []string
	visible  int
	next     int
}

// IsMultilingual returns Multilingual.
func (e *Engine) IsMultilingual() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Multilingual
}

// Run plays back the next script. The abort hook is checked before every
// batch; if it reports cancellation Run returns engine.ErrAborted.
func (e *Engine) Run(samples []float32, opts engine.Options, processors int, hooks engine.Hooks) error {
	e.mu.Lock()
	e.RunCalls = append(e.RunCalls, RunCall{Samples: samples, Opts: opts, Processors: processors})
	var sc Script
	if e.next < len(e.Scripts) {
		sc = e.Scripts[e.next]
	}
	e.next++
	e.segments = append([]string(nil), sc.Segments...)
	e.visible = 0
	e.mu.Unlock()

	batches := sc.Batches
	if batches == nil {
		batches = make([]int, len(sc.Segments))
		for i := range batches {
			batches[i] = 1
		}
	}

	for _, n := range batches {
		if hooks.Abort != nil && hooks.Abort.Cancelled() {
			return engine.ErrAborted
		}
		e.mu.Lock()
		e.visible = min(e.visible+n, len(e.segments))
		e.mu.Unlock()
		if hooks.Segments != nil {
			hooks.Segments.OnNewSegments(n)
		}
	}

	e.mu.Lock()
	e.visible = len(e.segments)
	e.mu.Unlock()
	return sc.Err
}

// NumSegments returns the number of segments visible so far.
func (e *Engine) NumSegments() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.visible
}

// SegmentText returns segment i, or "" when out of range.
func (e *Engine) SegmentText(i int) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i < 0 || i >= e.visible {
		return ""
	}
	return e.segments[i]
}

// SystemInfo returns Info.
func (e *Engine) SystemInfo() string { return e.Info }

// PrintTimings counts the call.
func (e *Engine) PrintTimings() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.TimingsCalls++
}

// Close counts the call.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.CloseCalls++
	return nil
}

// Calls returns a copy of RunCalls. Thread-safe.
func (e *Engine) Calls() []RunCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]RunCall, len(e.RunCalls))
	copy(out, e.RunCalls)
	return out
}

// Loader is a mock implementation of engine.Loader.
type Loader struct {
	mu sync.Mutex

	// Engine is returned by Load when Err is nil.
	Engine *Engine

	// Err, if non-nil, is returned by Load.
	Err error

	// LoadCalls records the model paths passed to Load.
	LoadCalls []string
}

// Load records the call and returns Engine or Err.
func (l *Loader) Load(modelPath string) (engine.Engine, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.LoadCalls = append(l.LoadCalls, modelPath)
	if l.Err != nil {
		return nil, l.Err
	}
	if l.Engine == nil {
		l.Engine = &Engine{Multilingual: true}
	}
	return l.Engine, nil
}

// Calls returns a copy of LoadCalls. Thread-safe.
func (l *Loader) Calls() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.LoadCalls))
	copy(out, l.LoadCalls)
	return out
}

var (
	_ engine.Engine = (*Engine)(nil)
	_ engine.Loader = (*Loader)(nil)
)
