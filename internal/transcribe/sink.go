package transcribe

import (
	"strings"

	"github.com/MrWong99/wavscribe/pkg/engine"
)

// Segment is a text segment appended to a run's result.
type Segment struct {
	// File is the input the segment was transcribed from.
	File string `json:"file"`

	// FileIndex is the position of File in the run's input list.
	FileIndex int `json:"file_index"`

	// Index is the segment's index within the file's engine run.
	Index int `json:"index"`

	Text string `json:"text"`
}

// SegmentListener observes segments as they are appended.
type SegmentListener interface {
	OnSegment(Segment)
}

// SegmentListenerFunc adapts a function to [SegmentListener].
type SegmentListenerFunc func(Segment)

// OnSegment calls f(s).
func (f SegmentListenerFunc) OnSegment(s Segment) { f(s) }

// Sink aggregates engine segments into a transcript. It implements
// [engine.SegmentHandler]: each notification appends every segment between
// the last delivered index and the engine's current count, so segments are
// appended in index order exactly once. Not safe for concurrent use; the
// engine calls it from the run's goroutine.
type Sink struct {
	src       engine.SegmentSource
	file      string
	fileIndex int
	delivered int

	listeners []SegmentListener
	buf       strings.Builder
	total     int
}

// NewSink returns an empty Sink. Nil listeners are ignored.
func NewSink(listeners ...SegmentListener) *Sink {
	s := &Sink{}
	for _, l := range listeners {
		if l != nil {
			s.listeners = append(s.listeners, l)
		}
	}
	return s
}

// Reset points the sink at the segments of a new engine run over file. Text
// appended so far is kept.
func (s *Sink) Reset(src engine.SegmentSource, file string, fileIndex int) {
	s.src = src
	s.file = file
	s.fileIndex = fileIndex
	s.delivered = 0
}

// OnNewSegments appends the segments produced since the last call.
func (s *Sink) OnNewSegments(n int) {
	if n <= 0 {
		return
	}
	s.Drain()
}

// Drain appends every segment the source has not delivered yet. It returns
// the number of segments appended.
func (s *Sink) Drain() int {
	if s.src == nil {
		return 0
	}
	end := s.src.NumSegments()
	appended := 0
	for ; s.delivered < end; s.delivered++ {
		seg := Segment{
			File:      s.file,
			FileIndex: s.fileIndex,
			Index:     s.delivered,
			Text:      s.src.SegmentText(s.delivered),
		}
		s.buf.WriteString(seg.Text)
		s.total++
		appended++
		for _, l := range s.listeners {
			l.OnSegment(seg)
		}
	}
	return appended
}

// Text returns the aggregated transcript.
func (s *Sink) Text() string { return s.buf.String() }

// Len returns the number of segments appended across all files.
func (s *Sink) Len() int { return s.total }

var _ engine.SegmentHandler = (*Sink)(nil)
