package transcribe

import (
	"testing"
)

// growingSource is a segment list that becomes visible step by step.
type growingSource struct {
	all     []string
	visible int
}

func (g *growingSource) NumSegments() int { return g.visible }

func (g *growingSource) SegmentText(i int) string { return g.all[i] }

func (g *growingSource) grow(n int) { g.visible += n }

func TestSink_BatchesPreserveOrder(t *testing.T) {
	src := &growingSource{all: []string{" one", " two", " three", " four", " five"}}

	var seen []Segment
	s := NewSink(SegmentListenerFunc(func(seg Segment) { seen = append(seen, seg) }))
	s.Reset(src, "a.wav", 0)

	for _, n := range []int{2, 0, 3} {
		src.grow(n)
		s.OnNewSegments(n)
	}
	s.Drain()

	if got, want := s.Text(), " one two three four five"; got != want {
		t.Errorf("Text() = %q, want %q", got, want)
	}
	if s.Len() != 5 {
		t.Errorf("Len() = %d, want 5", s.Len())
	}
	for i, seg := range seen {
		if seg.Index != i || seg.Text != src.all[i] || seg.File != "a.wav" {
			t.Errorf("segment %d = %+v", i, seg)
		}
	}
}

func TestSink_DrainPicksUpUnreportedSegments(t *testing.T) {
	src := &growingSource{all: []string{"a", "b", "c"}}
	s := NewSink()
	s.Reset(src, "x.wav", 0)

	src.grow(1)
	s.OnNewSegments(1)
	src.grow(2) // engine finished without notifying

	if n := s.Drain(); n != 2 {
		t.Errorf("Drain() = %d, want 2", n)
	}
	if n := s.Drain(); n != 0 {
		t.Errorf("second Drain() = %d, want 0", n)
	}
	if s.Text() != "abc" {
		t.Errorf("Text() = %q", s.Text())
	}
}

func TestSink_ResetKeepsTextAcrossFiles(t *testing.T) {
	first := &growingSource{all: []string{" hello"}, visible: 1}
	second := &growingSource{all: []string{" world", "!"}, visible: 2}

	var files []int
	s := NewSink(nil, SegmentListenerFunc(func(seg Segment) { files = append(files, seg.FileIndex) }))
	s.Reset(first, "1.wav", 0)
	s.Drain()
	s.Reset(second, "2.wav", 1)
	s.OnNewSegments(2)

	if s.Text() != " hello world!" {
		t.Errorf("Text() = %q", s.Text())
	}
	if len(files) != 3 || files[0] != 0 || files[1] != 1 || files[2] != 1 {
		t.Errorf("file indices = %v", files)
	}
}

func TestSink_NoSource(t *testing.T) {
	s := NewSink()
	s.OnNewSegments(3)
	if s.Drain() != 0 || s.Text() != "" {
		t.Error("sink without source should be empty")
	}
}
