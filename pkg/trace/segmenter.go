package trace

import (
	"errors"
	"io"
)

// Segmenter splits the record stream into per-frame row groups.
// A depth-0 record opens a new frame and flushes the previous group;
// the trailing group is flushed at stream end. Records seen before the
// first depth-0 record form a rootless leading group, which downstream
// stages exclude.
//
// The sequence is lazy, finite and forward-only; restarting requires
// re-reading the source.
type Segmenter struct {
	r *Reader

	pending []EventRecord
	next    uint64
	max     uint64
	done    bool
}

type SegmenterOption func(*Segmenter)

// WithMaxFrames stops segmentation after n frames have been produced.
func WithMaxFrames(n uint64) SegmenterOption {
	return func(s *Segmenter) {
		s.max = n
	}
}

func NewSegmenter(r *Reader, opts ...SegmenterOption) *Segmenter {
	s := &Segmenter{r: r}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Next returns the next frame's row group, or io.EOF after the last one.
func (s *Segmenter) Next() (*FrameRows, error) {
	if s.done {
		return nil, io.EOF
	}
	if s.max > 0 && s.next >= s.max {
		s.done = true
		return nil, io.EOF
	}

	for {
		rec, err := s.r.Read()
		if errors.Is(err, io.EOF) {
			s.done = true
			if len(s.pending) == 0 {
				return nil, io.EOF
			}
			return s.flush(nil), nil
		}
		if err != nil {
			return nil, err
		}

		if rec.Depth == 0 && len(s.pending) > 0 {
			return s.flush([]EventRecord{rec}), nil
		}
		s.pending = append(s.pending, rec)
	}
}

func (s *Segmenter) flush(carry []EventRecord) *FrameRows {
	frame := &FrameRows{
		Index: s.next,
		Rows:  s.pending,
	}
	s.next++
	s.pending = carry
	return frame
}

// Frames reports how many frames have been produced so far.
func (s *Segmenter) Frames() uint64 {
	return s.next
}
