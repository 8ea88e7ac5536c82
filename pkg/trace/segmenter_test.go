package trace

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestSegmenter(t *testing.T, rows string, opts ...SegmenterOption) *Segmenter {
	t.Helper()

	r, err := NewReader(strings.NewReader(header + rows))
	require.NoError(t, err)
	return NewSegmenter(r, opts...)
}

func collectFrames(t *testing.T, s *Segmenter) []*FrameRows {
	t.Helper()

	var frames []*FrameRows
	for {
		frame, err := s.Next()
		if errors.Is(err, io.EOF) {
			return frames
		}
		require.NoError(t, err)
		frames = append(frames, frame)
	}
}

func TestSegmenter_SplitsOnDepthZero(t *testing.T) {
	s := newTestSegmenter(t,
		"1,Tick,0.0,0.016,0.016,0\n"+
			"2,Draw,0.001,0.005,0.004,1\n"+
			"1,Tick,0.016,0.032,0.016,0\n"+
			"3,Audio,0.017,0.020,0.003,1\n"+
			"4,Mixer,0.018,0.019,0.001,2\n")

	frames := collectFrames(t, s)
	require.Len(t, frames, 2)

	require.EqualValues(t, 0, frames[0].Index)
	require.Len(t, frames[0].Rows, 2)
	require.EqualValues(t, 1, frames[1].Index)
	require.Len(t, frames[1].Rows, 3)

	// The trailing group is flushed at stream end.
	require.Equal(t, "Mixer", frames[1].Rows[2].TimerName)
}

func TestSegmenter_LeadingRootlessGroup(t *testing.T) {
	s := newTestSegmenter(t,
		"9,Orphan,0.0,0.001,0.001,2\n"+
			"1,Tick,0.001,0.017,0.016,0\n")

	frames := collectFrames(t, s)
	require.Len(t, frames, 2)
	require.Equal(t, "Orphan", frames[0].Rows[0].TimerName)
	require.Equal(t, 2, frames[0].Rows[0].Depth)
	require.Equal(t, "Tick", frames[1].Rows[0].TimerName)
}

func TestSegmenter_Empty(t *testing.T) {
	s := newTestSegmenter(t, "")
	_, err := s.Next()
	require.ErrorIs(t, err, io.EOF)

	// Next stays EOF after exhaustion.
	_, err = s.Next()
	require.ErrorIs(t, err, io.EOF)
}

func TestSegmenter_MaxFrames(t *testing.T) {
	rows := "1,Tick,0.0,0.016,0.016,0\n" +
		"1,Tick,0.016,0.032,0.016,0\n" +
		"1,Tick,0.032,0.048,0.016,0\n"

	s := newTestSegmenter(t, rows, WithMaxFrames(2))
	frames := collectFrames(t, s)
	require.Len(t, frames, 2)
	require.EqualValues(t, 2, s.Frames())
}
