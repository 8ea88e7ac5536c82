package processor

import (
	"github.com/utracetools/frametree/pkg/tree"
)

// Frame duration thresholds for the frame_performance annotation,
// roughly 30 and 60 fps budgets.
const (
	poorFrameThreshold       = 0.033
	acceptableFrameThreshold = 0.016
)

// DefaultFrameProcessor drops frames shorter than MinDuration and, when
// MaxFrames > 0, all frames with index >= MaxFrames. Retained frame
// roots get index, fps and a frame performance grade.
type DefaultFrameProcessor struct {
	minDuration float64
	maxFrames   uint64
}

var _ FrameProcessor = (*DefaultFrameProcessor)(nil)

func NewDefaultFrameProcessor(minDuration float64, maxFrames uint64) *DefaultFrameProcessor {
	return &DefaultFrameProcessor{
		minDuration: minDuration,
		maxFrames:   maxFrames,
	}
}

func (p *DefaultFrameProcessor) ShouldIncludeFrame(root *tree.Node, frameIndex uint64) bool {
	if p.maxFrames > 0 && frameIndex >= p.maxFrames {
		return false
	}
	return root.Duration >= p.minDuration
}

func (p *DefaultFrameProcessor) ProcessFrame(root *tree.Node, frameIndex uint64) *tree.Node {
	if root.Metadata == nil {
		root.Metadata = make(map[string]any, 3)
	}
	root.Metadata["frame_index"] = frameIndex

	fps := 0.0
	if root.Duration > 0 {
		fps = 1.0 / root.Duration
	}
	root.Metadata["fps"] = fps

	switch {
	case root.Duration > poorFrameThreshold:
		root.Metadata["frame_performance"] = "poor"
	case root.Duration > acceptableFrameThreshold:
		root.Metadata["frame_performance"] = "acceptable"
	default:
		root.Metadata["frame_performance"] = "good"
	}
	return root
}
