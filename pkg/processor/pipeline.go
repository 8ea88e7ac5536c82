package processor

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/utracetools/frametree/pkg/trace"
	"github.com/utracetools/frametree/pkg/tree"
)

// Result is the outcome of processing one frame. Exactly one Result is
// produced per segmented frame, included or not, so the scheduler's
// reorder buffer always advances. Data holds the serialized tree for
// included frames and is nil otherwise.
type Result struct {
	Index         uint64
	Included      bool
	OriginalNodes int
	FilteredNodes int
	ParseTime     time.Duration
	ConvertTime   time.Duration
	Data          []byte

	// Err is set when the frame failed to process; such frames are
	// excluded but still accounted for.
	Err error
}

// Pipeline runs one frame end to end: record conversion, tree
// reconstruction, frame filter, node walk, serialization. It holds no
// per-frame state and is safe to share across workers as long as the
// injected processors are.
type Pipeline struct {
	builder tree.Builder
	names   NameProcessor
	nodes   NodeProcessor
	frames  FrameProcessor
}

func NewPipeline(builder tree.Builder, names NameProcessor, nodes NodeProcessor, frames FrameProcessor) *Pipeline {
	return &Pipeline{
		builder: builder,
		names:   names,
		nodes:   nodes,
		frames:  frames,
	}
}

func (p *Pipeline) ProcessFrame(frame *trace.FrameRows) *Result {
	res := &Result{
		Index:         frame.Index,
		OriginalNodes: len(frame.Rows),
	}

	parseStart := time.Now()
	nodes := make([]*tree.Node, 0, len(frame.Rows))
	for _, rec := range frame.Rows {
		nodes = append(nodes, p.newNode(rec))
	}
	root, err := p.builder.Build(nodes)
	res.ParseTime = time.Since(parseStart)
	if err != nil {
		res.Err = fmt.Errorf("build frame %d: %w", frame.Index, err)
		return res
	}
	if root == nil {
		// No valid depth-0 root; defined empty result.
		return res
	}

	if !p.frames.ShouldIncludeFrame(root, frame.Index) {
		return res
	}

	convertStart := time.Now()
	processed := p.frames.ProcessFrame(root, frame.Index)
	filtered := FilterTree(processed, p.nodes)
	if filtered == nil {
		res.ConvertTime = time.Since(convertStart)
		return res
	}

	data, err := json.Marshal(filtered)
	res.ConvertTime = time.Since(convertStart)
	if err != nil {
		res.Err = fmt.Errorf("serialize frame %d: %w", frame.Index, err)
		return res
	}

	res.Included = true
	res.FilteredNodes = filtered.Count()
	res.Data = data
	return res
}

func (p *Pipeline) newNode(rec trace.EventRecord) *tree.Node {
	return &tree.Node{
		TimerID:   rec.TimerID,
		TimerName: p.names.ProcessName(rec.TimerName, rec.TimerID, rec.Depth),
		StartTime: rec.StartTime,
		EndTime:   rec.EndTime,
		Duration:  rec.Duration,
		Depth:     rec.Depth,
		Children:  []*tree.Node{},
		Metadata:  p.names.ExtractMetadata(rec.TimerName, rec.TimerID),
	}
}
