// Package processor holds the pluggable per-frame pipeline: timer-name
// normalization, node-level filtering and frame-level filtering.
// Implementations are injected into the Pipeline, so policies change
// without touching tree building or scheduling.
package processor

import (
	"github.com/utracetools/frametree/pkg/tree"
)

// NameProcessor rewrites raw timer names and derives metadata from
// them. Both methods must be pure and deterministic; ProcessName never
// returns an empty string.
type NameProcessor interface {
	ProcessName(timerName string, timerID int64, depth int) string
	ExtractMetadata(timerName string, timerID int64) map[string]any
}

// NodeProcessor decides per-node inclusion and annotates retained
// nodes. Excluding a node drops its whole subtree.
type NodeProcessor interface {
	ShouldIncludeNode(node *tree.Node) bool
	ProcessNode(node *tree.Node) *tree.Node
}

// FrameProcessor decides per-frame inclusion before any node walk and
// annotates retained frame roots.
type FrameProcessor interface {
	ShouldIncludeFrame(root *tree.Node, frameIndex uint64) bool
	ProcessFrame(root *tree.Node, frameIndex uint64) *tree.Node
}

// FilterTree walks the tree once, dropping every node (and subtree)
// the processor rejects and annotating the rest. Children of a
// retained parent are each tested independently; children of a dropped
// node are never reattached. Returns nil when the root itself is
// dropped.
func FilterTree(root *tree.Node, p NodeProcessor) *tree.Node {
	if !p.ShouldIncludeNode(root) {
		return nil
	}

	processed := p.ProcessNode(root)

	filtered := make([]*tree.Node, 0, len(root.Children))
	for _, child := range root.Children {
		if kept := FilterTree(child, p); kept != nil {
			filtered = append(filtered, kept)
		}
	}
	processed.Children = filtered
	return processed
}
