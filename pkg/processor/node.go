package processor

import (
	"github.com/utracetools/frametree/pkg/tree"
)

// Duration thresholds for the performance_level annotation, seconds.
const (
	slowNodeThreshold   = 0.01
	normalNodeThreshold = 0.001
)

// DefaultNodeProcessor drops nodes shorter than MinDuration or in an
// excluded category, and tags the rest with a coarse performance
// level.
type DefaultNodeProcessor struct {
	minDuration float64
	excluded    map[string]struct{}
}

var _ NodeProcessor = (*DefaultNodeProcessor)(nil)

func NewDefaultNodeProcessor(minDuration float64, excludedCategories []string) *DefaultNodeProcessor {
	excluded := make(map[string]struct{}, len(excludedCategories))
	for _, category := range excludedCategories {
		excluded[category] = struct{}{}
	}
	return &DefaultNodeProcessor{
		minDuration: minDuration,
		excluded:    excluded,
	}
}

func (p *DefaultNodeProcessor) ShouldIncludeNode(node *tree.Node) bool {
	if node.Duration < p.minDuration {
		return false
	}
	if category, ok := node.Metadata["category"].(string); ok {
		if _, drop := p.excluded[category]; drop {
			return false
		}
	}
	return true
}

func (p *DefaultNodeProcessor) ProcessNode(node *tree.Node) *tree.Node {
	if node.Metadata == nil {
		node.Metadata = make(map[string]any, 1)
	}
	switch {
	case node.Duration > slowNodeThreshold:
		node.Metadata["performance_level"] = "slow"
	case node.Duration > normalNodeThreshold:
		node.Metadata["performance_level"] = "normal"
	default:
		node.Metadata["performance_level"] = "fast"
	}
	return node
}
