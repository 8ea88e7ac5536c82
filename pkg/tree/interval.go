package tree

import (
	"fmt"
	"sort"
)

// IntervalBuilder reconstructs the tree from time containment instead
// of input order: rows are grouped by depth, each level is sorted by
// start time, and a parent at level L claims the level-(L+1) candidates
// whose whole interval lies inside its own. A candidate that starts
// inside a parent but ends outside it is dropped rather than
// misattached. O(n log n), order-independent.
type IntervalBuilder struct{}

var _ Builder = (*IntervalBuilder)(nil)

func NewIntervalBuilder() *IntervalBuilder {
	return &IntervalBuilder{}
}

func (b *IntervalBuilder) Build(nodes []*Node) (*Node, error) {
	if len(nodes) == 0 {
		return nil, nil
	}

	maxDepth := 0
	for _, node := range nodes {
		if node.Depth > MaxDepth {
			return nil, fmt.Errorf("%w: %d", ErrDepthLimit, node.Depth)
		}
		if node.Depth > maxDepth {
			maxDepth = node.Depth
		}
	}

	levels := make([][]*Node, maxDepth+1)
	for _, node := range nodes {
		levels[node.Depth] = append(levels[node.Depth], node)
	}
	if len(levels[0]) == 0 {
		return nil, nil
	}
	for _, level := range levels {
		sort.SliceStable(level, func(i, j int) bool {
			return level[i].StartTime < level[j].StartTime
		})
	}

	root := levels[0][0]
	parents := []*Node{root}

	for depth := 0; depth < maxDepth; depth++ {
		candidates := levels[depth+1]
		if len(candidates) == 0 {
			break
		}

		next := make([]*Node, 0, len(candidates))
		for _, parent := range parents {
			lo := sort.Search(len(candidates), func(i int) bool {
				return candidates[i].StartTime >= parent.StartTime
			})
			hi := sort.Search(len(candidates), func(i int) bool {
				return candidates[i].StartTime > parent.EndTime
			})

			for i := lo; i < hi; i++ {
				child := candidates[i]
				if child.EndTime > parent.EndTime {
					continue
				}
				parent.AddChild(child)
				next = append(next, child)
			}
		}
		parents = next
	}

	return root, nil
}
