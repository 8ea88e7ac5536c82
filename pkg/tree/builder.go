package tree

import (
	"errors"
	"fmt"
)

// MaxDepth bounds event nesting. Serialization recurses over the tree,
// so untrusted depth values must not be allowed through.
const MaxDepth = 1024

var ErrDepthLimit = errors.New("tree: event depth exceeds limit")

// Builder reconstructs one rooted tree from a frame's nodes, given in
// input order with depths already set. A nil root with a nil error is
// the defined empty result for a group without a valid depth-0 root;
// callers exclude such frames and carry on.
type Builder interface {
	Build(nodes []*Node) (*Node, error)
}

// StackBuilder attaches nodes with a stack of open ancestors. O(n),
// and requires DFS order: every node immediately followed by its
// descendants.
type StackBuilder struct{}

var _ Builder = (*StackBuilder)(nil)

func NewStackBuilder() *StackBuilder {
	return &StackBuilder{}
}

func (b *StackBuilder) Build(nodes []*Node) (*Node, error) {
	var root *Node
	stack := make([]*Node, 0, 16)

	for _, node := range nodes {
		if node.Depth > MaxDepth {
			return nil, fmt.Errorf("%w: %d", ErrDepthLimit, node.Depth)
		}

		if node.Depth == 0 {
			root = node
			stack = append(stack[:0], node)
			continue
		}

		for len(stack) > node.Depth {
			stack = stack[:len(stack)-1]
		}
		if len(stack) > 0 {
			stack[len(stack)-1].AddChild(node)
		}
		stack = append(stack, node)
	}

	return root, nil
}
