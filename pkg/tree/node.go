package tree

// Node is one timer invocation in a frame's call tree. Children are
// kept in encounter order; Metadata is attached by processors and
// omitted from JSON when empty.
type Node struct {
	TimerID   int64          `json:"timer_id"`
	TimerName string         `json:"timer_name"`
	StartTime float64        `json:"start_time"`
	EndTime   float64        `json:"end_time"`
	Duration  float64        `json:"duration"`
	Depth     int            `json:"depth"`
	Children  []*Node        `json:"children"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Count returns the number of nodes in the subtree rooted at n,
// including n itself.
func (n *Node) Count() int {
	count := 1
	for _, child := range n.Children {
		count += child.Count()
	}
	return count
}

func (n *Node) AddChild(child *Node) {
	n.Children = append(n.Children, child)
}
