package tree

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func node(name string, start, end float64, depth int) *Node {
	return &Node{
		TimerName: name,
		StartTime: start,
		EndTime:   end,
		Duration:  end - start,
		Depth:     depth,
		Children:  []*Node{},
	}
}

// dfsNodes is a valid DFS-ordered frame: each node immediately
// followed by its descendants, intervals nested in their parents.
func dfsNodes() []*Node {
	return []*Node{
		node("root", 0.0, 0.016, 0),
		node("a", 0.001, 0.008, 1),
		node("a1", 0.002, 0.004, 2),
		node("a2", 0.005, 0.007, 2),
		node("b", 0.009, 0.015, 1),
		node("b1", 0.010, 0.014, 2),
	}
}

func childNames(n *Node) []string {
	names := make([]string, 0, len(n.Children))
	for _, c := range n.Children {
		names = append(names, c.TimerName)
	}
	return names
}

func TestStackBuilder_Structure(t *testing.T) {
	root, err := NewStackBuilder().Build(dfsNodes())
	require.NoError(t, err)
	require.NotNil(t, root)

	require.Equal(t, "root", root.TimerName)
	require.Equal(t, []string{"a", "b"}, childNames(root))
	require.Equal(t, []string{"a1", "a2"}, childNames(root.Children[0]))
	require.Equal(t, []string{"b1"}, childNames(root.Children[1]))
	require.Equal(t, 6, root.Count())
}

func TestStackBuilder_DepthGap(t *testing.T) {
	// A depth jump from 0 to 2 still attaches to the deepest open
	// ancestor.
	root, err := NewStackBuilder().Build([]*Node{
		node("root", 0.0, 0.016, 0),
		node("deep", 0.001, 0.002, 2),
	})
	require.NoError(t, err)
	require.Equal(t, []string{"deep"}, childNames(root))
}

func TestStackBuilder_NoRoot(t *testing.T) {
	root, err := NewStackBuilder().Build([]*Node{
		node("orphan", 0.0, 0.001, 2),
	})
	require.NoError(t, err)
	require.Nil(t, root)
}

func TestStackBuilder_Empty(t *testing.T) {
	root, err := NewStackBuilder().Build(nil)
	require.NoError(t, err)
	require.Nil(t, root)
}

func TestStackBuilder_DepthLimit(t *testing.T) {
	_, err := NewStackBuilder().Build([]*Node{
		node("root", 0.0, 0.016, 0),
		node("way-too-deep", 0.001, 0.002, MaxDepth+1),
	})
	require.ErrorIs(t, err, ErrDepthLimit)
}

func TestIntervalBuilder_Structure(t *testing.T) {
	root, err := NewIntervalBuilder().Build(dfsNodes())
	require.NoError(t, err)
	require.NotNil(t, root)

	require.Equal(t, "root", root.TimerName)
	require.Equal(t, []string{"a", "b"}, childNames(root))
	require.Equal(t, []string{"a1", "a2"}, childNames(root.Children[0]))
}

func TestIntervalBuilder_OrderIndependent(t *testing.T) {
	nodes := dfsNodes()
	// Shuffle deterministically: reverse.
	for i, j := 0, len(nodes)-1; i < j; i, j = i+1, j-1 {
		nodes[i], nodes[j] = nodes[j], nodes[i]
	}

	root, err := NewIntervalBuilder().Build(nodes)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, childNames(root))
	require.Equal(t, 6, root.Count())
}

func TestIntervalBuilder_EscapingChildDropped(t *testing.T) {
	// Starts inside the parent window but ends outside it: must be
	// dropped, not misattached.
	root, err := NewIntervalBuilder().Build([]*Node{
		node("root", 0.0, 0.010, 0),
		node("escaper", 0.008, 0.020, 1),
		node("inside", 0.001, 0.002, 1),
	})
	require.NoError(t, err)
	require.Equal(t, []string{"inside"}, childNames(root))
}

func TestIntervalBuilder_ExactEndKept(t *testing.T) {
	root, err := NewIntervalBuilder().Build([]*Node{
		node("root", 0.0, 0.010, 0),
		node("tail", 0.009, 0.010, 1),
	})
	require.NoError(t, err)
	require.Equal(t, []string{"tail"}, childNames(root))
}

func TestIntervalBuilder_NoRoot(t *testing.T) {
	root, err := NewIntervalBuilder().Build([]*Node{
		node("orphan", 0.0, 0.001, 1),
	})
	require.NoError(t, err)
	require.Nil(t, root)
}

// The two builders must agree on valid DFS-ordered input.
func TestBuilders_CrossCheck(t *testing.T) {
	stackRoot, err := NewStackBuilder().Build(dfsNodes())
	require.NoError(t, err)
	intervalRoot, err := NewIntervalBuilder().Build(dfsNodes())
	require.NoError(t, err)

	var compare func(t *testing.T, a, b *Node)
	compare = func(t *testing.T, a, b *Node) {
		require.Equal(t, a.TimerName, b.TimerName)
		require.Equal(t, a.StartTime, b.StartTime)
		require.Equal(t, a.EndTime, b.EndTime)
		require.Equal(t, childNames(a), childNames(b))
		for i := range a.Children {
			compare(t, a.Children[i], b.Children[i])
		}
	}
	compare(t, stackRoot, intervalRoot)
}
