package dag

import "bytes"

// candidate is a leaf reachable from the current root together with its
// distance from the root.
type candidate struct {
	depth int
	node  *Node
}

// beats reports whether c wins the fork-choice against other. Greater depth
// wins; equal depth is resolved by the strictly greater timestamp; a full
// tie on depth and timestamp falls back to the lexicographically greater
// event id. Event ids are distinct, so the ordering is total and every
// replica holding the same events picks the same head.
func (c candidate) beats(other candidate) bool {
	if c.depth != other.depth {
		return c.depth > other.depth
	}
	if c.node.event.Timestamp != other.node.event.Timestamp {
		return c.node.event.Timestamp > other.node.event.Timestamp
	}
	return bytes.Compare(c.node.id.Bytes(), other.node.id.Bytes()) > 0
}

// Head returns the canonical head: the leaf reachable from the current root
// via the greatest number of edges, ties broken as described on beats.
//
// The traversal is an explicit-stack depth-first walk, safe for graphs of
// unbounded depth. Each child list is read under that node's own lock; no
// global snapshot is taken, concurrent attachment elsewhere in the graph is
// tolerated.
func (s *Store) Head() *Node {
	root := s.Root()

	best := candidate{depth: 0, node: root}
	stack := []candidate{{depth: 0, node: root}}

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		children := current.node.Children()
		if len(children) == 0 {
			if current.beats(best) {
				best = current
			}
			continue
		}

		for _, child := range children {
			stack = append(stack, candidate{depth: current.depth + 1, node: child})
		}
	}

	return best.node
}
