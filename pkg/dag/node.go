package dag

import (
	"sync"

	"github.com/narodnik/mvc-ircd/pkg/types"
)

// Node wraps one event in the graph. Only the current root has a nil
// parent. The child list is append-only and ordered by arrival time; arrival
// order must never be taken for causal order.
//
// Every node is owned by the store index and referenced, not owned, by its
// parent's child list and by query results. The child list carries its own
// lock so reorganization passes can append under different parents without
// contention; traversal only ever follows the parent to child direction, so
// no lock ordering cycle can form.
type Node struct {
	id     types.Hash
	event  types.Event
	parent *Node

	childrenLock sync.Mutex
	children     []*Node
}

// ID returns the content address of the wrapped event.
func (n *Node) ID() types.Hash {
	return n.id
}

// Event returns the wrapped event.
func (n *Node) Event() types.Event {
	return n.event
}

// Parent returns the parent node, nil only for the current root.
func (n *Node) Parent() *Node {
	return n.parent
}

// Children returns a snapshot of the child list. The snapshot is internally
// consistent but may be stale by the time the caller reads it; that is
// tolerated by the fork-choice traversal.
func (n *Node) Children() []*Node {
	n.childrenLock.Lock()
	defer n.childrenLock.Unlock()

	children := make([]*Node, len(n.children))
	copy(children, n.children)
	return children
}

func (n *Node) appendChild(child *Node) {
	n.childrenLock.Lock()
	defer n.childrenLock.Unlock()

	n.children = append(n.children, child)
}
