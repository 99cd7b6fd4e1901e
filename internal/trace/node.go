package trace

import "time"

// Node is one timed, named unit of work inside a transaction.
// Children are kept in the order they were opened.
type Node struct {
	name     string
	start    time.Time
	end      time.Time
	closed   bool
	children []*Node
	parent   *Node
	txn      *Transaction
}

// Name returns the node name
func (n *Node) Name() string {
	return n.name
}

// Start returns when the node was opened
func (n *Node) Start() time.Time {
	return n.start
}

// End returns when the node was closed, or the zero time while open
func (n *Node) End() time.Time {
	return n.end
}

// Closed reports whether the node has been exited
func (n *Node) Closed() bool {
	return n.closed
}

// Parent returns the enclosing node, nil for the root
func (n *Node) Parent() *Node {
	return n.parent
}

// Transaction returns the transaction the node was recorded in
func (n *Node) Transaction() *Transaction {
	return n.txn
}

// Children returns a copy of the direct children in call order
func (n *Node) Children() []*Node {
	out := make([]*Node, len(n.children))
	copy(out, n.children)
	return out
}

// Duration returns end minus start, zero while the node is open
func (n *Node) Duration() time.Duration {
	if !n.closed {
		return 0
	}
	return n.end.Sub(n.start)
}

// ExclusiveDuration returns the time spent in the node itself, excluding direct children
func (n *Node) ExclusiveDuration() time.Duration {
	self := n.Duration()
	for _, child := range n.children {
		self -= child.Duration()
	}
	if self < 0 {
		return 0
	}
	return self
}

// Walk visits n and its descendants depth-first in call order
func (n *Node) Walk(fn func(node *Node, depth int)) {
	n.walk(fn, 0)
}

func (n *Node) walk(fn func(*Node, int), depth int) {
	fn(n, depth)
	for _, child := range n.children {
		child.walk(fn, depth+1)
	}
}
