package trace

import (
	"time"

	"github.com/GriffinCanCode/AgentOS/monitor/internal/shared/agenterr"
	"github.com/google/uuid"
)

// State is the lifecycle state of a transaction
type State int

const (
	StateNotStarted State = iota
	StateRunning
	StateEnded
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not-started"
	case StateRunning:
		return "running"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Transaction owns the trace stack for one unit of monitored work.
// It must only be used from the goroutine that owns that work.
type Transaction struct {
	id    string
	name  string
	state State
	stack []*Node
	root  *Node
	attrs map[string]string
	now   func() time.Time
	onEnd []func(*Transaction)
}

// Option configures a transaction
type Option func(*Transaction)

// WithClock replaces time.Now, mainly for tests
func WithClock(now func() time.Time) Option {
	return func(t *Transaction) {
		t.now = now
	}
}

// OnEnd registers a callback run after the transaction ends successfully
func OnEnd(fn func(*Transaction)) Option {
	return func(t *Transaction) {
		t.onEnd = append(t.onEnd, fn)
	}
}

// NewTransaction creates a transaction in the NotStarted state
func NewTransaction(name string, opts ...Option) *Transaction {
	t := &Transaction{
		id:    uuid.NewString(),
		name:  name,
		state: StateNotStarted,
		attrs: make(map[string]string),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// ID returns the opaque transaction identity
func (t *Transaction) ID() string {
	return t.id
}

// Name returns the transaction name
func (t *Transaction) Name() string {
	return t.name
}

// SetName renames the transaction, e.g. once a router has matched
func (t *Transaction) SetName(name string) {
	t.name = name
	if t.root != nil {
		t.root.name = name
	}
}

// State returns the lifecycle state
func (t *Transaction) State() State {
	return t.state
}

// Root returns the root node, nil before Start
func (t *Transaction) Root() *Node {
	return t.root
}

// Depth returns the number of open nodes, including the root
func (t *Transaction) Depth() int {
	return len(t.stack)
}

// SetAttribute records a string attribute reported with the transaction
func (t *Transaction) SetAttribute(key, value string) {
	t.attrs[key] = value
}

// Attributes returns a copy of the recorded attributes
func (t *Transaction) Attributes() map[string]string {
	out := make(map[string]string, len(t.attrs))
	for k, v := range t.attrs {
		out[k] = v
	}
	return out
}

// Start moves the transaction to Running and opens the root node
func (t *Transaction) Start() error {
	if t.state != StateNotStarted {
		return agenterr.Usage("start_transaction", agenterr.ErrAlreadyStarted)
	}
	t.state = StateRunning
	t.root = t.push(t.name)
	return nil
}

// End closes the root node and moves the transaction to Ended.
// Every node opened with Enter must have been exited first.
func (t *Transaction) End() error {
	if t.state != StateRunning {
		return agenterr.Usage("end_transaction", agenterr.ErrNotRunning)
	}
	if len(t.stack) != 1 {
		return agenterr.Usage("end_transaction", agenterr.ErrOpenNodes)
	}
	t.pop()
	t.state = StateEnded
	for _, fn := range t.onEnd {
		fn(t)
	}
	return nil
}

func (t *Transaction) top() *Node {
	if len(t.stack) == 0 {
		return nil
	}
	return t.stack[len(t.stack)-1]
}

// push opens a node under the current stack top, or as root on an empty stack
func (t *Transaction) push(name string) *Node {
	node := &Node{
		name:  name,
		start: t.now(),
		txn:   t,
	}
	if parent := t.top(); parent != nil {
		node.parent = parent
		parent.children = append(parent.children, node)
	}
	t.stack = append(t.stack, node)
	return node
}

// unwind closes every open node above the root, innermost first
func (t *Transaction) unwind() {
	if t.state != StateRunning {
		return
	}
	for len(t.stack) > 1 {
		t.pop()
	}
}

func (t *Transaction) pop() *Node {
	node := t.top()
	node.end = t.now()
	if node.end.Before(node.start) {
		node.end = node.start
	}
	node.closed = true
	t.stack = t.stack[:len(t.stack)-1]
	return node
}
