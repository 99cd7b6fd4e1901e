package trace

import (
	"context"

	"github.com/GriffinCanCode/AgentOS/monitor/internal/shared/agenterr"
)

// Context keys for transaction propagation
type contextKey string

const transactionKey contextKey = "transaction"

// NewContext returns a context carrying txn as the active transaction
func NewContext(ctx context.Context, txn *Transaction) context.Context {
	return context.WithValue(ctx, transactionKey, txn)
}

// FromContext returns the active transaction, or nil
func FromContext(ctx context.Context) *Transaction {
	if txn, ok := ctx.Value(transactionKey).(*Transaction); ok {
		return txn
	}
	return nil
}

// Enter opens a node named name under the transaction's current stack top
func Enter(txn *Transaction, name string) (*Node, error) {
	if txn == nil {
		return nil, agenterr.Usage("enter_trace", agenterr.ErrNoTransaction)
	}
	if txn.state != StateRunning {
		return nil, agenterr.Usage("enter_trace", agenterr.ErrNotRunning)
	}
	return txn.push(name), nil
}

// Exit closes node, which must be the innermost open node of its transaction
func Exit(node *Node) error {
	if node == nil || node.txn == nil {
		return agenterr.Usage("exit_trace", agenterr.ErrNoTransaction)
	}
	txn := node.txn
	if txn.state != StateRunning {
		return agenterr.Usage("exit_trace", agenterr.ErrNotRunning)
	}
	if node.closed {
		return agenterr.Usage("exit_trace", agenterr.ErrNodeClosed)
	}
	// The root is closed by End.
	if node != txn.top() || node == txn.root {
		return agenterr.Usage("exit_trace", agenterr.ErrBrokenNesting)
	}
	txn.pop()
	return nil
}

// Scope is an open trace node bound to the transaction in a context.
// End must be called exactly once, normally with defer.
type Scope struct {
	node *Node
}

// StartScope opens a node in the transaction carried by ctx
func StartScope(ctx context.Context, name string) (*Scope, error) {
	node, err := Enter(FromContext(ctx), name)
	if err != nil {
		return nil, err
	}
	return &Scope{node: node}, nil
}

// Node returns the node opened by the scope
func (s *Scope) Node() *Node {
	return s.node
}

// End closes the scope's node
func (s *Scope) End() error {
	return Exit(s.node)
}

// Do runs fn inside a scope named name. The node is closed on every exit
// path, including a panic, and errors from fn are returned unchanged.
func Do(ctx context.Context, name string, fn func(context.Context) error) (err error) {
	scope, err := StartScope(ctx, name)
	if err != nil {
		return err
	}
	defer func() {
		if exitErr := scope.End(); exitErr != nil && err == nil {
			err = exitErr
		}
	}()
	return fn(ctx)
}
