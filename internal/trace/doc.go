/*
Package trace records per-transaction trees of timed work.

# Overview

A Transaction owns a LIFO stack of open Nodes. Start opens the root node,
Enter opens a child of the innermost open node and Exit closes it again.
Nodes must close in strict reverse order; anything else is a UsageError
from the agenterr package. A transaction is confined to the goroutine that
owns the unit of work, so no locking is performed.

# Usage

	txn := trace.NewTransaction("OtherTransaction/job")
	_ = txn.Start()
	ctx = trace.NewContext(ctx, txn)

	// Scoped form
	scope, err := trace.StartScope(ctx, "load")
	if err == nil {
		defer scope.End()
	}

	// Closure form, closed on every exit path
	err = trace.Do(ctx, "store", func(ctx context.Context) error {
		return store(ctx)
	})

	// Wrapped form with a naming strategy
	fetch := trace.Wrap(fetchUser, trace.ByArg(func(id string) string {
		return "fetch/" + id
	}))

	_ = txn.End()

Instrumentation for gin and gRPC servers begins and ends one transaction per
request and passes it to a Recorder, typically the harvester.
*/
package trace
