// Package agenterr defines the error taxonomy shared by the trace recorder and
// the collector client.
//
// Error Kinds:
//   - UsageError: broken trace nesting, or a trace/session operation issued
//     in the wrong lifecycle state
//   - ProtocolError: malformed or incomplete collector response
//   - TransportError: non-2xx HTTP status from the collector
//   - RemoteError: structured exception reported by the collector
//
// All kinds support errors.As, and UsageError wraps a sentinel reason that
// can be matched with errors.Is:
//
//	if errors.Is(err, agenterr.ErrNoTransaction) {
//	    // caller chose to ignore untraced work
//	}
package agenterr
