package agenterr

import (
	"errors"
	"fmt"
	"strings"
)

// Usage error reasons
var (
	ErrNoTransaction    = errors.New("no active transaction")
	ErrNotRunning       = errors.New("transaction not running")
	ErrAlreadyStarted   = errors.New("transaction already started")
	ErrBrokenNesting    = errors.New("trace exited out of order")
	ErrNodeClosed       = errors.New("trace node already closed")
	ErrOpenNodes        = errors.New("transaction has open trace nodes")
	ErrNotEnded         = errors.New("transaction not ended")
	ErrNotConnected     = errors.New("collector session not connected")
	ErrAlreadyConnected = errors.New("collector session already connected")
)

// UsageError reports an operation issued against the wrong state.
type UsageError struct {
	Op  string
	Err error
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UsageError) Unwrap() error {
	return e.Err
}

// Usage creates a UsageError for the given operation and reason
func Usage(op string, reason error) error {
	return &UsageError{Op: op, Err: reason}
}

// ProtocolError reports a collector response that could not be understood.
type ProtocolError struct {
	Method string
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Method, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Method, e.Reason)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// TransportError reports a non-2xx HTTP status.
type TransportError struct {
	Method string
	Status int
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s failed: status code %d", e.Method, e.Status)
}

// RemoteError is an exception raised by the collector.
type RemoteError struct {
	Method  string
	Kind    string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Method, e.Kind, e.Message)
}

// IsForceRestart reports whether the collector asked the agent to reconnect
func (e *RemoteError) IsForceRestart() bool {
	return strings.HasSuffix(e.Kind, "ForceRestartException")
}

// IsForceDisconnect reports whether the collector asked the agent to stop reporting
func (e *RemoteError) IsForceDisconnect() bool {
	return strings.HasSuffix(e.Kind, "ForceDisconnectException")
}

// NewRemote builds a RemoteError, expanding the collector's error type
func NewRemote(method, errorType, message string) *RemoteError {
	return &RemoteError{Method: method, Kind: ExpandKind(errorType), Message: message}
}

// AsRemote extracts a RemoteError from err
func AsRemote(err error) (*RemoteError, bool) {
	var remote *RemoteError
	ok := errors.As(err, &remote)
	return remote, ok
}
