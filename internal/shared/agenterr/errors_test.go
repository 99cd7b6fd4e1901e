package agenterr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandKind(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"builtin", "KeyError", "exceptions.KeyError"},
		{"builtin runtime", "RuntimeError", "exceptions.RuntimeError"},
		{"agent control", "ForceRestartException", "NewRelic::Agent::ForceRestartException"},
		{"already qualified", "NewRelic::Agent::LicenseException", "NewRelic::Agent::LicenseException"},
		{"dotted", "builtins.KeyError", "builtins.KeyError"},
		{"unknown passes through", "SomethingOdd", "SomethingOdd"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExpandKind(tt.input))
		})
	}
}

func TestUsageErrorUnwrap(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", Usage("exit_trace", ErrBrokenNesting))

	assert.True(t, errors.Is(err, ErrBrokenNesting))
	assert.False(t, errors.Is(err, ErrNoTransaction))

	var usage *UsageError
	require.True(t, errors.As(err, &usage))
	assert.Equal(t, "exit_trace", usage.Op)
	assert.Contains(t, err.Error(), "trace exited out of order")
}

func TestRemoteErrorClassification(t *testing.T) {
	restart := NewRemote("metric_data", "ForceRestartException", "reconnect")
	assert.True(t, restart.IsForceRestart())
	assert.False(t, restart.IsForceDisconnect())

	disconnect := NewRemote("metric_data", "NewRelic::Agent::ForceDisconnectException", "bye")
	assert.True(t, disconnect.IsForceDisconnect())

	remote, ok := AsRemote(fmt.Errorf("harvest: %w", restart))
	require.True(t, ok)
	assert.Equal(t, "NewRelic::Agent::ForceRestartException", remote.Kind)

	_, ok = AsRemote(errors.New("plain"))
	assert.False(t, ok)
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "connect failed: status code 500", (&TransportError{Method: "connect", Status: 500}).Error())
	assert.Equal(t, "connect: missing agent run id", (&ProtocolError{Method: "connect", Reason: "missing agent run id"}).Error())

	cause := errors.New("bad json")
	perr := &ProtocolError{Method: "connect", Reason: "invalid response body", Err: cause}
	assert.ErrorIs(t, perr, cause)
}
