package session

import (
	"errors"
	"fmt"
)

// Domain-specific errors for session operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotConnected is returned by Publish and Disconnect outside the Live state.
	ErrNotConnected = errors.New("session: not connected")

	// ErrInvalidState is returned by Connect when the session is not in the
	// Disconnected state. Sessions are single-use.
	ErrInvalidState = errors.New("session: invalid state for operation")
)

// TransportError wraps a failure reported by the transport.
// The session is Failed after a TransportError; the caller must construct a
// new session to reconnect.
type TransportError struct {
	// Op is the transport operation that failed: connect, publish or disconnect.
	Op string
	// Topic is set for publish failures.
	Topic string
	Err   error
}

func (e *TransportError) Error() string {
	if e.Topic != "" {
		return fmt.Sprintf("session: transport %s %s: %v", e.Op, e.Topic, e.Err)
	}
	return fmt.Sprintf("session: transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
