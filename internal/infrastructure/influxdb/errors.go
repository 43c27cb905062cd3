package influxdb

import "errors"

// Errors returned by the session mirror. Point writes themselves are
// asynchronous; their failures reach the error callback installed by
// Connect, never these values.
var (
	// ErrDisabled is returned by Connect when influxdb.enabled is false.
	// Callers treat it as "no mirror" rather than a startup failure.
	ErrDisabled = errors.New("influxdb: mirror disabled")

	// ErrConnectionFailed wraps a failed or unhealthy startup ping.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrNotConnected is returned once the client has been closed.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrNotNodeTopic rejects a session message whose topic does not name a
	// Sparkplug edge node.
	ErrNotNodeTopic = errors.New("influxdb: not a sparkplug node topic")
)
