package session

import "context"

// Transport is the connection a Session publishes through.
//
// SetCredentials and SetLastWill are called before Connect and take effect
// when the connection is opened. Implementations must not auto-reconnect:
// a new connection requires a new birth certificate and therefore a new
// Session.
type Transport interface {
	SetCredentials(username, password string)
	SetLastWill(topic string, payload []byte)
	Connect(ctx context.Context) error
	Publish(ctx context.Context, topic string, payload []byte) error
	Disconnect() error
}
