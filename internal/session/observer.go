package session

import (
	"context"
	"time"

	"github.com/nerrad567/spbnode/internal/sparkplug"
)

// Message describes a payload the session has published.
type Message struct {
	SessionID string
	Type      sparkplug.MessageType
	Topic     string
	Seq       uint8
	Payload   []byte
	// Values holds the normalized metric values carried by the payload.
	// It is nil for NDEATH.
	Values sparkplug.Values
	Time   time.Time
}

// Observer is notified after every successful publish.
//
// Observers run synchronously on the publishing goroutine and should return
// quickly. A returned error is logged and otherwise ignored.
type Observer interface {
	OnPublish(ctx context.Context, msg Message) error
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, msg Message) error

// OnPublish calls f(ctx, msg).
func (f ObserverFunc) OnPublish(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}
