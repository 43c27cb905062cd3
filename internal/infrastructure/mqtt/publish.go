package mqtt

import (
	"context"
	"fmt"
	"strings"
)

// Maximum payload size for MQTT messages (1MB).
// This prevents resource exhaustion and aligns with typical broker limits.
const maxPayloadSize = 1 << 20 // 1MB

// Publish sends payload to topic with the configured QoS, not retained.
//
// Sparkplug node messages are never retained; consumers rely on NBIRTH to
// learn the current state.
//
// Parameters:
//   - ctx: Bounds the wait for the broker acknowledgment (QoS 1 and 2)
//   - topic: Concrete topic, no wildcards
//   - payload: Encoded Sparkplug payload, max 1MB
//
// Returns:
//   - error: ErrInvalidTopic, ErrNotConnected, or ErrPublishFailed wrapping
//     the cause
func (c *Client) Publish(ctx context.Context, topic string, payload []byte) error {
	if topic == "" || strings.ContainsAny(topic, "+#") {
		return fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.optMu.Lock()
	client := c.client
	c.optMu.Unlock()

	token := client.Publish(topic, byte(c.cfg.QoS), false, payload)
	if err := waitToken(ctx, token, defaultPublishTimeout); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}
