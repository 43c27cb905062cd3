package influxdb

import (
	"context"
	"fmt"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/spbnode/internal/session"
	"github.com/nerrad567/spbnode/internal/sparkplug"
)

// Measurement names written by this package.
const (
	// MeasurementMetrics holds one field per metric of an NBIRTH or NDATA payload.
	MeasurementMetrics = "sparkplug_metrics"

	// MeasurementNodeState records node lifecycle transitions (online true/false).
	MeasurementNodeState = "sparkplug_node_state"
)

// MetricPoint builds the point for the metric values of one payload.
//
// Tags: group, node, message_type
// Fields: one per metric, plus seq
//
// Parameters:
//   - topics: Node identity used for tagging
//   - msgType: NBIRTH or NDATA
//   - seq: Sequence number of the payload
//   - values: Normalized metric values
//   - ts: Publish time
//
// Returns:
//   - *write.Point: Point ready for writing, nil if values is empty
func MetricPoint(topics sparkplug.Topics, msgType sparkplug.MessageType, seq uint8, values sparkplug.Values, ts time.Time) *write.Point {
	if len(values) == 0 {
		return nil
	}

	fields := make(map[string]interface{}, len(values)+1)
	for name, v := range values {
		fields[name] = v
	}
	fields["seq"] = int64(seq)

	return write.NewPoint(MeasurementMetrics, nodeTags(topics, msgType), fields, ts)
}

// NodeStatePoint builds the lifecycle point for a BIRTH or DEATH.
//
// Tags: group, node, message_type
// Fields: online (bool), seq (int)
func NodeStatePoint(topics sparkplug.Topics, msgType sparkplug.MessageType, seq uint8, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementNodeState,
		nodeTags(topics, msgType),
		map[string]interface{}{
			"online": msgType == sparkplug.NBirth,
			"seq":    int64(seq),
		},
		ts,
	)
}

func nodeTags(topics sparkplug.Topics, msgType sparkplug.MessageType) map[string]string {
	return map[string]string{
		"group":        topics.Group,
		"node":         topics.Node,
		"message_type": string(msgType),
	}
}

// WriteMetrics writes the metric values of one payload.
// This is non-blocking; the write is batched and sent asynchronously.
func (c *Client) WriteMetrics(topics sparkplug.Topics, msgType sparkplug.MessageType, seq uint8, values sparkplug.Values, ts time.Time) {
	if p := MetricPoint(topics, msgType, seq, values, ts); p != nil {
		c.writePoint(p)
	}
}

// WriteNodeState writes a lifecycle transition.
// This is non-blocking; the write is batched and sent asynchronously.
func (c *Client) WriteNodeState(topics sparkplug.Topics, msgType sparkplug.MessageType, seq uint8, ts time.Time) {
	c.writePoint(NodeStatePoint(topics, msgType, seq, ts))
}

// OnPublish mirrors a published session message into InfluxDB.
//
// NBIRTH writes an online state point and the birth values, NDATA writes
// the changed values and NDEATH writes an offline state point.
//
// Returns:
//   - error: ErrNotNodeTopic for a topic that does not name an edge node,
//     ErrNotConnected after Close
func (c *Client) OnPublish(_ context.Context, msg session.Message) error {
	info, err := sparkplug.ParseTopic(msg.Topic)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNotNodeTopic, err)
	}
	if info.Device != "" {
		return fmt.Errorf("%w: %q addresses device %s", ErrNotNodeTopic, msg.Topic, info.Device)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	topics := info.Topics()

	switch msg.Type {
	case sparkplug.NBirth:
		c.WriteNodeState(topics, msg.Type, msg.Seq, msg.Time)
		c.WriteMetrics(topics, msg.Type, msg.Seq, msg.Values, msg.Time)
	case sparkplug.NData:
		c.WriteMetrics(topics, msg.Type, msg.Seq, msg.Values, msg.Time)
	case sparkplug.NDeath:
		c.WriteNodeState(topics, msg.Type, msg.Seq, msg.Time)
	}
	return nil
}

// writePoint queues a point on the non-blocking write API.
func (c *Client) writePoint(p *write.Point) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(p)
}
