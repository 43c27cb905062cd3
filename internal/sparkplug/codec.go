package sparkplug

import (
	"fmt"
	"strings"
	"time"
)

// Codec encodes node payloads for one schema and tracks the node sequence number.
//
// Sequence rules:
//   - EncodeBirth tags its payload with seq 0 and sets the counter to 1
//   - EncodeData tags its payload with the counter, then increments it mod 256
//   - EncodeDeath tags its payload with the counter and does not advance it
//
// Failed encodes never change the counter.
type Codec struct {
	schema *Schema
	now    func() time.Time

	seq   uint8
	death []byte
}

// Option configures a Codec.
type Option func(*Codec)

// WithClock sets the clock used for payload timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCodec creates a codec for schema.
func NewCodec(schema *Schema, opts ...Option) *Codec {
	c := &Codec{
		schema: schema,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Schema returns the schema the codec encodes against.
func (c *Codec) Schema() *Schema {
	return c.schema
}

// Sequence returns the sequence number the next data or death payload will carry.
func (c *Codec) Sequence() uint8 {
	return c.seq
}

// EncodeBirth encodes an NBIRTH payload carrying every schema metric.
//
// Returns ErrIncompleteBirth if any declared metric is missing from values,
// or ErrUnknownMetric / ErrTypeMismatch for invalid entries.
// A successful birth resets the sequence and discards the cached death payload.
func (c *Codec) EncodeBirth(values Values) ([]byte, error) {
	if missing := c.schema.Missing(values); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrIncompleteBirth, strings.Join(missing, ", "))
	}
	norm, err := c.schema.Normalize(values)
	if err != nil {
		return nil, err
	}

	ts := c.timestamp()
	p := Payload{
		Timestamp: ts,
		Seq:       0,
		Metrics:   c.metrics(norm, ts),
	}
	c.seq = 1
	c.death = nil
	return p.Marshal(), nil
}

// EncodeData encodes an NDATA payload. values may hold any non-empty subset
// of the schema.
func (c *Codec) EncodeData(values Values) ([]byte, error) {
	if len(values) == 0 {
		return nil, ErrNoMetrics
	}
	norm, err := c.schema.Normalize(values)
	if err != nil {
		return nil, err
	}

	ts := c.timestamp()
	p := Payload{
		Timestamp: ts,
		Seq:       uint64(c.seq),
		Metrics:   c.metrics(norm, ts),
	}
	c.seq++ // uint8 wraps 255 -> 0
	return p.Marshal(), nil
}

// EncodeDeath encodes an NDEATH payload: no metrics, the death marker, and
// the current sequence number.
//
// The payload is computed once and returned unchanged by later calls until
// the next EncodeBirth, so it can be registered as the MQTT will and
// published again on graceful shutdown.
func (c *Codec) EncodeDeath() []byte {
	if c.death == nil {
		p := Payload{
			Timestamp: c.timestamp(),
			Seq:       uint64(c.seq),
			UUID:      DeathMarker,
		}
		c.death = p.Marshal()
	}
	out := make([]byte, len(c.death))
	copy(out, c.death)
	return out
}

// metrics orders normalized values by schema declaration, stamping each
// with the payload timestamp ts.
func (c *Codec) metrics(norm Values, ts uint64) []Metric {
	out := make([]Metric, 0, len(norm))
	for _, d := range c.schema.defs {
		v, ok := norm[d.Name]
		if !ok {
			continue
		}
		out = append(out, Metric{Name: d.Name, DataType: d.Type, Timestamp: ts, Value: v})
	}
	return out
}

func (c *Codec) timestamp() uint64 {
	return uint64(c.now().UTC().UnixMilli())
}
