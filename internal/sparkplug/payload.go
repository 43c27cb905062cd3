package sparkplug

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of org.eclipse.tahu.protobuf.Payload.
const (
	fieldPayloadTimestamp protowire.Number = 1
	fieldPayloadMetrics   protowire.Number = 2
	fieldPayloadSeq       protowire.Number = 3
	fieldPayloadUUID      protowire.Number = 4
)

// Field numbers of org.eclipse.tahu.protobuf.Payload.Metric.
const (
	fieldMetricName        protowire.Number = 1
	fieldMetricAlias       protowire.Number = 2
	fieldMetricTimestamp   protowire.Number = 3
	fieldMetricDataType    protowire.Number = 4
	fieldMetricIsNull      protowire.Number = 7
	fieldMetricIntValue    protowire.Number = 10
	fieldMetricLongValue   protowire.Number = 11
	fieldMetricFloatValue  protowire.Number = 12
	fieldMetricDoubleValue protowire.Number = 13
	fieldMetricBoolValue   protowire.Number = 14
	fieldMetricStringValue protowire.Number = 15
)

// DeathMarker is the payload UUID carried by NDEATH payloads.
// Birth and data payloads leave the UUID unset.
const DeathMarker = "NDEATH"

// Metric is a single metric inside a payload.
type Metric struct {
	Name     string
	Alias    uint64
	DataType DataType
	// Timestamp is milliseconds since the Unix epoch; zero leaves it unset.
	Timestamp uint64
	// Value holds string, int32 or float32 for the datatypes this package
	// encodes. Decoding foreign payloads may also yield int64, float64 or bool.
	// A nil Value marks a null metric.
	Value any
}

// Payload is a decoded Sparkplug B payload.
type Payload struct {
	// Timestamp is milliseconds since the Unix epoch (UTC).
	Timestamp uint64
	Seq       uint64
	UUID      string
	Metrics   []Metric
}

// IsDeath reports whether p carries the death marker.
func (p *Payload) IsDeath() bool {
	return p.UUID == DeathMarker
}

// Values returns the payload metrics as a name → value map.
func (p *Payload) Values() Values {
	out := make(Values, len(p.Metrics))
	for _, m := range p.Metrics {
		out[m.Name] = m.Value
	}
	return out
}

// Marshal encodes p in the Sparkplug B protobuf wire format.
// seq is always written, including zero, since subscribers rely on its presence.
func (p *Payload) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldPayloadTimestamp, protowire.VarintType)
	b = protowire.AppendVarint(b, p.Timestamp)

	for i := range p.Metrics {
		b = protowire.AppendTag(b, fieldPayloadMetrics, protowire.BytesType)
		b = protowire.AppendBytes(b, p.Metrics[i].marshal())
	}

	b = protowire.AppendTag(b, fieldPayloadSeq, protowire.VarintType)
	b = protowire.AppendVarint(b, p.Seq)

	if p.UUID != "" {
		b = protowire.AppendTag(b, fieldPayloadUUID, protowire.BytesType)
		b = protowire.AppendString(b, p.UUID)
	}
	return b
}

func (m *Metric) marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldMetricName, protowire.BytesType)
	b = protowire.AppendString(b, m.Name)

	if m.Alias != 0 {
		b = protowire.AppendTag(b, fieldMetricAlias, protowire.VarintType)
		b = protowire.AppendVarint(b, m.Alias)
	}

	if m.Timestamp != 0 {
		b = protowire.AppendTag(b, fieldMetricTimestamp, protowire.VarintType)
		b = protowire.AppendVarint(b, m.Timestamp)
	}

	b = protowire.AppendTag(b, fieldMetricDataType, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.DataType))

	switch v := m.Value.(type) {
	case nil:
		b = protowire.AppendTag(b, fieldMetricIsNull, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeBool(true))
	case int32:
		// int_value is uint32 on the wire; negative values travel as two's complement.
		b = protowire.AppendTag(b, fieldMetricIntValue, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(uint32(v)))
	case float32:
		b = protowire.AppendTag(b, fieldMetricFloatValue, protowire.Fixed32Type)
		b = protowire.AppendFixed32(b, math.Float32bits(v))
	case string:
		b = protowire.AppendTag(b, fieldMetricStringValue, protowire.BytesType)
		b = protowire.AppendString(b, v)
	}
	return b
}

// Decode parses a Sparkplug B payload.
//
// Unknown fields are skipped. Returns ErrMalformedPayload on truncated or
// otherwise invalid input.
func Decode(b []byte) (*Payload, error) {
	p := &Payload{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, malformed("payload tag", n)
		}
		b = b[n:]

		switch {
		case num == fieldPayloadTimestamp && typ == protowire.VarintType:
			p.Timestamp, n = protowire.ConsumeVarint(b)
		case num == fieldPayloadSeq && typ == protowire.VarintType:
			p.Seq, n = protowire.ConsumeVarint(b)
		case num == fieldPayloadUUID && typ == protowire.BytesType:
			p.UUID, n = protowire.ConsumeString(b)
		case num == fieldPayloadMetrics && typ == protowire.BytesType:
			var raw []byte
			raw, n = protowire.ConsumeBytes(b)
			if n >= 0 {
				m, err := decodeMetric(raw)
				if err != nil {
					return nil, err
				}
				p.Metrics = append(p.Metrics, m)
			}
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return nil, malformed(fmt.Sprintf("payload field %d", num), n)
		}
		b = b[n:]
	}
	return p, nil
}

func decodeMetric(b []byte) (Metric, error) {
	var m Metric
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Metric{}, malformed("metric tag", n)
		}
		b = b[n:]

		var v uint64
		switch {
		case num == fieldMetricName && typ == protowire.BytesType:
			m.Name, n = protowire.ConsumeString(b)
		case num == fieldMetricAlias && typ == protowire.VarintType:
			m.Alias, n = protowire.ConsumeVarint(b)
		case num == fieldMetricDataType && typ == protowire.VarintType:
			v, n = protowire.ConsumeVarint(b)
			m.DataType = DataType(v)
		case num == fieldMetricIsNull && typ == protowire.VarintType:
			v, n = protowire.ConsumeVarint(b)
			if protowire.DecodeBool(v) {
				m.Value = nil
			}
		case num == fieldMetricIntValue && typ == protowire.VarintType:
			v, n = protowire.ConsumeVarint(b)
			m.Value = int32(uint32(v))
		case num == fieldMetricLongValue && typ == protowire.VarintType:
			v, n = protowire.ConsumeVarint(b)
			m.Value = int64(v)
		case num == fieldMetricFloatValue && typ == protowire.Fixed32Type:
			var f uint32
			f, n = protowire.ConsumeFixed32(b)
			m.Value = math.Float32frombits(f)
		case num == fieldMetricDoubleValue && typ == protowire.Fixed64Type:
			v, n = protowire.ConsumeFixed64(b)
			m.Value = math.Float64frombits(v)
		case num == fieldMetricBoolValue && typ == protowire.VarintType:
			v, n = protowire.ConsumeVarint(b)
			m.Value = protowire.DecodeBool(v)
		case num == fieldMetricStringValue && typ == protowire.BytesType:
			m.Value, n = protowire.ConsumeString(b)
		case num == fieldMetricTimestamp && typ == protowire.VarintType:
			m.Timestamp, n = protowire.ConsumeVarint(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return Metric{}, malformed(fmt.Sprintf("metric field %d", num), n)
		}
		b = b[n:]
	}
	return m, nil
}

func malformed(what string, n int) error {
	return fmt.Errorf("%w: %s: %w", ErrMalformedPayload, what, protowire.ParseError(n))
}
