// Package sparkplug implements the node-side Sparkplug B payload model.
//
// This package manages:
//   - The metric schema (ordered metric names with declared datatypes)
//   - Payload encoding for NBIRTH, NDATA and NDEATH messages
//   - The node sequence number (0 on birth, +1 per publish, mod 256)
//   - Topic construction and parsing for the spBv1.0 namespace
//
// # Wire Format
//
// Payloads use the Sparkplug B protobuf layout (org.eclipse.tahu.protobuf).
// Only the fields a node publishes are written:
//
//	Payload: timestamp=1, metrics=2, seq=3, uuid=4
//	Metric:  name=1, datatype=4, int_value=10, float_value=12, string_value=15
//
// Encoding is done with protowire, so no generated code is required.
//
// # Usage
//
//	schema, err := sparkplug.NewSchema([]sparkplug.MetricDef{
//	    {Name: "temp", Type: sparkplug.TypeFloat},
//	    {Name: "status", Type: sparkplug.TypeString},
//	})
//	codec := sparkplug.NewCodec(schema)
//
//	death := codec.EncodeDeath()            // register as MQTT will first
//	birth, err := codec.EncodeBirth(values) // seq 0
//	data, err := codec.EncodeData(sparkplug.Values{"temp": 21.5}) // seq 1
//
// # Thread Safety
//
// Schema is immutable and safe to share. Codec is not safe for concurrent
// use; it is owned by a single session.
package sparkplug
