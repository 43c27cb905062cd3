package sparkplug

import "errors"

// Domain-specific errors for Sparkplug operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrSchema is returned when a schema definition is invalid
	// (duplicate or empty name, unsupported datatype).
	ErrSchema = errors.New("sparkplug: invalid schema")

	// ErrIncompleteBirth is returned when a birth payload does not carry
	// every metric declared in the schema.
	ErrIncompleteBirth = errors.New("sparkplug: birth payload is missing metrics")

	// ErrUnknownMetric is returned when a value is supplied for a metric
	// that is not declared in the schema.
	ErrUnknownMetric = errors.New("sparkplug: unknown metric")

	// ErrTypeMismatch is returned when a value cannot be represented as the
	// metric's declared datatype.
	ErrTypeMismatch = errors.New("sparkplug: metric type mismatch")

	// ErrNoMetrics is returned when a data payload carries no metrics.
	ErrNoMetrics = errors.New("sparkplug: data payload has no metrics")

	// ErrMalformedPayload is returned when decoding bytes that are not a
	// valid Sparkplug B payload.
	ErrMalformedPayload = errors.New("sparkplug: malformed payload")

	// ErrInvalidTopic is returned for topics outside the Sparkplug namespace
	// or with invalid group/node identifiers.
	ErrInvalidTopic = errors.New("sparkplug: invalid topic")
)
