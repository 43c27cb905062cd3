package sparkplug

import (
	"fmt"
	"math"
	"strings"
)

// DataType is a Sparkplug B metric datatype.
// Values match the DataType enumeration of the Sparkplug B protobuf.
type DataType uint32

// Supported metric datatypes.
const (
	TypeInt32  DataType = 3
	TypeFloat  DataType = 9
	TypeString DataType = 12
)

// String returns the config name of the datatype.
func (t DataType) String() string {
	switch t {
	case TypeInt32:
		return "int32"
	case TypeFloat:
		return "float"
	case TypeString:
		return "string"
	default:
		return fmt.Sprintf("datatype(%d)", uint32(t))
	}
}

// Valid reports whether t is a datatype this package can encode.
func (t DataType) Valid() bool {
	switch t {
	case TypeInt32, TypeFloat, TypeString:
		return true
	default:
		return false
	}
}

// ParseDataType converts a config name ("string", "int32", "float") to a DataType.
// Matching is case-insensitive; "int" is accepted as an alias for int32.
func ParseDataType(s string) (DataType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "int32", "int":
		return TypeInt32, nil
	case "float", "float32":
		return TypeFloat, nil
	case "string", "str":
		return TypeString, nil
	default:
		return 0, fmt.Errorf("%w: unsupported datatype %q", ErrSchema, s)
	}
}

// Values maps metric names to values.
//
// Accepted Go types per datatype:
//   - string: string
//   - int32:  int8, int16, int32, int, int64, uint8, uint16, uint32 (within int32 range)
//   - float:  float32, float64, and any integer type
type Values map[string]any

// Clone returns a shallow copy of v.
func (v Values) Clone() Values {
	if v == nil {
		return nil
	}
	out := make(Values, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// Defaults holds the value used for each datatype when a birth payload has
// to be completed with metrics the caller did not supply.
type Defaults map[DataType]any

// DefaultValues returns the zero value for every supported datatype.
func DefaultValues() Defaults {
	return Defaults{
		TypeString: "",
		TypeInt32:  int32(0),
		TypeFloat:  float32(0),
	}
}

// coerce converts v to the canonical Go representation of t
// (string, int32 or float32). ok is false when v cannot be represented.
func coerce(t DataType, v any) (any, bool) {
	switch t {
	case TypeString:
		s, ok := v.(string)
		return s, ok
	case TypeInt32:
		n, ok := toInt64(v)
		if !ok || n < math.MinInt32 || n > math.MaxInt32 {
			return nil, false
		}
		return int32(n), true
	case TypeFloat:
		switch f := v.(type) {
		case float32:
			return f, true
		case float64:
			return float32(f), true
		}
		if n, ok := toInt64(v); ok {
			return float32(n), true
		}
		return nil, false
	default:
		return nil, false
	}
}

// toInt64 widens integer types. Floats are rejected so that 1.5 is never
// silently truncated into an int32 metric.
func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	default:
		return 0, false
	}
}
