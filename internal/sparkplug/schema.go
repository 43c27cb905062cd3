package sparkplug

import (
	"fmt"
	"sort"
	"strings"
)

// MetricDef declares one metric of a node.
type MetricDef struct {
	Name string
	Type DataType
}

// Schema is the ordered set of metrics a node publishes.
//
// A Schema is immutable after NewSchema returns and may be shared freely.
// Metric order is preserved and used as the encoding order of payloads.
type Schema struct {
	defs  []MetricDef
	index map[string]int
}

// NewSchema validates defs and builds a Schema.
//
// Returns ErrSchema if defs is empty, a name is empty or duplicated, or a
// datatype is not supported.
func NewSchema(defs []MetricDef) (*Schema, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("%w: at least one metric is required", ErrSchema)
	}

	s := &Schema{
		defs:  make([]MetricDef, 0, len(defs)),
		index: make(map[string]int, len(defs)),
	}
	for i, d := range defs {
		if strings.TrimSpace(d.Name) == "" {
			return nil, fmt.Errorf("%w: metric %d has an empty name", ErrSchema, i)
		}
		if !d.Type.Valid() {
			return nil, fmt.Errorf("%w: metric %q has unsupported %s", ErrSchema, d.Name, d.Type)
		}
		if _, dup := s.index[d.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate metric %q", ErrSchema, d.Name)
		}
		s.index[d.Name] = len(s.defs)
		s.defs = append(s.defs, d)
	}
	return s, nil
}

// Len returns the number of declared metrics.
func (s *Schema) Len() int {
	return len(s.defs)
}

// Names returns metric names in declaration order.
func (s *Schema) Names() []string {
	names := make([]string, len(s.defs))
	for i, d := range s.defs {
		names[i] = d.Name
	}
	return names
}

// Metrics returns a copy of the metric definitions in declaration order.
func (s *Schema) Metrics() []MetricDef {
	out := make([]MetricDef, len(s.defs))
	copy(out, s.defs)
	return out
}

// Has reports whether name is declared.
func (s *Schema) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Type returns the declared datatype of name.
func (s *Schema) Type(name string) (DataType, bool) {
	i, ok := s.index[name]
	if !ok {
		return 0, false
	}
	return s.defs[i].Type, true
}

// Normalize checks values against the schema and returns a copy holding the
// canonical Go type for every metric (string, int32 or float32).
//
// Keys are checked in sorted order so the reported error is deterministic.
// Returns ErrUnknownMetric or ErrTypeMismatch; values is never modified.
func (s *Schema) Normalize(values Values) (Values, error) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(Values, len(values))
	for _, name := range keys {
		t, ok := s.Type(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, name)
		}
		v, ok := coerce(t, values[name])
		if !ok {
			return nil, fmt.Errorf("%w: %q is %s, got %T", ErrTypeMismatch, name, t, values[name])
		}
		out[name] = v
	}
	return out, nil
}

// Missing returns the declared metrics absent from values, in declaration order.
func (s *Schema) Missing(values Values) []string {
	var missing []string
	for _, d := range s.defs {
		if _, ok := values[d.Name]; !ok {
			missing = append(missing, d.Name)
		}
	}
	return missing
}

// Complete returns normalized values with every missing metric filled in
// from defaults. The result is suitable for EncodeBirth.
func (s *Schema) Complete(values Values, defaults Defaults) (Values, error) {
	out, err := s.Normalize(values)
	if err != nil {
		return nil, err
	}
	for _, d := range s.defs {
		if _, ok := out[d.Name]; ok {
			continue
		}
		dv, ok := defaults[d.Type]
		if !ok {
			return nil, fmt.Errorf("%w: no default for %s metric %q", ErrIncompleteBirth, d.Type, d.Name)
		}
		v, ok := coerce(d.Type, dv)
		if !ok {
			return nil, fmt.Errorf("%w: default for %s is %T", ErrTypeMismatch, d.Type, dv)
		}
		out[d.Name] = v
	}
	return out, nil
}
