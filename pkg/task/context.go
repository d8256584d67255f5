// Package task defines the data carrier that travels through one pipeline run.
package task

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Portable is the serializable subset of a context's fields. It is the form a
// context takes when crossing a dispatch boundary; every value in it must be
// JSON-round-trippable.
type Portable map[string]any

// Context carries the named fields of one operation through a pipeline run.
// A context is owned exclusively by the pipeline built from it while a run is
// in flight.
type Context interface {
	// Kind identifies the concrete context type so the receiving side of a
	// dispatch can reconstruct it. See RegisterKind.
	Kind() string

	// Portable returns the serializable fields of the context. Fields holding
	// live handles are excluded and must be resolved independently on the
	// receiving side.
	Portable() (Portable, error)

	// Restore repopulates the context from a portable form.
	Restore(p Portable) error
}

// Fields is the optional field-access interface stages use to read and write
// named context values without knowing the concrete context type.
type Fields interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// MapContext is a general-purpose field-bag context. Values that cannot be
// marshaled to JSON are carried in memory but dropped from the portable form.
type MapContext struct {
	kind   string
	fields map[string]any
}

// NewMapContext creates a map-backed context of the given kind.
func NewMapContext(kind string, fields map[string]any) *MapContext {
	copied := make(map[string]any, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	return &MapContext{kind: kind, fields: copied}
}

// Kind returns the context kind.
func (c *MapContext) Kind() string {
	return c.kind
}

// Get returns the value stored under key.
func (c *MapContext) Get(key string) (any, bool) {
	v, ok := c.fields[key]
	return v, ok
}

// Set stores a value under key.
func (c *MapContext) Set(key string, value any) {
	c.fields[key] = value
}

// Len returns the number of fields held by the context.
func (c *MapContext) Len() int {
	return len(c.fields)
}

// bytesKey tags a byte field inside the portable form. A bare JSON round trip
// would flatten []byte into base64 text; the tag lets Restore rebuild the
// original bytes on the other side of a dispatch boundary.
const bytesKey = "$bytes"

// Portable returns the JSON-serializable fields of the context. Values are
// normalized through a JSON round trip so the result compares equal to a
// context restored from it; []byte fields are tagged and survive the round
// trip as bytes.
func (c *MapContext) Portable() (Portable, error) {
	p := make(Portable, len(c.fields))
	for k, v := range c.fields {
		if b, ok := v.([]byte); ok {
			p[k] = map[string]any{bytesKey: base64.StdEncoding.EncodeToString(b)}
			continue
		}

		raw, err := json.Marshal(v)
		if err != nil {
			// live handle or otherwise unserializable, excluded by contract
			continue
		}
		var normalized any
		if err := json.Unmarshal(raw, &normalized); err != nil {
			return nil, fmt.Errorf("normalize field %q: %w", k, err)
		}
		p[k] = normalized
	}
	return p, nil
}

// Restore replaces the context's fields with the portable form, rebuilding
// tagged byte fields.
func (c *MapContext) Restore(p Portable) error {
	fields := make(map[string]any, len(p))
	for k, v := range p {
		if b, ok := decodeBytes(v); ok {
			fields[k] = b
			continue
		}
		fields[k] = v
	}
	c.fields = fields
	return nil
}

// decodeBytes recognizes the tagged form Portable emits for []byte fields.
func decodeBytes(v any) ([]byte, bool) {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return nil, false
	}
	s, ok := m[bytesKey].(string)
	if !ok {
		return nil, false
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, false
	}
	return b, true
}
