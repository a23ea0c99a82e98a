package stage

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// Schema is a resolved JSON Schema declared for a stage's final output.
type Schema struct {
	name     string
	schema   *jsonschema.Schema
	resolved *jsonschema.Resolved
}

// NewSchema resolves s. name identifies the schema to the generator.
func NewSchema(name string, s *jsonschema.Schema) (*Schema, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: schema %q is nil", ErrInvalidStage, name)
	}
	resolved, err := s.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("resolving schema %q: %w", name, err)
	}
	return &Schema{name: name, schema: s, resolved: resolved}, nil
}

// MustSchema is NewSchema for package-level literals.
func MustSchema(name string, s *jsonschema.Schema) *Schema {
	sc, err := NewSchema(name, s)
	if err != nil {
		panic(err)
	}
	return sc
}

// Name returns the schema name.
func (s *Schema) Name() string { return s.name }

// JSON returns the schema document.
func (s *Schema) JSON() ([]byte, error) {
	return json.Marshal(s.schema)
}

// Decode parses text as JSON and validates it.
func (s *Schema) Decode(text string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, fmt.Errorf("%w: %s: not JSON: %v", ErrOutputSchema, s.name, err)
	}
	if err := s.resolved.Validate(v); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrOutputSchema, s.name, err)
	}
	return v, nil
}

// ObjectSchema is the schema for "any JSON object".
func ObjectSchema(name string) *Schema {
	return MustSchema(name, &jsonschema.Schema{Type: "object"})
}

// classificationSchema constrains {"classification": <one of values>}.
// Validation only requires a string; values outside the set are routed,
// not rejected.
func classificationSchema(name string, values []string) (*Schema, error) {
	enum := make([]any, len(values))
	for i, v := range values {
		enum[i] = v
	}
	hint := &jsonschema.Schema{
		Type:     "object",
		Required: []string{"classification"},
		Properties: map[string]*jsonschema.Schema{
			"classification": {Type: "string", Enum: enum},
		},
	}
	loose := &jsonschema.Schema{
		Type:     "object",
		Required: []string{"classification"},
		Properties: map[string]*jsonschema.Schema{
			"classification": {Type: "string"},
		},
	}
	resolved, err := loose.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("resolving schema %q: %w", name, err)
	}
	return &Schema{name: name, schema: hint, resolved: resolved}, nil
}
