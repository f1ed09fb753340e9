package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

// argumentSchema validates tool arguments against a JSON schema.
type argumentSchema struct {
	schema *openapi3.Schema
}

// compileSchema converts a JSON-schema map into an openapi3 schema and checks
// that it is well formed. A nil map yields a schema accepting any object.
// Objects that declare properties but say nothing about additionalProperties
// are closed, so unknown argument keys are rejected.
func compileSchema(raw map[string]any) (*argumentSchema, error) {
	if raw == nil {
		raw = emptyObjectSchema()
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}

	var s openapi3.Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	if err := s.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	closeObjects(&s)
	return &argumentSchema{schema: &s}, nil
}

func closeObjects(s *openapi3.Schema) {
	if s == nil {
		return
	}
	ap := &s.AdditionalProperties
	if len(s.Properties) > 0 && ap.Has == nil && ap.Schema == nil {
		closed := false
		ap.Has = &closed
	}
	for _, p := range s.Properties {
		if p != nil {
			closeObjects(p.Value)
		}
	}
	if s.Items != nil {
		closeObjects(s.Items.Value)
	}
}

// validate checks args against the schema. Arguments are normalized through
// JSON first so numbers arrive as float64 regardless of how the caller built
// the map.
func (a *argumentSchema) validate(args map[string]any) error {
	if args == nil {
		args = map[string]any{}
	}

	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("arguments are not JSON-serializable: %w", err)
	}
	var normalized any
	if err := json.Unmarshal(data, &normalized); err != nil {
		return err
	}

	return a.schema.VisitJSON(normalized, openapi3.MultiErrors())
}
