package assertion

import (
	"github.com/xeipuuv/gojsonschema"
)

// SchemaValidator checks parsed JSON data against a schema descriptor.
// Two strategies exist: the gojsonschema-backed full validator and a
// permissive structural fallback. The strategy is resolved once at
// package init rather than per call.
type SchemaValidator interface {
	Name() string
	Validate(data interface{}, schema map[string]interface{}) bool
}

// DefaultSchemaValidator is the strategy used by MatchesSchema.
var DefaultSchemaValidator SchemaValidator = FullValidator{}

// FullValidator delegates to gojsonschema for complete draft-04/06/07
// semantics. When the schema itself cannot be compiled it defers to the
// structural fallback so the predicate stays total.
type FullValidator struct{}

func (FullValidator) Name() string { return "gojsonschema" }

func (FullValidator) Validate(data interface{}, schema map[string]interface{}) bool {
	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(schema),
		gojsonschema.NewGoLoader(data),
	)
	if err != nil {
		return StructuralValidator{}.Validate(data, schema)
	}
	return result.Valid()
}

// StructuralValidator is a minimal schema-subset check supporting only
// "type", "required" and nested "properties" type-checking. It is
// deliberately permissive: schema features it does not understand never
// cause a failure, so it cannot produce false negatives.
type StructuralValidator struct{}

func (StructuralValidator) Name() string { return "structural" }

func (s StructuralValidator) Validate(data interface{}, schema map[string]interface{}) bool {
	if typ, ok := schema["type"].(string); ok {
		if !typeMatches(data, typ) {
			return false
		}
	}

	obj, ok := data.(map[string]interface{})
	if !ok {
		// Properties cannot be validated on non-objects.
		return true
	}

	if required, ok := schema["required"].([]interface{}); ok {
		for _, key := range required {
			name, ok := key.(string)
			if !ok {
				continue
			}
			if _, exists := obj[name]; !exists {
				return false
			}
		}
	}

	if properties, ok := schema["properties"].(map[string]interface{}); ok {
		for name, sub := range properties {
			subSchema, ok := sub.(map[string]interface{})
			if !ok {
				continue
			}
			if value, exists := obj[name]; exists {
				if !s.Validate(value, subSchema) {
					return false
				}
			}
		}
	}

	return true
}

func typeMatches(data interface{}, typ string) bool {
	switch typ {
	case "object":
		_, ok := data.(map[string]interface{})
		return ok
	case "array":
		_, ok := data.([]interface{})
		return ok
	case "string":
		_, ok := data.(string)
		return ok
	case "number":
		return isJSONNumber(data)
	case "integer":
		// JSON numbers decode as float64; integers are whole-valued floats.
		if f, ok := data.(float64); ok {
			return f == float64(int64(f))
		}
		_, ok := data.(int)
		return ok
	case "boolean":
		_, ok := data.(bool)
		return ok
	case "null":
		return data == nil
	default:
		// Unknown type strings are accepted rather than failed.
		return true
	}
}

func isJSONNumber(data interface{}) bool {
	switch data.(type) {
	case float64, float32, int, int64:
		return true
	default:
		return false
	}
}
