package validation

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// SchemaValidator validates API payloads against JSON schemas. Schemas are
// compiled once at construction.
type SchemaValidator struct {
	schemas map[string]*gojsonschema.Schema
}

type ValidationResult struct {
	Valid  bool
	Errors []string
}

const cardRecordSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["id", "title", "series", "stats"],
	"properties": {
		"id": {"type": "string", "minLength": 1},
		"title": {"type": "string", "minLength": 1, "maxLength": 255},
		"series": {"type": "string", "minLength": 1, "maxLength": 64},
		"stats": {
			"type": "object",
			"minProperties": 1,
			"additionalProperties": {"type": "integer"}
		},
		"cardNumber": {"type": "integer", "minimum": 0},
		"totalCards": {"type": "integer", "minimum": 0},
		"rarity": {"type": "string"},
		"theme": {"type": "string"},
		"colorScheme": {"type": "string"},
		"imageStyle": {"type": "string"},
		"imagePrompt": {"type": "string"},
		"persistentImageUrl": {"type": "string"},
		"imageFilename": {"type": "string"},
		"generatedAt": {"type": "string", "format": "date-time"},
		"savedAt": {"type": "string", "format": "date-time"},
		"storageLocation": {"type": "string"}
	}
}`

func NewSchemaValidator() (*SchemaValidator, error) {
	sources := map[string]string{
		"card-record": cardRecordSchema,
	}

	sv := &SchemaValidator{schemas: make(map[string]*gojsonschema.Schema, len(sources))}
	for name, src := range sources {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
		if err != nil {
			return nil, fmt.Errorf("failed to compile schema %s: %w", name, err)
		}
		sv.schemas[name] = schema
	}

	return sv, nil
}

// ValidateCardRecord validates a card record payload against its schema.
func (sv *SchemaValidator) ValidateCardRecord(data interface{}) *ValidationResult {
	return sv.validate("card-record", data)
}

func (sv *SchemaValidator) validate(schemaName string, data interface{}) *ValidationResult {
	schema, exists := sv.schemas[schemaName]
	if !exists {
		return &ValidationResult{
			Valid:  false,
			Errors: []string{fmt.Sprintf("unknown schema %q", schemaName)},
		}
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(data))
	if err != nil {
		return &ValidationResult{
			Valid:  false,
			Errors: []string{err.Error()},
		}
	}

	if result.Valid() {
		return &ValidationResult{Valid: true}
	}

	errs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		errs = append(errs, e.String())
	}
	return &ValidationResult{Valid: false, Errors: errs}
}
