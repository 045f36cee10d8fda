package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Schema is a compiled JSON schema, safe for concurrent use.
type Schema struct {
	compiled *gojsonschema.Schema
}

// Compile accepts a schema as raw JSON bytes, json.RawMessage, a string or any
// Go value that marshals to a JSON schema document.
func Compile(schema interface{}) (*Schema, error) {
	var loader gojsonschema.JSONLoader
	switch s := schema.(type) {
	case []byte:
		loader = gojsonschema.NewBytesLoader(s)
	case json.RawMessage:
		loader = gojsonschema.NewBytesLoader(s)
	case string:
		loader = gojsonschema.NewStringLoader(s)
	default:
		loader = gojsonschema.NewGoLoader(s)
	}

	compiled, err := gojsonschema.NewSchema(loader)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Schema{compiled: compiled}, nil
}

// MustCompile is Compile for package-level schemas.
func MustCompile(schema interface{}) *Schema {
	s, err := Compile(schema)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks a decoded document against the schema.
func (s *Schema) Validate(doc interface{}) (*ValidationResult, error) {
	result, err := s.compiled.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("validate document: %w", err)
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, re := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   fieldName(re),
			Message: re.Description(),
			Code:    strings.ToUpper(re.Type()),
		})
	}
	return out, nil
}

// ValidateInput validates job or request variables against a schema document.
func ValidateInput(input map[string]interface{}, schema interface{}) (*ValidationResult, error) {
	s, err := Compile(schema)
	if err != nil {
		return nil, err
	}
	return s.Validate(input)
}

// fieldName reports the offending property, including the missing one for
// "required" errors where gojsonschema reports the parent.
func fieldName(re gojsonschema.ResultError) string {
	if re.Type() == "required" {
		if prop, ok := re.Details()["property"].(string); ok {
			return prop
		}
	}
	if re.Type() == "additional_property_not_allowed" {
		if prop, ok := re.Details()["property"].(string); ok {
			return prop
		}
	}
	return re.Field()
}

// GetErrorMessages returns formatted error messages
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// HasErrors returns true if validation has errors
func (vr *ValidationResult) HasErrors() bool {
	return !vr.Valid || len(vr.Errors) > 0
}

// String joins every error message into one line.
func (vr *ValidationResult) String() string {
	return strings.Join(vr.GetErrorMessages(), "; ")
}
