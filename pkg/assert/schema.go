package assert

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// validateSchema checks the parsed response body against a JSON-Schema-like
// definition (type, required, properties, nested objects — anything
// gojsonschema accepts). It returns the list of validation failures; an
// empty list means the body conforms. The returned error marks a broken
// schema or body, not a validation failure.
func validateSchema(body string, expected interface{}) ([]string, error) {
	if expected == nil {
		return nil, fmt.Errorf("%w: schema assertion has no expected schema", ErrInvalidSchema)
	}

	var document interface{}
	if err := json.Unmarshal([]byte(body), &document); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBody, err)
	}

	schemaLoader := gojsonschema.NewGoLoader(normalizeSchema(expected))
	documentLoader := gojsonschema.NewGoLoader(document)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}

	failures := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		failures = append(failures, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
	}
	return failures, nil
}

// normalizeSchema round-trips the schema through JSON so YAML-decoded maps
// (map[interface{}]interface{} and friends) load cleanly.
func normalizeSchema(schema interface{}) interface{} {
	data, err := json.Marshal(schema)
	if err != nil {
		return schema
	}
	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return schema
	}
	return out
}
