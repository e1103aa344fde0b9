package remote

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// responseSchema constrains the OCR response envelope before we trust it:
// a pages array of objects carrying an index and some content form.
var responseSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"pages": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"index":    map[string]any{"type": "integer"},
					"content":  map[string]any{"type": "string"},
					"markdown": map[string]any{"type": "string"},
					"tables":   map[string]any{"type": "array"},
					"images":   map[string]any{"type": "array"},
				},
			},
		},
		"metadata": map[string]any{"type": "object"},
	},
	"required": []any{"pages"},
}

var compiledSchema = mustCompile(responseSchema)

func mustCompile(schemaMap map[string]any) *jsonschema.Schema {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		panic(fmt.Sprintf("marshal schema: %v", err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		panic(fmt.Sprintf("add schema: %v", err))
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		panic(fmt.Sprintf("compile schema: %v", err))
	}
	return schema
}

// validateResponse checks raw OCR response bytes against the envelope schema.
func validateResponse(raw []byte) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	if err := compiledSchema.Validate(v); err != nil {
		return fmt.Errorf("response does not match schema: %w", err)
	}
	return nil
}
