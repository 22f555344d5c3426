package registry

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// document is the top-level shape of a static registry JSON file: a single
// "tools" array, per the Registry contract's preferred form.
type document struct {
	Tools []Descriptor `json:"tools"`
}

// catalogSchema is the JSON Schema every tool's parameters block must
// itself satisfy as a JSON-Schema document (draft-2020-12 object form).
// This is a structural self-check: it does not validate plan node inputs
// (the Plan Compiler does that against a specific descriptor), it only
// catches a malformed registry document before any plan is compiled
// against it.
const catalogSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "properties": { "type": "object" },
    "required": { "type": "array", "items": { "type": "string" } }
  },
  "required": ["properties"]
}`

// Load reads a static registry document from path and returns a validated
// Registry. Both the outer document and each tool's parameter schema are
// checked: a malformed document never silently produces a partially valid
// registry.
func Load(path string) (Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("registry: read %s: %w", path, err)
	}
	return LoadBytes(data)
}

// LoadBytes parses and validates a static registry document from raw JSON.
func LoadBytes(data []byte) (Registry, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("registry: parse document: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	var schemaDoc any
	if err := json.Unmarshal([]byte(catalogSchema), &schemaDoc); err != nil {
		return nil, fmt.Errorf("registry: internal schema: %w", err)
	}
	if err := compiler.AddResource("parameters.json", schemaDoc); err != nil {
		return nil, fmt.Errorf("registry: compile schema: %w", err)
	}
	schema, err := compiler.Compile("parameters.json")
	if err != nil {
		return nil, fmt.Errorf("registry: compile schema: %w", err)
	}
	for _, d := range doc.Tools {
		instance := map[string]any{
			"properties": d.Parameters.Properties,
		}
		if instance["properties"] == nil {
			instance["properties"] = map[string]any{}
		}
		if len(d.Parameters.Required) > 0 {
			req := make([]any, len(d.Parameters.Required))
			for i, r := range d.Parameters.Required {
				req[i] = r
			}
			instance["required"] = req
		}
		if err := schema.Validate(instance); err != nil {
			return nil, fmt.Errorf("registry: tool %q has invalid parameters schema: %w", d.Name, err)
		}
	}
	return NewStatic(doc.Tools)
}
