package configauthority

import (
	"bytes"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// SchemaValidator validates a decoded config document against a JSONSchema
// Draft 2020-12 document. A nil *SchemaValidator (no schema configured) skips
// schema validation entirely, matching config_authority.py's behavior of
// warning and continuing when no schema.json is found on disk.
type SchemaValidator struct {
	schema *jsonschema.Schema
}

// NewSchemaValidator compiles raw JSONSchema bytes. Pass nil/empty to build a
// no-op validator.
func NewSchemaValidator(schemaJSON []byte) (*SchemaValidator, error) {
	if len(schemaJSON) == 0 {
		return &SchemaValidator{}, nil
	}

	c := jsonschema.NewCompiler()
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("configauthority: parse schema: %w", err)
	}
	const resourceName = "platform-config.schema.json"
	if err := c.AddResource(resourceName, doc); err != nil {
		return nil, fmt.Errorf("configauthority: add schema resource: %w", err)
	}
	sch, err := c.Compile(resourceName)
	if err != nil {
		return nil, fmt.Errorf("configauthority: compile schema: %w", err)
	}
	return &SchemaValidator{schema: sch}, nil
}

// Validate returns a human-readable error per schema violation found in doc
// (a map[string]any decoded from YAML/JSON). An empty slice means valid.
func (v *SchemaValidator) Validate(doc map[string]any) []string {
	if v == nil || v.schema == nil {
		return nil
	}
	err := v.schema.Validate(doc)
	if err == nil {
		return nil
	}
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []string{err.Error()}
	}
	return flattenValidationErrors(ve)
}

func flattenValidationErrors(ve *jsonschema.ValidationError) []string {
	var out []string
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			loc := "/" + joinPointer(e.InstanceLocation)
			out = append(out, fmt.Sprintf("%s: %s", loc, e.Error()))
			return
		}
		for _, cause := range e.Causes {
			walk(cause)
		}
	}
	walk(ve)
	return out
}

func joinPointer(segs []string) string {
	out := ""
	for i, s := range segs {
		if i > 0 {
			out += "/"
		}
		out += s
	}
	return out
}
