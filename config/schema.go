package config

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// GenerateSchema generates the JSON Schema for fsdispatch configuration files.
// Core sections are closed; registered extension sections are added as
// properties, and unknown top-level keys stay allowed so tools can carry
// their own sections.
func GenerateSchema() ([]byte, error) {
	r := &jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		ExpandedStruct:             true,
		DoNotReference:             true,
		Anonymous:                  true,
		RequiredFromJSONSchemaTags: true,
		// Use YAML field names for property names
		FieldNameTag: "yaml",
	}

	schema := r.Reflect(&Config{})
	schema.Title = "fsdispatch Configuration"
	schema.Description = "Schema for fsdispatch.yml, fsdispatch.yaml and fsdispatch.toml."
	schema.Version = "http://json-schema.org/draft-07/schema#"
	schema.AdditionalProperties = nil

	keys, protos := registeredExtensions()
	for _, key := range keys {
		ext := r.Reflect(protos[key])
		ext.Version = ""
		schema.Properties.Set(key, ext)
	}

	return json.MarshalIndent(schema, "", "  ")
}
