package config

import (
	"github.com/grovetools/fsdispatch/schema"
)

// SchemaValidator validates configuration documents against the generated
// schema.
type SchemaValidator struct {
	validator *schema.Validator
}

// NewSchemaValidator generates the schema, including registered extensions,
// and compiles it.
func NewSchemaValidator() (*SchemaValidator, error) {
	data, err := GenerateSchema()
	if err != nil {
		return nil, err
	}
	validator, err := schema.NewValidator("fsdispatch.json", data)
	if err != nil {
		return nil, err
	}
	return &SchemaValidator{validator: validator}, nil
}

// Validate validates configuration data against the schema.
func (v *SchemaValidator) Validate(configData interface{}) error {
	return v.validator.Validate(configData)
}
