package manifest

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	schemaResourceNameConstant           = "manifest.schema.json"
	schemaCompileErrorTemplateConstant   = "unable to compile manifest schema: %w"
	schemaViolationErrorTemplateConstant = "manifest does not match schema: %w"
)

//go:embed schema.json
var manifestSchemaDocument string

var compileManifestSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if resourceError := compiler.AddResource(schemaResourceNameConstant, strings.NewReader(manifestSchemaDocument)); resourceError != nil {
		return nil, fmt.Errorf(schemaCompileErrorTemplateConstant, resourceError)
	}
	schema, compileError := compiler.Compile(schemaResourceNameConstant)
	if compileError != nil {
		return nil, fmt.Errorf(schemaCompileErrorTemplateConstant, compileError)
	}
	return schema, nil
})

// validateDocument checks a JSON-decoded document against the embedded manifest schema.
func validateDocument(document any) error {
	schema, compileError := compileManifestSchema()
	if compileError != nil {
		return compileError
	}
	if validationError := schema.Validate(document); validationError != nil {
		return fmt.Errorf(schemaViolationErrorTemplateConstant, validationError)
	}
	return nil
}
