package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	validator "github.com/santhosh-tekuri/jsonschema/v5"
)

// reflector is shared across all tool definitions so the $id namespace and
// reflection options stay consistent. DoNotReference inlines everything —
// tool argument objects are flat, so no $defs/$ref indirection is needed in
// the wire schema the LLM sees.
var reflector = &jsonschema.Reflector{
	DoNotReference: true,
	ExpandedStruct: true,
}

// reflectParameters turns a Go argument struct into the JSON-schema
// parameter object the LLM tool-calling contract expects: {type, properties,
// required}. The same struct also back-unmarshals the LLM's argument JSON,
// so the exposed schema, the Go struct, and the runtime validator cannot
// drift.
func reflectParameters(v any) map[string]any {
	schema := reflector.Reflect(v)
	schema.Version = ""

	data, err := json.Marshal(schema)
	if err != nil {
		panic(fmt.Sprintf("catalog: failed to marshal reflected schema: %v", err))
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		panic(fmt.Sprintf("catalog: failed to decode reflected schema: %v", err))
	}
	delete(m, "$schema")
	delete(m, "$id")
	return m
}

// compileValidator compiles a reflected parameter schema into a
// santhosh-tekuri/jsonschema validator, used by Registry.Dispatch to reject
// malformed or incomplete tool-call arguments before they ever reach the Go
// struct or a store/vectorstore call.
func compileValidator(toolName string, parameters map[string]any) *validator.Schema {
	data, err := json.Marshal(parameters)
	if err != nil {
		panic(fmt.Sprintf("catalog: failed to marshal %s schema for compilation: %v", toolName, err))
	}

	resourceURL := "mem://catalog/" + toolName + ".json"
	compiler := validator.NewCompiler()
	if err := compiler.AddResource(resourceURL, bytes.NewReader(data)); err != nil {
		panic(fmt.Sprintf("catalog: failed to register %s schema: %v", toolName, err))
	}
	compiled, err := compiler.Compile(resourceURL)
	if err != nil {
		panic(fmt.Sprintf("catalog: failed to compile %s schema: %v", toolName, err))
	}
	return compiled
}

// validateArguments decodes raw tool-call argument JSON the way
// santhosh-tekuri expects (preserving number formatting) and validates it
// against compiled.
func validateArguments(compiled *validator.Schema, raw json.RawMessage) error {
	instance, err := validator.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("malformed arguments: %w", err)
	}
	if err := compiled.Validate(instance); err != nil {
		return fmt.Errorf("arguments do not match schema: %w", err)
	}
	return nil
}
