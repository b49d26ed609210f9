package llm

import "context"

// SchemaType names a JSON schema node type.
type SchemaType string

const (
	TypeString  SchemaType = "string"
	TypeNumber  SchemaType = "number"
	TypeInteger SchemaType = "integer"
	TypeBoolean SchemaType = "boolean"
	TypeArray   SchemaType = "array"
	TypeObject  SchemaType = "object"
)

// Schema is the subset of JSON schema the analysis response needs.
type Schema struct {
	Type        SchemaType
	Description string
	Enum        []string
	Nullable    bool
	Items       *Schema
	Properties  map[string]*Schema
	Required    []string
}

type Provider interface {
	// Generate returns the raw model text. A non-nil schema asks for a JSON
	// response that conforms to it; callers still validate the output.
	Generate(ctx context.Context, prompt string, schema *Schema) (string, error)
	Close() error
}
