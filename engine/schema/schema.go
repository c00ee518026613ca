package schema

import (
	"encoding/json"
	"fmt"

	"github.com/kaptinlin/jsonschema"
)

// -----------------------------------------------------------------------------
// Shape
// -----------------------------------------------------------------------------

// Shape is a JSON-Schema-like declaration of the structure a task input or
// output must satisfy: `type`, `required`, `properties`, `items`, `enum`
// and `minimum`/`maximum` for numeric scores. Runtime validation walks the
// shape structurally (see validate.go); Compile only checks that the
// declaration itself is a well-formed schema document, so malformed shapes
// are rejected at registration time rather than mid-run.
type Shape map[string]any

func (s Shape) String() string {
	raw, err := json.Marshal(s)
	if err != nil {
		return ""
	}
	return string(raw)
}

// Compile parses the shape through a JSON-Schema compiler to surface
// declaration errors. A nil shape compiles to nil and validates anything.
func (s Shape) Compile() (*jsonschema.Schema, error) {
	if s == nil {
		return nil, nil
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to compile shape: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	compiled, err := compiler.Compile(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to compile shape: %w", err)
	}
	return compiled, nil
}
