package provider

import (
	"fmt"

	json "github.com/goccy/go-json"
)

// RenderInstructions produces the system prompt for the request. When a
// ResponseSchema is present its JSON schema is appended, instructing the
// model to reply with a single document matching it. Rendering here
// keeps adapters free of response-format gymnastics: every upstream
// understands plain instructions.
func (r Request) RenderInstructions() (string, error) {
	if r.ResponseSchema == nil {
		return r.Instructions, nil
	}

	sb, err := json.Marshal(r.ResponseSchema.Schema)
	if err != nil {
		return "", fmt.Errorf("failed to marshal response schema: %w", err)
	}

	instructions := r.Instructions
	if instructions != "" {
		instructions += "\n\n"
	}
	instructions += fmt.Sprintf(
		"Respond with a single JSON document named %q (%s) that validates against this JSON schema, and nothing else:\n%s",
		r.ResponseSchema.Name, r.ResponseSchema.Description, sb,
	)
	return instructions, nil
}
