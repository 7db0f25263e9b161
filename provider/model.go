package provider

import (
	"context"

	"github.com/google/uuid"
	"github.com/invopop/jsonschema"
)

// Provider is implemented once per upstream text-generation service.
// Implementations translate their own upstream idioms into the uniform
// StreamEvent sequence; the rest of the system never sees a provider's
// native API shapes.
type Provider interface {
	// Generate runs one generation request. The returned channel yields
	// Chunk events while text is being produced (when Request.Stream is
	// set), exactly one Response event with the complete text, and is
	// closed when the generation ends. Faults are delivered in-band as
	// Error events. Construction-time problems (an unusable request, a
	// missing credential) are returned directly.
	Generate(context.Context, Request) (<-chan StreamEvent, error)
}

// Request encapsulates one normalized generation request. It is
// immutable once issued.
type Request struct {
	// RunID uniquely identifies this request for tracking and debugging.
	RunID uuid.UUID

	// Instructions carries the system prompt, when the caller has one.
	Instructions string

	// Prompt is the user-facing generation prompt.
	Prompt string

	// Stream selects incremental delivery. When false the provider
	// emits a single Response event and no Chunks.
	Stream bool

	// Temperature overrides the provider default when non-nil.
	Temperature *float64

	// ResponseSchema asks the model to shape its reply as a single JSON
	// document matching the schema. Used by the short labeling calls
	// that run before a fan-out.
	ResponseSchema *StructuredOutput

	// Model names the upstream model and carries the Provider that
	// serves it.
	Model interface {
		Name() string
		Provider() Provider
	}

	// Prevents unkeyed literals
	_ struct{}
}

// StructuredOutput defines a schema for formatted responses.
type StructuredOutput struct {
	// Name identifies this output format.
	Name string

	// Description explains the purpose of this format to the model.
	Description string

	// Schema is the JSON structure the response should follow.
	Schema *jsonschema.Schema
}
