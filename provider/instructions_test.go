package provider

import (
	"testing"

	"github.com/invopop/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderInstructionsWithoutSchema(t *testing.T) {
	req := Request{Instructions: "be terse"}
	got, err := req.RenderInstructions()
	require.NoError(t, err)
	assert.Equal(t, "be terse", got)
}

func TestRenderInstructionsAppendsSchema(t *testing.T) {
	type labels struct {
		Labels []string `json:"labels"`
	}
	reflector := jsonschema.Reflector{AllowAdditionalProperties: false, DoNotReference: true}

	req := Request{
		Instructions: "be terse",
		ResponseSchema: &StructuredOutput{
			Name:        "personas",
			Description: "names",
			Schema:      reflector.Reflect(labels{}),
		},
	}

	got, err := req.RenderInstructions()
	require.NoError(t, err)
	assert.Contains(t, got, "be terse")
	assert.Contains(t, got, `"personas"`)
	assert.Contains(t, got, "labels")
}
