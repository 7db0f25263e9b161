package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-ai/atelier/pkg/uuidx"
	"github.com/atelier-ai/atelier/provider"
)

func TestSessionStartedRoundTrip(t *testing.T) {
	event := SessionStarted{SessionID: uuidx.New(), Prompt: "a hero section", Slots: 5}

	data, err := ToJSON(event)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"session_started"`)

	decoded, err := FromJSON(data)
	require.NoError(t, err)
	got, ok := decoded.(SessionStarted)
	require.True(t, ok)
	assert.Equal(t, event.SessionID, got.SessionID)
	assert.Equal(t, event.Prompt, got.Prompt)
	assert.Equal(t, event.Slots, got.Slots)
}

func TestArtifactChunkRoundTrip(t *testing.T) {
	sessionID := uuidx.New()
	event := ArtifactChunk{SessionID: sessionID, ArtifactID: sessionID.String() + "/0", Text: "<div>"}

	data, err := ToJSON(event)
	require.NoError(t, err)

	decoded, err := FromJSON(data)
	require.NoError(t, err)
	got, ok := decoded.(ArtifactChunk)
	require.True(t, ok)
	assert.Equal(t, event.ArtifactID, got.ArtifactID)
	assert.Equal(t, event.Text, got.Text)
}

func TestArtifactCompletedRoundTrip(t *testing.T) {
	sessionID := uuidx.New()
	event := ArtifactCompleted{SessionID: sessionID, ArtifactID: sessionID.String() + "/0", Label: "Bold", Text: "<div></div>"}

	data, err := ToJSON(event)
	require.NoError(t, err)

	decoded, err := FromJSON(data)
	require.NoError(t, err)
	got, ok := decoded.(ArtifactCompleted)
	require.True(t, ok)
	assert.Equal(t, event.Label, got.Label)
	assert.Equal(t, event.Text, got.Text)
}

func TestArtifactFailedRoundTrip(t *testing.T) {
	sessionID := uuidx.New()
	event := ArtifactFailed{SessionID: sessionID, ArtifactID: sessionID.String() + "/1", Fault: &provider.Fault{
		Kind: provider.KindRateLimited, Provider: "openai", Status: 429, Message: "openai: rate limit",
	}}

	data, err := ToJSON(event)
	require.NoError(t, err)

	decoded, err := FromJSON(data)
	require.NoError(t, err)
	got, ok := decoded.(ArtifactFailed)
	require.True(t, ok)
	require.NotNil(t, got.Fault)
	assert.Equal(t, provider.KindRateLimited, got.Fault.Kind)
	assert.Equal(t, 429, got.Fault.Status)
}

func TestFromJSONRejectsUnknownType(t *testing.T) {
	_, err := FromJSON([]byte(`{"type":"mystery"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mystery")
}

func TestFromJSONRejectsInvalidJSON(t *testing.T) {
	_, err := FromJSON([]byte(`{nope`))
	assert.Error(t, err)
}
