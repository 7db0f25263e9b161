package provider

import (
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-ai/atelier/pkg/uuidx"
	"github.com/go-openapi/strfmt"
)

func TestChunkJSONRoundTrip(t *testing.T) {
	chunk := Chunk{
		RunID:     uuidx.New(),
		Text:      "Hel",
		Timestamp: strfmt.DateTime(time.Now().UTC().Truncate(time.Millisecond)),
	}

	data, err := json.Marshal(chunk)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"chunk"`)

	var got Chunk
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, chunk.RunID, got.RunID)
	assert.Equal(t, chunk.Text, got.Text)
}

func TestChunkUnmarshalRejectsWrongType(t *testing.T) {
	var chunk Chunk
	err := json.Unmarshal([]byte(`{"type":"response","run_id":"x","text":"hi"}`), &chunk)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunk")
}

func TestErrorJSONCarriesFault(t *testing.T) {
	event := Error{
		RunID: uuidx.New(),
		Fault: &Fault{Kind: KindRateLimited, Provider: "openai", Status: 429, Message: "openai: rate limit"},
	}

	data, err := json.Marshal(event)
	require.NoError(t, err)

	var got Error
	require.NoError(t, json.Unmarshal(data, &got))
	require.NotNil(t, got.Fault)
	assert.Equal(t, KindRateLimited, got.Fault.Kind)
	assert.Equal(t, 429, got.Fault.Status)
}

func TestErrorUnwrapsToFault(t *testing.T) {
	fault := &Fault{Kind: KindTimeout, Message: "too slow"}
	event := Error{RunID: uuidx.New(), Fault: fault}
	assert.Equal(t, fault, event.Unwrap())
	assert.Contains(t, event.Error(), "too slow")
}

func TestDelimRoundTrip(t *testing.T) {
	delim := Delim{RunID: uuidx.New(), Delim: "start"}
	data, err := json.Marshal(delim)
	require.NoError(t, err)

	var got Delim
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, delim, got)
}
