// Package events defines the observer-facing event set for studio
// sessions. Generation tasks publish these through a broker topic;
// hooks (console renderers, UI bridges, log sinks) subscribe without
// ever touching the session arena.
package events

import (
	"fmt"

	"github.com/atelier-ai/atelier/provider"
	"github.com/go-openapi/strfmt"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Event is the closed set of session lifecycle events.
type Event interface {
	sessionEvent()
}

// SessionStarted announces a new session and its slot count.
type SessionStarted struct {
	SessionID uuid.UUID       `json:"session_id"`
	Prompt    string          `json:"prompt"`
	Slots     int             `json:"slots"`
	Timestamp strfmt.DateTime `json:"timestamp,omitempty"`
}

func (SessionStarted) sessionEvent() {}

// ArtifactChunk carries one text increment for one artifact.
type ArtifactChunk struct {
	SessionID  uuid.UUID       `json:"session_id"`
	ArtifactID string          `json:"artifact_id"`
	Text       string          `json:"text"`
	Timestamp  strfmt.DateTime `json:"timestamp,omitempty"`
}

func (ArtifactChunk) sessionEvent() {}

// ArtifactCompleted marks an artifact's terminal success.
type ArtifactCompleted struct {
	SessionID  uuid.UUID       `json:"session_id"`
	ArtifactID string          `json:"artifact_id"`
	Label      string          `json:"label"`
	Text       string          `json:"text"`
	Timestamp  strfmt.DateTime `json:"timestamp,omitempty"`
}

func (ArtifactCompleted) sessionEvent() {}

// ArtifactFailed marks an artifact's terminal failure.
type ArtifactFailed struct {
	SessionID  uuid.UUID       `json:"session_id"`
	ArtifactID string          `json:"artifact_id"`
	Fault      *provider.Fault `json:"fault"`
	Timestamp  strfmt.DateTime `json:"timestamp,omitempty"`
}

func (ArtifactFailed) sessionEvent() {}

const typeField = "type"

func typeName(event Event) string {
	switch event.(type) {
	case SessionStarted:
		return "session_started"
	case ArtifactChunk:
		return "artifact_chunk"
	case ArtifactCompleted:
		return "artifact_completed"
	case ArtifactFailed:
		return "artifact_failed"
	default:
		return ""
	}
}

// ToJSON serializes an event with an envelope type tag, for transports
// that need self-describing payloads (the NATS broker).
func ToJSON(event Event) ([]byte, error) {
	name := typeName(event)
	if name == "" {
		return nil, fmt.Errorf("unknown event type %T", event)
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return sjson.SetBytes(payload, typeField, name)
}

// FromJSON decodes an envelope produced by ToJSON.
func FromJSON(data []byte) (Event, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid json: %s", data)
	}
	name := gjson.GetBytes(data, typeField).String()

	switch name {
	case "session_started":
		var ev SessionStarted
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case "artifact_chunk":
		var ev ArtifactChunk
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case "artifact_completed":
		var ev ArtifactCompleted
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case "artifact_failed":
		var ev ArtifactFailed
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", name)
	}
}
