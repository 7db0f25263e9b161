package atelier

import (
	"fmt"
	"strings"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
)

// Status is an artifact's lifecycle state. It moves from
// StatusStreaming to exactly one of the terminal states and never
// changes again.
type Status string

const (
	StatusStreaming Status = "streaming"
	StatusComplete  Status = "complete"
	StatusError     Status = "error"
)

// Artifact is one generation slot in a session.
type Artifact struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Text   string `json:"text"`
	Status Status `json:"status"`
}

// Session groups the artifacts produced for one prompt. The slot count
// is fixed at creation; updates replace artifacts but never add or
// remove slots.
type Session struct {
	ID        uuid.UUID       `json:"id"`
	Prompt    string          `json:"prompt"`
	CreatedAt strfmt.DateTime `json:"created_at"`
	Artifacts []Artifact      `json:"artifacts"`
}

// ArtifactID builds the stable identifier for a session slot. All
// updates address artifacts by this id, never by position.
func ArtifactID(sessionID uuid.UUID, slot int) string {
	return fmt.Sprintf("%s/%d", sessionID, slot)
}

// Artifact returns the slot with the given id.
func (s Session) Artifact(id string) (Artifact, bool) {
	for _, artifact := range s.Artifacts {
		if artifact.ID == id {
			return artifact, true
		}
	}
	return Artifact{}, false
}

func (s Session) clone() Session {
	out := s
	out.Artifacts = make([]Artifact, len(s.Artifacts))
	copy(out.Artifacts, s.Artifacts)
	return out
}

// stripFences removes a surrounding markdown code fence. Models wrap
// HTML in ```html fences even when told not to.
func stripFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = trimmed[3:]
	if idx := strings.IndexByte(trimmed, '\n'); idx >= 0 {
		// the rest of the opening fence line is a language tag
		trimmed = trimmed[idx+1:]
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
