package provider

import (
	"fmt"

	"github.com/go-openapi/strfmt"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var (
	delimJSON    = []byte(`{"type":"delim"}`)
	chunkJSON    = []byte(`{"type":"chunk"}`)
	responseJSON = []byte(`{"type":"response"}`)
	errorJSON    = []byte(`{"type":"error"}`)
)

// StreamEvent is the closed set of events a Provider can emit.
type StreamEvent interface {
	streamEvent()
}

// Delim marks a stream boundary ("start", "end", "empty").
type Delim struct {
	RunID uuid.UUID `json:"run_id"`
	Delim string    `json:"delim"`
}

func (Delim) streamEvent() {}

// Chunk carries one incremental fragment of generated text. Fragments
// for one run concatenate in arrival order to form the final text.
type Chunk struct {
	RunID     uuid.UUID       `json:"run_id"`
	Text      string          `json:"text"`
	Timestamp strfmt.DateTime `json:"timestamp,omitempty"`
}

func (Chunk) streamEvent() {}

// Response carries the complete text of a finished generation.
type Response struct {
	RunID     uuid.UUID       `json:"run_id"`
	Text      string          `json:"text"`
	Timestamp strfmt.DateTime `json:"timestamp,omitempty"`
}

func (Response) streamEvent() {}

// Error carries a classified upstream fault.
type Error struct {
	RunID     uuid.UUID       `json:"run_id"`
	Fault     *Fault          `json:"fault"`
	Timestamp strfmt.DateTime `json:"timestamp,omitempty"`
}

func (Error) streamEvent() {}

func (e Error) Error() string {
	return fmt.Sprintf("run_id: %s, timestamp: %s, fault: %v", e.RunID, e.Timestamp, e.Fault)
}

func (e Error) Unwrap() error {
	if e.Fault == nil {
		return nil
	}
	return e.Fault
}

// MarshalJSON implements custom JSON marshaling for Delim
func (d Delim) MarshalJSON() ([]byte, error) {
	result, err := sjson.SetBytes(delimJSON, "run_id", d.RunID.String())
	if err != nil {
		return nil, err
	}
	return sjson.SetBytes(result, "delim", d.Delim)
}

// UnmarshalJSON implements custom JSON unmarshaling for Delim
func (d *Delim) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}

	msgType := gjson.GetBytes(data, "type")
	if !msgType.Exists() || msgType.String() != "delim" {
		return fmt.Errorf("missing or invalid type, expected 'delim'")
	}

	if err := unmarshalRunID(data, &d.RunID); err != nil {
		return err
	}

	delim := gjson.GetBytes(data, "delim")
	if !delim.Exists() {
		return fmt.Errorf("missing required field 'delim'")
	}
	d.Delim = delim.String()

	return nil
}

// MarshalJSON implements custom JSON marshaling for Chunk
func (c Chunk) MarshalJSON() ([]byte, error) {
	result, err := sjson.SetBytes(chunkJSON, "run_id", c.RunID.String())
	if err != nil {
		return nil, err
	}
	result, err = sjson.SetBytes(result, "text", c.Text)
	if err != nil {
		return nil, err
	}
	return setTimestamp(result, c.Timestamp)
}

// UnmarshalJSON implements custom JSON unmarshaling for Chunk
func (c *Chunk) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}

	msgType := gjson.GetBytes(data, "type")
	if !msgType.Exists() || msgType.String() != "chunk" {
		return fmt.Errorf("missing or invalid type, expected 'chunk'")
	}

	if err := unmarshalRunID(data, &c.RunID); err != nil {
		return err
	}

	text := gjson.GetBytes(data, "text")
	if !text.Exists() {
		return fmt.Errorf("missing required field 'text'")
	}
	c.Text = text.String()

	return unmarshalTimestamp(data, &c.Timestamp)
}

// MarshalJSON implements custom JSON marshaling for Response
func (r Response) MarshalJSON() ([]byte, error) {
	result, err := sjson.SetBytes(responseJSON, "run_id", r.RunID.String())
	if err != nil {
		return nil, err
	}
	result, err = sjson.SetBytes(result, "text", r.Text)
	if err != nil {
		return nil, err
	}
	return setTimestamp(result, r.Timestamp)
}

// UnmarshalJSON implements custom JSON unmarshaling for Response
func (r *Response) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}

	msgType := gjson.GetBytes(data, "type")
	if !msgType.Exists() || msgType.String() != "response" {
		return fmt.Errorf("missing or invalid type, expected 'response'")
	}

	if err := unmarshalRunID(data, &r.RunID); err != nil {
		return err
	}

	text := gjson.GetBytes(data, "text")
	if !text.Exists() {
		return fmt.Errorf("missing required field 'text'")
	}
	r.Text = text.String()

	return unmarshalTimestamp(data, &r.Timestamp)
}

// MarshalJSON implements custom JSON marshaling for Error
func (e Error) MarshalJSON() ([]byte, error) {
	result, err := sjson.SetBytes(errorJSON, "run_id", e.RunID.String())
	if err != nil {
		return nil, err
	}

	if e.Fault != nil {
		fb, err := json.Marshal(e.Fault)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal fault: %w", err)
		}
		result, err = sjson.SetRawBytes(result, "fault", fb)
		if err != nil {
			return nil, err
		}
	}

	return setTimestamp(result, e.Timestamp)
}

// UnmarshalJSON implements custom JSON unmarshaling for Error
func (e *Error) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}

	msgType := gjson.GetBytes(data, "type")
	if !msgType.Exists() || msgType.String() != "error" {
		return fmt.Errorf("missing or invalid type, expected 'error'")
	}

	if err := unmarshalRunID(data, &e.RunID); err != nil {
		return err
	}

	fault := gjson.GetBytes(data, "fault")
	if !fault.Exists() {
		return fmt.Errorf("missing required field 'fault'")
	}
	e.Fault = &Fault{}
	if err := json.Unmarshal([]byte(fault.Raw), e.Fault); err != nil {
		return fmt.Errorf("invalid fault: %w", err)
	}

	return unmarshalTimestamp(data, &e.Timestamp)
}

func unmarshalRunID(data []byte, dst *uuid.UUID) error {
	runID := gjson.GetBytes(data, "run_id")
	if !runID.Exists() {
		return fmt.Errorf("missing required field 'run_id'")
	}
	if err := dst.UnmarshalText([]byte(runID.String())); err != nil {
		return fmt.Errorf("invalid run_id: %w", err)
	}
	return nil
}

func setTimestamp(result []byte, ts strfmt.DateTime) ([]byte, error) {
	if ts.IsZero() {
		return result, nil
	}
	return sjson.SetBytes(result, "timestamp", ts.String())
}

func unmarshalTimestamp(data []byte, dst *strfmt.DateTime) error {
	if timestamp := gjson.GetBytes(data, "timestamp"); timestamp.Exists() {
		if err := dst.UnmarshalText([]byte(timestamp.String())); err != nil {
			return fmt.Errorf("invalid timestamp: %w", err)
		}
	}
	return nil
}
