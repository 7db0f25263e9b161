// Package sse implements the wire framing for streamed generations:
// self-delimited `data: <payload>` frames separated by blank lines, with
// a literal `data: [DONE]` sentinel terminating the stream. The encoder
// is the server half, the consumer the client half; both tolerate
// arbitrary split points between network reads.
package sse

import (
	"net/http"

	"github.com/atelier-ai/atelier/provider"
	json "github.com/goccy/go-json"
)

// Terminal is the sentinel payload that ends every stream.
const Terminal = "[DONE]"

const dataPrefix = "data:"

// framePayload is the JSON body of a non-terminal frame. Exactly one of
// Text or Error is meaningful: an error frame carries the classified
// fault inline so the consumer can surface it as a typed failure.
type framePayload struct {
	Text     string        `json:"text,omitempty"`
	Error    string        `json:"error,omitempty"`
	Kind     provider.Kind `json:"kind,omitempty"`
	Provider string        `json:"provider,omitempty"`
	Status   int           `json:"status,omitempty"`
}

func encodeText(text string) ([]byte, error) {
	// Never omit the text field: an empty increment is a legitimate
	// frame, distinct from an error frame.
	return json.Marshal(struct {
		Text string `json:"text"`
	}{Text: text})
}

func encodeFault(fault *provider.Fault) ([]byte, error) {
	payload := framePayload{
		Error:    fault.Message,
		Kind:     fault.Kind,
		Provider: fault.Provider,
		Status:   fault.Status,
	}
	if payload.Error == "" {
		payload.Error = "upstream generation failed"
	}
	return json.Marshal(payload)
}

func (f framePayload) fault() *provider.Fault {
	kind := f.Kind
	if kind == "" {
		kind = provider.KindUnknown
	}
	status := f.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return &provider.Fault{
		Kind:     kind,
		Provider: f.Provider,
		Status:   status,
		Message:  f.Error,
	}
}
