package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/atelier-ai/atelier/api"
	"github.com/atelier-ai/atelier/pkg/slogx"
	"github.com/atelier-ai/atelier/pkg/uuidx"
	"github.com/atelier-ai/atelier/provider"
	"github.com/atelier-ai/atelier/provider/models"
	"github.com/atelier-ai/atelier/sse"
)

type generateRequest struct {
	Prompt      string   `json:"prompt"`
	Model       string   `json:"model,omitempty"`
	Stream      bool     `json:"stream,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

// variationInstructions shapes the stream so each variation arrives as
// one self-contained JSON object the extractor can pick out of the
// surrounding text.
const variationInstructions = "You generate design variations as HTML snippets with inline styles. " +
	`For each variation emit exactly one JSON object of the form {"name": "...", "html": "..."}. ` +
	"Emit the objects back to back: no surrounding array, no commentary, no markdown fences."

func (h *Handlers) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	model, ok := h.lookupModel(w, req.Model)
	if !ok {
		return
	}

	ch, ok := h.startGeneration(w, r, provider.Request{
		RunID:       uuidx.New(),
		Prompt:      req.Prompt,
		Stream:      req.Stream,
		Temperature: req.Temperature,
		Model:       model,
	})
	if !ok {
		return
	}

	if req.Stream {
		streamEvents(w, ch)
		return
	}

	var text string
	for event := range ch {
		switch event := event.(type) {
		case provider.Response:
			text = event.Text
		case provider.Error:
			fault := event.Fault
			writeError(w, fault.Status, fault.Message)
			return
		}
	}
	writeJSON(w, http.StatusOK, textResponse{Text: text})
}

func (h *Handlers) handleVariations(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	model, ok := h.lookupModel(w, req.Model)
	if !ok {
		return
	}

	// Variations always stream: the payload is a sequence of records and
	// the whole point is rendering them as they complete.
	ch, ok := h.startGeneration(w, r, provider.Request{
		RunID:        uuidx.New(),
		Instructions: variationInstructions,
		Prompt:       req.Prompt,
		Stream:       true,
		Temperature:  req.Temperature,
		Model:        model,
	})
	if !ok {
		return
	}
	streamEvents(w, ch)
}

func (h *Handlers) handleModels(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, modelsResponse{Models: models.Names()})
}

func (h *Handlers) lookupModel(w http.ResponseWriter, name string) (api.Model, bool) {
	if name == "" {
		name = h.defaultModel
	}
	model, ok := models.Get(name)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown model: "+name)
		return nil, false
	}
	return model, true
}

// startGeneration issues the provider call and maps construction-time
// failures onto HTTP statuses before any stream bytes are committed.
func (h *Handlers) startGeneration(w http.ResponseWriter, r *http.Request, req provider.Request) (<-chan provider.StreamEvent, bool) {
	ch, err := req.Model.Provider().Generate(r.Context(), req)
	if err != nil {
		var credErr *provider.CredentialError
		if errors.As(err, &credErr) {
			writeError(w, http.StatusInternalServerError, credErr.Error())
			return nil, false
		}
		fault := provider.Classify(err, req.Model.Name())
		writeError(w, fault.Status, fault.Message)
		return nil, false
	}
	return ch, true
}

// streamEvents relays provider events as SSE frames. The terminal frame
// goes out on every exit path, including after an in-band fault.
func streamEvents(w http.ResponseWriter, ch <-chan provider.StreamEvent) {
	enc, err := sse.NewEncoder(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer func() {
		if cerr := enc.Close(); cerr != nil {
			slog.Warn("failed to close event stream", slogx.Error(cerr))
		}
	}()

	for event := range ch {
		switch event := event.(type) {
		case provider.Chunk:
			if werr := enc.WriteText(event.Text); werr != nil {
				slog.Warn("client went away mid-stream", slogx.Error(werr))
				return
			}
		case provider.Error:
			if werr := enc.WriteFault(event.Fault); werr != nil {
				slog.Warn("client went away mid-stream", slogx.Error(werr))
			}
			return
		}
	}
}
