package httpapi

import (
	"log/slog"
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/atelier-ai/atelier/pkg/slogx"
)

type errorResponse struct {
	Error string `json:"error"`
}

type textResponse struct {
	Text string `json:"text"`
}

type modelsResponse struct {
	Models []string `json:"models"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Warn("failed to write response body", slogx.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
