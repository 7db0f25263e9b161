// Package httpapi exposes generation over HTTP. Two endpoints carry
// generations: one general call (plain JSON or a live SSE-style stream)
// and one variations call that always streams record-bearing text for
// the extract package to resolve on the client side. The rest of the
// surface manages saved items and collections.
package httpapi

import (
	"net/http"

	"github.com/atelier-ai/atelier/store"
)

// Handlers serves the API against the process model registry and an
// optional persistence store.
type Handlers struct {
	defaultModel string
	store        *store.Store
}

// NewRouter builds the API mux. defaultModel is used when a request
// does not name a model; it must be registered before serving. The
// saved-item routes are mounted only when st is non-nil.
func NewRouter(defaultModel string, st *store.Store) http.Handler {
	h := &Handlers{defaultModel: defaultModel, store: st}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /generate", h.handleGenerate)
	mux.HandleFunc("POST /variations", h.handleVariations)
	mux.HandleFunc("GET /models", h.handleModels)

	if st != nil {
		mux.HandleFunc("GET /saved-items", h.handleListSavedItems)
		mux.HandleFunc("POST /saved-items", h.handleSaveItem)
		mux.HandleFunc("DELETE /saved-items/{id}", h.handleDeleteSavedItem)
		mux.HandleFunc("GET /collections", h.handleListCollections)
		mux.HandleFunc("POST /collections", h.handleCreateCollection)
		mux.HandleFunc("DELETE /collections/{id}", h.handleDeleteCollection)
		mux.HandleFunc("POST /collections/{id}/items", h.handleAddToCollection)
	}
	return mux
}
