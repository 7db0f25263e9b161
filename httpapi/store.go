package httpapi

import (
	"errors"
	"net/http"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/atelier-ai/atelier/store"
)

type saveItemRequest struct {
	Label string `json:"label"`
	HTML  string `json:"html"`
}

type createCollectionRequest struct {
	Name string `json:"name"`
}

type addToCollectionRequest struct {
	ItemID uuid.UUID `json:"item_id"`
}

func (h *Handlers) handleListSavedItems(w http.ResponseWriter, _ *http.Request) {
	items, err := h.store.SavedItems()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if items == nil {
		items = []store.SavedItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handlers) handleSaveItem(w http.ResponseWriter, r *http.Request) {
	var req saveItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.HTML) == "" {
		writeError(w, http.StatusBadRequest, "html is required")
		return
	}
	item, err := h.store.SaveItem(req.Label, req.HTML)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (h *Handlers) handleDeleteSavedItem(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}
	if err := h.store.DeleteItem(id); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) handleListCollections(w http.ResponseWriter, _ *http.Request) {
	collections, err := h.store.Collections()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if collections == nil {
		collections = []store.Collection{}
	}
	writeJSON(w, http.StatusOK, collections)
}

func (h *Handlers) handleCreateCollection(w http.ResponseWriter, r *http.Request) {
	var req createCollectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	collection, err := h.store.CreateCollection(req.Name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, collection)
}

func (h *Handlers) handleAddToCollection(w http.ResponseWriter, r *http.Request) {
	collectionID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid collection id")
		return
	}
	var req addToCollectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.store.AddToCollection(collectionID, req.ItemID); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) handleDeleteCollection(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid collection id")
		return
	}
	if err := h.store.DeleteCollection(id); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}
