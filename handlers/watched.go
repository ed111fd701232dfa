package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"popcorn/internal/validation"
	"popcorn/models"
	"popcorn/services/stats"
	"popcorn/services/watched"
)

type watchedService interface {
	List() []models.WatchedEntry
	Filter(query string) []models.WatchedEntry
	Add(ctx context.Context, input models.WatchedAdd) (models.WatchedEntry, error)
	Remove(ctx context.Context, id string) error
	Summary() stats.Summary
}

var _ watchedService = (*watched.Service)(nil)

type WatchedHandler struct {
	Service  watchedService
	validate *validation.Validator
}

func NewWatchedHandler(s watchedService) *WatchedHandler {
	return &WatchedHandler{Service: s, validate: validation.New()}
}

// List returns the watched collection in insertion order, optionally narrowed by ?q=.
func (h *WatchedHandler) List(w http.ResponseWriter, r *http.Request) {
	var items []models.WatchedEntry
	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		items = h.Service.Filter(q)
	} else {
		items = h.Service.List()
	}
	if items == nil {
		items = []models.WatchedEntry{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *WatchedHandler) Add(w http.ResponseWriter, r *http.Request) {
	var input models.WatchedAdd
	if err := decodeBody(r, nil, &input); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	entry, err := h.Service.Add(r.Context(), input)
	if err != nil {
		writeWatchedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (h *WatchedHandler) Remove(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.Service.Remove(r.Context(), id); err != nil {
		writeWatchedError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *WatchedHandler) Summary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Service.Summary())
}

func writeWatchedError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, validation.ErrInvalid):
		writeValidationError(w, err)
	case errors.Is(err, watched.ErrIDRequired), errors.Is(err, watched.ErrInvalidRating):
		writeJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, watched.ErrAlreadyWatched):
		writeJSONError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, watched.ErrNotWatched):
		writeJSONError(w, err.Error(), http.StatusNotFound)
	default:
		log.Printf("[watched] storage error: %v", err)
		writeJSONError(w, "failed to update watched list", http.StatusInternalServerError)
	}
}
