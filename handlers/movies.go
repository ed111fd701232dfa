package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/sourcegraph/conc/pool"

	"popcorn/internal/validation"
	"popcorn/models"
	"popcorn/services/omdb"
	"popcorn/services/search"
)

type movieService interface {
	Search(ctx context.Context, query string) ([]models.SearchResultItem, error)
	Details(ctx context.Context, id string) (*models.MovieDetail, error)
}

var _ movieService = (*omdb.Client)(nil)

// batchConcurrency bounds upstream detail calls per batch request.
const batchConcurrency = 4

// BatchDetailsRequest lists the ids to resolve.
type BatchDetailsRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,max=20,dive,required"`
}

type BatchDetailsResponse struct {
	Results []models.BatchDetailsItem `json:"results"`
}

// MoviesHandler exposes stateless search and detail lookups.
type MoviesHandler struct {
	Service  movieService
	validate *validation.Validator
}

func NewMoviesHandler(s movieService) *MoviesHandler {
	return &MoviesHandler{Service: s, validate: validation.New()}
}

func (h *MoviesHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeJSON(w, http.StatusOK, []models.SearchResultItem{})
		return
	}

	results, err := h.Service.Search(r.Context(), q)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	if results == nil {
		results = []models.SearchResultItem{}
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *MoviesHandler) Details(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(mux.Vars(r)["id"])
	if id == "" {
		writeJSONError(w, "id is required", http.StatusBadRequest)
		return
	}

	detail, err := h.Service.Details(r.Context(), id)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// BatchDetails resolves several ids concurrently; per-id failures are reported inline.
func (h *MoviesHandler) BatchDetails(w http.ResponseWriter, r *http.Request) {
	var req BatchDetailsRequest
	if err := decodeBody(r, h.validate, &req); err != nil {
		writeValidationError(w, err)
		return
	}

	results := make([]models.BatchDetailsItem, len(req.IDs))
	p := pool.New().WithMaxGoroutines(batchConcurrency)
	for i, id := range req.IDs {
		p.Go(func() {
			results[i].ID = id
			detail, err := h.Service.Details(r.Context(), id)
			if err != nil {
				results[i].Error = upstreamMessage(err)
				return
			}
			results[i].Details = detail
		})
	}
	p.Wait()

	writeJSON(w, http.StatusOK, BatchDetailsResponse{Results: results})
}

func upstreamMessage(err error) string {
	if errors.Is(err, omdb.ErrNotFound) {
		return search.MessageNotFound
	}
	return search.MessageFailed
}

func writeUpstreamError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, omdb.ErrNotFound):
		writeJSONError(w, search.MessageNotFound, http.StatusNotFound)
	case errors.Is(err, omdb.ErrAPIKeyMissing):
		writeJSONError(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, context.Canceled):
		// client went away
	default:
		log.Printf("[movies] upstream error: %v", err)
		writeJSONError(w, search.MessageFailed, http.StatusBadGateway)
	}
}
