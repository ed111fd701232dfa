package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"popcorn/internal/validation"
	"popcorn/services/session"
	"popcorn/services/watched"
)

// keepAliveInterval is how often an idle event stream sends a comment line.
const keepAliveInterval = 25 * time.Second

type sessionManager interface {
	Create() *session.Session
	Get(id string) (*session.Session, error)
	Delete(id string) error
}

var _ sessionManager = (*session.Manager)(nil)

type queryRequest struct {
	Query string `json:"query"`
}

type selectRequest struct {
	ID string `json:"id" validate:"required"`
}

type keyRequest struct {
	Key string `json:"key" validate:"required"`
}

type focusRequest struct {
	Focused bool `json:"focused"`
}

type rateRequest struct {
	Rating int `json:"rating"`
}

type keyResponse struct {
	Handled bool          `json:"handled"`
	State   session.State `json:"state"`
}

// SessionsHandler drives per-user sessions over HTTP.
type SessionsHandler struct {
	Manager   sessionManager
	validate  *validation.Validator
	keepAlive time.Duration
}

func NewSessionsHandler(m sessionManager) *SessionsHandler {
	return &SessionsHandler{Manager: m, validate: validation.New(), keepAlive: keepAliveInterval}
}

func (h *SessionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	s := h.Manager.Create()
	writeJSON(w, http.StatusCreated, s.State())
}

func (h *SessionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.State())
}

func (h *SessionsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Manager.Delete(mux.Vars(r)["id"]); err != nil {
		writeSessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetQuery replaces the search box value. The response reflects the state
// right after the change; results arrive later via Get or Events.
func (h *SessionsHandler) SetQuery(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req queryRequest
	if err := decodeBody(r, nil, &req); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.respond(w, s, s.SetQuery(req.Query))
}

func (h *SessionsHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	h.respond(w, s, s.Refresh())
}

func (h *SessionsHandler) Focus(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req focusRequest
	if err := decodeBody(r, nil, &req); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.respond(w, s, s.SetSearchFocus(req.Focused))
}

func (h *SessionsHandler) Select(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req selectRequest
	if err := decodeBody(r, h.validate, &req); err != nil {
		writeValidationError(w, err)
		return
	}
	h.respond(w, s, s.Select(req.ID))
}

func (h *SessionsHandler) Close(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	h.respond(w, s, s.Close())
}

func (h *SessionsHandler) Keys(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req keyRequest
	if err := decodeBody(r, h.validate, &req); err != nil {
		writeValidationError(w, err)
		return
	}
	handled, err := s.PressKey(req.Key)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, keyResponse{Handled: handled, State: s.State()})
}

func (h *SessionsHandler) Rate(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req rateRequest
	if err := decodeBody(r, nil, &req); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.respond(w, s, s.Rate(req.Rating))
}

// Confirm adds the viewed title to the watched list and returns the new entry.
func (h *SessionsHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	entry, err := s.Confirm(r.Context())
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// Events streams session snapshots as server-sent events. Bursts of
// updates are coalesced so a slow client only ever sees the latest state.
func (h *SessionsHandler) Events(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	var (
		mu     sync.Mutex
		latest session.State
		notify = make(chan struct{}, 1)
	)
	unsubscribe := s.Subscribe(func(st session.State) {
		mu.Lock()
		latest = st
		mu.Unlock()
		select {
		case notify <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, s.State()); err != nil {
		return
	}
	flusher.Flush()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.Done():
			fmt.Fprint(w, "event: closed\ndata: {}\n\n")
			flusher.Flush()
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case <-notify:
			mu.Lock()
			st := latest
			mu.Unlock()
			if err := writeEvent(w, st); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, st session.State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: state\ndata: %s\n\n", st.Version, data)
	return err
}

func (h *SessionsHandler) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, err := h.Manager.Get(mux.Vars(r)["id"])
	if err != nil {
		writeSessionError(w, err)
		return nil, false
	}
	return s, true
}

func (h *SessionsHandler) respond(w http.ResponseWriter, s *session.Session, err error) {
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.State())
}

func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		writeJSONError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, session.ErrClosed):
		writeJSONError(w, err.Error(), http.StatusGone)
	case errors.Is(err, session.ErrIDRequired), errors.Is(err, watched.ErrInvalidRating):
		writeJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, validation.ErrInvalid):
		writeValidationError(w, err)
	case errors.Is(err, session.ErrNotViewing),
		errors.Is(err, session.ErrDetailNotReady),
		errors.Is(err, session.ErrNoRating),
		errors.Is(err, watched.ErrAlreadyWatched):
		writeJSONError(w, err.Error(), http.StatusConflict)
	default:
		log.Printf("[sessions] request failed: %v", err)
		writeJSONError(w, "internal error", http.StatusInternalServerError)
	}
}
