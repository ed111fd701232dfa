package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/spf13/afero"

	"popcorn/models"
	"popcorn/services/durable"
	"popcorn/services/stats"
	"popcorn/services/watched"
)

func newWatchedService(t *testing.T) *watched.Service {
	t.Helper()
	slot, err := durable.NewFileSlot(afero.NewMemMapFs(), "/data", "watched")
	if err != nil {
		t.Fatalf("file slot: %v", err)
	}
	svc, err := watched.Open(context.Background(), slot, nil)
	if err != nil {
		t.Fatalf("open watched: %v", err)
	}
	return svc
}

func postWatched(t *testing.T, h *WatchedHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.Add(rec, httptest.NewRequest(http.MethodPost, "/api/watched", strings.NewReader(body)))
	return rec
}

func TestWatchedAddListRemove(t *testing.T) {
	h := NewWatchedHandler(newWatchedService(t))

	rec := postWatched(t, h, `{"id":"tt1","title":"Heat","criticRating":8.3,"runtimeMinutes":170,"userRating":9}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = postWatched(t, h, `{"id":"tt2","title":"Ronin","criticRating":7.2,"runtimeMinutes":122,"userRating":7}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/watched", nil))
	var items []models.WatchedEntry
	if err := json.NewDecoder(rec.Body).Decode(&items); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(items) != 2 || items[0].ID != "tt1" || items[1].ID != "tt2" {
		t.Fatalf("unexpected list %+v", items)
	}

	req := mux.SetURLVars(httptest.NewRequest(http.MethodDelete, "/api/watched/tt1", nil), map[string]string{"id": "tt1"})
	rec = httptest.NewRecorder()
	h.Remove(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.Remove(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 on second remove, got %d", rec.Code)
	}
}

func TestWatchedAddErrors(t *testing.T) {
	h := NewWatchedHandler(newWatchedService(t))
	if rec := postWatched(t, h, `{"id":"tt1","title":"Heat","userRating":9}`); rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rec.Code)
	}

	cases := []struct {
		name   string
		body   string
		status int
	}{
		{"duplicate", `{"id":"tt1","title":"Heat","userRating":5}`, http.StatusConflict},
		{"missing id", `{"title":"Heat","userRating":5}`, http.StatusBadRequest},
		{"rating too high", `{"id":"tt9","userRating":11}`, http.StatusBadRequest},
		{"negative runtime", `{"id":"tt9","userRating":5,"runtimeMinutes":-1}`, http.StatusBadRequest},
		{"bad json", `{`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		rec := postWatched(t, h, tc.body)
		if rec.Code != tc.status {
			t.Fatalf("%s: expected status %d, got %d: %s", tc.name, tc.status, rec.Code, rec.Body.String())
		}
	}
}

func TestWatchedFilterAndSummary(t *testing.T) {
	h := NewWatchedHandler(newWatchedService(t))

	rec := httptest.NewRecorder()
	h.Summary(rec, httptest.NewRequest(http.MethodGet, "/api/watched/summary", nil))
	var empty stats.Summary
	if err := json.NewDecoder(rec.Body).Decode(&empty); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if empty.Count != 0 || empty.MeanUserRatingDisplay != "0.00" {
		t.Fatalf("unexpected empty summary %+v", empty)
	}

	postWatched(t, h, `{"id":"tt1","title":"The Dark Knight","criticRating":9,"runtimeMinutes":152,"userRating":10}`)
	postWatched(t, h, `{"id":"tt2","title":"Amélie","criticRating":8,"runtimeMinutes":122,"userRating":7}`)

	rec = httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/watched?q=amelie", nil))
	var items []models.WatchedEntry
	if err := json.NewDecoder(rec.Body).Decode(&items); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(items) != 1 || items[0].ID != "tt2" {
		t.Fatalf("unexpected filter result %+v", items)
	}

	rec = httptest.NewRecorder()
	h.Summary(rec, httptest.NewRequest(http.MethodGet, "/api/watched/summary", nil))
	var summary stats.Summary
	if err := json.NewDecoder(rec.Body).Decode(&summary); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if summary.Count != 2 || summary.MeanUserRatingDisplay != "8.50" || summary.MeanRuntimeMinutesDisplay != "137.00" {
		t.Fatalf("unexpected summary %+v", summary)
	}
}
