package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"popcorn/services/scheduler"
)

func TestTasksListAndRun(t *testing.T) {
	svc := scheduler.NewService(time.Minute)
	svc.Register(scheduler.Task{ID: "noop", Name: "No-op", Interval: time.Hour, Run: func(context.Context) (int, error) { return 0, nil }})
	h := NewTasksHandler(svc)

	req := mux.SetURLVars(httptest.NewRequest(http.MethodPost, "/api/tasks/noop/run", nil), map[string]string{"id": "noop"})
	rec := httptest.NewRecorder()
	h.Run(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d", rec.Code)
	}
	svc.Wait()

	rec = httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/tasks", nil))
	var states []scheduler.TaskState
	if err := json.NewDecoder(rec.Body).Decode(&states); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(states) != 1 || states[0].LastStatus != scheduler.TaskStatusSuccess {
		t.Fatalf("unexpected task states %+v", states)
	}

	req = mux.SetURLVars(httptest.NewRequest(http.MethodPost, "/api/tasks/nope/run", nil), map[string]string{"id": "nope"})
	rec = httptest.NewRecorder()
	h.Run(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
}
