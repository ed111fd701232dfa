package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"popcorn/services/scheduler"
)

type taskService interface {
	GetTaskStatus() []scheduler.TaskState
	RunTaskNow(taskID string) error
}

var _ taskService = (*scheduler.Service)(nil)

// TasksHandler exposes the maintenance scheduler.
type TasksHandler struct {
	Service taskService
}

func NewTasksHandler(s taskService) *TasksHandler {
	return &TasksHandler{Service: s}
}

func (h *TasksHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Service.GetTaskStatus())
}

func (h *TasksHandler) Run(w http.ResponseWriter, r *http.Request) {
	err := h.Service.RunTaskNow(mux.Vars(r)["id"])
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
	case errors.Is(err, scheduler.ErrTaskNotFound):
		writeJSONError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, scheduler.ErrTaskRunning):
		writeJSONError(w, err.Error(), http.StatusConflict)
	default:
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
	}
}
