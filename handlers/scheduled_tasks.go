package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"vistream/services/scheduler"
)

// SchedulerHandler exposes background task status and manual triggering.
type SchedulerHandler struct {
	Service *scheduler.Service
}

func NewSchedulerHandler(service *scheduler.Service) *SchedulerHandler {
	return &SchedulerHandler{Service: service}
}

// ListTasks returns every registered task with its last run outcome.
func (h *SchedulerHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.Service.TaskStatus())
}

// RunTask triggers a task outside its schedule.
func (h *SchedulerHandler) RunTask(w http.ResponseWriter, r *http.Request) {
	taskID := strings.TrimSpace(mux.Vars(r)["taskID"])
	if taskID == "" {
		http.Error(w, "task id is required", http.StatusBadRequest)
		return
	}

	if err := h.Service.RunNow(taskID); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}
