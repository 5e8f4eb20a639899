package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/wolfman30/clinic-reminders/internal/reminders"
	"github.com/wolfman30/clinic-reminders/pkg/logging"
)

// ReminderRunner is the slice of the scheduler the admin routes drive.
type ReminderRunner interface {
	RunOnce(ctx context.Context) (reminders.RunResult, error)
	Status() reminders.Status
}

// RemindersHandler exposes manual reminder passes and scheduler status.
type RemindersHandler struct {
	runner ReminderRunner
	logger *logging.Logger
}

// NewRemindersHandler creates a new reminders handler.
func NewRemindersHandler(runner ReminderRunner, logger *logging.Logger) *RemindersHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &RemindersHandler{runner: runner, logger: logger}
}

// RunResponse is the body of POST /admin/reminders/run.
type RunResponse struct {
	reminders.RunResult
	Error string `json:"error,omitempty"`
}

// StatusResponse is the body of GET /admin/reminders/status.
type StatusResponse struct {
	Running    bool                `json:"running"`
	InProgress bool                `json:"in_progress"`
	Interval   string              `json:"interval,omitempty"`
	LastRunAt  *time.Time          `json:"last_run_at,omitempty"`
	LastResult reminders.RunResult `json:"last_result"`
	LastError  string              `json:"last_error,omitempty"`
}

// Run performs one reminder pass synchronously and returns its counts.
func (h *RemindersHandler) Run(w http.ResponseWriter, r *http.Request) {
	result, err := h.runner.RunOnce(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, RunResponse{RunResult: result})
	case errors.Is(err, reminders.ErrAlreadyRunning):
		writeJSON(w, http.StatusConflict, RunResponse{Error: "a reminder pass is already running"})
	default:
		h.logger.Error("manual reminder pass failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, RunResponse{RunResult: result, Error: err.Error()})
	}
}

// Status reports whether the timer is active and what the last pass did.
func (h *RemindersHandler) Status(w http.ResponseWriter, r *http.Request) {
	st := h.runner.Status()
	resp := StatusResponse{
		Running:    st.Running,
		InProgress: st.InProgress,
		LastResult: st.LastResult,
		LastError:  st.LastError,
	}
	if st.Interval > 0 {
		resp.Interval = st.Interval.String()
	}
	if !st.LastRunAt.IsZero() {
		at := st.LastRunAt.UTC()
		resp.LastRunAt = &at
	}
	writeJSON(w, http.StatusOK, resp)
}

// Health is the liveness probe.
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
