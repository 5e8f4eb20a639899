package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-reminders/internal/reminders"
)

type stubRunner struct {
	result reminders.RunResult
	err    error
	status reminders.Status
	calls  int
}

func (s *stubRunner) RunOnce(ctx context.Context) (reminders.RunResult, error) {
	s.calls++
	return s.result, s.err
}

func (s *stubRunner) Status() reminders.Status { return s.status }

func TestRemindersRunReturnsCounts(t *testing.T) {
	runner := &stubRunner{result: reminders.RunResult{Sent24h: 2, Sent2h: 1}}
	rec := httptest.NewRecorder()

	NewRemindersHandler(runner, nil).Run(rec, httptest.NewRequest(http.MethodPost, "/admin/reminders/run", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, runner.calls)
	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, float64(2), body["sent24h"])
	assert.Equal(t, float64(1), body["sent2h"])
	assert.Equal(t, float64(0), body["errors"])
	assert.NotContains(t, body, "error")
}

func TestRemindersRunConflict(t *testing.T) {
	runner := &stubRunner{err: reminders.ErrAlreadyRunning}
	rec := httptest.NewRecorder()

	NewRemindersHandler(runner, nil).Run(rec, httptest.NewRequest(http.MethodPost, "/admin/reminders/run", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRemindersRunFailureKeepsPartialCounts(t *testing.T) {
	runner := &stubRunner{
		result: reminders.RunResult{Sent24h: 1},
		err:    fmt.Errorf("%w: %w", reminders.ErrMarkFailed, errors.New("disk full")),
	}
	rec := httptest.NewRecorder()

	NewRemindersHandler(runner, nil).Run(rec, httptest.NewRequest(http.MethodPost, "/admin/reminders/run", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var resp RunResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 1, resp.Sent24h)
	assert.Contains(t, resp.Error, "disk full")
}

func TestRemindersStatus(t *testing.T) {
	last := time.Date(2026, 10, 16, 8, 0, 0, 0, time.FixedZone("ICT", 7*3600))
	runner := &stubRunner{status: reminders.Status{
		Running:    true,
		Interval:   30 * time.Minute,
		LastRunAt:  last,
		LastResult: reminders.RunResult{Sent2h: 3},
	}}
	rec := httptest.NewRecorder()

	NewRemindersHandler(runner, nil).Status(rec, httptest.NewRequest(http.MethodGet, "/admin/reminders/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp StatusResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Running)
	assert.Equal(t, "30m0s", resp.Interval)
	require.NotNil(t, resp.LastRunAt)
	assert.True(t, last.Equal(*resp.LastRunAt))
	assert.Equal(t, 3, resp.LastResult.Sent2h)
}

func TestRemindersStatusNeverRun(t *testing.T) {
	rec := httptest.NewRecorder()
	NewRemindersHandler(&stubRunner{}, nil).Status(rec, httptest.NewRequest(http.MethodGet, "/admin/reminders/status", nil))

	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, false, body["running"])
	assert.NotContains(t, body, "last_run_at")
	assert.NotContains(t, body, "interval")
}
