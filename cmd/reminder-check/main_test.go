package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-reminders/internal/appointments"
	appconfig "github.com/wolfman30/clinic-reminders/internal/config"
	"github.com/wolfman30/clinic-reminders/internal/reminders"
	"github.com/wolfman30/clinic-reminders/pkg/logging"
)

func TestDueRemindersListsOnlyOpenWindows(t *testing.T) {
	now := time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)
	store := appointments.NewMemoryStore(
		appointments.Appointment{ID: "day", Date: "2026-10-17", Time: "08:10", Status: appointments.StatusConfirmed},
		appointments.Appointment{ID: "soon", Date: "2026-10-16", Time: "10:00", Status: appointments.StatusConfirmed},
		appointments.Appointment{ID: "done", Date: "2026-10-16", Time: "10:00", Status: appointments.StatusConfirmed,
			Reminders: appointments.ReminderState{Sent2h: true}},
		appointments.Appointment{ID: "pending", Date: "2026-10-16", Time: "10:00", Status: appointments.StatusPending},
	)

	got, err := dueReminders(context.Background(), store, now, time.UTC, reminders.DefaultWindows)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "day", got[0].AppointmentID)
	assert.Equal(t, "24h", got[0].Kind)
	assert.Equal(t, "24h10m0s", got[0].Until)
	assert.Equal(t, "soon", got[1].AppointmentID)
	assert.Equal(t, "2h", got[1].Kind)
}

func TestRunPrintsCountsAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "appointments.json")
	at := time.Now().UTC().Add(2 * time.Hour).Truncate(time.Minute)
	seed, err := json.Marshal([]appointments.Appointment{{
		ID: "a1", PatientPhone: "0901234567", Date: at.Format(time.DateOnly), Time: at.Format("15:04"),
		Status: appointments.StatusConfirmed,
	}})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, seed, 0o600))
	t.Setenv("SMS_ENABLED", "true")
	t.Setenv("EMAIL_ENABLED", "false")
	t.Setenv("SMS_GATEWAY_URL", "")
	t.Setenv("SMS_PROVIDER", "auto")

	cfg := &appconfig.Config{
		ReminderStore:    "file",
		AppointmentsFile: path,
		ClinicTimezone:   "UTC",
		ReminderLockTTL:  time.Minute,
	}
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), cfg, false, &out, logging.NewWithWriter(&bytes.Buffer{}, "error")))

	var result reminders.RunResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	assert.Equal(t, 1, result.Sent2h, "lenient mode falls back to log-only SMS")

	saved, err := appointments.NewFileStore(path).ListAppointments(context.Background())
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.True(t, saved[0].Reminders.Sent2h)
}
