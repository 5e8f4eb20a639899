package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wolfman30/clinic-reminders/internal/appointments"
	"github.com/wolfman30/clinic-reminders/internal/app/bootstrap"
	appconfig "github.com/wolfman30/clinic-reminders/internal/config"
	"github.com/wolfman30/clinic-reminders/internal/reminders"
	"github.com/wolfman30/clinic-reminders/pkg/logging"
)

// Runs one reminder pass and prints its counts as JSON. With -due it only
// lists the reminders that would be attempted, without sending.
func main() {
	due := flag.Bool("due", false, "list due reminders without sending")
	timeout := flag.Duration("timeout", 5*time.Minute, "upper bound for the pass")
	flag.Parse()

	_ = godotenv.Load()
	cfg := appconfig.Load()
	logger := logging.NewWithWriter(os.Stderr, cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := run(ctx, cfg, *due, os.Stdout, logger); err != nil {
		logger.Error("reminder check failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *appconfig.Config, dueOnly bool, out io.Writer, logger *logging.Logger) error {
	store, closeStore, err := bootstrap.BuildAppointmentStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")

	if dueOnly {
		loc, err := cfg.Location()
		if err != nil {
			return err
		}
		report, err := dueReminders(ctx, store, time.Now(), loc, reminders.DefaultWindows)
		if err != nil {
			return err
		}
		return enc.Encode(report)
	}

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}
	svc, err := bootstrap.BuildReminderService(ctx, cfg, bootstrap.ReminderDeps{
		Store:      store,
		Redis:      redisClient,
		Registerer: prometheus.NewRegistry(),
	}, logger)
	if err != nil {
		return err
	}

	result, runErr := svc.Scheduler.RunOnce(ctx)
	if err := enc.Encode(result); err != nil {
		return err
	}
	return runErr
}

// DueReminder is one reminder a pass at the given instant would attempt.
type DueReminder struct {
	AppointmentID string    `json:"appointmentId"`
	Kind          string    `json:"kind"`
	ScheduledAt   time.Time `json:"scheduledAt"`
	Until         string    `json:"until"`
}

func dueReminders(ctx context.Context, store appointments.Store, now time.Time, loc *time.Location, windows []reminders.Window) ([]DueReminder, error) {
	all, err := store.ListAppointments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	out := []DueReminder{}
	for _, appt := range all {
		at, kinds, err := reminders.DueKinds(appt, now, loc, windows)
		if err != nil {
			continue
		}
		for _, kind := range kinds {
			out = append(out, DueReminder{
				AppointmentID: appt.ID,
				Kind:          string(kind),
				ScheduledAt:   at,
				Until:         at.Sub(now).Round(time.Minute).String(),
			})
		}
	}
	return out, nil
}
