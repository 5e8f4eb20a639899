package main

import (
	"context"
	"errors"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wolfman30/clinic-reminders/internal/app/bootstrap"
	appconfig "github.com/wolfman30/clinic-reminders/internal/config"
	"github.com/wolfman30/clinic-reminders/internal/reminders"
	"github.com/wolfman30/clinic-reminders/pkg/logging"
)

type runner interface {
	RunOnce(ctx context.Context) (reminders.RunResult, error)
}

// lazyRunner builds the reminder service on the first invocation and reuses
// it while the execution environment stays warm. Failed builds are retried.
type lazyRunner struct {
	mu     sync.Mutex
	build  func(ctx context.Context) (runner, error)
	runner runner
}

func (l *lazyRunner) get(ctx context.Context) (runner, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.runner != nil {
		return l.runner, nil
	}
	r, err := l.build(ctx)
	if err != nil {
		return nil, err
	}
	l.runner = r
	return r, nil
}

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	lazy := &lazyRunner{build: func(ctx context.Context) (runner, error) {
		store, _, err := bootstrap.BuildAppointmentStore(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		svc, err := bootstrap.BuildReminderService(ctx, cfg, bootstrap.ReminderDeps{
			Store:      store,
			Redis:      bootstrap.BuildRedisClient(ctx, cfg, logger, true),
			Registerer: prometheus.NewRegistry(),
		}, logger)
		if err != nil {
			return nil, err
		}
		return svc.Scheduler, nil
	}}

	lambda.Start(func(ctx context.Context, evt events.CloudWatchEvent) (reminders.RunResult, error) {
		return handle(ctx, lazy, evt, logger)
	})
}

// handle runs one pass per scheduled EventBridge invocation. A pass skipped
// because another one holds the lock is not a failure.
func handle(ctx context.Context, lazy *lazyRunner, evt events.CloudWatchEvent, logger *logging.Logger) (reminders.RunResult, error) {
	r, err := lazy.get(ctx)
	if err != nil {
		return reminders.RunResult{}, err
	}
	result, err := r.RunOnce(ctx)
	if err != nil {
		if errors.Is(err, reminders.ErrAlreadyRunning) {
			logger.Info("reminder pass skipped: already running", "event_id", evt.ID)
			return result, nil
		}
		return result, err
	}
	logger.Info("scheduled reminder pass complete",
		"event_id", evt.ID,
		"sent_24h", result.Sent24h,
		"sent_2h", result.Sent2h,
		"errors", result.Errors,
	)
	return result, nil
}
