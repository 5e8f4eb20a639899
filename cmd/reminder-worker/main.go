package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/clinic-reminders/internal/api/router"
	"github.com/wolfman30/clinic-reminders/internal/app/bootstrap"
	appconfig "github.com/wolfman30/clinic-reminders/internal/config"
	"github.com/wolfman30/clinic-reminders/internal/http/handlers"
	"github.com/wolfman30/clinic-reminders/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting clinic reminder worker",
		"env", cfg.Env,
		"port", cfg.Port,
		"store", cfg.ReminderStore,
		"interval", cfg.ReminderInterval.String(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("reminder worker failed", "error", err)
		os.Exit(1)
	}
	logger.Info("reminder worker stopped")
}

func run(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) error {
	store, closeStore, err := bootstrap.BuildAppointmentStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	registry, metricsHandler := setupMetrics()
	svc, err := bootstrap.BuildReminderService(ctx, cfg, bootstrap.ReminderDeps{
		Store:      store,
		Redis:      redisClient,
		Registerer: registry,
	}, logger)
	if err != nil {
		return err
	}

	if err := svc.Scheduler.Start(ctx, cfg.ReminderInterval); err != nil {
		return err
	}
	defer svc.Scheduler.Stop()

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: router.New(&router.Config{
			Logger:          logger,
			Reminders:       handlers.NewRemindersHandler(svc.Scheduler, logger),
			AdminAuthSecret: cfg.AdminJWTSecret,
			MetricsHandler:  metricsHandler,
		}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func setupMetrics() (*prometheus.Registry, http.Handler) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry, promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
