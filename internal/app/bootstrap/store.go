package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfman30/clinic-reminders/internal/appointments"
	appconfig "github.com/wolfman30/clinic-reminders/internal/config"
	"github.com/wolfman30/clinic-reminders/pkg/logging"
)

// Store backends selectable with REMINDER_STORE.
const (
	StoreMemory   = "memory"
	StoreFile     = "file"
	StorePostgres = "postgres"
	StoreDynamoDB = "dynamodb"
)

// BuildAppointmentStore opens the configured backend. The returned close
// function releases connections and is never nil.
func BuildAppointmentStore(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (appointments.Store, func(), error) {
	noop := func() {}
	if cfg == nil {
		return nil, noop, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	switch strings.ToLower(strings.TrimSpace(cfg.ReminderStore)) {
	case StoreMemory:
		logger.Warn("using in-memory appointment store; state is lost on restart")
		return appointments.NewMemoryStore(), noop, nil

	case "", StoreFile:
		path := strings.TrimSpace(cfg.AppointmentsFile)
		if path == "" {
			return nil, noop, fmt.Errorf("bootstrap: APPOINTMENTS_FILE is required for the file store")
		}
		logger.Info("using file appointment store", "path", path)
		return appointments.NewFileStore(path), noop, nil

	case StorePostgres:
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return nil, noop, fmt.Errorf("bootstrap: DATABASE_URL is required for the postgres store")
		}
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, noop, fmt.Errorf("bootstrap: connect postgres: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, noop, fmt.Errorf("bootstrap: ping postgres: %w", err)
		}
		logger.Info("using postgres appointment store")
		return appointments.NewPostgresStore(pool), pool.Close, nil

	case StoreDynamoDB:
		table := strings.TrimSpace(cfg.AppointmentsTable)
		if table == "" {
			return nil, noop, fmt.Errorf("bootstrap: APPOINTMENTS_TABLE is required for the dynamodb store")
		}
		awsCfg, err := LoadAWSConfig(ctx, cfg, "")
		if err != nil {
			return nil, noop, fmt.Errorf("bootstrap: load aws config: %w", err)
		}
		logger.Info("using dynamodb appointment store", "table", table)
		return appointments.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), table), noop, nil
	}
	return nil, noop, fmt.Errorf("bootstrap: unknown REMINDER_STORE %q", cfg.ReminderStore)
}
