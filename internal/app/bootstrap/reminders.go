package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/clinic-reminders/internal/appointments"
	"github.com/wolfman30/clinic-reminders/internal/channels"
	appconfig "github.com/wolfman30/clinic-reminders/internal/config"
	"github.com/wolfman30/clinic-reminders/internal/events"
	"github.com/wolfman30/clinic-reminders/internal/notify"
	"github.com/wolfman30/clinic-reminders/internal/observability/metrics"
	"github.com/wolfman30/clinic-reminders/internal/reminders"
	"github.com/wolfman30/clinic-reminders/pkg/logging"
)

// ReminderDeps are optional collaborators for BuildReminderService. Zero
// values fall back to config-driven construction.
type ReminderDeps struct {
	Store      appointments.Store
	Redis      *redis.Client
	Publisher  events.Publisher
	Registerer prometheus.Registerer
	Lookup     channels.LookupFunc
	NewSES     notify.SESClientFactory
}

// ReminderService is the wired reminder engine: one owned scheduler handle
// plus what it was built from.
type ReminderService struct {
	Scheduler  *reminders.Scheduler
	Dispatcher *reminders.Dispatcher
	Resolver   *channels.Resolver
	Metrics    *metrics.ReminderMetrics
}

// BuildReminderService wires channels, dispatcher and scheduler from config.
func BuildReminderService(ctx context.Context, cfg *appconfig.Config, deps ReminderDeps, logger *logging.Logger) (*ReminderService, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("bootstrap: appointment store is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	newSES := deps.NewSES
	if newSES == nil {
		newSES = sesClientFactory(cfg)
	}
	publisher := deps.Publisher
	if publisher == nil {
		publisher, err = buildPublisher(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
	}

	m := metrics.NewReminderMetrics(deps.Registerer)
	resolver := channels.NewResolver(cfg.ChannelEnvFile, deps.Lookup, logger)
	email := channels.NewEmailChannel(resolver, cfg.StrictDeliveryMode, newSES, logger)
	sms := channels.NewSMSChannel(resolver, cfg.StrictDeliveryMode, logger)

	dispatcher := reminders.NewDispatcher(deps.Store, email, sms, reminders.DispatcherConfig{
		ClinicName: cfg.ClinicName,
		Locale:     channels.MatchLocale(cfg.ReminderLocale),
		Location:   loc,
		Publisher:  publisher,
		Metrics:    m,
	}, logger)

	opts := []reminders.Option{
		reminders.WithLocation(loc),
		reminders.WithMetrics(m),
	}
	if deps.Redis != nil {
		opts = append(opts, reminders.WithLocker(reminders.NewRedisLocker(deps.Redis, ""), cfg.ReminderLockTTL))
	}

	logger.Info("reminder service wired",
		"strict_delivery", cfg.StrictDeliveryMode,
		"timezone", loc.String(),
		"locale", cfg.ReminderLocale,
		"distributed_lock", deps.Redis != nil,
	)
	return &ReminderService{
		Scheduler:  reminders.NewScheduler(deps.Store, dispatcher, logger, opts...),
		Dispatcher: dispatcher,
		Resolver:   resolver,
		Metrics:    m,
	}, nil
}

// sesClientFactory defers AWS config loading until an email is actually
// routed to SES.
func sesClientFactory(cfg *appconfig.Config) notify.SESClientFactory {
	return func(ctx context.Context, region string) (notify.SESAPI, error) {
		awsCfg, err := LoadAWSConfig(ctx, cfg, region)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: load aws config for ses: %w", err)
		}
		return sesv2.NewFromConfig(awsCfg), nil
	}
}

func buildPublisher(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (events.Publisher, error) {
	queueURL := strings.TrimSpace(cfg.ReminderEventsQueueURL)
	if queueURL == "" {
		return events.NewLogPublisher(logger), nil
	}
	awsCfg, err := LoadAWSConfig(ctx, cfg, "")
	if err != nil {
		return nil, fmt.Errorf("bootstrap: load aws config for sqs: %w", err)
	}
	logger.Info("publishing reminder events to sqs", "queue_url", queueURL)
	return events.NewSQSPublisher(sqs.NewFromConfig(awsCfg), queueURL), nil
}
