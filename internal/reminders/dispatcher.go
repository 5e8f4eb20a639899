package reminders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"

	"github.com/wolfman30/clinic-reminders/internal/appointments"
	"github.com/wolfman30/clinic-reminders/internal/channels"
	"github.com/wolfman30/clinic-reminders/internal/events"
	"github.com/wolfman30/clinic-reminders/internal/observability/metrics"
	"github.com/wolfman30/clinic-reminders/pkg/logging"
)

// ErrMarkFailed wraps store failures while persisting a reminder flag. The
// scheduler aborts the pass on it.
var ErrMarkFailed = errors.New("reminders: persist reminder state")

// Channel sends one notice to one destination.
type Channel interface {
	Send(ctx context.Context, to string, n channels.Notice) channels.Attempt
}

// DispatcherConfig holds the message context and optional collaborators.
type DispatcherConfig struct {
	ClinicName string
	Locale     language.Tag
	Location   *time.Location
	Now        func() time.Time
	Publisher  events.Publisher
	Metrics    *metrics.ReminderMetrics
}

// Dispatcher delivers one reminder for one appointment and records it.
type Dispatcher struct {
	store      appointments.Store
	email      Channel
	sms        Channel
	clinicName string
	locale     language.Tag
	loc        *time.Location
	now        func() time.Time
	publisher  events.Publisher
	metrics    *metrics.ReminderMetrics
	logger     *logging.Logger
}

// NewDispatcher builds a dispatcher. A nil channel is never attempted.
func NewDispatcher(store appointments.Store, email, sms Channel, cfg DispatcherConfig, logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Locale == language.Und {
		cfg.Locale = language.Vietnamese
	}
	if cfg.Publisher == nil {
		cfg.Publisher = events.NewLogPublisher(logger)
	}
	return &Dispatcher{
		store:      store,
		email:      email,
		sms:        sms,
		clinicName: cfg.ClinicName,
		locale:     cfg.Locale,
		loc:        cfg.Location,
		now:        cfg.Now,
		publisher:  cfg.Publisher,
		metrics:    cfg.Metrics,
		logger:     logger,
	}
}

// Dispatch tries every channel the appointment has a destination for and
// marks the reminder sent when at least one succeeds. It reports whether
// this call marked the reminder. Errors wrapping ErrMarkFailed mean the
// store could not be written.
func (d *Dispatcher) Dispatch(ctx context.Context, appt appointments.Appointment, kind appointments.ReminderKind) (bool, error) {
	ctx, span := tracer.Start(ctx, "reminders.dispatch")
	defer span.End()
	span.SetAttributes(
		attribute.String("clinic.appointment_id", appt.ID),
		attribute.String("clinic.reminder", string(kind)),
	)

	scheduledAt, err := appt.ScheduledAt(d.loc)
	if err != nil {
		return false, err
	}
	notice := channels.Notice{
		AppointmentID: appt.ID,
		PatientName:   appt.PatientName,
		DoctorName:    appt.DoctorName,
		Specialty:     appt.Specialty,
		ScheduledAt:   scheduledAt,
		Kind:          kind,
		ClinicName:    d.clinicName,
		Locale:        d.locale,
	}

	attempts := d.attempt(ctx, appt, notice)
	if len(attempts) == 0 {
		d.logger.Warn("reminder has no usable destination", "appointment_id", appt.ID, "reminder", kind)
		return false, nil
	}

	var succeeded []string
	for _, a := range attempts {
		status := "failed"
		switch {
		case a.Success && a.Fallback:
			status = "fallback"
		case a.Success:
			status = "success"
		}
		d.metrics.ObserveAttempt(string(a.Channel), status)
		if a.Success {
			succeeded = append(succeeded, string(a.Channel))
			continue
		}
		d.logger.Warn("reminder channel failed", "appointment_id", appt.ID, "reminder", kind, "channel", a.Channel, "error", a.Error)
	}
	if len(succeeded) == 0 {
		d.logger.Warn("reminder not delivered; will retry next pass", "appointment_id", appt.ID, "reminder", kind)
		return false, nil
	}

	sentAt := d.now().UTC()
	if err := d.store.MarkReminderSent(ctx, appt.ID, kind, sentAt); err != nil {
		switch {
		case errors.Is(err, appointments.ErrAlreadyMarked):
			d.logger.Info("reminder already marked by another writer", "appointment_id", appt.ID, "reminder", kind)
			return false, nil
		case errors.Is(err, appointments.ErrNotFound):
			return false, fmt.Errorf("reminders: appointment %s disappeared before mark: %w", appt.ID, err)
		default:
			span.RecordError(err)
			return false, fmt.Errorf("%w: %w", ErrMarkFailed, err)
		}
	}

	d.metrics.ObserveSent(string(kind))
	d.logger.Info("reminder sent", "appointment_id", appt.ID, "reminder", kind, "channels", succeeded)

	evt := events.ReminderSentV1{AppointmentID: appt.ID, Kind: string(kind), SentAt: sentAt, Channels: succeeded}
	if err := d.publisher.PublishReminderSent(ctx, evt); err != nil {
		d.logger.Warn("reminder sent event not published", "appointment_id", appt.ID, "reminder", kind, "error", err)
	}
	return true, nil
}

// attempt runs the email and SMS sends concurrently and returns their outcomes.
func (d *Dispatcher) attempt(ctx context.Context, appt appointments.Appointment, notice channels.Notice) []channels.Attempt {
	var (
		g        errgroup.Group
		emailRes *channels.Attempt
		smsRes   *channels.Attempt
	)
	if d.email != nil && appt.HasEmail() {
		g.Go(func() error {
			a := safeSend(ctx, d.email, channels.Email, appt.PatientEmail, notice)
			emailRes = &a
			return nil
		})
	}
	if d.sms != nil && appt.HasPhone() {
		g.Go(func() error {
			a := safeSend(ctx, d.sms, channels.SMS, appt.PatientPhone, notice)
			smsRes = &a
			return nil
		})
	}
	_ = g.Wait()

	var out []channels.Attempt
	for _, a := range []*channels.Attempt{emailRes, smsRes} {
		if a != nil {
			out = append(out, *a)
		}
	}
	return out
}

// safeSend turns a channel panic into a failed attempt. Sends run off the
// scheduler goroutine, outside its recover.
func safeSend(ctx context.Context, ch Channel, name channels.Name, to string, n channels.Notice) (a channels.Attempt) {
	defer func() {
		if r := recover(); r != nil {
			a = channels.Attempt{Channel: name, Error: fmt.Sprintf("panic: %v", r)}
		}
	}()
	return ch.Send(ctx, to, n)
}
