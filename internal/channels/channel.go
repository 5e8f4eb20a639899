// Package channels turns a reminder notice into a delivery attempt over email
// or SMS. Senders never return errors or panic to the caller; every outcome
// is an Attempt.
package channels

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/clinic-reminders/internal/messaging"
	"github.com/wolfman30/clinic-reminders/internal/notify"
	"github.com/wolfman30/clinic-reminders/pkg/logging"
)

var tracer = otel.Tracer("clinic.internal.channels")

// ErrNotConfigured is reported in strict mode when no transport is usable.
var ErrNotConfigured = errors.New("channels: transport not configured")

// Name identifies a delivery channel.
type Name string

const (
	Email Name = "email"
	SMS   Name = "sms"
)

// Attempt is the outcome of one channel send. It is never persisted.
type Attempt struct {
	Channel  Name
	Success  bool
	Error    string
	Fallback bool
}

func failed(ch Name, err error) Attempt {
	return Attempt{Channel: ch, Error: err.Error()}
}

func recoverAttempt(ch Name, attempt *Attempt, logger *logging.Logger, appointmentID string) {
	if r := recover(); r != nil {
		logger.Error("channel send panicked", "channel", ch, "appointment_id", appointmentID, "panic", r)
		*attempt = Attempt{Channel: ch, Error: fmt.Sprintf("panic: %v", r)}
	}
}

// EmailChannel delivers notices by email using whichever transport the
// resolver reports for this call.
type EmailChannel struct {
	resolver *Resolver
	strict   bool
	newSES   notify.SESClientFactory
	senders  *senderCache[notify.EmailSender]
	stub     *notify.StubEmailSender
	logger   *logging.Logger
}

// NewEmailChannel builds the email channel. strict makes an unconfigured
// transport a failed attempt instead of a logged success.
func NewEmailChannel(resolver *Resolver, strict bool, newSES notify.SESClientFactory, logger *logging.Logger) *EmailChannel {
	if logger == nil {
		logger = logging.Default()
	}
	if resolver == nil {
		resolver = NewResolver("", nil, logger)
	}
	return &EmailChannel{
		resolver: resolver,
		strict:   strict,
		newSES:   newSES,
		senders:  newSenderCache[notify.EmailSender](),
		stub:     notify.NewStubEmailSender(logger),
		logger:   logger,
	}
}

// Send renders the notice and delivers it to the address.
func (c *EmailChannel) Send(ctx context.Context, to string, n Notice) (attempt Attempt) {
	defer recoverAttempt(Email, &attempt, c.logger, n.AppointmentID)

	ctx, span := tracer.Start(ctx, "channels.email.send")
	defer span.End()
	span.SetAttributes(
		attribute.String("clinic.appointment_id", n.AppointmentID),
		attribute.String("clinic.reminder", string(n.Kind)),
	)

	to = strings.TrimSpace(to)
	if to == "" {
		return failed(Email, errors.New("channels: email address missing"))
	}
	msg := notify.EmailMessage{
		To:      to,
		ToName:  n.PatientName,
		Subject: n.Subject(),
		Body:    n.EmailText(),
		HTML:    n.EmailHTML(),
	}

	cfg := c.resolver.Email()
	if !cfg.Configured {
		if c.strict {
			c.logger.Error("email transport not configured", "appointment_id", n.AppointmentID, "reason", cfg.Reason)
			return failed(Email, fmt.Errorf("%w: %s", ErrNotConfigured, cfg.Reason))
		}
		c.logger.Warn("email transport not configured; logging only", "appointment_id", n.AppointmentID, "reason", cfg.Reason)
		if err := c.stub.Send(ctx, msg); err != nil {
			return failed(Email, err)
		}
		return Attempt{Channel: Email, Success: true, Fallback: true}
	}

	sender, err := c.senders.get(ctx, cfg.Key(), func(ctx context.Context) (notify.EmailSender, error) {
		s, transport, err := notify.BuildEmailSender(ctx, cfg.Settings, c.newSES, c.logger)
		if err == nil {
			c.logger.Info("email transport loaded", "transport", transport)
		}
		return s, err
	})
	if err != nil {
		span.RecordError(err)
		c.logger.Error("email transport load failed", "appointment_id", n.AppointmentID, "transport", cfg.Transport, "error", err)
		return failed(Email, err)
	}

	if err := sender.Send(ctx, msg); err != nil {
		span.RecordError(err)
		return failed(Email, err)
	}
	return Attempt{Channel: Email, Success: true}
}

// SMSChannel delivers notices as a single text message.
type SMSChannel struct {
	resolver *Resolver
	strict   bool
	senders  *senderCache[messaging.SMSSender]
	logOnly  *messaging.LogSender
	logger   *logging.Logger
}

// NewSMSChannel builds the SMS channel.
func NewSMSChannel(resolver *Resolver, strict bool, logger *logging.Logger) *SMSChannel {
	if logger == nil {
		logger = logging.Default()
	}
	if resolver == nil {
		resolver = NewResolver("", nil, logger)
	}
	return &SMSChannel{
		resolver: resolver,
		strict:   strict,
		senders:  newSenderCache[messaging.SMSSender](),
		logOnly:  messaging.NewLogSender(logger),
		logger:   logger,
	}
}

// Send normalizes the phone number, renders the notice and delivers it.
func (c *SMSChannel) Send(ctx context.Context, to string, n Notice) (attempt Attempt) {
	defer recoverAttempt(SMS, &attempt, c.logger, n.AppointmentID)

	ctx, span := tracer.Start(ctx, "channels.sms.send")
	defer span.End()
	span.SetAttributes(
		attribute.String("clinic.appointment_id", n.AppointmentID),
		attribute.String("clinic.reminder", string(n.Kind)),
	)

	cfg := c.resolver.SMS()
	phone := messaging.NormalizeLocalPhone(to, cfg.CountryPrefix)
	if phone == "" {
		return failed(SMS, errors.New("channels: phone number missing"))
	}
	msg := messaging.OutboundSMS{To: phone, Body: n.SMSText(), AppointmentID: n.AppointmentID}

	if !cfg.Configured {
		if c.strict {
			c.logger.Error("sms transport not configured", "appointment_id", n.AppointmentID, "reason", cfg.Reason)
			return failed(SMS, fmt.Errorf("%w: %s", ErrNotConfigured, cfg.Reason))
		}
		c.logger.Warn("sms transport not configured; logging only", "appointment_id", n.AppointmentID, "reason", cfg.Reason)
		if err := c.logOnly.SendSMS(ctx, msg); err != nil {
			return failed(SMS, err)
		}
		return Attempt{Channel: SMS, Success: true, Fallback: true}
	}

	sender, err := c.senders.get(ctx, cfg.Key(), func(ctx context.Context) (messaging.SMSSender, error) {
		s, provider, reason := messaging.BuildSMSSender(cfg.Settings, c.logger)
		if s == nil {
			return nil, fmt.Errorf("%w: %s", ErrNotConfigured, reason)
		}
		c.logger.Info("sms provider loaded", "provider", provider)
		return s, nil
	})
	if err != nil {
		span.RecordError(err)
		return failed(SMS, err)
	}

	if err := sender.SendSMS(ctx, msg); err != nil {
		span.RecordError(err)
		return failed(SMS, err)
	}
	return Attempt{Channel: SMS, Success: true}
}
