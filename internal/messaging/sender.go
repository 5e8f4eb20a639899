package messaging

import (
	"context"

	"github.com/wolfman30/clinic-reminders/internal/httpretry"
	"github.com/wolfman30/clinic-reminders/pkg/logging"
)

// SMSSender delivers a single text message.
type SMSSender interface {
	SendSMS(ctx context.Context, msg OutboundSMS) error
}

// OutboundSMS is one rendered text message ready for a provider.
type OutboundSMS struct {
	To            string
	From          string
	Body          string
	AppointmentID string
}

// StatusError reports a non-2xx provider response after retries.
type StatusError = httpretry.StatusError

// LogSender only logs the message. It stands in when no provider is configured.
type LogSender struct {
	logger *logging.Logger
}

// NewLogSender creates a log-only sender.
func NewLogSender(logger *logging.Logger) *LogSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogSender{logger: logger}
}

// SendSMS logs the message and reports success.
func (s *LogSender) SendSMS(ctx context.Context, msg OutboundSMS) error {
	s.logger.Info("log-only sms sender: would send sms", "appointment_id", msg.AppointmentID, "to", MaskPhone(msg.To), "body", msg.Body)
	return nil
}

var _ SMSSender = (*LogSender)(nil)
