package messaging

import (
	"context"
	"errors"

	"github.com/wolfman30/clinic-reminders/pkg/logging"
)

// FailoverSender attempts a primary send, then falls back to a secondary provider on error.
type FailoverSender struct {
	primary       SMSSender
	secondary     SMSSender
	primaryName   string
	secondaryName string
	logger        *logging.Logger
}

// NewFailoverSender builds a failover sender with named providers.
func NewFailoverSender(primary SMSSender, primaryName string, secondary SMSSender, secondaryName string, logger *logging.Logger) *FailoverSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &FailoverSender{
		primary:       primary,
		secondary:     secondary,
		primaryName:   primaryName,
		secondaryName: secondaryName,
		logger:        logger,
	}
}

var _ SMSSender = (*FailoverSender)(nil)

// SendSMS tries the primary provider first, then falls back to the secondary provider on failure.
func (f *FailoverSender) SendSMS(ctx context.Context, msg OutboundSMS) error {
	if f == nil || f.primary == nil {
		return errors.New("messaging: failover primary sender not configured")
	}
	err := f.primary.SendSMS(ctx, msg)
	if err == nil {
		return nil
	}
	if f.secondary == nil {
		return err
	}
	f.logger.Warn("primary sms send failed; attempting fallback",
		"provider", f.primaryName,
		"fallback", f.secondaryName,
		"error", err,
		"appointment_id", msg.AppointmentID,
	)
	if fallbackErr := f.secondary.SendSMS(ctx, msg); fallbackErr != nil {
		f.logger.Error("fallback sms send failed",
			"provider", f.secondaryName,
			"error", fallbackErr,
			"appointment_id", msg.AppointmentID,
		)
		return errors.Join(err, fallbackErr)
	}
	return nil
}
