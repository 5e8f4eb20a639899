package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/wolfman30/clinic-reminders/pkg/logging"
)

const (
	// EmailTransportAuto prefers SendGrid, then the HTTP endpoint, then SES.
	EmailTransportAuto     = "auto"
	EmailTransportSendGrid = "sendgrid"
	EmailTransportHTTP     = "http"
	EmailTransportSES      = "ses"
)

// TransportConfig captures everything needed to build an email transport.
type TransportConfig struct {
	Preference     string
	SendGridAPIKey string
	FromEmail      string
	FromName       string
	EndpointURL    string
	EndpointToken  string
	SESEnabled     bool
	AWSRegion      string
}

// SESClientFactory builds an SES client for a region. It is only invoked when
// the SES transport is selected.
type SESClientFactory func(ctx context.Context, region string) (SESAPI, error)

func (cfg TransportConfig) missing() map[string]string {
	missing := map[string]string{}

	var reasons []string
	if cfg.SendGridAPIKey == "" {
		reasons = append(reasons, "SENDGRID_API_KEY missing")
	}
	if cfg.FromEmail == "" {
		reasons = append(reasons, "EMAIL_FROM_ADDRESS missing")
	}
	if len(reasons) > 0 {
		missing[EmailTransportSendGrid] = strings.Join(reasons, ", ")
	}

	if strings.TrimSpace(cfg.EndpointURL) == "" {
		missing[EmailTransportHTTP] = "EMAIL_ENDPOINT_URL missing"
	}

	reasons = nil
	if !cfg.SESEnabled {
		reasons = append(reasons, "EMAIL_SES_ENABLED not set")
	}
	if cfg.FromEmail == "" {
		reasons = append(reasons, "EMAIL_FROM_ADDRESS missing")
	}
	if len(reasons) > 0 {
		missing[EmailTransportSES] = strings.Join(reasons, ", ")
	}
	return missing
}

// SelectTransport decides which transport BuildEmailSender would use. It
// returns the transport name, or a reason when none is usable.
func SelectTransport(cfg TransportConfig) (string, string) {
	preference := strings.ToLower(strings.TrimSpace(cfg.Preference))
	if preference == "" {
		preference = EmailTransportAuto
	}
	missing := cfg.missing()

	order := []string{EmailTransportSendGrid, EmailTransportHTTP, EmailTransportSES}
	if preference != EmailTransportAuto {
		switch preference {
		case EmailTransportSendGrid, EmailTransportHTTP, EmailTransportSES:
			order = []string{preference}
		default:
			return "", fmt.Sprintf("%s transport not supported", preference)
		}
	}

	var reasons []string
	for _, transport := range order {
		msg, bad := missing[transport]
		if !bad {
			return transport, ""
		}
		reasons = append(reasons, fmt.Sprintf("%s: %s", transport, msg))
	}
	return "", strings.Join(reasons, "; ")
}

// BuildEmailSender instantiates the selected email transport.
func BuildEmailSender(ctx context.Context, cfg TransportConfig, newSES SESClientFactory, logger *logging.Logger) (EmailSender, string, error) {
	if logger == nil {
		logger = logging.Default()
	}
	transport, reason := SelectTransport(cfg)
	switch transport {
	case EmailTransportSendGrid:
		return NewSendGridSender(SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.FromEmail,
			FromName:  cfg.FromName,
		}, logger), transport, nil
	case EmailTransportHTTP:
		return NewHTTPSender(HTTPConfig{
			EndpointURL: cfg.EndpointURL,
			Token:       cfg.EndpointToken,
			FromEmail:   cfg.FromEmail,
			FromName:    cfg.FromName,
		}, logger), transport, nil
	case EmailTransportSES:
		if newSES == nil {
			return nil, "", fmt.Errorf("notify: SES selected but no client factory wired")
		}
		client, err := newSES(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, "", fmt.Errorf("notify: load SES client: %w", err)
		}
		return NewSESSender(client, SESConfig{FromEmail: cfg.FromEmail, FromName: cfg.FromName}, logger), transport, nil
	default:
		return nil, "", fmt.Errorf("notify: no email transport: %s", reason)
	}
}
