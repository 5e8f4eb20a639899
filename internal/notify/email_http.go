package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/wolfman30/clinic-reminders/internal/httpretry"
	"github.com/wolfman30/clinic-reminders/pkg/logging"
)

// HTTPSender posts emails to a backend mail endpoint which owns the SMTP leg.
type HTTPSender struct {
	endpoint   string
	token      string
	fromEmail  string
	fromName   string
	httpClient *http.Client
	logger     *logging.Logger
}

// HTTPConfig holds configuration for the backend mail endpoint.
type HTTPConfig struct {
	EndpointURL string
	Token       string
	FromEmail   string
	FromName    string
}

type httpEmailPayload struct {
	To       string `json:"to"`
	ToName   string `json:"to_name,omitempty"`
	From     string `json:"from,omitempty"`
	FromName string `json:"from_name,omitempty"`
	Subject  string `json:"subject"`
	Text     string `json:"text"`
	HTML     string `json:"html,omitempty"`
}

// NewHTTPSender creates a sender for the backend mail endpoint.
func NewHTTPSender(cfg HTTPConfig, logger *logging.Logger) *HTTPSender {
	if strings.TrimSpace(cfg.EndpointURL) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.FromName == "" {
		cfg.FromName = DefaultFromName
	}
	return &HTTPSender{
		endpoint:  strings.TrimSpace(cfg.EndpointURL),
		token:     cfg.Token,
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Send posts the email, retrying network errors, 429 and 5xx responses.
func (s *HTTPSender) Send(ctx context.Context, msg EmailMessage) error {
	if s == nil || s.endpoint == "" {
		return errors.New("notify: email endpoint not configured")
	}
	if strings.TrimSpace(msg.To) == "" {
		return errors.New("notify: recipient required")
	}

	ctx, span := emailTracer.Start(ctx, "notify.http.send")
	defer span.End()

	payload, err := json.Marshal(httpEmailPayload{
		To:       msg.To,
		ToName:   msg.ToName,
		From:     s.fromEmail,
		FromName: s.fromName,
		Subject:  msg.Subject,
		Text:     msg.Body,
		HTML:     msg.HTML,
	})
	if err != nil {
		return fmt.Errorf("notify: marshal email payload: %w", err)
	}

	_, err = httpretry.Post(ctx, s.httpClient, "email endpoint", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if s.token != "" {
			req.Header.Set("Authorization", "Bearer "+s.token)
		}
		return req, nil
	}, func(status int, body []byte) string {
		return fmt.Sprintf("status %d: %s", status, strings.TrimSpace(string(body)))
	})
	if err != nil {
		span.RecordError(err)
		s.logger.Error("email endpoint send failed", "error", err, "to", MaskEmail(msg.To))
		return fmt.Errorf("notify: %w", err)
	}
	s.logger.Info("email sent via endpoint", "to", MaskEmail(msg.To), "subject", msg.Subject)
	return nil
}

var _ EmailSender = (*HTTPSender)(nil)
