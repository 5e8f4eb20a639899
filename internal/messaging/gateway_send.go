package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/clinic-reminders/internal/httpretry"
	"github.com/wolfman30/clinic-reminders/pkg/logging"
)

var gatewaySendTracer = otel.Tracer("clinic.internal.messaging.gateway_send")

// GatewaySender posts SMS messages to a generic HTTP SMS gateway.
type GatewaySender struct {
	endpoint   string
	apiKey     string
	senderID   string
	httpClient *http.Client
	logger     *logging.Logger
}

type gatewayPayload struct {
	To       string `json:"to"`
	Message  string `json:"message"`
	SenderID string `json:"sender_id,omitempty"`
}

// NewGatewaySender builds a sender for the configured gateway endpoint.
func NewGatewaySender(endpoint, apiKey, senderID string, logger *logging.Logger) *GatewaySender {
	if logger == nil {
		logger = logging.Default()
	}
	return &GatewaySender{
		endpoint: strings.TrimSpace(endpoint),
		apiKey:   apiKey,
		senderID: senderID,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

var _ SMSSender = (*GatewaySender)(nil)

// SendSMS dispatches a single SMS, retrying transient failures.
func (s *GatewaySender) SendSMS(ctx context.Context, msg OutboundSMS) error {
	if s.endpoint == "" {
		return errors.New("messaging: gateway endpoint missing")
	}
	if msg.To == "" {
		return errors.New("messaging: to required")
	}
	if strings.TrimSpace(msg.Body) == "" {
		return errors.New("messaging: body required")
	}

	ctx, span := gatewaySendTracer.Start(ctx, "messaging.gateway.send")
	defer span.End()
	span.SetAttributes(
		attribute.String("clinic.appointment_id", msg.AppointmentID),
		attribute.String("clinic.to", MaskPhone(msg.To)),
	)

	senderID := msg.From
	if senderID == "" {
		senderID = s.senderID
	}
	bodyBytes, err := json.Marshal(gatewayPayload{To: msg.To, Message: msg.Body, SenderID: senderID})
	if err != nil {
		return fmt.Errorf("messaging: failed to marshal gateway payload: %w", err)
	}

	_, err = httpretry.Post(ctx, s.httpClient, "gateway", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(bodyBytes))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if s.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+s.apiKey)
		}
		return req, nil
	}, formatGatewayError)
	if err != nil {
		span.RecordError(err)
		s.logger.Error("failed to send gateway sms", "error", err, "appointment_id", msg.AppointmentID, "to", MaskPhone(msg.To))
		return err
	}
	s.logger.Info("gateway sms sent", "appointment_id", msg.AppointmentID, "to", MaskPhone(msg.To))
	return nil
}

func formatGatewayError(status int, body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return fmt.Sprintf("status %d", status)
	}
	var parsed struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Message != "" {
			return fmt.Sprintf("status %d: %s", status, parsed.Message)
		}
		if parsed.Error != "" {
			return fmt.Sprintf("status %d: %s", status, parsed.Error)
		}
	}
	return fmt.Sprintf("status %d: %s", status, string(body))
}
