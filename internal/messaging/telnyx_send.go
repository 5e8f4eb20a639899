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

var telnyxSendTracer = otel.Tracer("clinic.internal.messaging.telnyx_send")

const telnyxAPIBase = "https://api.telnyx.com"

// TelnyxSender posts SMS messages using Telnyx's V2 API.
type TelnyxSender struct {
	apiKey             string
	messagingProfileID string
	from               string
	apiBase            string
	httpClient         *http.Client
	logger             *logging.Logger
}

// NewTelnyxSender builds a sender for Telnyx V2 API. An empty from number
// lets Telnyx pick one from the messaging profile's pool.
func NewTelnyxSender(apiKey, messagingProfileID, defaultFrom string, logger *logging.Logger) *TelnyxSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &TelnyxSender{
		apiKey:             apiKey,
		messagingProfileID: messagingProfileID,
		from:               defaultFrom,
		apiBase:            telnyxAPIBase,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

var _ SMSSender = (*TelnyxSender)(nil)

// SendSMS dispatches a single SMS via Telnyx V2 API, retrying transient failures.
func (s *TelnyxSender) SendSMS(ctx context.Context, msg OutboundSMS) error {
	if s.apiKey == "" {
		return errors.New("messaging: telnyx api key missing")
	}
	to := NormalizeE164(msg.To)
	if to == "" {
		return errors.New("messaging: to required")
	}
	from := msg.From
	if from == "" {
		from = s.from
	}
	if from == "" && s.messagingProfileID == "" {
		return errors.New("messaging: from or messaging profile required")
	}
	if strings.TrimSpace(msg.Body) == "" {
		return errors.New("messaging: body required")
	}

	ctx, span := telnyxSendTracer.Start(ctx, "messaging.telnyx.send")
	defer span.End()
	span.SetAttributes(
		attribute.String("clinic.appointment_id", msg.AppointmentID),
		attribute.String("clinic.to", MaskPhone(to)),
	)

	payload := map[string]interface{}{
		"to":   to,
		"text": msg.Body,
	}
	if from != "" {
		payload["from"] = from
	}
	if s.messagingProfileID != "" {
		payload["messaging_profile_id"] = s.messagingProfileID
	}
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("messaging: failed to marshal telnyx payload: %w", err)
	}

	body, err := httpretry.Post(ctx, s.httpClient, "telnyx", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiBase+"/v2/messages", bytes.NewReader(bodyBytes))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}, formatTelnyxError)
	if err != nil {
		span.RecordError(err)
		s.logger.Error("failed to send telnyx sms", "error", err, "appointment_id", msg.AppointmentID, "to", MaskPhone(to))
		return err
	}

	var parsed struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	_ = json.Unmarshal(body, &parsed)
	s.logger.Info("telnyx sms sent", "appointment_id", msg.AppointmentID, "to", MaskPhone(to), "message_id", parsed.Data.ID)
	return nil
}

func formatTelnyxError(status int, body []byte) string {
	var parsed struct {
		Errors []struct {
			Code   string `json:"code"`
			Title  string `json:"title"`
			Detail string `json:"detail"`
		} `json:"errors"`
	}
	if len(body) > 0 && json.Unmarshal(body, &parsed) == nil && len(parsed.Errors) > 0 {
		e := parsed.Errors[0]
		detail := e.Detail
		if detail == "" {
			detail = e.Title
		}
		return fmt.Sprintf("status %d code %s: %s", status, e.Code, detail)
	}
	return fmt.Sprintf("status %d", status)
}
