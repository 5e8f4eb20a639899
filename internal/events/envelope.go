package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Event is a versioned reminder event keyed by the appointment it concerns.
type Event interface {
	EventType() string
	Aggregate() string
}

// Envelope is the queue message body. Timestamp is in microseconds.
type Envelope struct {
	EventID         uuid.UUID       `json:"event_id"`
	EventType       string          `json:"event_type"`
	Aggregate       string          `json:"aggregate"`
	TimestampMicros int64           `json:"timestamp"`
	CorrelationID   string          `json:"correlation_id,omitempty"`
	Payload         json.RawMessage `json:"payload"`
}

// Time returns the envelope timestamp.
func (e Envelope) Time() time.Time {
	return time.UnixMicro(e.TimestampMicros).UTC()
}

// EnvelopeOption adjusts a new envelope.
type EnvelopeOption func(*Envelope)

// WithEventID replaces the random event id. uuid.Nil is ignored.
func WithEventID(id uuid.UUID) EnvelopeOption {
	return func(e *Envelope) {
		if id != uuid.Nil {
			e.EventID = id
		}
	}
}

// WithTimestamp stamps the envelope with ts instead of the current time.
func WithTimestamp(ts time.Time) EnvelopeOption {
	return func(e *Envelope) {
		if !ts.IsZero() {
			e.TimestampMicros = ts.UTC().UnixMicro()
		}
	}
}

// WithCorrelationID sets the correlation id.
func WithCorrelationID(id string) EnvelopeOption {
	return func(e *Envelope) { e.CorrelationID = strings.TrimSpace(id) }
}

var (
	errMissingAggregate = errors.New("events: aggregate is required")
	errNilEvent         = errors.New("events: event required")
	nowFunc             = time.Now
)

// NewEnvelope wraps evt with a random id stamped now; opts override either.
func NewEnvelope(evt Event, opts ...EnvelopeOption) (Envelope, error) {
	if evt == nil {
		return Envelope{}, errNilEvent
	}
	aggregate := strings.TrimSpace(evt.Aggregate())
	if aggregate == "" {
		return Envelope{}, errMissingAggregate
	}
	eventType := strings.TrimSpace(evt.EventType())
	if eventType == "" {
		return Envelope{}, fmt.Errorf("events: event type missing")
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return Envelope{}, fmt.Errorf("events: marshal payload: %w", err)
	}
	env := Envelope{
		EventID:         uuid.New(),
		EventType:       eventType,
		Aggregate:       aggregate,
		TimestampMicros: nowFunc().UTC().UnixMicro(),
		Payload:         payload,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&env)
		}
	}
	return env, nil
}

// reminderNamespace seeds ReminderEventID.
var reminderNamespace = uuid.MustParse("5b0c8f3e-6d1a-4c47-9a0e-2f7d3c9b1e64")

// ReminderEventID is the same for every publish of one appointment's
// reminder kind, so consumers can drop redelivered messages.
func ReminderEventID(appointmentID, kind string) uuid.UUID {
	return uuid.NewSHA1(reminderNamespace, []byte(appointmentID+"/"+kind))
}
