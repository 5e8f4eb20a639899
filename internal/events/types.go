package events

import (
	"strings"
	"time"
)

// ReminderSentV1 is emitted after a reminder flag has been persisted so any
// view over the appointment data can refresh.
type ReminderSentV1 struct {
	AppointmentID string    `json:"appointment_id"`
	Kind          string    `json:"kind"`
	SentAt        time.Time `json:"sent_at"`
	Channels      []string  `json:"channels"`
}

// EventType implements Event.
func (ReminderSentV1) EventType() string { return "reminder.sent.v1" }

// Aggregate returns the aggregate key for the appointment.
func (e ReminderSentV1) Aggregate() string {
	if strings.TrimSpace(e.AppointmentID) == "" {
		return ""
	}
	return "appointment:" + e.AppointmentID
}

// Envelope stamps the event with the mark time and an id derived from the
// appointment and reminder kind.
func (e ReminderSentV1) Envelope() (Envelope, error) {
	return NewEnvelope(e,
		WithEventID(ReminderEventID(e.AppointmentID, e.Kind)),
		WithTimestamp(e.SentAt),
		WithCorrelationID(e.AppointmentID),
	)
}
