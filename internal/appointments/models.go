// Package appointments holds the appointment record the reminder engine reads
// and the stores that persist it. The booking subsystem owns every field
// except Reminders, which only the reminder dispatcher mutates.
package appointments

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status is the booking lifecycle state of an appointment.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// ReminderKind identifies one of the reminder types sent before a visit.
type ReminderKind string

const (
	Reminder24h ReminderKind = "24h"
	Reminder2h  ReminderKind = "2h"
)

// Valid reports whether k is a known reminder kind.
func (k ReminderKind) Valid() bool {
	return k == Reminder24h || k == Reminder2h
}

var (
	// ErrNotFound indicates no appointment exists with the given id.
	ErrNotFound = errors.New("appointments: not found")
	// ErrAlreadyMarked indicates the reminder flag was already set by another writer.
	ErrAlreadyMarked = errors.New("appointments: reminder already marked")
	// ErrInvalidKind indicates an unknown reminder kind.
	ErrInvalidKind = errors.New("appointments: invalid reminder kind")
)

// ReminderState is the idempotency record for reminders. Absent fields read
// as false/unset. Flags are only ever set, never cleared.
type ReminderState struct {
	Sent24h   bool       `json:"sent24h" dynamodbav:"sent24h"`
	Sent24hAt *time.Time `json:"sent24hAt,omitempty" dynamodbav:"sent24hAt,omitempty"`
	Sent2h    bool       `json:"sent2h" dynamodbav:"sent2h"`
	Sent2hAt  *time.Time `json:"sent2hAt,omitempty" dynamodbav:"sent2hAt,omitempty"`
}

// Sent reports whether the reminder of the given kind was already delivered.
func (s ReminderState) Sent(kind ReminderKind) bool {
	switch kind {
	case Reminder24h:
		return s.Sent24h
	case Reminder2h:
		return s.Sent2h
	}
	return false
}

// SentAt returns when the reminder of the given kind was marked, if it was.
func (s ReminderState) SentAt(kind ReminderKind) *time.Time {
	switch kind {
	case Reminder24h:
		return s.Sent24hAt
	case Reminder2h:
		return s.Sent2hAt
	}
	return nil
}

// Mark sets the flag for kind. It returns ErrAlreadyMarked when the flag is
// already set, leaving the original timestamp untouched.
func (s *ReminderState) Mark(kind ReminderKind, at time.Time) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	if s.Sent(kind) {
		return ErrAlreadyMarked
	}
	ts := at.UTC()
	switch kind {
	case Reminder24h:
		s.Sent24h = true
		s.Sent24hAt = &ts
	case Reminder2h:
		s.Sent2h = true
		s.Sent2hAt = &ts
	}
	return nil
}

func (s ReminderState) clone() ReminderState {
	out := s
	if s.Sent24hAt != nil {
		t := *s.Sent24hAt
		out.Sent24hAt = &t
	}
	if s.Sent2hAt != nil {
		t := *s.Sent2hAt
		out.Sent2hAt = &t
	}
	return out
}

// Appointment is a booked visit. Date and Time are the clinic-local calendar
// date (YYYY-MM-DD) and time of day (HH:MM).
type Appointment struct {
	ID           string        `json:"id"`
	PatientName  string        `json:"patientName"`
	PatientPhone string        `json:"patientPhone,omitempty"`
	PatientEmail string        `json:"patientEmail,omitempty"`
	DoctorName   string        `json:"doctorName"`
	Specialty    string        `json:"specialty"`
	Date         string        `json:"date"`
	Time         string        `json:"time"`
	Status       Status        `json:"status"`
	Reminders    ReminderState `json:"reminders"`
}

// Clone returns a deep copy so callers never share reminder timestamps.
func (a Appointment) Clone() Appointment {
	out := a
	out.Reminders = a.Reminders.clone()
	return out
}

// HasEmail reports whether an email destination is present.
func (a Appointment) HasEmail() bool {
	return strings.TrimSpace(a.PatientEmail) != ""
}

// HasPhone reports whether an SMS destination is present.
func (a Appointment) HasPhone() bool {
	return strings.TrimSpace(a.PatientPhone) != ""
}

var timeLayouts = []string{"15:04", "15:04:05", "3:04 PM", "3:04PM"}

// ScheduledAt combines Date and Time in loc into the appointment instant.
func (a Appointment) ScheduledAt(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	date, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(a.Date), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("appointments: parse date %q for %s: %w", a.Date, a.ID, err)
	}
	raw := strings.TrimSpace(a.Time)
	for _, layout := range timeLayouts {
		tod, err := time.Parse(layout, raw)
		if err != nil {
			continue
		}
		return time.Date(date.Year(), date.Month(), date.Day(), tod.Hour(), tod.Minute(), tod.Second(), 0, loc), nil
	}
	return time.Time{}, fmt.Errorf("appointments: parse time %q for %s", a.Time, a.ID)
}
