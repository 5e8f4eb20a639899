package appointments

import (
	"context"
	"time"
)

// Store is what the reminder engine needs from persistence: a full listing
// and a targeted update of one reminder flag. Implementations must reject a
// second mark of the same flag with ErrAlreadyMarked.
type Store interface {
	ListAppointments(ctx context.Context) ([]Appointment, error)
	MarkReminderSent(ctx context.Context, id string, kind ReminderKind, at time.Time) error
}

// CollectionStore is a store that is read and written as a whole collection.
// Concurrent writers outside this process can lose updates against such a
// store; callers that need isolation should use a row-level backend.
type CollectionStore interface {
	Store
	SaveAppointments(ctx context.Context, all []Appointment) error
}

func cloneAll(in []Appointment) []Appointment {
	out := make([]Appointment, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}

// markInCollection applies a reminder mark to the matching appointment of a
// loaded collection.
func markInCollection(all []Appointment, id string, kind ReminderKind, at time.Time) error {
	for i := range all {
		if all[i].ID != id {
			continue
		}
		return all[i].Reminders.Mark(kind, at)
	}
	return ErrNotFound
}
