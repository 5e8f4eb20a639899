package reminders

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wolfman30/clinic-reminders/internal/appointments"
	"github.com/wolfman30/clinic-reminders/internal/channels"
	"github.com/wolfman30/clinic-reminders/internal/events"
)

var testNow = time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

// fakeChannel records sends and answers with a fixed outcome.
type fakeChannel struct {
	name    channels.Name
	succeed bool
	panics  bool

	mu    sync.Mutex
	sends []string
}

func (f *fakeChannel) Send(ctx context.Context, to string, n channels.Notice) channels.Attempt {
	f.mu.Lock()
	f.sends = append(f.sends, n.AppointmentID+":"+string(n.Kind))
	f.mu.Unlock()
	if f.panics {
		panic("transport exploded")
	}
	if !f.succeed {
		return channels.Attempt{Channel: f.name, Error: "gateway returned 503"}
	}
	return channels.Attempt{Channel: f.name, Success: true}
}

func (f *fakeChannel) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sends)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.ReminderSentV1
	err    error
}

func (p *recordingPublisher) PublishReminderSent(ctx context.Context, evt events.ReminderSentV1) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return p.err
}

// failingMarkStore lists from a memory store but cannot persist marks.
type failingMarkStore struct {
	*appointments.MemoryStore
}

func (s failingMarkStore) MarkReminderSent(ctx context.Context, id string, kind appointments.ReminderKind, at time.Time) error {
	return errors.New("disk full")
}

type failingListStore struct{}

func (failingListStore) ListAppointments(ctx context.Context) ([]appointments.Appointment, error) {
	return nil, errors.New("connection refused")
}

func (failingListStore) MarkReminderSent(ctx context.Context, id string, kind appointments.ReminderKind, at time.Time) error {
	return nil
}

// appointmentIn builds a confirmed appointment scheduled d after testNow.
func appointmentIn(id string, d time.Duration) appointments.Appointment {
	at := testNow.Add(d)
	return appointments.Appointment{
		ID:           id,
		PatientName:  "Lan",
		PatientPhone: "0901 234 567",
		PatientEmail: "lan@example.com",
		DoctorName:   "BS. Minh",
		Specialty:    "Nha khoa",
		Date:         at.Format("2006-01-02"),
		Time:         at.Format("15:04"),
		Status:       appointments.StatusConfirmed,
	}
}

// findAppointment reads one appointment back through the store's listing.
func findAppointment(store appointments.Store, id string) (appointments.Appointment, error) {
	all, err := store.ListAppointments(context.Background())
	if err != nil {
		return appointments.Appointment{}, err
	}
	for _, a := range all {
		if a.ID == id {
			return a, nil
		}
	}
	return appointments.Appointment{}, appointments.ErrNotFound
}
