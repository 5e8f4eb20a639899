package appointments

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps the collection in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	items []Appointment
}

var _ CollectionStore = (*MemoryStore)(nil)

// NewMemoryStore seeds a store with the given appointments.
func NewMemoryStore(seed ...Appointment) *MemoryStore {
	return &MemoryStore{items: cloneAll(seed)}
}

// ListAppointments returns a copy of every appointment.
func (s *MemoryStore) ListAppointments(ctx context.Context) ([]Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(s.items), nil
}

// SaveAppointments replaces the whole collection.
func (s *MemoryStore) SaveAppointments(ctx context.Context, all []Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = cloneAll(all)
	return nil
}

// MarkReminderSent sets one reminder flag.
func (s *MemoryStore) MarkReminderSent(ctx context.Context, id string, kind ReminderKind, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return markInCollection(s.items, id, kind, at)
}
