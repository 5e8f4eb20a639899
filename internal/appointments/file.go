package appointments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileStore persists the collection as a single JSON array. Every mark is a
// read-modify-write of the whole file, serialized within this process. The
// file is replaced via rename so observers never read a partial write.
type FileStore struct {
	path string
	mu   sync.Mutex
}

var _ CollectionStore = (*FileStore)(nil)

// NewFileStore returns a store backed by the JSON file at path. A missing
// file reads as an empty collection.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// ListAppointments reads the whole collection.
func (s *FileStore) ListAppointments(ctx context.Context) ([]Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

// SaveAppointments replaces the whole collection.
func (s *FileStore) SaveAppointments(ctx context.Context, all []Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(all)
}

// MarkReminderSent reloads the file, sets one flag and writes the collection back.
func (s *FileStore) MarkReminderSent(ctx context.Context, id string, kind ReminderKind, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.read()
	if err != nil {
		return err
	}
	if err := markInCollection(all, id, kind, at); err != nil {
		return err
	}
	return s.write(all)
}

func (s *FileStore) read() ([]Appointment, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []Appointment{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("appointments: read %s: %w", s.path, err)
	}
	if len(data) == 0 {
		return []Appointment{}, nil
	}
	var all []Appointment
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("appointments: decode %s: %w", s.path, err)
	}
	return all, nil
}

func (s *FileStore) write(all []Appointment) error {
	if all == nil {
		all = []Appointment{}
	}
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("appointments: encode: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("appointments: create dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".appointments-*.json")
	if err != nil {
		return fmt.Errorf("appointments: temp file: %w", err)
	}
	tmpName := tmp.Name()
	mode := fs.FileMode(0o644)
	if info, err := os.Stat(s.path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("appointments: chmod temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("appointments: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("appointments: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("appointments: replace %s: %w", s.path, err)
	}
	return nil
}
