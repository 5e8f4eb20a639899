package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore reads appointments from the appointments table and marks
// reminders with row-level conditional updates.
type PostgresStore struct {
	db DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new Postgres-backed store.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const selectAppointments = `
	SELECT id, patient_name, patient_phone, COALESCE(patient_email, ''), doctor_name, specialty,
		to_char(appointment_date, 'YYYY-MM-DD'), appointment_time, status,
		reminder_24h_sent, reminder_24h_sent_at, reminder_2h_sent, reminder_2h_sent_at
	FROM appointments`

// ListAppointments returns every appointment ordered by schedule.
func (s *PostgresStore) ListAppointments(ctx context.Context) ([]Appointment, error) {
	rows, err := s.db.Query(ctx, selectAppointments+`
	ORDER BY appointment_date ASC, appointment_time ASC`)
	if err != nil {
		return nil, fmt.Errorf("appointments: list: %w", err)
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		var a Appointment
		var status string
		if err := rows.Scan(
			&a.ID, &a.PatientName, &a.PatientPhone, &a.PatientEmail, &a.DoctorName, &a.Specialty,
			&a.Date, &a.Time, &status,
			&a.Reminders.Sent24h, &a.Reminders.Sent24hAt, &a.Reminders.Sent2h, &a.Reminders.Sent2hAt,
		); err != nil {
			return nil, fmt.Errorf("appointments: scan: %w", err)
		}
		a.Status = Status(status)
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: list rows: %w", err)
	}
	return result, nil
}

func reminderColumns(kind ReminderKind) (flag, at string, err error) {
	switch kind {
	case Reminder24h:
		return "reminder_24h_sent", "reminder_24h_sent_at", nil
	case Reminder2h:
		return "reminder_2h_sent", "reminder_2h_sent_at", nil
	}
	return "", "", fmt.Errorf("%w: %q", ErrInvalidKind, kind)
}

// MarkReminderSent flips one reminder flag only if it is still unset.
func (s *PostgresStore) MarkReminderSent(ctx context.Context, id string, kind ReminderKind, at time.Time) error {
	flag, atCol, err := reminderColumns(kind)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, fmt.Sprintf(`
		UPDATE appointments SET %s = TRUE, %s = $2
		WHERE id = $1 AND NOT %s`, flag, atCol, flag), id, at.UTC())
	if err != nil {
		return fmt.Errorf("appointments: mark %s reminder: %w", kind, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var sent bool
	err = s.db.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM appointments WHERE id = $1`, flag), id).Scan(&sent)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("appointments: check %s reminder: %w", kind, err)
	}
	return ErrAlreadyMarked
}
