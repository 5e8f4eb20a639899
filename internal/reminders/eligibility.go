package reminders

import (
	"errors"
	"fmt"
	"time"

	"github.com/wolfman30/clinic-reminders/internal/appointments"
)

// Window is the tolerance band around a reminder's lead time.
type Window struct {
	Kind      appointments.ReminderKind
	Lead      time.Duration
	Tolerance time.Duration
}

// Width is the span of time during which the window is open.
func (w Window) Width() time.Duration { return 2 * w.Tolerance }

// DefaultWindows are [23h, 25h] for the day-before reminder and [1.5h, 2.5h]
// for the same-day reminder.
var DefaultWindows = []Window{
	{Kind: appointments.Reminder24h, Lead: 24 * time.Hour, Tolerance: time.Hour},
	{Kind: appointments.Reminder2h, Lead: 2 * time.Hour, Tolerance: 30 * time.Minute},
}

// DefaultInterval is the scheduler tick when none is configured.
const DefaultInterval = 30 * time.Minute

// ErrIntervalTooCoarse is returned when a tick could step over a whole window.
var ErrIntervalTooCoarse = errors.New("reminders: interval wider than the narrowest reminder window")

// IsDue reports whether scheduledAt lies within [lead-tolerance, lead+tolerance]
// of now. Both ends are inclusive.
func IsDue(now, scheduledAt time.Time, lead, tolerance time.Duration) bool {
	until := scheduledAt.Sub(now)
	return until >= lead-tolerance && until <= lead+tolerance
}

// Eligible applies the gate every reminder passes before any window check:
// the appointment is confirmed and has not started yet. It returns the
// scheduled instant resolved in loc.
func Eligible(a appointments.Appointment, now time.Time, loc *time.Location) (time.Time, bool, error) {
	if a.Status != appointments.StatusConfirmed {
		return time.Time{}, false, nil
	}
	at, err := a.ScheduledAt(loc)
	if err != nil {
		return time.Time{}, false, err
	}
	return at, at.After(now), nil
}

// DueKinds returns the reminders a pass at now would attempt for a, in
// window order, together with its scheduled instant. Kinds already flagged
// as sent are left out.
func DueKinds(a appointments.Appointment, now time.Time, loc *time.Location, windows []Window) (time.Time, []appointments.ReminderKind, error) {
	at, ok, err := Eligible(a, now, loc)
	if err != nil || !ok {
		return at, nil, err
	}
	var due []appointments.ReminderKind
	for _, w := range windows {
		if a.Reminders.Sent(w.Kind) || !IsDue(now, at, w.Lead, w.Tolerance) {
			continue
		}
		due = append(due, w.Kind)
	}
	return at, due, nil
}

// MaxSafeInterval is the longest tick that cannot skip over any window.
func MaxSafeInterval(windows []Window) time.Duration {
	var limit time.Duration
	for i, w := range windows {
		if i == 0 || w.Width() < limit {
			limit = w.Width()
		}
	}
	return limit
}

// ValidateInterval rejects non-positive intervals and ones a window could
// slip through between two ticks.
func ValidateInterval(interval time.Duration, windows []Window) error {
	if interval <= 0 {
		return fmt.Errorf("reminders: interval must be positive, got %s", interval)
	}
	if limit := MaxSafeInterval(windows); limit > 0 && interval > limit {
		return fmt.Errorf("%w: %s > %s", ErrIntervalTooCoarse, interval, limit)
	}
	return nil
}
