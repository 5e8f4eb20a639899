// Package reminders decides which appointments are due for a 24h or 2h
// reminder and drives delivery on a recurring timer.
package reminders

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/clinic-reminders/internal/appointments"
	"github.com/wolfman30/clinic-reminders/internal/observability/metrics"
	"github.com/wolfman30/clinic-reminders/pkg/logging"
)

var tracer = otel.Tracer("clinic.internal.reminders")

// ErrAlreadyRunning is returned when a pass is skipped because another one
// holds the in-process flag or the shared lock.
var ErrAlreadyRunning = errors.New("reminders: pass already running")

const lockKey = "run"

// ReminderDispatcher delivers and records a single reminder.
type ReminderDispatcher interface {
	Dispatch(ctx context.Context, appt appointments.Appointment, kind appointments.ReminderKind) (bool, error)
}

// RunResult counts what one pass did.
type RunResult struct {
	Sent24h int `json:"sent24h"`
	Sent2h  int `json:"sent2h"`
	Errors  int `json:"errors"`
}

func (r *RunResult) add(kind appointments.ReminderKind) {
	switch kind {
	case appointments.Reminder24h:
		r.Sent24h++
	case appointments.Reminder2h:
		r.Sent2h++
	}
}

// Status is a snapshot of the scheduler for operational tooling.
type Status struct {
	Running    bool
	InProgress bool
	Interval   time.Duration
	LastRunAt  time.Time
	LastResult RunResult
	LastError  string
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithWindows replaces DefaultWindows.
func WithWindows(windows []Window) Option {
	return func(s *Scheduler) {
		if len(windows) > 0 {
			s.windows = windows
		}
	}
}

// WithLocation sets the zone appointment dates and times are read in.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithLocker adds a cross-process lock held for at most ttl per pass.
func WithLocker(l Locker, ttl time.Duration) Option {
	return func(s *Scheduler) {
		s.locker = l
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

// WithMetrics records pass outcomes.
func WithMetrics(m *metrics.ReminderMetrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// Scheduler owns one recurring reminder timer. Independent schedulers do not
// share state.
type Scheduler struct {
	store      appointments.Store
	dispatcher ReminderDispatcher
	windows    []Window
	loc        *time.Location
	now        func() time.Time
	locker     Locker
	lockTTL    time.Duration
	metrics    *metrics.ReminderMetrics
	logger     *logging.Logger

	inProgress atomic.Bool

	mu         sync.Mutex
	stop       chan struct{}
	done       chan struct{}
	interval   time.Duration
	lastRunAt  time.Time
	lastResult RunResult
	lastErr    string
}

// NewScheduler creates a reminder scheduler.
func NewScheduler(store appointments.Store, dispatcher ReminderDispatcher, logger *logging.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = logging.Default()
	}
	s := &Scheduler{
		store:      store,
		dispatcher: dispatcher,
		windows:    DefaultWindows,
		loc:        time.UTC,
		now:        time.Now,
		lockTTL:    10 * time.Minute,
		logger:     logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// RunOnce performs a single pass over every appointment. Per-appointment
// failures are counted in Errors; a store failure aborts the pass and is
// returned with the counts so far.
func (s *Scheduler) RunOnce(ctx context.Context) (RunResult, error) {
	if !s.inProgress.CompareAndSwap(false, true) {
		s.metrics.ObserveRun("skipped", 0)
		return RunResult{}, ErrAlreadyRunning
	}
	defer s.inProgress.Store(false)

	if s.locker != nil {
		release, ok, err := s.locker.Acquire(ctx, lockKey, s.lockTTL)
		if err != nil {
			s.metrics.ObserveRun("error", 0)
			return RunResult{}, err
		}
		if !ok {
			s.metrics.ObserveRun("skipped", 0)
			return RunResult{}, ErrAlreadyRunning
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warn("reminder lock release failed", "error", err)
			}
		}()
	}

	ctx, span := tracer.Start(ctx, "reminders.run_once")
	defer span.End()

	started := time.Now()
	result, err := s.runPass(ctx)
	span.SetAttributes(
		attribute.Int("clinic.sent_24h", result.Sent24h),
		attribute.Int("clinic.sent_2h", result.Sent2h),
		attribute.Int("clinic.errors", result.Errors),
	)

	outcome := "ok"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
	}
	s.metrics.ObserveRun(outcome, time.Since(started))

	s.mu.Lock()
	s.lastRunAt = s.now()
	s.lastResult = result
	s.lastErr = ""
	if err != nil {
		s.lastErr = err.Error()
	}
	s.mu.Unlock()

	return result, err
}

func (s *Scheduler) runPass(ctx context.Context) (RunResult, error) {
	var result RunResult
	all, err := s.store.ListAppointments(ctx)
	if err != nil {
		return result, fmt.Errorf("reminders: list appointments: %w", err)
	}
	now := s.now()

	for _, appt := range all {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		sent, err := s.processAppointment(ctx, appt, now)
		for _, kind := range sent {
			result.add(kind)
		}
		if err == nil {
			continue
		}
		if errors.Is(err, ErrMarkFailed) {
			s.logger.Error("reminder pass aborted: state not persisted", "appointment_id", appt.ID, "error", err)
			return result, err
		}
		result.Errors++
		s.logger.Error("failed to process appointment", "appointment_id", appt.ID, "error", err)
	}

	s.logger.Info("reminder pass complete",
		"appointments", len(all),
		"sent_24h", result.Sent24h,
		"sent_2h", result.Sent2h,
		"errors", result.Errors,
	)
	return result, nil
}

func (s *Scheduler) processAppointment(ctx context.Context, appt appointments.Appointment, now time.Time) (sent []appointments.ReminderKind, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reminders: panic processing appointment: %v", r)
		}
	}()

	_, due, err := DueKinds(appt, now, s.loc, s.windows)
	if err != nil {
		return nil, err
	}
	for _, kind := range due {
		marked, err := s.dispatcher.Dispatch(ctx, appt, kind)
		if err != nil {
			return sent, err
		}
		if marked {
			sent = append(sent, kind)
		}
	}
	return sent, nil
}

// Start runs a pass immediately and then every interval until Stop or ctx
// is done. Starting an already started scheduler replaces its timer.
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) error {
	if interval == 0 {
		interval = DefaultInterval
	}
	if err := ValidateInterval(interval, s.windows); err != nil {
		return err
	}
	s.Stop()

	stop := make(chan struct{})
	done := make(chan struct{})
	s.mu.Lock()
	s.stop, s.done, s.interval = stop, done, interval
	s.mu.Unlock()

	s.logger.Info("reminder scheduler started", "interval", interval.String())
	go s.loop(ctx, interval, stop, done)
	return nil
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration, stop chan struct{}, done chan struct{}) {
	defer close(done)
	defer func() {
		// ctx ended without Stop: drop the handle so Running reports false.
		s.mu.Lock()
		if s.stop == stop {
			s.stop, s.done, s.interval = nil, nil, 0
		}
		s.mu.Unlock()
	}()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			select {
			case <-stop:
				return
			default:
			}
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil {
		if errors.Is(err, ErrAlreadyRunning) {
			s.logger.Info("reminder pass skipped: already running")
			return
		}
		s.logger.Error("reminder pass failed", "error", err)
	}
}

// Stop prevents any further tick. An in-flight pass is not cancelled; Stop
// returns once it has finished.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done, s.interval = nil, nil, 0
	s.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
	s.logger.Info("reminder scheduler stopped")
}

// Running reports whether the timer is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stop != nil
}

// Status returns a snapshot for operational tooling.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Running:    s.stop != nil,
		InProgress: s.inProgress.Load(),
		Interval:   s.interval,
		LastRunAt:  s.lastRunAt,
		LastResult: s.lastResult,
		LastError:  s.lastErr,
	}
}
