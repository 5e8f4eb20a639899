package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ReminderMetrics exposes counters/histograms for reminder passes and sends.
type ReminderMetrics struct {
	runsTotal     *prometheus.CounterVec
	sentTotal     *prometheus.CounterVec
	attemptsTotal *prometheus.CounterVec
	runDuration   prometheus.Histogram
}

func NewReminderMetrics(reg prometheus.Registerer) *ReminderMetrics {
	m := &ReminderMetrics{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "reminders",
			Name:      "runs_total",
			Help:      "Total reminder passes by outcome",
		}, []string{"outcome"}),
		sentTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "reminders",
			Name:      "sent_total",
			Help:      "Total reminders marked as sent",
		}, []string{"kind"}),
		attemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "reminders",
			Name:      "channel_attempts_total",
			Help:      "Total channel delivery attempts",
		}, []string{"channel", "status"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "reminders",
			Name:      "run_duration_seconds",
			Help:      "Duration of reminder passes",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.runsTotal, m.sentTotal, m.attemptsTotal, m.runDuration)
	return m
}

// ObserveRun records one pass. outcome is "ok", "error" or "skipped".
func (m *ReminderMetrics) ObserveRun(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(outcome).Inc()
	if outcome != "skipped" {
		m.runDuration.Observe(d.Seconds())
	}
}

func (m *ReminderMetrics) ObserveSent(kind string) {
	if m == nil {
		return
	}
	m.sentTotal.WithLabelValues(kind).Inc()
}

// ObserveAttempt records a channel attempt. status is "success", "fallback" or "failed".
func (m *ReminderMetrics) ObserveAttempt(channel, status string) {
	if m == nil {
		return
	}
	m.attemptsTotal.WithLabelValues(channel, status).Inc()
}
