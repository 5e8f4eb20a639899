package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestReminderMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewReminderMetrics(reg)
	m.ObserveRun("ok", 150*time.Millisecond)
	m.ObserveRun("skipped", 0)
	m.ObserveSent("24h")
	m.ObserveSent("24h")
	m.ObserveAttempt("email", "failed")
	m.ObserveAttempt("sms", "success")

	if got := testutil.ToFloat64(m.sentTotal.WithLabelValues("24h")); got != 2 {
		t.Fatalf("expected 2 sent, got %v", got)
	}
	if got := testutil.ToFloat64(m.runsTotal.WithLabelValues("skipped")); got != 1 {
		t.Fatalf("expected 1 skipped run, got %v", got)
	}
	if got := testutil.ToFloat64(m.attemptsTotal.WithLabelValues("email", "failed")); got != 1 {
		t.Fatalf("expected 1 failed email attempt, got %v", got)
	}
	if got := testutil.CollectAndCount(m.runDuration); got != 1 {
		t.Fatalf("expected histogram to be collected once, got %d", got)
	}
}

func TestReminderMetricsNilSafe(t *testing.T) {
	var m *ReminderMetrics
	m.ObserveRun("ok", time.Second)
	m.ObserveSent("2h")
	m.ObserveAttempt("sms", "failed")
}
