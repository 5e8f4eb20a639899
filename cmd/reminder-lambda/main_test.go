package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/events"

	"github.com/wolfman30/clinic-reminders/internal/reminders"
	"github.com/wolfman30/clinic-reminders/pkg/logging"
)

type stubRunner struct {
	result reminders.RunResult
	err    error
}

func (s stubRunner) RunOnce(ctx context.Context) (reminders.RunResult, error) {
	return s.result, s.err
}

func quietLogger() *logging.Logger { return logging.NewWithWriter(&bytes.Buffer{}, "error") }

func TestHandleRunsPass(t *testing.T) {
	builds := 0
	lazy := &lazyRunner{build: func(ctx context.Context) (runner, error) {
		builds++
		return stubRunner{result: reminders.RunResult{Sent24h: 2}}, nil
	}}

	for i := 0; i < 2; i++ {
		res, err := handle(context.Background(), lazy, events.CloudWatchEvent{ID: "evt-1"}, quietLogger())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Sent24h != 2 {
			t.Fatalf("expected 2 sent, got %+v", res)
		}
	}
	if builds != 1 {
		t.Fatalf("expected service to be built once, got %d", builds)
	}
}

func TestHandleSkippedPassIsNotAFailure(t *testing.T) {
	lazy := &lazyRunner{build: func(ctx context.Context) (runner, error) {
		return stubRunner{err: reminders.ErrAlreadyRunning}, nil
	}}
	if _, err := handle(context.Background(), lazy, events.CloudWatchEvent{}, quietLogger()); err != nil {
		t.Fatalf("expected skipped pass to succeed, got %v", err)
	}
}

func TestHandlePropagatesFailures(t *testing.T) {
	lazy := &lazyRunner{build: func(ctx context.Context) (runner, error) {
		return stubRunner{result: reminders.RunResult{Sent2h: 1}, err: reminders.ErrMarkFailed}, nil
	}}
	res, err := handle(context.Background(), lazy, events.CloudWatchEvent{}, quietLogger())
	if !errors.Is(err, reminders.ErrMarkFailed) {
		t.Fatalf("expected mark failure, got %v", err)
	}
	if res.Sent2h != 1 {
		t.Fatalf("expected partial counts, got %+v", res)
	}
}

func TestLazyRunnerRetriesFailedBuild(t *testing.T) {
	attempts := 0
	lazy := &lazyRunner{build: func(ctx context.Context) (runner, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("DATABASE_URL is required")
		}
		return stubRunner{}, nil
	}}
	if _, err := handle(context.Background(), lazy, events.CloudWatchEvent{}, quietLogger()); err == nil {
		t.Fatalf("expected build error")
	}
	if _, err := handle(context.Background(), lazy, events.CloudWatchEvent{}, quietLogger()); err != nil {
		t.Fatalf("expected second build to succeed, got %v", err)
	}
}
