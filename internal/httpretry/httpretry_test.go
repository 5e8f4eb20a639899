package httpretry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func noDelay(t *testing.T) {
	t.Helper()
	prev := Delay
	Delay = func(int) time.Duration { return 0 }
	t.Cleanup(func() { Delay = prev })
}

func post(ctx context.Context, url string) ([]byte, error) {
	return Post(ctx, http.DefaultClient, "test", func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	}, func(status int, body []byte) string {
		return strings.TrimSpace(string(body))
	})
}

func TestPostRetriesUntilSuccess(t *testing.T) {
	noDelay(t)
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch atomic.AddInt32(&calls, 1) {
		case 1:
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			_, _ = w.Write([]byte("ok"))
		}
	}))
	defer srv.Close()

	body, err := post(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != "ok" || calls != 3 {
		t.Fatalf("got body %q after %d calls", body, calls)
	}
}

func TestPostGivesUpAfterMaxAttempts(t *testing.T) {
	noDelay(t)
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := post(context.Background(), srv.URL)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Status != http.StatusBadGateway {
		t.Fatalf("expected 502 StatusError, got %v", err)
	}
	if calls != MaxAttempts {
		t.Fatalf("expected %d calls, got %d", MaxAttempts, calls)
	}
}

func TestPostStopsOnClientError(t *testing.T) {
	noDelay(t)
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad recipient", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	_, err := post(context.Background(), srv.URL)
	if err == nil || !strings.Contains(err.Error(), "bad recipient") {
		t.Fatalf("expected detail in error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single call, got %d", calls)
	}
}

func TestPostHonoursCancellationBetweenAttempts(t *testing.T) {
	prev := Delay
	Delay = func(int) time.Duration { return time.Hour }
	t.Cleanup(func() { Delay = prev })

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := post(ctx, srv.URL)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
