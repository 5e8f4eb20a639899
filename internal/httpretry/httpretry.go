// Package httpretry holds the outbound retry policy shared by the SMS and
// email HTTP transports.
package httpretry

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"
)

// MaxAttempts bounds every Post call.
const MaxAttempts = 3

// Delay returns the pause before the next attempt. Swapped out in tests.
var Delay = func(attempt int) time.Duration {
	return time.Duration(200+rand.Intn(300)) * time.Millisecond
}

// StatusError reports a non-2xx provider response.
type StatusError struct {
	Provider string
	Status   int
	Detail   string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s send failed: status %d", e.Provider, e.Status)
	}
	return fmt.Sprintf("%s send failed: %s", e.Provider, e.Detail)
}

// Retryable reports whether the status is worth another attempt.
func (e *StatusError) Retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// Post runs newReq up to MaxAttempts times and returns the 2xx body. Network
// errors, 429 and 5xx responses are retried; other 4xx responses stop
// immediately. describe, when set, renders the error detail from the body.
func Post(ctx context.Context, client *http.Client, provider string, newReq func(context.Context) (*http.Request, error), describe func(int, []byte) string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		req, err := newReq(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: build request: %w", provider, err)
		}
		resp, err := client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%s: request: %w", provider, err)
		} else {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
			resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return body, nil
			}
			statusErr := &StatusError{Provider: provider, Status: resp.StatusCode}
			if describe != nil {
				statusErr.Detail = describe(resp.StatusCode, body)
			}
			lastErr = statusErr
			if !statusErr.Retryable() {
				return nil, lastErr
			}
		}

		if attempt < MaxAttempts {
			timer := time.NewTimer(Delay(attempt))
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}
	}
	return nil, lastErr
}
