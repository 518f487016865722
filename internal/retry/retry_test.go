package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type statusError struct {
	status int
}

func (e *statusError) Error() string   { return fmt.Sprintf("status %d", e.status) }
func (e *statusError) Transient() bool { return e.status == 429 || e.status >= 500 }

func fastPolicy(maxRetries int) Policy {
	return Policy{
		MaxRetries: maxRetries,
		BaseDelay:  time.Microsecond,
		MaxDelay:   time.Millisecond,
		Logger:     zerolog.Nop(),
	}
}

func TestDoRecoversFromTransientFailures(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return &statusError{status: 500}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected recovery after transient failures: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestDoStopsOnPermanentError(t *testing.T) {
	calls := 0
	permanent := &statusError{status: 400}
	err := fastPolicy(3).Do(context.Background(), func() error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("expected the permanent error back, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("permanent errors must not be retried, got %d attempts", calls)
	}
}

func TestDoExhaustsAndReturnsLastError(t *testing.T) {
	calls := 0
	err := fastPolicy(2).Do(context.Background(), func() error {
		calls++
		return &statusError{status: 503}
	})
	if err == nil {
		t.Fatal("expected failure after retries exhausted")
	}
	var se *statusError
	if !errors.As(err, &se) || se.status != 503 {
		t.Fatalf("expected last transient error, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected initial attempt plus 2 retries, got %d", calls)
	}
}

func TestDoSucceedsFirstTry(t *testing.T) {
	calls := 0
	if err := fastPolicy(3).Do(context.Background(), func() error {
		calls++
		return nil
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly one attempt, got %d", calls)
	}
}

func TestDoAbortsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := Policy{MaxRetries: 5, BaseDelay: time.Hour, MaxDelay: time.Hour, Logger: zerolog.Nop()}

	calls := 0
	err := policy.Do(ctx, func() error {
		calls++
		cancel()
		return &statusError{status: 500}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("cancelled backoff should stop further attempts, got %d", calls)
	}
}

func TestRetryableClassification(t *testing.T) {
	if Retryable(errors.New("plain")) {
		t.Fatal("plain errors are not retryable")
	}
	if !Retryable(&statusError{status: 429}) {
		t.Fatal("429 should be retryable")
	}
	if Retryable(&statusError{status: 404}) {
		t.Fatal("404 should not be retryable")
	}
	if !Retryable(fmt.Errorf("request: %w", &statusError{status: 502})) {
		t.Fatal("wrapped transient errors should stay retryable")
	}
}

func TestDelayRespectsCap(t *testing.T) {
	policy := Policy{BaseDelay: time.Second, MaxDelay: 4 * time.Second, Logger: zerolog.Nop()}

	for attempt := 0; attempt < 80; attempt++ {
		d := policy.delay(attempt)
		if d < 0 || d > 4*time.Second {
			t.Fatalf("attempt %d: delay %s outside [0, cap]", attempt, d)
		}
	}
}

func TestDelayGrowsWithAttempt(t *testing.T) {
	policy := Policy{BaseDelay: time.Second, MaxDelay: time.Hour, Logger: zerolog.Nop()}

	// Full jitter draws uniformly from [0, base*2^attempt]; only the
	// upper bound is deterministic, so sample for a range violation.
	for i := 0; i < 100; i++ {
		if d := policy.delay(2); d > 4*time.Second {
			t.Fatalf("attempt 2 delay %s exceeds base*2^2", d)
		}
	}
}
