package retry

import (
	"context"
	"errors"
	"math/rand"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

// ErrExhausted marks the invariant violation where the retry loop exits
// without either a result or an error. It should never surface.
var ErrExhausted = errors.New("retry: loop exited without a result")

// Policy wraps one logical request with bounded retries. The zero value
// performs a single attempt with no backoff.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Logger     zerolog.Logger
}

// transienter is implemented by errors that know whether they are worth
// retrying, such as api.APIError.
type transienter interface {
	Transient() bool
}

// Retryable reports whether err is a transient fault: a retryable HTTP
// status, or a transport-level connect/timeout failure. Everything else
// propagates on first occurrence.
func Retryable(err error) bool {
	var t transienter
	if errors.As(err, &t) {
		return t.Transient()
	}
	var uerr *url.Error
	return errors.As(err, &uerr)
}

// Do invokes op, retrying transient failures with exponential backoff and
// full jitter. After MaxRetries retries the last error is returned. The
// backoff sleep aborts early only when ctx is cancelled.
func (p Policy) Do(ctx context.Context, op func() error) error {
	var lastErr error

	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		err := op()
		if err == nil {
			return nil
		}
		if !Retryable(err) {
			return err
		}
		lastErr = err

		if attempt == p.MaxRetries {
			p.Logger.Error().Err(err).
				Int("retries", p.MaxRetries).
				Msg("request failed after retries exhausted")
			return err
		}

		delay := p.delay(attempt)
		p.Logger.Warn().Err(err).
			Dur("delay", delay).
			Int("attempt", attempt+1).
			Int("max_retries", p.MaxRetries).
			Msg("transient request failure, backing off")

		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}

	if lastErr != nil {
		return lastErr
	}
	return ErrExhausted
}

// delay draws a full-jitter backoff for the given 0-indexed attempt:
// uniform(0, min(MaxDelay, BaseDelay*2^attempt)). Full jitter spreads
// simultaneous clients apart instead of synchronising their retries.
func (p Policy) delay(attempt int) time.Duration {
	capped := p.MaxDelay
	if attempt < 62 {
		if exp := p.BaseDelay << uint(attempt); exp > 0 && exp < capped {
			capped = exp
		}
	}
	if capped <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(capped) + 1))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
