package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// endpointLimit is the quota state for one endpoint, as last reported by
// the upstream x-ratelimit-* response headers.
type endpointLimit struct {
	limit     int
	remaining int
	reset     time.Time
}

// Limiter tracks per-endpoint request quotas from Trading212 response
// headers. Unknown endpoints are always allowed; the limiter only ever
// tightens based on what the server reports.
type Limiter struct {
	mu        sync.Mutex
	endpoints map[string]endpointLimit
	now       func() time.Time
	logger    zerolog.Logger
}

// New constructs a Limiter with no endpoint state.
func New(logger zerolog.Logger) *Limiter {
	return &Limiter{
		endpoints: make(map[string]endpointLimit),
		now:       time.Now,
		logger:    logger.With().Str("component", "rate_limiter").Logger(),
	}
}

// Update records quota state from response headers. Missing or malformed
// headers are ignored; a header parse failure must never block requests.
func (l *Limiter) Update(endpoint string, header http.Header) {
	limitStr := header.Get("x-ratelimit-limit")
	remainingStr := header.Get("x-ratelimit-remaining")
	resetStr := header.Get("x-ratelimit-reset")

	if limitStr == "" || remainingStr == "" || resetStr == "" {
		return
	}

	limit, err := strconv.Atoi(limitStr)
	if err != nil {
		l.logger.Warn().Str("endpoint", endpoint).Str("value", limitStr).Msg("unparseable x-ratelimit-limit header")
		return
	}
	remaining, err := strconv.Atoi(remainingStr)
	if err != nil {
		l.logger.Warn().Str("endpoint", endpoint).Str("value", remainingStr).Msg("unparseable x-ratelimit-remaining header")
		return
	}
	resetEpoch, err := strconv.ParseFloat(resetStr, 64)
	if err != nil {
		l.logger.Warn().Str("endpoint", endpoint).Str("value", resetStr).Msg("unparseable x-ratelimit-reset header")
		return
	}

	state := endpointLimit{
		limit:     limit,
		remaining: remaining,
		reset:     time.Unix(0, int64(resetEpoch*float64(time.Second))),
	}

	l.mu.Lock()
	l.endpoints[endpoint] = state
	l.mu.Unlock()

	l.logger.Debug().
		Str("endpoint", endpoint).
		Int("remaining", remaining).
		Int("limit", limit).
		Time("reset", state.reset).
		Msg("rate limit state updated")
}

// CanProceed reports whether a request to the endpoint is currently
// allowed: true for unknown endpoints, after the reset instant, or while
// quota remains.
func (l *Limiter) CanProceed(endpoint string) bool {
	l.mu.Lock()
	state, ok := l.endpoints[endpoint]
	l.mu.Unlock()

	if !ok {
		return true
	}
	if !l.now().Before(state.reset) {
		return true
	}
	return state.remaining > 0
}

// WaitDuration returns how long to wait before a request to the endpoint
// is allowed, or 0.
func (l *Limiter) WaitDuration(endpoint string) time.Duration {
	l.mu.Lock()
	state, ok := l.endpoints[endpoint]
	l.mu.Unlock()

	if !ok || state.remaining > 0 {
		return 0
	}
	wait := state.reset.Sub(l.now())
	if wait < 0 {
		return 0
	}
	return wait
}

// Block sleeps until the endpoint's quota allows a request. It returns
// early only when ctx is cancelled; that is the sole deadline a caller
// can impose on the wait.
func (l *Limiter) Block(ctx context.Context, endpoint string) error {
	wait := l.WaitDuration(endpoint)
	if wait <= 0 {
		return nil
	}

	l.logger.Info().
		Str("endpoint", endpoint).
		Dur("wait", wait).
		Msg("rate limited, waiting for quota reset")

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
