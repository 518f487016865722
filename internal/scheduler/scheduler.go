package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc runs one sync pass.
type TickFunc func(ctx context.Context) error

// Options tune the sync loop.
type Options struct {
	Interval     time.Duration
	StartupDelay time.Duration
}

// Scheduler drives the periodic cache refresh loop for watch mode. Ticks
// run back to back, never concurrently: a slow sync simply delays the
// next one.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	return &Scheduler{opts: opts, logger: logger.With().Str("component", "scheduler").Logger()}
}

// Run blocks, invoking the tick function immediately and then once per
// interval, until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	if s.opts.StartupDelay > 0 {
		if err := wait(ctx, s.opts.StartupDelay); err != nil {
			return err
		}
	}

	for {
		s.logger.Info().Msg("executing scheduled sync")
		if err := tick(ctx); err != nil {
			s.logger.Error().Err(err).Msg("scheduled sync failed")
		}

		s.logger.Debug().Dur("interval", s.opts.Interval).Msg("waiting for next sync")
		if err := wait(ctx, s.opts.Interval); err != nil {
			return err
		}
	}
}

func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
