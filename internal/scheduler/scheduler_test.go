package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestRunTicksImmediatelyAndStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sched := New(Options{Interval: time.Hour}, zerolog.Nop())

	ticks := 0
	err := sched.Run(ctx, func(context.Context) error {
		ticks++
		cancel()
		return nil
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if ticks != 1 {
		t.Fatalf("expected one immediate tick, got %d", ticks)
	}
}

func TestRunKeepsGoingAfterTickError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sched := New(Options{Interval: time.Millisecond}, zerolog.Nop())

	ticks := 0
	_ = sched.Run(ctx, func(context.Context) error {
		ticks++
		if ticks >= 3 {
			cancel()
		}
		return errors.New("tick failed")
	})

	if ticks < 3 {
		t.Fatalf("a failing tick must not stop the loop, got %d ticks", ticks)
	}
}

func TestNewRejectsNonPositiveInterval(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("non-positive interval should panic")
		}
	}()
	New(Options{Interval: 0}, zerolog.Nop())
}
