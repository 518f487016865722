package app

import (
	"context"
	"errors"

	"t212cache/internal/alerting"
	"t212cache/internal/scheduler"
	"t212cache/internal/store"
	syncer "t212cache/internal/sync"
)

// Watch runs the periodic refresh loop: every interval, each data table
// that has gone stale is re-synced. Failures are logged, optionally
// alerted, and retried on the next tick.
func (a *App) Watch(ctx context.Context) error {
	comps, err := a.buildComponents(ctx)
	if err != nil {
		return err
	}
	defer comps.close()

	if comps.store == nil {
		return errors.New("cache is disabled; watch mode needs a cache to refresh")
	}

	notifier := a.newNotifier()

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Watch.Interval,
		StartupDelay: a.Config.Watch.StartupDelay,
	}, a.Logger)

	return sched.Run(ctx, func(tickCtx context.Context) error {
		var tickErr error
		for _, table := range store.DataTables() {
			res := comps.engine.SyncIfStale(tickCtx, table)
			if res == nil || res.Err == nil {
				continue
			}
			tickErr = errors.Join(tickErr, res.Err)

			if notifier == nil {
				continue
			}
			note := alertFor(res)
			if err := notifier.Notify(tickCtx, note); err != nil {
				a.Logger.Error().Err(err).Str("table", string(table)).Msg("failed to deliver sync failure alert")
			}
		}
		return tickErr
	})
}

func alertFor(res *syncer.Result) alerting.Notification {
	return alerting.Notification{
		Table:      res.Table,
		Message:    res.Err.Error(),
		OccurredAt: res.SyncedAt,
	}
}
