package app

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"
)

// Sync pulls the requested tables into the local cache and prints a
// per-table summary. Individual table failures are reported in the
// summary; Sync itself fails only when no table succeeded.
func (a *App) Sync(ctx context.Context, opts SyncOptions) error {
	comps, err := a.buildComponents(ctx)
	if err != nil {
		return err
	}
	defer comps.close()

	results := comps.engine.Sync(ctx, opts.Tables, opts.Force)

	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Table\tFetched\tAdded\tTotal\tSynced At\tError")

	failures := 0
	for _, name := range names {
		res := results[name]
		errMsg := ""
		if res.Err != nil {
			failures++
			errMsg = sanitizeInline(res.Err.Error())
		}
		fmt.Fprintf(writer, "%s\t%d\t%d\t%d\t%s\t%s\n",
			res.Table,
			res.RecordsFetched,
			res.RecordsAdded,
			res.TotalRecords,
			res.SyncedAt.UTC().Format(time.RFC3339),
			errMsg,
		)
	}
	writer.Flush()

	if failures == len(results) && failures > 0 {
		return fmt.Errorf("all %d table syncs failed", failures)
	}
	return nil
}
