package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"t212cache/internal/store"
)

// Clear removes cached rows for one table, or for everything including
// sync metadata when no table is named.
func (a *App) Clear(ctx context.Context, opts ClearOptions) error {
	table := store.Table("")
	if opts.Table != "" {
		parsed, err := store.ParseTable(opts.Table)
		if err != nil {
			return err
		}
		table = parsed
	}

	comps, err := a.buildComponents(ctx)
	if err != nil {
		return err
	}
	defer comps.close()

	if comps.store == nil {
		return errors.New("cache is disabled; nothing to clear")
	}

	deleted, err := comps.store.Clear(table)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(deleted))
	for t := range deleted {
		names = append(names, string(t))
	}
	sort.Strings(names)

	for _, name := range names {
		fmt.Fprintf(os.Stdout, "%s: %d rows deleted\n", name, deleted[store.Table(name)])
	}
	return nil
}
