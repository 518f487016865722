package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"t212cache/internal/store"
)

// Stats prints cache coverage: row counts, record date ranges, and last
// sync times per table.
func (a *App) Stats(ctx context.Context) error {
	if !a.Config.Cache.Enabled {
		printStats(store.DisabledStats(a.Config.Cache.DatabasePath))
		return nil
	}

	comps, err := a.buildComponents(ctx)
	if err != nil {
		return err
	}
	defer comps.close()

	printStats(comps.store.Stats())
	return nil
}

func printStats(stats store.CacheStats) {
	fmt.Fprintf(os.Stdout, "Cache enabled: %t\n", stats.Enabled)
	fmt.Fprintf(os.Stdout, "Database path: %s\n", stats.DatabasePath)
	if !stats.Enabled {
		return
	}
	fmt.Fprintf(os.Stdout, "Database size: %s\n\n", formatBytes(stats.DatabaseSizeBytes))

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Table\tRows\tOldest\tNewest\tLast Sync")
	printCoverage(writer, store.TableOrders, stats.Orders)
	printCoverage(writer, store.TableDividends, stats.Dividends)
	printCoverage(writer, store.TableTransactions, stats.Transactions)
	writer.Flush()
}

func printCoverage(writer *tabwriter.Writer, table store.Table, cov store.Coverage) {
	fmt.Fprintf(writer, "%s\t%d\t%s\t%s\t%s\n",
		table,
		cov.Count,
		formatInstant(cov.Oldest),
		formatInstant(cov.Newest),
		formatInstant(cov.LastSync),
	)
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
