package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"t212cache/internal/store"
)

// Show prints cached records for one table, syncing first when the
// cache is stale (unless NoSync is set).
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	table, err := store.ParseTable(opts.Table)
	if err != nil {
		return err
	}

	comps, err := a.buildComponents(ctx)
	if err != nil {
		return err
	}
	defer comps.close()

	if comps.store == nil {
		return errors.New("cache is disabled; set cache.enabled to browse cached history")
	}

	if !opts.NoSync {
		if res := comps.engine.SyncIfStale(ctx, table); res != nil && res.Err != nil {
			a.Logger.Warn().Err(res.Err).Str("table", string(table)).Msg("refresh before show failed, using cached data")
		}
	}

	switch table {
	case store.TableOrders:
		return a.showOrders(comps.store, opts)
	case store.TableDividends:
		return a.showDividends(comps.store, opts)
	case store.TableTransactions:
		return a.showTransactions(comps.store, opts)
	}
	return fmt.Errorf("%w: %q cannot be shown", store.ErrUnknownTable, table)
}

func (a *App) showOrders(st *store.Store, opts ShowOptions) error {
	orders, err := st.Orders(store.OrderFilter{Ticker: opts.Ticker, Status: opts.Status})
	if err != nil {
		return err
	}
	orders = limitSlice(orders, opts.Limit)
	if len(orders) == 0 {
		fmt.Fprintln(os.Stdout, "no cached orders")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tTicker\tType\tStatus\tQuantity\tFill Price\tCreated (UTC)")
	for _, order := range orders {
		fmt.Fprintf(writer, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			order.ID,
			order.Ticker,
			order.Type,
			order.Status,
			formatDecimal(order.FilledQuantity, 4),
			formatDecimal(order.FillPrice, 2),
			formatInstant(order.DateCreated),
		)
	}
	return writer.Flush()
}

func (a *App) showDividends(st *store.Store, opts ShowOptions) error {
	dividends, err := st.Dividends(opts.Ticker)
	if err != nil {
		return err
	}
	dividends = limitSlice(dividends, opts.Limit)
	if len(dividends) == 0 {
		fmt.Fprintln(os.Stdout, "no cached dividends")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Reference\tTicker\tAmount\tPer Share\tPaid On (UTC)")
	for _, dividend := range dividends {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\n",
			dividend.Reference,
			dividend.Ticker,
			formatDecimal(dividend.Amount, 2),
			formatDecimal(dividend.GrossAmountPerShare, 4),
			formatInstant(dividend.PaidOn),
		)
	}
	return writer.Flush()
}

func (a *App) showTransactions(st *store.Store, opts ShowOptions) error {
	transactions, err := st.Transactions(store.TransactionFilter{From: opts.From})
	if err != nil {
		return err
	}
	transactions = limitSlice(transactions, opts.Limit)
	if len(transactions) == 0 {
		fmt.Fprintln(os.Stdout, "no cached transactions")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Reference\tType\tAmount\tTime (UTC)")
	for _, tx := range transactions {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n",
			tx.Reference,
			tx.Type,
			formatDecimal(tx.Amount, 2),
			formatInstant(tx.DateTime),
		)
	}
	return writer.Flush()
}

func limitSlice[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

func formatDecimal(d decimal.Decimal, places int32) string {
	return d.StringFixed(places)
}

func formatInstant(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
