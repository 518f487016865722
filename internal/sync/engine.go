package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"t212cache/internal/api"
	"t212cache/internal/store"
)

// ErrCacheDisabled is returned by every sync operation when no local
// cache is configured.
var ErrCacheDisabled = errors.New("cache is disabled")

// Client is the upstream surface the engine pulls pages through. The
// real implementation is api.Client, already rate limited and retried.
type Client interface {
	HistoricalOrders(ctx context.Context, cursor int64, limit int) (api.OrdersPage, error)
	Dividends(ctx context.Context, cursor string, limit int) (api.DividendsPage, error)
	Transactions(ctx context.Context, cursor, fromTime string, limit int) (api.TransactionsPage, error)
}

// Result summarises one table's sync.
type Result struct {
	Table          string
	RecordsFetched int
	RecordsAdded   int
	TotalRecords   int64
	SyncedAt       time.Time
	Err            error
}

// Engine orchestrates paginated pulls from upstream into the local
// store. One engine instance keeps a single upstream request in flight
// at a time: later pages depend on cursors from earlier ones, and
// parallel requests would corrupt per-endpoint quota accounting.
type Engine struct {
	store            *store.Store // nil when the cache is disabled
	client           Client
	freshnessMinutes int
	logger           zerolog.Logger
	now              func() time.Time
}

// New constructs an Engine. A nil store marks the cache as disabled:
// every sync then short-circuits with ErrCacheDisabled.
func New(st *store.Store, client Client, freshnessMinutes int, logger zerolog.Logger) *Engine {
	return &Engine{
		store:            st,
		client:           client,
		freshnessMinutes: freshnessMinutes,
		logger:           logger.With().Str("component", "sync_engine").Logger(),
		now:              time.Now,
	}
}

// Enabled reports whether a local store backs this engine.
func (e *Engine) Enabled() bool {
	return e.store != nil
}

// Sync pulls the requested tables (all three when tables is empty) and
// returns a per-table result. A failure in one table never aborts the
// others. force clears each table before syncing it.
func (e *Engine) Sync(ctx context.Context, tables []string, force bool) map[string]Result {
	requested := make([]store.Table, 0, 3)
	results := make(map[string]Result)

	if len(tables) == 0 {
		requested = store.DataTables()
	} else {
		for _, name := range tables {
			table, err := parseDataTable(name)
			if err != nil {
				results[name] = Result{Table: name, SyncedAt: e.now(), Err: err}
				continue
			}
			requested = append(requested, table)
		}
	}

	for _, table := range requested {
		if e.store == nil {
			results[string(table)] = e.disabledResult(table)
			continue
		}

		if force {
			if _, err := e.store.Clear(table); err != nil {
				results[string(table)] = Result{Table: string(table), SyncedAt: e.now(), Err: err}
				continue
			}
		}

		results[string(table)] = e.syncTable(ctx, table)
	}

	return results
}

// SyncIfStale syncs one table unless its cache is within the configured
// freshness window. Returns nil when the cache was fresh.
func (e *Engine) SyncIfStale(ctx context.Context, table store.Table) *Result {
	if e.IsFresh(table, nil) {
		return nil
	}
	res := e.syncTable(ctx, table)
	return &res
}

// IsFresh reports whether a table's cache is recent enough to trust
// without re-syncing. maxAgeMinutes overrides the configured default:
// 0 means always stale (force sync), negative means always fresh
// (manual sync only). A table never synced is stale.
func (e *Engine) IsFresh(table store.Table, maxAgeMinutes *int) bool {
	minutes := e.freshnessMinutes
	if maxAgeMinutes != nil {
		minutes = *maxAgeMinutes
	}
	if minutes == 0 {
		return false
	}
	if minutes < 0 {
		return true
	}
	if e.store == nil {
		return false
	}

	meta, err := e.store.Metadata(table)
	if err != nil {
		e.logger.Warn().Err(err).Str("table", string(table)).Msg("failed to read sync metadata for freshness check")
		return false
	}
	if meta == nil {
		return false
	}
	return e.now().Sub(meta.LastSync) < time.Duration(minutes)*time.Minute
}

func (e *Engine) syncTable(ctx context.Context, table store.Table) Result {
	if e.store == nil {
		return e.disabledResult(table)
	}

	switch table {
	case store.TableOrders:
		return e.syncOrders(ctx)
	case store.TableDividends:
		return e.syncDividends(ctx)
	case store.TableTransactions:
		return e.syncTransactions(ctx)
	}
	return Result{Table: string(table), SyncedAt: e.now(), Err: fmt.Errorf("%w: %q", store.ErrUnknownTable, table)}
}

// syncOrders does a full resync: upstream offers no reliable filter for
// incremental order pulls. The page cursor is the oldest order id seen,
// and a page shorter than the cap is the last one.
func (e *Engine) syncOrders(ctx context.Context) Result {
	var (
		all      []api.HistoricalOrder
		cursor   int64
		fetchErr error
	)

	for {
		page, err := e.client.HistoricalOrders(ctx, cursor, api.MaxOrdersPage)
		if err != nil {
			fetchErr = err
			break
		}
		if len(page.Items) == 0 {
			break
		}

		all = append(all, page.Items...)

		if len(page.Items) < api.MaxOrdersPage {
			break
		}
		oldest := oldestOrderID(page.Items)
		if oldest == 0 {
			break
		}
		cursor = oldest
	}

	// Pages fetched before a failure are still merged; the error is
	// attached to the result rather than discarding partial progress.
	added, skipped, upsertErr := e.store.UpsertOrders(all)
	return e.complete(store.TableOrders, len(all), added, skipped, errors.Join(fetchErr, upsertErr))
}

// syncDividends pulls incrementally: the newest cached paid_on is the
// cutoff, and each page is filtered client-side keeping paid_on >= cutoff.
// The comparison is inclusive so same-instant payments from other tickers
// are not lost; true duplicates are absorbed by the reference upsert.
// A page yielding fewer accepted items than it contained means only older
// records follow, so pagination stops there.
func (e *Engine) syncDividends(ctx context.Context) Result {
	cutoff, err := e.store.NewestDate(store.TableDividends)
	if err != nil {
		return Result{Table: string(store.TableDividends), SyncedAt: e.now(), Err: err}
	}

	var (
		all      []api.DividendItem
		cursor   string
		fetchErr error
	)

	for {
		page, err := e.client.Dividends(ctx, cursor, api.MaxHistoryPage)
		if err != nil {
			fetchErr = err
			break
		}
		if len(page.Items) == 0 {
			break
		}

		accepted := filterDividends(page.Items, cutoff)
		all = append(all, accepted...)

		if len(accepted) < len(page.Items) {
			// Assumes upstream pages descend by paid_on across tickers;
			// an out-of-order upstream would show up as this early stop.
			e.logger.Debug().
				Int("accepted", len(accepted)).
				Int("page_size", len(page.Items)).
				Msg("reached dividend cutoff, stopping pagination")
			break
		}

		next := page.NextCursor()
		if next == "" {
			break
		}
		cursor = next
	}

	added, skipped, upsertErr := e.store.UpsertDividends(all)
	return e.complete(store.TableDividends, len(all), added, skipped, errors.Join(fetchErr, upsertErr))
}

// syncTransactions pulls incrementally through the upstream's server-side
// time filter. After the first page, both the cursor and the time token
// from the page descriptor must be carried forward; dropping either
// breaks pagination.
func (e *Engine) syncTransactions(ctx context.Context) Result {
	newest, err := e.store.NewestDate(store.TableTransactions)
	if err != nil {
		return Result{Table: string(store.TableTransactions), SyncedAt: e.now(), Err: err}
	}

	var fromTime string
	if newest != nil {
		fromTime = newest.UTC().Format(time.RFC3339)
	}

	var (
		all      []api.TransactionItem
		cursor   string
		fetchErr error
	)

	for {
		page, err := e.client.Transactions(ctx, cursor, fromTime, api.MaxHistoryPage)
		if err != nil {
			fetchErr = err
			break
		}
		if len(page.Items) == 0 {
			break
		}

		all = append(all, page.Items...)

		nextCursor, nextTime := page.NextTokens()
		if nextCursor == "" {
			break
		}
		cursor = nextCursor
		if nextTime != "" {
			fromTime = nextTime
		}
	}

	added, skipped, upsertErr := e.store.UpsertTransactions(all)
	return e.complete(store.TableTransactions, len(all), added, skipped, errors.Join(fetchErr, upsertErr))
}

// complete builds the sync result and, on success, records the sync
// metadata. A failed sync leaves last_sync untouched so the table stays
// stale and the next automatic sync retries.
func (e *Engine) complete(table store.Table, fetched, added, skipped int, syncErr error) Result {
	res := Result{
		Table:          string(table),
		RecordsFetched: fetched,
		RecordsAdded:   added,
		SyncedAt:       e.now(),
		Err:            syncErr,
	}

	total, countErr := e.store.Count(table)
	if countErr != nil {
		e.logger.Warn().Err(countErr).Str("table", string(table)).Msg("failed to count rows after sync")
	}
	res.TotalRecords = total

	if skipped > 0 {
		e.logger.Debug().Str("table", string(table)).Int("skipped", skipped).Msg("records without identity skipped")
	}

	if syncErr == nil {
		if err := e.store.RecordSync(table, res.SyncedAt, total); err != nil {
			res.Err = err
		}
	}

	event := e.logger.Info()
	if res.Err != nil {
		event = e.logger.Error().Err(res.Err)
	}
	event.Str("table", string(table)).
		Int("fetched", fetched).
		Int("added", added).
		Int64("total", total).
		Msg("table sync finished")

	return res
}

func (e *Engine) disabledResult(table store.Table) Result {
	return Result{Table: string(table), SyncedAt: e.now(), Err: ErrCacheDisabled}
}

func parseDataTable(name string) (store.Table, error) {
	table, err := store.ParseTable(name)
	if err != nil {
		return "", err
	}
	switch table {
	case store.TableOrders, store.TableDividends, store.TableTransactions:
		return table, nil
	}
	return "", fmt.Errorf("%w: %q is not syncable", store.ErrUnknownTable, name)
}

func oldestOrderID(orders []api.HistoricalOrder) int64 {
	var oldest int64
	for _, order := range orders {
		if order.ID == 0 {
			continue
		}
		if oldest == 0 || order.ID < oldest {
			oldest = order.ID
		}
	}
	return oldest
}

// filterDividends keeps items paid at or after the cutoff. Comparison is
// on parsed timestamps, never raw strings: the offset representation can
// differ between pages.
func filterDividends(items []api.DividendItem, cutoff *time.Time) []api.DividendItem {
	if cutoff == nil {
		return items
	}
	kept := make([]api.DividendItem, 0, len(items))
	for _, item := range items {
		if item.PaidOn != nil && item.PaidOn.Before(*cutoff) {
			continue
		}
		kept = append(kept, item)
	}
	return kept
}
