package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"t212cache/internal/api"
)

const (
	selectOrderStatusSQL = `SELECT status FROM orders WHERE id = ? AND account_id = ?;`

	upsertOrderSQL = `INSERT INTO orders (
        id, account_id, ticker, type, status,
        ordered_quantity, filled_quantity, limit_price, stop_price,
        fill_price, fill_cost, fill_result,
        date_created, date_executed, raw_payload
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    ON CONFLICT (id) DO UPDATE
    SET ticker           = excluded.ticker,
        type             = excluded.type,
        status           = excluded.status,
        ordered_quantity = excluded.ordered_quantity,
        filled_quantity  = excluded.filled_quantity,
        limit_price      = excluded.limit_price,
        stop_price       = excluded.stop_price,
        fill_price       = excluded.fill_price,
        fill_cost        = excluded.fill_cost,
        fill_result      = excluded.fill_result,
        date_created     = excluded.date_created,
        date_executed    = excluded.date_executed,
        raw_payload      = excluded.raw_payload;`

	insertDividendSQL = `INSERT INTO dividends (
        reference, account_id, ticker, type, amount, amount_eur,
        gross_per_share, quantity, paid_on, raw_payload
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    ON CONFLICT (reference) DO NOTHING;`

	insertTransactionSQL = `INSERT INTO transactions (
        reference, account_id, type, amount, datetime, raw_payload
    ) VALUES (?, ?, ?, ?, ?, ?)
    ON CONFLICT (reference) DO NOTHING;`

	upsertMetadataSQL = `INSERT INTO sync_metadata (
        table_name, account_id, last_sync, record_count
    ) VALUES (?, ?, ?, ?)
    ON CONFLICT (table_name, account_id) DO UPDATE
    SET last_sync    = excluded.last_sync,
        record_count = excluded.record_count;`

	selectMetadataSQL = `SELECT last_sync, record_count
    FROM sync_metadata
    WHERE table_name = ? AND account_id = ?;`

	deleteMetadataForTableSQL = `DELETE FROM sync_metadata
    WHERE table_name = ? AND account_id = ?;`
)

// UpsertOrders merges fetched orders into the cache. Terminal orders
// already stored are never overwritten: upstream disagreement with a
// finalised record is logged and discarded. Non-terminal or absent orders
// are replaced unconditionally. Returns newly inserted and skipped counts.
func (s *Store) UpsertOrders(orders []api.HistoricalOrder) (added, skipped int, err error) {
	for _, order := range orders {
		if order.ID == 0 {
			s.logger.Warn().Msg("skipping order without id")
			skipped++
			continue
		}

		var storedStatus string
		scanErr := s.db.QueryRow(selectOrderStatusSQL, order.ID, s.accountID).Scan(&storedStatus)
		exists := scanErr == nil
		if scanErr != nil && !errors.Is(scanErr, sql.ErrNoRows) {
			return added, skipped, fmt.Errorf("read stored order %d: %w", order.ID, scanErr)
		}

		if exists && api.OrderStatus(storedStatus).Terminal() {
			if storedStatus != string(order.Status) {
				s.logger.Warn().
					Int64("order_id", order.ID).
					Str("cached_status", storedStatus).
					Str("upstream_status", string(order.Status)).
					Msg("upstream disagrees with terminal cached order, keeping cached record")
			}
			skipped++
			continue
		}

		raw, marshalErr := json.Marshal(order)
		if marshalErr != nil {
			return added, skipped, fmt.Errorf("encode order %d: %w", order.ID, marshalErr)
		}

		_, execErr := s.db.Exec(upsertOrderSQL,
			order.ID,
			s.accountID,
			order.Ticker,
			order.Type,
			string(order.Status),
			order.OrderedQuantity.String(),
			order.FilledQuantity.String(),
			order.LimitPrice.String(),
			order.StopPrice.String(),
			order.FillPrice.String(),
			order.FillCost.String(),
			order.FillResult.String(),
			timeColumn(order.DateCreated),
			timeColumn(order.DateExecuted),
			string(raw),
		)
		if execErr != nil {
			return added, skipped, fmt.Errorf("upsert order %d: %w", order.ID, execErr)
		}
		if !exists {
			added++
		}
	}
	return added, skipped, nil
}

// UpsertDividends appends fetched dividends. Items without a reference
// cannot be identified and are skipped; duplicates are absorbed.
func (s *Store) UpsertDividends(dividends []api.DividendItem) (added, skipped int, err error) {
	for _, dividend := range dividends {
		if dividend.Reference == "" {
			skipped++
			continue
		}

		raw, marshalErr := json.Marshal(dividend)
		if marshalErr != nil {
			return added, skipped, fmt.Errorf("encode dividend %s: %w", dividend.Reference, marshalErr)
		}

		res, execErr := s.db.Exec(insertDividendSQL,
			dividend.Reference,
			s.accountID,
			dividend.Ticker,
			dividend.Type,
			dividend.Amount.String(),
			dividend.AmountInEuro.String(),
			dividend.GrossAmountPerShare.String(),
			dividend.Quantity.String(),
			timeColumn(dividend.PaidOn),
			string(raw),
		)
		if execErr != nil {
			return added, skipped, fmt.Errorf("insert dividend %s: %w", dividend.Reference, execErr)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			added++
		}
	}
	return added, skipped, nil
}

// UpsertTransactions appends fetched transactions, skipping items without
// a reference.
func (s *Store) UpsertTransactions(transactions []api.TransactionItem) (added, skipped int, err error) {
	for _, tx := range transactions {
		if tx.Reference == "" {
			skipped++
			continue
		}

		raw, marshalErr := json.Marshal(tx)
		if marshalErr != nil {
			return added, skipped, fmt.Errorf("encode transaction %s: %w", tx.Reference, marshalErr)
		}

		res, execErr := s.db.Exec(insertTransactionSQL,
			tx.Reference,
			s.accountID,
			tx.Type,
			tx.Amount.String(),
			timeColumn(tx.DateTime),
			string(raw),
		)
		if execErr != nil {
			return added, skipped, fmt.Errorf("insert transaction %s: %w", tx.Reference, execErr)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			added++
		}
	}
	return added, skipped, nil
}

// OrderFilter narrows an order query. Zero values match everything.
type OrderFilter struct {
	Ticker string
	Status string
}

// Orders returns cached orders for the account, newest first.
func (s *Store) Orders(filter OrderFilter) ([]api.HistoricalOrder, error) {
	query := `SELECT raw_payload FROM orders WHERE account_id = ?`
	args := []any{s.accountID}
	if filter.Ticker != "" {
		query += ` AND ticker = ?`
		args = append(args, filter.Ticker)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	query += ` ORDER BY date_created DESC;`

	var raws []string
	if err := s.db.Select(&raws, query, args...); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	orders := make([]api.HistoricalOrder, 0, len(raws))
	for _, raw := range raws {
		var order api.HistoricalOrder
		if err := json.Unmarshal([]byte(raw), &order); err != nil {
			s.logger.Warn().Err(err).Msg("failed to decode cached order, skipping row")
			continue
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// Dividends returns cached dividends for the account, newest first.
func (s *Store) Dividends(ticker string) ([]api.DividendItem, error) {
	query := `SELECT raw_payload FROM dividends WHERE account_id = ?`
	args := []any{s.accountID}
	if ticker != "" {
		query += ` AND ticker = ?`
		args = append(args, ticker)
	}
	query += ` ORDER BY paid_on DESC;`

	var raws []string
	if err := s.db.Select(&raws, query, args...); err != nil {
		return nil, fmt.Errorf("list dividends: %w", err)
	}

	dividends := make([]api.DividendItem, 0, len(raws))
	for _, raw := range raws {
		var dividend api.DividendItem
		if err := json.Unmarshal([]byte(raw), &dividend); err != nil {
			s.logger.Warn().Err(err).Msg("failed to decode cached dividend, skipping row")
			continue
		}
		dividends = append(dividends, dividend)
	}
	return dividends, nil
}

// TransactionFilter narrows a transaction query.
type TransactionFilter struct {
	From *time.Time
	Type string
}

// Transactions returns cached transactions for the account, newest first.
func (s *Store) Transactions(filter TransactionFilter) ([]api.TransactionItem, error) {
	query := `SELECT raw_payload FROM transactions WHERE account_id = ?`
	args := []any{s.accountID}
	if filter.From != nil {
		query += ` AND datetime >= ?`
		args = append(args, formatTime(*filter.From))
	}
	if filter.Type != "" {
		query += ` AND type = ?`
		args = append(args, filter.Type)
	}
	query += ` ORDER BY datetime DESC;`

	var raws []string
	if err := s.db.Select(&raws, query, args...); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	transactions := make([]api.TransactionItem, 0, len(raws))
	for _, raw := range raws {
		var tx api.TransactionItem
		if err := json.Unmarshal([]byte(raw), &tx); err != nil {
			s.logger.Warn().Err(err).Msg("failed to decode cached transaction, skipping row")
			continue
		}
		transactions = append(transactions, tx)
	}
	return transactions, nil
}

// NewestDate returns the latest record date in a table, or nil for an
// empty table. Only the three data tables carry a record date; anything
// else fails closed before touching storage.
func (s *Store) NewestDate(table Table) (*time.Time, error) {
	newest, _, err := s.dateRange(table)
	return newest, err
}

// dateRange returns the newest and oldest record dates in a data table.
func (s *Store) dateRange(table Table) (newest, oldest *time.Time, err error) {
	var query string
	switch table {
	case TableOrders:
		query = `SELECT MAX(date_created), MIN(date_created) FROM orders WHERE account_id = ?;`
	case TableDividends:
		query = `SELECT MAX(paid_on), MIN(paid_on) FROM dividends WHERE account_id = ?;`
	case TableTransactions:
		query = `SELECT MAX(datetime), MIN(datetime) FROM transactions WHERE account_id = ?;`
	default:
		return nil, nil, fmt.Errorf("%w: %q carries no record date", ErrUnknownTable, table)
	}

	var maxVal, minVal sql.NullString
	if err := s.db.QueryRow(query, s.accountID).Scan(&maxVal, &minVal); err != nil {
		return nil, nil, fmt.Errorf("date range for %s: %w", table, err)
	}

	newest, err = parseTimeValue(maxVal)
	if err != nil {
		return nil, nil, err
	}
	oldest, err = parseTimeValue(minVal)
	if err != nil {
		return nil, nil, err
	}
	return newest, oldest, nil
}

// Count returns the number of cached rows in a data table.
func (s *Store) Count(table Table) (int64, error) {
	var query string
	switch table {
	case TableOrders:
		query = `SELECT COUNT(*) FROM orders WHERE account_id = ?;`
	case TableDividends:
		query = `SELECT COUNT(*) FROM dividends WHERE account_id = ?;`
	case TableTransactions:
		query = `SELECT COUNT(*) FROM transactions WHERE account_id = ?;`
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownTable, table)
	}

	var count int64
	if err := s.db.Get(&count, query, s.accountID); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return count, nil
}

// Clear deletes the account's rows from one data table, or from all
// tables including sync metadata when table is empty. Clearing a data
// table also drops its sync_metadata row: a cleared table must read as
// never synced, or the freshness gate would trust an empty table.
// Returns deleted counts per table.
func (s *Store) Clear(table Table) (map[Table]int64, error) {
	tables := []Table{TableOrders, TableDividends, TableTransactions, TableSyncMetadata}
	if table != "" {
		if _, err := ParseTable(string(table)); err != nil {
			return nil, err
		}
		tables = []Table{table}
	}

	deleted := make(map[Table]int64, len(tables))
	for _, t := range tables {
		var query string
		switch t {
		case TableOrders:
			query = `DELETE FROM orders WHERE account_id = ?;`
		case TableDividends:
			query = `DELETE FROM dividends WHERE account_id = ?;`
		case TableTransactions:
			query = `DELETE FROM transactions WHERE account_id = ?;`
		case TableSyncMetadata:
			query = `DELETE FROM sync_metadata WHERE account_id = ?;`
		}

		res, err := s.db.Exec(query, s.accountID)
		if err != nil {
			return deleted, fmt.Errorf("clear %s: %w", t, err)
		}
		n, _ := res.RowsAffected()
		deleted[t] = n
	}

	if isDataTable(table) {
		res, err := s.db.Exec(deleteMetadataForTableSQL, string(table), s.accountID)
		if err != nil {
			return deleted, fmt.Errorf("clear sync metadata for %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		deleted[TableSyncMetadata] = n
	}

	s.logger.Info().Interface("deleted", deleted).Msg("cache cleared")
	return deleted, nil
}

// SyncMetadata records when a table was last synced and how many rows it
// held afterwards.
type SyncMetadata struct {
	LastSync    time.Time
	RecordCount int64
}

// Metadata returns sync metadata for a data table, or nil when the table
// has never been synced.
func (s *Store) Metadata(table Table) (*SyncMetadata, error) {
	if !isDataTable(table) {
		return nil, fmt.Errorf("%w: %q has no sync metadata", ErrUnknownTable, table)
	}

	var row struct {
		LastSync    string `db:"last_sync"`
		RecordCount int64  `db:"record_count"`
	}
	err := s.db.Get(&row, selectMetadataSQL, string(table), s.accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read sync metadata for %s: %w", table, err)
	}

	lastSync, err := time.Parse(time.RFC3339Nano, row.LastSync)
	if err != nil {
		return nil, fmt.Errorf("parse last_sync for %s: %w", table, err)
	}
	return &SyncMetadata{LastSync: lastSync, RecordCount: row.RecordCount}, nil
}

// RecordSync updates sync metadata for a data table.
func (s *Store) RecordSync(table Table, at time.Time, count int64) error {
	if !isDataTable(table) {
		return fmt.Errorf("%w: %q has no sync metadata", ErrUnknownTable, table)
	}
	if _, err := s.db.Exec(upsertMetadataSQL, string(table), s.accountID, formatTime(at), count); err != nil {
		return fmt.Errorf("record sync for %s: %w", table, err)
	}
	return nil
}

func isDataTable(table Table) bool {
	switch table {
	case TableOrders, TableDividends, TableTransactions:
		return true
	}
	return false
}

// timeLayout is RFC3339 with a fixed-width nanosecond fraction.
// RFC3339Nano trims trailing zeros, which breaks lexicographic ordering
// within a second ('Z' sorts after '.'); a fixed width keeps string
// comparison in sqlite chronological.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// formatTime normalises timestamps to UTC at fixed width.
func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func timeColumn(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTimeValue(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v.String)
	if err != nil {
		return nil, fmt.Errorf("parse stored timestamp %q: %w", v.String, err)
	}
	return &t, nil
}
