package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// ErrUnknownTable indicates a table name outside the fixed allow-list.
// It is returned before any query touches the database.
var ErrUnknownTable = errors.New("store: unknown table")

// Table names the fixed set of cache tables. Dynamic dispatch over tables
// always goes through a closed switch; caller-supplied strings enter only
// via ParseTable.
type Table string

const (
	TableOrders       Table = "orders"
	TableDividends    Table = "dividends"
	TableTransactions Table = "transactions"
	TableSyncMetadata Table = "sync_metadata"
)

// DataTables lists the syncable record tables in sync order.
func DataTables() []Table {
	return []Table{TableOrders, TableDividends, TableTransactions}
}

// ParseTable validates a caller-supplied table name against the
// allow-list, failing closed on anything unknown.
func ParseTable(name string) (Table, error) {
	switch t := Table(name); t {
	case TableOrders, TableDividends, TableTransactions, TableSyncMetadata:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTable, name)
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS orders (
    id               INTEGER PRIMARY KEY,
    account_id       INTEGER NOT NULL,
    ticker           TEXT,
    type             TEXT,
    status           TEXT,
    ordered_quantity TEXT,
    filled_quantity  TEXT,
    limit_price      TEXT,
    stop_price       TEXT,
    fill_price       TEXT,
    fill_cost        TEXT,
    fill_result      TEXT,
    date_created     TEXT,
    date_executed    TEXT,
    raw_payload      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_orders_account_ticker ON orders(account_id, ticker);

CREATE TABLE IF NOT EXISTS dividends (
    reference       TEXT PRIMARY KEY,
    account_id      INTEGER NOT NULL,
    ticker          TEXT,
    type            TEXT,
    amount          TEXT,
    amount_eur      TEXT,
    gross_per_share TEXT,
    quantity        TEXT,
    paid_on         TEXT,
    raw_payload     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_dividends_account_paid ON dividends(account_id, paid_on);

CREATE TABLE IF NOT EXISTS transactions (
    reference   TEXT PRIMARY KEY,
    account_id  INTEGER NOT NULL,
    type        TEXT,
    amount      TEXT,
    datetime    TEXT,
    raw_payload TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transactions_account_dt ON transactions(account_id, datetime);

CREATE TABLE IF NOT EXISTS sync_metadata (
    table_name   TEXT NOT NULL,
    account_id   INTEGER NOT NULL,
    last_sync    TEXT NOT NULL,
    record_count INTEGER NOT NULL,
    PRIMARY KEY (table_name, account_id)
);
`

// Store is the local SQLite cache for historical account data. Every row
// is scoped by account id; one Store owns its connection exclusively.
type Store struct {
	db        *sqlx.DB
	accountID int64
	path      string
	logger    zerolog.Logger
}

// Open creates the database file, directory, and schema idempotently and
// returns a ready Store.
func Open(path string, accountID int64, logger zerolog.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(on)", path)
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}

	// Single connection avoids sqlite writer lock contention.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database %s: %w", path, err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return &Store{
		db:        db,
		accountID: accountID,
		path:      path,
		logger:    logger.With().Str("component", "store").Logger(),
	}, nil
}

// AccountID returns the account every row in this store is scoped to.
func (s *Store) AccountID() int64 {
	return s.accountID
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
