package store

import (
	"os"
	"time"
)

// Coverage summarises one table: row count, record date range, and the
// last successful sync.
type Coverage struct {
	Count    int64
	Oldest   *time.Time
	Newest   *time.Time
	LastSync *time.Time
}

// CacheStats describes the whole cache.
type CacheStats struct {
	Enabled           bool
	DatabasePath      string
	DatabaseSizeBytes int64
	Orders            Coverage
	Dividends         Coverage
	Transactions      Coverage
}

// Stats reports cache statistics. It never fails: any figure that cannot
// be read is reported as zero/empty.
func (s *Store) Stats() CacheStats {
	stats := CacheStats{
		Enabled:      true,
		DatabasePath: s.path,
	}

	if info, err := os.Stat(s.path); err == nil {
		stats.DatabaseSizeBytes = info.Size()
	}

	stats.Orders = s.coverage(TableOrders)
	stats.Dividends = s.coverage(TableDividends)
	stats.Transactions = s.coverage(TableTransactions)
	return stats
}

func (s *Store) coverage(table Table) Coverage {
	var cov Coverage

	count, err := s.Count(table)
	if err != nil {
		s.logger.Warn().Err(err).Str("table", string(table)).Msg("failed to count cached rows")
		return cov
	}
	cov.Count = count

	newest, oldest, err := s.dateRange(table)
	if err != nil {
		s.logger.Warn().Err(err).Str("table", string(table)).Msg("failed to read record date range")
	} else {
		cov.Newest = newest
		cov.Oldest = oldest
	}

	if meta, err := s.Metadata(table); err != nil {
		s.logger.Warn().Err(err).Str("table", string(table)).Msg("failed to read sync metadata")
	} else if meta != nil {
		lastSync := meta.LastSync
		cov.LastSync = &lastSync
	}

	return cov
}

// DisabledStats is what Stats reports when no cache is configured.
func DisabledStats(path string) CacheStats {
	return CacheStats{Enabled: false, DatabasePath: path}
}
