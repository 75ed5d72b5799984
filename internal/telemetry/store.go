package telemetry

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shelfsearch/shelfsearch/internal/search"
)

// Store persists telemetry rollups keyed by calendar date.
type Store interface {
	SaveLatencyCounts(date string, counts map[LatencyBucket]int64) error
	GetLatencyCounts(from, to string) (map[LatencyBucket]int64, error)
	SaveDegradedCounts(date string, counts map[search.Method]int64) error
	AddZeroResultQuery(query string, timestamp time.Time) error
	GetZeroResultQueries(limit int) ([]string, error)
	Close() error
}

// SQLiteStore persists telemetry to a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a telemetry store over an open database and applies
// the schema.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if err := initSchema(db); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS latency_counts (
		date   TEXT NOT NULL,
		bucket TEXT NOT NULL,
		count  INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (date, bucket)
	);
	CREATE TABLE IF NOT EXISTS degraded_counts (
		date   TEXT NOT NULL,
		method TEXT NOT NULL,
		count  INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (date, method)
	);
	CREATE TABLE IF NOT EXISTS zero_result_queries (
		id        INTEGER PRIMARY KEY AUTOINCREMENT,
		query     TEXT NOT NULL,
		timestamp TEXT NOT NULL
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("init telemetry schema: %w", err)
	}
	return nil
}

// SaveLatencyCounts adds the given deltas to the stored counts for a date.
// A date accumulates across flushes and across process runs.
func (s *SQLiteStore) SaveLatencyCounts(date string, counts map[LatencyBucket]int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("save latency counts: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for bucket, count := range counts {
		_, err := tx.Exec(`
			INSERT INTO latency_counts (date, bucket, count) VALUES (?, ?, ?)
			ON CONFLICT(date, bucket) DO UPDATE SET count = count + excluded.count`,
			date, string(bucket), count)
		if err != nil {
			return fmt.Errorf("save latency counts: %w", err)
		}
	}
	return tx.Commit()
}

// GetLatencyCounts sums the stored counts over an inclusive date range.
func (s *SQLiteStore) GetLatencyCounts(from, to string) (map[LatencyBucket]int64, error) {
	rows, err := s.db.Query(`
		SELECT bucket, SUM(count) FROM latency_counts
		WHERE date >= ? AND date <= ? GROUP BY bucket`, from, to)
	if err != nil {
		return nil, fmt.Errorf("get latency counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[LatencyBucket]int64)
	for rows.Next() {
		var bucket string
		var count int64
		if err := rows.Scan(&bucket, &count); err != nil {
			return nil, fmt.Errorf("get latency counts: %w", err)
		}
		counts[LatencyBucket(bucket)] = count
	}
	return counts, rows.Err()
}

// SaveDegradedCounts adds per-method degradation deltas for a date.
func (s *SQLiteStore) SaveDegradedCounts(date string, counts map[search.Method]int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("save degraded counts: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for method, count := range counts {
		_, err := tx.Exec(`
			INSERT INTO degraded_counts (date, method, count) VALUES (?, ?, ?)
			ON CONFLICT(date, method) DO UPDATE SET count = count + excluded.count`,
			date, string(method), count)
		if err != nil {
			return fmt.Errorf("save degraded counts: %w", err)
		}
	}
	return tx.Commit()
}

// AddZeroResultQuery records a query that found nothing.
func (s *SQLiteStore) AddZeroResultQuery(query string, timestamp time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO zero_result_queries (query, timestamp) VALUES (?, ?)`,
		query, timestamp.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("add zero result query: %w", err)
	}
	return nil
}

// GetZeroResultQueries returns the most recent zero-result queries.
func (s *SQLiteStore) GetZeroResultQueries(limit int) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT query FROM zero_result_queries ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("get zero result queries: %w", err)
	}
	defer rows.Close()

	var queries []string
	for rows.Next() {
		var q string
		if err := rows.Scan(&q); err != nil {
			return nil, fmt.Errorf("get zero result queries: %w", err)
		}
		queries = append(queries, q)
	}
	return queries, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLiteStore)(nil)
