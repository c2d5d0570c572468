package usage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// Blank import registers the pure-Go sqlite driver.
	_ "modernc.org/sqlite"
)

// SQLiteSink persists usage records in a local SQLite database.
type SQLiteSink struct {
	db *sql.DB
}

// NewSQLiteSink opens (or creates) the usage database at path.
func NewSQLiteSink(path string) (*SQLiteSink, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create usage database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open usage database: %w", err)
	}

	if err := db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to usage database: %w", err)
	}

	s := &SQLiteSink{db: db}
	if err := s.configure(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to configure usage database: %w", err)
	}
	if err := s.createSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create usage schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteSink) configure() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := s.db.ExecContext(context.Background(), pragma); err != nil {
			return fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}
	return nil
}

func (s *SQLiteSink) createSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS usage_records (
		id TEXT PRIMARY KEY,
		caller_id TEXT NOT NULL,
		endpoint TEXT NOT NULL,
		provider TEXT NOT NULL,
		model TEXT NOT NULL,
		input_tokens INTEGER NOT NULL DEFAULT 0,
		output_tokens INTEGER NOT NULL DEFAULT 0,
		total_tokens INTEGER NOT NULL DEFAULT 0,
		cost REAL NOT NULL DEFAULT 0,
		latency_ms INTEGER NOT NULL DEFAULT 0,
		status_code INTEGER NOT NULL DEFAULT 200,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_usage_caller ON usage_records(caller_id);
	CREATE INDEX IF NOT EXISTS idx_usage_created ON usage_records(created_at);
	`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

// Write inserts one record.
func (s *SQLiteSink) Write(ctx context.Context, rec Record) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `
		INSERT INTO usage_records (
			id, caller_id, endpoint, provider, model, input_tokens,
			output_tokens, total_tokens, cost, latency_ms, status_code, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		rec.ID,
		rec.CallerID,
		rec.Endpoint,
		rec.Provider,
		rec.Model,
		rec.InputTokens,
		rec.OutputTokens,
		rec.TotalTokens,
		rec.Cost,
		rec.LatencyMS,
		rec.StatusCode,
		createdAt.UTC().Format("2006-01-02 15:04:05"),
	)
	if err != nil {
		return fmt.Errorf("failed to insert usage record: %w", err)
	}
	return nil
}

// ReadStats aggregates records for callerID created at or after since.
func (s *SQLiteSink) ReadStats(ctx context.Context, callerID string, since time.Time) (*Stats, error) {
	sinceStr := since.UTC().Format("2006-01-02 15:04:05")

	stats := &Stats{ByModel: make(map[string]int64)}
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(total_tokens), 0), COALESCE(SUM(cost), 0)
		FROM usage_records
		WHERE caller_id = ? AND created_at >= ?
	`, callerID, sinceStr)
	if err := row.Scan(&stats.TotalRequests, &stats.TotalTokens, &stats.TotalCost); err != nil {
		return nil, fmt.Errorf("failed to aggregate usage: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT model, COUNT(*)
		FROM usage_records
		WHERE caller_id = ? AND created_at >= ?
		GROUP BY model
	`, callerID, sinceStr)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate usage by model: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var model string
		var count int64
		if err := rows.Scan(&model, &count); err != nil {
			return nil, fmt.Errorf("failed to scan usage row: %w", err)
		}
		stats.ByModel[model] = count
	}
	return stats, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
