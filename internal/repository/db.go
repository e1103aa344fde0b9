// Package repository persists extraction job bookkeeping in an embedded
// SQLite database.
package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS extraction_jobs (
	id            TEXT PRIMARY KEY,
	file_name     TEXT NOT NULL,
	content_hash  TEXT NOT NULL,
	format        TEXT NOT NULL,
	handler       TEXT,
	status        TEXT NOT NULL,
	chars         INTEGER NOT NULL DEFAULT 0,
	tables        INTEGER NOT NULL DEFAULT 0,
	error_message TEXT,
	started_at    TIMESTAMP NOT NULL,
	finished_at   TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_jobs_started ON extraction_jobs(started_at);
`

// Open opens (or creates) the SQLite database at path and applies the schema.
func Open(ctx context.Context, path string, logger *slog.Logger) (*sql.DB, error) {
	logger.Info("opening job store", "path", path)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		logger.Error("failed to open job store", "error", err)
		return nil, err
	}
	// modernc sqlite serializes writes itself; a single connection avoids
	// SQLITE_BUSY under concurrent jobs.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		logger.Error("failed to migrate job store", "error", err)
		db.Close()
		return nil, err
	}
	logger.Info("job store ready")
	return db, nil
}

// Close closes the database gracefully.
func Close(db *sql.DB, logger *slog.Logger) {
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		logger.Error("failed to close job store", "error", err)
		return
	}
	logger.Info("job store closed")
}

// HealthCheck pings the store to catch path or locking issues early.
func HealthCheck(ctx context.Context, db *sql.DB, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return db.PingContext(ctx)
}
