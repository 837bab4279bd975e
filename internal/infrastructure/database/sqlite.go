package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"beacon/pkg/logger"
)

// OpenSQLite opens (and creates) the single-node complaint store
func OpenSQLite(ctx context.Context, path string, log *logger.Logger) (*sql.DB, error) {
	log = log.WithComponent("sqlite")

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// sqlite serializes writers anyway
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	log.Info().Str("path", path).Msg("sqlite database ready")
	return db, nil
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS complaints (
	id          TEXT PRIMARY KEY,
	case_id     TEXT NOT NULL UNIQUE,
	category    TEXT NOT NULL,
	description TEXT NOT NULL,
	location    TEXT NOT NULL,
	latitude    REAL,
	longitude   REAL,
	anonymous   INTEGER NOT NULL DEFAULT 0,
	reporter_id TEXT,
	language    TEXT NOT NULL DEFAULT 'en',
	files       TEXT NOT NULL DEFAULT '[]',
	status      TEXT NOT NULL DEFAULT 'new',
	risk_score  REAL NOT NULL,
	risk_label  TEXT NOT NULL,
	risk_reason TEXT NOT NULL,
	priority    TEXT,
	created_at  INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_complaints_created_at ON complaints(created_at);
CREATE INDEX IF NOT EXISTS idx_complaints_status ON complaints(status);
`
