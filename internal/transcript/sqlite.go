// Package transcript persists question/answer exchanges. The store is
// append-only: records are never mutated or deleted by the gateway.
package transcript

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"ektifabot/internal/domain"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements domain.TranscriptStore using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Set connection pool (single connection for SQLite)
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db, logger: logger}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS exchanges (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		sender_id   TEXT NOT NULL,
		message     TEXT NOT NULL,
		reply       TEXT NOT NULL,
		created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_exchanges_time ON exchanges(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Append writes one exchange record. The caller bounds the context so a
// wedged database cannot hang message handling.
func (s *SQLiteStore) Append(ctx context.Context, rec domain.TranscriptRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO exchanges (sender_id, message, reply, created_at)
		 VALUES (?, ?, ?, ?)`,
		rec.SenderID, rec.Message, rec.Reply, rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append exchange: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
