package state

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a persistent Store backend. Conversation flows survive a
// process restart when this backend is configured.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (and migrates) a state database at dbPath.
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection: SQLite serializes writers anyway.
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
	CREATE TABLE IF NOT EXISTS conversation_state (
		identity    TEXT PRIMARY KEY,
		state       TEXT NOT NULL,
		updated_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Get(ctx context.Context, identity string) (State, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT state FROM conversation_state WHERE identity = ?`, identity,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return Idle, nil
	}
	if err != nil {
		return Idle, err
	}
	return State(raw), nil
}

func (s *SQLiteStore) Set(ctx context.Context, identity string, st State) error {
	if st == Idle {
		return s.Clear(ctx, identity)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversation_state (identity, state, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(identity) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at`,
		identity, string(st), time.Now(),
	)
	return err
}

func (s *SQLiteStore) Clear(ctx context.Context, identity string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM conversation_state WHERE identity = ?`, identity)
	return err
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
