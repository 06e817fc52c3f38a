package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"skillgap/logger"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite via modernc.org/sqlite.
type SQLiteStore struct {
	sqlLedger
}

// NewSQLiteStore opens a SQLite database and initializes the schema.
func NewSQLiteStore(dbPath string, log logger.Logger) (*SQLiteStore, error) {
	dsn := dbPath + "?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &SQLiteStore{sqlLedger{db: db, log: log}}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	log.Info("store.sqlite.opened", logger.String("path", dbPath))
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
CREATE TABLE IF NOT EXISTS scan_runs (
    id TEXT PRIMARY KEY,
    workspace TEXT NOT NULL,
    roots TEXT NOT NULL DEFAULT '[]',
    record_count INTEGER NOT NULL DEFAULT 0,
    active_count INTEGER NOT NULL DEFAULT 0,
    global_count INTEGER NOT NULL DEFAULT 0,
    started_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    duration_ms INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_scan_runs_started_at ON scan_runs(started_at);

CREATE TABLE IF NOT EXISTS coverage_snapshots (
    id TEXT PRIMARY KEY,
    workspace TEXT NOT NULL,
    present INTEGER NOT NULL DEFAULT 0,
    missing INTEGER NOT NULL DEFAULT 0,
    total INTEGER NOT NULL DEFAULT 0,
    percentage INTEGER NOT NULL DEFAULT 100,
    missing_names TEXT NOT NULL DEFAULT '[]',
    taken_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_coverage_workspace ON coverage_snapshots(workspace, taken_at);

CREATE TABLE IF NOT EXISTS operations (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    skill_name TEXT NOT NULL DEFAULT '',
    source TEXT NOT NULL DEFAULT '',
    target TEXT NOT NULL DEFAULT '',
    ok BOOLEAN NOT NULL DEFAULT 0,
    error TEXT NOT NULL DEFAULT '',
    at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_operations_kind ON operations(kind);
CREATE INDEX IF NOT EXISTS idx_operations_at ON operations(at);
`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	// Ledgers created before the reference column existed.
	return s.addColumnIfNotExists("ALTER TABLE coverage_snapshots ADD COLUMN reference TEXT NOT NULL DEFAULT 'marketplace'")
}

func (s *SQLiteStore) addColumnIfNotExists(alterStmt string) error {
	_, err := s.db.Exec(alterStmt)
	if err != nil && strings.Contains(err.Error(), "duplicate column") {
		return nil
	}
	return err
}

func (s *SQLiteStore) Close() error {
	s.log.Info("store.sqlite.closing")
	return s.db.Close()
}
