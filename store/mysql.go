package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"skillgap/logger"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLConfig holds connection settings for the MySQL store. The DSN must
// set parseTime=true.
type MySQLConfig struct {
	DSN             string        `json:"dsn"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
}

// MySQLStore implements Store using MySQL.
type MySQLStore struct {
	sqlLedger
}

// NewMySQLStore opens a MySQL database and initializes the schema.
func NewMySQLStore(cfg MySQLConfig, log logger.Logger) (*MySQLStore, error) {
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}

	s := &MySQLStore{sqlLedger{db: db, log: log}}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	log.Info("store.mysql.opened")
	return s, nil
}

func (s *MySQLStore) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS scan_runs (
    id VARCHAR(64) PRIMARY KEY,
    workspace VARCHAR(1024) NOT NULL,
    roots JSON NOT NULL,
    record_count INT NOT NULL DEFAULT 0,
    active_count INT NOT NULL DEFAULT 0,
    global_count INT NOT NULL DEFAULT 0,
    started_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
    duration_ms BIGINT NOT NULL DEFAULT 0
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

		`CREATE INDEX idx_scan_runs_started_at ON scan_runs(started_at)`,

		`CREATE TABLE IF NOT EXISTS coverage_snapshots (
    id VARCHAR(64) PRIMARY KEY,
    workspace VARCHAR(1024) NOT NULL,
    reference VARCHAR(32) NOT NULL DEFAULT 'marketplace',
    present INT NOT NULL DEFAULT 0,
    missing INT NOT NULL DEFAULT 0,
    total INT NOT NULL DEFAULT 0,
    percentage INT NOT NULL DEFAULT 100,
    missing_names JSON NOT NULL,
    taken_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

		`CREATE INDEX idx_coverage_workspace ON coverage_snapshots(workspace(255), taken_at)`,

		`CREATE TABLE IF NOT EXISTS operations (
    id VARCHAR(64) PRIMARY KEY,
    kind VARCHAR(16) NOT NULL,
    skill_name VARCHAR(512) NOT NULL DEFAULT '',
    source VARCHAR(1024) NOT NULL DEFAULT '',
    target VARCHAR(1024) NOT NULL DEFAULT '',
    ok TINYINT(1) NOT NULL DEFAULT 0,
    error TEXT NOT NULL,
    at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

		`CREATE INDEX idx_operations_kind ON operations(kind)`,
		`CREATE INDEX idx_operations_at ON operations(at)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			if isDuplicateKeyError(err) {
				continue
			}
			return fmt.Errorf("exec schema: %w", err)
		}
	}
	return nil
}

func isDuplicateKeyError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "Duplicate key name") ||
		strings.Contains(msg, "Duplicate column name") ||
		strings.Contains(msg, "already exists")
}

func (s *MySQLStore) Close() error {
	s.log.Info("store.mysql.closing")
	return s.db.Close()
}
