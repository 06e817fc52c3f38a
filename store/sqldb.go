package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"skillgap/logger"
)

// sqlLedger implements the ledger queries shared by the SQLite and MySQL
// backends. Both drivers accept "?" placeholders.
type sqlLedger struct {
	db  *sql.DB
	log logger.Logger
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *sqlLedger) RecordScan(ctx context.Context, run *ScanRun) error {
	roots, err := json.Marshal(nonNil(run.Roots))
	if err != nil {
		return fmt.Errorf("marshal roots: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO scan_runs (id, workspace, roots, record_count, active_count, global_count, started_at, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Workspace, string(roots), run.RecordCount, run.ActiveCount, run.GlobalCount,
		run.StartedAt.UTC(), run.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("insert scan run: %w", err)
	}
	return nil
}

func (s *sqlLedger) ListScans(ctx context.Context, limit int) ([]*ScanRun, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT id, workspace, roots, record_count, active_count, global_count, started_at, duration_ms
		 FROM scan_runs ORDER BY started_at DESC LIMIT %d`, limit))
	if err != nil {
		return nil, fmt.Errorf("list scan runs: %w", err)
	}
	defer rows.Close()

	var runs []*ScanRun
	for rows.Next() {
		var run ScanRun
		var roots string
		if err := rows.Scan(&run.ID, &run.Workspace, &roots, &run.RecordCount, &run.ActiveCount,
			&run.GlobalCount, &run.StartedAt, &run.DurationMs); err != nil {
			return nil, fmt.Errorf("scan scan run: %w", err)
		}
		if err := json.Unmarshal([]byte(roots), &run.Roots); err != nil {
			s.log.Warn("store.bad_roots", logger.String("id", run.ID), logger.Err(err))
		}
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

func (s *sqlLedger) RecordCoverage(ctx context.Context, snap *CoverageSnapshot) error {
	names, err := json.Marshal(nonNil(snap.MissingNames))
	if err != nil {
		return fmt.Errorf("marshal missing names: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO coverage_snapshots (id, workspace, reference, present, missing, total, percentage, missing_names, taken_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.Workspace, snap.Reference, snap.Present, snap.Missing, snap.Total,
		snap.Percentage, string(names), snap.TakenAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert coverage snapshot: %w", err)
	}
	return nil
}

func (s *sqlLedger) LatestCoverage(ctx context.Context, workspace string) (*CoverageSnapshot, error) {
	query := `SELECT id, workspace, reference, present, missing, total, percentage, missing_names, taken_at
		 FROM coverage_snapshots`
	var args []any
	if workspace != "" {
		query += " WHERE workspace = ?"
		args = append(args, workspace)
	}
	query += " ORDER BY taken_at DESC LIMIT 1"

	var snap CoverageSnapshot
	var names string
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&snap.ID, &snap.Workspace, &snap.Reference,
		&snap.Present, &snap.Missing, &snap.Total, &snap.Percentage, &names, &snap.TakenAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest coverage: %w", err)
	}
	if err := json.Unmarshal([]byte(names), &snap.MissingNames); err != nil {
		s.log.Warn("store.bad_missing_names", logger.String("id", snap.ID), logger.Err(err))
	}
	return &snap, nil
}

func (s *sqlLedger) RecordOperation(ctx context.Context, op *Operation) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO operations (id, kind, skill_name, source, target, ok, error, at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		op.ID, string(op.Kind), op.SkillName, op.Source, op.Target, op.OK, op.Error, op.At.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert operation: %w", err)
	}
	return nil
}

func (s *sqlLedger) ListOperations(ctx context.Context, filter OperationFilter) ([]*Operation, error) {
	query := "SELECT id, kind, skill_name, source, target, ok, error, at FROM operations"
	var conditions []string
	var args []any

	if filter.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, string(filter.Kind))
	}
	if filter.SkillName != "" {
		conditions = append(conditions, "skill_name = ?")
		args = append(args, filter.SkillName)
	}
	if filter.Failed {
		conditions = append(conditions, "ok = ?")
		args = append(args, false)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY at DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list operations: %w", err)
	}
	defer rows.Close()

	var ops []*Operation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan operation: %w", err)
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

func scanOperation(row rowScanner) (*Operation, error) {
	var op Operation
	var kind string
	if err := row.Scan(&op.ID, &kind, &op.SkillName, &op.Source, &op.Target, &op.OK, &op.Error, &op.At); err != nil {
		return nil, err
	}
	op.Kind = OpKind(kind)
	return &op, nil
}

func (s *sqlLedger) GetSummary(ctx context.Context) (*Summary, error) {
	summary := &Summary{OperationsByKind: make(map[OpKind]int)}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM scan_runs").Scan(&summary.TotalScans); err != nil {
		return nil, fmt.Errorf("count scans: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT kind, ok, COUNT(*) FROM operations GROUP BY kind, ok")
	if err != nil {
		return nil, fmt.Errorf("count operations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var kind string
		var ok bool
		var n int
		if err := rows.Scan(&kind, &ok, &n); err != nil {
			return nil, fmt.Errorf("scan operation count: %w", err)
		}
		summary.OperationsByKind[OpKind(kind)] += n
		summary.TotalOperations += n
		if !ok {
			summary.FailedOperations += n
		}
	}
	return summary, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
