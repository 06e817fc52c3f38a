package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// OpKind identifies a mutating operation recorded in the ledger.
type OpKind string

const (
	OpImport  OpKind = "import"
	OpDelete  OpKind = "delete"
	OpInstall OpKind = "install"
)

// ScanRun records one Local Scanner pass.
type ScanRun struct {
	ID          string    `json:"id"`
	Workspace   string    `json:"workspace"`
	Roots       []string  `json:"roots"`
	RecordCount int       `json:"record_count"`
	ActiveCount int       `json:"active_count"`
	GlobalCount int       `json:"global_count"`
	StartedAt   time.Time `json:"started_at"`
	DurationMs  int64     `json:"duration_ms"`
}

// CoverageSnapshot records one gap analysis.
type CoverageSnapshot struct {
	ID           string    `json:"id"`
	Workspace    string    `json:"workspace"`
	Reference    string    `json:"reference"` // "marketplace" or "global"
	Present      int       `json:"present"`
	Missing      int       `json:"missing"`
	Total        int       `json:"total"`
	Percentage   int       `json:"percentage"`
	MissingNames []string  `json:"missing_names"`
	TakenAt      time.Time `json:"taken_at"`
}

// Operation records one import, delete or install.
type Operation struct {
	ID        string    `json:"id"`
	Kind      OpKind    `json:"kind"`
	SkillName string    `json:"skill_name"`
	Source    string    `json:"source"`
	Target    string    `json:"target"`
	OK        bool      `json:"ok"`
	Error     string    `json:"error"`
	At        time.Time `json:"at"`
}

// OperationFilter specifies criteria for listing operations.
type OperationFilter struct {
	Kind      OpKind `json:"kind"`
	SkillName string `json:"skill_name"`
	Failed    bool   `json:"failed"`
	Limit     int    `json:"limit"`
	Offset    int    `json:"offset"`
}

// Summary holds aggregated ledger statistics.
type Summary struct {
	TotalScans       int            `json:"total_scans"`
	TotalOperations  int            `json:"total_operations"`
	FailedOperations int            `json:"failed_operations"`
	OperationsByKind map[OpKind]int `json:"operations_by_kind"`
}

// Store defines the persistence interface for the activity ledger.
type Store interface {
	RecordScan(ctx context.Context, run *ScanRun) error
	ListScans(ctx context.Context, limit int) ([]*ScanRun, error)

	RecordCoverage(ctx context.Context, snap *CoverageSnapshot) error
	LatestCoverage(ctx context.Context, workspace string) (*CoverageSnapshot, error)

	RecordOperation(ctx context.Context, op *Operation) error
	ListOperations(ctx context.Context, filter OperationFilter) ([]*Operation, error)

	GetSummary(ctx context.Context) (*Summary, error)

	Close() error
}

// NewID returns a short random identifier such as "op-1a2b3c4d".
func NewID(prefix string) string {
	return prefix + "-" + uuid.New().String()[:8]
}

const defaultListLimit = 50

func pageBounds(limit, offset, n int) (int, int, bool) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= n {
		return 0, 0, false
	}
	return offset, min(offset+limit, n), true
}
