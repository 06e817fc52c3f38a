package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"skillgap/logger"
)

// JSONStore implements Store using an in-memory ledger backed by a JSON file.
type JSONStore struct {
	path          string
	mu            sync.RWMutex
	data          jsonData
	dirty         bool
	log           logger.Logger
	flushInterval time.Duration
	stopFlush     chan struct{}
	closeOnce     sync.Once
}

type jsonData struct {
	Scans      map[string]*ScanRun          `json:"scans"`
	Coverage   map[string]*CoverageSnapshot `json:"coverage"`
	Operations map[string]*Operation        `json:"operations"`
}

// NewJSONStore creates a new JSONStore. If the file at path exists it is loaded.
// A background goroutine flushes to disk at the given interval.
func NewJSONStore(path string, flushInterval time.Duration, log logger.Logger) (*JSONStore, error) {
	if flushInterval <= 0 {
		flushInterval = 30 * time.Second
	}
	s := &JSONStore{
		path:          path,
		log:           log,
		flushInterval: flushInterval,
		stopFlush:     make(chan struct{}),
		data: jsonData{
			Scans:      make(map[string]*ScanRun),
			Coverage:   make(map[string]*CoverageSnapshot),
			Operations: make(map[string]*Operation),
		},
	}

	if err := s.loadFromFile(); err != nil {
		return nil, err
	}

	go s.flushLoop()

	log.Info("store.json.opened", logger.String("path", path))
	return s, nil
}

func (s *JSONStore) loadFromFile() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read json store: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	var d jsonData
	if err := json.Unmarshal(data, &d); err != nil {
		return fmt.Errorf("unmarshal json store: %w", err)
	}
	if d.Scans == nil {
		d.Scans = make(map[string]*ScanRun)
	}
	if d.Coverage == nil {
		d.Coverage = make(map[string]*CoverageSnapshot)
	}
	if d.Operations == nil {
		d.Operations = make(map[string]*Operation)
	}
	s.data = d
	return nil
}

// flush writes the ledger to a temp file and renames it over path, so a
// crash mid-write never truncates the ledger. Clean ledgers are skipped.
func (s *JSONStore) flush() error {
	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return nil
	}
	data, err := json.MarshalIndent(s.data, "", "  ")
	s.dirty = false
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("marshal json store: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create json store dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		s.markDirty()
		return fmt.Errorf("write json store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		s.markDirty()
		return fmt.Errorf("replace json store: %w", err)
	}
	return nil
}

func (s *JSONStore) markDirty() {
	s.mu.Lock()
	s.dirty = true
	s.mu.Unlock()
}

func (s *JSONStore) flushLoop() {
	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := s.flush(); err != nil {
				s.log.Error("store.json.flush_failed", logger.Err(err))
			}
		case <-s.stopFlush:
			return
		}
	}
}

// ---------- Scans ----------

func (s *JSONStore) RecordScan(_ context.Context, run *ScanRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data.Scans[run.ID]; exists {
		return fmt.Errorf("scan run %s already exists", run.ID)
	}
	s.data.Scans[run.ID] = cloneScan(run)
	s.dirty = true
	return nil
}

func (s *JSONStore) ListScans(_ context.Context, limit int) ([]*ScanRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*ScanRun, 0, len(s.data.Scans))
	for _, run := range s.data.Scans {
		result = append(result, cloneScan(run))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].StartedAt.After(result[j].StartedAt)
	})

	start, end, ok := pageBounds(limit, 0, len(result))
	if !ok {
		return nil, nil
	}
	return result[start:end], nil
}

// ---------- Coverage ----------

func (s *JSONStore) RecordCoverage(_ context.Context, snap *CoverageSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data.Coverage[snap.ID]; exists {
		return fmt.Errorf("coverage snapshot %s already exists", snap.ID)
	}
	s.data.Coverage[snap.ID] = cloneCoverage(snap)
	s.dirty = true
	return nil
}

func (s *JSONStore) LatestCoverage(_ context.Context, workspace string) (*CoverageSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *CoverageSnapshot
	for _, snap := range s.data.Coverage {
		if workspace != "" && snap.Workspace != workspace {
			continue
		}
		if best == nil || snap.TakenAt.After(best.TakenAt) {
			best = snap
		}
	}
	if best == nil {
		return nil, nil
	}
	return cloneCoverage(best), nil
}

// ---------- Operations ----------

func (s *JSONStore) RecordOperation(_ context.Context, op *Operation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data.Operations[op.ID]; exists {
		return fmt.Errorf("operation %s already exists", op.ID)
	}
	clone := *op
	s.data.Operations[op.ID] = &clone
	s.dirty = true
	return nil
}

func (s *JSONStore) ListOperations(_ context.Context, filter OperationFilter) ([]*Operation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*Operation
	for _, op := range s.data.Operations {
		if filter.Kind != "" && op.Kind != filter.Kind {
			continue
		}
		if filter.SkillName != "" && op.SkillName != filter.SkillName {
			continue
		}
		if filter.Failed && op.OK {
			continue
		}
		clone := *op
		result = append(result, &clone)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].At.After(result[j].At)
	})

	start, end, ok := pageBounds(filter.Limit, filter.Offset, len(result))
	if !ok {
		return nil, nil
	}
	return result[start:end], nil
}

func (s *JSONStore) GetSummary(_ context.Context) (*Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := &Summary{
		TotalScans:       len(s.data.Scans),
		TotalOperations:  len(s.data.Operations),
		OperationsByKind: make(map[OpKind]int),
	}
	for _, op := range s.data.Operations {
		summary.OperationsByKind[op.Kind]++
		if !op.OK {
			summary.FailedOperations++
		}
	}
	return summary, nil
}

// ---------- Lifecycle ----------

func (s *JSONStore) Close() error {
	var flushErr error
	s.closeOnce.Do(func() {
		s.log.Info("store.json.closing")
		close(s.stopFlush)
		flushErr = s.flush()
	})
	return flushErr
}

// ---------- helpers ----------

func cloneScan(run *ScanRun) *ScanRun {
	clone := *run
	if run.Roots != nil {
		clone.Roots = append([]string(nil), run.Roots...)
	}
	return &clone
}

func cloneCoverage(snap *CoverageSnapshot) *CoverageSnapshot {
	clone := *snap
	if snap.MissingNames != nil {
		clone.MissingNames = append([]string(nil), snap.MissingNames...)
	}
	return &clone
}
