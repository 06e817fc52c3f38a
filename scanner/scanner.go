// Package scanner walks workspace and global-library roots for skill
// documents and turns them into skill records.
package scanner

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"skillgap/logger"
	"skillgap/skill"
)

// DefaultRootSuffixes are the workspace-relative roots scanned by default.
var DefaultRootSuffixes = []string{
	".agent/skills",
	".cursor/rules",
	".cursor/skills",
	".claude/skills",
	"skills",
}

// Config controls which roots are scanned.
type Config struct {
	Workspace    string
	RootSuffixes []string // workspace-relative; defaults when empty
	ExtraRoots   []string // user-configured suffixes, appended after RootSuffixes
	GlobalDir    string   // absolute or ~-prefixed
	SkillFile    string
}

// Result is the outcome of one scan pass.
type Result struct {
	Records      []skill.Record `json:"records"`
	ScannedRoots []string       `json:"scanned_roots"`
	Timestamp    time.Time      `json:"timestamp"`
}

// Scanner produces skill records from the configured roots. It keeps the
// most recent result for callers that do not want to rescan.
type Scanner struct {
	workspace string
	global    string
	roots     []string
	skillFile string
	log       logger.Logger
	now       func() time.Time

	mu   sync.RWMutex
	last *Result
}

// New creates a scanner. Relative suffixes are resolved against the
// workspace and the global root is appended last.
func New(cfg Config, log logger.Logger) *Scanner {
	if log == nil {
		log = logger.Nop()
	}
	suffixes := cfg.RootSuffixes
	if len(suffixes) == 0 {
		suffixes = DefaultRootSuffixes
	}
	skillFile := cfg.SkillFile
	if skillFile == "" {
		skillFile = skill.DefaultFileName
	}

	workspace := filepath.Clean(ExpandHome(cfg.Workspace))
	if abs, err := filepath.Abs(workspace); err == nil {
		workspace = abs
	}
	global := ""
	if cfg.GlobalDir != "" {
		global = filepath.Clean(ExpandHome(cfg.GlobalDir))
		if abs, err := filepath.Abs(global); err == nil {
			global = abs
		}
	}

	seen := make(map[string]bool)
	var roots []string
	add := func(root string) {
		if root == "" || seen[root] {
			return
		}
		seen[root] = true
		roots = append(roots, root)
	}
	for _, s := range append(append([]string{}, suffixes...), cfg.ExtraRoots...) {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if filepath.IsAbs(s) {
			add(filepath.Clean(s))
			continue
		}
		add(filepath.Join(workspace, filepath.FromSlash(s)))
	}
	add(global)

	return &Scanner{
		workspace: workspace,
		global:    global,
		roots:     roots,
		skillFile: skillFile,
		log:       log,
		now:       time.Now,
	}
}

// Roots returns the full ordered root set.
func (s *Scanner) Roots() []string {
	out := make([]string, len(s.roots))
	copy(out, s.roots)
	return out
}

// Workspace returns the absolute workspace root.
func (s *Scanner) Workspace() string { return s.workspace }

// GlobalDir returns the absolute global library root, or "".
func (s *Scanner) GlobalDir() string { return s.global }

// Scan enumerates every root concurrently and returns the records in root
// order. A root that cannot be read contributes nothing; Scan never fails.
func (s *Scanner) Scan(ctx context.Context) Result {
	perRoot := make([][]skill.Record, len(s.roots))

	var wg sync.WaitGroup
	for i, root := range s.roots {
		wg.Add(1)
		go func(i int, root string) {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			perRoot[i] = s.scanRoot(root)
		}(i, root)
	}
	wg.Wait()

	var records []skill.Record
	for _, recs := range perRoot {
		records = append(records, recs...)
	}
	markSynced(records)

	res := Result{
		Records:      records,
		ScannedRoots: s.Roots(),
		Timestamp:    s.now(),
	}

	s.mu.Lock()
	s.last = &res
	s.mu.Unlock()

	s.log.Debug("scan.completed",
		logger.Int("roots", len(s.roots)),
		logger.Int("records", len(records)),
	)
	return res
}

// Last returns the most recent scan result without rescanning.
func (s *Scanner) Last() (Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return Result{}, false
	}
	return *s.last, true
}

func (s *Scanner) scanRoot(root string) []skill.Record {
	entries, err := os.ReadDir(root)
	if err != nil {
		s.log.Debug("scan.root_skipped", logger.String("root", root), logger.Err(err))
		return nil
	}

	var out []skill.Record
	for _, entry := range entries {
		isDir := entry.IsDir()
		if entry.Type()&os.ModeSymlink != 0 {
			if fi, err := os.Stat(filepath.Join(root, entry.Name())); err == nil {
				isDir = fi.IsDir()
			}
		}

		var docPath, defName string
		switch {
		case isDir:
			docPath = filepath.Join(root, entry.Name(), s.skillFile)
			defName = entry.Name()
		case entry.Name() == s.skillFile:
			docPath = filepath.Join(root, entry.Name())
			defName = filepath.Base(root)
		default:
			continue
		}

		rec, err := s.loadRecord(docPath, defName)
		if err != nil {
			if !os.IsNotExist(err) {
				s.log.Warn("scan.read_failed", logger.String("path", docPath), logger.Err(err))
			}
			continue
		}
		out = append(out, rec)
	}
	return out
}

func (s *Scanner) loadRecord(docPath, defName string) (skill.Record, error) {
	data, err := os.ReadFile(docPath)
	if err != nil {
		return skill.Record{}, err
	}
	doc := skill.Parse(string(data))

	name := strings.TrimSpace(doc.Metadata.Name)
	if name == "" {
		name = skill.FallbackName(doc.Body, defName)
	}
	desc := strings.TrimSpace(doc.Metadata.Description)
	if desc == "" {
		desc = skill.FallbackDescription(doc.Body)
	}

	dir := filepath.Dir(docPath)
	src := s.classify(dir)
	status := skill.StatusActive
	if src == skill.SourceGlobal {
		status = skill.StatusImported
	}

	return skill.Record{
		ID:             s.recordID(docPath),
		Name:           name,
		NormalizedName: skill.Normalize(name),
		Path:           docPath,
		Description:    desc,
		Dependencies:   skill.Dependencies(doc.Body),
		License:        doc.Metadata.License,
		Compatibility:  doc.Metadata.Compatibility,
		AllowedTools:   doc.Metadata.AllowedTools,
		Source:         src,
		Status:         status,
	}, nil
}

func (s *Scanner) recordID(docPath string) string {
	rel, err := filepath.Rel(s.workspace, docPath)
	if err != nil {
		rel = docPath
	}
	return strings.ToLower(filepath.ToSlash(rel))
}

// markSynced flags active records whose normalized name also appears in the
// global library.
func markSynced(records []skill.Record) {
	global := make(map[string]struct{})
	for _, r := range records {
		if r.Status == skill.StatusImported {
			global[r.NormalizedName] = struct{}{}
		}
	}
	for i := range records {
		if records[i].Status != skill.StatusActive {
			continue
		}
		_, records[i].IsSynced = global[records[i].NormalizedName]
	}
}
