// Package service ties the scanner, remote client, gap analyzer and activity
// store together. The CLI and the HTTP API are thin layers over it.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"skillgap/gap"
	"skillgap/logger"
	"skillgap/remote"
	"skillgap/scanner"
	"skillgap/skill"
	"skillgap/store"
)

// Reference selects the set a workspace is compared against.
type Reference string

const (
	RefMarketplace Reference = "marketplace"
	RefGlobal      Reference = "global"
)

// ParseReference parses a reference name. An empty string selects the
// marketplace.
func ParseReference(s string) (Reference, error) {
	switch Reference(s) {
	case "", RefMarketplace:
		return RefMarketplace, nil
	case RefGlobal:
		return RefGlobal, nil
	}
	return "", fmt.Errorf("unknown reference %q (want marketplace or global)", s)
}

// ErrUnknownSkill is returned when a name matches no known record.
var ErrUnknownSkill = errors.New("unknown skill")

// Service runs core operations and appends them to the activity ledger.
type Service struct {
	scanner   *scanner.Scanner
	remote    *remote.Client
	gaps      *gap.Analyzer
	ledger    store.Store
	importDir string
	log       logger.Logger
	now       func() time.Time
}

// Config wires a Service. Ledger may be nil, in which case nothing is
// recorded.
type Config struct {
	Scanner   *scanner.Scanner
	Remote    *remote.Client
	Gaps      *gap.Analyzer
	Ledger    store.Store
	ImportDir string
}

// New creates a Service.
func New(cfg Config, log logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.Gaps == nil {
		cfg.Gaps = gap.New(nil, log)
	}
	return &Service{
		scanner:   cfg.Scanner,
		remote:    cfg.Remote,
		gaps:      cfg.Gaps,
		ledger:    cfg.Ledger,
		importDir: cfg.ImportDir,
		log:       log,
		now:       time.Now,
	}
}

// Workspace returns the scanned workspace root.
func (s *Service) Workspace() string { return s.scanner.Workspace() }

// ImportDir returns the directory imports and installs are written to.
func (s *Service) ImportDir() string { return s.importDir }

// Remote returns the underlying remote client.
func (s *Service) Remote() *remote.Client { return s.remote }

// Ledger returns the activity store, or nil.
func (s *Service) Ledger() store.Store { return s.ledger }

// storeCtx gives ledger writes their own deadline so they still land after
// the request context is cancelled.
func storeCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}

// Scan runs a fresh scan and records it.
func (s *Service) Scan(ctx context.Context) scanner.Result {
	start := s.now()
	res := s.scanner.Scan(ctx)
	active, global := gap.Partition(res.Records)

	s.log.Info("service.scanned",
		logger.Int("records", len(res.Records)),
		logger.Int("active", len(active)),
		logger.Int("global", len(global)),
	)

	if s.ledger != nil {
		run := &store.ScanRun{
			ID:          store.NewID("scan"),
			Workspace:   s.scanner.Workspace(),
			Roots:       res.ScannedRoots,
			RecordCount: len(res.Records),
			ActiveCount: len(active),
			GlobalCount: len(global),
			StartedAt:   start,
			DurationMs:  s.now().Sub(start).Milliseconds(),
		}
		sctx, cancel := storeCtx()
		if err := s.ledger.RecordScan(sctx, run); err != nil {
			s.log.Error("store.record_scan_failed", logger.Err(err))
		}
		cancel()
	}
	return res
}

// Records returns the last scan result, scanning first when there is none.
func (s *Service) Records(ctx context.Context) []skill.Record {
	if res, ok := s.scanner.Last(); ok {
		return res.Records
	}
	return s.Scan(ctx).Records
}

// Catalog fetches the marketplace catalog, clearing the caches first when
// refresh is set. It fails only when every source failed.
func (s *Service) Catalog(ctx context.Context, refresh bool) (remote.Catalog, error) {
	if refresh {
		s.remote.ClearCache()
	}
	cat := s.remote.FetchCatalog(ctx)
	return cat, cat.Err()
}

// GapReport is a gap analysis plus the context it was computed in.
type GapReport struct {
	Reference Reference          `json:"reference"`
	Workspace string             `json:"workspace"`
	Result    gap.Result         `json:"result"`
	Errors    []remote.RepoError `json:"errors,omitempty"`
}

// Gaps compares the workspace's active skills against the reference set and
// records a coverage snapshot.
func (s *Service) Gaps(ctx context.Context, ref Reference, refresh bool) (GapReport, error) {
	if refresh {
		s.Scan(ctx)
	}
	active, global := gap.Partition(s.Records(ctx))

	report := GapReport{Reference: ref, Workspace: s.scanner.Workspace()}
	var reference []skill.Record
	switch ref {
	case RefMarketplace:
		cat, err := s.Catalog(ctx, refresh)
		if err != nil {
			return GapReport{}, err
		}
		reference = cat.Records()
		report.Errors = cat.Errors
	case RefGlobal:
		reference = global
	default:
		return GapReport{}, fmt.Errorf("unknown reference %q", ref)
	}

	report.Result = gap.Analyze(active, reference)

	s.log.Info("service.gaps",
		logger.String("reference", string(ref)),
		logger.Int("present", len(report.Result.Present)),
		logger.Int("missing", len(report.Result.Missing)),
		logger.Int("coverage", report.Result.CoveragePercentage),
	)

	if s.ledger != nil {
		snap := &store.CoverageSnapshot{
			ID:           store.NewID("cov"),
			Workspace:    report.Workspace,
			Reference:    string(ref),
			Present:      len(report.Result.Present),
			Missing:      len(report.Result.Missing),
			Total:        report.Result.TotalAvailable,
			Percentage:   report.Result.CoveragePercentage,
			MissingNames: report.Result.MissingNames(),
			TakenAt:      s.now(),
		}
		sctx, cancel := storeCtx()
		if err := s.ledger.RecordCoverage(sctx, snap); err != nil {
			s.log.Error("store.record_coverage_failed", logger.Err(err))
		}
		cancel()
	}
	return report, nil
}

// Dependencies reports, per local skill, the declared dependencies that no
// local skill provides. Skills with nothing missing are omitted.
func (s *Service) Dependencies(ctx context.Context) map[string][]string {
	recs := s.Records(ctx)
	return gap.DependencyReport(recs, recs)
}

// Find returns the first record of the last scan whose normalized name
// matches name and that belongs to group.
func (s *Service) Find(ctx context.Context, name string, group skill.Group) (skill.Record, error) {
	key := skill.Normalize(name)
	for _, r := range s.Records(ctx) {
		if r.NormalizedName == key && group.Matches(r) {
			return r, nil
		}
	}
	return skill.Record{}, fmt.Errorf("%w: %s", ErrUnknownSkill, name)
}

// Resolve maps a caller-supplied record onto a record of the last scan so
// that mutations only ever touch scanned directories. It matches by ID, then
// by path, then by normalized name, always within group.
func (s *Service) Resolve(ctx context.Context, rec skill.Record, group skill.Group) (skill.Record, error) {
	recs := s.Records(ctx)
	match := func(ok func(skill.Record) bool) (skill.Record, bool) {
		for _, r := range recs {
			if group.Matches(r) && ok(r) {
				return r, true
			}
		}
		return skill.Record{}, false
	}

	if rec.ID != "" {
		if r, ok := match(func(r skill.Record) bool { return r.ID == rec.ID }); ok {
			return r, nil
		}
	}
	if rec.Path != "" {
		if r, ok := match(func(r skill.Record) bool { return r.Path == rec.Path }); ok {
			return r, nil
		}
	}
	key := rec.NormalizedName
	if key == "" {
		key = skill.Normalize(rec.Name)
	}
	if key != "" {
		if r, ok := match(func(r skill.Record) bool { return r.NormalizedName == key }); ok {
			return r, nil
		}
	}
	return skill.Record{}, fmt.Errorf("%w: %s", ErrUnknownSkill, firstNonEmpty(rec.Name, rec.ID, rec.Path))
}

// History is the recent activity read back from the ledger.
type History struct {
	Scans      []*store.ScanRun        `json:"scans"`
	Coverage   *store.CoverageSnapshot `json:"coverage,omitempty"`
	Operations []*store.Operation      `json:"operations"`
	Summary    *store.Summary          `json:"summary"`
}

// ErrNoLedger is returned by History when no store is configured.
var ErrNoLedger = errors.New("activity store is disabled")

// History returns recent scans and operations plus the latest coverage
// snapshot for this workspace.
func (s *Service) History(ctx context.Context, filter store.OperationFilter) (History, error) {
	if s.ledger == nil {
		return History{}, ErrNoLedger
	}
	var h History
	var err error
	if h.Scans, err = s.ledger.ListScans(ctx, filter.Limit); err != nil {
		return History{}, err
	}
	if h.Coverage, err = s.ledger.LatestCoverage(ctx, s.scanner.Workspace()); err != nil {
		return History{}, err
	}
	if h.Operations, err = s.ledger.ListOperations(ctx, filter); err != nil {
		return History{}, err
	}
	if h.Summary, err = s.ledger.GetSummary(ctx); err != nil {
		return History{}, err
	}
	return h, nil
}
