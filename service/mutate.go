package service

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"skillgap/gap"
	"skillgap/logger"
	"skillgap/remote"
	"skillgap/skill"
	"skillgap/store"
)

// Import copies the named global-library skills into the import directory.
// Names that match no global record are reported as failures alongside the
// copy failures.
func (s *Service) Import(ctx context.Context, names []string) gap.BatchReport {
	var recs []skill.Record
	var pos []int
	var unknown []gap.ImportFailure
	for i, name := range names {
		rec, err := s.Find(ctx, name, skill.GroupGlobal)
		if err != nil {
			unknown = append(unknown, gap.ImportFailure{Index: i, Name: name, Err: err})
			s.recordOp(store.OpImport, name, "", s.importDir, err)
			continue
		}
		recs = append(recs, rec)
		pos = append(pos, i)
	}

	report := s.ImportRecords(ctx, recs)
	for j := range report.Failures {
		report.Failures[j].Index = pos[report.Failures[j].Index]
	}
	report.Total += len(unknown)
	report.Failures = append(report.Failures, unknown...)
	sort.Slice(report.Failures, func(i, j int) bool {
		return report.Failures[i].Index < report.Failures[j].Index
	})
	return report
}

// ImportRecords copies each record's directory into the import directory.
func (s *Service) ImportRecords(ctx context.Context, recs []skill.Record) gap.BatchReport {
	report := s.gaps.ImportAll(recs, s.importDir)

	failed := make(map[int]error, len(report.Failures))
	for _, f := range report.Failures {
		failed[f.Index] = f.Err
	}
	for i, r := range recs {
		s.recordOp(store.OpImport, r.Name, r.Dir(), s.importDir, failed[i])
	}

	if report.Succeeded > 0 {
		s.Scan(ctx)
	}
	return report
}

// Delete moves the skill's directory to the trash and returns its location
// there.
func (s *Service) Delete(ctx context.Context, rec skill.Record) (string, error) {
	loc, err := s.gaps.Delete(rec)
	s.recordOp(store.OpDelete, rec.Name, rec.Dir(), loc, err)
	if err != nil {
		return "", err
	}
	s.Scan(ctx)
	return loc, nil
}

// DeleteNamed deletes the local skill with the given name. Workspace skills
// are preferred over global-library ones.
func (s *Service) DeleteNamed(ctx context.Context, name string) (string, error) {
	rec, err := s.Find(ctx, name, skill.GroupActive)
	if err != nil {
		if rec, err = s.Find(ctx, name, skill.GroupGlobal); err != nil {
			s.recordOp(store.OpDelete, name, "", "", err)
			return "", err
		}
	}
	return s.Delete(ctx, rec)
}

// InstallRequest identifies one remote skill to install. Either Source and
// SkillPath are set, or Name names a catalog entry.
type InstallRequest struct {
	Source    string `json:"source"`
	SkillPath string `json:"skill_path"`
	Name      string `json:"name"`
}

// Install downloads a remote skill into the import directory.
func (s *Service) Install(ctx context.Context, req InstallRequest) (string, error) {
	m, err := s.resolveInstall(ctx, req)
	if err != nil {
		s.recordOp(store.OpInstall, firstNonEmpty(req.Name, req.SkillPath), req.Source, s.importDir, err)
		return "", err
	}

	dest, err := s.remote.InstallSkill(ctx, m, s.importDir)
	s.recordOp(store.OpInstall, m.Name, m.Source.Key()+":"+m.SkillPath, dest, err)
	if err != nil {
		return "", fmt.Errorf("install %s: %w", m.Name, err)
	}
	s.Scan(ctx)
	return dest, nil
}

func (s *Service) resolveInstall(ctx context.Context, req InstallRequest) (skill.MarketplaceSkill, error) {
	if req.Source != "" {
		src, err := remote.ParseSource(req.Source)
		if err != nil {
			return skill.MarketplaceSkill{}, err
		}
		skillPath := strings.Trim(req.SkillPath, "/")
		if skillPath == "" {
			skillPath = strings.Trim(src.Path, "/")
		}
		name := req.Name
		if name == "" {
			name = path.Base(skillPath)
		}
		if name == "" || name == "." {
			name = src.Repo
		}
		return skill.MarketplaceSkill{Name: name, Source: src, SkillPath: skillPath}, nil
	}

	if req.Name == "" {
		return skill.MarketplaceSkill{}, fmt.Errorf("install needs a source or a catalog name")
	}
	cat, err := s.Catalog(ctx, false)
	if err != nil {
		return skill.MarketplaceSkill{}, err
	}
	key := skill.Normalize(req.Name)
	for _, m := range cat.Skills {
		if skill.Normalize(m.Name) == key {
			return m, nil
		}
	}
	return skill.MarketplaceSkill{}, fmt.Errorf("%w: %s is not in the catalog", ErrUnknownSkill, req.Name)
}

func (s *Service) recordOp(kind store.OpKind, name, source, target string, err error) {
	if s.ledger == nil {
		return
	}
	op := &store.Operation{
		ID:        store.NewID("op"),
		Kind:      kind,
		SkillName: name,
		Source:    source,
		Target:    target,
		OK:        err == nil,
		At:        s.now(),
	}
	if err != nil {
		op.Error = err.Error()
	}
	sctx, cancel := storeCtx()
	defer cancel()
	if werr := s.ledger.RecordOperation(sctx, op); werr != nil {
		s.log.Error("store.record_operation_failed", logger.String("kind", string(kind)), logger.Err(werr))
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
