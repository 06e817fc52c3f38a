package gap

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"skillgap/logger"
	"skillgap/skill"
)

func rec(name string, status skill.Status) skill.Record {
	return skill.Record{Name: name, NormalizedName: skill.Normalize(name), Status: status}
}

func TestAnalyze_CoverageScenario(t *testing.T) {
	local := []skill.Record{rec("Foo", skill.StatusActive)}
	reference := []skill.Record{rec("Foo", skill.StatusMissing), rec("Bar", skill.StatusMissing)}

	res := Analyze(local, reference)
	if len(res.Present) != 1 || res.Present[0].Name != "Foo" || res.Present[0].Status != skill.StatusActive {
		t.Errorf("unexpected present %+v", res.Present)
	}
	if len(res.Missing) != 1 || res.Missing[0].Name != "Bar" || res.Missing[0].Status != skill.StatusMissing {
		t.Errorf("unexpected missing %+v", res.Missing)
	}
	if res.TotalAvailable != 2 || res.CoveragePercentage != 50 {
		t.Errorf("expected 2 total at 50%%, got %d at %d%%", res.TotalAvailable, res.CoveragePercentage)
	}
	if reference[0].Status != skill.StatusMissing {
		t.Error("input records must not be mutated")
	}
}

func TestAnalyze_MatchesByNormalizedName(t *testing.T) {
	local := []skill.Record{rec("Code Review", skill.StatusImported)}
	reference := []skill.Record{{Name: "code  review"}}

	res := Analyze(local, reference)
	if len(res.Present) != 1 {
		t.Errorf("expected normalized match, got %+v", res)
	}
}

func TestAnalyze_EmptyReference(t *testing.T) {
	res := Analyze([]skill.Record{rec("Foo", skill.StatusActive)}, nil)
	if res.CoveragePercentage != 100 || res.TotalAvailable != 0 {
		t.Errorf("expected 100%% of 0, got %d%% of %d", res.CoveragePercentage, res.TotalAvailable)
	}
	if res.Present == nil || res.Missing == nil {
		t.Error("expected empty, non-nil slices")
	}
}

func TestAnalyze_PartitionSizes(t *testing.T) {
	var reference, local []skill.Record
	for i := 0; i < 7; i++ {
		name := string(rune('a' + i))
		reference = append(reference, rec(name, skill.StatusMissing))
		if i%3 == 0 {
			local = append(local, rec(name, skill.StatusActive))
		}
	}
	res := Analyze(local, reference)
	if len(res.Present)+len(res.Missing) != len(reference) {
		t.Errorf("partition sizes do not add up: %d + %d != %d", len(res.Present), len(res.Missing), len(reference))
	}
	if res.CoveragePercentage != 43 {
		t.Errorf("expected round(300/7)=43, got %d", res.CoveragePercentage)
	}
}

func TestCoverage(t *testing.T) {
	tests := []struct {
		present, total, want int
	}{
		{0, 0, 100},
		{0, 3, 0},
		{1, 3, 33},
		{2, 3, 67},
		{3, 3, 100},
		{1, 8, 13},
	}
	for _, tt := range tests {
		if got := Coverage(tt.present, tt.total); got != tt.want {
			t.Errorf("Coverage(%d, %d): expected %d, got %d", tt.present, tt.total, tt.want, got)
		}
	}
}

func TestPartition(t *testing.T) {
	active, global := Partition([]skill.Record{
		rec("a", skill.StatusActive),
		rec("b", skill.StatusImported),
		rec("c", skill.StatusMissing),
		rec("d", skill.StatusActive),
	})
	if len(active) != 2 || active[1].Name != "d" {
		t.Errorf("unexpected active %+v", active)
	}
	if len(global) != 1 || global[0].Name != "b" {
		t.Errorf("unexpected global %+v", global)
	}
}

func TestFindMissingDependencies(t *testing.T) {
	r := skill.Record{Name: "x", Dependencies: []string{"File IO", "pdf", "Network", "file io"}}
	universe := []skill.Record{rec("fileio", skill.StatusActive), rec("PDF", skill.StatusImported)}

	got := FindMissingDependencies(r, universe)
	if len(got) != 1 || got[0] != "Network" {
		t.Errorf("expected [Network], got %v", got)
	}

	report := DependencyReport([]skill.Record{r, rec("y", skill.StatusActive)}, universe)
	if len(report) != 1 || len(report["x"]) != 1 {
		t.Errorf("unexpected report %v", report)
	}
}

func writeSkillDir(t *testing.T, dir string, files map[string]string) skill.Record {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	name := filepath.Base(dir)
	return skill.Record{Name: name, NormalizedName: skill.Normalize(name), Path: filepath.Join(dir, "SKILL.md")}
}

func TestImport_CopiesWholeDirectory(t *testing.T) {
	global := t.TempDir()
	target := filepath.Join(t.TempDir(), ".agent", "skills")
	r := writeSkillDir(t, filepath.Join(global, "pdf"), map[string]string{
		"SKILL.md":       "---\nname: pdf\n---\n",
		"scripts/run.sh": "echo",
	})

	a := New(NewDirTrash(t.TempDir()), logger.Nop())
	dest, err := a.Import(r, target)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dest != filepath.Join(target, "pdf") {
		t.Errorf("unexpected destination %q", dest)
	}
	if data, err := os.ReadFile(filepath.Join(dest, "scripts", "run.sh")); err != nil || string(data) != "echo" {
		t.Errorf("expected nested file copied, got %q, %v", data, err)
	}
	if _, err := os.Stat(r.Path); err != nil {
		t.Errorf("source must stay in place: %v", err)
	}
}

func TestImport_DestinationExists(t *testing.T) {
	global := t.TempDir()
	target := t.TempDir()
	r := writeSkillDir(t, filepath.Join(global, "pdf"), map[string]string{"SKILL.md": "new"})
	existing := writeSkillDir(t, filepath.Join(target, "pdf"), map[string]string{"SKILL.md": "old"})

	a := New(NewDirTrash(t.TempDir()), logger.Nop())
	_, err := a.Import(r, target)
	if !errors.Is(err, ErrDestinationExists) {
		t.Fatalf("expected ErrDestinationExists, got %v", err)
	}
	if !strings.Contains(err.Error(), "pdf") {
		t.Errorf("expected skill name in error, got %v", err)
	}
	data, _ := os.ReadFile(existing.Path)
	if string(data) != "old" {
		t.Errorf("existing destination was modified: %q", data)
	}
	entries, _ := os.ReadDir(target)
	if len(entries) != 1 {
		t.Errorf("expected no staging leftovers, found %d entries", len(entries))
	}
}

func TestImport_RejectsNestedTarget(t *testing.T) {
	src := t.TempDir()
	r := writeSkillDir(t, filepath.Join(src, "pdf"), map[string]string{"SKILL.md": "x"})
	a := New(NewDirTrash(t.TempDir()), logger.Nop())
	if _, err := a.Import(r, filepath.Join(src, "pdf", "inner")); err == nil {
		t.Error("expected error when importing into the source itself")
	}
}

func TestImportAll_Report(t *testing.T) {
	global := t.TempDir()
	target := t.TempDir()
	ok1 := writeSkillDir(t, filepath.Join(global, "one"), map[string]string{"SKILL.md": "1"})
	ok2 := writeSkillDir(t, filepath.Join(global, "two"), map[string]string{"SKILL.md": "2"})
	clash := writeSkillDir(t, filepath.Join(global, "three"), map[string]string{"SKILL.md": "3"})
	writeSkillDir(t, filepath.Join(target, "three"), map[string]string{"SKILL.md": "existing"})
	noPath := skill.Record{Name: "ghost"}

	a := New(NewDirTrash(t.TempDir()), logger.Nop())
	report := a.ImportAll([]skill.Record{ok1, clash, noPath, ok2}, target)

	if report.Summary() != "imported 2 of 4" {
		t.Errorf("unexpected summary %q", report.Summary())
	}
	if len(report.Failures) != 2 || report.Failures[0].Name != "three" || report.Failures[1].Name != "ghost" {
		t.Errorf("unexpected failures %+v", report.Failures)
	}
	if !errors.Is(report.Err(), ErrDestinationExists) {
		t.Errorf("expected joined error to include ErrDestinationExists, got %v", report.Err())
	}
	if len(report.Imported) != 2 || report.Imported[1] != filepath.Join(target, "two") {
		t.Errorf("unexpected imported list %v", report.Imported)
	}
}

func TestDelete_MovesToTrash(t *testing.T) {
	ws := t.TempDir()
	trashRoot := t.TempDir()
	r := writeSkillDir(t, filepath.Join(ws, "old skill"), map[string]string{"SKILL.md": "bye"})

	trash := NewDirTrash(trashRoot)
	trash.now = func() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC) }
	a := New(trash, logger.Nop())

	loc, err := a.Delete(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(r.Dir()); !os.IsNotExist(err) {
		t.Errorf("expected source removed, got %v", err)
	}
	if loc != filepath.Join(trashRoot, "files", "old skill") {
		t.Errorf("unexpected trash location %q", loc)
	}
	if data, _ := os.ReadFile(filepath.Join(loc, "SKILL.md")); string(data) != "bye" {
		t.Errorf("trashed content lost: %q", data)
	}

	info, err := os.ReadFile(filepath.Join(trashRoot, "info", "old skill.trashinfo"))
	if err != nil {
		t.Fatalf("missing trashinfo: %v", err)
	}
	if !strings.Contains(string(info), "DeletionDate=2026-03-04T05:06:07") {
		t.Errorf("unexpected info %q", info)
	}
	if !strings.Contains(string(info), "old%20skill") {
		t.Errorf("expected escaped path in info, got %q", info)
	}
}

func TestDirTrash_NameCollision(t *testing.T) {
	trashRoot := t.TempDir()
	trash := NewDirTrash(trashRoot)

	first := filepath.Join(t.TempDir(), "dup")
	second := filepath.Join(t.TempDir(), "dup")
	for _, d := range []string{first, second} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}

	loc1, err := trash.Trash(first)
	if err != nil {
		t.Fatal(err)
	}
	loc2, err := trash.Trash(second)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(loc1) != "dup" || filepath.Base(loc2) != "dup.2" {
		t.Errorf("unexpected names %q, %q", loc1, loc2)
	}
	if _, err := os.Stat(filepath.Join(trashRoot, "info", "dup.2.trashinfo")); err != nil {
		t.Errorf("expected second info file: %v", err)
	}
}

func TestDelete_NoPath(t *testing.T) {
	a := New(NewDirTrash(t.TempDir()), logger.Nop())
	if _, err := a.Delete(skill.Record{Name: "ghost"}); err == nil {
		t.Error("expected error for record without path")
	}
}

func TestNewDirTrash_XDG(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_DATA_HOME", xdg)
	if got := NewDirTrash("").Root; got != filepath.Join(xdg, "Trash") {
		t.Errorf("unexpected trash root %q", got)
	}
}
