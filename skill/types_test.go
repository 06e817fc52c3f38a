package skill

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Foo", "foo"},
		{"  Code  Review ", "codereview"},
		{"Tab\tand\nnewline", "tabandnewline"},
		{"Ünïcode Name", "ünïcodename"},
		{"", ""},
	}
	for _, tt := range tests {
		got := Normalize(tt.in)
		if got != tt.want {
			t.Errorf("Normalize(%q): expected %q, got %q", tt.in, tt.want, got)
		}
		if again := Normalize(got); again != got {
			t.Errorf("Normalize not idempotent for %q: %q -> %q", tt.in, got, again)
		}
	}
}

func TestRepoSourceKey(t *testing.T) {
	s := RepoSource{Owner: "acme", Repo: "skills", Path: "/skills/", Branch: "main"}
	if got := s.Key(); got != "acme/skills/skills@main" {
		t.Errorf("unexpected key %q", got)
	}
	s.Path = ""
	if got := s.Key(); got != "acme/skills@main" {
		t.Errorf("unexpected key %q", got)
	}
}

func TestMarketplaceSkill_ToRecord(t *testing.T) {
	m := MarketplaceSkill{
		Name:        "PDF Tools",
		Description: "work with pdfs",
		Source:      RepoSource{Owner: "Acme", Repo: "Skills", Branch: "main"},
		SkillPath:   "skills/pdf",
		BodyContent: "## Dependencies\n- file-io\n",
	}
	r := m.ToRecord()
	if r.NormalizedName != "pdftools" {
		t.Errorf("expected normalized 'pdftools', got %q", r.NormalizedName)
	}
	if r.Status != StatusMissing {
		t.Errorf("expected status missing, got %q", r.Status)
	}
	if r.ID != "acme/skills/skills/pdf" {
		t.Errorf("unexpected id %q", r.ID)
	}
	if len(r.Dependencies) != 1 || r.Dependencies[0] != "file-io" {
		t.Errorf("unexpected dependencies %v", r.Dependencies)
	}
}

func TestGroupMatches(t *testing.T) {
	recs := []Record{
		{Name: "a", Status: StatusActive},
		{Name: "b", Status: StatusImported},
		{Name: "c", Status: StatusMissing},
	}
	if n := len(GroupAll.Filter(recs)); n != 3 {
		t.Errorf("expected 3 in all, got %d", n)
	}
	if got := GroupActive.Filter(recs); len(got) != 1 || got[0].Name != "a" {
		t.Errorf("unexpected active group %v", got)
	}
	if got := GroupGlobal.Filter(recs); len(got) != 1 || got[0].Name != "b" {
		t.Errorf("unexpected global group %v", got)
	}
	if got := GroupMissing.Filter(recs); len(got) != 1 || got[0].Name != "c" {
		t.Errorf("unexpected missing group %v", got)
	}
}

func TestParseGroup(t *testing.T) {
	if g, err := ParseGroup(""); err != nil || g != GroupAll {
		t.Errorf("expected GroupAll, got %q, %v", g, err)
	}
	if _, err := ParseGroup("bogus"); err == nil {
		t.Error("expected error for unknown group")
	}
}

func TestStatusIconsAndLabels(t *testing.T) {
	for _, s := range []Status{StatusActive, StatusMissing, StatusImported} {
		if !s.Valid() {
			t.Errorf("expected %q to be valid", s)
		}
		if s.Icon() == "" || s.Label() == "" {
			t.Errorf("expected icon and label for %q", s)
		}
	}
	if Status("weird").Valid() {
		t.Error("expected unknown status to be invalid")
	}
}

type treeItem struct{ rec *Record }

func (i treeItem) SkillRecord() *Record { return i.rec }

func TestExtractRecord(t *testing.T) {
	rec := Record{Name: "Foo", Path: "/ws/foo/SKILL.md"}

	tests := []struct {
		name string
		arg  any
		ok   bool
	}{
		{"value", rec, true},
		{"pointer", &rec, true},
		{"holder", treeItem{rec: &rec}, true},
		{"slice", []Record{rec}, true},
		{"pointer slice", []*Record{&rec}, true},
		{"any slice", []any{treeItem{rec: &rec}}, true},
		{"two elements", []Record{rec, rec}, false},
		{"nil pointer", (*Record)(nil), false},
		{"empty holder", treeItem{}, false},
		{"string", "foo", false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		got, ok := ExtractRecord(tt.arg)
		if ok != tt.ok {
			t.Errorf("%s: expected ok=%v, got %v", tt.name, tt.ok, ok)
			continue
		}
		if ok && got.Path != rec.Path {
			t.Errorf("%s: expected path %q, got %q", tt.name, rec.Path, got.Path)
		}
	}
}

func TestDecodeRecordArg(t *testing.T) {
	for _, raw := range []string{
		`{"name":"Foo Bar","path":"/x/SKILL.md"}`,
		`{"skill":{"name":"Foo Bar","path":"/x/SKILL.md"}}`,
		`[{"name":"Foo Bar","path":"/x/SKILL.md"}]`,
		`[{"skill":{"name":"Foo Bar","path":"/x/SKILL.md"}}]`,
	} {
		r, err := DecodeRecordArg(json.RawMessage(raw))
		if err != nil {
			t.Errorf("%s: unexpected error: %v", raw, err)
			continue
		}
		if r.Path != "/x/SKILL.md" || r.NormalizedName != "foobar" {
			t.Errorf("%s: unexpected record %+v", raw, r)
		}
	}

	for _, raw := range []string{``, `[]`, `[{},{}]`, `{}`, `{"skill":{}}`} {
		if _, err := DecodeRecordArg(json.RawMessage(raw)); !errors.Is(err, ErrNoRecord) {
			t.Errorf("%q: expected ErrNoRecord, got %v", raw, err)
		}
	}
	if _, err := DecodeRecordArg(json.RawMessage(`"text"`)); err == nil {
		t.Error("expected error for string argument")
	}
}
