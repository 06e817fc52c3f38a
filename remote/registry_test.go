package remote

import (
	"testing"

	"skillgap/skill"
)

func TestNewRegistry_DefaultsAndDuplicates(t *testing.T) {
	log := &recordLogger{}
	reg := NewRegistry([]skill.RepoSource{
		{Owner: "a", Repo: "one"},
		{Owner: "a", Repo: "one", Branch: "main"},
		{Owner: "b", Repo: "two", Path: "/skills/", Branch: "dev"},
		{Owner: "", Repo: "broken"},
	}, log)

	if reg.Len() != 2 {
		t.Fatalf("expected 2 sources, got %d: %v", reg.Len(), reg.Keys())
	}
	if n := log.count("warn remote.source_rejected"); n != 2 {
		t.Errorf("expected 2 rejection warnings, got %d: %v", n, log.msgs)
	}
	keys := reg.Keys()
	if keys[0] != "a/one@main" || keys[1] != "b/two/skills@dev" {
		t.Errorf("unexpected keys %v", keys)
	}

	src, err := reg.Lookup("b/two/skills@dev")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src.Path != "skills" {
		t.Errorf("expected trimmed path, got %q", src.Path)
	}
	if _, err := reg.Lookup("missing@main"); err == nil {
		t.Error("expected error for unknown key")
	}
	if !reg.Exists("a/one@main") || reg.Exists("a/one@dev") {
		t.Error("unexpected Exists result")
	}
}

func TestRegistry_Add(t *testing.T) {
	reg := NewRegistry(nil, nil)
	if err := reg.Add(skill.RepoSource{Owner: "x", Repo: "y"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := reg.Add(skill.RepoSource{Owner: "x", Repo: "y", Branch: "main"}); err == nil {
		t.Error("expected duplicate to be rejected")
	}
	all := reg.All()
	all[0].Owner = "mutated"
	if reg.All()[0].Owner != "x" {
		t.Error("All must return a copy")
	}
}

func TestParseSource(t *testing.T) {
	tests := []struct {
		in      string
		want    skill.RepoSource
		wantErr bool
	}{
		{in: "acme/skills", want: skill.RepoSource{Owner: "acme", Repo: "skills", Branch: "main"}},
		{in: "acme/skills/skills/.curated@dev", want: skill.RepoSource{Owner: "acme", Repo: "skills", Path: "skills/.curated", Branch: "dev"}},
		{in: " acme/skills/ ", want: skill.RepoSource{Owner: "acme", Repo: "skills", Branch: "main"}},
		{in: "acme", wantErr: true},
		{in: "acme/skills@", wantErr: true},
		{in: "/skills", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseSource(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseSource(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseSource(%q): unexpected error %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseSource(%q): expected %+v, got %+v", tt.in, tt.want, got)
		}
	}
}

func TestDefaultSources(t *testing.T) {
	c := NewClient(Config{Sources: []skill.RepoSource{DefaultSources()[0], {Owner: "me", Repo: "mine"}}}, nil)
	if got := c.Registry().Len(); got != len(DefaultSources())+1 {
		t.Errorf("expected defaults plus one user source, got %d", got)
	}
}
