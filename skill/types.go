// Package skill holds the skill data model shared by the scanner, the remote
// client and the gap analyzer, plus the SKILL.md front-matter parser.
package skill

import (
	"path/filepath"
	"strings"
	"unicode"
)

// DefaultFileName is the conventional name of a skill document.
const DefaultFileName = "SKILL.md"

// Record is one skill found on disk (or a reference entry derived from a
// remote catalog).
type Record struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	NormalizedName string   `json:"normalized_name"`
	Path           string   `json:"path"`
	Description    string   `json:"description"`
	Dependencies   []string `json:"dependencies,omitempty"`
	License        string   `json:"license,omitempty"`
	Compatibility  string   `json:"compatibility,omitempty"`
	AllowedTools   string   `json:"allowed_tools,omitempty"`
	Source         Source   `json:"source"`
	Status         Status   `json:"status"`
	IsSynced       bool     `json:"is_synced"`
}

// Dir returns the directory containing the record's document.
func (r Record) Dir() string {
	if r.Path == "" {
		return ""
	}
	return filepath.Dir(r.Path)
}

// WithStatus returns a shallow copy of r carrying the given status.
func (r Record) WithStatus(s Status) Record {
	r.Status = s
	return r
}

// RepoSource identifies a curated repository (or a sub-path of one).
type RepoSource struct {
	Owner       string `json:"owner" yaml:"owner"`
	Repo        string `json:"repo" yaml:"repo"`
	Path        string `json:"path" yaml:"path"`
	Branch      string `json:"branch" yaml:"branch"`
	SingleSkill bool   `json:"single_skill,omitempty" yaml:"single_skill"`
}

// Key returns owner/repo[/path]@branch.
func (s RepoSource) Key() string {
	k := s.Owner + "/" + s.Repo
	if p := strings.Trim(s.Path, "/"); p != "" {
		k += "/" + p
	}
	return k + "@" + s.Branch
}

// MarketplaceSkill is one skill discovered in a remote repository.
type MarketplaceSkill struct {
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	License       string     `json:"license,omitempty"`
	Compatibility string     `json:"compatibility,omitempty"`
	Source        RepoSource `json:"source"`
	SkillPath     string     `json:"skill_path"`
	FullContent   string     `json:"-"`
	BodyContent   string     `json:"-"`
}

// ToRecord converts a marketplace entry into a reference record for gap
// analysis. The record has no local path and starts out missing.
func (m MarketplaceSkill) ToRecord() Record {
	return Record{
		ID:             strings.ToLower(m.Source.Owner + "/" + m.Source.Repo + "/" + m.SkillPath),
		Name:           m.Name,
		NormalizedName: Normalize(m.Name),
		Description:    m.Description,
		Dependencies:   Dependencies(m.BodyContent),
		License:        m.License,
		Compatibility:  m.Compatibility,
		Source:         SourceCustom,
		Status:         StatusMissing,
	}
}

// Normalize lowercases name and strips every whitespace rune. It is the
// identity key used to match skills across sources.
func Normalize(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range strings.ToLower(name) {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// NameSet returns the set of normalized names in recs.
func NameSet(recs []Record) map[string]struct{} {
	set := make(map[string]struct{}, len(recs))
	for _, r := range recs {
		set[r.NormalizedName] = struct{}{}
	}
	return set
}
