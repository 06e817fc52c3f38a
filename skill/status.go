package skill

import "fmt"

// Status is the lifecycle state of a record relative to the workspace.
type Status string

const (
	StatusActive   Status = "active"
	StatusMissing  Status = "missing"
	StatusImported Status = "imported"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusMissing, StatusImported:
		return true
	}
	return false
}

// Icon returns a one-glyph marker for terminal output.
func (s Status) Icon() string {
	switch s {
	case StatusActive:
		return "●"
	case StatusMissing:
		return "○"
	case StatusImported:
		return "◆"
	default:
		panic(fmt.Sprintf("skill: unknown status %q", string(s)))
	}
}

// Label returns a human-readable label.
func (s Status) Label() string {
	switch s {
	case StatusActive:
		return "Active"
	case StatusMissing:
		return "Missing"
	case StatusImported:
		return "Global"
	default:
		panic(fmt.Sprintf("skill: unknown status %q", string(s)))
	}
}

// Source tags the root category a local record was found under.
type Source string

const (
	SourceGlobal       Source = "global"
	SourceCursorRules  Source = "cursor-rules"
	SourceCursorSkills Source = "cursor-skills"
	SourceAgent        Source = "agent"
	SourceClaude       Source = "claude"
	SourceCustom       Source = "custom"
)

// Group selects a subset of records for display or filtering.
type Group string

const (
	GroupAll     Group = "all"
	GroupActive  Group = "active"
	GroupGlobal  Group = "global"
	GroupMissing Group = "missing"
)

// ParseGroup parses a group name. An empty string selects GroupAll.
func ParseGroup(s string) (Group, error) {
	switch Group(s) {
	case "", GroupAll:
		return GroupAll, nil
	case GroupActive, GroupGlobal, GroupMissing:
		return Group(s), nil
	}
	return "", fmt.Errorf("unknown group %q (want all, active, global or missing)", s)
}

// Matches reports whether r belongs to the group.
func (g Group) Matches(r Record) bool {
	switch g {
	case GroupAll:
		return true
	case GroupActive:
		return r.Status == StatusActive
	case GroupGlobal:
		return r.Status == StatusImported
	case GroupMissing:
		return r.Status == StatusMissing
	default:
		panic(fmt.Sprintf("skill: unknown group %q", string(g)))
	}
}

// Filter returns the records of recs that belong to g.
func (g Group) Filter(recs []Record) []Record {
	out := make([]Record, 0, len(recs))
	for _, r := range recs {
		if g.Matches(r) {
			out = append(out, r)
		}
	}
	return out
}
