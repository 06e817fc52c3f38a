package scanner

import (
	"os"
	"path/filepath"
	"strings"

	"skillgap/skill"
)

// sourcePatterns are tested in order against the slash-normalized directory
// of a skill document; the first fragment found wins.
var sourcePatterns = []struct {
	fragment string
	source   skill.Source
}{
	{"/.cursor/rules", skill.SourceCursorRules},
	{"/.cursor/skills", skill.SourceCursorSkills},
	{"/.agent", skill.SourceAgent},
	{"/.claude", skill.SourceClaude},
}

func (s *Scanner) classify(dir string) skill.Source {
	return Classify(dir, s.global)
}

// Classify derives the origin tag of a skill whose document lives in dir.
// The global root is checked first, then the fixed fragment list.
func Classify(dir, globalRoot string) skill.Source {
	dir = filepath.Clean(dir)
	if globalRoot != "" && within(filepath.Clean(globalRoot), dir) {
		return skill.SourceGlobal
	}
	slashed := filepath.ToSlash(dir) + "/"
	for _, p := range sourcePatterns {
		if strings.Contains(slashed, p.fragment+"/") {
			return p.source
		}
	}
	return skill.SourceCustom
}

// within reports whether target is root or lies below it.
func within(root, target string) bool {
	if root == target {
		return true
	}
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator)) && !filepath.IsAbs(rel)
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") && !strings.HasPrefix(p, `~\`) {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	return filepath.Join(home, p[2:])
}
