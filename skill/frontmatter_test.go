package skill

import (
	"strings"
	"testing"
)

func TestParse_RoundTrip(t *testing.T) {
	doc := Parse("---\nname: X\ndescription: Y\n---\nBODY")

	if doc.Metadata.Name != "X" {
		t.Errorf("expected name 'X', got %q", doc.Metadata.Name)
	}
	if doc.Metadata.Description != "Y" {
		t.Errorf("expected description 'Y', got %q", doc.Metadata.Description)
	}
	if doc.Body != "BODY" {
		t.Errorf("expected body 'BODY', got %q", doc.Body)
	}
}

func TestParse_CRLF(t *testing.T) {
	doc := Parse("---\r\nname: Win\r\n---\r\nline one\r\nline two")
	if doc.Metadata.Name != "Win" {
		t.Errorf("expected name 'Win', got %q", doc.Metadata.Name)
	}
	if doc.Body != "line one\nline two" {
		t.Errorf("unexpected body %q", doc.Body)
	}
}

func TestParse_FoldedValue(t *testing.T) {
	doc := Parse("---\nname: Folded\ndescription:\n  line one\n  line two\nlicense: MIT\n---\n")

	if doc.Metadata.Description != "line one line two" {
		t.Errorf("expected folded description, got %q", doc.Metadata.Description)
	}
	if doc.Metadata.License != "MIT" {
		t.Errorf("expected license 'MIT', got %q", doc.Metadata.License)
	}
}

func TestParse_FoldedAtEndOfBlock(t *testing.T) {
	doc := Parse("---\ndescription:\n    deep indent\n\n    after blank\n---\nbody")
	if doc.Metadata.Description != "deep indent after blank" {
		t.Errorf("unexpected description %q", doc.Metadata.Description)
	}
}

func TestParse_BlockScalarIndicator(t *testing.T) {
	doc := Parse("---\ndescription: >-\n  folded by\n  indicator\n---\n")
	if doc.Metadata.Description != "folded by indicator" {
		t.Errorf("unexpected description %q", doc.Metadata.Description)
	}
}

func TestParse_AllowListAndQuotes(t *testing.T) {
	doc := Parse("---\nname: \"Quoted Name\"\nversion: 2\ncompatibility: 'claude, cursor'\nallowed-tools: Read Grep\nx-custom: ignored\n---\n")

	md := doc.Metadata
	if md.Name != "Quoted Name" {
		t.Errorf("expected unquoted name, got %q", md.Name)
	}
	if md.Compatibility != "claude, cursor" {
		t.Errorf("expected compatibility, got %q", md.Compatibility)
	}
	if md.AllowedTools != "Read Grep" {
		t.Errorf("expected allowed-tools, got %q", md.AllowedTools)
	}
}

func TestParse_NoFrontMatter(t *testing.T) {
	for _, in := range []string{
		"# Title\n\nSome text",
		"",
		"---",
		"--- \nname: x\n---\n",
		"---\nname: unterminated\n",
	} {
		doc := Parse(in)
		if doc.Metadata != (Metadata{}) {
			t.Errorf("input %q: expected empty metadata, got %+v", in, doc.Metadata)
		}
		if doc.Body != in {
			t.Errorf("input %q: expected whole document as body, got %q", in, doc.Body)
		}
	}
}

func TestParse_EmptyBody(t *testing.T) {
	doc := Parse("---\nname: only\n---")
	if doc.Metadata.Name != "only" {
		t.Errorf("expected name 'only', got %q", doc.Metadata.Name)
	}
	if doc.Body != "" {
		t.Errorf("expected empty body, got %q", doc.Body)
	}
}

func TestFallbackName(t *testing.T) {
	if got := FallbackName("intro\n# My Skill\n## Sub", "dir"); got != "My Skill" {
		t.Errorf("expected 'My Skill', got %q", got)
	}
	if got := FallbackName("## Only sub\ntext", "dir"); got != "dir" {
		t.Errorf("expected default 'dir', got %q", got)
	}
}

func TestFallbackDescription(t *testing.T) {
	body := "\n# Title\n---\n\n  First real line.  \nSecond"
	if got := FallbackDescription(body); got != "First real line." {
		t.Errorf("expected first real line, got %q", got)
	}

	long := strings.Repeat("é", 250)
	got := FallbackDescription(long)
	if n := len([]rune(got)); n != MaxDescriptionLen {
		t.Errorf("expected %d runes, got %d", MaxDescriptionLen, n)
	}

	if got := FallbackDescription("# only heading"); got != "" {
		t.Errorf("expected empty description, got %q", got)
	}
}

func TestDependencies(t *testing.T) {
	body := `# Skill

Intro

## dependencies

- git-basics
* Code Review
  - nested item
not a bullet

## Usage

- not a dependency
`
	deps := Dependencies(body)
	want := []string{"git-basics", "Code Review", "nested item"}
	if len(deps) != len(want) {
		t.Fatalf("expected %v, got %v", want, deps)
	}
	for i := range want {
		if deps[i] != want[i] {
			t.Errorf("dep %d: expected %q, got %q", i, want[i], deps[i])
		}
	}
}

func TestDependencies_None(t *testing.T) {
	if deps := Dependencies("# x\n- a\n- b"); len(deps) != 0 {
		t.Errorf("expected no dependencies, got %v", deps)
	}
}
