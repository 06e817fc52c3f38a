package skill

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxDescriptionLen bounds descriptions taken from the document body.
const MaxDescriptionLen = 200

// Metadata is the allow-listed subset of front-matter keys.
type Metadata struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	License       string `json:"license,omitempty"`
	Compatibility string `json:"compatibility,omitempty"`
	AllowedTools  string `json:"allowed_tools,omitempty"`
}

// Document is a parsed skill document.
type Document struct {
	Metadata Metadata
	Body     string
}

var (
	keyLineRe    = regexp.MustCompile(`^([A-Za-z0-9]+(?:-[A-Za-z0-9]+)*):\s*(.*)$`)
	h1Re         = regexp.MustCompile(`^#\s+(.+?)\s*#*\s*$`)
	depHeadingRe = regexp.MustCompile(`(?i)^##\s+dependencies\s*$`)
	sectionEndRe = regexp.MustCompile(`^#{1,2}\s`)
	bulletRe     = regexp.MustCompile(`^\s*[-*]\s+(.+)$`)
)

// Parse splits doc into front matter and body. The front matter is a
// restricted line-oriented key/value block, not general YAML: only the keys
// in Metadata are read and everything else is ignored. A document without a
// well-formed block yields empty metadata and the whole document as body.
func Parse(doc string) Document {
	text := strings.ReplaceAll(doc, "\r\n", "\n")
	if !strings.HasPrefix(text, "---\n") {
		return Document{Body: doc}
	}
	rest := text[len("---\n"):]

	var block, body string
	found := false
	for off := 0; off <= len(rest); {
		end := strings.IndexByte(rest[off:], '\n')
		var line string
		if end < 0 {
			line = rest[off:]
		} else {
			line = rest[off : off+end]
		}
		if line == "---" {
			block = rest[:off]
			if end < 0 {
				body = ""
			} else {
				body = rest[off+end+1:]
			}
			found = true
			break
		}
		if end < 0 {
			break
		}
		off += end + 1
	}
	if !found {
		return Document{Body: doc}
	}
	return Document{Metadata: parseBlock(block), Body: body}
}

func parseBlock(block string) Metadata {
	var (
		md      Metadata
		folding string
		parts   []string
	)
	flush := func() {
		if folding != "" {
			md.set(folding, strings.TrimSpace(strings.Join(parts, " ")))
		}
		folding, parts = "", nil
	}

	for _, line := range strings.Split(block, "\n") {
		if m := keyLineRe.FindStringSubmatch(line); m != nil {
			flush()
			key, val := strings.ToLower(m[1]), strings.TrimSpace(m[2])
			if val == "" || isBlockIndicator(val) {
				folding = key
				continue
			}
			md.set(key, unquote(val))
			continue
		}
		if folding == "" {
			continue
		}
		if strings.HasPrefix(line, "  ") || strings.HasPrefix(line, "\t") {
			if t := strings.TrimSpace(line); t != "" {
				parts = append(parts, t)
			}
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		// Unindented non-key text ends the folded value.
		flush()
	}
	flush()
	return md
}

func (m *Metadata) set(key, val string) {
	switch key {
	case "name":
		m.Name = val
	case "description":
		m.Description = val
	case "license":
		m.License = val
	case "compatibility":
		m.Compatibility = val
	case "allowed-tools":
		m.AllowedTools = val
	}
}

func isBlockIndicator(v string) bool {
	switch v {
	case "|", ">", "|-", ">-", "|+", ">+":
		return true
	}
	return false
}

func unquote(v string) string {
	if len(v) >= 2 {
		if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
			return v[1 : len(v)-1]
		}
	}
	return v
}

// FallbackName returns the first level-1 heading of body, or def.
func FallbackName(body, def string) string {
	for _, line := range splitLines(body) {
		if m := h1Re.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			return m[1]
		}
	}
	return def
}

// FallbackDescription returns the first non-empty line of body that is
// neither a heading nor a delimiter, truncated to MaxDescriptionLen runes.
func FallbackDescription(body string) string {
	for _, line := range splitLines(body) {
		t := strings.TrimSpace(line)
		if t == "" || strings.HasPrefix(t, "#") || t == "---" {
			continue
		}
		return truncateRunes(t, MaxDescriptionLen)
	}
	return ""
}

// Dependencies returns the bullet items listed under a "## Dependencies"
// heading, in document order.
func Dependencies(body string) []string {
	var (
		deps []string
		in   bool
	)
	for _, line := range splitLines(body) {
		t := strings.TrimSpace(line)
		if depHeadingRe.MatchString(t) {
			in = true
			continue
		}
		if !in {
			continue
		}
		if sectionEndRe.MatchString(t) {
			break
		}
		if m := bulletRe.FindStringSubmatch(line); m != nil {
			if d := strings.TrimSpace(m[1]); d != "" {
				deps = append(deps, d)
			}
		}
	}
	return deps
}

func splitLines(s string) []string {
	return strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
