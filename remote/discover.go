package remote

import (
	"context"
	"encoding/json"
	"path"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"skillgap/logger"
	"skillgap/skill"
)

// skillMetadata is the optional metadata.json next to a skill document.
type skillMetadata struct {
	Abstract     string `json:"abstract"`
	Organization string `json:"organization"`
}

// Discover returns the skills published by one source.
func (c *Client) Discover(ctx context.Context, src skill.RepoSource) ([]skill.MarketplaceSkill, error) {
	src = normalizeSource(src)
	if src.SingleSkill {
		content, err := c.Raw(ctx, src, joinRepoPath(src.Path, c.cfg.SkillFile))
		if err != nil {
			return nil, err
		}
		return []skill.MarketplaceSkill{c.buildSkill(ctx, src, src.Path, content)}, nil
	}

	entries, err := c.Tree(ctx, src)
	if err != nil {
		return nil, err
	}
	dirs := skillDirs(entries, src.Path, c.cfg.SkillFile)

	found := make([]*skill.MarketplaceSkill, len(dirs))
	err = c.inBatches(ctx, len(dirs), func(i int) error {
		dir := dirs[i]
		content, err := c.Raw(ctx, src, joinRepoPath(dir, c.cfg.SkillFile))
		if err != nil {
			c.log.Warn("remote.skill_fetch_failed",
				logger.String("source", src.Key()),
				logger.String("skill_path", dir),
				logger.Err(err),
			)
			return nil
		}
		m := c.buildSkill(ctx, src, dir, content)
		found[i] = &m
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]skill.MarketplaceSkill, 0, len(found))
	for _, m := range found {
		if m != nil {
			out = append(out, *m)
		}
	}
	return out, nil
}

// skillDirs returns the directories under prefix that hold a skill document,
// in lexical order. A match nested inside another matched directory below
// prefix is folded into that ancestor. A document directly at prefix is its
// own entry and never absorbs the skills beside it.
func skillDirs(entries []TreeEntry, prefix, skillFile string) []string {
	prefix = strings.Trim(prefix, "/")
	pattern := "**/" + escapeMeta(skillFile)
	if prefix != "" {
		pattern = escapeMeta(prefix) + "/" + pattern
	}

	matched := make(map[string]bool)
	for _, e := range entries {
		if e.Type != "blob" {
			continue
		}
		if ok, _ := doublestar.Match(pattern, e.Path); !ok {
			continue
		}
		dir := path.Dir(e.Path)
		if dir == "." {
			dir = ""
		}
		matched[dir] = true
	}

	all := make([]string, 0, len(matched))
	for d := range matched {
		all = append(all, d)
	}
	sort.Strings(all)

	out := all[:0]
	for _, d := range all {
		if !hasMatchedAncestor(d, prefix, matched) {
			out = append(out, d)
		}
	}
	return out
}

// hasMatchedAncestor reports whether a matched directory lies strictly
// between prefix and dir.
func hasMatchedAncestor(dir, prefix string, matched map[string]bool) bool {
	for dir != prefix && dir != "" {
		parent := path.Dir(dir)
		if parent == "." {
			parent = ""
		}
		if parent == prefix {
			return false
		}
		if matched[parent] {
			return true
		}
		dir = parent
	}
	return false
}

func escapeMeta(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '{', '}', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (c *Client) buildSkill(ctx context.Context, src skill.RepoSource, skillPath, content string) skill.MarketplaceSkill {
	doc := skill.Parse(content)

	base := path.Base(skillPath)
	if skillPath == "" {
		base = src.Repo
	}

	name := strings.TrimSpace(doc.Metadata.Name)
	declared := name != ""
	desc := strings.TrimSpace(doc.Metadata.Description)

	if desc == "" {
		if meta, ok := c.metadata(ctx, src, skillPath); ok {
			desc = strings.TrimSpace(meta.Abstract)
			if !declared && strings.TrimSpace(meta.Organization) != "" {
				name = strings.TrimSpace(meta.Organization) + ": " + base
			}
		}
	}
	if name == "" {
		name = skill.FallbackName(doc.Body, base)
	}
	if desc == "" {
		desc = skill.FallbackDescription(doc.Body)
	}

	return skill.MarketplaceSkill{
		Name:          name,
		Description:   desc,
		License:       doc.Metadata.License,
		Compatibility: doc.Metadata.Compatibility,
		Source:        src,
		SkillPath:     skillPath,
		FullContent:   content,
		BodyContent:   doc.Body,
	}
}

// metadata fetches the sibling metadata.json; any failure yields ok=false.
func (c *Client) metadata(ctx context.Context, src skill.RepoSource, skillPath string) (skillMetadata, bool) {
	raw, err := c.Raw(ctx, src, joinRepoPath(skillPath, "metadata.json"))
	if err != nil {
		c.log.Debug("remote.metadata_skipped",
			logger.String("source", src.Key()),
			logger.String("skill_path", skillPath),
			logger.Err(err),
		)
		return skillMetadata{}, false
	}
	var meta skillMetadata
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return skillMetadata{}, false
	}
	return meta, true
}

func joinRepoPath(dir, name string) string {
	dir = strings.Trim(dir, "/")
	if dir == "" {
		return name
	}
	return dir + "/" + name
}
