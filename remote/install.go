package remote

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"skillgap/fsutil"
	"skillgap/logger"
	"skillgap/skill"
)

// inBatches runs fn for indices [0,n) in windows of BatchSize. Each window
// is awaited before the next starts, with BatchDelay between windows.
func (c *Client) inBatches(ctx context.Context, n int, fn func(i int) error) error {
	size := c.cfg.BatchSize
	for start := 0; start < n; start += size {
		if start > 0 {
			if err := c.sleep(ctx, c.cfg.BatchDelay); err != nil {
				return err
			}
		}
		end := min(start+size, n)

		var g errgroup.Group
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error { return fn(i) })
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
	return nil
}

// DownloadFiles fetches base/rel for every rel in rels. Any failing file
// fails the whole call.
func (c *Client) DownloadFiles(ctx context.Context, src skill.RepoSource, base string, rels []string) ([]fsutil.File, error) {
	files := make([]fsutil.File, len(rels))
	err := c.inBatches(ctx, len(rels), func(i int) error {
		content, err := c.Raw(ctx, src, joinRepoPath(base, rels[i]))
		if err != nil {
			return fmt.Errorf("download %s: %w", rels[i], err)
		}
		files[i] = fsutil.File{Path: rels[i], Data: []byte(content)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// SkillFiles lists the blob paths under skillPath, relative to it.
func (c *Client) SkillFiles(ctx context.Context, src skill.RepoSource, skillPath string) ([]string, error) {
	entries, err := c.Tree(ctx, src)
	if err != nil {
		return nil, err
	}
	prefix := strings.Trim(skillPath, "/")
	if prefix != "" {
		prefix += "/"
	}

	var rels []string
	for _, e := range entries {
		if e.Type != "blob" || !strings.HasPrefix(e.Path, prefix) {
			continue
		}
		rels = append(rels, strings.TrimPrefix(e.Path, prefix))
	}
	sort.Strings(rels)
	return rels, nil
}

// InstallSkill downloads every file of m and materializes it as
// targetRoot/<skill dir>. Nothing is written unless all files arrive, and an
// existing destination is left untouched.
func (c *Client) InstallSkill(ctx context.Context, m skill.MarketplaceSkill, targetRoot string) (string, error) {
	src := normalizeSource(m.Source)
	dirName := path.Base(strings.Trim(m.SkillPath, "/"))
	if dirName == "." || dirName == "/" || dirName == "" {
		dirName = skill.Normalize(m.Name)
	}
	if dirName == "" {
		return "", fmt.Errorf("cannot derive directory name for skill %q", m.Name)
	}
	dest := filepath.Join(targetRoot, dirName)
	if fsutil.Exists(dest) {
		return "", fmt.Errorf("%w: %s", fsutil.ErrDestinationExists, dest)
	}

	rels, err := c.SkillFiles(ctx, src, m.SkillPath)
	if err != nil {
		return "", fmt.Errorf("list skill files: %w", err)
	}
	if len(rels) == 0 {
		return "", fmt.Errorf("no files under %s in %s: %w", m.SkillPath, src.Key(), ErrNotFound)
	}

	files, err := c.DownloadFiles(ctx, src, m.SkillPath, rels)
	if err != nil {
		return "", err
	}
	if err := fsutil.InstallFiles(dest, files); err != nil {
		return "", err
	}

	c.log.Info("remote.skill_installed",
		logger.String("skill", m.Name),
		logger.String("source", src.Key()),
		logger.String("dest", dest),
		logger.Int("files", len(files)),
	)
	return dest, nil
}

// WriteFiles writes relative-path/content pairs under dir.
func WriteFiles(dir string, files []fsutil.File) error {
	return fsutil.WriteFiles(dir, files)
}
