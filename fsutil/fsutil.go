// Package fsutil holds the filesystem helpers behind skill installs:
// staged directory copies, batch file materialization and cross-device moves.
package fsutil

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// ErrDestinationExists is returned when an install target is already present.
var ErrDestinationExists = errors.New("destination already exists")

// File is one relative-path/content pair to materialize under a directory.
type File struct {
	Path string `json:"path"`
	Data []byte `json:"-"`
}

// Exists reports whether p exists (following symlinks).
func Exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

// WithinRoot returns an error when target does not lie inside root.
func WithinRoot(root, target string) error {
	root = filepath.Clean(root)
	target = filepath.Clean(target)
	if root == "" || target == "" {
		return fmt.Errorf("empty path")
	}
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("path %q escapes %q", target, root)
	}
	return nil
}

// WriteFiles writes every file under dir, creating intermediate
// directories. Paths are slash-separated and must stay inside dir.
func WriteFiles(dir string, files []File) error {
	for _, f := range files {
		rel := filepath.FromSlash(strings.TrimLeft(f.Path, "/"))
		if rel == "" || rel == "." {
			return fmt.Errorf("invalid file path %q", f.Path)
		}
		target := filepath.Join(dir, rel)
		if err := WithinRoot(dir, target); err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("create dir for %s: %w", f.Path, err)
		}
		if err := os.WriteFile(target, f.Data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", f.Path, err)
		}
	}
	return nil
}

// InstallFiles materializes files as a new directory dest. The files are
// written to a staging directory first and renamed into place, so a failure
// leaves nothing behind. An existing dest is never overwritten.
func InstallFiles(dest string, files []File) error {
	return stage(dest, func(staging string) error {
		if err := os.MkdirAll(staging, 0o755); err != nil {
			return err
		}
		return WriteFiles(staging, files)
	})
}

// InstallDir copies the directory src to a new directory dest with the same
// staging guarantees as InstallFiles.
func InstallDir(src, dest string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("source %s is not a directory", src)
	}
	return stage(dest, func(staging string) error {
		return CopyDir(src, staging)
	})
}

func stage(dest string, fill func(staging string) error) error {
	dest = filepath.Clean(dest)
	if Exists(dest) {
		return fmt.Errorf("%w: %s", ErrDestinationExists, dest)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("prepare destination root: %w", err)
	}

	staging := dest + ".incoming." + strconv.FormatInt(time.Now().UnixNano(), 10)
	defer os.RemoveAll(staging)

	if err := fill(staging); err != nil {
		return fmt.Errorf("stage files: %w", err)
	}
	if Exists(dest) {
		return fmt.Errorf("%w: %s", ErrDestinationExists, dest)
	}
	if err := os.Rename(staging, dest); err != nil {
		return fmt.Errorf("move into place: %w", err)
	}
	return nil
}

// CopyDir recursively copies src into dst, preserving file modes.
func CopyDir(src, dst string) error {
	src = filepath.Clean(src)
	dst = filepath.Clean(dst)
	return filepath.WalkDir(src, func(p string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if d.Type()&os.ModeSymlink != 0 {
			link, err := os.Readlink(p)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		}
		return copyFile(p, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Move renames src to dst, falling back to copy and remove only when the
// rename crosses filesystems. dst may not lie inside src.
func Move(src, dst string) error {
	if WithinRoot(src, dst) == nil {
		return fmt.Errorf("cannot move %s into itself (%s)", src, dst)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	err := os.Rename(src, dst)
	if err == nil || !errors.Is(err, syscall.EXDEV) {
		return err
	}

	info, statErr := os.Lstat(src)
	if statErr != nil {
		return err
	}
	if info.IsDir() {
		if cpErr := CopyDir(src, dst); cpErr != nil {
			os.RemoveAll(dst)
			return fmt.Errorf("copy after rename failed (%v): %w", err, cpErr)
		}
	} else if cpErr := copyFile(src, dst); cpErr != nil {
		os.Remove(dst)
		return fmt.Errorf("copy after rename failed (%v): %w", err, cpErr)
	}
	return os.RemoveAll(src)
}
