package fsutil

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestWithinRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "skills")
	if err := WithinRoot(root, filepath.Join(root, "pdf", "SKILL.md")); err != nil {
		t.Errorf("expected nested path to be accepted: %v", err)
	}
	if err := WithinRoot(root, filepath.Join(root, "..", "etc")); err == nil {
		t.Error("expected escaping path to be rejected")
	}
	if err := WithinRoot(root, root+"-sibling"); err == nil {
		t.Error("expected sibling with shared prefix to be rejected")
	}
}

func TestWriteFiles(t *testing.T) {
	dir := t.TempDir()
	files := []File{
		{Path: "SKILL.md", Data: []byte("# PDF")},
		{Path: "/scripts/extract.py", Data: []byte("print(1)")},
	}
	if err := WriteFiles(dir, files); err != nil {
		t.Fatalf("WriteFiles: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "scripts", "extract.py"))
	if err != nil || string(data) != "print(1)" {
		t.Errorf("unexpected nested file %q, %v", data, err)
	}

	if err := WriteFiles(dir, []File{{Path: "../escape.txt"}}); err == nil {
		t.Error("expected traversal to be rejected")
	}
	if err := WriteFiles(dir, []File{{Path: "/"}}); err == nil {
		t.Error("expected empty path to be rejected")
	}
}

func TestInstallFiles_FailureLeavesNothing(t *testing.T) {
	root := t.TempDir()
	dest := filepath.Join(root, "pdf")
	err := InstallFiles(dest, []File{
		{Path: "SKILL.md", Data: []byte("ok")},
		{Path: "../../outside", Data: []byte("bad")},
	})
	if err == nil {
		t.Fatal("expected install to fail")
	}
	entries, _ := os.ReadDir(root)
	if len(entries) != 0 {
		t.Errorf("expected no leftovers, found %d entries", len(entries))
	}
}

func TestInstallFiles_DestinationExists(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "pdf")
	if err := os.MkdirAll(dest, 0o755); err != nil {
		t.Fatal(err)
	}
	os.WriteFile(filepath.Join(dest, "keep.txt"), []byte("mine"), 0o644)

	err := InstallFiles(dest, []File{{Path: "SKILL.md", Data: []byte("new")}})
	if !errors.Is(err, ErrDestinationExists) {
		t.Fatalf("expected ErrDestinationExists, got %v", err)
	}
	if data, _ := os.ReadFile(filepath.Join(dest, "keep.txt")); string(data) != "mine" {
		t.Errorf("existing destination was modified: %q", data)
	}
	if Exists(filepath.Join(dest, "SKILL.md")) {
		t.Error("new file written into existing destination")
	}
}

func TestInstallDir(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src", "pdf")
	os.MkdirAll(filepath.Join(src, "ref"), 0o755)
	os.WriteFile(filepath.Join(src, "SKILL.md"), []byte("# PDF"), 0o644)
	os.WriteFile(filepath.Join(src, "ref", "notes.md"), []byte("notes"), 0o600)

	dest := filepath.Join(root, "out", "pdf")
	if err := InstallDir(src, dest); err != nil {
		t.Fatalf("InstallDir: %v", err)
	}
	info, err := os.Stat(filepath.Join(dest, "ref", "notes.md"))
	if err != nil {
		t.Fatalf("expected copied file: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("expected mode 0600, got %v", info.Mode().Perm())
	}

	if err := InstallDir(filepath.Join(src, "SKILL.md"), filepath.Join(root, "out", "x")); err == nil {
		t.Error("expected error for non-directory source")
	}
}

func TestMove(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "a", "pdf")
	os.MkdirAll(src, 0o755)
	os.WriteFile(filepath.Join(src, "SKILL.md"), []byte("x"), 0o644)

	dst := filepath.Join(root, "trash", "files", "pdf")
	if err := Move(src, dst); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if Exists(src) {
		t.Error("source should be gone")
	}
	if !Exists(filepath.Join(dst, "SKILL.md")) {
		t.Error("destination should hold the moved file")
	}
}

func TestMove_IntoOwnSubdirectory(t *testing.T) {
	src := filepath.Join(t.TempDir(), "pdf")
	os.MkdirAll(src, 0o755)
	os.WriteFile(filepath.Join(src, "SKILL.md"), []byte("x"), 0o644)

	if err := Move(src, filepath.Join(src, "trash", "files", "pdf")); err == nil {
		t.Fatal("expected moving a directory into itself to fail")
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		t.Fatalf("source should be intact: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "SKILL.md" {
		t.Errorf("source was modified: %v", entries)
	}
}

func TestMove_RenameErrorReturnedUnchanged(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "pdf")
	os.MkdirAll(src, 0o755)
	os.WriteFile(filepath.Join(src, "SKILL.md"), []byte("x"), 0o644)

	// Renaming a directory onto a non-empty directory fails without EXDEV.
	dst := filepath.Join(root, "taken")
	os.MkdirAll(dst, 0o755)
	os.WriteFile(filepath.Join(dst, "keep.txt"), []byte("mine"), 0o644)

	if err := Move(src, dst); err == nil {
		t.Fatal("expected rename onto a non-empty directory to fail")
	}
	if !Exists(filepath.Join(src, "SKILL.md")) {
		t.Error("source should be left in place")
	}
	if Exists(filepath.Join(dst, "SKILL.md")) {
		t.Error("destination should not receive a copy")
	}
}
