package gap

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"skillgap/fsutil"
)

// Trasher removes a path reversibly.
type Trasher interface {
	// Trash moves path out of the way and returns where it went.
	Trash(path string) (string, error)
}

// DirTrash is a freedesktop.org style trash: removed items go to files/ and
// a matching .trashinfo record goes to info/.
type DirTrash struct {
	Root string
	now  func() time.Time
}

// NewDirTrash creates a trash rooted at root. An empty root resolves to
// $XDG_DATA_HOME/Trash, falling back to ~/.local/share/Trash.
func NewDirTrash(root string) *DirTrash {
	if root == "" {
		root = defaultTrashRoot()
	}
	return &DirTrash{Root: root, now: time.Now}
}

func defaultTrashRoot() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "Trash")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "skillgap-trash")
	}
	return filepath.Join(home, ".local", "share", "Trash")
}

// Trash implements Trasher.
func (t *DirTrash) Trash(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if _, err := os.Lstat(abs); err != nil {
		return "", err
	}

	filesDir := filepath.Join(t.Root, "files")
	infoDir := filepath.Join(t.Root, "info")
	for _, d := range []string{filesDir, infoDir} {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return "", fmt.Errorf("prepare trash: %w", err)
		}
	}

	base := filepath.Base(abs)
	info := fmt.Sprintf("[Trash Info]\nPath=%s\nDeletionDate=%s\n",
		(&url.URL{Path: filepath.ToSlash(abs)}).EscapedPath(),
		t.now().Format("2006-01-02T15:04:05"),
	)

	for i := 1; ; i++ {
		name := base
		if i > 1 {
			name = base + "." + strconv.Itoa(i)
		}
		infoPath := filepath.Join(infoDir, name+".trashinfo")
		target := filepath.Join(filesDir, name)
		if fsutil.Exists(target) {
			continue
		}

		// The info file is created exclusively to claim the name.
		f, err := os.OpenFile(infoPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if os.IsExist(err) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("write trash info: %w", err)
		}
		_, werr := f.WriteString(info)
		cerr := f.Close()
		if werr != nil || cerr != nil {
			os.Remove(infoPath)
			return "", fmt.Errorf("write trash info: %w", errors.Join(werr, cerr))
		}

		if err := fsutil.Move(abs, target); err != nil {
			os.Remove(infoPath)
			return "", fmt.Errorf("move to trash: %w", err)
		}
		return target, nil
	}
}
