package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

const dayLayout = "2006-01-02"

// FileConfig configures the file logger.
type FileConfig struct {
	Dir        string
	Prefix     string // file name prefix, default "skillgap"
	Level      Level
	MaxSizeMB  int // start a new file for the day past this size, 0 = unlimited
	MaxAgeDays int // delete files older than N days, 0 = keep
}

// FileLogger writes to <prefix>-<day>.log in Dir, starting a new file each
// day and continuing in <prefix>-<day>.<n>.log once MaxSizeMB is reached.
type FileLogger struct {
	core
	files *rotatingFile
}

type rotatingFile struct {
	mu       sync.Mutex
	dir      string
	prefix   string
	maxBytes int64
	maxAge   time.Duration
	f        *os.File
	day      string
	seq      int
	size     int64
	closed   bool
}

// NewFile creates the log directory and opens today's file.
func NewFile(cfg FileConfig) (*FileLogger, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "skillgap"
	}

	r := &rotatingFile{
		dir:      cfg.Dir,
		prefix:   prefix,
		maxBytes: int64(cfg.MaxSizeMB) << 20,
		maxAge:   time.Duration(cfg.MaxAgeDays) * 24 * time.Hour,
	}
	now := time.Now()
	day := now.Format(dayLayout)
	if err := r.open(day, r.lastSeq(day)); err != nil {
		return nil, err
	}
	r.prune(now)
	return &FileLogger{core: core{level: cfg.Level, out: r}, files: r}, nil
}

// LogFiles returns every file this logger's prefix owns in Dir, sorted.
func (l *FileLogger) LogFiles() []string {
	l.files.mu.Lock()
	defer l.files.mu.Unlock()
	files := l.files.owned()
	sort.Strings(files)
	return files
}

func (r *rotatingFile) path(day string, seq int) string {
	if seq == 0 {
		return filepath.Join(r.dir, r.prefix+"-"+day+".log")
	}
	return filepath.Join(r.dir, fmt.Sprintf("%s-%s.%d.log", r.prefix, day, seq))
}

func (r *rotatingFile) open(day string, seq int) error {
	f, err := os.OpenFile(r.path(day, seq), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	r.f, r.day, r.seq, r.size = f, day, seq, info.Size()
	return nil
}

// owned lists the files matching <prefix>-*.log.
func (r *rotatingFile) owned() []string {
	matches, err := filepath.Glob(filepath.Join(r.dir, r.prefix+"-*.log"))
	if err != nil {
		return nil
	}
	return matches
}

// lastSeq returns the highest size-rotation sequence already on disk for day.
func (r *rotatingFile) lastSeq(day string) int {
	last := 0
	stem := r.prefix + "-" + day + "."
	for _, p := range r.owned() {
		rest, ok := strings.CutPrefix(filepath.Base(p), stem)
		if !ok {
			continue
		}
		if n, err := strconv.Atoi(strings.TrimSuffix(rest, ".log")); err == nil && n > last {
			last = n
		}
	}
	return last
}

func (r *rotatingFile) write(e entry) {
	line := textLine(e, "2006-01-02 15:04:05", levelTag(e.level))

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}

	day := e.at.Format(dayLayout)
	switch {
	case day != r.day:
		r.roll(day, 0)
		r.prune(e.at)
	case r.maxBytes > 0 && r.size >= r.maxBytes:
		r.roll(day, r.seq+1)
	}
	if r.f == nil {
		return
	}
	n, _ := io.WriteString(r.f, line)
	r.size += int64(n)
}

// roll swaps the open file. Must be called with r.mu held.
func (r *rotatingFile) roll(day string, seq int) {
	if r.f != nil {
		r.f.Close()
		r.f = nil
	}
	if err := r.open(day, seq); err != nil {
		fmt.Fprintf(os.Stderr, "file logger rotate failed: %v\n", err)
	}
}

// prune removes owned files whose day is older than maxAge.
func (r *rotatingFile) prune(now time.Time) {
	if r.maxAge <= 0 {
		return
	}
	cutoff := now.Add(-r.maxAge)
	for _, p := range r.owned() {
		rest := strings.TrimPrefix(filepath.Base(p), r.prefix+"-")
		if len(rest) < len(dayLayout) {
			continue
		}
		day, err := time.ParseInLocation(dayLayout, rest[:len(dayLayout)], now.Location())
		if err != nil || !day.Before(cutoff) {
			continue
		}
		os.Remove(p)
	}
}

func (r *rotatingFile) close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	if r.f == nil {
		return nil
	}
	err := r.f.Close()
	r.f = nil
	return err
}
