package logger

import (
	"io"
	"os"
	"sync"

	"golang.org/x/term"
)

var levelColors = map[Level]string{
	LevelDebug: "\033[36m",
	LevelInfo:  "\033[32m",
	LevelWarn:  "\033[33m",
	LevelError: "\033[31m",
}

// ConsoleLogger writes human-readable, optionally colored log lines.
type ConsoleLogger struct {
	core
}

type consoleSink struct {
	mu    sync.Mutex
	w     io.Writer
	color bool
}

// NewConsole creates a console logger on stderr with the given minimum level.
func NewConsole(level Level, color bool) *ConsoleLogger {
	return NewConsoleWriter(os.Stderr, level, color)
}

// NewConsoleWriter creates a console logger writing to w.
func NewConsoleWriter(w io.Writer, level Level, color bool) *ConsoleLogger {
	return &ConsoleLogger{core{level: level, out: &consoleSink{w: w, color: color}}}
}

// ColorSupported reports whether f is a terminal and NO_COLOR is unset.
func ColorSupported(f *os.File) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

func (s *consoleSink) write(e entry) {
	tag := levelTag(e.level)
	if s.color {
		tag = levelColors[e.level] + tag + "\033[0m"
	}
	line := textLine(e, "15:04:05", tag)

	s.mu.Lock()
	defer s.mu.Unlock()
	io.WriteString(s.w, line)
}

// The console is owned by the process; closing is a no-op.
func (s *consoleSink) close() error { return nil }
