package logger

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Level orders log severity; entries below a logger's level are dropped.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = [...]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
}

// levelAliases maps config spellings to levels.
var levelAliases = map[string]Level{
	"debug":   LevelDebug,
	"info":    LevelInfo,
	"warn":    LevelWarn,
	"warning": LevelWarn,
	"error":   LevelError,
}

func (l Level) String() string {
	if l < 0 || int(l) >= len(levelNames) {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// ParseLevel reads a level from config. Unrecognised input means info.
func ParseLevel(s string) Level {
	if l, ok := levelAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return l
	}
	return LevelInfo
}

// Field is one key/value attached to an entry.
type Field struct {
	Key   string
	Value any
}

func field[T any](key string, v T) Field { return Field{Key: key, Value: v} }

func String(key, val string) Field      { return field(key, val) }
func Int(key string, val int) Field     { return field(key, val) }
func Int64(key string, val int64) Field { return field(key, val) }
func Bool(key string, val bool) Field   { return field(key, val) }
func Any(key string, val any) Field     { return field(key, val) }

// Duration records d rounded to milliseconds, as text.
func Duration(key string, d time.Duration) Field {
	return field(key, d.Round(time.Millisecond).String())
}

// Err records err under "error"; a nil error records an empty string.
func Err(err error) Field {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return field("error", msg)
}

// Logger is implemented by every sink-backed logger, Multi and Nop.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	WithFields(fields ...Field) Logger
	Close() error
}

// Multi sends every call to each non-nil logger in order. Close closes all
// of them and joins their errors.
func Multi(loggers ...Logger) Logger {
	out := make(fanout, 0, len(loggers))
	for _, l := range loggers {
		if l != nil {
			out = append(out, l)
		}
	}
	return out
}

type fanout []Logger

func (f fanout) Debug(msg string, fields ...Field) { f.each(func(l Logger) { l.Debug(msg, fields...) }) }
func (f fanout) Info(msg string, fields ...Field)  { f.each(func(l Logger) { l.Info(msg, fields...) }) }
func (f fanout) Warn(msg string, fields ...Field)  { f.each(func(l Logger) { l.Warn(msg, fields...) }) }
func (f fanout) Error(msg string, fields ...Field) { f.each(func(l Logger) { l.Error(msg, fields...) }) }

func (f fanout) each(fn func(Logger)) {
	for _, l := range f {
		fn(l)
	}
}

func (f fanout) WithFields(fields ...Field) Logger {
	derived := make(fanout, len(f))
	for i, l := range f {
		derived[i] = l.WithFields(fields...)
	}
	return derived
}

func (f fanout) Close() error {
	var errs []error
	f.each(func(l Logger) {
		if err := l.Close(); err != nil {
			errs = append(errs, err)
		}
	})
	return errors.Join(errs...)
}

// Nop returns a logger that discards everything.
func Nop() Logger { return discard{} }

type discard struct{}

func (discard) Debug(string, ...Field)     {}
func (discard) Info(string, ...Field)      {}
func (discard) Warn(string, ...Field)      {}
func (discard) Error(string, ...Field)     {}
func (discard) WithFields(...Field) Logger { return discard{} }
func (discard) Close() error               { return nil }

// FormatFields renders fields as " key=value" pairs. Strings holding
// whitespace or quotes are quoted.
func FormatFields(fields []Field) string {
	var b strings.Builder
	for _, f := range fields {
		b.WriteByte(' ')
		b.WriteString(f.Key)
		b.WriteByte('=')
		b.WriteString(fieldText(f.Value))
	}
	return b.String()
}

func fieldText(v any) string {
	if s, ok := v.(string); ok {
		if strings.ContainsAny(s, " \t\n\"") {
			return strconv.Quote(s)
		}
		return s
	}
	return fmt.Sprint(v)
}
