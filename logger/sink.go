package logger

import (
	"fmt"
	"time"
)

// entry is one log call after level filtering and field merging.
type entry struct {
	at     time.Time
	level  Level
	msg    string
	fields []Field
}

// sink is a log destination. Implementations serialize their own writes and
// drop entries written after close.
type sink interface {
	write(e entry)
	close() error
}

// core implements Logger over a sink. Loggers derived via WithFields share
// the sink and therefore its lock and file handle.
type core struct {
	level  Level
	fields []Field
	out    sink
}

func (c *core) Debug(msg string, fields ...Field) { c.emit(LevelDebug, msg, fields) }
func (c *core) Info(msg string, fields ...Field)  { c.emit(LevelInfo, msg, fields) }
func (c *core) Warn(msg string, fields ...Field)  { c.emit(LevelWarn, msg, fields) }
func (c *core) Error(msg string, fields ...Field) { c.emit(LevelError, msg, fields) }

func (c *core) WithFields(fields ...Field) Logger {
	return &core{level: c.level, fields: mergeFields(c.fields, fields), out: c.out}
}

func (c *core) Close() error { return c.out.close() }

func (c *core) emit(level Level, msg string, fields []Field) {
	if level < c.level {
		return
	}
	c.out.write(entry{at: time.Now(), level: level, msg: msg, fields: mergeFields(c.fields, fields)})
}

func mergeFields(base, extra []Field) []Field {
	merged := make([]Field, 0, len(base)+len(extra))
	merged = append(merged, base...)
	return append(merged, extra...)
}

// textLine renders "<ts> <tag> msg k=v..." with the timestamp in layout.
func textLine(e entry, layout, tag string) string {
	return fmt.Sprintf("%s %s %s%s\n", e.at.Format(layout), tag, e.msg, FormatFields(e.fields))
}

func levelTag(level Level) string {
	return fmt.Sprintf("[%-5s]", level.String())
}
