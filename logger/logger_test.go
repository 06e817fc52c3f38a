package logger

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		" INFO ":  LevelInfo,
		"Warning": LevelWarn,
		"error":   LevelError,
		"bogus":   LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q): expected %v, got %v", in, want, got)
		}
	}
}

func TestFormatFields(t *testing.T) {
	got := FormatFields([]Field{String("skill", "Code Review"), Int("n", 3), Err(errors.New("boom"))})
	want := ` skill="Code Review" n=3 error=boom`
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
	if FormatFields(nil) != "" {
		t.Error("expected empty string for no fields")
	}
}

func TestConsoleLogger_LevelAndFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewConsoleWriter(&buf, LevelInfo, false).WithFields(String("component", "scan"))

	log.Debug("hidden")
	log.Warn("scan.root_skipped", String("root", "/ws/skills"))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug line should be filtered: %q", out)
	}
	if !strings.Contains(out, "[WARN ] scan.root_skipped component=scan root=/ws/skills") {
		t.Errorf("unexpected output %q", out)
	}
	if strings.Contains(out, "\033[") {
		t.Error("expected no color codes")
	}
}

func TestConsoleLogger_Color(t *testing.T) {
	var buf bytes.Buffer
	NewConsoleWriter(&buf, LevelDebug, true).Error("x")
	if !strings.Contains(buf.String(), "\033[31m[ERROR]\033[0m") {
		t.Errorf("expected red level tag, got %q", buf.String())
	}
}

func TestFileLogger_WritesDailyFile(t *testing.T) {
	dir := t.TempDir()
	log, err := NewFile(FileConfig{Dir: dir, Level: LevelDebug})
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	log.Info("remote.catalog_fetched", Int("skills", 4))
	if err := log.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	name := filepath.Join(dir, "skillgap-"+time.Now().Format("2006-01-02")+".log")
	data, err := os.ReadFile(name)
	if err != nil {
		t.Fatalf("expected log file %s: %v", name, err)
	}
	if !strings.Contains(string(data), "[INFO ] remote.catalog_fetched skills=4") {
		t.Errorf("unexpected content %q", data)
	}
	if files := log.LogFiles(); len(files) != 1 || files[0] != name {
		t.Errorf("unexpected log files %v", files)
	}
}

func TestFileLogger_SizeRotation(t *testing.T) {
	dir := t.TempDir()
	log, err := NewFile(FileConfig{Dir: dir, Prefix: "test", Level: LevelInfo})
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	log.files.maxBytes = 10

	log.Info("first line is longer than ten bytes")
	log.Info("second")
	log.Info("third")
	log.Close()
	log.Info("after close")

	day := time.Now().Format("2006-01-02")
	want := []string{
		filepath.Join(dir, "test-"+day+".1.log"),
		filepath.Join(dir, "test-"+day+".2.log"),
		filepath.Join(dir, "test-"+day+".log"),
	}
	files := log.LogFiles()
	if len(files) != len(want) {
		t.Fatalf("expected %v, got %v", want, files)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("file %d: expected %s, got %s", i, want[i], files[i])
		}
	}
	data, _ := os.ReadFile(want[1])
	if !strings.Contains(string(data), "third") || strings.Contains(string(data), "after close") {
		t.Errorf("unexpected content of %s: %q", want[1], data)
	}
}

func TestFileLogger_PrunesOldFiles(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "skillgap-2001-01-01.log")
	other := filepath.Join(dir, "unrelated-2001-01-01.log")
	for _, p := range []string{old, other} {
		if err := os.WriteFile(p, []byte("x\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	log, err := NewFile(FileConfig{Dir: dir, Level: LevelInfo, MaxAgeDays: 7})
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	defer log.Close()

	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Errorf("expected %s to be pruned", old)
	}
	if _, err := os.Stat(other); err != nil {
		t.Errorf("expected %s to survive: %v", other, err)
	}
}

func TestStructuredLogger_NDJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "events.ndjson")
	log, err := NewStructured(path, LevelInfo)
	if err != nil {
		t.Fatalf("NewStructured: %v", err)
	}
	log.WithFields(String("workspace", "/ws")).Info("scan.completed", Int("records", 2), String("msg", "shadow"))
	log.Debug("dropped")
	log.Close()
	log.Info("after close")

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var lines []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var m map[string]any
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("invalid json line %q: %v", sc.Text(), err)
		}
		lines = append(lines, m)
	}
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	entry := lines[0]
	if entry["msg"] != "scan.completed" || entry["level"] != "INFO" || entry["workspace"] != "/ws" {
		t.Errorf("unexpected entry %v", entry)
	}
	if entry["records"] != float64(2) || entry["field.msg"] != "shadow" {
		t.Errorf("unexpected fields %v", entry)
	}
}

type closeErrLogger struct{ Logger }

func (closeErrLogger) Close() error { return errors.New("close failed") }

func TestMulti(t *testing.T) {
	var a, b bytes.Buffer
	m := Multi(NewConsoleWriter(&a, LevelDebug, false), nil, NewConsoleWriter(&b, LevelWarn, false))
	m.Info("gap.imported")
	if !strings.Contains(a.String(), "gap.imported") || b.Len() != 0 {
		t.Errorf("unexpected fan-out: %q / %q", a.String(), b.String())
	}

	if err := Multi(Nop(), closeErrLogger{Nop()}).Close(); err == nil || err.Error() != "close failed" {
		t.Errorf("expected close error, got %v", err)
	}
}

func TestDuration(t *testing.T) {
	f := Duration("took", 1234567*time.Microsecond)
	if f.Value != "1.235s" {
		t.Errorf("unexpected duration value %v", f.Value)
	}
}

func TestLevelString(t *testing.T) {
	if LevelWarn.String() != "WARN" || Level(9).String() != "UNKNOWN" || Level(-1).String() != "UNKNOWN" {
		t.Errorf("unexpected level names %q %q", LevelWarn, Level(9))
	}
}

func TestMulti_WithFieldsReachesEverySink(t *testing.T) {
	var a, b bytes.Buffer
	m := Multi(NewConsoleWriter(&a, LevelDebug, false), NewConsoleWriter(&b, LevelDebug, false))
	m.WithFields(String("source", "acme/skills")).Warn("remote.source_failed")
	for i, out := range []string{a.String(), b.String()} {
		if !strings.Contains(out, "remote.source_failed source=acme/skills") {
			t.Errorf("sink %d: unexpected output %q", i, out)
		}
	}
}

func TestNop_WithFieldsStillDiscards(t *testing.T) {
	l := Nop().WithFields(Int("n", 1))
	l.Error("ignored")
	if err := l.Close(); err != nil {
		t.Errorf("unexpected close error %v", err)
	}
}

func TestErr_Nil(t *testing.T) {
	if f := Err(nil); f.Key != "error" || f.Value != "" {
		t.Errorf("unexpected field %+v", f)
	}
}
