package logger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// reservedKeys are the envelope keys of an NDJSON line. Fields that collide
// with them are written as "field.<key>".
var reservedKeys = map[string]bool{"time": true, "level": true, "msg": true}

// StructuredLogger appends one JSON object per entry to a file, for log
// shippers and jq.
type StructuredLogger struct {
	core
}

type ndjsonSink struct {
	mu  sync.Mutex
	f   *os.File
	enc *json.Encoder
}

// NewStructured opens (or creates) the NDJSON log at path.
func NewStructured(path string, level Level) (*StructuredLogger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open structured log: %w", err)
	}
	out := &ndjsonSink{f: f, enc: json.NewEncoder(f)}
	return &StructuredLogger{core{level: level, out: out}}, nil
}

func (s *ndjsonSink) write(e entry) {
	obj := make(map[string]any, len(e.fields)+3)
	for _, f := range e.fields {
		key := f.Key
		if reservedKeys[key] {
			key = "field." + key
		}
		obj[key] = f.Value
	}
	obj["time"] = e.at.UTC().Format(time.RFC3339Nano)
	obj["level"] = e.level.String()
	obj["msg"] = e.msg

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f != nil {
		s.enc.Encode(obj)
	}
}

func (s *ndjsonSink) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}
