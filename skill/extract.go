package skill

import (
	"bytes"
	"encoding/json"
	"errors"
)

// ErrNoRecord is returned when an argument carries no recognizable record.
var ErrNoRecord = errors.New("argument does not carry a skill record")

// Holder is implemented by wrapper values that carry a record, such as tree
// items or list rows.
type Holder interface {
	SkillRecord() *Record
}

// ExtractRecord pulls a record out of an action argument. The accepted
// shapes are tried in order: a Record, a *Record, a Holder, and a
// one-element slice of any of those.
func ExtractRecord(arg any) (Record, bool) {
	switch v := arg.(type) {
	case Record:
		return v, v.Path != "" || v.Name != ""
	case *Record:
		if v == nil {
			return Record{}, false
		}
		return *v, v.Path != "" || v.Name != ""
	case Holder:
		return ExtractRecord(v.SkillRecord())
	case []Record:
		if len(v) != 1 {
			return Record{}, false
		}
		return ExtractRecord(v[0])
	case []*Record:
		if len(v) != 1 {
			return Record{}, false
		}
		return ExtractRecord(v[0])
	case []any:
		if len(v) != 1 {
			return Record{}, false
		}
		return ExtractRecord(v[0])
	}
	return Record{}, false
}

type recordWrapper struct {
	Skill *Record `json:"skill"`
}

// DecodeRecordArg is the JSON counterpart of ExtractRecord. It accepts a
// record object, an object of the form {"skill": record}, or a one-element
// array of either.
func DecodeRecordArg(raw json.RawMessage) (Record, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Record{}, ErrNoRecord
	}

	if raw[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return Record{}, err
		}
		if len(items) != 1 {
			return Record{}, ErrNoRecord
		}
		return DecodeRecordArg(items[0])
	}

	var w recordWrapper
	if err := json.Unmarshal(raw, &w); err != nil {
		return Record{}, err
	}
	var arg any = w.Skill
	if w.Skill == nil {
		var r Record
		if err := json.Unmarshal(raw, &r); err != nil {
			return Record{}, err
		}
		arg = r
	}
	r, ok := ExtractRecord(arg)
	if !ok {
		return Record{}, ErrNoRecord
	}
	if r.NormalizedName == "" {
		r.NormalizedName = Normalize(r.Name)
	}
	return r, nil
}
