// Package snapshot reads and writes record snapshot files.
//
// A snapshot file is YAML or JSON:
//
//	key: PROJ-1
//	modified: 2024-06-01T12:00:00Z
//	fields:
//	  summary: Fix login
//	  labels: [auth, bug]
package snapshot

import (
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/agentstation/syncmerge/pkg/detect"
	"github.com/agentstation/syncmerge/pkg/errors"
	"github.com/agentstation/syncmerge/pkg/value"
)

// File is the on-disk form of a snapshot.
type File struct {
	Key      string         `yaml:"key" json:"key"`
	Modified string         `yaml:"modified,omitempty" json:"modified,omitempty"`
	Fields   map[string]any `yaml:"fields" json:"fields"`
}

var timeLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

// Load reads a snapshot file.
func Load(path string) (*detect.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapIO("read", path, err)
	}
	return Parse(data, path)
}

// Parse decodes snapshot data. JSON is accepted as YAML.
func Parse(data []byte, name string) (*detect.Snapshot, error) {
	format := formatOf(name)
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.NewParseError(format, name, yaml.FormatError(err, false, true), err)
	}
	return f.Snapshot(name)
}

// Snapshot converts the file form into a detector snapshot.
func (f File) Snapshot(name string) (*detect.Snapshot, error) {
	s := &detect.Snapshot{Key: f.Key, Fields: value.Mapping{}}
	if f.Modified != "" {
		t, err := parseTime(f.Modified)
		if err != nil {
			return nil, errors.NewParseError(formatOf(name), name, "invalid modified timestamp "+f.Modified, err)
		}
		s.Modified = t
	}
	for k, raw := range f.Fields {
		v, err := value.FromAny(raw)
		if err != nil {
			return nil, errors.NewParseError(formatOf(name), name, "field "+k+": "+err.Error(), err)
		}
		s.Fields[k] = v
	}
	return s, nil
}

// FromSnapshot converts a snapshot into its file form.
func FromSnapshot(s *detect.Snapshot) File {
	f := File{Key: s.Key, Fields: make(map[string]any, len(s.Fields))}
	if !s.Modified.IsZero() {
		f.Modified = s.Modified.UTC().Format(time.RFC3339Nano)
	}
	for k, v := range s.Fields {
		f.Fields[k] = value.ToAny(v)
	}
	return f
}

// ParseValue decodes one inline value such as a command-line argument.
// Input that is not valid YAML is taken as plain text.
func ParseValue(s string) value.Value {
	var raw any
	if err := yaml.Unmarshal([]byte(s), &raw); err != nil {
		return value.Text(s)
	}
	v, err := value.FromAny(raw)
	if err != nil {
		return value.Text(s)
	}
	return v
}

func parseTime(s string) (time.Time, error) {
	var err error
	for _, layout := range timeLayouts {
		var t time.Time
		if t, err = time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}

func formatOf(name string) string {
	if strings.HasSuffix(strings.ToLower(name), ".json") {
		return "json"
	}
	return "yaml"
}
