// Package value provides the closed set of value shapes that flow through
// conflict detection, merging and validation.
//
// A field value is exactly one of Null, Bool, Number, Text, Time, Sequence or
// Mapping. The interface is sealed so that every type switch over a Value can
// enumerate all cases:
//
//	switch v := v.(type) {
//	case value.Null:
//	case value.Bool:
//	case value.Number:
//	case value.Text:
//	case value.Time:
//	case value.Sequence:
//	case value.Mapping:
//	}
//
// A nil Value is treated as Null everywhere in this module.
package value

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Kind identifies the shape of a Value.
type Kind int

const (
	// KindNull is the absent/empty value.
	KindNull Kind = iota
	// KindBool is a boolean.
	KindBool
	// KindNumber is a float64 number.
	KindNumber
	// KindText is a string.
	KindText
	// KindTime is an instant.
	KindTime
	// KindSequence is an ordered list of values.
	KindSequence
	// KindMapping is a string-keyed map of values.
	KindMapping
)

// String returns the lower-case kind name used in configuration files.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindText:
		return "string"
	case KindTime:
		return "date"
	case KindSequence:
		return "array"
	case KindMapping:
		return "object"
	default:
		return "unknown"
	}
}

// ParseKind converts a configuration type name into a Kind.
// The boolean is false for unknown names.
func ParseKind(name string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "null", "nil":
		return KindNull, true
	case "boolean", "bool":
		return KindBool, true
	case "number", "float", "int", "integer":
		return KindNumber, true
	case "string", "text":
		return KindText, true
	case "date", "time", "datetime", "timestamp":
		return KindTime, true
	case "array", "list", "sequence":
		return KindSequence, true
	case "object", "map", "mapping":
		return KindMapping, true
	default:
		return KindNull, false
	}
}

// Value is one field value. The method set is sealed to this package.
type Value interface {
	Kind() Kind
	String() string
	sealed()
}

// Null is the empty value.
type Null struct{}

// Bool is a boolean value.
type Bool bool

// Number is a numeric value.
type Number float64

// Text is a string value.
type Text string

// Time is an instant.
type Time struct {
	time.Time
}

// Sequence is an ordered list of values.
type Sequence []Value

// Mapping is a string-keyed set of values.
type Mapping map[string]Value

func (Null) Kind() Kind     { return KindNull }
func (Bool) Kind() Kind     { return KindBool }
func (Number) Kind() Kind   { return KindNumber }
func (Text) Kind() Kind     { return KindText }
func (Time) Kind() Kind     { return KindTime }
func (Sequence) Kind() Kind { return KindSequence }
func (Mapping) Kind() Kind  { return KindMapping }

func (Null) sealed()     {}
func (Bool) sealed()     {}
func (Number) sealed()   {}
func (Text) sealed()     {}
func (Time) sealed()     {}
func (Sequence) sealed() {}
func (Mapping) sealed()  {}

func (Null) String() string { return "null" }

func (b Bool) String() string { return strconv.FormatBool(bool(b)) }

func (n Number) String() string { return strconv.FormatFloat(float64(n), 'f', -1, 64) }

func (t Text) String() string { return string(t) }

func (t Time) String() string { return t.Time.UTC().Format(time.RFC3339Nano) }

func (s Sequence) String() string {
	if len(s) == 0 {
		return "[]"
	}
	if isCyclic(s, 0, map[uintptr]bool{}) {
		return "[<cycle>]"
	}
	parts := make([]string, len(s))
	for i, item := range s {
		parts[i] = quoted(item)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func (m Mapping) String() string {
	if len(m) == 0 {
		return "{}"
	}
	if isCyclic(m, 0, map[uintptr]bool{}) {
		return "{<cycle>}"
	}
	parts := make([]string, 0, len(m))
	for _, k := range m.Keys() {
		parts = append(parts, fmt.Sprintf("%s: %s", k, quoted(m[k])))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Keys returns the mapping keys in sorted order.
func (m Mapping) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the value for key, or Null when absent.
func (m Mapping) Get(key string) Value {
	if v, ok := m[key]; ok && v != nil {
		return v
	}
	return Null{}
}

// Clone returns a shallow copy of the mapping.
func (m Mapping) Clone() Mapping {
	out := make(Mapping, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func quoted(v Value) string {
	if t, ok := v.(Text); ok {
		return strconv.Quote(string(t))
	}
	return Normalize(v).String()
}

// Normalize maps a nil Value to Null.
func Normalize(v Value) Value {
	if v == nil {
		return Null{}
	}
	return v
}

// KindOf returns the kind of v, treating nil as KindNull.
func KindOf(v Value) Kind {
	return Normalize(v).Kind()
}

// IsNull reports whether v is nil or Null.
func IsNull(v Value) bool {
	return KindOf(v) == KindNull
}

// IsEmpty reports whether v carries no content: null, blank text, or an
// empty sequence or mapping.
func IsEmpty(v Value) bool {
	switch t := Normalize(v).(type) {
	case Null:
		return true
	case Text:
		return strings.TrimSpace(string(t)) == ""
	case Sequence:
		return len(t) == 0
	case Mapping:
		return len(t) == 0
	default:
		return false
	}
}

// Size returns the length used by size-based heuristics: rune count for
// text, element count for sequences and key count for mappings. Other kinds
// have size 0 when null and 1 otherwise.
func Size(v Value) int {
	switch t := Normalize(v).(type) {
	case Null:
		return 0
	case Text:
		return len([]rune(string(t)))
	case Sequence:
		return len(t)
	case Mapping:
		return len(t)
	default:
		return 1
	}
}

// DisplayText extracts a human label from a value. Text is returned as is,
// mappings yield their name, displayName, value or key entry, and other
// kinds use their String form. Null yields "".
func DisplayText(v Value) string {
	switch t := Normalize(v).(type) {
	case Null:
		return ""
	case Text:
		return string(t)
	case Mapping:
		for _, key := range []string{"name", "displayName", "value", "key", "id"} {
			if s, ok := t[key].(Text); ok {
				return string(s)
			}
		}
		return t.String()
	default:
		return t.String()
	}
}
