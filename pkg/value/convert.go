package value

import (
	"fmt"
	"math"
	"reflect"
	"time"

	"github.com/agentstation/syncmerge/pkg/errors"
)

// maxDepth bounds nesting when walking values.
const maxDepth = 256

// FromAny converts decoded JSON/YAML data into a Value. Supported inputs are
// nil, bool, all integer and float kinds, string, time.Time, slices/arrays of
// anything supported, and maps keyed by strings (or by values that format as
// strings). Cyclic inputs are rejected with errors.ErrCyclicValue.
func FromAny(in any) (Value, error) {
	return fromAny(in, 0, map[uintptr]bool{})
}

// MustFromAny is FromAny that panics on error. Intended for tests and literals.
func MustFromAny(in any) Value {
	v, err := FromAny(in)
	if err != nil {
		panic(err)
	}
	return v
}

func fromAny(in any, depth int, seen map[uintptr]bool) (Value, error) {
	if depth > maxDepth {
		return nil, errors.ErrCyclicValue
	}
	switch t := in.(type) {
	case nil:
		return Null{}, nil
	case Value:
		if err := CheckAcyclic(t); err != nil {
			return nil, err
		}
		return t, nil
	case bool:
		return Bool(t), nil
	case string:
		return Text(t), nil
	case time.Time:
		return Time{Time: t}, nil
	case *time.Time:
		if t == nil {
			return Null{}, nil
		}
		return Time{Time: *t}, nil
	case float64:
		return Number(t), nil
	case float32:
		return Number(t), nil
	case int:
		return Number(t), nil
	case int64:
		return Number(t), nil
	case int32:
		return Number(t), nil
	case uint64:
		return Number(t), nil
	}

	rv := reflect.ValueOf(in)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return Null{}, nil
		}
		return fromAny(rv.Elem().Interface(), depth+1, seen)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Number(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return Number(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return Number(rv.Float()), nil
	case reflect.String:
		return Text(rv.String()), nil
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice {
			if rv.IsNil() {
				return Sequence{}, nil
			}
			if rv.Len() > 0 {
				ptr := rv.Pointer()
				if seen[ptr] {
					return nil, errors.ErrCyclicValue
				}
				seen[ptr] = true
				defer delete(seen, ptr)
			}
		}
		out := make(Sequence, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			item, err := fromAny(rv.Index(i).Interface(), depth+1, seen)
			if err != nil {
				return nil, err
			}
			out[i] = item
		}
		return out, nil
	case reflect.Map:
		if rv.IsNil() {
			return Mapping{}, nil
		}
		ptr := rv.Pointer()
		if seen[ptr] {
			return nil, errors.ErrCyclicValue
		}
		seen[ptr] = true
		defer delete(seen, ptr)

		out := make(Mapping, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			item, err := fromAny(iter.Value().Interface(), depth+1, seen)
			if err != nil {
				return nil, err
			}
			out[fmt.Sprint(iter.Key().Interface())] = item
		}
		return out, nil
	default:
		return nil, errors.NewValidationError("value", in, fmt.Sprintf("unsupported type %T", in))
	}
}

// ToAny converts a Value into plain Go data suitable for JSON/YAML encoding.
// Cycles are cut and rendered as nil. NaN and infinities become the strings
// "NaN", "+Inf" and "-Inf".
func ToAny(v Value) any {
	return toAny(v, 0, map[uintptr]bool{})
}

func toAny(v Value, depth int, seen map[uintptr]bool) any {
	if depth > maxDepth {
		return nil
	}
	switch t := Normalize(v).(type) {
	case Null:
		return nil
	case Bool:
		return bool(t)
	case Number:
		f := float64(t)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return t.String()
		}
		if f == float64(int64(f)) {
			return int64(f)
		}
		return f
	case Text:
		return string(t)
	case Time:
		return t.Time.UTC().Format(time.RFC3339Nano)
	case Sequence:
		if ptr, ok := seqPointer(t); ok {
			if seen[ptr] {
				return nil
			}
			seen[ptr] = true
			defer delete(seen, ptr)
		}
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = toAny(item, depth+1, seen)
		}
		return out
	case Mapping:
		ptr := reflect.ValueOf(t).Pointer()
		if seen[ptr] {
			return nil
		}
		seen[ptr] = true
		defer delete(seen, ptr)
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = toAny(item, depth+1, seen)
		}
		return out
	default:
		return nil
	}
}

// CheckAcyclic returns errors.ErrCyclicValue when v contains itself or is
// nested deeper than the supported limit.
func CheckAcyclic(v Value) error {
	if isCyclic(v, 0, map[uintptr]bool{}) {
		return errors.ErrCyclicValue
	}
	return nil
}

func isCyclic(v Value, depth int, seen map[uintptr]bool) bool {
	if depth > maxDepth {
		return true
	}
	switch t := Normalize(v).(type) {
	case Sequence:
		ptr, ok := seqPointer(t)
		if !ok {
			return false
		}
		if seen[ptr] {
			return true
		}
		seen[ptr] = true
		defer delete(seen, ptr)
		for _, item := range t {
			if isCyclic(item, depth+1, seen) {
				return true
			}
		}
	case Mapping:
		if t == nil {
			return false
		}
		ptr := reflect.ValueOf(t).Pointer()
		if seen[ptr] {
			return true
		}
		seen[ptr] = true
		defer delete(seen, ptr)
		for _, item := range t {
			if isCyclic(item, depth+1, seen) {
				return true
			}
		}
	}
	return false
}

// seqPointer identifies a non-empty sequence by the address of its backing array.
func seqPointer(s Sequence) (uintptr, bool) {
	if len(s) == 0 {
		return 0, false
	}
	return reflect.ValueOf(s).Pointer(), true
}
