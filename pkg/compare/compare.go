// Package compare implements type-aware equality between two field values.
//
// Compare decides whether a local and a remote value disagree. Text is
// compared case sensitively unless configured otherwise, numbers within an
// absolute tolerance, instants exactly, sequences element-wise (or as
// multisets), and mappings key by key. Null and absent values are equal to
// each other and conflict with anything concrete. Compare never panics:
// cyclic inputs and internal failures are reported as a conflict that cannot
// be proven equal.
package compare

import (
	"fmt"
	"math"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/agentstation/syncmerge/pkg/constants"
	"github.com/agentstation/syncmerge/pkg/value"
)

// Options tune a comparison.
type Options struct {
	// CaseInsensitive folds case before comparing text.
	CaseInsensitive bool
	// IgnoreWhitespace collapses runs of whitespace before comparing text.
	IgnoreWhitespace bool
	// Tolerance is the largest absolute numeric difference treated as equal.
	Tolerance float64
	// IgnoreOrder compares sequences as multisets.
	IgnoreOrder bool
}

// DefaultOptions returns case-sensitive, order-sensitive options with the
// default numeric tolerance.
func DefaultOptions() Options {
	return Options{Tolerance: constants.DefaultNumberTolerance}
}

// Result is the outcome of comparing two values.
type Result struct {
	HasConflict bool
	Local       value.Value
	Remote      value.Value
	// Uncomparable is set when equality could not be established at all.
	Uncomparable bool
	Reason       string
}

// Compare reports whether a and b conflict under opts.
func Compare(a, b value.Value, opts Options) (res Result) {
	res = Result{Local: value.Normalize(a), Remote: value.Normalize(b)}
	defer func() {
		if r := recover(); r != nil {
			res.HasConflict = true
			res.Uncomparable = true
			res.Reason = fmt.Sprintf("comparison failed: %v", r)
		}
	}()

	if value.CheckAcyclic(a) != nil || value.CheckAcyclic(b) != nil {
		res.HasConflict = true
		res.Uncomparable = true
		res.Reason = "cyclic value cannot be proven equal"
		return res
	}

	c := comparer{opts: opts}
	if c.equal(res.Local, res.Remote) {
		res.Reason = "values are equal"
		return res
	}
	res.HasConflict = true
	res.Reason = c.reason
	if res.Reason == "" {
		res.Reason = "values differ"
	}
	return res
}

// Equal is Compare reduced to a boolean.
func Equal(a, b value.Value, opts Options) bool {
	return !Compare(a, b, opts).HasConflict
}

type comparer struct {
	opts   Options
	reason string
}

func (c *comparer) differ(format string, args ...any) bool {
	if c.reason == "" {
		c.reason = fmt.Sprintf(format, args...)
	}
	return false
}

func (c *comparer) equal(a, b value.Value) bool {
	a, b = value.Normalize(a), value.Normalize(b)

	if ta, ok := instant(a); ok {
		if tb, ok := instant(b); ok {
			if ta.Equal(tb) {
				return true
			}
			return c.differ("instants differ by %s", tb.Sub(ta).Abs())
		}
	}

	if a.Kind() != b.Kind() {
		return c.differ("kinds differ: %s vs %s", a.Kind(), b.Kind())
	}

	switch x := a.(type) {
	case value.Null:
		return true
	case value.Bool:
		if x == b.(value.Bool) {
			return true
		}
		return c.differ("booleans differ")
	case value.Number:
		y := b.(value.Number)
		diff := math.Abs(float64(x) - float64(y))
		if diff <= c.opts.Tolerance {
			return true
		}
		return c.differ("numbers differ by %g", diff)
	case value.Text:
		if c.normalizeText(string(x)) == c.normalizeText(string(b.(value.Text))) {
			return true
		}
		return c.differ("text differs")
	case value.Time:
		// Handled by the instant check above.
		return true
	case value.Sequence:
		return c.equalSequence(x, b.(value.Sequence))
	case value.Mapping:
		y := b.(value.Mapping)
		for _, k := range unionKeys(x, y) {
			if !c.equal(x.Get(k), y.Get(k)) {
				return c.differ("key %q differs", k)
			}
		}
		return true
	default:
		return c.differ("unsupported value %T", a)
	}
}

func (c *comparer) equalSequence(a, b value.Sequence) bool {
	if len(a) != len(b) {
		return c.differ("lengths differ: %d vs %d", len(a), len(b))
	}
	if !c.opts.IgnoreOrder {
		for i := range a {
			if !c.equal(a[i], b[i]) {
				return c.differ("element %d differs", i)
			}
		}
		return true
	}

	used := make([]bool, len(b))
	for i, item := range a {
		found := false
		for j := range b {
			if used[j] {
				continue
			}
			probe := comparer{opts: c.opts}
			if probe.equal(item, b[j]) {
				used[j] = true
				found = true
				break
			}
		}
		if !found {
			return c.differ("element %d has no counterpart", i)
		}
	}
	return true
}

func (c *comparer) normalizeText(s string) string {
	if c.opts.IgnoreWhitespace {
		s = strings.Join(strings.Fields(s), " ")
	}
	if c.opts.CaseInsensitive {
		s = cases.Fold().String(s)
	}
	return s
}

// NormalizeText applies the text rules of opts to s.
func NormalizeText(s string, opts Options) string {
	c := comparer{opts: opts}
	return c.normalizeText(s)
}

// instant returns the time carried by a Time value or by RFC3339 text.
func instant(v value.Value) (time.Time, bool) {
	switch t := v.(type) {
	case value.Time:
		return t.Time, true
	case value.Text:
		s := strings.TrimSpace(string(t))
		if len(s) < len("2006-01-02T15:04:05Z") || s[4] != '-' {
			return time.Time{}, false
		}
		if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

func unionKeys(a, b value.Mapping) []string {
	keys := a.Keys()
	for _, k := range b.Keys() {
		if _, ok := a[k]; !ok {
			keys = append(keys, k)
		}
	}
	return keys
}
