// Package matcher compiles glob and regex patterns used to scope validation
// rules to field names and to exclude values from union merges.
//
// A pattern may carry an explicit "glob:" or "regex:" prefix. Unprefixed
// patterns are auto-detected: regex metacharacters select Regex, anything
// else is treated as a glob. Matchers are immutable once compiled and safe
// for concurrent use.
package matcher

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// PatternType represents the type of pattern matching to use.
type PatternType int

const (
	// Glob uses shell-style glob patterns (*, ?, []).
	Glob PatternType = iota
	// Regex uses regular expressions.
	Regex
	// Auto detects the pattern type from prefixes and metacharacters.
	Auto
)

// String returns a string representation of the PatternType.
func (pt PatternType) String() string {
	switch pt {
	case Glob:
		return "glob"
	case Regex:
		return "regex"
	case Auto:
		return "auto"
	default:
		return "unknown"
	}
}

// Matcher reports whether a field name or value matches a pattern.
type Matcher interface {
	// Match checks if the input matches the pattern.
	Match(input string) bool
	// Pattern returns the original pattern string.
	Pattern() string
	// Type returns the resolved pattern type.
	Type() PatternType
}

// Options configures the matcher behavior.
type Options struct {
	// CaseInsensitive makes matching case-insensitive
	CaseInsensitive bool
	// Anchored adds ^ and $ to regex patterns if not present
	Anchored bool
}

// DefaultOptions matches field names the way rule tables expect: case
// insensitive and anchored.
func DefaultOptions() *Options {
	return &Options{
		CaseInsensitive: true,
		Anchored:        true,
	}
}

type matcher struct {
	pattern         string
	patternType     PatternType
	compiled        *regexp.Regexp
	glob            string
	caseInsensitive bool
}

// New creates a new Matcher with the specified pattern and type.
func New(patternType PatternType, pattern string, opts ...*Options) (Matcher, error) {
	options := DefaultOptions()
	if len(opts) > 0 && opts[0] != nil {
		options = opts[0]
	}

	m := &matcher{pattern: pattern, patternType: patternType}
	body := pattern
	if patternType == Auto {
		m.patternType, body = detect(pattern)
	}

	if err := m.compile(body, options); err != nil {
		return nil, fmt.Errorf("failed to compile pattern %q: %w", pattern, err)
	}
	return m, nil
}

// MustNew creates a new Matcher and panics if there's an error.
func MustNew(patternType PatternType, pattern string, opts ...*Options) Matcher {
	m, err := New(patternType, pattern, opts...)
	if err != nil {
		panic(err)
	}
	return m
}

func (m *matcher) compile(body string, opts *Options) error {
	m.caseInsensitive = opts.CaseInsensitive

	switch m.patternType {
	case Glob:
		m.glob = body
		if opts.CaseInsensitive {
			m.glob = strings.ToLower(body)
		}
		if _, err := path.Match(m.glob, ""); err != nil {
			return fmt.Errorf("invalid glob pattern: %w", err)
		}
	case Regex:
		expr := body
		if opts.Anchored {
			if !strings.HasPrefix(expr, "^") {
				expr = "^(?:" + expr
			} else {
				expr = "^(?:" + strings.TrimPrefix(expr, "^")
			}
			expr = strings.TrimSuffix(expr, "$") + ")$"
		}
		if opts.CaseInsensitive && !strings.HasPrefix(expr, "(?i)") {
			expr = "(?i)" + expr
		}
		compiled, err := regexp.Compile(expr)
		if err != nil {
			return fmt.Errorf("invalid regex pattern: %w", err)
		}
		m.compiled = compiled
	default:
		return fmt.Errorf("unsupported pattern type: %v", m.patternType)
	}
	return nil
}

// Match checks if the input matches the pattern.
func (m *matcher) Match(input string) bool {
	switch m.patternType {
	case Glob:
		if m.caseInsensitive {
			input = strings.ToLower(input)
		}
		matched, _ := path.Match(m.glob, input)
		return matched
	case Regex:
		return m.compiled.MatchString(input)
	default:
		return false
	}
}

// Pattern returns the original pattern string.
func (m *matcher) Pattern() string {
	return m.pattern
}

// Type returns the pattern type being used.
func (m *matcher) Type() PatternType {
	return m.patternType
}

// detect resolves an Auto pattern and strips any explicit prefix.
func detect(pattern string) (PatternType, string) {
	switch {
	case strings.HasPrefix(pattern, "regex:"):
		return Regex, strings.TrimPrefix(pattern, "regex:")
	case strings.HasPrefix(pattern, "glob:"):
		return Glob, strings.TrimPrefix(pattern, "glob:")
	case IsRegexPattern(pattern):
		return Regex, pattern
	default:
		return Glob, pattern
	}
}

// IsRegexPattern reports whether a pattern uses regex-only metacharacters.
func IsRegexPattern(pattern string) bool {
	for _, indicator := range []string{
		"^", "$", "\\d", "\\w", "\\s", "(?", "{", "}", "+", "|", "(", ")",
	} {
		if strings.Contains(pattern, indicator) {
			return true
		}
	}
	return false
}

// Set matches an input against several patterns. The zero Set matches nothing.
type Set struct {
	matchers []Matcher
}

// NewSet compiles each pattern with Auto detection.
func NewSet(patterns []string, opts ...*Options) (*Set, error) {
	s := &Set{matchers: make([]Matcher, 0, len(patterns))}
	for _, pattern := range patterns {
		m, err := New(Auto, pattern, opts...)
		if err != nil {
			return nil, err
		}
		s.matchers = append(s.matchers, m)
	}
	return s, nil
}

// MustNewSet is NewSet that panics on an invalid pattern.
func MustNewSet(patterns ...string) *Set {
	s, err := NewSet(patterns)
	if err != nil {
		panic(err)
	}
	return s
}

// Match returns true if any pattern matches.
func (s *Set) Match(input string) bool {
	if s == nil {
		return false
	}
	for _, m := range s.matchers {
		if m.Match(input) {
			return true
		}
	}
	return false
}

// Len returns the number of patterns in the set.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.matchers)
}

// Patterns returns the original pattern strings.
func (s *Set) Patterns() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.matchers))
	for i, m := range s.matchers {
		out[i] = m.Pattern()
	}
	return out
}

// Filter returns the inputs that match any pattern, preserving order.
func (s *Set) Filter(inputs ...string) []string {
	results := make([]string, 0, len(inputs))
	for _, input := range inputs {
		if s.Match(input) {
			results = append(results, input)
		}
	}
	return results
}
