package validate

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/agentstation/syncmerge/pkg/compare"
	"github.com/agentstation/syncmerge/pkg/errors"
	"github.com/agentstation/syncmerge/pkg/value"
)

// FieldConstraint declares what a field's resolved value must satisfy.
// Zero values disable the corresponding check.
type FieldConstraint struct {
	Required      bool     `yaml:"required" json:"required,omitempty"`
	Type          string   `yaml:"type" json:"type,omitempty"`
	MinLength     int      `yaml:"min_length" json:"min_length,omitempty"`
	MaxLength     int      `yaml:"max_length" json:"max_length,omitempty"`
	Pattern       string   `yaml:"pattern" json:"pattern,omitempty"`
	AllowedValues []string `yaml:"allowed_values" json:"allowed_values,omitempty"`
	Message       string   `yaml:"message" json:"message,omitempty"`

	// Custom is an extra predicate. Returning an error downgrades the check
	// to a warning.
	Custom func(value.Value) (bool, error) `yaml:"-" json:"-"`
}

type compiledConstraint struct {
	FieldConstraint
	kind    value.Kind
	hasKind bool
	pattern *regexp.Regexp
}

func compileConstraint(name string, c FieldConstraint) (compiledConstraint, error) {
	out := compiledConstraint{FieldConstraint: c}
	if c.Type != "" {
		k, ok := value.ParseKind(c.Type)
		if !ok {
			return out, errors.NewConfigError("validator", "constraints."+name+".type", fmt.Sprintf("unknown type %q", c.Type), nil)
		}
		out.kind, out.hasKind = k, true
	}
	if c.MinLength < 0 || c.MaxLength < 0 || (c.MaxLength > 0 && c.MinLength > c.MaxLength) {
		return out, errors.NewConfigError("validator", "constraints."+name, "invalid length bounds", nil)
	}
	re, err := compilePattern(name, c.Pattern)
	if err != nil {
		return out, err
	}
	out.pattern = re
	return out, nil
}

// check appends constraint violations for v to o.
func (c compiledConstraint) check(name string, v value.Value, o *Outcome) {
	issue := func(rule string, sev Severity, msg string) {
		if c.Message != "" {
			msg = c.Message
		}
		o.addError(Issue{Field: name, Rule: rule, Message: msg, Severity: sev})
	}

	if value.IsEmpty(v) {
		if c.Required {
			issue("required", SeverityCritical, fmt.Sprintf("%s is required", name))
			return
		}
		if value.IsNull(v) {
			return
		}
	}

	if c.hasKind && value.KindOf(v) != c.kind {
		issue("type", SeverityHigh, fmt.Sprintf("%s must be %s, got %s", name, c.kind, value.KindOf(v)))
	}

	if n, ok := lengthOf(v); ok {
		if c.MinLength > 0 && n < c.MinLength {
			issue("min-length", SeverityMedium, fmt.Sprintf("%s is shorter than %d", name, c.MinLength))
		}
		if c.MaxLength > 0 && n > c.MaxLength {
			issue("max-length", SeverityMedium, fmt.Sprintf("%s is longer than %d", name, c.MaxLength))
		}
	}

	if c.pattern != nil {
		if t, ok := v.(value.Text); ok && !c.pattern.MatchString(string(t)) {
			issue("pattern", SeverityMedium, fmt.Sprintf("%s does not match %s", name, c.pattern))
		}
	}

	if len(c.AllowedValues) > 0 && !c.allowed(v) {
		issue("allowed-values", SeverityMedium, fmt.Sprintf("%s must be one of %s", name, strings.Join(c.AllowedValues, ", ")))
	}

	if c.Custom != nil {
		ok, err := safePredicate(func() (bool, error) { return c.Custom(v) })
		switch {
		case err != nil:
			o.warn("custom constraint on %s could not be evaluated: %v", name, err)
		case !ok:
			issue("custom", SeverityMedium, fmt.Sprintf("%s failed custom constraint", name))
		}
	}
}

func (c compiledConstraint) allowed(v value.Value) bool {
	check := func(item value.Value) bool {
		s := value.DisplayText(item)
		for _, a := range c.AllowedValues {
			if compare.Equal(value.Text(s), value.Text(a), compare.Options{CaseInsensitive: true, IgnoreWhitespace: true}) {
				return true
			}
		}
		return false
	}
	if seq, ok := v.(value.Sequence); ok {
		for _, item := range seq {
			if !check(item) {
				return false
			}
		}
		return true
	}
	return check(v)
}

func lengthOf(v value.Value) (int, bool) {
	switch t := value.Normalize(v).(type) {
	case value.Text:
		return utf8.RuneCountInString(string(t)), true
	case value.Sequence:
		return len(t), true
	case value.Mapping:
		return len(t), true
	default:
		return 0, false
	}
}

// BusinessRule is a cross-field predicate over the record's field values.
// Predicate returns false when the rule is violated.
type BusinessRule struct {
	Name      string
	Message   string
	Severity  Severity
	Predicate func(fields value.Mapping) (bool, error)
}

func safePredicate(fn func() (bool, error)) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok, err = false, fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
