// Package validate checks a proposed resolution before it is persisted.
//
// A Validator runs its rules in a fixed order: built-in rules scoped by field
// name patterns, caller rules, per-field constraints, and finally business
// rules over the whole record. Rules that fail and declare an auto-fix are
// corrected in place unless they are critical. Only critical errors make an
// outcome invalid; lower severities are reported but do not block.
//
// Validators are built once with NewValidator and never change afterward.
package validate

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/rs/zerolog"

	"github.com/agentstation/syncmerge/internal/matcher"
	"github.com/agentstation/syncmerge/pkg/errors"
	"github.com/agentstation/syncmerge/pkg/field"
	"github.com/agentstation/syncmerge/pkg/logging"
	"github.com/agentstation/syncmerge/pkg/merge"
	"github.com/agentstation/syncmerge/pkg/value"
)

// Severity ranks validation errors.
type Severity string

// Validation severities, most severe first.
const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Rank orders severities; critical is highest.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// ParseSeverity converts a configuration name into a Severity.
func ParseSeverity(name string) (Severity, error) {
	s := Severity(field.Normalize(name))
	if s.Rank() == 0 {
		return "", errors.NewValidationError("severity", name, "unknown severity")
	}
	return s, nil
}

// Issue is one validation error.
type Issue struct {
	Field        string   `json:"field" yaml:"field"`
	Rule         string   `json:"rule" yaml:"rule"`
	Message      string   `json:"message" yaml:"message"`
	Severity     Severity `json:"severity" yaml:"severity"`
	SuggestedFix string   `json:"suggested_fix,omitempty" yaml:"suggested_fix,omitempty"`
}

// Outcome is the result of validating one value.
type Outcome struct {
	IsValid        bool
	Errors         []Issue
	Warnings       []string
	Suggestions    []string
	AutoFixApplied bool
	// CorrectedValue holds the auto-fixed value when AutoFixApplied is set.
	CorrectedValue value.Value
}

// HasErrors reports whether any error was recorded.
func (o *Outcome) HasErrors() bool {
	return len(o.Errors) > 0
}

// Worst returns the most severe error, if any.
func (o *Outcome) Worst() (Issue, bool) {
	if len(o.Errors) == 0 {
		return Issue{}, false
	}
	return o.Errors[0], true
}

func (o *Outcome) addError(i Issue) {
	o.Errors = append(o.Errors, i)
}

func (o *Outcome) warn(format string, args ...any) {
	o.Warnings = append(o.Warnings, fmt.Sprintf(format, args...))
}

func (o *Outcome) finish() *Outcome {
	sort.SliceStable(o.Errors, func(i, j int) bool {
		return o.Errors[i].Severity.Rank() > o.Errors[j].Severity.Rank()
	})
	o.IsValid = true
	for _, e := range o.Errors {
		if e.Severity == SeverityCritical {
			o.IsValid = false
			break
		}
	}
	return o
}

// Validator validates resolutions. Create one with NewValidator.
type Validator struct {
	rules       []Rule
	constraints map[string]compiledConstraint
	business    []BusinessRule
	autoFix     bool
	builtins    bool
	markers     merge.Markers
	logger      *zerolog.Logger
}

// Option configures a Validator.
type Option func(*Validator) error

// WithConstraint declares constraints for a field.
func WithConstraint(name string, c FieldConstraint) Option {
	return func(v *Validator) error {
		compiled, err := compileConstraint(name, c)
		if err != nil {
			return err
		}
		v.constraints[field.Normalize(name)] = compiled
		return nil
	}
}

// WithBusinessRule adds a cross-field rule.
func WithBusinessRule(r BusinessRule) Option {
	return func(v *Validator) error {
		if r.Name == "" || r.Predicate == nil {
			return errors.NewConfigError("validator", "business_rules", "rule needs a name and a predicate", nil)
		}
		if r.Severity == "" {
			r.Severity = SeverityHigh
		}
		if r.Severity.Rank() == 0 {
			return errors.NewConfigError("validator", "business_rules."+r.Name, fmt.Sprintf("unknown severity %q", r.Severity), nil)
		}
		v.business = append(v.business, r)
		return nil
	}
}

// WithRule adds a field-scoped rule that runs after the built-in rules.
func WithRule(r Rule) Option {
	return func(v *Validator) error {
		if r.Name == "" || r.Check == nil {
			return errors.NewConfigError("validator", "rules", "rule needs a name and a check", nil)
		}
		if r.Severity == "" {
			r.Severity = SeverityMedium
		}
		if r.Severity.Rank() == 0 {
			return errors.NewConfigError("validator", "rules."+r.Name, fmt.Sprintf("unknown severity %q", r.Severity), nil)
		}
		v.rules = append(v.rules, r)
		return nil
	}
}

// WithAutoFix enables or disables auto-correction. It is enabled by default.
func WithAutoFix(enabled bool) Option {
	return func(v *Validator) error {
		v.autoFix = enabled
		return nil
	}
}

// WithoutBuiltins disables the built-in rule set.
func WithoutBuiltins() Option {
	return func(v *Validator) error {
		v.builtins = false
		return nil
	}
}

// WithMarkers sets the conflict markers the marker rule looks for.
func WithMarkers(m merge.Markers) Option {
	return func(v *Validator) error {
		v.markers = m
		return nil
	}
}

// WithLogger sets the logger for rule failures.
func WithLogger(l *zerolog.Logger) Option {
	return func(v *Validator) error {
		v.logger = logging.OrNop(l)
		return nil
	}
}

// NewValidator builds a Validator. Malformed constraints or rules fail here
// with a configuration error.
func NewValidator(opts ...Option) (*Validator, error) {
	v := &Validator{
		constraints: make(map[string]compiledConstraint),
		autoFix:     true,
		builtins:    true,
		markers:     merge.DefaultMarkers(),
		logger:      logging.OrNop(nil),
	}
	for _, opt := range opts {
		if err := opt(v); err != nil {
			return nil, err
		}
	}
	custom := v.rules
	if v.builtins {
		v.rules = append(builtinRules(v.markers), custom...)
	}
	return v, nil
}

// MustNewValidator is NewValidator that panics on configuration errors.
func MustNewValidator(opts ...Option) *Validator {
	v, err := NewValidator(opts...)
	if err != nil {
		panic(err)
	}
	return v
}

// Rules returns the names of the active rules in evaluation order.
func (v *Validator) Rules() []string {
	names := make([]string, len(v.rules))
	for i, r := range v.rules {
		names[i] = r.Name
	}
	return names
}

// Constraint returns the constraint declared for a field.
func (v *Validator) Constraint(name string) (FieldConstraint, bool) {
	c, ok := v.constraints[field.Normalize(name)]
	return c.FieldConstraint, ok
}

// fieldSet compiles field-name patterns for rule scoping.
func fieldSet(patterns ...string) *matcher.Set {
	return matcher.MustNewSet(patterns...)
}

// compilePattern compiles a constraint regex.
func compilePattern(name, pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, errors.NewConfigError("validator", "constraints."+name+".pattern", "invalid pattern", err)
	}
	return re, nil
}
