// Package config loads reconciliation rules files.
//
// A rules file is YAML (or JSON) describing comparison options, merge
// algorithm overrides, caller preferences and validation constraints.
// Names are checked when the file is turned into engine options, so a typo
// fails at startup instead of during analysis.
package config

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/agentstation/syncmerge"
	"github.com/agentstation/syncmerge/internal/matcher"
	"github.com/agentstation/syncmerge/pkg/compare"
	"github.com/agentstation/syncmerge/pkg/conflict"
	"github.com/agentstation/syncmerge/pkg/errors"
	"github.com/agentstation/syncmerge/pkg/merge"
	"github.com/agentstation/syncmerge/pkg/resolve"
	"github.com/agentstation/syncmerge/pkg/validate"
)

// Rules is the decoded rules file.
type Rules struct {
	TimeWindow            string                              `yaml:"time_window"`
	AnalysisTimeout       string                              `yaml:"analysis_timeout"`
	ConfirmationThreshold *float64                            `yaml:"confirmation_threshold"`
	HistoryLimit          *int                                `yaml:"history_limit"`
	Constraints           map[string]validate.FieldConstraint `yaml:"constraints"`
	Merge                 MergeRules                          `yaml:"merge"`
	Preferences           Preferences                         `yaml:"preferences"`
	Compare               CompareRules                        `yaml:"compare"`
	Validation            ValidationRules                     `yaml:"validation"`
}

// MergeRules configures the merge engine.
type MergeRules struct {
	Algorithms             map[string]string         `yaml:"algorithms"`
	Priorities             map[string]map[string]int `yaml:"priorities"`
	Blacklist              []string                  `yaml:"blacklist"`
	PreferLocalOnCollision bool                      `yaml:"prefer_local_on_collision"`
	Markers                *merge.Markers            `yaml:"markers"`
}

// Preferences are the caller preferences applied to every analysis.
type Preferences struct {
	DefaultStrategy string            `yaml:"default_strategy"`
	FieldStrategies map[string]string `yaml:"field_strategies"`
	AlwaysNewer     bool              `yaml:"always_newer"`
	AlwaysLonger    bool              `yaml:"always_longer"`
}

// CompareRules configures equality.
type CompareRules struct {
	Defaults *CompareField          `yaml:"defaults"`
	Fields   map[string]CompareField `yaml:"fields"`
}

// CompareField is the file form of compare.Options.
type CompareField struct {
	CaseSensitive    *bool    `yaml:"case_sensitive"`
	IgnoreWhitespace bool     `yaml:"ignore_whitespace"`
	Tolerance        *float64 `yaml:"tolerance"`
	IgnoreOrder      bool     `yaml:"ignore_order"`
}

// ValidationRules toggles validator behaviour.
type ValidationRules struct {
	AutoFix  *bool `yaml:"auto_fix"`
	Builtins *bool `yaml:"builtins"`
}

// Load reads and decodes a rules file.
func Load(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapIO("read", path, err)
	}
	return Parse(data, path)
}

// Parse decodes rules. Unknown keys are rejected.
func Parse(data []byte, name string) (*Rules, error) {
	r := &Rules{}
	if err := yaml.UnmarshalWithOptions(data, r, yaml.DisallowUnknownField()); err != nil {
		return nil, errors.NewParseError("yaml", name, yaml.FormatError(err, false, true), err)
	}
	return r, nil
}

// Options converts the rules into engine options. Unknown algorithm,
// strategy or type names fail with a configuration error.
func (r *Rules) Options() ([]syncmerge.Option, error) {
	if r == nil {
		return nil, nil
	}
	var opts []syncmerge.Option

	if r.TimeWindow != "" {
		d, err := parseDuration("time_window", r.TimeWindow)
		if err != nil {
			return nil, err
		}
		opts = append(opts, syncmerge.WithTimeWindow(d))
	}
	if r.AnalysisTimeout != "" {
		d, err := parseDuration("analysis_timeout", r.AnalysisTimeout)
		if err != nil {
			return nil, err
		}
		opts = append(opts, syncmerge.WithAnalysisTimeout(d))
	}
	if r.ConfirmationThreshold != nil {
		opts = append(opts, syncmerge.WithConfirmationThreshold(*r.ConfirmationThreshold))
	}
	if r.HistoryLimit != nil {
		opts = append(opts, syncmerge.WithHistoryLimit(*r.HistoryLimit))
	}

	mergeOpts, err := r.Merge.options()
	if err != nil {
		return nil, err
	}
	opts = append(opts, syncmerge.WithMergeOptions(mergeOpts...))

	prefs, err := r.Preferences.context()
	if err != nil {
		return nil, err
	}
	opts = append(opts, syncmerge.WithPreferences(prefs))

	if r.Compare.Defaults != nil {
		opts = append(opts, syncmerge.WithCompareOptions(r.Compare.Defaults.options()))
	}
	for _, name := range sortedKeys(r.Compare.Fields) {
		opts = append(opts, syncmerge.WithFieldCompareOptions(name, r.Compare.Fields[name].options()))
	}

	vopts := r.validatorOptions()
	if _, err := validate.NewValidator(vopts...); err != nil {
		return nil, err
	}
	opts = append(opts, syncmerge.WithValidatorOptions(vopts...))
	return opts, nil
}

func (m MergeRules) options() ([]merge.Option, error) {
	var opts []merge.Option
	for _, name := range sortedKeys(m.Algorithms) {
		a, err := merge.ParseAlgorithm(m.Algorithms[name])
		if err != nil {
			return nil, errors.NewConfigError("rules", "merge.algorithms."+name, err.Error(), err)
		}
		opts = append(opts, merge.WithFieldAlgorithm(name, a))
	}
	for _, name := range sortedKeys(m.Priorities) {
		opts = append(opts, merge.WithPriorityTable(name, m.Priorities[name]))
	}
	if len(m.Blacklist) > 0 {
		set, err := matcher.NewSet(m.Blacklist)
		if err != nil {
			return nil, errors.NewConfigError("rules", "merge.blacklist", err.Error(), err)
		}
		opts = append(opts, merge.WithBlacklist(set))
	}
	if m.PreferLocalOnCollision {
		opts = append(opts, merge.WithPreferLocal(true))
	}
	if m.Markers != nil {
		opts = append(opts, merge.WithMarkers(*m.Markers))
	}
	return opts, nil
}

func (p Preferences) context() (resolve.Context, error) {
	c := resolve.Context{AlwaysUseNewer: p.AlwaysNewer, AlwaysUseLonger: p.AlwaysLonger}
	if p.DefaultStrategy != "" {
		s, err := conflict.ParseStrategy(p.DefaultStrategy)
		if err != nil {
			return c, errors.NewConfigError("rules", "preferences.default_strategy", err.Error(), err)
		}
		c.DefaultStrategy = s
	}
	if len(p.FieldStrategies) > 0 {
		c.FieldStrategies = make(map[string]conflict.Strategy, len(p.FieldStrategies))
		for _, name := range sortedKeys(p.FieldStrategies) {
			s, err := conflict.ParseStrategy(p.FieldStrategies[name])
			if err != nil {
				return c, errors.NewConfigError("rules", "preferences.field_strategies."+name, err.Error(), err)
			}
			c.FieldStrategies[name] = s
		}
	}
	return c, nil
}

func (f CompareField) options() compare.Options {
	o := compare.DefaultOptions()
	o.CaseInsensitive = f.CaseSensitive != nil && !*f.CaseSensitive
	o.IgnoreWhitespace = f.IgnoreWhitespace
	o.IgnoreOrder = f.IgnoreOrder
	if f.Tolerance != nil {
		o.Tolerance = *f.Tolerance
	}
	return o
}

func (r *Rules) validatorOptions() []validate.Option {
	var opts []validate.Option
	for _, name := range sortedKeys(r.Constraints) {
		opts = append(opts, validate.WithConstraint(name, r.Constraints[name]))
	}
	if r.Validation.AutoFix != nil {
		opts = append(opts, validate.WithAutoFix(*r.Validation.AutoFix))
	}
	if r.Validation.Builtins != nil && !*r.Validation.Builtins {
		opts = append(opts, validate.WithoutBuiltins())
	}
	return opts
}

func parseDuration(key, s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, errors.NewConfigError("rules", key, fmt.Sprintf("invalid duration %q", s), err)
	}
	return d, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
