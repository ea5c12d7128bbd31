package validate

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/agentstation/syncmerge/internal/matcher"
	"github.com/agentstation/syncmerge/pkg/conflict"
	"github.com/agentstation/syncmerge/pkg/constants"
	"github.com/agentstation/syncmerge/pkg/field"
	"github.com/agentstation/syncmerge/pkg/merge"
	"github.com/agentstation/syncmerge/pkg/resolve"
	"github.com/agentstation/syncmerge/pkg/value"
)

// RuleContext is what a rule sees besides the value under test.
type RuleContext struct {
	Field      string
	Record     *conflict.Record
	Resolution *conflict.Resolution
}

// Rule is a field-scoped check. Check returns a non-empty message when the
// value violates the rule. AutoFix, when set, returns a corrected value.
type Rule struct {
	Name string
	// Fields limits the rule to matching field names. Nil applies everywhere.
	Fields   *matcher.Set
	Severity Severity
	// WarnOnly reports violations as warnings instead of errors.
	WarnOnly     bool
	SuggestedFix string
	Check        func(v value.Value, rc RuleContext) string
	AutoFix      func(v value.Value, rc RuleContext) (value.Value, error)
}

func (r Rule) applies(name string) bool {
	return r.Fields == nil || r.Fields.Match(name)
}

var whitespaceRun = regexp.MustCompile(`\s+`)

func builtinRules(markers merge.Markers) []Rule {
	return []Rule{
		{
			Name:         "required-field-not-empty",
			Fields:       fieldSet("summary", "title", "status", "issuetype"),
			Severity:     SeverityCritical,
			SuggestedFix: "keep the non-empty side",
			Check: func(v value.Value, rc RuleContext) string {
				if value.IsEmpty(v) {
					return fmt.Sprintf("%s must not be empty", rc.Field)
				}
				return ""
			},
		},
		{
			Name:     "type-match",
			Severity: SeverityHigh,
			Check: func(v value.Value, rc RuleContext) string {
				if rc.Record == nil || value.IsNull(v) {
					return ""
				}
				lk, rk := value.KindOf(rc.Record.LocalValue), value.KindOf(rc.Record.RemoteValue)
				if lk != rk || lk == value.KindNull {
					return ""
				}
				if k := value.KindOf(v); k != lk {
					return fmt.Sprintf("expected %s like both sides, got %s", lk, k)
				}
				return ""
			},
		},
		{
			Name:     "string-length",
			Severity: SeverityMedium,
			Check: func(v value.Value, rc RuleContext) string {
				t, ok := v.(value.Text)
				if !ok {
					return ""
				}
				if limit := maxLength(rc.Field); utf8.RuneCountInString(string(t)) > limit {
					return fmt.Sprintf("text exceeds %d characters", limit)
				}
				return ""
			},
			AutoFix: func(v value.Value, rc RuleContext) (value.Value, error) {
				t, ok := v.(value.Text)
				if !ok {
					return v, fmt.Errorf("cannot truncate %s", value.KindOf(v))
				}
				runes := []rune(string(t))
				return value.Text(string(runes[:maxLength(rc.Field)])), nil
			},
		},
		{
			Name:         "label-format",
			Fields:       fieldSet("labels", "tags"),
			Severity:     SeverityMedium,
			SuggestedFix: "replace spaces in labels with hyphens",
			Check: func(v value.Value, rc RuleContext) string {
				items, ok := v.(value.Sequence)
				if !ok {
					return ""
				}
				for _, item := range items {
					if t, ok := item.(value.Text); ok && strings.ContainsFunc(string(t), isSpace) {
						return fmt.Sprintf("label %q contains whitespace", string(t))
					}
				}
				return ""
			},
			AutoFix: func(v value.Value, rc RuleContext) (value.Value, error) {
				items, ok := v.(value.Sequence)
				if !ok {
					return v, fmt.Errorf("labels must be a list, got %s", value.KindOf(v))
				}
				fixed := make(value.Sequence, len(items))
				for i, item := range items {
					if t, ok := item.(value.Text); ok {
						item = value.Text(whitespaceRun.ReplaceAllString(strings.TrimSpace(string(t)), "-"))
					}
					fixed[i] = item
				}
				return fixed, nil
			},
		},
		{
			Name:         "allowed-priority",
			Fields:       fieldSet("priority"),
			Severity:     SeverityLow,
			SuggestedFix: "use a known priority name",
			Check: func(v value.Value, rc RuleContext) string {
				if value.IsNull(v) {
					return ""
				}
				if _, ok := resolve.PriorityRank(v); !ok {
					return fmt.Sprintf("unknown priority %q", value.DisplayText(v))
				}
				return ""
			},
		},
		{
			Name:     "status-workflow",
			Fields:   fieldSet("status"),
			Severity: SeverityLow,
			Check: func(v value.Value, rc RuleContext) string {
				if value.IsNull(v) {
					return ""
				}
				if _, ok := resolve.StatusRank(v); !ok {
					return fmt.Sprintf("unknown status %q", value.DisplayText(v))
				}
				if rc.Record == nil {
					return ""
				}
				name := resolve.NormalizeName(value.DisplayText(v))
				if name != resolve.NormalizeName(value.DisplayText(rc.Record.LocalValue)) &&
					name != resolve.NormalizeName(value.DisplayText(rc.Record.RemoteValue)) {
					return fmt.Sprintf("status %q is neither the local nor the remote status", value.DisplayText(v))
				}
				return ""
			},
		},
		{
			Name:     "non-negative-estimate",
			Fields:   fieldSet("*point*", "*estimate*", "*effort*"),
			Severity: SeverityHigh,
			Check: func(v value.Value, rc RuleContext) string {
				if n, ok := v.(value.Number); ok && n < 0 {
					return fmt.Sprintf("estimate %s is negative", n)
				}
				return ""
			},
			AutoFix: func(v value.Value, rc RuleContext) (value.Value, error) {
				return value.Number(0), nil
			},
		},
		{
			Name:         "merge-markers",
			WarnOnly:     true,
			SuggestedFix: "resolve the marked sections by hand",
			Check: func(v value.Value, rc RuleContext) string {
				if merge.ContainsMarkers(v, markers) {
					return "value contains unresolved conflict markers"
				}
				return ""
			},
		},
	}
}

func maxLength(name string) int {
	if field.IsTitle(name) {
		return constants.MaxTitleLength
	}
	return constants.MaxTextLength
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}
