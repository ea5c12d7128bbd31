package validate_test

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/syncmerge/pkg/conflict"
	"github.com/agentstation/syncmerge/pkg/errors"
	"github.com/agentstation/syncmerge/pkg/logging"
	"github.com/agentstation/syncmerge/pkg/merge"
	"github.com/agentstation/syncmerge/pkg/validate"
	"github.com/agentstation/syncmerge/pkg/value"
)

var base = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func record(name string, local, remote value.Value) *conflict.Record {
	return conflict.NewRecord("PROJ-1", name, local, remote, base, base.Add(time.Minute))
}

func pick(v value.Value) *conflict.Resolution {
	return conflict.Pick(conflict.StrategyRemote, v, 0.9, "test")
}

func TestRequiredConstraintBlocks(t *testing.T) {
	v := validate.MustNewValidator(
		validate.WithoutBuiltins(),
		validate.WithConstraint("summary", validate.FieldConstraint{Required: true, MinLength: 1}),
	)
	out := v.ValidateResolution(pick(value.Text("")), record("summary", value.Text("a"), value.Text("")), nil)

	assert.False(t, out.IsValid)
	worst, ok := out.Worst()
	require.True(t, ok)
	assert.Equal(t, validate.SeverityCritical, worst.Severity)
	assert.Equal(t, "summary", worst.Field)
}

func TestBuiltinRequiredField(t *testing.T) {
	v := validate.MustNewValidator()
	out := v.ValidateResolution(pick(value.Text("  ")), record("Summary", value.Text("a"), value.Text("b")), nil)

	assert.False(t, out.IsValid)
	assert.Equal(t, "required-field-not-empty", out.Errors[0].Rule)
}

func TestManualResolutionSkipsRules(t *testing.T) {
	v := validate.MustNewValidator()
	out := v.ValidateResolution(conflict.Manual(0.3, "needs review"), record("summary", value.Text("a"), value.Text("b")), nil)

	assert.True(t, out.IsValid)
	assert.Empty(t, out.Errors)
	assert.NotEmpty(t, out.Warnings)
}

func TestErrorsSortedBySeverity(t *testing.T) {
	v := validate.MustNewValidator(
		validate.WithoutBuiltins(),
		validate.WithRule(validate.Rule{
			Name:     "low-first",
			Severity: validate.SeverityLow,
			Check:    func(value.Value, validate.RuleContext) string { return "low" },
		}),
		validate.WithConstraint("title", validate.FieldConstraint{Type: "number", MaxLength: 2}),
		validate.WithConstraint("other", validate.FieldConstraint{Required: true}),
	)
	out := v.ValidateValue("title", value.Text("long"), nil)

	require.Len(t, out.Errors, 3)
	assert.Equal(t, validate.SeverityHigh, out.Errors[0].Severity)
	assert.Equal(t, validate.SeverityMedium, out.Errors[1].Severity)
	assert.Equal(t, validate.SeverityLow, out.Errors[2].Severity)
	assert.True(t, out.IsValid, "non-critical errors do not block")
}

func TestAutoFix(t *testing.T) {
	tests := []struct {
		name  string
		field string
		in    value.Value
		want  value.Value
	}{
		{"truncates title", "summary", value.Text(strings.Repeat("x", 300)), value.Text(strings.Repeat("x", 255))},
		{"hyphenates labels", "labels", value.Sequence{value.Text("needs review"), value.Text("ok")}, value.Sequence{value.Text("needs-review"), value.Text("ok")}},
		{"clamps estimate", "storyPoints", value.Number(-3), value.Number(0)},
	}
	v := validate.MustNewValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := v.ValidateValue(tt.field, tt.in, nil)
			assert.True(t, out.AutoFixApplied)
			assert.Equal(t, tt.want, out.CorrectedValue)
			assert.Empty(t, out.Errors)
			assert.NotEmpty(t, out.Warnings)
		})
	}
}

func TestAutoFixDisabled(t *testing.T) {
	v := validate.MustNewValidator(validate.WithAutoFix(false))
	out := v.ValidateValue("storyPoints", value.Number(-1), nil)

	assert.False(t, out.AutoFixApplied)
	require.Len(t, out.Errors, 1)
	assert.Equal(t, "non-negative-estimate", out.Errors[0].Rule)

	enabled := true
	out = v.ValidateValue("storyPoints", value.Number(-1), &validate.Context{AutoFix: &enabled})
	assert.True(t, out.AutoFixApplied)
}

func TestAutoFixFailureBecomesMediumError(t *testing.T) {
	v := validate.MustNewValidator(
		validate.WithoutBuiltins(),
		validate.WithRule(validate.Rule{
			Name:     "always-broken",
			Severity: validate.SeverityHigh,
			Check:    func(value.Value, validate.RuleContext) string { return "broken" },
			AutoFix: func(value.Value, validate.RuleContext) (value.Value, error) {
				return nil, fmt.Errorf("cannot fix")
			},
		}),
	)
	out := v.ValidateValue("x", value.Text("a"), nil)

	require.Len(t, out.Errors, 1)
	assert.Equal(t, validate.SeverityMedium, out.Errors[0].Severity)
	assert.Equal(t, "manual correction required", out.Errors[0].SuggestedFix)
	assert.False(t, out.AutoFixApplied)
}

func TestCriticalRulesAreNotAutoFixed(t *testing.T) {
	fixed := false
	v := validate.MustNewValidator(
		validate.WithoutBuiltins(),
		validate.WithRule(validate.Rule{
			Name:     "critical",
			Severity: validate.SeverityCritical,
			Check:    func(value.Value, validate.RuleContext) string { return "bad" },
			AutoFix: func(v value.Value, _ validate.RuleContext) (value.Value, error) {
				fixed = true
				return v, nil
			},
		}),
	)
	out := v.ValidateValue("x", value.Text("a"), nil)

	assert.False(t, fixed)
	assert.False(t, out.IsValid)
}

func TestPanickingRuleIsWarning(t *testing.T) {
	v := validate.MustNewValidator(
		validate.WithoutBuiltins(),
		validate.WithRule(validate.Rule{
			Name:  "panics",
			Check: func(value.Value, validate.RuleContext) string { panic("boom") },
		}),
	)
	out := v.ValidateValue("x", value.Text("a"), nil)

	assert.True(t, out.IsValid)
	assert.Empty(t, out.Errors)
	require.Len(t, out.Warnings, 1)
	assert.Contains(t, out.Warnings[0], "could not be evaluated")
}

func TestBusinessRules(t *testing.T) {
	tl := logging.NewTestLogger(t)
	v := validate.MustNewValidator(
		validate.WithoutBuiltins(),
		validate.WithLogger(tl.Logger),
		validate.WithBusinessRule(validate.BusinessRule{
			Name:    "done-needs-assignee",
			Message: "done issues need an assignee",
			Predicate: func(f value.Mapping) (bool, error) {
				if value.DisplayText(f.Get("status")) != "Done" {
					return true, nil
				}
				return !value.IsEmpty(f.Get("assignee")), nil
			},
		}),
		validate.WithBusinessRule(validate.BusinessRule{
			Name:      "explodes",
			Predicate: func(value.Mapping) (bool, error) { return false, fmt.Errorf("lookup failed") },
		}),
	)

	ctx := &validate.Context{Fields: value.Mapping{"assignee": value.Null{}}}
	out := v.ValidateResolution(pick(value.Text("Done")), record("status", value.Text("To Do"), value.Text("Done")), ctx)

	require.Len(t, out.Errors, 1)
	assert.Equal(t, "done issues need an assignee", out.Errors[0].Message)
	assert.Equal(t, validate.SeverityHigh, out.Errors[0].Severity)
	assert.True(t, out.IsValid)
	require.Len(t, out.Warnings, 1)
	assert.Contains(t, out.Warnings[0], "could not be evaluated")
	tl.AssertContains(t, "business rule could not be evaluated")

	_, hasStatus := ctx.Fields["status"]
	assert.False(t, hasStatus, "caller fields are not mutated")
}

func TestConstraints(t *testing.T) {
	v := validate.MustNewValidator(
		validate.WithoutBuiltins(),
		validate.WithConstraint("key", validate.FieldConstraint{Pattern: `^[A-Z]+-\d+$`}),
		validate.WithConstraint("priority", validate.FieldConstraint{AllowedValues: []string{"Low", "High"}}),
		validate.WithConstraint("checked", validate.FieldConstraint{
			Custom: func(v value.Value) (bool, error) { return false, fmt.Errorf("unavailable") },
		}),
	)

	tests := []struct {
		name     string
		field    string
		in       value.Value
		rule     string
		warnings int
	}{
		{"pattern ok", "key", value.Text("PROJ-12"), "", 0},
		{"pattern bad", "key", value.Text("proj 12"), "pattern", 0},
		{"allowed ok case-insensitive", "priority", value.Text("high"), "", 0},
		{"allowed from mapping", "priority", value.Mapping{"name": value.Text("Low")}, "", 0},
		{"allowed bad", "priority", value.Text("Urgent"), "allowed-values", 0},
		{"custom error warns", "checked", value.Text("x"), "", 1},
		{"null optional skipped", "key", value.Null{}, "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := v.ValidateValue(tt.field, tt.in, nil)
			if tt.rule == "" {
				assert.Empty(t, out.Errors)
			} else {
				require.Len(t, out.Errors, 1)
				assert.Equal(t, tt.rule, out.Errors[0].Rule)
			}
			assert.Len(t, out.Warnings, tt.warnings)
		})
	}
}

func TestConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		opt  validate.Option
	}{
		{"unknown type", validate.WithConstraint("x", validate.FieldConstraint{Type: "decimal"})},
		{"bad pattern", validate.WithConstraint("x", validate.FieldConstraint{Pattern: "("})},
		{"bad bounds", validate.WithConstraint("x", validate.FieldConstraint{MinLength: 5, MaxLength: 2})},
		{"rule without check", validate.WithRule(validate.Rule{Name: "x"})},
		{"bad severity", validate.WithRule(validate.Rule{Name: "x", Severity: "urgent", Check: func(value.Value, validate.RuleContext) string { return "" }})},
		{"business rule without predicate", validate.WithBusinessRule(validate.BusinessRule{Name: "x"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := validate.NewValidator(tt.opt)
			require.Error(t, err)
			assert.True(t, errors.IsConfigError(err))
		})
	}
}

func TestBuiltinRules(t *testing.T) {
	v := validate.MustNewValidator(validate.WithAutoFix(false))

	t.Run("type mismatch", func(t *testing.T) {
		out := v.ValidateResolution(pick(value.Text("3")), record("storyPoints", value.Number(1), value.Number(2)), nil)
		require.NotEmpty(t, out.Errors)
		assert.Equal(t, "type-match", out.Errors[0].Rule)
	})
	t.Run("unknown priority", func(t *testing.T) {
		out := v.ValidateValue("priority", value.Text("Whenever"), nil)
		require.Len(t, out.Errors, 1)
		assert.Equal(t, validate.SeverityLow, out.Errors[0].Severity)
	})
	t.Run("status not from either side", func(t *testing.T) {
		out := v.ValidateResolution(pick(value.Text("Done")), record("status", value.Text("To Do"), value.Text("In Progress")), nil)
		require.Len(t, out.Errors, 1)
		assert.Equal(t, "status-workflow", out.Errors[0].Rule)
	})
	t.Run("status from remote", func(t *testing.T) {
		out := v.ValidateResolution(pick(value.Text("in progress")), record("status", value.Text("To Do"), value.Text("In Progress")), nil)
		assert.Empty(t, out.Errors)
	})
	t.Run("markers warn", func(t *testing.T) {
		text := merge.DefaultMarkers().Block("a", "b")
		out := v.ValidateValue("description", value.Text(text), nil)
		assert.Empty(t, out.Errors)
		require.Len(t, out.Warnings, 1)
		assert.Contains(t, out.Warnings[0], "conflict markers")
	})
	t.Run("rule order", func(t *testing.T) {
		assert.Equal(t, []string{
			"required-field-not-empty",
			"type-match",
			"string-length",
			"label-format",
			"allowed-priority",
			"status-workflow",
			"non-negative-estimate",
			"merge-markers",
		}, v.Rules())
	})
}

func TestValidateMergeResult(t *testing.T) {
	v := validate.MustNewValidator()
	rec := record("description", value.Text("a"), value.Text("b"))

	failed := &merge.Result{Success: false, Value: value.Text("a"), Algorithm: merge.Intersection, Error: "no overlap"}
	out := v.ValidateMergeResult(failed, "description", rec, nil)
	require.NotEmpty(t, out.Errors)
	assert.Equal(t, validate.SeverityHigh, out.Errors[0].Severity)
	assert.Contains(t, out.Errors[0].Message, "no overlap")

	partial := &merge.Result{
		Success:            true,
		Value:              value.Text(merge.DefaultMarkers().Block("a", "b")),
		Algorithm:          merge.SmartText,
		ConflictsRemaining: 1,
		Diagnostics:        merge.Diagnostics{Warnings: []string{"kept both"}},
	}
	out = v.ValidateMergeResult(partial, "description", rec, nil)
	assert.True(t, out.IsValid)
	assert.Empty(t, out.Errors)
	assert.Len(t, out.Warnings, 3)
}

func TestValidateBatch(t *testing.T) {
	v := validate.MustNewValidator()
	outs := v.ValidateBatch(
		[]*conflict.Resolution{pick(value.Text("ok")), pick(value.Text(""))},
		[]*conflict.Record{record("summary", value.Text("a"), value.Text("b"))},
		nil,
	)
	require.Len(t, outs, 2)
	assert.True(t, outs[0].IsValid)
	assert.True(t, outs[1].IsValid, "without a record the field is unknown")
}

func TestParseSeverity(t *testing.T) {
	s, err := validate.ParseSeverity(" Critical ")
	require.NoError(t, err)
	assert.Equal(t, validate.SeverityCritical, s)

	_, err = validate.ParseSeverity("urgent")
	assert.True(t, errors.IsValidationError(err))
}
