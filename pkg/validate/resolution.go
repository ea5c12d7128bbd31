package validate

import (
	"fmt"

	"github.com/agentstation/syncmerge/pkg/conflict"
	"github.com/agentstation/syncmerge/pkg/field"
	"github.com/agentstation/syncmerge/pkg/merge"
	"github.com/agentstation/syncmerge/pkg/value"
)

// Context carries per-call inputs.
type Context struct {
	// Fields is the full record after applying the resolution; business
	// rules evaluate against it. When nil only the resolved field is known.
	Fields value.Mapping
	// AutoFix overrides the validator's auto-fix setting for this call.
	AutoFix *bool
}

// ValidateResolution checks a proposed resolution for rec. It never fails;
// problems are reported in the outcome.
func (v *Validator) ValidateResolution(res *conflict.Resolution, rec *conflict.Record, c *Context) *Outcome {
	out := &Outcome{}
	if res == nil {
		out.warn("no resolution to validate")
		return out.finish()
	}
	if res.IsManual() {
		out.warn("resolution requires manual review; nothing to validate")
		return out.finish()
	}
	name := ""
	if rec != nil {
		name = rec.Field
	}
	v.validate(name, res.ResolvedValue, RuleContext{Field: name, Record: rec, Resolution: res}, c, out)
	return out.finish()
}

// ValidateValue checks a bare value for a field with no conflict attached.
func (v *Validator) ValidateValue(name string, val value.Value, c *Context) *Outcome {
	out := &Outcome{}
	v.validate(name, val, RuleContext{Field: name}, c, out)
	return out.finish()
}

// ValidateMergeResult validates the value a merge produced. Failed merges
// are high-severity errors; leftover conflicts and markers become warnings.
func (v *Validator) ValidateMergeResult(mr *merge.Result, name string, rec *conflict.Record, c *Context) *Outcome {
	out := &Outcome{}
	if mr == nil {
		out.warn("no merge result to validate")
		return out.finish()
	}
	if !mr.Success {
		msg := "merge failed"
		if mr.Error != "" {
			msg = "merge failed: " + mr.Error
		}
		out.addError(Issue{
			Field:        name,
			Rule:         "merge-success",
			Message:      msg,
			Severity:     SeverityHigh,
			SuggestedFix: "choose the local or remote value",
		})
	}
	if mr.ConflictsRemaining > 0 {
		out.warn("%d unresolved conflict(s) remain after %s", mr.ConflictsRemaining, mr.Algorithm)
	}
	out.Warnings = append(out.Warnings, mr.Diagnostics.Warnings...)

	res := conflict.Pick(conflict.StrategyMerge, mr.Value, mr.Confidence, "merge result")
	res.Merge = mr
	v.validate(name, mr.Value, RuleContext{Field: name, Record: rec, Resolution: res}, c, out)
	return out.finish()
}

// ValidateBatch validates resolutions against their records pairwise.
// Missing records are passed as nil.
func (v *Validator) ValidateBatch(resolutions []*conflict.Resolution, records []*conflict.Record, c *Context) []*Outcome {
	outs := make([]*Outcome, len(resolutions))
	for i, res := range resolutions {
		var rec *conflict.Record
		if i < len(records) {
			rec = records[i]
		}
		outs[i] = v.ValidateResolution(res, rec, c)
	}
	return outs
}

func (v *Validator) validate(name string, val value.Value, rc RuleContext, c *Context, out *Outcome) {
	autoFix := v.autoFix
	if c != nil && c.AutoFix != nil {
		autoFix = *c.AutoFix
	}

	current := value.Normalize(val)
	for _, r := range v.rules {
		if !r.applies(name) {
			continue
		}
		msg, err := runCheck(r, current, rc)
		if err != nil {
			v.logger.Warn().Str("rule", r.Name).Str("field", name).Err(err).Msg("rule could not be evaluated")
			out.warn("rule %s could not be evaluated: %v", r.Name, err)
			continue
		}
		if msg == "" {
			continue
		}
		if r.SuggestedFix != "" {
			out.Suggestions = append(out.Suggestions, r.SuggestedFix)
		}
		if r.WarnOnly {
			out.Warnings = append(out.Warnings, msg)
			continue
		}
		if autoFix && r.AutoFix != nil && r.Severity != SeverityCritical {
			fixed, err := runFix(r, current, rc)
			if err != nil {
				v.logger.Warn().Str("rule", r.Name).Str("field", name).Err(err).Msg("auto-fix failed")
				out.addError(Issue{
					Field:        name,
					Rule:         r.Name,
					Message:      fmt.Sprintf("%s; auto-fix failed: %v", msg, err),
					Severity:     SeverityMedium,
					SuggestedFix: "manual correction required",
				})
				continue
			}
			current = value.Normalize(fixed)
			out.AutoFixApplied = true
			out.CorrectedValue = current
			out.warn("auto-fixed %s: %s", r.Name, msg)
			continue
		}
		out.addError(Issue{Field: name, Rule: r.Name, Message: msg, Severity: r.Severity, SuggestedFix: r.SuggestedFix})
	}

	if cc, ok := v.constraints[field.Normalize(name)]; ok {
		cc.check(name, current, out)
	}

	if len(v.business) == 0 {
		return
	}
	fields := value.Mapping{}
	if c != nil && c.Fields != nil {
		fields = c.Fields.Clone()
	}
	if name != "" {
		fields[name] = current
	}
	for _, br := range v.business {
		ok, err := safePredicate(func() (bool, error) { return br.Predicate(fields) })
		if err != nil {
			v.logger.Warn().Str("rule", br.Name).Err(err).Msg("business rule could not be evaluated")
			out.warn("rule %s could not be evaluated: %v", br.Name, err)
			continue
		}
		if !ok {
			msg := br.Message
			if msg == "" {
				msg = fmt.Sprintf("business rule %s violated", br.Name)
			}
			out.addError(Issue{Field: name, Rule: br.Name, Message: msg, Severity: br.Severity})
		}
	}
}

func runCheck(r Rule, v value.Value, rc RuleContext) (msg string, err error) {
	defer func() {
		if p := recover(); p != nil {
			msg, err = "", fmt.Errorf("panic: %v", p)
		}
	}()
	return r.Check(v, rc), nil
}

func runFix(r Rule, v value.Value, rc RuleContext) (fixed value.Value, err error) {
	defer func() {
		if p := recover(); p != nil {
			fixed, err = nil, fmt.Errorf("panic: %v", p)
		}
	}()
	return r.AutoFix(v, rc)
}
