package output

import (
	"time"

	"github.com/agentstation/syncmerge"
	"github.com/agentstation/syncmerge/pkg/compare"
	"github.com/agentstation/syncmerge/pkg/conflict"
	"github.com/agentstation/syncmerge/pkg/merge"
	"github.com/agentstation/syncmerge/pkg/validate"
	"github.com/agentstation/syncmerge/pkg/value"
)

// RecordView is the serialized form of a conflict record.
type RecordView struct {
	ID             string `json:"id" yaml:"id"`
	EntityKey      string `json:"entity_key" yaml:"entity_key"`
	Field          string `json:"field" yaml:"field"`
	Type           string `json:"type" yaml:"type"`
	Severity       string `json:"severity" yaml:"severity"`
	Local          any    `json:"local" yaml:"local"`
	Remote         any    `json:"remote" yaml:"remote"`
	LocalModified  string `json:"local_modified,omitempty" yaml:"local_modified,omitempty"`
	RemoteModified string `json:"remote_modified,omitempty" yaml:"remote_modified,omitempty"`
	Uncomparable   bool   `json:"uncomparable,omitempty" yaml:"uncomparable,omitempty"`
	Reason         string `json:"reason,omitempty" yaml:"reason,omitempty"`
	Diff           string `json:"diff,omitempty" yaml:"diff,omitempty"`
	DetectedAt     string `json:"detected_at" yaml:"detected_at"`
}

// ResolutionView is the serialized form of a resolution.
type ResolutionView struct {
	Field                    string     `json:"field,omitempty" yaml:"field,omitempty"`
	Strategy                 string     `json:"strategy" yaml:"strategy"`
	Value                    any        `json:"value" yaml:"value"`
	Confidence               float64    `json:"confidence" yaml:"confidence"`
	Reason                   string     `json:"reason" yaml:"reason"`
	RequiresUserConfirmation bool       `json:"requires_user_confirmation" yaml:"requires_user_confirmation"`
	Merge                    *MergeView `json:"merge,omitempty" yaml:"merge,omitempty"`
}

// MergeView is the serialized form of a merge result.
type MergeView struct {
	Success            bool     `json:"success" yaml:"success"`
	Algorithm          string   `json:"algorithm" yaml:"algorithm"`
	Value              any      `json:"value" yaml:"value"`
	Confidence         float64  `json:"confidence" yaml:"confidence"`
	ConflictsResolved  int      `json:"conflicts_resolved" yaml:"conflicts_resolved"`
	ConflictsRemaining int      `json:"conflicts_remaining" yaml:"conflicts_remaining"`
	Preserved          []string `json:"preserved,omitempty" yaml:"preserved,omitempty"`
	Removed            []string `json:"removed,omitempty" yaml:"removed,omitempty"`
	Conflicts          []string `json:"conflicts,omitempty" yaml:"conflicts,omitempty"`
	Warnings           []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Error              string   `json:"error,omitempty" yaml:"error,omitempty"`
}

// OutcomeView is the serialized form of a validation outcome.
type OutcomeView struct {
	IsValid        bool             `json:"is_valid" yaml:"is_valid"`
	Errors         []validate.Issue `json:"errors,omitempty" yaml:"errors,omitempty"`
	Warnings       []string         `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Suggestions    []string         `json:"suggestions,omitempty" yaml:"suggestions,omitempty"`
	AutoFixApplied bool             `json:"auto_fix_applied" yaml:"auto_fix_applied"`
	CorrectedValue any              `json:"corrected_value,omitempty" yaml:"corrected_value,omitempty"`
}

// FieldView is one field of a report.
type FieldView struct {
	Record     RecordView     `json:"record" yaml:"record"`
	Resolution ResolutionView `json:"resolution" yaml:"resolution"`
	Validation *OutcomeView   `json:"validation,omitempty" yaml:"validation,omitempty"`
	Blocked    bool           `json:"blocked" yaml:"blocked"`
}

// ReportView is the serialized form of a reconciliation report.
type ReportView struct {
	EntityKey       string         `json:"entity_key" yaml:"entity_key"`
	NeedsReview     bool           `json:"needs_review" yaml:"needs_review"`
	Fields          []FieldView    `json:"fields" yaml:"fields"`
	Deleted         *RecordView    `json:"deleted,omitempty" yaml:"deleted,omitempty"`
	TypeConflicts   []RecordView   `json:"type_conflicts,omitempty" yaml:"type_conflicts,omitempty"`
	SchemaConflicts []RecordView   `json:"schema_conflicts,omitempty" yaml:"schema_conflicts,omitempty"`
	Merged          map[string]any `json:"merged" yaml:"merged"`
	AnalyzedAt      string         `json:"analyzed_at" yaml:"analyzed_at"`
}

// NewRecordView converts a record.
func NewRecordView(rec *conflict.Record) RecordView {
	return RecordView{
		ID:             rec.ID,
		EntityKey:      rec.EntityKey,
		Field:          rec.Field,
		Type:           rec.Type.String(),
		Severity:       rec.Severity.String(),
		Local:          value.ToAny(rec.LocalValue),
		Remote:         value.ToAny(rec.RemoteValue),
		LocalModified:  stamp(rec.LocalTimestamp),
		RemoteModified: stamp(rec.RemoteTimestamp),
		Uncomparable:   rec.Uncomparable,
		Reason:         rec.Reason,
		Diff:           textDiff(rec.LocalValue, rec.RemoteValue),
		DetectedAt:     stamp(rec.DetectedAt.Time),
	}
}

// textDiff renders an inline diff when both sides are text.
func textDiff(local, remote value.Value) string {
	l, lok := local.(value.Text)
	r, rok := remote.(value.Text)
	if !lok || !rok {
		return ""
	}
	return compare.TextDiff(string(l), string(r))
}

// NewRecordViews converts records.
func NewRecordViews(recs []*conflict.Record) []RecordView {
	out := make([]RecordView, len(recs))
	for i, rec := range recs {
		out[i] = NewRecordView(rec)
	}
	return out
}

// NewResolutionView converts a resolution.
func NewResolutionView(name string, res *conflict.Resolution) ResolutionView {
	v := ResolutionView{
		Field:                    name,
		Strategy:                 res.Strategy.String(),
		Value:                    value.ToAny(res.ResolvedValue),
		Confidence:               res.Confidence,
		Reason:                   res.Reason,
		RequiresUserConfirmation: res.RequiresUserConfirmation,
	}
	if res.Merge != nil {
		m := NewMergeView(res.Merge)
		v.Merge = &m
	}
	return v
}

// NewMergeView converts a merge result.
func NewMergeView(r *merge.Result) MergeView {
	return MergeView{
		Success:            r.Success,
		Algorithm:          r.Algorithm.String(),
		Value:              value.ToAny(r.Value),
		Confidence:         r.Confidence,
		ConflictsResolved:  r.ConflictsResolved,
		ConflictsRemaining: r.ConflictsRemaining,
		Preserved:          r.Diagnostics.Preserved,
		Removed:            r.Diagnostics.Removed,
		Conflicts:          r.Diagnostics.Conflicts,
		Warnings:           r.Diagnostics.Warnings,
		Error:              r.Error,
	}
}

// NewOutcomeView converts a validation outcome.
func NewOutcomeView(o *validate.Outcome) OutcomeView {
	v := OutcomeView{
		IsValid:        o.IsValid,
		Errors:         o.Errors,
		Warnings:       o.Warnings,
		Suggestions:    o.Suggestions,
		AutoFixApplied: o.AutoFixApplied,
	}
	if o.AutoFixApplied {
		v.CorrectedValue = value.ToAny(o.CorrectedValue)
	}
	return v
}

// NewReportView converts a report.
func NewReportView(r *syncmerge.Report) ReportView {
	v := ReportView{
		EntityKey:       r.EntityKey,
		NeedsReview:     r.NeedsReview(),
		Fields:          make([]FieldView, len(r.Fields)),
		TypeConflicts:   NewRecordViews(r.TypeConflicts),
		SchemaConflicts: NewRecordViews(r.SchemaConflicts),
		Merged:          make(map[string]any, len(r.Merged)),
		AnalyzedAt:      stamp(r.AnalyzedAt.Time),
	}
	for i, fr := range r.Fields {
		fv := FieldView{
			Record:     NewRecordView(fr.Record),
			Resolution: NewResolutionView(fr.Field, fr.Resolution),
			Blocked:    fr.Blocked,
		}
		if fr.Validation != nil {
			o := NewOutcomeView(fr.Validation)
			fv.Validation = &o
		}
		v.Fields[i] = fv
	}
	if r.Deleted != nil {
		d := NewRecordView(r.Deleted)
		v.Deleted = &d
	}
	for k, val := range r.Merged {
		v.Merged[k] = value.ToAny(val)
	}
	return v
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
