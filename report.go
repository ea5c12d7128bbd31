package syncmerge

import (
	"github.com/agentstation/utc"

	"github.com/agentstation/syncmerge/pkg/conflict"
	"github.com/agentstation/syncmerge/pkg/validate"
	"github.com/agentstation/syncmerge/pkg/value"
)

// FieldReport is the outcome for one conflicting field.
type FieldReport struct {
	Field      string
	Record     *conflict.Record
	Resolution *conflict.Resolution
	Validation *validate.Outcome
	// Blocked is set when validation rejected the resolution. The local
	// value is kept in the merged record.
	Blocked bool
}

// Value returns the value to persist for the field. The boolean is false
// when the resolution needs a human or was blocked.
func (fr FieldReport) Value() (value.Value, bool) {
	if fr.Resolution == nil || fr.Resolution.IsManual() || fr.Blocked {
		return nil, false
	}
	if fr.Validation != nil && fr.Validation.AutoFixApplied {
		return fr.Validation.CorrectedValue, true
	}
	return fr.Resolution.ResolvedValue, true
}

// NeedsReview reports whether a person should look at the field.
func (fr FieldReport) NeedsReview() bool {
	if _, ok := fr.Value(); !ok {
		return true
	}
	return fr.Resolution.RequiresUserConfirmation
}

// Report is the outcome of reconciling two snapshots of one entity.
type Report struct {
	EntityKey string
	// Fields holds one entry per concurrent edit, in field name order.
	Fields []FieldReport
	// Deleted is set when the remote record no longer exists.
	Deleted         *conflict.Record
	TypeConflicts   []*conflict.Record
	SchemaConflicts []*conflict.Record
	// Merged is the reconciled record: resolved values applied over the
	// newer side of every non-conflicting field.
	Merged     value.Mapping
	AnalyzedAt utc.Time
}

// Field returns the report for a field.
func (r *Report) Field(name string) (FieldReport, bool) {
	for _, fr := range r.Fields {
		if fr.Field == name {
			return fr, true
		}
	}
	return FieldReport{}, false
}

// Pending returns the fields that need review.
func (r *Report) Pending() []FieldReport {
	var out []FieldReport
	for _, fr := range r.Fields {
		if fr.NeedsReview() {
			out = append(out, fr)
		}
	}
	return out
}

// NeedsReview reports whether any part of the report needs a person.
func (r *Report) NeedsReview() bool {
	return r.Deleted != nil || len(r.Pending()) > 0
}

// Conflicts returns every record in the report.
func (r *Report) Conflicts() []*conflict.Record {
	var out []*conflict.Record
	if r.Deleted != nil {
		out = append(out, r.Deleted)
	}
	for _, fr := range r.Fields {
		out = append(out, fr.Record)
	}
	out = append(out, r.TypeConflicts...)
	return append(out, r.SchemaConflicts...)
}
