package output

import (
	"io"

	"github.com/agentstation/syncmerge"
	"github.com/agentstation/syncmerge/internal/cmd/table"
	"github.com/agentstation/syncmerge/pkg/conflict"
	"github.com/agentstation/syncmerge/pkg/merge"
	"github.com/agentstation/syncmerge/pkg/validate"
)

func isTable(f Format) bool {
	return f == FormatTable || f == FormatWide || f == ""
}

// Records writes conflict records.
func Records(w io.Writer, recs []*conflict.Record, format Format) error {
	var data any = NewRecordViews(recs)
	if isTable(format) {
		data = table.RecordsToTableData(recs, format == FormatWide)
	}
	return NewFormatter(format).Format(w, data)
}

// Resolutions writes analyzed records.
func Resolutions(w io.Writer, recs []*conflict.Record, resolutions []*conflict.Resolution, format Format) error {
	if isTable(format) {
		return NewFormatter(format).Format(w, table.ResolutionsToTableData(recs, resolutions, format == FormatWide))
	}
	views := make([]ResolutionView, len(resolutions))
	for i, res := range resolutions {
		name := ""
		if i < len(recs) {
			name = recs[i].Field
		}
		views[i] = NewResolutionView(name, res)
	}
	return NewFormatter(format).Format(w, views)
}

// Report writes a reconciliation report.
func Report(w io.Writer, r *syncmerge.Report, format Format) error {
	var data any = NewReportView(r)
	if isTable(format) {
		data = table.ReportToTableData(r, format == FormatWide)
	}
	return NewFormatter(format).Format(w, data)
}

// Merge writes a merge result.
func Merge(w io.Writer, r *merge.Result, format Format) error {
	var data any = NewMergeView(r)
	if isTable(format) {
		data = table.MergeToTableData(r)
	}
	return NewFormatter(format).Format(w, data)
}

// Outcome writes a validation outcome.
func Outcome(w io.Writer, o *validate.Outcome, format Format) error {
	var data any = NewOutcomeView(o)
	if isTable(format) {
		data = table.OutcomeToTableData(o)
	}
	return NewFormatter(format).Format(w, data)
}
