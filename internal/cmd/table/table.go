// Package table turns reconciliation results into table rows for CLI output.
package table

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/agentstation/syncmerge"
	"github.com/agentstation/syncmerge/pkg/conflict"
	"github.com/agentstation/syncmerge/pkg/merge"
	"github.com/agentstation/syncmerge/pkg/validate"
	"github.com/agentstation/syncmerge/pkg/value"
)

// Align represents column alignment in tables.
type Align int

const (
	// AlignDefault uses the default alignment (skip).
	AlignDefault Align = iota
	// AlignLeft aligns content to the left.
	AlignLeft
	// AlignCenter centers content.
	AlignCenter
	// AlignRight aligns content to the right.
	AlignRight
)

// Data represents table formatting data to avoid import cycles.
type Data struct {
	Headers         []string
	Rows            [][]string
	ColumnAlignment []Align // Optional: column alignment
}

// maxCell bounds value columns.
const maxCell = 40

// RecordsToTableData converts conflict records to table format.
func RecordsToTableData(recs []*conflict.Record, wide bool) Data {
	headers := []string{"Field", "Type", "Severity", "Reason"}
	if wide {
		headers = append(headers, "Local", "Remote")
	}
	rows := make([][]string, 0, len(recs))
	for _, rec := range recs {
		row := []string{rec.Field, rec.Type.String(), rec.Severity.String(), rec.Reason}
		if wide {
			row = append(row, cell(rec.LocalValue), cell(rec.RemoteValue))
		}
		rows = append(rows, row)
	}
	return Data{Headers: headers, Rows: rows}
}

// ReportToTableData converts a reconciliation report to table format.
func ReportToTableData(r *syncmerge.Report, wide bool) Data {
	headers := []string{"Field", "Strategy", "Confidence", "Confirm", "Valid", "Reason"}
	if wide {
		headers = append(headers, "Value")
	}
	align := []Align{AlignLeft, AlignLeft, AlignRight, AlignCenter, AlignCenter, AlignLeft}

	var rows [][]string
	if r.Deleted != nil {
		rows = append(rows, pad([]string{"(record)", string(conflict.StrategyManual), "-", "yes", "-", r.Deleted.Reason}, len(headers)))
	}
	for _, fr := range r.Fields {
		valid := "-"
		if fr.Validation != nil {
			valid = yesNo(fr.Validation.IsValid)
		}
		row := []string{
			fr.Field,
			fr.Resolution.Strategy.String(),
			confidence(fr.Resolution.Confidence),
			yesNo(fr.NeedsReview()),
			valid,
			fr.Resolution.Reason,
		}
		if wide {
			v, _ := fr.Value()
			row = append(row, cell(v))
		}
		rows = append(rows, row)
	}
	for _, rec := range append(append([]*conflict.Record{}, r.TypeConflicts...), r.SchemaConflicts...) {
		rows = append(rows, pad([]string{rec.Field, rec.Type.String(), "-", "-", "-", rec.Reason}, len(headers)))
	}
	if wide {
		align = append(align, AlignLeft)
	}
	return Data{Headers: headers, Rows: rows, ColumnAlignment: align}
}

// ResolutionsToTableData converts analyzed records to table format.
func ResolutionsToTableData(recs []*conflict.Record, resolutions []*conflict.Resolution, wide bool) Data {
	headers := []string{"Field", "Strategy", "Confidence", "Confirm", "Reason"}
	if wide {
		headers = append(headers, "Value")
	}
	rows := make([][]string, 0, len(resolutions))
	for i, res := range resolutions {
		name := ""
		if i < len(recs) {
			name = recs[i].Field
		}
		row := []string{name, res.Strategy.String(), confidence(res.Confidence), yesNo(res.RequiresUserConfirmation), res.Reason}
		if wide {
			row = append(row, cell(res.ResolvedValue))
		}
		rows = append(rows, row)
	}
	return Data{Headers: headers, Rows: rows}
}

// OutcomeToTableData converts a validation outcome to table format.
func OutcomeToTableData(o *validate.Outcome) Data {
	rows := make([][]string, 0, len(o.Errors)+len(o.Warnings))
	for _, e := range o.Errors {
		rows = append(rows, []string{string(e.Severity), e.Rule, e.Message, e.SuggestedFix})
	}
	for _, w := range o.Warnings {
		rows = append(rows, []string{"warning", "-", w, ""})
	}
	if len(rows) == 0 {
		rows = append(rows, []string{"ok", "-", "value is valid", ""})
	}
	return Data{Headers: []string{"Severity", "Rule", "Message", "Suggested Fix"}, Rows: rows}
}

// MergeToTableData converts a merge result to a property table.
func MergeToTableData(r *merge.Result) Data {
	rows := [][]string{
		{"Algorithm", r.Algorithm.String()},
		{"Success", yesNo(r.Success)},
		{"Confidence", confidence(r.Confidence)},
		{"Resolved", strconv.Itoa(r.ConflictsResolved)},
		{"Remaining", strconv.Itoa(r.ConflictsRemaining)},
		{"Value", value.Normalize(r.Value).String()},
	}
	if r.Error != "" {
		rows = append(rows, []string{"Error", r.Error})
	}
	for _, w := range r.Diagnostics.Warnings {
		rows = append(rows, []string{"Warning", w})
	}
	return Data{Headers: []string{"Property", "Value"}, Rows: rows}
}

func cell(v value.Value) string {
	s := strings.ReplaceAll(value.Normalize(v).String(), "\n", " ")
	if r := []rune(s); len(r) > maxCell {
		return string(r[:maxCell-3]) + "..."
	}
	return s
}

func confidence(c float64) string {
	return fmt.Sprintf("%.2f", c)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func pad(row []string, n int) []string {
	for len(row) < n {
		row = append(row, "")
	}
	return row
}
