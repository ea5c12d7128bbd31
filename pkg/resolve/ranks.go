package resolve

import (
	"strings"

	"github.com/agentstation/syncmerge/pkg/value"
)

// StatusRanks orders workflow statuses; a higher rank is further along.
var StatusRanks = map[string]int{
	"backlog":              0,
	"to do":                1,
	"selected":             2,
	"in progress":          3,
	"in review":            4,
	"in testing":           5,
	"ready for deployment": 6,
	"done":                 7,
	"closed":               8,
	"cancelled":            9,
	"blocked":              10,
}

// PriorityRanks orders priorities; a higher rank is more urgent.
var PriorityRanks = map[string]int{
	"trivial":  1,
	"lowest":   1,
	"minor":    2,
	"low":      2,
	"medium":   3,
	"normal":   3,
	"major":    4,
	"high":     4,
	"critical": 5,
	"blocker":  6,
	"highest":  6,
}

// NormalizeName lower-cases a status or priority label and folds the
// separators and spellings used by different trackers.
func NormalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("-", " ", "_", " ").Replace(s)
	s = strings.Join(strings.Fields(s), " ")
	switch s {
	case "todo":
		return "to do"
	case "canceled":
		return "cancelled"
	case "selected for development":
		return "selected"
	}
	return s
}

// StatusRank returns the workflow rank of a status value.
func StatusRank(v value.Value) (int, bool) {
	r, ok := StatusRanks[NormalizeName(value.DisplayText(v))]
	return r, ok
}

// PriorityRank returns the urgency rank of a priority value.
func PriorityRank(v value.Value) (int, bool) {
	r, ok := PriorityRanks[NormalizeName(value.DisplayText(v))]
	return r, ok
}
