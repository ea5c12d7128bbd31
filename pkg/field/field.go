// Package field classifies record field names into the closed set of
// categories that drive resolution heuristics and merge algorithm selection.
package field

import (
	"strings"
)

// Category is the heuristic family a field belongs to.
type Category int

const (
	// Generic is any field without a dedicated heuristic.
	Generic Category = iota
	// Title covers title and summary fields.
	Title
	// Description covers long-form description fields.
	Description
	// Status is the workflow status field.
	Status
	// Priority is the priority field.
	Priority
	// Assignee is the assignee field.
	Assignee
	// Labels covers label and tag lists.
	Labels
	// Sprint is the sprint field.
	Sprint
	// StoryPoints covers story point estimates.
	StoryPoints
)

// Categories lists every category in declaration order.
var Categories = []Category{Generic, Title, Description, Status, Priority, Assignee, Labels, Sprint, StoryPoints}

// String returns the category name.
func (c Category) String() string {
	switch c {
	case Title:
		return "title"
	case Description:
		return "description"
	case Status:
		return "status"
	case Priority:
		return "priority"
	case Assignee:
		return "assignee"
	case Labels:
		return "labels"
	case Sprint:
		return "sprint"
	case StoryPoints:
		return "storypoints"
	default:
		return "generic"
	}
}

// Normalize lower-cases and trims a field name.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Classify maps a field name to its category. Names are matched case
// insensitively; anything unrecognized is Generic.
func Classify(name string) Category {
	switch Normalize(name) {
	case "title", "summary":
		return Title
	case "description":
		return Description
	case "status":
		return Status
	case "priority":
		return Priority
	case "assignee":
		return Assignee
	case "labels", "tags":
		return Labels
	case "sprint":
		return Sprint
	case "storypoints", "story_points", "story points":
		return StoryPoints
	default:
		return Generic
	}
}

// IsSetLike reports whether a list field holds unordered members.
func IsSetLike(name string) bool {
	return containsAny(Normalize(name), "label", "tag", "component")
}

// IsOrdered reports whether a list field holds ordered steps.
func IsOrdered(name string) bool {
	return containsAny(Normalize(name), "step", "order", "sequence")
}

// IsEstimate reports whether a numeric field is an effort estimate where the
// larger value is preferred.
func IsEstimate(name string) bool {
	return containsAny(Normalize(name), "point", "estimate", "effort")
}

// IsLongText reports whether a text field usually holds prose.
func IsLongText(name string) bool {
	return containsAny(Normalize(name), "description", "comment")
}

// IsTitle reports whether the field is a one-line summary.
func IsTitle(name string) bool {
	return Classify(name) == Title
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
