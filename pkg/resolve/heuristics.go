package resolve

import (
	"fmt"
	"strings"

	"github.com/agentstation/syncmerge/pkg/conflict"
	"github.com/agentstation/syncmerge/pkg/field"
	"github.com/agentstation/syncmerge/pkg/merge"
	"github.com/agentstation/syncmerge/pkg/value"
)

// descriptionPrefix is the number of leading runes of the shorter
// description that must reappear in the longer one.
const descriptionPrefix = 50

// heuristic dispatches on the field category. Every category is handled.
func (s *Selector) heuristic(rec *conflict.Record) *conflict.Resolution {
	switch field.Classify(rec.Field) {
	case field.Title:
		return s.title(rec)
	case field.Description:
		return s.description(rec)
	case field.Status:
		return s.status(rec)
	case field.Priority:
		return s.priority(rec)
	case field.Assignee:
		return s.assignee(rec)
	case field.Labels:
		return s.labels(rec)
	case field.Sprint:
		return s.sprint(rec)
	case field.StoryPoints:
		return s.storyPoints(rec)
	case field.Generic:
		return s.generic(rec)
	default:
		return s.generic(rec)
	}
}

// filledSide returns the non-empty side when exactly one side is empty.
func filledSide(rec *conflict.Record, confidence float64, what string) (*conflict.Resolution, bool) {
	lEmpty, rEmpty := value.IsEmpty(rec.LocalValue), value.IsEmpty(rec.RemoteValue)
	switch {
	case lEmpty && !rEmpty:
		return conflict.Pick(conflict.StrategyRemote, rec.RemoteValue, confidence, "local "+what+" is empty"), true
	case rEmpty && !lEmpty:
		return conflict.Pick(conflict.StrategyLocal, rec.LocalValue, confidence, "remote "+what+" is empty"), true
	default:
		return nil, false
	}
}

// newer picks the more recently modified side, or MANUAL when the record
// carries no usable timestamps.
func (s *Selector) newer(rec *conflict.Record, confidence float64, reason string) *conflict.Resolution {
	if !rec.HasTimestamps() {
		return conflict.Manual(0.3, "cannot order edits without timestamps")
	}
	strategy, v := rec.Newer()
	return conflict.Pick(strategy, v, confidence, fmt.Sprintf("%s; %s side is newer", reason, strings.ToLower(strategy.String())))
}

func (s *Selector) outsideWindow(rec *conflict.Record) bool {
	return rec.HasTimestamps() && rec.Gap() > s.window
}

func flagged(res *conflict.Resolution) *conflict.Resolution {
	res.RequiresUserConfirmation = true
	return res
}

func (s *Selector) title(rec *conflict.Record) *conflict.Resolution {
	if res, ok := filledSide(rec, 0.9, "title"); ok {
		return res
	}
	lt, rt := value.DisplayText(rec.LocalValue), value.DisplayText(rec.RemoteValue)
	switch {
	case strings.Contains(rt, lt):
		return conflict.Pick(conflict.StrategyRemote, rec.RemoteValue, 0.75, "remote title extends local title")
	case strings.Contains(lt, rt):
		return conflict.Pick(conflict.StrategyLocal, rec.LocalValue, 0.75, "local title extends remote title")
	}
	if s.outsideWindow(rec) {
		return s.newer(rec, 0.7, "titles differ")
	}
	return conflict.Manual(0.3, "titles edited concurrently")
}

func (s *Selector) description(rec *conflict.Record) *conflict.Resolution {
	if res, ok := filledSide(rec, 0.9, "description"); ok {
		return res
	}
	lt, rt := value.DisplayText(rec.LocalValue), value.DisplayText(rec.RemoteValue)
	ll, rl := len([]rune(lt)), len([]rune(rt))
	shorter, longer := lt, rt
	strategy, longerValue := conflict.StrategyRemote, rec.RemoteValue
	if ll > rl {
		shorter, longer = rt, lt
		strategy, longerValue = conflict.StrategyLocal, rec.LocalValue
	}
	sl, gl := min(ll, rl), max(ll, rl)

	if gl > 2*sl {
		prefix := []rune(strings.TrimSpace(shorter))
		if len(prefix) > descriptionPrefix {
			prefix = prefix[:descriptionPrefix]
		}
		if len(prefix) > 0 && strings.Contains(longer, string(prefix)) {
			return conflict.Pick(strategy, longerValue, 0.75, "longer description extends the shorter one")
		}
	}
	if gl > 0 && float64(sl)/float64(gl) > 0.3 {
		return s.merge(rec, "", 0, "both descriptions have substantial content")
	}
	return s.newer(rec, 0.6, "descriptions differ")
}

func (s *Selector) status(rec *conflict.Record) *conflict.Resolution {
	if res, ok := filledSide(rec, 0.85, "status"); ok {
		return flagged(res)
	}
	lr, lok := StatusRank(rec.LocalValue)
	rr, rok := StatusRank(rec.RemoteValue)
	if lok && rok && lr != rr {
		if rr > lr {
			return flagged(conflict.Pick(conflict.StrategyRemote, rec.RemoteValue, 0.8, "remote status is further along the workflow"))
		}
		return flagged(conflict.Pick(conflict.StrategyLocal, rec.LocalValue, 0.8, "local status is further along the workflow"))
	}
	return flagged(s.newer(rec, 0.6, "statuses have the same workflow rank"))
}

func (s *Selector) priority(rec *conflict.Record) *conflict.Resolution {
	if res, ok := filledSide(rec, 0.85, "priority"); ok {
		return res
	}
	lr, lok := PriorityRank(rec.LocalValue)
	rr, rok := PriorityRank(rec.RemoteValue)
	if lok && rok && lr != rr {
		if rr > lr {
			return conflict.Pick(conflict.StrategyRemote, rec.RemoteValue, 0.9, "remote priority is an escalation")
		}
		return conflict.Pick(conflict.StrategyLocal, rec.LocalValue, 0.9, "local priority is an escalation")
	}
	return s.newer(rec, 0.6, "priorities have the same rank")
}

func (s *Selector) assignee(rec *conflict.Record) *conflict.Resolution {
	if res, ok := filledSide(rec, 0.85, "assignee"); ok {
		res.Reason = "only one side is assigned"
		return res
	}
	return flagged(s.newer(rec, 0.7, "assigned to different people"))
}

func (s *Selector) labels(rec *conflict.Record) *conflict.Resolution {
	if res, ok := filledSide(rec, 0.85, "label list"); ok {
		return res
	}
	_, lok := rec.LocalValue.(value.Sequence)
	_, rok := rec.RemoteValue.(value.Sequence)
	if lok && rok {
		return s.merge(rec, merge.Union, 0.85, "labels combined")
	}
	return s.generic(rec)
}

func (s *Selector) sprint(rec *conflict.Record) *conflict.Resolution {
	if res, ok := filledSide(rec, 0.85, "sprint"); ok {
		return res
	}
	return flagged(s.newer(rec, 0.8, "assigned to different sprints"))
}

func (s *Selector) storyPoints(rec *conflict.Record) *conflict.Resolution {
	if res, ok := filledSide(rec, 0.85, "estimate"); ok {
		return res
	}
	ln, lok := rec.LocalValue.(value.Number)
	rn, rok := rec.RemoteValue.(value.Number)
	if lok && rok && ln != rn {
		if rn > ln {
			return flagged(conflict.Pick(conflict.StrategyRemote, rec.RemoteValue, 0.6, "remote estimate is higher"))
		}
		return flagged(conflict.Pick(conflict.StrategyLocal, rec.LocalValue, 0.6, "local estimate is higher"))
	}
	return s.newer(rec, 0.6, "estimates differ")
}

func (s *Selector) generic(rec *conflict.Record) *conflict.Resolution {
	if res, ok := filledSide(rec, 0.85, "value"); ok {
		return res
	}
	_, lok := rec.LocalValue.(value.Sequence)
	_, rok := rec.RemoteValue.(value.Sequence)
	if lok && rok {
		return s.merge(rec, "", 0.7, "lists combined")
	}
	if s.outsideWindow(rec) {
		return s.newer(rec, 0.6, "values differ")
	}
	return conflict.Manual(0.4, "values edited concurrently")
}
