package detect

import (
	"fmt"
	"strings"

	"github.com/agentstation/syncmerge/pkg/conflict"
	"github.com/agentstation/syncmerge/pkg/constants"
	"github.com/agentstation/syncmerge/pkg/merge"
	"github.com/agentstation/syncmerge/pkg/value"
)

// SuggestResolution proposes a first-pass resolution from timestamps and
// content shape alone. It is independent of the field-aware selector.
func (d *Detector) SuggestResolution(rec *conflict.Record) (res *conflict.Resolution) {
	defer func() {
		if r := recover(); r != nil {
			res = conflict.Manual(0.2, fmt.Sprintf("suggestion failed: %v", r))
		}
	}()
	if rec == nil {
		return conflict.Manual(0.1, "no conflict record")
	}

	res = d.suggest(rec)
	if res.Confidence < constants.ConfirmationThreshold {
		res.RequiresUserConfirmation = true
	}
	return res
}

func (d *Detector) suggest(rec *conflict.Record) *conflict.Resolution {
	local, remote := value.Normalize(rec.LocalValue), value.Normalize(rec.RemoteValue)

	if rec.Uncomparable {
		return conflict.Manual(0.3, "values could not be compared: "+rec.Reason)
	}
	if rec.Type == conflict.TypeDeletedRemote {
		return conflict.Manual(0.5, "remote record was deleted; confirm whether to keep the local copy")
	}

	if _, ok := local.(value.Sequence); ok {
		if _, ok := remote.(value.Sequence); ok {
			mr := d.merger.Merge(local, remote, rec.Field, &merge.Options{Algorithm: merge.Union})
			if mr.Success {
				return &conflict.Resolution{
					Strategy:      conflict.StrategyMerge,
					ResolvedValue: mr.Value,
					Confidence:    0.8,
					Reason:        "lists merged by union",
					Merge:         mr,
				}
			}
		}
	}

	gap := rec.Gap()
	if rec.HasTimestamps() && gap > d.window {
		strategy, v := rec.Newer()
		return conflict.Pick(strategy, v, 0.9, fmt.Sprintf("%s side is newer by %s", strings.ToLower(strategy.String()), gap))
	}

	lt, lok := local.(value.Text)
	rt, rok := remote.(value.Text)
	if lok && rok {
		switch {
		case strings.Contains(string(rt), string(lt)):
			return conflict.Pick(conflict.StrategyRemote, remote, 0.75, "remote text contains local text")
		case strings.Contains(string(lt), string(rt)):
			return conflict.Pick(conflict.StrategyLocal, local, 0.75, "local text contains remote text")
		}
	}

	if rec.HasTimestamps() && gap >= constants.NewerThreshold {
		strategy, v := rec.Newer()
		return conflict.Pick(strategy, v, 0.65, fmt.Sprintf("%s side is newer by %s", strings.ToLower(strategy.String()), gap))
	}

	if local.Kind() != remote.Kind() || local.Kind() == value.KindMapping {
		return conflict.Manual(0.3, "structurally different values edited at nearly the same time")
	}

	if lok && rok && value.Size(lt) != value.Size(rt) {
		if value.Size(rt) > value.Size(lt) {
			return conflict.Pick(conflict.StrategyRemote, remote, 0.55, "remote text is longer")
		}
		return conflict.Pick(conflict.StrategyLocal, local, 0.55, "local text is longer")
	}

	return conflict.Manual(0.4, "simultaneous edits with no ordering signal")
}
