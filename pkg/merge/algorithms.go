package merge

import (
	"fmt"
	"strings"

	"github.com/agentstation/syncmerge/pkg/compare"
	"github.com/agentstation/syncmerge/pkg/field"
	"github.com/agentstation/syncmerge/pkg/value"
)

func (e *Engine) union(local, remote value.Value, c call) *Result {
	res := &Result{Success: true, Algorithm: Union}

	switch l := local.(type) {
	case value.Sequence:
		r, ok := remote.(value.Sequence)
		if !ok {
			break
		}
		merged := make(value.Sequence, 0, len(l)+len(r))
		add := func(item value.Value, fromRemote bool) {
			if e.blacklisted(item) {
				res.Diagnostics.Removed = append(res.Diagnostics.Removed, item.String())
				return
			}
			if contains(merged, item, c.compare) {
				return
			}
			merged = append(merged, item)
			if fromRemote {
				res.ConflictsResolved++
			} else {
				res.Diagnostics.Preserved = append(res.Diagnostics.Preserved, value.Normalize(item).String())
			}
		}
		for _, item := range l {
			add(item, false)
		}
		for _, item := range r {
			add(item, true)
		}
		res.Value = merged
		res.Confidence = 0.9
		return res
	case value.Mapping:
		r, ok := remote.(value.Mapping)
		if !ok {
			break
		}
		merged := l.Clone()
		collisions := 0
		for _, k := range r.Keys() {
			existing, present := l[k]
			if present && !compare.Equal(existing, r[k], c.compare) {
				collisions++
				res.warn("key %q: remote value overrides local", k)
			}
			if !present || !compare.Equal(existing, r[k], c.compare) {
				res.ConflictsResolved++
			}
			merged[k] = r[k]
		}
		res.Value = merged
		res.Confidence = 0.9
		if collisions > 0 {
			res.Confidence = 0.7
		}
		return res
	}

	// Scalars and mismatched shapes keep the first non-null value.
	res.Value = local
	if value.IsNull(local) {
		res.Value = remote
	}
	res.Confidence = 0.5
	res.warn("union of scalar values keeps the first non-null value")
	return res
}

func (e *Engine) blacklisted(v value.Value) bool {
	if e.blacklist == nil || e.blacklist.Len() == 0 {
		return false
	}
	return e.blacklist.Match(value.DisplayText(v))
}

func contains(items value.Sequence, v value.Value, opts compare.Options) bool {
	for _, item := range items {
		if compare.Equal(item, v, opts) {
			return true
		}
	}
	return false
}

func (e *Engine) intersection(local, remote value.Value, c call) *Result {
	res := &Result{Success: true, Algorithm: Intersection, Confidence: 0.8}

	switch l := local.(type) {
	case value.Sequence:
		r, ok := remote.(value.Sequence)
		if !ok {
			break
		}
		used := make([]bool, len(r))
		kept := make(value.Sequence, 0, min(len(l), len(r)))
		for _, item := range l {
			matched := false
			for j := range r {
				if !used[j] && compare.Equal(item, r[j], c.compare) {
					used[j] = true
					matched = true
					break
				}
			}
			if matched {
				kept = append(kept, item)
				res.Diagnostics.Preserved = append(res.Diagnostics.Preserved, value.Normalize(item).String())
			} else {
				res.Diagnostics.Removed = append(res.Diagnostics.Removed, value.Normalize(item).String())
			}
		}
		for j, item := range r {
			if !used[j] {
				res.Diagnostics.Removed = append(res.Diagnostics.Removed, value.Normalize(item).String())
			}
		}
		res.Value = kept
		res.ConflictsResolved = len(res.Diagnostics.Removed)
		return res
	case value.Mapping:
		r, ok := remote.(value.Mapping)
		if !ok {
			break
		}
		kept := value.Mapping{}
		for _, k := range l.Keys() {
			if rv, present := r[k]; present && compare.Equal(l[k], rv, c.compare) {
				kept[k] = l[k]
				res.Diagnostics.Preserved = append(res.Diagnostics.Preserved, k)
				continue
			}
			res.Diagnostics.Removed = append(res.Diagnostics.Removed, k)
		}
		for _, k := range r.Keys() {
			if _, present := l[k]; !present {
				res.Diagnostics.Removed = append(res.Diagnostics.Removed, k)
			}
		}
		res.Value = kept
		res.ConflictsResolved = len(res.Diagnostics.Removed)
		return res
	}

	if compare.Equal(local, remote, c.compare) {
		res.Value = local
		res.Confidence = 1.0
		return res
	}
	return &Result{
		Success:    false,
		Value:      value.Null{},
		Algorithm:  Intersection,
		Confidence: 0.1,
		Error:      "values have nothing in common",
	}
}

func (e *Engine) appendValues(local, remote value.Value, c call) *Result {
	switch l := local.(type) {
	case value.Text:
		r, ok := remote.(value.Text)
		if !ok {
			break
		}
		sep := "\n"
		if c.preserve {
			sep = remoteBanner
		}
		res := &Result{
			Success:           true,
			Value:             value.Text(string(l) + sep + string(r)),
			Algorithm:         Append,
			Confidence:        0.7,
			ConflictsResolved: 1,
		}
		res.Diagnostics.Preserved = []string{"local", "remote"}
		return res
	case value.Sequence:
		r, ok := remote.(value.Sequence)
		if !ok {
			break
		}
		merged := make(value.Sequence, 0, len(l)+len(r))
		merged = append(merged, l...)
		merged = append(merged, r...)
		return &Result{
			Success:           true,
			Value:             merged,
			Algorithm:         Append,
			Confidence:        0.7,
			ConflictsResolved: len(r),
		}
	}

	res := e.timestampPriority(local, remote, c)
	res.warn("append does not apply to %s values; used timestamp priority", local.Kind())
	return res
}

func (e *Engine) threeWay(local, remote value.Value, c call) *Result {
	l, lok := local.(value.Mapping)
	r, rok := remote.(value.Mapping)
	if !lok || !rok {
		res := e.union(local, remote, c)
		res.warn("key merge requires two objects; used union")
		return res
	}

	res := &Result{Success: true, Algorithm: ThreeWay}
	merged := make(value.Mapping, len(l)+len(r))
	keys := l.Keys()
	for _, k := range r.Keys() {
		if _, ok := l[k]; !ok {
			keys = append(keys, k)
		}
	}

	for _, k := range keys {
		lv, inLocal := l[k]
		rv, inRemote := r[k]
		switch {
		case inLocal && !inRemote:
			merged[k] = lv
			res.ConflictsResolved++
		case !inLocal && inRemote:
			merged[k] = rv
			res.ConflictsResolved++
		case compare.Equal(lv, rv, c.compare):
			merged[k] = lv
			res.Diagnostics.Preserved = append(res.Diagnostics.Preserved, k)
		default:
			side := "remote"
			merged[k] = rv
			if c.preferLocal {
				side = "local"
				merged[k] = lv
			}
			res.ConflictsRemaining++
			res.Diagnostics.Conflicts = append(res.Diagnostics.Conflicts,
				fmt.Sprintf("%s: local=%s remote=%s (kept %s)", k, value.Normalize(lv), value.Normalize(rv), side))
		}
	}

	res.Value = merged
	res.Confidence = 0.9
	if res.ConflictsRemaining > 0 {
		res.Confidence = max(0.3, min(0.6, 0.7-0.1*float64(res.ConflictsRemaining)))
		res.warn("%d key(s) changed on both sides", res.ConflictsRemaining)
	}
	return res
}

func (e *Engine) timestampPriority(local, remote value.Value, c call) *Result {
	res := &Result{Success: true, Algorithm: TimestampPriority}
	if !c.localTS.IsZero() && !c.remoteTS.IsZero() {
		res.Confidence = 0.8
		if c.remoteTS.After(c.localTS) {
			res.Value = remote
			res.Diagnostics.Preserved = []string{"remote"}
		} else {
			res.Value = local
			res.Diagnostics.Preserved = []string{"local"}
		}
		return res
	}
	res.Value = remote
	res.Confidence = 0.7
	res.Diagnostics.Preserved = []string{"remote"}
	res.warn("no timestamps available; assumed remote value is newer")
	return res
}

func (e *Engine) lengthPriority(local, remote value.Value, c call) *Result {
	res := &Result{Success: true, Algorithm: LengthPriority, Confidence: 0.6}
	if lt, ok := local.(value.Text); ok {
		if rt, ok := remote.(value.Text); ok {
			a, b := string(lt), string(rt)
			if strings.Contains(a, b) || strings.Contains(b, a) {
				res.Confidence = 0.8
			}
		}
	}

	if value.Size(remote) > value.Size(local) {
		res.Value = remote
		res.Diagnostics.Preserved = []string{"remote"}
	} else {
		res.Value = local
		res.Diagnostics.Preserved = []string{"local"}
	}
	return res
}

func (e *Engine) priorityBased(local, remote value.Value, c call) *Result {
	if table, ok := e.priorities[field.Normalize(c.field)]; ok {
		lr, lok := table[strings.ToLower(strings.TrimSpace(value.DisplayText(local)))]
		rr, rok := table[strings.ToLower(strings.TrimSpace(value.DisplayText(remote)))]
		if lok && rok {
			res := &Result{Success: true, Algorithm: PriorityBased, Confidence: 0.85}
			if rr > lr {
				res.Value = remote
			} else {
				res.Value = local
			}
			return res
		}
	}

	if ln, ok := local.(value.Number); ok {
		if rn, ok := remote.(value.Number); ok {
			res := &Result{Success: true, Algorithm: PriorityBased, Confidence: 0.8}
			if rn > ln {
				res.Value = remote
			} else {
				res.Value = local
			}
			return res
		}
	}

	res := e.timestampPriority(local, remote, c)
	res.warn("no priority information for field %q; used timestamp priority", c.field)
	return res
}
