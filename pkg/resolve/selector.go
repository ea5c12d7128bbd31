// Package resolve chooses how to settle a conflict record.
//
// A Selector applies caller overrides first, then a heuristic chosen by the
// field's category (status workflow order, priority escalation, title
// containment and so on), and delegates to the merge engine when values
// should be combined. Every call returns a Resolution; malformed records,
// panics and exhausted time budgets all resolve to MANUAL with low
// confidence.
package resolve

import (
	"context"
	"fmt"
	"time"

	"github.com/agentstation/utc"
	"github.com/rs/zerolog"

	"github.com/agentstation/syncmerge/pkg/conflict"
	"github.com/agentstation/syncmerge/pkg/constants"
	"github.com/agentstation/syncmerge/pkg/errors"
	"github.com/agentstation/syncmerge/pkg/field"
	"github.com/agentstation/syncmerge/pkg/logging"
	"github.com/agentstation/syncmerge/pkg/merge"
	"github.com/agentstation/syncmerge/pkg/value"
)

// Context carries caller preferences for one analysis.
type Context struct {
	// Timeout bounds wall-clock analysis time. Zero uses the default.
	Timeout time.Duration
	// DefaultStrategy applies to every field without a field strategy.
	DefaultStrategy conflict.Strategy
	// FieldStrategies force a strategy per field name.
	FieldStrategies map[string]conflict.Strategy
	// AlwaysUseNewer picks the most recently modified side.
	AlwaysUseNewer bool
	// AlwaysUseLonger picks the larger side.
	AlwaysUseLonger bool
}

func (c *Context) fieldStrategy(name string) (conflict.Strategy, bool) {
	if c == nil {
		return "", false
	}
	want := field.Normalize(name)
	for k, s := range c.FieldStrategies {
		if field.Normalize(k) == want {
			return s, true
		}
	}
	return "", false
}

// Selector analyzes conflict records. It holds no per-call state and is
// safe for concurrent use.
type Selector struct {
	merger    *merge.Engine
	threshold float64
	window    time.Duration
	defaults  Context
	clock     func() time.Time
	logger    *zerolog.Logger
}

// Option configures a Selector.
type Option func(*Selector)

// WithMergeEngine sets the engine used for MERGE resolutions.
func WithMergeEngine(e *merge.Engine) Option {
	return func(s *Selector) {
		if e != nil {
			s.merger = e
		}
	}
}

// WithConfirmationThreshold sets the confidence below which resolutions
// require user confirmation.
func WithConfirmationThreshold(t float64) Option {
	return func(s *Selector) {
		s.threshold = conflict.Clamp(t)
	}
}

// WithTimeThreshold sets the timestamp gap that makes the newer side
// authoritative in heuristics.
func WithTimeThreshold(d time.Duration) Option {
	return func(s *Selector) {
		if d >= 0 {
			s.window = d
		}
	}
}

// WithDefaultContext sets preferences used when a call passes no Context.
func WithDefaultContext(c Context) Option {
	return func(s *Selector) {
		s.defaults = c
	}
}

// WithClock replaces the wall clock used for time budgets.
func WithClock(now func() time.Time) Option {
	return func(s *Selector) {
		if now != nil {
			s.clock = now
		}
	}
}

// WithLogger sets the logger for analysis events.
func WithLogger(l *zerolog.Logger) Option {
	return func(s *Selector) {
		s.logger = logging.OrNop(l)
	}
}

// New creates a Selector.
func New(opts ...Option) *Selector {
	s := &Selector{
		threshold: constants.ConfirmationThreshold,
		window:    constants.DefaultTimeWindow,
		clock:     func() time.Time { return utc.Now().Time },
		logger:    logging.OrNop(nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.merger == nil {
		s.merger = merge.NewEngine(merge.WithLogger(s.logger))
	}
	return s
}

// AnalyzeConflict chooses a resolution for rec. c may be nil, in which case
// the selector's default context applies.
func (s *Selector) AnalyzeConflict(ctx context.Context, rec *conflict.Record, c *Context) (res *conflict.Resolution) {
	if c == nil {
		c = &s.defaults
	}
	budget := c.Timeout
	if budget <= 0 {
		budget = constants.DefaultAnalysisTimeout
	}
	if budget < constants.MinAnalysisBudget {
		return s.timedOut(rec, budget)
	}
	if ctx != nil && ctx.Err() != nil {
		return canceled(ctx)
	}

	start := s.clock()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn().Interface("panic", r).Msg("conflict analysis failed")
			res = conflict.Manual(0.2, fmt.Sprintf("analysis failed: %v", r))
		}
	}()

	if err := rec.Check(); err != nil {
		return conflict.Manual(0.2, "malformed conflict: "+err.Error())
	}

	res = s.analyze(rec, c)
	if elapsed := s.clock().Sub(start); elapsed > budget {
		return s.timedOut(rec, budget)
	}
	if ctx != nil && ctx.Err() != nil {
		return canceled(ctx)
	}

	res.Confidence = conflict.Clamp(res.Confidence)
	if res.Confidence < s.threshold || res.IsManual() {
		res.RequiresUserConfirmation = true
	}

	s.logger.Debug().
		Str("entity_key", rec.EntityKey).
		Str("field", rec.Field).
		Str("strategy", res.Strategy.String()).
		Float64("confidence", res.Confidence).
		Bool("confirm", res.RequiresUserConfirmation).
		Msg("conflict analyzed")
	return res
}

// AnalyzeBatch analyzes each record in order. Records left when ctx is
// canceled resolve to MANUAL.
func (s *Selector) AnalyzeBatch(ctx context.Context, recs []*conflict.Record, c *Context) []*conflict.Resolution {
	out := make([]*conflict.Resolution, len(recs))
	for i, rec := range recs {
		out[i] = s.AnalyzeConflict(ctx, rec, c)
	}
	return out
}

func (s *Selector) timedOut(rec *conflict.Record, budget time.Duration) *conflict.Resolution {
	ev := s.logger.Warn().Dur("budget", budget)
	if rec != nil {
		ev = ev.Str("entity_key", rec.EntityKey).Str("field", rec.Field)
	}
	ev.Msg("conflict analysis timed out")
	err := errors.NewTimeoutError("analyze", budget.String(), "budget exhausted")
	return conflict.Manual(constants.TimeoutConfidence, err.Error())
}

func canceled(ctx context.Context) *conflict.Resolution {
	return conflict.Manual(constants.TimeoutConfidence, fmt.Sprintf("%v: %v", errors.ErrCanceled, ctx.Err()))
}

func (s *Selector) analyze(rec *conflict.Record, c *Context) *conflict.Resolution {
	if strategy, ok := c.fieldStrategy(rec.Field); ok {
		return s.override(rec, strategy, "field preference")
	}
	if c.DefaultStrategy != "" {
		return s.override(rec, c.DefaultStrategy, "default preference")
	}
	if c.AlwaysUseNewer {
		if !rec.HasTimestamps() {
			return conflict.Manual(0.3, "cannot apply newer preference without timestamps")
		}
		strategy, v := rec.Newer()
		return conflict.Pick(strategy, v, 1.0, "preference: always use newer")
	}
	if c.AlwaysUseLonger {
		if value.Size(rec.RemoteValue) > value.Size(rec.LocalValue) {
			return conflict.Pick(conflict.StrategyRemote, rec.RemoteValue, 1.0, "preference: always use longer")
		}
		return conflict.Pick(conflict.StrategyLocal, rec.LocalValue, 1.0, "preference: always use longer")
	}
	return s.heuristic(rec)
}

func (s *Selector) override(rec *conflict.Record, strategy conflict.Strategy, source string) *conflict.Resolution {
	reason := fmt.Sprintf("%s: %s", source, strategy)
	switch strategy {
	case conflict.StrategyLocal:
		return conflict.Pick(strategy, rec.LocalValue, 1.0, reason)
	case conflict.StrategyRemote:
		return conflict.Pick(strategy, rec.RemoteValue, 1.0, reason)
	case conflict.StrategyManual:
		return conflict.Manual(1.0, reason)
	case conflict.StrategyMerge:
		return s.mergePath(rec, reason)
	default:
		return conflict.Manual(0.3, fmt.Sprintf("unknown strategy %q", strategy))
	}
}

// mergePath merges the way the field's heuristic would when it merges.
func (s *Selector) mergePath(rec *conflict.Record, reason string) *conflict.Resolution {
	_, lok := rec.LocalValue.(value.Sequence)
	_, rok := rec.RemoteValue.(value.Sequence)
	cat := field.Classify(rec.Field)
	switch {
	case cat == field.Labels && lok && rok:
		return s.merge(rec, merge.Union, 0.85, reason)
	case cat == field.Description:
		return s.merge(rec, "", 0, reason)
	case lok && rok:
		return s.merge(rec, "", 0.7, reason)
	default:
		return s.merge(rec, "", 0, reason)
	}
}

// merge runs the merge engine. A zero confidence keeps the engine's score.
func (s *Selector) merge(rec *conflict.Record, algorithm merge.Algorithm, confidence float64, reason string) *conflict.Resolution {
	mr := s.merger.Merge(rec.LocalValue, rec.RemoteValue, rec.Field, &merge.Options{
		Algorithm:      algorithm,
		LocalModified:  rec.LocalTimestamp,
		RemoteModified: rec.RemoteTimestamp,
	})
	if !mr.Success {
		res := conflict.Manual(min(mr.Confidence, 0.3), "merge failed: "+mr.Error)
		res.Merge = mr
		return res
	}

	if confidence == 0 {
		confidence = mr.Confidence
	}
	res := &conflict.Resolution{
		Strategy:      conflict.StrategyMerge,
		ResolvedValue: mr.Value,
		Confidence:    confidence,
		Reason:        fmt.Sprintf("%s (%s)", reason, mr.Algorithm),
		Merge:         mr,
	}
	if mr.ConflictsRemaining > 0 {
		res.Confidence = min(res.Confidence, 0.6)
		res.RequiresUserConfirmation = true
	}
	return res
}
