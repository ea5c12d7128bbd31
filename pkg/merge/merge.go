// Package merge combines two values of the same field into one.
//
// An Engine selects one of eight algorithms from the value shapes and the
// field name (or from an explicit override), runs it, and reports the merged
// value together with a confidence score and diagnostics. Merge never
// panics: inputs that cannot be combined produce a Result with Success set
// to false that falls back to the local value.
//
// Engines are configured once through options and are immutable afterward,
// so a single Engine may be shared by concurrent callers.
package merge

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/syncmerge/internal/matcher"
	"github.com/agentstation/syncmerge/pkg/compare"
	"github.com/agentstation/syncmerge/pkg/constants"
	"github.com/agentstation/syncmerge/pkg/errors"
	"github.com/agentstation/syncmerge/pkg/field"
	"github.com/agentstation/syncmerge/pkg/logging"
	"github.com/agentstation/syncmerge/pkg/value"
)

// Algorithm names a merge algorithm.
type Algorithm string

// Merge algorithms.
const (
	Union             Algorithm = "UNION"
	Intersection      Algorithm = "INTERSECTION"
	Append            Algorithm = "APPEND"
	SmartText         Algorithm = "SMART_TEXT_MERGE"
	ThreeWay          Algorithm = "THREE_WAY_MERGE"
	TimestampPriority Algorithm = "TIMESTAMP_PRIORITY"
	LengthPriority    Algorithm = "LENGTH_PRIORITY"
	PriorityBased     Algorithm = "PRIORITY_BASED"
)

// Algorithms lists every algorithm.
var Algorithms = []Algorithm{
	Union, Intersection, Append, SmartText, ThreeWay, TimestampPriority, LengthPriority, PriorityBased,
}

// String returns the algorithm name.
func (a Algorithm) String() string { return string(a) }

// Valid reports whether a is one of the known algorithms.
func (a Algorithm) Valid() bool {
	for _, known := range Algorithms {
		if a == known {
			return true
		}
	}
	return false
}

// ParseAlgorithm converts a configuration name into an Algorithm.
func ParseAlgorithm(name string) (Algorithm, error) {
	a := Algorithm(strings.ToUpper(strings.TrimSpace(name)))
	if !a.Valid() {
		return "", fmt.Errorf("%w: %q", errors.ErrUnknownAlgorithm, name)
	}
	return a, nil
}

// Diagnostics describe what a merge kept, dropped and could not decide.
type Diagnostics struct {
	Preserved []string
	Removed   []string
	Warnings  []string
	Conflicts []string
}

// Result is the outcome of merging one value pair.
type Result struct {
	Success            bool
	Value              value.Value
	Algorithm          Algorithm
	Confidence         float64
	ConflictsResolved  int
	ConflictsRemaining int
	Diagnostics        Diagnostics
	// Error describes why the merge failed when Success is false.
	Error string
}

func (r *Result) warn(format string, args ...any) {
	r.Diagnostics.Warnings = append(r.Diagnostics.Warnings, fmt.Sprintf(format, args...))
}

// Options tune a single Merge call. The zero value selects the algorithm
// automatically and uses the engine's configuration.
type Options struct {
	// Algorithm forces an algorithm instead of automatic selection.
	Algorithm Algorithm
	// PreserveFormatting separates appended remote content with a banner.
	PreserveFormatting bool
	// Markers overrides the engine's conflict markers.
	Markers *Markers
	// PreferLocal overrides the engine's key collision policy.
	PreferLocal *bool
	// LocalModified and RemoteModified let timestamp priority use real
	// modification times. Both must be set to take effect.
	LocalModified  time.Time
	RemoteModified time.Time
	// Compare overrides the equality rules used for elements and sections.
	Compare *compare.Options
}

// Engine runs merges. Create one with NewEngine.
type Engine struct {
	algorithms  map[string]Algorithm
	priorities  map[string]map[string]int
	blacklist   *matcher.Set
	markers     Markers
	preferLocal bool
	compare     compare.Options
	logger      *zerolog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithFieldAlgorithm forces an algorithm for a field name.
func WithFieldAlgorithm(fieldName string, a Algorithm) Option {
	return func(e *Engine) {
		e.algorithms[field.Normalize(fieldName)] = a
	}
}

// WithPriorityTable sets the value ranks PRIORITY_BASED uses for a field.
// Value names are matched case insensitively; a higher rank wins.
func WithPriorityTable(fieldName string, ranks map[string]int) Option {
	return func(e *Engine) {
		table := make(map[string]int, len(ranks))
		for k, v := range ranks {
			table[strings.ToLower(strings.TrimSpace(k))] = v
		}
		e.priorities[field.Normalize(fieldName)] = table
	}
}

// WithBlacklist excludes matching values from union merges.
func WithBlacklist(s *matcher.Set) Option {
	return func(e *Engine) {
		e.blacklist = s
	}
}

// WithMarkers sets the conflict markers written by text merges.
func WithMarkers(m Markers) Option {
	return func(e *Engine) {
		e.markers = m.withDefaults()
	}
}

// WithPreferLocal makes key collisions keep the local value.
func WithPreferLocal(enabled bool) Option {
	return func(e *Engine) {
		e.preferLocal = enabled
	}
}

// WithCompareOptions sets the equality rules used during merges.
func WithCompareOptions(opts compare.Options) Option {
	return func(e *Engine) {
		e.compare = opts
	}
}

// WithLogger sets the logger used for selection and failure events.
func WithLogger(l *zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = logging.OrNop(l)
	}
}

// NewEngine creates an Engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		algorithms: make(map[string]Algorithm),
		priorities: make(map[string]map[string]int),
		markers:    DefaultMarkers(),
		compare:    compare.DefaultOptions(),
		logger:     logging.OrNop(nil),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Markers returns the engine's configured conflict markers.
func (e *Engine) Markers() Markers {
	return e.markers
}

// call carries the per-call settings resolved against the engine.
type call struct {
	field       string
	markers     Markers
	preferLocal bool
	preserve    bool
	compare     compare.Options
	localTS     time.Time
	remoteTS    time.Time
}

func (e *Engine) resolve(fieldName string, opts *Options) call {
	c := call{
		field:       fieldName,
		markers:     e.markers,
		preferLocal: e.preferLocal,
		compare:     e.compare,
	}
	if opts == nil {
		return c
	}
	c.preserve = opts.PreserveFormatting
	if opts.Markers != nil {
		c.markers = opts.Markers.withDefaults()
	}
	if opts.PreferLocal != nil {
		c.preferLocal = *opts.PreferLocal
	}
	if opts.Compare != nil {
		c.compare = *opts.Compare
	}
	c.localTS, c.remoteTS = opts.LocalModified, opts.RemoteModified
	return c
}

// Merge combines local and remote values of fieldName. opts may be nil.
func (e *Engine) Merge(local, remote value.Value, fieldName string, opts *Options) (res *Result) {
	local, remote = value.Normalize(local), value.Normalize(remote)
	c := e.resolve(fieldName, opts)

	algorithm := Algorithm("")
	defer func() {
		if r := recover(); r != nil {
			res = e.failure(local, algorithm, fieldName, fmt.Errorf("merge panicked: %v", r))
		}
	}()

	if value.CheckAcyclic(local) != nil || value.CheckAcyclic(remote) != nil {
		return e.failure(local, algorithm, fieldName, errors.ErrCyclicValue)
	}

	algorithm = e.algorithmFor(local, remote, fieldName, opts)
	if !algorithm.Valid() {
		return e.failure(local, algorithm, fieldName, fmt.Errorf("%w: %q", errors.ErrUnknownAlgorithm, algorithm))
	}

	if compare.Equal(local, remote, c.compare) {
		return &Result{
			Success:    true,
			Value:      local,
			Algorithm:  algorithm,
			Confidence: 1.0,
		}
	}
	if lEmpty, rEmpty := value.IsEmpty(local), value.IsEmpty(remote); lEmpty || rEmpty {
		res := &Result{Success: true, Algorithm: algorithm, Confidence: 1.0}
		switch {
		case lEmpty && rEmpty:
			res.Value = local
			res.warn("both values were empty")
		case lEmpty:
			res.Value = remote
			res.warn("local value was empty; kept remote value")
		default:
			res.Value = local
			res.warn("remote value was empty; kept local value")
		}
		return res
	}

	e.logger.Debug().
		Str("field", fieldName).
		Str("algorithm", algorithm.String()).
		Str("local_kind", local.Kind().String()).
		Str("remote_kind", remote.Kind().String()).
		Msg("merging values")

	res = e.run(algorithm, local, remote, c)
	if !res.Success {
		e.logger.Warn().Str("field", fieldName).Str("algorithm", res.Algorithm.String()).Str("error", res.Error).Msg("merge failed")
	}
	return res
}

func (e *Engine) algorithmFor(local, remote value.Value, fieldName string, opts *Options) Algorithm {
	if opts != nil && opts.Algorithm != "" {
		return opts.Algorithm
	}
	if a, ok := e.algorithms[field.Normalize(fieldName)]; ok {
		return a
	}
	return SelectAlgorithm(local, remote, fieldName)
}

// SelectAlgorithm picks an algorithm from the value shapes and field name.
func SelectAlgorithm(local, remote value.Value, fieldName string) Algorithm {
	local, remote = value.Normalize(local), value.Normalize(remote)
	if local.Kind() != remote.Kind() {
		return TimestampPriority
	}

	switch l := local.(type) {
	case value.Text:
		a, b := string(l), string(remote.(value.Text))
		if strings.Contains(a, b) || strings.Contains(b, a) {
			return LengthPriority
		}
		la, lb := value.Size(l), value.Size(remote)
		if field.IsLongText(fieldName) && la > constants.LongTextThreshold && lb > constants.LongTextThreshold {
			return SmartText
		}
		if similarLength(la, lb) && la < constants.ShortTextThreshold && lb < constants.ShortTextThreshold {
			return SmartText
		}
		return Append
	case value.Sequence:
		if field.IsSetLike(fieldName) {
			return Union
		}
		if field.IsOrdered(fieldName) {
			return ThreeWay
		}
		return Union
	case value.Mapping:
		return ThreeWay
	case value.Number:
		if field.IsEstimate(fieldName) {
			return PriorityBased
		}
		return TimestampPriority
	default:
		return TimestampPriority
	}
}

// similarLength reports whether the shorter length is at least half the longer.
func similarLength(a, b int) bool {
	shorter, longer := min(a, b), max(a, b)
	return longer == 0 || shorter*2 >= longer
}

func (e *Engine) run(a Algorithm, local, remote value.Value, c call) *Result {
	switch a {
	case Union:
		return e.union(local, remote, c)
	case Intersection:
		return e.intersection(local, remote, c)
	case Append:
		return e.appendValues(local, remote, c)
	case SmartText:
		return e.smartText(local, remote, c)
	case ThreeWay:
		return e.threeWay(local, remote, c)
	case TimestampPriority:
		return e.timestampPriority(local, remote, c)
	case LengthPriority:
		return e.lengthPriority(local, remote, c)
	case PriorityBased:
		return e.priorityBased(local, remote, c)
	default:
		return e.failure(local, a, c.field, fmt.Errorf("%w: %q", errors.ErrUnknownAlgorithm, a))
	}
}

func (e *Engine) failure(local value.Value, a Algorithm, fieldName string, err error) *Result {
	merr := errors.NewMergeError(fieldName, a.String(), err)
	e.logger.Warn().Err(merr).Msg("merge failed; falling back to local value")
	res := &Result{
		Success:    false,
		Value:      value.Normalize(local),
		Algorithm:  a,
		Confidence: constants.FailedMergeConfidence,
		Error:      merr.Error(),
	}
	res.warn("merge failed; local value kept")
	return res
}
