// Package conflict defines the records exchanged between detection,
// resolution and validation: a Record describes one disagreeing field of one
// entity, and a Resolution is the decision taken for it.
//
// Records are created by the detector or by a caller that already diffed two
// snapshots; they are consumed, never mutated, by the selector.
package conflict

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/agentstation/utc"
	"github.com/google/uuid"

	"github.com/agentstation/syncmerge/pkg/errors"
	"github.com/agentstation/syncmerge/pkg/merge"
	"github.com/agentstation/syncmerge/pkg/value"
)

// Type classifies how the two sides disagree.
type Type string

// Conflict types.
const (
	TypeConcurrentEdit Type = "CONCURRENT_EDIT"
	TypeDeletedRemote  Type = "DELETED_REMOTE"
	TypeTypeMismatch   Type = "TYPE_MISMATCH"
	TypeSchemaMismatch Type = "SCHEMA_MISMATCH"
)

// String returns the type name.
func (t Type) String() string { return string(t) }

// Severity is the importance of a conflict. It drives how readily manual
// review is chosen and is distinct from validation error severity.
type Severity string

// Conflict severities.
const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// String returns the severity name.
func (s Severity) String() string { return string(s) }

// Strategy is how a conflict is resolved.
type Strategy string

// Resolution strategies.
const (
	StrategyLocal  Strategy = "LOCAL"
	StrategyRemote Strategy = "REMOTE"
	StrategyMerge  Strategy = "MERGE"
	StrategyManual Strategy = "MANUAL"
)

// Strategies lists every strategy.
var Strategies = []Strategy{StrategyLocal, StrategyRemote, StrategyMerge, StrategyManual}

// String returns the strategy name.
func (s Strategy) String() string { return string(s) }

// ParseStrategy converts a configuration name into a Strategy. MANUAL_REVIEW
// is accepted as an alias of MANUAL.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "LOCAL":
		return StrategyLocal, nil
	case "REMOTE":
		return StrategyRemote, nil
	case "MERGE":
		return StrategyMerge, nil
	case "MANUAL", "MANUAL_REVIEW":
		return StrategyManual, nil
	default:
		return "", fmt.Errorf("%w: %q", errors.ErrUnknownStrategy, name)
	}
}

// Record is one detected disagreement on one field of one entity.
type Record struct {
	ID              string
	EntityKey       string
	Field           string
	LocalValue      value.Value
	RemoteValue     value.Value
	LocalTimestamp  time.Time
	RemoteTimestamp time.Time
	Severity        Severity
	Type            Type
	// Uncomparable is set when the values could not be compared at all.
	Uncomparable bool
	// Reason describes why the record was raised.
	Reason     string
	DetectedAt utc.Time
}

// NewRecord creates a concurrent-edit record with a fresh ID.
func NewRecord(entityKey, field string, local, remote value.Value, localTS, remoteTS time.Time) *Record {
	return &Record{
		ID:              uuid.NewString(),
		EntityKey:       entityKey,
		Field:           field,
		LocalValue:      value.Normalize(local),
		RemoteValue:     value.Normalize(remote),
		LocalTimestamp:  localTS,
		RemoteTimestamp: remoteTS,
		Severity:        SeverityMedium,
		Type:            TypeConcurrentEdit,
		DetectedAt:      utc.Now(),
	}
}

// Gap returns the absolute difference between the two timestamps.
func (r *Record) Gap() time.Duration {
	return r.RemoteTimestamp.Sub(r.LocalTimestamp).Abs()
}

// RemoteNewer reports whether the remote side was modified after the local side.
func (r *Record) RemoteNewer() bool {
	return r.RemoteTimestamp.After(r.LocalTimestamp)
}

// Newer returns the strategy and value of the more recently modified side.
// Ties favor local.
func (r *Record) Newer() (Strategy, value.Value) {
	if r.RemoteNewer() {
		return StrategyRemote, value.Normalize(r.RemoteValue)
	}
	return StrategyLocal, value.Normalize(r.LocalValue)
}

// HasTimestamps reports whether both timestamps are usable.
func (r *Record) HasTimestamps() bool {
	return usable(r.LocalTimestamp) && usable(r.RemoteTimestamp)
}

func usable(t time.Time) bool {
	if t.IsZero() {
		return false
	}
	ms := t.UnixMilli()
	return ms > math.MinInt64/2 && ms < math.MaxInt64/2
}

// Check reports malformed records. A record needs a field name, and values
// that contain no cycles.
func (r *Record) Check() error {
	if r == nil {
		return errors.NewValidationError("record", nil, "record is nil")
	}
	if strings.TrimSpace(r.Field) == "" {
		return errors.NewValidationError("field", r.Field, "field name is required")
	}
	if err := value.CheckAcyclic(r.LocalValue); err != nil {
		return errors.NewValidationError("local_value", nil, err.Error())
	}
	if err := value.CheckAcyclic(r.RemoteValue); err != nil {
		return errors.NewValidationError("remote_value", nil, err.Error())
	}
	return nil
}

// Resolution is the decision for one Record. ResolvedValue is nil when the
// strategy is MANUAL.
type Resolution struct {
	Strategy                 Strategy
	ResolvedValue            value.Value
	Confidence               float64
	Reason                   string
	RequiresUserConfirmation bool
	// Merge is set when the value was produced by the merge engine.
	Merge *merge.Result
}

// Manual returns a MANUAL resolution.
func Manual(confidence float64, reason string) *Resolution {
	return &Resolution{
		Strategy:                 StrategyManual,
		Confidence:               clamp(confidence),
		Reason:                   reason,
		RequiresUserConfirmation: true,
	}
}

// Pick returns a LOCAL or REMOTE resolution carrying v.
func Pick(strategy Strategy, v value.Value, confidence float64, reason string) *Resolution {
	return &Resolution{
		Strategy:      strategy,
		ResolvedValue: value.Normalize(v),
		Confidence:    clamp(confidence),
		Reason:        reason,
	}
}

// IsManual reports whether the resolution defers to a human.
func (r *Resolution) IsManual() bool {
	return r.Strategy == StrategyManual
}

func clamp(c float64) float64 {
	switch {
	case math.IsNaN(c), c < 0:
		return 0
	case c > 1:
		return 1
	default:
		return c
	}
}

// Clamp bounds a confidence to [0, 1]; NaN becomes 0.
func Clamp(c float64) float64 { return clamp(c) }
