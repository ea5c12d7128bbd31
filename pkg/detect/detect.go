// Package detect decides whether two timestamped snapshots of the same
// entity disagree, and on which fields.
//
// A field conflicts when its values differ under the comparator and the two
// modification times fall within the detector's time window. When one side
// leads by more than the window the edits are not concurrent: the newer side
// simply wins and no record is produced.
//
// Detection never panics. A field whose comparison fails is reported as an
// uncomparable record, which SuggestResolution routes to manual review.
package detect

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/syncmerge/pkg/compare"
	"github.com/agentstation/syncmerge/pkg/conflict"
	"github.com/agentstation/syncmerge/pkg/constants"
	"github.com/agentstation/syncmerge/pkg/field"
	"github.com/agentstation/syncmerge/pkg/logging"
	"github.com/agentstation/syncmerge/pkg/merge"
	"github.com/agentstation/syncmerge/pkg/value"
)

// RecordField is the field name used for whole-record conflicts.
const RecordField = "_record"

// Snapshot is one side's view of an entity.
type Snapshot struct {
	Key      string
	Fields   value.Mapping
	Modified time.Time
}

// Get returns a field value, or Null when the field is absent.
func (s *Snapshot) Get(name string) value.Value {
	if s == nil {
		return value.Null{}
	}
	return s.Fields.Get(name)
}

// Has reports whether the snapshot carries a non-null value for name.
func (s *Snapshot) Has(name string) bool {
	return !value.IsNull(s.Get(name))
}

// Stats are the detector's running counters.
type Stats struct {
	Total   int
	ByType  map[conflict.Type]int
	ByField map[string]int
}

// Detector finds conflicts between snapshots. It is safe for concurrent use.
type Detector struct {
	window       time.Duration
	compare      compare.Options
	fields       map[string]compare.Options
	historyLimit int
	merger       *merge.Engine
	logger       *zerolog.Logger

	mu      sync.Mutex
	stats   Stats
	history map[string][]*conflict.Record
}

// Option configures a Detector.
type Option func(*Detector)

// WithTimeWindow sets the gap beyond which edits are not concurrent.
func WithTimeWindow(d time.Duration) Option {
	return func(det *Detector) {
		if d >= 0 {
			det.window = d
		}
	}
}

// WithCompareOptions sets the default comparison rules.
func WithCompareOptions(opts compare.Options) Option {
	return func(det *Detector) {
		det.compare = opts
	}
}

// WithFieldOptions overrides comparison rules for one field.
func WithFieldOptions(name string, opts compare.Options) Option {
	return func(det *Detector) {
		det.fields[field.Normalize(name)] = opts
	}
}

// WithHistoryLimit bounds the records retained per entity key.
func WithHistoryLimit(n int) Option {
	return func(det *Detector) {
		if n >= 0 {
			det.historyLimit = n
		}
	}
}

// WithMergeEngine sets the engine used to compute suggested unions.
func WithMergeEngine(e *merge.Engine) Option {
	return func(det *Detector) {
		if e != nil {
			det.merger = e
		}
	}
}

// WithLogger sets the logger for detection events.
func WithLogger(l *zerolog.Logger) Option {
	return func(det *Detector) {
		det.logger = logging.OrNop(l)
	}
}

// New creates a Detector.
func New(opts ...Option) *Detector {
	d := &Detector{
		window:       constants.DefaultTimeWindow,
		compare:      compare.DefaultOptions(),
		fields:       make(map[string]compare.Options),
		historyLimit: constants.DefaultHistoryLimit,
		logger:       logging.OrNop(nil),
		history:      make(map[string][]*conflict.Record),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.merger == nil {
		d.merger = merge.NewEngine(merge.WithLogger(d.logger))
	}
	d.stats = newStats()
	return d
}

func newStats() Stats {
	return Stats{ByType: make(map[conflict.Type]int), ByField: make(map[string]int)}
}

// TimeWindow returns the configured concurrency window.
func (d *Detector) TimeWindow() time.Duration {
	return d.window
}

// OptionsFor returns the comparison rules applied to a field.
func (d *Detector) OptionsFor(name string) compare.Options {
	if opts, ok := d.fields[field.Normalize(name)]; ok {
		return opts
	}
	return d.compare
}

// DetectConflict checks one field. It returns nil when the values are equal
// or when one side leads the other by more than the time window.
func (d *Detector) DetectConflict(local, remote *Snapshot, name string) *conflict.Record {
	if local == nil || remote == nil {
		return nil
	}
	rec := d.detectField(local, remote, name)
	if rec != nil {
		d.record(rec)
	}
	return rec
}

// DetectAllConflicts checks every field present on both sides, in name order.
func (d *Detector) DetectAllConflicts(local, remote *Snapshot) []*conflict.Record {
	if local == nil || remote == nil {
		return nil
	}
	var out []*conflict.Record
	for _, name := range sharedFields(local, remote) {
		if rec := d.detectField(local, remote, name); rec != nil {
			d.record(rec)
			out = append(out, rec)
		}
	}
	return out
}

func (d *Detector) detectField(local, remote *Snapshot, name string) (rec *conflict.Record) {
	lv, rv := local.Get(name), remote.Get(name)
	defer func() {
		if r := recover(); r != nil {
			rec = d.newRecord(local, remote, name, lv, rv, conflict.TypeConcurrentEdit)
			rec.Uncomparable = true
			rec.Reason = fmt.Sprintf("comparison failed: %v", r)
		}
	}()

	res := compare.Compare(lv, rv, d.OptionsFor(name))
	if !res.HasConflict {
		return nil
	}
	if !res.Uncomparable && d.outsideWindow(local.Modified, remote.Modified) {
		return nil
	}

	rec = d.newRecord(local, remote, name, lv, rv, conflict.TypeConcurrentEdit)
	rec.Uncomparable = res.Uncomparable
	rec.Reason = res.Reason
	return rec
}

func (d *Detector) outsideWindow(a, b time.Time) bool {
	if a.IsZero() || b.IsZero() {
		return false
	}
	return b.Sub(a).Abs() > d.window
}

// DetectDeletedItemConflict reports a DELETED_REMOTE record when the local
// snapshot exists and the remote one does not.
func (d *Detector) DetectDeletedItemConflict(local, remote *Snapshot) *conflict.Record {
	if local == nil || remote != nil {
		return nil
	}
	rec := d.newRecord(local, nil, RecordField, local.Fields, value.Null{}, conflict.TypeDeletedRemote)
	rec.Reason = "remote record no longer exists"
	d.record(rec)
	return rec
}

// DetectTypeConflicts reports fields whose two values have incompatible
// shapes. RFC3339 text and instants are treated as the same shape.
func (d *Detector) DetectTypeConflicts(local, remote *Snapshot) []*conflict.Record {
	if local == nil || remote == nil {
		return nil
	}
	var out []*conflict.Record
	for _, name := range sharedFields(local, remote) {
		lv, rv := local.Get(name), remote.Get(name)
		if value.IsNull(lv) || value.IsNull(rv) || lv.Kind() == rv.Kind() {
			continue
		}
		if compare.Equal(lv, rv, d.OptionsFor(name)) {
			continue
		}
		rec := d.newRecord(local, remote, name, lv, rv, conflict.TypeTypeMismatch)
		rec.Reason = fmt.Sprintf("local is %s, remote is %s", lv.Kind(), rv.Kind())
		d.record(rec)
		out = append(out, rec)
	}
	return out
}

// DetectSchemaConflicts reports fields that carry a value on one side only.
func (d *Detector) DetectSchemaConflicts(local, remote *Snapshot) []*conflict.Record {
	if local == nil || remote == nil {
		return nil
	}
	names := map[string]bool{}
	for k := range local.Fields {
		names[k] = true
	}
	for k := range remote.Fields {
		names[k] = true
	}

	var out []*conflict.Record
	for _, name := range sortedKeys(names) {
		inLocal, inRemote := local.Has(name), remote.Has(name)
		if inLocal == inRemote {
			continue
		}
		rec := d.newRecord(local, remote, name, local.Get(name), remote.Get(name), conflict.TypeSchemaMismatch)
		if inLocal {
			rec.Reason = "field missing on remote"
		} else {
			rec.Reason = "field missing on local"
		}
		d.record(rec)
		out = append(out, rec)
	}
	return out
}

func (d *Detector) newRecord(local, remote *Snapshot, name string, lv, rv value.Value, t conflict.Type) *conflict.Record {
	var localTS, remoteTS time.Time
	key := ""
	if local != nil {
		localTS, key = local.Modified, local.Key
	}
	if remote != nil {
		remoteTS = remote.Modified
		if key == "" {
			key = remote.Key
		}
	}
	rec := conflict.NewRecord(key, name, lv, rv, localTS, remoteTS)
	rec.Type = t
	rec.Severity = InferSeverity(name, t)
	return rec
}

// InferSeverity assigns a severity from the field and conflict type.
func InferSeverity(name string, t conflict.Type) conflict.Severity {
	switch t {
	case conflict.TypeDeletedRemote, conflict.TypeTypeMismatch:
		return conflict.SeverityHigh
	case conflict.TypeSchemaMismatch:
		return conflict.SeverityLow
	}
	switch field.Classify(name) {
	case field.Status, field.Priority, field.Assignee, field.Sprint:
		return conflict.SeverityHigh
	case field.Title, field.Description:
		return conflict.SeverityMedium
	default:
		return conflict.SeverityLow
	}
}

func (d *Detector) record(rec *conflict.Record) {
	d.logger.Debug().
		Str("entity_key", rec.EntityKey).
		Str("field", rec.Field).
		Str("conflict_type", rec.Type.String()).
		Str("severity", rec.Severity.String()).
		Msg("conflict detected")

	d.mu.Lock()
	defer d.mu.Unlock()
	d.stats.Total++
	d.stats.ByType[rec.Type]++
	d.stats.ByField[rec.Field]++

	if d.historyLimit == 0 {
		return
	}
	h := append(d.history[rec.EntityKey], rec)
	if len(h) > d.historyLimit {
		h = h[len(h)-d.historyLimit:]
	}
	d.history[rec.EntityKey] = h
}

// Stats returns a copy of the running counters.
func (d *Detector) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := newStats()
	out.Total = d.stats.Total
	for k, v := range d.stats.ByType {
		out.ByType[k] = v
	}
	for k, v := range d.stats.ByField {
		out.ByField[k] = v
	}
	return out
}

// History returns the retained records for an entity, oldest first.
func (d *Detector) History(entityKey string) []*conflict.Record {
	d.mu.Lock()
	defer d.mu.Unlock()
	h := d.history[entityKey]
	out := make([]*conflict.Record, len(h))
	copy(out, h)
	return out
}

// Reset clears counters and history.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stats = newStats()
	d.history = make(map[string][]*conflict.Record)
}

// sharedFields lists keys present on both snapshots, sorted.
func sharedFields(local, remote *Snapshot) []string {
	names := map[string]bool{}
	for k := range local.Fields {
		if _, ok := remote.Fields[k]; ok {
			names[k] = true
		}
	}
	return sortedKeys(names)
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
