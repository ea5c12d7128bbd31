// Package syncmerge reconciles two diverged copies of the same record.
//
// An Engine wires the four stages together: the detector finds fields that
// were edited concurrently, the selector proposes a resolution per field
// (running the merge engine when both sides should be kept), and the
// validator checks each proposal before it is applied. Every stage reports
// problems inside its outcome, so Reconcile never fails.
//
//	engine, err := syncmerge.New(syncmerge.WithTimeWindow(time.Minute))
//	if err != nil {
//		return err
//	}
//	report := engine.Reconcile(ctx, local, remote)
//	for _, fr := range report.Pending() {
//		fmt.Println(fr.Field, fr.Resolution.Reason)
//	}
package syncmerge

import (
	"context"

	"github.com/agentstation/utc"
	"github.com/rs/zerolog"

	"github.com/agentstation/syncmerge/pkg/compare"
	"github.com/agentstation/syncmerge/pkg/conflict"
	"github.com/agentstation/syncmerge/pkg/detect"
	"github.com/agentstation/syncmerge/pkg/logging"
	"github.com/agentstation/syncmerge/pkg/merge"
	"github.com/agentstation/syncmerge/pkg/resolve"
	"github.com/agentstation/syncmerge/pkg/validate"
	"github.com/agentstation/syncmerge/pkg/value"
)

// Engine reconciles snapshots. It is safe for concurrent use once built;
// hooks should be registered before the first call.
type Engine struct {
	detector  *detect.Detector
	selector  *resolve.Selector
	merger    *merge.Engine
	validator *validate.Validator
	prefs     resolve.Context
	hooks     *hooks
	logger    *zerolog.Logger
}

// New creates an Engine. Malformed options fail here with a configuration
// error.
func New(opts ...Option) (*Engine, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	logger := logging.OrNop(cfg.logger)

	mergeOpts := append([]merge.Option{merge.WithLogger(logger)}, cfg.mergeOpts...)
	merger := merge.NewEngine(mergeOpts...)

	detectOpts := []detect.Option{
		detect.WithTimeWindow(cfg.timeWindow),
		detect.WithHistoryLimit(cfg.historyLimit),
		detect.WithMergeEngine(merger),
		detect.WithLogger(logger),
	}
	if cfg.compareDefaults != nil {
		detectOpts = append(detectOpts, detect.WithCompareOptions(*cfg.compareDefaults))
	}
	for name, o := range cfg.compareFields {
		detectOpts = append(detectOpts, detect.WithFieldOptions(name, o))
	}

	validatorOpts := append([]validate.Option{
		validate.WithMarkers(merger.Markers()),
		validate.WithLogger(logger),
	}, cfg.validatorOpts...)
	validator, err := validate.NewValidator(validatorOpts...)
	if err != nil {
		return nil, err
	}

	prefs := cfg.preferences
	prefs.Timeout = cfg.analysisTimeout

	return &Engine{
		detector: detect.New(detectOpts...),
		selector: resolve.New(
			resolve.WithMergeEngine(merger),
			resolve.WithConfirmationThreshold(cfg.threshold),
			resolve.WithTimeThreshold(cfg.timeWindow),
			resolve.WithDefaultContext(prefs),
			resolve.WithLogger(logger),
		),
		merger:    merger,
		validator: validator,
		prefs:     prefs,
		hooks:     newHooks(),
		logger:    logger,
	}, nil
}

// Detector returns the conflict detector.
func (e *Engine) Detector() *detect.Detector { return e.detector }

// Selector returns the resolution strategy selector.
func (e *Engine) Selector() *resolve.Selector { return e.selector }

// Merger returns the merge engine.
func (e *Engine) Merger() *merge.Engine { return e.merger }

// Validator returns the resolution validator.
func (e *Engine) Validator() *validate.Validator { return e.validator }

// OnConflictDetected registers a callback for every detected conflict.
func (e *Engine) OnConflictDetected(fn ConflictDetectedHook) { e.hooks.addDetected(fn) }

// OnResolved registers a callback for every analyzed field.
func (e *Engine) OnResolved(fn ResolvedHook) { e.hooks.addResolved(fn) }

// OnBlocked registers a callback for resolutions rejected by validation.
func (e *Engine) OnBlocked(fn BlockedHook) { e.hooks.addBlocked(fn) }

// Reconcile detects, resolves and validates every conflict between two
// snapshots. A nil remote with a non-nil local is a remote deletion.
func (e *Engine) Reconcile(ctx context.Context, local, remote *detect.Snapshot) *Report {
	if ctx == nil {
		ctx = context.Background()
	}
	report := &Report{AnalyzedAt: utc.Now(), Merged: value.Mapping{}}
	switch {
	case local == nil && remote == nil:
		return report
	case local == nil:
		report.EntityKey = remote.Key
		report.Merged = remote.Fields.Clone()
		return report
	case remote == nil:
		report.EntityKey = local.Key
		report.Merged = local.Fields.Clone()
		report.Deleted = e.detector.DetectDeletedItemConflict(local, nil)
		e.hooks.detected(report.Deleted)
		return report
	}

	report.EntityKey = local.Key
	if report.EntityKey == "" {
		report.EntityKey = remote.Key
	}
	log := e.logger.With().Str("entity_key", report.EntityKey).Logger()

	records := e.detector.DetectAllConflicts(local, remote)
	report.TypeConflicts = e.detector.DetectTypeConflicts(local, remote)
	report.SchemaConflicts = e.detector.DetectSchemaConflicts(local, remote)
	e.hooks.detected(records...)
	e.hooks.detected(report.TypeConflicts...)
	e.hooks.detected(report.SchemaConflicts...)

	report.Merged = e.baseline(local, remote)
	resolutions := e.selector.AnalyzeBatch(ctx, records, nil)
	for i, rec := range records {
		if v, ok := (FieldReport{Resolution: resolutions[i]}).Value(); ok {
			report.Merged[rec.Field] = v
		}
	}

	report.Fields = make([]FieldReport, len(records))
	for i, rec := range records {
		fr := e.validateField(rec, resolutions[i], report.Merged)
		if v, ok := fr.Value(); ok {
			report.Merged[rec.Field] = v
		} else {
			report.Merged[rec.Field] = value.Normalize(rec.LocalValue)
		}
		report.Fields[i] = fr
		e.hooks.resolved(fr)
	}

	log.Debug().
		Int("conflicts", len(records)).
		Int("pending", len(report.Pending())).
		Int("schema_conflicts", len(report.SchemaConflicts)).
		Int("type_conflicts", len(report.TypeConflicts)).
		Msg("record reconciled")
	return report
}

// ReconcileField reconciles one field. It returns nil when the field does
// not conflict.
func (e *Engine) ReconcileField(ctx context.Context, local, remote *detect.Snapshot, name string) *FieldReport {
	rec := e.detector.DetectConflict(local, remote, name)
	if rec == nil {
		return nil
	}
	e.hooks.detected(rec)

	fields := e.baseline(local, remote)
	res := e.selector.AnalyzeConflict(ctx, rec, nil)
	if v, ok := (FieldReport{Resolution: res}).Value(); ok {
		fields[name] = v
	}
	fr := e.validateField(rec, res, fields)
	e.hooks.resolved(fr)
	return &fr
}

// Resolve analyzes a single record with explicit preferences. Nil prefs
// use the engine's preferences.
func (e *Engine) Resolve(ctx context.Context, rec *conflict.Record, prefs *resolve.Context) FieldReport {
	if prefs != nil && prefs.Timeout == 0 {
		p := *prefs
		p.Timeout = e.prefs.Timeout
		prefs = &p
	}
	res := e.selector.AnalyzeConflict(ctx, rec, prefs)
	fr := e.validateField(rec, res, nil)
	e.hooks.resolved(fr)
	return fr
}

// Merge runs the merge engine directly.
func (e *Engine) Merge(local, remote value.Value, name string, opts *merge.Options) *merge.Result {
	return e.merger.Merge(local, remote, name, opts)
}

func (e *Engine) validateField(rec *conflict.Record, res *conflict.Resolution, fields value.Mapping) FieldReport {
	name := ""
	if rec != nil {
		name = rec.Field
	}
	fr := FieldReport{Field: name, Record: rec, Resolution: res}
	if res != nil && res.Merge != nil && !res.IsManual() {
		fr.Validation = e.validator.ValidateMergeResult(res.Merge, name, rec, &validate.Context{Fields: fields})
	} else {
		fr.Validation = e.validator.ValidateResolution(res, rec, &validate.Context{Fields: fields})
	}
	fr.Blocked = !fr.Validation.IsValid
	return fr
}

// baseline builds the merged record before conflicts are applied: fields
// present on one side come from that side, equal fields from local, and
// fields that differ outside the time window from the newer snapshot.
func (e *Engine) baseline(local, remote *detect.Snapshot) value.Mapping {
	out := value.Mapping{}
	if local == nil || remote == nil {
		if local != nil {
			return local.Fields.Clone()
		}
		if remote != nil {
			return remote.Fields.Clone()
		}
		return out
	}
	newer := local
	if remote.Modified.After(local.Modified) {
		newer = remote
	}
	for name, v := range local.Fields {
		out[name] = value.Normalize(v)
	}
	for name, rv := range remote.Fields {
		switch {
		case !local.Has(name):
			out[name] = value.Normalize(rv)
		case !remote.Has(name):
		case !compare.Equal(local.Get(name), rv, e.detector.OptionsFor(name)):
			out[name] = newer.Get(name)
		}
	}
	return out
}
