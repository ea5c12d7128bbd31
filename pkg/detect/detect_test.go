package detect_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/syncmerge/pkg/compare"
	"github.com/agentstation/syncmerge/pkg/conflict"
	"github.com/agentstation/syncmerge/pkg/detect"
	"github.com/agentstation/syncmerge/pkg/logging"
	"github.com/agentstation/syncmerge/pkg/merge"
	"github.com/agentstation/syncmerge/pkg/value"
)

var base = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func snap(modified time.Time, fields value.Mapping) *detect.Snapshot {
	return &detect.Snapshot{Key: "PROJ-1", Fields: fields, Modified: modified}
}

func TestDetectConflict(t *testing.T) {
	d := detect.New()

	t.Run("equal values", func(t *testing.T) {
		l := snap(base, value.Mapping{"summary": value.Text("Same")})
		r := snap(base.Add(time.Second), value.Mapping{"summary": value.Text("Same")})
		assert.Nil(t, d.DetectConflict(l, r, "summary"))
	})

	t.Run("concurrent edit", func(t *testing.T) {
		l := snap(base, value.Mapping{"summary": value.Text("Local")})
		r := snap(base.Add(30*time.Second), value.Mapping{"summary": value.Text("Remote")})
		rec := d.DetectConflict(l, r, "summary")
		require.NotNil(t, rec)
		assert.Equal(t, conflict.TypeConcurrentEdit, rec.Type)
		assert.Equal(t, "PROJ-1", rec.EntityKey)
		assert.Equal(t, value.Text("Local"), rec.LocalValue)
		assert.Equal(t, value.Text("Remote"), rec.RemoteValue)
		assert.Equal(t, conflict.SeverityMedium, rec.Severity)
		assert.NotEmpty(t, rec.Reason)
	})

	t.Run("local far newer is not a conflict", func(t *testing.T) {
		l := snap(base.Add(10*time.Minute), value.Mapping{"summary": value.Text("Local")})
		r := snap(base, value.Mapping{"summary": value.Text("Remote")})
		assert.Nil(t, d.DetectConflict(l, r, "summary"))
	})

	t.Run("remote far newer is not a conflict", func(t *testing.T) {
		l := snap(base, value.Mapping{"summary": value.Text("Local")})
		r := snap(base.Add(61*time.Second), value.Mapping{"summary": value.Text("Remote")})
		assert.Nil(t, d.DetectConflict(l, r, "summary"))
	})

	t.Run("missing snapshot", func(t *testing.T) {
		assert.Nil(t, d.DetectConflict(nil, snap(base, nil), "summary"))
	})
}

func TestDetectConflictCustomWindowAndOptions(t *testing.T) {
	d := detect.New(
		detect.WithTimeWindow(5*time.Minute),
		detect.WithFieldOptions("Summary", compare.Options{CaseInsensitive: true}),
	)
	assert.Equal(t, 5*time.Minute, d.TimeWindow())

	l := snap(base, value.Mapping{"summary": value.Text("Fix Login"), "notes": value.Text("A")})
	r := snap(base.Add(2*time.Minute), value.Mapping{"summary": value.Text("fix login"), "notes": value.Text("a")})

	assert.Nil(t, d.DetectConflict(l, r, "summary"))
	assert.NotNil(t, d.DetectConflict(l, r, "notes"))
}

func TestDetectAllConflicts(t *testing.T) {
	d := detect.New()
	l := snap(base, value.Mapping{
		"summary":  value.Text("A"),
		"status":   value.Text("To Do"),
		"labels":   value.Sequence{value.Text("x")},
		"points":   value.Number(3),
		"onlyHere": value.Text("x"),
	})
	r := snap(base.Add(5*time.Second), value.Mapping{
		"summary": value.Text("A"),
		"status":  value.Text("Done"),
		"labels":  value.Sequence{value.Text("y")},
		"points":  value.Number(3.001),
	})

	recs := d.DetectAllConflicts(l, r)
	require.Len(t, recs, 2)
	assert.Equal(t, "labels", recs[0].Field)
	assert.Equal(t, conflict.SeverityLow, recs[0].Severity)
	assert.Equal(t, "status", recs[1].Field)
	assert.Equal(t, conflict.SeverityHigh, recs[1].Severity)
}

func TestDetectDeletedItemConflict(t *testing.T) {
	d := detect.New()
	l := snap(base, value.Mapping{"summary": value.Text("A")})

	rec := d.DetectDeletedItemConflict(l, nil)
	require.NotNil(t, rec)
	assert.Equal(t, conflict.TypeDeletedRemote, rec.Type)
	assert.Equal(t, conflict.SeverityHigh, rec.Severity)
	assert.Equal(t, detect.RecordField, rec.Field)
	assert.Equal(t, value.Null{}, rec.RemoteValue)

	assert.Nil(t, d.DetectDeletedItemConflict(l, l))
	assert.Nil(t, d.DetectDeletedItemConflict(nil, nil))
}

func TestDetectTypeAndSchemaConflicts(t *testing.T) {
	d := detect.New()
	l := snap(base, value.Mapping{
		"points":  value.Number(3),
		"due":     value.Time{Time: base},
		"labels":  value.Text("a,b"),
		"local":   value.Text("x"),
		"cleared": value.Null{},
	})
	r := snap(base, value.Mapping{
		"points":  value.Text("3"),
		"due":     value.Text("2024-06-01T12:00:00Z"),
		"labels":  value.Sequence{value.Text("a"), value.Text("b")},
		"remote":  value.Bool(true),
		"cleared": value.Text("y"),
	})

	types := d.DetectTypeConflicts(l, r)
	require.Len(t, types, 2)
	assert.Equal(t, "labels", types[0].Field)
	assert.Equal(t, "points", types[1].Field)
	for _, rec := range types {
		assert.Equal(t, conflict.TypeTypeMismatch, rec.Type)
		assert.Equal(t, conflict.SeverityHigh, rec.Severity)
	}

	schema := d.DetectSchemaConflicts(l, r)
	fields := make([]string, len(schema))
	for i, rec := range schema {
		fields[i] = rec.Field
		assert.Equal(t, conflict.TypeSchemaMismatch, rec.Type)
		assert.Equal(t, conflict.SeverityLow, rec.Severity)
	}
	assert.Equal(t, []string{"cleared", "local", "remote"}, fields)
}

func TestUncomparableFieldIsReported(t *testing.T) {
	loop := value.Mapping{}
	loop["self"] = loop

	d := detect.New()
	l := snap(base, value.Mapping{"meta": loop})
	r := snap(base, value.Mapping{"meta": value.Mapping{}})

	var rec *conflict.Record
	assert.NotPanics(t, func() { rec = d.DetectConflict(l, r, "meta") })
	require.NotNil(t, rec)
	assert.True(t, rec.Uncomparable)

	res := d.SuggestResolution(rec)
	assert.Equal(t, conflict.StrategyManual, res.Strategy)
	assert.Less(t, res.Confidence, 0.5)
}

func TestStatsAndHistory(t *testing.T) {
	tl := logging.NewTestLogger(t)
	d := detect.New(detect.WithHistoryLimit(2), detect.WithLogger(tl.Logger))

	l := snap(base, value.Mapping{"summary": value.Text("A"), "status": value.Text("x"), "notes": value.Text("1")})
	r := snap(base, value.Mapping{"summary": value.Text("B"), "status": value.Text("y"), "notes": value.Text("2")})
	require.Len(t, d.DetectAllConflicts(l, r), 3)
	d.DetectDeletedItemConflict(l, nil)

	stats := d.Stats()
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 3, stats.ByType[conflict.TypeConcurrentEdit])
	assert.Equal(t, 1, stats.ByType[conflict.TypeDeletedRemote])
	assert.Equal(t, 1, stats.ByField["summary"])

	history := d.History("PROJ-1")
	require.Len(t, history, 2)
	assert.Equal(t, "summary", history[0].Field)
	assert.Equal(t, detect.RecordField, history[1].Field)
	tl.AssertContains(t, `"conflict_type":"DELETED_REMOTE"`)

	d.Reset()
	assert.Zero(t, d.Stats().Total)
	assert.Empty(t, d.History("PROJ-1"))
}

func TestConcurrentDetection(t *testing.T) {
	d := detect.New()
	l := snap(base, value.Mapping{"summary": value.Text("A")})
	r := snap(base, value.Mapping{"summary": value.Text("B")})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.DetectConflict(l, r, "summary")
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, d.Stats().Total)
	assert.Len(t, d.History("PROJ-1"), 20)
}

func TestSuggestResolution(t *testing.T) {
	d := detect.New()
	newRec := func(l, r value.Value, gap time.Duration) *conflict.Record {
		return conflict.NewRecord("K", "field", l, r, base, base.Add(gap))
	}

	tests := []struct {
		name       string
		rec        *conflict.Record
		strategy   conflict.Strategy
		confidence float64
		value      value.Value
	}{
		{
			name:       "arrays merge by union",
			rec:        newRec(value.Sequence{value.Text("a")}, value.Sequence{value.Text("b")}, 0),
			strategy:   conflict.StrategyMerge,
			confidence: 0.8,
			value:      value.Sequence{value.Text("a"), value.Text("b")},
		},
		{
			name:       "newer side outside window",
			rec:        newRec(value.Text("old"), value.Text("new"), 2*time.Minute),
			strategy:   conflict.StrategyRemote,
			confidence: 0.9,
			value:      value.Text("new"),
		},
		{
			name:       "containment",
			rec:        newRec(value.Text("Fix login bug"), value.Text("Fix login"), 0),
			strategy:   conflict.StrategyLocal,
			confidence: 0.75,
			value:      value.Text("Fix login bug"),
		},
		{
			name:       "newer by seconds",
			rec:        newRec(value.Number(1), value.Number(2), -10*time.Second),
			strategy:   conflict.StrategyLocal,
			confidence: 0.65,
			value:      value.Number(1),
		},
		{
			name:       "simultaneous mismatched shapes",
			rec:        newRec(value.Number(1), value.Text("one"), 0),
			strategy:   conflict.StrategyManual,
			confidence: 0.3,
		},
		{
			name:       "simultaneous texts of different length",
			rec:        newRec(value.Text("abc"), value.Text("wxyz!"), 0),
			strategy:   conflict.StrategyRemote,
			confidence: 0.55,
			value:      value.Text("wxyz!"),
		},
		{
			name:       "no signal",
			rec:        newRec(value.Bool(true), value.Bool(false), 0),
			strategy:   conflict.StrategyManual,
			confidence: 0.4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := d.SuggestResolution(tt.rec)
			assert.Equal(t, tt.strategy, res.Strategy)
			assert.InDelta(t, tt.confidence, res.Confidence, 1e-9)
			assert.NotEmpty(t, res.Reason)
			if tt.strategy == conflict.StrategyManual {
				assert.Nil(t, res.ResolvedValue)
				assert.True(t, res.RequiresUserConfirmation)
			} else {
				assert.Equal(t, tt.value, res.ResolvedValue)
			}
		})
	}
}

func TestSuggestResolutionDeleted(t *testing.T) {
	d := detect.New(detect.WithMergeEngine(merge.NewEngine()))
	rec := d.DetectDeletedItemConflict(snap(base, value.Mapping{"a": value.Number(1)}), nil)

	res := d.SuggestResolution(rec)
	assert.Equal(t, conflict.StrategyManual, res.Strategy)
	assert.True(t, res.RequiresUserConfirmation)

	assert.Equal(t, conflict.StrategyManual, d.SuggestResolution(nil).Strategy)
}

func TestInferSeverity(t *testing.T) {
	assert.Equal(t, conflict.SeverityHigh, detect.InferSeverity("assignee", conflict.TypeConcurrentEdit))
	assert.Equal(t, conflict.SeverityMedium, detect.InferSeverity("description", conflict.TypeConcurrentEdit))
	assert.Equal(t, conflict.SeverityLow, detect.InferSeverity("labels", conflict.TypeConcurrentEdit))
	assert.Equal(t, conflict.SeverityLow, detect.InferSeverity("status", conflict.TypeSchemaMismatch))
	assert.Equal(t, conflict.SeverityHigh, detect.InferSeverity("labels", conflict.TypeTypeMismatch))
}
