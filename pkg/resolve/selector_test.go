package resolve_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/syncmerge/pkg/conflict"
	"github.com/agentstation/syncmerge/pkg/logging"
	"github.com/agentstation/syncmerge/pkg/merge"
	"github.com/agentstation/syncmerge/pkg/resolve"
	"github.com/agentstation/syncmerge/pkg/value"
)

var base = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// record builds a conflict where the remote side was modified gap after local.
func record(name string, local, remote value.Value, gap time.Duration) *conflict.Record {
	return conflict.NewRecord("PROJ-1", name, local, remote, base, base.Add(gap))
}

func labels(items ...string) value.Sequence {
	out := make(value.Sequence, len(items))
	for i, s := range items {
		out[i] = value.Text(s)
	}
	return out
}

func TestScenarioStatusWorkflow(t *testing.T) {
	s := resolve.New()
	res := s.AnalyzeConflict(context.Background(), record("status", value.Text("To Do"), value.Text("In Progress"), 0), nil)

	assert.Equal(t, conflict.StrategyRemote, res.Strategy)
	assert.Equal(t, value.Text("In Progress"), res.ResolvedValue)
	assert.True(t, res.RequiresUserConfirmation)
	assert.Equal(t, 0.8, res.Confidence)
}

func TestPriorityEscalation(t *testing.T) {
	s := resolve.New()
	// Escalation wins even when the lower priority is newer.
	res := s.AnalyzeConflict(context.Background(), record("priority", value.Text("Critical"), value.Text("Low"), time.Hour), nil)
	assert.Equal(t, conflict.StrategyLocal, res.Strategy)

	res = s.AnalyzeConflict(context.Background(), record("priority", value.Text("Low"), value.Text("Critical"), 0), nil)
	assert.Equal(t, conflict.StrategyRemote, res.Strategy)
	assert.Equal(t, value.Text("Critical"), res.ResolvedValue)
	assert.Greater(t, res.Confidence, 0.8)
	assert.False(t, res.RequiresUserConfirmation)
}

func TestTimeout(t *testing.T) {
	s := resolve.New()
	start := time.Now()
	res := s.AnalyzeConflict(context.Background(), record("summary", value.Text("a"), value.Text("b"), 0), &resolve.Context{Timeout: 10 * time.Millisecond})

	assert.Less(t, time.Since(start), 50*time.Millisecond)
	assert.Equal(t, conflict.StrategyManual, res.Strategy)
	assert.Equal(t, 0.1, res.Confidence)
	assert.Contains(t, res.Reason, "timed out")
	assert.Nil(t, res.ResolvedValue)
}

func TestTimeoutAfterAnalysis(t *testing.T) {
	// Each clock read advances by a second, exceeding a 500ms budget.
	var mu sync.Mutex
	now := base
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
	tl := logging.NewTestLogger(t)
	s := resolve.New(resolve.WithClock(clock), resolve.WithLogger(tl.Logger))

	res := s.AnalyzeConflict(context.Background(), record("status", value.Text("To Do"), value.Text("Done"), 0), &resolve.Context{Timeout: 500 * time.Millisecond})
	assert.Equal(t, conflict.StrategyManual, res.Strategy)
	assert.Contains(t, res.Reason, "timed out")
	tl.AssertContains(t, "conflict analysis timed out")
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := resolve.New().AnalyzeConflict(ctx, record("status", value.Text("To Do"), value.Text("Done"), 0), nil)
	assert.Equal(t, conflict.StrategyManual, res.Strategy)
	assert.Contains(t, res.Reason, "canceled")
}

func TestMalformedRecords(t *testing.T) {
	s := resolve.New()
	loop := value.Mapping{}
	loop["self"] = loop

	tests := map[string]*conflict.Record{
		"nil record":      nil,
		"missing field":   record("", value.Text("a"), value.Text("b"), 0),
		"cyclic value":    record("meta", loop, value.Mapping{}, 0),
		"zero timestamps": conflict.NewRecord("K", "priority", value.Text("High"), value.Text("High!"), time.Time{}, time.Time{}),
	}
	for name, rec := range tests {
		t.Run(name, func(t *testing.T) {
			var res *conflict.Resolution
			assert.NotPanics(t, func() { res = s.AnalyzeConflict(context.Background(), rec, nil) })
			assert.Equal(t, conflict.StrategyManual, res.Strategy)
			assert.Less(t, res.Confidence, 0.5)
			assert.NotEmpty(t, res.Reason)
		})
	}
}

func TestOverrides(t *testing.T) {
	s := resolve.New()
	rec := record("assignee", value.Text("ana"), value.Text("bo"), time.Minute)

	t.Run("field strategy", func(t *testing.T) {
		res := s.AnalyzeConflict(context.Background(), rec, &resolve.Context{
			FieldStrategies: map[string]conflict.Strategy{"Assignee": conflict.StrategyLocal},
			DefaultStrategy: conflict.StrategyRemote,
		})
		assert.Equal(t, conflict.StrategyLocal, res.Strategy)
		assert.Equal(t, value.Text("ana"), res.ResolvedValue)
		assert.Equal(t, 1.0, res.Confidence)
	})

	t.Run("default strategy", func(t *testing.T) {
		res := s.AnalyzeConflict(context.Background(), rec, &resolve.Context{DefaultStrategy: conflict.StrategyRemote})
		assert.Equal(t, conflict.StrategyRemote, res.Strategy)
		assert.Equal(t, 1.0, res.Confidence)
	})

	t.Run("manual override", func(t *testing.T) {
		res := s.AnalyzeConflict(context.Background(), rec, &resolve.Context{DefaultStrategy: conflict.StrategyManual})
		assert.Equal(t, conflict.StrategyManual, res.Strategy)
		assert.Equal(t, 1.0, res.Confidence)
		assert.Nil(t, res.ResolvedValue)
	})

	t.Run("merge override runs the merge path", func(t *testing.T) {
		mrec := record("labels", labels("a"), labels("b"), 0)
		res := s.AnalyzeConflict(context.Background(), mrec, &resolve.Context{DefaultStrategy: conflict.StrategyMerge})
		assert.Equal(t, conflict.StrategyMerge, res.Strategy)
		assert.Equal(t, labels("a", "b"), res.ResolvedValue)
		require.NotNil(t, res.Merge)
		assert.Equal(t, merge.Union, res.Merge.Algorithm)
		assert.InDelta(t, 0.85, res.Confidence, 1e-9)
	})

	t.Run("merge override on generic lists", func(t *testing.T) {
		mrec := record("watchers", labels("a"), labels("b"), 0)
		res := s.AnalyzeConflict(context.Background(), mrec, &resolve.Context{DefaultStrategy: conflict.StrategyMerge})
		assert.Equal(t, conflict.StrategyMerge, res.Strategy)
		assert.Equal(t, labels("a", "b"), res.ResolvedValue)
		assert.InDelta(t, 0.7, res.Confidence, 1e-9)
	})

	t.Run("always newer", func(t *testing.T) {
		res := s.AnalyzeConflict(context.Background(), rec, &resolve.Context{AlwaysUseNewer: true})
		assert.Equal(t, conflict.StrategyRemote, res.Strategy)
	})

	t.Run("always longer", func(t *testing.T) {
		res := s.AnalyzeConflict(context.Background(), rec, &resolve.Context{AlwaysUseLonger: true})
		assert.Equal(t, conflict.StrategyLocal, res.Strategy)
	})

	t.Run("selector defaults", func(t *testing.T) {
		withDefaults := resolve.New(resolve.WithDefaultContext(resolve.Context{DefaultStrategy: conflict.StrategyLocal}))
		res := withDefaults.AnalyzeConflict(context.Background(), rec, nil)
		assert.Equal(t, conflict.StrategyLocal, res.Strategy)
	})
}

func TestHeuristics(t *testing.T) {
	long := strings.Repeat("The login page fails on Safari when cookies are blocked. ", 4)

	tests := []struct {
		name       string
		rec        *conflict.Record
		strategy   conflict.Strategy
		value      value.Value
		confidence float64
		confirm    bool
	}{
		{name: "title empty side", rec: record("summary", value.Text(""), value.Text("Fix login"), 0), strategy: conflict.StrategyRemote, value: value.Text("Fix login"), confidence: 0.9},
		{name: "title containment", rec: record("title", value.Text("Fix login on Safari"), value.Text("Fix login"), 0), strategy: conflict.StrategyLocal, value: value.Text("Fix login on Safari"), confidence: 0.75},
		{name: "title newer", rec: record("title", value.Text("Alpha"), value.Text("Beta"), 2*time.Minute), strategy: conflict.StrategyRemote, value: value.Text("Beta"), confidence: 0.7},
		{name: "title concurrent", rec: record("title", value.Text("Alpha"), value.Text("Beta"), 10*time.Second), strategy: conflict.StrategyManual, confidence: 0.3, confirm: true},

		{name: "description extends", rec: record("description", value.Text("The login page fails"), value.Text(long), 0), strategy: conflict.StrategyRemote, value: value.Text(long), confidence: 0.75},
		{name: "description short drift", rec: record("description", value.Text("q"), value.Text("completely unrelated text"), time.Minute), strategy: conflict.StrategyRemote, value: value.Text("completely unrelated text"), confidence: 0.6},

		{name: "status regression keeps further", rec: record("status", value.Text("Done"), value.Text("in-progress"), time.Hour), strategy: conflict.StrategyLocal, value: value.Text("Done"), confidence: 0.8, confirm: true},
		{name: "status jira mapping", rec: record("status", value.Mapping{"name": value.Text("Backlog")}, value.Mapping{"name": value.Text("In Review")}, 0), strategy: conflict.StrategyRemote, value: value.Mapping{"name": value.Text("In Review")}, confidence: 0.8, confirm: true},
		{name: "status same rank", rec: record("status", value.Text("todo"), value.Text("To Do "), time.Minute), strategy: conflict.StrategyRemote, value: value.Text("To Do "), confidence: 0.6, confirm: true},

		{name: "priority same rank", rec: record("priority", value.Text("High"), value.Text("Major"), -time.Minute), strategy: conflict.StrategyLocal, value: value.Text("High"), confidence: 0.6},

		{name: "assignee assigned wins", rec: record("assignee", value.Null{}, value.Text("ana"), -time.Hour), strategy: conflict.StrategyRemote, value: value.Text("ana"), confidence: 0.85},
		{name: "assignee different", rec: record("assignee", value.Text("ana"), value.Text("bo"), time.Second), strategy: conflict.StrategyRemote, value: value.Text("bo"), confidence: 0.7, confirm: true},

		{name: "labels empty side", rec: record("labels", labels(), labels("a"), 0), strategy: conflict.StrategyRemote, value: labels("a"), confidence: 0.85},
		{name: "labels union", rec: record("tags", labels("a", "b"), labels("b", "c"), 0), strategy: conflict.StrategyMerge, value: labels("a", "b", "c"), confidence: 0.85},

		{name: "sprint set wins", rec: record("sprint", value.Text("Sprint 4"), nil, time.Hour), strategy: conflict.StrategyLocal, value: value.Text("Sprint 4"), confidence: 0.85},
		{name: "sprint different", rec: record("sprint", value.Text("Sprint 4"), value.Text("Sprint 5"), -time.Second), strategy: conflict.StrategyLocal, value: value.Text("Sprint 4"), confidence: 0.8, confirm: true},

		{name: "points set wins", rec: record("storyPoints", nil, value.Number(5), 0), strategy: conflict.StrategyRemote, value: value.Number(5), confidence: 0.85},
		{name: "points higher wins", rec: record("story_points", value.Number(8), value.Number(3), time.Hour), strategy: conflict.StrategyLocal, value: value.Number(8), confidence: 0.6, confirm: true},

		{name: "generic set wins", rec: record("fixVersion", value.Text("1.2"), value.Null{}, 0), strategy: conflict.StrategyLocal, value: value.Text("1.2"), confidence: 0.85},
		{name: "generic arrays merge", rec: record("watchers", labels("a"), labels("b"), 0), strategy: conflict.StrategyMerge, value: labels("a", "b"), confidence: 0.7},
		{name: "generic newer", rec: record("fixVersion", value.Text("1.2"), value.Text("1.3"), 5*time.Minute), strategy: conflict.StrategyRemote, value: value.Text("1.3"), confidence: 0.6},
		{name: "generic concurrent", rec: record("fixVersion", value.Text("1.2"), value.Text("1.3"), time.Second), strategy: conflict.StrategyManual, confidence: 0.4, confirm: true},
	}

	s := resolve.New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := s.AnalyzeConflict(context.Background(), tt.rec, nil)
			assert.Equal(t, tt.strategy, res.Strategy, res.Reason)
			assert.InDelta(t, tt.confidence, res.Confidence, 1e-9, res.Reason)
			assert.Equal(t, tt.confirm, res.RequiresUserConfirmation, res.Reason)
			assert.NotEmpty(t, res.Reason)
			if tt.strategy == conflict.StrategyManual {
				assert.Nil(t, res.ResolvedValue)
			} else {
				assert.Equal(t, tt.value, res.ResolvedValue)
			}
		})
	}
}

func TestDescriptionMergePath(t *testing.T) {
	local := "Steps to reproduce the login failure.\n\nLocal investigation notes."
	remote := "Steps to reproduce the login failure.\n\nRemote triage summary here."

	res := resolve.New().AnalyzeConflict(context.Background(), record("description", value.Text(local), value.Text(remote), 0), nil)
	require.Equal(t, conflict.StrategyMerge, res.Strategy, res.Reason)
	require.NotNil(t, res.Merge)
	assert.Equal(t, merge.SmartText, res.Merge.Algorithm)
	assert.Contains(t, string(res.ResolvedValue.(value.Text)), "Steps to reproduce the login failure.")
	if res.Merge.ConflictsRemaining > 0 {
		assert.LessOrEqual(t, res.Confidence, 0.6)
		assert.True(t, res.RequiresUserConfirmation)
	}
}

func TestConfirmationThreshold(t *testing.T) {
	s := resolve.New(resolve.WithConfirmationThreshold(0.95))
	res := s.AnalyzeConflict(context.Background(), record("priority", value.Text("Low"), value.Text("High"), 0), nil)
	assert.Equal(t, conflict.StrategyRemote, res.Strategy)
	assert.True(t, res.RequiresUserConfirmation)
}

func TestTimeThreshold(t *testing.T) {
	s := resolve.New(resolve.WithTimeThreshold(time.Hour))
	res := s.AnalyzeConflict(context.Background(), record("title", value.Text("Alpha"), value.Text("Beta"), 2*time.Minute), nil)
	assert.Equal(t, conflict.StrategyManual, res.Strategy)
}

func TestAnalyzeBatch(t *testing.T) {
	s := resolve.New()
	recs := []*conflict.Record{
		record("priority", value.Text("Low"), value.Text("High"), 0),
		record("status", value.Text("Done"), value.Text("To Do"), 0),
		nil,
	}
	out := s.AnalyzeBatch(context.Background(), recs, nil)
	require.Len(t, out, 3)
	assert.Equal(t, conflict.StrategyRemote, out[0].Strategy)
	assert.Equal(t, conflict.StrategyLocal, out[1].Strategy)
	assert.Equal(t, conflict.StrategyManual, out[2].Strategy)
}

func TestConcurrentAnalysis(t *testing.T) {
	s := resolve.New()
	var wg sync.WaitGroup
	results := make([]*conflict.Resolution, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = s.AnalyzeConflict(context.Background(), record("labels", labels("a"), labels("b"), 0), nil)
		}(i)
	}
	wg.Wait()
	for _, res := range results {
		assert.Equal(t, conflict.StrategyMerge, res.Strategy)
	}
}

func TestRanks(t *testing.T) {
	r, ok := resolve.StatusRank(value.Text("Ready-For-Deployment"))
	assert.True(t, ok)
	assert.Equal(t, 6, r)

	r, ok = resolve.StatusRank(value.Text("Canceled"))
	assert.True(t, ok)
	assert.Equal(t, 9, r)

	_, ok = resolve.StatusRank(value.Text("Someday"))
	assert.False(t, ok)

	r, ok = resolve.PriorityRank(value.Mapping{"name": value.Text("Blocker")})
	assert.True(t, ok)
	assert.Equal(t, 6, r)

	assert.Equal(t, "to do", resolve.NormalizeName(" TODO "))
	assert.Equal(t, "in progress", resolve.NormalizeName("in_progress"))
}
