package compare_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/agentstation/syncmerge/pkg/compare"
	"github.com/agentstation/syncmerge/pkg/value"
)

func seq(items ...any) value.Sequence {
	return value.MustFromAny(items).(value.Sequence)
}

func TestCompare(t *testing.T) {
	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		a, b     value.Value
		opts     compare.Options
		conflict bool
	}{
		{name: "equal text", a: value.Text("a"), b: value.Text("a")},
		{name: "case sensitive by default", a: value.Text("Fix"), b: value.Text("fix"), conflict: true},
		{name: "case insensitive", a: value.Text("Fix Login"), b: value.Text("fix login"), opts: compare.Options{CaseInsensitive: true}},
		{name: "whitespace differs", a: value.Text("a  b"), b: value.Text("a b"), conflict: true},
		{name: "whitespace collapsed", a: value.Text(" a \n b"), b: value.Text("a b"), opts: compare.Options{IgnoreWhitespace: true}},
		{name: "numbers within default tolerance", a: value.Number(1.0), b: value.Number(1.005), opts: compare.DefaultOptions()},
		{name: "numbers outside tolerance", a: value.Number(1.0), b: value.Number(1.02), opts: compare.DefaultOptions(), conflict: true},
		{name: "custom tolerance", a: value.Number(3), b: value.Number(3.4), opts: compare.Options{Tolerance: 0.5}},
		{name: "equal instants", a: value.Time{Time: ts}, b: value.Time{Time: ts.In(time.FixedZone("x", 3600))}},
		{name: "different instants", a: value.Time{Time: ts}, b: value.Time{Time: ts.Add(time.Millisecond)}, conflict: true},
		{name: "rfc3339 text as instant", a: value.Text("2024-03-01T10:00:00Z"), b: value.Text("2024-03-01T11:00:00+01:00")},
		{name: "time against rfc3339 text", a: value.Time{Time: ts}, b: value.Text("2024-03-01T10:00:00Z")},
		{name: "ordered sequences", a: seq("a", "b"), b: seq("b", "a"), conflict: true},
		{name: "multiset sequences", a: seq("a", "b", "a"), b: seq("a", "a", "b"), opts: compare.Options{IgnoreOrder: true}},
		{name: "multiset counts matter", a: seq("a", "a", "b"), b: seq("a", "b", "b"), opts: compare.Options{IgnoreOrder: true}, conflict: true},
		{name: "sequence lengths", a: seq("a"), b: seq("a", "b"), conflict: true},
		{
			name: "nested mappings",
			a:    value.Mapping{"name": value.Text("x"), "meta": value.Mapping{"n": value.Number(1)}},
			b:    value.Mapping{"name": value.Text("x"), "meta": value.Mapping{"n": value.Number(1)}},
		},
		{
			name:     "mapping key differs",
			a:        value.Mapping{"name": value.Text("x")},
			b:        value.Mapping{"name": value.Text("y")},
			conflict: true,
		},
		{
			name: "absent key equals null",
			a:    value.Mapping{"name": value.Text("x"), "extra": value.Null{}},
			b:    value.Mapping{"name": value.Text("x")},
		},
		{
			name:     "extra concrete key",
			a:        value.Mapping{"name": value.Text("x"), "extra": value.Number(1)},
			b:        value.Mapping{"name": value.Text("x")},
			conflict: true,
		},
		{name: "null equals nil", a: value.Null{}, b: nil},
		{name: "null against value", a: value.Null{}, b: value.Text(""), conflict: true},
		{name: "kind mismatch", a: value.Number(1), b: value.Text("1"), conflict: true},
		{name: "booleans", a: value.Bool(true), b: value.Bool(false), conflict: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := compare.Compare(tt.a, tt.b, tt.opts)
			assert.Equal(t, tt.conflict, res.HasConflict, res.Reason)
			assert.NotEmpty(t, res.Reason)
			assert.False(t, res.Uncomparable)
			assert.Equal(t, !tt.conflict, compare.Equal(tt.a, tt.b, tt.opts))
		})
	}
}

func TestCompareCyclicIsConflict(t *testing.T) {
	loop := value.Mapping{}
	loop["self"] = loop

	var res compare.Result
	assert.NotPanics(t, func() {
		res = compare.Compare(loop, loop, compare.DefaultOptions())
	})
	assert.True(t, res.HasConflict)
	assert.True(t, res.Uncomparable)
	assert.Contains(t, res.Reason, "cyclic")
}

func TestCompareKeepsInputs(t *testing.T) {
	res := compare.Compare(nil, value.Text("x"), compare.DefaultOptions())
	assert.Equal(t, value.Null{}, res.Local)
	assert.Equal(t, value.Text("x"), res.Remote)
	assert.Contains(t, res.Reason, "kinds differ")
}

func TestNormalizeText(t *testing.T) {
	opts := compare.Options{CaseInsensitive: true, IgnoreWhitespace: true}
	assert.Equal(t, "STRASSE ok", compare.NormalizeText("  STRASSE\tok ", compare.Options{IgnoreWhitespace: true}))
	assert.Equal(t, compare.NormalizeText("Hello   World", opts), compare.NormalizeText("hello world", opts))
}

func TestLevenshteinAndSimilarity(t *testing.T) {
	assert.Equal(t, 0, compare.Levenshtein("same", "same"))
	assert.Equal(t, 3, compare.Levenshtein("", "abc"))
	assert.Equal(t, 3, compare.Levenshtein("kitten", "sitting"))

	assert.Equal(t, 1.0, compare.Similarity("", ""))
	assert.Equal(t, 0.0, compare.Similarity("", "abc"))
	assert.InDelta(t, 4.0/7.0, compare.Similarity("kitten", "sitting"), 1e-9)
	assert.Equal(t, 1.0, compare.Similarity("ü", "ü"))
}

// editDistance is the textbook rune-level dynamic program.
func editDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur := make([]int, len(rb)+1)
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev = cur
	}
	return prev[len(rb)]
}

func TestLevenshteinMatchesEditDistance(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	alphabet := []rune("abcé ")
	randomText := func() string {
		out := make([]rune, rng.Intn(12))
		for i := range out {
			out[i] = alphabet[rng.Intn(len(alphabet))]
		}
		return string(out)
	}

	assert.Equal(t, 5, compare.Levenshtein("acccc", "cbabb"))
	for i := 0; i < 2000; i++ {
		a, b := randomText(), randomText()
		want := editDistance(a, b)
		if !assert.Equal(t, want, compare.Levenshtein(a, b), "%q vs %q", a, b) {
			return
		}
		sim := compare.Similarity(a, b)
		assert.GreaterOrEqual(t, sim, 0.0)
		assert.LessOrEqual(t, sim, 1.0)
	}
}

func TestTextDiff(t *testing.T) {
	assert.Empty(t, compare.TextDiff("same", "same"))
	assert.Equal(t, "fix log[-in-]{+out+} bug", compare.TextDiff("fix login bug", "fix logout bug"))
	assert.Equal(t, "{+new+}", compare.TextDiff("", "new"))
}
