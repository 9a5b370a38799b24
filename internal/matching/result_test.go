package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/getmockd/stubd/pkg/config"
)

func TestAggregate(t *testing.T) {
	res := &config.Resource{Index: 4}
	tests := []struct {
		name        string
		results     []Result
		wantMatched bool
		wantExact   bool
		wantScore   int
	}{
		{"all exact", []Result{Exact(1), Exact(2), NoConfigResult()}, true, true, 3},
		{"wildcard makes inexact", []Result{Exact(1), Wildcard(1)}, true, false, 2},
		{"one failure", []Result{Exact(2), NotMatchedResult()}, false, false, 3},
		{"nothing declared", []Result{NoConfigResult(), NoConfigResult()}, false, false, 0},
		{"empty", nil, false, false, 0},
		{"weights below one", []Result{Exact(0), Wildcard(-3)}, true, false, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Aggregate(res, tt.results)
			assert.Equal(t, tt.wantMatched, out.Matched)
			assert.Equal(t, tt.wantExact, out.Exact)
			assert.Equal(t, tt.wantScore, out.Score)
			assert.Equal(t, 4, out.Index)
		})
	}
}

func TestSelectBest(t *testing.T) {
	exactLow := Outcome{Index: 3, Matched: true, Exact: true, Score: 1}
	wildHigh := Outcome{Index: 0, Matched: true, Score: 9}
	exactHigh := Outcome{Index: 2, Matched: true, Exact: true, Score: 5}
	exactHighEarly := Outcome{Index: 1, Matched: true, Exact: true, Score: 5}
	miss := Outcome{Index: 0, Score: 100}

	best, ok := SelectBest([]Outcome{wildHigh, exactLow})
	assert.True(t, ok)
	assert.Equal(t, 3, best.Index, "exact beats a higher scoring wildcard")

	best, ok = SelectBest([]Outcome{exactLow, exactHigh})
	assert.True(t, ok)
	assert.Equal(t, 2, best.Index, "higher score wins among exact")

	best, ok = SelectBest([]Outcome{exactHigh, exactHighEarly})
	assert.True(t, ok)
	assert.Equal(t, 1, best.Index, "earlier declaration breaks ties")

	_, ok = SelectBest([]Outcome{miss})
	assert.False(t, ok)

	_, ok = SelectBest(nil)
	assert.False(t, ok)
}

func TestRank(t *testing.T) {
	outcomes := []Outcome{
		{Index: 0, Score: 7},
		{Index: 1, Matched: true, Score: 2},
		{Index: 2, Matched: true, Exact: true, Score: 1},
	}
	ranked := Rank(outcomes)
	assert.Equal(t, []int{2, 1, 0}, []int{ranked[0].Index, ranked[1].Index, ranked[2].Index})
	assert.Equal(t, 0, outcomes[0].Index, "input is not reordered")
}

func TestVerdictString(t *testing.T) {
	assert.Equal(t, "exactMatch", ExactMatch.String())
	assert.Equal(t, "wildcardMatch", WildcardMatch.String())
	assert.Equal(t, "notMatched", NotMatched.String())
	assert.Equal(t, "noConfig", NoConfig.String())
}
