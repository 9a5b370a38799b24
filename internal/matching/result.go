package matching

import (
	"slices"

	"github.com/getmockd/stubd/internal/router"
	"github.com/getmockd/stubd/pkg/config"
)

// Verdict is the outcome of one condition.
type Verdict int

const (
	// NoConfig means the resource declares nothing of this kind.
	NoConfig Verdict = iota
	// NotMatched means the condition was declared and failed.
	NotMatched
	// WildcardMatch means the path matched through a wildcard template.
	WildcardMatch
	// ExactMatch means the condition was satisfied.
	ExactMatch
)

func (v Verdict) String() string {
	switch v {
	case NoConfig:
		return "noConfig"
	case NotMatched:
		return "notMatched"
	case WildcardMatch:
		return "wildcardMatch"
	case ExactMatch:
		return "exactMatch"
	}
	return "unknown"
}

// Result is the verdict of one condition and the weight it contributes.
type Result struct {
	Kind      Verdict `json:"kind"`
	Weight    int     `json:"weight"`
	Condition string  `json:"condition,omitempty"`
}

// Exact returns an ExactMatch result. Weights below 1 become 1.
func Exact(weight int) Result { return Result{Kind: ExactMatch, Weight: normWeight(weight)} }

// Wildcard returns a WildcardMatch result. Weights below 1 become 1.
func Wildcard(weight int) Result { return Result{Kind: WildcardMatch, Weight: normWeight(weight)} }

// NotMatchedResult returns a failed result.
func NotMatchedResult() Result { return Result{Kind: NotMatched, Weight: 1} }

// NoConfigResult returns a result for an undeclared condition kind.
func NoConfigResult() Result { return Result{Kind: NoConfig, Weight: 1} }

// On labels the result with the condition it came from.
func (r Result) On(condition string) Result {
	r.Condition = condition
	return r
}

func normWeight(w int) int {
	if w < 1 {
		return 1
	}
	return w
}

// Outcome is the aggregated result of matching one resource.
type Outcome struct {
	Resource *config.Resource `json:"-"`
	Route    *router.Route    `json:"-"`
	// PathParams are the parameters captured by the route.
	PathParams map[string]string `json:"pathParams,omitempty"`

	Index   int      `json:"index"`
	Matched bool     `json:"matched"`
	Exact   bool     `json:"exact"`
	Score   int      `json:"score"`
	Results []Result `json:"results"`
}

// Aggregate folds results into an outcome for resource.
func Aggregate(resource *config.Resource, results []Result) Outcome {
	out := Outcome{Resource: resource, Results: results}
	if resource != nil {
		out.Index = resource.Index
	}

	contributing := 0
	failed := false
	exact := true
	for _, r := range results {
		switch r.Kind {
		case NoConfig:
			continue
		case NotMatched:
			failed = true
		case WildcardMatch:
			exact = false
		}
		contributing++
		out.Score += r.Weight
	}

	out.Matched = !failed && contributing > 0
	out.Exact = out.Matched && exact
	return out
}

// better reports whether a ranks before b.
func better(a, b Outcome) bool {
	if a.Matched != b.Matched {
		return a.Matched
	}
	if a.Exact != b.Exact {
		return a.Exact
	}
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Index < b.Index
}

// SelectBest returns the best matched outcome. The boolean is false when
// nothing matched.
func SelectBest(outcomes []Outcome) (Outcome, bool) {
	var best Outcome
	found := false
	for _, o := range outcomes {
		if !o.Matched {
			continue
		}
		if !found || better(o, best) {
			best = o
			found = true
		}
	}
	return best, found
}

// Rank returns a copy of outcomes ordered best first: matched before
// unmatched, then by the selection order.
func Rank(outcomes []Outcome) []Outcome {
	ranked := slices.Clone(outcomes)
	slices.SortStableFunc(ranked, func(a, b Outcome) int {
		switch {
		case better(a, b):
			return -1
		case better(b, a):
			return 1
		}
		return 0
	})
	return ranked
}
