package matching

import (
	"strings"

	"github.com/getmockd/stubd/pkg/config"
)

// Compare applies the condition's operator to an actual value. present is
// false when the request does not carry the value at all; negated operators
// and NotExists are satisfied by an absent value.
//
// Every satisfied operator is an ExactMatch. Only wildcard path templates
// produce a WildcardMatch, so a resource with more satisfied conditions is
// never outranked by one with fewer.
func Compare(c *config.Condition, actual string, present bool) Verdict {
	ok := false
	switch op := c.Op(); op {
	case config.EqualTo:
		ok = present && actual == c.Value
	case config.NotEqualTo:
		ok = !present || actual != c.Value
	case config.Exists:
		ok = present
	case config.NotExists:
		ok = !present
	case config.Contains:
		ok = present && strings.Contains(actual, c.Value)
	case config.NotContains:
		ok = !present || !strings.Contains(actual, c.Value)
	case config.Matches, config.NotMatches:
		re, err := c.Pattern()
		if err != nil {
			return NotMatched
		}
		hit := present && re.MatchString(actual)
		if op == config.Matches {
			ok = hit
		} else {
			ok = !hit
		}
	}
	if ok {
		return ExactMatch
	}
	return NotMatched
}

func verdictResult(v Verdict, weight int) Result {
	switch v {
	case ExactMatch:
		return Exact(weight)
	case WildcardMatch:
		return Wildcard(weight)
	}
	return Result{Kind: NotMatched, Weight: normWeight(weight)}
}
