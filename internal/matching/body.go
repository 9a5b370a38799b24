package matching

import (
	"fmt"
	"strings"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"

	"github.com/getmockd/stubd/internal/bodyquery"
	"github.com/getmockd/stubd/pkg/config"
)

// bodyDoc parses the request body as JSON at most once per match.
type bodyDoc struct {
	raw    string
	parsed bool
	doc    any
	ok     bool
}

func (b *bodyDoc) json() (any, bool) {
	if !b.parsed {
		b.parsed = true
		if strings.TrimSpace(b.raw) != "" {
			if doc, err := oj.ParseString(b.raw); err == nil {
				b.doc, b.ok = doc, true
			}
		}
	}
	return b.doc, b.ok
}

func (b *bodyDoc) jsonPath(c *config.BodyCondition) (string, bool) {
	x := c.CompiledJSONPath()
	if x == nil {
		var err error
		if x, err = jp.ParseString(c.JSONPath); err != nil {
			return "", false
		}
	}
	doc, ok := b.json()
	if !ok {
		return "", false
	}
	found := x.Get(doc)
	if len(found) == 0 {
		return "", false
	}
	return bodyquery.Stringify(found[0]), true
}

// compares reports whether the condition compares a value of its own, as
// opposed to only grouping nested conditions.
func compares(c *config.BodyCondition) bool {
	return c.JSONPath != "" || c.XPath != "" || c.Value != "" || c.Operator != ""
}

// bodyResults evaluates a body condition. Its own comparison and each allOf
// member contribute one result apiece; anyOf contributes a single result
// holding the best satisfied member.
func bodyResults(c *config.BodyCondition, body *bodyDoc, label string) []Result {
	var results []Result
	if compares(c) {
		results = append(results, verdictResult(compareBody(c, body), WeightBody).On(label))
	}
	for i, member := range c.AllOf {
		results = append(results, bodyResults(member, body, fmt.Sprintf("%s.allOf[%d]", label, i))...)
	}
	if len(c.AnyOf) > 0 {
		results = append(results, anyOf(c.AnyOf, body, label+".anyOf"))
	}
	if len(results) == 0 {
		results = append(results, NoConfigResult().On(label))
	}
	return results
}

func anyOf(members []*config.BodyCondition, body *bodyDoc, label string) Result {
	best := NotMatched
	for i, member := range members {
		// A member is satisfied when all of its own results are.
		agg := Aggregate(nil, bodyResults(member, body, fmt.Sprintf("%s[%d]", label, i)))
		switch {
		case agg.Exact:
			best = ExactMatch
		case agg.Matched && best == NotMatched:
			best = WildcardMatch
		}
		if best == ExactMatch {
			break
		}
	}
	return verdictResult(best, WeightBody).On(label)
}

func compareBody(c *config.BodyCondition, body *bodyDoc) Verdict {
	var (
		actual  string
		present bool
	)
	switch {
	case c.JSONPath != "":
		actual, present = body.jsonPath(c)
	case c.XPath != "":
		v, ok, err := bodyquery.XPath(body.raw, c.XPath)
		if err != nil {
			return NotMatched
		}
		actual, present = v, ok
	default:
		actual, present = body.raw, body.raw != ""
	}
	return Compare(&c.Condition, actual, present)
}
