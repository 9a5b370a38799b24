package matching

import (
	"fmt"
	"strings"

	"github.com/getmockd/stubd/pkg/config"
	"github.com/getmockd/stubd/pkg/expression"
)

func (m *Matcher) evalResults(conds []*config.EvalCondition, x *exchange) []Result {
	if len(conds) == 0 {
		return []Result{NoConfigResult().On(string(KindEval))}
	}
	ectx := &expression.Context{Ctx: x.ctx, Request: x.req.WithPathParams(x.params)}
	results := make([]Result, 0, len(conds))
	for i, c := range conds {
		actual, present := m.resolve(c.Expression, ectx)
		label := fmt.Sprintf("%s[%d]", KindEval, i)
		results = append(results, verdictResult(Compare(&c.Condition, actual, present), WeightEval).On(label))
	}
	return results
}

// resolve evaluates an eval expression. A lone "${...}" placeholder is
// absent when nothing resolved it and no fallback applied; any other
// template is always present.
func (m *Matcher) resolve(expr string, ctx *expression.Context) (string, bool) {
	if m.resolver == nil {
		return "", false
	}
	if inner, ok := singlePlaceholder(expr); ok {
		v, ok := m.resolver.Resolve(inner, ctx)
		return v, ok || v != ""
	}
	return m.resolver.Eval(expr, ctx), true
}

func singlePlaceholder(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "${") || !strings.HasSuffix(s, "}") {
		return "", false
	}
	inner := s[2 : len(s)-1]
	if strings.Contains(inner, "${") {
		return "", false
	}
	return inner, true
}
