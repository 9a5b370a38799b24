package matching

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/getmockd/stubd/internal/router"
	"github.com/getmockd/stubd/pkg/config"
	"github.com/getmockd/stubd/pkg/expression"
	"github.com/getmockd/stubd/pkg/request"
)

// Condition weights.
const (
	WeightMethod      = 1
	WeightLiteralPath = 2
	WeightPath        = 1
	WeightParam       = 1
	WeightBody        = 1
	WeightEval        = 3
)

// ConditionKind names a group of conditions on a resource.
type ConditionKind string

// Condition kinds, in evaluation order.
const (
	KindMethod         ConditionKind = "method"
	KindPath           ConditionKind = "path"
	KindPathParams     ConditionKind = "pathParams"
	KindQueryParams    ConditionKind = "queryParams"
	KindRequestHeaders ConditionKind = "requestHeaders"
	KindFormParams     ConditionKind = "formParams"
	KindRequestBody    ConditionKind = "requestBody"
	KindEval           ConditionKind = "eval"
)

// Kinds lists every condition kind in evaluation order.
var Kinds = []ConditionKind{
	KindMethod, KindPath, KindPathParams, KindQueryParams,
	KindRequestHeaders, KindFormParams, KindRequestBody, KindEval,
}

// Resolver resolves eval expressions. *expression.Registry implements it.
type Resolver interface {
	Resolve(raw string, ctx *expression.Context) (string, bool)
	Eval(template string, ctx *expression.Context) string
}

// Candidate is a resource considered for a request, with the route that
// selected it. A nil Route makes MatchResource test the path itself.
type Candidate struct {
	Resource *config.Resource
	Route    *router.Route
}

// Matcher evaluates resources against requests.
type Matcher struct {
	resolver Resolver
}

// NewMatcher creates a matcher. A nil resolver makes every eval condition
// see an absent value.
func NewMatcher(resolver Resolver) *Matcher {
	return &Matcher{resolver: resolver}
}

// exchange is the per-call state shared by the condition kinds.
type exchange struct {
	ctx    context.Context
	req    *request.Request
	params map[string]string
	route  *router.Route
	body   *bodyDoc
}

// MatchResource evaluates every condition kind of the candidate's resource.
// pathParams are the parameters captured by the route; when nil they are
// taken from the request.
func (m *Matcher) MatchResource(ctx context.Context, c Candidate, req *request.Request, pathParams map[string]string) Outcome {
	if ctx == nil {
		ctx = context.Background()
	}
	res := c.Resource
	x := &exchange{ctx: ctx, req: req, params: pathParams, route: c.Route, body: &bodyDoc{raw: req.Body}}

	var results []Result
	pathOK := true
	if c.Route == nil && res.Path != "" {
		route, params, ok := matchPath(res, req)
		if !ok {
			pathOK = false
		}
		x.route = route
		if x.params == nil {
			x.params = params
		}
	}
	if x.params == nil {
		x.params = req.PathParams
	}

	for _, kind := range Kinds {
		if kind == KindPath && !pathOK {
			results = append(results, NotMatchedResult().On(string(KindPath)))
			continue
		}
		results = append(results, m.evaluate(kind, res, x)...)
	}

	out := Aggregate(res, results)
	out.Route = x.route
	out.PathParams = x.params
	return out
}

func (m *Matcher) evaluate(kind ConditionKind, res *config.Resource, x *exchange) []Result {
	switch kind {
	case KindMethod:
		return []Result{methodResult(res.Method, x.req.Method)}
	case KindPath:
		return []Result{pathResult(res, x.route)}
	case KindPathParams:
		return conditionResults(kind, res.PathParams, func(name string) (string, bool) {
			v, ok := x.params[name]
			return v, ok
		}, true)
	case KindQueryParams:
		return conditionResults(kind, res.QueryParams, x.req.Query, false)
	case KindRequestHeaders:
		return conditionResults(kind, res.RequestHeaders, x.req.Header, false)
	case KindFormParams:
		return conditionResults(kind, res.FormParams, x.req.Form, false)
	case KindRequestBody:
		if res.RequestBody == nil {
			return []Result{NoConfigResult().On(string(kind))}
		}
		return bodyResults(res.RequestBody, x.body, string(kind))
	case KindEval:
		return m.evalResults(res.Eval, x)
	}
	panic(fmt.Sprintf("matching: unknown condition kind %q", kind))
}

func methodResult(want, got string) Result {
	if want == "" {
		return NoConfigResult().On(string(KindMethod))
	}
	if strings.EqualFold(want, got) {
		return Exact(WeightMethod).On(string(KindMethod))
	}
	return NotMatchedResult().On(string(KindMethod))
}

func pathResult(res *config.Resource, route *router.Route) Result {
	label := string(KindPath)
	switch {
	case res.Path == "" || route == nil || route.CatchAll():
		return NoConfigResult().On(label)
	case route.Literal():
		return Exact(WeightLiteralPath).On(label)
	case route.Wildcard():
		return Wildcard(WeightPath).On(label)
	}
	return Exact(WeightPath).On(label)
}

// matchPath tests a resource path without a shared router.
func matchPath(res *config.Resource, req *request.Request) (*router.Route, map[string]string, bool) {
	rt := router.New()
	route, err := rt.AddRoute("", res.Path)
	if err != nil {
		return nil, nil, false
	}
	matches := rt.Match(req.Method, req.Path)
	if len(matches) == 0 {
		return route, nil, false
	}
	return route, matches[0].PathParams, true
}

// conditionResults compares each named condition in name order. With
// required set, an absent value fails regardless of operator.
func conditionResults(kind ConditionKind, conds config.Conditions, lookup func(string) (string, bool), required bool) []Result {
	if len(conds) == 0 {
		return []Result{NoConfigResult().On(string(kind))}
	}
	results := make([]Result, 0, len(conds))
	for _, name := range slices.Sorted(maps.Keys(conds)) {
		label := string(kind) + "." + name
		actual, present := lookup(name)
		if required && !present {
			results = append(results, NotMatchedResult().On(label))
			continue
		}
		results = append(results, verdictResult(Compare(conds[name], actual, present), WeightParam).On(label))
	}
	return results
}
