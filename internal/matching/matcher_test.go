package matching

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/stubd/internal/router"
	"github.com/getmockd/stubd/pkg/config"
	"github.com/getmockd/stubd/pkg/expression"
	"github.com/getmockd/stubd/pkg/request"
)

func newRequest(method, path string) *request.Request {
	return &request.Request{
		Method:      method,
		Path:        path,
		URI:         "http://localhost" + path,
		Headers:     http.Header{},
		QueryParams: url.Values{},
		FormParams:  url.Values{},
		PathParams:  map[string]string{},
	}
}

func routeFor(t *testing.T, method, template string) *router.Route {
	t.Helper()
	route, err := router.New().AddRoute(method, template)
	require.NoError(t, err)
	return route
}

func findResult(out Outcome, condition string) (Result, bool) {
	for _, r := range out.Results {
		if r.Condition == condition {
			return r, true
		}
	}
	return Result{}, false
}

func TestMatchResource_MethodAndPath(t *testing.T) {
	m := NewMatcher(nil)
	ctx := context.Background()

	tests := []struct {
		name     string
		resource *config.Resource
		method   string
		path     string
		params   map[string]string
		matched  bool
		exact    bool
		score    int
	}{
		{
			name:     "literal path and method",
			resource: &config.Resource{Method: "GET", Path: "/pets"},
			method:   "GET", path: "/pets",
			matched: true, exact: true, score: 3,
		},
		{
			name:     "method compared case-insensitively",
			resource: &config.Resource{Method: "post", Path: "/pets"},
			method:   "POST", path: "/pets",
			matched: true, exact: true, score: 3,
		},
		{
			name:     "placeholder path",
			resource: &config.Resource{Path: "/pets/{id}"},
			method:   "GET", path: "/pets/7", params: map[string]string{"id": "7"},
			matched: true, exact: true, score: 1,
		},
		{
			name:     "wildcard path is not exact",
			resource: &config.Resource{Path: "/files/*"},
			method:   "GET", path: "/files/a/b",
			matched: true, exact: false, score: 1,
		},
		{
			name:     "method mismatch",
			resource: &config.Resource{Method: "DELETE", Path: "/pets"},
			method:   "GET", path: "/pets",
			matched: false, score: 3,
		},
		{
			name:     "nothing declared",
			resource: &config.Resource{},
			method:   "GET", path: "/anything",
			matched: false, score: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var route *router.Route
			if tt.resource.Path != "" {
				route = routeFor(t, tt.resource.Method, tt.resource.Path)
			}
			out := m.MatchResource(ctx, Candidate{Resource: tt.resource, Route: route}, newRequest(tt.method, tt.path), tt.params)
			assert.Equal(t, tt.matched, out.Matched)
			assert.Equal(t, tt.exact, out.Exact)
			assert.Equal(t, tt.score, out.Score)
		})
	}
}

func TestMatchResource_PathWithoutRoute(t *testing.T) {
	m := NewMatcher(nil)
	res := &config.Resource{Path: "/users/{id}", PathParams: config.Conditions{"id": {Value: "42"}}}

	out := m.MatchResource(context.Background(), Candidate{Resource: res}, newRequest("GET", "/users/42"), nil)
	assert.True(t, out.Matched)
	assert.True(t, out.Exact)
	assert.Equal(t, 2, out.Score)
	assert.Equal(t, map[string]string{"id": "42"}, out.PathParams)

	out = m.MatchResource(context.Background(), Candidate{Resource: res}, newRequest("GET", "/orders/42"), nil)
	assert.False(t, out.Matched)
	r, ok := findResult(out, "path")
	require.True(t, ok)
	assert.Equal(t, NotMatched, r.Kind)
}

func TestMatchResource_CatchAll(t *testing.T) {
	m := NewMatcher(nil)
	res := &config.Resource{QueryParams: config.Conditions{"q": {Value: "x"}}}
	req := newRequest("GET", "/whatever")
	req.QueryParams.Set("q", "x")

	out := m.MatchResource(context.Background(), Candidate{Resource: res, Route: routeFor(t, "", "")}, req, nil)
	assert.True(t, out.Matched)
	assert.Equal(t, 1, out.Score)
	r, ok := findResult(out, "path")
	require.True(t, ok)
	assert.Equal(t, NoConfig, r.Kind)
}

func TestMatchResource_PathParams(t *testing.T) {
	m := NewMatcher(nil)
	route := routeFor(t, "GET", "/pets/{id}")

	res := &config.Resource{Path: "/pets/{id}", PathParams: config.Conditions{
		"id": {Value: "10"},
	}}
	out := m.MatchResource(context.Background(), Candidate{Resource: res, Route: route}, newRequest("GET", "/pets/10"), map[string]string{"id": "10"})
	assert.True(t, out.Matched)
	assert.Equal(t, 2, out.Score)

	// A condition on a parameter the route never captured fails, even with
	// an operator that accepts absence.
	res = &config.Resource{Path: "/pets/{id}", PathParams: config.Conditions{
		"owner": {Operator: config.NotExists},
	}}
	out = m.MatchResource(context.Background(), Candidate{Resource: res, Route: route}, newRequest("GET", "/pets/10"), map[string]string{"id": "10"})
	assert.False(t, out.Matched)
	r, ok := findResult(out, "pathParams.owner")
	require.True(t, ok)
	assert.Equal(t, NotMatched, r.Kind)
}

func TestMatchResource_RequestSections(t *testing.T) {
	m := NewMatcher(nil)
	req := newRequest("POST", "/login")
	req.Headers.Set("X-Api-Key", "secret")
	req.QueryParams["lang"] = []string{"en", "fr"}
	req.FormParams.Set("user", "alice")

	res := &config.Resource{
		Path:           "/login",
		QueryParams:    config.Conditions{"lang": {Value: "en"}},
		RequestHeaders: config.Conditions{"x-api-key": {Value: "secret"}},
		FormParams:     config.Conditions{"user": {Value: "ali", Operator: config.Contains}},
	}
	out := m.MatchResource(context.Background(), Candidate{Resource: res, Route: routeFor(t, "", "/login")}, req, nil)
	assert.True(t, out.Matched)
	assert.True(t, out.Exact, "a satisfied contains is exact")
	assert.Equal(t, 5, out.Score)

	res.QueryParams = config.Conditions{"lang": {Value: "fr"}}
	out = m.MatchResource(context.Background(), Candidate{Resource: res, Route: routeFor(t, "", "/login")}, req, nil)
	assert.False(t, out.Matched, "only the first query value is compared")
}

func TestMatchResource_Body(t *testing.T) {
	m := NewMatcher(nil)
	jsonReq := newRequest("POST", "/pets")
	jsonReq.Body = `{"name":"Rex","tags":["dog"],"age":3}`
	xmlReq := newRequest("POST", "/pets")
	xmlReq.Body = `<pet kind="dog"><name>Rex</name></pet>`

	tests := []struct {
		name    string
		body    *config.BodyCondition
		req     *request.Request
		matched bool
		exact   bool
		score   int
	}{
		{
			name: "raw equal",
			body: &config.BodyCondition{Condition: config.Condition{Value: jsonReq.Body}},
			req:  jsonReq, matched: true, exact: true, score: 1,
		},
		{
			name: "raw contains",
			body: &config.BodyCondition{Condition: config.Condition{Value: "Rex", Operator: config.Contains}},
			req:  jsonReq, matched: true, exact: true, score: 1,
		},
		{
			name: "json path equal",
			body: &config.BodyCondition{Condition: config.Condition{Value: "Rex"}, JSONPath: "$.name"},
			req:  jsonReq, matched: true, exact: true, score: 1,
		},
		{
			name: "json path number",
			body: &config.BodyCondition{Condition: config.Condition{Value: "3"}, JSONPath: "$.age"},
			req:  jsonReq, matched: true, exact: true, score: 1,
		},
		{
			name: "json path missing",
			body: &config.BodyCondition{Condition: config.Condition{Operator: config.Exists}, JSONPath: "$.owner"},
			req:  jsonReq, matched: false, score: 1,
		},
		{
			name: "json path on xml body",
			body: &config.BodyCondition{Condition: config.Condition{Operator: config.NotExists}, JSONPath: "$.name"},
			req:  xmlReq, matched: true, exact: true, score: 1,
		},
		{
			name: "xpath text",
			body: &config.BodyCondition{Condition: config.Condition{Value: "Rex"}, XPath: "/pet/name"},
			req:  xmlReq, matched: true, exact: true, score: 1,
		},
		{
			name: "xpath attribute",
			body: &config.BodyCondition{Condition: config.Condition{Value: "dog"}, XPath: "/pet/@kind"},
			req:  xmlReq, matched: true, exact: true, score: 1,
		},
		{
			name: "allOf contributes each member",
			body: &config.BodyCondition{AllOf: []*config.BodyCondition{
				{Condition: config.Condition{Value: "Rex"}, JSONPath: "$.name"},
				{Condition: config.Condition{Value: "dog"}, JSONPath: "$.tags[0]"},
			}},
			req: jsonReq, matched: true, exact: true, score: 2,
		},
		{
			name: "allOf with one failing member",
			body: &config.BodyCondition{AllOf: []*config.BodyCondition{
				{Condition: config.Condition{Value: "Rex"}, JSONPath: "$.name"},
				{Condition: config.Condition{Value: "cat"}, JSONPath: "$.tags[0]"},
			}},
			req: jsonReq, matched: false, score: 2,
		},
		{
			name: "anyOf contributes once",
			body: &config.BodyCondition{AnyOf: []*config.BodyCondition{
				{Condition: config.Condition{Value: "Max"}, JSONPath: "$.name"},
				{Condition: config.Condition{Value: "Rex"}, JSONPath: "$.name"},
			}},
			req: jsonReq, matched: true, exact: true, score: 1,
		},
		{
			name: "anyOf with several satisfied members",
			body: &config.BodyCondition{AnyOf: []*config.BodyCondition{
				{Condition: config.Condition{Operator: config.Exists}, JSONPath: "$.name"},
				{Condition: config.Condition{Value: "Rex"}, JSONPath: "$.name"},
			}},
			req: jsonReq, matched: true, exact: true, score: 1,
		},
		{
			name: "anyOf with no satisfied member",
			body: &config.BodyCondition{AnyOf: []*config.BodyCondition{
				{Condition: config.Condition{Value: "Max"}, JSONPath: "$.name"},
			}},
			req: jsonReq, matched: false, score: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := &config.Resource{RequestBody: tt.body}
			out := m.MatchResource(context.Background(), Candidate{Resource: res, Route: routeFor(t, "", "")}, tt.req, nil)
			assert.Equal(t, tt.matched, out.Matched)
			assert.Equal(t, tt.exact, out.Exact)
			assert.Equal(t, tt.score, out.Score)
		})
	}
}

func TestMatchResource_Eval(t *testing.T) {
	m := NewMatcher(expression.NewRegistry())
	req := newRequest("GET", "/reports")
	req.Headers.Set("X-Tenant", "acme")

	tests := []struct {
		name    string
		eval    *config.EvalCondition
		matched bool
		exact   bool
	}{
		{"header equals", &config.EvalCondition{Expression: "${context.request.headers.X-Tenant}", Condition: config.Condition{Value: "acme"}}, true, true},
		{"header differs", &config.EvalCondition{Expression: "${context.request.headers.X-Tenant}", Condition: config.Condition{Value: "other"}}, false, false},
		{"absent value", &config.EvalCondition{Expression: "${context.request.headers.X-Missing}", Condition: config.Condition{Operator: config.NotExists}}, true, true},
		{"fallback counts as a value", &config.EvalCondition{Expression: "${context.request.queryParams.page:-1}", Condition: config.Condition{Value: "1"}}, true, true},
		{"template", &config.EvalCondition{Expression: "tenant-${context.request.headers.X-Tenant}", Condition: config.Condition{Value: "tenant-acme"}}, true, true},
		{"expr language", &config.EvalCondition{Expression: `${expr.request.method == "GET"}`, Condition: config.Condition{Value: "true"}}, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := &config.Resource{Method: "GET", Eval: []*config.EvalCondition{tt.eval}}
			out := m.MatchResource(context.Background(), Candidate{Resource: res, Route: routeFor(t, "GET", "")}, req, nil)
			assert.Equal(t, tt.matched, out.Matched)
			assert.Equal(t, tt.exact, out.Exact)
			assert.Equal(t, 4, out.Score, "method 1 plus eval 3")
		})
	}
}

func TestMatchResource_MoreSpecificResourceWins(t *testing.T) {
	m := NewMatcher(nil)
	rt := router.New()
	generic := &config.Resource{Path: "/pets", Method: "GET", Index: 0}
	filtered := &config.Resource{Path: "/pets", Method: "GET", Index: 1,
		QueryParams: config.Conditions{"type": {Value: "dog"}}}
	route, err := rt.AddRoute("GET", "/pets")
	require.NoError(t, err)

	req := newRequest("GET", "/pets")
	req.QueryParams.Set("type", "dog")

	outs := []Outcome{
		m.MatchResource(context.Background(), Candidate{Resource: generic, Route: route}, req, nil),
		m.MatchResource(context.Background(), Candidate{Resource: filtered, Route: route}, req, nil),
	}
	best, ok := SelectBest(outs)
	require.True(t, ok)
	assert.Same(t, filtered, best.Resource)
	assert.Equal(t, 4, best.Score)

	req.QueryParams.Set("type", "cat")
	outs = []Outcome{
		m.MatchResource(context.Background(), Candidate{Resource: generic, Route: route}, req, nil),
		m.MatchResource(context.Background(), Candidate{Resource: filtered, Route: route}, req, nil),
	}
	best, ok = SelectBest(outs)
	require.True(t, ok)
	assert.Same(t, generic, best.Resource)
}

func TestMatchResource_OperatorConditionsOutrankBarePath(t *testing.T) {
	m := NewMatcher(nil)
	route := routeFor(t, "GET", "/users/{id}")
	generic := &config.Resource{Path: "/users/{id}", Method: "GET", Index: 0}
	specific := &config.Resource{Path: "/users/{id}", Method: "GET", Index: 1,
		PathParams:     config.Conditions{"id": {Value: "admin", Operator: config.NotEqualTo}},
		RequestHeaders: config.Conditions{"X-Mode": {Value: "beta", Operator: config.Contains}},
	}

	req := newRequest("GET", "/users/7")
	req.PathParams["id"] = "7"
	req.Headers.Set("X-Mode", "beta-1")

	outs := []Outcome{
		m.MatchResource(context.Background(), Candidate{Resource: generic, Route: route}, req, map[string]string{"id": "7"}),
		m.MatchResource(context.Background(), Candidate{Resource: specific, Route: route}, req, map[string]string{"id": "7"}),
	}
	best, ok := SelectBest(outs)
	require.True(t, ok)
	assert.Same(t, specific, best.Resource)
	assert.True(t, best.Exact)
	assert.Equal(t, 4, best.Score)
}
