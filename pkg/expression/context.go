package expression

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/getmockd/stubd/internal/bodyquery"
)

// contextEvaluator reads fields of the current exchange:
//
//	request.method | request.path | request.uri | request.body[:query]
//	request.headers.<name> | request.queryParams.<name>
//	request.pathParams.<name> | request.formParams.<name>
//	response.statusCode | response.body[:query] | response.headers.<name>
//
// Any other expression is looked up in Context.Values, descending into
// nested maps on ".".
type contextEvaluator struct{}

func (e *contextEvaluator) Name() string { return "context" }

func (e *contextEvaluator) Eval(expr string, ctx *Context) (string, error) {
	expr = strings.TrimSpace(expr)
	switch {
	case strings.HasPrefix(expr, "request."):
		if ctx.Request == nil {
			return "", ErrUnresolved
		}
		return e.request(strings.TrimPrefix(expr, "request."), ctx)
	case strings.HasPrefix(expr, "response."):
		if ctx.Response == nil {
			return "", ErrUnresolved
		}
		return e.response(strings.TrimPrefix(expr, "response."), ctx)
	}
	return lookupValue(ctx.Values, expr)
}

func (e *contextEvaluator) request(field string, ctx *Context) (string, error) {
	req := ctx.Request
	switch field {
	case "method":
		return req.Method, nil
	case "path":
		return req.Path, nil
	case "uri":
		return req.URI, nil
	case "body":
		return req.Body, nil
	}
	if q, ok := strings.CutPrefix(field, "body:"); ok {
		return queryBody(req.Body, q)
	}

	group, name, ok := strings.Cut(field, ".")
	if !ok || name == "" {
		return "", fmt.Errorf("context: unknown request field %q", field)
	}
	var (
		v     string
		found bool
	)
	switch group {
	case "headers":
		v, found = req.Header(name)
	case "queryParams":
		v, found = req.Query(name)
	case "pathParams":
		v, found = req.PathParam(name)
	case "formParams":
		v, found = req.Form(name)
	default:
		return "", fmt.Errorf("context: unknown request field %q", field)
	}
	if !found {
		return "", ErrUnresolved
	}
	return v, nil
}

func (e *contextEvaluator) response(field string, ctx *Context) (string, error) {
	resp := ctx.Response
	switch field {
	case "statusCode":
		return strconv.Itoa(resp.StatusCode), nil
	case "body":
		return resp.Body, nil
	}
	if q, ok := strings.CutPrefix(field, "body:"); ok {
		return queryBody(resp.Body, q)
	}
	if name, ok := strings.CutPrefix(field, "headers."); ok && name != "" {
		v, found := resp.Header(name)
		if !found {
			return "", ErrUnresolved
		}
		return v, nil
	}
	return "", fmt.Errorf("context: unknown response field %q", field)
}

func queryBody(body, query string) (string, error) {
	v, ok, err := bodyquery.Query(body, strings.TrimSpace(query))
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrUnresolved
	}
	return v, nil
}

func lookupValue(values map[string]any, key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("context: empty expression")
	}
	if v, ok := values[key]; ok {
		return stringifyValue(v)
	}

	var cur any = values
	for _, part := range strings.Split(key, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return "", ErrUnresolved
		}
		if cur, ok = m[part]; !ok {
			return "", ErrUnresolved
		}
	}
	return stringifyValue(cur)
}

func stringifyValue(v any) (string, error) {
	if v == nil {
		return "", ErrUnresolved
	}
	return bodyquery.Stringify(v), nil
}
