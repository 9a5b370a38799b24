package expression

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/getmockd/stubd/internal/bodyquery"
	"github.com/getmockd/stubd/pkg/request"
)

// exprEvaluator runs the placeholder body as an expr-lang program. The
// environment exposes request, response and every entry of Context.Values.
type exprEvaluator struct {
	programs *lru.Cache[string, *vm.Program]
}

// maxPrograms bounds the compiled program cache, keyed by code and
// environment shape. The least recently used program is evicted first.
const maxPrograms = 1024

func newExprEvaluator() *exprEvaluator {
	return newExprEvaluatorSize(maxPrograms)
}

func newExprEvaluatorSize(size int) *exprEvaluator {
	programs, err := lru.New[string, *vm.Program](size)
	if err != nil {
		panic(fmt.Sprintf("expr program cache: %v", err))
	}
	return &exprEvaluator{programs: programs}
}

func (e *exprEvaluator) Name() string { return "expr" }

func (e *exprEvaluator) Eval(code string, ctx *Context) (string, error) {
	v, err := e.Run(code, ctx)
	if err != nil {
		return "", err
	}
	if v == nil {
		return "", ErrUnresolved
	}
	return bodyquery.Stringify(v), nil
}

// Run evaluates code and returns the raw result.
func (e *exprEvaluator) Run(code string, ctx *Context) (any, error) {
	env := exprEnv(ctx)
	program, err := e.compile(code, env)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", code, err)
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return nil, fmt.Errorf("eval %q: %w", code, err)
	}
	return out, nil
}

// Compile checks that code is a valid program against an empty exchange.
func Compile(code string) error {
	_, err := expr.Compile(code, expr.Env(exprEnv(&Context{})), expr.AllowUndefinedVariables())
	return err
}

func (e *exprEvaluator) compile(code string, env map[string]any) (*vm.Program, error) {
	key := code + "\x00" + envSignature(env)
	if p, ok := e.programs.Get(key); ok {
		return p, nil
	}
	program, err := expr.Compile(code, expr.Env(env), expr.AllowUndefinedVariables())
	if err != nil {
		return nil, err
	}
	e.programs.Add(key, program)
	return program, nil
}

func exprEnv(ctx *Context) map[string]any {
	env := make(map[string]any, len(ctx.Values)+2)
	for k, v := range ctx.Values {
		env[k] = v
	}
	env["request"] = requestEnv(ctx.Request)
	env["response"] = responseEnv(ctx.Response)
	return env
}

func requestEnv(r *request.Request) map[string]any {
	if r == nil {
		return map[string]any{}
	}
	pathParams := make(map[string]any, len(r.PathParams))
	for k, v := range r.PathParams {
		pathParams[k] = v
	}
	return map[string]any{
		"method":      r.Method,
		"path":        r.Path,
		"uri":         r.URI,
		"body":        r.Body,
		"headers":     headerEnv(r.Headers),
		"queryParams": valuesEnv(r.QueryParams),
		"pathParams":  pathParams,
		"formParams":  valuesEnv(r.FormParams),
	}
}

func responseEnv(r *request.Response) map[string]any {
	if r == nil {
		return map[string]any{}
	}
	return map[string]any{
		"statusCode": r.StatusCode,
		"body":       r.Body,
		"headers":    headerEnv(r.Headers),
	}
}

func headerEnv(h http.Header) map[string]any {
	out := make(map[string]any, len(h))
	for k, v := range h {
		if len(v) > 0 {
			out[http.CanonicalHeaderKey(k)] = v[0]
		}
	}
	return out
}

func valuesEnv(values url.Values) map[string]any {
	out := make(map[string]any, len(values))
	for k, v := range values {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

func envSignature(env map[string]any) string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+":"+fmt.Sprintf("%T", env[k]))
	}
	return strings.Join(parts, ",")
}
