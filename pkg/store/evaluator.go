package store

import (
	"fmt"
	"strings"

	"github.com/getmockd/stubd/internal/bodyquery"
	"github.com/getmockd/stubd/pkg/expression"
)

// Evaluator resolves stores.<name>.<key>, optionally followed by a JSONPath
// query on the stored value: ${stores.pets.10:$.name}.
//
// Inside an exchange the exchange's scope is used, so ephemeral stores are
// visible. Outside one only durable stores resolve.
type Evaluator struct {
	engine *Engine
}

// NewEvaluator returns the "stores" expression evaluator for engine.
func NewEvaluator(engine *Engine) *Evaluator {
	return &Evaluator{engine: engine}
}

// Name implements expression.Evaluator.
func (ev *Evaluator) Name() string { return "stores" }

// Eval implements expression.Evaluator.
func (ev *Evaluator) Eval(expr string, ctx *expression.Context) (string, error) {
	ref, query, _ := strings.Cut(expr, ":")
	name, key, ok := strings.Cut(ref, ".")
	if !ok || name == "" || key == "" {
		return "", fmt.Errorf("stores: expected <store>.<key>, got %q", expr)
	}

	std := ctx.Std()
	var (
		s   *Store
		err error
	)
	if sc, ok := ScopeFrom(std); ok {
		s, err = sc.Resolve(std, name)
	} else if ev.engine.IsEphemeral(name) {
		return "", expression.ErrUnresolved
	} else {
		s, err = ev.engine.Open(std, name)
	}
	if err != nil {
		return "", err
	}

	v, found, err := s.Load(std, key)
	if err != nil {
		return "", err
	}
	if !found || v == nil {
		return "", expression.ErrUnresolved
	}
	if query == "" {
		return bodyquery.Stringify(v), nil
	}
	return queryValue(v, strings.TrimSpace(query))
}

func queryValue(v any, query string) (string, error) {
	if s, ok := v.(string); ok {
		out, found, err := bodyquery.Query(s, query)
		if err != nil {
			return "", err
		}
		if !found {
			return "", expression.ErrUnresolved
		}
		return out, nil
	}

	x, err := bodyquery.CompileJSONPath(query)
	if err != nil {
		return "", err
	}
	results := x.Get(v)
	if len(results) == 0 {
		return "", expression.ErrUnresolved
	}
	return bodyquery.Stringify(results[0]), nil
}
