package engine

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/getmockd/stubd/pkg/request"
)

// Render builds the static response for the exchange's resource. Template
// responses run their body and header values through the expression
// registry.
func (e *Engine) Render(ctx context.Context, x *Exchange) (*request.Response, error) {
	resp := &request.Response{StatusCode: http.StatusOK, Headers: http.Header{}}
	res := x.Resource()
	if res == nil || res.Response == nil {
		return resp, nil
	}
	cfg := res.Response

	if cfg.StatusCode != 0 {
		resp.StatusCode = cfg.StatusCode
	}
	body := cfg.Content
	if cfg.File != "" {
		raw, err := os.ReadFile(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("reading response file: %w", err)
		}
		body = string(raw)
	}

	ectx := x.expressionContext(ctx)
	for name, value := range cfg.Headers {
		if cfg.Template {
			value = e.exprs.Eval(value, ectx)
		}
		resp.Headers.Set(name, value)
	}
	if cfg.Template {
		body = e.exprs.Eval(body, ectx)
	}
	resp.Body = body
	return resp, nil
}
