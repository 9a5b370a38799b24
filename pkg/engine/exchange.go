package engine

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/google/uuid"

	"github.com/getmockd/stubd/internal/bodyquery"
	"github.com/getmockd/stubd/internal/matching"
	"github.com/getmockd/stubd/pkg/config"
	"github.com/getmockd/stubd/pkg/expression"
	"github.com/getmockd/stubd/pkg/metrics"
	"github.com/getmockd/stubd/pkg/request"
	"github.com/getmockd/stubd/pkg/store"
)

// Exchange is one request/response pair flowing through the engine. It
// owns the store scope that holds ephemeral stores and deferred writes.
type Exchange struct {
	ID      string
	Request *request.Request
	// Outcome is nil when no resource matched.
	Outcome *matching.Outcome

	engine   *Engine
	scope    *store.Scope
	response *request.Response
}

// Begin matches req and opens a store scope for it.
func (e *Engine) Begin(ctx context.Context, req *request.Request) *Exchange {
	x := &Exchange{
		ID:      uuid.NewString(),
		Request: req,
		engine:  e,
		scope:   e.stores.NewScope(),
	}
	if out, ok := e.Match(x.Context(ctx), req); ok {
		x.Outcome = out
		x.Request = req.WithPathParams(out.PathParams)
	}
	return x
}

// Matched reports whether a resource was selected.
func (x *Exchange) Matched() bool { return x.Outcome != nil }

// Resource returns the selected resource, or nil.
func (x *Exchange) Resource() *config.Resource {
	if x.Outcome == nil {
		return nil
	}
	return x.Outcome.Resource
}

// Context returns ctx carrying the exchange's store scope.
func (x *Exchange) Context(ctx context.Context) context.Context {
	return store.WithScope(ctx, x.scope)
}

// Scope returns the exchange's store scope.
func (x *Exchange) Scope() *store.Scope { return x.scope }

// SetResponse records the response sent, for response-phase captures and
// templates.
func (x *Exchange) SetResponse(resp *request.Response) { x.response = resp }

// Response returns the recorded response.
func (x *Exchange) Response() *request.Response { return x.response }

// expressionContext builds the evaluator view of the exchange.
func (x *Exchange) expressionContext(ctx context.Context) *expression.Context {
	return &expression.Context{
		Ctx:      x.Context(ctx),
		Request:  x.Request,
		Response: x.response,
		Values:   map[string]any{"exchangeId": x.ID},
	}
}

// Capture runs the selected resource's captures for phase, in capture name
// order. Request-phase captures are written immediately. Response-phase
// captures are queued and read the recorded response when the queue is
// flushed. Every capture is attempted; failures are returned joined.
func (x *Exchange) Capture(ctx context.Context, phase store.Phase) error {
	res := x.Resource()
	if res == nil || len(res.Capture) == 0 {
		return nil
	}

	var errs []error
	for _, name := range slices.Sorted(maps.Keys(res.Capture)) {
		c := res.Capture[name]
		if !c.IsEnabled() {
			continue
		}
		p, err := store.ParsePhase(c.Phase)
		if err != nil {
			errs = append(errs, fmt.Errorf("capture %s: %w", name, err))
			continue
		}
		if p != phase {
			continue
		}

		if err := x.capture(ctx, name, c, phase); err != nil {
			x.engine.metrics.ObserveCapture(phase.String(), metrics.OutcomeError)
			x.engine.log.Warn("capture failed", "capture", name, "store", c.StoreName(), "phase", phase.String(), "error", err)
			errs = append(errs, fmt.Errorf("capture %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func (x *Exchange) capture(ctx context.Context, name string, c *config.Capture, phase store.Phase) error {
	st, err := x.scope.Resolve(ctx, c.StoreName())
	if err != nil {
		return err
	}

	if phase == store.PhaseRequestReceived {
		return x.write(ctx, st, name, c, phase)
	}

	if st.Ephemeral() {
		return fmt.Errorf("%w: store %q", store.ErrDeferredEphemeral, st.Name())
	}
	return x.scope.Defer(store.Deferred{
		Description: fmt.Sprintf("capture %s into %s", name, st.Name()),
		Action: func(ctx context.Context) error {
			return x.write(ctx, st, name, c, phase)
		},
	})
}

// write evaluates the capture against the current exchange state and saves
// it. A capture whose source has no value is skipped.
func (x *Exchange) write(ctx context.Context, st *store.Store, name string, c *config.Capture, phase store.Phase) error {
	ectx := x.expressionContext(ctx)
	value, ok := x.captureValue(c, ectx)
	if !ok {
		x.engine.metrics.ObserveCapture(phase.String(), metrics.OutcomeSkipped)
		x.engine.log.Debug("capture has no value", "capture", name, "store", st.Name())
		return nil
	}
	key := name
	if c.Key != "" {
		key = x.engine.exprs.Eval(c.Key, ectx)
	}
	if err := st.Save(ectx.Std(), key, value, store.PhaseRequestReceived); err != nil {
		return err
	}
	x.engine.metrics.ObserveCapture(phase.String(), metrics.OutcomeOK)
	x.engine.log.Debug("captured", "capture", name, "store", st.Name(), "key", key)
	return nil
}

func (x *Exchange) captureValue(c *config.Capture, ectx *expression.Context) (any, bool) {
	req := x.Request
	switch {
	case c.Const != nil:
		return *c.Const, true
	case c.PathParam != "":
		return str(req.PathParam(c.PathParam))
	case c.QueryParam != "":
		return str(req.Query(c.QueryParam))
	case c.RequestHeader != "":
		return str(req.Header(c.RequestHeader))
	case c.FormParam != "":
		return str(req.Form(c.FormParam))
	case c.JSONPath != "":
		v, ok, err := bodyquery.JSONPath(req.Body, c.JSONPath)
		if err != nil || !ok {
			return nil, false
		}
		return v, true
	case c.XPath != "":
		v, ok, err := bodyquery.XPath(req.Body, c.XPath)
		if err != nil || !ok {
			return nil, false
		}
		return v, true
	case c.Expression != "":
		return x.engine.exprs.Eval(c.Expression, ectx), true
	}
	return nil, false
}

func str(v string, ok bool) (any, bool) {
	return v, ok
}

// Complete flushes the deferred writes and ends the exchange.
func (x *Exchange) Complete(ctx context.Context) error {
	return x.scope.Flush(x.Context(ctx))
}

// Abort drops the deferred writes and ends the exchange. It returns the
// number of writes dropped.
func (x *Exchange) Abort() int {
	return x.scope.Discard()
}
