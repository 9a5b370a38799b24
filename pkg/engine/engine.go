package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/getmockd/stubd/internal/matching"
	"github.com/getmockd/stubd/internal/router"
	"github.com/getmockd/stubd/pkg/config"
	"github.com/getmockd/stubd/pkg/expression"
	"github.com/getmockd/stubd/pkg/logging"
	"github.com/getmockd/stubd/pkg/metrics"
	"github.com/getmockd/stubd/pkg/request"
	"github.com/getmockd/stubd/pkg/store"
)

// ErrNotLoaded is returned by operations that need a resource table before
// Load has succeeded.
var ErrNotLoaded = errors.New("no resources loaded")

// Engine matches requests against the loaded resources and runs their
// captures.
type Engine struct {
	stores  *store.Engine
	exprs   *expression.Registry
	matcher *matching.Matcher
	log     *slog.Logger
	metrics *metrics.Metrics

	table atomic.Pointer[table]
}

// table is an immutable snapshot of the loaded resources.
type table struct {
	router    *router.Router
	byRoute   map[string][]*config.Resource
	resources []*config.Resource
}

// Option configures an Engine.
type Option func(*Engine)

// WithStores sets the store engine. The default is an in-memory one.
func WithStores(s *store.Engine) Option {
	return func(e *Engine) { e.stores = s }
}

// WithExpressions sets the expression registry. The stores evaluator is
// registered on it.
func WithExpressions(r *expression.Registry) Option {
	return func(e *Engine) { e.exprs = r }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithMetrics sets the metrics collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New creates an engine with no resources loaded.
func New(opts ...Option) *Engine {
	e := &Engine{log: logging.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	e.metrics = metrics.OrNop(e.metrics)
	if e.stores == nil {
		e.stores = store.NewEngine(nil, store.WithLogger(e.log), store.WithMetrics(e.metrics))
	}
	if e.exprs == nil {
		e.exprs = expression.NewRegistry(expression.WithLogger(e.log))
	}
	e.exprs.Register(store.NewEvaluator(e.stores))
	e.matcher = matching.NewMatcher(e.exprs)
	e.log = logging.For(e.log, "engine")
	return e
}

// Stores returns the store engine.
func (e *Engine) Stores() *store.Engine { return e.stores }

// Expressions returns the expression registry.
func (e *Engine) Expressions() *expression.Registry { return e.exprs }

// Resources returns the loaded resources in declaration order.
func (e *Engine) Resources() []*config.Resource {
	t := e.table.Load()
	if t == nil {
		return nil
	}
	return t.resources
}

// Load validates resources, builds a new route table and publishes it. On
// error the previously loaded table stays in place.
func (e *Engine) Load(resources []*config.Resource) error {
	if err := config.Prepare(resources).Err(); err != nil {
		return err
	}

	t := &table{
		router:    router.New(),
		byRoute:   make(map[string][]*config.Resource),
		resources: resources,
	}
	for i, res := range resources {
		if err := e.checkCaptures(res); err != nil {
			return fmt.Errorf("resource %d (%s): %w", i, res.Name(), err)
		}
		route, err := t.router.AddRoute(res.Method, res.Path)
		if err != nil {
			return fmt.Errorf("resource %d (%s): %w", i, res.Name(), err)
		}
		t.byRoute[route.Key()] = append(t.byRoute[route.Key()], res)
	}
	// Declaration order is the slice order, whatever the caller set.
	for i, res := range resources {
		res.Index = i
	}

	e.table.Store(t)
	e.metrics.SetResources(len(resources))
	e.log.Info("resources loaded", "resources", len(resources), "routes", t.router.Len())
	return nil
}

// checkCaptures rejects response-phase captures into ephemeral stores,
// which would otherwise only fail per request.
func (e *Engine) checkCaptures(res *config.Resource) error {
	for name, c := range res.Capture {
		if !c.IsEnabled() {
			continue
		}
		phase, err := store.ParsePhase(c.Phase)
		if err != nil {
			return fmt.Errorf("capture %s: %w", name, err)
		}
		if phase == store.PhaseResponseSent && e.stores.IsEphemeral(c.StoreName()) {
			return fmt.Errorf("capture %s into %q: %w", name, c.StoreName(), store.ErrDeferredEphemeral)
		}
	}
	return nil
}

// Evaluate returns the outcome of every resource whose route matches req,
// best first.
func (e *Engine) Evaluate(ctx context.Context, req *request.Request) []matching.Outcome {
	t := e.table.Load()
	if t == nil {
		return nil
	}
	var outcomes []matching.Outcome
	for _, m := range t.router.Match(req.Method, req.Path) {
		for _, res := range t.byRoute[m.Route.Key()] {
			c := matching.Candidate{Resource: res, Route: m.Route}
			outcomes = append(outcomes, e.matcher.MatchResource(ctx, c, req, m.PathParams))
		}
	}
	return matching.Rank(outcomes)
}

// Match selects the resource for req. The boolean is false when no
// resource matched.
func (e *Engine) Match(ctx context.Context, req *request.Request) (*matching.Outcome, bool) {
	best, ok := matching.SelectBest(e.Evaluate(ctx, req))
	switch {
	case !ok:
		e.metrics.ObserveMatch(metrics.ResultNone)
		return nil, false
	case best.Exact:
		e.metrics.ObserveMatch(metrics.ResultExact)
	default:
		e.metrics.ObserveMatch(metrics.ResultWildcard)
	}
	return &best, true
}

// Preload seeds durable stores from configuration. Inline data is applied
// before the contents of the preload file.
func (e *Engine) Preload(ctx context.Context, stores map[string]*config.StoreConfig) error {
	var errs []error
	for name, sc := range stores {
		if sc == nil {
			continue
		}
		if len(sc.PreloadData) > 0 {
			if err := e.stores.Preload(ctx, name, sc.PreloadData); err != nil {
				errs = append(errs, fmt.Errorf("preloading store %s: %w", name, err))
			}
		}
		if sc.PreloadFile != "" {
			data, err := readPreloadFile(sc.PreloadFile)
			if err == nil {
				err = e.stores.Preload(ctx, name, data)
			}
			if err != nil {
				errs = append(errs, fmt.Errorf("preloading store %s from %s: %w", name, sc.PreloadFile, err))
			}
		}
		e.log.Debug("store preloaded", "store", name)
	}
	return errors.Join(errs...)
}

// readPreloadFile reads a JSON or YAML object of key/value pairs.
func readPreloadFile(path string) (map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var data map[string]any
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	return data, nil
}

// Close closes the store engine.
func (e *Engine) Close() error {
	return e.stores.Close()
}
