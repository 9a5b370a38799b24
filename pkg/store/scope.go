package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/getmockd/stubd/pkg/metrics"
)

// Deferred is a write queued until the response has been sent.
type Deferred struct {
	Description string
	Action      func(ctx context.Context) error
}

// Scope is the store state of one exchange: its ephemeral stores and its
// queue of deferred writes. A Scope ends with exactly one call to Flush or
// Discard.
type Scope struct {
	engine *Engine

	mu        sync.Mutex
	ephemeral map[string]*handle
	queue     []Deferred
	done      bool
}

// Open returns the store called name. Ephemeral stores are created in
// memory on first use and dropped when the scope ends; durable stores are
// shared with the Engine.
func (sc *Scope) Open(ctx context.Context, name string, ephemeral bool) (*Store, error) {
	if !ephemeral {
		h, err := sc.engine.durable(ctx, name)
		if err != nil {
			return nil, err
		}
		return &Store{h: h, engine: sc.engine, scope: sc}, nil
	}

	if err := validName(name); err != nil {
		return nil, err
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.done {
		return nil, ErrExchangeDone
	}
	if sc.ephemeral == nil {
		sc.ephemeral = make(map[string]*handle)
	}
	h, ok := sc.ephemeral[name]
	if !ok {
		h = &handle{name: name, ephemeral: true, backend: NewMemoryStore()}
		sc.ephemeral[name] = h
	}
	return &Store{h: h, engine: sc.engine, scope: sc}, nil
}

// Resolve opens name, using the Engine's ephemeral store names to decide
// its kind.
func (sc *Scope) Resolve(ctx context.Context, name string) (*Store, error) {
	return sc.Open(ctx, name, sc.engine.IsEphemeral(name))
}

// Defer queues d. It fails once the scope has ended.
func (sc *Scope) Defer(d Deferred) error {
	if d.Action == nil {
		return errors.New("deferred write has no action")
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.done {
		return fmt.Errorf("%w: %s", ErrExchangeDone, d.Description)
	}
	sc.queue = append(sc.queue, d)
	return nil
}

// Pending returns the number of queued writes.
func (sc *Scope) Pending() int {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return len(sc.queue)
}

// Flush runs the queued writes in the order they were deferred and ends
// the scope. Every write runs even if an earlier one fails; failures are
// logged and returned joined.
func (sc *Scope) Flush(ctx context.Context) error {
	queue, ok := sc.end()
	if !ok {
		return ErrExchangeDone
	}

	var errs []error
	for _, d := range queue {
		if err := d.Action(ctx); err != nil {
			sc.engine.metrics.ObserveDeferred(metrics.OutcomeError)
			sc.engine.log.Warn("deferred write failed", "write", d.Description, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", d.Description, err))
			continue
		}
		sc.engine.metrics.ObserveDeferred(metrics.OutcomeOK)
	}
	return errors.Join(errs...)
}

// Discard drops the queued writes without running them and ends the scope.
// It returns the number of writes dropped.
func (sc *Scope) Discard() int {
	queue, ok := sc.end()
	if !ok {
		return 0
	}
	for _, d := range queue {
		sc.engine.metrics.ObserveDeferred(metrics.OutcomeDiscarded)
		sc.engine.log.Debug("discarded deferred write", "write", d.Description)
	}
	return len(queue)
}

// Done reports whether the scope has ended.
func (sc *Scope) Done() bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.done
}

func (sc *Scope) end() ([]Deferred, bool) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.done {
		return nil, false
	}
	sc.done = true
	queue := sc.queue
	sc.queue = nil
	sc.ephemeral = nil
	return queue, true
}

type scopeKey struct{}

// WithScope returns a context carrying sc, for evaluators that read stores.
func WithScope(ctx context.Context, sc *Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, sc)
}

// ScopeFrom returns the scope carried by ctx.
func ScopeFrom(ctx context.Context) (*Scope, bool) {
	sc, ok := ctx.Value(scopeKey{}).(*Scope)
	return sc, ok && sc != nil
}
