package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/getmockd/stubd/pkg/metrics"
)

// Store is a view of one named store. Views obtained from a Scope can
// defer writes to the end of that exchange.
type Store struct {
	h      *handle
	engine *Engine
	scope  *Scope
}

// Name returns the store name.
func (s *Store) Name() string { return s.h.name }

// Ephemeral reports whether the store lives for one exchange only.
func (s *Store) Ephemeral() bool { return s.h.ephemeral }

// Save writes value under key at the given phase. PhaseResponseSent queues
// the write on the exchange scope and fails for ephemeral stores and for
// stores that are not bound to an exchange.
func (s *Store) Save(ctx context.Context, key string, value any, phase Phase) error {
	switch phase {
	case PhaseRequestReceived:
		return s.write(ctx, key, value)
	case PhaseResponseSent:
		if s.h.ephemeral {
			return fmt.Errorf("%w: store %q, key %q", ErrDeferredEphemeral, s.h.name, key)
		}
		if s.scope == nil {
			return fmt.Errorf("%w: store %q", ErrNoExchange, s.h.name)
		}
		return s.scope.Defer(Deferred{
			Description: fmt.Sprintf("save %s.%s", s.h.name, key),
			Action: func(ctx context.Context) error {
				return s.write(ctx, key, value)
			},
		})
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedPhase, phase)
	}
}

func (s *Store) write(ctx context.Context, key string, value any) error {
	s.observe(metrics.OpSave)
	if err := s.h.backend.Save(ctx, s.key(key), value); err != nil {
		return fmt.Errorf("saving %s.%s: %w", s.h.name, key, err)
	}
	s.h.modified.Store(true)
	return nil
}

// Load returns the value stored under key.
func (s *Store) Load(ctx context.Context, key string) (any, bool, error) {
	s.observe(metrics.OpLoad)
	if !s.h.modified.Load() {
		return nil, false, nil
	}
	v, ok, err := s.h.backend.Load(ctx, s.key(key))
	if err != nil {
		return nil, false, fmt.Errorf("loading %s.%s: %w", s.h.name, key, err)
	}
	return v, ok, nil
}

// Has reports whether key is present.
func (s *Store) Has(ctx context.Context, key string) (bool, error) {
	_, ok, err := s.Load(ctx, key)
	return ok, err
}

// LoadAll returns every item, with the key prefix removed. Keys written
// under another prefix are left out.
func (s *Store) LoadAll(ctx context.Context) (map[string]any, error) {
	s.observe(metrics.OpLoadAll)
	if !s.h.modified.Load() {
		return map[string]any{}, nil
	}
	return s.loadAll(ctx)
}

func (s *Store) loadAll(ctx context.Context) (map[string]any, error) {
	items, err := s.h.backend.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", s.h.name, err)
	}
	if s.h.prefix == "" {
		return items, nil
	}
	out := make(map[string]any, len(items))
	for k, v := range items {
		if stripped, ok := strings.CutPrefix(k, s.h.prefix); ok {
			out[stripped] = v
		}
	}
	return out, nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	s.observe(metrics.OpDelete)
	if err := s.h.backend.Delete(ctx, s.key(key)); err != nil {
		return fmt.Errorf("deleting %s.%s: %w", s.h.name, key, err)
	}
	return nil
}

// Count returns the number of items.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.observe(metrics.OpCount)
	if !s.h.modified.Load() {
		return 0, nil
	}
	if s.h.prefix == "" {
		n, err := s.h.backend.Count(ctx)
		if err != nil {
			return 0, fmt.Errorf("counting %s: %w", s.h.name, err)
		}
		return n, nil
	}
	items, err := s.loadAll(ctx)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// Clear removes every item. With a key prefix only the prefixed keys are
// removed.
func (s *Store) Clear(ctx context.Context) error {
	s.observe(metrics.OpClear)
	if s.h.prefix == "" {
		if err := s.h.backend.Clear(ctx); err != nil {
			return fmt.Errorf("clearing %s: %w", s.h.name, err)
		}
		return nil
	}
	items, err := s.loadAll(ctx)
	if err != nil {
		return err
	}
	for k := range items {
		if err := s.h.backend.Delete(ctx, s.key(k)); err != nil {
			return fmt.Errorf("clearing %s: %w", s.h.name, err)
		}
	}
	return nil
}

func (s *Store) key(k string) string {
	return s.h.prefix + k
}

func (s *Store) observe(op string) {
	if s.engine != nil {
		s.engine.metrics.ObserveStoreOp(op)
	}
}
