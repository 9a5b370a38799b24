package store

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/getmockd/stubd/pkg/logging"
	"github.com/getmockd/stubd/pkg/metrics"
)

// DefaultEphemeralStores are ephemeral unless configured otherwise.
var DefaultEphemeralStores = []string{"request"}

// Engine opens and caches durable stores over one Backend and creates
// per-exchange scopes.
type Engine struct {
	backend   Backend
	prefix    string
	ephemeral map[string]bool
	log       *slog.Logger
	metrics   *metrics.Metrics

	mu     sync.Mutex
	stores map[string]*handle
	closed bool
}

// handle is the shared state of one store. Durable handles are cached by
// the Engine; ephemeral handles belong to a Scope.
type handle struct {
	name      string
	ephemeral bool
	prefix    string
	backend   BackendStore
	// modified is set by the first successful write in this process.
	modified atomic.Bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithKeyPrefix prefixes every durable key passed to the backend.
func WithKeyPrefix(prefix string) Option {
	return func(e *Engine) { e.prefix = prefix }
}

// WithLogger sets the engine logger.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) { e.log = logging.For(log, "store") }
}

// WithMetrics sets the metrics collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = metrics.OrNop(m) }
}

// WithEphemeralStores replaces the names of stores that are ephemeral.
func WithEphemeralStores(names ...string) Option {
	return func(e *Engine) {
		e.ephemeral = make(map[string]bool, len(names))
		for _, n := range names {
			e.ephemeral[n] = true
		}
	}
}

// NewEngine creates an Engine over backend. A nil backend uses a new
// MemoryBackend.
func NewEngine(backend Backend, opts ...Option) *Engine {
	if backend == nil {
		backend = NewMemoryBackend()
	}
	e := &Engine{
		backend: backend,
		log:     logging.Nop(),
		metrics: metrics.Nop(),
		stores:  make(map[string]*handle),
	}
	WithEphemeralStores(DefaultEphemeralStores...)(e)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Backend returns the backend behind durable stores.
func (e *Engine) Backend() Backend { return e.backend }

// KeyPrefix returns the configured key prefix.
func (e *Engine) KeyPrefix() string { return e.prefix }

// IsEphemeral reports whether name is configured as an ephemeral store.
func (e *Engine) IsEphemeral(name string) bool {
	return e.ephemeral[name]
}

// EphemeralStores lists the ephemeral store names, sorted.
func (e *Engine) EphemeralStores() []string {
	names := make([]string, 0, len(e.ephemeral))
	for n := range e.ephemeral {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Open returns the durable store called name, creating it on first use.
// The returned store is not bound to an exchange, so it cannot defer
// writes.
func (e *Engine) Open(ctx context.Context, name string) (*Store, error) {
	h, err := e.durable(ctx, name)
	if err != nil {
		return nil, err
	}
	return &Store{h: h, engine: e}, nil
}

// Stores lists the durable stores opened so far, sorted.
func (e *Engine) Stores() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := make([]string, 0, len(e.stores))
	for n := range e.stores {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Preload writes data into the durable store called name. Preloading
// counts as a write, so the store reports its data afterwards.
func (e *Engine) Preload(ctx context.Context, name string, data map[string]any) error {
	s, err := e.Open(ctx, name)
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if err := s.Save(ctx, k, data[k], PhaseRequestReceived); err != nil {
			return fmt.Errorf("preloading %s.%s: %w", name, k, err)
		}
	}
	e.log.Debug("preloaded store", "store", name, "items", len(data))
	return nil
}

// NewScope starts the store state of one exchange.
func (e *Engine) NewScope() *Scope {
	return &Scope{engine: e}
}

// Close closes the backend. Stores opened earlier must not be used
// afterwards.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()
	return e.backend.Close()
}

func (e *Engine) durable(ctx context.Context, name string) (*handle, error) {
	if err := validName(name); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrClosed
	}
	if h, ok := e.stores[name]; ok {
		return h, nil
	}

	bs, err := e.backend.BuildNewStore(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("creating store %q on %s backend: %w", name, e.backend.Name(), err)
	}
	h := &handle{name: name, prefix: e.prefix, backend: bs}
	e.stores[name] = h
	e.log.Debug("opened durable store", "store", name, "backend", e.backend.Name())
	return h, nil
}

func validName(name string) error {
	if strings.TrimSpace(name) == "" || strings.ContainsAny(name, "/\x00") {
		return fmt.Errorf("%w %q", ErrInvalidName, name)
	}
	return nil
}
