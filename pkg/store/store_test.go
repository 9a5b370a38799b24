package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/stubd/pkg/expression"
)

func TestSaveLoadAll(t *testing.T) {
	ctx := context.Background()
	s, err := NewEngine(nil).Open(ctx, "test")
	require.NoError(t, err)

	require.NoError(t, s.Save(ctx, "foo", "bar", PhaseRequestReceived))

	all, err := s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"foo": "bar"}, all)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	v, ok, err := s.Load(ctx, "foo")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "bar", v)
	assert.Equal(t, "test", s.Name())
	assert.False(t, s.Ephemeral())
}

func TestUnmodifiedStoreReportsEmpty(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()

	first, err := NewEngine(backend).Open(ctx, "test")
	require.NoError(t, err)
	require.NoError(t, first.Save(ctx, "foo", "bar", PhaseRequestReceived))

	// A new engine over the same backend models a process restart.
	second, err := NewEngine(backend).Open(ctx, "test")
	require.NoError(t, err)

	all, err := second.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	has, err := second.Has(ctx, "foo")
	require.NoError(t, err)
	assert.False(t, has)

	n, err := second.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	// The first write warms the store and exposes existing data.
	require.NoError(t, second.Save(ctx, "baz", "qux", PhaseRequestReceived))
	all, err = second.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"foo": "bar", "baz": "qux"}, all)
}

func TestModifiedFlagSharedAcrossViews(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(nil)

	a, err := e.Open(ctx, "shared")
	require.NoError(t, err)
	scope := e.NewScope()
	b, err := scope.Open(ctx, "shared", false)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, a.Save(ctx, "k", 1, PhaseRequestReceived))
	}()
	wg.Wait()

	v, ok, err := b.Load(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestDeferredEphemeralFailsAtSave(t *testing.T) {
	ctx := context.Background()
	scope := NewEngine(nil).NewScope()

	s, err := scope.Open(ctx, "request", true)
	require.NoError(t, err)
	assert.True(t, s.Ephemeral())

	err = s.Save(ctx, "foo", "bar", PhaseResponseSent)
	require.ErrorIs(t, err, ErrDeferredEphemeral)
	assert.Contains(t, err.Error(), `"request"`)
	assert.Zero(t, scope.Pending())
}

func TestDeferredWithoutExchange(t *testing.T) {
	ctx := context.Background()
	s, err := NewEngine(nil).Open(ctx, "durable")
	require.NoError(t, err)

	err = s.Save(ctx, "foo", "bar", PhaseResponseSent)
	assert.ErrorIs(t, err, ErrNoExchange)
}

func TestUnsupportedPhase(t *testing.T) {
	ctx := context.Background()
	s, err := NewEngine(nil).Open(ctx, "durable")
	require.NoError(t, err)

	err = s.Save(ctx, "foo", "bar", Phase(7))
	assert.ErrorIs(t, err, ErrUnsupportedPhase)
}

func TestParsePhase(t *testing.T) {
	tests := []struct {
		in   string
		want Phase
		err  bool
	}{
		{"", PhaseRequestReceived, false},
		{"REQUEST_RECEIVED", PhaseRequestReceived, false},
		{"response_sent", PhaseResponseSent, false},
		{"AFTER", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePhase(tt.in)
			if tt.err {
				assert.ErrorIs(t, err, ErrUnsupportedPhase)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, "RESPONSE_SENT", PhaseResponseSent.String())
}

func TestKeyPrefix(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	e := NewEngine(backend, WithKeyPrefix("pref."))

	s, err := e.Open(ctx, "test")
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, "foo", "bar", PhaseRequestReceived))

	raw, err := backend.BuildNewStore(ctx, "test")
	require.NoError(t, err)
	v, ok, err := raw.Load(ctx, "pref.foo")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "bar", v)

	// Keys of another tenant sharing the backend are not visible.
	require.NoError(t, raw.Save(ctx, "other.foo", "x"))

	all, err := s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"foo": "bar"}, all)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, s.Clear(ctx))
	rawCount, err := raw.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rawCount)
}

func TestEphemeralStoresAreScoped(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(nil)

	one := e.NewScope()
	s1, err := one.Resolve(ctx, "request")
	require.NoError(t, err)
	require.True(t, s1.Ephemeral())
	require.NoError(t, s1.Save(ctx, "id", "1", PhaseRequestReceived))

	again, err := one.Open(ctx, "request", true)
	require.NoError(t, err)
	v, ok, err := again.Load(ctx, "id")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1", v)

	two := e.NewScope()
	s2, err := two.Open(ctx, "request", true)
	require.NoError(t, err)
	has, err := s2.Has(ctx, "id")
	require.NoError(t, err)
	assert.False(t, has)

	assert.Empty(t, e.Stores())
}

func TestFlushRunsInOrderOnce(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(nil)
	scope := e.NewScope()

	s, err := scope.Open(ctx, "log", false)
	require.NoError(t, err)

	var order []string
	record := func(name string, err error) Deferred {
		return Deferred{Description: name, Action: func(context.Context) error {
			order = append(order, name)
			return err
		}}
	}
	require.NoError(t, scope.Defer(record("first", nil)))
	require.NoError(t, s.Save(ctx, "k", "v", PhaseResponseSent))
	require.NoError(t, scope.Defer(record("failing", errors.New("backend down"))))
	require.NoError(t, scope.Defer(record("last", nil)))
	assert.Equal(t, 4, scope.Pending())

	// Nothing is written before the flush.
	has, err := s.Has(ctx, "k")
	require.NoError(t, err)
	assert.False(t, has)

	err = scope.Flush(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failing: backend down")
	assert.Equal(t, []string{"first", "failing", "last"}, order)

	v, ok, err := s.Load(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	assert.ErrorIs(t, scope.Flush(ctx), ErrExchangeDone)
	assert.Equal(t, []string{"first", "failing", "last"}, order)
	assert.ErrorIs(t, scope.Defer(record("late", nil)), ErrExchangeDone)
	assert.True(t, scope.Done())
}

func TestDiscard(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(nil)
	scope := e.NewScope()

	s, err := scope.Open(ctx, "orders", false)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, "k", "v", PhaseResponseSent))

	assert.Equal(t, 1, scope.Discard())
	assert.Zero(t, scope.Discard())
	assert.ErrorIs(t, scope.Flush(ctx), ErrExchangeDone)

	durable, err := e.Open(ctx, "orders")
	require.NoError(t, err)
	has, err := durable.Has(ctx, "k")
	require.NoError(t, err)
	assert.False(t, has)

	_, err = scope.Open(ctx, "request", true)
	assert.ErrorIs(t, err, ErrExchangeDone)
}

func TestPreload(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(nil)
	require.NoError(t, e.Preload(ctx, "pets", map[string]any{"1": "Fluffy", "2": "Rex"}))

	s, err := e.Open(ctx, "pets")
	require.NoError(t, err)
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"pets"}, e.Stores())
}

func TestInvalidNameAndClose(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(nil)

	_, err := e.Open(ctx, " ")
	assert.ErrorIs(t, err, ErrInvalidName)

	require.NoError(t, e.Close())
	require.NoError(t, e.Close())
	_, err = e.Open(ctx, "late")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestEphemeralConfiguration(t *testing.T) {
	e := NewEngine(nil, WithEphemeralStores("scratch", "request"))
	assert.True(t, e.IsEphemeral("scratch"))
	assert.False(t, e.IsEphemeral("pets"))
	assert.Equal(t, []string{"request", "scratch"}, e.EphemeralStores())

	assert.True(t, NewEngine(nil).IsEphemeral("request"))
}

type failingBackend struct{ MemoryBackend }

func (failingBackend) BuildNewStore(context.Context, string) (BackendStore, error) {
	return nil, errors.New("connection refused")
}

func TestOpenBackendError(t *testing.T) {
	_, err := NewEngine(&failingBackend{}).Open(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

// =============================================================================
// Evaluator
// =============================================================================

func TestEvaluator(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(nil)
	require.NoError(t, e.Preload(ctx, "pets", map[string]any{
		"10":   map[string]any{"name": "Fluffy", "age": 3},
		"json": `{"name":"Rex"}`,
		"n":    42,
	}))

	reg := expression.NewRegistry()
	reg.Register(NewEvaluator(e))

	scope := e.NewScope()
	req, err := scope.Resolve(ctx, "request")
	require.NoError(t, err)
	require.NoError(t, req.Save(ctx, "id", "abc", PhaseRequestReceived))

	inExchange := &expression.Context{Ctx: WithScope(ctx, scope)}

	tests := []struct {
		name string
		tmpl string
		ectx *expression.Context
		want string
	}{
		{"scalar", "${stores.pets.n}", nil, "42"},
		{"map query", "${stores.pets.10:$.name}", nil, "Fluffy"},
		{"json string query", "${stores.pets.json:$.name}", nil, "Rex"},
		{"whole map", "${stores.pets.10}", nil, `{"age":3,"name":"Fluffy"}`},
		{"missing key", "${stores.pets.nope:-none}", nil, "none"},
		{"missing query", "${stores.pets.10:$.owner:-none}", nil, "none"},
		{"ephemeral in exchange", "${stores.request.id}", inExchange, "abc"},
		{"ephemeral outside exchange", "${stores.request.id:-none}", nil, "none"},
		{"malformed", "${stores.pets:-bad}", nil, "bad"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, reg.Eval(tt.tmpl, tt.ectx))
		})
	}
}
