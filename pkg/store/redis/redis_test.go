package redis

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/getmockd/stubd/pkg/store"
)

func startRedis(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = container.Terminate(ctx)
	})

	addr, err := container.Endpoint(ctx, "")
	require.NoError(t, err)
	return addr
}

func TestBackend_Operations(t *testing.T) {
	addr := startRedis(t)
	ctx := context.Background()

	b, err := New(ctx, Options{Addr: addr, Namespace: "test"})
	require.NoError(t, err)
	defer b.Close()

	s, err := b.BuildNewStore(ctx, "pets")
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, "1", map[string]any{"name": "Fluffy"}))
	require.NoError(t, s.Save(ctx, "2", "Rex"))

	v, ok, err := s.Load(ctx, "1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, map[string]any{"name": "Fluffy"}, v)

	_, ok, err = s.Load(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, s.Delete(ctx, "2"))
	all, err := s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	raw := goredis.NewClient(&goredis.Options{Addr: addr})
	defer raw.Close()
	exists, err := raw.Exists(ctx, "test:pets").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists)

	require.NoError(t, s.Clear(ctx))
	n, err = s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestBackend_WithEngineKeyPrefix(t *testing.T) {
	addr := startRedis(t)
	ctx := context.Background()

	b, err := New(ctx, Options{Addr: addr})
	require.NoError(t, err)

	e := store.NewEngine(b, store.WithKeyPrefix("pref."))
	defer e.Close()

	s, err := e.Open(ctx, "users")
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, "alice", "admin", store.PhaseRequestReceived))

	raw := goredis.NewClient(&goredis.Options{Addr: addr})
	defer raw.Close()
	val, err := raw.HGet(ctx, DefaultNamespace+":users", "pref.alice").Result()
	require.NoError(t, err)
	assert.Equal(t, `"admin"`, val)

	all, err := s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"alice": "admin"}, all)
}

func TestNew_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := New(ctx, Options{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}
