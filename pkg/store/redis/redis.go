// Package redis provides a durable store backend on Redis. Each store is a
// hash named "<namespace>:<store>" whose fields hold JSON-encoded values.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/getmockd/stubd/pkg/logging"
	"github.com/getmockd/stubd/pkg/store"
)

// DefaultNamespace prefixes every hash name.
const DefaultNamespace = "stubd"

// Options configures a Backend.
type Options struct {
	Addr      string
	Password  string
	DB        int
	Namespace string
	Logger    *slog.Logger
}

// Backend implements store.Backend on a Redis client.
type Backend struct {
	client    goredis.UniversalClient
	namespace string
	owned     bool
	log       *slog.Logger
}

// New connects to Redis and verifies the connection with PING.
func New(ctx context.Context, opts Options) (*Backend, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", opts.Addr, err)
	}
	b := NewWithClient(client, opts.Namespace, opts.Logger)
	b.owned = true
	return b, nil
}

// NewWithClient wraps an existing client. Close does not close it.
func NewWithClient(client goredis.UniversalClient, namespace string, logger *slog.Logger) *Backend {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &Backend{
		client:    client,
		namespace: namespace,
		log:       logging.For(logger, "store.redis"),
	}
}

// Name implements store.Backend.
func (b *Backend) Name() string { return "redis" }

// BuildNewStore implements store.Backend.
func (b *Backend) BuildNewStore(_ context.Context, name string) (store.BackendStore, error) {
	return &redisStore{client: b.client, hash: b.namespace + ":" + name}, nil
}

// Close implements store.Backend.
func (b *Backend) Close() error {
	if !b.owned {
		return nil
	}
	return b.client.Close()
}

type redisStore struct {
	client goredis.UniversalClient
	hash   string
}

func (s *redisStore) Save(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding %s/%s: %w", s.hash, key, err)
	}
	return s.client.HSet(ctx, s.hash, key, raw).Err()
}

func (s *redisStore) Load(ctx context.Context, key string) (any, bool, error) {
	raw, err := s.client.HGet(ctx, s.hash, key).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	v, err := decode(raw)
	if err != nil {
		return nil, false, fmt.Errorf("decoding %s/%s: %w", s.hash, key, err)
	}
	return v, true, nil
}

func (s *redisStore) LoadAll(ctx context.Context) (map[string]any, error) {
	fields, err := s.client.HGetAll(ctx, s.hash).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(fields))
	for k, raw := range fields {
		v, err := decode(raw)
		if err != nil {
			return nil, fmt.Errorf("decoding %s/%s: %w", s.hash, k, err)
		}
		out[k] = v
	}
	return out, nil
}

func (s *redisStore) Delete(ctx context.Context, key string) error {
	return s.client.HDel(ctx, s.hash, key).Err()
}

func (s *redisStore) Count(ctx context.Context) (int, error) {
	n, err := s.client.HLen(ctx, s.hash).Result()
	return int(n), err
}

func (s *redisStore) Clear(ctx context.Context) error {
	return s.client.Del(ctx, s.hash).Err()
}

func decode(raw string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, err
	}
	return v, nil
}
