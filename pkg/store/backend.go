package store

import "context"

// Backend creates the storage behind durable stores.
type Backend interface {
	// Name identifies the backend in logs, e.g. "redis".
	Name() string
	// BuildNewStore returns storage for the named store. It is called once
	// per name and Engine.
	BuildNewStore(ctx context.Context, name string) (BackendStore, error)
	Close() error
}

// BackendStore is the storage of one named store. Keys arrive already
// prefixed. Implementations must be safe for concurrent use.
type BackendStore interface {
	Save(ctx context.Context, key string, value any) error
	// Load reports false when the key is absent.
	Load(ctx context.Context, key string) (any, bool, error)
	LoadAll(ctx context.Context) (map[string]any, error)
	Delete(ctx context.Context, key string) error
	Count(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
}
