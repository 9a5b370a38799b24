package store

import (
	"context"
	"maps"
	"sync"
)

// MemoryBackend keeps durable stores in process memory. Stores survive for
// the life of the backend, so a second Engine over the same backend sees
// the data of the first.
type MemoryBackend struct {
	mu     sync.Mutex
	stores map[string]*MemoryStore
}

// NewMemoryBackend creates an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{stores: make(map[string]*MemoryStore)}
}

// Name implements Backend.
func (b *MemoryBackend) Name() string { return "memory" }

// BuildNewStore implements Backend.
func (b *MemoryBackend) BuildNewStore(_ context.Context, name string) (BackendStore, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.stores[name]
	if !ok {
		s = NewMemoryStore()
		b.stores[name] = s
	}
	return s, nil
}

// Close implements Backend.
func (b *MemoryBackend) Close() error { return nil }

// MemoryStore is a thread-safe in-memory BackendStore.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]any
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]any)}
}

// Save stores or replaces a value.
func (s *MemoryStore) Save(_ context.Context, key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = value
	return nil
}

// Load retrieves a value by key.
func (s *MemoryStore) Load(_ context.Context, key string) (any, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[key]
	return v, ok, nil
}

// LoadAll returns a copy of every item.
func (s *MemoryStore) LoadAll(context.Context) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.items), nil
}

// Delete removes a key. Deleting a missing key is not an error.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	return nil
}

// Count returns the number of items.
func (s *MemoryStore) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items), nil
}

// Clear removes every item.
func (s *MemoryStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.items)
	return nil
}
