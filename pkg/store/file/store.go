// Package file provides a durable store backend that keeps every store in
// a single JSON snapshot on disk.
//
// Writes mark the snapshot dirty and a debounced background save writes it
// atomically (temp file, then rename). Close performs a final save.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/getmockd/stubd/pkg/logging"
	"github.com/getmockd/stubd/pkg/store"
)

// Current data format version for migration support
const dataVersion = 1

// DataFileName is the snapshot file inside the data directory.
const DataFileName = "stores.json"

// DefaultSaveDebounce is how long writes are batched before saving.
const DefaultSaveDebounce = 500 * time.Millisecond

// Config configures a Backend.
type Config struct {
	// Dir holds the snapshot. It is created if missing.
	Dir string
	// SaveDebounce batches writes; zero means DefaultSaveDebounce.
	SaveDebounce time.Duration
	Logger       *slog.Logger
}

// Backend implements store.Backend on a JSON snapshot.
type Backend struct {
	cfg          Config
	mu           sync.RWMutex
	data         *snapshot
	dirty        atomic.Bool
	saving       atomic.Bool
	saveDebounce time.Duration
	saveCh       chan struct{}
	closeCh      chan struct{}
	closeOnce    sync.Once
	closedCh     chan struct{} // signals when saveLoop has exited
	log          *slog.Logger
}

// snapshot holds all persisted data.
type snapshot struct {
	Version int                       `json:"version"`
	Stores  map[string]map[string]any `json:"stores"`
}

// New opens the snapshot in cfg.Dir and starts the background saver.
func New(cfg Config) (*Backend, error) {
	if cfg.Dir == "" {
		return nil, errors.New("file backend: directory is required")
	}
	debounce := cfg.SaveDebounce
	if debounce <= 0 {
		debounce = DefaultSaveDebounce
	}
	b := &Backend{
		cfg:          cfg,
		data:         &snapshot{Version: dataVersion, Stores: make(map[string]map[string]any)},
		saveDebounce: debounce,
		saveCh:       make(chan struct{}, 1),
		closeCh:      make(chan struct{}),
		closedCh:     make(chan struct{}),
		log:          logging.For(cfg.Logger, "store.file"),
	}
	if err := b.load(); err != nil {
		return nil, err
	}
	go b.saveLoop()
	return b, nil
}

func (b *Backend) path() string {
	return filepath.Join(b.cfg.Dir, DataFileName)
}

func (b *Backend) load() error {
	if err := os.MkdirAll(b.cfg.Dir, 0o700); err != nil {
		return err
	}
	raw, err := os.ReadFile(b.path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	var stored snapshot
	if err := json.Unmarshal(raw, &stored); err != nil {
		return fmt.Errorf("parsing %s: %w", b.path(), err)
	}
	if stored.Stores == nil {
		stored.Stores = make(map[string]map[string]any)
	}
	b.data = &stored
	return nil
}

// saveLoop handles debounced saving to prevent excessive disk writes.
func (b *Backend) saveLoop() {
	defer close(b.closedCh)
	var timer *time.Timer
	for {
		select {
		case <-b.saveCh:
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(b.saveDebounce, func() {
				if b.dirty.Load() && !b.saving.Load() {
					if err := b.doSave(); err != nil {
						b.log.Error("failed to save store snapshot", "error", err)
					}
				}
			})
		case <-b.closeCh:
			if timer != nil {
				timer.Stop()
			}
			if b.dirty.Load() {
				if err := b.doSave(); err != nil {
					b.log.Error("failed to save store snapshot on close", "error", err)
				}
			}
			return
		}
	}
}

// doSave writes the snapshot atomically.
func (b *Backend) doSave() error {
	if !b.saving.CompareAndSwap(false, true) {
		return nil
	}
	defer b.saving.Store(false)

	b.mu.RLock()
	b.data.Version = dataVersion
	raw, err := json.MarshalIndent(b.data, "", "  ")
	b.dirty.Store(false)
	b.mu.RUnlock()
	if err != nil {
		b.dirty.Store(true)
		return err
	}

	tmp := b.path() + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		b.dirty.Store(true)
		return err
	}
	if err := os.Rename(tmp, b.path()); err != nil {
		_ = os.Remove(tmp)
		b.dirty.Store(true)
		return err
	}
	return nil
}

func (b *Backend) markDirty() {
	b.dirty.Store(true)
	select {
	case b.saveCh <- struct{}{}:
	default:
	}
}

// Flush writes the snapshot now.
func (b *Backend) Flush() error {
	b.dirty.Store(true)
	return b.doSave()
}

// Name implements store.Backend.
func (b *Backend) Name() string { return "file" }

// BuildNewStore implements store.Backend.
func (b *Backend) BuildNewStore(_ context.Context, name string) (store.BackendStore, error) {
	return &fileStore{b: b, name: name}, nil
}

// Close saves pending changes and stops the saver. Safe to call multiple
// times.
func (b *Backend) Close() error {
	b.closeOnce.Do(func() { close(b.closeCh) })
	<-b.closedCh
	return nil
}

// fileStore is one named store inside the snapshot.
type fileStore struct {
	b    *Backend
	name string
}

func (s *fileStore) Save(_ context.Context, key string, value any) error {
	s.b.mu.Lock()
	items, ok := s.b.data.Stores[s.name]
	if !ok {
		items = make(map[string]any)
		s.b.data.Stores[s.name] = items
	}
	items[key] = value
	s.b.mu.Unlock()
	s.b.markDirty()
	return nil
}

func (s *fileStore) Load(_ context.Context, key string) (any, bool, error) {
	s.b.mu.RLock()
	defer s.b.mu.RUnlock()
	v, ok := s.b.data.Stores[s.name][key]
	return v, ok, nil
}

func (s *fileStore) LoadAll(context.Context) (map[string]any, error) {
	s.b.mu.RLock()
	defer s.b.mu.RUnlock()
	out := maps.Clone(s.b.data.Stores[s.name])
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

func (s *fileStore) Delete(_ context.Context, key string) error {
	s.b.mu.Lock()
	items, ok := s.b.data.Stores[s.name]
	if ok {
		delete(items, key)
	}
	s.b.mu.Unlock()
	if ok {
		s.b.markDirty()
	}
	return nil
}

func (s *fileStore) Count(context.Context) (int, error) {
	s.b.mu.RLock()
	defer s.b.mu.RUnlock()
	return len(s.b.data.Stores[s.name]), nil
}

func (s *fileStore) Clear(context.Context) error {
	s.b.mu.Lock()
	delete(s.b.data.Stores, s.name)
	s.b.mu.Unlock()
	s.b.markDirty()
	return nil
}
