// Package sqlite provides a durable store backend on an embedded SQLite
// database. All stores share one table keyed by (store, key); values are
// JSON-encoded.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/getmockd/stubd/pkg/logging"
	"github.com/getmockd/stubd/pkg/store"
)

//go:embed schema.sql
var schemaSQL string

// Backend implements store.Backend on SQLite.
type Backend struct {
	db  *sql.DB
	log *slog.Logger
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string, logger *slog.Logger) (*Backend, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Backend{db: db, log: logging.For(logger, "store.sqlite")}, nil
}

// Name implements store.Backend.
func (b *Backend) Name() string { return "sqlite" }

// BuildNewStore implements store.Backend.
func (b *Backend) BuildNewStore(_ context.Context, name string) (store.BackendStore, error) {
	return &sqliteStore{db: b.db, name: name}, nil
}

// Close implements store.Backend.
func (b *Backend) Close() error { return b.db.Close() }

type sqliteStore struct {
	db   *sql.DB
	name string
}

func (s *sqliteStore) Save(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding %s/%s: %w", s.name, key, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO store_items (store, key, value, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(store, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		s.name, key, string(raw), time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

func (s *sqliteStore) Load(ctx context.Context, key string) (any, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM store_items WHERE store = ? AND key = ?`, s.name, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, false, fmt.Errorf("decoding %s/%s: %w", s.name, key, err)
	}
	return v, true, nil
}

func (s *sqliteStore) LoadAll(ctx context.Context) (map[string]any, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value FROM store_items WHERE store = ?`, s.name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]any)
	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, err
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("decoding %s/%s: %w", s.name, key, err)
		}
		out[key] = v
	}
	return out, rows.Err()
}

func (s *sqliteStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM store_items WHERE store = ? AND key = ?`, s.name, key)
	return err
}

func (s *sqliteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM store_items WHERE store = ?`, s.name).Scan(&n)
	return n, err
}

func (s *sqliteStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM store_items WHERE store = ?`, s.name)
	return err
}
