// Package sqlite provides a SQLite-backed implementation of the storage
// interfaces used by the sync engine. A single database file holds both
// the key/value blobs (queue, identifier mappings) and the materialized
// entity records.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/openlift/syncengine/entity"
	"github.com/openlift/syncengine/storage"

	// Go SQLite driver
	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS kv (
    key   TEXT PRIMARY KEY,
    value BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS entities (
    kind       TEXT NOT NULL,
    local_id   TEXT NOT NULL,
    fields     TEXT NOT NULL,
    updated_at INTEGER NOT NULL,
    seq        INTEGER PRIMARY KEY AUTOINCREMENT,
    UNIQUE (kind, local_id)
);

CREATE INDEX IF NOT EXISTS idx_entities_kind ON entities(kind);
`

// Store owns the database handle and hands out the KV and entity views.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the database at path and prepares the
// schema. WAL mode keeps concurrent readers cheap.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize sqlite schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// KV returns the storage.KVStore view of the database.
func (s *Store) KV() *KVStore {
	return &KVStore{db: s.db}
}

// Entities returns the storage.LocalStore view of the database.
func (s *Store) Entities() *EntityStore {
	return &EntityStore{db: s.db}
}

// KVStore implements storage.KVStore on the kv table.
type KVStore struct {
	db *sql.DB
}

var _ storage.KVStore = (*KVStore)(nil)

// Get implements storage.KVStore.
func (s *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("kv get %q: %w", key, err)
	}
	return value, nil
}

// Set implements storage.KVStore. The write is durable when Set returns.
func (s *KVStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("kv set %q: %w", key, err)
	}
	return nil
}

// Delete implements storage.KVStore.
func (s *KVStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("kv delete %q: %w", key, err)
	}
	return nil
}

// EntityStore implements storage.LocalStore on the entities table.
type EntityStore struct {
	db *sql.DB
}

var _ storage.LocalStore = (*EntityStore)(nil)

// Put implements storage.LocalStore.
func (s *EntityStore) Put(ctx context.Context, rec storage.Record) error {
	fields, err := json.Marshal(rec.Fields)
	if err != nil {
		return fmt.Errorf("encode %s %s fields: %w", rec.Kind, rec.LocalID, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO entities (kind, local_id, fields, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(kind, local_id) DO UPDATE SET fields = excluded.fields, updated_at = excluded.updated_at`,
		string(rec.Kind), rec.LocalID, string(fields), rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("put %s %s: %w", rec.Kind, rec.LocalID, err)
	}
	return nil
}

// Get implements storage.LocalStore.
func (s *EntityStore) Get(ctx context.Context, kind entity.Kind, localID string) (storage.Record, error) {
	var (
		rec       = storage.Record{Kind: kind, LocalID: localID}
		rawFields string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT fields, updated_at FROM entities WHERE kind = ? AND local_id = ?`,
		string(kind), localID).Scan(&rawFields, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Record{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.Record{}, fmt.Errorf("get %s %s: %w", kind, localID, err)
	}
	if err := json.Unmarshal([]byte(rawFields), &rec.Fields); err != nil {
		return storage.Record{}, fmt.Errorf("decode %s %s fields: %w", kind, localID, err)
	}
	return rec, nil
}

// List implements storage.LocalStore, returning records in insertion order.
func (s *EntityStore) List(ctx context.Context, kind entity.Kind) ([]storage.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT local_id, fields, updated_at FROM entities WHERE kind = ? ORDER BY seq`,
		string(kind))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	defer rows.Close()

	var records []storage.Record
	for rows.Next() {
		rec := storage.Record{Kind: kind}
		var rawFields string
		if err := rows.Scan(&rec.LocalID, &rawFields, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", kind, err)
		}
		if err := json.Unmarshal([]byte(rawFields), &rec.Fields); err != nil {
			return nil, fmt.Errorf("decode %s %s fields: %w", kind, rec.LocalID, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Delete implements storage.LocalStore.
func (s *EntityStore) Delete(ctx context.Context, kind entity.Kind, localID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM entities WHERE kind = ? AND local_id = ?`, string(kind), localID)
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", kind, localID, err)
	}
	return nil
}
