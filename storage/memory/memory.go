// Package memory provides in-memory implementations of the storage
// interfaces. They are used by tests and by ephemeral deployments where
// durability across restarts is not required.
package memory

import (
	"context"
	"sync"

	"github.com/openlift/syncengine/entity"
	"github.com/openlift/syncengine/storage"
)

// KVStore is an in-memory storage.KVStore.
type KVStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewKVStore creates an empty in-memory key-value store.
func NewKVStore() *KVStore {
	return &KVStore{data: make(map[string][]byte)}
}

func (s *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.data[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	return cp, nil
}

func (s *KVStore) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	s.data[key] = cp
	return nil
}

func (s *KVStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

type recordKey struct {
	kind    entity.Kind
	localID string
}

// LocalStore is an in-memory storage.LocalStore preserving insertion order
// per kind.
type LocalStore struct {
	mu      sync.RWMutex
	records map[recordKey]storage.Record
	order   map[entity.Kind][]string
}

// NewLocalStore creates an empty in-memory entity store.
func NewLocalStore() *LocalStore {
	return &LocalStore{
		records: make(map[recordKey]storage.Record),
		order:   make(map[entity.Kind][]string),
	}
}

func (s *LocalStore) Put(ctx context.Context, rec storage.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := recordKey{rec.Kind, rec.LocalID}
	if _, exists := s.records[key]; !exists {
		s.order[rec.Kind] = append(s.order[rec.Kind], rec.LocalID)
	}
	s.records[key] = cloneRecord(rec)
	return nil
}

func (s *LocalStore) Get(ctx context.Context, kind entity.Kind, localID string) (storage.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[recordKey{kind, localID}]
	if !ok {
		return storage.Record{}, storage.ErrNotFound
	}
	return cloneRecord(rec), nil
}

func (s *LocalStore) List(ctx context.Context, kind entity.Kind) ([]storage.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.order[kind]
	records := make([]storage.Record, 0, len(ids))
	for _, id := range ids {
		if rec, ok := s.records[recordKey{kind, id}]; ok {
			records = append(records, cloneRecord(rec))
		}
	}
	return records, nil
}

func (s *LocalStore) Delete(ctx context.Context, kind entity.Kind, localID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := recordKey{kind, localID}
	if _, ok := s.records[key]; !ok {
		return nil
	}
	delete(s.records, key)
	ids := s.order[kind]
	for i, id := range ids {
		if id == localID {
			s.order[kind] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

func cloneRecord(rec storage.Record) storage.Record {
	cp := rec
	if rec.Fields != nil {
		cp.Fields = make(map[string]any, len(rec.Fields))
		for k, v := range rec.Fields {
			cp.Fields[k] = v
		}
	}
	return cp
}
