// Package idmap maintains the durable bidirectional mapping between
// locally generated entity identifiers and server-assigned identifiers.
package idmap

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/openlift/syncengine/entity"
	syncErrors "github.com/openlift/syncengine/errors"
	"github.com/openlift/syncengine/storage"
)

// Mapping pairs a local identifier with its server-assigned counterpart.
type Mapping struct {
	LocalID    string      `json:"localId"`
	RemoteID   string      `json:"remoteId"`
	EntityType entity.Kind `json:"entityType"`
	CreatedAt  time.Time   `json:"createdAt"`
}

// Store is the in-memory mapping table backed by a single key in a
// KVStore. Every mutation rewrites the full persisted array before
// returning. Lookups are O(1) in both directions.
type Store struct {
	mu     sync.RWMutex
	kv     storage.KVStore
	key    string
	logger *slog.Logger

	byLocal  map[string]Mapping
	byRemote map[string]string // remote id -> local id
}

// Load constructs a Store from the persisted state under key. A missing
// key or unparseable data yields an empty store, never an error.
func Load(ctx context.Context, kv storage.KVStore, key string, logger *slog.Logger) *Store {
	s := &Store{
		kv:       kv,
		key:      key,
		logger:   logger,
		byLocal:  make(map[string]Mapping),
		byRemote: make(map[string]string),
	}

	raw, err := kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("failed to read persisted id mappings, starting empty", "error", err)
		}
		return s
	}

	var mappings []Mapping
	if err := json.Unmarshal(raw, &mappings); err != nil {
		s.logger.Warn("persisted id mappings are malformed, starting empty", "error", err)
		return s
	}

	for _, m := range mappings {
		s.byLocal[m.LocalID] = m
		s.byRemote[m.RemoteID] = m.LocalID
	}
	return s
}

// SetMapping upserts the mapping for localID and persists before
// returning. If localID was already mapped, the old reverse entry is
// dropped and replaced.
func (s *Store) SetMapping(ctx context.Context, localID, remoteID string, kind entity.Kind) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.byLocal[localID]; ok {
		delete(s.byRemote, old.RemoteID)
	}
	s.byLocal[localID] = Mapping{
		LocalID:    localID,
		RemoteID:   remoteID,
		EntityType: kind,
		CreatedAt:  time.Now().UTC(),
	}
	s.byRemote[remoteID] = localID

	return s.persistLocked(ctx)
}

// GetRemoteID returns the server id mapped to localID.
func (s *Store) GetRemoteID(localID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.byLocal[localID]
	if !ok {
		return "", false
	}
	return m.RemoteID, true
}

// GetLocalID returns the local id mapped to remoteID.
func (s *Store) GetLocalID(remoteID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	localID, ok := s.byRemote[remoteID]
	return localID, ok
}

// HasLocalMapping reports whether localID is mapped.
func (s *Store) HasLocalMapping(localID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byLocal[localID]
	return ok
}

// HasRemoteMapping reports whether remoteID is mapped.
func (s *Store) HasRemoteMapping(remoteID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byRemote[remoteID]
	return ok
}

// RemoveMapping removes both directions for localID and persists.
// Removing an absent mapping is a no-op.
func (s *Store) RemoveMapping(ctx context.Context, localID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.byLocal[localID]
	if !ok {
		return nil
	}
	delete(s.byLocal, localID)
	delete(s.byRemote, m.RemoteID)

	return s.persistLocked(ctx)
}

// Clear removes every mapping and deletes the persisted key.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byLocal = make(map[string]Mapping)
	s.byRemote = make(map[string]string)

	if err := s.kv.Delete(ctx, s.key); err != nil {
		return syncErrors.NewStorageError(syncErrors.OpPersist, err)
	}
	return nil
}

// Len returns the number of mappings.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byLocal)
}

func (s *Store) persistLocked(ctx context.Context) error {
	mappings := make([]Mapping, 0, len(s.byLocal))
	for _, m := range s.byLocal {
		mappings = append(mappings, m)
	}
	// Stable on-disk order keeps persisted state diffable.
	sort.Slice(mappings, func(i, j int) bool { return mappings[i].LocalID < mappings[j].LocalID })

	raw, err := json.Marshal(mappings)
	if err != nil {
		return syncErrors.NewStorageError(syncErrors.OpPersist, err)
	}
	if err := s.kv.Set(ctx, s.key, raw); err != nil {
		return syncErrors.NewStorageError(syncErrors.OpPersist, err)
	}
	return nil
}
