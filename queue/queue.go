// Package queue implements the durable, deduplicated mutation queue that
// holds local changes awaiting transmission to the remote backend.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openlift/syncengine/entity"
	syncErrors "github.com/openlift/syncengine/errors"
	"github.com/openlift/syncengine/storage"
)

// DefaultMaxRetries is the retry threshold after which an item is
// quarantined: it stays in the queue (and in the pending count) but is
// excluded from push attempts until it is cleared.
const DefaultMaxRetries = 5

// Item is one pending local mutation.
type Item struct {
	ID         string         `json:"id"`
	EntityType entity.Kind    `json:"entityType"`
	EntityID   string         `json:"entityId"`
	Operation  entity.Op      `json:"operation"`
	Payload    map[string]any `json:"payload,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	RetryCount int            `json:"retryCount"`
	LastError  string         `json:"lastError,omitempty"`
}

type dedupKey struct {
	kind     entity.Kind
	entityID string
	op       entity.Op
}

// Queue is the in-memory mutation list backed by a single key in a
// KVStore. Every mutation rewrites the full persisted array before
// returning, so the queue survives process restarts mid-sync.
type Queue struct {
	mu         sync.Mutex
	kv         storage.KVStore
	key        string
	maxRetries int
	logger     *slog.Logger

	items []*Item
	index map[dedupKey]*Item
}

// Load constructs a Queue from the persisted state under key. A missing
// key or unparseable data yields an empty queue, never an error.
// maxRetries <= 0 selects DefaultMaxRetries.
func Load(ctx context.Context, kv storage.KVStore, key string, maxRetries int, logger *slog.Logger) *Queue {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	q := &Queue{
		kv:         kv,
		key:        key,
		maxRetries: maxRetries,
		logger:     logger,
		index:      make(map[dedupKey]*Item),
	}

	raw, err := kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			q.logger.Warn("failed to read persisted queue, starting empty", "error", err)
		}
		return q
	}

	var items []*Item
	if err := json.Unmarshal(raw, &items); err != nil {
		q.logger.Warn("persisted queue is malformed, starting empty", "error", err)
		return q
	}

	for _, it := range items {
		q.items = append(q.items, it)
		q.index[dedupKey{it.EntityType, it.EntityID, it.Operation}] = it
	}
	return q
}

// Enqueue records a pending mutation and persists before returning. The
// dedup key is (kind, entityID, op): enqueueing an existing triple
// replaces the payload and timestamp in place, keeping the original queue
// position, retry count, and item id.
func (q *Queue) Enqueue(ctx context.Context, kind entity.Kind, entityID string, op entity.Op, payload map[string]any) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	key := dedupKey{kind, entityID, op}
	if existing, ok := q.index[key]; ok {
		existing.Payload = payload
		existing.Timestamp = time.Now().UTC()
		return q.persistLocked(ctx)
	}

	item := &Item{
		ID:         uuid.NewString(),
		EntityType: kind,
		EntityID:   entityID,
		Operation:  op,
		Payload:    payload,
		Timestamp:  time.Now().UTC(),
	}
	q.items = append(q.items, item)
	q.index[key] = item

	return q.persistLocked(ctx)
}

// PendingCount returns the number of queued items, including quarantined
// ones that have exhausted their retries.
func (q *Queue) PendingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// HasPending reports whether any item is queued.
func (q *Queue) HasPending() bool {
	return q.PendingCount() > 0
}

// FailedCount returns the number of quarantined items (retry count at or
// past the threshold).
func (q *Queue) FailedCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, it := range q.items {
		if it.RetryCount >= q.maxRetries {
			n++
		}
	}
	return n
}

// EligibleItems returns a snapshot of the items that should be attempted
// by a push batch: retry count below the threshold, ordered so that a
// parent kind always precedes its children, creates precede updates
// precede deletes within a kind, and enqueue order breaks remaining ties.
func (q *Queue) EligibleItems() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()

	eligible := make([]Item, 0, len(q.items))
	for _, it := range q.items {
		if it.RetryCount >= q.maxRetries {
			continue
		}
		eligible = append(eligible, copyItem(it))
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		a, b := eligible[i], eligible[j]
		if a.EntityType.Order() != b.EntityType.Order() {
			return a.EntityType.Order() < b.EntityType.Order()
		}
		return a.Operation.Order() < b.Operation.Order()
	})
	return eligible
}

// RecordSuccess removes the item and persists. Unknown ids are ignored.
func (q *Queue) RecordSuccess(ctx context.Context, itemID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, it := range q.items {
		if it.ID != itemID {
			continue
		}
		q.items = append(q.items[:i], q.items[i+1:]...)
		delete(q.index, dedupKey{it.EntityType, it.EntityID, it.Operation})
		return q.persistLocked(ctx)
	}
	return nil
}

// RecordFailure increments the item's retry count, records the error
// message, and persists. The item stays queued regardless of the new
// count; only RecordSuccess or Clear remove items.
func (q *Queue) RecordFailure(ctx context.Context, itemID, errorMessage string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, it := range q.items {
		if it.ID != itemID {
			continue
		}
		it.RetryCount++
		it.LastError = errorMessage
		if it.RetryCount >= q.maxRetries {
			q.logger.Warn("queue item exhausted retries and is quarantined",
				"entity_type", it.EntityType, "entity_id", it.EntityID,
				"operation", it.Operation, "retry_count", it.RetryCount,
				"last_error", errorMessage)
		}
		return q.persistLocked(ctx)
	}
	return nil
}

// Clear empties the queue and deletes the persisted key.
func (q *Queue) Clear(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = nil
	q.index = make(map[dedupKey]*Item)

	if err := q.kv.Delete(ctx, q.key); err != nil {
		return syncErrors.NewStorageError(syncErrors.OpPersist, err)
	}
	return nil
}

// Items returns a snapshot of every queued item in enqueue order,
// including quarantined ones.
func (q *Queue) Items() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := make([]Item, len(q.items))
	for i, it := range q.items {
		items[i] = copyItem(it)
	}
	return items
}

func (q *Queue) persistLocked(ctx context.Context) error {
	raw, err := json.Marshal(q.items)
	if err != nil {
		return syncErrors.NewStorageError(syncErrors.OpPersist, err)
	}
	if err := q.kv.Set(ctx, q.key, raw); err != nil {
		return syncErrors.NewStorageError(syncErrors.OpPersist, err)
	}
	return nil
}

func copyItem(it *Item) Item {
	cp := *it
	if it.Payload != nil {
		cp.Payload = make(map[string]any, len(it.Payload))
		for k, v := range it.Payload {
			cp.Payload[k] = v
		}
	}
	return cp
}
