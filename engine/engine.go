// Package engine implements the offline-first synchronization engine: a
// durable mutation queue drained to a remote backend in dependency order,
// a pull pipeline reconciling remote snapshots into the local store, and
// an orchestrator enforcing at-most-one sync in flight.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/openlift/syncengine/entity"
	syncErrors "github.com/openlift/syncengine/errors"
	"github.com/openlift/syncengine/idmap"
	"github.com/openlift/syncengine/queue"
	"github.com/openlift/syncengine/storage"
)

// Error messages surfaced through Result.Errors for misuse of the public
// API. Callers match on these exact strings.
const (
	ErrMsgNotInitialized = "Not initialized"
	ErrMsgSyncInProgress = "Sync already in progress"
)

// Engine coordinates push and pull into a single atomic sync operation.
// Construct one per authenticated session with New, call Initialize once a
// remote client is available, and share the instance; all methods are safe
// for concurrent use.
type Engine struct {
	kv      storage.KVStore
	local   storage.LocalStore
	cfg     Config
	logger  *slog.Logger
	metrics MetricsCollector

	mu          sync.Mutex
	initialized bool
	syncing     bool
	remote      RemoteClient
	userID      string
	queue       *queue.Queue
	mappings    *idmap.Store
	state       State

	observers observerRegistry
}

// New constructs an Engine over the given stores. The engine is inert
// until Initialize is called.
func New(kv storage.KVStore, local storage.LocalStore, cfg Config) *Engine {
	cfg = cfg.withDefaults()
	return &Engine{
		kv:      kv,
		local:   local,
		cfg:     cfg,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		state:   State{Status: StatusIdle},
	}
}

// Initialize loads the persisted queue and identifier mappings and
// establishes the remote client used by subsequent syncs. Corrupted
// persisted state degrades to empty state rather than failing. Calling
// Initialize again replaces the session (remote client and user) and
// reloads persisted state.
func (e *Engine) Initialize(ctx context.Context, remote RemoteClient, userID string) error {
	if remote == nil {
		return syncErrors.NewValidationError(syncErrors.OpSync, fmt.Errorf("remote client is required"))
	}

	q := queue.Load(ctx, e.kv, e.cfg.QueueKey, e.cfg.MaxRetries, e.logger.With("component", "queue"))
	m := idmap.Load(ctx, e.kv, e.cfg.MappingsKey, e.logger.With("component", "idmap"))

	e.mu.Lock()
	e.remote = remote
	e.userID = userID
	e.queue = q
	e.mappings = m
	e.initialized = true
	e.state = State{
		Status:            StatusIdle,
		PendingOperations: q.PendingCount(),
		FailedOperations:  q.FailedCount(),
	}
	state := e.state
	e.mu.Unlock()

	e.logger.Info("sync engine initialized",
		"user_id", userID,
		"pending_operations", state.PendingOperations,
		"failed_operations", state.FailedOperations,
		"mappings", m.Len())

	e.observers.notify(state)
	return nil
}

// QueueCreate records a pending create for the entity described by the
// payload. The write is durable before QueueCreate returns.
func (e *Engine) QueueCreate(ctx context.Context, entityID string, p entity.Payload) error {
	fields, err := entity.Fields(p)
	if err != nil {
		return syncErrors.NewValidationError(syncErrors.OpEnqueue, err)
	}
	return e.queueMutation(ctx, p.PayloadKind(), entityID, entity.OpCreate, fields)
}

// QueueUpdate records a pending update for the entity described by the
// payload.
func (e *Engine) QueueUpdate(ctx context.Context, entityID string, p entity.Payload) error {
	fields, err := entity.Fields(p)
	if err != nil {
		return syncErrors.NewValidationError(syncErrors.OpEnqueue, err)
	}
	return e.queueMutation(ctx, p.PayloadKind(), entityID, entity.OpUpdate, fields)
}

// QueueDelete records a pending delete. No payload is needed; the remote
// side is addressed purely by the mapped identifier.
func (e *Engine) QueueDelete(ctx context.Context, kind entity.Kind, entityID string) error {
	return e.queueMutation(ctx, kind, entityID, entity.OpDelete, nil)
}

func (e *Engine) queueMutation(ctx context.Context, kind entity.Kind, entityID string, op entity.Op, fields map[string]any) error {
	if !kind.Valid() {
		return syncErrors.NewValidationError(syncErrors.OpEnqueue, fmt.Errorf("unknown entity kind %q", kind))
	}

	e.mu.Lock()
	if !e.initialized {
		e.mu.Unlock()
		return errors.New(ErrMsgNotInitialized)
	}
	q := e.queue
	e.mu.Unlock()

	err := q.Enqueue(ctx, kind, entityID, op, fields)

	e.mu.Lock()
	if err != nil {
		e.state.StorageError = err.Error()
	} else {
		e.state.StorageError = ""
	}
	e.state.PendingOperations = q.PendingCount()
	e.state.FailedOperations = q.FailedCount()
	state := e.state
	e.mu.Unlock()

	e.observers.notify(state)
	return err
}

// Sync pushes pending local mutations and then pulls the remote snapshot.
// It never returns an error; all expected failure modes are folded into
// the result. A second Sync while one is running is rejected outright.
func (e *Engine) Sync(ctx context.Context) *Result {
	return e.runSync(ctx, false)
}

// FullSync is Sync preceded by a scan of the entire local store: every
// entity with no remote mapping is enqueued as a create. Used once per
// fresh login to seed the backend from pre-existing local data.
func (e *Engine) FullSync(ctx context.Context) *Result {
	return e.runSync(ctx, true)
}

func (e *Engine) runSync(ctx context.Context, seed bool) (result *Result) {
	e.mu.Lock()
	if !e.initialized {
		e.mu.Unlock()
		return &Result{Errors: []string{ErrMsgNotInitialized}}
	}
	if e.syncing {
		e.mu.Unlock()
		e.metrics.RecordSyncErrors("sync", "already_in_progress")
		return &Result{Errors: []string{ErrMsgSyncInProgress}}
	}
	e.syncing = true
	e.state.Status = StatusSyncing
	e.state.Error = ""
	remote, userID, q, m := e.remote, e.userID, e.queue, e.mappings
	state := e.state
	e.mu.Unlock()

	e.observers.notify(state)
	e.logger.Info("sync started", "full", seed, "pending_operations", q.PendingCount())

	start := time.Now()
	result = &Result{}

	// The deferred block is the only exit path: it releases the
	// single-flight lock, stamps lastSyncAt, and publishes the final
	// state even when a phase panics.
	defer func() {
		if r := recover(); r != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("sync panic: %v", r))
		}
		result.Success = len(result.Errors) == 0
		e.finishSync(q, result, start)
	}()

	if seed {
		result.Errors = append(result.Errors, e.seedLocalEntities(ctx, q, m)...)
	}

	pushed, pushErrs := e.push(ctx, remote, q, m)
	result.Pushed = pushed
	result.Errors = append(result.Errors, pushErrs...)

	pulled, pullErrs := e.pull(ctx, remote, userID, m)
	result.Pulled = pulled
	result.Errors = append(result.Errors, pullErrs...)

	return result
}

func (e *Engine) finishSync(q *queue.Queue, result *Result, start time.Time) {
	now := time.Now().UTC()

	e.mu.Lock()
	e.syncing = false
	e.state.LastSyncAt = &now
	e.state.PendingOperations = q.PendingCount()
	e.state.FailedOperations = q.FailedCount()
	if result.Success {
		e.state.Status = StatusIdle
		e.state.Error = ""
	} else {
		e.state.Status = StatusError
		e.state.Error = strings.Join(result.Errors, "; ")
	}
	state := e.state
	e.mu.Unlock()

	e.observers.notify(state)

	e.metrics.RecordSyncDuration("sync", time.Since(start))
	e.metrics.RecordSyncItems(result.Pushed, result.Pulled)
	if result.Success {
		e.logger.Info("sync completed",
			"duration", time.Since(start),
			"pushed", result.Pushed,
			"pulled", result.Pulled)
	} else {
		e.metrics.RecordSyncErrors("sync", "sync_failure")
		e.logger.Error("sync completed with errors",
			"duration", time.Since(start),
			"pushed", result.Pushed,
			"pulled", result.Pulled,
			"error_count", len(result.Errors),
			"errors", result.Errors)
	}
}

// seedLocalEntities enqueues a create for every local entity that has no
// remote mapping yet, walking kinds parent-first so the subsequent push
// can resolve references batch-internally.
func (e *Engine) seedLocalEntities(ctx context.Context, q *queue.Queue, m *idmap.Store) []string {
	var errs []string
	for _, kind := range entity.Hierarchy {
		records, err := e.local.List(ctx, kind)
		if err != nil {
			errs = append(errs, err.Error())
			continue
		}
		for _, rec := range records {
			if m.HasLocalMapping(rec.LocalID) {
				continue
			}
			if err := q.Enqueue(ctx, kind, rec.LocalID, entity.OpCreate, rec.Fields); err != nil {
				errs = append(errs, err.Error())
			}
		}
	}
	return errs
}

// Reset clears the queue, all identifier mappings, and their persisted
// keys, and returns the state to idle. An in-flight sync is not aborted;
// queries after Reset returns reflect empty state.
func (e *Engine) Reset(ctx context.Context) error {
	e.mu.Lock()
	q, m := e.queue, e.mappings
	e.mu.Unlock()

	var errs []error
	if q != nil {
		if err := q.Clear(ctx); err != nil {
			errs = append(errs, err)
		}
	} else if err := e.kv.Delete(ctx, e.cfg.QueueKey); err != nil {
		errs = append(errs, syncErrors.NewStorageError(syncErrors.OpReset, err))
	}
	if m != nil {
		if err := m.Clear(ctx); err != nil {
			errs = append(errs, err)
		}
	} else if err := e.kv.Delete(ctx, e.cfg.MappingsKey); err != nil {
		errs = append(errs, syncErrors.NewStorageError(syncErrors.OpReset, err))
	}

	e.mu.Lock()
	e.state = State{Status: StatusIdle}
	state := e.state
	e.mu.Unlock()

	e.logger.Info("sync engine reset")
	e.observers.notify(state)
	return errors.Join(errs...)
}

// Subscribe registers a listener. It receives the current state
// immediately, then every subsequent state change, synchronously and in
// subscription order. The returned function unsubscribes; once it
// returns, no further deliveries occur.
func (e *Engine) Subscribe(fn Listener) func() {
	unsubscribe := e.observers.subscribe(fn)
	fn(e.GetState())
	return unsubscribe
}

// GetState returns a snapshot of the current sync state.
func (e *Engine) GetState() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// GetPendingCount returns the number of queued operations, including
// quarantined ones.
func (e *Engine) GetPendingCount() int {
	e.mu.Lock()
	q := e.queue
	e.mu.Unlock()
	if q == nil {
		return 0
	}
	return q.PendingCount()
}

// HasPendingChanges reports whether any operation is queued.
func (e *Engine) HasPendingChanges() bool {
	return e.GetPendingCount() > 0
}
