package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openlift/syncengine/entity"
	"github.com/openlift/syncengine/idmap"
	"github.com/openlift/syncengine/logging"
	"github.com/openlift/syncengine/storage/memory"
)

// remoteCall records one invocation against the fake backend.
type remoteCall struct {
	op       string
	kind     entity.Kind
	remoteID string
	payload  map[string]any
}

func (c remoteCall) String() string {
	return c.op + ":" + string(c.kind)
}

// fakeRemote is an in-memory RemoteClient. failOn, when set, is consulted
// before every call; a non-nil return fails that call. blockList, when
// non-nil, makes List block until the channel is closed (used to hold a
// sync in flight).
type fakeRemote struct {
	mu        sync.Mutex
	calls     []remoteCall
	nextID    int
	failOn    func(call remoteCall) error
	lists     map[entity.Kind][]RemoteRecord
	listErr   map[entity.Kind]error
	blockList chan struct{}
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		lists:   make(map[entity.Kind][]RemoteRecord),
		listErr: make(map[entity.Kind]error),
	}
}

// Successful creates, updates, and deletes are reflected in the list
// snapshots, like a real backend.
func (f *fakeRemote) Create(ctx context.Context, kind entity.Kind, payload map[string]any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	call := remoteCall{op: "create", kind: kind, payload: payload}
	f.calls = append(f.calls, call)
	if f.failOn != nil {
		if err := f.failOn(call); err != nil {
			return "", err
		}
	}
	f.nextID++
	remoteID := fmt.Sprintf("r-%s-%d", kind, f.nextID)
	f.lists[kind] = append(f.lists[kind], RemoteRecord{
		ID:        remoteID,
		Fields:    payload,
		UpdatedAt: numericField(payload, "updatedAt"),
	})
	return remoteID, nil
}

func (f *fakeRemote) Update(ctx context.Context, kind entity.Kind, remoteID string, payload map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	call := remoteCall{op: "update", kind: kind, remoteID: remoteID, payload: payload}
	f.calls = append(f.calls, call)
	if f.failOn != nil {
		if err := f.failOn(call); err != nil {
			return err
		}
	}
	for i, rec := range f.lists[kind] {
		if rec.ID == remoteID {
			f.lists[kind][i].Fields = payload
			f.lists[kind][i].UpdatedAt = numericField(payload, "updatedAt")
		}
	}
	return nil
}

func (f *fakeRemote) Delete(ctx context.Context, kind entity.Kind, remoteID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	call := remoteCall{op: "delete", kind: kind, remoteID: remoteID}
	f.calls = append(f.calls, call)
	if f.failOn != nil {
		if err := f.failOn(call); err != nil {
			return err
		}
	}
	records := f.lists[kind]
	for i, rec := range records {
		if rec.ID == remoteID {
			f.lists[kind] = append(records[:i], records[i+1:]...)
			break
		}
	}
	return nil
}

func numericField(payload map[string]any, key string) int64 {
	switch v := payload[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}

func (f *fakeRemote) List(ctx context.Context, kind entity.Kind, userID string) ([]RemoteRecord, error) {
	if f.blockList != nil {
		<-f.blockList
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, remoteCall{op: "list", kind: kind})
	if err := f.listErr[kind]; err != nil {
		return nil, err
	}
	return f.lists[kind], nil
}

// callsOf returns the recorded calls matching op ("" matches all).
func (f *fakeRemote) callsOf(op string) []remoteCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []remoteCall
	for _, c := range f.calls {
		if op == "" || c.op == op {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeRemote) resetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

// setSnapshot replaces the records the fake returns for a kind's list.
func (f *fakeRemote) setSnapshot(kind entity.Kind, records ...RemoteRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists[kind] = records
}

type testFixture struct {
	engine *Engine
	remote *fakeRemote
	kv     *memory.KVStore
	local  *memory.LocalStore
}

func newTestEngine(t *testing.T) *testFixture {
	t.Helper()
	kv := memory.NewKVStore()
	local := memory.NewLocalStore()
	remote := newFakeRemote()
	eng := New(kv, local, Config{
		Logger: logging.NewLogger(logging.Config{Level: "error"}).Logger,
	})
	require.NoError(t, eng.Initialize(context.Background(), remote, "user-1"))
	return &testFixture{engine: eng, remote: remote, kv: kv, local: local}
}

// seedMappings writes an identifier mapping array directly into the
// key-value store, then reinitializes the engine so it is loaded.
func (fx *testFixture) seedMappings(t *testing.T, mappings ...idmap.Mapping) {
	t.Helper()
	for i := range mappings {
		if mappings[i].CreatedAt.IsZero() {
			mappings[i].CreatedAt = time.Now().UTC()
		}
	}
	raw, err := json.Marshal(mappings)
	require.NoError(t, err)
	require.NoError(t, fx.kv.Set(context.Background(), DefaultMappingsKey, raw))
	require.NoError(t, fx.engine.Initialize(context.Background(), fx.remote, "user-1"))
}

// loadMappings reads the persisted mapping state back through idmap.
func (fx *testFixture) loadMappings(t *testing.T) *idmap.Store {
	t.Helper()
	logger := logging.NewLogger(logging.Config{Level: "error"}).Logger
	return idmap.Load(context.Background(), fx.kv, DefaultMappingsKey, logger)
}
