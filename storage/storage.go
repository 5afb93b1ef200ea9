// Package storage defines the persistence interfaces the sync engine
// depends on: a key-value store for durable engine state and a local
// entity store holding the on-device copy of the user's data.
package storage

import (
	"context"
	"errors"

	"github.com/openlift/syncengine/entity"
)

// ErrNotFound is returned when a key or record does not exist.
var ErrNotFound = errors.New("not found")

// KVStore is a durable key-value store. The engine persists its mutation
// queue and identifier mappings as JSON blobs under fixed keys. On-device
// deployments should back this with encrypted storage; the engine itself
// is agnostic.
type KVStore interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set writes the value durably before returning.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes the key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// Record is the generic shape of a locally stored entity. Fields holds the
// kind-specific attributes in the same key-value form used on the wire.
type Record struct {
	Kind    entity.Kind    `json:"kind"`
	LocalID string         `json:"localId"`
	Fields  map[string]any `json:"fields"`

	// UpdatedAt is the entity's last-modified time in milliseconds since
	// the Unix epoch, used for conflict resolution against remote state.
	UpdatedAt int64 `json:"updatedAt"`
}

// LocalStore is the on-device entity store. All operations key entities by
// (kind, local id); local ids never leave the device.
type LocalStore interface {
	// Put inserts or overwrites the record identified by (Kind, LocalID).
	Put(ctx context.Context, rec Record) error

	// Get returns the record, or ErrNotFound.
	Get(ctx context.Context, kind entity.Kind, localID string) (Record, error)

	// List returns all records of a kind in stable (insertion) order.
	List(ctx context.Context, kind entity.Kind) ([]Record, error)

	// Delete removes the record. Deleting an absent record is not an error.
	Delete(ctx context.Context, kind entity.Kind, localID string) error
}
