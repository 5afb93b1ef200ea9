package engine

import (
	"context"

	"github.com/openlift/syncengine/entity"
)

// RemoteRecord is one entity in a remote collection snapshot.
type RemoteRecord struct {
	// ID is the server-assigned identifier.
	ID string

	// Fields holds the entity's attributes. Identifier reference fields
	// carry remote ids; the pull pipeline translates them to local ids.
	Fields map[string]any

	// UpdatedAt is the server-side last-modified time in milliseconds
	// since the Unix epoch.
	UpdatedAt int64
}

// RemoteClient is the engine's view of the authoritative backend. Each
// entity kind exposes create/update/delete plus a full snapshot query.
// The engine treats any returned error as a retryable failure and
// preserves its message verbatim for callers; implementations should keep
// messages human-readable.
type RemoteClient interface {
	// Create sends a new entity and returns the server-assigned id.
	Create(ctx context.Context, kind entity.Kind, payload map[string]any) (string, error)

	// Update overwrites the remote entity identified by remoteID.
	Update(ctx context.Context, kind entity.Kind, remoteID string, payload map[string]any) error

	// Delete removes the remote entity identified by remoteID.
	Delete(ctx context.Context, kind entity.Kind, remoteID string) error

	// List returns the authoritative snapshot of the user's collection.
	List(ctx context.Context, kind entity.Kind, userID string) ([]RemoteRecord, error)
}
