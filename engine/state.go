package engine

import "time"

// Status is the engine's observable lifecycle status.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusSyncing Status = "syncing"
	StatusError   Status = "error"
)

// State is the snapshot published to observers. It is a plain value; the
// engine hands out copies, never shared references.
type State struct {
	Status Status `json:"status"`

	// LastSyncAt is the completion time of the most recent sync attempt,
	// successful or not. Nil until the first sync completes.
	LastSyncAt *time.Time `json:"lastSyncAt"`

	// PendingOperations counts every queued item, including quarantined
	// ones that no longer participate in push attempts.
	PendingOperations int `json:"pendingOperations"`

	// Error is the joined error message of the last sync, empty when the
	// last sync succeeded.
	Error string `json:"error"`

	// FailedOperations counts queued items that have exhausted their
	// retries.
	FailedOperations int `json:"failedOperations"`

	// StorageError records the most recent persistence failure, if any.
	StorageError string `json:"storageError"`
}

// Result reports the outcome of a Sync or FullSync call. Success is true
// exactly when Errors is empty.
type Result struct {
	Success bool     `json:"success"`
	Pushed  int      `json:"pushed"`
	Pulled  int      `json:"pulled"`
	Errors  []string `json:"errors"`
}
