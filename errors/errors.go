// Package errors provides the structured error type used across the sync
// engine's internal layers.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents the category of failure.
type ErrorCode string

const (
	ErrCodeNetworkFailure    ErrorCode = "NETWORK_FAILURE"
	ErrCodeStorageFailure    ErrorCode = "STORAGE_FAILURE"
	ErrCodeMappingFailure    ErrorCode = "MAPPING_FAILURE"
	ErrCodeConflictFailure   ErrorCode = "CONFLICT_FAILURE"
	ErrCodeValidationFailure ErrorCode = "VALIDATION_FAILURE"
)

// Operation represents the sync operation during which an error occurred.
type Operation string

const (
	OpSync    Operation = "sync"
	OpPush    Operation = "push"
	OpPull    Operation = "pull"
	OpEnqueue Operation = "enqueue"
	OpPersist Operation = "persist"
	OpLoad    Operation = "load"
	OpRemote  Operation = "remote"
	OpReset   Operation = "reset"
)

// SyncError carries structured context about a failure inside the engine.
type SyncError struct {
	// Operation during which the error occurred
	Op Operation

	// Component that generated the error (e.g., "queue", "idmap", "remote")
	Component string

	// Underlying error
	Err error

	// Whether the operation can be retried
	Retryable bool

	// Error code for the failure category
	Code ErrorCode
}

func (e *SyncError) Error() string {
	var msg string
	if e.Component != "" {
		msg = fmt.Sprintf("%s operation failed in %s component", e.Op, e.Component)
	} else {
		msg = fmt.Sprintf("%s operation failed", e.Op)
	}

	if e.Code != "" {
		msg += fmt.Sprintf(" [%s]", e.Code)
	}

	return msg + fmt.Sprintf(": %v", e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// New creates a new SyncError.
func New(op Operation, err error) *SyncError {
	return &SyncError{
		Op:  op,
		Err: err,
	}
}

// NewWithComponent creates a new SyncError with component information.
func NewWithComponent(op Operation, component string, err error) *SyncError {
	return &SyncError{
		Op:        op,
		Component: component,
		Err:       err,
	}
}

// NewStorageError creates a new persistence-related SyncError.
func NewStorageError(op Operation, cause error) *SyncError {
	return &SyncError{
		Code:      ErrCodeStorageFailure,
		Op:        op,
		Component: "storage",
		Err:       cause,
		Retryable: true,
	}
}

// NewNetworkError creates a new network-related SyncError.
func NewNetworkError(op Operation, cause error) *SyncError {
	return &SyncError{
		Code:      ErrCodeNetworkFailure,
		Op:        op,
		Component: "remote",
		Err:       cause,
		Retryable: true,
	}
}

// NewMappingError creates a SyncError for a missing or inconsistent
// local/remote identifier mapping.
func NewMappingError(op Operation, cause error) *SyncError {
	return &SyncError{
		Code:      ErrCodeMappingFailure,
		Op:        op,
		Component: "idmap",
		Err:       cause,
		Retryable: true,
	}
}

// NewValidationError creates a new validation-related SyncError.
func NewValidationError(op Operation, cause error) *SyncError {
	return &SyncError{
		Code:      ErrCodeValidationFailure,
		Op:        op,
		Err:       cause,
		Retryable: false,
	}
}

// IsRetryable checks if an error is a retryable SyncError.
func IsRetryable(err error) bool {
	var syncErr *SyncError
	if errors.As(err, &syncErr) {
		return syncErr.Retryable
	}
	return false
}
