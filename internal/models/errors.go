package models

import (
	"errors"
	"fmt"
)

// Error codes for structured error handling.
const (
	ErrCodeNetwork    = "NETWORK_ERROR"
	ErrCodeAuth       = "AUTH_ERROR"
	ErrCodeValidation = "VALIDATION_ERROR"
	ErrCodeStorage    = "STORAGE_ERROR"
	ErrCodeSync       = "SYNC_ERROR"
	ErrCodeConfig     = "CONFIG_ERROR"
)

// Sentinel errors.
var (
	// ErrNetworkUnreachable covers dial failures, timeouts and
	// exhausted retries; the cycle aborts and the periodic or
	// reconnect trigger retries later.
	ErrNetworkUnreachable = errors.New("network unreachable")

	// ErrAuthExpired means the session token is missing, expired or
	// rejected by the remote.
	ErrAuthExpired = errors.New("authentication expired")

	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrSyncInProgress is returned when a cycle is requested while
	// another is in flight. The request is dropped, not queued.
	ErrSyncInProgress = errors.New("sync already in progress")

	ErrEntryNotFound = errors.New("entry not found")

	// ErrCheckpointNotSet means no successful cycle has completed;
	// the reconciler treats it as epoch zero and does a full pull.
	ErrCheckpointNotSet = errors.New("sync checkpoint not set")

	ErrInvalidConfig = errors.New("invalid configuration")
)

// APIError is a structured error response from the remote store.
type APIError struct {
	StatusCode int    `json:"status_code"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d (%s): %s", e.StatusCode, e.Code, e.Message)
}

// ValidationError means the remote rejected a pushed payload, for
// example an entry whose embedded photos exceed the size limit.
// Retrying the same payload will fail again, but the cycle still aborts
// so the user can trim the entry and retry manually.
type ValidationError struct {
	StatusCode int
	Message    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("remote rejected payload (%d): %s", e.StatusCode, e.Message)
}

// StorageError wraps a local persistence failure such as quota
// exhaustion or corruption. The reconciler treats it as cycle failure;
// there is no local retry.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("local storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// SyncError reports which phase of a cycle failed.
type SyncError struct {
	Phase string // "push", "pull", "checkpoint"
	Err   error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync %s: %v", e.Phase, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }
