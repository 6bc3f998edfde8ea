package remote

import (
	"context"

	"github.com/moodiary/moodiary/internal/models"
)

// Store is the networked, per-user partitioned entry store.
//
// The remote is the arbiter of the current value per id: it stores
// whatever was upserted last by server receipt order. It never compares
// the embedded updated_at against what it already holds, so two devices
// pushing conflicting edits to the same id resolve by push arrival
// order, not by timestamp.
type Store interface {
	// UpsertMany writes records keyed on id. Idempotent: re-submitting
	// the same id with the same payload is a no-op; a different
	// payload overwrites. Errors are distinguishable as
	// ErrNetworkUnreachable, ErrAuthExpired or *ValidationError.
	UpsertMany(ctx context.Context, records []models.RemoteRecord) error

	// FetchChangedSince returns all records for the authenticated
	// user whose server-side updated_at is strictly greater than the
	// watermark. Safe to call with a stale watermark; overlapping
	// ranges re-fetch harmlessly.
	FetchChangedSince(ctx context.Context, since models.Checkpoint) ([]models.RemoteRecord, error)
}
