package store

import (
	"context"

	"github.com/moodiary/moodiary/internal/models"
)

// Store is the durable on-device store for diary entries and the sync
// checkpoint. It survives process restarts and is mutated by exactly
// two paths: the user-editing path (SaveEntry, DeleteEntry) and the
// sync path (MarkSynced, UpsertFromRemote, SetCheckpoint).
type Store interface {
	// SaveEntry persists an entry written by the editing path. The
	// entry's Synced flag is stored as given; editors always save
	// with Synced=false.
	SaveEntry(ctx context.Context, entry *models.DiaryEntry) error

	// Entry returns the entry with the given id, or ErrEntryNotFound.
	Entry(ctx context.Context, id string) (*models.DiaryEntry, error)

	// EntryByDate returns the entry for a calendar day, or
	// ErrEntryNotFound. One-entry-per-day is application logic, not a
	// storage constraint; if duplicates ever exist the earliest
	// created wins.
	EntryByDate(ctx context.Context, date string) (*models.DiaryEntry, error)

	// ListEntries returns all entries, newest date first.
	ListEntries(ctx context.Context) ([]*models.DiaryEntry, error)

	// EntriesByDateRange returns entries with from <= date <= to,
	// ascending by date.
	EntriesByDateRange(ctx context.Context, from, to string) ([]*models.DiaryEntry, error)

	// EntriesByMood returns entries with the given mood.
	EntriesByMood(ctx context.Context, mood models.Mood) ([]*models.DiaryEntry, error)

	// EntriesByTag returns entries carrying the given tag.
	EntriesByTag(ctx context.Context, tag string) ([]*models.DiaryEntry, error)

	// DeleteEntry removes an entry. Deletes are local-only; they do
	// not propagate to the remote.
	DeleteEntry(ctx context.Context, id string) error

	// DirtyEntries returns all entries with unpushed local mutations.
	// No ordering guarantee.
	DirtyEntries(ctx context.Context) ([]*models.DiaryEntry, error)

	// MarkSynced clears the dirty flag for exactly the given stamped
	// revisions. An entry edited after its stamp was captured keeps
	// its dirty flag: the flag is only cleared where the stored
	// updated_at still equals the stamped one.
	MarkSynced(ctx context.Context, stamps []models.SyncStamp) error

	// UpsertFromRemote writes a pulled entry with Synced=true,
	// unconditionally overwriting any local state for that id. The
	// local updated_at is never compared against the incoming one, so
	// an unpushed local edit to the same id is silently lost. That is
	// the accepted hazard of the last-write-wins policy.
	UpsertFromRemote(ctx context.Context, entry *models.DiaryEntry) error

	// Checkpoint returns the sync watermark, or ErrCheckpointNotSet
	// if no cycle has completed yet.
	Checkpoint(ctx context.Context) (models.Checkpoint, error)

	// SetCheckpoint atomically overwrites the singleton watermark.
	SetCheckpoint(ctx context.Context, cp models.Checkpoint) error

	Close() error
}
