package sync

import (
	"context"
	"errors"
	"time"

	"github.com/moodiary/moodiary/internal/events"
	"github.com/moodiary/moodiary/internal/models"
	"github.com/moodiary/moodiary/internal/remote"
	"github.com/moodiary/moodiary/internal/store"
)

// Cycle phases, reported through SyncError.
const (
	PhaseCheckpoint = "checkpoint"
	PhasePush       = "push"
	PhasePull       = "pull"
)

// ApplyFunc decides how a pulled record lands in the local store. The
// default applies it unconditionally; a different policy (merge,
// keep-newest, quarantine) can be swapped in here without touching
// the rest of the cycle.
type ApplyFunc func(ctx context.Context, st store.Store, entry *models.DiaryEntry) error

// ApplyOverwrite is the default pull policy: the remote record
// replaces local state for its id, even when a dirty local edit
// exists. The losing edit is gone without trace; that is the cost of
// last-write-wins.
func ApplyOverwrite(ctx context.Context, st store.Store, entry *models.DiaryEntry) error {
	return st.UpsertFromRemote(ctx, entry)
}

// Report summarizes one completed cycle.
type Report struct {
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Pushed    int           `json:"pushed"`
	Pulled    int           `json:"pulled"`
}

// Reconciler runs one push/pull cycle at a time against a local and a
// remote store. It holds no state between cycles; everything it needs
// is in the local store.
type Reconciler struct {
	store     store.Store
	remote    remote.Store
	batchSize int
	apply     ApplyFunc
	logger    *events.Logger
	now       func() time.Time
}

// NewReconciler creates a reconciler pushing in batches of batchSize.
func NewReconciler(st store.Store, rm remote.Store, batchSize int, logger *events.Logger) *Reconciler {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Reconciler{
		store:     st,
		remote:    rm,
		batchSize: batchSize,
		apply:     ApplyOverwrite,
		logger:    logger.WithField("component", "reconciler"),
		now:       time.Now,
	}
}

// SetApplyFunc swaps the pull policy. Must be called before Run.
func (r *Reconciler) SetApplyFunc(apply ApplyFunc) {
	r.apply = apply
}

// Run executes one full cycle for the given user: push every dirty
// entry, pull everything changed since the checkpoint, then advance
// the checkpoint to the cycle's start time. A failure in any phase
// aborts the cycle and leaves the checkpoint untouched, so the next
// cycle re-covers the same window.
func (r *Reconciler) Run(ctx context.Context, userID string) (*Report, error) {
	start := r.now().UTC()
	report := &Report{StartedAt: start}

	checkpoint, err := r.store.Checkpoint(ctx)
	if err != nil {
		if !errors.Is(err, models.ErrCheckpointNotSet) {
			return nil, &models.SyncError{Phase: PhaseCheckpoint, Err: err}
		}
		// First cycle on this device: pull everything.
		checkpoint = 0
	}

	r.logger.WithFields(map[string]interface{}{
		"user_id":    userID,
		"checkpoint": checkpoint.Time(),
	}).Debug("Cycle started")

	pushed, err := r.push(ctx, userID)
	if err != nil {
		return nil, &models.SyncError{Phase: PhasePush, Err: err}
	}
	report.Pushed = pushed

	pulled, err := r.pull(ctx, checkpoint)
	if err != nil {
		return nil, &models.SyncError{Phase: PhasePull, Err: err}
	}
	report.Pulled = pulled

	// The watermark is the cycle's start, not its end: a remote write
	// that landed mid-cycle may or may not have been pulled above,
	// but the next cycle's window covers it either way. Pulls are
	// idempotent, so re-delivery is harmless.
	if err := r.store.SetCheckpoint(ctx, models.CheckpointAt(start)); err != nil {
		return nil, &models.SyncError{Phase: PhaseCheckpoint, Err: err}
	}

	report.Duration = r.now().UTC().Sub(start)
	r.logger.WithFields(map[string]interface{}{
		"pushed":   report.Pushed,
		"pulled":   report.Pulled,
		"duration": report.Duration,
	}).Info("Cycle completed")
	return report, nil
}

// push sends every dirty entry in batches. Each batch that the remote
// acknowledges is marked clean immediately, so a failure in a later
// batch loses no bookkeeping: the unacknowledged entries simply stay
// dirty.
func (r *Reconciler) push(ctx context.Context, userID string) (int, error) {
	dirty, err := r.store.DirtyEntries(ctx)
	if err != nil {
		return 0, err
	}
	if len(dirty) == 0 {
		return 0, nil
	}

	pushed := 0
	for len(dirty) > 0 {
		batch := dirty
		if len(batch) > r.batchSize {
			batch = batch[:r.batchSize]
		}
		dirty = dirty[len(batch):]

		records := make([]models.RemoteRecord, len(batch))
		stamps := make([]models.SyncStamp, len(batch))
		for i, entry := range batch {
			records[i] = entry.Record(userID)
			stamps[i] = entry.Stamp()
		}

		if err := r.remote.UpsertMany(ctx, records); err != nil {
			return pushed, err
		}

		// The stamps were captured before the round trip; an entry
		// edited meanwhile no longer matches and keeps its dirty
		// flag.
		if err := r.store.MarkSynced(ctx, stamps); err != nil {
			return pushed, err
		}
		pushed += len(batch)
	}

	r.logger.WithField("pushed", pushed).Debug("Push phase done")
	return pushed, nil
}

func (r *Reconciler) pull(ctx context.Context, since models.Checkpoint) (int, error) {
	records, err := r.remote.FetchChangedSince(ctx, since)
	if err != nil {
		return 0, err
	}

	for i, rec := range records {
		if err := r.apply(ctx, r.store, rec.Entry()); err != nil {
			return i, err
		}
	}

	r.logger.WithField("pulled", len(records)).Debug("Pull phase done")
	return len(records), nil
}
