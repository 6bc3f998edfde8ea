package models

import "time"

// CheckpointKey is the fixed id of the singleton checkpoint row in the
// local store.
const CheckpointKey = "lastSync"

// Checkpoint is the watermark below which remote changes are assumed
// already pulled. Stored as epoch milliseconds; the zero value means no
// successful cycle has completed yet, which forces a full pull.
//
// The checkpoint is a lower bound, not an upper bound: clock skew may
// cause the same record to be re-pulled, so pulls must stay idempotent.
type Checkpoint int64

// CheckpointAt converts a wall-clock time to a checkpoint value.
func CheckpointAt(t time.Time) Checkpoint {
	return Checkpoint(t.UnixMilli())
}

// IsZero reports whether no cycle has ever completed.
func (c Checkpoint) IsZero() bool { return c <= 0 }

// Time returns the watermark as a wall-clock time.
func (c Checkpoint) Time() time.Time {
	return time.UnixMilli(int64(c)).UTC()
}
