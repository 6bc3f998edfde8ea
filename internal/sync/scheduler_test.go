package sync_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moodiary/moodiary/internal/models"
	"github.com/moodiary/moodiary/internal/remote"
	"github.com/moodiary/moodiary/internal/store"
	syncpkg "github.com/moodiary/moodiary/internal/sync"
)

type mockIdentity struct {
	user       *models.User
	userErr    error
	freshErr   error
	freshCalls int
}

func (m *mockIdentity) CurrentUser() (*models.User, error) {
	return m.user, m.userErr
}

func (m *mockIdentity) EnsureFresh(ctx context.Context) error {
	m.freshCalls++
	return m.freshErr
}

func loggedIn() *mockIdentity {
	return &mockIdentity{user: &models.User{ID: "user-1"}}
}

func newScheduler(st store.Store, rm remote.Store, identity syncpkg.IdentityProvider) *syncpkg.Scheduler {
	rec := syncpkg.NewReconciler(st, rm, 50, testLogger())
	return syncpkg.NewScheduler(rec, identity, time.Hour, testLogger())
}

func TestSyncNow(t *testing.T) {
	ctx := context.Background()
	local := store.NewMockStore()
	rm := remote.NewMockStore()

	entry := models.NewEntry("2026-08-29")
	saveDirty(t, local, entry)

	identity := loggedIn()
	sched := newScheduler(local, rm, identity)

	report, err := sched.SyncNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Pushed)
	assert.Equal(t, 1, identity.freshCalls, "token freshness checked before the cycle")

	status := sched.Status()
	assert.False(t, status.Syncing)
	assert.Equal(t, report.StartedAt, status.LastSync)
	assert.Empty(t, status.LastError)
}

func TestSyncNowWhileCycleInFlight(t *testing.T) {
	ctx := context.Background()
	local := store.NewMockStore()
	rm := remote.NewMockStore()
	rm.Barrier = make(chan struct{})

	entry := models.NewEntry("2026-08-29")
	saveDirty(t, local, entry)

	sched := newScheduler(local, rm, loggedIn())

	done := make(chan error, 1)
	go func() {
		_, err := sched.SyncNow(ctx)
		done <- err
	}()

	// Wait until the first cycle is held at the push barrier.
	require.Eventually(t, func() bool {
		return sched.Status().Syncing
	}, 2*time.Second, 5*time.Millisecond)

	_, err := sched.SyncNow(ctx)
	assert.ErrorIs(t, err, models.ErrSyncInProgress)

	close(rm.Barrier)
	require.NoError(t, <-done)

	// The gate is free again.
	_, err = sched.SyncNow(ctx)
	assert.NoError(t, err)
}

func TestSyncNowNotLoggedIn(t *testing.T) {
	local := store.NewMockStore()
	rm := remote.NewMockStore()
	identity := &mockIdentity{userErr: models.ErrNotAuthenticated}

	sched := newScheduler(local, rm, identity)
	_, err := sched.SyncNow(context.Background())
	assert.ErrorIs(t, err, models.ErrNotAuthenticated)
	assert.Equal(t, 0, rm.UpsertCalls, "no cycle ran")
}

func TestStatusSurfacesFailures(t *testing.T) {
	ctx := context.Background()
	local := store.NewMockStore()
	rm := remote.NewMockStore()
	rm.FailFetchWith = models.ErrNetworkUnreachable

	sched := newScheduler(local, rm, loggedIn())
	_, err := sched.SyncNow(ctx)
	require.Error(t, err)

	status := sched.Status()
	assert.NotEmpty(t, status.LastError)
	assert.True(t, status.Retryable, "network failures clear up on their own")

	sched.DismissError()
	assert.Empty(t, sched.Status().LastError)

	// A later success also clears the error.
	rm.FailFetchWith = nil
	_, err = sched.SyncNow(ctx)
	require.NoError(t, err)
	assert.Empty(t, sched.Status().LastError)
}

func TestExpiredSessionIsNotRetryable(t *testing.T) {
	local := store.NewMockStore()
	rm := remote.NewMockStore()
	identity := loggedIn()
	identity.freshErr = models.ErrAuthExpired

	sched := newScheduler(local, rm, identity)
	_, err := sched.SyncNow(context.Background())
	assert.ErrorIs(t, err, models.ErrAuthExpired)

	status := sched.Status()
	assert.NotEmpty(t, status.LastError)
	assert.False(t, status.Retryable, "an expired session needs a fresh login")
}

func TestStartRunsStartupCycle(t *testing.T) {
	local := store.NewMockStore()
	rm := remote.NewMockStore()

	entry := models.NewEntry("2026-08-29")
	saveDirty(t, local, entry)

	sched := newScheduler(local, rm, loggedIn())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sched.Start(ctx)

	require.Eventually(t, func() bool {
		return !sched.Status().LastSync.IsZero()
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, rm.Len())
}

func TestTriggerWakesTheLoop(t *testing.T) {
	local := store.NewMockStore()
	rm := remote.NewMockStore()
	sched := newScheduler(local, rm, loggedIn())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sched.Start(ctx)

	// Startup cycle first.
	require.Eventually(t, func() bool {
		return !sched.Status().LastSync.IsZero()
	}, 2*time.Second, 5*time.Millisecond)
	firstSync := sched.Status().LastSync

	entry := models.NewEntry("2026-08-29")
	saveDirty(t, local, entry)
	sched.Trigger("remote_change")

	require.Eventually(t, func() bool {
		return rm.Len() == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.False(t, sched.Status().LastSync.Before(firstSync))
}

func TestTriggerNeverBlocks(t *testing.T) {
	sched := newScheduler(store.NewMockStore(), remote.NewMockStore(), loggedIn())

	// No loop is draining the channel; extra triggers are dropped.
	for i := 0; i < 10; i++ {
		sched.Trigger("reconnect")
	}
}

func TestLoopSkipsWhileLoggedOut(t *testing.T) {
	local := store.NewMockStore()
	rm := remote.NewMockStore()
	identity := &mockIdentity{userErr: models.ErrNotAuthenticated}

	entry := models.NewEntry("2026-08-29")
	saveDirty(t, local, entry)

	sched := newScheduler(local, rm, identity)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sched.Start(ctx)

	sched.Trigger("interval")
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, 0, rm.UpsertCalls)
	assert.Empty(t, sched.Status().LastError, "being logged out is not an error state")
}
