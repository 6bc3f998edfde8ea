package sync

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/moodiary/moodiary/internal/events"
	"github.com/moodiary/moodiary/internal/models"
)

// IdentityProvider supplies the user a cycle runs for. A cycle is
// skipped entirely while logged out.
type IdentityProvider interface {
	CurrentUser() (*models.User, error)
}

// sessionRefresher is implemented by identity providers that can
// renew an expiring token before a cycle uses it.
type sessionRefresher interface {
	EnsureFresh(ctx context.Context) error
}

// gate admits at most one holder. It is a non-blocking mutex: a
// caller that cannot acquire it moves on instead of queueing, which
// is exactly the coalescing the trigger sources need.
type gate struct {
	ch chan struct{}
}

func newGate() *gate {
	g := &gate{ch: make(chan struct{}, 1)}
	g.ch <- struct{}{}
	return g
}

func (g *gate) TryAcquire() bool {
	select {
	case <-g.ch:
		return true
	default:
		return false
	}
}

func (g *gate) Release() {
	g.ch <- struct{}{}
}

// Status is the scheduler's externally visible state.
type Status struct {
	Syncing   bool      `json:"syncing"`
	LastSync  time.Time `json:"last_sync"`
	LastError string    `json:"last_error,omitempty"`

	// Retryable distinguishes transient failures (offline, server
	// hiccup) from ones needing user action (expired session).
	Retryable bool `json:"retryable,omitempty"`
}

// Scheduler decides when cycles run: on login, on a fixed interval,
// on connectivity or remote-change signals, and on demand. However
// many triggers fire, at most one cycle is in flight; triggers that
// arrive mid-cycle are dropped, not queued, because the running cycle
// already covers them or the next tick will.
type Scheduler struct {
	reconciler *Reconciler
	identity   IdentityProvider
	interval   time.Duration
	logger     *events.Logger

	gate     *gate
	triggers chan string

	mu         sync.Mutex
	syncing    bool
	lastReport *Report
	lastErr    error
}

// NewScheduler creates a scheduler running cycles every interval once
// started.
func NewScheduler(reconciler *Reconciler, identity IdentityProvider, interval time.Duration, logger *events.Logger) *Scheduler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Scheduler{
		reconciler: reconciler,
		identity:   identity,
		interval:   interval,
		logger:     logger.WithField("component", "scheduler"),
		gate:       newGate(),
		triggers:   make(chan string, 1),
	}
}

// Start runs the scheduling loop until ctx is cancelled. It fires an
// immediate cycle, then one per interval, plus any signalled
// triggers.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.run(ctx, "startup")

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Scheduler stopped")
			return
		case <-ticker.C:
			s.run(ctx, "interval")
		case reason := <-s.triggers:
			s.run(ctx, reason)
		}
	}
}

// Trigger signals that a cycle should run soon. It never blocks: if a
// trigger is already pending or a cycle is running, the signal is
// dropped.
func (s *Scheduler) Trigger(reason string) {
	select {
	case s.triggers <- reason:
	default:
	}
}

// SyncNow runs a cycle immediately, or returns ErrSyncInProgress if
// one is already in flight.
func (s *Scheduler) SyncNow(ctx context.Context) (*Report, error) {
	if !s.gate.TryAcquire() {
		return nil, models.ErrSyncInProgress
	}
	defer s.gate.Release()
	return s.cycle(ctx, "manual")
}

// Status returns a snapshot of the scheduler state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := Status{Syncing: s.syncing}
	if s.lastReport != nil {
		status.LastSync = s.lastReport.StartedAt
	}
	if s.lastErr != nil {
		status.LastError = s.lastErr.Error()
		status.Retryable = isRetryable(s.lastErr)
	}
	return status
}

// DismissError clears the surfaced error without retrying.
func (s *Scheduler) DismissError() {
	s.mu.Lock()
	s.lastErr = nil
	s.mu.Unlock()
}

// run is the loop-side entry: unlike SyncNow it swallows the
// in-flight case silently.
func (s *Scheduler) run(ctx context.Context, reason string) {
	if !s.gate.TryAcquire() {
		s.logger.WithField("reason", reason).Debug("Cycle already in flight, dropping trigger")
		return
	}
	defer s.gate.Release()

	if _, err := s.cycle(ctx, reason); err != nil {
		if errors.Is(err, models.ErrNotAuthenticated) {
			s.logger.Debug("Not logged in, skipping cycle")
			return
		}
		s.logger.WithError(err).WithField("reason", reason).Warn("Cycle failed")
	}
}

// cycle runs one reconciliation under the gate and records the
// outcome. Callers must hold the gate.
func (s *Scheduler) cycle(ctx context.Context, reason string) (*Report, error) {
	user, err := s.identity.CurrentUser()
	if err != nil {
		return nil, err
	}
	if refresher, ok := s.identity.(sessionRefresher); ok {
		if err := refresher.EnsureFresh(ctx); err != nil {
			s.record(nil, err)
			return nil, err
		}
	}

	s.setSyncing(true)
	s.logger.WithFields(map[string]interface{}{
		"reason":  reason,
		"user_id": user.ID,
	}).Debug("Running cycle")

	report, err := s.reconciler.Run(ctx, user.ID)
	s.setSyncing(false)
	s.record(report, err)
	return report, err
}

func (s *Scheduler) setSyncing(v bool) {
	s.mu.Lock()
	s.syncing = v
	s.mu.Unlock()
}

func (s *Scheduler) record(report *Report, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if report != nil {
		s.lastReport = report
	}
	s.lastErr = err
}

// isRetryable reports whether a failure clears up on its own.
func isRetryable(err error) bool {
	return errors.Is(err, models.ErrNetworkUnreachable) ||
		errors.Is(err, context.DeadlineExceeded)
}
