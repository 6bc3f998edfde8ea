package client

import (
	"context"
	"fmt"

	"github.com/moodiary/moodiary/internal/auth"
	"github.com/moodiary/moodiary/internal/config"
	"github.com/moodiary/moodiary/internal/diary"
	"github.com/moodiary/moodiary/internal/events"
	"github.com/moodiary/moodiary/internal/models"
	"github.com/moodiary/moodiary/internal/remote"
	"github.com/moodiary/moodiary/internal/store"
	"github.com/moodiary/moodiary/internal/sync"
)

// Option customizes client construction.
type Option func(*options)

type options struct {
	weather  diary.WeatherProvider
	location diary.LocationProvider
}

// WithWeatherProvider enables weather snapshots on new entries.
func WithWeatherProvider(p diary.WeatherProvider) Option {
	return func(o *options) { o.weather = p }
}

// WithLocationProvider enables location snapshots on new entries.
func WithLocationProvider(p diary.LocationProvider) Option {
	return func(o *options) { o.location = p }
}

// Client wires the full application together: the durable local
// store, the remote adapters, authentication, the editing service and
// the sync machinery.
type Client struct {
	cfg    *config.Config
	logger *events.Logger

	store    store.Store
	remote   *remote.HTTPStore
	realtime *remote.RealtimeClient

	auth      *auth.Service
	diary     *diary.Service
	scheduler *sync.Scheduler
}

// tokenFanout forwards the access token to every component that signs
// requests with it.
type tokenFanout struct {
	sinks []interface{ SetToken(string) }
}

func (f *tokenFanout) SetToken(token string) {
	for _, sink := range f.sinks {
		sink.SetToken(token)
	}
}

// New builds a client from configuration. The returned client owns
// the store; call Close when done.
func New(cfg *config.Config, logger *events.Logger, opts ...Option) (*Client, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("prepare data directories: %w", err)
	}

	st, err := store.NewSQLiteStore(cfg.Storage.DBFile, logger)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}

	rm := remote.NewHTTPStore(&cfg.API, logger)
	fanout := &tokenFanout{sinks: []interface{ SetToken(string) }{rm}}

	var rt *remote.RealtimeClient
	if cfg.Sync.Realtime {
		rt = remote.NewRealtimeClient(&cfg.API, logger)
		fanout.sinks = append(fanout.sinks, rt)
	}

	authSvc := auth.NewService(cfg, fanout, logger)
	diarySvc := diary.NewService(st, o.weather, o.location, logger)

	reconciler := sync.NewReconciler(st, rm, cfg.Sync.PushBatchSize, logger)
	scheduler := sync.NewScheduler(reconciler, authSvc, cfg.Sync.Interval, logger)

	if rt != nil {
		rt.OnChange = func() { scheduler.Trigger("remote_change") }
		rt.OnReconnect = func() { scheduler.Trigger("reconnect") }
	}

	return &Client{
		cfg:       cfg,
		logger:    logger,
		store:     st,
		remote:    rm,
		realtime:  rt,
		auth:      authSvc,
		diary:     diarySvc,
		scheduler: scheduler,
	}, nil
}

// Diary returns the editing service.
func (c *Client) Diary() *diary.Service { return c.diary }

// Login authenticates and kicks off a sync cycle.
func (c *Client) Login(ctx context.Context, email, password string) (*models.User, error) {
	user, err := c.auth.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	c.scheduler.Trigger("login")
	return user, nil
}

// Logout discards the session. Local data stays on the device.
func (c *Client) Logout() error {
	return c.auth.Logout()
}

// CurrentUser returns the authenticated identity, or
// ErrNotAuthenticated.
func (c *Client) CurrentUser() (*models.User, error) {
	return c.auth.CurrentUser()
}

// SyncNow runs one cycle immediately.
func (c *Client) SyncNow(ctx context.Context) (*sync.Report, error) {
	return c.scheduler.SyncNow(ctx)
}

// SyncStatus returns the scheduler's state.
func (c *Client) SyncStatus() sync.Status {
	return c.scheduler.Status()
}

// DismissSyncError clears the surfaced sync error.
func (c *Client) DismissSyncError() {
	c.scheduler.DismissError()
}

// Stats summarizes the local journal.
func (c *Client) Stats(ctx context.Context) (*diary.Stats, error) {
	return c.diary.Stats(ctx)
}

// Run starts the background machinery: the periodic scheduler and,
// when enabled, the realtime change feed. It blocks until ctx is
// cancelled.
func (c *Client) Run(ctx context.Context) {
	if c.realtime != nil {
		go c.realtime.Run(ctx)
	}
	c.scheduler.Start(ctx)
}

// Close releases the local store.
func (c *Client) Close() error {
	return c.store.Close()
}
