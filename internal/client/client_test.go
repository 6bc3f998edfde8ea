package client_test

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moodiary/moodiary/internal/client"
	"github.com/moodiary/moodiary/internal/config"
	"github.com/moodiary/moodiary/internal/diary"
	"github.com/moodiary/moodiary/internal/events"
	"github.com/moodiary/moodiary/internal/models"
)

func testClient(t *testing.T) *client.Client {
	t.Helper()

	dataDir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.API.BaseURL = "http://127.0.0.1:1" // never reached offline
	cfg.Storage.DataDir = dataDir
	cfg.Storage.DBFile = filepath.Join(dataDir, "diary.db")
	cfg.Storage.SessionFile = filepath.Join(dataDir, "session.json")
	cfg.Sync.Realtime = false

	logger := events.NewTestLogger(events.ErrorLevel, io.Discard)
	c, err := client.New(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestOfflineEditingWorksWithoutSession(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()

	entry, err := c.Diary().SaveForDate(ctx, "2026-08-29", diary.Draft{
		Title: "written offline",
		Mood:  models.MoodGood,
	})
	require.NoError(t, err)
	assert.False(t, entry.Synced)

	got, err := c.Diary().EntryByDate(ctx, "2026-08-29")
	require.NoError(t, err)
	assert.Equal(t, "written offline", got.Title)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, 1, stats.Pending)
}

func TestSyncRequiresLogin(t *testing.T) {
	c := testClient(t)

	_, err := c.CurrentUser()
	assert.ErrorIs(t, err, models.ErrNotAuthenticated)

	_, err = c.SyncNow(context.Background())
	assert.ErrorIs(t, err, models.ErrNotAuthenticated)
}

func TestInvalidConfigRejected(t *testing.T) {
	cfg := config.DefaultConfig() // no base URL
	logger := events.NewTestLogger(events.ErrorLevel, io.Discard)

	_, err := client.New(cfg, logger)
	assert.Error(t, err)
}
