package events_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moodiary/moodiary/internal/config"
	"github.com/moodiary/moodiary/internal/events"
)

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := events.NewTestLogger(events.InfoLevel, &buf)

	logger.Debug("hidden")
	logger.Info("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[INFO] shown")
}

func TestLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	logger := events.NewTestLogger(events.DebugLevel, &buf)

	child := logger.WithField("component", "sync").WithFields(map[string]interface{}{
		"pushed": 3,
		"pulled": 1,
	})
	child.Info("cycle done")

	out := buf.String()
	assert.Contains(t, out, "component=sync")
	assert.Contains(t, out, "pushed=3")
	assert.Contains(t, out, "pulled=1")

	// Parent logger is unchanged.
	buf.Reset()
	logger.Info("plain")
	assert.NotContains(t, buf.String(), "component=")
}

func TestLoggerWithError(t *testing.T) {
	var buf bytes.Buffer
	logger := events.NewTestLogger(events.DebugLevel, &buf)

	logger.WithError(errors.New("boom")).Error("cycle failed")
	assert.Contains(t, buf.String(), "error=boom")
}

func TestLoggerJSONFormat(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "moodiary.log")

	logger, err := events.NewLogger(&config.LogConfig{
		Level:  "debug",
		Format: "json",
		File:   logFile,
	})
	require.NoError(t, err)

	logger.WithField("entry_id", "e-1").Info("pushed")

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "pushed", entry["msg"])
	assert.Equal(t, "e-1", entry["entry_id"])
}
