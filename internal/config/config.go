package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Remote store endpoint
	API APIConfig `json:"api"`

	// Local persistence paths
	Storage StorageConfig `json:"storage"`

	// Sync behavior
	Sync SyncConfig `json:"sync"`

	// Logging
	Log LogConfig `json:"log"`
}

// APIConfig for the remote entry store.
type APIConfig struct {
	BaseURL    string        `json:"base_url"`
	AnonKey    string        `json:"anon_key"` // project API key sent alongside the user token
	Timeout    time.Duration `json:"timeout"`
	MaxRetries int           `json:"max_retries"`
	UserAgent  string        `json:"user_agent"`
}

// StorageConfig for local file paths.
type StorageConfig struct {
	DataDir     string `json:"data_dir"`
	DBFile      string `json:"db_file"`      // SQLite database holding entries and the checkpoint
	SessionFile string `json:"session_file"` // persisted auth session
}

// SyncConfig for synchronization behavior.
type SyncConfig struct {
	Interval      time.Duration `json:"interval"`        // periodic cycle trigger
	PushBatchSize int           `json:"push_batch_size"` // entries per upsert request
	Realtime      bool          `json:"realtime"`        // websocket change-feed triggers
}

// LogConfig for logging behavior.
type LogConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // text, json
	File   string `json:"file"`   // log file path (empty = stderr)
}

// DefaultConfig returns config with sensible defaults.
func DefaultConfig() *Config {
	dataDir := ".moodiary"

	return &Config{
		API: APIConfig{
			Timeout:    30 * time.Second,
			MaxRetries: 3,
			UserAgent:  "moodiary-go/1.0",
		},
		Storage: StorageConfig{
			DataDir:     dataDir,
			DBFile:      filepath.Join(dataDir, "diary.db"),
			SessionFile: filepath.Join(dataDir, "session.json"),
		},
		Sync: SyncConfig{
			Interval:      5 * time.Minute,
			PushBatchSize: 50,
			Realtime:      true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}

	if c.API.Timeout <= 0 {
		return errors.New("api.timeout must be positive")
	}

	if c.Storage.DBFile == "" {
		return errors.New("storage.db_file is required")
	}

	if c.Sync.Interval <= 0 {
		return errors.New("sync.interval must be positive")
	}

	if c.Sync.PushBatchSize <= 0 {
		return errors.New("sync.push_batch_size must be positive")
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		return fmt.Errorf("invalid log format: %s", c.Log.Format)
	}

	return nil
}

// EnsureDirectories creates required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDir,
		filepath.Dir(c.Storage.DBFile),
		filepath.Dir(c.Storage.SessionFile),
	}

	if c.Log.File != "" {
		dirs = append(dirs, filepath.Dir(c.Log.File))
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return nil
}
