package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/moodiary/moodiary/internal/events"
	"github.com/moodiary/moodiary/internal/models"
)

// SQLiteStore implements Store on a local SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	logger *events.Logger
}

// NewSQLiteStore opens (and if needed creates) the local database.
func NewSQLiteStore(dbPath string, logger *events.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_timeout=5000&_fk=on")
	if err != nil {
		return nil, &models.StorageError{Op: "open", Err: err}
	}

	store := &SQLiteStore{
		db:     db,
		logger: logger.WithField("component", "sqlite_store"),
	}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
    CREATE TABLE IF NOT EXISTS entries (
        id TEXT PRIMARY KEY,
        date TEXT NOT NULL,
        title TEXT NOT NULL DEFAULT '',
        content TEXT NOT NULL DEFAULT '',
        mood TEXT NOT NULL,
        mood_note TEXT NOT NULL DEFAULT '',
        tags TEXT NOT NULL DEFAULT '[]',
        photos TEXT NOT NULL DEFAULT '[]',
        weather TEXT,
        location TEXT,
        created_at INTEGER NOT NULL,
        updated_at INTEGER NOT NULL,
        synced INTEGER NOT NULL DEFAULT 0
    );

    CREATE INDEX IF NOT EXISTS idx_entries_date ON entries(date);
    CREATE INDEX IF NOT EXISTS idx_entries_mood ON entries(mood);
    CREATE INDEX IF NOT EXISTS idx_entries_created_at ON entries(created_at);
    CREATE INDEX IF NOT EXISTS idx_entries_synced ON entries(synced);

    CREATE TABLE IF NOT EXISTS entry_tags (
        entry_id TEXT NOT NULL,
        tag TEXT NOT NULL,
        PRIMARY KEY (entry_id, tag),
        FOREIGN KEY (entry_id) REFERENCES entries(id) ON DELETE CASCADE
    );

    CREATE INDEX IF NOT EXISTS idx_entry_tags_tag ON entry_tags(tag);

    CREATE TABLE IF NOT EXISTS sync_state (
        id TEXT PRIMARY KEY,
        timestamp INTEGER NOT NULL
    );
    `

	if _, err := s.db.Exec(schema); err != nil {
		return &models.StorageError{Op: "create schema", Err: err}
	}

	return nil
}

const entryColumns = `id, date, title, content, mood, mood_note, tags, photos, weather, location, created_at, updated_at, synced`

// SaveEntry writes an editor-saved entry.
func (s *SQLiteStore) SaveEntry(ctx context.Context, entry *models.DiaryEntry) error {
	return s.upsert(ctx, entry, entry.Synced)
}

// UpsertFromRemote writes a pulled entry with synced=1, overwriting
// whatever the local store holds for that id.
func (s *SQLiteStore) UpsertFromRemote(ctx context.Context, entry *models.DiaryEntry) error {
	return s.upsert(ctx, entry, true)
}

func (s *SQLiteStore) upsert(ctx context.Context, entry *models.DiaryEntry, synced bool) error {
	tags, err := json.Marshal(entry.Tags)
	if err != nil {
		return &models.StorageError{Op: "encode tags", Err: err}
	}
	photos, err := json.Marshal(entry.Photos)
	if err != nil {
		return &models.StorageError{Op: "encode photos", Err: err}
	}

	var weather, location sql.NullString
	if entry.Weather != nil {
		data, err := json.Marshal(entry.Weather)
		if err != nil {
			return &models.StorageError{Op: "encode weather", Err: err}
		}
		weather = sql.NullString{String: string(data), Valid: true}
	}
	if entry.Location != nil {
		data, err := json.Marshal(entry.Location)
		if err != nil {
			return &models.StorageError{Op: "encode location", Err: err}
		}
		location = sql.NullString{String: string(data), Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &models.StorageError{Op: "begin", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
        INSERT INTO entries (id, date, title, content, mood, mood_note, tags, photos, weather, location, created_at, updated_at, synced)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            date = excluded.date,
            title = excluded.title,
            content = excluded.content,
            mood = excluded.mood,
            mood_note = excluded.mood_note,
            tags = excluded.tags,
            photos = excluded.photos,
            weather = excluded.weather,
            location = excluded.location,
            created_at = excluded.created_at,
            updated_at = excluded.updated_at,
            synced = excluded.synced
    `, entry.ID, entry.Date, entry.Title, entry.Content, string(entry.Mood), entry.MoodNote,
		string(tags), string(photos), weather, location,
		entry.CreatedAt.UnixMilli(), entry.UpdatedAt.UnixMilli(), boolToInt(synced))
	if err != nil {
		return &models.StorageError{Op: "upsert entry", Err: err}
	}

	// Rebuild the multi-valued tag index for this entry.
	if _, err := tx.ExecContext(ctx, `DELETE FROM entry_tags WHERE entry_id = ?`, entry.ID); err != nil {
		return &models.StorageError{Op: "clear tag index", Err: err}
	}
	for _, tag := range entry.Tags {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO entry_tags (entry_id, tag) VALUES (?, ?)`, entry.ID, tag); err != nil {
			return &models.StorageError{Op: "index tag", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &models.StorageError{Op: "commit", Err: err}
	}
	return nil
}

// Entry returns the entry with the given id.
func (s *SQLiteStore) Entry(ctx context.Context, id string) (*models.DiaryEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE id = ?`, id)
	return scanEntry(row)
}

// EntryByDate returns the entry for a calendar day.
func (s *SQLiteStore) EntryByDate(ctx context.Context, date string) (*models.DiaryEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE date = ? ORDER BY created_at ASC LIMIT 1`, date)
	return scanEntry(row)
}

// ListEntries returns all entries, newest date first.
func (s *SQLiteStore) ListEntries(ctx context.Context) ([]*models.DiaryEntry, error) {
	return s.queryEntries(ctx,
		`SELECT `+entryColumns+` FROM entries ORDER BY date DESC, created_at DESC`)
}

// EntriesByDateRange returns entries with from <= date <= to.
func (s *SQLiteStore) EntriesByDateRange(ctx context.Context, from, to string) ([]*models.DiaryEntry, error) {
	return s.queryEntries(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE date >= ? AND date <= ? ORDER BY date ASC`, from, to)
}

// EntriesByMood returns entries with the given mood.
func (s *SQLiteStore) EntriesByMood(ctx context.Context, mood models.Mood) ([]*models.DiaryEntry, error) {
	return s.queryEntries(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE mood = ? ORDER BY date DESC`, string(mood))
}

// EntriesByTag returns entries carrying the given tag.
func (s *SQLiteStore) EntriesByTag(ctx context.Context, tag string) ([]*models.DiaryEntry, error) {
	return s.queryEntries(ctx, `
        SELECT `+entryColumns+` FROM entries
        WHERE id IN (SELECT entry_id FROM entry_tags WHERE tag = ?)
        ORDER BY date DESC`, tag)
}

// DeleteEntry removes an entry locally.
func (s *SQLiteStore) DeleteEntry(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id)
	if err != nil {
		return &models.StorageError{Op: "delete entry", Err: err}
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return models.ErrEntryNotFound
	}
	return nil
}

// DirtyEntries returns all entries with unpushed mutations.
func (s *SQLiteStore) DirtyEntries(ctx context.Context) ([]*models.DiaryEntry, error) {
	return s.queryEntries(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE synced = 0`)
}

// MarkSynced clears the dirty flag for the stamped revisions only. The
// updated_at guard keeps an entry dirty if it was edited during the
// push round-trip.
func (s *SQLiteStore) MarkSynced(ctx context.Context, stamps []models.SyncStamp) error {
	if len(stamps) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &models.StorageError{Op: "begin", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`UPDATE entries SET synced = 1 WHERE id = ? AND updated_at = ?`)
	if err != nil {
		return &models.StorageError{Op: "prepare mark synced", Err: err}
	}
	defer stmt.Close()

	for _, stamp := range stamps {
		if _, err := stmt.ExecContext(ctx, stamp.ID, stamp.UpdatedAt.UnixMilli()); err != nil {
			return &models.StorageError{Op: "mark synced", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &models.StorageError{Op: "commit", Err: err}
	}
	return nil
}

// Checkpoint returns the sync watermark.
func (s *SQLiteStore) Checkpoint(ctx context.Context) (models.Checkpoint, error) {
	var ts int64
	err := s.db.QueryRowContext(ctx,
		`SELECT timestamp FROM sync_state WHERE id = ?`, models.CheckpointKey).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, models.ErrCheckpointNotSet
	}
	if err != nil {
		return 0, &models.StorageError{Op: "read checkpoint", Err: err}
	}
	return models.Checkpoint(ts), nil
}

// SetCheckpoint atomically overwrites the singleton watermark.
func (s *SQLiteStore) SetCheckpoint(ctx context.Context, cp models.Checkpoint) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO sync_state (id, timestamp) VALUES (?, ?)
        ON CONFLICT(id) DO UPDATE SET timestamp = excluded.timestamp
    `, models.CheckpointKey, int64(cp))
	if err != nil {
		return &models.StorageError{Op: "set checkpoint", Err: err}
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) queryEntries(ctx context.Context, query string, args ...interface{}) ([]*models.DiaryEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &models.StorageError{Op: "query entries", Err: err}
	}
	defer rows.Close()

	var entries []*models.DiaryEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, &models.StorageError{Op: "iterate entries", Err: err}
	}
	return entries, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row rowScanner) (*models.DiaryEntry, error) {
	var (
		entry              models.DiaryEntry
		mood               string
		tags, photos       string
		weather, location  sql.NullString
		createdAt, updated int64
		synced             int
	)

	err := row.Scan(&entry.ID, &entry.Date, &entry.Title, &entry.Content, &mood, &entry.MoodNote,
		&tags, &photos, &weather, &location, &createdAt, &updated, &synced)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrEntryNotFound
	}
	if err != nil {
		return nil, &models.StorageError{Op: "scan entry", Err: err}
	}

	entry.Mood = models.Mood(mood)
	entry.CreatedAt = time.UnixMilli(createdAt).UTC()
	entry.UpdatedAt = time.UnixMilli(updated).UTC()
	entry.Synced = synced == 1

	if err := json.Unmarshal([]byte(tags), &entry.Tags); err != nil {
		return nil, &models.StorageError{Op: "decode tags", Err: fmt.Errorf("entry %s: %w", entry.ID, err)}
	}
	if err := json.Unmarshal([]byte(photos), &entry.Photos); err != nil {
		return nil, &models.StorageError{Op: "decode photos", Err: fmt.Errorf("entry %s: %w", entry.ID, err)}
	}
	if weather.Valid {
		if err := json.Unmarshal([]byte(weather.String), &entry.Weather); err != nil {
			return nil, &models.StorageError{Op: "decode weather", Err: fmt.Errorf("entry %s: %w", entry.ID, err)}
		}
	}
	if location.Valid {
		if err := json.Unmarshal([]byte(location.String), &entry.Location); err != nil {
			return nil, &models.StorageError{Op: "decode location", Err: fmt.Errorf("entry %s: %w", entry.ID, err)}
		}
	}

	return &entry, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
