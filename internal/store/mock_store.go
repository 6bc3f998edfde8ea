package store

import (
	"context"
	"sort"
	"sync"

	"github.com/moodiary/moodiary/internal/models"
)

// MockStore is an in-memory Store for tests.
type MockStore struct {
	mu         sync.RWMutex
	entries    map[string]*models.DiaryEntry
	checkpoint models.Checkpoint
	hasCP      bool

	// FailWith, when set, is returned by every mutating operation to
	// simulate local storage failure.
	FailWith error
}

// NewMockStore creates an empty in-memory store.
func NewMockStore() *MockStore {
	return &MockStore{entries: make(map[string]*models.DiaryEntry)}
}

func (m *MockStore) SaveEntry(ctx context.Context, entry *models.DiaryEntry) error {
	if m.FailWith != nil {
		return m.FailWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entry.ID] = entry.Clone()
	return nil
}

func (m *MockStore) Entry(ctx context.Context, id string) (*models.DiaryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.entries[id]; ok {
		return e.Clone(), nil
	}
	return nil, models.ErrEntryNotFound
}

func (m *MockStore) EntryByDate(ctx context.Context, date string) (*models.DiaryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var found *models.DiaryEntry
	for _, e := range m.entries {
		if e.Date != date {
			continue
		}
		if found == nil || e.CreatedAt.Before(found.CreatedAt) {
			found = e
		}
	}
	if found == nil {
		return nil, models.ErrEntryNotFound
	}
	return found.Clone(), nil
}

func (m *MockStore) ListEntries(ctx context.Context) ([]*models.DiaryEntry, error) {
	entries := m.filter(func(e *models.DiaryEntry) bool { return true })
	sort.Slice(entries, func(i, j int) bool { return entries[i].Date > entries[j].Date })
	return entries, nil
}

func (m *MockStore) EntriesByDateRange(ctx context.Context, from, to string) ([]*models.DiaryEntry, error) {
	entries := m.filter(func(e *models.DiaryEntry) bool { return e.Date >= from && e.Date <= to })
	sort.Slice(entries, func(i, j int) bool { return entries[i].Date < entries[j].Date })
	return entries, nil
}

func (m *MockStore) EntriesByMood(ctx context.Context, mood models.Mood) ([]*models.DiaryEntry, error) {
	return m.filter(func(e *models.DiaryEntry) bool { return e.Mood == mood }), nil
}

func (m *MockStore) EntriesByTag(ctx context.Context, tag string) ([]*models.DiaryEntry, error) {
	return m.filter(func(e *models.DiaryEntry) bool { return e.HasTag(tag) }), nil
}

func (m *MockStore) DeleteEntry(ctx context.Context, id string) error {
	if m.FailWith != nil {
		return m.FailWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[id]; !ok {
		return models.ErrEntryNotFound
	}
	delete(m.entries, id)
	return nil
}

func (m *MockStore) DirtyEntries(ctx context.Context) ([]*models.DiaryEntry, error) {
	return m.filter(func(e *models.DiaryEntry) bool { return !e.Synced }), nil
}

func (m *MockStore) MarkSynced(ctx context.Context, stamps []models.SyncStamp) error {
	if m.FailWith != nil {
		return m.FailWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, stamp := range stamps {
		e, ok := m.entries[stamp.ID]
		if !ok {
			continue
		}
		// Compare-and-set: an edit after the stamp keeps the entry dirty.
		if e.UpdatedAt.Equal(stamp.UpdatedAt) {
			e.Synced = true
		}
	}
	return nil
}

func (m *MockStore) UpsertFromRemote(ctx context.Context, entry *models.DiaryEntry) error {
	if m.FailWith != nil {
		return m.FailWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := entry.Clone()
	clone.Synced = true
	m.entries[clone.ID] = clone
	return nil
}

func (m *MockStore) Checkpoint(ctx context.Context) (models.Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.hasCP {
		return 0, models.ErrCheckpointNotSet
	}
	return m.checkpoint, nil
}

func (m *MockStore) SetCheckpoint(ctx context.Context, cp models.Checkpoint) error {
	if m.FailWith != nil {
		return m.FailWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkpoint = cp
	m.hasCP = true
	return nil
}

func (m *MockStore) Close() error { return nil }

func (m *MockStore) filter(keep func(*models.DiaryEntry) bool) []*models.DiaryEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.DiaryEntry
	for _, e := range m.entries {
		if keep(e) {
			out = append(out, e.Clone())
		}
	}
	return out
}
