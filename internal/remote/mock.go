package remote

import (
	"context"
	"sort"
	"sync"

	"github.com/moodiary/moodiary/internal/models"
)

// MockStore is an in-memory remote for tests. It reproduces the real
// remote's conflict semantics: the last record to arrive per id wins,
// regardless of its embedded updated_at.
type MockStore struct {
	mu      sync.Mutex
	records map[string]models.RemoteRecord

	// PushLog records every upserted id in arrival order.
	PushLog []string

	// UpsertCalls counts UpsertMany invocations.
	UpsertCalls int

	// FailUpsertAfter, when >= 0, makes UpsertMany fail with
	// FailUpsertWith once that many calls have succeeded.
	FailUpsertAfter int
	FailUpsertWith  error

	// FailFetchWith, when set, is returned by FetchChangedSince.
	FailFetchWith error

	// Barrier, when set, is closed-waited at the start of UpsertMany;
	// tests use it to hold a cycle in its push phase.
	Barrier chan struct{}
}

// NewMockStore creates an empty mock remote.
func NewMockStore() *MockStore {
	return &MockStore{
		records:         make(map[string]models.RemoteRecord),
		FailUpsertAfter: -1,
	}
}

func (m *MockStore) UpsertMany(ctx context.Context, records []models.RemoteRecord) error {
	if m.Barrier != nil {
		select {
		case <-m.Barrier:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailUpsertAfter >= 0 && m.UpsertCalls >= m.FailUpsertAfter {
		return m.FailUpsertWith
	}
	m.UpsertCalls++

	for _, rec := range records {
		m.records[rec.ID] = rec
		m.PushLog = append(m.PushLog, rec.ID)
	}
	return nil
}

func (m *MockStore) FetchChangedSince(ctx context.Context, since models.Checkpoint) ([]models.RemoteRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailFetchWith != nil {
		return nil, m.FailFetchWith
	}

	var out []models.RemoteRecord
	for _, rec := range m.records {
		if rec.UpdatedAt.After(since.Time()) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out, nil
}

// Record returns the stored record for an id, if any.
func (m *MockStore) Record(id string) (models.RemoteRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	return rec, ok
}

// Put stores a record directly, simulating another device's push.
func (m *MockStore) Put(rec models.RemoteRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.ID] = rec
	m.PushLog = append(m.PushLog, rec.ID)
}

// Len returns the number of stored records.
func (m *MockStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

var _ Store = (*MockStore)(nil)
