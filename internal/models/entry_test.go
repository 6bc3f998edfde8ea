package models_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moodiary/moodiary/internal/models"
)

func TestMoodOrdering(t *testing.T) {
	assert.Equal(t, 0, models.MoodTerrible.Rank())
	assert.Equal(t, 4, models.MoodAmazing.Rank())
	assert.Equal(t, -1, models.Mood("ecstatic").Rank())

	for _, m := range models.Moods {
		assert.True(t, m.Valid(), "mood %q should be valid", m)
	}
	assert.False(t, models.Mood("").Valid())
}

func TestNewEntry(t *testing.T) {
	e := models.NewEntry("2026-08-30")

	require.NotEmpty(t, e.ID)
	assert.Equal(t, "2026-08-30", e.Date)
	assert.Equal(t, models.MoodOkay, e.Mood)
	assert.False(t, e.Synced)
	assert.Equal(t, e.CreatedAt, e.UpdatedAt)
	require.NoError(t, e.Validate())

	other := models.NewEntry("2026-08-30")
	assert.NotEqual(t, e.ID, other.ID, "ids must be unique per entry")
}

func TestEntryTouch(t *testing.T) {
	e := models.NewEntry("2026-08-30")
	e.Synced = true
	before := e.UpdatedAt

	time.Sleep(2 * time.Millisecond)
	e.Touch()

	assert.False(t, e.Synced)
	assert.True(t, e.UpdatedAt.After(before), "Touch must advance updated_at")
}

func TestEntryValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.DiaryEntry)
		ok     bool
	}{
		{"valid", func(e *models.DiaryEntry) {}, true},
		{"missing id", func(e *models.DiaryEntry) { e.ID = "" }, false},
		{"bad date", func(e *models.DiaryEntry) { e.Date = "30/08/2026" }, false},
		{"bad mood", func(e *models.DiaryEntry) { e.Mood = "meh" }, false},
		{"updated before created", func(e *models.DiaryEntry) {
			e.UpdatedAt = e.CreatedAt.Add(-time.Hour)
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := models.NewEntry("2026-08-30")
			tt.mutate(e)
			err := e.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestEntryClone(t *testing.T) {
	e := models.NewEntry("2026-08-30")
	e.Tags = []string{"travel", "food"}
	e.Photos = []models.Photo{models.NewPhoto("aGVsbG8=", "lunch")}
	e.Weather = &models.Weather{Temperature: 28, Condition: "sunny", Icon: "☀️"}
	e.Location = &models.Location{City: "Taipei", Coords: &models.Coords{Lat: 25.03, Lng: 121.56}}

	clone := e.Clone()
	require.Equal(t, e, clone)

	clone.Tags[0] = "changed"
	clone.Weather.Temperature = -5
	clone.Location.Coords.Lat = 0

	assert.Equal(t, "travel", e.Tags[0])
	assert.Equal(t, 28, e.Weather.Temperature)
	assert.Equal(t, 25.03, e.Location.Coords.Lat)
}

func TestRecordRoundTrip(t *testing.T) {
	e := models.NewEntry("2026-08-30")
	e.Title = "a good day"
	e.Content = "long walk by the river"
	e.Mood = models.MoodGood
	e.MoodNote = "calm"
	e.Tags = []string{"walk"}
	e.Synced = true

	rec := e.Record("user-1")
	assert.Equal(t, "user-1", rec.UserID)
	assert.Equal(t, e.UpdatedAt, rec.UpdatedAt)

	back := rec.Entry()
	assert.False(t, back.Synced, "wire form carries no local-only state")
	back.Synced = true
	assert.Equal(t, e, back)
}

func TestRecordEntryNilSlices(t *testing.T) {
	back := models.RemoteRecord{ID: "e1", Date: "2026-08-30", Mood: models.MoodOkay}.Entry()
	assert.NotNil(t, back.Tags)
	assert.NotNil(t, back.Photos)
}

func TestCheckpoint(t *testing.T) {
	assert.True(t, models.Checkpoint(0).IsZero())
	assert.True(t, models.Checkpoint(-1).IsZero())

	now := time.Now().UTC().Truncate(time.Millisecond)
	cp := models.CheckpointAt(now)
	assert.False(t, cp.IsZero())
	assert.Equal(t, now, cp.Time())
}
