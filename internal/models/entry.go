package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Mood is one of five ordered mood values.
type Mood string

const (
	MoodTerrible Mood = "terrible"
	MoodBad      Mood = "bad"
	MoodOkay     Mood = "okay"
	MoodGood     Mood = "good"
	MoodAmazing  Mood = "amazing"
)

// Moods lists all valid moods from worst to best.
var Moods = []Mood{MoodTerrible, MoodBad, MoodOkay, MoodGood, MoodAmazing}

// Valid reports whether m is a known mood.
func (m Mood) Valid() bool {
	switch m {
	case MoodTerrible, MoodBad, MoodOkay, MoodGood, MoodAmazing:
		return true
	}
	return false
}

// Rank returns the mood's position in the ordered scale, 0 (terrible)
// through 4 (amazing). Unknown moods rank -1.
func (m Mood) Rank() int {
	for i, known := range Moods {
		if m == known {
			return i
		}
	}
	return -1
}

// Photo is an image embedded in an entry.
type Photo struct {
	ID      string `json:"id"`
	Data    string `json:"data"` // base64-encoded image bytes
	Caption string `json:"caption,omitempty"`
}

// Weather is a denormalized snapshot captured when the entry was
// created. It is never re-fetched during sync.
type Weather struct {
	Temperature int    `json:"temperature"`
	Condition   string `json:"condition"`
	Icon        string `json:"icon"`
}

// Coords is a latitude/longitude pair.
type Coords struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Location is a denormalized place snapshot captured at creation time.
type Location struct {
	City    string  `json:"city,omitempty"`
	Country string  `json:"country,omitempty"`
	Coords  *Coords `json:"coords,omitempty"`
}

// DiaryEntry is the synchronized unit. The ID is client-generated,
// globally unique, and immutable; it is the conflict-resolution key
// across devices.
//
// Synced is local-only state: false means the entry has mutations not
// yet acknowledged by the remote.
type DiaryEntry struct {
	ID      string `json:"id"`
	Date    string `json:"date"` // YYYY-MM-DD
	Title   string `json:"title"`
	Content string `json:"content"`

	Mood     Mood   `json:"mood"`
	MoodNote string `json:"mood_note,omitempty"`

	Tags   []string `json:"tags"`   // insertion order kept for display
	Photos []Photo  `json:"photos"` // ordered

	Weather  *Weather  `json:"weather,omitempty"`
	Location *Location `json:"location,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Synced bool `json:"-"`
}

// DateLayout is the calendar-day format for DiaryEntry.Date.
const DateLayout = "2006-01-02"

// NewEntry creates a dirty entry for the given calendar day.
func NewEntry(date string) *DiaryEntry {
	now := time.Now().UTC()
	return &DiaryEntry{
		ID:        uuid.NewString(),
		Date:      date,
		Mood:      MoodOkay,
		Tags:      []string{},
		Photos:    []Photo{},
		CreatedAt: now,
		UpdatedAt: now,
		Synced:    false,
	}
}

// NewPhoto creates a photo with a generated id.
func NewPhoto(data, caption string) Photo {
	return Photo{ID: uuid.NewString(), Data: data, Caption: caption}
}

// Touch refreshes UpdatedAt and marks the entry dirty. Every local
// mutation must go through this before persisting.
func (e *DiaryEntry) Touch() {
	e.UpdatedAt = time.Now().UTC()
	e.Synced = false
}

// Validate checks structural validity before persisting or pushing.
func (e *DiaryEntry) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return fmt.Errorf("entry id is required")
	}
	if _, err := time.Parse(DateLayout, e.Date); err != nil {
		return fmt.Errorf("entry date %q: want YYYY-MM-DD", e.Date)
	}
	if !e.Mood.Valid() {
		return fmt.Errorf("unknown mood %q", e.Mood)
	}
	if e.UpdatedAt.Before(e.CreatedAt) {
		return fmt.Errorf("updated_at precedes created_at")
	}
	return nil
}

// HasTag reports whether the entry carries the given tag.
func (e *DiaryEntry) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (e *DiaryEntry) Clone() *DiaryEntry {
	clone := *e
	clone.Tags = append([]string(nil), e.Tags...)
	clone.Photos = append([]Photo(nil), e.Photos...)
	if e.Weather != nil {
		w := *e.Weather
		clone.Weather = &w
	}
	if e.Location != nil {
		l := *e.Location
		if e.Location.Coords != nil {
			c := *e.Location.Coords
			l.Coords = &c
		}
		clone.Location = &l
	}
	return &clone
}

// SyncStamp identifies a pushed revision of an entry. MarkSynced uses
// it as a compare-and-set guard: the dirty flag is only cleared if the
// entry still carries the pushed UpdatedAt.
type SyncStamp struct {
	ID        string
	UpdatedAt time.Time
}

// Stamp captures the entry's current revision for MarkSynced.
func (e *DiaryEntry) Stamp() SyncStamp {
	return SyncStamp{ID: e.ID, UpdatedAt: e.UpdatedAt}
}

// RemoteRecord is the flat wire representation of an entry. Upserts are
// keyed on ID; UpdatedAt is serialized as RFC 3339.
type RemoteRecord struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Date      string    `json:"date"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Mood      Mood      `json:"mood"`
	MoodNote  string    `json:"mood_note,omitempty"`
	Tags      []string  `json:"tags"`
	Photos    []Photo   `json:"photos"`
	Weather   *Weather  `json:"weather"`
	Location  *Location `json:"location"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Record converts the entry to its wire form for the given user
// partition.
func (e *DiaryEntry) Record(userID string) RemoteRecord {
	return RemoteRecord{
		ID:        e.ID,
		UserID:    userID,
		Date:      e.Date,
		Title:     e.Title,
		Content:   e.Content,
		Mood:      e.Mood,
		MoodNote:  e.MoodNote,
		Tags:      e.Tags,
		Photos:    e.Photos,
		Weather:   e.Weather,
		Location:  e.Location,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

// Entry converts a pulled record back to a local entry. Remote-sourced
// writes are trusted as-is; timestamps are not adjusted. Synced is left
// false here because the local store sets it when applying the write.
func (r RemoteRecord) Entry() *DiaryEntry {
	tags := r.Tags
	if tags == nil {
		tags = []string{}
	}
	photos := r.Photos
	if photos == nil {
		photos = []Photo{}
	}
	return &DiaryEntry{
		ID:        r.ID,
		Date:      r.Date,
		Title:     r.Title,
		Content:   r.Content,
		Mood:      r.Mood,
		MoodNote:  r.MoodNote,
		Tags:      tags,
		Photos:    photos,
		Weather:   r.Weather,
		Location:  r.Location,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}
