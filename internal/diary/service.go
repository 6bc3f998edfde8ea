package diary

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/moodiary/moodiary/internal/events"
	"github.com/moodiary/moodiary/internal/models"
	"github.com/moodiary/moodiary/internal/store"
)

// Draft carries the user-editable fields of an entry. The editing
// path applies a draft to the day's entry, creating it if needed.
type Draft struct {
	Title    string
	Content  string
	Mood     models.Mood
	MoodNote string
	Tags     []string
	Photos   []models.Photo
}

// Query filters entries. Zero-value fields do not filter.
type Query struct {
	Text string      // matched against title, content and mood note
	Mood models.Mood // exact match
	Tag  string      // exact match
}

// Stats summarizes the local journal.
type Stats struct {
	Entries int                 `json:"entries"`
	Photos  int                 `json:"photos"`
	ByMood  map[models.Mood]int `json:"by_mood"`
	Pending int                 `json:"pending"` // entries not yet pushed
}

// Service is the user-editing path. All writes go through it so that
// every local mutation lands in the store dirty, ready for the next
// push.
type Service struct {
	store    store.Store
	weather  WeatherProvider
	location LocationProvider
	logger   *events.Logger
}

// NewService creates the editing service. The weather and location
// providers may be nil; new entries then skip that enrichment.
func NewService(st store.Store, weather WeatherProvider, location LocationProvider, logger *events.Logger) *Service {
	return &Service{
		store:    st,
		weather:  weather,
		location: location,
		logger:   logger.WithField("component", "diary"),
	}
}

// SaveForDate applies a draft to the entry for the given calendar
// day. The day's entry is created on first write; later writes update
// it in place, keeping its id and creation-time snapshots.
func (s *Service) SaveForDate(ctx context.Context, date string, draft Draft) (*models.DiaryEntry, error) {
	if _, err := time.Parse(models.DateLayout, date); err != nil {
		return nil, &models.ValidationError{Message: fmt.Sprintf("invalid date %q: want YYYY-MM-DD", date)}
	}

	entry, err := s.store.EntryByDate(ctx, date)
	switch {
	case err == nil:
		// Update in place.
	case errors.Is(err, models.ErrEntryNotFound):
		entry = models.NewEntry(date)
		s.enrich(ctx, entry)
	default:
		return nil, err
	}

	entry.Title = draft.Title
	entry.Content = draft.Content
	if draft.Mood != "" {
		entry.Mood = draft.Mood
	}
	entry.MoodNote = draft.MoodNote
	entry.Tags = normalizeTags(draft.Tags)
	if draft.Photos != nil {
		entry.Photos = draft.Photos
	}
	entry.Touch()

	if err := entry.Validate(); err != nil {
		return nil, &models.ValidationError{Message: err.Error()}
	}
	if err := s.store.SaveEntry(ctx, entry); err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"entry_id": entry.ID,
		"date":     entry.Date,
	}).Debug("Entry saved")
	return entry, nil
}

// AddPhoto appends a photo to an existing entry.
func (s *Service) AddPhoto(ctx context.Context, entryID, data, caption string) (*models.DiaryEntry, error) {
	entry, err := s.store.Entry(ctx, entryID)
	if err != nil {
		return nil, err
	}

	entry.Photos = append(entry.Photos, models.NewPhoto(data, caption))
	entry.Touch()

	if err := entry.Validate(); err != nil {
		return nil, &models.ValidationError{Message: err.Error()}
	}
	if err := s.store.SaveEntry(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// Delete removes an entry from the device. Deletion never propagates
// to the remote; a later pull can resurrect the entry.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteEntry(ctx, id); err != nil {
		return err
	}
	s.logger.WithField("entry_id", id).Debug("Entry deleted locally")
	return nil
}

// Entry returns the entry with the given id.
func (s *Service) Entry(ctx context.Context, id string) (*models.DiaryEntry, error) {
	return s.store.Entry(ctx, id)
}

// EntryByDate returns the entry for a calendar day.
func (s *Service) EntryByDate(ctx context.Context, date string) (*models.DiaryEntry, error) {
	return s.store.EntryByDate(ctx, date)
}

// Recent returns up to n entries, newest first. n <= 0 returns all.
func (s *Service) Recent(ctx context.Context, n int) ([]*models.DiaryEntry, error) {
	entries, err := s.store.ListEntries(ctx)
	if err != nil {
		return nil, err
	}
	if n > 0 && len(entries) > n {
		entries = entries[:n]
	}
	return entries, nil
}

// Month returns the entries of a calendar month, ascending by date.
func (s *Service) Month(ctx context.Context, year int, month time.Month) ([]*models.DiaryEntry, error) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return s.store.EntriesByDateRange(ctx, first.Format(models.DateLayout), last.Format(models.DateLayout))
}

// Search returns entries matching the query, newest first.
func (s *Service) Search(ctx context.Context, q Query) ([]*models.DiaryEntry, error) {
	entries, err := s.candidates(ctx, q)
	if err != nil {
		return nil, err
	}

	text := strings.ToLower(strings.TrimSpace(q.Text))
	var matched []*models.DiaryEntry
	for _, entry := range entries {
		if q.Mood != "" && entry.Mood != q.Mood {
			continue
		}
		if q.Tag != "" && !entry.HasTag(q.Tag) {
			continue
		}
		if text != "" && !matchesText(entry, text) {
			continue
		}
		matched = append(matched, entry)
	}
	return matched, nil
}

// candidates picks the narrowest store query for the filter, leaving
// the rest to in-memory matching.
func (s *Service) candidates(ctx context.Context, q Query) ([]*models.DiaryEntry, error) {
	switch {
	case q.Tag != "":
		return s.store.EntriesByTag(ctx, q.Tag)
	case q.Mood != "":
		return s.store.EntriesByMood(ctx, q.Mood)
	default:
		return s.store.ListEntries(ctx)
	}
}

// TagCounts returns every tag in use with its entry count.
func (s *Service) TagCounts(ctx context.Context) (map[string]int, error) {
	entries, err := s.store.ListEntries(ctx)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, entry := range entries {
		for _, tag := range entry.Tags {
			counts[tag]++
		}
	}
	return counts, nil
}

// Stats summarizes the journal for the status surface.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	entries, err := s.store.ListEntries(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Stats{ByMood: make(map[models.Mood]int)}
	for _, entry := range entries {
		stats.Entries++
		stats.Photos += len(entry.Photos)
		stats.ByMood[entry.Mood]++
		if !entry.Synced {
			stats.Pending++
		}
	}
	return stats, nil
}

// enrich captures the weather and location snapshots for a brand-new
// entry. Provider failures are logged and skipped; an entry without
// snapshots is fine.
func (s *Service) enrich(ctx context.Context, entry *models.DiaryEntry) {
	if s.weather != nil {
		if w, err := s.weather.CurrentWeather(ctx); err != nil {
			s.logger.WithError(err).Debug("Weather enrichment skipped")
		} else {
			entry.Weather = w
		}
	}
	if s.location != nil {
		if loc, err := s.location.CurrentLocation(ctx); err != nil {
			s.logger.WithError(err).Debug("Location enrichment skipped")
		} else {
			entry.Location = loc
		}
	}
}

// normalizeTags trims, lowercases and dedupes while keeping first-seen
// order.
func normalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := []string{}
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}

func matchesText(entry *models.DiaryEntry, text string) bool {
	return strings.Contains(strings.ToLower(entry.Title), text) ||
		strings.Contains(strings.ToLower(entry.Content), text) ||
		strings.Contains(strings.ToLower(entry.MoodNote), text)
}
