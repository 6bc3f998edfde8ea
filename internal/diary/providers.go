package diary

import (
	"context"

	"github.com/moodiary/moodiary/internal/models"
)

// WeatherProvider supplies the weather snapshot denormalized into a
// new entry. Enrichment happens once at creation; existing entries
// keep whatever was captured.
type WeatherProvider interface {
	CurrentWeather(ctx context.Context) (*models.Weather, error)
}

// LocationProvider supplies the place snapshot denormalized into a
// new entry.
type LocationProvider interface {
	CurrentLocation(ctx context.Context) (*models.Location, error)
}

// MoodAnalyzer suggests a mood from entry text. Advisory only; the
// user's explicit choice always wins.
type MoodAnalyzer interface {
	SuggestMood(ctx context.Context, text string) (models.Mood, error)
}
