package app

import (
	"context"
	"time"

	"github.com/hylla/draip/internal/domain"
)

// Location is the trip's search center.
type Location struct {
	City string  `json:"city"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// WeatherProvider returns the current normalized weather for a location.
type WeatherProvider interface {
	CurrentWeather(ctx context.Context, lat, lon float64) (domain.Weather, error)
}

// PlaceSearcher returns normalized candidate places around a location.
type PlaceSearcher interface {
	SearchPlaces(ctx context.Context, lat, lon float64, radiusM int) ([]domain.Candidate, error)
}

// AdvisorRequest is one structured prompt for the optional language model.
type AdvisorRequest struct {
	Kind   AdvisorKind
	System string
	Prompt string
}

// AdvisorKind distinguishes itinerary prompts from replan prompts.
type AdvisorKind string

// AdvisorItinerary and related constants name the advisor prompt kinds.
const (
	AdvisorItinerary AdvisorKind = "itinerary"
	AdvisorReplan    AdvisorKind = "replan"
)

// PlanAdvisor delegates a prompt to a language model and returns its raw text.
type PlanAdvisor interface {
	Complete(ctx context.Context, req AdvisorRequest) (string, error)
}

// AreaKey identifies one cached place-search area.
type AreaKey struct {
	Lat     float64
	Lon     float64
	RadiusM int
}

// PlaceCache stores place search results per area. GetPlaces returns
// ErrNotFound when the area is missing or older than maxAge; a zero maxAge
// accepts entries of any age.
type PlaceCache interface {
	GetPlaces(ctx context.Context, key AreaKey, maxAge time.Duration, now time.Time) ([]domain.Candidate, time.Time, error)
	PutPlaces(ctx context.Context, key AreaKey, places []domain.Candidate, fetchedAt time.Time) error
}

// Logger receives engine runtime events as key/value pairs.
type Logger interface {
	Debug(msg any, keyvals ...any)
	Info(msg any, keyvals ...any)
	Warn(msg any, keyvals ...any)
	Error(msg any, keyvals ...any)
}
