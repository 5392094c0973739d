// Package fixture serves weather and places from a TOML trip file so the
// engine can run without network services.
package fixture

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"sync"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/hylla/draip/internal/app"
	"github.com/hylla/draip/internal/domain"
)

//go:embed lisbon.toml
var lisbonTrip []byte

// File is the decoded trip fixture.
type File struct {
	Location LocationRecord `toml:"location"`
	Weather  WeatherRecord  `toml:"weather"`
	Places   []PlaceRecord  `toml:"places"`
}

// LocationRecord is the [location] table.
type LocationRecord struct {
	City string  `toml:"city"`
	Lat  float64 `toml:"lat"`
	Lon  float64 `toml:"lon"`
}

// WeatherRecord is the [weather] table. A WMO code fills condition and
// severity when they are left empty.
type WeatherRecord struct {
	Code          *int           `toml:"code"`
	Temperature   float64        `toml:"temperature"`
	Condition     string         `toml:"condition"`
	Precipitation float64        `toml:"precipitation"`
	WindSpeed     float64        `toml:"wind_speed"`
	UVIndex       float64        `toml:"uv_index"`
	IsRaining     bool           `toml:"is_raining"`
	Severity      *int           `toml:"severity"`
	Hourly        []HourlyRecord `toml:"hourly"`
}

// HourlyRecord is one [[weather.hourly]] entry.
type HourlyRecord struct {
	Hour          int     `toml:"hour"`
	Temperature   float64 `toml:"temperature"`
	PrecipProb    float64 `toml:"precip_prob"`
	Precipitation float64 `toml:"precipitation"`
	Condition     string  `toml:"condition"`
}

// PlaceRecord is one [[places]] entry. Missing cost and indoor values take
// the category defaults.
type PlaceRecord struct {
	ID                string   `toml:"id"`
	Name              string   `toml:"name"`
	Category          string   `toml:"category"`
	Rating            *float64 `toml:"rating"`
	DurationMin       int      `toml:"duration_min"`
	CostUSD           *float64 `toml:"cost_usd"`
	PriceLevel        int      `toml:"price_level"`
	IsIndoor          *bool    `toml:"is_indoor"`
	CrowdLevel        float64  `toml:"crowd_level"`
	DistanceFromPrevM float64  `toml:"distance_from_prev_m"`
	DistanceM         float64  `toml:"distance_m"`
	Address           string   `toml:"address"`
}

// Source implements app.WeatherProvider and app.PlaceSearcher over a fixture.
// File-backed sources re-read the file on every call.
type Source struct {
	path string
	data []byte

	mu    sync.Mutex
	calls int
}

// Open validates the fixture at path and returns a file-backed source.
func Open(path string) (*Source, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("fixture path is required")
	}
	s := &Source{path: path}
	if _, err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Default returns the built-in Lisbon trip.
func Default() *Source {
	return &Source{data: lisbonTrip}
}

// Path returns the backing file, or "" for the built-in trip.
func (s *Source) Path() string {
	return s.path
}

// Load reads and decodes the fixture.
func (s *Source) Load() (File, error) {
	content := s.data
	if s.path != "" {
		var err error
		content, err = os.ReadFile(s.path)
		if err != nil {
			return File{}, fmt.Errorf("read fixture: %w", err)
		}
	}
	var f File
	if err := toml.Unmarshal(content, &f); err != nil {
		return File{}, fmt.Errorf("decode fixture toml: %w", err)
	}
	if err := f.Validate(); err != nil {
		return File{}, err
	}
	return f, nil
}

// Validate checks the fixture's location and places.
func (f File) Validate() error {
	if strings.TrimSpace(f.Location.City) == "" {
		return errors.New("location.city is required")
	}
	if math.Abs(f.Location.Lat) > 90 || math.Abs(f.Location.Lon) > 180 {
		return fmt.Errorf("location %v,%v is out of range", f.Location.Lat, f.Location.Lon)
	}
	seen := map[string]struct{}{}
	for idx, p := range f.Places {
		c, err := p.Candidate()
		if err != nil {
			return fmt.Errorf("places[%d]: %w", idx, err)
		}
		if _, ok := seen[c.ID]; ok {
			return fmt.Errorf("places[%d].id is duplicated: %s", idx, c.ID)
		}
		seen[c.ID] = struct{}{}
	}
	return nil
}

// Location returns the fixture's trip location.
func (s *Source) Location() (app.Location, error) {
	f, err := s.Load()
	if err != nil {
		return app.Location{}, err
	}
	return app.Location{City: strings.TrimSpace(f.Location.City), Lat: f.Location.Lat, Lon: f.Location.Lon}, nil
}

// CurrentWeather implements app.WeatherProvider.
func (s *Source) CurrentWeather(ctx context.Context, _ float64, _ float64) (domain.Weather, error) {
	if err := ctx.Err(); err != nil {
		return domain.Weather{}, err
	}
	s.count()
	f, err := s.Load()
	if err != nil {
		return domain.Weather{}, err
	}
	return f.Weather.Weather(), nil
}

// SearchPlaces implements app.PlaceSearcher. Places with a distance beyond
// radiusM are left out.
func (s *Source) SearchPlaces(ctx context.Context, _ float64, _ float64, radiusM int) ([]domain.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.count()
	f, err := s.Load()
	if err != nil {
		return nil, err
	}
	out := make([]domain.Candidate, 0, len(f.Places))
	for _, p := range f.Places {
		if radiusM > 0 && p.DistanceM > float64(radiusM) {
			continue
		}
		c, err := p.Candidate()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Calls reports how many provider calls the source has served.
func (s *Source) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *Source) count() {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
}

// Weather converts the record into a normalized snapshot.
func (w WeatherRecord) Weather() domain.Weather {
	out := domain.Weather{
		Temperature:   w.Temperature,
		Condition:     strings.TrimSpace(w.Condition),
		Precipitation: w.Precipitation,
		WindSpeed:     w.WindSpeed,
		UVIndex:       w.UVIndex,
		IsRaining:     w.IsRaining,
	}
	if w.Code != nil {
		label, severity := domain.WMOCondition(*w.Code)
		if out.Condition == "" {
			out.Condition = label
		}
		out.Severity = severity
	}
	if w.Severity != nil {
		out.Severity = *w.Severity
	}
	for _, h := range w.Hourly {
		out.HourlyForecast = append(out.HourlyForecast, domain.HourlyForecast{
			Hour:          h.Hour,
			Temperature:   h.Temperature,
			PrecipProb:    h.PrecipProb,
			Precipitation: h.Precipitation,
			Condition:     strings.TrimSpace(h.Condition),
		})
	}
	return out.Normalize()
}

// Candidate converts the record into a validated candidate.
func (p PlaceRecord) Candidate() (domain.Candidate, error) {
	category, err := domain.ParseCategory(p.Category)
	if err != nil {
		return domain.Candidate{}, err
	}
	c := domain.Candidate{
		ID:                p.ID,
		Name:              p.Name,
		Category:          category,
		Rating:            p.Rating,
		DurationMin:       p.DurationMin,
		CostUSD:           category.DefaultCostUSD(),
		PriceLevel:        p.PriceLevel,
		IsIndoor:          category.DefaultIndoor(),
		CrowdLevel:        p.CrowdLevel,
		DistanceFromPrevM: p.DistanceFromPrevM,
		Address:           p.Address,
	}
	if p.CostUSD != nil {
		c.CostUSD = *p.CostUSD
	}
	if p.IsIndoor != nil {
		c.IsIndoor = *p.IsIndoor
	}
	c = c.Normalize()
	if err := c.Validate(); err != nil {
		return domain.Candidate{}, fmt.Errorf("place %q: %w", c.ID, err)
	}
	return c, nil
}
