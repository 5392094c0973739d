package app

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/hylla/draip/internal/domain"
)

type fakeWeather struct {
	mu      sync.Mutex
	weather domain.Weather
	err     error
	calls   int
}

func (f *fakeWeather) CurrentWeather(context.Context, float64, float64) (domain.Weather, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return domain.Weather{}, f.err
	}
	return f.weather, nil
}

func (f *fakeWeather) set(w domain.Weather, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.weather = w
	f.err = err
}

func (f *fakeWeather) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakePlaces struct {
	mu     sync.Mutex
	places []domain.Candidate
	err    error
	calls  int
}

func (f *fakePlaces) SearchPlaces(context.Context, float64, float64, int) ([]domain.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]domain.Candidate(nil), f.places...), nil
}

type stubAdvisor struct {
	mu       sync.Mutex
	response string
	err      error
	block    chan struct{}
	started  chan struct{}
	requests []AdvisorRequest
}

func (s *stubAdvisor) Complete(ctx context.Context, req AdvisorRequest) (string, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	block, started := s.block, s.started
	s.mu.Unlock()
	if started != nil {
		started <- struct{}{}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return s.response, s.err
}

var errUpstream = errors.New("upstream down")

func ptr(v float64) *float64 {
	return &v
}

func place(id, name string, category domain.Category, rating float64, durationMin int, cost float64, indoor bool) domain.Candidate {
	return domain.Candidate{
		ID:          id,
		Name:        name,
		Category:    category,
		Rating:      ptr(rating),
		DurationMin: durationMin,
		CostUSD:     cost,
		IsIndoor:    indoor,
		CrowdLevel:  0.2,
	}
}

// cityPlaces is a pool where the morning cafe and the park are outdoor and
// two indoor places stay unscheduled after a build.
func cityPlaces() []domain.Candidate {
	return []domain.Candidate{
		place("c1", "Terrace Cafe", domain.CategoryCafe, 4.9, 45, 10, false),
		place("c2", "Corner Cafe", domain.CategoryCafe, 4.0, 30, 8, true),
		place("c3", "Book Cafe", domain.CategoryCafe, 3.9, 30, 6, true),
		place("m1", "City Museum", domain.CategoryMuseum, 4.5, 90, 15, true),
		place("r1", "Trattoria", domain.CategoryRestaurant, 4.2, 60, 30, true),
		place("r2", "Bistro", domain.CategoryRestaurant, 4.1, 75, 35, true),
		place("g1", "Modern Gallery", domain.CategoryArt, 4.3, 60, 12, true),
		place("s1", "Market Hall", domain.CategoryShopping, 4.0, 60, 20, true),
		place("p1", "River Park", domain.CategoryPark, 4.4, 60, 0, false),
	}
}

func clearWeather() domain.Weather {
	return domain.Weather{Temperature: 21, Condition: "Clear Sky"}
}

func rainWeather() domain.Weather {
	return domain.Weather{Temperature: 14, Condition: "Rain", Precipitation: 2.5}
}

func fixedClock(hour, minute int) Clock {
	return func() time.Time {
		return time.Date(2026, 5, 1, hour, minute, 0, 0, time.UTC)
	}
}

func sequentialIDs() IDGenerator {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return "log-" + strconv.Itoa(n)
	}
}

type testTrip struct {
	session *Session
	weather *fakeWeather
	places  *fakePlaces
}

func newTestTrip(t *testing.T, opts ...SessionOption) testTrip {
	t.Helper()
	weather := &fakeWeather{weather: clearWeather()}
	places := &fakePlaces{places: cityPlaces()}
	cfg := SessionConfig{
		Location: Location{City: "Lisbon", Lat: 38.7223, Lon: -9.1393},
		Profile:  domain.DefaultProfile(),
	}
	base := []SessionOption{WithClock(fixedClock(9, 15)), WithIDGenerator(sequentialIDs())}
	session := NewSession(weather, places, cfg, append(base, opts...)...)
	return testTrip{session: session, weather: weather, places: places}
}

func (tt testTrip) build(t *testing.T) domain.Itinerary {
	t.Helper()
	it, err := tt.session.BuildItinerary(context.Background())
	if err != nil {
		t.Fatalf("BuildItinerary() error = %v", err)
	}
	return it
}

func activityIDs(activities []domain.Activity) []string {
	out := make([]string, 0, len(activities))
	for _, a := range activities {
		out = append(out, a.ID)
	}
	return out
}

func findActivity(activities []domain.Activity, id string) (domain.Activity, bool) {
	for _, a := range activities {
		if a.ID == id {
			return a, true
		}
	}
	return domain.Activity{}, false
}

func hasLogTitle(entries []domain.DecisionLogEntry, title string) bool {
	for _, e := range entries {
		if e.Title == title {
			return true
		}
	}
	return false
}
