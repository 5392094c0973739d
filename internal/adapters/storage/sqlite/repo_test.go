package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hylla/draip/internal/app"
	"github.com/hylla/draip/internal/domain"
)

func ratingPtr(v float64) *float64 {
	return &v
}

func samplePlaces() []domain.Candidate {
	return []domain.Candidate{
		{ID: "m1", Name: "Museu Nacional", Category: domain.CategoryMuseum, Rating: ratingPtr(4.6), DurationMin: 120, CostUSD: 15, IsIndoor: true, CrowdLevel: 0.4, Address: "Rua 1"},
		{ID: "p1", Name: "Jardim", Category: domain.CategoryPark, DurationMin: 60, CrowdLevel: 0.1, DistanceFromPrevM: 850},
		{ID: "c1", Name: " Cafe ", Category: "Cafe"},
	}
}

func openTemp(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(filepath.Join(t.TempDir(), "nested", "draip.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		_ = repo.Close()
	})
	return repo
}

func TestRepository_PlaceCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := openTemp(t)
	key := app.NewAreaKey(38.7223, -9.1393, 3000)
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	if _, _, err := repo.GetPlaces(ctx, key, time.Hour, now); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for empty cache, got %v", err)
	}
	if err := repo.PutPlaces(ctx, key, samplePlaces(), now); err != nil {
		t.Fatalf("PutPlaces() error = %v", err)
	}

	places, fetchedAt, err := repo.GetPlaces(ctx, key, time.Hour, now.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("GetPlaces() error = %v", err)
	}
	if !fetchedAt.Equal(now) {
		t.Fatalf("unexpected fetched_at %v", fetchedAt)
	}
	if len(places) != 3 || places[0].ID != "m1" || places[1].ID != "p1" || places[2].ID != "c1" {
		t.Fatalf("unexpected cached order %+v", places)
	}
	if places[0].Rating == nil || *places[0].Rating != 4.6 || !places[0].IsIndoor || places[0].Address != "Rua 1" {
		t.Fatalf("unexpected museum row %+v", places[0])
	}
	if places[1].Rating != nil || places[1].DistanceFromPrevM != 850 {
		t.Fatalf("unexpected park row %+v", places[1])
	}
	if places[2].Name != "Cafe" || places[2].Category != domain.CategoryCafe || places[2].DurationMin != domain.CategoryCafe.DefaultDurationMin() {
		t.Fatalf("expected normalized cafe, got %+v", places[2])
	}
}

func TestRepository_PlaceCacheExpiryAndReplace(t *testing.T) {
	ctx := context.Background()
	repo := openTemp(t)
	key := app.NewAreaKey(41.1579, -8.6291, 1500)
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	if err := repo.PutPlaces(ctx, key, samplePlaces(), now); err != nil {
		t.Fatalf("PutPlaces() error = %v", err)
	}

	later := now.Add(2 * time.Hour)
	if _, _, err := repo.GetPlaces(ctx, key, time.Hour, later); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("expected expired entry to miss, got %v", err)
	}
	stale, _, err := repo.GetPlaces(ctx, key, 0, later)
	if err != nil || len(stale) != 3 {
		t.Fatalf("expected stale read with zero max age, got %d, %v", len(stale), err)
	}

	if err := repo.PutPlaces(ctx, key, samplePlaces()[:1], later); err != nil {
		t.Fatalf("PutPlaces() replace error = %v", err)
	}
	fresh, fetchedAt, err := repo.GetPlaces(ctx, key, time.Hour, later)
	if err != nil {
		t.Fatalf("GetPlaces() error = %v", err)
	}
	if len(fresh) != 1 || !fetchedAt.Equal(later) {
		t.Fatalf("expected replaced rows, got %d fetched %v", len(fresh), fetchedAt)
	}
}

func TestRepository_Prune(t *testing.T) {
	ctx := context.Background()
	repo := openTemp(t)
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	old := app.NewAreaKey(1, 1, 1000)
	recent := app.NewAreaKey(2, 2, 1000)
	if err := repo.PutPlaces(ctx, old, samplePlaces(), now.Add(-48*time.Hour)); err != nil {
		t.Fatalf("PutPlaces(old) error = %v", err)
	}
	if err := repo.PutPlaces(ctx, recent, samplePlaces(), now.Add(-500*time.Millisecond)); err != nil {
		t.Fatalf("PutPlaces(recent) error = %v", err)
	}

	removed, err := repo.Prune(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected one area pruned, got %d", removed)
	}
	if _, _, err := repo.GetPlaces(ctx, old, 0, now); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("expected pruned area gone, got %v", err)
	}
	if places, _, err := repo.GetPlaces(ctx, recent, 0, now); err != nil || len(places) != 3 {
		t.Fatalf("expected recent area kept, got %d, %v", len(places), err)
	}
}

func TestRepository_CachedSearcherIntegration(t *testing.T) {
	repo, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() {
		_ = repo.Close()
	})
	upstream := &countingSearcher{places: samplePlaces()}
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	searcher := app.NewCachedPlaceSearcher(upstream, repo, time.Hour, func() time.Time { return now }, nil)
	for range 2 {
		places, err := searcher.SearchPlaces(context.Background(), 48.8566, 2.3522, 2500)
		if err != nil {
			t.Fatalf("SearchPlaces() error = %v", err)
		}
		if len(places) != 3 {
			t.Fatalf("expected 3 places, got %d", len(places))
		}
	}
	if upstream.calls != 1 {
		t.Fatalf("expected the second search served from sqlite, got %d upstream calls", upstream.calls)
	}
}

type countingSearcher struct {
	places []domain.Candidate
	calls  int
}

func (c *countingSearcher) SearchPlaces(context.Context, float64, float64, int) ([]domain.Candidate, error) {
	c.calls++
	return c.places, nil
}
