package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	charmLog "github.com/charmbracelet/log"

	"github.com/hylla/draip/internal/domain"
)

// NewAreaKey rounds coordinates so nearby searches share one cache entry.
func NewAreaKey(lat, lon float64, radiusM int) AreaKey {
	return AreaKey{
		Lat:     math.Round(lat*1000) / 1000,
		Lon:     math.Round(lon*1000) / 1000,
		RadiusM: radiusM,
	}
}

// CachedPlaceSearcher serves place searches from a cache, falling back to a
// stale copy when the upstream searcher fails.
type CachedPlaceSearcher struct {
	upstream PlaceSearcher
	cache    PlaceCache
	ttl      time.Duration
	clock    Clock
	logger   Logger
}

// NewCachedPlaceSearcher decorates upstream with cache.
func NewCachedPlaceSearcher(upstream PlaceSearcher, cache PlaceCache, ttl time.Duration, clock Clock, logger Logger) *CachedPlaceSearcher {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = charmLog.New(io.Discard)
	}
	return &CachedPlaceSearcher{upstream: upstream, cache: cache, ttl: ttl, clock: clock, logger: logger}
}

// SearchPlaces implements PlaceSearcher.
func (c *CachedPlaceSearcher) SearchPlaces(ctx context.Context, lat, lon float64, radiusM int) ([]domain.Candidate, error) {
	key := NewAreaKey(lat, lon, radiusM)
	now := c.clock()
	if places, _, err := c.cache.GetPlaces(ctx, key, c.ttl, now); err == nil {
		c.logger.Debug("place cache hit", "lat", key.Lat, "lon", key.Lon, "count", len(places))
		return places, nil
	} else if !errors.Is(err, ErrNotFound) {
		c.logger.Warn("place cache read failed", "err", err)
	}

	places, err := c.upstream.SearchPlaces(ctx, lat, lon, radiusM)
	if err != nil {
		stale, fetchedAt, cacheErr := c.cache.GetPlaces(ctx, key, 0, now)
		if cacheErr == nil && len(stale) > 0 {
			c.logger.Warn("place search failed, serving stale cache", "err", err, "fetched_at", fetchedAt)
			return stale, nil
		}
		return nil, fmt.Errorf("search places: %w", err)
	}
	if err := c.cache.PutPlaces(ctx, key, places, now); err != nil {
		c.logger.Warn("place cache write failed", "err", err)
	}
	return places, nil
}
