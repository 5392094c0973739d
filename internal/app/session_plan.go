package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/hylla/draip/internal/domain"
)

// RefreshWeather polls the weather provider. On failure the last-known weather
// stays in place and the error is recorded on the session.
func (s *Session) RefreshWeather(ctx context.Context) (domain.Weather, error) {
	if s.weatherProvider == nil {
		return domain.Weather{}, fmt.Errorf("no weather provider: %w", ErrWeatherFetch)
	}
	loc := s.cfg.Location
	weather, err := s.weatherProvider.CurrentWeather(ctx, loc.Lat, loc.Lon)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrWeatherFetch, err)
		s.weatherErr = err.Error()
		s.appendLogLocked(domain.LogError, "WEATHER ERROR", "Weather refresh failed; keeping the last known conditions.", withDetail(err.Error()))
		s.logger.Warn("weather refresh failed", "err", err)
		s.publishLocked()
		return domain.Weather{}, err
	}
	weather = weather.Normalize()
	if weather.ObservedAt.IsZero() {
		weather.ObservedAt = s.clock().UTC()
	}
	changed := s.weather == nil || s.weather.Condition != weather.Condition || s.weather.IsRaining != weather.IsRaining
	s.weather = &weather
	s.weatherErr = ""
	if changed {
		s.appendLogLocked(domain.LogSystem, "WEATHER", fmt.Sprintf("%s, %.0f°C, precipitation %.1f mm.", weather.Condition, weather.Temperature, weather.Precipitation))
	}
	s.logger.Debug("weather refreshed", "condition", weather.Condition, "raining", weather.IsRaining)
	s.publishLocked()
	return weather.Clone(), nil
}

// LoadPlaces refreshes the candidate pool from the place searcher. On failure
// the previous pool is kept.
func (s *Session) LoadPlaces(ctx context.Context) ([]domain.Candidate, error) {
	if s.placeSearcher == nil {
		return nil, fmt.Errorf("no place searcher: %w", ErrPlacesFetch)
	}
	loc := s.cfg.Location
	places, err := s.placeSearcher.SearchPlaces(ctx, loc.Lat, loc.Lon, s.cfg.RadiusM)
	if err == nil {
		places, err = normalizeCandidates(places)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrPlacesFetch, err)
		s.placesErr = err.Error()
		s.appendLogLocked(domain.LogError, "PLACES ERROR", "Place search failed; keeping the previous candidates.", withDetail(err.Error()))
		s.logger.Warn("place search failed", "err", err)
		s.publishLocked()
		return nil, err
	}
	s.candidates = places
	s.placesErr = ""
	s.logger.Debug("places loaded", "count", len(places))
	s.publishLocked()
	return append([]domain.Candidate(nil), places...), nil
}

// BuildItinerary generates a fresh day plan and makes it the active itinerary.
// Missing weather or places are fetched first; when either is still missing the
// build fails with ErrInsufficientData and the current plan is untouched.
func (s *Session) BuildItinerary(ctx context.Context) (domain.Itinerary, error) {
	s.mu.Lock()
	needWeather := s.weather == nil
	needPlaces := len(s.candidates) == 0
	s.mu.Unlock()
	if needWeather {
		_, _ = s.RefreshWeather(ctx)
	}
	if needPlaces {
		_, _ = s.LoadPlaces(ctx)
	}

	s.mu.Lock()
	in := BuildInput{
		Candidates: append([]domain.Candidate(nil), s.candidates...),
		Profile:    s.profile.Clone(),
		City:       s.cfg.Location.City,
		TopK:       s.cfg.Engine.TopK,
	}
	if s.weather != nil {
		w := s.weather.Clone()
		in.Weather = &w
	}
	s.appendLogLocked(domain.LogSystem, "ITINERARY GENERATOR", fmt.Sprintf("Generating itinerary for %s. Analysing %d places against your preferences.", in.City, len(in.Candidates)))
	s.publishLocked()
	s.mu.Unlock()

	result, err := s.buildWithAdvisor(ctx, in)
	if err != nil {
		result, err = BuildSchedule(in)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.appendLogLocked(domain.LogError, "ITINERARY ERROR", err.Error())
		s.logger.Error("itinerary build failed", "err", err)
		s.publishLocked()
		return domain.Itinerary{}, err
	}

	result.Itinerary.Version = s.itinerary.Version + 1
	s.itinerary = result.Itinerary
	s.clearDisruptionLocked()
	s.touchLocked()
	s.explanation = nil
	s.settlePhaseLocked()
	s.metrics.PushSatisfaction(defaultSatisfactionSeed)
	s.appendLogLocked(domain.LogAI, "ITINERARY", result.Summary(),
		withDetail(fmt.Sprintf("Selected %d places from %d available", len(result.Itinerary.Activities), result.Pool)))
	s.logger.Info("itinerary built", "version", s.itinerary.Version, "activities", len(s.itinerary.Activities), "theme", result.Theme)
	s.publishLocked(Change{Kind: ChangeBuilt})
	return s.itinerary.Clone(), nil
}

// buildWithAdvisor asks the advisor for a plan. Any failure is logged as a
// warning and reported so the caller falls back to BuildSchedule.
func (s *Session) buildWithAdvisor(ctx context.Context, in BuildInput) (BuildResult, error) {
	if s.advisor == nil {
		return BuildResult{}, errors.New("no advisor configured")
	}
	if in.Weather == nil || len(in.Candidates) == 0 {
		return BuildResult{}, ErrInsufficientData
	}
	req, err := itineraryPrompt(in, in.Candidates)
	if err != nil {
		return BuildResult{}, err
	}
	raw, err := s.completeAdvisor(ctx, req)
	var result BuildResult
	if err == nil {
		result, err = parseItinerarySuggestion(raw, in, in.Candidates)
	}
	if err != nil {
		s.advisorFallback("itinerary", err)
		return BuildResult{}, err
	}
	return result, nil
}

func (s *Session) completeAdvisor(ctx context.Context, req AdvisorRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Engine.AdvisorTimeout)
	defer cancel()
	raw, err := s.advisor.Complete(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrExternalService, err)
	}
	return raw, nil
}

func (s *Session) advisorFallback(kind string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLogLocked(domain.LogWarning, "ADVISOR FALLBACK",
		fmt.Sprintf("Advisor %s suggestion unusable; using the deterministic planner.", kind),
		withDetail(err.Error()))
	s.logger.Warn("advisor fallback", "kind", kind, "err", err)
}
