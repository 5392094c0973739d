package app

import (
	"context"
	"testing"
	"time"

	"github.com/hylla/draip/internal/domain"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestSchedulerRefreshesWeatherAndEvaluates(t *testing.T) {
	tt := newTestTrip(t)
	tt.build(t)
	tt.weather.set(rainWeather(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	sched := NewScheduler(tt.session, SchedulerConfig{
		WeatherRefresh:       10 * time.Millisecond,
		EvaluationInterval:   10 * time.Millisecond,
		FirstEvaluationDelay: 10 * time.Millisecond,
	}, nil)
	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx) }()

	waitFor(t, 2*time.Second, func() bool {
		return tt.session.Snapshot().Metrics.ReplanCount >= 1
	})
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
	tt.session.Wait()

	snap := tt.session.Snapshot()
	if snap.Weather == nil || !snap.Weather.Rainy() {
		t.Fatalf("expected rain picked up by refresh, got %+v", snap.Weather)
	}
	for _, a := range snap.Itinerary.Activities {
		if a.Status != domain.StatusDone && !a.IsIndoor {
			t.Fatalf("expected outdoor activities replanned away, got %s", a.ID)
		}
	}
	if tt.weather.callCount() < 2 {
		t.Fatalf("expected repeated weather refreshes, got %d", tt.weather.callCount())
	}
}

func TestSchedulerStaysIdleWhilePlanning(t *testing.T) {
	tt := newTestTrip(t)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	sched := NewScheduler(tt.session, SchedulerConfig{
		WeatherRefresh:       10 * time.Millisecond,
		EvaluationInterval:   5 * time.Millisecond,
		FirstEvaluationDelay: 5 * time.Millisecond,
	}, nil)
	if err := sched.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	snap := tt.session.Snapshot()
	if snap.Phase != PhasePlanning || snap.Disruption != nil {
		t.Fatalf("expected no evaluation before a plan exists, got %+v", snap)
	}
	if snap.Weather == nil {
		t.Fatal("expected weather refreshed while planning")
	}
}
