package common

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hylla/draip/internal/adapters/fixture"
	"github.com/hylla/draip/internal/app"
	"github.com/hylla/draip/internal/domain"
)

// newFixtureAdapter builds an adapter over a session fed by the built-in trip.
func newFixtureAdapter(t *testing.T, opts ...app.SessionOption) *SessionAdapter {
	t.Helper()
	src := fixture.Default()
	loc, err := src.Location()
	if err != nil {
		t.Fatalf("Location() error = %v", err)
	}
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	opts = append([]app.SessionOption{app.WithClock(func() time.Time { return now })}, opts...)
	session := app.NewSession(src, src, app.SessionConfig{Location: loc}, opts...)
	return NewSessionAdapter(session)
}

func TestSessionAdapterBuildAndComplete(t *testing.T) {
	ctx := context.Background()
	adapter := newFixtureAdapter(t)

	if _, err := adapter.RunAnalysis(ctx); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected analysis before build to conflict, got %v", err)
	}
	itinerary, err := adapter.BuildItinerary(ctx)
	if err != nil {
		t.Fatalf("BuildItinerary() error = %v", err)
	}
	if len(itinerary.Activities) == 0 {
		t.Fatal("expected a non-empty itinerary")
	}
	snap, err := adapter.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if snap.Phase != app.PhaseActive || snap.CandidateCount == 0 {
		t.Fatalf("unexpected snapshot phase=%s candidates=%d", snap.Phase, snap.CandidateCount)
	}
	active, ok := snap.Itinerary.Active()
	if !ok {
		t.Fatal("expected an active activity after build")
	}

	if _, err := adapter.CompleteActivity(ctx, "not-active"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected wrong id to conflict, got %v", err)
	}
	done, err := adapter.CompleteActivity(ctx, active.ID)
	if err != nil {
		t.Fatalf("CompleteActivity() error = %v", err)
	}
	if done.ID != active.ID || done.Status != domain.StatusDone {
		t.Fatalf("unexpected completed activity %+v", done)
	}
}

// heldReplans blocks replan prompts until release is closed. Every prompt
// then fails so the engine falls back to its own planner.
type heldReplans struct {
	started chan struct{}
	release chan struct{}
}

func (h *heldReplans) Complete(ctx context.Context, req app.AdvisorRequest) (string, error) {
	if req.Kind == app.AdvisorReplan {
		h.started <- struct{}{}
		select {
		case <-h.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "", errors.New("advisor offline")
}

func TestSessionAdapterRunAnalysisReportsReplanRequest(t *testing.T) {
	ctx := context.Background()
	held := &heldReplans{started: make(chan struct{}, 4), release: make(chan struct{})}
	adapter := newFixtureAdapter(t, app.WithAdvisor(held))
	if _, err := adapter.BuildItinerary(ctx); err != nil {
		t.Fatalf("BuildItinerary() error = %v", err)
	}

	res, err := adapter.SendFeedback(ctx, FeedbackRequest{Signal: "bored", Intensity: 0.5})
	if err != nil || !res.ReplanRequested {
		t.Fatalf("SendFeedback() = %+v, %v", res, err)
	}
	select {
	case <-held.started:
	case <-time.After(2 * time.Second):
		t.Fatal("replan never reached the advisor")
	}
	if _, err := adapter.RunAnalysis(ctx); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected analysis during a replan to report busy, got %v", err)
	}
	close(held.release)
	adapter.session.Wait()

	analysis, err := adapter.RunAnalysis(ctx)
	if err != nil {
		t.Fatalf("RunAnalysis() error = %v", err)
	}
	if analysis.ReplanRequested != (len(analysis.Disruptions) > 0) {
		t.Fatalf("expected a replan requested only with disruptions, got %+v", analysis)
	}
	adapter.session.Wait()
}

func TestSessionAdapterValidatesInput(t *testing.T) {
	ctx := context.Background()
	adapter := newFixtureAdapter(t)

	if _, err := adapter.SendFeedback(ctx, FeedbackRequest{Signal: " "}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected empty signal rejected, got %v", err)
	}
	if _, err := adapter.SendFeedback(ctx, FeedbackRequest{Signal: "tired", Intensity: 2}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected intensity rejected, got %v", err)
	}
	if _, err := adapter.AddActivity(ctx, AddActivityRequest{}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected missing candidate rejected, got %v", err)
	}
	if _, err := adapter.ConfirmActivity(ctx, ""); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected missing id rejected, got %v", err)
	}
	if _, err := adapter.ConfirmActivity(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected unknown activity not found, got %v", err)
	}
	if err := adapter.DismissDisruption(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected no disruption to dismiss, got %v", err)
	}
}

func TestSessionAdapterAddAndReset(t *testing.T) {
	ctx := context.Background()
	adapter := newFixtureAdapter(t)
	places, err := adapter.ReloadPlaces(ctx)
	if err != nil {
		t.Fatalf("ReloadPlaces() error = %v", err)
	}
	if len(places) == 0 {
		t.Fatal("expected fixture places")
	}
	added, err := adapter.AddActivity(ctx, AddActivityRequest{CandidateID: places[0].ID})
	if err != nil {
		t.Fatalf("AddActivity() error = %v", err)
	}
	if added.Status != domain.StatusPending {
		t.Fatalf("expected pending activity, got %s", added.Status)
	}
	if _, err := adapter.AddActivity(ctx, AddActivityRequest{CandidateID: places[0].ID}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected duplicate add to conflict, got %v", err)
	}
	snap, err := adapter.ResetTrip(ctx)
	if err != nil {
		t.Fatalf("ResetTrip() error = %v", err)
	}
	if snap.Phase != app.PhasePlanning || !snap.Itinerary.Empty() {
		t.Fatalf("expected empty planning trip after reset, got %s with %d activities", snap.Phase, len(snap.Itinerary.Activities))
	}
}

func TestMapAppError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{name: "busy", err: app.ErrReplanInProgress, want: ErrBusy},
		{name: "upstream wraps domain", err: fmt.Errorf("%w: %w", app.ErrPlacesFetch, domain.ErrInvalidCategory), want: ErrUpstream},
		{name: "parse failure", err: &app.ParseFailure{Reason: "no json"}, want: ErrUpstream},
		{name: "insufficient", err: app.ErrInsufficientData, want: ErrUnavailable},
		{name: "stale", err: app.ErrStalePlan, want: ErrConflict},
		{name: "budget", err: app.ErrBudgetExceeded, want: ErrConflict},
		{name: "schedule", err: domain.ErrInvalidSchedule, want: ErrConflict},
		{name: "intensity", err: domain.ErrInvalidIntensity, want: ErrInvalidRequest},
	}
	for _, tc := range cases {
		got := mapAppError("op", tc.err)
		if !errors.Is(got, tc.want) || !errors.Is(got, tc.err) {
			t.Fatalf("%s: mapAppError() = %v, want %v", tc.name, got, tc.want)
		}
	}
	if mapAppError("op", nil) != nil {
		t.Fatal("expected nil error to stay nil")
	}
}

func TestNilAdapterIsUnavailable(t *testing.T) {
	var adapter *SessionAdapter
	if _, err := adapter.Snapshot(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}
