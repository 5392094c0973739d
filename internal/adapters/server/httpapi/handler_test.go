package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hylla/draip/internal/adapters/server/common"
	"github.com/hylla/draip/internal/app"
	"github.com/hylla/draip/internal/domain"
)

// stubTrip provides deterministic trip responses for handler tests.
type stubTrip struct {
	snapshot     app.Snapshot
	activity     domain.Activity
	analysis     common.AnalysisResult
	err          error
	lastFeedback common.FeedbackRequest
	lastAdd      common.AddActivityRequest
	lastID       string
	calls        []string
}

func (s *stubTrip) record(name string) error {
	s.calls = append(s.calls, name)
	return s.err
}

func (s *stubTrip) Snapshot(context.Context) (app.Snapshot, error) {
	return s.snapshot, s.record("snapshot")
}

func (s *stubTrip) Candidates(context.Context) ([]domain.Candidate, error) {
	return []domain.Candidate{{ID: "c1", Name: "Cafe", Category: domain.CategoryCafe}}, s.record("candidates")
}

func (s *stubTrip) BuildItinerary(context.Context) (domain.Itinerary, error) {
	return s.snapshot.Itinerary, s.record("build")
}

func (s *stubTrip) RunAnalysis(context.Context) (common.AnalysisResult, error) {
	return s.analysis, s.record("analysis")
}

func (s *stubTrip) SendFeedback(_ context.Context, req common.FeedbackRequest) (app.FeedbackResult, error) {
	s.lastFeedback = req
	return app.FeedbackResult{State: domain.DefaultUserState()}, s.record("feedback")
}

func (s *stubTrip) AddActivity(_ context.Context, req common.AddActivityRequest) (domain.Activity, error) {
	s.lastAdd = req
	return s.activity, s.record("add")
}

func (s *stubTrip) ConfirmActivity(_ context.Context, id string) (domain.Activity, error) {
	s.lastID = id
	return s.activity, s.record("confirm")
}

func (s *stubTrip) DeleteActivity(_ context.Context, id string) error {
	s.lastID = id
	return s.record("delete")
}

func (s *stubTrip) CompleteActivity(_ context.Context, id string) (domain.Activity, error) {
	s.lastID = id
	return s.activity, s.record("complete")
}

func (s *stubTrip) DismissDisruption(context.Context) error {
	return s.record("dismiss")
}

func (s *stubTrip) RefreshWeather(context.Context) (domain.Weather, error) {
	return domain.Weather{Condition: "Rain", IsRaining: true}, s.record("weather")
}

func (s *stubTrip) ReloadPlaces(context.Context) ([]domain.Candidate, error) {
	return nil, s.record("places")
}

func (s *stubTrip) ResetTrip(context.Context) (app.Snapshot, error) {
	return app.Snapshot{Phase: app.PhasePlanning}, s.record("reset")
}

func serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// TestHandlerSnapshot verifies GET /snapshot returns the trip state.
func TestHandlerSnapshot(t *testing.T) {
	trip := &stubTrip{snapshot: app.Snapshot{
		Phase:     app.PhaseActive,
		Location:  app.Location{City: "Lisbon"},
		Itinerary: domain.Itinerary{City: "Lisbon", Version: 3},
	}}
	rec := serve(NewHandler(trip), http.MethodGet, "/snapshot", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var got app.Snapshot
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got.Phase != app.PhaseActive || got.Itinerary.Version != 3 || got.Location.City != "Lisbon" {
		t.Fatalf("unexpected snapshot %+v", got)
	}
}

// TestHandlerRoutes verifies every route reaches the matching trip operation.
func TestHandlerRoutes(t *testing.T) {
	cases := []struct {
		method     string
		target     string
		body       string
		wantCall   string
		wantStatus int
	}{
		{http.MethodGet, "/candidates", "", "candidates", http.StatusOK},
		{http.MethodPost, "/itinerary", "", "build", http.StatusCreated},
		{http.MethodPost, "/analysis", "", "analysis", http.StatusOK},
		{http.MethodPost, "/feedback", `{"signal":"tired","intensity":0.8}`, "feedback", http.StatusOK},
		{http.MethodPost, "/activities", `{"candidate_id":"c9"}`, "add", http.StatusCreated},
		{http.MethodPost, "/activities/m1/confirm", "", "confirm", http.StatusOK},
		{http.MethodPost, "/activities/m1/complete", "", "complete", http.StatusOK},
		{http.MethodDelete, "/activities/m1", "", "delete", http.StatusNoContent},
		{http.MethodPost, "/disruption/dismiss", "", "dismiss", http.StatusNoContent},
		{http.MethodPost, "/weather/refresh", "", "weather", http.StatusOK},
		{http.MethodPost, "/places/reload/", "", "places", http.StatusOK},
		{http.MethodPost, "/reset", "", "reset", http.StatusOK},
	}
	for _, tt := range cases {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			trip := &stubTrip{}
			rec := serve(NewHandler(trip), tt.method, tt.target, tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if len(trip.calls) != 1 || trip.calls[0] != tt.wantCall {
				t.Fatalf("calls = %v, want [%s]", trip.calls, tt.wantCall)
			}
		})
	}
}

// TestHandlerPassesRequestFields verifies body and path values reach the service.
func TestHandlerPassesRequestFields(t *testing.T) {
	trip := &stubTrip{}
	h := NewHandler(trip)
	serve(h, http.MethodPost, "/feedback", `{"signal":"bored","intensity":0.4}`)
	if trip.lastFeedback.Signal != "bored" || trip.lastFeedback.Intensity != 0.4 {
		t.Fatalf("unexpected feedback %+v", trip.lastFeedback)
	}
	serve(h, http.MethodPost, "/activities", `{"candidate_id":"gulbenkian"}`)
	if trip.lastAdd.CandidateID != "gulbenkian" {
		t.Fatalf("candidate_id = %q, want gulbenkian", trip.lastAdd.CandidateID)
	}
	serve(h, http.MethodPost, "/activities/castelo/confirm", "")
	if trip.lastID != "castelo" {
		t.Fatalf("id = %q, want castelo", trip.lastID)
	}
}

// TestHandlerAnalysisAcceptedWhenReplanning verifies a requested replan answers 202.
func TestHandlerAnalysisAcceptedWhenReplanning(t *testing.T) {
	d, err := domain.NewDisruption(domain.DisruptionWeather, 3, "Rain", domain.UrgencyImmediate, "p1")
	if err != nil {
		t.Fatalf("NewDisruption() error = %v", err)
	}
	trip := &stubTrip{analysis: common.AnalysisResult{Disruptions: []domain.Disruption{d}, ReplanRequested: true}}
	rec := serve(NewHandler(trip), http.MethodPost, "/analysis", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusAccepted)
	}
	var got common.AnalysisResult
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(got.Disruptions) != 1 || got.Disruptions[0].Type != domain.DisruptionWeather {
		t.Fatalf("unexpected analysis %+v", got)
	}
}

// TestHandlerErrorMapping verifies structured status mapping for service errors.
func TestHandlerErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid request", errors.Join(common.ErrInvalidRequest, errors.New("bad")), http.StatusBadRequest, "invalid_request"},
		{"not found", errors.Join(common.ErrNotFound, errors.New("missing")), http.StatusNotFound, "not_found"},
		{"busy", errors.Join(common.ErrBusy, app.ErrReplanInProgress), http.StatusConflict, "busy"},
		{"conflict", errors.Join(common.ErrConflict, app.ErrTripNotActive), http.StatusConflict, "conflict"},
		{"unavailable", errors.Join(common.ErrUnavailable, app.ErrInsufficientData), http.StatusUnprocessableEntity, "unavailable"},
		{"upstream", errors.Join(common.ErrUpstream, app.ErrWeatherFetch), http.StatusBadGateway, "upstream_error"},
		{"internal", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(NewHandler(&stubTrip{err: tt.err}), http.MethodPost, "/itinerary", "")
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var envelope ErrorEnvelope
			if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if envelope.Error.Code != tt.wantCode {
				t.Fatalf("code = %q, want %q", envelope.Error.Code, tt.wantCode)
			}
		})
	}
}

// TestHandlerRejectsBadRequests verifies method, route, and body validation.
func TestHandlerRejectsBadRequests(t *testing.T) {
	trip := &stubTrip{}
	h := NewHandler(trip)

	rec := serve(h, http.MethodPost, "/snapshot", "")
	if rec.Code != http.StatusMethodNotAllowed || rec.Header().Get("Allow") != http.MethodGet {
		t.Fatalf("expected 405 with Allow GET, got %d %q", rec.Code, rec.Header().Get("Allow"))
	}
	rec = serve(h, http.MethodGet, "/activities/m1", "")
	if rec.Code != http.StatusMethodNotAllowed || rec.Header().Get("Allow") != http.MethodDelete {
		t.Fatalf("expected 405 with Allow DELETE, got %d %q", rec.Code, rec.Header().Get("Allow"))
	}
	for _, target := range []string{"/nope", "/activities/m1/skip", "/activities//confirm"} {
		if rec := serve(h, http.MethodPost, target, ""); rec.Code != http.StatusNotFound {
			t.Fatalf("%s: status = %d, want 404", target, rec.Code)
		}
	}
	for _, body := range []string{`{"signal":"tired","mood":1}`, `{"signal":"tired"} {}`, `not json`} {
		if rec := serve(h, http.MethodPost, "/feedback", body); rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d, want 400", body, rec.Code)
		}
	}
	if len(trip.calls) != 0 {
		t.Fatalf("expected no service calls, got %v", trip.calls)
	}
}

// TestHandlerWithoutService verifies a missing service answers 503.
func TestHandlerWithoutService(t *testing.T) {
	rec := serve(NewHandler(nil), http.MethodGet, "/snapshot", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}
