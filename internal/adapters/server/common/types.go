// Package common provides transport-agnostic server contracts used by HTTP and MCP adapters.
package common

import (
	"context"
	"errors"

	"github.com/hylla/draip/internal/app"
	"github.com/hylla/draip/internal/domain"
)

// ErrNotFound reports a missing activity, candidate, or disruption.
var ErrNotFound = errors.New("not found")

// ErrInvalidRequest reports malformed or out-of-range input.
var ErrInvalidRequest = errors.New("invalid request")

// ErrConflict reports a request that does not fit the current trip state.
var ErrConflict = errors.New("conflict")

// ErrBusy reports that an evaluation or replan is already running.
var ErrBusy = errors.New("busy")

// ErrUnavailable reports that the engine could not produce a result from the data it has.
var ErrUnavailable = errors.New("unavailable")

// ErrUpstream reports a weather, places, or advisor failure.
var ErrUpstream = errors.New("upstream service failed")

// FeedbackRequest carries one traveler signal.
type FeedbackRequest struct {
	Signal    string  `json:"signal"`
	Intensity float64 `json:"intensity"`
}

// AddActivityRequest appends one candidate place to the plan.
type AddActivityRequest struct {
	CandidateID string `json:"candidate_id"`
}

// AnalysisResult reports the disruptions found by one context evaluation.
type AnalysisResult struct {
	Disruptions     []domain.Disruption `json:"disruptions"`
	ReplanRequested bool                `json:"replan_requested"`
}

// TripService is the trip surface exposed to transports.
type TripService interface {
	Snapshot(context.Context) (app.Snapshot, error)
	Candidates(context.Context) ([]domain.Candidate, error)
	BuildItinerary(context.Context) (domain.Itinerary, error)
	RunAnalysis(context.Context) (AnalysisResult, error)
	SendFeedback(context.Context, FeedbackRequest) (app.FeedbackResult, error)
	AddActivity(context.Context, AddActivityRequest) (domain.Activity, error)
	ConfirmActivity(context.Context, string) (domain.Activity, error)
	DeleteActivity(context.Context, string) error
	CompleteActivity(context.Context, string) (domain.Activity, error)
	DismissDisruption(context.Context) error
	RefreshWeather(context.Context) (domain.Weather, error)
	ReloadPlaces(context.Context) ([]domain.Candidate, error)
	ResetTrip(context.Context) (app.Snapshot, error)
}
