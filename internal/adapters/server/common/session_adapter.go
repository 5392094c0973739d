package common

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hylla/draip/internal/app"
	"github.com/hylla/draip/internal/domain"
)

// SessionAdapter maps transport contracts onto one *app.Session.
type SessionAdapter struct {
	session *app.Session
}

// NewSessionAdapter builds one common adapter over a trip session.
func NewSessionAdapter(session *app.Session) *SessionAdapter {
	return &SessionAdapter{session: session}
}

// Snapshot returns the current trip state.
func (a *SessionAdapter) Snapshot(ctx context.Context) (app.Snapshot, error) {
	if err := a.ready(ctx); err != nil {
		return app.Snapshot{}, err
	}
	return a.session.Snapshot(), nil
}

// Candidates returns the current place pool.
func (a *SessionAdapter) Candidates(ctx context.Context) ([]domain.Candidate, error) {
	if err := a.ready(ctx); err != nil {
		return nil, err
	}
	return a.session.Candidates(), nil
}

// BuildItinerary generates a fresh day plan.
func (a *SessionAdapter) BuildItinerary(ctx context.Context) (domain.Itinerary, error) {
	if err := a.ready(ctx); err != nil {
		return domain.Itinerary{}, err
	}
	itinerary, err := a.session.BuildItinerary(ctx)
	if err != nil {
		return domain.Itinerary{}, mapAppError("build itinerary", err)
	}
	return itinerary, nil
}

// RunAnalysis evaluates the active activity once. A replan is requested in the
// background whenever disruptions are found and no replan is already running.
func (a *SessionAdapter) RunAnalysis(ctx context.Context) (AnalysisResult, error) {
	if err := a.ready(ctx); err != nil {
		return AnalysisResult{}, err
	}
	ev, err := a.session.Evaluate(ctx)
	if err != nil {
		return AnalysisResult{}, mapAppError("run analysis", err)
	}
	disruptions := ev.Disruptions
	if disruptions == nil {
		disruptions = []domain.Disruption{}
	}
	return AnalysisResult{Disruptions: disruptions, ReplanRequested: ev.ReplanRequested}, nil
}

// SendFeedback applies one traveler signal.
func (a *SessionAdapter) SendFeedback(ctx context.Context, in FeedbackRequest) (app.FeedbackResult, error) {
	if err := a.ready(ctx); err != nil {
		return app.FeedbackResult{}, err
	}
	if strings.TrimSpace(in.Signal) == "" {
		return app.FeedbackResult{}, fmt.Errorf("send feedback: signal is required: %w", ErrInvalidRequest)
	}
	out, err := a.session.SendFeedback(ctx, in.Signal, in.Intensity)
	if err != nil {
		return app.FeedbackResult{}, mapAppError("send feedback", err)
	}
	return out, nil
}

// AddActivity appends a candidate as a pending activity.
func (a *SessionAdapter) AddActivity(ctx context.Context, in AddActivityRequest) (domain.Activity, error) {
	if err := a.ready(ctx); err != nil {
		return domain.Activity{}, err
	}
	id := strings.TrimSpace(in.CandidateID)
	if id == "" {
		return domain.Activity{}, fmt.Errorf("add activity: candidate_id is required: %w", ErrInvalidRequest)
	}
	activity, err := a.session.AddActivity(id)
	if err != nil {
		return domain.Activity{}, mapAppError("add activity", err)
	}
	return activity, nil
}

// ConfirmActivity moves a pending activity to upcoming.
func (a *SessionAdapter) ConfirmActivity(ctx context.Context, id string) (domain.Activity, error) {
	if err := a.ready(ctx); err != nil {
		return domain.Activity{}, err
	}
	id, err := requireID("confirm activity", id)
	if err != nil {
		return domain.Activity{}, err
	}
	activity, err := a.session.ConfirmActivity(id)
	if err != nil {
		return domain.Activity{}, mapAppError("confirm activity", err)
	}
	return activity, nil
}

// DeleteActivity removes one activity from the plan.
func (a *SessionAdapter) DeleteActivity(ctx context.Context, id string) error {
	if err := a.ready(ctx); err != nil {
		return err
	}
	id, err := requireID("delete activity", id)
	if err != nil {
		return err
	}
	return mapAppError("delete activity", a.session.DeleteActivity(id))
}

// CompleteActivity finishes the active activity. A non-empty id must name the
// activity that is active when the request arrives.
func (a *SessionAdapter) CompleteActivity(ctx context.Context, id string) (domain.Activity, error) {
	if err := a.ready(ctx); err != nil {
		return domain.Activity{}, err
	}
	if id = strings.TrimSpace(id); id != "" {
		snap := a.session.Snapshot()
		active, ok := snap.Itinerary.Active()
		if !ok || active.ID != id {
			return domain.Activity{}, fmt.Errorf("complete activity: %q is not the active activity: %w", id, ErrConflict)
		}
	}
	activity, err := a.session.CompleteActivity()
	if err != nil {
		return domain.Activity{}, mapAppError("complete activity", err)
	}
	return activity, nil
}

// DismissDisruption clears the active disruption.
func (a *SessionAdapter) DismissDisruption(ctx context.Context) error {
	if err := a.ready(ctx); err != nil {
		return err
	}
	return mapAppError("dismiss disruption", a.session.DismissDisruption())
}

// RefreshWeather polls the weather provider once.
func (a *SessionAdapter) RefreshWeather(ctx context.Context) (domain.Weather, error) {
	if err := a.ready(ctx); err != nil {
		return domain.Weather{}, err
	}
	weather, err := a.session.RefreshWeather(ctx)
	if err != nil {
		return domain.Weather{}, mapAppError("refresh weather", err)
	}
	return weather, nil
}

// ReloadPlaces refreshes the candidate pool.
func (a *SessionAdapter) ReloadPlaces(ctx context.Context) ([]domain.Candidate, error) {
	if err := a.ready(ctx); err != nil {
		return nil, err
	}
	places, err := a.session.LoadPlaces(ctx)
	if err != nil {
		return nil, mapAppError("reload places", err)
	}
	return places, nil
}

// ResetTrip clears the plan and returns the resulting state.
func (a *SessionAdapter) ResetTrip(ctx context.Context) (app.Snapshot, error) {
	if err := a.ready(ctx); err != nil {
		return app.Snapshot{}, err
	}
	a.session.ResetTrip()
	return a.session.Snapshot(), nil
}

func (a *SessionAdapter) ready(ctx context.Context) error {
	if a == nil || a.session == nil {
		return fmt.Errorf("session adapter is not configured: %w", ErrUnavailable)
	}
	return ctx.Err()
}

func requireID(operation, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("%s: activity id is required: %w", operation, ErrInvalidRequest)
	}
	return id, nil
}

// mapAppError maps app and domain errors into transport errors.
func mapAppError(operation string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, app.ErrEvaluationInProgress),
		errors.Is(err, app.ErrReplanInProgress):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrBusy, err))
	case errors.Is(err, app.ErrWeatherFetch),
		errors.Is(err, app.ErrPlacesFetch),
		errors.Is(err, app.ErrExternalService):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrUpstream, err))
	case errors.Is(err, app.ErrNotFound):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrNotFound, err))
	case errors.Is(err, app.ErrInsufficientData),
		errors.Is(err, app.ErrReplanUnavailable):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrUnavailable, err))
	case errors.Is(err, app.ErrInvalidTransition),
		errors.Is(err, app.ErrTripNotActive),
		errors.Is(err, app.ErrStalePlan),
		errors.Is(err, app.ErrBudgetExceeded),
		errors.Is(err, domain.ErrInvalidSchedule):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrConflict, err))
	case errors.Is(err, domain.ErrInvalidIntensity),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidName),
		errors.Is(err, domain.ErrInvalidCategory),
		errors.Is(err, domain.ErrInvalidClockTime),
		errors.Is(err, domain.ErrInvalidDuration),
		errors.Is(err, domain.ErrInvalidCost),
		errors.Is(err, domain.ErrInvalidCrowdLevel),
		errors.Is(err, domain.ErrInvalidRating),
		errors.Is(err, domain.ErrInvalidDistance),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrInvalidBudget),
		errors.Is(err, domain.ErrInvalidPreference),
		errors.Is(err, domain.ErrInvalidSeverity):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrInvalidRequest, err))
	default:
		return fmt.Errorf("%s: %w", operation, err)
	}
}
