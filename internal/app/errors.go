package app

import (
	"errors"
	"fmt"
)

// ErrNotFound and related errors describe validation and runtime failures.
var (
	ErrNotFound             = errors.New("not found")
	ErrInsufficientData     = errors.New("insufficient data")
	ErrReplanUnavailable    = errors.New("replan unavailable")
	ErrWeatherFetch         = errors.New("weather fetch failed")
	ErrPlacesFetch          = errors.New("places fetch failed")
	ErrExternalService      = errors.New("external service failed")
	ErrInvalidTransition    = errors.New("invalid activity transition")
	ErrTripNotActive        = errors.New("trip is not active")
	ErrEvaluationInProgress = errors.New("context evaluation already running")
	ErrReplanInProgress     = errors.New("replan already running")
	ErrStalePlan            = errors.New("itinerary changed while planning")
	ErrBudgetExceeded       = errors.New("budget exceeded")
)

// ParseFailure reports advisor output that could not be used as a plan.
type ParseFailure struct {
	Reason string
	Err    error
}

// Error implements error.
func (f *ParseFailure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("parse advisor output: %s: %v", f.Reason, f.Err)
	}
	return "parse advisor output: " + f.Reason
}

// Unwrap exposes both the external-service class and the underlying cause.
func (f *ParseFailure) Unwrap() []error {
	if f.Err != nil {
		return []error{ErrExternalService, f.Err}
	}
	return []error{ErrExternalService}
}

func parseFailure(reason string, err error) error {
	return &ParseFailure{Reason: reason, Err: err}
}
