package domain

import "errors"

var (
	ErrInvalidID            = errors.New("invalid id")
	ErrInvalidName          = errors.New("invalid name")
	ErrInvalidCategory      = errors.New("invalid category")
	ErrInvalidClockTime     = errors.New("invalid clock time")
	ErrInvalidDuration      = errors.New("invalid duration")
	ErrInvalidCost          = errors.New("invalid cost")
	ErrInvalidCrowdLevel    = errors.New("invalid crowd level")
	ErrInvalidRating        = errors.New("invalid rating")
	ErrInvalidDistance      = errors.New("invalid distance")
	ErrInvalidStatus        = errors.New("invalid activity status")
	ErrInvalidSchedule      = errors.New("invalid schedule")
	ErrInvalidBudget        = errors.New("invalid budget")
	ErrInvalidPreference    = errors.New("invalid preference weight")
	ErrInvalidTravelStyle   = errors.New("invalid travel style")
	ErrInvalidTransportMode = errors.New("invalid transport mode")
	ErrInvalidSeverity      = errors.New("invalid severity")
	ErrInvalidIntensity     = errors.New("invalid feedback intensity")
)
