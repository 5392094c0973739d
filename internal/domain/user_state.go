package domain

import (
	"strings"
)

// UserState carries the traveler's dynamic condition. Scalars stay in [0,100].
type UserState struct {
	Fatigue     float64 `json:"fatigue"`
	Stress      float64 `json:"stress"`
	Motivation  float64 `json:"motivation"`
	BudgetSpent float64 `json:"budget_spent"`
}

// DefaultUserState returns the state a fresh trip starts with.
func DefaultUserState() UserState {
	return UserState{
		Fatigue:    10,
		Stress:     5,
		Motivation: 90,
	}
}

// StateDelta is one declared change to the user state.
type StateDelta struct {
	Fatigue    float64 `json:"fatigue"`
	Stress     float64 `json:"stress"`
	Motivation float64 `json:"motivation"`
	Spent      float64 `json:"spent"`
}

// Apply returns the state after delta, clamping scalars to [0,100]. Spending
// never decreases.
func (s UserState) Apply(delta StateDelta) UserState {
	s.Fatigue = clampScalar(s.Fatigue + delta.Fatigue)
	s.Stress = clampScalar(s.Stress + delta.Stress)
	s.Motivation = clampScalar(s.Motivation + delta.Motivation)
	if delta.Spent > 0 {
		s.BudgetSpent += delta.Spent
	}
	return s
}

// FeedbackSignal is a discrete mood report from the traveler.
type FeedbackSignal string

const (
	SignalHappy  FeedbackSignal = "happy"
	SignalTired  FeedbackSignal = "tired"
	SignalRushed FeedbackSignal = "rushed"
	SignalBored  FeedbackSignal = "bored"
)

// ParseFeedbackSignal normalizes raw input. Unknown values are kept as-is and
// map to a zero delta.
func ParseFeedbackSignal(raw string) FeedbackSignal {
	return FeedbackSignal(strings.TrimSpace(strings.ToLower(raw)))
}

// Delta returns the fixed state change for the signal.
func (s FeedbackSignal) Delta() StateDelta {
	switch s {
	case SignalHappy:
		return StateDelta{Fatigue: -5, Stress: -8, Motivation: 10}
	case SignalTired:
		return StateDelta{Fatigue: 20, Stress: 8, Motivation: -15}
	case SignalRushed:
		return StateDelta{Fatigue: 5, Stress: 22, Motivation: -8}
	case SignalBored:
		return StateDelta{Fatigue: 8, Stress: 5, Motivation: -12}
	default:
		return StateDelta{}
	}
}

// Known reports whether the signal has a declared delta.
func (s FeedbackSignal) Known() bool {
	switch s {
	case SignalHappy, SignalTired, SignalRushed, SignalBored:
		return true
	default:
		return false
	}
}

// ValidateIntensity checks a feedback intensity value.
func ValidateIntensity(intensity float64) error {
	if intensity < 0 || intensity > 1 {
		return ErrInvalidIntensity
	}
	return nil
}

// FatigueInput describes one completed activity for the fatigue model.
type FatigueInput struct {
	CurrentFatigue float64
	DurationMin    int
	WalkingKm      float64
	CrowdLevel     float64
	IsIndoor       bool
}

// UpdateFatigue returns fatigue after completing an activity.
func UpdateFatigue(in FatigueInput) float64 {
	delta := float64(in.DurationMin)*0.08 + in.WalkingKm*4 + in.CrowdLevel*6
	if !in.IsIndoor {
		delta += 3
	}
	return clampScalar(in.CurrentFatigue + delta)
}

func clampScalar(v float64) float64 {
	return clamp(v, 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
