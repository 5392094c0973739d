package domain

import (
	"fmt"
	"strings"
)

// Itinerary is the ordered, versioned plan for one day.
type Itinerary struct {
	City        string     `json:"city"`
	Theme       string     `json:"theme"`
	PlannerNote string     `json:"planner_note"`
	Version     int        `json:"version"`
	Activities  []Activity `json:"activities"`
}

// Clone returns a deep copy.
func (it Itinerary) Clone() Itinerary {
	out := it
	out.Activities = make([]Activity, 0, len(it.Activities))
	for _, a := range it.Activities {
		out.Activities = append(out.Activities, a.Clone())
	}
	return out
}

// Empty reports whether the itinerary has no activities.
func (it Itinerary) Empty() bool {
	return len(it.Activities) == 0
}

// IndexOf returns the position of the activity with id.
func (it Itinerary) IndexOf(id string) (int, bool) {
	id = strings.TrimSpace(id)
	for idx, a := range it.Activities {
		if a.ID == id {
			return idx, true
		}
	}
	return -1, false
}

// Active returns the activity currently marked active.
func (it Itinerary) Active() (Activity, bool) {
	for _, a := range it.Activities {
		if a.Status == StatusActive {
			return a, true
		}
	}
	return Activity{}, false
}

// Contains reports whether an activity with id is scheduled.
func (it Itinerary) Contains(id string) bool {
	_, ok := it.IndexOf(id)
	return ok
}

// TotalCostUSD sums activity costs.
func (it Itinerary) TotalCostUSD() float64 {
	total := 0.0
	for _, a := range it.Activities {
		total += a.CostUSD
	}
	return total
}

// WalkingKm sums approach distances.
func (it Itinerary) WalkingKm() float64 {
	total := 0.0
	for _, a := range it.Activities {
		total += a.WalkingKm()
	}
	return total
}

// LastEnd returns the end of the final activity, or fallback when empty.
func (it Itinerary) LastEnd(fallback ClockTime) ClockTime {
	if len(it.Activities) == 0 {
		return fallback
	}
	return it.Activities[len(it.Activities)-1].EndTime
}

// Validate checks each activity plus ordering and overlap across the day.
func (it Itinerary) Validate() error {
	return ValidateSchedule(it.Activities)
}

// ValidateSchedule checks that activities are valid, ordered by start time, and
// that no two [start, end) intervals overlap.
func ValidateSchedule(activities []Activity) error {
	seen := make(map[string]struct{}, len(activities))
	for idx, a := range activities {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("activity %d (%s): %w", idx, a.ID, err)
		}
		if _, ok := seen[a.ID]; ok {
			return fmt.Errorf("activity %d: duplicate id %q: %w", idx, a.ID, ErrInvalidSchedule)
		}
		seen[a.ID] = struct{}{}
		if idx == 0 {
			continue
		}
		prev := activities[idx-1]
		if a.StartTime < prev.StartTime {
			return fmt.Errorf("activity %d starts before activity %d: %w", idx, idx-1, ErrInvalidSchedule)
		}
		if a.StartTime < prev.EndTime {
			return fmt.Errorf("activity %d overlaps activity %d: %w", idx, idx-1, ErrInvalidSchedule)
		}
	}
	return nil
}
