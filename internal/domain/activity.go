package domain

import (
	"slices"
	"strings"
)

// ActivityStatus tracks where an activity sits in the day's lifecycle.
type ActivityStatus string

// StatusPending and related constants define activity lifecycle states.
const (
	StatusPending   ActivityStatus = "pending"
	StatusUpcoming  ActivityStatus = "upcoming"
	StatusActive    ActivityStatus = "active"
	StatusDone      ActivityStatus = "done"
	StatusDisrupted ActivityStatus = "disrupted"
)

var validStatuses = []ActivityStatus{StatusPending, StatusUpcoming, StatusActive, StatusDone, StatusDisrupted}

// Valid reports whether s is a known status.
func (s ActivityStatus) Valid() bool {
	return slices.Contains(validStatuses, s)
}

// Candidate is one normalized place returned by place search.
type Candidate struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Category          Category `json:"category"`
	Rating            *float64 `json:"rating,omitempty"`
	DurationMin       int      `json:"duration_min"`
	CostUSD           float64  `json:"cost_usd"`
	PriceLevel        int      `json:"price_level,omitempty"`
	IsIndoor          bool     `json:"is_indoor"`
	CrowdLevel        float64  `json:"crowd_level"`
	DistanceFromPrevM float64  `json:"distance_from_prev_m"`
	Address           string   `json:"address,omitempty"`
}

// Normalize trims text fields and applies category defaults for missing duration.
func (c Candidate) Normalize() Candidate {
	c.ID = strings.TrimSpace(c.ID)
	c.Name = strings.TrimSpace(c.Name)
	c.Address = strings.TrimSpace(c.Address)
	c.Category = Category(strings.TrimSpace(strings.ToLower(string(c.Category))))
	if c.Category == "" {
		c.Category = CategoryOther
	}
	if c.DurationMin <= 0 {
		c.DurationMin = c.Category.DefaultDurationMin()
	}
	if c.Rating != nil {
		rating := *c.Rating
		c.Rating = &rating
	}
	return c
}

// Validate checks candidate fields against the activity bounds.
func (c Candidate) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return ErrInvalidID
	}
	if strings.TrimSpace(c.Name) == "" {
		return ErrInvalidName
	}
	if !slices.Contains(validCategories, c.Category) {
		return ErrInvalidCategory
	}
	if c.DurationMin <= 0 {
		return ErrInvalidDuration
	}
	if c.CostUSD < 0 {
		return ErrInvalidCost
	}
	if c.CrowdLevel < 0 || c.CrowdLevel > 1 {
		return ErrInvalidCrowdLevel
	}
	if c.Rating != nil && (*c.Rating < 0 || *c.Rating > 5) {
		return ErrInvalidRating
	}
	if c.DistanceFromPrevM < 0 {
		return ErrInvalidDistance
	}
	return nil
}

// EffectivePriceLevel returns the explicit price level or one derived from cost.
func (c Candidate) EffectivePriceLevel() int {
	if c.PriceLevel > 0 {
		return c.PriceLevel
	}
	level := 1 + int(c.CostUSD/25)
	return min(level, 4)
}

// Activity is one scheduled unit of experience.
type Activity struct {
	ID                string         `json:"id"`
	Name              string         `json:"name"`
	Category          Category       `json:"category"`
	StartTime         ClockTime      `json:"start_time"`
	EndTime           ClockTime      `json:"end_time"`
	DurationMin       int            `json:"duration_min"`
	CostUSD           float64        `json:"cost_usd"`
	IsIndoor          bool           `json:"is_indoor"`
	CrowdLevel        float64        `json:"crowd_level"`
	Rating            *float64       `json:"rating,omitempty"`
	DistanceFromPrevM float64        `json:"distance_from_prev_m"`
	Status            ActivityStatus `json:"status"`
	ReasonChosen      string         `json:"reason_chosen"`
}

// NewActivity schedules a candidate at start with the given status.
func NewActivity(c Candidate, start ClockTime, status ActivityStatus, reason string) Activity {
	c = c.Normalize()
	return Activity{
		ID:                c.ID,
		Name:              c.Name,
		Category:          c.Category,
		StartTime:         start,
		EndTime:           start.Add(c.DurationMin),
		DurationMin:       c.DurationMin,
		CostUSD:           c.CostUSD,
		IsIndoor:          c.IsIndoor,
		CrowdLevel:        c.CrowdLevel,
		Rating:            c.Rating,
		DistanceFromPrevM: c.DistanceFromPrevM,
		Status:            status,
		ReasonChosen:      strings.TrimSpace(reason),
	}
}

// Reschedule moves the activity to start while keeping its duration.
func (a Activity) Reschedule(start ClockTime) Activity {
	a.StartTime = start
	a.EndTime = start.Add(a.DurationMin)
	return a
}

// Locked reports whether replanning must leave the activity untouched.
func (a Activity) Locked() bool {
	return a.Status == StatusDone || a.Status == StatusActive
}

// WalkingKm returns the approach distance in kilometers.
func (a Activity) WalkingKm() float64 {
	return a.DistanceFromPrevM / 1000
}

// Clone returns a deep copy.
func (a Activity) Clone() Activity {
	if a.Rating != nil {
		rating := *a.Rating
		a.Rating = &rating
	}
	return a
}

// Validate checks one scheduled activity.
func (a Activity) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return ErrInvalidID
	}
	if strings.TrimSpace(a.Name) == "" {
		return ErrInvalidName
	}
	if !slices.Contains(validCategories, a.Category) {
		return ErrInvalidCategory
	}
	if a.DurationMin <= 0 {
		return ErrInvalidDuration
	}
	if !a.StartTime.Valid() || !a.EndTime.Valid() || a.EndTime != a.StartTime.Add(a.DurationMin) {
		return ErrInvalidSchedule
	}
	if a.CostUSD < 0 {
		return ErrInvalidCost
	}
	if a.CrowdLevel < 0 || a.CrowdLevel > 1 {
		return ErrInvalidCrowdLevel
	}
	if a.Rating != nil && (*a.Rating < 0 || *a.Rating > 5) {
		return ErrInvalidRating
	}
	if a.DistanceFromPrevM < 0 {
		return ErrInvalidDistance
	}
	if !a.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}
