package domain

import (
	"slices"
	"strings"
)

// TravelStyle is one declared way the traveler likes to spend the day.
type TravelStyle string

const (
	StyleRelaxed  TravelStyle = "relaxed"
	StyleExplorer TravelStyle = "explorer"
	StyleCultural TravelStyle = "cultural"
	StyleLuxury   TravelStyle = "luxury"
)

var validTravelStyles = []TravelStyle{StyleRelaxed, StyleExplorer, StyleCultural, StyleLuxury}

// TransportMode is one way the traveler moves between venues.
type TransportMode string

const (
	TransportWalk    TransportMode = "walk"
	TransportTransit TransportMode = "transit"
	TransportDrive   TransportMode = "drive"
	TransportBike    TransportMode = "bike"
)

var validTransportModes = []TransportMode{TransportWalk, TransportTransit, TransportDrive, TransportBike}

// Preferences weights each affinity dimension in [0,1].
type Preferences struct {
	Museums   float64 `json:"museums"`
	Food      float64 `json:"food"`
	Nature    float64 `json:"nature"`
	Shopping  float64 `json:"shopping"`
	Nightlife float64 `json:"nightlife"`
}

// Weight returns the preference for one dimension.
func (p Preferences) Weight(dim PreferenceDimension) float64 {
	switch dim {
	case DimensionMuseums:
		return p.Museums
	case DimensionFood:
		return p.Food
	case DimensionNature:
		return p.Nature
	case DimensionShopping:
		return p.Shopping
	case DimensionNightlife:
		return p.Nightlife
	default:
		return 0
	}
}

// UserProfile holds static-per-session traveler preferences.
type UserProfile struct {
	TravelStyles   []TravelStyle   `json:"travel_styles"`
	Preferences    Preferences     `json:"preferences"`
	BudgetPerDay   float64         `json:"budget_per_day"`
	TransportModes []TransportMode `json:"transport_modes"`
	MaxWalkingKm   float64         `json:"max_walking_km"`
	MaxDrivingKm   float64         `json:"max_driving_km"`
}

// DefaultProfile returns the profile used when none is configured.
func DefaultProfile() UserProfile {
	return UserProfile{
		TravelStyles: []TravelStyle{StyleExplorer},
		Preferences: Preferences{
			Museums:   0.7,
			Food:      0.3,
			Nature:    0.3,
			Shopping:  0.2,
			Nightlife: 0.2,
		},
		BudgetPerDay:   200,
		TransportModes: []TransportMode{TransportWalk},
		MaxWalkingKm:   8,
		MaxDrivingKm:   0,
	}
}

// NewUserProfile normalizes and validates profile input.
func NewUserProfile(in UserProfile) (UserProfile, error) {
	styles := make([]TravelStyle, 0, len(in.TravelStyles))
	for _, raw := range in.TravelStyles {
		style := TravelStyle(strings.TrimSpace(strings.ToLower(string(raw))))
		if style == "" {
			continue
		}
		if !slices.Contains(validTravelStyles, style) {
			return UserProfile{}, ErrInvalidTravelStyle
		}
		if !slices.Contains(styles, style) {
			styles = append(styles, style)
		}
	}
	modes := make([]TransportMode, 0, len(in.TransportModes))
	for _, raw := range in.TransportModes {
		mode := TransportMode(strings.TrimSpace(strings.ToLower(string(raw))))
		if mode == "" {
			continue
		}
		if !slices.Contains(validTransportModes, mode) {
			return UserProfile{}, ErrInvalidTransportMode
		}
		if !slices.Contains(modes, mode) {
			modes = append(modes, mode)
		}
	}
	if len(modes) == 0 {
		modes = []TransportMode{TransportWalk}
	}
	if in.BudgetPerDay <= 0 {
		return UserProfile{}, ErrInvalidBudget
	}
	for _, w := range []float64{in.Preferences.Museums, in.Preferences.Food, in.Preferences.Nature, in.Preferences.Shopping, in.Preferences.Nightlife} {
		if w < 0 || w > 1 {
			return UserProfile{}, ErrInvalidPreference
		}
	}
	if in.MaxWalkingKm < 0 || in.MaxDrivingKm < 0 {
		return UserProfile{}, ErrInvalidDistance
	}
	in.TravelStyles = styles
	in.TransportModes = modes
	return in, nil
}

// HasStyle reports whether the profile declares style.
func (p UserProfile) HasStyle(style TravelStyle) bool {
	return slices.Contains(p.TravelStyles, style)
}

// StyleLabel joins travel styles for display.
func (p UserProfile) StyleLabel() string {
	if len(p.TravelStyles) == 0 {
		return "balanced"
	}
	parts := make([]string, 0, len(p.TravelStyles))
	for _, s := range p.TravelStyles {
		parts = append(parts, string(s))
	}
	return strings.Join(parts, "/")
}

// Clone returns a deep copy.
func (p UserProfile) Clone() UserProfile {
	p.TravelStyles = append([]TravelStyle(nil), p.TravelStyles...)
	p.TransportModes = append([]TransportMode(nil), p.TransportModes...)
	return p
}
