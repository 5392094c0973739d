package domain

import (
	"strings"
	"time"
)

// Weather is a normalized weather snapshot for the trip location.
type Weather struct {
	Temperature    float64          `json:"temperature"`
	Condition      string           `json:"condition"`
	Precipitation  float64          `json:"precipitation"`
	WindSpeed      float64          `json:"wind_speed"`
	UVIndex        float64          `json:"uv_index"`
	IsRaining      bool             `json:"is_raining"`
	Severity       int              `json:"severity"`
	HourlyForecast []HourlyForecast `json:"hourly_forecast,omitempty"`
	ObservedAt     time.Time        `json:"observed_at"`
}

// HourlyForecast is one forecast hour.
type HourlyForecast struct {
	Hour          int     `json:"hour"`
	Temperature   float64 `json:"temperature"`
	PrecipProb    float64 `json:"precip_prob"`
	Precipitation float64 `json:"precipitation"`
	Condition     string  `json:"condition"`
}

// rainPrecipitationMM is the precipitation level treated as raining.
const rainPrecipitationMM = 0.1

// Rainy reports whether outdoor plans should be considered rained out.
func (w Weather) Rainy() bool {
	if w.IsRaining {
		return true
	}
	return IsRainCondition(w.Condition)
}

// Clone returns a deep copy.
func (w Weather) Clone() Weather {
	w.HourlyForecast = append([]HourlyForecast(nil), w.HourlyForecast...)
	return w
}

// Normalize derives IsRaining and Severity when the provider left them unset.
func (w Weather) Normalize() Weather {
	w.Condition = strings.TrimSpace(w.Condition)
	if w.Precipitation > rainPrecipitationMM || IsRainCondition(w.Condition) {
		w.IsRaining = true
	}
	if w.Severity < 0 {
		w.Severity = 0
	}
	if w.Severity > 5 {
		w.Severity = 5
	}
	return w
}

// IsRainCondition matches rain-like condition labels.
func IsRainCondition(condition string) bool {
	c := strings.ToLower(strings.TrimSpace(condition))
	if c == "" {
		return false
	}
	for _, token := range []string{"rain", "drizzle", "shower", "thunderstorm"} {
		if strings.Contains(c, token) {
			return true
		}
	}
	return false
}

// WMOCondition maps a WMO weather code to a label and severity 0–5.
func WMOCondition(code int) (string, int) {
	switch code {
	case 0:
		return "Clear Sky", 0
	case 1:
		return "Mainly Clear", 0
	case 2:
		return "Partly Cloudy", 0
	case 3:
		return "Overcast", 1
	case 45:
		return "Foggy", 1
	case 48:
		return "Icy Fog", 2
	case 51:
		return "Light Drizzle", 1
	case 53:
		return "Drizzle", 2
	case 55:
		return "Heavy Drizzle", 3
	case 61:
		return "Slight Rain", 2
	case 63:
		return "Moderate Rain", 3
	case 65:
		return "Heavy Rain", 4
	case 71:
		return "Light Snow", 3
	case 73:
		return "Moderate Snow", 4
	case 75:
		return "Heavy Snow", 5
	case 80:
		return "Showers", 2
	case 81:
		return "Rain Showers", 3
	case 82:
		return "Violent Showers", 5
	case 95:
		return "Thunderstorm", 5
	case 96:
		return "Thunderstorm+Hail", 5
	case 99:
		return "Heavy Thunderstorm", 5
	default:
		return "Unknown", 0
	}
}
