package app

import (
	"fmt"
	"time"

	"github.com/hylla/draip/internal/domain"
)

// MonitorConfig holds the thresholds used by context evaluation.
type MonitorConfig struct {
	FatigueThreshold   float64
	LateThresholdHours int
	CrowdThreshold     float64
}

// DefaultMonitorConfig returns the stock evaluation thresholds.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		FatigueThreshold:   70,
		LateThresholdHours: 2,
		CrowdThreshold:     0.85,
	}
}

func (c MonitorConfig) withDefaults() MonitorConfig {
	def := DefaultMonitorConfig()
	if c.FatigueThreshold <= 0 {
		c.FatigueThreshold = def.FatigueThreshold
	}
	if c.LateThresholdHours <= 0 {
		c.LateThresholdHours = def.LateThresholdHours
	}
	if c.CrowdThreshold <= 0 {
		c.CrowdThreshold = def.CrowdThreshold
	}
	return c
}

// MonitorInput is the context snapshot one evaluation runs against.
type MonitorInput struct {
	Itinerary domain.Itinerary
	State     domain.UserState
	Weather   *domain.Weather
	Now       time.Time
}

// DetectDisruptions evaluates the active activity and returns every condition
// that currently invalidates the plan, in detection order. It returns nil when
// the itinerary is empty or nothing is active.
func DetectDisruptions(in MonitorInput, cfg MonitorConfig) []domain.Disruption {
	cfg = cfg.withDefaults()
	active, ok := in.Itinerary.Active()
	if !ok {
		return nil
	}

	var out []domain.Disruption
	add := func(kind domain.DisruptionType, severity int, urgency domain.Urgency, description string, affected ...string) {
		d, err := domain.NewDisruption(kind, severity, description, urgency, affected...)
		if err == nil {
			out = append(out, d)
		}
	}

	if in.Weather != nil && in.Weather.Rainy() && !active.IsIndoor {
		add(domain.DisruptionWeather, 3, domain.UrgencyImmediate,
			fmt.Sprintf("Rain expected at your outdoor activity %s", active.Name),
			rainedOut(in.Itinerary, active)...)
	}

	if late := domain.ClockOf(in.Now).Hour() - active.StartTime.Hour(); late > cfg.LateThresholdHours {
		add(domain.DisruptionTime, 4, domain.UrgencySoon,
			fmt.Sprintf("Running about %d hours behind %s", late, active.Name),
			active.ID)
	}

	if in.State.Fatigue > cfg.FatigueThreshold {
		var affected []string
		if next, ok := nextUpcoming(in.Itinerary, active.ID); ok {
			affected = append(affected, next.ID)
		}
		add(domain.DisruptionFatigue, 3, domain.UrgencySoon,
			fmt.Sprintf("Fatigue at %.0f%%, consider a break", in.State.Fatigue),
			affected...)
	}

	if active.CrowdLevel >= cfg.CrowdThreshold {
		add(domain.DisruptionCrowd, 2, domain.UrgencyLow,
			fmt.Sprintf("%s is very crowded right now", active.Name),
			active.ID)
	}
	return out
}

// rainedOut lists the active outdoor activity plus later outdoor activities
// that have not started.
func rainedOut(it domain.Itinerary, active domain.Activity) []string {
	ids := []string{active.ID}
	for _, a := range it.Activities {
		if a.ID == active.ID || a.IsIndoor || a.StartTime < active.StartTime {
			continue
		}
		if a.Status == domain.StatusUpcoming || a.Status == domain.StatusPending {
			ids = append(ids, a.ID)
		}
	}
	return ids
}

// nextUpcoming returns the first upcoming activity after the given one.
func nextUpcoming(it domain.Itinerary, afterID string) (domain.Activity, bool) {
	idx, ok := it.IndexOf(afterID)
	if !ok {
		idx = -1
	}
	for _, a := range it.Activities[idx+1:] {
		if a.Status == domain.StatusUpcoming {
			return a, true
		}
	}
	return domain.Activity{}, false
}
