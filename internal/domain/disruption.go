package domain

import (
	"slices"
	"strings"
)

// DisruptionType names the condition that invalidated part of the plan.
type DisruptionType string

const (
	DisruptionWeather DisruptionType = "WEATHER"
	DisruptionFatigue DisruptionType = "FATIGUE"
	DisruptionTime    DisruptionType = "TIME"
	DisruptionCrowd   DisruptionType = "CROWD"
	DisruptionBoredom DisruptionType = "BOREDOM"
)

// Urgency says how soon a disruption needs attention.
type Urgency string

const (
	UrgencyImmediate Urgency = "immediate"
	UrgencySoon      Urgency = "soon"
	UrgencyLow       Urgency = "low"
)

// Disruption is a detected condition that may invalidate scheduled activities.
type Disruption struct {
	Type                DisruptionType `json:"type"`
	Severity            int            `json:"severity"`
	Description         string         `json:"description"`
	AffectedActivityIDs []string       `json:"affected_activity_ids"`
	Urgency             Urgency        `json:"urgency"`
}

// NewDisruption validates severity and de-duplicates affected ids.
func NewDisruption(kind DisruptionType, severity int, description string, urgency Urgency, affected ...string) (Disruption, error) {
	if severity < 1 || severity > 5 {
		return Disruption{}, ErrInvalidSeverity
	}
	ids := make([]string, 0, len(affected))
	for _, id := range affected {
		id = strings.TrimSpace(id)
		if id == "" || slices.Contains(ids, id) {
			continue
		}
		ids = append(ids, id)
	}
	return Disruption{
		Type:                kind,
		Severity:            severity,
		Description:         strings.TrimSpace(description),
		AffectedActivityIDs: ids,
		Urgency:             urgency,
	}, nil
}

// Clone returns a deep copy.
func (d Disruption) Clone() Disruption {
	d.AffectedActivityIDs = append([]string(nil), d.AffectedActivityIDs...)
	return d
}

// Affects reports whether id is in the affected set.
func (d Disruption) Affects(id string) bool {
	return slices.Contains(d.AffectedActivityIDs, id)
}

// PrimaryDisruption picks the highest-severity disruption; earlier entries win
// ties.
func PrimaryDisruption(batch []Disruption) (Disruption, bool) {
	if len(batch) == 0 {
		return Disruption{}, false
	}
	best := 0
	for idx := 1; idx < len(batch); idx++ {
		if batch[idx].Severity > batch[best].Severity {
			best = idx
		}
	}
	return batch[best].Clone(), true
}

// JoinDescriptions concatenates descriptions with a pipe separator.
func JoinDescriptions(batch []Disruption) string {
	parts := make([]string, 0, len(batch))
	for _, d := range batch {
		if d.Description != "" {
			parts = append(parts, d.Description)
		}
	}
	return strings.Join(parts, " | ")
}

// DisruptionTypes lists the types in batch order without duplicates.
func DisruptionTypes(batch []Disruption) []DisruptionType {
	out := make([]DisruptionType, 0, len(batch))
	for _, d := range batch {
		if !slices.Contains(out, d.Type) {
			out = append(out, d.Type)
		}
	}
	return out
}

// AffectedIDs unions affected ids across batch, keeping first-seen order.
func AffectedIDs(batch []Disruption) []string {
	out := []string{}
	for _, d := range batch {
		for _, id := range d.AffectedActivityIDs {
			if !slices.Contains(out, id) {
				out = append(out, id)
			}
		}
	}
	return out
}
