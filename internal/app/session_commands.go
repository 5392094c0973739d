package app

import (
	"fmt"
	"slices"
	"strings"

	"github.com/hylla/draip/internal/domain"
)

// dayStart is where an empty itinerary begins when activities are added by hand.
var dayStart = domain.NewClockTime(9, 0)

// ConfirmActivity moves a pending activity to upcoming. It is a status change
// and does not bump the itinerary version.
func (s *Session) ConfirmActivity(id string) (domain.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.itinerary.IndexOf(id)
	if !ok {
		return domain.Activity{}, fmt.Errorf("activity %q: %w", id, ErrNotFound)
	}
	a := &s.itinerary.Activities[idx]
	if a.Status != domain.StatusPending {
		return domain.Activity{}, fmt.Errorf("confirm %s activity %q: %w", a.Status, id, ErrInvalidTransition)
	}
	a.Status = domain.StatusUpcoming
	s.touchLocked()
	s.appendLogLocked(domain.LogUser, "ACTIVITY CONFIRMED", fmt.Sprintf("%s at %s confirmed.", a.Name, a.StartTime))
	s.publishLocked()
	return a.Clone(), nil
}

// DeleteActivity removes an activity. When the active activity is removed the
// next upcoming one becomes active.
func (s *Session) DeleteActivity(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.itinerary.IndexOf(id)
	if !ok {
		return fmt.Errorf("activity %q: %w", id, ErrNotFound)
	}
	removed := s.itinerary.Activities[idx]
	s.itinerary.Activities = slices.Delete(s.itinerary.Activities, idx, idx+1)
	s.itinerary.Version++
	s.touchLocked()
	delete(s.flagged, removed.ID)
	if removed.Status == domain.StatusActive {
		s.promoteNextLocked()
	}
	s.appendLogLocked(domain.LogUser, "ACTIVITY REMOVED", fmt.Sprintf("%s removed from the plan.", removed.Name))
	changes := []Change{{Kind: ChangeStructural}}
	if s.settlePhaseLocked() {
		changes = append(changes, Change{Kind: ChangePhase})
	}
	s.publishLocked(changes...)
	return nil
}

// AddActivity appends an unused candidate as pending at the next free time.
func (s *Session) AddActivity(candidateID string) (domain.Activity, error) {
	candidateID = strings.TrimSpace(candidateID)
	s.mu.Lock()
	defer s.mu.Unlock()
	pos := slices.IndexFunc(s.candidates, func(c domain.Candidate) bool { return c.ID == candidateID })
	if pos < 0 {
		return domain.Activity{}, fmt.Errorf("candidate %q: %w", candidateID, ErrNotFound)
	}
	if s.itinerary.Contains(candidateID) {
		return domain.Activity{}, fmt.Errorf("candidate %q already scheduled: %w", candidateID, ErrInvalidTransition)
	}
	c := s.candidates[pos]
	activity := domain.NewActivity(c, s.itinerary.LastEnd(dayStart), domain.StatusPending, "added by traveler")
	if activity.EndTime > domain.EndOfDay {
		return domain.Activity{}, fmt.Errorf("%q would end after midnight: %w", c.Name, domain.ErrInvalidSchedule)
	}
	total := s.state.BudgetSpent + c.CostUSD
	for _, a := range s.itinerary.Activities {
		if a.Status != domain.StatusDone {
			total += a.CostUSD
		}
	}
	if ceiling := domain.BudgetCeiling(s.profile.BudgetPerDay); total > ceiling {
		return domain.Activity{}, fmt.Errorf("plan would cost $%.0f of $%.0f allowed: %w", total, ceiling, ErrBudgetExceeded)
	}

	s.itinerary.Activities = append(s.itinerary.Activities, activity)
	s.itinerary.Version++
	s.touchLocked()
	if s.itinerary.City == "" {
		s.itinerary.City = s.cfg.Location.City
	}
	s.appendLogLocked(domain.LogUser, "ACTIVITY ADDED", fmt.Sprintf("%s added at %s, pending confirmation.", activity.Name, activity.StartTime))
	changes := []Change{{Kind: ChangeStructural}}
	if s.settlePhaseLocked() {
		changes = append(changes, Change{Kind: ChangePhase})
	}
	s.publishLocked(changes...)
	return activity.Clone(), nil
}

// CompleteActivity finishes the active activity, applies its fatigue and cost,
// and promotes the next upcoming activity. The trip is done when nothing
// remains.
func (s *Session) CompleteActivity() (domain.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	active, ok := s.itinerary.Active()
	if !ok {
		return domain.Activity{}, fmt.Errorf("no active activity: %w", ErrInvalidTransition)
	}
	idx, _ := s.itinerary.IndexOf(active.ID)
	s.itinerary.Activities[idx].Status = domain.StatusDone
	s.touchLocked()
	s.state.Fatigue = domain.UpdateFatigue(domain.FatigueInput{
		CurrentFatigue: s.state.Fatigue,
		DurationMin:    active.DurationMin,
		WalkingKm:      active.WalkingKm(),
		CrowdLevel:     active.CrowdLevel,
		IsIndoor:       active.IsIndoor,
	})
	s.state = s.state.Apply(domain.StateDelta{Spent: active.CostUSD})
	s.promoteNextLocked()
	s.appendLogLocked(domain.LogSystem, "ACTIVITY COMPLETE",
		fmt.Sprintf("%s done. Fatigue now %.0f%%, spent $%.0f.", active.Name, s.state.Fatigue, s.state.BudgetSpent))
	var changes []Change
	if s.settlePhaseLocked() {
		changes = append(changes, Change{Kind: ChangePhase})
		if s.phase == PhaseDone {
			s.appendLogLocked(domain.LogSystem, "TRIP COMPLETE", "All activities are done.")
		}
	}
	s.publishLocked(changes...)
	done := s.itinerary.Activities[idx]
	return done.Clone(), nil
}

// DismissDisruption clears the active disruption and restores flagged
// activities to the status they had before.
func (s *Session) DismissDisruption() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disruption == nil {
		return fmt.Errorf("active disruption: %w", ErrNotFound)
	}
	for id, prior := range s.flagged {
		idx, ok := s.itinerary.IndexOf(id)
		if !ok || s.itinerary.Activities[idx].Status != domain.StatusDisrupted {
			continue
		}
		s.itinerary.Activities[idx].Status = prior
	}
	kind := s.disruption.Type
	s.clearDisruptionLocked()
	s.touchLocked()
	s.appendLogLocked(domain.LogUser, "DISRUPTION DISMISSED", fmt.Sprintf("%s disruption dismissed; plan kept as is.", kind))
	s.publishLocked()
	return nil
}

// ResetTrip clears the itinerary, disruption, metrics, and log and restores
// the default user state. Weather and places are kept, the version keeps
// counting, and a replan still in flight is discarded.
func (s *Session) ResetTrip() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.itinerary = domain.Itinerary{Version: s.itinerary.Version}
	s.clearDisruptionLocked()
	s.touchLocked()
	s.metrics = domain.RLMetrics{}
	s.log = domain.DecisionLog{}
	s.state = domain.DefaultUserState()
	s.explanation = nil
	s.phase = PhasePlanning
	s.logger.Info("trip reset")
	s.publishLocked(Change{Kind: ChangeReset})
}
