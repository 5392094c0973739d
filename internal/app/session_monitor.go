package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/hylla/draip/internal/domain"
)

// Evaluation is the outcome of one context check.
type Evaluation struct {
	Disruptions     []domain.Disruption `json:"disruptions"`
	ReplanRequested bool                `json:"replan_requested"`
}

// Evaluate runs one context check against the active activity. Detected
// disruptions become the session's active disruption, their activities are
// flagged, and a background replan is requested with the full batch. Only one
// evaluation runs at a time and none runs while a replan is in flight; those
// calls fail with ErrEvaluationInProgress or ErrReplanInProgress.
func (s *Session) Evaluate(ctx context.Context) (Evaluation, error) {
	if !s.evaluating.CompareAndSwap(false, true) {
		return Evaluation{}, ErrEvaluationInProgress
	}
	defer s.evaluating.Store(false)
	if s.replanning.Load() {
		return Evaluation{}, ErrReplanInProgress
	}
	if err := ctx.Err(); err != nil {
		return Evaluation{}, err
	}

	s.mu.Lock()
	if err := s.requirePhase(PhaseActive); err != nil {
		s.mu.Unlock()
		return Evaluation{}, err
	}
	in := MonitorInput{
		Itinerary: s.itinerary.Clone(),
		State:     s.state,
		Now:       s.clock(),
	}
	if s.weather != nil {
		w := s.weather.Clone()
		in.Weather = &w
	}
	disruptions := DetectDisruptions(in, s.cfg.Engine.Monitor)
	if len(disruptions) == 0 {
		s.logger.Debug("context evaluation clean", "version", s.itinerary.Version)
		s.mu.Unlock()
		return Evaluation{}, nil
	}
	s.raiseLocked(disruptions)
	s.mu.Unlock()

	requested := s.RequestReplan(disruptions)
	return Evaluation{Disruptions: cloneDisruptions(disruptions), ReplanRequested: requested}, nil
}

// raiseLocked records a disruption batch: it is merged into the unresolved
// batch, the primary becomes the active disruption, and affected activities
// are flagged. Callers hold s.mu.
func (s *Session) raiseLocked(disruptions []domain.Disruption) {
	if len(disruptions) == 0 {
		return
	}
	if s.disruption == nil {
		s.batch = nil
	}
	s.batch = mergeDisruptions(s.batch, disruptions)
	primary, _ := domain.PrimaryDisruption(s.batch)
	s.disruption = &primary
	for _, id := range domain.AffectedIDs(disruptions) {
		idx, ok := s.itinerary.IndexOf(id)
		if !ok {
			continue
		}
		a := s.itinerary.Activities[idx]
		if a.Status == domain.StatusDone || a.Status == domain.StatusDisrupted {
			continue
		}
		s.flagged[id] = a.Status
		s.itinerary.Activities[idx].Status = domain.StatusDisrupted
	}
	s.touchLocked()
	s.appendLogLocked(domain.LogWarning, "DISRUPTION DETECTED", domain.JoinDescriptions(disruptions),
		withDetail(fmt.Sprintf("severity %d, urgency %s", primary.Severity, primary.Urgency)),
		withRules(disruptionLabels(disruptions)...))
	s.logger.Info("disruption detected", "disruption", primary.Type, "severity", primary.Severity, "count", len(disruptions))
	s.publishLocked()
}

// RequestReplan starts a background replan for disruptions. It reports false
// when a replan is already running; the request is dropped, not queued.
func (s *Session) RequestReplan(disruptions []domain.Disruption) bool {
	if s.replanning.Load() {
		s.logger.Debug("replan request dropped", "reason", "in progress")
		return false
	}
	batch := cloneDisruptions(disruptions)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if _, err := s.Replan(context.Background(), batch); err != nil && !errors.Is(err, ErrReplanInProgress) {
			s.logger.Warn("background replan failed", "err", err)
		}
	}()
	return true
}

// maxReplanAttempts bounds how often one replan is recomputed against a plan
// that changed while it was planning.
const maxReplanAttempts = 2

// Replan patches the itinerary around disruptions. Locked activities are kept
// as-is; on failure the itinerary is unchanged and the active disruption stays
// visible. Only one replan runs at a time.
//
// A result computed against a plan that has since changed is never applied.
// While a disruption is still active the replan is recomputed once against
// the current plan and unresolved batch; otherwise it fails with ErrStalePlan.
func (s *Session) Replan(ctx context.Context, disruptions []domain.Disruption) (Explanation, error) {
	if !s.replanning.CompareAndSwap(false, true) {
		return Explanation{}, ErrReplanInProgress
	}
	defer s.replanning.Store(false)
	started := time.Now()
	batch := cloneDisruptions(disruptions)

	for attempt := 1; ; attempt++ {
		s.mu.Lock()
		if s.itinerary.Empty() {
			s.mu.Unlock()
			return Explanation{}, fmt.Errorf("replan: %w", ErrTripNotActive)
		}
		rev := s.planRev
		in := s.replanInputLocked(batch)
		s.publishLocked()
		s.mu.Unlock()

		result, err := s.replanWithAdvisor(ctx, in)
		if err != nil {
			result, err = Replan(in)
		}

		s.mu.Lock()
		if err == nil && s.planRev != rev {
			if attempt < maxReplanAttempts && s.disruption != nil && ctx.Err() == nil {
				batch = cloneDisruptions(s.batch)
				s.logger.Debug("replan rebased", "attempt", attempt, "disruptions", len(batch))
				s.mu.Unlock()
				continue
			}
			err = fmt.Errorf("replan: plan changed while planning: %w", ErrStalePlan)
		}
		explanation, err := s.applyReplanLocked(result, time.Since(started).Milliseconds(), err)
		s.mu.Unlock()
		return explanation, err
	}
}

func (s *Session) replanInputLocked(disruptions []domain.Disruption) ReplanInput {
	in := ReplanInput{
		Activities:  s.itinerary.Clone().Activities,
		Disruptions: cloneDisruptions(disruptions),
		Profile:     s.profile.Clone(),
		State:       s.state,
		Candidates:  append([]domain.Candidate(nil), s.candidates...),
		TopK:        s.cfg.Engine.TopK,
	}
	if s.weather != nil {
		in.Weather = s.weather.Clone()
	}
	return in
}

// applyReplanLocked swaps in a replan result, or records why none was
// applied. Callers hold s.mu.
func (s *Session) applyReplanLocked(result ReplanResult, latency int64, err error) (Explanation, error) {
	if err != nil {
		s.appendLogLocked(domain.LogWarning, "REPLAN UNAVAILABLE", "No viable replacement found; the current plan is unchanged.", withDetail(err.Error()))
		s.logger.Warn("replan unavailable", "err", err, "latency_ms", latency)
		s.publishLocked()
		return Explanation{}, err
	}

	s.itinerary.Activities = result.Activities
	s.itinerary.Version++
	s.clearDisruptionLocked()
	s.touchLocked()
	s.metrics.RecordReplan(latency)
	s.metrics.AddReward(result.Explanation.RewardScore)
	s.metrics.PushSatisfaction(result.Explanation.RewardScore * 100)
	explanation := result.Explanation.Clone()
	s.explanation = &explanation
	s.appendLogLocked(domain.LogReplan, fmt.Sprintf("REPLAN #%d", s.metrics.ReplanCount), explanation.Summary,
		withDetail(replanDetail(explanation)),
		withRules(explanation.RulesApplied...))
	phaseChanged := s.settlePhaseLocked()
	s.logger.Info("itinerary replanned",
		"version", s.itinerary.Version,
		"replan_count", s.metrics.ReplanCount,
		"latency_ms", latency,
		"reward", explanation.RewardScore)
	changes := []Change{{Kind: ChangeStructural}}
	if phaseChanged {
		changes = append(changes, Change{Kind: ChangePhase})
	}
	s.publishLocked(changes...)
	return explanation.Clone(), nil
}

// replanWithAdvisor asks the advisor for replacements. Any failure is logged
// as a warning and reported so the caller falls back to Replan.
func (s *Session) replanWithAdvisor(ctx context.Context, in ReplanInput) (ReplanResult, error) {
	if s.advisor == nil {
		return ReplanResult{}, errors.New("no advisor configured")
	}
	candidates, err := normalizeCandidates(in.Candidates)
	if err != nil {
		return ReplanResult{}, err
	}
	plan := splitForReplan(in.Activities, in.Disruptions)
	req, err := replanPrompt(in, plan, candidates)
	if err != nil {
		return ReplanResult{}, err
	}
	raw, err := s.completeAdvisor(ctx, req)
	var result ReplanResult
	if err == nil {
		result, err = parseReplanSuggestion(raw, in, plan, candidates)
	}
	if err != nil {
		s.advisorFallback("replan", err)
		return ReplanResult{}, err
	}
	return result, nil
}

// FeedbackResult reports the outcome of one feedback signal.
type FeedbackResult struct {
	State           domain.UserState   `json:"state"`
	Disruption      *domain.Disruption `json:"disruption,omitempty"`
	ReplanRequested bool               `json:"replan_requested"`
}

// feedbackFatigueTrigger is the fatigue level above which a tired signal
// requests a replan.
const feedbackFatigueTrigger = 60

// SendFeedback applies one traveler signal to the user state. A tired signal
// that leaves fatigue above 60, or any bored signal, raises a disruption and
// requests a replan while the trip is active.
func (s *Session) SendFeedback(_ context.Context, raw string, intensity float64) (FeedbackResult, error) {
	if err := domain.ValidateIntensity(intensity); err != nil {
		return FeedbackResult{}, err
	}
	signal := domain.ParseFeedbackSignal(raw)

	s.mu.Lock()
	active, hasActive := s.itinerary.Active()
	s.appendLogLocked(domain.LogUser, "USER FEEDBACK", fmt.Sprintf("Signal: %q (intensity: %.1f)", strings.ToUpper(string(signal)), intensity))
	s.state = s.state.Apply(signal.Delta())
	s.appendLogLocked(domain.LogAI, "AI RESPONSE", feedbackAcknowledgement(signal, active.Name))
	reward := domain.ComputeReward(domain.RewardInputFor(s.state, s.profile, s.itinerary.Activities, s.state.Motivation/100))
	s.metrics.AddReward(reward)
	out := FeedbackResult{State: s.state}

	var trigger []domain.Disruption
	if s.phase == PhaseActive {
		switch {
		case signal == domain.SignalTired && s.state.Fatigue > feedbackFatigueTrigger:
			var affected []string
			if next, ok := nextUpcoming(s.itinerary, active.ID); ok {
				affected = append(affected, next.ID)
			}
			d, _ := domain.NewDisruption(domain.DisruptionFatigue, 3, "Traveler feels tired, lighter activities needed", domain.UrgencySoon, affected...)
			trigger = append(trigger, d)
		case signal == domain.SignalBored && hasActive:
			d, _ := domain.NewDisruption(domain.DisruptionBoredom, 3, fmt.Sprintf("Traveler is bored at %s, something more engaging needed", active.Name), domain.UrgencySoon, active.ID)
			trigger = append(trigger, d)
		}
	}
	if len(trigger) > 0 {
		s.raiseLocked(trigger)
		d := trigger[0].Clone()
		out.Disruption = &d
	}
	s.logger.Info("feedback applied", "signal", signal, "fatigue", s.state.Fatigue, "stress", s.state.Stress, "motivation", s.state.Motivation)
	s.publishLocked()
	s.mu.Unlock()

	if len(trigger) > 0 {
		out.ReplanRequested = s.RequestReplan(trigger)
	}
	return out, nil
}

func feedbackAcknowledgement(signal domain.FeedbackSignal, activity string) string {
	if activity == "" {
		activity = "your current activity"
	}
	switch signal {
	case domain.SignalHappy:
		return fmt.Sprintf("Glad you are enjoying %s. Similar experiences will be favored.", activity)
	case domain.SignalTired:
		return "Take a break if you need one. Lighter options nearby will be considered."
	case domain.SignalRushed:
		return "Pace noted. Fewer or longer activities will be recommended."
	case domain.SignalBored:
		return "Looking for something more engaging in the area."
	default:
		return "Thanks for the feedback. Recommendations will adjust."
	}
}

func replanDetail(e Explanation) string {
	var parts []string
	if len(e.Removed) > 0 {
		parts = append(parts, "Removed: "+strings.Join(e.Removed, ", "))
	}
	if len(e.Added) > 0 {
		parts = append(parts, "Added: "+strings.Join(e.Added, ", "))
	}
	parts = append(parts, fmt.Sprintf("Satisfaction %+.2f, reward %.3f", e.SatisfactionDelta, e.RewardScore))
	return strings.Join(parts, ". ")
}

func disruptionLabels(disruptions []domain.Disruption) []string {
	kinds := domain.DisruptionTypes(disruptions)
	out := make([]string, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, string(k))
	}
	return out
}

// mergeDisruptions folds next into prior, replacing entries of the same type.
func mergeDisruptions(prior, next []domain.Disruption) []domain.Disruption {
	out := cloneDisruptions(prior)
	for _, d := range next {
		idx := slices.IndexFunc(out, func(p domain.Disruption) bool { return p.Type == d.Type })
		if idx >= 0 {
			out[idx] = d.Clone()
			continue
		}
		out = append(out, d.Clone())
	}
	return out
}

func cloneDisruptions(in []domain.Disruption) []domain.Disruption {
	out := make([]domain.Disruption, 0, len(in))
	for _, d := range in {
		out = append(out, d.Clone())
	}
	return out
}
