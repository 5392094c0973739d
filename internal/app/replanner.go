package app

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/hylla/draip/internal/domain"
)

// shortActivityMin is the duration treated as light when the user is tired or late.
const shortActivityMin = 60

// quietCrowdLevel is the crowd level preferred after a CROWD disruption.
const quietCrowdLevel = 0.5

// Explanation describes why a replan changed the plan.
type Explanation struct {
	Summary           string   `json:"summary"`
	RulesApplied      []string `json:"rules_applied"`
	Removed           []string `json:"removed"`
	Added             []string `json:"added"`
	SatisfactionDelta float64  `json:"satisfaction_delta"`
	RewardScore       float64  `json:"reward_score"`
	Detail            string   `json:"detail,omitempty"`
}

// Clone returns a deep copy.
func (e Explanation) Clone() Explanation {
	e.RulesApplied = append([]string(nil), e.RulesApplied...)
	e.Removed = append([]string(nil), e.Removed...)
	e.Added = append([]string(nil), e.Added...)
	return e
}

// ReplanInput is the full context for one replan.
type ReplanInput struct {
	Activities  []domain.Activity
	Disruptions []domain.Disruption
	Profile     domain.UserProfile
	State       domain.UserState
	Weather     domain.Weather
	Candidates  []domain.Candidate
	TopK        int
}

// ReplanResult is the patched activity list and its explanation.
type ReplanResult struct {
	Activities  []domain.Activity
	Explanation Explanation
}

// replanPlan splits the current day into what must stay and what may move.
type replanPlan struct {
	locked    []domain.Activity
	open      []domain.Activity
	disrupted map[string]struct{}
	anchor    domain.ClockTime
}

func splitForReplan(activities []domain.Activity, disruptions []domain.Disruption) replanPlan {
	plan := replanPlan{disrupted: map[string]struct{}{}}
	for _, a := range activities {
		if a.Locked() {
			plan.locked = append(plan.locked, a.Clone())
			continue
		}
		plan.open = append(plan.open, a.Clone())
		if a.Status == domain.StatusDisrupted {
			plan.disrupted[a.ID] = struct{}{}
		}
	}
	for _, id := range domain.AffectedIDs(disruptions) {
		for _, a := range plan.open {
			if a.ID == id {
				plan.disrupted[id] = struct{}{}
			}
		}
	}
	if len(plan.locked) > 0 {
		for _, a := range plan.locked {
			plan.anchor = max(plan.anchor, a.EndTime)
		}
	} else if len(plan.open) > 0 {
		plan.anchor = plan.open[0].StartTime
		for _, a := range plan.open {
			plan.anchor = min(plan.anchor, a.StartTime)
		}
	}
	return plan
}

func (p replanPlan) isDisrupted(id string) bool {
	_, ok := p.disrupted[id]
	return ok
}

// keptCost sums costs still ahead in the plan, excluding disrupted activities.
func (p replanPlan) keptCost() float64 {
	total := 0.0
	for _, a := range p.locked {
		if a.Status != domain.StatusDone {
			total += a.CostUSD
		}
	}
	for _, a := range p.open {
		if !p.isDisrupted(a.ID) {
			total += a.CostUSD
		}
	}
	return total
}

// hasActive reports whether a locked activity is still in progress.
func (p replanPlan) hasActive() bool {
	return slices.ContainsFunc(p.locked, func(a domain.Activity) bool { return a.Status == domain.StatusActive })
}

// replanRules derives candidate filters from a disruption batch.
type replanRules struct {
	indoorOnly  bool
	avoid       map[domain.Category]struct{}
	preferShort bool
	preferQuiet bool
	labels      []string
}

func rulesFor(disruptions []domain.Disruption, plan replanPlan) replanRules {
	rules := replanRules{avoid: map[domain.Category]struct{}{}}
	for _, kind := range domain.DisruptionTypes(disruptions) {
		switch kind {
		case domain.DisruptionWeather:
			rules.indoorOnly = true
			rules.labels = append(rules.labels, "WEATHER: indoor venues only")
		case domain.DisruptionBoredom:
			var names []string
			for _, a := range plan.open {
				if plan.isDisrupted(a.ID) {
					rules.avoid[a.Category] = struct{}{}
					names = append(names, string(a.Category))
				}
			}
			label := "BOREDOM: switch to a different kind of activity"
			if len(names) > 0 {
				slices.Sort(names)
				label = "BOREDOM: avoid " + strings.Join(slices.Compact(names), ", ")
			}
			rules.labels = append(rules.labels, label)
		case domain.DisruptionFatigue:
			rules.preferShort = true
			rules.labels = append(rules.labels, "FATIGUE: shorter or indoor activities preferred")
		case domain.DisruptionTime:
			rules.preferShort = true
			rules.labels = append(rules.labels, "TIME: shorter activities to catch up")
		case domain.DisruptionCrowd:
			rules.preferQuiet = true
			rules.labels = append(rules.labels, "CROWD: quieter venues preferred")
		}
	}
	return rules
}

func (r replanRules) allows(c domain.Candidate) bool {
	if r.indoorOnly && !c.IsIndoor {
		return false
	}
	_, avoided := r.avoid[c.Category]
	return !avoided
}

func (r replanRules) prefers(c domain.Candidate) bool {
	if r.preferShort && c.DurationMin > shortActivityMin && !c.IsIndoor {
		return false
	}
	if r.preferQuiet && c.CrowdLevel >= quietCrowdLevel {
		return false
	}
	return true
}

// Replan replaces disrupted activities with better-fitting candidates. Locked
// activities are returned unchanged; everything else is re-timed contiguously
// from the latest locked end. It fails with ErrReplanUnavailable, leaving the
// input untouched, when no replacement can be found.
func Replan(in ReplanInput) (ReplanResult, error) {
	plan := splitForReplan(in.Activities, in.Disruptions)
	if len(plan.disrupted) == 0 {
		return ReplanResult{}, fmt.Errorf("replan: no disrupted activities: %w", ErrReplanUnavailable)
	}
	candidates, err := normalizeCandidates(in.Candidates)
	if err != nil {
		return ReplanResult{}, fmt.Errorf("replan: %w", err)
	}
	topK := in.TopK
	if topK <= 0 {
		topK = defaultTopK
	}

	rules := rulesFor(in.Disruptions, plan)
	scheduled := map[string]struct{}{}
	for _, a := range in.Activities {
		scheduled[a.ID] = struct{}{}
	}
	eligible := make([]domain.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if _, ok := scheduled[c.ID]; ok {
			continue
		}
		if rules.allows(c) {
			eligible = append(eligible, c)
		}
	}
	ranked := domain.RankCandidates(eligible, in.Profile, in.Weather)
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}

	remaining := domain.BudgetCeiling(in.Profile.BudgetPerDay) - in.State.BudgetSpent - plan.keptCost()
	picker := newSlotPicker(ranked, math.Max(0, remaining))

	var (
		next       []domain.Activity
		removed    []string
		added      []string
		addedScore float64
		lostScore  float64
	)
	for _, a := range plan.open {
		if !plan.isDisrupted(a.ID) {
			next = append(next, a)
			continue
		}
		removed = append(removed, a.Name)
		lostScore += domain.ProfileScore(candidateOf(a), in.Profile, in.Weather)
		pick, ok := pickReplacement(picker, rules, a.Category)
		if !ok {
			continue
		}
		reason := fmt.Sprintf("replaces %s, score %.2f", a.Name, pick.scored.Score)
		next = append(next, domain.NewActivity(pick.scored.Candidate, a.StartTime, domain.StatusUpcoming, reason))
		added = append(added, pick.scored.Candidate.Name)
		addedScore += pick.scored.Score
	}
	if len(added) == 0 {
		return ReplanResult{}, fmt.Errorf("replan: no suitable candidates for %d disrupted activities: %w", len(plan.disrupted), ErrReplanUnavailable)
	}

	retimed, dropped := retime(next, plan.anchor, !plan.hasActive())
	removed = append(removed, dropped...)
	activities := append(append([]domain.Activity(nil), plan.locked...), retimed...)
	if err := domain.ValidateSchedule(activities); err != nil {
		return ReplanResult{}, fmt.Errorf("replan: %w: %w", ErrReplanUnavailable, err)
	}

	delta := satisfactionDelta(addedScore, len(added), lostScore, len(removed)-len(dropped))
	satisfaction := in.State.Motivation/100 + delta
	explanation := Explanation{
		Summary:           replanSummary(in.Disruptions, len(plan.disrupted), len(added)),
		RulesApplied:      rules.labels,
		Removed:           removed,
		Added:             added,
		SatisfactionDelta: delta,
		RewardScore:       domain.ComputeReward(domain.RewardInputFor(in.State, in.Profile, activities, satisfaction)),
		Detail:            domain.JoinDescriptions(in.Disruptions),
	}
	return ReplanResult{Activities: activities, Explanation: explanation}, nil
}

// pickReplacement tries, in order: preferred same-category, preferred any,
// same-category, any.
func pickReplacement(p *slotPicker, rules replanRules, category domain.Category) (*slotPick, bool) {
	attempts := []func(domain.Candidate) bool{
		func(c domain.Candidate) bool { return rules.prefers(c) && c.Category == category },
		rules.prefers,
		func(c domain.Candidate) bool { return c.Category == category },
		func(domain.Candidate) bool { return true },
	}
	for _, match := range attempts {
		if pick, ok := p.takeWhere(match); ok {
			return pick, true
		}
	}
	return nil, false
}

// retime lays activities end to end from anchor and drops those that would
// run past midnight. When promote is set the first activity becomes active.
func retime(activities []domain.Activity, anchor domain.ClockTime, promote bool) ([]domain.Activity, []string) {
	out := make([]domain.Activity, 0, len(activities))
	var dropped []string
	cursor := anchor
	for _, a := range activities {
		moved := a.Reschedule(cursor)
		if moved.EndTime > domain.EndOfDay {
			dropped = append(dropped, a.Name)
			continue
		}
		if moved.Status == domain.StatusDisrupted {
			moved.Status = domain.StatusUpcoming
		}
		out = append(out, moved)
		cursor = moved.EndTime
	}
	if promote && len(out) > 0 && out[0].Status != domain.StatusPending {
		out[0].Status = domain.StatusActive
	}
	return out, dropped
}

// satisfactionDelta compares average scores of added and removed activities on
// a 0–10 scale, clamped to [-1, 1].
func satisfactionDelta(addedScore float64, addedCount int, lostScore float64, lostCount int) float64 {
	if addedCount == 0 || lostCount == 0 {
		return 0
	}
	delta := (addedScore/float64(addedCount) - lostScore/float64(lostCount)) / 10
	return math.Round(math.Max(-1, math.Min(1, delta))*1000) / 1000
}

func replanSummary(disruptions []domain.Disruption, disrupted, replaced int) string {
	kinds := domain.DisruptionTypes(disruptions)
	labels := make([]string, 0, len(kinds))
	for _, k := range kinds {
		labels = append(labels, string(k))
	}
	reason := "disruption"
	if len(labels) > 0 {
		reason = strings.Join(labels, ", ")
	}
	return fmt.Sprintf("Replaced %d of %d disrupted activities (%s).", replaced, disrupted, reason)
}

// candidateOf rebuilds the scoring view of a scheduled activity.
func candidateOf(a domain.Activity) domain.Candidate {
	return domain.Candidate{
		ID:                a.ID,
		Name:              a.Name,
		Category:          a.Category,
		Rating:            a.Rating,
		DurationMin:       a.DurationMin,
		CostUSD:           a.CostUSD,
		IsIndoor:          a.IsIndoor,
		CrowdLevel:        a.CrowdLevel,
		DistanceFromPrevM: a.DistanceFromPrevM,
	}
}
