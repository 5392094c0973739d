package app

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/hylla/draip/internal/domain"
)

// advisorCandidateLimit bounds how many places are sent in one prompt.
const advisorCandidateLimit = 12

const itinerarySystemPrompt = `You plan one day of city travel. Choose only from the places provided.
Respond with a single JSON object and nothing else. Activities must be sorted by time,
must not overlap, and endTime must equal time plus durationMin.`

const replanSystemPrompt = `You repair a day plan after a disruption. Never change LOCKED activities.
Replace DISRUPTED activities using only the places provided and respect the constraints.
Respond with a single JSON object and nothing else.`

// fencedBlockPattern matches one fenced code block with an optional language tag.
var fencedBlockPattern = regexp.MustCompile("(?s)^```([A-Za-z]*)[ \t]*\n(.*?)\n?```$")

// advisorActivity is the activity shape exchanged with the advisor.
type advisorActivity struct {
	ID                string  `json:"id"`
	Time              string  `json:"time"`
	EndTime           string  `json:"endTime,omitempty"`
	Name              string  `json:"name"`
	Category          string  `json:"category"`
	DurationMin       int     `json:"durationMin"`
	CostUSD           float64 `json:"costUsd"`
	DistanceFromPrevM float64 `json:"distanceFromPrevM"`
	IsIndoor          bool    `json:"isIndoor"`
	CrowdLevel        float64 `json:"crowdLevel"`
	ReasonChosen      string  `json:"reasonChosen,omitempty"`
}

type itinerarySuggestion struct {
	Itinerary   []advisorActivity `json:"itinerary"`
	DayTheme    string            `json:"dayTheme"`
	PlannerNote string            `json:"plannerNote"`
}

type replanSuggestion struct {
	NewActivities  []advisorActivity   `json:"newActivities"`
	XAIExplanation *advisorExplanation `json:"xaiExplanation"`
}

type advisorExplanation struct {
	Summary           string       `json:"summary"`
	RulesApplied      []string     `json:"rulesApplied"`
	Removed           []string     `json:"removed"`
	Added             []string     `json:"added"`
	SatisfactionDelta signedNumber `json:"satisfactionDelta"`
	Detail            string       `json:"detail"`
}

// signedNumber accepts 0.1 as well as "+0.1".
type signedNumber float64

// UnmarshalJSON implements json.Unmarshaler.
func (n *signedNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(strings.TrimPrefix(strings.TrimSpace(raw), "+"), 64)
		if err != nil {
			return fmt.Errorf("satisfaction delta %q: %w", raw, err)
		}
		*n = signedNumber(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*n = signedNumber(v)
	return nil
}

// extractAdvisorJSON accepts a bare JSON object or exactly one fenced block
// holding one. Nothing else is repaired or searched for.
func extractAdvisorJSON(raw string) ([]byte, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, parseFailure("empty response", nil)
	}
	if strings.HasPrefix(text, "```") {
		match := fencedBlockPattern.FindStringSubmatch(text)
		if match == nil {
			return nil, parseFailure("unterminated or trailing fenced block", nil)
		}
		if lang := strings.ToLower(match[1]); lang != "" && lang != "json" {
			return nil, parseFailure("fenced block is not json", nil)
		}
		text = strings.TrimSpace(match[2])
		if strings.Contains(text, "```") {
			return nil, parseFailure("more than one fenced block", nil)
		}
	}
	if !strings.HasPrefix(text, "{") {
		return nil, parseFailure("response is not a json object", nil)
	}
	if !json.Valid([]byte(text)) {
		return nil, parseFailure("invalid json", nil)
	}
	return []byte(text), nil
}

func decodeAdvisor(raw string, dst any) error {
	data, err := extractAdvisorJSON(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return parseFailure("decode", err)
	}
	return nil
}

// itineraryPrompt renders the build context for the advisor.
func itineraryPrompt(in BuildInput, candidates []domain.Candidate) (AdvisorRequest, error) {
	body, err := promptSections(
		"CITY", in.City,
		"PROFILE", in.Profile,
		"WEATHER", in.Weather,
		"BUDGET CEILING", domain.BudgetCeiling(in.Profile.BudgetPerDay),
		"AVAILABLE PLACES", limitCandidates(candidates),
	)
	if err != nil {
		return AdvisorRequest{}, err
	}
	body += `
Return:
{"itinerary":[{"id":"place id","time":"09:00","endTime":"09:45","name":"Place","category":"cafe","durationMin":45,"costUsd":10,"distanceFromPrevM":0,"isIndoor":true,"crowdLevel":0.3,"reasonChosen":"string"}],"dayTheme":"string","plannerNote":"string"}`
	return AdvisorRequest{Kind: AdvisorItinerary, System: itinerarySystemPrompt, Prompt: body}, nil
}

// replanPrompt renders the replan context for the advisor.
func replanPrompt(in ReplanInput, plan replanPlan, candidates []domain.Candidate) (AdvisorRequest, error) {
	var disrupted []domain.Activity
	for _, a := range plan.open {
		if plan.isDisrupted(a.ID) {
			disrupted = append(disrupted, a)
		}
	}
	body, err := promptSections(
		"LOCKED", plan.locked,
		"DISRUPTED", disrupted,
		"DISRUPTIONS", in.Disruptions,
		"USER", in.Profile,
		"STATE", in.State,
		"CONSTRAINTS", map[string]any{
			"startAfter":      plan.anchor.String(),
			"remainingBudget": domain.BudgetCeiling(in.Profile.BudgetPerDay) - in.State.BudgetSpent - plan.keptCost(),
			"indoorOnly":      in.Weather.Rainy(),
		},
		"AVAILABLE PLACES", limitCandidates(candidates),
	)
	if err != nil {
		return AdvisorRequest{}, err
	}
	body += `
Return:
{"newActivities":[{"id":"place id","time":"14:00","endTime":"15:00","name":"Place","category":"cafe","durationMin":60,"costUsd":10,"distanceFromPrevM":200,"isIndoor":true,"crowdLevel":0.3}],"xaiExplanation":{"summary":"string","rulesApplied":["WEATHER"],"removed":["Old activity"],"added":["New activity"],"satisfactionDelta":0.1,"detail":"string"}}`
	return AdvisorRequest{Kind: AdvisorReplan, System: replanSystemPrompt, Prompt: body}, nil
}

func promptSections(pairs ...any) (string, error) {
	var b strings.Builder
	for idx := 0; idx+1 < len(pairs); idx += 2 {
		label, _ := pairs[idx].(string)
		data, err := json.MarshalIndent(pairs[idx+1], "", "  ")
		if err != nil {
			return "", fmt.Errorf("render %s: %w", strings.ToLower(label), err)
		}
		fmt.Fprintf(&b, "%s:\n%s\n\n", label, data)
	}
	return b.String(), nil
}

func limitCandidates(candidates []domain.Candidate) []domain.Candidate {
	if len(candidates) > advisorCandidateLimit {
		return candidates[:advisorCandidateLimit]
	}
	return candidates
}

// toActivity binds an advisor activity to a known candidate and checks that
// its timing is self-consistent. Venue facts always come from the candidate;
// only the start time and duration are taken from the advisor.
func (a advisorActivity) toActivity(known map[string]domain.Candidate, status domain.ActivityStatus) (domain.Activity, error) {
	c, ok := known[strings.TrimSpace(a.ID)]
	if !ok {
		return domain.Activity{}, fmt.Errorf("unknown place id %q", a.ID)
	}
	start, err := domain.ParseClockTime(a.Time)
	if err != nil {
		return domain.Activity{}, err
	}
	if a.DurationMin > 0 {
		c.DurationMin = a.DurationMin
	}
	activity := domain.NewActivity(c, start, status, a.ReasonChosen)
	if strings.TrimSpace(a.EndTime) != "" {
		end, err := domain.ParseClockTime(a.EndTime)
		if err != nil {
			return domain.Activity{}, err
		}
		if end != activity.EndTime {
			return domain.Activity{}, fmt.Errorf("activity %q ends at %s, want %s", a.ID, end, activity.EndTime)
		}
	}
	return activity, nil
}

// parseItinerarySuggestion turns advisor output into a validated build result.
func parseItinerarySuggestion(raw string, in BuildInput, candidates []domain.Candidate) (BuildResult, error) {
	var s itinerarySuggestion
	if err := decodeAdvisor(raw, &s); err != nil {
		return BuildResult{}, err
	}
	if len(s.Itinerary) == 0 {
		return BuildResult{}, parseFailure("empty itinerary", nil)
	}
	known := indexCandidates(candidates)
	activities := make([]domain.Activity, 0, len(s.Itinerary))
	for idx, item := range s.Itinerary {
		status := domain.StatusUpcoming
		if idx == 0 {
			status = domain.StatusActive
		}
		activity, err := item.toActivity(known, status)
		if err != nil {
			return BuildResult{}, parseFailure("itinerary activity", err)
		}
		activities = append(activities, activity)
	}
	if err := domain.ValidateSchedule(activities); err != nil {
		return BuildResult{}, parseFailure("itinerary schedule", err)
	}
	it := domain.Itinerary{City: strings.TrimSpace(in.City), Activities: activities}
	if it.TotalCostUSD() > domain.BudgetCeiling(in.Profile.BudgetPerDay) {
		return BuildResult{}, parseFailure("itinerary exceeds budget", nil)
	}
	theme := strings.TrimSpace(s.DayTheme)
	if theme == "" {
		theme = ThemeFor(activities)
	}
	it.Theme = displayTheme(theme, it.City)
	it.PlannerNote = strings.TrimSpace(s.PlannerNote)
	if it.PlannerNote == "" {
		it.PlannerNote = fmt.Sprintf("Generated %d activities based on your %s travel style and preferences.", len(activities), in.Profile.StyleLabel())
	}
	return BuildResult{
		Itinerary: it,
		Theme:     theme,
		CostUSD:   it.TotalCostUSD(),
		WalkingKm: it.WalkingKm(),
		Pool:      len(candidates),
	}, nil
}

// parseReplanSuggestion merges advisor replacements behind the locked
// activities and checks every replan invariant before accepting them.
func parseReplanSuggestion(raw string, in ReplanInput, plan replanPlan, candidates []domain.Candidate) (ReplanResult, error) {
	var s replanSuggestion
	if err := decodeAdvisor(raw, &s); err != nil {
		return ReplanResult{}, err
	}
	if len(s.NewActivities) == 0 {
		return ReplanResult{}, parseFailure("no new activities", nil)
	}
	if s.XAIExplanation == nil {
		return ReplanResult{}, parseFailure("missing explanation", nil)
	}

	known := indexCandidates(candidates)
	for _, a := range plan.open {
		if !plan.isDisrupted(a.ID) {
			known[a.ID] = candidateOf(a)
		}
	}
	tail := make([]domain.Activity, 0, len(s.NewActivities))
	for _, item := range s.NewActivities {
		if plan.isDisrupted(strings.TrimSpace(item.ID)) {
			return ReplanResult{}, parseFailure("disrupted activity kept", fmt.Errorf("id %q", item.ID))
		}
		activity, err := item.toActivity(known, domain.StatusUpcoming)
		if err != nil {
			return ReplanResult{}, parseFailure("replan activity", err)
		}
		if activity.StartTime < plan.anchor {
			return ReplanResult{}, parseFailure("replan activity starts before locked activities end", fmt.Errorf("id %q", activity.ID))
		}
		tail = append(tail, activity)
	}
	if !plan.hasActive() && len(tail) > 0 {
		tail[0].Status = domain.StatusActive
	}
	activities := append(append([]domain.Activity(nil), plan.locked...), tail...)
	if err := domain.ValidateSchedule(activities); err != nil {
		return ReplanResult{}, parseFailure("replan schedule", err)
	}
	total := in.State.BudgetSpent
	for _, a := range activities {
		if a.Status != domain.StatusDone {
			total += a.CostUSD
		}
	}
	if total > domain.BudgetCeiling(in.Profile.BudgetPerDay) {
		return ReplanResult{}, parseFailure("replan exceeds budget", nil)
	}

	delta := float64(s.XAIExplanation.SatisfactionDelta)
	delta = max(-1, min(1, delta))
	explanation := Explanation{
		Summary:           strings.TrimSpace(s.XAIExplanation.Summary),
		RulesApplied:      append([]string(nil), s.XAIExplanation.RulesApplied...),
		Removed:           append([]string(nil), s.XAIExplanation.Removed...),
		Added:             append([]string(nil), s.XAIExplanation.Added...),
		SatisfactionDelta: delta,
		RewardScore:       domain.ComputeReward(domain.RewardInputFor(in.State, in.Profile, activities, in.State.Motivation/100+delta)),
		Detail:            strings.TrimSpace(s.XAIExplanation.Detail),
	}
	if explanation.Summary == "" {
		explanation.Summary = replanSummary(in.Disruptions, len(plan.disrupted), len(tail))
	}
	return ReplanResult{Activities: activities, Explanation: explanation}, nil
}

func indexCandidates(candidates []domain.Candidate) map[string]domain.Candidate {
	out := make(map[string]domain.Candidate, len(candidates))
	for _, c := range candidates {
		out[c.ID] = c
	}
	return out
}

// IsParseFailure reports whether err came from unusable advisor output.
func IsParseFailure(err error) bool {
	var pf *ParseFailure
	return errors.As(err, &pf)
}
