package app

import (
	"fmt"
	"strings"

	"github.com/hylla/draip/internal/domain"
)

// defaultTopK bounds the candidate pool considered by the builder and replanner.
const defaultTopK = 15

// minFilledSlots is the slot count below which the builder pads the day.
const minFilledSlots = 5

// daySlot is one fixed position in the generated day.
type daySlot struct {
	label      string
	start      domain.ClockTime
	categories []domain.Category
}

var daySlots = []daySlot{
	{label: "morning coffee", start: domain.NewClockTime(9, 0), categories: []domain.Category{domain.CategoryCafe, domain.CategoryRestaurant}},
	{label: "main attraction", start: domain.NewClockTime(10, 30), categories: []domain.Category{domain.CategoryMuseum, domain.CategoryMonument, domain.CategoryArt}},
	{label: "lunch", start: domain.NewClockTime(12, 30), categories: []domain.Category{domain.CategoryRestaurant, domain.CategoryCafe}},
	{label: "early afternoon", start: domain.NewClockTime(14, 0), categories: []domain.Category{domain.CategoryPark, domain.CategoryMuseum, domain.CategoryShopping}},
	{label: "late afternoon", start: domain.NewClockTime(15, 30), categories: []domain.Category{domain.CategoryShopping, domain.CategoryArt, domain.CategoryCafe}},
	{label: "early evening", start: domain.NewClockTime(17, 0), categories: []domain.Category{domain.CategoryMonument, domain.CategoryPark, domain.CategoryCafe}},
	{label: "dinner", start: domain.NewClockTime(19, 0), categories: []domain.Category{domain.CategoryRestaurant}},
	{label: "evening", start: domain.NewClockTime(20, 30), categories: []domain.Category{domain.CategoryNightlife, domain.CategoryTheater, domain.CategoryRestaurant}},
}

// BuildInput holds the inputs for one schedule build.
type BuildInput struct {
	Candidates []domain.Candidate
	Profile    domain.UserProfile
	Weather    *domain.Weather
	City       string
	TopK       int
}

// BuildResult is a freshly generated day plus its summary figures.
type BuildResult struct {
	Itinerary domain.Itinerary
	Theme     string
	CostUSD   float64
	WalkingKm float64
	Pool      int
}

// Summary renders the decision log message for a build.
func (r BuildResult) Summary() string {
	return fmt.Sprintf("Generated %d activities. Theme: %s. Estimated cost: $%.0f. Walking: ~%.1f km.",
		len(r.Itinerary.Activities), r.Theme, r.CostUSD, r.WalkingKm)
}

// BuildSchedule generates a day itinerary from scored candidates. Version is
// left at zero; the session assigns it on swap.
func BuildSchedule(in BuildInput) (BuildResult, error) {
	if in.Weather == nil {
		return BuildResult{}, fmt.Errorf("build schedule: weather unavailable: %w", ErrInsufficientData)
	}
	candidates, err := normalizeCandidates(in.Candidates)
	if err != nil {
		return BuildResult{}, fmt.Errorf("build schedule: %w", err)
	}
	if len(candidates) == 0 {
		return BuildResult{}, fmt.Errorf("build schedule: no candidate places: %w", ErrInsufficientData)
	}
	topK := in.TopK
	if topK <= 0 {
		topK = defaultTopK
	}

	ranked := domain.RankCandidates(candidates, in.Profile, *in.Weather)
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}

	picker := newSlotPicker(ranked, domain.BudgetCeiling(in.Profile.BudgetPerDay))
	filled := make([]*slotPick, len(daySlots))
	count := 0
	for idx, slot := range daySlots {
		if pick, ok := picker.take(slot.categories); ok {
			pick.reason = fmt.Sprintf("%s slot, score %.2f", slot.label, pick.scored.Score)
			filled[idx] = pick
			count++
		}
	}
	if count < minFilledSlots {
		for idx := range filled {
			if filled[idx] != nil {
				continue
			}
			pick, ok := picker.take(nil)
			if !ok {
				break
			}
			pick.reason = fmt.Sprintf("filler for the %s slot, score %.2f", daySlots[idx].label, pick.scored.Score)
			filled[idx] = pick
		}
	}

	activities := make([]domain.Activity, 0, len(daySlots))
	prevEnd := domain.ClockTime(0)
	for idx, pick := range filled {
		if pick == nil {
			continue
		}
		start := max(daySlots[idx].start, prevEnd)
		status := domain.StatusUpcoming
		if len(activities) == 0 {
			status = domain.StatusActive
		}
		activity := domain.NewActivity(pick.scored.Candidate, start, status, pick.reason)
		if activity.EndTime > domain.EndOfDay {
			continue
		}
		activities = append(activities, activity)
		prevEnd = activity.EndTime
	}
	if len(activities) == 0 {
		return BuildResult{}, fmt.Errorf("build schedule: no candidate fits the budget: %w", ErrInsufficientData)
	}

	theme := ThemeFor(activities)
	city := strings.TrimSpace(in.City)
	itinerary := domain.Itinerary{
		City:        city,
		Theme:       displayTheme(theme, city),
		PlannerNote: fmt.Sprintf("Generated %d activities based on your %s travel style and preferences.", len(activities), in.Profile.StyleLabel()),
		Activities:  activities,
	}
	if err := itinerary.Validate(); err != nil {
		return BuildResult{}, fmt.Errorf("build schedule: %w", err)
	}
	return BuildResult{
		Itinerary: itinerary,
		Theme:     theme,
		CostUSD:   itinerary.TotalCostUSD(),
		WalkingKm: itinerary.WalkingKm(),
		Pool:      len(candidates),
	}, nil
}

// ThemeFor names the day from its category mix.
func ThemeFor(activities []domain.Activity) string {
	counts := map[domain.Category]int{}
	for _, a := range activities {
		counts[a.Category]++
	}
	switch {
	case counts[domain.CategoryMuseum] > 2 || counts[domain.CategoryArt] > 1:
		return "Cultural Exploration"
	case counts[domain.CategoryRestaurant] > 2 || counts[domain.CategoryCafe] > 1:
		return "Culinary Journey"
	case counts[domain.CategoryPark] > 1:
		return "Nature & Relaxation"
	case counts[domain.CategoryShopping] > 1:
		return "Shopping Adventure"
	default:
		return "City Discovery"
	}
}

func displayTheme(theme, city string) string {
	if city == "" {
		return theme
	}
	return theme + " in " + city
}

// normalizeCandidates normalizes, validates, and de-duplicates candidates by id.
func normalizeCandidates(in []domain.Candidate) ([]domain.Candidate, error) {
	out := make([]domain.Candidate, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, c := range in {
		c = c.Normalize()
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("candidate %q: %w", c.ID, err)
		}
		if _, ok := seen[c.ID]; ok {
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, c)
	}
	return out, nil
}

type slotPick struct {
	scored domain.ScoredCandidate
	reason string
}

// slotPicker hands out ranked candidates at most once while tracking spend
// against a cost ceiling.
type slotPicker struct {
	ranked  []domain.ScoredCandidate
	used    map[string]struct{}
	spent   float64
	ceiling float64
}

func newSlotPicker(ranked []domain.ScoredCandidate, ceiling float64) *slotPicker {
	return &slotPicker{ranked: ranked, used: map[string]struct{}{}, ceiling: ceiling}
}

// take returns the best unused candidate for the first category in prefs that
// has one. A nil prefs list accepts any category.
func (p *slotPicker) take(prefs []domain.Category) (*slotPick, bool) {
	if len(prefs) == 0 {
		return p.takeWhere(func(domain.Candidate) bool { return true })
	}
	for _, category := range prefs {
		if pick, ok := p.takeWhere(func(c domain.Candidate) bool { return c.Category == category }); ok {
			return pick, true
		}
	}
	return nil, false
}

func (p *slotPicker) takeWhere(match func(domain.Candidate) bool) (*slotPick, bool) {
	for _, sc := range p.ranked {
		if _, ok := p.used[sc.Candidate.ID]; ok {
			continue
		}
		if !match(sc.Candidate) {
			continue
		}
		if p.spent+sc.Candidate.CostUSD > p.ceiling {
			continue
		}
		p.used[sc.Candidate.ID] = struct{}{}
		p.spent += sc.Candidate.CostUSD
		return &slotPick{scored: sc}, true
	}
	return nil, false
}
