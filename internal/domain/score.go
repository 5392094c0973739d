package domain

import (
	"cmp"
	"slices"
)

// defaultRating applies to candidates without a rating.
const defaultRating = 3.5

// ScoredCandidate pairs a candidate with its score.
type ScoredCandidate struct {
	Candidate Candidate
	Score     float64
}

// Score ranks one candidate for a profile and travel style. Weather does not
// change the score; rain is handled when replacements are filtered.
func Score(c Candidate, profile UserProfile, _ Weather, style TravelStyle) float64 {
	return baseScore(c, profile) + styleBonus(c, style)
}

// ProfileScore ranks one candidate using every travel style the profile declares.
func ProfileScore(c Candidate, profile UserProfile, _ Weather) float64 {
	score := baseScore(c, profile)
	for _, style := range profile.TravelStyles {
		score += styleBonus(c, style)
	}
	return score
}

// RankCandidates scores and orders candidates best first. Ties go to the higher
// rating, then the lower cost, then the id.
func RankCandidates(candidates []Candidate, profile UserProfile, weather Weather) []ScoredCandidate {
	out := make([]ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, ScoredCandidate{Candidate: c, Score: ProfileScore(c, profile, weather)})
	}
	slices.SortStableFunc(out, compareScored)
	return out
}

func compareScored(a, b ScoredCandidate) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	if c := cmp.Compare(RatingOf(b.Candidate), RatingOf(a.Candidate)); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Candidate.CostUSD, b.Candidate.CostUSD); c != 0 {
		return c
	}
	return cmp.Compare(a.Candidate.ID, b.Candidate.ID)
}

// RatingOf returns the candidate rating or the default when absent.
func RatingOf(c Candidate) float64 {
	if c.Rating == nil {
		return defaultRating
	}
	return *c.Rating
}

func baseScore(c Candidate, profile UserProfile) float64 {
	score := RatingOf(c) * 0.5
	if dim, ok := c.Category.Dimension(); ok {
		score += profile.Preferences.Weight(dim) * 3
	}
	return score
}

func styleBonus(c Candidate, style TravelStyle) float64 {
	switch style {
	case StyleRelaxed:
		if c.DurationMin < 60 {
			return 0.5
		}
	case StyleExplorer:
		if c.Category != CategoryCafe {
			return 0.3
		}
	case StyleCultural:
		if c.Category.IsCultural() {
			return 0.8
		}
	case StyleLuxury:
		if c.EffectivePriceLevel() > 2 {
			return 0.6
		}
	}
	return 0
}
