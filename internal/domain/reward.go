package domain

import "math"

// BudgetOverrunTolerance is the fraction of the daily budget a plan may exceed.
// Reward computation penalizes any overrun, and plans beyond this fraction are
// rejected.
const BudgetOverrunTolerance = 0.2

// maxSatisfactionPoints bounds the satisfaction trend history.
const maxSatisfactionPoints = 12

// RewardInput carries normalized reward components. Satisfaction, Fatigue, and
// Stress are fractions in [0,1].
type RewardInput struct {
	Satisfaction     float64
	Fatigue          float64
	Stress           float64
	CostOverrun      float64
	WalkingOverrunKm float64
}

// ComputeReward scores a plan outcome in [0,1], rounded to 3 decimals.
func ComputeReward(in RewardInput) float64 {
	satisfaction := clamp(in.Satisfaction, 0, 1)
	fatigue := clamp(in.Fatigue, 0, 1)
	stress := clamp(in.Stress, 0, 1)
	costOverrun := math.Max(0, in.CostOverrun)
	walkingOverrun := math.Max(0, in.WalkingOverrunKm)

	reward := satisfaction*0.5 +
		(1-fatigue)*0.2 +
		(1-stress)*0.2 -
		costOverrun*0.05 -
		walkingOverrun*0.05
	if math.IsNaN(reward) {
		return 0
	}
	return math.Round(clamp(reward, 0, 1)*1000) / 1000
}

// RewardInputFor derives reward components from live state and a plan.
func RewardInputFor(state UserState, profile UserProfile, activities []Activity, satisfaction float64) RewardInput {
	totalCost := state.BudgetSpent
	walkingKm := 0.0
	for _, a := range activities {
		if a.Status == StatusDone {
			continue
		}
		totalCost += a.CostUSD
		walkingKm += a.WalkingKm()
	}
	in := RewardInput{
		Satisfaction: satisfaction,
		Fatigue:      state.Fatigue / 100,
		Stress:       state.Stress / 100,
		CostOverrun:  CostOverrun(totalCost, profile.BudgetPerDay),
	}
	if profile.MaxWalkingKm > 0 {
		in.WalkingOverrunKm = math.Max(0, walkingKm-profile.MaxWalkingKm)
	}
	return in
}

// CostOverrun returns spending beyond budget as a fraction of the budget.
func CostOverrun(total, budget float64) float64 {
	if budget <= 0 {
		return 0
	}
	return math.Max(0, (total-budget)/budget)
}

// BudgetCeiling returns the most a plan may cost for budget.
func BudgetCeiling(budget float64) float64 {
	return budget * (1 + BudgetOverrunTolerance)
}

// RLMetrics tracks the reward signal over the trip.
type RLMetrics struct {
	CumulativeReward    float64   `json:"cumulative_reward"`
	ReplanCount         int       `json:"replan_count"`
	SatisfactionHistory []float64 `json:"satisfaction_history"`
	LastReplanLatencyMS int64     `json:"last_replan_latency_ms"`
}

// PushSatisfaction appends a 0–100 point, evicting the oldest beyond the bound.
func (m *RLMetrics) PushSatisfaction(point float64) {
	m.SatisfactionHistory = append(m.SatisfactionHistory, clamp(point, 0, 100))
	if over := len(m.SatisfactionHistory) - maxSatisfactionPoints; over > 0 {
		m.SatisfactionHistory = append([]float64(nil), m.SatisfactionHistory[over:]...)
	}
}

// AddReward folds one reward into the running sum.
func (m *RLMetrics) AddReward(reward float64) {
	m.CumulativeReward = math.Round((m.CumulativeReward+reward)*1000) / 1000
}

// RecordReplan counts a completed replan and its latency.
func (m *RLMetrics) RecordReplan(latencyMS int64) {
	m.ReplanCount++
	m.LastReplanLatencyMS = latencyMS
}

// LastSatisfaction returns the newest point, if any.
func (m RLMetrics) LastSatisfaction() (float64, bool) {
	if len(m.SatisfactionHistory) == 0 {
		return 0, false
	}
	return m.SatisfactionHistory[len(m.SatisfactionHistory)-1], true
}

// Clone returns a deep copy.
func (m RLMetrics) Clone() RLMetrics {
	m.SatisfactionHistory = append([]float64(nil), m.SatisfactionHistory...)
	return m
}
