package domain

import "testing"

func TestComputeReward(t *testing.T) {
	cases := []struct {
		name string
		in   RewardInput
		want float64
	}{
		{name: "ideal", in: RewardInput{Satisfaction: 1}, want: 0.9},
		{name: "worn out", in: RewardInput{Satisfaction: 0, Fatigue: 1, Stress: 1}, want: 0},
		{name: "mixed", in: RewardInput{Satisfaction: 0.75, Fatigue: 0.1, Stress: 0.05}, want: 0.745},
		{name: "overruns", in: RewardInput{Satisfaction: 0.8, Fatigue: 0.5, Stress: 0.5, CostOverrun: 0.2, WalkingOverrunKm: 2}, want: 0.49},
		{name: "clamped low", in: RewardInput{WalkingOverrunKm: 100, Fatigue: 1, Stress: 1}, want: 0},
		{name: "inputs normalized", in: RewardInput{Satisfaction: 3, Fatigue: -2, Stress: -1}, want: 0.9},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeReward(tc.in)
			if !approxEqual(got, tc.want) {
				t.Fatalf("ComputeReward() = %v, want %v", got, tc.want)
			}
			if got < 0 || got > 1 {
				t.Fatalf("ComputeReward() out of range: %v", got)
			}
			if again := ComputeReward(tc.in); again != got {
				t.Fatalf("ComputeReward() not pure: %v then %v", got, again)
			}
		})
	}
}

func TestSatisfactionHistoryIsBounded(t *testing.T) {
	var metrics RLMetrics
	for idx := range 13 {
		metrics.PushSatisfaction(float64(idx))
	}
	if len(metrics.SatisfactionHistory) != 12 {
		t.Fatalf("expected 12 points, got %d", len(metrics.SatisfactionHistory))
	}
	if metrics.SatisfactionHistory[0] != 1 {
		t.Fatalf("expected oldest point dropped, first = %v", metrics.SatisfactionHistory[0])
	}
	if last, _ := metrics.LastSatisfaction(); last != 12 {
		t.Fatalf("expected newest point 12, got %v", last)
	}
}

func TestRecordReplanAndReward(t *testing.T) {
	var metrics RLMetrics
	metrics.AddReward(0.5)
	metrics.AddReward(0.25)
	metrics.RecordReplan(42)
	metrics.RecordReplan(17)
	if !approxEqual(metrics.CumulativeReward, 0.75) {
		t.Fatalf("expected cumulative reward 0.75, got %v", metrics.CumulativeReward)
	}
	if metrics.ReplanCount != 2 || metrics.LastReplanLatencyMS != 17 {
		t.Fatalf("unexpected replan metrics %+v", metrics)
	}
}

func TestRewardInputFor(t *testing.T) {
	profile := DefaultProfile()
	profile.BudgetPerDay = 100
	profile.MaxWalkingKm = 1
	state := UserState{Fatigue: 40, Stress: 20, Motivation: 80, BudgetSpent: 30}
	activities := []Activity{
		{ID: "done", CostUSD: 30, DistanceFromPrevM: 5000, Status: StatusDone},
		{ID: "a", CostUSD: 60, DistanceFromPrevM: 1500, Status: StatusActive},
		{ID: "b", CostUSD: 30, DistanceFromPrevM: 500, Status: StatusUpcoming},
	}
	in := RewardInputFor(state, profile, activities, 0.8)
	if !approxEqual(in.CostOverrun, 0.2) {
		t.Fatalf("expected cost overrun 0.2, got %v", in.CostOverrun)
	}
	if !approxEqual(in.WalkingOverrunKm, 1) {
		t.Fatalf("expected walking overrun 1km, got %v", in.WalkingOverrunKm)
	}
	if !approxEqual(in.Fatigue, 0.4) || !approxEqual(in.Stress, 0.2) {
		t.Fatalf("unexpected normalized state %+v", in)
	}
}
