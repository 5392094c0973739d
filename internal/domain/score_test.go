package domain

import (
	"math"
	"testing"
)

func ratingPtr(v float64) *float64 {
	return &v
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestScoreBaseAndAffinity(t *testing.T) {
	profile := DefaultProfile()
	profile.TravelStyles = nil
	museum := Candidate{ID: "m1", Name: "Museum", Category: CategoryMuseum, Rating: ratingPtr(4.5), DurationMin: 120, IsIndoor: true}

	got := Score(museum, profile, Weather{}, "")
	want := 4.5*0.5 + 0.7*3
	if !approxEqual(got, want) {
		t.Fatalf("Score() = %v, want %v", got, want)
	}

	noRating := museum
	noRating.Rating = nil
	if got := Score(noRating, profile, Weather{}, ""); !approxEqual(got, 3.5*0.5+0.7*3) {
		t.Fatalf("Score() without rating = %v", got)
	}

	spa := Candidate{ID: "s1", Name: "Spa", Category: CategorySpa, Rating: ratingPtr(4), DurationMin: 90, IsIndoor: true}
	if got := Score(spa, profile, Weather{}, ""); !approxEqual(got, 2) {
		t.Fatalf("Score() for category without affinity = %v, want 2", got)
	}
}

func TestScoreTravelStyleModifiers(t *testing.T) {
	profile := DefaultProfile()
	profile.Preferences = Preferences{}
	cafe := Candidate{ID: "c1", Name: "Cafe", Category: CategoryCafe, Rating: ratingPtr(4), DurationMin: 30, CostUSD: 10, IsIndoor: true}
	gallery := Candidate{ID: "a1", Name: "Gallery", Category: CategoryArt, Rating: ratingPtr(4), DurationMin: 90, CostUSD: 80, IsIndoor: true}

	cases := []struct {
		name  string
		c     Candidate
		style TravelStyle
		want  float64
	}{
		{name: "relaxed short", c: cafe, style: StyleRelaxed, want: 2.5},
		{name: "relaxed long", c: gallery, style: StyleRelaxed, want: 2},
		{name: "explorer cafe", c: cafe, style: StyleExplorer, want: 2},
		{name: "explorer gallery", c: gallery, style: StyleExplorer, want: 2.3},
		{name: "cultural gallery", c: gallery, style: StyleCultural, want: 2.8},
		{name: "luxury expensive", c: gallery, style: StyleLuxury, want: 2.6},
		{name: "luxury cheap", c: cafe, style: StyleLuxury, want: 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Score(tc.c, profile, Weather{}, tc.style); !approxEqual(got, tc.want) {
				t.Fatalf("Score() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	profile := DefaultProfile()
	c := Candidate{ID: "p1", Name: "Park", Category: CategoryPark, Rating: ratingPtr(3.8), DurationMin: 60}
	first := Score(c, profile, Weather{Condition: "Clear Sky"}, StyleExplorer)
	for range 10 {
		if got := Score(c, profile, Weather{Condition: "Clear Sky"}, StyleExplorer); got != first {
			t.Fatalf("Score() changed between calls: %v vs %v", got, first)
		}
	}
}

func TestScoreIgnoresWeather(t *testing.T) {
	profile := DefaultProfile()
	park := Candidate{ID: "p1", Name: "Park", Category: CategoryPark, Rating: ratingPtr(4), DurationMin: 60}
	dry := Score(park, profile, Weather{Condition: "Clear Sky"}, "")
	wet := Score(park, profile, Weather{Condition: "Rain"}, "")
	if !approxEqual(wet, 2.90) || wet != dry {
		t.Fatalf("expected outdoor score 2.90 in any weather, dry=%v wet=%v", dry, wet)
	}
	ranked := RankCandidates([]Candidate{park}, profile, Weather{Condition: "Rain"})
	if !approxEqual(ranked[0].Score, 3.20) {
		t.Fatalf("expected explorer bonus on top of 2.90, got %v", ranked[0].Score)
	}
}

func TestRankCandidatesTieBreaks(t *testing.T) {
	profile := UserProfile{BudgetPerDay: 100}
	a := Candidate{ID: "a", Name: "A", Category: CategorySpa, Rating: ratingPtr(4), CostUSD: 20, DurationMin: 60}
	b := Candidate{ID: "b", Name: "B", Category: CategorySpa, Rating: ratingPtr(4), CostUSD: 10, DurationMin: 60}
	c := Candidate{ID: "c", Name: "C", Category: CategoryTheater, Rating: ratingPtr(4.5), DurationMin: 60}

	ranked := RankCandidates([]Candidate{a, b, c}, profile, Weather{})
	got := []string{ranked[0].Candidate.ID, ranked[1].Candidate.ID, ranked[2].Candidate.ID}
	want := []string{"c", "b", "a"}
	for idx := range want {
		if got[idx] != want[idx] {
			t.Fatalf("RankCandidates() order = %v, want %v", got, want)
		}
	}
}

func TestCategoryDimensionMapping(t *testing.T) {
	cases := map[Category]PreferenceDimension{
		CategoryMuseum:     DimensionMuseums,
		CategoryArt:        DimensionMuseums,
		CategoryMonument:   DimensionMuseums,
		CategoryRestaurant: DimensionFood,
		CategoryCafe:       DimensionFood,
		CategoryPark:       DimensionNature,
		CategoryShopping:   DimensionShopping,
		CategoryNightlife:  DimensionNightlife,
	}
	for category, want := range cases {
		got, ok := category.Dimension()
		if !ok || got != want {
			t.Fatalf("%s.Dimension() = %q, %t; want %q", category, got, ok, want)
		}
	}
	for _, category := range []Category{CategorySpa, CategoryTheater, CategoryHotel, CategoryOther} {
		if _, ok := category.Dimension(); ok {
			t.Fatalf("%s.Dimension() expected no affinity axis", category)
		}
	}
}
