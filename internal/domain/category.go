package domain

import (
	"slices"
	"strings"
)

// Category identifies the kind of venue an activity takes place at.
type Category string

// CategoryMuseum and related constants define the supported venue categories.
const (
	CategoryMuseum     Category = "museum"
	CategoryPark       Category = "park"
	CategoryRestaurant Category = "restaurant"
	CategoryCafe       Category = "cafe"
	CategoryMonument   Category = "monument"
	CategoryArt        Category = "art"
	CategoryShopping   Category = "shopping"
	CategoryNightlife  Category = "nightlife"
	CategorySpa        Category = "spa"
	CategoryTheater    Category = "theater"
	CategoryHotel      Category = "hotel"
	CategoryOther      Category = "other"
)

var validCategories = []Category{
	CategoryMuseum,
	CategoryPark,
	CategoryRestaurant,
	CategoryCafe,
	CategoryMonument,
	CategoryArt,
	CategoryShopping,
	CategoryNightlife,
	CategorySpa,
	CategoryTheater,
	CategoryHotel,
	CategoryOther,
}

// Categories returns all supported categories in canonical order.
func Categories() []Category {
	return append([]Category(nil), validCategories...)
}

// ParseCategory normalizes raw input into a known category.
func ParseCategory(raw string) (Category, error) {
	c := Category(strings.TrimSpace(strings.ToLower(raw)))
	if !slices.Contains(validCategories, c) {
		return "", ErrInvalidCategory
	}
	return c, nil
}

// PreferenceDimension is one axis of the traveler's preference vector.
type PreferenceDimension string

const (
	DimensionMuseums   PreferenceDimension = "museums"
	DimensionFood      PreferenceDimension = "food"
	DimensionNature    PreferenceDimension = "nature"
	DimensionShopping  PreferenceDimension = "shopping"
	DimensionNightlife PreferenceDimension = "nightlife"
)

// Dimension maps a category onto the preference vector. Categories without an
// affinity axis report false.
func (c Category) Dimension() (PreferenceDimension, bool) {
	switch c {
	case CategoryMuseum, CategoryArt, CategoryMonument:
		return DimensionMuseums, true
	case CategoryRestaurant, CategoryCafe:
		return DimensionFood, true
	case CategoryPark:
		return DimensionNature, true
	case CategoryShopping:
		return DimensionShopping, true
	case CategoryNightlife:
		return DimensionNightlife, true
	case CategorySpa, CategoryTheater, CategoryHotel, CategoryOther:
		return "", false
	default:
		return "", false
	}
}

// IsCultural reports whether the category counts toward cultural travel.
func (c Category) IsCultural() bool {
	switch c {
	case CategoryMuseum, CategoryArt, CategoryMonument:
		return true
	default:
		return false
	}
}

// DefaultDurationMin returns the typical visit length for a category.
func (c Category) DefaultDurationMin() int {
	switch c {
	case CategoryMuseum, CategoryNightlife, CategoryTheater:
		return 120
	case CategoryArt, CategoryShopping, CategorySpa:
		return 90
	case CategoryRestaurant:
		return 75
	case CategoryMonument:
		return 45
	case CategoryCafe:
		return 30
	default:
		return 60
	}
}

// DefaultCostUSD returns a rough per-person cost for a category.
func (c Category) DefaultCostUSD() float64 {
	switch c {
	case CategoryPark, CategoryMonument:
		return 0
	case CategoryCafe:
		return 10
	case CategoryArt:
		return 12
	case CategoryMuseum:
		return 15
	case CategoryNightlife:
		return 25
	case CategoryTheater:
		return 30
	case CategoryRestaurant:
		return 35
	case CategoryShopping, CategorySpa:
		return 50
	default:
		return 10
	}
}

// DefaultIndoor reports whether venues of this category are usually indoors.
func (c Category) DefaultIndoor() bool {
	switch c {
	case CategoryPark, CategoryMonument:
		return false
	case CategoryOther:
		return false
	default:
		return true
	}
}
