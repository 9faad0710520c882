package ranking

import (
	"strings"
)

// Category is one of the weighted score axes
type Category string

const (
	CategorySpeed     Category = "Speed"
	CategoryEconomy   Category = "Economy"
	CategoryCosmetics Category = "Cosmetics"

	// CategoryOther covers record types that rank but never score
	CategoryOther Category = "Other"
)

// WeightedCategories are the categories that contribute to the overall score
var WeightedCategories = []Category{CategorySpeed, CategoryEconomy, CategoryCosmetics}

// LongestSurvivalType is ranked lower-is-better and carries no weight
const LongestSurvivalType = "Longest Survival"

// Categorize maps a record type tag such as "Speed-Normal-Facility" to its category by prefix
func Categorize(recordType string) Category {
	t := strings.TrimSpace(recordType)
	for _, c := range WeightedCategories {
		if t == string(c) || strings.HasPrefix(t, string(c)+"-") {
			return c
		}
	}
	return CategoryOther
}

// LowerIsBetter is true for Speed types and for the longest survival type
func LowerIsBetter(recordType string) bool {
	if Categorize(recordType) == CategorySpeed {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(recordType), LongestSurvivalType)
}

// ParsedType is a record type tag split into its parts
type ParsedType struct {
	Category   Category
	Discipline string
	Map        string
}

// ParseType splits "Category-Discipline[-Map]". Unknown categories keep the raw tag as Discipline.
func ParseType(recordType string) ParsedType {
	category := Categorize(recordType)
	if category == CategoryOther {
		return ParsedType{Category: category, Discipline: strings.TrimSpace(recordType)}
	}

	parts := strings.SplitN(strings.TrimSpace(recordType), "-", 3)
	parsed := ParsedType{Category: category}
	if len(parts) > 1 {
		parsed.Discipline = parts[1]
	}
	if len(parts) > 2 {
		parsed.Map = parts[2]
	}
	return parsed
}

// PlacementPoints converts a 1-based rank to base points
func PlacementPoints(rank int) float64 {
	switch {
	case rank < 1:
		return 0
	case rank == 1:
		return 100
	case rank == 2:
		return 75
	case rank == 3:
		return 60
	case rank <= 5:
		return 50
	case rank <= 10:
		return 30
	case rank <= 25:
		return 15
	case rank <= 50:
		return 5
	default:
		return 0
	}
}
