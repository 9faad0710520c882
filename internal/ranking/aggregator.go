// Package ranking computes the overall score from verified world records.
// Everything here is pure: callers pass snapshots and get a fresh result.
package ranking

import (
	"math"
	"sort"

	"evade-competitive/internal/logger"
	"evade-competitive/internal/models"
)

// Score is a player's overall weighted score
type Score struct {
	PlayerID    string  `json:"player_id"`
	DisplayName string  `json:"display_name"`
	Score       float64 `json:"score"`
}

// Standing is one player's best record within a record type
type Standing struct {
	Rank       int                `json:"rank"`
	Record     models.WorldRecord `json:"record"`
	BasePoints float64            `json:"base_points"`
}

// Aggregator computes rankings and reports degraded input through warn
type Aggregator struct {
	warn func(format string, args ...interface{})
}

// NewAggregator creates an aggregator. A nil warn logs through the logger package.
func NewAggregator(warn func(format string, args ...interface{})) *Aggregator {
	if warn == nil {
		warn = logger.Warning
	}
	return &Aggregator{warn: warn}
}

var defaultAggregator = NewAggregator(nil)

// Compute ranks players with the default aggregator
func Compute(players []models.Player, records []models.WorldRecord, weights Weights) []Score {
	return defaultAggregator.Compute(players, records, weights)
}

// Standings ranks every record type with the default aggregator
func Standings(records []models.WorldRecord) map[string][]Standing {
	return defaultAggregator.Standings(records)
}

// TypeStandings ranks a single record type with the default aggregator
func TypeStandings(records []models.WorldRecord, recordType string) []Standing {
	return defaultAggregator.Standings(filterType(records, recordType))[recordType]
}

// Compute returns every player with their overall score, highest first.
// Equal scores keep the order of players.
func (a *Aggregator) Compute(players []models.Player, records []models.WorldRecord, weights Weights) []Score {
	totals := make(map[string]float64, len(players))
	warned := make(map[Category]bool)

	byType := a.Standings(records)

	// fixed order keeps float sums identical across calls
	types := make([]string, 0, len(byType))
	for recordType := range byType {
		types = append(types, recordType)
	}
	sort.Strings(types)

	for _, recordType := range types {
		standings := byType[recordType]
		category := Categorize(recordType)
		if category == CategoryOther {
			continue
		}

		weight, ok := weights[category]
		if !ok {
			if !warned[category] {
				a.warn("No leaderboard weight configured for %s, its records contribute 0", category)
				warned[category] = true
			}
			continue
		}
		if math.IsNaN(weight) || weight < 0 {
			if !warned[category] {
				a.warn("Invalid leaderboard weight %v for %s, treating as 0", weight, category)
				warned[category] = true
			}
			continue
		}

		for _, s := range standings {
			if s.BasePoints == 0 {
				continue
			}
			totals[s.Record.PlayerID] += s.BasePoints * weight / 100
		}
	}

	scores := make([]Score, 0, len(players))
	for i := range players {
		p := &players[i]
		scores = append(scores, Score{
			PlayerID:    p.ID,
			DisplayName: p.Name(),
			Score:       totals[p.ID],
		})
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Score > scores[j].Score
	})

	return scores
}

// Standings groups verified records by type, keeps each player's best record and ranks them.
// Equal values rank the earlier record first, then the lower record id.
func (a *Aggregator) Standings(records []models.WorldRecord) map[string][]Standing {
	best := make(map[string]map[string]models.WorldRecord)

	for _, r := range records {
		if !r.IsVerified {
			continue
		}
		if math.IsNaN(r.Value) || math.IsInf(r.Value, 0) {
			a.warn("Skipping world record %s with non-finite value", r.ID)
			continue
		}

		byPlayer, ok := best[r.Type]
		if !ok {
			byPlayer = make(map[string]models.WorldRecord)
			best[r.Type] = byPlayer
		}

		current, ok := byPlayer[r.PlayerID]
		if !ok || better(r, current, LowerIsBetter(r.Type)) {
			byPlayer[r.PlayerID] = r
		}
	}

	result := make(map[string][]Standing, len(best))
	for recordType, byPlayer := range best {
		lower := LowerIsBetter(recordType)

		ordered := make([]models.WorldRecord, 0, len(byPlayer))
		for _, r := range byPlayer {
			ordered = append(ordered, r)
		}
		sort.Slice(ordered, func(i, j int) bool {
			return better(ordered[i], ordered[j], lower)
		})

		standings := make([]Standing, len(ordered))
		for i, r := range ordered {
			standings[i] = Standing{
				Rank:       i + 1,
				Record:     r,
				BasePoints: PlacementPoints(i + 1),
			}
		}
		result[recordType] = standings
	}

	return result
}

// better reports whether a outranks b
func better(a, b models.WorldRecord, lowerIsBetter bool) bool {
	if a.Value != b.Value {
		if lowerIsBetter {
			return a.Value < b.Value
		}
		return a.Value > b.Value
	}
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	return a.ID < b.ID
}

func filterType(records []models.WorldRecord, recordType string) []models.WorldRecord {
	out := make([]models.WorldRecord, 0)
	for _, r := range records {
		if r.Type == recordType {
			out = append(out, r)
		}
	}
	return out
}

// Ranked keeps only scores above zero, preserving order
func Ranked(scores []Score) []Score {
	out := make([]Score, 0, len(scores))
	for _, s := range scores {
		if s.Score > 0 {
			out = append(out, s)
		}
	}
	return out
}
