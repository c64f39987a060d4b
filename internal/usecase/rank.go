package usecase

import (
	"fmt"
	"sort"
	"strings"

	"clarity-agent/internal/domain"
)

// Ranker orders the rows of one search page; the first row is the answer.
type Ranker interface {
	Rank(term string, rows []domain.IngredientRecord) []domain.IngredientRecord
}

// FirstMatch keeps the store's order.
type FirstMatch struct{}

func (FirstMatch) Rank(_ string, rows []domain.IngredientRecord) []domain.IngredientRecord {
	return rows
}

// ExactFirst stably moves exact name matches, then name prefix matches, to
// the front. Comparison is case-insensitive.
type ExactFirst struct{}

func (ExactFirst) Rank(term string, rows []domain.IngredientRecord) []domain.IngredientRecord {
	term = strings.ToLower(strings.TrimSpace(term))
	out := append([]domain.IngredientRecord(nil), rows...)
	if term == "" {
		return out
	}
	score := func(rec domain.IngredientRecord) int {
		name := strings.ToLower(strings.TrimSpace(rec.Name))
		switch {
		case name == term:
			return 0
		case strings.HasPrefix(name, term):
			return 1
		default:
			return 2
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return score(out[i]) < score(out[j]) })
	return out
}

// RankerFor maps a RANKING_STRATEGY value to a Ranker.
func RankerFor(strategy string) (Ranker, error) {
	switch strings.ToLower(strings.TrimSpace(strategy)) {
	case "", "first":
		return FirstMatch{}, nil
	case "exact":
		return ExactFirst{}, nil
	default:
		return nil, fmt.Errorf("usecase: unknown ranking strategy %q", strategy)
	}
}
