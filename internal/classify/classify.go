// Package classify holds the heuristics that decide whether a message is an
// ingredient safety question or a general wellness question.
package classify

import (
	"strings"

	"clarity-agent/internal/domain"
)

var ingredientKeywords = []string{
	"ingredient", "supplement", "vitamin", "herb", "powder", "extract",
	"capsule", "tea", "food", "safe", "avoid", "caution",
}

// Checked before safeKeywords so mixed text resolves to Avoid.
var avoidKeywords = []string{"avoid", "not safe", "not recommended", "discouraged", "harmful"}

const safeKeyword = "safe"

const maxBaseWords = 3

// LooksLikeIngredientQuery reports whether message is a single word or
// mentions an ingredient-related keyword. Callers reject blank messages first.
func LooksLikeIngredientQuery(message string) bool {
	trimmed := strings.TrimSpace(message)
	if len(strings.Fields(trimmed)) == 1 {
		return true
	}
	lower := strings.ToLower(trimmed)
	for _, kw := range ingredientKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// BaseIngredientFromMessage returns at most the first three words that
// precede the first "-", "—" or ":" in message.
func BaseIngredientFromMessage(message string) string {
	head := message
	if i := strings.IndexAny(message, "-—:"); i >= 0 {
		head = message[:i]
	}
	words := strings.Fields(strings.TrimSpace(head))
	if len(words) > maxBaseWords {
		words = words[:maxBaseWords]
	}
	return strings.Join(words, " ")
}

// NormalizeVerdict maps free verdict text onto Safe, Caution or Avoid.
// It returns nil for blank input.
func NormalizeVerdict(raw string) *domain.Verdict {
	lower := strings.ToLower(strings.TrimSpace(raw))
	if lower == "" {
		return nil
	}
	v := domain.VerdictCaution
	switch {
	case containsAny(lower, avoidKeywords):
		v = domain.VerdictAvoid
	case strings.Contains(lower, safeKeyword):
		v = domain.VerdictSafe
	}
	return &v
}

// InferMode prefers a mode declared by the model and falls back to the
// message heuristic.
func InferMode(message, declared string) domain.Mode {
	switch domain.Mode(strings.ToLower(strings.TrimSpace(declared))) {
	case domain.ModeIngredient:
		return domain.ModeIngredient
	case domain.ModeWellness:
		return domain.ModeWellness
	}
	if LooksLikeIngredientQuery(message) {
		return domain.ModeIngredient
	}
	return domain.ModeWellness
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
