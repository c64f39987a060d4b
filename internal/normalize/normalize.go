// Package normalize maps structured records and model output onto the
// canonical UI response.
package normalize

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"clarity-agent/internal/classify"
	"clarity-agent/internal/domain"
)

const (
	DefaultArticlePrefix = "/ingredients/"
	degradedTitleRunes   = 60
)

var (
	slugStrip      = regexp.MustCompile(`[^\w\s-]`)
	slugWhitespace = regexp.MustCompile(`\s+`)
)

var harmSubstances = map[string]struct{}{
	"tobacco": {}, "nicotine": {}, "alcohol": {}, "ethanol": {}, "cannabis": {},
	"weed": {}, "marijuana": {}, "vape": {}, "vaping": {},
}

const (
	engagementWellness     = "Want a few gentle, practical ideas you can try this week?"
	engagementAvoid        = "Want me to walk through the specific risks and what to watch for?"
	engagementSafe         = "Want typical amounts and how to introduce it gradually?"
	engagementAlternatives = "Want some gentler alternatives or questions to bring to your provider?"
)

var (
	followupsWellness = []string{
		"Can you help me build a simple daily routine?",
		"Could any of my current medications be affecting this?",
	}
	followupsHarm = []string{
		"How long should I wait before nursing after exposure?",
		"What are safer ways to cut back?",
		"Where can I find support to quit?",
	}
	followupsSafe = []string{
		"How much is considered a typical amount?",
		"Are there forms or brands that are better?",
		"Are there any interactions I should know about?",
	}
	followupsAlternatives = []string{
		"What are some safer alternatives?",
		"What should I ask my provider about this?",
		"Are there signs in my baby I should watch for?",
	}
	followupsDegraded = []string{
		"Can you tell me a bit more about what you're looking for?",
		"Would you like general tips while I look into this?",
	}
)

const (
	degradedFriendly   = "I'm sorry, I couldn't put together a full answer just now. You're asking the right questions, and it's always okay to check with your provider or lactation consultant."
	degradedScientific = "A detailed evidence summary is not available for this question right now."
	degradedClosing    = "I'm here whenever you want to try again."
)

// Sentinels the store uses for "no data".
var (
	daoHiddenValues   = []string{"unknown", "unspecified"}
	cycleHiddenValues = []string{"n/a", "unspecified"}
)

// FromRecord builds the UI response for a structured store match.
func FromRecord(rec domain.IngredientRecord, message, articlePrefix string) domain.UI {
	base := strings.TrimSpace(rec.Name)
	if base == "" {
		base = classify.BaseIngredientFromMessage(message)
	}
	verdict := classify.NormalizeVerdict(rec.Verdict)
	header := strings.TrimSpace(rec.Name)
	if header == "" {
		header = base
	}
	return domain.UI{
		Mode:              domain.ModeIngredient,
		Header:            header,
		Base:              base,
		ArticleURL:        articleURL(articlePrefix, base),
		VerdictNormalized: verdict,
		HideFields: domain.HideFields{
			DAO:   isSentinel(rec.DAOHistamineSignal, daoHiddenValues),
			Cycle: isSentinel(rec.CycleFlag, cycleHiddenValues),
		},
		ShowChip:   verdict != nil,
		Engagement: BuildEngagement(verdict, domain.ModeIngredient),
		Followups:  BuildFollowups(base, verdict, domain.ModeIngredient),
	}
}

// FromGenerative builds the UI response for a generative fallback answer.
// When the model gave no verdict for an ingredient-shaped question, one is
// inferred from the friendly text.
func FromGenerative(res domain.GenerativeResult, message, articlePrefix string) domain.UI {
	mode := classify.InferMode(message, res.Mode)
	base := classify.BaseIngredientFromMessage(message)
	looksIngredient := classify.LooksLikeIngredientQuery(message)

	var verdict *domain.Verdict
	if mode == domain.ModeIngredient {
		if res.Verdict != nil {
			verdict = classify.NormalizeVerdict(*res.Verdict)
		}
		if verdict == nil && looksIngredient {
			verdict = classify.NormalizeVerdict(res.Friendly)
		}
	}

	header := strings.TrimSpace(res.Title)
	if header == "" {
		header = base
	}
	ui := domain.UI{
		Mode:              mode,
		Header:            header,
		Base:              base,
		VerdictNormalized: verdict,
		HideFields:        domain.HideFields{DAO: true, Cycle: true},
		ShowChip:          mode == domain.ModeIngredient && verdict != nil,
		Engagement:        BuildEngagement(verdict, mode),
		Followups:         BuildFollowups(base, verdict, mode),
	}
	if mode == domain.ModeIngredient && looksIngredient {
		ui.ArticleURL = articleURL(articlePrefix, base)
	}
	return ui
}

// BuildEngagement picks the closing prompt shown under an answer.
func BuildEngagement(verdict *domain.Verdict, mode domain.Mode) string {
	if mode == domain.ModeWellness {
		return engagementWellness
	}
	switch verdictOf(verdict) {
	case domain.VerdictAvoid:
		return engagementAvoid
	case domain.VerdictSafe:
		return engagementSafe
	default:
		return engagementAlternatives
	}
}

// BuildFollowups picks the suggested follow-up questions. Harm substances
// always get the harm-reduction set regardless of verdict.
func BuildFollowups(base string, verdict *domain.Verdict, mode domain.Mode) []string {
	if mode == domain.ModeWellness {
		return clone(followupsWellness)
	}
	if _, harmful := harmSubstances[strings.ToLower(strings.TrimSpace(base))]; harmful || verdictOf(verdict) == domain.VerdictAvoid {
		return clone(followupsHarm)
	}
	if verdictOf(verdict) == domain.VerdictSafe {
		return clone(followupsSafe)
	}
	return clone(followupsAlternatives)
}

// DegradedResult is the fixed placeholder used when model output is unusable.
func DegradedResult(message string) domain.GenerativeResult {
	return domain.GenerativeResult{
		Mode:       string(classify.InferMode(message, "")),
		Title:      truncateRunes(message, degradedTitleRunes),
		Verdict:    nil,
		Friendly:   degradedFriendly,
		Scientific: degradedScientific,
		Closing:    degradedClosing,
		Followups:  clone(followupsDegraded),
	}
}

// Slugify lowercases s, strips diacritics and punctuation, and joins words
// with hyphens.
func Slugify(s string) string {
	out := norm.NFKD.String(strings.ToLower(s))
	out = slugStrip.ReplaceAllString(out, "")
	out = strings.TrimSpace(out)
	return slugWhitespace.ReplaceAllString(out, "-")
}

func articleURL(prefix, base string) string {
	slug := Slugify(base)
	if slug == "" {
		return ""
	}
	if prefix == "" {
		prefix = DefaultArticlePrefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix + slug
}

func isSentinel(v string, sentinels []string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	for _, s := range sentinels {
		if v == s {
			return true
		}
	}
	return false
}

func verdictOf(v *domain.Verdict) domain.Verdict {
	if v == nil {
		return ""
	}
	return *v
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func clone(in []string) []string {
	return append([]string(nil), in...)
}
