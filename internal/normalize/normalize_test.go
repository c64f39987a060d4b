package normalize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"clarity-agent/internal/domain"
)

func strPtr(s string) *string { return &s }

func verdictPtr(v domain.Verdict) *domain.Verdict { return &v }

func requireUIInvariants(t *testing.T, ui domain.UI) {
	t.Helper()
	require.Equal(t, ui.Mode == domain.ModeIngredient && ui.VerdictNormalized != nil, ui.ShowChip)
	require.GreaterOrEqual(t, len(ui.Followups), 1)
	require.LessOrEqual(t, len(ui.Followups), 3)
}

func TestSlugify(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Turmeric", "turmeric"},
		{"Crème Brûlée", "creme-brulee"},
		{"  Vitamin  B12 (methyl)  ", "vitamin-b12-methyl"},
		{"St. John's Wort", "st-johns-wort"},
		{"ﬁsh oil", "fish-oil"},
		{"omega-3", "omega-3"},
		{"", ""},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, Slugify(tc.in), "in=%q", tc.in)
	}
}

func TestFromRecord(t *testing.T) {
	rec := domain.IngredientRecord{
		Name:               "Turmeric",
		Verdict:            "Generally safe in food amounts",
		DAOHistamineSignal: "Unknown",
		CycleFlag:          "Yes",
	}
	ui := FromRecord(rec, "turmeric - is it safe", "")
	require.Equal(t, domain.ModeIngredient, ui.Mode)
	require.Equal(t, "Turmeric", ui.Header)
	require.Equal(t, "Turmeric", ui.Base)
	require.Equal(t, "/ingredients/turmeric", ui.ArticleURL)
	require.Equal(t, domain.VerdictSafe, *ui.VerdictNormalized)
	require.True(t, ui.HideFields.DAO)
	require.False(t, ui.HideFields.Cycle)
	require.True(t, ui.ShowChip)
	require.Equal(t, engagementSafe, ui.Engagement)
	require.Equal(t, followupsSafe, ui.Followups)
	requireUIInvariants(t, ui)
}

func TestFromRecord_SentinelsAndMissingName(t *testing.T) {
	rec := domain.IngredientRecord{
		DAOHistamineSignal: " unspecified ",
		CycleFlag:          "N/A",
	}
	ui := FromRecord(rec, "sea moss: thyroid?", "https://example.org/articles")
	require.Equal(t, "sea moss", ui.Base)
	require.Equal(t, "https://example.org/articles/sea-moss", ui.ArticleURL)
	require.Nil(t, ui.VerdictNormalized)
	require.False(t, ui.ShowChip)
	require.True(t, ui.HideFields.DAO)
	require.True(t, ui.HideFields.Cycle)
	require.Equal(t, engagementAlternatives, ui.Engagement)
	requireUIInvariants(t, ui)
}

func TestFromGenerative_IngredientWithVerdict(t *testing.T) {
	res := domain.GenerativeResult{Mode: "ingredient", Title: "Ashwagandha", Verdict: strPtr("Not recommended")}
	ui := FromGenerative(res, "ashwagandha", "")
	require.Equal(t, domain.ModeIngredient, ui.Mode)
	require.Equal(t, "Ashwagandha", ui.Header)
	require.Equal(t, domain.VerdictAvoid, *ui.VerdictNormalized)
	require.True(t, ui.ShowChip)
	require.Equal(t, "/ingredients/ashwagandha", ui.ArticleURL)
	require.True(t, ui.HideFields.DAO)
	require.True(t, ui.HideFields.Cycle)
	require.Equal(t, followupsHarm, ui.Followups)
	requireUIInvariants(t, ui)
}

func TestFromGenerative_InfersVerdictFromFriendlyText(t *testing.T) {
	res := domain.GenerativeResult{Mode: "ingredient", Title: "Chamomile", Friendly: "Chamomile tea is generally safe in moderation."}
	ui := FromGenerative(res, "chamomile tea", "")
	require.Equal(t, domain.VerdictSafe, *ui.VerdictNormalized)
	require.True(t, ui.ShowChip)
	requireUIInvariants(t, ui)
}

func TestFromGenerative_WellnessNeverShowsChip(t *testing.T) {
	res := domain.GenerativeResult{Mode: "wellness", Title: "Sleep", Verdict: strPtr("Safe")}
	ui := FromGenerative(res, "how do I get more sleep with a newborn", "")
	require.Equal(t, domain.ModeWellness, ui.Mode)
	require.Nil(t, ui.VerdictNormalized)
	require.False(t, ui.ShowChip)
	require.Empty(t, ui.ArticleURL)
	require.Equal(t, engagementWellness, ui.Engagement)
	require.Equal(t, followupsWellness, ui.Followups)
	requireUIInvariants(t, ui)
}

func TestFromGenerative_IngredientModeWithoutKeywordsHasNoVerdictOrLink(t *testing.T) {
	res := domain.GenerativeResult{Mode: "ingredient", Title: "Melatonin"}
	ui := FromGenerative(res, "what about melatonin at night", "")
	require.Nil(t, ui.VerdictNormalized)
	require.False(t, ui.ShowChip)
	require.Empty(t, ui.ArticleURL)
	requireUIInvariants(t, ui)
}

func TestBuildEngagement(t *testing.T) {
	require.Equal(t, engagementWellness, BuildEngagement(verdictPtr(domain.VerdictAvoid), domain.ModeWellness))
	require.Equal(t, engagementAvoid, BuildEngagement(verdictPtr(domain.VerdictAvoid), domain.ModeIngredient))
	require.Equal(t, engagementSafe, BuildEngagement(verdictPtr(domain.VerdictSafe), domain.ModeIngredient))
	require.Equal(t, engagementAlternatives, BuildEngagement(verdictPtr(domain.VerdictCaution), domain.ModeIngredient))
	require.Equal(t, engagementAlternatives, BuildEngagement(nil, domain.ModeIngredient))
}

func TestBuildFollowups(t *testing.T) {
	require.Equal(t, followupsHarm, BuildFollowups("tobacco", verdictPtr(domain.VerdictCaution), domain.ModeIngredient))
	require.Equal(t, followupsHarm, BuildFollowups(" Alcohol ", verdictPtr(domain.VerdictSafe), domain.ModeIngredient))
	require.Equal(t, followupsHarm, BuildFollowups("ginseng", verdictPtr(domain.VerdictAvoid), domain.ModeIngredient))
	require.Equal(t, followupsSafe, BuildFollowups("ginger", verdictPtr(domain.VerdictSafe), domain.ModeIngredient))
	require.Equal(t, followupsAlternatives, BuildFollowups("ginger", verdictPtr(domain.VerdictCaution), domain.ModeIngredient))
	require.Equal(t, followupsAlternatives, BuildFollowups("ginger", nil, domain.ModeIngredient))
	require.Equal(t, followupsWellness, BuildFollowups("tobacco", verdictPtr(domain.VerdictAvoid), domain.ModeWellness))
}

func TestBuildFollowups_ReturnsCopies(t *testing.T) {
	out := BuildFollowups("ginger", nil, domain.ModeIngredient)
	out[0] = "mutated"
	require.NotEqual(t, "mutated", followupsAlternatives[0])
}

func TestDegradedResult(t *testing.T) {
	msg := strings.Repeat("é", 80)
	res := DegradedResult(msg)
	require.Equal(t, string(domain.ModeIngredient), res.Mode)
	require.Equal(t, strings.Repeat("é", 60), res.Title)
	require.Nil(t, res.Verdict)
	require.Len(t, res.Followups, 2)
	require.NotEmpty(t, res.Friendly)

	res = DegradedResult("how do I get more sleep with a newborn")
	require.Equal(t, string(domain.ModeWellness), res.Mode)
	require.Equal(t, "how do I get more sleep with a newborn", res.Title)

	res = DegradedResult("  " + strings.Repeat("a", 70))
	require.Equal(t, "  "+strings.Repeat("a", 58), res.Title)
}
