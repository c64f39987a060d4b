package classify

import (
	"testing"

	"github.com/stretchr/testify/require"

	"clarity-agent/internal/domain"
)

func verdictString(v *domain.Verdict) string {
	if v == nil {
		return "<nil>"
	}
	return string(*v)
}

func TestLooksLikeIngredientQuery(t *testing.T) {
	cases := []struct {
		msg  string
		want bool
	}{
		{"turmeric", true},
		{"  ashwagandha  ", true},
		{"is chamomile tea ok", true},
		{"Vitamin D drops for baby", true},
		{"should I AVOID this", true},
		{"how do I get more sleep with a newborn", false},
		{"feeling anxious lately", false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, LooksLikeIngredientQuery(tc.msg), "msg=%q", tc.msg)
	}
}

func TestBaseIngredientFromMessage(t *testing.T) {
	cases := []struct {
		msg  string
		want string
	}{
		{"turmeric - is it safe while nursing", "turmeric"},
		{"high dose vitamin a supplementation daily", "high dose vitamin"},
		{"fenugreek: milk supply", "fenugreek"},
		{"sea moss — any concerns?", "sea moss"},
		{"  blue   spirulina  ", "blue spirulina"},
		{"", ""},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, BaseIngredientFromMessage(tc.msg), "msg=%q", tc.msg)
	}
}

func TestNormalizeVerdict(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"", "<nil>"},
		{"   ", "<nil>"},
		{"safe in moderation", "Safe"},
		{"Generally Safe", "Safe"},
		{"limited evidence", "Caution"},
		{"generally safe but should be avoided", "Avoid"},
		{"generally safe but avoid during early pregnancy", "Avoid"},
		{"Not safe", "Avoid"},
		{"not recommended while breastfeeding", "Avoid"},
		{"discouraged", "Avoid"},
		{"potentially harmful", "Avoid"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, verdictString(NormalizeVerdict(tc.raw)), "raw=%q", tc.raw)
	}
}

func TestInferMode(t *testing.T) {
	require.Equal(t, domain.ModeWellness, InferMode("turmeric", "wellness"))
	require.Equal(t, domain.ModeIngredient, InferMode("how do I sleep better", " Ingredient "))
	require.Equal(t, domain.ModeIngredient, InferMode("turmeric", ""))
	require.Equal(t, domain.ModeWellness, InferMode("how do I sleep better", "other"))
}
