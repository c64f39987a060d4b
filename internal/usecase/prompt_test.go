package usecase

import (
	"testing"

	"github.com/stretchr/testify/require"

	"clarity-agent/internal/domain"
)

func TestBuildSystemPrompt_NamesEveryOutputKey(t *testing.T) {
	content := buildSystemPrompt()
	require.Contains(t, content, "Tone Rules:")
	require.Contains(t, content, "Output Contract:")
	for _, key := range []string{"mode", "title", "verdict", "friendly", "scientific", "closing", "followups", "cross_reactivity"} {
		require.Contains(t, content, key)
	}
}

func TestBuildUserPrompt(t *testing.T) {
	content := buildUserPrompt(domain.Query{Message: " is sage ok ", Voice: "best_friend"}, domain.ModeIngredient)
	require.Contains(t, content, "Question: is sage ok\n")
	require.Contains(t, content, "Mode hint: ingredient")
	require.Contains(t, content, "Voice: best friend")

	content = buildUserPrompt(domain.Query{Message: "tired all day"}, domain.ModeWellness)
	require.Contains(t, content, "Mode hint: wellness")
	require.NotContains(t, content, "Voice:")
}

func TestRecentHistory_ZeroTurns(t *testing.T) {
	out := recentHistory([]domain.ChatMessage{{Role: "user", Content: "hi"}}, historyWindow{turns: 0, chars: 10})
	require.Empty(t, out)
}

func TestParseGenerative(t *testing.T) {
	res := parseGenerative(generativeJSON("ingredient", "Sage", strPtr("Caution"), "a", "b"), "sage")
	require.Equal(t, ParseOK, res.Status)
	require.NoError(t, res.Err)
	require.Equal(t, "Sage", res.Value.Title)
	require.Equal(t, []string{"a", "b"}, res.Value.Followups)
	require.Equal(t, "Caution", *res.Value.Verdict)

	res = parseGenerative(generativeJSON("ingredient", "Sage", strPtr("  "), "a"), "sage")
	require.Equal(t, ParseOK, res.Status)
	require.Nil(t, res.Value.Verdict)

	res = parseGenerative(`{"mode":"ingredient","title":"Sage","verdict":3,"friendly":"x","scientific":"","closing":"","followups":["a"]}`, "sage")
	require.Equal(t, ParseDegraded, res.Status)
	require.Error(t, res.Err)
	require.Equal(t, "degraded", res.Status.String())
	require.Equal(t, "sage", res.Value.Title)
}
