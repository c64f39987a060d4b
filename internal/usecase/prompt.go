package usecase

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"clarity-agent/internal/domain"
	"clarity-agent/internal/normalize"
)

const (
	defaultHistoryTurns = 3
	defaultHistoryChars = 500
)

// historyWindow bounds the conversation context replayed to the model.
type historyWindow struct {
	turns int
	chars int
}

type ParseStatus int

const (
	ParseOK ParseStatus = iota
	ParseDegraded
)

func (s ParseStatus) String() string {
	if s == ParseOK {
		return "ok"
	}
	return "degraded"
}

// ParseResult carries the model output, or the fixed fallback when the output
// could not be used. Err is the parse failure for a degraded result.
type ParseResult struct {
	Status ParseStatus
	Value  domain.GenerativeResult
	Err    error
}

const generativeSchema = `{
  "type": "object",
  "required": ["mode", "title", "friendly", "scientific", "closing", "followups"],
  "properties": {
    "mode": {"type": "string"},
    "title": {"type": "string"},
    "verdict": {"type": ["string", "null"]},
    "friendly": {"type": "string", "minLength": 1},
    "scientific": {"type": "string"},
    "closing": {"type": "string"},
    "followups": {
      "type": "array",
      "minItems": 1,
      "maxItems": 3,
      "items": {"type": "string", "minLength": 1}
    },
    "cross_reactivity": {"type": ["string", "null"]}
  }
}`

var generativeSchemaLoader = gojsonschema.NewStringLoader(generativeSchema)

func buildPromptMessages(q domain.Query, mode domain.Mode, window historyWindow) []domain.ChatMessage {
	messages := []domain.ChatMessage{{Role: "system", Content: buildSystemPrompt()}}
	messages = append(messages, recentHistory(q.History, window)...)
	messages = append(messages, domain.ChatMessage{Role: "user", Content: buildUserPrompt(q, mode)})
	return messages
}

func buildSystemPrompt() string {
	return strings.Join([]string{
		"Role:",
		"You are Clarity, a warm and knowledgeable companion for breastfeeding parents.",
		"You explain whether foods, supplements, herbs and other ingredients are compatible with breastfeeding and infant care.",
		"",
		"Tone Rules:",
		toneRules(),
		"",
		"Output Contract:",
		outputContract(),
	}, "\n")
}

func toneRules() string {
	return strings.Join([]string{
		"1) Be kind and non-judgmental; never shame the parent.",
		"2) Lead with a plain-language answer, then the evidence.",
		"3) Say when evidence is limited instead of guessing.",
		"4) Never diagnose; suggest checking with a provider or lactation consultant when it matters.",
	}, "\n")
}

func outputContract() string {
	return "Return one JSON object only, with keys: " +
		"mode (\"ingredient\" or \"wellness\"), " +
		"title (short heading), " +
		"verdict (\"Safe\", \"Caution\", \"Avoid\" or null when not about a specific ingredient), " +
		"friendly (2-3 sentence plain-language answer), " +
		"scientific (evidence summary), " +
		"closing (one supportive sentence), " +
		"followups (1 to 3 short follow-up questions the parent might ask next), " +
		"cross_reactivity (optional, related ingredients with similar concerns)."
}

func buildUserPrompt(q domain.Query, mode domain.Mode) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n", strings.TrimSpace(q.Message))
	if mode == domain.ModeIngredient {
		b.WriteString("Mode hint: ingredient. Answer as an ingredient safety check and give a verdict.\n")
	} else {
		b.WriteString("Mode hint: wellness. Answer as general wellness guidance; use a null verdict.\n")
	}
	if voice := strings.TrimSpace(q.Voice); voice != "" {
		fmt.Fprintf(&b, "Voice: %s\n", strings.ReplaceAll(voice, "_", " "))
	}
	b.WriteString("Formatting: no markdown, no lists inside strings, keep every field concise.")
	return b.String()
}

// recentHistory keeps the last window.turns usable messages, each truncated
// to window.chars runes.
func recentHistory(history []domain.ChatMessage, window historyWindow) []domain.ChatMessage {
	var kept []domain.ChatMessage
	for _, m := range history {
		role := strings.ToLower(strings.TrimSpace(m.Role))
		if role != "user" && role != "assistant" {
			continue
		}
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		kept = append(kept, domain.ChatMessage{Role: role, Content: truncateRunes(content, window.chars)})
	}
	if len(kept) > window.turns {
		kept = kept[len(kept)-window.turns:]
	}
	return kept
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// parseGenerative never fails: unusable output yields the degraded result.
func parseGenerative(raw, message string) ParseResult {
	res, err := decodeGenerative(raw)
	if err != nil {
		return ParseResult{Status: ParseDegraded, Value: normalize.DegradedResult(message), Err: err}
	}
	return ParseResult{Status: ParseOK, Value: res}
}

func decodeGenerative(raw string) (domain.GenerativeResult, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.GenerativeResult{}, errors.New("usecase: decode generative result: empty output")
	}
	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return domain.GenerativeResult{}, fmt.Errorf("usecase: decode generative result: %w", err)
	}
	result, err := gojsonschema.Validate(generativeSchemaLoader, gojsonschema.NewGoLoader(doc))
	if err != nil {
		return domain.GenerativeResult{}, fmt.Errorf("usecase: validate generative result: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return domain.GenerativeResult{}, fmt.Errorf("usecase: generative result does not match schema: %s", strings.Join(msgs, "; "))
	}

	var out domain.GenerativeResult
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return domain.GenerativeResult{}, fmt.Errorf("usecase: decode generative result: %w", err)
	}
	if out.Verdict != nil && strings.TrimSpace(*out.Verdict) == "" {
		out.Verdict = nil
	}
	return out, nil
}
