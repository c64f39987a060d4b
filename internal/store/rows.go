// Package store implements the ingredient lookup and interaction log against
// the hosted Postgres database, either through its PostgREST API or directly.
package store

import (
	"errors"
	"strings"

	"github.com/tidwall/gjson"

	"clarity-agent/internal/domain"
)

const (
	DefaultIngredientsTable  = "ingredients_variants"
	DefaultInteractionsTable = "clarity_interactions"

	columnName      = "name"
	columnGroupRoot = "group_root"
)

// Columns requested from the ingredient table.
var ingredientColumns = []string{
	"name", "group_root", "verdict", "why_brief", "dao_histamine_signal",
	"dao_mechanism", "dao_notes", "cycle_flag", "cycle_notes", "citations",
	"cross_reactivity", "hormone_modulation_note", "trust_signals",
	"confidence", "source_type",
}

// Name first, then group root when the name search is empty.
var searchColumns = []string{columnName, columnGroupRoot}

// decodeIngredients parses a JSON array of ingredient rows.
func decodeIngredients(body []byte) ([]domain.IngredientRecord, error) {
	parsed := gjson.ParseBytes(body)
	if !parsed.IsArray() {
		return nil, errors.New("store: expected a JSON array of rows")
	}
	rows := parsed.Array()
	out := make([]domain.IngredientRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, decodeIngredient(row))
	}
	return out, nil
}

// decodeIngredient reads one row leniently: citations may be an array or a
// scalar, and numeric columns are kept as their text form.
func decodeIngredient(row gjson.Result) domain.IngredientRecord {
	return domain.IngredientRecord{
		Name:                  text(row, "name"),
		GroupRoot:             text(row, "group_root"),
		Verdict:               text(row, "verdict"),
		WhyBrief:              text(row, "why_brief"),
		DAOHistamineSignal:    text(row, "dao_histamine_signal"),
		DAOMechanism:          text(row, "dao_mechanism"),
		DAONotes:              text(row, "dao_notes"),
		CycleFlag:             text(row, "cycle_flag"),
		CycleNotes:            text(row, "cycle_notes"),
		Citations:             citations(row.Get("citations")),
		CrossReactivity:       text(row, "cross_reactivity"),
		HormoneModulationNote: text(row, "hormone_modulation_note"),
		TrustSignals:          text(row, "trust_signals"),
		Confidence:            text(row, "confidence"),
		SourceType:            text(row, "source_type"),
	}
}

func text(row gjson.Result, key string) string {
	return strings.TrimSpace(row.Get(key).String())
}

func citations(v gjson.Result) []string {
	out := []string{}
	switch {
	case v.IsArray():
		for _, item := range v.Array() {
			if s := strings.TrimSpace(item.String()); s != "" {
				out = append(out, s)
			}
		}
	case v.Exists() && v.Type != gjson.Null:
		if s := strings.TrimSpace(v.String()); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func pageOf(q domain.SearchQuery) int {
	if q.Limit <= 0 {
		return 1
	}
	return q.Offset/q.Limit + 1
}
