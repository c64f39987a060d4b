package domain

// IngredientRecord is a row of the externally hosted ingredient table.
type IngredientRecord struct {
	Name                  string   `json:"name"`
	GroupRoot             string   `json:"group_root,omitempty"`
	Verdict               string   `json:"verdict"`
	WhyBrief              string   `json:"why_brief,omitempty"`
	DAOHistamineSignal    string   `json:"dao_histamine_signal"`
	DAOMechanism          string   `json:"dao_mechanism,omitempty"`
	DAONotes              string   `json:"dao_notes,omitempty"`
	CycleFlag             string   `json:"cycle_flag"`
	CycleNotes            string   `json:"cycle_notes"`
	Citations             []string `json:"citations"`
	CrossReactivity       string   `json:"cross_reactivity,omitempty"`
	HormoneModulationNote string   `json:"hormone_modulation_note,omitempty"`
	TrustSignals          string   `json:"trust_signals,omitempty"`
	Confidence            string   `json:"confidence,omitempty"`
	SourceType            string   `json:"source_type,omitempty"`
}

// SearchQuery is a paginated contains-search against the ingredient table.
type SearchQuery struct {
	Term   string
	Limit  int
	Offset int
}

// SearchPage is one page of ingredient rows. Total is the store's count
// estimate, or -1 when the store did not report one.
type SearchPage struct {
	Rows     []IngredientRecord
	Page     int
	PageSize int
	Total    int
}
