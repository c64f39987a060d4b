package domain

import "time"

type Mode string

const (
	ModeIngredient Mode = "ingredient"
	ModeWellness   Mode = "wellness"
)

type Verdict string

const (
	VerdictSafe    Verdict = "Safe"
	VerdictCaution Verdict = "Caution"
	VerdictAvoid   Verdict = "Avoid"
)

// GenerativeResult is the JSON object the completion service is asked to emit.
type GenerativeResult struct {
	Mode            string   `json:"mode"`
	Title           string   `json:"title"`
	Verdict         *string  `json:"verdict"`
	Friendly        string   `json:"friendly"`
	Scientific      string   `json:"scientific"`
	Closing         string   `json:"closing"`
	Followups       []string `json:"followups"`
	CrossReactivity string   `json:"cross_reactivity,omitempty"`
}

type HideFields struct {
	DAO   bool `json:"dao"`
	Cycle bool `json:"cycle"`
}

// UI is the canonical response consumed by the presentation layer,
// whatever the answer source was.
type UI struct {
	Mode              Mode       `json:"mode"`
	Header            string     `json:"header"`
	Base              string     `json:"base"`
	ArticleURL        string     `json:"article_url,omitempty"`
	VerdictNormalized *Verdict   `json:"verdict_normalized"`
	HideFields        HideFields `json:"hide_fields"`
	ShowChip          bool       `json:"show_chip"`
	Engagement        string     `json:"engagement"`
	Followups         []string   `json:"followups"`
}

type Kind string

const (
	KindDB  Kind = "db"
	KindGPT Kind = "gpt"
)

// Answer is either a DBAnswer or a GPTAnswer.
type Answer interface {
	Kind() Kind
	Canonical() UI
	sealed()
}

// DBAnswer is produced when the structured store returned a match.
type DBAnswer struct {
	Record IngredientRecord
	UI     UI
	Page   SearchPage
}

func (DBAnswer) Kind() Kind      { return KindDB }
func (a DBAnswer) Canonical() UI { return a.UI }
func (DBAnswer) sealed()         {}

// GPTAnswer is produced by the generative fallback. Degraded is set when the
// model output could not be used and the fixed placeholder was substituted.
type GPTAnswer struct {
	Result   GenerativeResult
	UI       UI
	Degraded bool
}

func (GPTAnswer) Kind() Kind      { return KindGPT }
func (a GPTAnswer) Canonical() UI { return a.UI }
func (GPTAnswer) sealed()         {}

// Interaction is an append-only log entry of one answered request.
type Interaction struct {
	RequestID     string
	UserQuery     string
	History       []ChatMessage
	Kind          Kind
	ModelResponse any
	UI            UI
	CreatedAt     time.Time
}
