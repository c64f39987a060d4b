package domain

// ChatMessage is the provider-agnostic chat message shape used by the
// handler, prompt assembly and LLM integrations.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Query is the request-scoped input of the answer pipeline.
type Query struct {
	Message string
	// Voice is the optional tone hint sent by the chat widget (e.g. "best_friend").
	Voice   string
	History []ChatMessage
	Page    int
}
