package llm

import "context"

// Message is one turn of a chat exchange. Role is "user" or "assistant".
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopK        *int     `json:"top_k"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// LLMClient defines the standard interface for any LLM backend.
//
// The system prompt is passed separately from the conversation turns so
// backends that support prompt caching can cache it: the claims rule
// context is large and identical across every finding of a validation
// run, and re-sending it uncached dominates explanation cost.
type LLMClient interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
	Chat(ctx context.Context, system string, messages []Message, params GenerationParams) (string, error)
}
