package models

import "time"

// InferenceLog represents a single LLM API call
type InferenceLog struct {
	ID           int       `json:"id"`
	Provider     string    `json:"provider"`      // 'groq', 'openai', ...
	Model        string    `json:"model"`         // 'llama-3.1-8b-instant', 'gpt-4o-mini', ...
	Operation    string    `json:"operation"`     // 'card_summary'
	TokensUsed   int       `json:"tokens_used"`   // Total tokens
	InputTokens  *int      `json:"input_tokens"`  // Input tokens if available
	OutputTokens *int      `json:"output_tokens"` // Output tokens if available
	LatencyMs    *int      `json:"latency_ms"`
	Status       string    `json:"status"` // 'success', 'error'
	ErrorMessage *string   `json:"error_message"`
	Metadata     string    `json:"metadata"` // JSONB metadata
	CreatedAt    time.Time `json:"created_at"`
}
