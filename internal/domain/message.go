package domain

import "time"

// Chat message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TokenUsage is normalized token accounting from a provider response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// GenerateRequest is the normalized input to a provider adapter.
type GenerateRequest struct {
	Messages     []Message
	Model        string
	Temperature  float32
	MaxTokens    int
	SystemPrompt string
}

// LLMResponse is the normalized output of any provider adapter.
type LLMResponse struct {
	Content      string        `json:"content"`
	Provider     string        `json:"provider"`
	Model        string        `json:"model"`
	Usage        TokenUsage    `json:"usage"`
	FinishReason string        `json:"finish_reason,omitempty"`
	Latency      time.Duration `json:"-"`
}
