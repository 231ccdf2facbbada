package chi

import "github.com/kailas-cloud/ragdex/internal/domain"

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes.
const (
	CodeBadRequest       = "bad_request"
	CodeUnauthorized     = "unauthorized"
	CodeProviderError    = "provider_error"
	CodeInternal         = "internal_error"
	CodeValidationFailed = "validation_failed"
)

// SearchRequest is the POST /search body.
type SearchRequest struct {
	Query          string   `json:"query"`
	TopK           int      `json:"top_k,omitempty"`
	LibraryRatio   float64  `json:"library_ratio,omitempty"`
	IncludeLibrary *bool    `json:"include_library,omitempty"`
	UseHyde        *bool    `json:"use_hyde,omitempty"`
	UseReranker    *bool    `json:"use_reranker,omitempty"`
	UseCache       *bool    `json:"use_cache,omitempty"`
	FormatContext  bool     `json:"format_context,omitempty"`
}

// SearchResultDTO is one retrieved passage.
type SearchResultDTO struct {
	Content         string         `json:"content"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	Score           float64        `json:"score"`
	RerankScore     float64        `json:"rerank_score,omitempty"`
	Reranked        bool           `json:"reranked,omitempty"`
	IsLibrary       bool           `json:"is_library"`
	LibraryCategory string         `json:"library_category,omitempty"`
}

// SearchResponse is the POST /search reply.
type SearchResponse struct {
	Results  []SearchResultDTO     `json:"results"`
	Metadata domain.SearchMetadata `json:"metadata"`
	Sources  domain.SourcesSummary `json:"sources"`
	Context  string                `json:"context,omitempty"`
}

// MessageDTO is one chat message.
type MessageDTO struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the POST /chat body.
type ChatRequest struct {
	Messages       []MessageDTO `json:"messages"`
	TaskType       string       `json:"task_type,omitempty"`
	ProjectID      string       `json:"project_id,omitempty"`
	ProjectType    string       `json:"project_type,omitempty"`
	ConversationID string       `json:"conversation_id,omitempty"`
	Provider       string       `json:"provider,omitempty"`
	Model          string       `json:"model,omitempty"`
	Temperature    *float32     `json:"temperature,omitempty"`
	MaxTokens      *int         `json:"max_tokens,omitempty"`
	SystemPrompt   string       `json:"system_prompt,omitempty"`
}

// UsageDTO reports token consumption for one completion.
type UsageDTO struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse is the POST /chat reply.
type ChatResponse struct {
	Content      string   `json:"content"`
	Provider     string   `json:"provider"`
	Model        string   `json:"model"`
	Usage        UsageDTO `json:"usage"`
	FinishReason string   `json:"finish_reason,omitempty"`
}

// HealthResponse is the GET /health reply.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
