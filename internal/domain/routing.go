package domain

// RouteRequest is the input to the model router. TaskType selects the
// provider/model tuple from config; the Override* fields and Temperature/
// MaxTokens pointers replace individual parts of that selection when set.
type RouteRequest struct {
	Messages         []Message
	TaskType         string
	ProjectID        string
	ProjectType      string
	ConversationID   string
	OverrideProvider string
	OverrideModel    string
	Temperature      *float32
	MaxTokens        *int
	SystemPrompt     string
}
