package domain

import "time"

// UsageRecord is one append-only entry in the usage ledger, written by the
// router after every provider call.
type UsageRecord struct {
	Timestamp        time.Time
	ProjectID        string
	ConversationID   string
	Provider         string
	Model            string
	Operation        string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	CostUSD          float64
	Metadata         map[string]any
}

// MonthlyUsage aggregates ledger entries for the current calendar month.
type MonthlyUsage struct {
	Requests         int64   `json:"requests"`
	PromptTokens     int64   `json:"prompt_tokens"`
	CompletionTokens int64   `json:"completion_tokens"`
	TotalTokens      int64   `json:"total_tokens"`
	TotalCostUSD     float64 `json:"total_cost_usd"`
	DaysActive       int     `json:"days_active"`
}

// ModelUsage is a per-model slice of a usage report.
type ModelUsage struct {
	Requests     int64   `json:"requests"`
	TotalTokens  int64   `json:"total_tokens"`
	TotalCostUSD float64 `json:"total_cost_usd"`
}

// BudgetStatus reports monthly spend against the configured limit.
type BudgetStatus struct {
	MonthlyLimitUSD float64 `json:"monthly_limit_usd"`
	UsedUSD         float64 `json:"used_usd"`
	RemainingUSD    float64 `json:"remaining_usd"`
	PercentUsed     float64 `json:"percent_used"`
}

// UsageStats is a rolling usage report over the last N days.
type UsageStats struct {
	Days         int                   `json:"days"`
	Requests     int64                 `json:"requests"`
	TotalTokens  int64                 `json:"total_tokens"`
	TotalCostUSD float64               `json:"total_cost_usd"`
	ByModel      map[string]ModelUsage `json:"by_model"`
	Budget       *BudgetStatus         `json:"budget,omitempty"`
}
