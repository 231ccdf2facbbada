package router

import (
	"context"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// Provider is a chat completion backend.
type Provider interface {
	Name() string
	DefaultModel() string
	Generate(ctx context.Context, req domain.GenerateRequest) (domain.LLMResponse, error)
}

// Ledger records and aggregates usage.
type Ledger interface {
	Insert(ctx context.Context, rec domain.UsageRecord) error
	MonthlyUsage(ctx context.Context, projectID string) (domain.MonthlyUsage, error)
	Stats(ctx context.Context, projectID string, days int) (domain.UsageStats, error)
}
