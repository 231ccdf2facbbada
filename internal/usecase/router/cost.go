package router

import (
	"context"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/metrics"
)

// estimateCost prices a call from the per-1K-token table. Unpriced models
// cost 0.0 so routing never fails on a pricing gap.
func (s *Service) estimateCost(provider, model string, usage domain.TokenUsage) float64 {
	models, ok := s.cfg.Pricing[provider]
	if !ok {
		s.logger.Warn("No pricing for provider, recording zero cost",
			zap.String("provider", provider), zap.String("model", model))
		return 0.0
	}
	pricing, ok := models[model]
	if !ok {
		s.logger.Warn("No pricing for model, recording zero cost",
			zap.String("provider", provider), zap.String("model", model))
		return 0.0
	}

	return float64(usage.PromptTokens)/1000*pricing.InputPer1K +
		float64(usage.CompletionTokens)/1000*pricing.OutputPer1K
}

// checkBudget compares month-to-date spend against the monthly limit and
// logs threshold crossings. Advisory only: requests are never blocked.
func (s *Service) checkBudget(ctx context.Context, projectID string) {
	limit := s.cfg.Budget.MonthlyLimitUSD
	if limit <= 0 {
		return
	}

	monthly, err := s.ledger.MonthlyUsage(ctx, "")
	if err != nil {
		s.logger.Warn("Budget check failed", zap.Error(err))
		return
	}

	percentUsed := monthly.TotalCostUSD / limit * 100
	metrics.BudgetPercentUsed.Set(percentUsed)

	switch {
	case percentUsed >= s.cfg.Budget.CriticalPercent:
		s.logger.Error("Monthly budget critical",
			zap.Float64("percent_used", percentUsed),
			zap.Float64("spent_usd", monthly.TotalCostUSD),
			zap.Float64("limit_usd", limit),
			zap.String("project_id", projectID),
		)
	case percentUsed >= s.cfg.Budget.AlertPercent:
		s.logger.Warn("Monthly budget alert",
			zap.Float64("percent_used", percentUsed),
			zap.Float64("spent_usd", monthly.TotalCostUSD),
			zap.Float64("limit_usd", limit),
			zap.String("project_id", projectID),
		)
	}
}

// UsageStats returns the rolling usage report, with budget status attached
// when a monthly limit is configured.
func (s *Service) UsageStats(ctx context.Context, projectID string, days int) (domain.UsageStats, error) {
	stats, err := s.ledger.Stats(ctx, projectID, days)
	if err != nil {
		return domain.UsageStats{}, err
	}

	if limit := s.cfg.Budget.MonthlyLimitUSD; limit > 0 {
		monthly, err := s.ledger.MonthlyUsage(ctx, "")
		if err != nil {
			s.logger.Warn("Budget status unavailable", zap.Error(err))
			return stats, nil
		}
		stats.Budget = &domain.BudgetStatus{
			MonthlyLimitUSD: limit,
			UsedUSD:         monthly.TotalCostUSD,
			RemainingUSD:    limit - monthly.TotalCostUSD,
			PercentUsed:     monthly.TotalCostUSD / limit * 100,
		}
	}

	return stats, nil
}
