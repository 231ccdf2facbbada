// Package router selects the provider and model for each LLM call, applies
// project-type overrides, falls back across providers, and records every
// call in the usage ledger.
package router

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/config"
	"github.com/kailas-cloud/ragdex/internal/domain"
)

// target is a resolved (provider, model, sampling) selection.
type target struct {
	provider    string
	model       string
	temperature float32
	maxTokens   int
}

// Service routes chat requests across the configured providers.
type Service struct {
	providers map[string]Provider
	order     []string // provider names, sorted, for deterministic fallback
	ledger    Ledger
	cfg       config.RouterConfig
	logger    *zap.Logger
}

// New creates a router. At least one provider and a "chat" task type are
// required.
func New(
	providers map[string]Provider,
	ledger Ledger,
	cfg config.RouterConfig,
	logger *zap.Logger,
) (*Service, error) {
	if len(providers) == 0 {
		return nil, fmt.Errorf("no providers configured: %w", domain.ErrConfiguration)
	}
	if _, ok := cfg.TaskTypes["chat"]; !ok {
		return nil, fmt.Errorf("task type %q not configured: %w", "chat", domain.ErrConfiguration)
	}

	order := make([]string, 0, len(providers))
	for name := range providers {
		order = append(order, name)
	}
	sort.Strings(order)

	return &Service{
		providers: providers,
		order:     order,
		ledger:    ledger,
		cfg:       cfg,
		logger:    logger,
	}, nil
}

// Route resolves the target model for req, invokes it, and records usage.
// On provider failure it retries once on an alternate provider with that
// provider's default model.
func (s *Service) Route(ctx context.Context, req domain.RouteRequest) (domain.LLMResponse, error) {
	tgt := s.selectTarget(req)

	provider, ok := s.providers[tgt.provider]
	if !ok {
		substitute := s.order[0]
		s.logger.Error("Configured provider is not available, substituting",
			zap.String("configured", tgt.provider),
			zap.String("substitute", substitute),
		)
		provider = s.providers[substitute]
		tgt.provider = substitute
		tgt.model = provider.DefaultModel()
	}

	resp, err := s.invoke(ctx, provider, tgt, req)
	if err == nil {
		return resp, nil
	}

	fallback := s.fallbackProvider(tgt.provider)
	if fallback == nil {
		return domain.LLMResponse{}, err
	}

	s.logger.Warn("Provider failed, falling back",
		zap.String("failed_provider", tgt.provider),
		zap.String("fallback_provider", fallback.Name()),
		zap.Error(err),
	)

	tgt.provider = fallback.Name()
	tgt.model = fallback.DefaultModel()

	resp, fbErr := s.invoke(ctx, fallback, tgt, req)
	if fbErr != nil {
		return domain.LLMResponse{}, fmt.Errorf("all providers failed: %w (fallback: %w)", err, fbErr)
	}
	return resp, nil
}

// invoke calls the provider and, on success, records usage and checks the
// budget. Ledger failures never block the response.
func (s *Service) invoke(
	ctx context.Context, provider Provider, tgt target, req domain.RouteRequest,
) (domain.LLMResponse, error) {
	genReq := domain.GenerateRequest{
		Messages:     req.Messages,
		Model:        tgt.model,
		Temperature:  tgt.temperature,
		MaxTokens:    tgt.maxTokens,
		SystemPrompt: req.SystemPrompt,
	}
	if req.Temperature != nil {
		genReq.Temperature = *req.Temperature
	}
	if req.MaxTokens != nil {
		genReq.MaxTokens = *req.MaxTokens
	}

	resp, err := provider.Generate(ctx, genReq)
	if err != nil {
		return domain.LLMResponse{}, err
	}

	s.trackUsage(ctx, tgt, req, resp)
	s.checkBudget(ctx, req.ProjectID)

	return resp, nil
}

// selectTarget resolves the provider/model tuple for a request.
// Precedence: full request override, then task-type config (with chat
// fallback for unknown tasks), then project-type override, then individual
// provider or model overrides.
func (s *Service) selectTarget(req domain.RouteRequest) target {
	if req.OverrideProvider != "" && req.OverrideModel != "" {
		tc := s.taskConfig(req.TaskType)
		return target{
			provider:    req.OverrideProvider,
			model:       req.OverrideModel,
			temperature: tc.Temperature,
			maxTokens:   tc.MaxTokens,
		}
	}

	tc := s.taskConfig(req.TaskType)
	tgt := target{
		provider:    tc.Provider,
		model:       tc.Model,
		temperature: tc.Temperature,
		maxTokens:   tc.MaxTokens,
	}

	if req.ProjectType != "" {
		if overrides, ok := s.cfg.ProjectTypes[req.ProjectType]; ok {
			if ov, ok := overrides[req.TaskType]; ok {
				if ov.Provider != "" {
					tgt.provider = ov.Provider
				}
				if ov.Model != "" {
					tgt.model = ov.Model
				}
			}
		}
	}

	if req.OverrideProvider != "" {
		tgt.provider = req.OverrideProvider
	}
	if req.OverrideModel != "" {
		tgt.model = req.OverrideModel
	}

	return tgt
}

func (s *Service) taskConfig(taskType string) config.TaskConfig {
	if tc, ok := s.cfg.TaskTypes[taskType]; ok {
		return tc
	}
	s.logger.Warn("Unknown task type, using chat defaults", zap.String("task_type", taskType))
	return s.cfg.TaskTypes["chat"]
}

// fallbackProvider returns the first provider that is not the failed one,
// or nil when no alternate exists.
func (s *Service) fallbackProvider(failed string) Provider {
	for _, name := range s.order {
		if name != failed {
			return s.providers[name]
		}
	}
	return nil
}

func (s *Service) trackUsage(
	ctx context.Context, tgt target, req domain.RouteRequest, resp domain.LLMResponse,
) {
	cost := s.estimateCost(tgt.provider, tgt.model, resp.Usage)

	rec := domain.UsageRecord{
		Timestamp:        time.Now().UTC(),
		ProjectID:        req.ProjectID,
		ConversationID:   req.ConversationID,
		Provider:         tgt.provider,
		Model:            tgt.model,
		Operation:        req.TaskType,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
		CostUSD:          cost,
	}

	if err := s.ledger.Insert(ctx, rec); err != nil {
		s.logger.Error("Usage ledger write failed",
			zap.Error(fmt.Errorf("%w: %w", domain.ErrLedgerWrite, err)))
	}
}
