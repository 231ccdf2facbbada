package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/metrics"
)

// Provider is a chat completion adapter for any OpenAI-compatible endpoint
// (OpenAI, Nebius, DeepSeek, local gateways).
type Provider struct {
	client       *openai.Client
	name         string
	defaultModel string
	logger       *zap.Logger
}

// ProviderConfig holds the chat provider settings.
type ProviderConfig struct {
	APIKey       string
	BaseURL      string
	Name         string
	DefaultModel string
	Logger       *zap.Logger
}

// NewProvider creates an OpenAI-compatible chat provider adapter.
func NewProvider(cfg *ProviderConfig) *Provider {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Provider{
		client:       openai.NewClientWithConfig(clientCfg),
		name:         cfg.Name,
		defaultModel: cfg.DefaultModel,
		logger:       cfg.Logger,
	}
}

// Name returns the configured provider name.
func (p *Provider) Name() string { return p.name }

// DefaultModel returns the provider's configured default model.
func (p *Provider) DefaultModel() string { return p.defaultModel }

// Generate executes a chat completion and returns a normalized response.
// All failures are wrapped with domain.ErrProvider so the router can tell a
// provider outage from a degenerate response.
func (p *Provider) Generate(ctx context.Context, req domain.GenerateRequest) (domain.LLMResponse, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    p.buildMessages(req),
		Temperature: req.Temperature,
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}

	start := time.Now()

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)

	latency := time.Since(start)

	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(p.name, model, "error").Inc()
		return domain.LLMResponse{}, p.parseAPIError(model, err)
	}

	if len(resp.Choices) == 0 {
		metrics.LLMRequestsTotal.WithLabelValues(p.name, model, "error").Inc()
		return domain.LLMResponse{}, fmt.Errorf("empty completion response: %w", domain.ErrProvider)
	}

	metrics.LLMRequestsTotal.WithLabelValues(p.name, model, "success").Inc()
	metrics.LLMRequestDuration.WithLabelValues(p.name, model).Observe(latency.Seconds())

	usage := domain.TokenUsage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}
	if usage.TotalTokens == 0 {
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}
	metrics.LLMTokensTotal.WithLabelValues(p.name, model, "prompt").Add(float64(usage.PromptTokens))
	metrics.LLMTokensTotal.WithLabelValues(p.name, model, "completion").Add(float64(usage.CompletionTokens))

	choice := resp.Choices[0]

	p.logger.Debug("Chat completion",
		zap.String("provider", p.name),
		zap.String("model", model),
		zap.Int("tokens", usage.TotalTokens),
		zap.Duration("latency", latency),
	)

	return domain.LLMResponse{
		Content:      choice.Message.Content,
		Provider:     p.name,
		Model:        model,
		Usage:        usage,
		FinishReason: string(choice.FinishReason),
		Latency:      latency,
	}, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (p *Provider) HealthCheck(ctx context.Context) error {
	if _, err := p.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// buildMessages converts domain messages, prepending the system prompt when set.
func (p *Provider) buildMessages(req domain.GenerateRequest) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	for _, m := range req.Messages {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return msgs
}

// parseAPIError extracts a human-readable error from the API response.
// All errors are wrapped with domain.ErrProvider.
func (p *Provider) parseAPIError(model string, err error) error {
	p.logger.Warn("Chat completion failed",
		zap.String("provider", p.name), zap.String("model", model), zap.Error(err))

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("chat API error %d: %s: %w",
			reqErr.HTTPStatusCode, string(reqErr.Body), domain.ErrProvider)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("chat API error %d: %s: %w",
			apiErr.HTTPStatusCode, apiErr.Message, domain.ErrProvider)
	}

	return fmt.Errorf("chat request failed: %v: %w", err, domain.ErrProvider)
}
