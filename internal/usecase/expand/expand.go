// Package expand implements hypothetical-document query expansion (HyDE):
// the raw question is replaced by a short LLM-written passage in the register
// of a real document, which retrieves better than the question itself.
package expand

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// LLM routes a chat request to a governed model. Satisfied by the router service.
type LLM interface {
	Route(ctx context.Context, req domain.RouteRequest) (domain.LLMResponse, error)
}

// Expander generates hypothetical answer passages for retrieval.
type Expander struct {
	llm       LLM
	projectID string
	timeout   time.Duration
	logger    *zap.Logger
}

// New creates an expander. Expansion calls are routed as "summary" tasks.
func New(llm LLM, projectID string, timeout time.Duration, logger *zap.Logger) *Expander {
	return &Expander{llm: llm, projectID: projectID, timeout: timeout, logger: logger}
}

// Expand returns a hypothetical answer passage for query, and whether
// expansion succeeded. Expansion failure is never fatal: on any error the
// original query is returned unchanged.
func (e *Expander) Expand(ctx context.Context, query string) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.llm.Route(ctx, domain.RouteRequest{
		Messages: []domain.Message{
			{Role: domain.RoleUser, Content: buildPrompt(query)},
		},
		TaskType:  "summary",
		ProjectID: e.projectID,
	})
	if err != nil {
		e.logger.Warn("HyDE expansion failed, using original query",
			zap.String("query", query), zap.Error(err))
		return query, false
	}

	answer := strings.TrimSpace(resp.Content)
	if answer == "" {
		e.logger.Warn("HyDE expansion returned empty passage, using original query",
			zap.String("query", query))
		return query, false
	}

	return answer, true
}

func buildPrompt(query string) string {
	return fmt.Sprintf(`You are a project management expert.

User question: %q

Generate a brief hypothetical answer (2-3 sentences) that would answer this question,
using technical terminology typical of PMO documents.

Do NOT say "according to documents" or "based on".
Write as if it were an excerpt from an actual project document.

Hypothetical answer:`, query)
}
