// Package rerank orders merged candidates with a single LLM ranking call.
package rerank

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// LLM routes a chat request to a governed model. Satisfied by the router service.
type LLM interface {
	Route(ctx context.Context, req domain.RouteRequest) (domain.LLMResponse, error)
}

// Reranker asks an LLM for a relevance ordering of retrieved candidates.
type Reranker struct {
	llm         LLM
	projectID   string
	snippetLen  int
	logger      *zap.Logger
}

// New creates a reranker. snippetLen bounds per-candidate content in the
// ranking prompt.
func New(llm LLM, projectID string, snippetLen int, logger *zap.Logger) *Reranker {
	if snippetLen <= 0 {
		snippetLen = 300
	}
	return &Reranker{llm: llm, projectID: projectID, snippetLen: snippetLen, logger: logger}
}

// Rerank returns at most topK results in LLM relevance order, each with a
// RerankScore, and whether reranking actually ran. On any failure the input
// order is kept, truncated to topK, with no rerank scores.
func (r *Reranker) Rerank(
	ctx context.Context, results []domain.SearchResult, query string, topK int,
) ([]domain.SearchResult, bool) {
	if len(results) <= topK {
		return results, false
	}

	resp, err := r.llm.Route(ctx, domain.RouteRequest{
		Messages: []domain.Message{
			{Role: domain.RoleUser, Content: r.buildPrompt(results, query)},
		},
		TaskType:  "analysis",
		ProjectID: r.projectID,
	})
	if err != nil {
		r.logger.Warn("Reranking failed, keeping original order", zap.Error(err))
		return results[:topK], false
	}

	rankings := parseRankings(resp.Content)
	if len(rankings) == 0 {
		r.logger.Warn("Unparseable rerank response, keeping original order",
			zap.String("response", truncate(resp.Content, 120)))
		return results[:topK], false
	}

	reranked := make([]domain.SearchResult, 0, topK)
	for rank, idx := range rankings {
		if idx < 0 || idx >= len(results) {
			continue
		}
		res := results[idx]
		res.RerankScore = 1.0 - float64(rank)/float64(len(rankings))
		res.Reranked = true
		reranked = append(reranked, res)
		if len(reranked) == topK {
			break
		}
	}

	if len(reranked) == 0 {
		return results[:topK], false
	}

	r.logger.Debug("Reranked results", zap.Int("kept", len(reranked)))
	return reranked, true
}

func (r *Reranker) buildPrompt(results []domain.SearchResult, query string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Given this query: %q\n\n", query)
	b.WriteString("Rank the following documents by relevance. Return ONLY a comma-separated " +
		"list of document numbers in order of relevance (most relevant first).\n\n")
	for i, res := range results {
		fmt.Fprintf(&b, "Document %d:\n%s...\n\n", i+1, truncate(res.Content, r.snippetLen))
	}
	b.WriteString(`Ranking (e.g., "3,1,5,2,4"):`)
	return b.String()
}

// parseRankings extracts 0-based indices from a comma-separated list of
// 1-based document numbers. Non-integer tokens are dropped.
func parseRankings(text string) []int {
	var out []int
	for _, tok := range strings.Split(strings.TrimSpace(text), ",") {
		n, err := strconv.Atoi(strings.TrimSpace(tok))
		if err != nil {
			continue
		}
		out = append(out, n-1)
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
