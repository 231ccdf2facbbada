package engine

import (
	"context"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// VectorIndex performs nearest-neighbor retrieval over one document index.
type VectorIndex interface {
	SimilaritySearch(ctx context.Context, vector []float32, k int) ([]domain.IndexHit, error)
}

// Expander rewrites a query into a better retrieval key. The bool reports
// whether expansion actually happened.
type Expander interface {
	Expand(ctx context.Context, query string) (string, bool)
}

// Reranker reorders merged candidates by LLM-judged relevance.
type Reranker interface {
	Rerank(ctx context.Context, results []domain.SearchResult, query string, topK int) ([]domain.SearchResult, bool)
}

// Cache is the semantic result cache.
type Cache interface {
	Get(ctx context.Context, query string) ([]domain.SearchResult, bool)
	Set(ctx context.Context, query string, results []domain.SearchResult)
}
