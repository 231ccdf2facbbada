// Package engine implements the retrieval pipeline: semantic cache, HyDE
// expansion, dual-index search, category boosting, merge and rerank.
package engine

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/ragdex/internal/config"
	"github.com/kailas-cloud/ragdex/internal/domain"
)

// Options override per-request search behavior. Zero values defer to config.
type Options struct {
	TopK           int
	LibraryRatio   float64
	IncludeLibrary *bool
	UseHyde        *bool
	UseReranker    *bool
	UseCache       *bool
}

// SearchResponse is a ranked result set plus execution metadata.
type SearchResponse struct {
	Results  []domain.SearchResult
	Metadata domain.SearchMetadata
}

// Service orchestrates a search across the project and library indexes.
type Service struct {
	projectIdx VectorIndex
	libraryIdx VectorIndex // nil when no library index is configured
	embed      domain.Embedder
	expander   Expander // nil disables HyDE
	reranker   Reranker // nil disables reranking
	cache      Cache    // nil disables the semantic cache
	cfg        config.SearchConfig
	categories []config.CategoryConfig
	logger     *zap.Logger
}

// New creates a search service. Optional collaborators may be nil.
func New(
	projectIdx VectorIndex,
	libraryIdx VectorIndex,
	embed domain.Embedder,
	expander Expander,
	reranker Reranker,
	cache Cache,
	cfg config.SearchConfig,
	categories []config.CategoryConfig,
	logger *zap.Logger,
) *Service {
	return &Service{
		projectIdx: projectIdx,
		libraryIdx: libraryIdx,
		embed:      embed,
		expander:   expander,
		reranker:   reranker,
		cache:      cache,
		cfg:        cfg,
		categories: categories,
		logger:     logger,
	}
}

// Search runs the full retrieval pipeline for query.
func (s *Service) Search(ctx context.Context, query string, opts Options) (SearchResponse, error) {
	if strings.TrimSpace(query) == "" {
		return SearchResponse{}, domain.ErrEmptyQuery
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = s.cfg.DefaultTopK
	}
	ratio := opts.LibraryRatio
	if ratio <= 0 || ratio > 1 {
		ratio = s.cfg.LibraryRatio
	}
	// Request flags replace the config defaults outright, bounded only by
	// which collaborators are wired.
	includeLibrary := s.libraryIdx != nil
	if opts.IncludeLibrary != nil {
		includeLibrary = s.libraryIdx != nil && *opts.IncludeLibrary
	}
	useHyde := s.expander != nil && s.cfg.HydeEnabled()
	if opts.UseHyde != nil {
		useHyde = s.expander != nil && *opts.UseHyde
	}
	useReranker := s.reranker != nil && s.cfg.RerankerEnabled()
	if opts.UseReranker != nil {
		useReranker = s.reranker != nil && *opts.UseReranker
	}
	useCache := s.cache != nil && s.cfg.CacheEnabled()
	if opts.UseCache != nil {
		useCache = s.cache != nil && *opts.UseCache
	}

	meta := domain.SearchMetadata{
		Query:       query,
		TopK:        topK,
		LibraryUsed: includeLibrary,
	}
	if includeLibrary {
		meta.LibraryRatio = ratio
	}

	if useCache {
		if cached, ok := s.cache.Get(ctx, query); ok {
			// The entry may have been stored for a larger topK.
			if len(cached) > topK {
				cached = cached[:topK]
			}
			meta.Cached = true
			meta.ProjectResults, meta.LibraryResults = countByOrigin(cached)
			meta.TotalResults = len(cached)
			s.logger.Info("Semantic cache hit", zap.String("query", truncate(query, 80)))
			return SearchResponse{Results: cached, Metadata: meta}, nil
		}
	}

	searchQuery := query
	if useHyde {
		expanded, ok := s.expander.Expand(ctx, query)
		if ok {
			searchQuery = expanded
			meta.HydeQuery = expanded
		}
	}

	emb, err := s.embed.Embed(ctx, searchQuery)
	if err != nil {
		return SearchResponse{}, fmt.Errorf("embed query: %w", err)
	}

	project, library := s.retrieve(ctx, emb.Embedding, searchQuery, topK, ratio, includeLibrary)

	merged := combine(project, library)
	normalize(merged)

	if useReranker && len(merged) > topK {
		reranked, ok := s.reranker.Rerank(ctx, merged, query, topK)
		merged = reranked
		meta.Reranked = ok
	} else if len(merged) > topK {
		merged = merged[:topK]
	}
	meta.ProjectResults, meta.LibraryResults = countByOrigin(merged)
	meta.TotalResults = len(merged)

	if useCache {
		s.cache.Set(ctx, query, merged)
	}

	s.logger.Info("Search completed",
		zap.String("query", truncate(query, 80)),
		zap.Int("project_hits", meta.ProjectResults),
		zap.Int("library_hits", meta.LibraryResults),
		zap.Int("returned", meta.TotalResults),
		zap.Bool("hyde", meta.HydeQuery != ""),
		zap.Bool("reranked", meta.Reranked),
	)

	return SearchResponse{Results: merged, Metadata: meta}, nil
}

// retrieve queries both indexes concurrently. Index failures are logged and
// the failing index contributes nothing; a search never fails on retrieval,
// even when every queried index is down.
func (s *Service) retrieve(
	ctx context.Context,
	vector []float32,
	searchQuery string,
	topK int,
	ratio float64,
	includeLibrary bool,
) (project, library []domain.SearchResult) {
	kProject, kLibrary := splitK(topK, ratio, includeLibrary)

	g, gctx := errgroup.WithContext(ctx)

	if kProject > 0 {
		g.Go(func() error {
			hits, err := s.projectIdx.SimilaritySearch(gctx, vector, kProject*2)
			if err != nil {
				s.logger.Warn("Project index search failed", zap.Error(err))
				return nil
			}
			project = s.toResults(hits, searchQuery, false)
			return nil
		})
	}

	if includeLibrary {
		g.Go(func() error {
			hits, err := s.libraryIdx.SimilaritySearch(gctx, vector, kLibrary*2)
			if err != nil {
				s.logger.Warn("Library index search failed", zap.Error(err))
				return nil
			}
			library = s.toResults(hits, searchQuery, true)
			return nil
		})
	}

	_ = g.Wait()

	return project, library
}

// splitK allocates the result budget between indexes. The library always
// gets at least one slot when it participates.
func splitK(topK int, ratio float64, includeLibrary bool) (kProject, kLibrary int) {
	if !includeLibrary {
		return topK, 0
	}
	kLibrary = int(math.Round(float64(topK) * ratio))
	if kLibrary < 1 {
		kLibrary = 1
	}
	return topK - kLibrary, kLibrary
}

// toResults converts raw index hits to scored results. Library hits get a
// category and its boost applied to the score.
func (s *Service) toResults(hits []domain.IndexHit, searchQuery string, isLibrary bool) []domain.SearchResult {
	results := make([]domain.SearchResult, 0, len(hits))
	for _, hit := range hits {
		res := domain.SearchResult{
			Content:     hit.Content,
			Metadata:    hit.Metadata,
			Score:       1.0 / (1.0 + hit.Distance),
			SourceQuery: searchQuery,
			IsLibrary:   isLibrary,
			BoostFactor: 1.0,
		}
		if isLibrary {
			category, boost := detectCategory(metaString(hit.Metadata, "source"), s.categories)
			res.LibraryCategory = category
			res.BoostFactor = boost
			res.Score *= boost
		}
		results = append(results, res)
	}
	return results
}

// countByOrigin counts project and library passages in a final result set.
func countByOrigin(results []domain.SearchResult) (project, library int) {
	for _, res := range results {
		if res.IsLibrary {
			library++
			continue
		}
		project++
	}
	return project, library
}

func metaString(meta map[string]any, key string) string {
	if v, ok := meta[key].(string); ok {
		return v
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
