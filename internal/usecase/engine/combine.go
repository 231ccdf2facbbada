package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/kailas-cloud/ragdex/internal/config"
	"github.com/kailas-cloud/ragdex/internal/domain"
)

// detectCategory classifies a library document by substring match on its
// source path. First matching category wins; unmatched docs fall back to
// "General" with no boost.
func detectCategory(source string, categories []config.CategoryConfig) (string, float64) {
	lower := strings.ToLower(source)
	for _, cat := range categories {
		for _, pattern := range cat.Patterns {
			if strings.Contains(lower, pattern) {
				return cat.Name, cat.Boost
			}
		}
	}
	return "General", 1.0
}

// combine merges project and library results into one ranked, deduplicated
// list. Library boosts must already be applied to Score.
func combine(project, library []domain.SearchResult) []domain.SearchResult {
	merged := make([]domain.SearchResult, 0, len(project)+len(library))
	merged = append(merged, project...)
	merged = append(merged, library...)

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})

	// Dedup on a content-prefix hash; the sort guarantees the kept copy is
	// the highest-scoring one.
	seen := make(map[string]struct{}, len(merged))
	out := merged[:0]
	for _, res := range merged {
		key := contentKey(res.Content)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, res)
	}
	return out
}

func contentKey(content string) string {
	if len(content) > 100 {
		content = content[:100]
	}
	h := sha256.Sum256([]byte(content))
	return hex.EncodeToString(h[:])
}

// normalize rescales scores to [0,1] with min-max. A degenerate set where
// every score is equal maps to 1.0 across the board.
func normalize(results []domain.SearchResult) {
	if len(results) == 0 {
		return
	}

	minScore, maxScore := results[0].Score, results[0].Score
	for _, res := range results[1:] {
		if res.Score < minScore {
			minScore = res.Score
		}
		if res.Score > maxScore {
			maxScore = res.Score
		}
	}

	span := maxScore - minScore
	for i := range results {
		if span == 0 {
			results[i].Score = 1.0
			continue
		}
		results[i].Score = (results[i].Score - minScore) / span
	}
}
