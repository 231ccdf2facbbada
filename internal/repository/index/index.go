// Package index adapts a RediSearch vector index to the engine's
// VectorIndex contract. It only queries; index creation and document
// ingestion belong to the ingestion pipeline.
package index

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/db"
	"github.com/kailas-cloud/ragdex/internal/domain"
)

const (
	contentField  = "content"
	metadataField = "metadata"
)

// Repo queries one named FT vector index.
type Repo struct {
	store  db.KNNSearcher
	index  string
	logger *zap.Logger
}

// New creates an index repository over an existing FT index.
func New(store db.KNNSearcher, indexName string, logger *zap.Logger) *Repo {
	return &Repo{store: store, index: indexName, logger: logger}
}

// SimilaritySearch returns the k nearest stored documents with their raw distance.
func (r *Repo) SimilaritySearch(ctx context.Context, vector []float32, k int) ([]domain.IndexHit, error) {
	res, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.index,
		Vector:       vector,
		K:            k,
		ReturnFields: []string{contentField, metadataField},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: index %s: %w", domain.ErrRetrieval, r.index, err)
	}

	hits := make([]domain.IndexHit, 0, len(res.Entries))
	for _, e := range res.Entries {
		hits = append(hits, domain.IndexHit{
			Content:  e.Fields[contentField],
			Metadata: r.parseMetadata(e.Key, e.Fields[metadataField]),
			Distance: e.Distance,
		})
	}
	return hits, nil
}

// parseMetadata decodes the stored metadata JSON. Malformed metadata is not
// fatal to a hit; the document key is kept as provenance.
func (r *Repo) parseMetadata(key, raw string) map[string]any {
	meta := map[string]any{}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &meta); err != nil {
			r.logger.Warn("Failed to parse document metadata",
				zap.String("index", r.index), zap.String("key", key), zap.Error(err))
			meta = map[string]any{}
		}
	}
	meta["doc_key"] = key
	return meta
}
