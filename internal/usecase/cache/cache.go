// Package cache implements the semantic search cache: recent queries map to
// previously computed result sets by embedding similarity, not exact text.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// embedTimeout bounds the embedding call during a lookup so a slow provider
// degrades to a cache miss instead of stalling the request.
const embedTimeout = 2 * time.Second

type entry struct {
	results  []domain.SearchResult
	storedAt time.Time
	query    string
	vector   []float32 // nil when the embedding failed at store time
}

// Cache is a TTL-bound semantic cache. Safe for concurrent use.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]entry
	embed      domain.Embedder
	ttl        time.Duration
	threshold  float64
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
	now        func() time.Time
}

// New creates a semantic cache.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"); may be nil.
func New(
	embed domain.Embedder,
	ttl time.Duration,
	threshold float64,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *Cache {
	return &Cache{
		entries:    make(map[string]entry),
		embed:      embed,
		ttl:        ttl,
		threshold:  threshold,
		cacheTotal: cacheTotal,
		logger:     logger,
		now:        time.Now,
	}
}

// Get returns the cached result set for the first live entry whose original
// query is similar enough to query. Expired entries are pruned lazily on
// every lookup. Embedding failures are never fatal: the lookup degrades to
// an exact-repeat match on the raw-text key.
func (c *Cache) Get(ctx context.Context, query string) ([]domain.SearchResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pruneLocked()

	vec, err := c.embedQuery(ctx, query)
	if err != nil {
		c.logger.Warn("Cache lookup embedding failed, falling back to exact match", zap.Error(err))
		if e, ok := c.entries[textKey(query)]; ok {
			c.incCache("hit")
			return cloneResults(e.results), true
		}
		c.incCache("miss")
		return nil, false
	}

	for _, e := range c.entries {
		if e.vector == nil {
			// Degenerate entry stored without an embedding; exact repeats only.
			if e.query == query {
				c.incCache("hit")
				return cloneResults(e.results), true
			}
			continue
		}
		if domain.CosineSimilarity(vec, e.vector) >= c.threshold {
			c.incCache("hit")
			c.logger.Debug("Semantic cache hit",
				zap.String("query", truncate(query, 50)),
				zap.String("cached_query", truncate(e.query, 50)),
			)
			return cloneResults(e.results), true
		}
	}

	c.incCache("miss")
	return nil, false
}

// Set stores the result set keyed by a fingerprint of the query embedding.
// On embedding failure the raw-text hash is used, so the degenerate entry
// still serves exact repeats.
func (c *Cache) Set(ctx context.Context, query string, results []domain.SearchResult) {
	var key string
	vec, err := c.embedQuery(ctx, query)
	if err != nil {
		c.logger.Warn("Cache store embedding failed, using raw-text key", zap.Error(err))
		key = textKey(query)
	} else {
		key = vectorKey(vec)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry{
		results:  cloneResults(results),
		storedAt: c.now(),
		query:    query,
		vector:   vec,
	}
}

// Len returns the number of live entries (expired entries included until the
// next lookup prunes them).
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) pruneLocked() {
	cutoff := c.now().Add(-c.ttl)
	for k, e := range c.entries {
		if e.storedAt.Before(cutoff) {
			delete(c.entries, k)
		}
	}
}

func (c *Cache) embedQuery(ctx context.Context, query string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, embedTimeout)
	defer cancel()

	res, err := c.embed.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed cache query: %w", err)
	}
	if len(res.Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding for cache query")
	}
	return res.Embedding, nil
}

func (c *Cache) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

// vectorKey fingerprints an embedding: the first 16 dims quantized to three
// decimals, hashed. The full vector still decides similarity on lookup; the
// key only has to be stable for identical text.
func vectorKey(vec []float32) string {
	n := len(vec)
	if n > 16 {
		n = 16
	}
	quantized := make([]int32, n)
	for i := 0; i < n; i++ {
		quantized[i] = int32(vec[i] * 1000)
	}
	h := sha256.New()
	for _, q := range quantized {
		_, _ = fmt.Fprintf(h, "%d,", q)
	}
	return "v:" + hex.EncodeToString(h.Sum(nil))
}

func textKey(query string) string {
	h := sha256.Sum256([]byte(query))
	return "t:" + hex.EncodeToString(h[:])
}

func cloneResults(in []domain.SearchResult) []domain.SearchResult {
	out := make([]domain.SearchResult, len(in))
	copy(out, in)
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
