package db

import (
	"context"
	"time"
)

// Store is the database facade combining all sub-interfaces. Consumers use
// the narrow sub-interfaces (ISP).
type Store interface {
	Pinger
	KVStore
	KNNSearcher
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// KVStore provides simple key-value operations.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string
	Vector       []float32
	K            int
	ReturnFields []string
}

// KNNEntry is a single document hit from a KNN search. Distance is the raw
// index distance (non-negative, smaller is closer).
type KNNEntry struct {
	Key      string
	Distance float64
	Fields   map[string]string
}

// KNNResult is the output of a KNN search.
type KNNResult struct {
	Total   int
	Entries []KNNEntry
}

// KNNSearcher provides vector search over existing FT indexes.
type KNNSearcher interface {
	SearchKNN(ctx context.Context, q *KNNQuery) (*KNNResult, error)
}
