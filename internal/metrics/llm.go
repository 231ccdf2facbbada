package metrics

import "github.com/prometheus/client_golang/prometheus"

// LLM and retrieval Prometheus metrics.
var (
	LLMRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragdex",
			Name:      "llm_requests_total",
			Help:      "Total number of LLM chat completion requests",
		},
		[]string{"provider", "model", "status"},
	)

	LLMRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragdex",
			Name:      "llm_request_duration_seconds",
			Help:      "LLM request duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"provider", "model"},
	)

	LLMTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragdex",
			Name:      "llm_tokens_total",
			Help:      "Total LLM tokens consumed",
		},
		[]string{"provider", "model", "type"},
	)

	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragdex",
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding requests",
		},
		[]string{"provider", "model", "status"},
	)

	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragdex",
			Name:      "embedding_cache_total",
			Help:      "Embedding vector cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	SemanticCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragdex",
			Name:      "semantic_cache_total",
			Help:      "Semantic search cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	BudgetPercentUsed = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ragdex",
			Name:      "budget_percent_used",
			Help:      "Monthly LLM budget consumed, percent",
		},
	)
)

// RegisterLLMMetrics registers the LLM/retrieval collectors. Called once from
// the composition root (no init()).
func RegisterLLMMetrics() {
	prometheus.MustRegister(
		LLMRequestsTotal,
		LLMRequestDuration,
		LLMTokensTotal,
		EmbeddingRequestsTotal,
		EmbeddingCacheTotal,
		SemanticCacheTotal,
		BudgetPercentUsed,
	)
}
