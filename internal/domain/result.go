package domain

// SearchResult is a single retrieved passage with retrieval provenance.
type SearchResult struct {
	Content         string
	Metadata        map[string]any
	Score           float64
	RerankScore     float64
	Reranked        bool
	SourceQuery     string
	IsLibrary       bool
	LibraryCategory string
	BoostFactor     float64
}

// IndexHit is a raw nearest-neighbor hit from a vector index.
// Distance is non-negative; callers convert to similarity via 1/(1+distance).
type IndexHit struct {
	Content  string
	Metadata map[string]any
	Distance float64
}

// SearchMetadata describes how a search was executed.
type SearchMetadata struct {
	Query          string  `json:"query"`
	TopK           int     `json:"top_k"`
	Cached         bool    `json:"cached"`
	LibraryUsed    bool    `json:"library_used"`
	LibraryRatio   float64 `json:"library_ratio,omitempty"`
	HydeQuery      string  `json:"hyde_query,omitempty"`
	Reranked       bool    `json:"reranked"`
	ProjectResults int     `json:"project_results"`
	LibraryResults int     `json:"library_results"`
	TotalResults   int     `json:"total_results"`
}

// SourcesSummary aggregates provenance over a result set.
type SourcesSummary struct {
	Total             int            `json:"total"`
	Project           int            `json:"project"`
	Library           int            `json:"library"`
	LibraryCategories map[string]int `json:"library_categories"`
	AvgScore          float64        `json:"avg_score"`
	BoostApplied      bool           `json:"boost_applied"`
}
