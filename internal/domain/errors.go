package domain

import "errors"

var (
	// ErrConfiguration signals missing or invalid routing/pricing config. Fatal at startup.
	ErrConfiguration = errors.New("invalid configuration")
	// ErrEmptyQuery signals a blank search query.
	ErrEmptyQuery = errors.New("query must not be empty")
	// ErrRetrieval signals a vector index call failure. Recovered per index.
	ErrRetrieval = errors.New("retrieval failed")
	// ErrExpansion signals a HyDE expansion failure. Recovered, original query used.
	ErrExpansion = errors.New("query expansion failed")
	// ErrRerank signals an unusable rerank response. Recovered, original order kept.
	ErrRerank = errors.New("rerank failed")
	// ErrProvider signals an LLM provider call failure.
	ErrProvider = errors.New("provider call failed")
	// ErrNoProvider signals that no configured provider could answer.
	ErrNoProvider = errors.New("no provider available")
	// ErrLedgerWrite signals a usage ledger write failure. Logged, never blocks the response.
	ErrLedgerWrite = errors.New("usage ledger write failed")
	// ErrEmbedding signals an embedding provider failure.
	ErrEmbedding = errors.New("embedding provider error")
)
