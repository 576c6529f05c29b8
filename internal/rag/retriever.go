package rag

import (
	"context"
	"fmt"

	"doccopilot/internal/embed"
)

const DefaultTopK = 4

// Result is one retrieved chunk: its position in the chunk sequence, its
// text, and its cosine similarity with the query.
type Result struct {
	ChunkIndex int     `json:"chunk_index"`
	Text       string  `json:"text"`
	Score      float32 `json:"score"`
}

// Retriever composes an embedding provider with a per-session index to
// answer top-K queries. It holds no per-session state of its own.
type Retriever struct {
	provider embed.Provider
	topK     int
}

func NewRetriever(provider embed.Provider, topK int) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Retriever{provider: provider, topK: topK}
}

// Retrieve encodes the query and returns the top chunks in descending
// similarity order. Backends that signal missing slots with a negative
// index are filtered out.
func (r *Retriever) Retrieve(ctx context.Context, query string, index *Index, chunks []string) ([]Result, error) {
	vectors, err := r.provider.Encode(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("encode query failed: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedding provider returned no vector for query")
	}

	k := r.topK
	if k > len(chunks) {
		k = len(chunks)
	}
	hits, err := index.Search(vectors[0], k)
	if err != nil {
		return nil, fmt.Errorf("index search failed: %w", err)
	}

	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		if hit.Index < 0 || hit.Index >= len(chunks) {
			continue
		}
		results = append(results, Result{
			ChunkIndex: hit.Index,
			Text:       chunks[hit.Index],
			Score:      hit.Score,
		})
	}
	return results, nil
}
