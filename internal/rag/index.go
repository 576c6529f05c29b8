package rag

import (
	"fmt"
	"sort"
)

// Index is a flat exact inner-product index over unit-norm embeddings.
// Vector i is the embedding of chunk i; vectors are never mutated or
// removed after construction, so positions double as chunk identifiers.
type Index struct {
	dim     int
	vectors [][]float32
}

// Hit is a single search result: the position of the matched vector and its
// inner-product similarity with the query (cosine similarity for unit-norm
// vectors, bounded in [-1, 1]).
type Hit struct {
	Index int     `json:"index"`
	Score float32 `json:"score"`
}

// NewIndex builds an index over exactly the given embeddings, preserving
// order. All vectors must share one dimension.
func NewIndex(embeddings [][]float32) (*Index, error) {
	idx := &Index{}
	for i, vec := range embeddings {
		if len(vec) == 0 {
			return nil, fmt.Errorf("%w: vector %d is empty", ErrDimensionMismatch, i)
		}
		if idx.dim == 0 {
			idx.dim = len(vec)
		} else if len(vec) != idx.dim {
			return nil, fmt.Errorf("%w: vector %d has dimension %d, want %d",
				ErrDimensionMismatch, i, len(vec), idx.dim)
		}
	}
	idx.vectors = embeddings
	return idx, nil
}

// Len returns the number of indexed vectors.
func (idx *Index) Len() int {
	return len(idx.vectors)
}

// Dim returns the vector dimension, 0 for an empty index.
func (idx *Index) Dim() int {
	return idx.dim
}

// Search returns up to k hits ranked by descending similarity. k is clamped
// to the number of indexed vectors; an empty index yields no hits. Equal
// scores rank the lower chunk index first, so results are deterministic.
func (idx *Index) Search(query []float32, k int) ([]Hit, error) {
	if len(idx.vectors) == 0 || k <= 0 {
		return nil, nil
	}
	if len(query) != idx.dim {
		return nil, fmt.Errorf("%w: query has dimension %d, index has %d",
			ErrDimensionMismatch, len(query), idx.dim)
	}
	if k > len(idx.vectors) {
		k = len(idx.vectors)
	}

	hits := make([]Hit, len(idx.vectors))
	for i, vec := range idx.vectors {
		hits[i] = Hit{Index: i, Score: dot(query, vec)}
	}
	sort.SliceStable(hits, func(a, b int) bool {
		if hits[a].Score != hits[b].Score {
			return hits[a].Score > hits[b].Score
		}
		return hits[a].Index < hits[b].Index
	})
	return hits[:k], nil
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
