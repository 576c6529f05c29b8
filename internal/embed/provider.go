package embed

import (
	"context"
	"errors"
	"math"
)

// Provider maps text to fixed-dimension unit-norm vectors. Implementations
// are constructed once at bootstrap and shared; Encode must be safe for
// concurrent callers. Output is co-indexed with the input: vector i embeds
// texts[i].
type Provider interface {
	// Encode embeds the given texts. It returns one unit-norm vector per
	// input text, in input order.
	Encode(ctx context.Context, texts []string) ([][]float32, error)
	// Dim returns the embedding dimension.
	Dim() int
}

var ErrNoInput = errors.New("no texts to embed")

// Normalize scales v to unit L2 norm in place. A zero vector is left as is.
func Normalize(v []float32) {
	var sum float32
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(float64(sum)))
	for i := range v {
		v[i] *= inv
	}
}
