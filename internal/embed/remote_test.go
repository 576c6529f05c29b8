package embed

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type embeddingItem struct {
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

func newEmbeddingServer(t *testing.T, handler func(input []string) []embeddingItem) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/embeddings", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "test-model", req.Model)

		resp := map[string]interface{}{"data": handler(req.Input)}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestRemoteEncodeNormalizes(t *testing.T) {
	server := newEmbeddingServer(t, func(input []string) []embeddingItem {
		items := make([]embeddingItem, len(input))
		for i := range input {
			items[i] = embeddingItem{Index: i, Embedding: []float32{3, 4}}
		}
		return items
	})
	defer server.Close()

	remote := NewRemote(RemoteOptions{BaseURL: server.URL, APIKey: "test-key", Model: "test-model", Dimension: 2})

	vectors, err := remote.Encode(context.Background(), []string{"hello", "world"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	for _, vec := range vectors {
		assert.InDelta(t, 0.6, vec[0], 1e-6)
		assert.InDelta(t, 0.8, vec[1], 1e-6)
	}
}

func TestRemoteEncodeRestoresResponseOrder(t *testing.T) {
	server := newEmbeddingServer(t, func(input []string) []embeddingItem {
		// reversed order; the index field must restore positions
		items := make([]embeddingItem, 0, len(input))
		for i := len(input) - 1; i >= 0; i-- {
			vec := make([]float32, 3)
			vec[i%3] = 1
			items = append(items, embeddingItem{Index: i, Embedding: vec})
		}
		return items
	})
	defer server.Close()

	remote := NewRemote(RemoteOptions{BaseURL: server.URL, APIKey: "test-key", Model: "test-model", Dimension: 3})

	vectors, err := remote.Encode(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	assert.Equal(t, []float32{1, 0, 0}, vectors[0])
	assert.Equal(t, []float32{0, 1, 0}, vectors[1])
	assert.Equal(t, []float32{0, 0, 1}, vectors[2])
}

func TestRemoteEncodeBatches(t *testing.T) {
	var calls int
	server := newEmbeddingServer(t, func(input []string) []embeddingItem {
		calls++
		require.LessOrEqual(t, len(input), 2)
		items := make([]embeddingItem, len(input))
		for i := range input {
			items[i] = embeddingItem{Index: i, Embedding: []float32{1, 0}}
		}
		return items
	})
	defer server.Close()

	remote := NewRemote(RemoteOptions{BaseURL: server.URL, APIKey: "test-key", Model: "test-model", Dimension: 2, BatchSize: 2})

	vectors, err := remote.Encode(context.Background(), []string{"a", "b", "c", "d", "e"})
	require.NoError(t, err)
	assert.Len(t, vectors, 5)
	assert.Equal(t, 3, calls)
}

func TestRemoteEncodeEmptyInput(t *testing.T) {
	remote := NewRemote(RemoteOptions{BaseURL: "http://unused", APIKey: "k", Model: "m", Dimension: 2})
	_, err := remote.Encode(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoInput)
}

func TestRemoteEncodeServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	remote := NewRemote(RemoteOptions{BaseURL: server.URL, APIKey: "test-key", Model: "test-model", Dimension: 2})
	_, err := remote.Encode(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestRemoteEncodeCountMismatch(t *testing.T) {
	server := newEmbeddingServer(t, func(input []string) []embeddingItem {
		return []embeddingItem{{Index: 0, Embedding: []float32{1, 0}}}
	})
	defer server.Close()

	remote := NewRemote(RemoteOptions{BaseURL: server.URL, APIKey: "test-key", Model: "test-model", Dimension: 2})
	_, err := remote.Encode(context.Background(), []string{"a", "b"})
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	vec := []float32{3, 0, 4}
	Normalize(vec)

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-6)
	assert.InDelta(t, 0.6, vec[0], 1e-6)
	assert.InDelta(t, 0.8, vec[2], 1e-6)
}

func TestNormalizeZeroVector(t *testing.T) {
	vec := []float32{0, 0, 0}
	Normalize(vec)
	assert.Equal(t, []float32{0, 0, 0}, vec)
}
