package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doccopilot/internal/rag"
)

func newTestSession(t *testing.T, chunks []string) Session {
	t.Helper()
	embeddings := make([][]float32, len(chunks))
	for i := range embeddings {
		embeddings[i] = []float32{float32(i), 1}
	}
	index, err := rag.NewIndex(embeddings)
	require.NoError(t, err)
	return Session{
		Chunks:     chunks,
		Embeddings: embeddings,
		Index:      index,
		WordCount:  len(chunks) * 2,
	}
}

func TestMemoryStoreCreateAndGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	id, err := store.Create(ctx, newTestSession(t, []string{"alpha beta", "gamma delta"}))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, []string{"alpha beta", "gamma delta"}, got.Chunks)
	assert.Equal(t, 4, got.WordCount)
}

func TestMemoryStoreGetUnknownID(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Get(context.Background(), "no-such-session")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreSessionIsolation(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	idA, err := store.Create(ctx, newTestSession(t, []string{"doc A"}))
	require.NoError(t, err)
	idB, err := store.Create(ctx, newTestSession(t, []string{"doc B"}))
	require.NoError(t, err)

	assert.NotEqual(t, idA, idB)

	a, err := store.Get(ctx, idA)
	require.NoError(t, err)
	b, err := store.Get(ctx, idB)
	require.NoError(t, err)
	assert.Equal(t, []string{"doc A"}, a.Chunks)
	assert.Equal(t, []string{"doc B"}, b.Chunks)
}

func TestMemoryStoreGetIsIdempotent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	id, err := store.Create(ctx, newTestSession(t, []string{"one", "two", "three"}))
	require.NoError(t, err)

	first, err := store.Get(ctx, id)
	require.NoError(t, err)
	second, err := store.Get(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, first.Chunks, second.Chunks)
	assert.Equal(t, first.WordCount, second.WordCount)
	assert.Equal(t, first.ID, second.ID)
}

func TestMemoryStoreConcurrentCreates(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	const n = 50
	ids := make(chan string, n)
	for i := 0; i < n; i++ {
		go func() {
			id, err := store.Create(ctx, newTestSession(t, []string{"c"}))
			assert.NoError(t, err)
			ids <- id
		}()
	}

	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		id := <-ids
		assert.False(t, seen[id], "duplicate session id %s", id)
		seen[id] = true
	}
	assert.Equal(t, n, store.Len())
}
