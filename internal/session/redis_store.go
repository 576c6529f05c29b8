package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"doccopilot/internal/rag"
)

// RedisStore keeps sessions in Redis with a TTL, trading the process-lifetime
// retention of MemoryStore for bounded memory: an expired session simply
// looks absent, and the caller is told to re-run ingestion. Chunks and
// embeddings are serialized as JSON; the index is rebuilt on load since it
// is a pure function of the embeddings.
type RedisStore struct {
	client *redisv9.Client
	ttl    time.Duration
}

type sessionRecord struct {
	Chunks     []string    `json:"chunks"`
	Embeddings [][]float32 `json:"embeddings"`
	WordCount  int         `json:"word_count"`
}

func NewRedisStore(client *redisv9.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Create(ctx context.Context, sess Session) (string, error) {
	id := newSessionID()

	payload, err := json.Marshal(sessionRecord{
		Chunks:     sess.Chunks,
		Embeddings: sess.Embeddings,
		WordCount:  sess.WordCount,
	})
	if err != nil {
		return "", fmt.Errorf("marshal session failed: %w", err)
	}
	if err := s.client.Set(ctx, s.sessionKey(id), payload, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("redis set session failed: %w", err)
	}
	return id, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	raw, err := s.client.Get(ctx, s.sessionKey(id)).Result()
	if err == redisv9.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get session failed: %w", err)
	}

	var record sessionRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, fmt.Errorf("unmarshal session failed: %w", err)
	}

	index, err := rag.NewIndex(record.Embeddings)
	if err != nil {
		return nil, fmt.Errorf("rebuild session index failed: %w", err)
	}
	return &Session{
		ID:         id,
		Chunks:     record.Chunks,
		Embeddings: record.Embeddings,
		Index:      index,
		WordCount:  record.WordCount,
	}, nil
}

func (s *RedisStore) sessionKey(id string) string {
	return "copilot:session:" + id
}
