package session

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"doccopilot/internal/rag"
)

var ErrNotFound = errors.New("session not found")

// Session binds one ingested document's chunks and vector index to an opaque
// identifier. Sessions are immutable after creation: a re-ingestion creates
// a new session instead of mutating an existing one.
type Session struct {
	ID         string
	Chunks     []string
	Embeddings [][]float32
	Index      *rag.Index
	WordCount  int
}

// Store maps session identifiers to sessions. Only create and lookup are
// exposed; there is no update or delete.
type Store interface {
	// Create stores the session under a freshly generated identifier and
	// returns that identifier.
	Create(ctx context.Context, s Session) (string, error)
	// Get returns the session for id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Session, error)
}

// newSessionID returns a random 128-bit identifier. Collisions are not a
// practical concern, so concurrent creates never race on a key.
func newSessionID() string {
	return uuid.NewString()
}

// MemoryStore keeps sessions in process memory with no eviction: retention
// is unbounded for the process lifetime, which is the documented default
// behavior rather than a leak to fix. Sessions are immutable once stored,
// so a single RWMutex around the map is all the synchronization needed.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Session)}
}

func (s *MemoryStore) Create(ctx context.Context, sess Session) (string, error) {
	id := newSessionID()
	sess.ID = id

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()
	return id, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return &sess, nil
}

// Len reports the number of stored sessions.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
