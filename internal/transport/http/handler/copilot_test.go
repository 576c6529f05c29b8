package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"hash/fnv"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doccopilot/internal/app"
	"doccopilot/internal/embed"
	"doccopilot/internal/llm"
	"doccopilot/internal/rag"
	"doccopilot/internal/session"
	"doccopilot/internal/transport/http/response"
)

type wordHashProvider struct {
	dim int
}

func (p *wordHashProvider) Encode(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, p.dim)
		for _, word := range strings.Fields(strings.ToLower(text)) {
			h := fnv.New32a()
			_, _ = h.Write([]byte(word))
			vec[h.Sum32()%uint32(p.dim)]++
		}
		embed.Normalize(vec)
		out[i] = vec
	}
	return out, nil
}

func (p *wordHashProvider) Dim() int { return p.dim }

type cannedGenerator struct {
	answer string
}

func (g *cannedGenerator) Complete(_ context.Context, _ []llm.Message) (string, error) {
	return g.answer, nil
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	provider := &wordHashProvider{dim: 64}
	chunker, err := rag.NewChunker(20, 4)
	require.NoError(t, err)
	retriever := rag.NewRetriever(provider, 4)

	svc := app.NewCopilotService(app.Options{
		Store:            session.NewMemoryStore(),
		Provider:         provider,
		Chunker:          chunker,
		Retriever:        retriever,
		Evaluator:        rag.NewEvaluator(provider, retriever),
		Generator:        &cannedGenerator{answer: "From the document. [Chunk 0]"},
		MaxDocumentWords: 100,
	})

	h := NewCopilotHandler(svc)
	router := gin.New()
	api := router.Group("/api/v1")
	api.POST("/ingest/text", h.IngestText)
	api.POST("/chat", h.Chat)
	api.POST("/eval", h.Evaluate)
	return router
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func postJSON(t *testing.T, router *gin.Engine, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func ingestSample(t *testing.T, router *gin.Engine) string {
	t.Helper()
	rec, env := postJSON(t, router, "/api/v1/ingest/text", gin.H{
		"name": "handbook",
		"text": "Deployment pipelines promote builds through staging before production release. " +
			"Rollbacks restore the previous artifact within a few minutes of detection.",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var data struct {
		SessionID string `json:"session_id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(t, data.SessionID)
	return data.SessionID
}

func TestIngestTextEndpoint(t *testing.T) {
	router := newTestRouter(t)

	rec, env := postJSON(t, router, "/api/v1/ingest/text", gin.H{
		"name": "notes",
		"text": "Service meshes route traffic between pods with mutual TLS enabled by default.",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, response.CodeOK, env.Code)

	var data struct {
		SessionID  string `json:"session_id"`
		WordCount  int    `json:"word_count"`
		ChunkCount int    `json:"chunk_count"`
		Message    string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.NotEmpty(t, data.SessionID)
	assert.Equal(t, 12, data.WordCount)
	assert.Equal(t, 1, data.ChunkCount)
	assert.Contains(t, data.Message, "Indexing complete")
}

func TestIngestTextMissingBody(t *testing.T) {
	router := newTestRouter(t)

	rec, env := postJSON(t, router, "/api/v1/ingest/text", gin.H{"name": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, response.CodeBadRequest, env.Code)
}

func TestIngestTextOverLimit(t *testing.T) {
	router := newTestRouter(t)

	rec, env := postJSON(t, router, "/api/v1/ingest/text", gin.H{
		"name": "big",
		"text": strings.Repeat("word ", 101),
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, response.CodeUnprocessable, env.Code)
	assert.Contains(t, env.Message, "101")
}

func TestChatEndpoint(t *testing.T) {
	router := newTestRouter(t)
	sessionID := ingestSample(t, router)

	rec, env := postJSON(t, router, "/api/v1/chat", gin.H{
		"session_id": sessionID,
		"question":   "how fast are rollbacks",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, response.CodeOK, env.Code)

	var data struct {
		Answer             string  `json:"answer"`
		RetrievalLatencyMs float64 `json:"retrieval_latency_ms"`
		Citations          []struct {
			ChunkIndex  int     `json:"chunk_index"`
			TextSnippet string  `json:"text_snippet"`
			Score       float32 `json:"score"`
		} `json:"citations"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "From the document. [Chunk 0]", data.Answer)
	require.NotEmpty(t, data.Citations)
	assert.NotEmpty(t, data.Citations[0].TextSnippet)
	assert.GreaterOrEqual(t, data.RetrievalLatencyMs, 0.0)
}

func TestChatUnknownSessionEndpoint(t *testing.T) {
	router := newTestRouter(t)

	rec, env := postJSON(t, router, "/api/v1/chat", gin.H{
		"session_id": "no-such-session",
		"question":   "anything",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, response.CodeSessionNotFound, env.Code)
}

func TestEvalEndpoint(t *testing.T) {
	router := newTestRouter(t)
	sessionID := ingestSample(t, router)

	rec, env := postJSON(t, router, "/api/v1/eval", gin.H{"session_id": sessionID})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, response.CodeOK, env.Code)

	var data struct {
		Metrics []struct {
			Name  string  `json:"name"`
			Score float32 `json:"score"`
		} `json:"metrics"`
		TestQuestions []string `json:"test_questions"`
		Answers       []string `json:"answers"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Len(t, data.Metrics, 3)
	assert.Equal(t, "retrieval_precision", data.Metrics[0].Name)
	assert.Equal(t, "answer_relevance", data.Metrics[1].Name)
	assert.Equal(t, "context_coverage", data.Metrics[2].Name)
	assert.Equal(t, len(data.TestQuestions), len(data.Answers))
}

func TestEvalUnknownSessionEndpoint(t *testing.T) {
	router := newTestRouter(t)

	rec, env := postJSON(t, router, "/api/v1/eval", gin.H{"session_id": "missing"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, response.CodeSessionNotFound, env.Code)
}
