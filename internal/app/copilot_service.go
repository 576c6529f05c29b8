package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"doccopilot/internal/embed"
	"doccopilot/internal/llm"
	"doccopilot/internal/model"
	"doccopilot/internal/rag"
	"doccopilot/internal/session"
)

var (
	ErrEmptyQuestion   = errors.New("question is empty")
	ErrSessionNotFound = errors.New("session not found, run ingestion first")
)

// FallbackAnswer is what the model is instructed to reply when the retrieved
// context cannot answer the question, and what the evaluator substitutes
// when an answer-generation call fails.
const FallbackAnswer = "I cannot answer this question from the provided document."

const systemInstruction = "You are a document assistant. Answer the user's question using ONLY the provided context. " +
	"Cite the chunks you relied on as [Chunk N]. If the context does not contain enough information to answer, " +
	"reply exactly: \"" + FallbackAnswer + "\""

// AnswerGenerator produces an answer from chat messages. *llm.Client is the
// production implementation; tests inject a double.
type AnswerGenerator interface {
	Complete(ctx context.Context, messages []llm.Message) (string, error)
}

// ChatLogPublisher hands a finished transcript to the async persistence
// pipeline.
type ChatLogPublisher interface {
	Publish(ctx context.Context, entry model.ChatLog) error
}

// DocumentRecorder writes the durable audit record of an ingestion.
type DocumentRecorder interface {
	Create(doc *model.Document) error
}

// CopilotService orchestrates ingestion, retrieval-grounded chat, and
// self-evaluation. All collaborators are injected; the service keeps no
// mutable state of its own beyond the session store.
type CopilotService struct {
	store     session.Store
	provider  embed.Provider
	chunker   *rag.Chunker
	retriever *rag.Retriever
	evaluator *rag.Evaluator
	generator AnswerGenerator

	docs     DocumentRecorder
	chatLogs ChatLogPublisher

	maxWords      int
	questionCount int
	snippetChars  int
}

type Options struct {
	Store     session.Store
	Provider  embed.Provider
	Chunker   *rag.Chunker
	Retriever *rag.Retriever
	Evaluator *rag.Evaluator
	Generator AnswerGenerator

	// Optional: when nil, ingest records and chat logs are not persisted.
	Documents DocumentRecorder
	ChatLogs  ChatLogPublisher

	MaxDocumentWords int
	QuestionCount    int
	SnippetMaxChars  int
}

func NewCopilotService(opts Options) *CopilotService {
	maxWords := opts.MaxDocumentWords
	if maxWords <= 0 {
		maxWords = rag.DefaultMaxWords
	}
	questionCount := opts.QuestionCount
	if questionCount <= 0 {
		questionCount = rag.DefaultQuestionCount
	}
	snippetChars := opts.SnippetMaxChars
	if snippetChars <= 0 {
		snippetChars = 150
	}
	return &CopilotService{
		store:         opts.Store,
		provider:      opts.Provider,
		chunker:       opts.Chunker,
		retriever:     opts.Retriever,
		evaluator:     opts.Evaluator,
		generator:     opts.Generator,
		docs:          opts.Documents,
		chatLogs:      opts.ChatLogs,
		maxWords:      maxWords,
		questionCount: questionCount,
		snippetChars:  snippetChars,
	}
}

type IngestResult struct {
	SessionID  string `json:"session_id"`
	WordCount  int    `json:"word_count"`
	ChunkCount int    `json:"chunk_count"`
	Message    string `json:"message"`
}

// Ingest chunks the text, embeds the chunks, builds the vector index, and
// stores everything under a fresh session id. Re-ingesting the same text
// always produces a new session.
func (s *CopilotService) Ingest(ctx context.Context, name, text string) (*IngestResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, rag.ErrEmptyDocument
	}

	wordCount, err := rag.ValidateWordLimit(text, s.maxWords)
	if err != nil {
		return nil, err
	}

	chunks := s.chunker.Chunk(text)
	if len(chunks) == 0 {
		return nil, rag.ErrEmptyDocument
	}

	embeddings, err := s.provider.Encode(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("embed chunks failed: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return nil, fmt.Errorf("embedding count mismatch: %d vectors for %d chunks", len(embeddings), len(chunks))
	}

	index, err := rag.NewIndex(embeddings)
	if err != nil {
		return nil, fmt.Errorf("build index failed: %w", err)
	}

	sessionID, err := s.store.Create(ctx, session.Session{
		Chunks:     chunks,
		Embeddings: embeddings,
		Index:      index,
		WordCount:  wordCount,
	})
	if err != nil {
		return nil, fmt.Errorf("create session failed: %w", err)
	}

	// Audit record only; the session is already usable, so a failed write
	// must not fail the ingest.
	if s.docs != nil {
		if err := s.docs.Create(&model.Document{
			SessionID:  sessionID,
			Name:       name,
			WordCount:  wordCount,
			ChunkCount: len(chunks),
		}); err != nil {
			log.Printf("record ingest failed: %v", err)
		}
	}

	return &IngestResult{
		SessionID:  sessionID,
		WordCount:  wordCount,
		ChunkCount: len(chunks),
		Message:    fmt.Sprintf("Indexing complete. %d words, %d chunks indexed.", wordCount, len(chunks)),
	}, nil
}

type Citation struct {
	ChunkIndex  int     `json:"chunk_index"`
	TextSnippet string  `json:"text_snippet"`
	Score       float32 `json:"score"`
}

type ChatResult struct {
	Answer             string     `json:"answer"`
	Citations          []Citation `json:"citations"`
	RetrievalLatencyMs float64    `json:"retrieval_latency_ms"`
}

// Chat retrieves the chunks most relevant to the question, asks the language
// model to answer from them alone, and returns the answer with per-chunk
// citations.
func (s *CopilotService) Chat(ctx context.Context, sessionID, question string) (*ChatResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	sess, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	results, err := s.retriever.Retrieve(ctx, question, sess.Index, sess.Chunks)
	if err != nil {
		return nil, fmt.Errorf("retrieve failed: %w", err)
	}
	latencyMs := float64(time.Since(started).Microseconds()) / 1000.0

	answer, err := s.generator.Complete(ctx, []llm.Message{
		{Role: "system", Content: systemInstruction},
		{Role: "user", Content: buildUserPrompt(results, question)},
	})
	if err != nil {
		return nil, fmt.Errorf("answer generation failed: %w", err)
	}

	citations := make([]Citation, len(results))
	for i, r := range results {
		citations[i] = Citation{
			ChunkIndex:  r.ChunkIndex,
			TextSnippet: snippet(r.Text, s.snippetChars),
			Score:       r.Score,
		}
	}

	result := &ChatResult{
		Answer:             strings.TrimSpace(answer),
		Citations:          citations,
		RetrievalLatencyMs: latencyMs,
	}

	if s.chatLogs != nil {
		entry := model.ChatLog{
			SessionID: sessionID,
			Question:  question,
			Answer:    result.Answer,
			LatencyMs: latencyMs,
		}
		entry.SetCitations(citations)
		if err := s.chatLogs.Publish(ctx, entry); err != nil {
			log.Printf("publish chat log failed: %v", err)
		}
	}

	return result, nil
}

type EvalResult struct {
	SessionID     string       `json:"session_id"`
	Metrics       []rag.Metric `json:"metrics"`
	TestQuestions []string     `json:"test_questions"`
	Answers       []string     `json:"answers"`
}

// Evaluate generates synthetic questions from the session's chunks, answers
// them through the normal chat pipeline, and computes the three retrieval
// quality metrics. The questions and answers come back alongside the scores
// so a caller can audit what was measured.
func (s *CopilotService) Evaluate(ctx context.Context, sessionID string) (*EvalResult, error) {
	sess, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	questions := s.evaluator.GenerateTestQuestions(sess.Chunks, s.questionCount)
	if len(questions) == 0 {
		return nil, rag.ErrNoTestQuestions
	}

	// Answers are generated sequentially in question order so answers[i]
	// always corresponds to questions[i]. One failed generation does not
	// fail the run; the fallback keeps the pairing intact.
	answers := make([]string, len(questions))
	for i, question := range questions {
		results, err := s.retriever.Retrieve(ctx, question, sess.Index, sess.Chunks)
		if err != nil {
			return nil, fmt.Errorf("retrieve for evaluation failed: %w", err)
		}
		answer, err := s.generator.Complete(ctx, []llm.Message{
			{Role: "system", Content: systemInstruction},
			{Role: "user", Content: buildUserPrompt(results, question)},
		})
		if err != nil {
			log.Printf("evaluation answer %d failed: %v", i, err)
			answer = FallbackAnswer
		}
		answers[i] = strings.TrimSpace(answer)
	}

	precision, err := s.evaluator.RetrievalPrecision(ctx, questions, sess.Index, sess.Chunks)
	if err != nil {
		return nil, fmt.Errorf("compute retrieval precision failed: %w", err)
	}
	relevance, err := s.evaluator.AnswerRelevance(ctx, questions, answers)
	if err != nil {
		return nil, fmt.Errorf("compute answer relevance failed: %w", err)
	}
	coverage, err := s.evaluator.ContextCoverage(ctx, questions, sess.Index, sess.Chunks)
	if err != nil {
		return nil, fmt.Errorf("compute context coverage failed: %w", err)
	}

	return &EvalResult{
		SessionID: sessionID,
		Metrics: []rag.Metric{
			{
				Name:        "retrieval_precision",
				Score:       precision,
				Description: "Average top-1 similarity between test questions and their best-matching chunk.",
			},
			{
				Name:        "answer_relevance",
				Score:       relevance,
				Description: "Average semantic similarity between test questions and the generated answers.",
			},
			{
				Name:        "context_coverage",
				Score:       coverage,
				Description: "Fraction of document chunks referenced by at least one retrieval.",
			},
		},
		TestQuestions: questions,
		Answers:       answers,
	}, nil
}

func (s *CopilotService) getSession(ctx context.Context, sessionID string) (*session.Session, error) {
	sess, err := s.store.Get(ctx, sessionID)
	if errors.Is(err, session.ErrNotFound) {
		return nil, fmt.Errorf("%w: %q", ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("get session failed: %w", err)
	}
	return sess, nil
}

// buildUserPrompt assembles the context block, one "[Chunk i]: text" entry
// per retrieved chunk joined by blank lines, followed by the question.
func buildUserPrompt(results []rag.Result, question string) string {
	blocks := make([]string, len(results))
	for i, r := range results {
		blocks[i] = fmt.Sprintf("[Chunk %d]: %s", r.ChunkIndex, r.Text)
	}
	return "Context:\n\n" + strings.Join(blocks, "\n\n") + "\n\nQuestion: " + question
}

// snippet truncates text to at most maxChars characters, preferring a word
// boundary and marking the cut with an ellipsis.
func snippet(text string, maxChars int) string {
	runes := []rune(text)
	if len(runes) <= maxChars {
		return text
	}

	const marker = "..."
	cut := maxChars - len(marker)
	if cut <= 0 {
		return string(runes[:maxChars])
	}

	truncated := string(runes[:cut])
	if i := strings.LastIndexByte(truncated, ' '); i > 0 {
		truncated = truncated[:i]
	}
	return truncated + marker
}
