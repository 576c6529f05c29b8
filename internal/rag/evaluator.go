package rag

import (
	"context"
	"fmt"
	"strings"

	"doccopilot/internal/embed"
)

const (
	DefaultQuestionCount = 5

	// Leading sentences at or below this length carry too little content to
	// make a meaningful question, so their chunks are skipped outright.
	minSentenceLen = 15
	// A question quotes at most this many characters of the sentence.
	questionQuoteLen = 80
)

// Metric is one named quality signal over a session's retrieval behavior.
type Metric struct {
	Name        string  `json:"name"`
	Score       float32 `json:"score"`
	Description string  `json:"description"`
}

// Evaluator generates synthetic questions from a document's chunks and
// scores retrieval quality with them.
type Evaluator struct {
	provider  embed.Provider
	retriever *Retriever
}

func NewEvaluator(provider embed.Provider, retriever *Retriever) *Evaluator {
	return &Evaluator{provider: provider, retriever: retriever}
}

// GenerateTestQuestions samples up to n chunks at evenly spaced positions
// and turns each one's leading sentence into a question. Chunks whose
// leading sentence is too short produce no question, so the result can be
// shorter than n or empty.
func (e *Evaluator) GenerateTestQuestions(chunks []string, n int) []string {
	if n <= 0 {
		n = DefaultQuestionCount
	}
	if len(chunks) == 0 {
		return nil
	}

	stride := len(chunks) / n
	if stride < 1 {
		stride = 1
	}
	limit := n * stride
	if limit > len(chunks) {
		limit = len(chunks)
	}

	var questions []string
	for i := 0; i < limit; i += stride {
		sentence, _, _ := strings.Cut(chunks[i], ".")
		sentence = strings.TrimSpace(sentence)
		runes := []rune(sentence)
		if len(runes) <= minSentenceLen {
			continue
		}
		if len(runes) > questionQuoteLen {
			runes = runes[:questionQuoteLen]
		}
		questions = append(questions, fmt.Sprintf("What does this content describe: '%s'?", string(runes)))
	}
	if len(questions) > n {
		questions = questions[:n]
	}
	return questions
}

// RetrievalPrecision is the mean top-1 similarity across all questions that
// retrieved at least one chunk, 0 when no question retrieved anything.
func (e *Evaluator) RetrievalPrecision(ctx context.Context, questions []string, index *Index, chunks []string) (float32, error) {
	var sum float32
	var count int
	for _, question := range questions {
		results, err := e.retriever.Retrieve(ctx, question, index, chunks)
		if err != nil {
			return 0, fmt.Errorf("retrieve for precision failed: %w", err)
		}
		if len(results) > 0 {
			sum += results[0].Score
			count++
		}
	}
	if count == 0 {
		return 0, nil
	}
	return sum / float32(count), nil
}

// AnswerRelevance is the mean cosine similarity between each question and
// its answer. answers must be co-indexed with questions.
func (e *Evaluator) AnswerRelevance(ctx context.Context, questions, answers []string) (float32, error) {
	if len(questions) != len(answers) {
		return 0, fmt.Errorf("got %d answers for %d questions", len(answers), len(questions))
	}
	if len(questions) == 0 {
		return 0, nil
	}

	qVectors, err := e.provider.Encode(ctx, questions)
	if err != nil {
		return 0, fmt.Errorf("encode questions failed: %w", err)
	}
	aVectors, err := e.provider.Encode(ctx, answers)
	if err != nil {
		return 0, fmt.Errorf("encode answers failed: %w", err)
	}

	var sum float32
	for i := range qVectors {
		sum += dot(qVectors[i], aVectors[i])
	}
	return sum / float32(len(qVectors)), nil
}

// ContextCoverage is the fraction of the document's chunks that appear in
// any retrieval result across all questions, 0 for an empty document.
func (e *Evaluator) ContextCoverage(ctx context.Context, questions []string, index *Index, chunks []string) (float32, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	used := make(map[int]struct{})
	for _, question := range questions {
		results, err := e.retriever.Retrieve(ctx, question, index, chunks)
		if err != nil {
			return 0, fmt.Errorf("retrieve for coverage failed: %w", err)
		}
		for _, result := range results {
			used[result.ChunkIndex] = struct{}{}
		}
	}
	return float32(len(used)) / float32(len(chunks)), nil
}
